package db

import (
	"testing"

	"itinerary-shaper/internal/gtfs"
	"itinerary-shaper/internal/itinerary"
	"itinerary-shaper/internal/path"
)

func TestParseDaySeconds(t *testing.T) {
	tests := map[string]int{
		"08:15:30":  8*3600 + 15*60 + 30,
		" 25:01:00": 25*3600 + 60,
		"07:05":     7*3600 + 5*60,
		"":          -1,
		"noon":      -1,
		"xx:10:00":  -1,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := parseDaySeconds(in); got != want {
				t.Fatalf("parseDaySeconds(%q) = %d, want %d", in, got, want)
			}
		})
	}
}

func TestFillMissingTimes(t *testing.T) {
	sts := []gtfs.StopTime{
		{ArrivalSec: -1, DepartureSec: 100},
		{ArrivalSec: -1, DepartureSec: -1},
		{ArrivalSec: 300, DepartureSec: -1},
	}
	fillMissingTimes(sts)
	want := [][2]int{{100, 100}, {100, 100}, {300, 300}}
	for i, w := range want {
		if sts[i].ArrivalSec != w[0] || sts[i].DepartureSec != w[1] {
			t.Fatalf("stop %d = %d/%d, want %v", i, sts[i].ArrivalSec, sts[i].DepartureSec, w)
		}
	}
}

func TestParseEnum(t *testing.T) {
	labels := map[string]int{"accessible": 1, "not_accessible": 2}
	for in, want := range map[string]int{"1": 1, "2": 2, "accessible": 1, "NOT_ACCESSIBLE": 2, "": 0, "unknown": 0} {
		if got := parseEnum(in, labels); got != want {
			t.Errorf("parseEnum(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestWithDBName(t *testing.T) {
	tests := []struct {
		dsn, name, want string
		wantErr         bool
	}{
		{"postgres://u:p@h:5432/postgres?sslmode=disable", "gtfs_oslo_2025", "postgres://u:p@h:5432/gtfs_oslo_2025?sslmode=disable", false},
		{"postgresql://h/x", "/y", "postgresql://h/y", false},
		{"u@h:5432/postgres", "gtfs_bergen", "postgres://u@h:5432/gtfs_bergen", false},
		{"", "x", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			got, err := WithDBName(tt.dsn, tt.name)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("WithDBName = %q, %v", got, err)
			}
		})
	}
}

func TestNewScheduleIndexesByMode(t *testing.T) {
	sts := []gtfs.StopTime{{StopID: "A"}, {StopID: "B", ArrivalSec: 600, DepartureSec: 600}}
	cost := path.DefaultCostCalculator{TransitReluctance: make([]float64, int(itinerary.Rail)+1)}
	cost.TransitReluctance[itinerary.Bus] = 1
	cost.TransitReluctance[itinerary.Rail] = 2
	slack := path.StaticSlack{BoardSec: 30, BoardByIndex: map[int]int{int(itinerary.Rail): 120}}

	for _, tt := range []struct {
		routeType int
		mode      itinerary.Mode
		slack     int
		ride      int
	}{
		{2, itinerary.Rail, 120, 1200},
		{109, itinerary.Rail, 120, 1200},
		{3, itinerary.Bus, 30, 600},
	} {
		ts, err := newSchedule(gtfs.Trip{TripID: "T"}, gtfs.Route{RouteType: tt.routeType}, sts, gtfs.NewStopRegistry())
		if err != nil {
			t.Fatalf("newSchedule: %v", err)
		}
		if ts.TransitReluctanceIndex() != int(tt.mode) {
			t.Fatalf("route type %d: index = %d, want %d", tt.routeType, ts.TransitReluctanceIndex(), tt.mode)
		}
		if got := slack.BoardSlack(ts.SlackIndex()); got != tt.slack {
			t.Fatalf("route type %d: board slack = %d, want %d", tt.routeType, got, tt.slack)
		}
		if got := cost.TransitArrivalCost(0, 0, 600, ts, 0); got != tt.ride {
			t.Fatalf("route type %d: ride cost = %d, want %d", tt.routeType, got, tt.ride)
		}
	}
}
