package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"itinerary-shaper/internal/filterchain"
	"itinerary-shaper/internal/itinerary"
)

// Filters is the YAML form of the filter chain preferences.
type Filters struct {
	MaxNumberOfItineraries int           `yaml:"maxNumberOfItineraries" validate:"gte=-1"`
	CropSection            string        `yaml:"cropSection" validate:"omitempty,oneof=tail head"`
	SortOrder              string        `yaml:"sortOrder" validate:"omitempty,oneof=street-and-arrival-time street-and-departure-time generalized-cost"`
	Debug                  string        `yaml:"debug" validate:"omitempty,oneof=off list-all limit-to-search-window limit-to-num-of-itineraries"`
	SearchWindow           time.Duration `yaml:"searchWindow" validate:"gte=0"`

	GroupBySimilarity                               []filterchain.GroupBySimilarity          `yaml:"groupBySimilarity" validate:"dive"`
	TransitGeneralizedCostLimit                     *filterchain.TransitGeneralizedCostLimit `yaml:"transitGeneralizedCostLimit"`
	NonTransitGeneralizedCostLimit                  *filterchain.CostLinearFunction          `yaml:"nonTransitGeneralizedCostLimit"`
	RemoveTransitWithHigherCostThanBestOnStreetOnly *filterchain.CostLinearFunction          `yaml:"removeTransitWithHigherCostThanBestOnStreetOnly"`
	RemoveTransitIfWalkingIsBetter                  *bool                                    `yaml:"removeTransitIfWalkingIsBetter"`
	RemoveWalkAllTheWay                             bool                                     `yaml:"removeWalkAllTheWay"`
	SameFirstOrLastTripFilter                       bool                                     `yaml:"sameFirstOrLastTripFilter"`
	RemoveItinerariesWithSameRoutesAndStops         bool                                     `yaml:"removeItinerariesWithSameRoutesAndStops"`

	MinBikeParkingDistance         float64 `yaml:"minBikeParkingDistance" validate:"gte=0"`
	BikeRentalDistanceRatio        float64 `yaml:"bikeRentalDistanceRatio" validate:"gte=0,lte=1"`
	ParkAndRideDurationRatio       float64 `yaml:"parkAndRideDurationRatio" validate:"gte=0,lte=1"`
	FilterDirectFlexBySearchWindow *bool   `yaml:"filterDirectFlexBySearchWindow"`
	TransitGroupPriority           bool    `yaml:"transitGroupPriority"`
	MultiCriteriaGroupMax          bool    `yaml:"multiCriteriaGroupMax"`
	ConcurrentGroupBy              int     `yaml:"concurrentGroupBy" validate:"gte=0"`

	AccessibilityScore bool               `yaml:"accessibilityScore"`
	Fare               *FareConfig        `yaml:"fare"`
	Emissions          map[string]float64 `yaml:"emissions" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
	StopNames          map[string]string  `yaml:"stopNames"`
}

type FareConfig struct {
	Currency         string `yaml:"currency" validate:"required,len=3"`
	CentsPerBoarding int    `yaml:"centsPerBoarding" validate:"gte=0"`
}

var validate = validator.New()

// LoadFilters reads and validates a filter preferences file.
func LoadFilters(path string) (Filters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Filters{}, err
	}
	return ParseFilters(data)
}

func ParseFilters(data []byte) (Filters, error) {
	var f Filters
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Filters{}, fmt.Errorf("parse filters: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return Filters{}, fmt.Errorf("validate filters: %w", err)
	}
	return f, nil
}

// Options converts the preferences into chain options. Request specific
// fields (search window start, paging state, services) are left to the caller.
func (f Filters) Options() (filterchain.Options, error) {
	opts := filterchain.DefaultOptions()
	if f.MaxNumberOfItineraries != 0 {
		opts.MaxNumberOfItineraries = f.MaxNumberOfItineraries
	}
	var err error
	if opts.CropSection, err = itinerary.ParseListSection(f.CropSection); err != nil {
		return opts, err
	}
	if f.SortOrder != "" {
		if opts.SortOrder, err = itinerary.ParseSortOrder(f.SortOrder); err != nil {
			return opts, err
		}
	}
	if opts.DebugProfile, err = filterchain.ParseDebugProfile(f.Debug); err != nil {
		return opts, err
	}
	opts.SearchWindow = f.SearchWindow

	opts.GroupBySimilarity = f.GroupBySimilarity
	opts.TransitGeneralizedCostLimit = f.TransitGeneralizedCostLimit
	opts.NonTransitGeneralizedCostLimit = f.NonTransitGeneralizedCostLimit
	opts.RemoveTransitWithHigherCostThanBestOnStreetOnly = f.RemoveTransitWithHigherCostThanBestOnStreetOnly
	if f.RemoveTransitIfWalkingIsBetter != nil {
		opts.RemoveTransitIfWalkingIsBetter = *f.RemoveTransitIfWalkingIsBetter
	}
	opts.RemoveWalkAllTheWay = f.RemoveWalkAllTheWay
	opts.SameFirstOrLastTripFilter = f.SameFirstOrLastTripFilter
	opts.RemoveItinerariesWithSameRoutesAndStops = f.RemoveItinerariesWithSameRoutesAndStops
	opts.MinBikeParkingDistance = f.MinBikeParkingDistance
	opts.BikeRentalDistanceRatio = f.BikeRentalDistanceRatio
	opts.ParkAndRideDurationRatio = f.ParkAndRideDurationRatio
	if f.FilterDirectFlexBySearchWindow != nil {
		opts.FilterDirectFlexBySearchWindow = *f.FilterDirectFlexBySearchWindow
	}
	opts.TransitGroupPriority = f.TransitGroupPriority
	opts.MultiCriteriaGroupMax = f.MultiCriteriaGroupMax
	opts.ConcurrentGroupBy = f.ConcurrentGroupBy

	opts.AccessibilityScore = f.AccessibilityScore
	if f.Fare != nil {
		opts.Fares = filterchain.FlatFare{Currency: f.Fare.Currency, CentsPerBoarding: f.Fare.CentsPerBoarding}
	}
	if len(f.Emissions) > 0 {
		em := make(filterchain.ModeEmissions, len(f.Emissions))
		for name, grams := range f.Emissions {
			m, err := itinerary.ParseMode(name)
			if err != nil {
				return opts, fmt.Errorf("emissions: %w", err)
			}
			em[m] = grams
		}
		opts.Emissions = em
	}
	if len(f.StopNames) > 0 {
		opts.StopConsolidation = filterchain.StopNames(f.StopNames)
	}
	return opts, opts.Validate()
}

// WatchFilters calls fn with the freshly loaded preferences every time the file
// changes, until ctx is done. Invalid files are logged and skipped.
func WatchFilters(ctx context.Context, path string, fn func(Filters)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace files rather than writing in place.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	go func() {
		defer w.Close()

		const debounce = 100 * time.Millisecond
		var pending time.Time
		ticker := time.NewTicker(debounce)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					pending = time.Now()
				}
			case <-ticker.C:
				if pending.IsZero() || time.Since(pending) < debounce {
					continue
				}
				pending = time.Time{}
				f, err := LoadFilters(path)
				if err != nil {
					log.Printf("filters reload skipped: %v", err)
					continue
				}
				log.Printf("filters reloaded from %s", path)
				fn(f)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("filters watch error: %v", err)
			}
		}
	}()
	return nil
}
