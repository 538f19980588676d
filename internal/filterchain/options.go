package filterchain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"itinerary-shaper/internal/itinerary"
)

var ErrInvalidOptions = errors.New("invalid filter chain options")

// CostLinearFunction computes constant + coefficient * cost.
type CostLinearFunction struct {
	Constant    int     `yaml:"constant" json:"constant" validate:"gte=0"`
	Coefficient float64 `yaml:"coefficient" json:"coefficient" validate:"gte=0"`
}

func (f CostLinearFunction) Calculate(cost int) int {
	return f.Constant + int(math.Round(f.Coefficient*float64(cost)))
}

func (f CostLinearFunction) String() string {
	return fmt.Sprintf("%ds + %.2f t", f.Constant, f.Coefficient)
}

type TransitGeneralizedCostLimit struct {
	CostLimitFunction   CostLinearFunction `yaml:"costLimitFunction" json:"costLimitFunction"`
	IntervalRelaxFactor float64            `yaml:"intervalRelaxFactor" json:"intervalRelaxFactor" validate:"gte=0"`
}

// GroupBySimilarity configures one group-by-distance stage.
type GroupBySimilarity struct {
	GroupByP                        float64 `yaml:"groupByP" json:"groupByP" validate:"gt=0,lte=1"`
	MaxNumOfItinerariesPerGroup     int     `yaml:"maxNumOfItinerariesPerGroup" json:"maxNumOfItinerariesPerGroup" validate:"gte=1"`
	NestedGroupingByAllSameStations bool    `yaml:"nestedGroupingByAllSameStations" json:"nestedGroupingByAllSameStations"`
	MaxCostOtherLegsFactor          float64 `yaml:"maxCostOtherLegsFactor" json:"maxCostOtherLegsFactor" validate:"gte=0"`
}

// Options is everything the chain builder needs. Build it with named fields
// starting from DefaultOptions; zero values of optional stages disable them.
type Options struct {
	// MaxNumberOfItineraries caps the result. Zero or -1 disables the cap.
	MaxNumberOfItineraries int                   `validate:"gte=-1"`
	CropSection            itinerary.ListSection `validate:"lte=1"`
	SortOrder              itinerary.SortOrder   `validate:"lte=2"`

	GroupBySimilarity                               []GroupBySimilarity `validate:"dive"`
	TransitGeneralizedCostLimit                     *TransitGeneralizedCostLimit
	NonTransitGeneralizedCostLimit                  *CostLinearFunction
	RemoveTransitWithHigherCostThanBestOnStreetOnly *CostLinearFunction
	RemoveTransitIfWalkingIsBetter                  bool
	RemoveWalkAllTheWay                             bool
	SameFirstOrLastTripFilter                       bool
	RemoveItinerariesWithSameRoutesAndStops         bool

	// MinBikeParkingDistance removes transit itineraries with a bike leg no
	// longer than this many meters. Zero disables.
	MinBikeParkingDistance   float64 `validate:"gte=0"`
	BikeRentalDistanceRatio  float64 `validate:"gte=0,lte=1"`
	ParkAndRideDurationRatio float64 `validate:"gte=0,lte=1"`

	// EarliestDepartureTime and SearchWindow enable the search window filters
	// when both are set.
	EarliestDepartureTime          time.Time
	SearchWindow                   time.Duration `validate:"gte=0"`
	ArriveBy                       bool
	FilterDirectFlexBySearchWindow bool

	DebugProfile            DebugProfile `validate:"lte=3"`
	PagingDeduplicationKey  *itinerary.SortKey
	GeneralizedCostMaxLimit *int `validate:"omitempty,gte=0"`
	TransitGroupPriority    bool
	MultiCriteriaGroupMax   bool
	// ConcurrentGroupBy evaluates up to this many group buckets in parallel.
	ConcurrentGroupBy int `validate:"gte=0"`

	AccessibilityScore bool
	Alerts             AlertService             `validate:"-"`
	Emissions          EmissionsService         `validate:"-"`
	Fares              FareService              `validate:"-"`
	RideHailing        RideHailingService       `validate:"-"`
	StopConsolidation  StopConsolidationService `validate:"-"`

	PageCursorSubscriber func(PageCursorInput) `validate:"-"`
	Observer             Observer              `validate:"-"`
}

func DefaultOptions() Options {
	return Options{
		MaxNumberOfItineraries:         -1,
		CropSection:                    itinerary.Tail,
		RemoveTransitIfWalkingIsBetter: true,
		FilterDirectFlexBySearchWindow: true,
	}
}

var validate = validator.New()

func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

func (o Options) hasCap() bool { return o.MaxNumberOfItineraries > 0 }

func (o Options) hasSearchWindow() bool {
	return !o.EarliestDepartureTime.IsZero() && o.SearchWindow > 0
}
