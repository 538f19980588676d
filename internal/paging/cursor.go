// Package paging turns filter chain results into opaque page tokens and back.
package paging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"itinerary-shaper/internal/filterchain"
	"itinerary-shaper/internal/itinerary"
)

var ErrInvalidCursor = errors.New("invalid page cursor")

const tokenVersion = 1

type PageType uint8

const (
	NextPage PageType = iota
	PreviousPage
)

func (t PageType) String() string {
	if t == PreviousPage {
		return "previous"
	}
	return "next"
}

// PageCursor describes the search window and deduplication state of the page
// it points to.
type PageCursor struct {
	Type                    PageType            `msgpack:"t"`
	OriginalSortOrder       itinerary.SortOrder `msgpack:"o"`
	EarliestDepartureTime   time.Time           `msgpack:"edt"`
	LatestArrivalTime       *time.Time          `msgpack:"lat,omitempty"`
	SearchWindow            time.Duration       `msgpack:"sw"`
	PageCut                 *itinerary.SortKey  `msgpack:"cut,omitempty"`
	GeneralizedCostMaxLimit *int                `msgpack:"gc,omitempty"`
}

type envelope struct {
	Version int        `msgpack:"v"`
	Cursor  PageCursor `msgpack:"c"`
}

// CropSection is the side of the list the next chain run crops: a next page
// crops its tail, a previous page its head.
func (c PageCursor) CropSection() itinerary.ListSection {
	if c.Type == PreviousPage {
		return itinerary.Head
	}
	return itinerary.Tail
}

// Encode returns a URL safe token.
func (c PageCursor) Encode() (string, error) {
	b, err := msgpack.Marshal(envelope{Version: tokenVersion, Cursor: c})
	if err != nil {
		return "", fmt.Errorf("encode page cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func Decode(token string) (PageCursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return PageCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return PageCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if env.Version != tokenVersion {
		return PageCursor{}, fmt.Errorf("%w: version %d", ErrInvalidCursor, env.Version)
	}
	if env.Cursor.SearchWindow < 0 || env.Cursor.Type > PreviousPage {
		return PageCursor{}, fmt.Errorf("%w: bad window or type", ErrInvalidCursor)
	}
	return env.Cursor, nil
}

// Apply points the filter chain options at the page.
func (c PageCursor) Apply(opts *filterchain.Options) {
	opts.SortOrder = c.OriginalSortOrder
	opts.CropSection = c.CropSection()
	opts.EarliestDepartureTime = c.EarliestDepartureTime
	opts.SearchWindow = c.SearchWindow
	opts.PagingDeduplicationKey = c.PageCut
	opts.GeneralizedCostMaxLimit = c.GeneralizedCostMaxLimit
}

func (c PageCursor) String() string {
	s := fmt.Sprintf("%s page %s+%s", c.Type, c.EarliestDepartureTime.Format(time.RFC3339), c.SearchWindow)
	if c.PageCut != nil {
		s += " cut " + c.PageCut.EndTime.Format("15:04")
	}
	return s
}
