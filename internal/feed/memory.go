package feed

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/pkg/errors"
)

// MemoryFeed serves a preloaded bar slice. It is the feed used by the
// backtest path after data has been materialized, and by tests.
type MemoryFeed struct {
	bars []types.Bar
}

// NewMemoryFeed validates and wraps the given bars. Bars must already
// be chronologically sorted per symbol; a non-increasing timestamp is a
// DataOrder error and a malformed bar fails validation, both fatal.
func NewMemoryFeed(bars []types.Bar) (*MemoryFeed, error) {
	lastPerSymbol := make(map[string]time.Time)

	for i := range bars {
		if err := bars[i].Validate(); err != nil {
			return nil, err
		}

		last, seen := lastPerSymbol[bars[i].Symbol]
		if seen && !bars[i].Time.After(last) {
			return nil, errors.Newf(errors.ErrCodeDataOrder,
				"non-increasing timestamp for %s: %s after %s",
				bars[i].Symbol, bars[i].Time, last)
		}

		lastPerSymbol[bars[i].Symbol] = bars[i].Time
	}

	return &MemoryFeed{bars: bars}, nil
}

// Bars implements Feed.
func (f *MemoryFeed) Bars(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		for _, bar := range f.bars {
			if !inRange(bar.Time, start, end) {
				continue
			}

			if !yield(bar, nil) {
				return
			}
		}
	}
}

// Count implements Feed.
func (f *MemoryFeed) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	count := 0

	for _, bar := range f.bars {
		if inRange(bar.Time, start, end) {
			count++
		}
	}

	return count, nil
}

// Last implements Feed.
func (f *MemoryFeed) Last(symbol string) (types.Bar, error) {
	for i := len(f.bars) - 1; i >= 0; i-- {
		if f.bars[i].Symbol == symbol {
			return f.bars[i], nil
		}
	}

	return types.Bar{}, errors.Newf(errors.ErrCodeDataNotFound, "no bars for symbol %s", symbol)
}

// Close implements Feed.
func (f *MemoryFeed) Close() error {
	return nil
}
