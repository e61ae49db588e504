// Package feed supplies ordered OHLCV bars to the runner. Feeds are
// pure data sources: they deduplicate nothing and decide nothing, but
// they do fail fast when handed a non-increasing timestamp sequence,
// because every downstream guarantee (determinism, no look-ahead)
// rests on chronological order.
package feed

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/internal/types"
)

// Feed is an ordered bar source.
type Feed interface {
	// Bars yields bars in chronological order, optionally bounded by
	// start and end (inclusive).
	Bars(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool)
	// Count returns the number of bars the same bounds would yield.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Last returns the most recent bar for a symbol.
	Last(symbol string) (types.Bar, error)
	// Close releases any resources held by the feed.
	Close() error
}

func inRange(t time.Time, start optional.Option[time.Time], end optional.Option[time.Time]) bool {
	if start.IsSome() && t.Before(start.Unwrap()) {
		return false
	}

	if end.IsSome() && t.After(end.Unwrap()) {
		return false
	}

	return true
}
