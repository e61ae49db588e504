package types

import (
	"time"

	"github.com/quantsim-lab/quantsim/pkg/errors"
)

// Bar is a single OHLCV sample for a symbol at a point in time.
// Bars are immutable once produced by a feed.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Time   time.Time `yaml:"time" json:"time" csv:"time" validate:"required"`
	Open   float64   `yaml:"open" json:"open" csv:"open" validate:"gt=0"`
	High   float64   `yaml:"high" json:"high" csv:"high" validate:"gt=0"`
	Low    float64   `yaml:"low" json:"low" csv:"low" validate:"gt=0"`
	Close  float64   `yaml:"close" json:"close" csv:"close" validate:"gt=0"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume" validate:"gte=0"`
}

// Validate checks the OHLC invariant: low <= open, close <= high.
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return errors.New(errors.ErrCodeMalformedBar, "bar symbol is empty")
	}

	if b.Time.IsZero() {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar for %s has zero timestamp", b.Symbol)
	}

	if b.Low <= 0 || b.High <= 0 {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar for %s at %s has non-positive prices", b.Symbol, b.Time)
	}

	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return errors.Newf(errors.ErrCodeMalformedBar,
			"bar for %s at %s violates low <= open,close <= high (o=%f h=%f l=%f c=%f)",
			b.Symbol, b.Time, b.Open, b.High, b.Low, b.Close)
	}

	return nil
}
