package indicator

import (
	"github.com/quantsim-lab/quantsim/pkg/errors"
)

// RSI is an incremental relative strength index using Wilder's
// smoothing. The first period deltas seed the averages; later deltas
// are blended in with weight 1/period.
type RSI struct {
	period  int
	prev    float64
	hasPrev bool
	deltas  int
	avgGain float64
	avgLoss float64
}

// NewRSI creates a relative strength index calculator.
func NewRSI(period int) (*RSI, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "RSI period must be positive, got %d", period)
	}

	return &RSI{
		period:  period,
		prev:    0,
		hasPrev: false,
		deltas:  0,
		avgGain: 0,
		avgLoss: 0,
	}, nil
}

// Add consumes the next closing price.
func (r *RSI) Add(value float64) {
	if !r.hasPrev {
		r.prev = value
		r.hasPrev = true

		return
	}

	delta := value - r.prev
	r.prev = value

	gain := 0.0
	loss := 0.0

	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.deltas < r.period {
		// Seed phase: plain average of the first period deltas.
		r.avgGain += gain / float64(r.period)
		r.avgLoss += loss / float64(r.period)
	} else {
		period := float64(r.period)
		r.avgGain = (r.avgGain*(period-1) + gain) / period
		r.avgLoss = (r.avgLoss*(period-1) + loss) / period
	}

	r.deltas++
}

// Ready reports whether enough deltas have accumulated.
func (r *RSI) Ready() bool {
	return r.deltas >= r.period
}

// Value returns the current RSI in [0, 100]. RSI is 100 when the
// average loss is zero.
func (r *RSI) Value() (float64, error) {
	if !r.Ready() {
		return 0, errors.Newf(errors.ErrCodeInsufficientData,
			"RSI needs %d price changes, has %d", r.period, r.deltas)
	}

	if r.avgLoss == 0 {
		return 100, nil
	}

	rs := r.avgGain / r.avgLoss

	return 100 - 100/(1+rs), nil
}
