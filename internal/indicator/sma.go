// Package indicator provides incremental technical indicator
// calculators. Each calculator consumes one value per bar in O(1) and
// reports readiness once its warmup window has filled, so strategies
// never reach ahead of the bars they have been shown.
package indicator

import (
	"github.com/quantsim-lab/quantsim/pkg/errors"
)

// SMA is an incremental simple moving average over a fixed period.
type SMA struct {
	period int
	window []float64
	head   int
	count  int
	sum    float64
}

// NewSMA creates a simple moving average calculator.
func NewSMA(period int) (*SMA, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "SMA period must be positive, got %d", period)
	}

	return &SMA{
		period: period,
		window: make([]float64, period),
		head:   0,
		count:  0,
		sum:    0,
	}, nil
}

// Add consumes the next value.
func (s *SMA) Add(value float64) {
	if s.count == s.period {
		s.sum -= s.window[s.head]
	} else {
		s.count++
	}

	s.window[s.head] = value
	s.sum += value
	s.head = (s.head + 1) % s.period
}

// Ready reports whether the warmup window has filled.
func (s *SMA) Ready() bool {
	return s.count == s.period
}

// Value returns the current average. It errors until Ready.
func (s *SMA) Value() (float64, error) {
	if !s.Ready() {
		return 0, errors.Newf(errors.ErrCodeInsufficientData,
			"SMA needs %d values, has %d", s.period, s.count)
	}

	return s.sum / float64(s.period), nil
}

// Period returns the configured window length.
func (s *SMA) Period() int {
	return s.period
}
