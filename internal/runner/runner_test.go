package runner

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/internal/feed"
	"github.com/quantsim-lab/quantsim/internal/logger"
	"github.com/quantsim-lab/quantsim/internal/strategy"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted buys a fixed quantity on one bar index and sells it on
// another, so runs have a predictable trade history.
type scripted struct {
	buyOn   int
	sellOn  int
	failOn  int
	barSeen int
}

func (s *scripted) ID() string { return "scripted" }

func (s *scripted) OnStart(universe []string, params map[string]float64) error {
	s.barSeen = 0

	return nil
}

func (s *scripted) OnBar(bar types.Bar, ctx strategy.Context) ([]types.Order, error) {
	s.barSeen++

	if s.failOn > 0 && s.barSeen == s.failOn {
		return nil, errors.New(errors.ErrCodeUnknown, "scripted failure")
	}

	order := func(side types.Side) []types.Order {
		return []types.Order{{
			ID:         uuid.NewString(),
			Symbol:     bar.Symbol,
			Side:       side,
			Type:       types.OrderTypeMarket,
			Quantity:   10,
			LimitPrice: optional.None[float64](),
			CreatedAt:  bar.Time,
			StrategyID: "scripted",
			Reason:     types.Reason{Reason: "scripted", Message: "test"},
		}}
	}

	switch s.barSeen {
	case s.buyOn:
		return order(types.SideBuy), nil
	case s.sellOn:
		return order(types.SideSell), nil
	}

	return nil, nil
}

func (s *scripted) OnEnd(ctx strategy.Context) error { return nil }

func setupScripted(buyOn, sellOn, failOn int) {
	strategy.Register("scripted", func() strategy.Strategy {
		return &scripted{buyOn: buyOn, sellOn: sellOn, failOn: failOn}
	})
}

func barsAscending(n int, step time.Duration) []types.Bar {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	bars := make([]types.Bar, n)

	for i := range bars {
		price := 100.0 + float64(i)
		bars[i] = types.Bar{
			Symbol: "AAPL",
			Time:   base.Add(time.Duration(i) * step),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		}
	}

	return bars
}

func config() types.RunConfig {
	return types.RunConfig{
		StrategyID:     "scripted",
		Symbol:         "AAPL",
		InitialCapital: 10000,
		Mode:           types.RunModeBacktest,
	}
}

func TestBacktestRunCompletes(t *testing.T) {
	setupScripted(2, 5, 0)

	f, err := feed.NewMemoryFeed(barsAscending(10, time.Minute))
	require.NoError(t, err)

	r, err := NewRunner(config(), f, logger.NewNopLogger())
	require.NoError(t, err)
	defer r.Close()

	events := r.Events()

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.RunStatusCompleted, result.Status)
	assert.Equal(t, types.RunStatusCompleted, r.Status())
	require.Len(t, result.Trades, 2)
	assert.Equal(t, types.SideBuy, result.Trades[0].Side)
	assert.Equal(t, types.SideSell, result.Trades[1].Side)
	assert.Len(t, result.EquityCurve, 10)
	assert.Empty(t, result.Rejections)

	// Bought at 101, sold at 104, no fees.
	assert.InDelta(t, 10030, result.FinalCapital, 1e-9)
	assert.InDelta(t, 0.3, result.Metrics.TotalReturn, 1e-9)
	assert.Equal(t, 2, result.Metrics.TotalTrades)

	// Closing the runner closes the bus so the drain terminates.
	require.NoError(t, r.Close())

	var got []types.EventType
	for event := range events {
		got = append(got, event.Type)
	}

	require.GreaterOrEqual(t, len(got), 12)
	assert.Equal(t, types.EventStarted, got[0])
	assert.Equal(t, types.EventCompleted, got[len(got)-1])
}

func TestBacktestIsDeterministic(t *testing.T) {
	setupScripted(2, 5, 0)

	run := func() types.RunResult {
		f, err := feed.NewMemoryFeed(barsAscending(10, time.Minute))
		require.NoError(t, err)

		cfg := config()
		cfg.CommissionRate = 0.001
		cfg.SlippageBps = 5

		r, err := NewRunner(cfg, f, logger.NewNopLogger())
		require.NoError(t, err)
		defer r.Close()

		result, err := r.Run(context.Background())
		require.NoError(t, err)

		return result
	}

	first := run()
	second := run()

	assert.Equal(t, first.FinalCapital, second.FinalCapital)
	assert.Equal(t, first.Metrics, second.Metrics)
	require.Equal(t, len(first.Trades), len(second.Trades))

	for i := range first.Trades {
		assert.Equal(t, first.Trades[i].Price, second.Trades[i].Price)
		assert.Equal(t, first.Trades[i].Commission, second.Trades[i].Commission)
		assert.True(t, first.Trades[i].ExecutedAt.Equal(second.Trades[i].ExecutedAt))
	}

	require.Equal(t, len(first.EquityCurve), len(second.EquityCurve))

	for i := range first.EquityCurve {
		assert.Equal(t, first.EquityCurve[i].Equity, second.EquityCurve[i].Equity)
	}
}

func TestStrategyErrorFailsFastWithPartialResults(t *testing.T) {
	setupScripted(2, 0, 5)

	f, err := feed.NewMemoryFeed(barsAscending(10, time.Minute))
	require.NoError(t, err)

	r, err := NewRunner(config(), f, logger.NewNopLogger())
	require.NoError(t, err)
	defer r.Close()

	result, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStrategyRuntime))

	assert.Equal(t, types.RunStatusFailed, result.Status)
	assert.Equal(t, types.RunStatusFailed, r.Status())
	assert.NotEmpty(t, result.Error)

	// Four bars completed before the failing fifth.
	assert.Len(t, result.EquityCurve, 4)
	assert.Len(t, result.Trades, 1)

	// Failed runs skip the analytics pass.
	assert.Equal(t, types.PerformanceMetrics{}, result.Metrics)
}

func TestRunnerIsSingleUse(t *testing.T) {
	setupScripted(0, 0, 0)

	f, err := feed.NewMemoryFeed(barsAscending(3, time.Minute))
	require.NoError(t, err)

	r, err := NewRunner(config(), f, logger.NewNopLogger())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Run(context.Background())
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRunNotIdle))
}

func TestNewRunnerRejectsInvalidConfig(t *testing.T) {
	f, err := feed.NewMemoryFeed(barsAscending(3, time.Minute))
	require.NoError(t, err)

	cfg := config()
	cfg.InitialCapital = -1

	_, err = NewRunner(cfg, f, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidCapital))
}

func TestNewRunnerRejectsUnknownStrategy(t *testing.T) {
	f, err := feed.NewMemoryFeed(barsAscending(3, time.Minute))
	require.NoError(t, err)

	cfg := config()
	cfg.StrategyID = "does_not_exist"

	_, err = NewRunner(cfg, f, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownStrategy))
}

func TestNewRunnerRejectsIncompatibleVersion(t *testing.T) {
	setupScripted(0, 0, 0)

	f, err := feed.NewMemoryFeed(barsAscending(3, time.Minute))
	require.NoError(t, err)

	cfg := config()
	cfg.EngineVersion = ">=99.0.0"

	_, err = NewRunner(cfg, f, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIncompatibleVersion))
}

func TestEmptyRangeFailsWithInsufficientData(t *testing.T) {
	setupScripted(0, 0, 0)

	bars := barsAscending(3, time.Minute)

	f, err := feed.NewMemoryFeed(bars)
	require.NoError(t, err)

	cfg := config()
	cfg.StartTime = optional.Some(bars[2].Time.Add(time.Hour))

	r, err := NewRunner(cfg, f, logger.NewNopLogger())
	require.NoError(t, err)
	defer r.Close()

	result, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInsufficientData))
	assert.Equal(t, types.RunStatusFailed, result.Status)
}

func TestPaperModeProcessesAllBars(t *testing.T) {
	setupScripted(1, 3, 0)

	f, err := feed.NewMemoryFeed(barsAscending(5, 5*time.Millisecond))
	require.NoError(t, err)

	cfg := config()
	cfg.Mode = types.RunModePaper

	r, err := NewRunner(cfg, f, logger.NewNopLogger())
	require.NoError(t, err)
	defer r.Close()

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.RunStatusCompleted, result.Status)
	assert.Len(t, result.EquityCurve, 5)
	assert.Len(t, result.Trades, 2)
}

func TestPaperModeCancellationCompletesPartially(t *testing.T) {
	setupScripted(0, 0, 0)

	f, err := feed.NewMemoryFeed(barsAscending(100, 50*time.Millisecond))
	require.NoError(t, err)

	cfg := config()
	cfg.Mode = types.RunModePaper

	r, err := NewRunner(cfg, f, logger.NewNopLogger())
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	result, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.RunStatusCompleted, result.Status)
	assert.Greater(t, len(result.EquityCurve), 0)
	assert.Less(t, len(result.EquityCurve), 100)
}

func TestPaperModeCancellationStopsBarPump(t *testing.T) {
	setupScripted(0, 0, 0)

	// Far more bars than the pump buffers hold, so the pump is still
	// mid-stream when the context fires.
	f, err := feed.NewMemoryFeed(barsAscending(2000, 50*time.Millisecond))
	require.NoError(t, err)

	cfg := config()
	cfg.Mode = types.RunModePaper

	r, err := NewRunner(cfg, f, logger.NewNopLogger())
	require.NoError(t, err)
	defer r.Close()

	before := runtime.NumGoroutine()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = r.Run(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond, "bar pump goroutine still running after cancellation")
}

func TestEventBusDoesNotBlockSlowSubscribers(t *testing.T) {
	bus := NewEventBus()
	_ = bus.Subscribe()

	// Publish far more events than the subscriber buffer holds.
	for i := 0; i < subscriberBuffer*2; i++ {
		bus.Publish(types.Event{Type: types.EventBarProcessed, Processed: i})
	}

	bus.Close()
}

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()
	first := bus.Subscribe()
	second := bus.Subscribe()

	bus.Publish(types.Event{Type: types.EventStarted, RunID: "run-1"})
	bus.Close()

	event, ok := <-first
	require.True(t, ok)
	assert.Equal(t, types.EventStarted, event.Type)

	event, ok = <-second
	require.True(t, ok)
	assert.Equal(t, "run-1", event.RunID)
}
