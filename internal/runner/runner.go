// Package runner drives a simulation run end to end: it owns the clock
// and the recorder, feeds bars to the strategy, routes orders through
// the broker, and assembles the final result. Backtest and paper runs
// share one processing path; only the clock implementation differs.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantsim-lab/quantsim/internal/analytics"
	"github.com/quantsim-lab/quantsim/internal/broker"
	"github.com/quantsim-lab/quantsim/internal/clock"
	"github.com/quantsim-lab/quantsim/internal/execution"
	"github.com/quantsim-lab/quantsim/internal/feed"
	"github.com/quantsim-lab/quantsim/internal/logger"
	"github.com/quantsim-lab/quantsim/internal/portfolio"
	"github.com/quantsim-lab/quantsim/internal/recorder"
	"github.com/quantsim-lab/quantsim/internal/strategy"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/internal/version"
	"github.com/quantsim-lab/quantsim/pkg/errors"
	"go.uber.org/zap"
)

const paperBarBuffer = 256

// Runner executes one run. It is single-use: construct, Run, inspect,
// Close.
type Runner struct {
	cfg  types.RunConfig
	feed feed.Feed
	log  *logger.Logger

	events *EventBus

	mu     sync.Mutex
	status types.RunStatus

	runID     string
	strategy  strategy.Strategy
	portfolio *portfolio.Portfolio
	broker    *broker.Broker
	recorder  *recorder.Recorder
	wallClock *clock.WallClock
}

// NewRunner validates the configuration and resolves the strategy
// before any run state is created.
func NewRunner(cfg types.RunConfig, f feed.Feed, log *logger.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := version.CheckCompatibility(cfg.EngineVersion); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIncompatibleVersion, "engine version check failed", err)
	}

	strat, err := strategy.Create(cfg.StrategyID)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:      cfg,
		feed:     f,
		log:      log,
		events:   NewEventBus(),
		status:   types.RunStatusIdle,
		runID:    uuid.NewString(),
		strategy: strat,
	}, nil
}

// RunID returns the identifier assigned to this run.
func (r *Runner) RunID() string {
	return r.runID
}

// Status returns the current lifecycle state.
func (r *Runner) Status() types.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

// Events returns a subscription to the run's lifecycle events.
func (r *Runner) Events() <-chan types.Event {
	return r.events.Subscribe()
}

// Recorder exposes the audit log, available during and after the run.
func (r *Runner) Recorder() *recorder.Recorder {
	return r.recorder
}

// Pause suspends bar delivery in a paper run. No-op for backtests.
func (r *Runner) Pause() {
	if r.wallClock != nil {
		r.wallClock.Pause()
	}
}

// Resume lifts a Pause.
func (r *Runner) Resume() {
	if r.wallClock != nil {
		r.wallClock.Resume()
	}
}

// Close releases the recorder and the event bus.
func (r *Runner) Close() error {
	r.events.Close()

	if r.recorder != nil {
		return r.recorder.Close()
	}

	return nil
}

func (r *Runner) transition(to types.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if to == types.RunStatusRunning && r.status != types.RunStatusIdle {
		return errors.Newf(errors.ErrCodeRunNotIdle, "run already %s", r.status)
	}

	r.status = to

	return nil
}

// Run executes the simulation to a terminal state. A strategy or
// broker error fails the run fast; the returned result then carries
// the partial history recorded up to the failing bar.
func (r *Runner) Run(ctx context.Context) (types.RunResult, error) {
	if err := r.transition(types.RunStatusRunning); err != nil {
		return types.RunResult{}, err
	}

	rec, err := recorder.NewRecorder(r.runID, r.log)
	if err != nil {
		return r.fail(time.Time{}, err)
	}

	r.recorder = rec
	r.portfolio = portfolio.NewPortfolio(r.cfg.InitialCapital)
	r.broker = broker.NewBroker(r.portfolio, r.slippagePolicy(), r.feePolicy(), r.log)

	if err := r.strategy.OnStart([]string{r.cfg.Symbol}, r.cfg.StrategyParameters); err != nil {
		return r.fail(time.Time{}, errors.Wrap(errors.ErrCodeStrategyInit, "strategy failed to start", err))
	}

	if r.cfg.Mode == types.RunModePaper {
		return r.runPaper(ctx)
	}

	return r.runBacktest(ctx)
}

func (r *Runner) runBacktest(ctx context.Context) (types.RunResult, error) {
	var bars []types.Bar

	var feedErr error

	r.feed.Bars(r.cfg.StartTime, r.cfg.EndTime)(func(bar types.Bar, err error) bool {
		if err != nil {
			feedErr = err

			return false
		}

		bars = append(bars, bar)

		return true
	})

	if feedErr != nil {
		return r.fail(time.Time{}, feedErr)
	}

	if len(bars) == 0 {
		return r.fail(time.Time{}, errors.New(errors.ErrCodeInsufficientData, "no bars in the configured range"))
	}

	times := make([]time.Time, len(bars))
	for i, bar := range bars {
		times[i] = bar.Time
	}

	clk := clock.NewHistoricalClock(times)
	total := len(bars)
	r.publish(types.EventStarted, 0, total, "")

	processed := 0

	for {
		_, ok := clk.Advance(ctx)
		if !ok {
			break
		}

		if err := r.processBar(bars[processed]); err != nil {
			return r.fail(bars[processed].Time, err)
		}

		processed++
		r.publish(types.EventBarProcessed, processed, total, "")
	}

	return r.complete()
}

func (r *Runner) runPaper(ctx context.Context) (types.RunResult, error) {
	r.wallClock = clock.NewWallClock()
	barCh := make(chan types.Bar, paperBarBuffer)

	var pumpErr error

	var pumpErrMu sync.Mutex

	go func() {
		defer r.wallClock.End()
		defer close(barCh)

		r.feed.Bars(r.cfg.StartTime, r.cfg.EndTime)(func(bar types.Bar, err error) bool {
			if err != nil {
				pumpErrMu.Lock()
				pumpErr = err
				pumpErrMu.Unlock()

				return false
			}

			// Cancellation must release the pump even when the consumer
			// is gone and both buffers are full.
			select {
			case barCh <- bar:
			case <-ctx.Done():
				return false
			}

			return r.wallClock.Push(ctx, bar.Time)
		})
	}()

	r.publish(types.EventStarted, 0, 0, "")

	processed := 0

	for {
		_, ok := r.wallClock.Advance(ctx)
		if !ok {
			break
		}

		bar := <-barCh

		if err := r.processBar(bar); err != nil {
			return r.fail(bar.Time, err)
		}

		processed++
		r.publish(types.EventBarProcessed, processed, 0, "")
	}

	pumpErrMu.Lock()
	err := pumpErr
	pumpErrMu.Unlock()

	if err != nil {
		return r.fail(time.Time{}, err)
	}

	// A cancelled paper session completes over what it has processed.
	return r.complete()
}

// processBar is the single processing path both modes share: record
// the bar, mark the portfolio, let the strategy react, route orders,
// snapshot.
func (r *Runner) processBar(bar types.Bar) error {
	if err := r.recorder.RecordBar(bar); err != nil {
		return err
	}

	r.portfolio.MarkPrice(bar.Symbol, bar.Close)

	orders, err := r.strategy.OnBar(bar, r.portfolio)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStrategyRuntime, "strategy failed on bar", err)
	}

	for _, order := range orders {
		if err := r.recorder.RecordOrder(order); err != nil {
			return err
		}

		fill, rejection, err := r.broker.Submit(bar, order)
		if err != nil {
			return err
		}

		if fill.IsSome() {
			if err := r.recorder.RecordFill(fill.Unwrap()); err != nil {
				return err
			}
		}

		if rejection.IsSome() {
			if err := r.recorder.RecordRejection(rejection.Unwrap()); err != nil {
				return err
			}
		}
	}

	snapshot := r.portfolio.Snapshot(bar.Time)

	return r.recorder.RecordSnapshot(snapshot)
}

func (r *Runner) complete() (types.RunResult, error) {
	if err := r.strategy.OnEnd(r.portfolio); err != nil {
		return r.fail(time.Time{}, errors.Wrap(errors.ErrCodeStrategyRuntime, "strategy failed on end", err))
	}

	result, err := r.assemble(types.RunStatusCompleted, "")
	if err != nil {
		return r.fail(time.Time{}, err)
	}

	if err := r.transition(types.RunStatusCompleted); err != nil {
		return types.RunResult{}, err
	}

	r.publish(types.EventCompleted, 0, 0, "")
	r.log.Info("Run completed",
		zap.String("run_id", r.runID),
		zap.Float64("final_capital", result.FinalCapital),
		zap.Int("trades", len(result.Trades)))

	return result, nil
}

// fail records the error, transitions to Failed, and still returns the
// partial history so the run stays inspectable.
func (r *Runner) fail(at time.Time, cause error) (types.RunResult, error) {
	r.log.Error("Run failed", zap.String("run_id", r.runID), zap.Error(cause))

	if r.recorder != nil {
		if at.IsZero() {
			at = time.Now().UTC()
		}

		if recErr := r.recorder.RecordError(at, cause); recErr != nil {
			r.log.Error("Failed to record run error", zap.Error(recErr))
		}
	}

	_ = r.transition(types.RunStatusFailed)
	r.publish(types.EventFailed, 0, 0, cause.Error())

	result, err := r.assemble(types.RunStatusFailed, cause.Error())
	if err != nil {
		r.log.Error("Failed to assemble partial result", zap.Error(err))
	}

	return result, cause
}

// assemble builds the result from the recorder history. Analytics run
// only for completed runs.
func (r *Runner) assemble(status types.RunStatus, errMessage string) (types.RunResult, error) {
	result := types.RunResult{
		RunID:        r.runID,
		Status:       status,
		FinalCapital: r.cfg.InitialCapital,
		Error:        errMessage,
	}

	if r.recorder == nil {
		return result, nil
	}

	trades, err := r.recorder.Trades()
	if err != nil {
		return result, err
	}

	curve, err := r.recorder.EquityCurve()
	if err != nil {
		return result, err
	}

	rejections, err := r.recorder.Rejections()
	if err != nil {
		return result, err
	}

	result.Trades = trades
	result.EquityCurve = curve
	result.Rejections = rejections

	if len(curve) > 0 {
		result.FinalCapital = curve[len(curve)-1].Equity
	}

	if status == types.RunStatusCompleted {
		result.Metrics = analytics.Calculate(trades, curve, r.cfg.InitialCapital)
	}

	return result, nil
}

func (r *Runner) publish(eventType types.EventType, processed, total int, errMessage string) {
	r.events.Publish(types.Event{
		Type:      eventType,
		RunID:     r.runID,
		Time:      time.Now().UTC(),
		Processed: processed,
		Total:     total,
		Error:     errMessage,
	})
}

func (r *Runner) slippagePolicy() execution.SlippagePolicy {
	if r.cfg.SlippageBps > 0 {
		return execution.NewBpsSlippage(r.cfg.SlippageBps)
	}

	return execution.NewNoSlippage()
}

func (r *Runner) feePolicy() execution.FeePolicy {
	if r.cfg.CommissionRate > 0 {
		return execution.NewRateFee(r.cfg.CommissionRate)
	}

	return execution.NewZeroFee()
}
