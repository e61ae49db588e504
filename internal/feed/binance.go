package feed

import (
	"strconv"
	"sync"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/internal/logger"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/pkg/errors"
	"go.uber.org/zap"
)

const binanceFeedBuffer = 256

// KlineStreamer abstracts the Binance kline websocket so tests can
// substitute a fake stream.
type KlineStreamer interface {
	WsKlineServe(symbol string, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (doneC chan struct{}, stopC chan struct{}, err error)
}

type binanceStreamer struct{}

func (binanceStreamer) WsKlineServe(symbol string, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsKlineServe(symbol, interval, handler, errHandler)
}

// BinanceFeed streams finalized klines from Binance as bars for paper
// trading. Only closed candles are emitted, so a bar is never revised
// after the strategy has seen it.
type BinanceFeed struct {
	symbol   string
	interval string
	log      *logger.Logger

	bars     chan types.Bar
	stopC    chan struct{}
	doneC    chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	last  map[string]types.Bar
	seen  int
	ended bool
}

// NewBinanceFeed connects to the Binance kline stream for the given
// symbol and interval (e.g. "1m").
func NewBinanceFeed(symbol, interval string, log *logger.Logger) (*BinanceFeed, error) {
	return newBinanceFeed(symbol, interval, binanceStreamer{}, log)
}

func newBinanceFeed(symbol, interval string, streamer KlineStreamer, log *logger.Logger) (*BinanceFeed, error) {
	f := &BinanceFeed{
		symbol:   symbol,
		interval: interval,
		log:      log,
		bars:     make(chan types.Bar, binanceFeedBuffer),
		last:     make(map[string]types.Bar),
	}

	doneC, stopC, err := streamer.WsKlineServe(symbol, interval, f.handleKline, f.handleError)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to open binance kline stream", err)
	}

	f.doneC = doneC
	f.stopC = stopC

	go func() {
		<-doneC

		f.mu.Lock()
		if !f.ended {
			f.ended = true
			close(f.bars)
		}
		f.mu.Unlock()
	}()

	return f, nil
}

func (f *BinanceFeed) handleKline(event *binance.WsKlineEvent) {
	if event == nil || !event.Kline.IsFinal {
		return
	}

	bar, err := klineToBar(event)
	if err != nil {
		f.log.Error("Dropping malformed kline", zap.Error(err))

		return
	}

	f.mu.Lock()
	prev, seen := f.last[bar.Symbol]
	if seen && !bar.Time.After(prev.Time) {
		// Binance occasionally re-delivers the closing candle.
		f.mu.Unlock()

		return
	}

	f.last[bar.Symbol] = bar
	f.seen++

	if !f.ended {
		select {
		case f.bars <- bar:
		default:
			// Minute klines never outpace a 256-bar buffer unless the
			// consumer is gone; dropping beats blocking the websocket.
			f.log.Warn("Bar buffer full, dropping bar", zap.Time("time", bar.Time))
		}
	}
	f.mu.Unlock()
}

func (f *BinanceFeed) handleError(err error) {
	f.log.Error("Binance kline stream error", zap.Error(err))
}

func klineToBar(event *binance.WsKlineEvent) (types.Bar, error) {
	open, err := strconv.ParseFloat(event.Kline.Open, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeMalformedBar, "failed to parse open", err)
	}

	high, err := strconv.ParseFloat(event.Kline.High, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeMalformedBar, "failed to parse high", err)
	}

	low, err := strconv.ParseFloat(event.Kline.Low, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeMalformedBar, "failed to parse low", err)
	}

	closePrice, err := strconv.ParseFloat(event.Kline.Close, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeMalformedBar, "failed to parse close", err)
	}

	volume, err := strconv.ParseFloat(event.Kline.Volume, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeMalformedBar, "failed to parse volume", err)
	}

	bar := types.Bar{
		Symbol: event.Kline.Symbol,
		Time:   time.UnixMilli(event.Kline.StartTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}

	if err := bar.Validate(); err != nil {
		return types.Bar{}, err
	}

	return bar, nil
}

// Bars implements Feed. The iterator blocks between candles and ends
// when the stream closes. Start/end bounds filter the live sequence.
func (f *BinanceFeed) Bars(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		for bar := range f.bars {
			if !inRange(bar.Time, start, end) {
				continue
			}

			if !yield(bar, nil) {
				return
			}
		}
	}
}

// Count implements Feed. A live stream has no known total; Count
// reports the number of bars seen so far.
func (f *BinanceFeed) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.seen, nil
}

// Last implements Feed.
func (f *BinanceFeed) Last(symbol string) (types.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bar, ok := f.last[symbol]
	if !ok {
		return types.Bar{}, errors.Newf(errors.ErrCodeDataNotFound, "no bars for symbol %s", symbol)
	}

	return bar, nil
}

// Close implements Feed. It stops the stream; queued bars are still
// delivered to a draining iterator, which ends once the websocket
// shuts down.
func (f *BinanceFeed) Close() error {
	f.stopOnce.Do(func() {
		close(f.stopC)
	})

	return nil
}
