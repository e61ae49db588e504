// Package recorder is the append-only audit log of a run. Every bar,
// order, fill, rejection, equity snapshot, and run error lands in an
// in-memory DuckDB so the full history can be queried after the run
// and exported to Parquet.
package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/quantsim-lab/quantsim/internal/logger"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/pkg/errors"
	"go.uber.org/zap"
)

var tables = map[string]string{
	"bars": `CREATE TABLE IF NOT EXISTS bars (
		run_id VARCHAR, symbol VARCHAR, time TIMESTAMP,
		open DOUBLE, high DOUBLE, low DOUBLE, close DOUBLE, volume DOUBLE
	)`,
	"orders": `CREATE TABLE IF NOT EXISTS orders (
		run_id VARCHAR, order_id VARCHAR, symbol VARCHAR, side VARCHAR,
		order_type VARCHAR, quantity DOUBLE, limit_price DOUBLE,
		created_at TIMESTAMP, strategy_id VARCHAR, reason VARCHAR, message VARCHAR
	)`,
	"fills": `CREATE TABLE IF NOT EXISTS fills (
		run_id VARCHAR, seq BIGINT, order_id VARCHAR, symbol VARCHAR, side VARCHAR,
		quantity DOUBLE, price DOUBLE, commission DOUBLE, slippage DOUBLE,
		executed_at TIMESTAMP, strategy_id VARCHAR, reason VARCHAR
	)`,
	"rejections": `CREATE TABLE IF NOT EXISTS rejections (
		run_id VARCHAR, seq BIGINT, order_id VARCHAR, symbol VARCHAR, side VARCHAR,
		quantity DOUBLE, reason VARCHAR, message VARCHAR, rejected_at TIMESTAMP
	)`,
	"snapshots": `CREATE TABLE IF NOT EXISTS snapshots (
		run_id VARCHAR, seq BIGINT, time TIMESTAMP, cash DOUBLE,
		position_value DOUBLE, equity DOUBLE
	)`,
	"run_errors": `CREATE TABLE IF NOT EXISTS run_errors (
		run_id VARCHAR, time TIMESTAMP, code INTEGER, message VARCHAR
	)`,
}

// Recorder writes one run's history. It is owned by the runner and is
// only touched from the single processing path.
type Recorder struct {
	db    *sql.DB
	runID string
	log   *logger.Logger
	sq    squirrel.StatementBuilderType

	// seq totally orders appended rows. Fills from one bar share a
	// timestamp, and SQL promises nothing about tied sort keys; the
	// accessors tiebreak on seq to keep emission order reproducible.
	seq int64
}

func (r *Recorder) nextSeq() int64 {
	r.seq++

	return r.seq
}

// NewRecorder opens an in-memory DuckDB and creates the audit tables.
func NewRecorder(runID string, log *logger.Logger) (*Recorder, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRecorderFailed, "failed to open duckdb", err)
	}

	for name, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()

			return nil, errors.Wrapf(errors.ErrCodeRecorderFailed, err, "failed to create table %s", name)
		}
	}

	return &Recorder{
		db:    db,
		runID: runID,
		log:   log,
		sq:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// RunID returns the run this recorder belongs to.
func (r *Recorder) RunID() string {
	return r.runID
}

// RecordBar appends a processed bar.
func (r *Recorder) RecordBar(bar types.Bar) error {
	_, err := r.sq.
		Insert("bars").
		Columns("run_id", "symbol", "time", "open", "high", "low", "close", "volume").
		Values(r.runID, bar.Symbol, bar.Time, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume).
		RunWith(r.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeRecorderFailed, "failed to record bar", err)
	}

	return nil
}

// RecordOrder appends a submitted order.
func (r *Recorder) RecordOrder(order types.Order) error {
	var limitPrice any
	if order.LimitPrice.IsSome() {
		limitPrice = order.LimitPrice.Unwrap()
	}

	_, err := r.sq.
		Insert("orders").
		Columns("run_id", "order_id", "symbol", "side", "order_type", "quantity",
			"limit_price", "created_at", "strategy_id", "reason", "message").
		Values(r.runID, order.ID, order.Symbol, order.Side, order.Type, order.Quantity,
			limitPrice, order.CreatedAt, order.StrategyID, order.Reason.Reason, order.Reason.Message).
		RunWith(r.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeRecorderFailed, "failed to record order", err)
	}

	return nil
}

// RecordFill appends an executed fill.
func (r *Recorder) RecordFill(fill types.Fill) error {
	_, err := r.sq.
		Insert("fills").
		Columns("run_id", "seq", "order_id", "symbol", "side", "quantity", "price",
			"commission", "slippage", "executed_at", "strategy_id", "reason").
		Values(r.runID, r.nextSeq(), fill.OrderID, fill.Symbol, fill.Side, fill.Quantity, fill.Price,
			fill.Commission, fill.Slippage, fill.ExecutedAt, fill.StrategyID, fill.Reason.Reason).
		RunWith(r.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeRecorderFailed, "failed to record fill", err)
	}

	return nil
}

// RecordRejection appends a rejected order with its reason code.
func (r *Recorder) RecordRejection(rejection types.Rejection) error {
	_, err := r.sq.
		Insert("rejections").
		Columns("run_id", "seq", "order_id", "symbol", "side", "quantity", "reason", "message", "rejected_at").
		Values(r.runID, r.nextSeq(), rejection.Order.ID, rejection.Order.Symbol, rejection.Order.Side,
			rejection.Order.Quantity, rejection.Reason, rejection.Message, rejection.At).
		RunWith(r.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeRecorderFailed, "failed to record rejection", err)
	}

	return nil
}

// RecordSnapshot appends one equity-curve point.
func (r *Recorder) RecordSnapshot(snapshot types.Snapshot) error {
	_, err := r.sq.
		Insert("snapshots").
		Columns("run_id", "seq", "time", "cash", "position_value", "equity").
		Values(r.runID, r.nextSeq(), snapshot.Time, snapshot.Cash, snapshot.PositionValue, snapshot.Equity).
		RunWith(r.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeRecorderFailed, "failed to record snapshot", err)
	}

	return nil
}

// RecordError appends a run error so a failed run stays inspectable.
func (r *Recorder) RecordError(t time.Time, runErr error) error {
	_, err := r.sq.
		Insert("run_errors").
		Columns("run_id", "time", "code", "message").
		Values(r.runID, t, int(errors.GetCode(runErr)), runErr.Error()).
		RunWith(r.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeRecorderFailed, "failed to record run error", err)
	}

	return nil
}

// Trades returns every fill in execution order.
func (r *Recorder) Trades() ([]types.Fill, error) {
	rows, err := r.sq.
		Select("order_id", "symbol", "side", "quantity", "price", "commission",
			"slippage", "executed_at", "strategy_id", "reason").
		From("fills").
		Where(squirrel.Eq{"run_id": r.runID}).
		OrderBy("executed_at ASC", "seq ASC").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query fills", err)
	}
	defer rows.Close()

	var fills []types.Fill

	for rows.Next() {
		var fill types.Fill

		err := rows.Scan(&fill.OrderID, &fill.Symbol, &fill.Side, &fill.Quantity, &fill.Price,
			&fill.Commission, &fill.Slippage, &fill.ExecutedAt, &fill.StrategyID, &fill.Reason.Reason)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan fill", err)
		}

		fills = append(fills, fill)
	}

	return fills, rows.Err()
}

// EquityCurve returns every snapshot in time order.
func (r *Recorder) EquityCurve() ([]types.Snapshot, error) {
	rows, err := r.sq.
		Select("time", "cash", "position_value", "equity").
		From("snapshots").
		Where(squirrel.Eq{"run_id": r.runID}).
		OrderBy("time ASC", "seq ASC").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query snapshots", err)
	}
	defer rows.Close()

	var curve []types.Snapshot

	for rows.Next() {
		var snapshot types.Snapshot

		err := rows.Scan(&snapshot.Time, &snapshot.Cash, &snapshot.PositionValue, &snapshot.Equity)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan snapshot", err)
		}

		curve = append(curve, snapshot)
	}

	return curve, rows.Err()
}

// Rejections returns every rejection in time order.
func (r *Recorder) Rejections() ([]types.Rejection, error) {
	rows, err := r.sq.
		Select("order_id", "symbol", "side", "quantity", "reason", "message", "rejected_at").
		From("rejections").
		Where(squirrel.Eq{"run_id": r.runID}).
		OrderBy("rejected_at ASC", "seq ASC").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query rejections", err)
	}
	defer rows.Close()

	var rejections []types.Rejection

	for rows.Next() {
		var rejection types.Rejection

		err := rows.Scan(&rejection.Order.ID, &rejection.Order.Symbol, &rejection.Order.Side,
			&rejection.Order.Quantity, &rejection.Reason, &rejection.Message, &rejection.At)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan rejection", err)
		}

		rejections = append(rejections, rejection)
	}

	return rejections, rows.Err()
}

// BarCount returns the number of bars recorded so far.
func (r *Recorder) BarCount() (int, error) {
	var count int

	err := r.sq.
		Select("COUNT(*)").
		From("bars").
		Where(squirrel.Eq{"run_id": r.runID}).
		RunWith(r.db).
		QueryRow().
		Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Export writes every audit table to dir as Parquet, one file per
// table.
func (r *Recorder) Export(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeRecorderFailed, "failed to create export directory", err)
	}

	for name := range tables {
		path := filepath.Join(dir, name+".parquet")

		// COPY takes no placeholders for the target path.
		query := fmt.Sprintf(`COPY (SELECT * FROM %s WHERE run_id = '%s') TO '%s' (FORMAT PARQUET)`,
			name, r.runID, path)

		if _, err := r.db.Exec(query); err != nil {
			return errors.Wrapf(errors.ErrCodeRecorderFailed, err, "failed to export %s", name)
		}

		r.log.Debug("Exported table", zap.String("table", name), zap.String("path", path))
	}

	return nil
}

// Close releases the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
