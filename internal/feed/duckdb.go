package feed

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/internal/logger"
	"github.com/quantsim-lab/quantsim/internal/types"
	"github.com/quantsim-lab/quantsim/pkg/errors"
	"go.uber.org/zap"
)

// DuckDBFeed reads bars out of a CSV or Parquet file through an
// in-memory DuckDB view. DuckDB does the parsing and the ordering;
// the feed still verifies per-symbol monotonicity while scanning.
type DuckDBFeed struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewDuckDBFeed opens an in-memory DuckDB and creates a market_data
// view over the given file. Supported extensions: .csv, .parquet.
func NewDuckDBFeed(path string, log *logger.Logger) (*DuckDBFeed, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to open duckdb", err)
	}

	feed := &DuckDBFeed{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}

	if err := feed.initialize(path); err != nil {
		db.Close()

		return nil, err
	}

	return feed, nil
}

func (f *DuckDBFeed) initialize(path string) error {
	f.log.Debug("Initializing DuckDB feed", zap.String("path", path))

	var reader string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		reader = fmt.Sprintf(`read_csv_auto('%s')`, path)
	case ".parquet":
		reader = fmt.Sprintf(`read_parquet('%s')`, path)
	default:
		return errors.Newf(errors.ErrCodeDataSourceFailed, "unsupported data file extension: %s", path)
	}

	// Using raw SQL as Squirrel doesn't support CREATE VIEW.
	query := fmt.Sprintf(`
		CREATE OR REPLACE VIEW market_data AS
		SELECT symbol, time, open, high, low, close, volume FROM %s;
	`, reader)

	if _, err := f.db.Exec(query); err != nil {
		return errors.Wrap(errors.ErrCodeDataSourceFailed, "failed to create market_data view", err)
	}

	return nil
}

func (f *DuckDBFeed) selectBars(start optional.Option[time.Time], end optional.Option[time.Time]) squirrel.SelectBuilder {
	query := f.sq.
		Select("symbol", "time", "open", "high", "low", "close", "volume").
		From("market_data").
		OrderBy("time ASC, symbol ASC")

	if start.IsSome() {
		query = query.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		query = query.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	return query
}

// Bars implements Feed.
func (f *DuckDBFeed) Bars(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		rows, err := f.selectBars(start, end).RunWith(f.db).Query()
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err))

			return
		}
		defer rows.Close()

		lastPerSymbol := make(map[string]time.Time)

		for rows.Next() {
			var bar types.Bar

			err := rows.Scan(&bar.Symbol, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
			if err != nil {
				yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err))

				return
			}

			if err := bar.Validate(); err != nil {
				yield(types.Bar{}, err)

				return
			}

			last, seen := lastPerSymbol[bar.Symbol]
			if seen && !bar.Time.After(last) {
				yield(types.Bar{}, errors.Newf(errors.ErrCodeDataOrder,
					"non-increasing timestamp for %s: %s after %s", bar.Symbol, bar.Time, last))

				return
			}

			lastPerSymbol[bar.Symbol] = bar.Time

			if !yield(bar, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating bars", err))
		}
	}
}

// Count implements Feed.
func (f *DuckDBFeed) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	query := f.sq.
		Select("COUNT(*)").
		From("market_data")

	if start.IsSome() {
		query = query.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		query = query.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	var count int
	if err := query.RunWith(f.db).QueryRow().Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Last implements Feed.
func (f *DuckDBFeed) Last(symbol string) (types.Bar, error) {
	query := f.sq.
		Select("symbol", "time", "open", "high", "low", "close", "volume").
		From("market_data").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("time DESC").
		Limit(1).
		RunWith(f.db)

	var bar types.Bar

	err := query.QueryRow().Scan(&bar.Symbol, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if err == sql.ErrNoRows {
		return types.Bar{}, errors.Newf(errors.ErrCodeDataNotFound, "no bars for symbol %s", symbol)
	}

	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read last bar", err)
	}

	return bar, nil
}

// Close implements Feed.
func (f *DuckDBFeed) Close() error {
	return f.db.Close()
}
