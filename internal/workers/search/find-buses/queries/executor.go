// internal/workers/search/find-buses/queries/executor.go
package queries

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"

	apperrors "bus-finder/internal/common/errors"
	"bus-finder/internal/common/logger"
	"bus-finder/internal/common/metrics"
	"bus-finder/internal/models"
)

const queryType = "find-buses"

var (
	ErrUnknownBusType = errors.New("unknown bus type")
)

// Executor runs compiled queries against the bus_details table.
type Executor struct {
	db     *sql.DB
	logger logger.Logger
}

func NewExecutor(db *sql.DB, log logger.Logger) *Executor {
	return &Executor{db: db, logger: log}
}

// Execute checks out a single connection for the query and returns it to
// the pool on every path. Rows that break listing invariants are dropped.
func (e *Executor) Execute(ctx context.Context, q Query) ([]models.BusListing, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, apperrors.NewQueryTimeoutError(queryType, err)
		}
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer rows.Close()

	buses := make([]models.BusListing, 0)
	for rows.Next() {
		var r row
		if err := rows.Scan(
			&r.id, &r.busName, &r.busType,
			&r.startTime, &r.endTime, &r.totalDuration,
			&r.price, &r.seatsAvailable, &r.ratings,
			&r.routeLink, &r.routeName,
		); err != nil {
			return nil, apperrors.NewQueryRejectedError(queryType, err)
		}

		b, err := r.listing()
		if err == nil {
			err = b.Validate()
		}
		if err != nil {
			e.logger.Warn("dropping invalid bus listing", map[string]interface{}{
				"id":    r.id,
				"error": err.Error(),
			})
			metrics.SearchRowsDropped.Inc()
			continue
		}
		buses = append(buses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, err)
	}

	return buses, nil
}

// row mirrors one bus_details row; every column may be NULL.
type row struct {
	id             int64
	busName        sql.NullString
	busType        sql.NullString
	startTime      sql.NullTime
	endTime        sql.NullTime
	totalDuration  sql.NullString
	price          sql.NullFloat64
	seatsAvailable sql.NullInt64
	ratings        sql.NullFloat64
	routeLink      sql.NullString
	routeName      sql.NullString
}

// listing fails when a column the listing invariants depend on is NULL.
// Other NULL columns become zero values.
func (r row) listing() (models.BusListing, error) {
	switch {
	case !r.startTime.Valid:
		return models.BusListing{}, errors.New("null start_time")
	case !r.endTime.Valid:
		return models.BusListing{}, errors.New("null end_time")
	case !r.price.Valid:
		return models.BusListing{}, errors.New("null price")
	case !r.ratings.Valid:
		return models.BusListing{}, errors.New("null ratings")
	}

	return models.BusListing{
		ID:             r.id,
		BusName:        r.busName.String,
		BusType:        r.busType.String,
		StartTime:      r.startTime.Time,
		EndTime:        r.endTime.Time,
		TotalDuration:  r.totalDuration.String,
		Price:          r.price.Float64,
		SeatsAvailable: int(r.seatsAvailable.Int64),
		Ratings:        r.ratings.Float64,
		RouteLink:      r.routeLink.String,
		RouteName:      r.routeName.String,
	}, nil
}

// classify maps a driver error onto the search taxonomy. Postgres errors
// are retried only for SQLSTATE classes that describe a transient state;
// anything else would fail the same way on the next attempt.
func classify(ctx context.Context, err error) error {
	if isTimeout(ctx, err) {
		return apperrors.NewQueryTimeoutError(queryType, err)
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "57014":
			return apperrors.NewQueryTimeoutError(queryType, err)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			return apperrors.NewDatabaseConnectionFailedError(err)
		case pqErr.Code.Class() == "40", pqErr.Code.Class() == "53":
			return apperrors.NewQueryExecutionFailedError(queryType, err)
		default:
			return apperrors.NewQueryRejectedError(queryType, err)
		}
	}

	return apperrors.NewQueryExecutionFailedError(queryType, err)
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded
}
