package queries

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "bus-finder/internal/common/errors"
	"bus-finder/internal/common/logger"
	"bus-finder/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

var placeholder = regexp.MustCompile(`\$\d+`)

var busColumns = []string{
	"id", "bus_name", "bus_type", "start_time", "end_time", "total_duration",
	"price", "seats_available", "ratings", "route_link", "route_name",
}

func createTestCriteria(busType models.BusTypeCategory) models.FilterCriteria {
	return models.FilterCriteria{
		RouteName:     "Chennai-Bangalore",
		BusType:       busType,
		MinFare:       500,
		MaxFare:       1500,
		MinRating:     3.5,
		EarliestStart: models.MustClockTime("18:00"),
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)
}

// ==========================
// Compile Tests
// ==========================

func TestCompile_SQL(t *testing.T) {
	const prefix = "SELECT id, bus_name, bus_type, start_time, end_time, total_duration, price, seats_available, ratings, route_link, route_name FROM bus_details WHERE price BETWEEN $1 AND $2 AND route_name = $3 AND ratings >= $4 AND CAST(start_time AS time) >= $5 AND "
	const suffix = " ORDER BY price ASC, start_time DESC"

	tests := []struct {
		busType models.BusTypeCategory
		clause  string
		args    []interface{}
	}{
		{
			busType: models.BusTypeSleeper,
			clause:  "bus_type LIKE $6",
			args:    []interface{}{500.0, 1500.0, "Chennai-Bangalore", 3.5, "18:00:00", "%Sleeper%"},
		},
		{
			busType: models.BusTypeSemiSleeper,
			clause:  "bus_type LIKE $6",
			args:    []interface{}{500.0, 1500.0, "Chennai-Bangalore", 3.5, "18:00:00", "%A/c Semi Sleeper%"},
		},
		{
			busType: models.BusTypeOthers,
			clause:  "bus_type NOT LIKE $6 AND bus_type NOT LIKE $7",
			args:    []interface{}{500.0, 1500.0, "Chennai-Bangalore", 3.5, "18:00:00", "%Sleeper%", "%Semi-Sleeper%"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.busType), func(t *testing.T) {
			q, err := Compile(createTestCriteria(tt.busType))
			require.NoError(t, err)

			assert.Equal(t, prefix+tt.clause+suffix, q.SQL)
			assert.Equal(t, tt.args, q.Args)
			assert.Len(t, placeholder.FindAllString(q.SQL, -1), len(q.Args))
		})
	}
}

func TestCompile_ValuesNeverInText(t *testing.T) {
	c := createTestCriteria(models.BusTypeSleeper)
	c.RouteName = "x' OR '1'='1"

	q, err := Compile(c)
	require.NoError(t, err)
	assert.NotContains(t, q.SQL, c.RouteName)
	assert.NotContains(t, q.SQL, "'")
	assert.Contains(t, q.Args, c.RouteName)
}

func TestCompile_UnknownBusType(t *testing.T) {
	_, err := Compile(createTestCriteria("luxury"))
	assert.ErrorIs(t, err, ErrUnknownBusType)
}

func TestBuilder_MarkerMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewBuilder().Where("price = ?", 1, 2)
	})
}

func TestBuilder_NoClauses(t *testing.T) {
	q := NewBuilder().Build()
	assert.True(t, strings.HasSuffix(q.SQL, "FROM bus_details ORDER BY price ASC, start_time DESC"))
	assert.Empty(t, q.Args)
}

// ==========================
// Executor Tests
// ==========================

func TestExecutor_Execute(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	q, err := Compile(createTestCriteria(models.BusTypeSleeper))
	require.NoError(t, err)

	rows := sqlmock.NewRows(busColumns).
		AddRow(1, "KPN Travels", "A/C Sleeper (2+1)", at(21, 0), at(23, 30), "02h 30m", 800.0, 12, 4.2, "http://r/1", "Chennai-Bangalore").
		AddRow(2, "Bad Ratings", "Non A/C Sleeper", at(19, 0), at(22, 0), "03h 00m", 900.0, 5, 7.5, "http://r/2", "Chennai-Bangalore").
		AddRow(3, "Backwards", "A/C Sleeper", at(20, 0), at(19, 0), "-", 950.0, 3, 4.0, "http://r/3", "Chennai-Bangalore").
		AddRow(4, "SRS", "Volvo Multi-Axle Sleeper", at(18, 30), at(22, 15), "03h 45m", 1200.0, 20, 3.9, "http://r/4", "Chennai-Bangalore")

	args := make([]driver.Value, len(q.Args))
	for i, a := range q.Args {
		args[i] = a
	}
	mock.ExpectQuery(q.SQL).WithArgs(args...).WillReturnRows(rows)

	buses, err := NewExecutor(db, createTestLogger(t)).Execute(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, buses, 2, "rows violating listing invariants are dropped")
	assert.Equal(t, int64(1), buses[0].ID)
	assert.Equal(t, 800.0, buses[0].Price)
	assert.Equal(t, 12, buses[0].SeatsAvailable)
	assert.Equal(t, int64(4), buses[1].ID)
	assert.Equal(t, "Volvo Multi-Axle Sleeper", buses[1].BusType)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, db.Stats().InUse, "connection returned to the pool")
}

func TestExecutor_NullColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q, err := Compile(createTestCriteria(models.BusTypeSleeper))
	require.NoError(t, err)

	rows := sqlmock.NewRows(busColumns).
		AddRow(1, "KPN Travels", "A/C Sleeper (2+1)", at(21, 0), at(23, 30), "02h 30m", 1200.0, 12, 4.2, "http://r/1", "Chennai-Bangalore").
		AddRow(2, "No Arrival", "A/C Sleeper (2+1)", at(20, 0), nil, "02h 00m", 900.0, nil, 4.0, nil, "Chennai-Bangalore").
		AddRow(3, nil, "Non A/C Sleeper", at(19, 0), at(23, 0), nil, 1000.0, nil, 3.8, nil, "Chennai-Bangalore").
		AddRow(4, "No Price", "A/C Sleeper", at(18, 30), at(22, 0), "03h 30m", nil, 4, 4.1, "http://r/4", "Chennai-Bangalore")
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	buses, err := NewExecutor(db, createTestLogger(t)).Execute(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, buses, 2)
	assert.Equal(t, int64(1), buses[0].ID)
	assert.Equal(t, 1200.0, buses[0].Price)

	assert.Equal(t, int64(3), buses[1].ID)
	assert.Empty(t, buses[1].BusName)
	assert.Empty(t, buses[1].TotalDuration)
	assert.Empty(t, buses[1].RouteLink)
	assert.Zero(t, buses[1].SeatsAvailable)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestExecutor_PostgresErrorClasses(t *testing.T) {
	q, err := Compile(createTestCriteria(models.BusTypeOthers))
	require.NoError(t, err)

	tests := []struct {
		name      string
		code      pq.ErrorCode
		expected  apperrors.ErrorCode
		retryable bool
	}{
		{"undefined table", "42P01", apperrors.ErrCodeQueryExecutionFailed, false},
		{"invalid datetime", "22007", apperrors.ErrCodeQueryExecutionFailed, false},
		{"connection failure", "08006", apperrors.ErrCodeDatabaseConnectionFailed, true},
		{"admin shutdown", "57P01", apperrors.ErrCodeDatabaseConnectionFailed, true},
		{"serialization failure", "40001", apperrors.ErrCodeQueryExecutionFailed, true},
		{"too many connections", "53300", apperrors.ErrCodeQueryExecutionFailed, true},
		{"statement timeout", "57014", apperrors.ErrCodeQueryTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery("SELECT").WillReturnError(&pq.Error{Code: tt.code, Message: tt.name})

			_, err = NewExecutor(db, createTestLogger(t)).Execute(context.Background(), q)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.expected))
			assert.Equal(t, tt.retryable, apperrors.IsRetryable(err))
		})
	}
}

func TestExecutor_Errors(t *testing.T) {
	q, err := Compile(createTestCriteria(models.BusTypeOthers))
	require.NoError(t, err)

	t.Run("query failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation bus_details does not exist"))

		_, err = NewExecutor(db, createTestLogger(t)).Execute(context.Background(), q)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
		assert.True(t, apperrors.IsRetryable(err))
		assert.Equal(t, 0, db.Stats().InUse)
	})

	t.Run("scan failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows(busColumns).
			AddRow("not-a-number", "n", "t", at(1, 0), at(2, 0), "d", 1.0, 1, 1.0, "l", "r")
		mock.ExpectQuery("SELECT").WillReturnRows(rows)

		_, err = NewExecutor(db, createTestLogger(t)).Execute(context.Background(), q)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
		assert.False(t, apperrors.IsRetryable(err), "an undecodable row fails the same way every time")
		assert.Equal(t, 0, db.Stats().InUse)
	})

	t.Run("closed pool", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		mock.ExpectClose()
		require.NoError(t, db.Close())

		_, err = NewExecutor(db, createTestLogger(t)).Execute(context.Background(), q)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseConnectionFailed))
	})

	t.Run("deadline", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT").WillDelayFor(200 * time.Millisecond).
			WillReturnRows(sqlmock.NewRows(busColumns))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err = NewExecutor(db, createTestLogger(t)).Execute(ctx, q)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryTimeout))
	})
}
