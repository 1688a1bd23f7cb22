package findbuses

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "bus-finder/internal/common/errors"
	"bus-finder/internal/common/logger"
	"bus-finder/internal/common/retry"
	"bus-finder/internal/models"
	"bus-finder/internal/workers/search/find-buses/queries"
)

// ==========================
// Test Helper Functions
// ==========================

var busColumns = []string{
	"id", "bus_name", "bus_type", "start_time", "end_time", "total_duration",
	"price", "seats_available", "ratings", "route_link", "route_name",
}

func createTestConfig() *Config {
	return &Config{
		Timeout:  5 * time.Second,
		CacheTTL: time.Hour,
		Retry: retry.Policy{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		},
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func createTestCriteria() models.FilterCriteria {
	return models.FilterCriteria{
		RouteName:     "Chennai-Bangalore",
		BusType:       models.BusTypeSleeper,
		MinFare:       500,
		MaxFare:       1500,
		MinRating:     3.5,
		EarliestStart: models.MustClockTime("18:00"),
	}
}

type stubRoutes map[string][]string

func (s stubRoutes) Routes(_ context.Context, state string) ([]string, bool, error) {
	r, ok := s[state]
	return r, ok, nil
}

func newTestService(t *testing.T, db *sql.DB, rdb *redis.Client, routes RouteIndex) *Service {
	return NewService(ServiceOptions{
		Config: createTestConfig(),
		DB:     db,
		Redis:  rdb,
		Routes: routes,
		Logger: createTestLogger(t),
	})
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)
}

func sleeperRow(rows *sqlmock.Rows, id int, price float64, start time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "KPN Travels", "A/C Sleeper (2+1)", start, start.Add(6*time.Hour),
		"06h 00m", price, 10, 4.1, "http://r", "Chennai-Bangalore")
}

// ==========================
// Core Functionality Tests
// ==========================

func TestService_FindBuses_SingleMatch(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sleeperRow(sqlmock.NewRows(busColumns), 7, 1200, at(19, 0))
	mock.ExpectQuery(`FROM bus_details WHERE price BETWEEN \$1 AND \$2`).
		WithArgs(500.0, 1500.0, "Chennai-Bangalore", 3.5, "18:00:00", "%Sleeper%").
		WillReturnRows(rows)

	output, err := newTestService(t, db, nil, nil).FindBuses(context.Background(), createTestCriteria())
	require.NoError(t, err)

	require.Len(t, output.Buses, 1)
	assert.Equal(t, 1200.0, output.Buses[0].Price)
	assert.Equal(t, 1, output.RowCount)
	assert.Empty(t, output.Message)
	assert.NotEmpty(t, output.RequestID)
	assert.False(t, output.Cached)

	assert.Equal(t, 1, output.Summary.Count)
	assert.Equal(t, 1200.0, output.Summary.AveragePrice)
	assert.Equal(t, map[string]int{"A/C Sleeper (2+1)": 1}, output.Summary.BusTypes)

	require.Len(t, output.Schedule, 1)
	assert.Equal(t, ScheduleEntry{
		BusName:       "KPN Travels",
		StartTime:     at(19, 0),
		EndTime:       at(19, 0).Add(6 * time.Hour),
		TotalDuration: "06h 00m",
	}, output.Schedule[0])

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestService_FindBuses_NoResults(t *testing.T) {
	db, mock := newMockDB(t)

	// the only stored bus costs 2000, outside the fare range
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(busColumns))

	output, err := newTestService(t, db, nil, nil).FindBuses(context.Background(), createTestCriteria())
	require.NoError(t, err)

	assert.NotNil(t, output.Buses)
	assert.Empty(t, output.Buses)
	assert.Equal(t, apperrors.NoResultsMessage, output.Message)
	assert.Equal(t, 0, output.Summary.Count)
	assert.NotNil(t, output.Schedule)
	assert.Empty(t, output.Schedule)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_FindBuses_Ordering(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows(busColumns)
	sleeperRow(rows, 1, 700, at(22, 0))
	sleeperRow(rows, 2, 700, at(19, 0))
	sleeperRow(rows, 3, 900, at(23, 0))
	mock.ExpectQuery(`ORDER BY price ASC, start_time DESC`).WillReturnRows(rows)

	output, err := newTestService(t, db, nil, nil).FindBuses(context.Background(), createTestCriteria())
	require.NoError(t, err)

	require.Len(t, output.Buses, 3)
	for i := 1; i < len(output.Buses); i++ {
		prev, cur := output.Buses[i-1], output.Buses[i]
		assert.LessOrEqual(t, prev.Price, cur.Price)
		if prev.Price == cur.Price {
			assert.False(t, prev.StartTime.Before(cur.StartTime))
		}
	}
	assert.InDelta(t, 766.67, output.Summary.AveragePrice, 0.01)
}

// ==========================
// Retry Tests
// ==========================

func TestService_FindBuses_TransientFailureThenSuccess(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectQuery("SELECT").WillReturnRows(sleeperRow(sqlmock.NewRows(busColumns), 1, 1000, at(20, 0)))

	output, err := newTestService(t, db, nil, nil).FindBuses(context.Background(), createTestCriteria())
	require.NoError(t, err)
	assert.Len(t, output.Buses, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestService_FindBuses_RetriesExhausted(t *testing.T) {
	db, mock := newMockDB(t)

	for i := 0; i < 3; i++ {
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("server closed the connection"))
	}

	_, err := newTestService(t, db, nil, nil).FindBuses(context.Background(), createTestCriteria())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
	assert.Equal(t, "Search failed. Please try again.", apperrors.UserMessage(err))
	assert.NotContains(t, apperrors.UserMessage(err), "server closed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_FindBuses_NullColumnsNotRetried(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sleeperRow(sqlmock.NewRows(busColumns), 1, 1200, at(19, 0)).
		AddRow(2, "Unknown Arrival", "A/C Sleeper (2+1)", at(20, 0), nil, "06h 00m", 900.0, nil, 4.0, nil, "Chennai-Bangalore")
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	output, err := newTestService(t, db, nil, nil).FindBuses(context.Background(), createTestCriteria())
	require.NoError(t, err)

	require.Len(t, output.Buses, 1)
	assert.Equal(t, 1200.0, output.Buses[0].Price)
	assert.NoError(t, mock.ExpectationsWereMet(), "a single query, no retry")
}

func TestService_FindBuses_RejectedQueryNotRetried(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT").WillReturnError(&pq.Error{Code: "42703", Message: `column "ratings" does not exist`})

	_, err := newTestService(t, db, nil, nil).FindBuses(context.Background(), createTestCriteria())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
	assert.False(t, apperrors.IsRetryable(err))
	assert.Equal(t, "Search failed. Please try again.", apperrors.UserMessage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_FindBuses_DatabaseUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	require.NoError(t, db.Close())

	_, err = newTestService(t, db, nil, nil).FindBuses(context.Background(), createTestCriteria())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseConnectionFailed))
	assert.Equal(t, "Database connection failed. Please try again later.", apperrors.UserMessage(err))
}

// ==========================
// Validation Tests
// ==========================

func TestService_FindBuses_InvalidCriteriaNeverQueried(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *models.FilterCriteria)
		code   apperrors.ErrorCode
	}{
		{"bad bus type", func(c *models.FilterCriteria) { c.BusType = "luxury" }, apperrors.ErrCodeInvalidFilter},
		{"rating out of range", func(c *models.FilterCriteria) { c.MinRating = 6 }, apperrors.ErrCodeInvalidFilter},
		{"unsafe route", func(c *models.FilterCriteria) { c.RouteName = "x'; DROP TABLE bus_details" }, apperrors.ErrCodeInvalidFilter},
		{"unknown state", func(c *models.FilterCriteria) { c.State = "Goa" }, apperrors.ErrCodeUnknownState},
		{"route not in state", func(c *models.FilterCriteria) { c.State = "Kerala" }, apperrors.ErrCodeInvalidFilter},
	}

	routes := stubRoutes{"Kerala": {"Kochi to Bangalore"}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)

			c := createTestCriteria()
			tt.mutate(&c)

			_, err := newTestService(t, db, nil, routes).FindBuses(context.Background(), c)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestService_FindBuses_CatalogRoute(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT").
		WithArgs(500.0, 1500.0, "Kochi (Cochin) to Bangalore", 3.5, "18:00:00", "%Sleeper%").
		WillReturnRows(sqlmock.NewRows(busColumns))

	c := createTestCriteria()
	c.State = "Kerala"
	c.RouteName = "Kochi (Cochin) to Bangalore"

	routes := stubRoutes{"Kerala": {"Kochi (Cochin) to Bangalore"}}
	_, err := newTestService(t, db, nil, routes).FindBuses(context.Background(), c)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Cache Tests
// ==========================

func TestService_FindBuses_CacheHit(t *testing.T) {
	db, mock := newMockDB(t)
	mr, rdb := newMiniRedis(t)

	mock.ExpectQuery("SELECT").WillReturnRows(sleeperRow(sqlmock.NewRows(busColumns), 1, 1200, at(19, 0)))

	svc := newTestService(t, db, rdb, nil)

	first, err := svc.FindBuses(context.Background(), createTestCriteria())
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.FindBuses(context.Background(), createTestCriteria())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	require.Len(t, second.Buses, 1)
	assert.Equal(t, first.Buses[0].Price, second.Buses[0].Price)
	assert.True(t, first.Buses[0].StartTime.Equal(second.Buses[0].StartTime))
	assert.NotEqual(t, first.RequestID, second.RequestID)

	assert.NoError(t, mock.ExpectationsWereMet())

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))
}

func TestService_FindBuses_EmptyResultCached(t *testing.T) {
	db, mock := newMockDB(t)
	_, rdb := newMiniRedis(t)

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(busColumns))

	svc := newTestService(t, db, rdb, nil)
	_, err := svc.FindBuses(context.Background(), createTestCriteria())
	require.NoError(t, err)

	output, err := svc.FindBuses(context.Background(), createTestCriteria())
	require.NoError(t, err)
	assert.True(t, output.Cached)
	assert.NotNil(t, output.Buses)
	assert.Equal(t, apperrors.NoResultsMessage, output.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_FindBuses_RedisFailureFallsBack(t *testing.T) {
	db, mock := newMockDB(t)
	rdb, rmock := redismock.NewClientMock()

	q, err := queries.Compile(createTestCriteria())
	require.NoError(t, err)
	key := NewResultCache(nil, time.Hour, createTestLogger(t)).Key(q)

	rmock.ExpectGet(key).SetErr(errors.New("redis: connection refused"))

	mock.ExpectQuery("SELECT").WillReturnRows(sleeperRow(sqlmock.NewRows(busColumns), 1, 1200, at(19, 0)))

	output, err := newTestService(t, db, rdb, nil).FindBuses(context.Background(), createTestCriteria())
	require.NoError(t, err)
	assert.Len(t, output.Buses, 1)
	assert.False(t, output.Cached)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestResultCache_KeyIsStable(t *testing.T) {
	cache := NewResultCache(nil, time.Hour, createTestLogger(t))

	a, _ := queries.Compile(createTestCriteria())
	b, _ := queries.Compile(createTestCriteria())
	assert.Equal(t, cache.Key(a), cache.Key(b))

	other := createTestCriteria()
	other.MaxFare = 1600
	c, _ := queries.Compile(other)
	assert.NotEqual(t, cache.Key(a), cache.Key(c))
}

// ==========================
// Handler Tests
// ==========================

func TestDecodeInput(t *testing.T) {
	input, err := DecodeInput([]byte(`{"state":"Kerala","routeName":"Kochi to Bangalore","busType":"semi_sleeper","minFare":100,"maxFare":900,"minRating":2,"earliestStart":"06:30"}`))
	require.NoError(t, err)
	assert.Equal(t, "Kerala", input.State)
	assert.Equal(t, models.BusTypeSemiSleeper, input.BusType)
	assert.Equal(t, "06:30:00", input.EarliestStart.String())

	_, err = DecodeInput([]byte(`{"routeName":"x"}`))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidFilter))
}

func TestHandler_Execute(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(busColumns))

	config := createTestConfig()
	handler := NewHandler(config, newTestService(t, db, nil, nil), createTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{FilterCriteria: createTestCriteria()})
	require.NoError(t, err)
	assert.Equal(t, apperrors.NoResultsMessage, output.Message)

	_, err = handler.Execute(context.Background(), nil)
	assert.Error(t, err)
}
