package findbuses

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "bus-finder/internal/common/errors"
	"bus-finder/internal/common/logger"
	"bus-finder/internal/common/metrics"
	"bus-finder/internal/common/observability"
	"bus-finder/internal/common/retry"
	"bus-finder/internal/common/validation"
	"bus-finder/internal/models"
	"bus-finder/internal/workers/search/find-buses/queries"
)

// RouteIndex resolves the routes offered for a state. known is false when
// the state has no catalog entry.
type RouteIndex interface {
	Routes(ctx context.Context, state string) (routes []string, known bool, err error)
}

type ServiceOptions struct {
	Config        *Config
	DB            *sql.DB
	Redis         *redis.Client
	Routes        RouteIndex
	Observability *observability.Observability
	Logger        logger.Logger
}

// Service validates criteria, compiles them and runs the search with
// caching and retries.
type Service struct {
	config    *Config
	executor  *queries.Executor
	cache     *ResultCache
	routes    RouteIndex
	validator *validation.CriteriaValidator
	obs       *observability.Observability
	logger    logger.Logger
}

func NewService(opts ServiceOptions) *Service {
	config := LoadConfig()
	if opts.Config != nil {
		c := *opts.Config
		config = &c
	}
	if config.Retry.Retryable == nil {
		config.Retry.Retryable = apperrors.IsRetryable
	}
	obs := opts.Observability
	if obs == nil {
		obs = &observability.Observability{}
	}
	log := opts.Logger.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Service{
		config:    config,
		executor:  queries.NewExecutor(opts.DB, log),
		cache:     NewResultCache(opts.Redis, config.CacheTTL, log),
		routes:    opts.Routes,
		validator: validation.NewCriteriaValidator(),
		obs:       obs,
		logger:    log,
	}
}

// FindBuses returns the buses matching criteria, cheapest first and latest
// departure first among equal prices. An empty result is not an error; it
// carries the no-results message.
func (s *Service) FindBuses(ctx context.Context, criteria models.FilterCriteria) (*Output, error) {
	start := time.Now()
	requestID := uuid.NewString()
	log := s.logger.WithFields(map[string]interface{}{"requestId": requestID})

	ctx, span := s.obs.StartSpan(ctx, "find-buses",
		attribute.String("requestId", requestID),
		attribute.String("route", criteria.RouteName),
		attribute.String("busType", string(criteria.BusType)),
	)
	defer span.End()

	output, err := s.search(ctx, log, criteria)

	outcome := outcomeOf(output, err)
	elapsed := time.Since(start)
	metrics.SearchRequests.WithLabelValues(outcome).Inc()
	metrics.SearchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	s.obs.RecordSearch(ctx, outcome, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.AsStandard(err).Code))
		log.Warn("bus search failed", map[string]interface{}{
			"outcome": outcome,
			"error":   err.Error(),
		})
		return nil, err
	}

	output.RequestID = requestID
	output.QueryExecutionTime = elapsed.Milliseconds()
	log.Info("bus search completed", map[string]interface{}{
		"outcome":  outcome,
		"rowCount": output.RowCount,
		"cached":   output.Cached,
		"duration": elapsed.String(),
	})
	return output, nil
}

func (s *Service) search(ctx context.Context, log logger.Logger, criteria models.FilterCriteria) (*Output, error) {
	if err := s.validate(ctx, criteria); err != nil {
		return nil, err
	}

	q, err := queries.Compile(criteria)
	if err != nil {
		return nil, apperrors.NewInvalidFilterError(err.Error(), "busType")
	}

	key := s.cache.Key(q)
	if buses, ok := s.cache.Get(ctx, key); ok {
		log.Debug("serving cached result", map[string]interface{}{"key": key})
		return newOutput(buses, true), nil
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	var buses []models.BusListing
	err = retry.Do(ctx, s.config.Retry, log, "bus search query", func(ctx context.Context) error {
		var execErr error
		buses, execErr = s.executor.Execute(ctx, q)
		return execErr
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, buses)
	return newOutput(buses, false), nil
}

func (s *Service) validate(ctx context.Context, criteria models.FilterCriteria) error {
	var (
		routes []string
		known  bool
	)
	if criteria.State != "" && s.routes != nil {
		var err error
		routes, known, err = s.routes.Routes(ctx, criteria.State)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if !known {
			return apperrors.NewUnknownStateError(criteria.State)
		}
	}
	return s.validator.Validate(criteria, routes, known)
}

func newOutput(buses []models.BusListing, cached bool) *Output {
	if buses == nil {
		buses = []models.BusListing{}
	}
	output := &Output{
		Buses:    buses,
		Summary:  summarize(buses),
		Schedule: schedule(buses),
		RowCount: len(buses),
		Cached:   cached,
	}
	if len(buses) == 0 {
		output.Message = apperrors.NoResultsMessage
	}
	return output
}

func outcomeOf(output *Output, err error) string {
	switch {
	case err == nil && output.RowCount == 0:
		return "empty"
	case err == nil:
		return "found"
	case apperrors.HasCode(err, apperrors.ErrCodeInvalidFilter), apperrors.HasCode(err, apperrors.ErrCodeUnknownState):
		return "invalid"
	default:
		return "failed"
	}
}
