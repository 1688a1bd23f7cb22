package loadroutecatalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "bus-finder/internal/common/errors"
	"bus-finder/internal/common/logger"
	"bus-finder/internal/common/metrics"
	"bus-finder/internal/common/observability"
	"bus-finder/pkg/registry"
)

// RouteColumn is the header of the column holding route names.
const RouteColumn = "Route_name"

var ErrRouteColumnMissing = errors.New("route column missing")

// Loader reads one CSV per state from DataDir.
type Loader struct {
	dataDir  string
	registry *registry.StateRegistry
	obs      *observability.Observability
	logger   logger.Logger
}

func NewLoader(config *Config, reg *registry.StateRegistry, obs *observability.Observability, log logger.Logger) *Loader {
	if reg == nil {
		reg = registry.Default()
	}
	if obs == nil {
		obs = &observability.Observability{}
	}
	return &Loader{
		dataDir:  config.DataDir,
		registry: reg,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "route-catalog"}),
	}
}

// Load builds the catalog. A state whose file is missing or malformed maps
// to an empty list and is recorded in Catalog.Failures; the only error
// returned is ctx's.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	ctx, span := l.obs.StartSpan(ctx, "route-catalog.load")
	defer span.End()

	routes := make(map[string][]string, len(l.registry.States))
	failures := make(map[string]string)

	for _, sf := range l.registry.States {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(l.dataDir, sf.File)
		names, err := readRouteNames(path)
		if err != nil {
			loadErr := apperrors.NewCatalogLoadFailedError(sf.State, sf.File, err)
			l.logger.Warn("could not load routes for state", map[string]interface{}{
				"state":   sf.State,
				"file":    path,
				"error":   err.Error(),
				"errCode": string(loadErr.Code),
			})
			metrics.CatalogLoadFailures.WithLabelValues(sf.State).Inc()
			failures[sf.State] = apperrors.UserMessage(loadErr)
			names = nil
		}

		routes[sf.State] = names
		l.obs.RecordCatalogRoutes(ctx, sf.State, len(names))
	}

	l.logger.Info("route catalog loaded", map[string]interface{}{
		"states":   len(l.registry.States),
		"failures": len(failures),
	})

	return NewCatalog(l.registry.Names(), routes, failures), nil
}

// readRouteNames returns the RouteColumn values in file order. Blank cells
// are skipped; duplicates are kept.
func readRouteNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrRouteColumnMissing)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := -1
	for i, h := range header {
		if strings.TrimPrefix(h, "\ufeff") == RouteColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrRouteColumnMissing
	}

	var names []string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		// cells are kept verbatim so they match route_name exactly
		if rec[col] != "" {
			names = append(names, rec[col])
		}
	}

	return names, nil
}
