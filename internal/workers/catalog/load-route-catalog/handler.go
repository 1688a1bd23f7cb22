package loadroutecatalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "bus-finder/internal/common/errors"
	"bus-finder/internal/common/logger"
	"bus-finder/internal/common/metrics"
	"bus-finder/internal/common/validation"
)

const (
	TaskType = "load-route-catalog"
)

type Handler struct {
	config       *Config
	catalog      *CachedLoader
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, catalog *CachedLoader, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		catalog:      catalog,
		logger:       log,
		errorHandler: apperrors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := validation.ValidateRouteCatalog([]byte(job.Variables)); err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewInvalidFilterError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInternalError(errors.New("input cannot be nil"))
	}

	cat, err := h.catalog.Catalog(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	output := &Output{
		States:   cat.States(),
		Failures: cat.Failures(),
		LoadedAt: cat.LoadedAt(),
	}

	if input.State == "" {
		output.Routes = cat.All()
		return output, nil
	}

	routes, ok := cat.Routes(input.State)
	if !ok {
		return nil, apperrors.NewUnknownStateError(input.State)
	}
	output.Routes = map[string][]string{input.State: routes}
	if reason, failed := output.Failures[input.State]; failed {
		output.Failures = map[string]string{input.State: reason}
	} else {
		output.Failures = nil
	}

	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.AsStandard(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
