// internal/workers/crm/crm-query/handler.go
package crmquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"salesforce-query-workers/internal/common/audit"
	"salesforce-query-workers/internal/common/camunda"
	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/common/errors"
	"salesforce-query-workers/internal/common/jobledger"
	"salesforce-query-workers/internal/common/logger"
	"salesforce-query-workers/internal/common/metrics"
	"salesforce-query-workers/internal/common/observability"
	"salesforce-query-workers/internal/common/validation"
	"salesforce-query-workers/internal/pipeline"
	"salesforce-query-workers/pkg/registry"
)

const (
	TaskType   = "crm.query"
	WorkerName = "crm-query"
)

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	runner       Runner
	recorder     audit.Recorder
	ledger       jobledger.Ledger
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	inputSchema  map[string]interface{}
	worker       *camunda.Worker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	CustomConfig  *Config
	Logger        logger.Logger
	Runner        Runner
	Recorder      audit.Recorder
	Ledger        jobledger.Ledger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("%s requires a pipeline runner", WorkerName)
	}

	activity, ok := registry.Default().Find(TaskType)
	if !ok {
		return nil, fmt.Errorf("activity %s missing from registry", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json", "")
	}
	log = log.With(map[string]interface{}{"worker": TaskType})

	h := &Handler{
		config:       workerConfig,
		logger:       log,
		camunda:      opts.Camunda,
		runner:       opts.Runner,
		recorder:     opts.Recorder,
		ledger:       opts.Ledger,
		obs:          opts.Observability,
		errorHandler: errors.NewErrorHandler(log),
		inputSchema:  activity.InputSchema,
	}
	if h.recorder == nil {
		h.recorder = audit.NopRecorder{}
	}
	if h.ledger == nil || !workerConfig.LedgerEnabled {
		h.ledger = jobledger.NopLedger{}
	}
	return h, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing CRM query request", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	variables, err := h.Process(ctx, job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, extractErrorCode(err)).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, variables)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "completed")
}

// Process turns one job into its completion variables. A job already in
// the ledger is answered from there without running the pipeline again.
func (h *Handler) Process(ctx context.Context, job entities.Job) (map[string]interface{}, error) {
	if !h.config.Enabled {
		h.logger.Info("Worker disabled by configuration", nil)
		return disabledOutput().ToVariables(), nil
	}

	entry, err := h.ledger.Lookup(ctx, job.GetKey())
	if err != nil {
		h.logger.Warn("Job ledger lookup failed, running pipeline", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	} else if entry != nil {
		h.logger.Info("Job already completed, replaying result", map[string]interface{}{
			"jobKey": job.GetKey(),
			"runId":  entry.RunID,
		})
		return entry.Variables, nil
	}

	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}

	output, err := h.Execute(ctx, job.GetKey(), input)
	if err != nil {
		return nil, err
	}

	variables := output.ToVariables()
	if err := h.ledger.Store(ctx, jobledger.Entry{
		JobKey:      job.GetKey(),
		RunID:       output.RunID,
		Outcome:     output.Outcome,
		Variables:   variables,
		CompletedAt: time.Now().UTC(),
	}); err != nil {
		h.logger.Warn("Failed to store job in ledger", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
	return variables, nil
}

// Execute runs the pipeline for input and records the run. Every pipeline
// outcome, including failures inside the pipeline, completes the job.
func (h *Handler) Execute(ctx context.Context, jobKey int64, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.UserRequest) == "" {
		return nil, errors.NewValidationFailedError("userRequest is required")
	}

	ownerID := input.OwnerID
	if ownerID == "" {
		ownerID = h.config.OwnerID
	}
	req := pipeline.Request{Text: input.UserRequest, OwnerID: ownerID}
	outcome := h.runner.Run(ctx, req)

	if err := h.recorder.Record(ctx, audit.NewRecord(req, jobKey, outcome)); err != nil {
		h.logger.Warn("Failed to record query run", map[string]interface{}{
			"runId":   outcome.RunID,
			"backend": h.recorder.Backend(),
			"error":   err.Error(),
		})
	}

	fields := map[string]interface{}{
		"jobKey":  jobKey,
		"runId":   outcome.RunID,
		"outcome": string(outcome.Kind),
		"entity":  outcome.Entity,
	}
	if input.RequestID != "" {
		fields["requestId"] = input.RequestID
	}
	h.logger.Info("CRM query finished", fields)

	return outputFromOutcome(outcome), nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	result, err := validation.ValidateInput(variables, h.inputSchema)
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	if !result.Valid {
		return nil, errors.NewValidationFailedError(result.Summary())
	}

	input := &Input{}
	input.UserRequest, _ = variables["userRequest"].(string)
	input.OwnerID, _ = variables["ownerId"].(string)
	input.RequestID, _ = variables["requestId"].(string)
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, variables map[string]interface{}) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("Successfully completed CRM query", map[string]interface{}{
		"jobKey":  job.GetKey(),
		"outcome": variables["queryOutcome"],
	})
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("%s: no camunda client", WorkerName)
	}

	h.worker = camunda.NewWorker(h.camunda.Zeebe(), TaskType, camunda.WorkerOptions{
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
	}, h.Handle, h.logger)
	return nil
}

func (h *Handler) Close() {
	if h.worker != nil {
		h.worker.Stop()
		h.worker = nil
	}
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda == nil {
		return nil
	}
	if err := h.camunda.HealthCheck(ctx); err != nil {
		return fmt.Errorf("camunda health check failed: %w", err)
	}
	return nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}

func disabledOutput() *Output {
	return &Output{
		Outcome: OutcomeDisabled,
		Message: "CRM query disabled",
		RunID:   uuid.NewString(),
	}
}

func extractErrorCode(err error) string {
	return string(errors.AsStandardError(err).Code)
}

func createConfigFromAppConfig(appConfig *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	wc := config.GetWorkerConfig(appConfig, WorkerName)
	cfg.Enabled = wc.Enabled
	if wc.MaxJobsActive > 0 {
		cfg.MaxJobsActive = wc.MaxJobsActive
	}
	if wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	cfg.OwnerID = appConfig.Salesforce.OwnerID
	cfg.LedgerEnabled = appConfig.Ledger.Enabled
	return cfg
}
