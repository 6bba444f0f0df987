package generatesteppreview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "workflow-content/internal/common/errors"
	"workflow-content/internal/common/logger"
	"workflow-content/internal/common/metrics"
	"workflow-content/internal/content/preview"
	"workflow-content/internal/content/schema"
	"workflow-content/internal/models"
	"workflow-content/internal/store"
)

const TaskType = "generate-step-preview"

var ErrInvalidInput = errors.New("INVALID_INPUT")

type WorkflowFinder interface {
	FindByID(ctx context.Context, organizationID, workflowID string) (*models.Workflow, error)
}

// Previewer is satisfied by *preview.Service.
type Previewer interface {
	Preview(ctx context.Context, req preview.Request) (*preview.Response, error)
}

type Handler struct {
	config    *Config
	workflows WorkflowFinder
	previews  Previewer
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, workflows WorkflowFinder, previews Previewer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		workflows: workflows,
		previews:  previews,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, classify(err, &input))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.OrganizationID == "" || input.WorkflowID == "" || input.StepID == "" {
		return nil, fmt.Errorf("%w: organizationId, workflowId and stepId are required", ErrInvalidInput)
	}

	wf, err := h.workflows.FindByID(ctx, input.OrganizationID, input.WorkflowID)
	if err != nil {
		return nil, err
	}

	resp, err := h.previews.Preview(ctx, preview.Request{
		Workflow:       wf,
		StepID:         input.StepID,
		ControlValues:  input.ControlValues,
		PreviewPayload: input.PreviewPayload,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		Result:                resp.Result,
		PreviewPayloadExample: resp.PreviewPayloadExample,
		Issues:                resp.Issues,
	}, nil
}

func classify(err error, input *Input) *apperrors.StandardError {
	var (
		stdErr    *apperrors.StandardError
		bridgeErr *preview.BridgeError
	)
	switch {
	case errors.As(err, &stdErr):
		return stdErr
	case errors.As(err, &bridgeErr):
		e := apperrors.NewBridgeExecutionFailedError(bridgeErr.Message, bridgeErr.Status).
			WithMetadata("bridgeCode", bridgeErr.Code)
		if bridgeErr.Data != nil {
			e.WithMetadata("bridgeData", bridgeErr.Data)
		}
		return e
	case errors.Is(err, ErrInvalidInput):
		return apperrors.NewInvalidInputError(err.Error())
	case errors.Is(err, store.ErrWorkflowNotFound):
		return apperrors.NewWorkflowNotFoundError(input.WorkflowID)
	case errors.Is(err, preview.ErrStepNotFound), errors.Is(err, schema.ErrStepNotFound):
		return apperrors.NewStepNotFoundError(input.StepID)
	case errors.Is(err, store.ErrQueryFailed):
		return apperrors.NewQueryExecutionFailedError("workflow", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError(TaskType, err)
	default:
		return apperrors.NewPreviewFailedError(err)
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(err.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}
