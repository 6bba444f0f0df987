package validatestepcontent

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
	"workflow-content/internal/content/controls"
	"workflow-content/internal/content/document"
	"workflow-content/internal/content/payload"
	"workflow-content/internal/content/pipeline"
	"workflow-content/internal/content/placeholders"
	"workflow-content/internal/content/schema"
	"workflow-content/internal/models"
	"workflow-content/internal/store"
)

const TaskType = "validate-step-content"

var ErrInvalidInput = errors.New("INVALID_INPUT")

// WorkflowFinder loads a workflow by internal or user facing id.
type WorkflowFinder interface {
	FindByID(ctx context.Context, organizationID, workflowID string) (*models.Workflow, error)
}

// ControlSchemaProvider returns the control schema of a step type.
type ControlSchemaProvider interface {
	ControlSchema(stepType models.StepType) (map[string]interface{}, bool)
}

type Handler struct {
	config       *Config
	workflows    WorkflowFinder
	schemas      ControlSchemaProvider
	resolver     *schema.Resolver
	orchestrator *pipeline.Orchestrator
	errors       *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(
	config *Config,
	workflows WorkflowFinder,
	schemas ControlSchemaProvider,
	resolver *schema.Resolver,
	orchestrator *pipeline.Orchestrator,
	log logger.Logger,
) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		workflows:    workflows,
		schemas:      schemas,
		resolver:     resolver,
		orchestrator: orchestrator,
		errors:       apperrors.NewErrorHandler(log),
		logger:       log,
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

// Execute loads the step, sanitizes dashboard controls and runs the content
// pipeline. Issues are part of a successful output.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.OrganizationID == "" || input.WorkflowID == "" || input.StepID == "" {
		return nil, fmt.Errorf("%w: organizationId, workflowId and stepId are required", ErrInvalidInput)
	}

	wf, err := h.workflows.FindByID(ctx, input.OrganizationID, input.WorkflowID)
	if err != nil {
		return nil, err
	}
	step, ok := wf.FindStep(input.StepID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrStepNotFound, input.StepID)
	}

	values := input.ControlValues
	if values == nil {
		values = step.ControlValues
	}
	if wf.Origin != models.OriginExternal {
		values = controls.Sanitize(values, step.Type)
	}

	controlSchema, ok := h.schemas.ControlSchema(step.Type)
	if !ok {
		controlSchema = map[string]interface{}{"type": "object", "additionalProperties": true}
	}

	variableSchema, err := h.resolver.Resolve(wf, input.StepID)
	if err != nil {
		return nil, err
	}

	var payloadSchema *schema.Node
	if wf.Origin == models.OriginExternal && len(wf.PayloadSchema) > 0 {
		if payloadSchema, err = schema.FromMap(wf.PayloadSchema); err != nil {
			return nil, fmt.Errorf("decode payload schema: %w", err)
		}
	}

	resp, err := h.orchestrator.Execute(ctx, pipeline.Command{
		StepType:          step.Type,
		OrganizationID:    wf.OrganizationID,
		ControlValues:     values,
		ControlDataSchema: controlSchema,
		VariableSchema:    variableSchema,
		PreviewPayload:    input.PreviewPayload,
		PayloadSchema:     payloadSchema,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("step content validated", map[string]interface{}{
		"workflowId": input.WorkflowID,
		"stepId":     input.StepID,
		"issues":     len(resp.Issues),
	})

	return &Output{
		StepID:             step.StepID,
		StepType:           step.Type,
		FinalPayload:       resp.FinalPayload,
		FinalControlValues: resp.FinalControlValues,
		Issues:             resp.Issues,
		HasIssues:          resp.HasIssues(),
	}, nil
}

func classify(err error, input *Input) *apperrors.StandardError {
	var stdErr *apperrors.StandardError
	switch {
	case errors.As(err, &stdErr):
		return stdErr
	case errors.Is(err, ErrInvalidInput), errors.Is(err, pipeline.ErrInvalidCommand):
		return apperrors.NewInvalidInputError(err.Error())
	case errors.Is(err, store.ErrWorkflowNotFound):
		return apperrors.NewWorkflowNotFoundError(input.WorkflowID)
	case errors.Is(err, schema.ErrStepNotFound):
		return apperrors.NewStepNotFoundError(input.StepID)
	case errors.Is(err, placeholders.ErrUnsupportedControlValue):
		return apperrors.NewControlValueShapeInvalidError(err.Error())
	case errors.Is(err, document.ErrInvalidDocument):
		return apperrors.NewDocumentSchemaInvalidError(err.Error())
	case errors.Is(err, payload.ErrDepthExceeded):
		return apperrors.NewPayloadDepthExceededError(err.Error())
	case errors.Is(err, controls.ErrInvalidControlSchema):
		return apperrors.NewControlSchemaInvalidError(err.Error())
	case errors.Is(err, controls.ErrTierLookup):
		return apperrors.NewTierLookupFailedError(err)
	case errors.Is(err, store.ErrQueryFailed):
		return apperrors.NewQueryExecutionFailedError("workflow", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError(TaskType, err)
	default:
		return apperrors.NewExternalServiceError(TaskType, err)
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
