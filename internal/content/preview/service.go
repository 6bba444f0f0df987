// Package preview renders a step with example data. Dashboard and externally
// authored workflows use different strategies to prepare controls and payload.
package preview

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"workflow-content/internal/common/logger"
	"workflow-content/internal/common/metrics"
	"workflow-content/internal/content/document"
	"workflow-content/internal/content/pipeline"
	"workflow-content/internal/content/schema"
	"workflow-content/internal/models"
)

var ErrStepNotFound = errors.New("STEP_NOT_FOUND")

// ControlSchemaProvider returns the control schema of a step type.
type ControlSchemaProvider interface {
	ControlSchema(stepType models.StepType) (map[string]interface{}, bool)
}

// Request asks for a preview of one step. ControlValues replaces the stored
// values when set; PreviewPayload is merged over the generated example.
type Request struct {
	Workflow       *models.Workflow
	StepID         string
	ControlValues  map[string]interface{}
	PreviewPayload map[string]interface{}
}

type Response struct {
	Result                RenderResult           `json:"result"`
	PreviewPayloadExample map[string]interface{} `json:"previewPayloadExample"`
	Issues                models.Issues          `json:"issues"`
}

// prepared is what a strategy hands to the renderer.
type prepared struct {
	controlValues map[string]interface{}
	payload       map[string]interface{}
	issues        models.Issues
}

type strategy interface {
	name() string
	prepare(ctx context.Context, in strategyInput) (*prepared, error)
}

type strategyInput struct {
	workflow       *models.Workflow
	step           *models.Step
	controlValues  map[string]interface{}
	controlSchema  map[string]interface{}
	variableSchema *schema.Node
	previewPayload map[string]interface{}
}

type Service struct {
	resolver  *schema.Resolver
	schemas   ControlSchemaProvider
	renderer  Renderer
	dashboard strategy
	external  strategy
	log       logger.Logger
}

func NewService(
	orchestrator *pipeline.Orchestrator,
	resolver *schema.Resolver,
	schemas ControlSchemaProvider,
	expander *document.Expander,
	renderer Renderer,
	log logger.Logger,
) *Service {
	log = log.WithFields(map[string]interface{}{"component": "step-preview"})
	return &Service{
		resolver:  resolver,
		schemas:   schemas,
		renderer:  renderer,
		dashboard: &dashboardStrategy{orchestrator: orchestrator, expander: expander, log: log},
		external:  &externalStrategy{orchestrator: orchestrator, log: log},
		log:       log,
	}
}

// Preview resolves the step's variables, prepares controls and an example
// payload with the strategy matching the workflow origin, then renders it.
// Render failures are returned unchanged so callers can inspect BridgeError.
func (s *Service) Preview(ctx context.Context, req Request) (*Response, error) {
	ctx, span := otel.Tracer("workflow-content/preview").Start(ctx, "content.preview")
	defer span.End()

	if req.Workflow == nil {
		return nil, fmt.Errorf("%w: workflow is required", ErrStepNotFound)
	}
	step, ok := req.Workflow.FindStep(req.StepID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, req.StepID)
	}

	strat := s.dashboard
	if req.Workflow.Origin == models.OriginExternal {
		strat = s.external
	}
	span.SetAttributes(
		attribute.String("strategy", strat.name()),
		attribute.String("step_type", string(step.Type)),
	)

	variableSchema, err := s.resolver.Resolve(req.Workflow, req.StepID)
	if err != nil {
		return nil, err
	}

	controlSchema, _ := s.schemas.ControlSchema(step.Type)
	values := req.ControlValues
	if values == nil {
		values = step.ControlValues
	}

	prep, err := strat.prepare(ctx, strategyInput{
		workflow:       req.Workflow,
		step:           step,
		controlValues:  values,
		controlSchema:  controlSchema,
		variableSchema: variableSchema,
		previewPayload: req.PreviewPayload,
	})
	if err != nil {
		metrics.StepPreviews.WithLabelValues(strat.name(), "error").Inc()
		return nil, err
	}

	result, err := s.renderer.Render(ctx, RenderRequest{
		WorkflowID:    req.Workflow.WorkflowID,
		StepID:        step.StepID,
		StepType:      step.Type,
		ControlValues: prep.controlValues,
		Payload:       section(prep.payload, "payload"),
		Subscriber:    section(prep.payload, "subscriber"),
		State:         previousState(req.Workflow, step, prep.payload),
	})
	if err != nil {
		metrics.StepPreviews.WithLabelValues(strat.name(), "error").Inc()
		s.log.Error("Step preview failed", map[string]interface{}{
			"workflowId": req.Workflow.WorkflowID,
			"stepId":     step.StepID,
			"error":      err.Error(),
		})
		return nil, err
	}

	metrics.StepPreviews.WithLabelValues(strat.name(), "success").Inc()
	return &Response{
		Result:                *result,
		PreviewPayloadExample: prep.payload,
		Issues:                prep.issues,
	}, nil
}

func section(payload map[string]interface{}, key string) map[string]interface{} {
	m, _ := payload[key].(map[string]interface{})
	if m == nil {
		m = map[string]interface{}{}
	}
	return m
}

// previousState lists example outputs for every step before target, taken from
// the steps section of the example payload.
func previousState(wf *models.Workflow, target *models.Step, payload map[string]interface{}) []StepState {
	steps := section(payload, "steps")
	state := []StepState{}
	for _, s := range wf.Steps[:wf.StepIndex(target.StepID)] {
		outputs, _ := steps[s.StepID].(map[string]interface{})
		if outputs == nil {
			outputs = map[string]interface{}{}
		}
		state = append(state, StepState{
			StepID:  s.StepID,
			Outputs: outputs,
			State:   map[string]string{"status": "completed"},
		})
	}
	return state
}
