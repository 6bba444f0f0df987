// Package pipeline composes placeholder collection, validation, payload
// synthesis and control validation into one content validation call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"workflow-content/internal/common/logger"
	"workflow-content/internal/common/metrics"
	"workflow-content/internal/content/controls"
	"workflow-content/internal/content/payload"
	"workflow-content/internal/content/placeholders"
	"workflow-content/internal/content/schema"
	"workflow-content/internal/models"
)

var ErrInvalidCommand = errors.New("INVALID_CONTENT_COMMAND")

// Command is the input of one validation run. PreviewPayload and PayloadSchema
// are optional; PayloadSchema is set for externally authored workflows.
type Command struct {
	StepType          models.StepType
	OrganizationID    string
	ControlValues     map[string]interface{}
	ControlDataSchema map[string]interface{}
	VariableSchema    *schema.Node
	PreviewPayload    map[string]interface{}
	PayloadSchema     *schema.Node
}

type Orchestrator struct {
	collector *placeholders.Collector
	tiers     *controls.TierChecker
	log       logger.Logger
}

func NewOrchestrator(collector *placeholders.Collector, tiers *controls.TierChecker, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		collector: collector,
		tiers:     tiers,
		log:       log.WithFields(map[string]interface{}{"component": "content-pipeline"}),
	}
}

// Execute validates the control values of one step. Content problems are
// returned as issues; an error means the command itself was malformed or a
// collaborator failed.
func (o *Orchestrator) Execute(ctx context.Context, cmd Command) (*models.ValidatedContentResponse, error) {
	ctx, span := otel.Tracer("workflow-content/pipeline").Start(ctx, "content.validate")
	defer span.End()
	span.SetAttributes(attribute.String("step_type", string(cmd.StepType)))

	start := time.Now()
	defer func() {
		metrics.ContentValidationDuration.WithLabelValues(string(cmd.StepType)).Observe(time.Since(start).Seconds())
	}()
	metrics.ContentValidations.WithLabelValues(string(cmd.StepType)).Inc()

	resp, err := o.execute(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for _, list := range resp.Issues {
		for _, issue := range list {
			metrics.ContentIssues.WithLabelValues(string(issue.IssueType)).Inc()
		}
	}
	o.log.Debug("Content validated", map[string]interface{}{
		"stepType":   cmd.StepType,
		"issueCount": len(resp.Issues),
	})
	return resp, nil
}

func (o *Orchestrator) execute(ctx context.Context, cmd Command) (*models.ValidatedContentResponse, error) {
	if cmd.VariableSchema == nil {
		return nil, fmt.Errorf("%w: variable schema is required", ErrInvalidCommand)
	}
	if t, ok := cmd.ControlDataSchema["type"]; ok && t != schema.TypeObject {
		return nil, fmt.Errorf("%w: control schema must describe an object, got %v", ErrInvalidCommand, t)
	}

	aggregations, err := o.collector.Collect(cmd.ControlValues, placeholders.Options{PayloadSchema: cmd.PayloadSchema})
	if err != nil {
		return nil, err
	}
	validated := placeholders.Validate(cmd.VariableSchema, aggregations)

	defaultPayload, err := payload.Synthesize(validated)
	if err != nil {
		return nil, err
	}
	finalPayload := payload.DeepMerge(defaultPayload, cmd.PreviewPayload)

	merged := payload.DeepMerge(controls.Defaults(cmd.ControlDataSchema), cmd.ControlValues)
	finalValues, err := stripProblematic(merged, validated)
	if err != nil {
		return nil, err
	}

	schemaIssues, err := controls.Validate(cmd.ControlDataSchema, finalValues)
	if err != nil {
		return nil, err
	}

	tierIssues := models.Issues{}
	if o.tiers != nil && controls.AppliesTo(cmd.StepType) {
		tierIssues, err = o.tiers.Check(ctx, cmd.StepType, cmd.OrganizationID, finalValues)
		if err != nil {
			return nil, err
		}
	}

	issues := mergeIssues(
		illegalVariableIssues(validated),
		missingPayloadIssues(validated, defaultPayload, cmd.PreviewPayload),
		missingControlIssues(cmd.ControlDataSchema, cmd.ControlValues),
		schemaIssues,
		tierIssues,
	)

	return &models.ValidatedContentResponse{
		FinalPayload:       finalPayload,
		FinalControlValues: finalValues,
		Issues:             issues,
	}, nil
}

// mergeIssues concatenates per-field lists, drops repeats of the same issue
// and orders each list so the result does not depend on map iteration.
func mergeIssues(sets ...models.Issues) models.Issues {
	out := models.Issues{}
	seen := map[string]bool{}
	for _, set := range sets {
		for field, list := range set {
			for _, issue := range list {
				key := field + "\x00" + string(issue.IssueType) + "\x00" + issue.VariableName + "\x00" + issue.Message
				if seen[key] {
					continue
				}
				seen[key] = true
				out[field] = append(out[field], issue)
			}
		}
	}
	for _, list := range out {
		sort.SliceStable(list, func(i, j int) bool {
			a, b := list[i], list[j]
			if a.IssueType != b.IssueType {
				return a.IssueType < b.IssueType
			}
			if a.VariableName != b.VariableName {
				return a.VariableName < b.VariableName
			}
			return a.Message < b.Message
		})
	}
	return out
}
