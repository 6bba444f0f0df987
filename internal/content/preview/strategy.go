package preview

import (
	"context"

	"workflow-content/internal/common/logger"
	"workflow-content/internal/content/controls"
	"workflow-content/internal/content/document"
	"workflow-content/internal/content/payload"
	"workflow-content/internal/content/pipeline"
	"workflow-content/internal/content/schema"
	"workflow-content/internal/models"
)

// dashboardStrategy sanitizes values to the canonical step shape and expands
// the email body against the example payload before rendering.
type dashboardStrategy struct {
	orchestrator *pipeline.Orchestrator
	expander     *document.Expander
	log          logger.Logger
}

func (d *dashboardStrategy) name() string { return string(models.OriginDashboard) }

func (d *dashboardStrategy) prepare(ctx context.Context, in strategyInput) (*prepared, error) {
	values := controls.Sanitize(in.controlValues, in.step.Type)

	resp, err := d.orchestrator.Execute(ctx, pipeline.Command{
		StepType:          in.step.Type,
		OrganizationID:    in.workflow.OrganizationID,
		ControlValues:     values,
		ControlDataSchema: in.controlSchema,
		VariableSchema:    in.variableSchema,
		PreviewPayload:    in.previewPayload,
	})
	if err != nil {
		return nil, err
	}

	final := resp.FinalControlValues
	if in.step.Type == models.StepTypeEmail {
		final = d.expandBody(final, resp.FinalPayload)
	}
	return &prepared{controlValues: final, payload: resp.FinalPayload, issues: resp.Issues}, nil
}

// expandBody resolves loops and show conditions of a rich-text body. A body
// that cannot be expanded is rendered as is.
func (d *dashboardStrategy) expandBody(values, data map[string]interface{}) map[string]interface{} {
	raw, ok := values["body"]
	if !ok || !document.IsDocument(raw) {
		return values
	}

	doc, err := document.Parse(raw)
	if err == nil {
		doc, err = d.expander.Expand(doc, data)
	}
	var body string
	if err == nil {
		body, err = document.Marshal(document.Hydrate(doc))
	}
	if err != nil {
		d.log.Warn("Failed to expand email body, rendering unexpanded", map[string]interface{}{"error": err.Error()})
		return values
	}

	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = v
	}
	out["body"] = body
	return out
}

// externalStrategy keeps code-authored values as they are and seeds the payload
// from the declared payload schema.
type externalStrategy struct {
	orchestrator *pipeline.Orchestrator
	log          logger.Logger
}

func (e *externalStrategy) name() string { return string(models.OriginExternal) }

func (e *externalStrategy) prepare(ctx context.Context, in strategyInput) (*prepared, error) {
	var payloadSchema *schema.Node
	if len(in.workflow.PayloadSchema) > 0 {
		n, err := schema.FromMap(in.workflow.PayloadSchema)
		if err != nil {
			return nil, err
		}
		payloadSchema = n
	}

	resp, err := e.orchestrator.Execute(ctx, pipeline.Command{
		StepType:          in.step.Type,
		OrganizationID:    in.workflow.OrganizationID,
		ControlValues:     in.controlValues,
		ControlDataSchema: in.controlSchema,
		VariableSchema:    in.variableSchema,
		PreviewPayload:    in.previewPayload,
		PayloadSchema:     payloadSchema,
	})
	if err != nil {
		return nil, err
	}

	example := resp.FinalPayload
	if payloadSchema != nil {
		mock, err := payload.MockFromSchema(payloadSchema, "payload")
		if err != nil {
			return nil, err
		}
		if m, ok := mock.(map[string]interface{}); ok {
			example = payload.DeepMerge(map[string]interface{}{"payload": m}, example)
		}
	}
	return &prepared{controlValues: resp.FinalControlValues, payload: example, issues: resp.Issues}, nil
}
