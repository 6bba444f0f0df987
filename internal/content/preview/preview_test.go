package preview

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-content/internal/common/logger"
	"workflow-content/internal/content/controls"
	"workflow-content/internal/content/document"
	"workflow-content/internal/content/liquid"
	"workflow-content/internal/content/pipeline"
	"workflow-content/internal/content/placeholders"
	"workflow-content/internal/content/schema"
	"workflow-content/internal/content/variables"
	"workflow-content/internal/models"
)

type staticSchemas map[models.StepType]map[string]interface{}

func (s staticSchemas) ControlSchema(t models.StepType) (map[string]interface{}, bool) {
	m, ok := s[t]
	return m, ok
}

type bridgeCapture struct {
	query bridgeQuery
	body  map[string]interface{}
	sig   string
}

type bridgeQuery struct {
	action, workflowID, stepID string
}

func newBridgeServer(t *testing.T, capture *bridgeCapture, status int, response string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		capture.query = bridgeQuery{action: q.Get("action"), workflowID: q.Get("workflowId"), stepID: q.Get("stepId")}
		capture.sig = r.Header.Get("X-Bridge-Signature")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &capture.body))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
}

func createTestService(t *testing.T, bridgeURL string) *Service {
	log := logger.NewTestLogger(t)
	engine := liquid.NewEngine()
	collector := placeholders.NewCollector(variables.NewParser(engine))
	orchestrator := pipeline.NewOrchestrator(collector, controls.NewTierChecker(nil, nil), log)
	resolver := schema.NewResolver(nil, collector)
	schemas := staticSchemas{
		models.StepTypeEmail: {
			"type": "object",
			"properties": map[string]interface{}{
				"subject": map[string]interface{}{"type": "string"},
				"body":    map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"subject", "body"},
		},
	}
	bridge := NewBridgeClient(BridgeConfig{URL: bridgeURL, Secret: "s3cret", Timeout: 2 * time.Second}, nil, log)
	return NewService(orchestrator, resolver, schemas, document.NewExpander(engine), bridge, log)
}

const loopBody = `{"type":"doc","content":[
  {"type":"for","attrs":{"each":"payload.items"},"content":[
    {"type":"paragraph","content":[{"type":"variable","attrs":{"id":"payload.items.name"}}]}
  ]}
]}`

func createTestWorkflow(origin models.WorkflowOrigin) *models.Workflow {
	return &models.Workflow{
		ID:             "wf-1",
		WorkflowID:     "order-shipped",
		OrganizationID: "org-1",
		Origin:         origin,
		Steps: []models.Step{
			{ID: "s0", StepID: "in-app", Type: models.StepTypeInApp, ControlValues: map[string]interface{}{"body": "x"}},
			{
				ID:     "s1",
				StepID: "email",
				Type:   models.StepTypeEmail,
				ControlValues: map[string]interface{}{
					"subject": "Hi {{subscriber.firstName}}",
					"body":    loopBody,
					"junk":    "kept only for code-authored workflows",
				},
			},
		},
	}
}

func TestService_Preview_Dashboard(t *testing.T) {
	capture := &bridgeCapture{}
	server := newBridgeServer(t, capture, http.StatusOK, `{"outputs":{"subject":"Hi Ann","body":"<p>pen</p>"}}`)
	defer server.Close()

	resp, err := createTestService(t, server.URL).Preview(context.Background(), Request{
		Workflow: createTestWorkflow(models.OriginDashboard),
		StepID:   "email",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StepTypeEmail, resp.Result.Type)
	assert.Equal(t, "Hi Ann", resp.Result.Preview["subject"])
	assert.Equal(t, bridgeQuery{action: "preview", workflowID: "order-shipped", stepID: "email"}, capture.query)
	assert.True(t, strings.HasPrefix(capture.sig, "t="))

	controlsSent := capture.body["controls"].(map[string]interface{})
	assert.NotContains(t, controlsSent, "junk")
	assert.Contains(t, controlsSent["body"], "{{payload.items[0].name}}")

	items := resp.PreviewPayloadExample["payload"].(map[string]interface{})["items"]
	assert.Equal(t, []interface{}{map[string]interface{}{"name": "{{payload.items.0.name}}"}}, items)

	state := capture.body["state"].([]interface{})
	require.Len(t, state, 1)
	assert.Equal(t, "in-app", state[0].(map[string]interface{})["stepId"])
}

func TestService_Preview_External(t *testing.T) {
	capture := &bridgeCapture{}
	server := newBridgeServer(t, capture, http.StatusOK, `{"outputs":{}}`)
	defer server.Close()

	wf := createTestWorkflow(models.OriginExternal)
	wf.PayloadSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"orderId": map[string]interface{}{"type": "string", "default": "A-1"},
			"items": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "object", "properties": map[string]interface{}{"name": map[string]interface{}{"type": "string"}}},
			},
		},
	}

	resp, err := createTestService(t, server.URL).Preview(context.Background(), Request{
		Workflow:       wf,
		StepID:         "email",
		PreviewPayload: map[string]interface{}{"subscriber": map[string]interface{}{"firstName": "Ann"}},
	})
	require.NoError(t, err)

	example := resp.PreviewPayloadExample
	assert.Equal(t, "A-1", example["payload"].(map[string]interface{})["orderId"])
	assert.Equal(t, "Ann", example["subscriber"].(map[string]interface{})["firstName"])
	assert.Contains(t, capture.body["controls"], "junk")
}

func TestService_Preview_BridgeError(t *testing.T) {
	capture := &bridgeCapture{}
	server := newBridgeServer(t, capture, http.StatusBadRequest,
		`{"code":"STEP_EXECUTION_FAILED","message":"subject is undefined","data":{"line":3}}`)
	defer server.Close()

	_, err := createTestService(t, server.URL).Preview(context.Background(), Request{
		Workflow: createTestWorkflow(models.OriginDashboard),
		StepID:   "email",
	})
	require.Error(t, err)

	var bridgeErr *BridgeError
	require.True(t, errors.As(err, &bridgeErr))
	assert.Equal(t, http.StatusBadRequest, bridgeErr.Status)
	assert.Equal(t, "STEP_EXECUTION_FAILED", bridgeErr.Code)
	assert.Equal(t, "subject is undefined", bridgeErr.Message)
	assert.Equal(t, map[string]interface{}{"line": float64(3)}, bridgeErr.Data)
	assert.ErrorIs(t, err, ErrBridgeExecution)
}

func TestService_Preview_StepNotFound(t *testing.T) {
	_, err := createTestService(t, "http://127.0.0.1:0").Preview(context.Background(), Request{
		Workflow: createTestWorkflow(models.OriginDashboard),
		StepID:   "missing",
	})
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestBridgeClient_Unreachable(t *testing.T) {
	client := NewBridgeClient(BridgeConfig{URL: "http://127.0.0.1:1", Timeout: time.Second}, nil, logger.NewNoOpLogger())

	_, err := client.Render(context.Background(), RenderRequest{WorkflowID: "w", StepID: "s"})

	var bridgeErr *BridgeError
	require.True(t, errors.As(err, &bridgeErr))
	assert.Equal(t, "BRIDGE_UNREACHABLE", bridgeErr.Code)
}
