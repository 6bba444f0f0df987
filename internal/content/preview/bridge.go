package preview

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	commonhttp "workflow-content/internal/common/http"
	"workflow-content/internal/common/logger"
	"workflow-content/internal/models"
)

var ErrBridgeExecution = errors.New("BRIDGE_EXECUTION_FAILED")

// BridgeError carries a failure reported by the user-hosted bridge endpoint.
// The upstream status, code, message and data are kept as received.
type BridgeError struct {
	Status  int                    `json:"status"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge error [%d %s]: %s", e.Status, e.Code, e.Message)
}

func (e *BridgeError) Unwrap() error {
	return ErrBridgeExecution
}

// RenderRequest is what the bridge needs to render one step.
type RenderRequest struct {
	WorkflowID    string                 `json:"workflowId"`
	StepID        string                 `json:"stepId"`
	StepType      models.StepType        `json:"-"`
	ControlValues map[string]interface{} `json:"controls"`
	Payload       map[string]interface{} `json:"payload"`
	Subscriber    map[string]interface{} `json:"subscriber"`
	State         []StepState            `json:"state"`
}

// StepState is the output of a step that ran before the previewed one.
type StepState struct {
	StepID  string                 `json:"stepId"`
	Outputs map[string]interface{} `json:"outputs"`
	State   map[string]string      `json:"state"`
}

type RenderResult struct {
	Type    models.StepType        `json:"type"`
	Preview map[string]interface{} `json:"preview"`
}

// Renderer renders a step with resolved controls and example data.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (*RenderResult, error)
}

type BridgeConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// BridgeClient invokes the preview action of a bridge endpoint over HTTP.
type BridgeClient struct {
	client *commonhttp.Client
	config BridgeConfig
	log    logger.Logger
}

func NewBridgeClient(config BridgeConfig, client *commonhttp.Client, log logger.Logger) *BridgeClient {
	if client == nil {
		client = commonhttp.NewClient(config.Timeout)
	}
	return &BridgeClient{
		client: client,
		config: config,
		log:    log.WithFields(map[string]interface{}{"component": "bridge-client"}),
	}
}

type bridgeResponse struct {
	Outputs map[string]interface{} `json:"outputs"`
}

func (b *BridgeClient) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	endpoint, err := url.Parse(b.config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bridge url: %v", ErrBridgeExecution, err)
	}
	q := endpoint.Query()
	q.Set("action", "preview")
	q.Set("workflowId", req.WorkflowID)
	q.Set("stepId", req.StepID)
	endpoint.RawQuery = q.Encode()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrBridgeExecution, err)
	}

	transactionID := uuid.New().String()
	headers := map[string]string{
		"X-Transaction-Id":   transactionID,
		"X-Bridge-Signature": b.sign(body, time.Now()),
	}

	resp, err := b.client.PostRaw(ctx, endpoint.String(), headers, body)
	if err != nil {
		b.log.Error("Bridge request failed", map[string]interface{}{
			"transactionId": transactionID,
			"error":         err.Error(),
		})
		return nil, &BridgeError{Code: "BRIDGE_UNREACHABLE", Message: err.Error()}
	}

	if !resp.OK() {
		bridgeErr := &BridgeError{Status: resp.StatusCode}
		if err := json.Unmarshal(resp.Body, bridgeErr); err != nil || bridgeErr.Message == "" {
			bridgeErr.Message = string(resp.Body)
		}
		bridgeErr.Status = resp.StatusCode
		if bridgeErr.Code == "" {
			bridgeErr.Code = "BRIDGE_UNEXPECTED_RESPONSE"
		}
		b.log.Warn("Bridge returned an error", map[string]interface{}{
			"transactionId": transactionID,
			"status":        resp.StatusCode,
			"code":          bridgeErr.Code,
		})
		return nil, bridgeErr
	}

	var out bridgeResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, &BridgeError{Status: resp.StatusCode, Code: "BRIDGE_UNEXPECTED_RESPONSE", Message: err.Error()}
	}
	if out.Outputs == nil {
		out.Outputs = map[string]interface{}{}
	}
	return &RenderResult{Type: req.StepType, Preview: out.Outputs}, nil
}

// sign returns "t=<unix millis>,v1=<hex hmac>" over the timestamp and body.
func (b *BridgeClient) sign(body []byte, now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(b.config.Secret))
	mac.Write([]byte(ts + "." + string(body)))
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
