package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"workflow-content/internal/models"
)

var ErrWorkflowNotFound = errors.New("WORKFLOW_NOT_FOUND")

// WorkflowStore reads workflows whose steps and payload schema live in JSONB columns.
type WorkflowStore struct {
	db *sql.DB
}

func NewWorkflowStore(db *sql.DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

// FindByID accepts either the internal id or the user facing workflow id.
func (s *WorkflowStore) FindByID(ctx context.Context, organizationID, workflowID string) (*models.Workflow, error) {
	query := `SELECT id, workflow_id, organization_id, name, origin, payload_schema, steps
		FROM workflows
		WHERE organization_id = $1 AND (id = $2 OR workflow_id = $2)
		LIMIT 1`

	var (
		wf            models.Workflow
		origin        sql.NullString
		payloadSchema []byte
		steps         []byte
	)
	err := s.db.QueryRowContext(ctx, query, organizationID, workflowID).Scan(
		&wf.ID, &wf.WorkflowID, &wf.OrganizationID, &wf.Name, &origin, &payloadSchema, &steps,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	wf.Origin = models.OriginDashboard
	if origin.Valid && origin.String != "" {
		wf.Origin = models.WorkflowOrigin(origin.String)
	}

	if len(payloadSchema) > 0 {
		if err := json.Unmarshal(payloadSchema, &wf.PayloadSchema); err != nil {
			return nil, fmt.Errorf("decode payload schema of %s: %w", workflowID, err)
		}
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &wf.Steps); err != nil {
			return nil, fmt.Errorf("decode steps of %s: %w", workflowID, err)
		}
	}

	return &wf, nil
}
