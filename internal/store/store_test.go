package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-content/internal/common/logger"
	"workflow-content/internal/models"
)

const orgQuery = `SELECT id, name, api_service_level FROM organizations WHERE id = \$1`

func orgRows(id, name, level string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "api_service_level"}).AddRow(id, name, level)
}

func TestOrganizationStore_FindByID_CacheMiss(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected models.ServiceLevel
	}{
		{name: "pro organization", level: "pro", expected: models.ServiceLevelPro},
		{name: "enterprise organization", level: "enterprise", expected: models.ServiceLevelEnterprise},
		{name: "missing level falls back to free", level: "", expected: models.ServiceLevelFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			redisClient, redisMock := redismock.NewClientMock()
			ctx := context.Background()

			redisMock.ExpectGet("org:org-1").RedisNil()
			mock.ExpectQuery(orgQuery).WithArgs("org-1").WillReturnRows(orgRows("org-1", "Acme", tt.level))

			expected := models.Organization{ID: "org-1", Name: "Acme", APIServiceLevel: tt.expected}
			cached, _ := json.Marshal(expected)
			redisMock.ExpectSet("org:org-1", cached, 5*time.Minute).SetVal("OK")

			s := NewOrganizationStore(db, redisClient, 0, logger.NewTestLogger(t))
			org, err := s.FindByID(ctx, "org-1")

			require.NoError(t, err)
			assert.Equal(t, &expected, org)
			assert.NoError(t, mock.ExpectationsWereMet())
			assert.NoError(t, redisMock.ExpectationsWereMet())
		})
	}
}

func TestOrganizationStore_FindByID_CacheHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	cached, _ := json.Marshal(models.Organization{ID: "org-1", APIServiceLevel: models.ServiceLevelBusiness})
	redisMock.ExpectGet("org:org-1").SetVal(string(cached))

	s := NewOrganizationStore(db, redisClient, time.Minute, logger.NewTestLogger(t))
	org, err := s.FindByID(context.Background(), "org-1")

	require.NoError(t, err)
	assert.Equal(t, models.ServiceLevelBusiness, org.APIServiceLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestOrganizationStore_FindByID_CacheErrorFallsThrough(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	redisMock.ExpectGet("org:org-1").SetErr(errors.New("connection refused"))
	mock.ExpectQuery(orgQuery).WithArgs("org-1").WillReturnRows(orgRows("org-1", "Acme", "free"))
	cached, _ := json.Marshal(models.Organization{ID: "org-1", Name: "Acme", APIServiceLevel: models.ServiceLevelFree})
	redisMock.ExpectSet("org:org-1", cached, 5*time.Minute).SetErr(errors.New("connection refused"))

	s := NewOrganizationStore(db, redisClient, 0, logger.NewTestLogger(t))
	org, err := s.FindByID(context.Background(), "org-1")

	require.NoError(t, err)
	assert.Equal(t, "Acme", org.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationStore_FindByID_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "unknown organization",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(orgQuery).WithArgs("org-1").
					WillReturnRows(sqlmock.NewRows([]string{"id", "name", "api_service_level"}))
			},
			wantErr: ErrOrganizationNotFound,
		},
		{
			name: "database failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(orgQuery).WithArgs("org-1").WillReturnError(errors.New("connection reset"))
			},
			wantErr: ErrQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			redisClient, redisMock := redismock.NewClientMock()
			redisMock.ExpectGet("org:org-1").RedisNil()
			tt.setup(mock)

			s := NewOrganizationStore(db, redisClient, 0, logger.NewTestLogger(t))
			org, err := s.FindByID(context.Background(), "org-1")

			assert.Nil(t, org)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestOrganizationStore_TTLAndInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(orgQuery).WithArgs("org-1").WillReturnRows(orgRows("org-1", "Acme", "pro"))
	mock.ExpectQuery(orgQuery).WithArgs("org-1").WillReturnRows(orgRows("org-1", "Acme", "enterprise"))

	s := NewOrganizationStore(db, redisClient, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	org, err := s.FindByID(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.ServiceLevelPro, org.APIServiceLevel)
	assert.True(t, mr.Exists("org:org-1"))
	assert.Equal(t, time.Minute, mr.TTL("org:org-1"))

	// served from cache, no query
	org, err = s.FindByID(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.ServiceLevelPro, org.APIServiceLevel)

	require.NoError(t, s.Invalidate(ctx, "org-1"))
	org, err = s.FindByID(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.ServiceLevelEnterprise, org.APIServiceLevel)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("org:org-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationStore_WithoutCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(orgQuery).WithArgs("org-1").WillReturnRows(orgRows("org-1", "Acme", "pro"))

	s := NewOrganizationStore(db, nil, 0, logger.NewNoOpLogger())
	org, err := s.FindByID(context.Background(), "org-1")

	require.NoError(t, err)
	assert.Equal(t, models.ServiceLevelPro, org.APIServiceLevel)
	assert.NoError(t, s.Invalidate(context.Background(), "org-1"))
}

const workflowQuery = `SELECT id, workflow_id, organization_id, name, origin, payload_schema, steps\s+FROM workflows\s+WHERE organization_id = \$1 AND \(id = \$2 OR workflow_id = \$2\)\s+LIMIT 1`

var workflowColumns = []string{"id", "workflow_id", "organization_id", "name", "origin", "payload_schema", "steps"}

func TestWorkflowStore_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	steps := `[{"_id":"s1","stepId":"welcome","type":"email","controlValues":{"subject":"Hi {{subscriber.firstName}}"}},
		{"_id":"s2","stepId":"wait","type":"delay","controlValues":{"amount":2,"unit":"days"}}]`
	payloadSchema := `{"type":"object","properties":{"orderId":{"type":"string"}}}`

	mock.ExpectQuery(workflowQuery).WithArgs("org-1", "onboarding").WillReturnRows(
		sqlmock.NewRows(workflowColumns).AddRow("wf-1", "onboarding", "org-1", "Onboarding", "external", []byte(payloadSchema), []byte(steps)),
	)

	wf, err := NewWorkflowStore(db).FindByID(context.Background(), "org-1", "onboarding")
	require.NoError(t, err)

	assert.Equal(t, "wf-1", wf.ID)
	assert.Equal(t, models.OriginExternal, wf.Origin)
	assert.Equal(t, "object", wf.PayloadSchema["type"])
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, models.StepTypeEmail, wf.Steps[0].Type)
	assert.Equal(t, "Hi {{subscriber.firstName}}", wf.Steps[0].ControlValues["subject"])
	assert.Equal(t, "wait", wf.Steps[1].StepID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowStore_FindByID_NullColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(workflowQuery).WithArgs("org-1", "wf-1").WillReturnRows(
		sqlmock.NewRows(workflowColumns).AddRow("wf-1", "onboarding", "org-1", "Onboarding", nil, nil, nil),
	)

	wf, err := NewWorkflowStore(db).FindByID(context.Background(), "org-1", "wf-1")
	require.NoError(t, err)

	assert.Equal(t, models.OriginDashboard, wf.Origin)
	assert.Nil(t, wf.PayloadSchema)
	assert.Empty(t, wf.Steps)
}

func TestWorkflowStore_FindByID_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "not found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(workflowQuery).WillReturnRows(sqlmock.NewRows(workflowColumns))
			},
			wantErr: ErrWorkflowNotFound,
		},
		{
			name: "query failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(workflowQuery).WillReturnError(errors.New("timeout"))
			},
			wantErr: ErrQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setup(mock)

			wf, err := NewWorkflowStore(db).FindByID(context.Background(), "org-1", "wf-1")
			assert.Nil(t, wf)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWorkflowStore_FindByID_CorruptSteps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(workflowQuery).WillReturnRows(
		sqlmock.NewRows(workflowColumns).AddRow("wf-1", "onboarding", "org-1", "Onboarding", "dashboard", nil, []byte(`{not json`)),
	)

	_, err = NewWorkflowStore(db).FindByID(context.Background(), "org-1", "wf-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrWorkflowNotFound)
}
