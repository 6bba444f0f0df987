package controls

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-content/internal/models"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		stepType models.StepType
		input    map[string]interface{}
		want     map[string]interface{}
	}{
		{
			name:     "email empty body becomes empty document",
			stepType: models.StepTypeEmail,
			input:    map[string]interface{}{"subject": "Hi", "body": "", "junk": 1},
			want:     map[string]interface{}{"subject": "Hi", "body": EmptyDocument},
		},
		{
			name:     "email missing body becomes empty document",
			stepType: models.StepTypeEmail,
			input:    map[string]interface{}{"subject": "Hi", "body": nil},
			want:     map[string]interface{}{"subject": "Hi", "body": EmptyDocument},
		},
		{
			name:     "email array body kept for the collector to reject",
			stepType: models.StepTypeEmail,
			input:    map[string]interface{}{"subject": "Hi", "body": []interface{}{"a"}},
			want:     map[string]interface{}{"subject": "Hi", "body": []interface{}{"a"}},
		},
		{
			name:     "email numeric body kept",
			stepType: models.StepTypeEmail,
			input:    map[string]interface{}{"subject": "Hi", "body": 7.0},
			want:     map[string]interface{}{"subject": "Hi", "body": 7.0},
		},
		{
			name:     "email html body untouched",
			stepType: models.StepTypeEmail,
			input:    map[string]interface{}{"editorType": "html", "body": ""},
			want:     map[string]interface{}{"editorType": "html", "body": ""},
		},
		{
			name:     "in-app drops actions without label",
			stepType: models.StepTypeInApp,
			input: map[string]interface{}{
				"body":            "b",
				"primaryAction":   map[string]interface{}{"label": ""},
				"secondaryAction": map[string]interface{}{"label": "Later"},
				"redirect":        map[string]interface{}{"url": ""},
			},
			want: map[string]interface{}{
				"body":            "b",
				"secondaryAction": map[string]interface{}{"label": "Later"},
			},
		},
		{
			name:     "digest numeric strings",
			stepType: models.StepTypeDigest,
			input: map[string]interface{}{
				"amount":         "5",
				"unit":           "days",
				"lookBackWindow": map[string]interface{}{"amount": "2", "unit": "hours"},
			},
			want: map[string]interface{}{
				"amount":         5.0,
				"unit":           "days",
				"lookBackWindow": map[string]interface{}{"amount": 2.0, "unit": "hours"},
			},
		},
		{
			name:     "digest cron drops fixed window",
			stepType: models.StepTypeDigest,
			input:    map[string]interface{}{"cron": "0 9 * * *", "amount": 5, "unit": "days"},
			want:     map[string]interface{}{"cron": "0 9 * * *"},
		},
		{
			name:     "delay defaults type",
			stepType: models.StepTypeDelay,
			input:    map[string]interface{}{"amount": "{{payload.wait}}", "unit": "hours", "skip": nil},
			want:     map[string]interface{}{"type": "regular", "amount": "{{payload.wait}}", "unit": "hours"},
		},
		{
			name:     "custom keeps everything but nil",
			stepType: models.StepTypeCustom,
			input:    map[string]interface{}{"anything": "x", "gone": nil},
			want:     map[string]interface{}{"anything": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input, tt.stepType))
		})
	}
}

func createTestControlSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"subject": map[string]interface{}{"type": "string", "minLength": 1},
			"body":    map[string]interface{}{"type": "string", "default": "Hello"},
			"amount":  map[string]interface{}{"type": "number"},
			"options": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"tone": map[string]interface{}{"type": "string", "default": "neutral"}},
			},
		},
		"required": []interface{}{"subject", "body"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
		want   models.Issues
	}{
		{
			name:   "valid",
			values: map[string]interface{}{"subject": "Hi", "body": "b"},
			want:   models.Issues{},
		},
		{
			name:   "missing required field reported once",
			values: map[string]interface{}{"body": "b"},
			want: models.Issues{
				"subject": {{IssueType: models.IssueMissingValue, Message: "Subject is required"}},
			},
		},
		{
			name:   "empty string is missing not illegal",
			values: map[string]interface{}{"subject": "", "body": "b"},
			want: models.Issues{
				"subject": {{IssueType: models.IssueMissingValue, Message: "Subject is required"}},
			},
		},
		{
			name:   "wrong type is illegal",
			values: map[string]interface{}{"subject": "Hi", "body": "b", "amount": "{{payload.n}}"},
			want: models.Issues{
				"amount": {{IssueType: models.IssueIllegalVariable, Message: "Invalid type. Expected: number, given: string"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := Validate(createTestControlSchema(), tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, issues)
		})
	}
}

func TestValidate_InvalidSchema(t *testing.T) {
	_, err := Validate(map[string]interface{}{"type": 12}, map[string]interface{}{})
	assert.ErrorIs(t, err, ErrInvalidControlSchema)
}

func TestDefaultsAndRequired(t *testing.T) {
	s := createTestControlSchema()

	assert.Equal(t, map[string]interface{}{
		"body":    "Hello",
		"options": map[string]interface{}{"tone": "neutral"},
	}, Defaults(s))
	assert.Equal(t, []string{"body", "subject"}, Required(s))
}

type fakeOrganizations struct {
	org   *models.Organization
	err   error
	calls int
}

func (f *fakeOrganizations) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	f.calls++
	return f.org, f.err
}

func TestTierChecker_Check(t *testing.T) {
	tests := []struct {
		name      string
		stepType  models.StepType
		level     models.ServiceLevel
		values    map[string]interface{}
		wantIssue bool
		wantCalls int
	}{
		{
			name:      "free tier over limit",
			stepType:  models.StepTypeDigest,
			level:     models.ServiceLevelFree,
			values:    map[string]interface{}{"amount": 100.0, "unit": "days"},
			wantIssue: true,
			wantCalls: 1,
		},
		{
			name:      "business tier within limit",
			stepType:  models.StepTypeDigest,
			level:     models.ServiceLevelBusiness,
			values:    map[string]interface{}{"amount": 60.0, "unit": "days"},
			wantCalls: 1,
		},
		{
			name:      "months count as thirty days",
			stepType:  models.StepTypeDelay,
			level:     models.ServiceLevelFree,
			values:    map[string]interface{}{"amount": "2", "unit": "months"},
			wantIssue: true,
			wantCalls: 1,
		},
		{
			name:      "no duration skips lookup",
			stepType:  models.StepTypeInApp,
			level:     models.ServiceLevelFree,
			values:    map[string]interface{}{"body": "x"},
			wantCalls: 0,
		},
		{
			name:      "other step types are never checked",
			stepType:  models.StepTypeEmail,
			level:     models.ServiceLevelFree,
			values:    map[string]interface{}{"amount": 100.0, "unit": "days"},
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orgs := &fakeOrganizations{org: &models.Organization{ID: "org-1", APIServiceLevel: tt.level}}
			checker := NewTierChecker(orgs, nil)

			issues, err := checker.Check(context.Background(), tt.stepType, "org-1", tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, orgs.calls)
			if tt.wantIssue {
				require.Len(t, issues["amount"], 1)
				assert.Equal(t, models.IssueTierLimitExceeded, issues["amount"][0].IssueType)
			} else {
				assert.Empty(t, issues)
			}
		})
	}
}

func TestTierChecker_LookupFailure(t *testing.T) {
	checker := NewTierChecker(&fakeOrganizations{err: errors.New("connection refused")}, nil)

	_, err := checker.Check(context.Background(), models.StepTypeDelay, "org-1",
		map[string]interface{}{"amount": 1.0, "unit": "days"})
	assert.ErrorIs(t, err, ErrTierLookup)
}
