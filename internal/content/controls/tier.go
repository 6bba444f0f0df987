package controls

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"workflow-content/internal/models"
)

var (
	ErrInvalidControlSchema = errors.New("CONTROL_SCHEMA_INVALID")
	ErrTierLookup           = errors.New("TIER_LOOKUP_FAILED")
)

// OrganizationFinder looks up the organization owning a workflow.
type OrganizationFinder interface {
	FindByID(ctx context.Context, organizationID string) (*models.Organization, error)
}

// DefaultTierLimits are the longest delay or digest window per service level, in days.
var DefaultTierLimits = map[models.ServiceLevel]int{
	models.ServiceLevelFree:       30,
	models.ServiceLevelPro:        90,
	models.ServiceLevelBusiness:   90,
	models.ServiceLevelEnterprise: 90,
}

var unitDurations = map[string]time.Duration{
	"seconds": time.Second,
	"minutes": time.Minute,
	"hours":   time.Hour,
	"days":    24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
	"months":  30 * 24 * time.Hour,
}

// TierChecker enforces the plan based ceiling on delay and digest durations.
type TierChecker struct {
	orgs   OrganizationFinder
	limits map[models.ServiceLevel]int
}

func NewTierChecker(orgs OrganizationFinder, limits map[models.ServiceLevel]int) *TierChecker {
	if len(limits) == 0 {
		limits = DefaultTierLimits
	}
	return &TierChecker{orgs: orgs, limits: limits}
}

// AppliesTo reports whether steps of this type are subject to tier limits.
func AppliesTo(stepType models.StepType) bool {
	switch stepType {
	case models.StepTypeDigest, models.StepTypeDelay, models.StepTypeInApp:
		return true
	}
	return false
}

// Check returns TIER_LIMIT_EXCEEDED issues for durations above the
// organization's ceiling. The organization is only fetched when values carry
// a duration.
func (c *TierChecker) Check(ctx context.Context, stepType models.StepType, organizationID string, values map[string]interface{}) (models.Issues, error) {
	issues := models.Issues{}
	if !AppliesTo(stepType) {
		return issues, nil
	}

	durations := map[string]float64{}
	if d, ok := days(values["amount"], values["unit"]); ok {
		durations["amount"] = d
	}
	if window, ok := values["lookBackWindow"].(map[string]interface{}); ok {
		if d, ok := days(window["amount"], window["unit"]); ok {
			durations["lookBackWindow.amount"] = d
		}
	}
	if len(durations) == 0 || c.orgs == nil {
		return issues, nil
	}

	org, err := c.orgs.FindByID(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTierLookup, err)
	}
	if org == nil {
		return nil, fmt.Errorf("%w: organization %s not found", ErrTierLookup, organizationID)
	}

	maxDays, ok := c.limits[org.APIServiceLevel]
	if !ok {
		maxDays = c.limits[models.ServiceLevelFree]
	}
	for field, d := range durations {
		if d > float64(maxDays) {
			issues[field] = append(issues[field], models.ContentIssue{
				IssueType: models.IssueTierLimitExceeded,
				Message: fmt.Sprintf("The maximum delay allowed is %d days. Please contact our support team to discuss extending this limit.",
					maxDays),
			})
		}
	}
	return issues, nil
}

// days converts an amount of unit into days.
func days(amount, unit interface{}) (float64, bool) {
	u, ok := unit.(string)
	if !ok {
		return 0, false
	}
	per, ok := unitDurations[strings.ToLower(strings.TrimSpace(u))]
	if !ok {
		return 0, false
	}

	var n float64
	switch a := amount.(type) {
	case float64:
		n = a
	case int:
		n = float64(a)
	case int64:
		n = float64(a)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	return n * per.Hours() / 24, true
}
