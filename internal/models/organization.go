// internal/models/organization.go
package models

// ServiceLevel is the billing tier of an organization.
type ServiceLevel string

const (
	ServiceLevelFree       ServiceLevel = "free"
	ServiceLevelPro        ServiceLevel = "pro"
	ServiceLevelBusiness   ServiceLevel = "business"
	ServiceLevelEnterprise ServiceLevel = "enterprise"
)

type Organization struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	APIServiceLevel ServiceLevel `json:"apiServiceLevel"`
}
