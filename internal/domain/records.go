package domain

import "time"

// AssetStatus represents where an asset is in its life.
type AssetStatus string

// Asset statuses.
const (
	AssetStatusInUse   AssetStatus = "In Use"
	AssetStatusInStock AssetStatus = "In Stock"
	AssetStatusRetired AssetStatus = "Retired"
)

// Asset is an inventoried piece of hardware or software.
type Asset struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Category     string      `json:"category"`
	AssignedTo   string      `json:"assigned_to"`
	Status       AssetStatus `json:"status"`
	PurchaseDate string      `json:"purchase_date"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ChangeType classifies a change request.
type ChangeType string

// Change types.
const (
	ChangeTypeStandard  ChangeType = "Standard"
	ChangeTypeNormal    ChangeType = "Normal"
	ChangeTypeEmergency ChangeType = "Emergency"
)

// ChangeStatus represents the approval state of a change request.
type ChangeStatus string

// Change statuses.
const (
	ChangeStatusPending    ChangeStatus = "Pending"
	ChangeStatusApproved   ChangeStatus = "Approved"
	ChangeStatusInProgress ChangeStatus = "In Progress"
	ChangeStatusCompleted  ChangeStatus = "Completed"
	ChangeStatusRejected   ChangeStatus = "Rejected"
)

// ChangeRequest is a planned modification to a service.
type ChangeRequest struct {
	ID               string       `json:"id"`
	ShortDescription string       `json:"short_description"`
	Type             ChangeType   `json:"type"`
	Status           ChangeStatus `json:"status"`
	AssignedTo       string       `json:"assigned_to"`
	PlannedStartDate string       `json:"planned_start_date"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// AgreementType distinguishes customer, internal and supplier agreements.
type AgreementType string

// Agreement types.
const (
	AgreementSLA                  AgreementType = "SLA"
	AgreementOLA                  AgreementType = "OLA"
	AgreementUnderpinningContract AgreementType = "Underpinning Contract"
)

// AgreementStatus represents whether an agreement is in force.
type AgreementStatus string

// Agreement statuses.
const (
	AgreementStatusActive  AgreementStatus = "Active"
	AgreementStatusRetired AgreementStatus = "Retired"
	AgreementStatusDraft   AgreementStatus = "Draft"
)

// SLA is a target-versus-actual performance commitment.
type SLA struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      AgreementType   `json:"type"`
	Duration  string          `json:"duration"`
	Condition string          `json:"condition"`
	Target    float64         `json:"target"`
	Actual    float64         `json:"actual"`
	Status    AgreementStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Breached reports whether an active agreement is missing its target.
func (s *SLA) Breached() bool {
	return s.Status == AgreementStatusActive && s.Actual < s.Target
}
