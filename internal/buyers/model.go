// Package buyers implements the buyer-lead domain: validation and coercion,
// optimistic-concurrency updates with field-level history diffs, and the bulk
// CSV import/export pipeline.
package buyers

import (
	"time"
)

// Closed value sets for the enum fields. Anything outside these sets fails
// validation; nothing is silently defaulted.
var (
	Cities        = []string{"Chandigarh", "Mohali", "Zirakpur", "Panchkula", "Other"}
	PropertyTypes = []string{"Apartment", "Villa", "Plot", "Office", "Retail"}
	BHKs          = []string{"1", "2", "3", "4", "Studio"}
	Purposes      = []string{"Buy", "Rent"}
	Timelines     = []string{"0-3m", "3-6m", ">6m", "Exploring"}
	Sources       = []string{"Website", "Referral", "Walk-in", "Call", "Other"}
	Statuses      = []string{"New", "Qualified", "Contacted", "Visited", "Negotiation", "Converted", "Dropped"}
)

// StatusNew is the default status assigned at creation and import.
const StatusNew = "New"

// Buyer is a lead record. Optional string fields use "" for absent; optional
// budgets use nil.
type Buyer struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone"`
	City         string    `json:"city"`
	PropertyType string    `json:"propertyType"`
	BHK          string    `json:"bhk,omitempty"`
	Purpose      string    `json:"purpose"`
	BudgetMin    *int      `json:"budgetMin,omitempty"`
	BudgetMax    *int      `json:"budgetMax,omitempty"`
	Timeline     string    `json:"timeline"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	Tags         []string  `json:"tags"`
	OwnerID      string    `json:"ownerId"`
	OwnerName    string    `json:"ownerName,omitempty"`
	OwnerEmail   string    `json:"ownerEmail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Input is the validated field set accepted when creating a buyer, either
// from a form payload or from a coerced CSV row.
type Input struct {
	FullName     string   `json:"fullName" validate:"required,min=2,max=80"`
	Email        string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone        string   `json:"phone" validate:"required,digits"`
	City         string   `json:"city" validate:"required,oneof=Chandigarh Mohali Zirakpur Panchkula Other"`
	PropertyType string   `json:"propertyType" validate:"required,oneof=Apartment Villa Plot Office Retail"`
	BHK          string   `json:"bhk,omitempty" validate:"omitempty,oneof=1 2 3 4 Studio"`
	Purpose      string   `json:"purpose" validate:"required,oneof=Buy Rent"`
	BudgetMin    *int     `json:"budgetMin,omitempty" validate:"omitempty,gt=0"`
	BudgetMax    *int     `json:"budgetMax,omitempty" validate:"omitempty,gt=0"`
	Timeline     string   `json:"timeline" validate:"required,oneof=0-3m 3-6m >6m Exploring"`
	Source       string   `json:"source" validate:"required,oneof=Website Referral Walk-in Call Other"`
	Notes        string   `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Tags         []string `json:"tags,omitempty"`
	Status       string   `json:"status,omitempty" validate:"omitempty,oneof=New Qualified Contacted Visited Negotiation Converted Dropped"`
}

// UpdateInput is the payload for PUT. Nil means the field was not provided
// and must be left untouched; optional string fields are cleared by sending
// an empty string. UpdatedAt is the concurrency token the client last
// observed, in any of the accepted wire forms.
type UpdateInput struct {
	FullName     *string   `json:"fullName"`
	Email        *string   `json:"email"`
	Phone        *string   `json:"phone"`
	City         *string   `json:"city"`
	PropertyType *string   `json:"propertyType"`
	BHK          *string   `json:"bhk"`
	Purpose      *string   `json:"purpose"`
	BudgetMin    *int      `json:"budgetMin"`
	BudgetMax    *int      `json:"budgetMax"`
	Timeline     *string   `json:"timeline"`
	Source       *string   `json:"source"`
	Notes        *string   `json:"notes"`
	Tags         *[]string `json:"tags"`
	Status       *string   `json:"status"`
	UpdatedAt    any       `json:"updatedAt"`
}

// PatchOnly reports whether the payload touches only the lightweight fields
// (status and tags) allowed to change without a full validated payload.
func (in *UpdateInput) PatchOnly() bool {
	return in.FullName == nil && in.Email == nil && in.Phone == nil &&
		in.City == nil && in.PropertyType == nil && in.BHK == nil &&
		in.Purpose == nil && in.BudgetMin == nil && in.BudgetMax == nil &&
		in.Timeline == nil && in.Source == nil && in.Notes == nil
}

// IsResidential reports whether the property type requires a BHK value.
func IsResidential(propertyType string) bool {
	return propertyType == "Apartment" || propertyType == "Villa"
}

// NewBuyer materializes a validated input into a record owned by the actor.
func NewBuyer(id string, in Input, ownerID string, now time.Time) *Buyer {
	status := in.Status
	if status == "" {
		status = StatusNew
	}
	return &Buyer{
		ID:           id,
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		City:         in.City,
		PropertyType: in.PropertyType,
		BHK:          in.BHK,
		Purpose:      in.Purpose,
		BudgetMin:    in.BudgetMin,
		BudgetMax:    in.BudgetMax,
		Timeline:     in.Timeline,
		Source:       in.Source,
		Status:       status,
		Notes:        in.Notes,
		Tags:         in.Tags,
		OwnerID:      ownerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func isOneOf(value string, set []string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}
