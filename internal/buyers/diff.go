package buyers

import (
	"encoding/json"
	"slices"
)

// FieldChange records one changed field in a history diff.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Diff computes the field-level change set between the stored record and the
// fields present in the update payload. Keys absent from the payload are
// skipped, as are the identity and the concurrency token. An empty result
// means the update was a no-op and no history entry should be written.
func Diff(prev *Buyer, in *UpdateInput) map[string]FieldChange {
	changes := make(map[string]FieldChange)

	str := func(field, from string, to *string) {
		if to != nil && *to != from {
			changes[field] = FieldChange{From: from, To: *to}
		}
	}
	// Optional string fields render "" as null so the audit trail
	// distinguishes cleared from set.
	optStr := func(field, from string, to *string) {
		if to != nil && *to != from {
			changes[field] = FieldChange{From: nullable(from), To: nullable(*to)}
		}
	}

	str("fullName", prev.FullName, in.FullName)
	optStr("email", prev.Email, in.Email)
	str("phone", prev.Phone, in.Phone)
	str("city", prev.City, in.City)
	str("propertyType", prev.PropertyType, in.PropertyType)
	optStr("bhk", prev.BHK, in.BHK)
	str("purpose", prev.Purpose, in.Purpose)
	diffBudget(changes, "budgetMin", prev.BudgetMin, in.BudgetMin)
	diffBudget(changes, "budgetMax", prev.BudgetMax, in.BudgetMax)
	str("timeline", prev.Timeline, in.Timeline)
	str("source", prev.Source, in.Source)
	str("status", prev.Status, in.Status)
	optStr("notes", prev.Notes, in.Notes)

	if in.Tags != nil && !slices.Equal(prev.Tags, *in.Tags) {
		changes["tags"] = FieldChange{From: tagsValue(prev.Tags), To: tagsValue(*in.Tags)}
	}

	return changes
}

// Apply merges the fields present in the payload onto a copy of the stored
// record, leaving absent fields untouched.
func Apply(prev *Buyer, in *UpdateInput) *Buyer {
	next := *prev
	if in.FullName != nil {
		next.FullName = *in.FullName
	}
	if in.Email != nil {
		next.Email = *in.Email
	}
	if in.Phone != nil {
		next.Phone = *in.Phone
	}
	if in.City != nil {
		next.City = *in.City
	}
	if in.PropertyType != nil {
		next.PropertyType = *in.PropertyType
	}
	if in.BHK != nil {
		next.BHK = *in.BHK
	}
	if in.Purpose != nil {
		next.Purpose = *in.Purpose
	}
	if in.BudgetMin != nil {
		next.BudgetMin = in.BudgetMin
	}
	if in.BudgetMax != nil {
		next.BudgetMax = in.BudgetMax
	}
	if in.Timeline != nil {
		next.Timeline = *in.Timeline
	}
	if in.Source != nil {
		next.Source = *in.Source
	}
	if in.Notes != nil {
		next.Notes = *in.Notes
	}
	if in.Tags != nil {
		next.Tags = *in.Tags
	}
	if in.Status != nil {
		next.Status = *in.Status
	}
	return &next
}

// MarshalDiff serializes a change set for the history table.
func MarshalDiff(changes map[string]FieldChange) json.RawMessage {
	payload, _ := json.Marshal(changes)
	return payload
}

func diffBudget(changes map[string]FieldChange, field string, from, to *int) {
	if to == nil {
		return
	}
	if from != nil && *from == *to {
		return
	}
	var fromVal any
	if from != nil {
		fromVal = *from
	}
	changes[field] = FieldChange{From: fromVal, To: *to}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func tagsValue(tags []string) any {
	if len(tags) == 0 {
		return nil
	}
	return tags
}
