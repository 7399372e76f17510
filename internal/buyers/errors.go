package buyers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a buyer id does not exist.
	ErrNotFound = errors.New("buyer not found")

	// ErrForbidden is returned when the actor is neither owner nor admin.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when the concurrency token does not match the
	// stored record; the client must refetch and retry.
	ErrConflict = errors.New("record has been modified by another user")

	// ErrRowLimitExceeded aborts an import whose filtered row count exceeds
	// the batch ceiling.
	ErrRowLimitExceeded = fmt.Errorf("maximum %d rows allowed per import", MaxImportRows)

	// ErrNoFile is returned when an import request carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrMalformedCSV marks batch-fatal parse failures of the import blob.
	ErrMalformedCSV = errors.New("malformed csv input")
)

// FieldError is a single validation violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every violation found in one payload.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Messages flattens the violations into per-row import error strings.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return msgs
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}
