package buyers

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\d{10,15}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	// Report violations under the wire field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field constraint plus the two cross-field invariants
// and reports all violations together. A nil return means the input is valid.
func Validate(in Input) *ValidationError {
	verr := &ValidationError{}
	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				verr.add(fe.Field(), messageFor(fe))
			}
		} else {
			verr.add("", err.Error())
		}
	}
	CheckInvariants(in.PropertyType, in.BHK, in.BudgetMin, in.BudgetMax, verr)
	if verr.empty() {
		return nil
	}
	return verr
}

// CheckInvariants applies the two cross-field rules: BHK is required exactly
// for residential property types, and budgetMax must not be below budgetMin.
// The import pipeline re-runs this after coercion with the same rule set.
func CheckInvariants(propertyType, bhk string, budgetMin, budgetMax *int, verr *ValidationError) {
	if IsResidential(propertyType) && bhk == "" {
		verr.add("bhk", "BHK is required for Apartment and Villa")
	}
	if budgetMin != nil && budgetMax != nil && *budgetMax < *budgetMin {
		verr.add("budgetMax", "Maximum budget must be greater than or equal to minimum budget")
	}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "invalid email format"
	case "digits":
		return "must be 10-15 digits"
	case "oneof":
		return "must be one of " + strings.Join(strings.Split(fe.Param(), " "), ", ")
	case "gt":
		return "must be a positive integer"
	default:
		return "is invalid"
	}
}
