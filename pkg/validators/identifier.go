package validators

import (
	"fmt"

	"github.com/asaskevich/govalidator"
)

// ValidateRequired checks that value is not empty
func ValidateRequired(fieldName string, value string) *ValidationResult {
	if len(value) == 0 {
		defaultOptions := []ValidationOption{
			WithValue(value),
			WithMessage(fmt.Sprintf("%s is required.", fieldName)),
			WithSuggestedAction(fmt.Sprintf("Please provide a value for %s.", fieldName)),
			WithValidationCode(ValidationCodeRequired),
		}
		return NewValidationResult(false, fieldName, defaultOptions...)
	}

	defaultOptions := []ValidationOption{
		WithValue(value),
		WithValidationCode(ValidationCodeSuccess),
	}
	return NewValidationResult(true, fieldName, defaultOptions...)
}

// ValidateName checks that value is a non-empty alphanumeric name, as used for
// context, aggregate and command names
func ValidateName(fieldName string, value string) *ValidationResult {
	if result := ValidateRequired(fieldName, value); !result.IsValid {
		return result
	}

	if !govalidator.IsAlphanumeric(value) {
		defaultOptions := []ValidationOption{
			WithValue(value),
			WithMessage(fmt.Sprintf("%s must be alphanumeric.", fieldName)),
			WithSuggestedAction(fmt.Sprintf("Please use only letters and digits for %s.", fieldName)),
			WithValidationCode(ValidationCodeInvalid),
		}
		return NewValidationResult(false, fieldName, defaultOptions...)
	}

	defaultOptions := []ValidationOption{
		WithValue(value),
		WithValidationCode(ValidationCodeSuccess),
	}
	return NewValidationResult(true, fieldName, defaultOptions...)
}

// ValidateUUID checks that value is a UUID
func ValidateUUID(fieldName string, value string) *ValidationResult {
	if result := ValidateRequired(fieldName, value); !result.IsValid {
		return result
	}

	if !govalidator.IsUUID(value) {
		defaultOptions := []ValidationOption{
			WithValue(value),
			WithMessage(fmt.Sprintf("%s must be a UUID.", fieldName)),
			WithSuggestedAction(fmt.Sprintf("Please provide %s in the form 'xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx'.", fieldName)),
			WithValidationCode(ValidationCodeInvalid),
		}
		return NewValidationResult(false, fieldName, defaultOptions...)
	}

	defaultOptions := []ValidationOption{
		WithValue(value),
		WithValidationCode(ValidationCodeSuccess),
	}
	return NewValidationResult(true, fieldName, defaultOptions...)
}

// ValidatePresent checks that a structured value was supplied
func ValidatePresent(fieldName string, present bool) *ValidationResult {
	if !present {
		defaultOptions := []ValidationOption{
			WithMessage(fmt.Sprintf("%s is required.", fieldName)),
			WithSuggestedAction(fmt.Sprintf("Please provide %s as an object.", fieldName)),
			WithValidationCode(ValidationCodeRequired),
		}
		return NewValidationResult(false, fieldName, defaultOptions...)
	}

	return NewValidationResult(true, fieldName, WithValidationCode(ValidationCodeSuccess))
}
