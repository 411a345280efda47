// Package validators produces field-level validation results for command
// envelopes and payloads.
package validators

import (
	"sort"
	"strings"
)

// ValidationCode represents the type of validation result
type ValidationCode string

const (
	ValidationCodeUnspecified ValidationCode = "unspecified"
	ValidationCodeSuccess     ValidationCode = "success"
	ValidationCodeRequired    ValidationCode = "required"
	ValidationCodeInvalid     ValidationCode = "invalid"
	ValidationCodeSchema      ValidationCode = "schema"
)

// ValidationOption customizes a ValidationResult
type ValidationOption func(*ValidationResult)

// ValidationResult is the outcome of checking one field
type ValidationResult struct {
	IsValid         bool           `json:"is_valid"`
	FieldName       string         `json:"field_name"`
	Value           string         `json:"value,omitempty"`
	Message         string         `json:"message,omitempty"`
	SuggestedAction string         `json:"suggested_action,omitempty"`
	ValidationCode  ValidationCode `json:"validation_code"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// WithValue sets the offending value for display
func WithValue(value string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.Value = value
	}
}

// WithMaskedValue sets the value for display with all but the last characters masked
func WithMaskedValue(value string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.Value = MaskString(value)
	}
}

// WithMessage sets the validation message
func WithMessage(message string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.Message = message
	}
}

// WithSuggestedAction sets the action the caller should take
func WithSuggestedAction(action string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.SuggestedAction = action
	}
}

// WithValidationCode sets the validation code
func WithValidationCode(code ValidationCode) ValidationOption {
	return func(vr *ValidationResult) {
		vr.ValidationCode = code
	}
}

// WithMetadata adds a metadata entry
func WithMetadata(key string, value any) ValidationOption {
	return func(vr *ValidationResult) {
		if vr.Metadata == nil {
			vr.Metadata = make(map[string]any)
		}
		vr.Metadata[key] = value
	}
}

// NewValidationResult creates a ValidationResult for fieldName
func NewValidationResult(isValid bool, fieldName string, options ...ValidationOption) *ValidationResult {
	vr := &ValidationResult{
		IsValid:        isValid,
		FieldName:      fieldName,
		ValidationCode: ValidationCodeUnspecified,
	}

	for _, option := range options {
		option(vr)
	}

	return vr
}

// FieldValidations groups validation results of one field
type FieldValidations struct {
	FieldName   string              `json:"field_name"`
	Validations []*ValidationResult `json:"validations"`
}

// HasErrors returns true if any validation result for this field is invalid
func (f *FieldValidations) HasErrors() bool {
	for _, validation := range f.Validations {
		if !validation.IsValid {
			return true
		}
	}
	return false
}

// FieldValidationResults is a collection of field validations ordered by field name
type FieldValidationResults []*FieldValidations

// HasErrors returns true if any field has validation errors
func (f FieldValidationResults) HasErrors() bool {
	for _, fieldValidation := range f {
		if fieldValidation.HasErrors() {
			return true
		}
	}
	return false
}

// Messages returns the messages of all invalid results
func (f FieldValidationResults) Messages() []string {
	var messages []string
	for _, fieldValidation := range f {
		for _, validation := range fieldValidation.Validations {
			if !validation.IsValid {
				messages = append(messages, validation.Message)
			}
		}
	}
	return messages
}

// Details maps every invalid field to its first message
func (f FieldValidationResults) Details() map[string]string {
	details := make(map[string]string)
	for _, fieldValidation := range f {
		for _, validation := range fieldValidation.Validations {
			if !validation.IsValid {
				details[fieldValidation.FieldName] = validation.Message
				break
			}
		}
	}
	return details
}

// Error joins the messages of all invalid results
func (f FieldValidationResults) Error() string {
	return strings.Join(f.Messages(), " ")
}

// ValidationBuilder collects validation results
type ValidationBuilder struct {
	results map[string][]*ValidationResult
}

// NewValidationBuilder creates a new validation builder
func NewValidationBuilder() *ValidationBuilder {
	return &ValidationBuilder{
		results: make(map[string][]*ValidationResult),
	}
}

// Add adds a validation result with additional options applied
func (b *ValidationBuilder) Add(result *ValidationResult, options ...ValidationOption) *ValidationBuilder {
	for _, option := range options {
		option(result)
	}
	b.results[result.FieldName] = append(b.results[result.FieldName], result)
	return b
}

// HasErrors returns true if any added result is invalid
func (b *ValidationBuilder) HasErrors() bool {
	for _, results := range b.results {
		for _, result := range results {
			if !result.IsValid {
				return true
			}
		}
	}
	return false
}

// Build returns all validation results grouped by field
func (b *ValidationBuilder) Build() FieldValidationResults {
	fieldValidations := make(FieldValidationResults, 0, len(b.results))
	for _, fieldName := range b.fieldNames() {
		fieldValidations = append(fieldValidations, &FieldValidations{
			FieldName:   fieldName,
			Validations: b.results[fieldName],
		})
	}
	return fieldValidations
}

// BuildErrors returns only the invalid results grouped by field
func (b *ValidationBuilder) BuildErrors() FieldValidationResults {
	fieldValidations := make(FieldValidationResults, 0)
	for _, fieldName := range b.fieldNames() {
		var errorResults []*ValidationResult
		for _, result := range b.results[fieldName] {
			if !result.IsValid {
				errorResults = append(errorResults, result)
			}
		}
		if len(errorResults) > 0 {
			fieldValidations = append(fieldValidations, &FieldValidations{
				FieldName:   fieldName,
				Validations: errorResults,
			})
		}
	}
	return fieldValidations
}

func (b *ValidationBuilder) fieldNames() []string {
	names := make([]string, 0, len(b.results))
	for fieldName := range b.results {
		names = append(names, fieldName)
	}
	sort.Strings(names)
	return names
}
