// Package feedback renders gateway outcomes as client-facing feedback: an
// overall message plus per-field messages a form can attach to its inputs.
package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/plaenen/commandgateway/pkg/gateway"
	"github.com/plaenen/commandgateway/pkg/validators"
)

type MessageType string

const (
	MessageTypeInfo    MessageType = "info"
	MessageTypeWarning MessageType = "warning"
	MessageTypeError   MessageType = "error"
	MessageTypeSuccess MessageType = "success"
)

// Feedback is the message returned to a client for one command invocation.
// Fields maps a field path to its feedback entries.
type Feedback struct {
	MessageID   string                      `json:"message_id"`
	Message     string                      `json:"message"`
	MessageType MessageType                 `json:"message_type"`
	Code        string                      `json:"code,omitempty"`
	CommandID   string                      `json:"command_id,omitempty"`
	Fields      map[string][]*FieldFeedback `json:"field_feedback"`
	Timestamp   time.Time                   `json:"timestamp"`
}

type FieldFeedback struct {
	FieldName         string `json:"field_name"`
	FieldValue        string `json:"field_value"`
	ValidationMessage string `json:"validation_message"`
	NeedsUserAction   bool   `json:"needs_user_action"`
	SuggestedAction   string `json:"suggested_action"`
}

func New(message string, messageType MessageType) *Feedback {
	return &Feedback{
		MessageID:   uuid.NewString(),
		Message:     message,
		MessageType: messageType,
		Fields:      make(map[string][]*FieldFeedback),
		Timestamp:   time.Now().UTC(),
	}
}

// Add appends a feedback entry for fieldName.
func (f *Feedback) Add(fieldName, fieldValue, validationMessage string, needsUserAction bool, suggestedAction string) {
	f.Fields[fieldName] = append(f.Fields[fieldName], &FieldFeedback{
		FieldName:         fieldName,
		FieldValue:        fieldValue,
		ValidationMessage: validationMessage,
		NeedsUserAction:   needsUserAction,
		SuggestedAction:   suggestedAction,
	})
}

// UserActionCount counts the entries the user has to act on.
func (f *Feedback) UserActionCount() int {
	count := 0
	for _, entries := range f.Fields {
		for _, entry := range entries {
			if entry.NeedsUserAction {
				count++
			}
		}
	}
	return count
}

func (f *Feedback) MarshalJSON() ([]byte, error) {
	type plain Feedback
	return json.Marshal(struct {
		*plain
		UserActionCount int `json:"user_action_count"`
	}{(*plain)(f), f.UserActionCount()})
}

// MustMarshalJSON marshals f, falling back to a generic error feedback.
func (f *Feedback) MustMarshalJSON() []byte {
	data, err := json.Marshal(f)
	if err != nil {
		data, err = json.Marshal(New("Failed to marshal feedback", MessageTypeError))
		if err != nil {
			panic(err)
		}
	}
	return data
}

// Accepted returns the feedback for an accepted command.
func Accepted(result gateway.Result) *Feedback {
	f := New("Command accepted", MessageTypeSuccess)
	f.CommandID = result.ID
	return f
}

// FromValidations summarizes field validation results.
func FromValidations(v validators.FieldValidationResults) *Feedback {
	hasErrors := false
	hasWarnings := false
	for _, field := range v {
		for _, validation := range field.Validations {
			switch {
			case !validation.IsValid:
				hasErrors = true
			case validation.ValidationCode == validators.ValidationCodeUnspecified:
				hasWarnings = true
			}
		}
	}

	var f *Feedback
	switch {
	case hasErrors:
		f = New(plural(len(v), "Validation failed"), MessageTypeError)
	case hasWarnings:
		f = New(plural(len(v), "Validation warnings"), MessageTypeWarning)
	default:
		f = New("Validation completed", MessageTypeInfo)
	}

	for _, field := range v {
		for _, validation := range field.Validations {
			f.Add(field.FieldName, validation.Value, validation.Message, !validation.IsValid, validation.SuggestedAction)
		}
	}
	return f
}

// FromError converts a gateway error. Field entries are taken from the
// error's validations, or from its details when none are attached.
func FromError(err error) *Feedback {
	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		f := New("Command could not be processed", MessageTypeError)
		f.Code = gateway.Code(err)
		return f
	}

	var f *Feedback
	if len(gerr.Validations) > 0 {
		f = FromValidations(gerr.Validations)
	} else {
		f = New(message(gerr), MessageTypeError)
		for field, msg := range gerr.Details {
			f.Add(field, "", msg, true, "")
		}
	}
	f.Code = gerr.Code()

	// Hand-off failures carry internal causes the client should not see.
	if errors.Is(gerr, gateway.ErrUnknown) {
		f.Message = "Command could not be processed"
	}
	return f
}

func message(err *gateway.Error) string {
	if err.Message != "" {
		return err.Message
	}
	return err.Kind.Error()
}

func plural(n int, message string) string {
	if n == 1 {
		return message
	}
	return fmt.Sprintf("%s for %d fields", message, n)
}
