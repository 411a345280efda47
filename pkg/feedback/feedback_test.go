package feedback_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/feedback"
	"github.com/plaenen/commandgateway/pkg/gateway"
	"github.com/plaenen/commandgateway/pkg/validators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValidations(t *testing.T) {
	t.Run("single field with several results", func(t *testing.T) {
		v := validators.FieldValidationResults{
			{
				FieldName: "email",
				Validations: []*validators.ValidationResult{
					validators.NewValidationResult(false, "email",
						validators.WithMessage("Email is required"),
						validators.WithSuggestedAction("Please enter your email address"),
						validators.WithValidationCode(validators.ValidationCodeRequired),
					),
					validators.NewValidationResult(false, "email",
						validators.WithValue("invalid-email"),
						validators.WithMessage("Email format is invalid"),
						validators.WithValidationCode(validators.ValidationCodeInvalid),
					),
				},
			},
		}

		f := feedback.FromValidations(v)
		assert.Equal(t, feedback.MessageTypeError, f.MessageType)
		assert.Equal(t, "Validation failed", f.Message)
		require.Len(t, f.Fields["email"], 2)
		assert.Equal(t, "invalid-email", f.Fields["email"][1].FieldValue)
		assert.True(t, f.Fields["email"][0].NeedsUserAction)
		assert.Equal(t, 2, f.UserActionCount())
	})

	t.Run("warnings only", func(t *testing.T) {
		v := validators.FieldValidationResults{
			{FieldName: "a", Validations: []*validators.ValidationResult{validators.NewValidationResult(true, "a")}},
			{FieldName: "b", Validations: []*validators.ValidationResult{validators.NewValidationResult(true, "b")}},
		}

		f := feedback.FromValidations(v)
		assert.Equal(t, feedback.MessageTypeWarning, f.MessageType)
		assert.Equal(t, "Validation warnings for 2 fields", f.Message)
		assert.Zero(t, f.UserActionCount())
	})

	t.Run("empty", func(t *testing.T) {
		f := feedback.FromValidations(nil)
		assert.Equal(t, feedback.MessageTypeInfo, f.MessageType)
		assert.Empty(t, f.Fields)
	})
}

func TestFromError(t *testing.T) {
	t.Run("malformed envelope", func(t *testing.T) {
		err := gateway.EnvelopeValidator{}.Validate(&command.Envelope{
			ContextIdentifier:   command.ContextIdentifier{Name: "shop"},
			AggregateIdentifier: command.AggregateIdentifier{Name: "cart", ID: "not-a-uuid"},
			Name:                "addItem",
			Data:                map[string]any{},
		})
		require.Error(t, err)

		f := feedback.FromError(err)
		assert.Equal(t, "CommandMalformed", f.Code)
		assert.Equal(t, feedback.MessageTypeError, f.MessageType)
		require.Len(t, f.Fields["aggregateIdentifier.id"], 1)
		assert.Equal(t, "not-a-uuid", f.Fields["aggregateIdentifier.id"][0].FieldValue)
		assert.NotEmpty(t, f.Fields["aggregateIdentifier.id"][0].SuggestedAction)
	})

	t.Run("details without validations", func(t *testing.T) {
		f := feedback.FromError(&gateway.Error{
			Kind:    gateway.ErrCommandValidationFailed,
			Message: "quantity is required",
			Details: map[string]string{"data": "quantity is required"},
		})
		assert.Equal(t, "CommandValidationFailed", f.Code)
		assert.Equal(t, "quantity is required", f.Message)
		require.Len(t, f.Fields["data"], 1)
	})

	t.Run("unknown error hides cause", func(t *testing.T) {
		f := feedback.FromError(&gateway.Error{
			Kind:    gateway.ErrUnknown,
			Message: "dial tcp 10.0.0.7:4222: connection refused",
		})
		assert.Equal(t, "UnknownError", f.Code)
		assert.Equal(t, "Command could not be processed", f.Message)
	})

	t.Run("foreign error", func(t *testing.T) {
		f := feedback.FromError(errors.New("boom"))
		assert.Equal(t, "UnknownError", f.Code)
	})
}

func TestMarshalJSON(t *testing.T) {
	f := feedback.Accepted(gateway.Result{ID: "cmd-1"})
	f.Add("quantity", "0", "Quantity must be positive", true, "")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(f.MustMarshalJSON(), &decoded))

	assert.Equal(t, "success", decoded["message_type"])
	assert.Equal(t, "cmd-1", decoded["command_id"])
	assert.Equal(t, float64(1), decoded["user_action_count"])
	assert.Contains(t, decoded["field_feedback"], "quantity")
}
