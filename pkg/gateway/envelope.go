package gateway

import (
	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/validators"
)

// EnvelopeValidator checks the generic shape shared by every command. It never
// looks at handler-specific payload fields.
type EnvelopeValidator struct{}

// Validate returns a CommandMalformed error if env is structurally invalid.
func (EnvelopeValidator) Validate(env *command.Envelope) error {
	if env == nil {
		return newError(ErrCommandMalformed, "command is missing", nil)
	}

	b := validators.NewValidationBuilder()
	b.Add(validators.ValidateName("contextIdentifier.name", env.ContextIdentifier.Name))
	b.Add(validators.ValidateName("aggregateIdentifier.name", env.AggregateIdentifier.Name))
	b.Add(validators.ValidateUUID("aggregateIdentifier.id", env.AggregateIdentifier.ID))
	b.Add(validators.ValidateName("name", env.Name))
	b.Add(validators.ValidatePresent("data", env.Data != nil))

	if !b.HasErrors() {
		return nil
	}

	violations := b.BuildErrors()
	return &Error{
		Kind:        ErrCommandMalformed,
		Message:     violations.Error(),
		Details:     violations.Details(),
		Validations: violations,
	}
}
