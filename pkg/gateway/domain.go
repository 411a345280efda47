package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/plaenen/commandgateway/pkg/application"
	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/schema"
	"github.com/plaenen/commandgateway/pkg/validators"
)

// DomainValidator checks an envelope against the registered application:
// the handler must exist, the payload must match its schema and every
// application rule must accept the command.
type DomainValidator struct {
	app        *application.Application
	validators map[application.Key]*schema.Validator
}

// NewDomainValidator compiles the schema of every handler in app.
func NewDomainValidator(app *application.Application) (*DomainValidator, error) {
	v := &DomainValidator{
		app:        app,
		validators: make(map[application.Key]*schema.Validator),
	}

	var errs []error
	for _, h := range app.Handlers() {
		if h.Schema == nil {
			continue
		}
		compiled, err := schema.Compile(h.Schema)
		if err != nil {
			errs = append(errs, fmt.Errorf("command '%s': %w", h.Key(), err))
			continue
		}
		v.validators[h.Key()] = compiled
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return v, nil
}

// Validate returns CommandNotFound, CommandValidationFailed or CommandRejected,
// checked in that order.
func (v *DomainValidator) Validate(ctx context.Context, env *command.Envelope, client command.ClientMetadata) error {
	key := application.Key{
		Context:   env.ContextIdentifier.Name,
		Aggregate: env.AggregateIdentifier.Name,
		Command:   env.Name,
	}

	if _, err := v.app.Lookup(key); err != nil {
		return newError(ErrCommandNotFound, err.Error(), err)
	}

	if compiled, ok := v.validators[key]; ok {
		if err := compiled.Validate(env.Data); err != nil {
			violations := validators.NewValidationBuilder().Add(validators.NewValidationResult(false, "data",
				validators.WithMessage(err.Error()),
				validators.WithValidationCode(validators.ValidationCodeSchema),
				validators.WithSuggestedAction("Please provide data matching the command schema."),
			)).BuildErrors()

			return &Error{
				Kind:        ErrCommandValidationFailed,
				Message:     err.Error(),
				Details:     violations.Details(),
				Validations: violations,
				Err:         err,
			}
		}
	}

	for _, rule := range v.app.Rules() {
		if err := rule.Check(ctx, env, client); err != nil {
			return newError(ErrCommandRejected, err.Error(), err)
		}
	}

	return nil
}
