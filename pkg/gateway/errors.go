package gateway

import (
	"errors"
	"fmt"

	"github.com/plaenen/commandgateway/pkg/validators"
)

var (
	// ErrConfiguration is returned by New when a handler cannot be exposed as an operation.
	ErrConfiguration = errors.New("configuration error")

	// ErrCommandMalformed is returned when an envelope fails structural validation.
	ErrCommandMalformed = errors.New("command malformed")

	// ErrCommandNotFound is returned when no handler matches the addressed command.
	ErrCommandNotFound = errors.New("command not found")

	// ErrCommandValidationFailed is returned when the payload does not match the handler's schema.
	ErrCommandValidationFailed = errors.New("command validation failed")

	// ErrCommandRejected is returned when an application rule rejects the command.
	ErrCommandRejected = errors.New("command rejected")

	// ErrUnknown is returned when the hand-off to the receiver fails.
	ErrUnknown = errors.New("unknown error")
)

var kindCodes = map[error]string{
	ErrConfiguration:           "ConfigurationError",
	ErrCommandMalformed:        "CommandMalformed",
	ErrCommandNotFound:         "CommandNotFound",
	ErrCommandValidationFailed: "CommandValidationFailed",
	ErrCommandRejected:         "CommandRejected",
	ErrUnknown:                 "UnknownError",
}

// Error is returned by every gateway operation. Kind is one of the Err*
// sentinels and is matched by errors.Is.
type Error struct {
	Kind    error
	Message string

	// Details maps a field path to its violation message. Only set for
	// CommandMalformed and CommandValidationFailed.
	Details map[string]string

	// Validations holds the field-level results behind Details.
	Validations validators.FieldValidationResults

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Code returns the stable name of the error kind, e.g. "CommandNotFound".
func (e *Error) Code() string {
	return Code(e.Kind)
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the kind of err. Errors not produced by the gateway are ErrUnknown.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ErrUnknown
}

// Code returns the stable name of an error kind or of the kind of a gateway error.
func Code(err error) string {
	if code, ok := kindCodes[err]; ok {
		return code
	}
	return kindCodes[KindOf(err)]
}
