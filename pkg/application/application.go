// Package application holds the registered application model: the command
// handlers exposed by each context and aggregate, and the cross-cutting rules
// every command must satisfy.
//
// An Application is assembled once with a Builder and is read-only afterwards,
// so it can be shared by concurrent requests without locking.
package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/plaenen/commandgateway/pkg/schema"
)

var (
	// ErrContextNotFound is returned when no handler is registered for a context.
	ErrContextNotFound = errors.New("context not found")

	// ErrAggregateNotFound is returned when a context has no such aggregate.
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrCommandNotFound is returned when an aggregate has no such command.
	ErrCommandNotFound = errors.New("command not found")

	// ErrInvalidHandler is returned when a handler descriptor cannot be registered.
	ErrInvalidHandler = errors.New("invalid handler")
)

// Key identifies a command handler.
type Key struct {
	Context   string
	Aggregate string
	Command   string
}

// String returns the dotted form "{context}.{aggregate}.{command}".
func (k Key) String() string {
	return fmt.Sprintf("%s.%s.%s", k.Context, k.Aggregate, k.Command)
}

// OperationName returns the API operation name "{context}_{aggregate}_{command}".
func (k Key) OperationName() string {
	return fmt.Sprintf("%s_%s_%s", k.Context, k.Aggregate, k.Command)
}

// HandlerDescriptor describes a registered command handler.
type HandlerDescriptor struct {
	Context   string
	Aggregate string
	Command   string

	// Schema declares the accepted payload. Nil means no schema was declared.
	Schema *schema.Schema
}

// Key returns the handler's lookup key.
func (h HandlerDescriptor) Key() Key {
	return Key{Context: h.Context, Aggregate: h.Aggregate, Command: h.Command}
}

// Application is the immutable, registered application model.
type Application struct {
	handlers map[Key]HandlerDescriptor
	// aggregates indexes aggregate names per context for not-found diagnostics.
	aggregates map[string]map[string]struct{}
	rules      []Rule
}

// Handler returns the handler registered for key.
func (a *Application) Handler(key Key) (HandlerDescriptor, bool) {
	h, ok := a.handlers[key]
	return h, ok
}

// Lookup returns the handler registered for key, or an error naming the first
// missing level (context, aggregate or command).
func (a *Application) Lookup(key Key) (HandlerDescriptor, error) {
	if h, ok := a.handlers[key]; ok {
		return h, nil
	}

	aggregates, ok := a.aggregates[key.Context]
	if !ok {
		return HandlerDescriptor{}, fmt.Errorf("%w: context '%s'", ErrContextNotFound, key.Context)
	}
	if _, ok := aggregates[key.Aggregate]; !ok {
		return HandlerDescriptor{}, fmt.Errorf("%w: aggregate '%s.%s'", ErrAggregateNotFound, key.Context, key.Aggregate)
	}
	return HandlerDescriptor{}, fmt.Errorf("%w: command '%s'", ErrCommandNotFound, key)
}

// Handlers returns all handlers ordered by key.
func (a *Application) Handlers() []HandlerDescriptor {
	out := make([]HandlerDescriptor, 0, len(a.handlers))
	for _, h := range a.handlers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

// Rules returns the application's cross-cutting command rules in registration order.
func (a *Application) Rules() []Rule {
	return a.rules
}

// Builder assembles an Application.
type Builder struct {
	handlers map[Key]HandlerDescriptor
	rules    []Rule
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{handlers: make(map[Key]HandlerDescriptor)}
}

// Register adds a command handler. Names are trimmed and must be alphanumeric;
// duplicate keys are rejected.
func (b *Builder) Register(h HandlerDescriptor) error {
	h.Context = strings.TrimSpace(h.Context)
	h.Aggregate = strings.TrimSpace(h.Aggregate)
	h.Command = strings.TrimSpace(h.Command)

	if h.Context == "" || h.Aggregate == "" || h.Command == "" {
		return fmt.Errorf("%w: context, aggregate and command names are required", ErrInvalidHandler)
	}
	for _, name := range []string{h.Context, h.Aggregate, h.Command} {
		if !govalidator.IsAlphanumeric(name) {
			return fmt.Errorf("%w: name '%s' must be alphanumeric", ErrInvalidHandler, name)
		}
	}

	key := h.Key()
	if _, exists := b.handlers[key]; exists {
		return fmt.Errorf("%w: handler already registered for %s", ErrInvalidHandler, key)
	}

	b.handlers[key] = h
	return nil
}

// MustRegister is like Register but panics on error.
func (b *Builder) MustRegister(h HandlerDescriptor) *Builder {
	if err := b.Register(h); err != nil {
		panic(err)
	}
	return b
}

// Use adds rules evaluated for every command, in the order given.
func (b *Builder) Use(rules ...Rule) *Builder {
	b.rules = append(b.rules, rules...)
	return b
}

// Build returns an immutable snapshot of the registered handlers and rules.
func (b *Builder) Build() *Application {
	app := &Application{
		handlers:   make(map[Key]HandlerDescriptor, len(b.handlers)),
		aggregates: make(map[string]map[string]struct{}),
		rules:      append([]Rule(nil), b.rules...),
	}

	for key, h := range b.handlers {
		app.handlers[key] = h
		if app.aggregates[key.Context] == nil {
			app.aggregates[key.Context] = make(map[string]struct{})
		}
		app.aggregates[key.Context][key.Aggregate] = struct{}{}
	}

	return app
}
