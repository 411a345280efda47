// Package gateway turns registered command handlers into callable operations.
//
// Every request runs the same pipeline: the envelope is checked for
// structural validity, then against the application model, then enriched
// with identity and causal metadata and handed to a Receiver. Any failure
// stops the pipeline and is reported as an *Error of a distinct kind.
// Callers only learn the command id; processing happens downstream.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plaenen/commandgateway/pkg/application"
	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/inputtype"
	"github.com/plaenen/commandgateway/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/plaenen/commandgateway/pkg/gateway"

// Request is the caller-supplied part of a command. The transport layer has
// already authenticated the client; the gateway trusts Client as given.
type Request struct {
	// ContextIdentifier and AggregateIdentifier address the aggregate. Empty
	// names are taken from the invoked operation.
	ContextIdentifier   command.ContextIdentifier
	AggregateIdentifier command.AggregateIdentifier

	Client command.ClientMetadata
	Data   map[string]any
}

// Result acknowledges that a command was accepted for processing.
type Result struct {
	ID string `json:"id"`
}

// Operation is the callable API surface of one command handler.
type Operation struct {
	Name string
	Key  application.Key

	// Input is nil when the operation takes no data.
	Input *inputtype.Type

	// Output holds the single id field of Result.
	Output []inputtype.Field

	descriptor *inputtype.Descriptor
	gateway    *Gateway
}

// Descriptor returns the derived type description of the operation.
func (o *Operation) Descriptor() *inputtype.Descriptor {
	return o.descriptor
}

// Invoke submits a command to the operation's handler.
func (o *Operation) Invoke(ctx context.Context, req Request) (Result, error) {
	if o.Input == nil && len(req.Data) > 0 {
		err := newError(ErrCommandMalformed, fmt.Sprintf("operation '%s' takes no data", o.Name), nil)
		o.gateway.recordRejected(ctx, o.Key.String(), err)
		return Result{}, err
	}
	if req.ContextIdentifier.Name == "" {
		req.ContextIdentifier.Name = o.Key.Context
	}
	if req.AggregateIdentifier.Name == "" {
		req.AggregateIdentifier.Name = o.Key.Aggregate
	}
	return o.gateway.Submit(ctx, o.Key.Command, req)
}

// Gateway validates, enriches and dispatches commands of one application.
// It is safe for concurrent use.
type Gateway struct {
	types      *inputtype.Cache
	envelope   EnvelopeValidator
	domain     *DomainValidator
	enricher   *MetadataEnricher
	dispatcher *Dispatcher

	// operations is indexed by handler key; names resolve through types.
	operations map[application.Key]*Operation
	ordered    []*Operation

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.Metrics
}

// New builds a gateway exposing every handler of app. It fails with
// ConfigurationError if any handler cannot be exposed, so no operation is
// ever served from a partially valid application.
func New(app *application.Application, receiver Receiver, opts ...Option) (*Gateway, error) {
	if app == nil {
		return nil, newError(ErrConfiguration, "application is required", nil)
	}
	if receiver == nil {
		return nil, newError(ErrConfiguration, "receiver is required", nil)
	}

	o := &options{
		logger:         slog.Default(),
		tracer:         otel.Tracer(instrumentationName),
		handoffTimeout: DefaultHandoffTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	types, err := inputtype.NewCache(app)
	if err != nil {
		return nil, newError(ErrConfiguration, err.Error(), err)
	}

	domain, err := NewDomainValidator(app)
	if err != nil {
		return nil, newError(ErrConfiguration, err.Error(), err)
	}

	enricher := NewMetadataEnricher()
	if o.clock != nil {
		enricher.now = o.clock
	}
	if o.newID != nil {
		enricher.newID = o.newID
	}

	g := &Gateway{
		types:    types,
		domain:   domain,
		enricher: enricher,
		dispatcher: &Dispatcher{
			receiver:    receiver,
			timeout:     o.handoffTimeout,
			deadLetters: o.deadLetters,
			metrics:     o.metrics,
			logger:      o.logger,
		},
		operations: make(map[application.Key]*Operation),
		logger:     o.logger,
		tracer:     o.tracer,
		metrics:    o.metrics,
	}

	for _, d := range types.All() {
		op := &Operation{
			Name:       d.Name,
			Key:        d.Key,
			Input:      d.Input,
			Output:     d.Output,
			descriptor: d,
			gateway:    g,
		}
		g.operations[op.Key] = op
		g.ordered = append(g.ordered, op)
	}

	g.logger.Info("Command gateway built", slog.Int("operations", len(g.ordered)))

	return g, nil
}

// Operations returns one operation per registered handler, ordered by key.
func (g *Gateway) Operations() []*Operation {
	return append([]*Operation(nil), g.ordered...)
}

// Operation returns the operation called name.
func (g *Gateway) Operation(name string) (*Operation, bool) {
	d, ok := g.types.ByName(name)
	if !ok {
		return nil, false
	}
	op, ok := g.operations[d.Key]
	return op, ok
}

// Invoke calls the operation called name.
func (g *Gateway) Invoke(ctx context.Context, name string, req Request) (Result, error) {
	op, ok := g.Operation(name)
	if !ok {
		err := newError(ErrCommandNotFound, fmt.Sprintf("operation '%s' not found", name), nil)
		g.recordRejected(ctx, name, err)
		return Result{}, err
	}
	return op.Invoke(ctx, req)
}

// Submit runs the pipeline for a command addressed by name within the
// request's context and aggregate. Unlike Invoke it accepts commands that have
// no operation, which then fail with CommandNotFound.
func (g *Gateway) Submit(ctx context.Context, commandName string, req Request) (Result, error) {
	env, err := command.NewEnvelope(req.ContextIdentifier, req.AggregateIdentifier, commandName, req.Data)
	if err != nil {
		err = newError(ErrCommandMalformed, err.Error(), err)
		g.recordRejected(ctx, commandName, err)
		return Result{}, err
	}
	return g.handle(ctx, env, req.Client)
}

// Handle runs the pipeline for an already constructed envelope. The gateway
// works on a copy of env, so the caller may reuse it afterwards.
func (g *Gateway) Handle(ctx context.Context, env *command.Envelope, client command.ClientMetadata) (Result, error) {
	if env != nil {
		copied, err := env.Clone()
		if err != nil {
			err = newError(ErrCommandMalformed, err.Error(), err)
			g.recordRejected(ctx, env.FullyQualifiedName(), err)
			return Result{}, err
		}
		env = copied
	}
	return g.handle(ctx, env, client)
}

// handle runs the pipeline on an envelope owned by the gateway.
func (g *Gateway) handle(ctx context.Context, env *command.Envelope, client command.ClientMetadata) (result Result, err error) {
	name := "command"
	if env != nil {
		name = "command." + application.Key{
			Context:   env.ContextIdentifier.Name,
			Aggregate: env.AggregateIdentifier.Name,
			Command:   env.Name,
		}.OperationName()
	}

	ctx, span := observability.StartSpan(ctx, g.tracer, name,
		observability.WithAttributes(attribute.String("messaging.operation", "send")),
	)
	defer func() {
		if err != nil {
			span.SetAttributes(observability.AttrErrorCode.String(Code(err)))
		}
		observability.EndSpan(span, err)
	}()

	start := time.Now()

	if err := g.envelope.Validate(env); err != nil {
		return g.reject(ctx, env, err)
	}
	span.SetAttributes(observability.CommandAttrs(env.FullyQualifiedName(), env.AggregateIdentifier.ID)...)

	if err := g.domain.Validate(ctx, env, client); err != nil {
		return g.reject(ctx, env, err)
	}

	cmd, err := g.enricher.Enrich(env, client)
	if err != nil {
		return g.reject(ctx, env, err)
	}
	span.SetAttributes(observability.AttrCommandID.String(cmd.ID))

	if err := g.dispatcher.Dispatch(ctx, cmd); err != nil {
		return g.reject(ctx, env, err)
	}

	if g.metrics != nil {
		g.metrics.RecordAccepted(ctx, env.FullyQualifiedName(), time.Since(start))
	}

	return Result{ID: cmd.ID}, nil
}

func (g *Gateway) reject(ctx context.Context, env *command.Envelope, err error) (Result, error) {
	name := ""
	if env != nil {
		name = env.FullyQualifiedName()
	}

	level := slog.LevelInfo
	if KindOf(err) == ErrUnknown {
		level = slog.LevelError
	}
	g.logger.Log(ctx, level, "Command not accepted",
		slog.String("command_name", name),
		slog.String("error_code", Code(err)),
		slog.String("error", err.Error()),
	)

	g.recordRejected(ctx, name, err)
	return Result{}, err
}

func (g *Gateway) recordRejected(ctx context.Context, name string, err error) {
	if g.metrics != nil {
		g.metrics.RecordRejected(ctx, name, Code(err))
	}
}
