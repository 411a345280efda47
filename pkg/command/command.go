// Package command defines the command envelope accepted by the gateway and the
// enriched command handed to the processing engine.
package command

import (
	"fmt"
	"time"
)

// ContextIdentifier names the bounded context a command is addressed to.
type ContextIdentifier struct {
	Name string `json:"name"`
}

// AggregateIdentifier addresses one aggregate instance.
type AggregateIdentifier struct {
	// Name is the aggregate (entity collection) name, e.g. "cart".
	Name string `json:"name"`

	// ID is the aggregate instance id.
	ID string `json:"id"`
}

// Envelope is the canonical representation of a command before enrichment.
type Envelope struct {
	ContextIdentifier   ContextIdentifier   `json:"contextIdentifier"`
	AggregateIdentifier AggregateIdentifier `json:"aggregateIdentifier"`
	Name                string              `json:"name"`
	Data                map[string]any      `json:"data"`
}

// NewEnvelope builds an envelope whose data is a deep copy of data.
// A nil data map becomes an empty object.
func NewEnvelope(contextIdentifier ContextIdentifier, aggregateIdentifier AggregateIdentifier, name string, data map[string]any) (*Envelope, error) {
	copied, err := CloneData(data)
	if err != nil {
		return nil, fmt.Errorf("copy command data: %w", err)
	}

	return &Envelope{
		ContextIdentifier:   contextIdentifier,
		AggregateIdentifier: aggregateIdentifier,
		Name:                name,
		Data:                copied,
	}, nil
}

// FullyQualifiedName returns "{context}.{aggregate}.{command}".
func (e *Envelope) FullyQualifiedName() string {
	return fmt.Sprintf("%s.%s.%s", e.ContextIdentifier.Name, e.AggregateIdentifier.Name, e.Name)
}

// User is the authenticated principal as reported by the transport layer.
type User struct {
	ID     string         `json:"id"`
	Claims map[string]any `json:"claims,omitempty"`
}

// ClientMetadata describes the client session a command arrived on.
type ClientMetadata struct {
	Token string `json:"token,omitempty"`
	User  User   `json:"user"`
	IP    string `json:"ip,omitempty"`
}

// Initiator identifies who started the causal chain of a command.
type Initiator struct {
	User User `json:"user"`
}

// Metadata carries identity and causal information for an enriched command.
type Metadata struct {
	// CausationID is the id of the message that caused this command.
	CausationID string `json:"causationId"`

	// CorrelationID groups all messages belonging to the same workflow.
	CorrelationID string `json:"correlationId"`

	// Timestamp is when the gateway accepted the command.
	Timestamp time.Time `json:"timestamp"`

	Client    ClientMetadata `json:"client"`
	Initiator Initiator      `json:"initiator"`
}

// Enriched is an envelope with identity and causal metadata attached.
// It must not be modified once handed to a receiver.
type Enriched struct {
	Envelope
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
}

// IsCausalRoot reports whether the command starts its own causal chain.
func (c *Enriched) IsCausalRoot() bool {
	return c.Metadata.CausationID == c.ID && c.Metadata.CorrelationID == c.ID
}
