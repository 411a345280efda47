package gateway

import (
	"time"

	"github.com/google/uuid"
	"github.com/plaenen/commandgateway/pkg/command"
)

// IDGenerator returns a new globally unique command id.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// MetadataEnricher stamps an accepted envelope with identity and causal metadata.
// Every command it produces is the root of its own causal chain.
type MetadataEnricher struct {
	newID IDGenerator
	now   Clock
}

// NewMetadataEnricher creates an enricher using random UUIDs and the wall clock.
func NewMetadataEnricher() *MetadataEnricher {
	return &MetadataEnricher{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Enrich attaches a new id, causation and correlation ids equal to it, the
// enrichment time and a copy of the caller's client metadata. The initiator is
// the client user; both share the single copy of its claims. env is taken
// over by the enriched command.
func (e *MetadataEnricher) Enrich(env *command.Envelope, client command.ClientMetadata) (*command.Enriched, error) {
	client, err := command.CloneClient(client)
	if err != nil {
		return nil, newError(ErrCommandMalformed, err.Error(), err)
	}

	id := e.newID()
	return &command.Enriched{
		Envelope: *env,
		ID:       id,
		Metadata: command.Metadata{
			CausationID:   id,
			CorrelationID: id,
			Timestamp:     e.now().UTC(),
			Client:        client,
			Initiator:     command.Initiator{User: client.User},
		},
	}, nil
}
