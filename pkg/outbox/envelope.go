package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmexchange-backend/pkg/types"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// ActorFrom converts an authenticated actor into its event reference.
func ActorFrom(actor types.Actor) *ActorRef {
	if actor.IsZero() {
		return nil
	}
	return &ActorRef{UserID: actor.UserID, Role: actor.Role.String()}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload and checks the fields every consumer
// relies on.
func DecodeEnvelope(raw json.RawMessage) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, err
	}
	if envelope.EventID == "" {
		return PayloadEnvelope{}, errMissingEventID
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return PayloadEnvelope{}, errMissingData
	}
	return envelope, nil
}
