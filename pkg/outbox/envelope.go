package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event. Email carries the operator when
// a human drove the change; System names the automation otherwise.
type ActorRef struct {
	Email  string `json:"email,omitempty"`
	System string `json:"system,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
