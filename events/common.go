package events

import (
	"encoding/json"
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// BaseEvent carries the fields shared by every wire event: the type
// discriminator and the correlation id.
type BaseEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

func NewBaseEvent(eventType string) BaseEvent {
	id, err := nanoid.New()
	if err != nil {
		panic(err)
	}
	return BaseEvent{
		EventID: id,
		Type:    eventType,
	}
}

// Base returns the shared event header; it satisfies part of the ClientEvent
// and ServerEvent contracts for every embedding struct.
func (e BaseEvent) Base() BaseEvent { return e }

// DecodeError reports a malformed payload for a recognized event type. The
// offending event is dropped; the connection stays usable.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s event: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func Parse[T any](data []byte) (*T, error) {
	var x T
	if err := json.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	return &x, nil
}
