package audit

import "time"

// Action names what an administrative mutation did to a record.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionIncrement Action = "increment"
)

// Event is one append-only audit record of a mutation. Actor is the opaque
// caller identity supplied by the layer above; this core does not interpret
// it.
type Event struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Collection string    `json:"collection"`
	DocumentID string    `json:"documentId"`
	Action     Action    `json:"action"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
