package orders

import (
	"encoding/json"

	"github.com/ashfield-games/greatwork/internal/engine/event"
)

// EnqueuedPayload records a delayed action entering the dispatcher.
type EnqueuedPayload struct {
	OrderID     string          `json:"order_id"`
	OrderType   string          `json:"order_type"`
	ActorID     string          `json:"actor_id,omitempty"`
	SubjectID   string          `json:"subject_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	ScheduledMs int64           `json:"scheduled_ms"`
	SourceTable string          `json:"source_table,omitempty"`
	SourceID    string          `json:"source_id,omitempty"`
}

// ActivatedPayload records a handler picking an order up.
type ActivatedPayload struct {
	OrderID string `json:"order_id"`
	Attempt int    `json:"attempt"`
}

// CompletedPayload records successful order completion.
type CompletedPayload struct {
	OrderID string `json:"order_id"`
	Result  string `json:"result,omitempty"`
}

// CancelledPayload records an administrative or automatic cancellation.
type CancelledPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

// FailedPayload records a handler failure diagnostic.
type FailedPayload struct {
	OrderID string `json:"order_id"`
	Attempt int    `json:"attempt"`
	Error   string `json:"error"`
	// Final marks the attempt that exhausted the retry budget. Non-final
	// failures return the order to pending for a later tick.
	Final bool `json:"final"`
}

const enqueuedSchema = `{
	"type": "object",
	"properties": {
		"order_id": {"type": "string", "minLength": 1},
		"order_type": {"type": "string", "minLength": 1},
		"actor_id": {"type": "string"},
		"subject_id": {"type": "string"},
		"payload": {"type": "object"},
		"scheduled_ms": {"type": "integer", "minimum": 0},
		"source_table": {"type": "string"},
		"source_id": {"type": "string"},
		"schema_version": {"type": "string"}
	},
	"required": ["order_id", "order_type", "scheduled_ms"],
	"additionalProperties": false
}`

const activatedSchema = `{
	"type": "object",
	"properties": {
		"order_id": {"type": "string", "minLength": 1},
		"attempt": {"type": "integer", "minimum": 1},
		"schema_version": {"type": "string"}
	},
	"required": ["order_id", "attempt"],
	"additionalProperties": false
}`

const completedSchema = `{
	"type": "object",
	"properties": {
		"order_id": {"type": "string", "minLength": 1},
		"result": {"type": "string"},
		"schema_version": {"type": "string"}
	},
	"required": ["order_id"],
	"additionalProperties": false
}`

const cancelledSchema = `{
	"type": "object",
	"properties": {
		"order_id": {"type": "string", "minLength": 1},
		"reason": {"type": "string"},
		"schema_version": {"type": "string"}
	},
	"required": ["order_id"],
	"additionalProperties": false
}`

const failedSchema = `{
	"type": "object",
	"properties": {
		"order_id": {"type": "string", "minLength": 1},
		"attempt": {"type": "integer", "minimum": 1},
		"error": {"type": "string", "minLength": 1},
		"final": {"type": "boolean"},
		"schema_version": {"type": "string"}
	},
	"required": ["order_id", "attempt", "error"],
	"additionalProperties": false
}`

// RegisterEvents registers order event definitions with the shared registry.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: event.TypeOrderEnqueued, Schema: enqueuedSchema},
		{Type: event.TypeOrderActivated, Schema: activatedSchema},
		{Type: event.TypeOrderCompleted, Schema: completedSchema},
		{Type: event.TypeOrderCancelled, Schema: cancelledSchema},
		{Type: event.TypeOrderFailed, Schema: failedSchema},
	}
	for _, definition := range definitions {
		if err := registry.Register(definition); err != nil {
			return err
		}
	}
	return nil
}
