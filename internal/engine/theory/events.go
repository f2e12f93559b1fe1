package theory

import (
	"github.com/ashfield-games/greatwork/internal/engine/event"
)

// SubmittedPayload records a theory entering the public record.
type SubmittedPayload struct {
	TheoryID   string   `json:"theory_id"`
	PlayerID   string   `json:"player_id"`
	Claim      string   `json:"claim"`
	Confidence string   `json:"confidence"`
	Supporters []string `json:"supporters,omitempty"`
	DeadlineMs int64    `json:"deadline_ms"`
}

// ResolvedPayload records a theory's single terminal transition.
type ResolvedPayload struct {
	TheoryID string `json:"theory_id"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
}

const submittedSchema = `{
	"type": "object",
	"properties": {
		"theory_id": {"type": "string", "minLength": 1},
		"player_id": {"type": "string", "minLength": 1},
		"claim": {"type": "string", "minLength": 1},
		"confidence": {"type": "string", "enum": ["speculative", "probable", "certain"]},
		"supporters": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"deadline_ms": {"type": "integer", "minimum": 0},
		"schema_version": {"type": "string"}
	},
	"required": ["theory_id", "player_id", "claim", "confidence", "deadline_ms"],
	"additionalProperties": false
}`

const resolvedSchema = `{
	"type": "object",
	"properties": {
		"theory_id": {"type": "string", "minLength": 1},
		"outcome": {"type": "string", "enum": ["vindicated", "refuted", "expired", "retracted"]},
		"reason": {"type": "string"},
		"schema_version": {"type": "string"}
	},
	"required": ["theory_id", "outcome"],
	"additionalProperties": false
}`

// RegisterEvents registers theory event definitions with the shared registry.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: event.TypeTheorySubmitted, Schema: submittedSchema},
		{Type: event.TypeTheoryResolved, Schema: resolvedSchema},
	}
	for _, definition := range definitions {
		if err := registry.Register(definition); err != nil {
			return err
		}
	}
	return nil
}
