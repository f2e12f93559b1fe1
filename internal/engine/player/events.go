package player

import (
	"github.com/ashfield-games/greatwork/internal/engine/event"
)

// CreatedPayload records a player's creation on first action.
type CreatedPayload struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// ReputationAdjustedPayload records an applied reputation delta.
type ReputationAdjustedPayload struct {
	PlayerID  string `json:"player_id"`
	Delta     int    `json:"delta"`
	Applied   int    `json:"applied"`
	NewValue  int    `json:"new_value"`
	Reason    string `json:"reason"`
	SourceSeq uint64 `json:"source_seq,omitempty"`
}

// InfluenceAdjustedPayload records an applied influence delta.
type InfluenceAdjustedPayload struct {
	PlayerID string `json:"player_id"`
	Faction  string `json:"faction"`
	Delta    int    `json:"delta"`
	NewValue int    `json:"new_value"`
	Reason   string `json:"reason"`
}

const createdSchema = `{
	"type": "object",
	"properties": {
		"player_id": {"type": "string", "minLength": 1},
		"display_name": {"type": "string"},
		"schema_version": {"type": "string"}
	},
	"required": ["player_id"],
	"additionalProperties": false
}`

const reputationAdjustedSchema = `{
	"type": "object",
	"properties": {
		"player_id": {"type": "string", "minLength": 1},
		"delta": {"type": "integer"},
		"applied": {"type": "integer"},
		"new_value": {"type": "integer"},
		"reason": {"type": "string", "minLength": 1},
		"source_seq": {"type": "integer", "minimum": 0},
		"schema_version": {"type": "string"}
	},
	"required": ["player_id", "delta", "applied", "new_value", "reason"],
	"additionalProperties": false
}`

const influenceAdjustedSchema = `{
	"type": "object",
	"properties": {
		"player_id": {"type": "string", "minLength": 1},
		"faction": {"type": "string", "enum": ["academic", "government", "industry", "religious", "foreign"]},
		"delta": {"type": "integer"},
		"new_value": {"type": "integer", "minimum": 0},
		"reason": {"type": "string", "minLength": 1},
		"schema_version": {"type": "string"}
	},
	"required": ["player_id", "faction", "delta", "new_value", "reason"],
	"additionalProperties": false
}`

// RegisterEvents registers player event definitions with the shared registry.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: event.TypePlayerCreated, Schema: createdSchema},
		{Type: event.TypeReputationAdjusted, Schema: reputationAdjustedSchema},
		{Type: event.TypeInfluenceAdjusted, Schema: influenceAdjustedSchema},
	}
	for _, definition := range definitions {
		if err := registry.Register(definition); err != nil {
			return err
		}
	}
	return nil
}
