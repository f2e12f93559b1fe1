package scholar

import (
	"github.com/ashfield-games/greatwork/internal/engine/event"
)

// SpawnedPayload records a scholar joining the roster.
type SpawnedPayload struct {
	ScholarID string `json:"scholar_id"`
	Name      string `json:"name"`
	Tier      string `json:"tier"`
	Stats     Stats  `json:"stats"`
	// Archetype is set for sidecast scholars spawned by expedition outcomes.
	Archetype string `json:"archetype,omitempty"`
	// Origin distinguishes seed-time scholars from sidecasts and roster refills.
	Origin string `json:"origin"`
}

// RetiredPayload records a scholar leaving the active roster. History is
// retained; retirement is a soft delete.
type RetiredPayload struct {
	ScholarID string `json:"scholar_id"`
	Reason    string `json:"reason"`
}

// MemoryRecordedPayload records a memory mutation: a fact, a feeling delta,
// a scar, or any combination.
type MemoryRecordedPayload struct {
	ScholarID    string   `json:"scholar_id"`
	FactKind     string   `json:"fact_kind,omitempty"`
	Participants []string `json:"participants,omitempty"`
	FeelingID    string   `json:"feeling_id,omitempty"`
	FeelingDelta float64  `json:"feeling_delta,omitempty"`
	ScarID       string   `json:"scar_id,omitempty"`
}

const spawnedSchema = `{
	"type": "object",
	"properties": {
		"scholar_id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"tier": {"type": "string", "enum": ["assistant", "fellow", "professor", "emeritus"]},
		"stats": {
			"type": "object",
			"properties": {
				"loyalty": {"type": "integer", "minimum": 0, "maximum": 10},
				"integrity": {"type": "integer", "minimum": 0, "maximum": 10},
				"talent": {"type": "integer", "minimum": 0, "maximum": 10},
				"daring": {"type": "integer", "minimum": 0, "maximum": 10}
			},
			"required": ["loyalty", "integrity", "talent", "daring"],
			"additionalProperties": false
		},
		"archetype": {"type": "string"},
		"origin": {"type": "string", "enum": ["seed", "sidecast", "roster_refill"]},
		"schema_version": {"type": "string"}
	},
	"required": ["scholar_id", "name", "tier", "stats", "origin"],
	"additionalProperties": false
}`

const retiredSchema = `{
	"type": "object",
	"properties": {
		"scholar_id": {"type": "string", "minLength": 1},
		"reason": {"type": "string", "minLength": 1},
		"schema_version": {"type": "string"}
	},
	"required": ["scholar_id", "reason"],
	"additionalProperties": false
}`

const memoryRecordedSchema = `{
	"type": "object",
	"properties": {
		"scholar_id": {"type": "string", "minLength": 1},
		"fact_kind": {"type": "string"},
		"participants": {"type": "array", "items": {"type": "string"}},
		"feeling_id": {"type": "string"},
		"feeling_delta": {"type": "number"},
		"scar_id": {"type": "string"},
		"schema_version": {"type": "string"}
	},
	"required": ["scholar_id"],
	"additionalProperties": false
}`

// RegisterEvents registers scholar event definitions with the shared registry.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: event.TypeScholarSpawned, Schema: spawnedSchema},
		{Type: event.TypeScholarRetired, Schema: retiredSchema},
		{Type: event.TypeScholarMemoryRecorded, Schema: memoryRecordedSchema},
	}
	for _, definition := range definitions {
		if err := registry.Register(definition); err != nil {
			return err
		}
	}
	return nil
}
