package offer

import (
	"github.com/ashfield-games/greatwork/internal/engine/event"
)

// CreatedPayload records a poach offer opening negotiation. The escrow has
// already been deducted from the actor when this event is appended.
type CreatedPayload struct {
	OfferID   string  `json:"offer_id"`
	ActorID   string  `json:"actor_id"`
	ScholarID string  `json:"scholar_id"`
	Faction   string  `json:"faction"`
	Escrow    int     `json:"escrow"`
	Quality   float64 `json:"quality"`
	Promise   string  `json:"promise,omitempty"`
}

// CounteredPayload records answering terms in an open negotiation.
type CounteredPayload struct {
	OfferID string `json:"offer_id"`
	Round   int    `json:"round"`
	Faction string `json:"faction"`
	Escrow  int    `json:"escrow"`
	Promise string `json:"promise,omitempty"`
}

// ResolvedPayload records the negotiation's terminal outcome with the
// probability and draw embedded so replay never consults the RNG. A declined
// offer carries the year until which the suitor may not approach the scholar
// again; the cooldown replays from the payload alone.
type ResolvedPayload struct {
	OfferID           string  `json:"offer_id"`
	Outcome           string  `json:"outcome"`
	Probability       float64 `json:"probability"`
	Draw              float64 `json:"draw"`
	EscrowReturned    bool    `json:"escrow_returned"`
	CooldownUntilYear int     `json:"cooldown_until_year,omitempty"`
}

const createdSchema = `{
	"type": "object",
	"properties": {
		"offer_id": {"type": "string", "minLength": 1},
		"actor_id": {"type": "string", "minLength": 1},
		"scholar_id": {"type": "string", "minLength": 1},
		"faction": {"type": "string", "minLength": 1},
		"escrow": {"type": "integer", "minimum": 1},
		"quality": {"type": "number", "minimum": 0, "maximum": 1},
		"promise": {"type": "string"},
		"schema_version": {"type": "string"}
	},
	"required": ["offer_id", "actor_id", "scholar_id", "faction", "escrow", "quality"],
	"additionalProperties": false
}`

const counteredSchema = `{
	"type": "object",
	"properties": {
		"offer_id": {"type": "string", "minLength": 1},
		"round": {"type": "integer", "minimum": 1},
		"faction": {"type": "string", "minLength": 1},
		"escrow": {"type": "integer", "minimum": 1},
		"promise": {"type": "string"},
		"schema_version": {"type": "string"}
	},
	"required": ["offer_id", "round", "faction", "escrow"],
	"additionalProperties": false
}`

const resolvedSchema = `{
	"type": "object",
	"properties": {
		"offer_id": {"type": "string", "minLength": 1},
		"outcome": {"type": "string", "enum": ["accepted", "declined", "withdrawn"]},
		"probability": {"type": "number", "minimum": 0, "maximum": 1},
		"draw": {"type": "number", "minimum": 0, "maximum": 1},
		"escrow_returned": {"type": "boolean"},
		"cooldown_until_year": {"type": "integer", "minimum": 0},
		"schema_version": {"type": "string"}
	},
	"required": ["offer_id", "outcome", "probability", "draw", "escrow_returned"],
	"additionalProperties": false
}`

// RegisterEvents registers offer event definitions with the shared registry.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: event.TypeOfferCreated, Schema: createdSchema},
		{Type: event.TypeOfferCountered, Schema: counteredSchema},
		{Type: event.TypeOfferResolved, Schema: resolvedSchema},
	}
	for _, definition := range definitions {
		if err := registry.Register(definition); err != nil {
			return err
		}
	}
	return nil
}
