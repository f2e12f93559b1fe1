package expedition

import (
	"github.com/ashfield-games/greatwork/internal/engine/event"
)

// LaunchedPayload records a funded expedition entering the queue. Patron
// funding carries the debt it records against the player, so replay rebuilds
// the obligation from the payload alone.
type LaunchedPayload struct {
	ExpeditionID string   `json:"expedition_id"`
	PlayerID     string   `json:"player_id"`
	Type         string   `json:"type"`
	Team         []string `json:"team"`
	PrepDepth    int      `json:"prep_depth"`
	Funding      string   `json:"funding"`
	PatronDebt   int      `json:"patron_debt,omitempty"`
}

// ResolvedPayload records the single resolution of an expedition, with every
// modifier component and drawn value embedded for audit and replay.
type ResolvedPayload struct {
	ExpeditionID  string   `json:"expedition_id"`
	Roll          int      `json:"roll"`
	Preparation   int      `json:"preparation"`
	Expertise     int      `json:"expertise"`
	Friction      int      `json:"friction"`
	Score         int      `json:"score"`
	Band          string   `json:"band"`
	FailureResult string   `json:"failure_result,omitempty"`
	DomainTag     string   `json:"domain_tag,omitempty"`
	Effects       []Effect `json:"effects,omitempty"`
}

// ResolutionPayload converts a resolution into its event payload.
func ResolutionPayload(res Resolution) ResolvedPayload {
	return ResolvedPayload{
		ExpeditionID:  res.ExpeditionID,
		Roll:          res.Roll,
		Preparation:   res.Modifiers.Preparation,
		Expertise:     res.Modifiers.Expertise,
		Friction:      res.Modifiers.Friction,
		Score:         res.Score,
		Band:          string(res.Band),
		FailureResult: res.FailureResult,
		DomainTag:     res.DomainTag,
		Effects:       res.Effects,
	}
}

const launchedSchema = `{
	"type": "object",
	"properties": {
		"expedition_id": {"type": "string", "minLength": 1},
		"player_id": {"type": "string", "minLength": 1},
		"type": {"type": "string", "enum": ["survey", "field_study", "grand_excavation"]},
		"team": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1},
		"prep_depth": {"type": "integer", "minimum": 0, "maximum": 30},
		"funding": {"type": "string", "enum": ["personal", "faction", "patron"]},
		"patron_debt": {"type": "integer", "minimum": 0},
		"schema_version": {"type": "string"}
	},
	"required": ["expedition_id", "player_id", "type", "team", "prep_depth", "funding"],
	"additionalProperties": false
}`

const resolvedSchema = `{
	"type": "object",
	"properties": {
		"expedition_id": {"type": "string", "minLength": 1},
		"roll": {"type": "integer", "minimum": 1, "maximum": 100},
		"preparation": {"type": "integer", "minimum": 0, "maximum": 30},
		"expertise": {"type": "integer", "minimum": 0, "maximum": 15},
		"friction": {"type": "integer", "minimum": 0, "maximum": 25},
		"score": {"type": "integer"},
		"band": {"type": "string", "enum": ["failure", "partial", "solid", "landmark"]},
		"failure_result": {"type": "string", "enum": ["nothing", "minor_clue", "adjacent_discovery", "major_sideways_unlock"]},
		"domain_tag": {"type": "string", "minLength": 1},
		"effects": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"kind": {"type": "string", "enum": ["influence_delta", "enqueue_order", "sidecast_scholar", "theory_seed", "domain_unlock"]},
					"influence": {
						"type": "object",
						"properties": {
							"faction": {"type": "string", "minLength": 1},
							"delta": {"type": "integer"}
						},
						"required": ["faction", "delta"],
						"additionalProperties": false
					},
					"order": {
						"type": "object",
						"properties": {
							"order_type": {"type": "string", "minLength": 1},
							"subject_id": {"type": "string"},
							"delay_years": {"type": "integer", "minimum": 0}
						},
						"required": ["order_type"],
						"additionalProperties": false
					},
					"sidecast": {
						"type": "object",
						"properties": {
							"scholar_id": {"type": "string", "minLength": 1},
							"name": {"type": "string", "minLength": 1},
							"archetype": {"type": "string", "minLength": 1},
							"loyalty": {"type": "integer", "minimum": 0, "maximum": 10},
							"integrity": {"type": "integer", "minimum": 0, "maximum": 10},
							"talent": {"type": "integer", "minimum": 0, "maximum": 10},
							"daring": {"type": "integer", "minimum": 0, "maximum": 10}
						},
						"required": ["scholar_id", "name", "archetype", "loyalty", "integrity", "talent", "daring"],
						"additionalProperties": false
					},
					"theory_seed": {
						"type": "object",
						"properties": {
							"claim": {"type": "string", "minLength": 1}
						},
						"required": ["claim"],
						"additionalProperties": false
					},
					"domain_tag": {"type": "string", "minLength": 1}
				},
				"required": ["kind"],
				"additionalProperties": false
			}
		},
		"schema_version": {"type": "string"}
	},
	"required": ["expedition_id", "roll", "preparation", "expertise", "friction", "score", "band"],
	"additionalProperties": false
}`

// RegisterEvents registers expedition event definitions with the shared registry.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: event.TypeExpeditionLaunched, Schema: launchedSchema},
		{Type: event.TypeExpeditionResolved, Schema: resolvedSchema},
	}
	for _, definition := range definitions {
		if err := registry.Register(definition); err != nil {
			return err
		}
	}
	return nil
}
