// Package event defines the canonical event envelope and event-type registry
// used by the engine write path.
//
// Events are immutable facts: every state mutation in the engine corresponds
// to exactly one appended event, and all projections are derivable by
// replaying the journal from genesis. The registry enforces that each event
// type is known, carries required addressing metadata, and has a payload that
// satisfies the type's versioned JSON Schema before persistence assigns a
// sequence number.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Type identifies the kind of an engine event.
type Type string

// Player and timeline events.
const (
	// TypePlayerCreated records a player's first action creating their record.
	TypePlayerCreated Type = "player.created"
	// TypeTimelineAdvanced records the simulated year moving forward.
	TypeTimelineAdvanced Type = "timeline.advanced"
	// TypeReputationAdjusted records a reputation delta with its cause.
	TypeReputationAdjusted Type = "reputation.adjusted"
	// TypeInfluenceAdjusted records an influence delta with its cause.
	TypeInfluenceAdjusted Type = "influence.adjusted"
)

// Scholar events.
const (
	// TypeScholarSpawned records a scholar joining the roster, including sidecasts.
	TypeScholarSpawned Type = "scholar.spawned"
	// TypeScholarRetired records a scholar leaving the active roster.
	TypeScholarRetired Type = "scholar.retired"
	// TypeScholarMemoryRecorded records a fact, feeling change, or scar.
	TypeScholarMemoryRecorded Type = "scholar.memory_recorded"
)

// Theory events.
const (
	// TypeTheorySubmitted records a published theory.
	TypeTheorySubmitted Type = "theory.submitted"
	// TypeTheoryResolved records a theory reaching its terminal state.
	TypeTheoryResolved Type = "theory.resolved"
)

// Expedition events.
const (
	// TypeExpeditionLaunched records a funded expedition entering the queue.
	TypeExpeditionLaunched Type = "expedition.launched"
	// TypeExpeditionResolved records the single resolution of an expedition.
	TypeExpeditionResolved Type = "expedition.resolved"
)

// Order events.
const (
	// TypeOrderEnqueued records a delayed action entering the dispatcher.
	TypeOrderEnqueued Type = "order.enqueued"
	// TypeOrderActivated records an order picked up by its handler.
	TypeOrderActivated Type = "order.activated"
	// TypeOrderCompleted records an order finishing successfully.
	TypeOrderCompleted Type = "order.completed"
	// TypeOrderCancelled records an administrative or automatic cancellation.
	TypeOrderCancelled Type = "order.cancelled"
	// TypeOrderFailed records a handler failure diagnostic.
	TypeOrderFailed Type = "order.failed"
)

// Offer events.
const (
	// TypeOfferCreated records a poach offer opening negotiation.
	TypeOfferCreated Type = "offer.created"
	// TypeOfferCountered records a counter-offer in an open negotiation.
	TypeOfferCountered Type = "offer.countered"
	// TypeOfferResolved records the negotiation's terminal outcome.
	TypeOfferResolved Type = "offer.resolved"
)

// Digest events.
const (
	// TypeDigestTickCompleted summarizes one digest tick for reporting consumers.
	TypeDigestTickCompleted Type = "digest.tick_completed"
)

// ActorType identifies who or what triggered an event.
type ActorType string

const (
	// ActorTypeSystem indicates the event was produced by engine machinery.
	ActorTypeSystem ActorType = "system"
	// ActorTypePlayer indicates the event was triggered by a player action.
	ActorTypePlayer ActorType = "player"
	// ActorTypeAdmin indicates the event was triggered by an operator.
	ActorTypeAdmin ActorType = "admin"
)

// Event represents an immutable event in the campaign journal.
type Event struct {
	// CampaignID is the campaign this event belongs to.
	CampaignID string
	// Seq is the event sequence number within the campaign (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Hash is the content-addressed identity (SHA-256 truncated to 128-bit).
	// Assigned by storage on append.
	Hash string
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// ActorType identifies who triggered the event.
	ActorType ActorType
	// ActorID is the player or operator ID when the actor is not the system.
	ActorID string
	// EntityType is the type of entity affected (player, scholar, order, ...).
	EntityType string
	// EntityID is the ID of the entity affected.
	EntityID string
	// PayloadJSON holds event-specific data as canonical JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g. "scholar", "order").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// EventHash computes the content-addressed identity of an event from the
// fields that are fixed at append time. Seq and Hash itself are excluded.
func EventHash(evt Event) string {
	h := sha256.New()
	h.Write([]byte(evt.CampaignID))
	h.Write([]byte{0})
	h.Write([]byte(evt.Type))
	h.Write([]byte{0})
	h.Write([]byte(evt.Timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write([]byte(evt.ActorType))
	h.Write([]byte{0})
	h.Write([]byte(evt.ActorID))
	h.Write([]byte{0})
	h.Write([]byte(evt.EntityType))
	h.Write([]byte{0})
	h.Write([]byte(evt.EntityID))
	h.Write([]byte{0})
	h.Write(evt.PayloadJSON)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
