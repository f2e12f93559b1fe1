// Package expedition models funded field work and its single resolution.
//
// An expedition is queued by a player action and resolved exactly once during
// a digest tick. Resolution rolls a d100 on the action's deterministic
// stream, applies bounded modifiers, and maps the score to an outcome band.
// Failed expeditions consult a failure table gated on preparation depth, so
// deep preparation softens a bad roll into clues and sideways discoveries.
package expedition

import (
	"fmt"
	"time"

	"github.com/ashfield-games/greatwork/internal/platform/errors"
)

// Tier is the expedition's cost and impact class.
type Tier string

const (
	// TierSurvey is the cheapest tier: scouting and surface work.
	TierSurvey Tier = "survey"
	// TierFieldStudy is the mid tier: a funded seasonal dig.
	TierFieldStudy Tier = "field_study"
	// TierGrandExcavation is the top tier: a multi-year flagship campaign.
	TierGrandExcavation Tier = "grand_excavation"
)

// IsValid reports whether the tier is a known value.
func (t Tier) IsValid() bool {
	switch t {
	case TierSurvey, TierFieldStudy, TierGrandExcavation:
		return true
	}
	return false
}

// Funding identifies who pays for the expedition.
type Funding string

const (
	// FundingPersonal draws on the player's own standing.
	FundingPersonal Funding = "personal"
	// FundingFaction is sponsored by a faction, with strings attached.
	FundingFaction Funding = "faction"
	// FundingPatron is bankrolled by a named private patron.
	FundingPatron Funding = "patron"
)

// IsValid reports whether the funding source is a known value.
func (f Funding) IsValid() bool {
	switch f {
	case FundingPersonal, FundingFaction, FundingPatron:
		return true
	}
	return false
}

// Status is the expedition lifecycle state.
type Status string

const (
	// StatusQueued means the expedition awaits its resolution tick.
	StatusQueued Status = "queued"
	// StatusResolved means the single resolution event has been emitted.
	StatusResolved Status = "resolved"
)

// Modifier bounds. Each component is clamped independently before scoring.
const (
	MaxPreparation = 30
	MaxExpertise   = 15
	MaxFriction    = 25
)

// Expedition is the projected state for one queued or resolved expedition.
type Expedition struct {
	ID         string
	PlayerID   string
	Type       Tier
	Team       []string
	PrepDepth  int
	Funding    Funding
	Status     Status
	LaunchedAt time.Time
}

// New validates and builds a queued expedition.
func New(expeditionID, playerID string, tier Tier, team []string, prepDepth int, funding Funding, launchedAt time.Time) (Expedition, error) {
	if !tier.IsValid() {
		return Expedition{}, errors.New(errors.CodeExpeditionInvalidType,
			fmt.Sprintf("unknown expedition type %q", tier))
	}
	if len(team) == 0 {
		return Expedition{}, errors.New(errors.CodeExpeditionTeamEmpty, "expedition team must not be empty")
	}
	if prepDepth < 0 || prepDepth > MaxPreparation {
		return Expedition{}, errors.WithMetadata(errors.CodeExpeditionInvalidDepth,
			"preparation depth out of range",
			map[string]string{"depth": fmt.Sprintf("%d", prepDepth)})
	}
	if !funding.IsValid() {
		return Expedition{}, errors.New(errors.CodeExpeditionUnknownFunding,
			fmt.Sprintf("unknown funding source %q", funding))
	}
	return Expedition{
		ID:         expeditionID,
		PlayerID:   playerID,
		Type:       tier,
		Team:       append([]string(nil), team...),
		PrepDepth:  prepDepth,
		Funding:    funding,
		Status:     StatusQueued,
		LaunchedAt: launchedAt.UTC(),
	}, nil
}
