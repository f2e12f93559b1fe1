// Package errors provides structured error handling with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Theory errors
	CodeTheoryClaimEmpty        Code = "THEORY_CLAIM_EMPTY"
	CodeTheoryInvalidConfidence Code = "THEORY_INVALID_CONFIDENCE"
	CodeTheoryDeadlinePast      Code = "THEORY_DEADLINE_PAST"
	CodeTheoryAlreadyResolved   Code = "THEORY_ALREADY_RESOLVED"

	// Expedition errors
	CodeExpeditionTeamEmpty       Code = "EXPEDITION_TEAM_EMPTY"
	CodeExpeditionInvalidType     Code = "EXPEDITION_INVALID_TYPE"
	CodeExpeditionInvalidDepth    Code = "EXPEDITION_INVALID_DEPTH"
	CodeExpeditionAlreadyResolved Code = "EXPEDITION_ALREADY_RESOLVED"
	CodeExpeditionUnknownFunding  Code = "EXPEDITION_UNKNOWN_FUNDING"

	// Influence errors
	CodeInfluenceInsufficient   Code = "INFLUENCE_INSUFFICIENT"
	CodeInfluenceUnknownFaction Code = "INFLUENCE_UNKNOWN_FACTION"

	// Scholar errors
	CodeScholarNotFound     Code = "SCHOLAR_NOT_FOUND"
	CodeScholarRetired      Code = "SCHOLAR_RETIRED"
	CodeScholarRosterAtCap  Code = "SCHOLAR_ROSTER_AT_CAP"
	CodeScholarSelfMentor   Code = "SCHOLAR_SELF_MENTOR"
	CodeScholarAlreadyBound Code = "SCHOLAR_ALREADY_BOUND"

	// Offer errors
	CodeOfferNotFound          Code = "OFFER_NOT_FOUND"
	CodeOfferTermsEmpty        Code = "OFFER_TERMS_EMPTY"
	CodeOfferInvalidTransition Code = "OFFER_INVALID_TRANSITION"

	// Order errors
	CodeOrderNotFound      Code = "ORDER_NOT_FOUND"
	CodeOrderTerminal      Code = "ORDER_TERMINAL"
	CodeOrderTypeUnknown   Code = "ORDER_TYPE_UNKNOWN"
	CodeOrderAlreadyActive Code = "ORDER_ALREADY_ACTIVE"

	// Event/storage errors
	CodeEventTypeUnknown   Code = "EVENT_TYPE_UNKNOWN"
	CodeEventPayloadSchema Code = "EVENT_PAYLOAD_SCHEMA"
	CodeNotFound           Code = "NOT_FOUND"

	// Player errors
	CodePlayerCooldownActive Code = "PLAYER_COOLDOWN_ACTIVE"
	CodePlayerDebtUnsettled  Code = "PLAYER_DEBT_UNSETTLED"
)
