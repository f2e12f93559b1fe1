// Package theory models published claims and their terminal resolution.
//
// A theory is immutable once published: the claim text, confidence level,
// supporters, and deadline never change. The only permitted mutation is the
// single transition into a terminal outcome.
package theory

import (
	"fmt"
	"time"

	"github.com/ashfield-games/greatwork/internal/platform/errors"
)

// Confidence is the declared strength of a theory's claim.
type Confidence string

const (
	// ConfidenceSpeculative marks a tentative claim with low stakes.
	ConfidenceSpeculative Confidence = "speculative"
	// ConfidenceProbable marks a claim the player expects to hold.
	ConfidenceProbable Confidence = "probable"
	// ConfidenceCertain marks a high-stakes claim staked on reputation.
	ConfidenceCertain Confidence = "certain"
)

// Confidences lists valid levels in ascending stake order.
var Confidences = []Confidence{ConfidenceSpeculative, ConfidenceProbable, ConfidenceCertain}

// IsValid reports whether the confidence level is a known value.
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceSpeculative, ConfidenceProbable, ConfidenceCertain:
		return true
	}
	return false
}

// Outcome is a theory's terminal state.
type Outcome string

const (
	// OutcomeVindicated means the claim was borne out.
	OutcomeVindicated Outcome = "vindicated"
	// OutcomeRefuted means the claim was disproven.
	OutcomeRefuted Outcome = "refuted"
	// OutcomeExpired means the deadline passed without resolution.
	OutcomeExpired Outcome = "expired"
	// OutcomeRetracted means the owner withdrew the claim.
	OutcomeRetracted Outcome = "retracted"
)

// IsValid reports whether the outcome is a known terminal state.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeVindicated, OutcomeRefuted, OutcomeExpired, OutcomeRetracted:
		return true
	}
	return false
}

// Theory is the projected state for one published claim.
type Theory struct {
	ID          string
	PlayerID    string
	Claim       string
	Confidence  Confidence
	Supporters  []string
	Deadline    time.Time
	SubmittedAt time.Time

	// Outcome is empty while the theory is open.
	Outcome    Outcome
	ResolvedAt time.Time
}

// New validates and builds a theory record at submission time.
func New(theoryID, playerID, claim string, confidence Confidence, supporters []string, deadline, submittedAt time.Time) (Theory, error) {
	if claim == "" {
		return Theory{}, errors.New(errors.CodeTheoryClaimEmpty, "theory claim must not be empty")
	}
	if !confidence.IsValid() {
		return Theory{}, errors.New(errors.CodeTheoryInvalidConfidence,
			fmt.Sprintf("unknown confidence level %q", confidence))
	}
	if !deadline.After(submittedAt) {
		return Theory{}, errors.New(errors.CodeTheoryDeadlinePast, "theory deadline must be after submission")
	}
	return Theory{
		ID:          theoryID,
		PlayerID:    playerID,
		Claim:       claim,
		Confidence:  confidence,
		Supporters:  append([]string(nil), supporters...),
		Deadline:    deadline.UTC(),
		SubmittedAt: submittedAt.UTC(),
	}, nil
}

// Resolved reports whether the theory has reached a terminal outcome.
func (t Theory) Resolved() bool {
	return t.Outcome != ""
}

// Resolve transitions an open theory to a terminal outcome. A second
// resolution with the same outcome is an idempotent no-op; any other change
// after resolution is rejected.
func (t *Theory) Resolve(outcome Outcome, at time.Time) error {
	if !outcome.IsValid() {
		return errors.New(errors.CodeUnknown, fmt.Sprintf("unknown theory outcome %q", outcome))
	}
	if t.Resolved() {
		if t.Outcome == outcome {
			return nil
		}
		return errors.WithMetadata(errors.CodeTheoryAlreadyResolved, "theory already resolved",
			map[string]string{"theory_id": t.ID, "outcome": string(t.Outcome)})
	}
	t.Outcome = outcome
	t.ResolvedAt = at.UTC()
	return nil
}

// Retract is the owner-initiated terminal transition.
func (t *Theory) Retract(at time.Time) error {
	return t.Resolve(OutcomeRetracted, at)
}
