// Package offer models poach negotiations over scholars.
//
// An offer escrows the courting side's influence up front: the escrow backs
// the offer's quality, is consumed when the scholar accepts, and is returned
// when the negotiation ends any other way. Negotiation is a small state
// machine (open, countered, then one terminal outcome) advanced by player
// actions and by the digest's negotiation-step orders.
package offer

import (
	"fmt"
	"time"

	"github.com/ashfield-games/greatwork/internal/platform/errors"
)

// State is the negotiation stage.
type State string

const (
	// StateOpen means the initial poach offer stands unanswered.
	StateOpen State = "open"
	// StateCountered means the current employer has answered with terms.
	StateCountered State = "countered"
	// StateAccepted means the scholar took the offer; escrow is consumed.
	StateAccepted State = "accepted"
	// StateDeclined means the scholar stayed; escrow is returned.
	StateDeclined State = "declined"
	// StateWithdrawn means the courting side pulled out; escrow is returned.
	StateWithdrawn State = "withdrawn"
)

// IsTerminal reports whether the state permits no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateAccepted, StateDeclined, StateWithdrawn:
		return true
	}
	return false
}

// escrowQualityScale converts escrowed influence into offer quality. An
// escrow at or above the scale maps to quality 1.0.
const escrowQualityScale = 20.0

// Terms are one side's offer in a negotiation round.
type Terms struct {
	// Faction is the side the scholar would join or stay with.
	Faction string `json:"faction"`
	// Escrow is the influence committed behind the terms.
	Escrow int `json:"escrow"`
	// Promise is an optional career promise, e.g. a tier on arrival.
	Promise string `json:"promise,omitempty"`
}

// Quality maps the committed escrow to the defection model's [0,1] scale.
func (t Terms) Quality() float64 {
	q := float64(t.Escrow) / escrowQualityScale
	if q > 1 {
		return 1
	}
	if q < 0 {
		return 0
	}
	return q
}

// Offer is the projected state of one negotiation.
type Offer struct {
	ID        string
	ActorID   string
	ScholarID string
	Terms     Terms
	// Counter holds the latest answering terms; zero until countered.
	Counter   Terms
	State     State
	Rounds    int
	CreatedAt time.Time

	Outcome    State
	ResolvedAt time.Time
}

// New validates and opens a poach offer.
func New(offerID, actorID, scholarID string, terms Terms, createdAt time.Time) (Offer, error) {
	if terms.Faction == "" || terms.Escrow <= 0 {
		return Offer{}, errors.New(errors.CodeOfferTermsEmpty, "offer terms require a faction and a positive escrow")
	}
	return Offer{
		ID:        offerID,
		ActorID:   actorID,
		ScholarID: scholarID,
		Terms:     terms,
		State:     StateOpen,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// ApplyCounter records answering terms and advances the negotiation a round.
func (o *Offer) ApplyCounter(terms Terms) error {
	if o.State.IsTerminal() {
		return o.terminalError()
	}
	if terms.Faction == "" || terms.Escrow <= 0 {
		return errors.New(errors.CodeOfferTermsEmpty, "counter terms require a faction and a positive escrow")
	}
	o.Counter = terms
	o.State = StateCountered
	o.Rounds++
	return nil
}

// EffectiveQuality is the poach offer's quality net of the standing counter.
// It feeds the defection model, floored at zero.
func (o Offer) EffectiveQuality() float64 {
	q := o.Terms.Quality() - o.Counter.Quality()
	if q < 0 {
		return 0
	}
	return q
}

// Resolve moves the negotiation to a terminal outcome. Resolving again with
// the same outcome is an idempotent no-op; any other change is rejected.
func (o *Offer) Resolve(outcome State, at time.Time) error {
	if !outcome.IsTerminal() {
		return errors.New(errors.CodeOfferInvalidTransition,
			fmt.Sprintf("%q is not a terminal offer state", outcome))
	}
	if o.State.IsTerminal() {
		if o.State == outcome {
			return nil
		}
		return o.terminalError()
	}
	o.State = outcome
	o.Outcome = outcome
	o.ResolvedAt = at.UTC()
	return nil
}

// EscrowReturned reports whether resolution hands the escrow back.
func (o Offer) EscrowReturned() bool {
	return o.State == StateDeclined || o.State == StateWithdrawn
}

func (o *Offer) terminalError() error {
	return errors.WithMetadata(errors.CodeOfferInvalidTransition, "offer negotiation already resolved",
		map[string]string{"offer_id": o.ID, "state": string(o.State)})
}
