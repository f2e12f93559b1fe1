package digest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/engine/offer"
	"github.com/ashfield-games/greatwork/internal/engine/orders"
	"github.com/ashfield-games/greatwork/internal/engine/scholar"
	"github.com/ashfield-games/greatwork/internal/engine/theory"
)

// registerBuiltins wires the built-in order handlers into the registry.
func registerBuiltins(registry *orders.Registry, engine *Engine) error {
	builtins := map[string]orders.Handler{
		orders.TypeMentorshipActivation: orders.HandlerFunc(engine.handleMentorshipActivation),
		orders.TypeConferenceResolution: orders.HandlerFunc(engine.handleConferenceResolution),
		orders.TypeNegotiationStep:      orders.HandlerFunc(engine.handleNegotiationStep),
		orders.TypeDeadlineReminder:     orders.HandlerFunc(engine.handleDeadlineReminder),
		orders.TypeTheoryDeadline:       orders.HandlerFunc(engine.handleTheoryDeadline),
	}
	for orderType, handler := range builtins {
		if err := registry.Register(orderType, handler); err != nil {
			return fmt.Errorf("register %s handler: %w", orderType, err)
		}
	}
	return nil
}

// mentorshipPayload is the order payload for a scheduled mentorship session.
type mentorshipPayload struct {
	ScholarID string `json:"scholar_id"`
}

// handleMentorshipActivation records the mentorship in the scholar's memory:
// a fact plus warmth toward the mentoring player.
func (e *Engine) handleMentorshipActivation(ctx context.Context, o orders.Order) (orders.Result, error) {
	var payload mentorshipPayload
	if err := json.Unmarshal(o.Payload, &payload); err != nil {
		return orders.Result{}, fmt.Errorf("mentorship payload: %w", err)
	}
	scholarID := payload.ScholarID
	if scholarID == "" {
		scholarID = o.SubjectID
	}
	s, err := e.store.GetScholar(ctx, e.tick.campaignID, scholarID)
	if err != nil {
		return orders.Result{}, fmt.Errorf("load scholar %s: %w", scholarID, err)
	}
	if s.Retired {
		return orders.Result{Note: "scholar retired before the session"}, nil
	}

	recorded := scholar.MemoryRecordedPayload{
		ScholarID:    s.ID,
		FactKind:     string(scholar.FactKindMentored),
		Participants: []string{o.ActorID},
		FeelingID:    o.ActorID,
		FeelingDelta: 2,
	}
	if _, err := e.appendSystemEvent(ctx, event.TypeScholarMemoryRecorded, "scholar", s.ID, recorded); err != nil {
		return orders.Result{}, err
	}
	return orders.Result{Note: fmt.Sprintf("mentored %s", s.Name)}, nil
}

// handleConferenceResolution awards the follow-up recognition for a solid
// expedition: the findings were presented and the player's standing rises.
func (e *Engine) handleConferenceResolution(ctx context.Context, o orders.Order) (orders.Result, error) {
	exp, err := e.store.GetExpedition(ctx, e.tick.campaignID, o.SubjectID)
	if err != nil {
		return orders.Result{}, fmt.Errorf("load expedition %s: %w", o.SubjectID, err)
	}
	reason := fmt.Sprintf("conference on expedition %s findings", exp.ID)
	if err := e.adjustReputation(ctx, exp.PlayerID, 2, reason); err != nil {
		return orders.Result{}, err
	}
	return orders.Result{Note: "conference held"}, nil
}

// handleNegotiationStep resolves one round of a poach negotiation. The
// defection probability is a pure function of the scholar snapshot and the
// standing terms; exactly one draw decides, and both values are embedded in
// the resolution event so replay never re-rolls.
func (e *Engine) handleNegotiationStep(ctx context.Context, o orders.Order) (orders.Result, error) {
	off, err := e.store.GetOffer(ctx, e.tick.campaignID, o.SubjectID)
	if err != nil {
		return orders.Result{}, fmt.Errorf("load offer %s: %w", o.SubjectID, err)
	}
	if off.State.IsTerminal() {
		return orders.Result{Note: "offer already settled"}, nil
	}
	s, err := e.store.GetScholar(ctx, e.tick.campaignID, off.ScholarID)
	if err != nil {
		return orders.Result{}, fmt.Errorf("load scholar %s: %w", off.ScholarID, err)
	}
	if s.Retired {
		return e.resolveOffer(ctx, off, offer.StateWithdrawn, 0, 0)
	}

	terms := scholar.OfferTerms{
		Quality:   off.EffectiveQuality(),
		FactionID: off.Terms.Faction,
	}
	signals := scholar.DeriveSignals(s, terms, e.tick.now, e.tick.year)
	probability := scholar.DefectionProbability(s.Stats, terms, signals, e.cfg.Defect)

	stream := e.streamForNextEvent()
	draw := stream.Float64()

	if draw < probability {
		result, err := e.resolveOffer(ctx, off, offer.StateAccepted, probability, draw)
		if err != nil {
			return orders.Result{}, err
		}
		// The scholar defects: they leave the roster, and the departure
		// scars their memory of the employer who lost them.
		recorded := scholar.MemoryRecordedPayload{
			ScholarID:    s.ID,
			FactKind:     string(scholar.FactKindBetrayed),
			Participants: []string{off.ActorID},
			ScarID:       off.ActorID,
		}
		if _, err := e.appendSystemEvent(ctx, event.TypeScholarMemoryRecorded, "scholar", s.ID, recorded); err != nil {
			return orders.Result{}, err
		}
		retired := scholar.RetiredPayload{ScholarID: s.ID, Reason: "defected to " + off.Terms.Faction}
		if _, err := e.appendSystemEvent(ctx, event.TypeScholarRetired, "scholar", s.ID, retired); err != nil {
			return orders.Result{}, err
		}
		return result, nil
	}

	result, err := e.resolveOffer(ctx, off, offer.StateDeclined, probability, draw)
	if err != nil {
		return orders.Result{}, err
	}
	// The scholar stayed but remembers being courted.
	recorded := scholar.MemoryRecordedPayload{
		ScholarID:    s.ID,
		FactKind:     string(scholar.FactKindPoachAttempt),
		Participants: []string{off.ActorID},
	}
	if _, err := e.appendSystemEvent(ctx, event.TypeScholarMemoryRecorded, "scholar", s.ID, recorded); err != nil {
		return orders.Result{}, err
	}
	return result, nil
}

// resolveOffer appends the offer resolution and, when escrow comes back,
// the refund event.
func (e *Engine) resolveOffer(ctx context.Context, off offer.Offer, outcome offer.State, probability, draw float64) (orders.Result, error) {
	escrowReturned := outcome == offer.StateDeclined || outcome == offer.StateWithdrawn
	payload := offer.ResolvedPayload{
		OfferID:        off.ID,
		Outcome:        string(outcome),
		Probability:    probability,
		Draw:           draw,
		EscrowReturned: escrowReturned,
	}
	if outcome == offer.StateDeclined && e.cfg.OfferCooldownYears > 0 {
		// A rebuffed suitor waits before courting the same scholar again.
		payload.CooldownUntilYear = e.tick.year + e.cfg.OfferCooldownYears
	}
	if _, err := e.appendSystemEvent(ctx, event.TypeOfferResolved, "offer", off.ID, payload); err != nil {
		return orders.Result{}, err
	}
	if escrowReturned && off.Terms.Escrow > 0 {
		reason := fmt.Sprintf("escrow returned from offer %s", off.ID)
		if err := e.adjustInfluence(ctx, off.ActorID, off.Terms.Faction, off.Terms.Escrow, reason); err != nil {
			return orders.Result{}, err
		}
	}
	return orders.Result{Note: fmt.Sprintf("offer %s", outcome)}, nil
}

// handleDeadlineReminder completes without side effects; the reminder itself
// is the order.completed event picked up by the press layer.
func (e *Engine) handleDeadlineReminder(_ context.Context, o orders.Order) (orders.Result, error) {
	return orders.Result{Note: fmt.Sprintf("reminder issued for %s", o.SubjectID)}, nil
}

// theoryPenalties maps a theory's staked confidence to the reputation cost
// of letting it expire. Bolder claims cost more.
var theoryPenalties = map[theory.Confidence]int{
	theory.ConfidenceSpeculative: 0,
	theory.ConfidenceProbable:    -1,
	theory.ConfidenceCertain:     -3,
}

// handleTheoryDeadline expires an unresolved theory whose deadline has
// passed. An early fire reschedules itself for the real deadline.
func (e *Engine) handleTheoryDeadline(ctx context.Context, o orders.Order) (orders.Result, error) {
	t, err := e.store.GetTheory(ctx, e.tick.campaignID, o.SubjectID)
	if err != nil {
		return orders.Result{}, fmt.Errorf("load theory %s: %w", o.SubjectID, err)
	}
	if t.Resolved() {
		return orders.Result{Note: "theory already resolved"}, nil
	}
	if t.Deadline.After(e.tick.now) {
		return orders.Result{
			Note: "deadline not yet reached",
			FollowUps: []orders.Order{{
				OrderType:   orders.TypeTheoryDeadline,
				SubjectID:   t.ID,
				ScheduledAt: t.Deadline,
				SourceTable: "theories",
				SourceID:    t.ID,
			}},
		}, nil
	}

	resolved := theory.ResolvedPayload{
		TheoryID: t.ID,
		Outcome:  string(theory.OutcomeExpired),
		Reason:   "deadline passed without judgment",
	}
	if _, err := e.appendSystemEvent(ctx, event.TypeTheoryResolved, "theory", t.ID, resolved); err != nil {
		return orders.Result{}, err
	}
	if penalty := theoryPenalties[t.Confidence]; penalty != 0 {
		reason := fmt.Sprintf("theory %s expired unproven", t.ID)
		if err := e.adjustReputation(ctx, t.PlayerID, penalty, reason); err != nil {
			return orders.Result{}, err
		}
	}
	return orders.Result{Note: "theory expired"}, nil
}
