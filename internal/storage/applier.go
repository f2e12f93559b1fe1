package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/engine/expedition"
	"github.com/ashfield-games/greatwork/internal/engine/influence"
	"github.com/ashfield-games/greatwork/internal/engine/offer"
	"github.com/ashfield-games/greatwork/internal/engine/orders"
	"github.com/ashfield-games/greatwork/internal/engine/player"
	"github.com/ashfield-games/greatwork/internal/engine/scholar"
	"github.com/ashfield-games/greatwork/internal/engine/theory"
)

// idRequirement specifies which event envelope fields a handler requires.
type idRequirement uint8

const (
	requireCampaignID idRequirement = 1 << iota
	requireEntityID
)

// storeRequirement specifies which stores a handler depends on. Checked
// before dispatch; the handler will not execute if a required store is nil.
type storeRequirement uint16

const (
	needPlayer storeRequirement = 1 << iota
	needScholar
	needTheory
	needExpedition
	needOrder
	needOffer
	needTimeline
)

// handlerEntry declares the preconditions and apply function for one event type.
type handlerEntry struct {
	stores storeRequirement
	ids    idRequirement
	apply  func(Applier, context.Context, event.Event) error
}

// handlers maps each projected event type to its handler entry. Events
// without an entry (e.g. digest.tick_completed) update no projection.
var handlers = map[event.Type]handlerEntry{
	// player and timeline
	event.TypePlayerCreated: {
		stores: needPlayer,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyPlayerCreated(ctx, evt) },
	},
	event.TypeTimelineAdvanced: {
		stores: needTimeline | needPlayer | needScholar,
		ids:    requireCampaignID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyTimelineAdvanced(ctx, evt) },
	},
	event.TypeReputationAdjusted: {
		stores: needPlayer,
		ids:    requireCampaignID | requireEntityID,
		apply: func(a Applier, ctx context.Context, evt event.Event) error {
			return a.applyReputationAdjusted(ctx, evt)
		},
	},
	event.TypeInfluenceAdjusted: {
		stores: needPlayer,
		ids:    requireCampaignID | requireEntityID,
		apply: func(a Applier, ctx context.Context, evt event.Event) error {
			return a.applyInfluenceAdjusted(ctx, evt)
		},
	},

	// scholar
	event.TypeScholarSpawned: {
		stores: needScholar,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyScholarSpawned(ctx, evt) },
	},
	event.TypeScholarRetired: {
		stores: needScholar,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyScholarRetired(ctx, evt) },
	},
	event.TypeScholarMemoryRecorded: {
		stores: needScholar,
		ids:    requireCampaignID | requireEntityID,
		apply: func(a Applier, ctx context.Context, evt event.Event) error {
			return a.applyScholarMemoryRecorded(ctx, evt)
		},
	},

	// theory
	event.TypeTheorySubmitted: {
		stores: needTheory,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyTheorySubmitted(ctx, evt) },
	},
	event.TypeTheoryResolved: {
		stores: needTheory,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyTheoryResolved(ctx, evt) },
	},

	// expedition
	event.TypeExpeditionLaunched: {
		stores: needExpedition | needPlayer,
		ids:    requireCampaignID | requireEntityID,
		apply: func(a Applier, ctx context.Context, evt event.Event) error {
			return a.applyExpeditionLaunched(ctx, evt)
		},
	},
	event.TypeExpeditionResolved: {
		stores: needExpedition | needPlayer,
		ids:    requireCampaignID | requireEntityID,
		apply: func(a Applier, ctx context.Context, evt event.Event) error {
			return a.applyExpeditionResolved(ctx, evt)
		},
	},

	// orders
	event.TypeOrderEnqueued: {
		stores: needOrder,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyOrderEnqueued(ctx, evt) },
	},
	event.TypeOrderActivated: {
		stores: needOrder,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyOrderActivated(ctx, evt) },
	},
	event.TypeOrderCompleted: {
		stores: needOrder,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyOrderCompleted(ctx, evt) },
	},
	event.TypeOrderCancelled: {
		stores: needOrder,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyOrderCancelled(ctx, evt) },
	},
	event.TypeOrderFailed: {
		stores: needOrder,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyOrderFailed(ctx, evt) },
	},

	// offers
	event.TypeOfferCreated: {
		stores: needOffer,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyOfferCreated(ctx, evt) },
	},
	event.TypeOfferCountered: {
		stores: needOffer,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyOfferCountered(ctx, evt) },
	},
	event.TypeOfferResolved: {
		stores: needOffer | needPlayer,
		ids:    requireCampaignID | requireEntityID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyOfferResolved(ctx, evt) },
	},

	// digest
	event.TypeDigestTickCompleted: {
		stores: needTimeline,
		ids:    requireCampaignID,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyTickCompleted(ctx, evt) },
	},
}

// Applier applies journal events to projection stores. Apply is a pure
// function of projected state and the event payload: it never reads the
// clock or RNG, so replay reconstructs projections exactly.
type Applier struct {
	Players     PlayerStore
	Scholars    ScholarStore
	Theories    TheoryStore
	Expeditions ExpeditionStore
	Orders      OrderStore
	Offers      OfferStore
	Timelines   TimelineStore

	// FeelingDecayRate multiplies every unscarred scholar feeling when a
	// timeline.advanced event applies. Values outside (0,1) disable decay.
	FeelingDecayRate float64
}

// Apply routes an event to its projection handler. Unknown event types are
// skipped so old journals stay replayable after new types ship.
func (a Applier) Apply(ctx context.Context, evt event.Event) error {
	entry, ok := handlers[evt.Type]
	if !ok {
		return nil
	}
	if err := a.checkStores(entry.stores, evt.Type); err != nil {
		return err
	}
	if entry.ids&requireCampaignID != 0 && strings.TrimSpace(evt.CampaignID) == "" {
		return fmt.Errorf("%s: campaign id is required", evt.Type)
	}
	if entry.ids&requireEntityID != 0 && strings.TrimSpace(evt.EntityID) == "" {
		return fmt.Errorf("%s: entity id is required", evt.Type)
	}
	return entry.apply(a, ctx, evt)
}

func (a Applier) checkStores(required storeRequirement, t event.Type) error {
	checks := []struct {
		need  storeRequirement
		ok    bool
		label string
	}{
		{needPlayer, a.Players != nil, "player"},
		{needScholar, a.Scholars != nil, "scholar"},
		{needTheory, a.Theories != nil, "theory"},
		{needExpedition, a.Expeditions != nil, "expedition"},
		{needOrder, a.Orders != nil, "order"},
		{needOffer, a.Offers != nil, "offer"},
		{needTimeline, a.Timelines != nil, "timeline"},
	}
	for _, check := range checks {
		if required&check.need != 0 && !check.ok {
			return fmt.Errorf("%s: %s store is not configured", t, check.label)
		}
	}
	return nil
}

func (a Applier) applyPlayerCreated(ctx context.Context, evt event.Event) error {
	var payload player.CreatedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	p := player.New(payload.PlayerID, evt.Timestamp)
	return a.Players.PutPlayer(ctx, evt.CampaignID, p)
}

func (a Applier) applyTimelineAdvanced(ctx context.Context, evt event.Event) error {
	var payload event.TimelineAdvancedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	timeline, err := a.Timelines.GetTimeline(ctx, evt.CampaignID)
	if err != nil {
		return err
	}
	timeline.CurrentYear = payload.ToYear
	if err := a.Timelines.PutTimeline(ctx, timeline); err != nil {
		return err
	}

	// Per-tick decay rides on the timeline event so replay reproduces it
	// without any clock or RNG: expired cooldowns drop, unscarred feelings
	// shrink geometrically.
	players, err := a.Players.ListPlayers(ctx, evt.CampaignID)
	if err != nil {
		return err
	}
	for _, p := range players {
		if p.DecayCooldowns(payload.ToYear) > 0 {
			if err := a.Players.PutPlayer(ctx, evt.CampaignID, p); err != nil {
				return err
			}
		}
	}
	if a.FeelingDecayRate > 0 && a.FeelingDecayRate < 1 {
		scholars, err := a.Scholars.ListScholars(ctx, evt.CampaignID, true)
		if err != nil {
			return err
		}
		for _, s := range scholars {
			if len(s.Memory.Feelings) == 0 {
				continue
			}
			s.Memory.DecayFeelings(a.FeelingDecayRate)
			if err := a.Scholars.PutScholar(ctx, evt.CampaignID, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a Applier) applyReputationAdjusted(ctx context.Context, evt event.Event) error {
	var payload player.ReputationAdjustedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	p, err := a.Players.GetPlayer(ctx, evt.CampaignID, payload.PlayerID)
	if err != nil {
		return err
	}
	p.Reputation = payload.NewValue
	return a.Players.PutPlayer(ctx, evt.CampaignID, p)
}

func (a Applier) applyInfluenceAdjusted(ctx context.Context, evt event.Event) error {
	var payload player.InfluenceAdjustedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	p, err := a.Players.GetPlayer(ctx, evt.CampaignID, payload.PlayerID)
	if err != nil {
		return err
	}
	if p.Influence == nil {
		p.Influence = influence.NewVector()
	}
	p.Influence[influence.Faction(payload.Faction)] = payload.NewValue
	return a.Players.PutPlayer(ctx, evt.CampaignID, p)
}

func (a Applier) applyScholarSpawned(ctx context.Context, evt event.Event) error {
	var payload scholar.SpawnedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	tier, ok := scholar.ParseTier(payload.Tier)
	if !ok {
		return fmt.Errorf("%s: unknown tier %q", evt.Type, payload.Tier)
	}
	s := scholar.New(payload.ScholarID, payload.Name, tier, payload.Stats, evt.Timestamp)
	s.Archetype = payload.Archetype
	return a.Scholars.PutScholar(ctx, evt.CampaignID, s)
}

func (a Applier) applyScholarRetired(ctx context.Context, evt event.Event) error {
	var payload scholar.RetiredPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	s, err := a.Scholars.GetScholar(ctx, evt.CampaignID, payload.ScholarID)
	if err != nil {
		return err
	}
	s.Retired = true
	return a.Scholars.PutScholar(ctx, evt.CampaignID, s)
}

func (a Applier) applyScholarMemoryRecorded(ctx context.Context, evt event.Event) error {
	var payload scholar.MemoryRecordedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	s, err := a.Scholars.GetScholar(ctx, evt.CampaignID, payload.ScholarID)
	if err != nil {
		return err
	}
	if payload.FactKind != "" {
		s.Memory.RecordFact(evt.Timestamp, scholar.FactKind(payload.FactKind), payload.Participants...)
	}
	if payload.FeelingID != "" {
		s.Memory.AdjustFeeling(payload.FeelingID, payload.FeelingDelta)
	}
	if payload.ScarID != "" {
		s.Memory.Scar(payload.ScarID)
	}
	return a.Scholars.PutScholar(ctx, evt.CampaignID, s)
}

func (a Applier) applyTheorySubmitted(ctx context.Context, evt event.Event) error {
	var payload theory.SubmittedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	t, err := theory.New(
		payload.TheoryID,
		payload.PlayerID,
		payload.Claim,
		theory.Confidence(payload.Confidence),
		payload.Supporters,
		time.UnixMilli(payload.DeadlineMs).UTC(),
		evt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", evt.Type, err)
	}
	return a.Theories.PutTheory(ctx, evt.CampaignID, t)
}

func (a Applier) applyTheoryResolved(ctx context.Context, evt event.Event) error {
	var payload theory.ResolvedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	t, err := a.Theories.GetTheory(ctx, evt.CampaignID, payload.TheoryID)
	if err != nil {
		return err
	}
	if err := t.Resolve(theory.Outcome(payload.Outcome), evt.Timestamp); err != nil {
		return fmt.Errorf("%s: %w", evt.Type, err)
	}
	return a.Theories.PutTheory(ctx, evt.CampaignID, t)
}

func (a Applier) applyExpeditionLaunched(ctx context.Context, evt event.Event) error {
	var payload expedition.LaunchedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	e, err := expedition.New(
		payload.ExpeditionID,
		payload.PlayerID,
		expedition.Tier(payload.Type),
		payload.Team,
		payload.PrepDepth,
		expedition.Funding(payload.Funding),
		evt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", evt.Type, err)
	}
	if err := a.Expeditions.PutExpedition(ctx, evt.CampaignID, e); err != nil {
		return err
	}
	if payload.PatronDebt > 0 {
		p, err := a.Players.GetPlayer(ctx, evt.CampaignID, payload.PlayerID)
		if err != nil {
			return err
		}
		key := player.PatronDebtKey(payload.ExpeditionID)
		// Guarded so re-applying the same event never double-books.
		if _, ok := p.Debts[key]; !ok {
			p.AddDebt(key, payload.PatronDebt)
			if err := a.Players.PutPlayer(ctx, evt.CampaignID, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a Applier) applyExpeditionResolved(ctx context.Context, evt event.Event) error {
	var payload expedition.ResolvedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	e, err := a.Expeditions.GetExpedition(ctx, evt.CampaignID, payload.ExpeditionID)
	if err != nil {
		return err
	}
	e.Status = expedition.StatusResolved
	if err := a.Expeditions.PutExpedition(ctx, evt.CampaignID, e); err != nil {
		return err
	}

	// A solid or landmark result repays the patron; lesser outcomes leave the
	// debt standing against future patron funding.
	band := expedition.Band(payload.Band)
	if e.Funding == expedition.FundingPatron && (band == expedition.BandSolid || band == expedition.BandLandmark) {
		p, err := a.Players.GetPlayer(ctx, evt.CampaignID, e.PlayerID)
		if err != nil {
			return err
		}
		key := player.PatronDebtKey(payload.ExpeditionID)
		if settled := p.SettleDebt(key, p.Debts[key]); settled > 0 {
			if err := a.Players.PutPlayer(ctx, evt.CampaignID, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a Applier) applyOrderEnqueued(ctx context.Context, evt event.Event) error {
	var payload orders.EnqueuedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	o, err := orders.New(
		payload.OrderID,
		payload.OrderType,
		payload.ActorID,
		payload.SubjectID,
		payload.Payload,
		time.UnixMilli(payload.ScheduledMs).UTC(),
		evt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", evt.Type, err)
	}
	o.SourceTable = payload.SourceTable
	o.SourceID = payload.SourceID
	return a.Orders.PutOrder(ctx, evt.CampaignID, o)
}

func (a Applier) applyOrderActivated(ctx context.Context, evt event.Event) error {
	var payload orders.ActivatedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	o, err := a.Orders.GetOrder(ctx, evt.CampaignID, payload.OrderID)
	if err != nil {
		return err
	}
	// The attempt count is replayed from the payload, not recomputed, so a
	// partially replayed journal still converges.
	o.Status = orders.StatusActive
	o.Attempts = payload.Attempt
	return a.Orders.PutOrder(ctx, evt.CampaignID, o)
}

func (a Applier) applyOrderCompleted(ctx context.Context, evt event.Event) error {
	var payload orders.CompletedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	o, err := a.Orders.GetOrder(ctx, evt.CampaignID, payload.OrderID)
	if err != nil {
		return err
	}
	if err := o.Complete(payload.Result); err != nil {
		return fmt.Errorf("%s: %w", evt.Type, err)
	}
	return a.Orders.PutOrder(ctx, evt.CampaignID, o)
}

func (a Applier) applyOrderCancelled(ctx context.Context, evt event.Event) error {
	var payload orders.CancelledPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	o, err := a.Orders.GetOrder(ctx, evt.CampaignID, payload.OrderID)
	if err != nil {
		return err
	}
	o.Cancel(payload.Reason)
	return a.Orders.PutOrder(ctx, evt.CampaignID, o)
}

func (a Applier) applyOrderFailed(ctx context.Context, evt event.Event) error {
	var payload orders.FailedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	o, err := a.Orders.GetOrder(ctx, evt.CampaignID, payload.OrderID)
	if err != nil {
		return err
	}
	o.Attempts = payload.Attempt
	if !payload.Final {
		// A non-final failure returns the order to pending with its
		// attempt count; a later tick retries it.
		o.Status = orders.StatusPending
		o.Reason = payload.Error
		return a.Orders.PutOrder(ctx, evt.CampaignID, o)
	}
	if err := o.Fail(payload.Error); err != nil {
		return fmt.Errorf("%s: %w", evt.Type, err)
	}
	return a.Orders.PutOrder(ctx, evt.CampaignID, o)
}

func (a Applier) applyOfferCreated(ctx context.Context, evt event.Event) error {
	var payload offer.CreatedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	o, err := offer.New(
		payload.OfferID,
		payload.ActorID,
		payload.ScholarID,
		offer.Terms{Faction: payload.Faction, Escrow: payload.Escrow, Promise: payload.Promise},
		evt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", evt.Type, err)
	}
	return a.Offers.PutOffer(ctx, evt.CampaignID, o)
}

func (a Applier) applyOfferCountered(ctx context.Context, evt event.Event) error {
	var payload offer.CounteredPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	o, err := a.Offers.GetOffer(ctx, evt.CampaignID, payload.OfferID)
	if err != nil {
		return err
	}
	// Round is replayed from the payload for idempotent re-application.
	o.Counter = offer.Terms{Faction: payload.Faction, Escrow: payload.Escrow, Promise: payload.Promise}
	o.State = offer.StateCountered
	o.Rounds = payload.Round
	return a.Offers.PutOffer(ctx, evt.CampaignID, o)
}

func (a Applier) applyOfferResolved(ctx context.Context, evt event.Event) error {
	var payload offer.ResolvedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	o, err := a.Offers.GetOffer(ctx, evt.CampaignID, payload.OfferID)
	if err != nil {
		return err
	}
	if err := o.Resolve(offer.State(payload.Outcome), evt.Timestamp); err != nil {
		return fmt.Errorf("%s: %w", evt.Type, err)
	}
	if err := a.Offers.PutOffer(ctx, evt.CampaignID, o); err != nil {
		return err
	}
	if payload.CooldownUntilYear > 0 {
		p, err := a.Players.GetPlayer(ctx, evt.CampaignID, o.ActorID)
		if err != nil {
			return err
		}
		p.SetCooldown(player.PoachCooldownKey(o.ScholarID), payload.CooldownUntilYear)
		if err := a.Players.PutPlayer(ctx, evt.CampaignID, p); err != nil {
			return err
		}
	}
	return nil
}

func (a Applier) applyTickCompleted(ctx context.Context, evt event.Event) error {
	timeline, err := a.Timelines.GetTimeline(ctx, evt.CampaignID)
	if err != nil {
		return err
	}
	timeline.LastTickAt = evt.Timestamp.UTC()
	return a.Timelines.PutTimeline(ctx, timeline)
}
