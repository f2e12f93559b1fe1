// Package service is the action-request surface of the digest engine.
//
// Player-facing systems call it to submit theories, launch expeditions, and
// run negotiations. Every operation validates synchronously; a rejected
// request appends nothing. Accepted requests append their event(s) and
// return the journal identity of the primary event.
package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
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
	"github.com/ashfield-games/greatwork/internal/platform/errors"
	"github.com/ashfield-games/greatwork/internal/platform/id"
	"github.com/ashfield-games/greatwork/internal/storage"
	"github.com/ashfield-games/greatwork/internal/tuning"
)

// Service handles player and admin action requests against a campaign store.
type Service struct {
	store   storage.Store
	events  *event.Registry
	applier storage.Applier
	cfg     tuning.Tuning
	now     func() time.Time
	newID   func() (string, error)
}

// New builds a service over the given store and event registry.
func New(store storage.Store, registry *event.Registry, cfg tuning.Tuning) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("event registry is required")
	}
	return &Service{
		store:  store,
		events: registry,
		applier: storage.Applier{
			Players:          store,
			Scholars:         store,
			Theories:         store,
			Expeditions:      store,
			Orders:           store,
			Offers:           store,
			Timelines:        store,
			FeelingDecayRate: cfg.FeelingDecayRate,
		},
		cfg:   cfg,
		now:   time.Now,
		newID: id.NewID,
	}, nil
}

// NewEventRegistry builds a registry with every engine event registered.
func NewEventRegistry() (*event.Registry, error) {
	registry := event.NewRegistry()
	registrations := []func(*event.Registry) error{
		event.RegisterCoreEvents,
		player.RegisterEvents,
		scholar.RegisterEvents,
		theory.RegisterEvents,
		expedition.RegisterEvents,
		orders.RegisterEvents,
		offer.RegisterEvents,
	}
	for _, register := range registrations {
		if err := register(registry); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// SetClock replaces the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// append validates, appends, and applies one event, returning its stored form.
func (s *Service) append(ctx context.Context, evt event.Event) (event.Event, error) {
	evt, err := s.events.ValidateForAppend(evt)
	if err != nil {
		if stderrors.Is(err, event.ErrPayloadSchema) {
			return event.Event{}, errors.New(errors.CodeEventPayloadSchema, err.Error())
		}
		if stderrors.Is(err, event.ErrTypeUnknown) {
			return event.Event{}, errors.New(errors.CodeEventTypeUnknown, err.Error())
		}
		return event.Event{}, err
	}
	evt, err = s.store.AppendEvent(ctx, evt)
	if err != nil {
		return event.Event{}, err
	}
	if err := s.applier.Apply(ctx, evt); err != nil {
		return event.Event{}, fmt.Errorf("apply %s (seq %d): %w", evt.Type, evt.Seq, err)
	}
	return evt, nil
}

func (s *Service) playerEvent(campaignID, playerID string, typ event.Type, entityType, entityID string, payload any) (event.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return event.Event{
		CampaignID:  campaignID,
		Timestamp:   s.now().UTC(),
		Type:        typ,
		ActorType:   event.ActorTypePlayer,
		ActorID:     playerID,
		EntityType:  entityType,
		EntityID:    entityID,
		PayloadJSON: raw,
	}, nil
}

// ensurePlayer creates the player record on first action.
func (s *Service) ensurePlayer(ctx context.Context, campaignID, playerID string) (player.Player, error) {
	if strings.TrimSpace(playerID) == "" {
		return player.Player{}, errors.New(errors.CodeNotFound, "player id is required")
	}
	p, err := s.store.GetPlayer(ctx, campaignID, playerID)
	if err == nil {
		return p, nil
	}
	if !stderrors.Is(err, storage.ErrNotFound) {
		return player.Player{}, err
	}

	evt, err := s.playerEvent(campaignID, playerID, event.TypePlayerCreated, "player", playerID,
		player.CreatedPayload{PlayerID: playerID})
	if err != nil {
		return player.Player{}, err
	}
	if _, err := s.append(ctx, evt); err != nil {
		return player.Player{}, err
	}
	return s.store.GetPlayer(ctx, campaignID, playerID)
}

// campaignYear reads the campaign's current simulation year. A campaign that
// has never ticked reports year zero.
func (s *Service) campaignYear(ctx context.Context, campaignID string) (int, error) {
	timeline, err := s.store.GetTimeline(ctx, campaignID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return timeline.CurrentYear, nil
}

// activeScholar loads a scholar and rejects retired ones.
func (s *Service) activeScholar(ctx context.Context, campaignID, scholarID string) (scholar.Scholar, error) {
	sch, err := s.store.GetScholar(ctx, campaignID, scholarID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return scholar.Scholar{}, errors.WithMetadata(errors.CodeScholarNotFound,
				"scholar not found", map[string]string{"scholar_id": scholarID})
		}
		return scholar.Scholar{}, err
	}
	if sch.Retired {
		return scholar.Scholar{}, errors.WithMetadata(errors.CodeScholarRetired,
			"scholar has retired", map[string]string{"scholar_id": scholarID})
	}
	return sch, nil
}

// SubmitTheory stakes a public claim. It queues the deadline order that will
// expire the theory if no judgment lands in time.
func (s *Service) SubmitTheory(ctx context.Context, campaignID, playerID, claim string, confidence theory.Confidence, supporters []string, deadline time.Time) (string, error) {
	theoryID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("theory id: %w", err)
	}
	now := s.now().UTC()
	// Full validation up front; nothing is appended on rejection.
	if _, err := theory.New(theoryID, playerID, claim, confidence, supporters, deadline, now); err != nil {
		return "", err
	}
	if _, err := s.ensurePlayer(ctx, campaignID, playerID); err != nil {
		return "", err
	}

	evt, err := s.playerEvent(campaignID, playerID, event.TypeTheorySubmitted, "theory", theoryID,
		theory.SubmittedPayload{
			TheoryID:   theoryID,
			PlayerID:   playerID,
			Claim:      claim,
			Confidence: string(confidence),
			Supporters: supporters,
			DeadlineMs: deadline.UTC().UnixMilli(),
		})
	if err != nil {
		return "", err
	}
	stored, err := s.append(ctx, evt)
	if err != nil {
		return "", err
	}

	orderID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("order id: %w", err)
	}
	enqueue, err := s.playerEvent(campaignID, playerID, event.TypeOrderEnqueued, "order", orderID,
		orders.EnqueuedPayload{
			OrderID:     orderID,
			OrderType:   orders.TypeTheoryDeadline,
			ActorID:     playerID,
			SubjectID:   theoryID,
			ScheduledMs: deadline.UTC().UnixMilli(),
			SourceTable: "theories",
			SourceID:    theoryID,
		})
	if err != nil {
		return "", err
	}
	if _, err := s.append(ctx, enqueue); err != nil {
		return "", err
	}
	return stored.Hash, nil
}

// LaunchExpedition queues field work for the next digest tick.
func (s *Service) LaunchExpedition(ctx context.Context, campaignID, playerID string, tier expedition.Tier, team []string, prepDepth int, funding expedition.Funding) (string, error) {
	expeditionID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("expedition id: %w", err)
	}
	now := s.now().UTC()
	if _, err := expedition.New(expeditionID, playerID, tier, team, prepDepth, funding, now); err != nil {
		return "", err
	}
	for _, scholarID := range team {
		if _, err := s.activeScholar(ctx, campaignID, scholarID); err != nil {
			return "", err
		}
	}
	p, err := s.ensurePlayer(ctx, campaignID, playerID)
	if err != nil {
		return "", err
	}

	// Patrons extend credit once: an unpaid commitment blocks new patron
	// funding until a solid result repays it.
	patronDebt := 0
	if funding == expedition.FundingPatron {
		if p.OwesPatron() {
			return "", errors.WithMetadata(errors.CodePlayerDebtUnsettled,
				"an earlier patron commitment is still unpaid",
				map[string]string{"player_id": playerID})
		}
		patronDebt = s.cfg.PatronDebt
	}

	evt, err := s.playerEvent(campaignID, playerID, event.TypeExpeditionLaunched, "expedition", expeditionID,
		expedition.LaunchedPayload{
			ExpeditionID: expeditionID,
			PlayerID:     playerID,
			Type:         string(tier),
			Team:         team,
			PrepDepth:    prepDepth,
			Funding:      string(funding),
			PatronDebt:   patronDebt,
		})
	if err != nil {
		return "", err
	}
	stored, err := s.append(ctx, evt)
	if err != nil {
		return "", err
	}
	return stored.Hash, nil
}

// QueueMentorship schedules a mentorship session with a scholar.
func (s *Service) QueueMentorship(ctx context.Context, campaignID, playerID, scholarID string, scheduledAt time.Time) (string, error) {
	if _, err := s.activeScholar(ctx, campaignID, scholarID); err != nil {
		return "", err
	}
	if _, err := s.ensurePlayer(ctx, campaignID, playerID); err != nil {
		return "", err
	}

	orderID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("order id: %w", err)
	}
	payload, err := json.Marshal(map[string]string{"scholar_id": scholarID})
	if err != nil {
		return "", fmt.Errorf("marshal mentorship payload: %w", err)
	}
	evt, err := s.playerEvent(campaignID, playerID, event.TypeOrderEnqueued, "order", orderID,
		orders.EnqueuedPayload{
			OrderID:     orderID,
			OrderType:   orders.TypeMentorshipActivation,
			ActorID:     playerID,
			SubjectID:   scholarID,
			Payload:     payload,
			ScheduledMs: scheduledAt.UTC().UnixMilli(),
			SourceTable: "scholars",
			SourceID:    scholarID,
		})
	if err != nil {
		return "", err
	}
	stored, err := s.append(ctx, evt)
	if err != nil {
		return "", err
	}
	return stored.Hash, nil
}

// CreateOffer opens a poach negotiation. The escrowed influence is deducted
// with the creation; an insufficient balance rejects the whole request and
// appends nothing.
func (s *Service) CreateOffer(ctx context.Context, campaignID, playerID, scholarID string, terms offer.Terms) (string, error) {
	offerID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("offer id: %w", err)
	}
	now := s.now().UTC()
	if _, err := offer.New(offerID, playerID, scholarID, terms, now); err != nil {
		return "", err
	}
	if _, err := s.activeScholar(ctx, campaignID, scholarID); err != nil {
		return "", err
	}
	p, err := s.ensurePlayer(ctx, campaignID, playerID)
	if err != nil {
		return "", err
	}

	// A declined offer leaves a per-scholar cooldown on the suitor; check it
	// against the campaign's current year before anything is appended.
	currentYear, err := s.campaignYear(ctx, campaignID)
	if err != nil {
		return "", err
	}
	if p.CooldownActive(player.PoachCooldownKey(scholarID), currentYear) {
		return "", errors.WithMetadata(errors.CodePlayerCooldownActive,
			"this scholar rebuffed a recent offer",
			map[string]string{
				"scholar_id": scholarID,
				"until_year": strconv.Itoa(p.Cooldowns[player.PoachCooldownKey(scholarID)]),
			})
	}

	// Escrow check before any event: the deduction must be atomic with the
	// offer, so reject up front with no partial effect.
	policy := influence.CapPolicy{Base: s.cfg.InfluenceCapBase, PerPoint: s.cfg.InfluenceCapPerPoint}
	vector := p.Influence.Clone()
	if err := influence.ApplyDelta(vector, policy, p.Reputation, influence.Faction(terms.Faction), -terms.Escrow); err != nil {
		if stderrors.Is(err, influence.ErrInsufficientInfluence) {
			return "", errors.WithMetadata(errors.CodeInfluenceInsufficient,
				"cannot escrow more influence than held",
				map[string]string{"faction": terms.Faction})
		}
		if stderrors.Is(err, influence.ErrUnknownFaction) {
			return "", errors.WithMetadata(errors.CodeInfluenceUnknownFaction,
				"unknown faction", map[string]string{"faction": terms.Faction})
		}
		return "", err
	}

	created, err := s.playerEvent(campaignID, playerID, event.TypeOfferCreated, "offer", offerID,
		offer.CreatedPayload{
			OfferID:   offerID,
			ActorID:   playerID,
			ScholarID: scholarID,
			Faction:   terms.Faction,
			Escrow:    terms.Escrow,
			Quality:   terms.Quality(),
			Promise:   terms.Promise,
		})
	if err != nil {
		return "", err
	}
	stored, err := s.append(ctx, created)
	if err != nil {
		return "", err
	}

	escrowed, err := s.playerEvent(campaignID, playerID, event.TypeInfluenceAdjusted, "player", playerID,
		player.InfluenceAdjustedPayload{
			PlayerID: playerID,
			Faction:  terms.Faction,
			Delta:    -terms.Escrow,
			NewValue: vector[influence.Faction(terms.Faction)],
			Reason:   fmt.Sprintf("escrow for offer %s", offerID),
		})
	if err != nil {
		return "", err
	}
	if _, err := s.append(ctx, escrowed); err != nil {
		return "", err
	}

	orderID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("order id: %w", err)
	}
	step, err := s.playerEvent(campaignID, playerID, event.TypeOrderEnqueued, "order", orderID,
		orders.EnqueuedPayload{
			OrderID:     orderID,
			OrderType:   orders.TypeNegotiationStep,
			ActorID:     playerID,
			SubjectID:   offerID,
			ScheduledMs: now.UnixMilli(),
			SourceTable: "offers",
			SourceID:    offerID,
		})
	if err != nil {
		return "", err
	}
	if _, err := s.append(ctx, step); err != nil {
		return "", err
	}
	return stored.Hash, nil
}

// CounterOffer records the current employer's answering terms.
func (s *Service) CounterOffer(ctx context.Context, campaignID, playerID, offerID string, terms offer.Terms) (string, error) {
	if _, err := s.ensurePlayer(ctx, campaignID, playerID); err != nil {
		return "", err
	}
	off, err := s.store.GetOffer(ctx, campaignID, offerID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return "", errors.WithMetadata(errors.CodeOfferNotFound,
				"offer not found", map[string]string{"offer_id": offerID})
		}
		return "", err
	}
	// Validate the transition against a copy; the projection only moves via
	// the applied event.
	if err := off.ApplyCounter(terms); err != nil {
		return "", err
	}

	evt, err := s.playerEvent(campaignID, playerID, event.TypeOfferCountered, "offer", offerID,
		offer.CounteredPayload{
			OfferID: offerID,
			Round:   off.Rounds,
			Faction: terms.Faction,
			Escrow:  terms.Escrow,
			Promise: terms.Promise,
		})
	if err != nil {
		return "", err
	}
	stored, err := s.append(ctx, evt)
	if err != nil {
		return "", err
	}
	return stored.Hash, nil
}

// AdminCancelOrder cancels a pending or active order. Cancelling an already
// terminal order is a no-op.
func (s *Service) AdminCancelOrder(ctx context.Context, campaignID, adminID, orderID, reason string) (string, error) {
	o, err := s.store.GetOrder(ctx, campaignID, orderID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return "", errors.WithMetadata(errors.CodeOrderNotFound,
				"order not found", map[string]string{"order_id": orderID})
		}
		return "", err
	}
	if o.Status.IsTerminal() {
		return "", nil
	}

	raw, err := json.Marshal(orders.CancelledPayload{OrderID: orderID, Reason: reason})
	if err != nil {
		return "", fmt.Errorf("marshal cancellation: %w", err)
	}
	evt := event.Event{
		CampaignID:  campaignID,
		Timestamp:   s.now().UTC(),
		Type:        event.TypeOrderCancelled,
		ActorType:   event.ActorTypeAdmin,
		ActorID:     adminID,
		EntityType:  "order",
		EntityID:    orderID,
		PayloadJSON: raw,
	}
	stored, err := s.append(ctx, evt)
	if err != nil {
		return "", err
	}
	return stored.Hash, nil
}
