// Package digest runs the periodic simulation tick.
//
// One tick advances the campaign timeline, applies per-tick decay, enforces
// roster bounds, drains due orders through the handler registry, resolves
// queued expeditions, and closes with a digest.tick_completed summary event.
// The engine is the campaign's single writer: ticks are synchronous and
// never overlap.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/engine/expedition"
	"github.com/ashfield-games/greatwork/internal/engine/influence"
	"github.com/ashfield-games/greatwork/internal/engine/orders"
	"github.com/ashfield-games/greatwork/internal/engine/player"
	"github.com/ashfield-games/greatwork/internal/engine/rng"
	"github.com/ashfield-games/greatwork/internal/engine/scholar"
	"github.com/ashfield-games/greatwork/internal/platform/id"
	"github.com/ashfield-games/greatwork/internal/storage"
	"github.com/ashfield-games/greatwork/internal/tuning"
)

const tracerName = "github.com/ashfield-games/greatwork/internal/engine/digest"

// TickReport summarizes one completed tick.
type TickReport struct {
	CampaignID      string
	Year            int
	OrdersProcessed int
	OrdersFailed    int
	OrdersCancelled int
	Expeditions     int
	BandCounts      map[string]int
	EventsAppended  int
	Duration        time.Duration
	// Events holds every event appended during the tick, in journal order,
	// for post-commit consumers (press, archive, telemetry).
	Events []event.Event
}

// Engine orchestrates digest ticks against a campaign store.
type Engine struct {
	store    storage.Store
	events   *event.Registry
	handlers *orders.Registry
	applier  storage.Applier
	cfg      tuning.Tuning
	newID    func() (string, error)
	logger   *log.Logger
	tracer   trace.Tracer

	// tick holds per-tick state. The engine is single-writer: RunTick is
	// never called concurrently for the same Engine.
	tick *tickState
}

type tickState struct {
	campaignID string
	seed       int64
	year       int
	now        time.Time
	lastSeq    uint64
	appended   []event.Event

	ordersProcessed int
	ordersFailed    int
	ordersCancelled int
}

// New builds an engine with the built-in order handlers registered. Callers
// may register additional handlers through Handlers before the first tick.
func New(store storage.Store, registry *event.Registry, cfg tuning.Tuning) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("event registry is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}

	engine := &Engine{
		store:    store,
		events:   registry,
		handlers: orders.NewRegistry(),
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
		cfg:    cfg,
		newID:  id.NewID,
		logger: log.Default(),
		tracer: otel.Tracer(tracerName),
	}
	if err := registerBuiltins(engine.handlers, engine); err != nil {
		return nil, err
	}
	return engine, nil
}

// Handlers exposes the order handler registry for extension.
func (e *Engine) Handlers() *orders.Registry {
	return e.handlers
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(logger *log.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// RunTick executes one digest tick for a campaign.
//
// Step order is fixed: advance timeline, apply decay, enforce roster bounds,
// drain due orders, resolve queued expeditions, emit the tick summary.
// Every mutation goes through the journal; projections update via the same
// apply path replay uses.
func (e *Engine) RunTick(ctx context.Context, campaignID string, now time.Time) (TickReport, error) {
	ctx, span := e.tracer.Start(ctx, "digest.tick",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	started := time.Now()

	timeline, err := e.store.GetTimeline(ctx, campaignID)
	if err != nil {
		return TickReport{}, fmt.Errorf("load timeline for %s: %w", campaignID, err)
	}
	lastSeq, err := e.store.LatestSeq(ctx, campaignID)
	if err != nil {
		return TickReport{}, fmt.Errorf("read latest seq: %w", err)
	}
	// Admin cancellations land in the journal between ticks; the digest that
	// closes the window reports them.
	prevTickSeq, err := e.store.LatestSeqOfType(ctx, campaignID, event.TypeDigestTickCompleted)
	if err != nil {
		return TickReport{}, fmt.Errorf("read previous tick seq: %w", err)
	}
	cancelled, err := e.store.CountEventsOfType(ctx, campaignID, event.TypeOrderCancelled, prevTickSeq)
	if err != nil {
		return TickReport{}, fmt.Errorf("count cancellations: %w", err)
	}

	e.tick = &tickState{
		campaignID:      campaignID,
		seed:            timeline.Seed,
		year:            timeline.CurrentYear,
		now:             now.UTC(),
		lastSeq:         lastSeq,
		ordersCancelled: cancelled,
	}
	defer func() { e.tick = nil }()

	if err := e.advanceTimeline(ctx, timeline); err != nil {
		return TickReport{}, err
	}
	if err := e.enforceRosterBounds(ctx); err != nil {
		return TickReport{}, err
	}
	if err := e.drainOrders(ctx); err != nil {
		return TickReport{}, err
	}
	bandCounts, resolved, err := e.resolveExpeditions(ctx)
	if err != nil {
		return TickReport{}, err
	}

	duration := time.Since(started)
	report := TickReport{
		CampaignID:      campaignID,
		Year:            e.tick.year,
		OrdersProcessed: e.tick.ordersProcessed,
		OrdersFailed:    e.tick.ordersFailed,
		OrdersCancelled: e.tick.ordersCancelled,
		Expeditions:     resolved,
		BandCounts:      bandCounts,
		Duration:        duration,
	}

	payload := event.TickCompletedPayload{
		Year:            report.Year,
		OrdersProcessed: report.OrdersProcessed,
		OrdersFailed:    report.OrdersFailed,
		OrdersCancelled: report.OrdersCancelled,
		Expeditions:     report.Expeditions,
		BandCounts:      bandCounts,
		EventsAppended:  len(e.tick.appended) + 1,
		DurationMs:      duration.Milliseconds(),
	}
	if _, err := e.appendSystemEvent(ctx, event.TypeDigestTickCompleted, "", "", payload); err != nil {
		return TickReport{}, err
	}

	report.EventsAppended = len(e.tick.appended)
	report.Events = e.tick.appended
	span.SetAttributes(
		attribute.Int("tick.events", report.EventsAppended),
		attribute.Int("tick.orders", report.OrdersProcessed),
		attribute.Int("tick.expeditions", report.Expeditions),
	)
	e.logger.Printf("tick complete campaign=%s year=%d events=%d orders=%d expeditions=%d",
		campaignID, report.Year, report.EventsAppended, report.OrdersProcessed, report.Expeditions)
	return report, nil
}

// appendSystemEvent validates, appends, and applies one system-actor event.
func (e *Engine) appendSystemEvent(ctx context.Context, typ event.Type, entityType, entityID string, payload any) (event.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	evt := event.Event{
		CampaignID:  e.tick.campaignID,
		Timestamp:   e.tick.now,
		Type:        typ,
		ActorType:   event.ActorTypeSystem,
		EntityType:  entityType,
		EntityID:    entityID,
		PayloadJSON: raw,
	}
	evt, err = e.events.ValidateForAppend(evt)
	if err != nil {
		return event.Event{}, err
	}
	evt, err = e.store.AppendEvent(ctx, evt)
	if err != nil {
		return event.Event{}, err
	}
	if err := e.applier.Apply(ctx, evt); err != nil {
		return event.Event{}, fmt.Errorf("apply %s (seq %d): %w", evt.Type, evt.Seq, err)
	}
	e.tick.lastSeq = evt.Seq
	e.tick.appended = append(e.tick.appended, evt)
	return evt, nil
}

// streamForNextEvent derives the RNG sub-stream for the event about to be
// appended. Keying streams by journal sequence makes every draw reproducible
// from (seed, journal position) alone.
func (e *Engine) streamForNextEvent() *rng.Stream {
	return rng.NewStream(e.tick.seed, e.tick.lastSeq+1)
}

func (e *Engine) advanceTimeline(ctx context.Context, timeline storage.Timeline) error {
	fromYear := timeline.CurrentYear
	toYear := timeline.AdvanceYears(e.cfg.YearsPerTick)
	payload := event.TimelineAdvancedPayload{
		FromYear:     fromYear,
		ToYear:       toYear,
		ElapsedYears: e.cfg.YearsPerTick,
	}
	if _, err := e.appendSystemEvent(ctx, event.TypeTimelineAdvanced, "", "", payload); err != nil {
		return fmt.Errorf("advance timeline: %w", err)
	}
	e.tick.year = toYear
	return nil
}

// enforceRosterBounds spawns scholars up to the minimum and retires down to
// the maximum. Retirement picks the lowest tier first, then the oldest, so
// the choice is deterministic.
func (e *Engine) enforceRosterBounds(ctx context.Context) error {
	count, err := e.store.CountActiveScholars(ctx, e.tick.campaignID)
	if err != nil {
		return fmt.Errorf("count scholars: %w", err)
	}

	for count < e.cfg.RosterMin {
		stream := e.streamForNextEvent()
		archetype := e.cfg.Sidecast[stream.Intn(len(e.cfg.Sidecast))]
		scholarID, err := e.newID()
		if err != nil {
			return fmt.Errorf("roster refill id: %w", err)
		}
		drawn := scholar.Sidecast(scholarID, archetype, stream, e.tick.now)
		payload := scholar.SpawnedPayload{
			ScholarID: drawn.ID,
			Name:      drawn.Name,
			Tier:      drawn.Tier.String(),
			Stats:     drawn.Stats,
			Archetype: drawn.Archetype,
			Origin:    "roster_refill",
		}
		if _, err := e.appendSystemEvent(ctx, event.TypeScholarSpawned, "scholar", drawn.ID, payload); err != nil {
			return fmt.Errorf("roster refill: %w", err)
		}
		count++
	}

	if count > e.cfg.RosterMax {
		active, err := e.store.ListScholars(ctx, e.tick.campaignID, true)
		if err != nil {
			return fmt.Errorf("list scholars: %w", err)
		}
		sort.Slice(active, func(i, j int) bool {
			if active[i].Tier != active[j].Tier {
				return active[i].Tier < active[j].Tier
			}
			if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
				return active[i].CreatedAt.Before(active[j].CreatedAt)
			}
			return active[i].ID < active[j].ID
		})
		for _, s := range active[:count-e.cfg.RosterMax] {
			payload := scholar.RetiredPayload{ScholarID: s.ID, Reason: "roster pruning"}
			if _, err := e.appendSystemEvent(ctx, event.TypeScholarRetired, "scholar", s.ID, payload); err != nil {
				return fmt.Errorf("roster pruning: %w", err)
			}
		}
	}
	return nil
}

// drainOrders activates and dispatches every due order. A handler error is
// caught per order: the order retries on a later tick until its budget is
// spent, then fails with a diagnostic event. The tick always continues.
func (e *Engine) drainOrders(ctx context.Context) error {
	due, err := e.store.DueOrders(ctx, e.tick.campaignID, e.tick.now)
	if err != nil {
		return fmt.Errorf("list due orders: %w", err)
	}

	for _, o := range due {
		attempt := o.Attempts + 1
		activated := orders.ActivatedPayload{OrderID: o.ID, Attempt: attempt}
		if _, err := e.appendSystemEvent(ctx, event.TypeOrderActivated, "order", o.ID, activated); err != nil {
			return fmt.Errorf("activate order %s: %w", o.ID, err)
		}
		o.Status = orders.StatusActive
		o.Attempts = attempt

		result, handlerErr := e.handlers.Dispatch(ctx, o)
		if handlerErr != nil {
			final := attempt >= e.cfg.Retry.MaxAttempts
			failed := orders.FailedPayload{
				OrderID: o.ID,
				Attempt: attempt,
				Error:   handlerErr.Error(),
				Final:   final,
			}
			if _, err := e.appendSystemEvent(ctx, event.TypeOrderFailed, "order", o.ID, failed); err != nil {
				return fmt.Errorf("record order failure %s: %w", o.ID, err)
			}
			if final {
				e.tick.ordersFailed++
				e.logger.Printf("order failed campaign=%s order=%s type=%s attempts=%d: %v",
					e.tick.campaignID, o.ID, o.OrderType, attempt, handlerErr)
			}
			continue
		}

		for _, followUp := range result.FollowUps {
			if err := e.enqueueOrder(ctx, followUp); err != nil {
				return fmt.Errorf("enqueue follow-up of %s: %w", o.ID, err)
			}
		}
		completed := orders.CompletedPayload{OrderID: o.ID, Result: result.Note}
		if _, err := e.appendSystemEvent(ctx, event.TypeOrderCompleted, "order", o.ID, completed); err != nil {
			return fmt.Errorf("complete order %s: %w", o.ID, err)
		}
		e.tick.ordersProcessed++
	}
	return nil
}

// enqueueOrder appends an order.enqueued event, assigning an ID when the
// caller left it blank.
func (e *Engine) enqueueOrder(ctx context.Context, o orders.Order) error {
	if o.ID == "" {
		orderID, err := e.newID()
		if err != nil {
			return fmt.Errorf("order id: %w", err)
		}
		o.ID = orderID
	}
	scheduledAt := o.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = e.tick.now
	}
	payload := orders.EnqueuedPayload{
		OrderID:     o.ID,
		OrderType:   o.OrderType,
		ActorID:     o.ActorID,
		SubjectID:   o.SubjectID,
		Payload:     o.Payload,
		ScheduledMs: scheduledAt.UTC().UnixMilli(),
		SourceTable: o.SourceTable,
		SourceID:    o.SourceID,
	}
	_, err := e.appendSystemEvent(ctx, event.TypeOrderEnqueued, "order", o.ID, payload)
	return err
}

// resolveExpeditions rolls every queued expedition and applies its sideways
// effects as their own journal events, all within the same tick.
func (e *Engine) resolveExpeditions(ctx context.Context) (map[string]int, int, error) {
	queued, err := e.store.ListQueuedExpeditions(ctx, e.tick.campaignID)
	if err != nil {
		return nil, 0, fmt.Errorf("list queued expeditions: %w", err)
	}

	bandCounts := make(map[string]int)
	for _, exp := range queued {
		mods, err := e.modifiersFor(ctx, exp)
		if err != nil {
			return nil, 0, err
		}
		stream := e.streamForNextEvent()
		res, err := expedition.Resolve(exp, mods, stream, e.cfg, e.mustNewID, e.tick.now)
		if err != nil {
			return nil, 0, fmt.Errorf("resolve expedition %s: %w", exp.ID, err)
		}

		payload := expedition.ResolutionPayload(res)
		if _, err := e.appendSystemEvent(ctx, event.TypeExpeditionResolved, "expedition", exp.ID, payload); err != nil {
			return nil, 0, err
		}
		if err := e.applyEffects(ctx, exp, res); err != nil {
			return nil, 0, err
		}
		bandCounts[string(res.Band)]++
	}
	return bandCounts, len(queued), nil
}

// modifiersFor derives the score modifiers from the expedition record and
// its team snapshot: preparation is the chosen prep depth, expertise scales
// with the team's average talent, and friction grows with the tier's
// logistical weight.
func (e *Engine) modifiersFor(ctx context.Context, exp expedition.Expedition) (expedition.Modifiers, error) {
	talent := 0
	for _, scholarID := range exp.Team {
		s, err := e.store.GetScholar(ctx, e.tick.campaignID, scholarID)
		if err != nil {
			return expedition.Modifiers{}, fmt.Errorf("load team member %s: %w", scholarID, err)
		}
		talent += s.Stats.Talent
	}
	expertise := 0
	if len(exp.Team) > 0 {
		// Average talent is 0..10; scale to the 0..15 expertise range.
		expertise = (talent * 3) / (len(exp.Team) * 2)
	}

	friction := 0
	switch exp.Type {
	case expedition.TierSurvey:
		friction = 5
	case expedition.TierFieldStudy:
		friction = 12
	case expedition.TierGrandExcavation:
		friction = 20
	}
	if exp.Funding == expedition.FundingPatron {
		// Patrons smooth logistics but attach strings elsewhere.
		friction -= 3
	}

	return expedition.Modifiers{
		Preparation: exp.PrepDepth,
		Expertise:   expertise,
		Friction:    friction,
	}.Bound(), nil
}

// applyEffects turns each typed sideways effect into its own journal event.
// Domain unlocks and theory seeds live only in the resolution payload; they
// prompt players rather than mutate projections.
func (e *Engine) applyEffects(ctx context.Context, exp expedition.Expedition, res expedition.Resolution) error {
	for _, effect := range res.Effects {
		switch effect.Kind {
		case expedition.EffectInfluenceDelta:
			reason := fmt.Sprintf("expedition %s: %s", exp.ID, res.Band)
			if err := e.adjustInfluence(ctx, exp.PlayerID, effect.Influence.Faction, effect.Influence.Delta, reason); err != nil {
				return err
			}
		case expedition.EffectEnqueueOrder:
			order := orders.Order{
				OrderType:   effect.Order.OrderType,
				SubjectID:   effect.Order.SubjectID,
				ScheduledAt: e.tick.now.AddDate(effect.Order.DelayYears, 0, 0),
				SourceTable: "expeditions",
				SourceID:    exp.ID,
			}
			if err := e.enqueueOrder(ctx, order); err != nil {
				return err
			}
		case expedition.EffectSidecastScholar:
			payload := scholar.SpawnedPayload{
				ScholarID: effect.Sidecast.ScholarID,
				Name:      effect.Sidecast.Name,
				Tier:      scholar.TierAssistant.String(),
				Stats: scholar.Stats{
					Loyalty:   effect.Sidecast.Loyalty,
					Integrity: effect.Sidecast.Integrity,
					Talent:    effect.Sidecast.Talent,
					Daring:    effect.Sidecast.Daring,
				},
				Archetype: effect.Sidecast.Archetype,
				Origin:    "sidecast",
			}
			if _, err := e.appendSystemEvent(ctx, event.TypeScholarSpawned, "scholar", effect.Sidecast.ScholarID, payload); err != nil {
				return err
			}
		case expedition.EffectTheorySeed, expedition.EffectDomainUnlock:
			// Carried in the resolution payload only.
		}
	}
	return nil
}

// adjustInfluence applies a capped influence delta to a player and records
// the applied new value, so replay sets it without recomputing caps.
func (e *Engine) adjustInfluence(ctx context.Context, playerID, faction string, delta int, reason string) error {
	p, err := e.store.GetPlayer(ctx, e.tick.campaignID, playerID)
	if err != nil {
		return fmt.Errorf("load player %s: %w", playerID, err)
	}
	policy := influence.CapPolicy{Base: e.cfg.InfluenceCapBase, PerPoint: e.cfg.InfluenceCapPerPoint}
	vector := p.Influence.Clone()
	if err := influence.ApplyDelta(vector, policy, p.Reputation, influence.Faction(faction), delta); err != nil {
		return fmt.Errorf("influence delta for %s: %w", playerID, err)
	}
	payload := player.InfluenceAdjustedPayload{
		PlayerID: playerID,
		Faction:  faction,
		Delta:    delta,
		NewValue: vector[influence.Faction(faction)],
		Reason:   reason,
	}
	_, err = e.appendSystemEvent(ctx, event.TypeInfluenceAdjusted, "player", playerID, payload)
	return err
}

// adjustReputation applies a clamped reputation delta and records both the
// requested and applied amounts.
func (e *Engine) adjustReputation(ctx context.Context, playerID string, delta int, reason string) error {
	p, err := e.store.GetPlayer(ctx, e.tick.campaignID, playerID)
	if err != nil {
		return fmt.Errorf("load player %s: %w", playerID, err)
	}
	newValue := p.Reputation + delta
	if newValue > e.cfg.ReputationMax {
		newValue = e.cfg.ReputationMax
	}
	if newValue < e.cfg.ReputationMin {
		newValue = e.cfg.ReputationMin
	}
	payload := player.ReputationAdjustedPayload{
		PlayerID: playerID,
		Delta:    delta,
		Applied:  newValue - p.Reputation,
		NewValue: newValue,
		Reason:   reason,
	}
	if _, err := e.appendSystemEvent(ctx, event.TypeReputationAdjusted, "player", playerID, payload); err != nil {
		return err
	}

	// A lower reputation lowers the influence cap. Holdings above the new cap
	// are shed immediately, each clamp as its own journal event so replay
	// converges on the same values.
	policy := influence.CapPolicy{Base: e.cfg.InfluenceCapBase, PerPoint: e.cfg.InfluenceCapPerPoint}
	capValue := policy.Cap(newValue)
	for _, faction := range influence.Factions {
		held := p.Influence[faction]
		if held <= capValue {
			continue
		}
		clamp := player.InfluenceAdjustedPayload{
			PlayerID: playerID,
			Faction:  string(faction),
			Delta:    capValue - held,
			NewValue: capValue,
			Reason:   fmt.Sprintf("influence cap fell to %d with reputation", capValue),
		}
		if _, err := e.appendSystemEvent(ctx, event.TypeInfluenceAdjusted, "player", playerID, clamp); err != nil {
			return err
		}
	}
	return nil
}

// mustNewID adapts the fallible ID generator for call sites that embed the
// generated value in an event payload.
func (e *Engine) mustNewID() string {
	generated, err := e.newID()
	if err != nil {
		// crypto/rand exhaustion; nothing sensible to do but surface it.
		panic(fmt.Sprintf("id generation: %v", err))
	}
	return generated
}
