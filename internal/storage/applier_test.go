package storage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
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

type fakePlayerStore struct {
	players map[string]player.Player
}

func newFakePlayerStore() *fakePlayerStore {
	return &fakePlayerStore{players: make(map[string]player.Player)}
}

func (s *fakePlayerStore) PutPlayer(_ context.Context, campaignID string, p player.Player) error {
	s.players[campaignID+"/"+p.ID] = p
	return nil
}

func (s *fakePlayerStore) GetPlayer(_ context.Context, campaignID, playerID string) (player.Player, error) {
	p, ok := s.players[campaignID+"/"+playerID]
	if !ok {
		return player.Player{}, ErrNotFound
	}
	return p, nil
}

func (s *fakePlayerStore) ListPlayers(_ context.Context, campaignID string) ([]player.Player, error) {
	var players []player.Player
	for key, p := range s.players {
		if strings.HasPrefix(key, campaignID+"/") {
			players = append(players, p)
		}
	}
	return players, nil
}

type fakeScholarStore struct {
	scholars map[string]scholar.Scholar
}

func newFakeScholarStore() *fakeScholarStore {
	return &fakeScholarStore{scholars: make(map[string]scholar.Scholar)}
}

func (s *fakeScholarStore) PutScholar(_ context.Context, campaignID string, sch scholar.Scholar) error {
	s.scholars[campaignID+"/"+sch.ID] = sch
	return nil
}

func (s *fakeScholarStore) GetScholar(_ context.Context, campaignID, scholarID string) (scholar.Scholar, error) {
	sch, ok := s.scholars[campaignID+"/"+scholarID]
	if !ok {
		return scholar.Scholar{}, ErrNotFound
	}
	return sch, nil
}

func (s *fakeScholarStore) ListScholars(_ context.Context, campaignID string, activeOnly bool) ([]scholar.Scholar, error) {
	var scholars []scholar.Scholar
	for key, sch := range s.scholars {
		if !strings.HasPrefix(key, campaignID+"/") {
			continue
		}
		if activeOnly && sch.Retired {
			continue
		}
		scholars = append(scholars, sch)
	}
	return scholars, nil
}

func (s *fakeScholarStore) CountActiveScholars(context.Context, string) (int, error) {
	count := 0
	for _, sch := range s.scholars {
		if !sch.Retired {
			count++
		}
	}
	return count, nil
}

type fakeTheoryStore struct {
	theories map[string]theory.Theory
}

func newFakeTheoryStore() *fakeTheoryStore {
	return &fakeTheoryStore{theories: make(map[string]theory.Theory)}
}

func (s *fakeTheoryStore) PutTheory(_ context.Context, campaignID string, t theory.Theory) error {
	s.theories[campaignID+"/"+t.ID] = t
	return nil
}

func (s *fakeTheoryStore) GetTheory(_ context.Context, campaignID, theoryID string) (theory.Theory, error) {
	t, ok := s.theories[campaignID+"/"+theoryID]
	if !ok {
		return theory.Theory{}, ErrNotFound
	}
	return t, nil
}

func (s *fakeTheoryStore) ListOpenTheories(context.Context, string) ([]theory.Theory, error) {
	return nil, nil
}

type fakeExpeditionStore struct {
	expeditions map[string]expedition.Expedition
}

func newFakeExpeditionStore() *fakeExpeditionStore {
	return &fakeExpeditionStore{expeditions: make(map[string]expedition.Expedition)}
}

func (s *fakeExpeditionStore) PutExpedition(_ context.Context, campaignID string, e expedition.Expedition) error {
	s.expeditions[campaignID+"/"+e.ID] = e
	return nil
}

func (s *fakeExpeditionStore) GetExpedition(_ context.Context, campaignID, expeditionID string) (expedition.Expedition, error) {
	e, ok := s.expeditions[campaignID+"/"+expeditionID]
	if !ok {
		return expedition.Expedition{}, ErrNotFound
	}
	return e, nil
}

func (s *fakeExpeditionStore) ListQueuedExpeditions(context.Context, string) ([]expedition.Expedition, error) {
	return nil, nil
}

type fakeOrderStore struct {
	orders map[string]orders.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]orders.Order)}
}

func (s *fakeOrderStore) PutOrder(_ context.Context, campaignID string, o orders.Order) error {
	s.orders[campaignID+"/"+o.ID] = o
	return nil
}

func (s *fakeOrderStore) GetOrder(_ context.Context, campaignID, orderID string) (orders.Order, error) {
	o, ok := s.orders[campaignID+"/"+orderID]
	if !ok {
		return orders.Order{}, ErrNotFound
	}
	return o, nil
}

func (s *fakeOrderStore) DueOrders(context.Context, string, time.Time) ([]orders.Order, error) {
	return nil, nil
}

func (s *fakeOrderStore) ListOrdersByStatus(context.Context, string, orders.Status) ([]orders.Order, error) {
	return nil, nil
}

type fakeOfferStore struct {
	offers map[string]offer.Offer
}

func newFakeOfferStore() *fakeOfferStore {
	return &fakeOfferStore{offers: make(map[string]offer.Offer)}
}

func (s *fakeOfferStore) PutOffer(_ context.Context, campaignID string, o offer.Offer) error {
	s.offers[campaignID+"/"+o.ID] = o
	return nil
}

func (s *fakeOfferStore) GetOffer(_ context.Context, campaignID, offerID string) (offer.Offer, error) {
	o, ok := s.offers[campaignID+"/"+offerID]
	if !ok {
		return offer.Offer{}, ErrNotFound
	}
	return o, nil
}

func (s *fakeOfferStore) ListOpenOffers(context.Context, string) ([]offer.Offer, error) {
	return nil, nil
}

type fakeTimelineStore struct {
	timelines map[string]Timeline
}

func newFakeTimelineStore() *fakeTimelineStore {
	return &fakeTimelineStore{timelines: make(map[string]Timeline)}
}

func (s *fakeTimelineStore) PutTimeline(_ context.Context, t Timeline) error {
	s.timelines[t.CampaignID] = t
	return nil
}

func (s *fakeTimelineStore) GetTimeline(_ context.Context, campaignID string) (Timeline, error) {
	t, ok := s.timelines[campaignID]
	if !ok {
		return Timeline{}, ErrNotFound
	}
	return t, nil
}

func newTestApplier() (Applier, *fakePlayerStore, *fakeScholarStore, *fakeOrderStore, *fakeTimelineStore) {
	players := newFakePlayerStore()
	scholars := newFakeScholarStore()
	ordersStore := newFakeOrderStore()
	timelines := newFakeTimelineStore()
	applier := Applier{
		Players:     players,
		Scholars:    scholars,
		Theories:    newFakeTheoryStore(),
		Expeditions: newFakeExpeditionStore(),
		Orders:      ordersStore,
		Offers:      newFakeOfferStore(),
		Timelines:   timelines,
	}
	return applier, players, scholars, ordersStore, timelines
}

func testEvent(t *testing.T, typ event.Type, entityID string, payload any) event.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return event.Event{
		CampaignID:  "camp-1",
		Timestamp:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Type:        typ,
		ActorType:   event.ActorTypeSystem,
		EntityID:    entityID,
		PayloadJSON: raw,
	}
}

func TestApplyPlayerLifecycle(t *testing.T) {
	applier, players, _, _, _ := newTestApplier()
	ctx := context.Background()

	evt := testEvent(t, event.TypePlayerCreated, "player-1", player.CreatedPayload{PlayerID: "player-1"})
	if err := applier.Apply(ctx, evt); err != nil {
		t.Fatalf("apply player.created: %v", err)
	}

	evt = testEvent(t, event.TypeReputationAdjusted, "player-1", player.ReputationAdjustedPayload{
		PlayerID: "player-1", Delta: 5, Applied: 5, NewValue: 5, Reason: "vindicated theory",
	})
	if err := applier.Apply(ctx, evt); err != nil {
		t.Fatalf("apply reputation.adjusted: %v", err)
	}

	evt = testEvent(t, event.TypeInfluenceAdjusted, "player-1", player.InfluenceAdjustedPayload{
		PlayerID: "player-1", Faction: "academic", Delta: 3, NewValue: 3, Reason: "solid expedition",
	})
	if err := applier.Apply(ctx, evt); err != nil {
		t.Fatalf("apply influence.adjusted: %v", err)
	}

	got, err := players.GetPlayer(ctx, "camp-1", "player-1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if got.Reputation != 5 {
		t.Fatalf("reputation = %d, want 5", got.Reputation)
	}
	if got.Influence[influence.FactionAcademic] != 3 {
		t.Fatalf("academic influence = %d, want 3", got.Influence[influence.FactionAcademic])
	}
}

func TestApplySetsProjectedValueFromPayload(t *testing.T) {
	// Replay applies the payload's new_value, never a recomputed delta, so
	// re-applying the same event converges instead of double-counting.
	applier, players, _, _, _ := newTestApplier()
	ctx := context.Background()

	if err := applier.Apply(ctx, testEvent(t, event.TypePlayerCreated, "player-1",
		player.CreatedPayload{PlayerID: "player-1"})); err != nil {
		t.Fatalf("apply player.created: %v", err)
	}

	adjusted := testEvent(t, event.TypeReputationAdjusted, "player-1", player.ReputationAdjustedPayload{
		PlayerID: "player-1", Delta: 5, Applied: 5, NewValue: 5,
	})
	for i := 0; i < 3; i++ {
		if err := applier.Apply(ctx, adjusted); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	got, err := players.GetPlayer(ctx, "camp-1", "player-1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if got.Reputation != 5 {
		t.Fatalf("reputation after re-apply = %d, want 5", got.Reputation)
	}
}

func TestApplyScholarLifecycle(t *testing.T) {
	applier, _, scholars, _, _ := newTestApplier()
	ctx := context.Background()

	spawn := testEvent(t, event.TypeScholarSpawned, "sch-1", scholar.SpawnedPayload{
		ScholarID: "sch-1",
		Name:      "Imogen Hale",
		Tier:      "fellow",
		Stats:     scholar.Stats{Loyalty: 7, Integrity: 6, Talent: 8, Daring: 4},
		Origin:    "seed",
	})
	if err := applier.Apply(ctx, spawn); err != nil {
		t.Fatalf("apply scholar.spawned: %v", err)
	}

	memory := testEvent(t, event.TypeScholarMemoryRecorded, "sch-1", scholar.MemoryRecordedPayload{
		ScholarID:    "sch-1",
		FactKind:     string(scholar.FactKindSnubbed),
		Participants: []string{"player-1"},
		FeelingID:    "player-1",
		FeelingDelta: -2,
	})
	if err := applier.Apply(ctx, memory); err != nil {
		t.Fatalf("apply scholar.memory_recorded: %v", err)
	}

	retire := testEvent(t, event.TypeScholarRetired, "sch-1", scholar.RetiredPayload{
		ScholarID: "sch-1", Reason: "roster pruning",
	})
	if err := applier.Apply(ctx, retire); err != nil {
		t.Fatalf("apply scholar.retired: %v", err)
	}

	got, err := scholars.GetScholar(ctx, "camp-1", "sch-1")
	if err != nil {
		t.Fatalf("get scholar: %v", err)
	}
	if got.Tier != scholar.TierFellow {
		t.Fatalf("tier = %v, want fellow", got.Tier)
	}
	if len(got.Memory.Facts) != 1 || got.Memory.Facts[0].Kind != scholar.FactKindSnubbed {
		t.Fatalf("memory facts = %+v, want one snubbed fact", got.Memory.Facts)
	}
	if got.Memory.Feelings["player-1"] != -2 {
		t.Fatalf("feeling = %v, want -2", got.Memory.Feelings["player-1"])
	}
	if !got.Retired {
		t.Fatal("scholar not retired")
	}
}

func TestApplyOrderAttemptsFromPayload(t *testing.T) {
	applier, _, _, orderStore, _ := newTestApplier()
	ctx := context.Background()

	enqueue := testEvent(t, event.TypeOrderEnqueued, "ord-1", orders.EnqueuedPayload{
		OrderID:     "ord-1",
		OrderType:   orders.TypeConferenceResolution,
		SubjectID:   "exp-1",
		ScheduledMs: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC).UnixMilli(),
		SourceTable: "expeditions",
		SourceID:    "exp-1",
	})
	if err := applier.Apply(ctx, enqueue); err != nil {
		t.Fatalf("apply order.enqueued: %v", err)
	}

	// Journal records a second attempt; the projection adopts the payload's
	// count even though it never saw the first activation.
	activate := testEvent(t, event.TypeOrderActivated, "ord-1", orders.ActivatedPayload{
		OrderID: "ord-1", Attempt: 2,
	})
	if err := applier.Apply(ctx, activate); err != nil {
		t.Fatalf("apply order.activated: %v", err)
	}

	got, err := orderStore.GetOrder(ctx, "camp-1", "ord-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != orders.StatusActive {
		t.Fatalf("status = %q, want active", got.Status)
	}
	if got.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", got.Attempts)
	}
	if got.SourceTable != "expeditions" || got.SourceID != "exp-1" {
		t.Fatalf("source = %s/%s, want expeditions/exp-1", got.SourceTable, got.SourceID)
	}

	complete := testEvent(t, event.TypeOrderCompleted, "ord-1", orders.CompletedPayload{
		OrderID: "ord-1", Result: "conference held",
	})
	if err := applier.Apply(ctx, complete); err != nil {
		t.Fatalf("apply order.completed: %v", err)
	}
	got, err = orderStore.GetOrder(ctx, "camp-1", "ord-1")
	if err != nil {
		t.Fatalf("get completed order: %v", err)
	}
	if got.Status != orders.StatusCompleted || got.Result != "conference held" {
		t.Fatalf("order after complete = %+v", got)
	}
}

func TestApplyTimelineAndTick(t *testing.T) {
	applier, _, _, _, timelines := newTestApplier()
	ctx := context.Background()

	if err := timelines.PutTimeline(ctx, Timeline{CampaignID: "camp-1", Seed: 42, CurrentYear: 1900}); err != nil {
		t.Fatalf("seed timeline: %v", err)
	}

	advance := testEvent(t, event.TypeTimelineAdvanced, "", event.TimelineAdvancedPayload{
		FromYear: 1900, ToYear: 1903, ElapsedYears: 3,
	})
	if err := applier.Apply(ctx, advance); err != nil {
		t.Fatalf("apply timeline.advanced: %v", err)
	}

	tick := testEvent(t, event.TypeDigestTickCompleted, "", event.TickCompletedPayload{
		Year: 1903, OrdersProcessed: 2, EventsAppended: 7,
	})
	if err := applier.Apply(ctx, tick); err != nil {
		t.Fatalf("apply digest.tick_completed: %v", err)
	}

	got, err := timelines.GetTimeline(ctx, "camp-1")
	if err != nil {
		t.Fatalf("get timeline: %v", err)
	}
	if got.CurrentYear != 1903 {
		t.Fatalf("current year = %d, want 1903", got.CurrentYear)
	}
	if got.LastTickAt.IsZero() {
		t.Fatal("last tick at is zero")
	}
}

func TestApplyTimelineAdvanceDecays(t *testing.T) {
	applier, players, scholars, _, timelines := newTestApplier()
	applier.FeelingDecayRate = 0.5
	ctx := context.Background()

	if err := timelines.PutTimeline(ctx, Timeline{CampaignID: "camp-1", Seed: 1, CurrentYear: 1900}); err != nil {
		t.Fatalf("seed timeline: %v", err)
	}

	p := player.New("player-1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p.Cooldowns["expedition"] = 1901
	p.Cooldowns["sabbatical"] = 1910
	if err := players.PutPlayer(ctx, "camp-1", p); err != nil {
		t.Fatalf("seed player: %v", err)
	}

	sch := scholar.New("sch-1", "Imogen Hale", scholar.TierFellow, scholar.Stats{}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sch.Memory.AdjustFeeling("player-1", -4)
	sch.Memory.AdjustFeeling("player-2", 6)
	sch.Memory.Scar("player-2")
	if err := scholars.PutScholar(ctx, "camp-1", sch); err != nil {
		t.Fatalf("seed scholar: %v", err)
	}

	advance := testEvent(t, event.TypeTimelineAdvanced, "", event.TimelineAdvancedPayload{
		FromYear: 1900, ToYear: 1901, ElapsedYears: 1,
	})
	if err := applier.Apply(ctx, advance); err != nil {
		t.Fatalf("apply timeline.advanced: %v", err)
	}

	gotPlayer, err := players.GetPlayer(ctx, "camp-1", "player-1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if _, ok := gotPlayer.Cooldowns["expedition"]; ok {
		t.Fatal("expired cooldown survived the tick")
	}
	if gotPlayer.Cooldowns["sabbatical"] != 1910 {
		t.Fatalf("unexpired cooldown = %d, want 1910", gotPlayer.Cooldowns["sabbatical"])
	}

	gotScholar, err := scholars.GetScholar(ctx, "camp-1", "sch-1")
	if err != nil {
		t.Fatalf("get scholar: %v", err)
	}
	if gotScholar.Memory.Feelings["player-1"] != -2 {
		t.Fatalf("decayed feeling = %v, want -2", gotScholar.Memory.Feelings["player-1"])
	}
	if gotScholar.Memory.Feelings["player-2"] != 6 {
		t.Fatalf("scarred feeling = %v, want 6 unchanged", gotScholar.Memory.Feelings["player-2"])
	}
}

func TestApplyOrderFailedRetryAndFinal(t *testing.T) {
	applier, _, _, orderStore, _ := newTestApplier()
	ctx := context.Background()

	enqueue := testEvent(t, event.TypeOrderEnqueued, "ord-1", orders.EnqueuedPayload{
		OrderID:     "ord-1",
		OrderType:   orders.TypeNegotiationStep,
		SubjectID:   "off-1",
		ScheduledMs: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC).UnixMilli(),
	})
	if err := applier.Apply(ctx, enqueue); err != nil {
		t.Fatalf("apply order.enqueued: %v", err)
	}

	retry := testEvent(t, event.TypeOrderFailed, "ord-1", orders.FailedPayload{
		OrderID: "ord-1", Attempt: 1, Error: "scholar unavailable",
	})
	if err := applier.Apply(ctx, retry); err != nil {
		t.Fatalf("apply non-final order.failed: %v", err)
	}
	got, err := orderStore.GetOrder(ctx, "camp-1", "ord-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != orders.StatusPending {
		t.Fatalf("status after retryable failure = %q, want pending", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got.Attempts)
	}

	final := testEvent(t, event.TypeOrderFailed, "ord-1", orders.FailedPayload{
		OrderID: "ord-1", Attempt: 3, Error: "scholar unavailable", Final: true,
	})
	if err := applier.Apply(ctx, final); err != nil {
		t.Fatalf("apply final order.failed: %v", err)
	}
	got, err = orderStore.GetOrder(ctx, "camp-1", "ord-1")
	if err != nil {
		t.Fatalf("get failed order: %v", err)
	}
	if got.Status != orders.StatusFailed {
		t.Fatalf("status after final failure = %q, want failed", got.Status)
	}
	if got.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", got.Attempts)
	}
}

func TestApplySkipsUnknownType(t *testing.T) {
	applier, _, _, _, _ := newTestApplier()

	evt := testEvent(t, event.Type("legacy.retired_type"), "x", map[string]string{})
	if err := applier.Apply(context.Background(), evt); err != nil {
		t.Fatalf("unknown type err = %v, want nil", err)
	}
}

func TestApplyRequiresConfiguredStores(t *testing.T) {
	applier := Applier{} // no stores wired

	evt := testEvent(t, event.TypePlayerCreated, "player-1", player.CreatedPayload{PlayerID: "player-1"})
	err := applier.Apply(context.Background(), evt)
	if err == nil {
		t.Fatal("expected error for missing player store")
	}
	if !strings.Contains(err.Error(), "player store") {
		t.Fatalf("err = %v, want mention of player store", err)
	}
}

func TestApplyRequiresIDs(t *testing.T) {
	applier, _, _, _, _ := newTestApplier()

	evt := testEvent(t, event.TypePlayerCreated, "", player.CreatedPayload{PlayerID: "player-1"})
	if err := applier.Apply(context.Background(), evt); err == nil {
		t.Fatal("expected error for missing entity id")
	}

	evt = testEvent(t, event.TypePlayerCreated, "player-1", player.CreatedPayload{PlayerID: "player-1"})
	evt.CampaignID = ""
	if err := applier.Apply(context.Background(), evt); err == nil {
		t.Fatal("expected error for missing campaign id")
	}
}

func TestApplyPatronDebtLifecycle(t *testing.T) {
	applier, players, _, _, _ := newTestApplier()
	ctx := context.Background()

	evt := testEvent(t, event.TypePlayerCreated, "player-1", player.CreatedPayload{PlayerID: "player-1"})
	if err := applier.Apply(ctx, evt); err != nil {
		t.Fatalf("apply player.created: %v", err)
	}

	launch := testEvent(t, event.TypeExpeditionLaunched, "exp-1", expedition.LaunchedPayload{
		ExpeditionID: "exp-1",
		PlayerID:     "player-1",
		Type:         string(expedition.TierSurvey),
		Team:         []string{"sch-1"},
		PrepDepth:    3,
		Funding:      string(expedition.FundingPatron),
		PatronDebt:   4,
	})
	// Re-application must not double-book the commitment.
	for i := 0; i < 2; i++ {
		if err := applier.Apply(ctx, launch); err != nil {
			t.Fatalf("apply expedition.launched: %v", err)
		}
	}

	p, err := players.GetPlayer(ctx, "camp-1", "player-1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	key := player.PatronDebtKey("exp-1")
	if p.Debts[key] != 4 {
		t.Fatalf("debt = %d, want 4", p.Debts[key])
	}
	if !p.OwesPatron() {
		t.Fatal("player should owe the patron after launch")
	}

	resolved := testEvent(t, event.TypeExpeditionResolved, "exp-1", expedition.ResolvedPayload{
		ExpeditionID: "exp-1", Roll: 70, Score: 70, Band: string(expedition.BandSolid),
	})
	if err := applier.Apply(ctx, resolved); err != nil {
		t.Fatalf("apply expedition.resolved: %v", err)
	}

	p, err = players.GetPlayer(ctx, "camp-1", "player-1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if p.OwesPatron() {
		t.Fatalf("solid result left the patron unpaid: %+v", p.Debts)
	}
}

func TestApplyOfferResolvedSetsSuitorCooldown(t *testing.T) {
	applier, players, _, _, _ := newTestApplier()
	ctx := context.Background()

	evt := testEvent(t, event.TypePlayerCreated, "player-1", player.CreatedPayload{PlayerID: "player-1"})
	if err := applier.Apply(ctx, evt); err != nil {
		t.Fatalf("apply player.created: %v", err)
	}
	evt = testEvent(t, event.TypeOfferCreated, "off-1", offer.CreatedPayload{
		OfferID: "off-1", ActorID: "player-1", ScholarID: "sch-1",
		Faction: "academic", Escrow: 2, Quality: 0.1,
	})
	if err := applier.Apply(ctx, evt); err != nil {
		t.Fatalf("apply offer.created: %v", err)
	}

	evt = testEvent(t, event.TypeOfferResolved, "off-1", offer.ResolvedPayload{
		OfferID: "off-1", Outcome: string(offer.StateDeclined),
		Probability: 0.05, Draw: 0.9, EscrowReturned: true,
		CooldownUntilYear: 1903,
	})
	if err := applier.Apply(ctx, evt); err != nil {
		t.Fatalf("apply offer.resolved: %v", err)
	}

	p, err := players.GetPlayer(ctx, "camp-1", "player-1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	key := player.PoachCooldownKey("sch-1")
	if p.Cooldowns[key] != 1903 {
		t.Fatalf("cooldown until = %d, want 1903", p.Cooldowns[key])
	}
	if !p.CooldownActive(key, 1902) {
		t.Fatal("cooldown should still hold in 1902")
	}
	if p.CooldownActive(key, 1903) {
		t.Fatal("cooldown should lapse in 1903")
	}
}
