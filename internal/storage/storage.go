// Package storage defines the persistence interfaces for the digest engine.
//
// The event journal is the source of truth; every other store is a
// projection derivable by replay. Implementations live in subpackages
// (sqlite is the production store).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/engine/expedition"
	"github.com/ashfield-games/greatwork/internal/engine/offer"
	"github.com/ashfield-games/greatwork/internal/engine/orders"
	"github.com/ashfield-games/greatwork/internal/engine/player"
	"github.com/ashfield-games/greatwork/internal/engine/scholar"
	"github.com/ashfield-games/greatwork/internal/engine/theory"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Timeline is the per-campaign simulation clock and seed.
type Timeline struct {
	CampaignID  string
	Seed        int64
	CurrentYear int
	LastTickAt  time.Time
}

// AdvanceYears moves the timeline forward. Zero elapsed years returns the
// current year unchanged.
func (t *Timeline) AdvanceYears(years int) int {
	if years > 0 {
		t.CurrentYear += years
	}
	return t.CurrentYear
}

// EventStore persists the append-only campaign journal.
type EventStore interface {
	// AppendEvent assigns the next sequence number and content hash, then
	// persists the event. The returned event carries both.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns up to limit events with Seq > afterSeq in order.
	ListEvents(ctx context.Context, campaignID string, afterSeq uint64, limit int) ([]event.Event, error)
	// LatestSeq returns the highest assigned sequence number, 0 when empty.
	LatestSeq(ctx context.Context, campaignID string) (uint64, error)
	// LatestSeqOfType returns the highest sequence carrying the given event
	// type, 0 when the type never occurred.
	LatestSeqOfType(ctx context.Context, campaignID string, typ event.Type) (uint64, error)
	// CountEventsOfType counts events of the given type with Seq > afterSeq.
	CountEventsOfType(ctx context.Context, campaignID string, typ event.Type, afterSeq uint64) (int, error)
}

// PlayerStore persists player projections.
type PlayerStore interface {
	PutPlayer(ctx context.Context, campaignID string, p player.Player) error
	GetPlayer(ctx context.Context, campaignID, playerID string) (player.Player, error)
	ListPlayers(ctx context.Context, campaignID string) ([]player.Player, error)
}

// ScholarStore persists scholar projections.
type ScholarStore interface {
	PutScholar(ctx context.Context, campaignID string, s scholar.Scholar) error
	GetScholar(ctx context.Context, campaignID, scholarID string) (scholar.Scholar, error)
	// ListScholars returns scholars ordered by creation, then id. When
	// activeOnly is set, retired scholars are excluded.
	ListScholars(ctx context.Context, campaignID string, activeOnly bool) ([]scholar.Scholar, error)
	CountActiveScholars(ctx context.Context, campaignID string) (int, error)
}

// TheoryStore persists theory projections.
type TheoryStore interface {
	PutTheory(ctx context.Context, campaignID string, t theory.Theory) error
	GetTheory(ctx context.Context, campaignID, theoryID string) (theory.Theory, error)
	// ListOpenTheories returns unresolved theories ordered by deadline.
	ListOpenTheories(ctx context.Context, campaignID string) ([]theory.Theory, error)
}

// ExpeditionStore persists expedition projections.
type ExpeditionStore interface {
	PutExpedition(ctx context.Context, campaignID string, e expedition.Expedition) error
	GetExpedition(ctx context.Context, campaignID, expeditionID string) (expedition.Expedition, error)
	// ListQueuedExpeditions returns unresolved expeditions in launch order.
	ListQueuedExpeditions(ctx context.Context, campaignID string) ([]expedition.Expedition, error)
}

// OrderStore persists dispatcher orders.
type OrderStore interface {
	PutOrder(ctx context.Context, campaignID string, o orders.Order) error
	GetOrder(ctx context.Context, campaignID, orderID string) (orders.Order, error)
	// DueOrders returns pending orders with scheduled_at <= now, ordered by
	// scheduled_at then insertion order. The tie-break is part of the
	// determinism contract.
	DueOrders(ctx context.Context, campaignID string, now time.Time) ([]orders.Order, error)
	ListOrdersByStatus(ctx context.Context, campaignID string, status orders.Status) ([]orders.Order, error)
}

// OfferStore persists negotiation projections.
type OfferStore interface {
	PutOffer(ctx context.Context, campaignID string, o offer.Offer) error
	GetOffer(ctx context.Context, campaignID, offerID string) (offer.Offer, error)
	ListOpenOffers(ctx context.Context, campaignID string) ([]offer.Offer, error)
}

// TimelineStore persists the per-campaign clock.
type TimelineStore interface {
	PutTimeline(ctx context.Context, t Timeline) error
	GetTimeline(ctx context.Context, campaignID string) (Timeline, error)
}

// TickRecord summarizes one digest tick for operational reporting.
type TickRecord struct {
	CampaignID      string
	TickedAt        time.Time
	Year            int
	OrdersProcessed int
	OrdersFailed    int
	OrdersCancelled int
	Expeditions     int
	BandCounts      map[string]int
	EventsAppended  int
	Duration        time.Duration
}

// TelemetryStore records tick summaries. Implementations must never block
// the tick path on external I/O.
type TelemetryStore interface {
	RecordTick(ctx context.Context, record TickRecord) error
	ListTicks(ctx context.Context, campaignID string, limit int) ([]TickRecord, error)
}

// Store aggregates every persistence concern of one campaign store.
type Store interface {
	EventStore
	PlayerStore
	ScholarStore
	TheoryStore
	ExpeditionStore
	OrderStore
	OfferStore
	TimelineStore
	TelemetryStore
	Close() error
}
