// Package telemetry persists digest tick summaries. The emitter runs after a
// tick commits; it never participates in the journal and a nil emitter is
// safe to call.
package telemetry

import (
	"context"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/digest"
	"github.com/ashfield-games/greatwork/internal/storage"
)

// Emitter records tick metrics into a telemetry store.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a telemetry emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// EmitTick records one completed tick. It is a no-op when the emitter or its
// store is nil.
func (e *Emitter) EmitTick(ctx context.Context, report digest.TickReport) error {
	if e == nil || e.store == nil {
		return nil
	}
	now := time.Now
	if e.clock != nil {
		now = e.clock
	}
	return e.store.RecordTick(ctx, storage.TickRecord{
		CampaignID:      report.CampaignID,
		TickedAt:        now().UTC(),
		Year:            report.Year,
		OrdersProcessed: report.OrdersProcessed,
		OrdersFailed:    report.OrdersFailed,
		OrdersCancelled: report.OrdersCancelled,
		Expeditions:     report.Expeditions,
		BandCounts:      report.BandCounts,
		EventsAppended:  report.EventsAppended,
		Duration:        report.Duration,
	})
}
