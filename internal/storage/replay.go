package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashfield-games/greatwork/internal/engine/event"
)

const replayPageSize = 200

// ReplayOptions configures event replay behavior.
type ReplayOptions struct {
	// AfterSeq skips events at or below this sequence number.
	AfterSeq uint64
	// UntilSeq stops replay after this sequence number when non-zero.
	UntilSeq uint64
	// Filter skips events it returns false for. Skipped events still advance
	// the returned sequence.
	Filter func(event.Event) bool
	// VerifyHashes recomputes each event's content hash and fails replay on
	// a mismatch, detecting journal corruption or tampering.
	VerifyHashes bool
}

// ReplayCampaign replays all events for a campaign and applies projections
// in journal order.
func ReplayCampaign(ctx context.Context, events EventStore, applier Applier, campaignID string) (uint64, error) {
	return ReplayCampaignWith(ctx, events, applier, campaignID, ReplayOptions{})
}

// ReplayCampaignWith replays events with additional filtering and bounds.
// It returns the last sequence number visited.
func ReplayCampaignWith(ctx context.Context, events EventStore, applier Applier, campaignID string, options ReplayOptions) (uint64, error) {
	if events == nil {
		return 0, fmt.Errorf("event store is not configured")
	}
	if strings.TrimSpace(campaignID) == "" {
		return 0, fmt.Errorf("campaign id is required")
	}

	lastSeq := options.AfterSeq
	for {
		page, err := events.ListEvents(ctx, campaignID, lastSeq, replayPageSize)
		if err != nil {
			return lastSeq, err
		}
		if len(page) == 0 {
			return lastSeq, nil
		}
		for _, evt := range page {
			if options.UntilSeq > 0 && evt.Seq > options.UntilSeq {
				return lastSeq, nil
			}
			if evt.Seq != lastSeq+1 {
				return lastSeq, fmt.Errorf("journal gap: expected seq %d, got %d", lastSeq+1, evt.Seq)
			}
			lastSeq = evt.Seq
			if options.VerifyHashes {
				if got := event.EventHash(evt); got != evt.Hash {
					return lastSeq, fmt.Errorf("hash mismatch at seq %d", evt.Seq)
				}
			}
			if options.Filter != nil && !options.Filter(evt) {
				continue
			}
			if err := applier.Apply(ctx, evt); err != nil {
				return lastSeq, err
			}
		}
	}
}
