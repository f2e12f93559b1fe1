package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/engine/player"
)

type fakeEventStore struct {
	events []event.Event
}

func (s *fakeEventStore) AppendEvent(_ context.Context, evt event.Event) (event.Event, error) {
	evt.Seq = uint64(len(s.events)) + 1
	evt.Hash = event.EventHash(evt)
	s.events = append(s.events, evt)
	return evt, nil
}

func (s *fakeEventStore) ListEvents(_ context.Context, _ string, afterSeq uint64, limit int) ([]event.Event, error) {
	var page []event.Event
	for _, evt := range s.events {
		if evt.Seq <= afterSeq {
			continue
		}
		page = append(page, evt)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (s *fakeEventStore) LatestSeq(context.Context, string) (uint64, error) {
	return uint64(len(s.events)), nil
}

func (s *fakeEventStore) LatestSeqOfType(_ context.Context, _ string, typ event.Type) (uint64, error) {
	var latest uint64
	for _, evt := range s.events {
		if evt.Type == typ {
			latest = evt.Seq
		}
	}
	return latest, nil
}

func (s *fakeEventStore) CountEventsOfType(_ context.Context, _ string, typ event.Type, afterSeq uint64) (int, error) {
	count := 0
	for _, evt := range s.events {
		if evt.Type == typ && evt.Seq > afterSeq {
			count++
		}
	}
	return count, nil
}

func TestReplayCampaignAppliesInOrder(t *testing.T) {
	eventStore := &fakeEventStore{}
	applier, players, _, _, _ := newTestApplier()
	ctx := context.Background()

	appendEvent := func(typ event.Type, entityID string, payload any) {
		t.Helper()
		evt := testEvent(t, typ, entityID, payload)
		if _, err := eventStore.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("append %s: %v", typ, err)
		}
	}

	appendEvent(event.TypePlayerCreated, "player-1", player.CreatedPayload{PlayerID: "player-1"})
	appendEvent(event.TypeReputationAdjusted, "player-1", player.ReputationAdjustedPayload{
		PlayerID: "player-1", Delta: 3, Applied: 3, NewValue: 3,
	})
	appendEvent(event.TypeReputationAdjusted, "player-1", player.ReputationAdjustedPayload{
		PlayerID: "player-1", Delta: 4, Applied: 4, NewValue: 7,
	})

	lastSeq, err := ReplayCampaign(ctx, eventStore, applier, "camp-1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if lastSeq != 3 {
		t.Fatalf("lastSeq = %d, want 3", lastSeq)
	}

	got, err := players.GetPlayer(ctx, "camp-1", "player-1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if got.Reputation != 7 {
		t.Fatalf("reputation = %d, want 7", got.Reputation)
	}
}

func TestReplayVerifiesHashes(t *testing.T) {
	eventStore := &fakeEventStore{}
	applier, _, _, _, _ := newTestApplier()
	ctx := context.Background()

	evt := testEvent(t, event.TypePlayerCreated, "player-1", player.CreatedPayload{PlayerID: "player-1"})
	stored, err := eventStore.AppendEvent(ctx, evt)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	// Honest journal passes.
	if _, err := ReplayCampaignWith(ctx, eventStore, applier, "camp-1", ReplayOptions{VerifyHashes: true}); err != nil {
		t.Fatalf("replay clean journal: %v", err)
	}

	// Tamper with the stored payload; the hash no longer matches.
	tampered := stored
	tampered.PayloadJSON = []byte(`{"player_id":"someone-else"}`)
	eventStore.events[0] = tampered

	_, err = ReplayCampaignWith(ctx, eventStore, applier, "camp-1", ReplayOptions{VerifyHashes: true})
	if err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("err = %v, want hash mismatch", err)
	}
}

func TestReplayDetectsJournalGap(t *testing.T) {
	eventStore := &fakeEventStore{}
	applier, _, _, _, _ := newTestApplier()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		evt := testEvent(t, event.TypePlayerCreated, "player-1", player.CreatedPayload{PlayerID: "player-1"})
		if _, err := eventStore.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	// Remove the middle event.
	eventStore.events = append(eventStore.events[:1], eventStore.events[2:]...)

	_, err := ReplayCampaign(ctx, eventStore, applier, "camp-1")
	if err == nil || !strings.Contains(err.Error(), "journal gap") {
		t.Fatalf("err = %v, want journal gap", err)
	}
}

func TestReplayBounds(t *testing.T) {
	eventStore := &fakeEventStore{}
	applier, players, _, _, _ := newTestApplier()
	ctx := context.Background()

	values := []int{2, 5, 9}
	evt := testEvent(t, event.TypePlayerCreated, "player-1", player.CreatedPayload{PlayerID: "player-1"})
	if _, err := eventStore.AppendEvent(ctx, evt); err != nil {
		t.Fatalf("append created: %v", err)
	}
	for _, v := range values {
		evt := testEvent(t, event.TypeReputationAdjusted, "player-1", player.ReputationAdjustedPayload{
			PlayerID: "player-1", NewValue: v,
		})
		if _, err := eventStore.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("append adjusted %d: %v", v, err)
		}
	}

	lastSeq, err := ReplayCampaignWith(ctx, eventStore, applier, "camp-1", ReplayOptions{UntilSeq: 3})
	if err != nil {
		t.Fatalf("bounded replay: %v", err)
	}
	if lastSeq != 3 {
		t.Fatalf("lastSeq = %d, want 3", lastSeq)
	}

	got, err := players.GetPlayer(ctx, "camp-1", "player-1")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if got.Reputation != 5 {
		t.Fatalf("reputation after bounded replay = %d, want 5", got.Reputation)
	}

	replayed := 0
	_, err = ReplayCampaignWith(ctx, eventStore, applier, "camp-1", ReplayOptions{
		Filter: func(evt event.Event) bool {
			keep := evt.Type == event.TypePlayerCreated
			if !keep {
				replayed++
			}
			return keep
		},
	})
	if err != nil {
		t.Fatalf("filtered replay: %v", err)
	}
	if replayed != 3 {
		t.Fatalf("filtered out = %d, want 3", replayed)
	}
}
