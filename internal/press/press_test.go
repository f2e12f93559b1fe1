package press

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/engine/expedition"
	"github.com/ashfield-games/greatwork/internal/engine/scholar"
	"github.com/ashfield-games/greatwork/internal/engine/theory"
)

func marshalPayload(t *testing.T, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func TestDraftsFromResolutionEvents(t *testing.T) {
	desk := NewDesk(nil)
	events := []event.Event{
		{
			Seq:  4,
			Type: event.TypeExpeditionResolved,
			PayloadJSON: marshalPayload(t, expedition.ResolvedPayload{
				ExpeditionID: "exp-1",
				Score:        88,
				Band:         string(expedition.BandLandmark),
				DomainTag:    "pre_flood_hydrology",
				Effects: []expedition.Effect{
					{
						Kind:      expedition.EffectInfluenceDelta,
						Influence: &expedition.InfluenceEffect{Faction: "academic", Delta: 5},
					},
				},
			}),
		},
		{
			Seq:  5,
			Type: event.TypeTheoryResolved,
			PayloadJSON: marshalPayload(t, theory.ResolvedPayload{
				TheoryID: "th-1",
				Outcome:  string(theory.OutcomeExpired),
				Reason:   "deadline passed without judgment",
			}),
		},
		{
			// Roster refills produce no copy.
			Seq:  6,
			Type: event.TypeScholarSpawned,
			PayloadJSON: marshalPayload(t, scholar.SpawnedPayload{
				ScholarID: "sch-9",
				Name:      "R. Voss",
				Tier:      "assistant",
				Origin:    "roster_refill",
			}),
		},
	}

	drafts := desk.Drafts(context.Background(), events)
	if len(drafts) != 2 {
		t.Fatalf("drafts = %d, want 2", len(drafts))
	}
	if drafts[0].Headline != "Landmark Discovery Rewrites the Record" {
		t.Fatalf("headline = %q", drafts[0].Headline)
	}
	if drafts[0].Deltas["influence:academic"] != 5 {
		t.Fatalf("deltas = %v", drafts[0].Deltas)
	}
	if drafts[0].EventSeq != 4 {
		t.Fatalf("event seq = %d, want 4", drafts[0].EventSeq)
	}
	if drafts[1].Headline != "Theory Lapses Unjudged" {
		t.Fatalf("headline = %q", drafts[1].Headline)
	}
}

func TestDraftsSkipUncoveredEvents(t *testing.T) {
	desk := NewDesk(nil)
	drafts := desk.Drafts(context.Background(), []event.Event{
		{Seq: 1, Type: event.TypeTimelineAdvanced, PayloadJSON: []byte(`{"from_year":1900,"to_year":1901}`)},
		{Seq: 2, Type: event.TypeOrderActivated, PayloadJSON: []byte(`{"order_id":"ord-1","attempt":1}`)},
	})
	if len(drafts) != 0 {
		t.Fatalf("drafts = %d, want 0", len(drafts))
	}
}

type stubEnhancer struct {
	draft Draft
	err   error
}

func (s stubEnhancer) Enhance(ctx context.Context, draft Draft) (Draft, error) {
	if s.err != nil {
		return Draft{}, s.err
	}
	return s.draft, nil
}

func TestEnhancerFailureFallsBackToTemplate(t *testing.T) {
	desk := NewDesk(stubEnhancer{err: errors.New("narrative service unavailable")})
	events := []event.Event{
		{
			Seq:  7,
			Type: event.TypeScholarRetired,
			PayloadJSON: marshalPayload(t, scholar.RetiredPayload{
				ScholarID: "sch-1",
				Reason:    "defected to industrial",
			}),
		},
	}

	drafts := desk.Drafts(context.Background(), events)
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	if drafts[0].Headline != "Defection Shakes the Institute" {
		t.Fatalf("fallback headline = %q", drafts[0].Headline)
	}
}

func TestEnhancerRewriteKeepsProvenance(t *testing.T) {
	desk := NewDesk(stubEnhancer{draft: Draft{
		Headline: "A Century of Silt, Undone in a Season",
		Body:     "What the river hid, the spade has found.",
	}})
	events := []event.Event{
		{
			Seq:  3,
			Type: event.TypeExpeditionResolved,
			PayloadJSON: marshalPayload(t, expedition.ResolvedPayload{
				ExpeditionID: "exp-2",
				Score:        70,
				Band:         string(expedition.BandSolid),
			}),
		},
	}

	drafts := desk.Drafts(context.Background(), events)
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	if drafts[0].Headline != "A Century of Silt, Undone in a Season" {
		t.Fatalf("headline = %q", drafts[0].Headline)
	}
	if drafts[0].EventSeq != 3 || drafts[0].EventType != event.TypeExpeditionResolved {
		t.Fatalf("provenance = seq %d type %s", drafts[0].EventSeq, drafts[0].EventType)
	}
}
