package expedition

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/rng"
	"github.com/ashfield-games/greatwork/internal/platform/errors"
	"github.com/ashfield-games/greatwork/internal/tuning"
)

var resolvedAt = time.Date(1906, 4, 1, 0, 0, 0, 0, time.UTC)

// sequentialIDs returns deterministic identifiers for spawned records.
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

func queuedExpedition(t *testing.T, prepDepth int) Expedition {
	t.Helper()
	exp, err := New("exp-1", "player-1", TierFieldStudy, []string{"sch-1", "sch-2"}, prepDepth, FundingPersonal, resolvedAt.AddDate(-1, 0, 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return exp
}

func TestBandForScoreBoundaries(t *testing.T) {
	bands := tuning.Defaults().Bands
	tests := []struct {
		score int
		want  Band
	}{
		{0, BandFailure},
		{39, BandFailure},
		{40, BandPartial},
		{64, BandPartial},
		{65, BandSolid},
		{84, BandSolid},
		{85, BandLandmark},
		{140, BandLandmark},
	}
	for _, tc := range tests {
		if got := BandForScore(tc.score, bands); got != tc.want {
			t.Errorf("BandForScore(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestResolveScoreArithmetic(t *testing.T) {
	cfg := tuning.Defaults()
	exp := queuedExpedition(t, 20)
	mods := Modifiers{Preparation: 20, Expertise: 10, Friction: 15}

	res, err := Resolve(exp, mods, rng.NewStream(7, 3), cfg, sequentialIDs(), resolvedAt)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Roll < 1 || res.Roll > 100 {
		t.Fatalf("roll = %d, want [1,100]", res.Roll)
	}
	want := res.Roll + 20 + 10 - 15
	if res.Score != want {
		t.Fatalf("score = %d, want %d", res.Score, want)
	}
	if res.Band != BandForScore(res.Score, cfg.Bands) {
		t.Fatalf("band = %s, inconsistent with score %d", res.Band, res.Score)
	}
	if res.Modifiers != mods {
		t.Fatalf("modifiers = %+v, want audit copy %+v", res.Modifiers, mods)
	}
}

func TestResolveDeterministic(t *testing.T) {
	cfg := tuning.Defaults()
	exp := queuedExpedition(t, 20)
	mods := Modifiers{Preparation: 12, Expertise: 6, Friction: 4}

	a, err := Resolve(exp, mods, rng.NewStream(42, 9), cfg, sequentialIDs(), resolvedAt)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, err := Resolve(exp, mods, rng.NewStream(42, 9), cfg, sequentialIDs(), resolvedAt)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("resolutions differ:\n%+v\n%+v", a, b)
	}
}

func TestResolveAlreadyResolved(t *testing.T) {
	exp := queuedExpedition(t, 10)
	exp.Status = StatusResolved

	_, err := Resolve(exp, Modifiers{}, rng.NewStream(1, 1), tuning.Defaults(), sequentialIDs(), resolvedAt)
	if !errors.IsCode(err, errors.CodeExpeditionAlreadyResolved) {
		t.Fatalf("err = %v, want %s", err, errors.CodeExpeditionAlreadyResolved)
	}
}

func TestShallowFailureNeverMajorUnlock(t *testing.T) {
	cfg := tuning.Defaults()
	exp := queuedExpedition(t, cfg.Failure.DeepPrepThreshold-1)
	// Max friction and no bonuses keep most rolls in the failure band.
	mods := Modifiers{Friction: MaxFriction}

	failures := 0
	for i := uint64(0); i < 500; i++ {
		res, err := Resolve(exp, mods, rng.NewStream(11, i), cfg, sequentialIDs(), resolvedAt)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if res.Band != BandFailure {
			continue
		}
		failures++
		switch res.FailureResult {
		case ResultNothing, ResultMinorClue:
		default:
			t.Fatalf("stream %d: shallow failure yielded %q", i, res.FailureResult)
		}
		if res.DomainTag != "" {
			t.Fatalf("stream %d: shallow failure unlocked domain %q", i, res.DomainTag)
		}
	}
	if failures == 0 {
		t.Fatal("no failures observed; test setup is wrong")
	}
}

func TestDeepFailureCanYieldSidewaysResults(t *testing.T) {
	cfg := tuning.Defaults()
	exp := queuedExpedition(t, cfg.Failure.DeepPrepThreshold)
	// Friction swamps the prep bonus so failures still occur at deep prep.
	mods := Modifiers{Preparation: 15, Friction: MaxFriction}

	seen := map[string]bool{}
	for i := uint64(0); i < 2000; i++ {
		res, err := Resolve(exp, mods, rng.NewStream(13, i), cfg, sequentialIDs(), resolvedAt)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if res.Band != BandFailure {
			continue
		}
		seen[res.FailureResult] = true
		if res.FailureResult == ResultMajorSidewaysUnlock {
			if res.DomainTag == "" {
				t.Fatal("major sideways unlock must carry a domain tag")
			}
			var sidecast *SidecastEffect
			for _, effect := range res.Effects {
				if effect.Kind == EffectSidecastScholar {
					sidecast = effect.Sidecast
				}
			}
			if sidecast == nil {
				t.Fatal("major sideways unlock must sidecast a scholar")
			}
			if sidecast.ScholarID == "" || sidecast.Name == "" {
				t.Fatalf("sidecast incomplete: %+v", sidecast)
			}
		}
	}
	for _, result := range []string{ResultAdjacentDiscovery, ResultMajorSidewaysUnlock} {
		if !seen[result] {
			t.Errorf("deep failures never produced %q across 2000 streams", result)
		}
	}
}

func TestLandmarkUnlocksDomain(t *testing.T) {
	cfg := tuning.Defaults()
	exp := queuedExpedition(t, 30)
	// Max bonuses make landmarks common; scan streams until one appears.
	mods := Modifiers{Preparation: MaxPreparation, Expertise: MaxExpertise}

	for i := uint64(0); i < 200; i++ {
		res, err := Resolve(exp, mods, rng.NewStream(17, i), cfg, sequentialIDs(), resolvedAt)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if res.Band != BandLandmark {
			continue
		}
		if res.DomainTag == "" {
			t.Fatal("landmark must carry a domain tag")
		}
		kinds := map[EffectKind]bool{}
		for _, effect := range res.Effects {
			kinds[effect.Kind] = true
		}
		if !kinds[EffectDomainUnlock] {
			t.Fatal("landmark must emit a domain unlock effect")
		}
		if !kinds[EffectSidecastScholar] {
			t.Fatal("landmark must sidecast a scholar")
		}
		if !kinds[EffectInfluenceDelta] {
			t.Fatal("landmark must grant influence")
		}
		return
	}
	t.Fatal("no landmark observed across 200 streams")
}

func TestSolidQueuesFollowUpOrder(t *testing.T) {
	cfg := tuning.Defaults()
	exp := queuedExpedition(t, 10)
	mods := Modifiers{Preparation: 20, Expertise: 10}

	for i := uint64(0); i < 500; i++ {
		res, err := Resolve(exp, mods, rng.NewStream(19, i), cfg, sequentialIDs(), resolvedAt)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if res.Band != BandSolid {
			continue
		}
		var order *OrderEffect
		for _, effect := range res.Effects {
			if effect.Kind == EffectEnqueueOrder {
				order = effect.Order
			}
		}
		if order == nil {
			t.Fatal("solid success must queue a follow-up order")
		}
		if order.OrderType != "conference_resolution" || order.SubjectID != exp.ID {
			t.Fatalf("unexpected order effect: %+v", order)
		}
		return
	}
	t.Fatal("no solid success observed across 500 streams")
}

func TestResolutionPayloadRoundTrip(t *testing.T) {
	cfg := tuning.Defaults()
	exp := queuedExpedition(t, 20)

	res, err := Resolve(exp, Modifiers{Preparation: 20, Expertise: 10}, rng.NewStream(23, 1), cfg, sequentialIDs(), resolvedAt)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	payload := ResolutionPayload(res)
	if payload.ExpeditionID != res.ExpeditionID || payload.Roll != res.Roll || payload.Score != res.Score {
		t.Fatalf("payload = %+v, does not mirror resolution %+v", payload, res)
	}
	if payload.Band != string(res.Band) {
		t.Fatalf("band = %q, want %q", payload.Band, res.Band)
	}
	if len(payload.Effects) != len(res.Effects) {
		t.Fatalf("effects = %d, want %d", len(payload.Effects), len(res.Effects))
	}
}
