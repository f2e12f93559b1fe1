package offer

import (
	"testing"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/platform/errors"
)

var createdAt = time.Date(1907, 9, 1, 0, 0, 0, 0, time.UTC)

func openOffer(t *testing.T) Offer {
	t.Helper()
	o, err := New("off-1", "player-2", "sch-1", Terms{Faction: "industry", Escrow: 10}, createdAt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		terms Terms
		ok    bool
	}{
		{"valid", Terms{Faction: "industry", Escrow: 5}, true},
		{"missing faction", Terms{Escrow: 5}, false},
		{"zero escrow", Terms{Faction: "industry"}, false},
		{"negative escrow", Terms{Faction: "industry", Escrow: -2}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("off-1", "player-2", "sch-1", tc.terms, createdAt)
			if tc.ok {
				if err != nil {
					t.Fatalf("New: %v", err)
				}
				return
			}
			if !errors.IsCode(err, errors.CodeOfferTermsEmpty) {
				t.Fatalf("err = %v, want %s", err, errors.CodeOfferTermsEmpty)
			}
		})
	}
}

func TestTermsQuality(t *testing.T) {
	tests := []struct {
		escrow int
		want   float64
	}{
		{0, 0},
		{10, 0.5},
		{20, 1},
		{50, 1},
	}
	for _, tc := range tests {
		if got := (Terms{Escrow: tc.escrow}).Quality(); got != tc.want {
			t.Errorf("Quality(escrow=%d) = %v, want %v", tc.escrow, got, tc.want)
		}
	}
}

func TestApplyCounter(t *testing.T) {
	o := openOffer(t)

	if err := o.ApplyCounter(Terms{Faction: "academic", Escrow: 6}); err != nil {
		t.Fatalf("ApplyCounter: %v", err)
	}
	if o.State != StateCountered || o.Rounds != 1 {
		t.Fatalf("offer = %+v, want countered after one round", o)
	}

	// A second counter raises the stakes another round.
	if err := o.ApplyCounter(Terms{Faction: "academic", Escrow: 9}); err != nil {
		t.Fatalf("second ApplyCounter: %v", err)
	}
	if o.Rounds != 2 || o.Counter.Escrow != 9 {
		t.Fatalf("offer = %+v, want round 2 with latest terms", o)
	}

	if err := o.ApplyCounter(Terms{Faction: "academic"}); !errors.IsCode(err, errors.CodeOfferTermsEmpty) {
		t.Fatalf("err = %v, want %s", err, errors.CodeOfferTermsEmpty)
	}
}

func TestEffectiveQuality(t *testing.T) {
	o := openOffer(t)
	if got := o.EffectiveQuality(); got != 0.5 {
		t.Fatalf("EffectiveQuality = %v, want 0.5 before counter", got)
	}

	if err := o.ApplyCounter(Terms{Faction: "academic", Escrow: 6}); err != nil {
		t.Fatalf("ApplyCounter: %v", err)
	}
	want := 0.5 - 0.3
	if got := o.EffectiveQuality(); got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("EffectiveQuality = %v, want %v", got, want)
	}

	// A counter outbidding the offer floors at zero.
	if err := o.ApplyCounter(Terms{Faction: "academic", Escrow: 20}); err != nil {
		t.Fatalf("ApplyCounter: %v", err)
	}
	if got := o.EffectiveQuality(); got != 0 {
		t.Fatalf("EffectiveQuality = %v, want floor 0", got)
	}
}

func TestResolveTerminal(t *testing.T) {
	o := openOffer(t)
	resolvedAt := createdAt.AddDate(0, 1, 0)

	if err := o.Resolve(StateAccepted, resolvedAt); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if o.State != StateAccepted || o.Outcome != StateAccepted {
		t.Fatalf("offer = %+v, want accepted", o)
	}
	if o.EscrowReturned() {
		t.Fatal("accepted offer must consume the escrow")
	}

	// Same outcome again is a no-op.
	if err := o.Resolve(StateAccepted, resolvedAt.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("idempotent Resolve: %v", err)
	}
	if o.ResolvedAt != resolvedAt {
		t.Fatal("idempotent resolve must not touch the record")
	}

	// A different outcome is rejected.
	if err := o.Resolve(StateDeclined, resolvedAt); !errors.IsCode(err, errors.CodeOfferInvalidTransition) {
		t.Fatalf("err = %v, want %s", err, errors.CodeOfferInvalidTransition)
	}

	// Countering a resolved negotiation is rejected.
	if err := o.ApplyCounter(Terms{Faction: "academic", Escrow: 5}); !errors.IsCode(err, errors.CodeOfferInvalidTransition) {
		t.Fatalf("err = %v, want %s", err, errors.CodeOfferInvalidTransition)
	}
}

func TestResolveRequiresTerminalState(t *testing.T) {
	o := openOffer(t)
	if err := o.Resolve(StateCountered, createdAt); !errors.IsCode(err, errors.CodeOfferInvalidTransition) {
		t.Fatalf("err = %v, want %s", err, errors.CodeOfferInvalidTransition)
	}
}

func TestEscrowReturnedOnDeclineAndWithdraw(t *testing.T) {
	for _, outcome := range []State{StateDeclined, StateWithdrawn} {
		o := openOffer(t)
		if err := o.Resolve(outcome, createdAt.AddDate(0, 1, 0)); err != nil {
			t.Fatalf("Resolve(%s): %v", outcome, err)
		}
		if !o.EscrowReturned() {
			t.Errorf("outcome %s must return the escrow", outcome)
		}
	}
}

func TestRegisterEvents(t *testing.T) {
	registry := event.NewRegistry()
	if err := RegisterEvents(registry); err != nil {
		t.Fatalf("RegisterEvents: %v", err)
	}
	for _, typ := range []event.Type{event.TypeOfferCreated, event.TypeOfferCountered, event.TypeOfferResolved} {
		if _, ok := registry.Definition(typ); !ok {
			t.Errorf("missing definition for %s", typ)
		}
	}
}
