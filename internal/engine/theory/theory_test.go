package theory

import (
	"testing"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/platform/errors"
)

var (
	submittedAt = time.Date(1904, 2, 10, 12, 0, 0, 0, time.UTC)
	deadline    = time.Date(1906, 2, 10, 12, 0, 0, 0, time.UTC)
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name       string
		claim      string
		confidence Confidence
		deadline   time.Time
		wantCode   errors.Code
	}{
		{"valid", "the delta chambers predate the dynasty", ConfidenceProbable, deadline, ""},
		{"empty claim", "", ConfidenceProbable, deadline, errors.CodeTheoryClaimEmpty},
		{"bad confidence", "a claim", Confidence("reckless"), deadline, errors.CodeTheoryInvalidConfidence},
		{"deadline before submission", "a claim", ConfidenceCertain, submittedAt.AddDate(-1, 0, 0), errors.CodeTheoryDeadlinePast},
		{"deadline equals submission", "a claim", ConfidenceCertain, submittedAt, errors.CodeTheoryDeadlinePast},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("thr-1", "player-1", tc.claim, tc.confidence, nil, tc.deadline, submittedAt)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("New: %v", err)
				}
				return
			}
			if !errors.IsCode(err, tc.wantCode) {
				t.Fatalf("err = %v, want code %s", err, tc.wantCode)
			}
		})
	}
}

func TestNewCopiesSupporters(t *testing.T) {
	supporters := []string{"sch-1", "sch-2"}
	thr, err := New("thr-1", "player-1", "a claim", ConfidenceSpeculative, supporters, deadline, submittedAt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	supporters[0] = "mutated"
	if thr.Supporters[0] != "sch-1" {
		t.Fatal("supporters slice aliased caller memory")
	}
}

func TestResolveTerminal(t *testing.T) {
	thr, err := New("thr-1", "player-1", "a claim", ConfidenceProbable, nil, deadline, submittedAt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolvedAt := deadline.Add(time.Hour)

	if err := thr.Resolve(OutcomeVindicated, resolvedAt); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !thr.Resolved() || thr.Outcome != OutcomeVindicated {
		t.Fatalf("theory = %+v, want vindicated", thr)
	}
	if thr.ResolvedAt != resolvedAt {
		t.Fatalf("resolved at = %v, want %v", thr.ResolvedAt, resolvedAt)
	}

	// Same outcome again is a no-op.
	if err := thr.Resolve(OutcomeVindicated, resolvedAt.Add(time.Hour)); err != nil {
		t.Fatalf("idempotent resolve: %v", err)
	}
	if thr.ResolvedAt != resolvedAt {
		t.Fatal("idempotent resolve must not touch the record")
	}

	// A different outcome after resolution is rejected.
	err = thr.Resolve(OutcomeRefuted, resolvedAt.Add(time.Hour))
	if !errors.IsCode(err, errors.CodeTheoryAlreadyResolved) {
		t.Fatalf("err = %v, want %s", err, errors.CodeTheoryAlreadyResolved)
	}
	if thr.Outcome != OutcomeVindicated {
		t.Fatal("rejected resolve must not change the outcome")
	}
}

func TestResolveUnknownOutcome(t *testing.T) {
	thr, err := New("thr-1", "player-1", "a claim", ConfidenceProbable, nil, deadline, submittedAt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := thr.Resolve(Outcome("shelved"), deadline); err == nil {
		t.Fatal("expected error for unknown outcome")
	}
	if thr.Resolved() {
		t.Fatal("rejected outcome must leave the theory open")
	}
}

func TestRetract(t *testing.T) {
	thr, err := New("thr-1", "player-1", "a claim", ConfidenceCertain, nil, deadline, submittedAt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := thr.Retract(submittedAt.Add(24 * time.Hour)); err != nil {
		t.Fatalf("Retract: %v", err)
	}
	if thr.Outcome != OutcomeRetracted {
		t.Fatalf("outcome = %s, want retracted", thr.Outcome)
	}
}

func TestRegisterEvents(t *testing.T) {
	registry := event.NewRegistry()
	if err := RegisterEvents(registry); err != nil {
		t.Fatalf("RegisterEvents: %v", err)
	}
	for _, typ := range []event.Type{event.TypeTheorySubmitted, event.TypeTheoryResolved} {
		if _, ok := registry.Definition(typ); !ok {
			t.Errorf("missing definition for %s", typ)
		}
	}
}
