package scholar

import "time"

// FactKind classifies a remembered event.
type FactKind string

const (
	FactKindMentored          FactKind = "mentored"
	FactKindPraised           FactKind = "praised"
	FactKindSnubbed           FactKind = "snubbed"
	FactKindPassedOver        FactKind = "passed_over"
	FactKindExpeditionTriumph FactKind = "expedition_triumph"
	FactKindExpeditionFailure FactKind = "expedition_failure"
	FactKindPoachAttempt      FactKind = "poach_attempt"
	FactKindPromoted          FactKind = "promoted"
	FactKindBetrayed          FactKind = "betrayed"
)

// Fact is a permanent, timestamped record of something that happened to the
// scholar. Facts are append-only and never decay.
type Fact struct {
	Timestamp    time.Time `json:"timestamp"`
	Kind         FactKind  `json:"kind"`
	Participants []string  `json:"participants,omitempty"`
}

// Memory holds a scholar's facts, decaying feelings, and permanent scars.
type Memory struct {
	Facts []Fact `json:"facts"`
	// Feelings maps a target id (player, faction, or scholar) to a signed
	// score that decays geometrically toward zero each tick.
	Feelings map[string]float64 `json:"feelings"`
	// Scars are permanent markers that suppress feeling decay for a target.
	Scars map[string]struct{} `json:"scars"`
}

// NewMemory returns an empty memory.
func NewMemory() Memory {
	return Memory{
		Feelings: make(map[string]float64),
		Scars:    make(map[string]struct{}),
	}
}

// RecordFact appends a permanent fact.
func (m *Memory) RecordFact(timestamp time.Time, kind FactKind, participants ...string) {
	m.Facts = append(m.Facts, Fact{
		Timestamp:    timestamp.UTC(),
		Kind:         kind,
		Participants: append([]string(nil), participants...),
	})
}

// AdjustFeeling shifts the feeling toward a target by delta.
func (m *Memory) AdjustFeeling(target string, delta float64) {
	if m.Feelings == nil {
		m.Feelings = make(map[string]float64)
	}
	m.Feelings[target] += delta
}

// Scar marks a target's feeling as permanent. Scarred feelings stop decaying.
func (m *Memory) Scar(target string) {
	if m.Scars == nil {
		m.Scars = make(map[string]struct{})
	}
	m.Scars[target] = struct{}{}
}

// IsScarred reports whether decay is suppressed for the target.
func (m *Memory) IsScarred(target string) bool {
	_, scarred := m.Scars[target]
	return scarred
}

// DecayFeelings multiplies every unscarred feeling by rate. Rate must be in
// (0,1); feelings approach zero but never reach it, so ancient slights still
// register faintly.
func (m *Memory) DecayFeelings(rate float64) {
	for target, value := range m.Feelings {
		if m.IsScarred(target) {
			continue
		}
		m.Feelings[target] = value * rate
	}
}

// FactsOfKind returns facts matching kind recorded at or after since.
func (m *Memory) FactsOfKind(kind FactKind, since time.Time) []Fact {
	var matched []Fact
	for _, fact := range m.Facts {
		if fact.Kind == kind && !fact.Timestamp.Before(since) {
			matched = append(matched, fact)
		}
	}
	return matched
}
