// Package influence implements the five-axis player resource vector with
// reputation-derived soft caps.
package influence

import (
	"errors"
	"fmt"
)

// Faction identifies one influence axis.
type Faction string

const (
	FactionAcademic   Faction = "academic"
	FactionGovernment Faction = "government"
	FactionIndustry   Faction = "industry"
	FactionReligious  Faction = "religious"
	FactionForeign    Faction = "foreign"
)

// Factions lists all axes in canonical order.
var Factions = []Faction{
	FactionAcademic,
	FactionGovernment,
	FactionIndustry,
	FactionReligious,
	FactionForeign,
}

// ErrInsufficientInfluence indicates a negative delta would go below zero.
var ErrInsufficientInfluence = errors.New("insufficient influence")

// ErrUnknownFaction indicates an unrecognized faction name.
var ErrUnknownFaction = errors.New("unknown faction")

// Vector holds a player's influence per faction. Values are never negative.
type Vector map[Faction]int

// NewVector returns a zeroed vector covering every faction.
func NewVector() Vector {
	v := make(Vector, len(Factions))
	for _, faction := range Factions {
		v[faction] = 0
	}
	return v
}

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	clone := make(Vector, len(v))
	for faction, value := range v {
		clone[faction] = value
	}
	return clone
}

// IsValid reports whether the faction is one of the five axes.
func (f Faction) IsValid() bool {
	for _, faction := range Factions {
		if f == faction {
			return true
		}
	}
	return false
}

// CapPolicy derives the soft cap for a reputation value.
type CapPolicy struct {
	Base     int
	PerPoint int
}

// Cap returns the soft cap for the given reputation. The cap never drops
// below zero even for deeply negative reputation.
func (p CapPolicy) Cap(reputation int) int {
	cap := p.Base + p.PerPoint*reputation
	if cap < 0 {
		return 0
	}
	return cap
}

// ApplyDelta mutates one faction's influence.
//
// Positive deltas clamp silently at the soft cap for the given reputation.
// Negative deltas that would go below zero return ErrInsufficientInfluence
// and leave the vector untouched, so callers can reject atomically.
func ApplyDelta(v Vector, policy CapPolicy, reputation int, faction Faction, delta int) error {
	if !faction.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownFaction, faction)
	}
	current := v[faction]
	next := current + delta
	if delta < 0 && next < 0 {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientInfluence, faction, current, -delta)
	}
	if delta > 0 {
		if capValue := policy.Cap(reputation); next > capValue {
			// Over-cap gains are clamped, not rejected; only the cap moves
			// with reputation.
			if current > capValue {
				next = current
			} else {
				next = capValue
			}
		}
	}
	v[faction] = next
	return nil
}

// WithinCaps reports whether every axis respects the cap for the reputation.
func WithinCaps(v Vector, policy CapPolicy, reputation int) bool {
	capValue := policy.Cap(reputation)
	for _, faction := range Factions {
		if v[faction] > capValue {
			return false
		}
	}
	return true
}

// Total returns the sum across all axes.
func (v Vector) Total() int {
	total := 0
	for _, faction := range Factions {
		total += v[faction]
	}
	return total
}
