// Package scholar implements the scholar roster: career tiers, stat blocks,
// the memory model (permanent facts, decaying feelings, permanent scars), and
// the defection probability function consulted when offers resolve.
package scholar

import (
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/rng"
)

// Tier is an ordered career stage.
type Tier int

const (
	TierAssistant Tier = iota
	TierFellow
	TierProfessor
	TierEmeritus
)

// String returns the tier's lowercase name.
func (t Tier) String() string {
	switch t {
	case TierAssistant:
		return "assistant"
	case TierFellow:
		return "fellow"
	case TierProfessor:
		return "professor"
	case TierEmeritus:
		return "emeritus"
	default:
		return "unknown"
	}
}

// ParseTier maps a stored tier name back to its value.
func ParseTier(name string) (Tier, bool) {
	switch name {
	case "assistant":
		return TierAssistant, true
	case "fellow":
		return TierFellow, true
	case "professor":
		return TierProfessor, true
	case "emeritus":
		return TierEmeritus, true
	default:
		return TierAssistant, false
	}
}

// Stats is the scholar's bounded stat block. All values are in [0,10].
type Stats struct {
	Loyalty   int `json:"loyalty"`
	Integrity int `json:"integrity"`
	Talent    int `json:"talent"`
	Daring    int `json:"daring"`
}

// Scholar is the projected state for one roster member.
type Scholar struct {
	ID        string
	Name      string
	Archetype string
	Tier      Tier
	Stats     Stats
	Memory    Memory
	Retired   bool
	CreatedAt time.Time
	// PromotedYear is the in-game year of the last tier change; used by the
	// career-plateau signal.
	PromotedYear int
}

// New returns an active scholar with empty memory.
func New(scholarID, name string, tier Tier, stats Stats, createdAt time.Time) Scholar {
	return Scholar{
		ID:        scholarID,
		Name:      name,
		Tier:      tier,
		Stats:     stats,
		Memory:    NewMemory(),
		CreatedAt: createdAt.UTC(),
	}
}

// Sidecast generates a new scholar from an archetype using the action's
// deterministic stream.
//
// Draw order is fixed and part of the reproducibility contract:
// loyalty, integrity, talent, daring (each Intn(11)), then a name index.
func Sidecast(scholarID, archetype string, stream *rng.Stream, createdAt time.Time) Scholar {
	stats := Stats{
		Loyalty:   stream.Intn(11),
		Integrity: stream.Intn(11),
		Talent:    stream.Intn(11),
		Daring:    stream.Intn(11),
	}
	name := sidecastNames[stream.Intn(len(sidecastNames))]
	s := New(scholarID, name, TierAssistant, stats, createdAt)
	s.Archetype = archetype
	return s
}

// sidecastNames seeds generated scholars with period-appropriate names.
// Slice order matters: Sidecast indexes it with a deterministic draw.
var sidecastNames = []string{
	"E. Whitcombe",
	"M. Oyelaran",
	"H. Lindqvist",
	"A. Ferreira",
	"R. Nakashima",
	"C. Duval",
	"I. Petrova",
	"T. Mbeki",
	"L. Castellanos",
	"G. Haraldson",
}
