package expedition

import (
	"fmt"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/rng"
	"github.com/ashfield-games/greatwork/internal/engine/scholar"
	"github.com/ashfield-games/greatwork/internal/platform/errors"
	"github.com/ashfield-games/greatwork/internal/tuning"
)

// Band is the outcome class of a resolved expedition.
type Band string

const (
	BandFailure  Band = "failure"
	BandPartial  Band = "partial"
	BandSolid    Band = "solid"
	BandLandmark Band = "landmark"
)

// Failure table results.
const (
	ResultNothing             = "nothing"
	ResultMinorClue           = "minor_clue"
	ResultAdjacentDiscovery   = "adjacent_discovery"
	ResultMajorSidewaysUnlock = "major_sideways_unlock"
)

// EffectKind discriminates the typed sideways effects of a resolution.
type EffectKind string

const (
	// EffectInfluenceDelta adjusts a player's standing with a faction.
	EffectInfluenceDelta EffectKind = "influence_delta"
	// EffectEnqueueOrder queues a follow-up order for a later tick.
	EffectEnqueueOrder EffectKind = "enqueue_order"
	// EffectSidecastScholar spawns a new scholar onto the roster.
	EffectSidecastScholar EffectKind = "sidecast_scholar"
	// EffectTheorySeed surfaces a claim the player may publish.
	EffectTheorySeed EffectKind = "theory_seed"
	// EffectDomainUnlock opens a new content-domain tag for future work.
	EffectDomainUnlock EffectKind = "domain_unlock"
)

// InfluenceEffect is an influence delta applied with the resolution.
type InfluenceEffect struct {
	Faction string `json:"faction"`
	Delta   int    `json:"delta"`
}

// OrderEffect queues a follow-up order relative to the resolution time.
type OrderEffect struct {
	OrderType  string `json:"order_type"`
	SubjectID  string `json:"subject_id"`
	DelayYears int    `json:"delay_years"`
}

// SidecastEffect carries a fully formed scholar so that replay never needs
// randomness: every drawn value is embedded in the resolution payload.
type SidecastEffect struct {
	ScholarID string `json:"scholar_id"`
	Name      string `json:"name"`
	Archetype string `json:"archetype"`
	Loyalty   int    `json:"loyalty"`
	Integrity int    `json:"integrity"`
	Talent    int    `json:"talent"`
	Daring    int    `json:"daring"`
}

// TheorySeedEffect is a claim hint surfaced by field work.
type TheorySeedEffect struct {
	Claim string `json:"claim"`
}

// Effect is one typed sideways effect. Exactly one of the optional fields is
// set, selected by Kind.
type Effect struct {
	Kind       EffectKind        `json:"kind"`
	Influence  *InfluenceEffect  `json:"influence,omitempty"`
	Order      *OrderEffect      `json:"order,omitempty"`
	Sidecast   *SidecastEffect   `json:"sidecast,omitempty"`
	TheorySeed *TheorySeedEffect `json:"theory_seed,omitempty"`
	DomainTag  string            `json:"domain_tag,omitempty"`
}

// Modifiers are the audit components of an outcome score. Each is clamped to
// its bound independently before scoring.
type Modifiers struct {
	Preparation int `json:"preparation"`
	Expertise   int `json:"expertise"`
	Friction    int `json:"friction"`
}

// Bound returns the modifiers with each component clamped to its range.
func (m Modifiers) Bound() Modifiers {
	return Modifiers{
		Preparation: clampInt(m.Preparation, 0, MaxPreparation),
		Expertise:   clampInt(m.Expertise, 0, MaxExpertise),
		Friction:    clampInt(m.Friction, 0, MaxFriction),
	}
}

// Resolution is the full outcome of one expedition, carrying every audit
// component and every drawn value.
type Resolution struct {
	ExpeditionID  string
	Roll          int
	Modifiers     Modifiers
	Score         int
	Band          Band
	FailureResult string
	DomainTag     string
	Effects       []Effect
	ResolvedAt    time.Time
}

// domainTags is the pool of content-domain tags a landmark or major sideways
// unlock can open. Slice order matters: draws index it deterministically.
var domainTags = []string{
	"submerged_ruins",
	"undeciphered_script",
	"celestial_records",
	"deep_antiquity",
	"lost_trade_routes",
	"ritual_metallurgy",
}

// BandForScore maps an outcome score to its band using inclusive lower bounds.
func BandForScore(score int, bands tuning.Bands) Band {
	switch {
	case score >= bands.Landmark:
		return BandLandmark
	case score >= bands.Solid:
		return BandSolid
	case score >= bands.Partial:
		return BandPartial
	default:
		return BandFailure
	}
}

// Resolve rolls the outcome for a queued expedition.
//
// Draw order on the stream is fixed and part of the reproducibility contract:
//  1. d100 outcome roll
//  2. on failure, one weighted draw from the depth-gated table;
//     on landmark, one domain-tag draw
//  3. when the result spawns a scholar: one domain-tag draw (major sideways
//     unlock only), one archetype draw, then the sidecast's own draws
//
// newID supplies identifiers for spawned records; the generated values are
// embedded in the resolution so replay never calls it again.
func Resolve(exp Expedition, mods Modifiers, stream *rng.Stream, cfg tuning.Tuning, newID func() string, resolvedAt time.Time) (Resolution, error) {
	if exp.Status == StatusResolved {
		return Resolution{}, errors.WithMetadata(errors.CodeExpeditionAlreadyResolved,
			"expedition already resolved", map[string]string{"expedition_id": exp.ID})
	}

	bounded := mods.Bound()
	roll := stream.D100()
	score := roll + bounded.Preparation + bounded.Expertise - bounded.Friction
	band := BandForScore(score, cfg.Bands)

	res := Resolution{
		ExpeditionID: exp.ID,
		Roll:         roll,
		Modifiers:    bounded,
		Score:        score,
		Band:         band,
		ResolvedAt:   resolvedAt.UTC(),
	}

	switch band {
	case BandFailure:
		table := cfg.Failure.Shallow
		if exp.PrepDepth >= cfg.Failure.DeepPrepThreshold {
			table = cfg.Failure.Deep
		}
		weights := make([]int, len(table))
		for i, row := range table {
			weights[i] = row.Weight
		}
		idx, err := stream.WeightedIndex(weights)
		if err != nil {
			return Resolution{}, fmt.Errorf("failure table draw: %w", err)
		}
		res.FailureResult = table[idx].Result
		res.Effects = failureEffects(exp, res.FailureResult, stream, cfg, newID, resolvedAt)
		if res.FailureResult == ResultMajorSidewaysUnlock {
			res.DomainTag = res.Effects[0].DomainTag
		}
	case BandPartial:
		res.Effects = []Effect{influenceEffect(2)}
	case BandSolid:
		res.Effects = []Effect{
			influenceEffect(5),
			{
				Kind: EffectEnqueueOrder,
				Order: &OrderEffect{
					OrderType:  "conference_resolution",
					SubjectID:  exp.ID,
					DelayYears: 1,
				},
			},
		}
	case BandLandmark:
		tag := domainTags[stream.Intn(len(domainTags))]
		res.DomainTag = tag
		res.Effects = []Effect{
			{Kind: EffectDomainUnlock, DomainTag: tag},
			influenceEffect(8),
			sidecastEffect(exp, stream, cfg, newID, resolvedAt),
		}
	}
	return res, nil
}

// failureEffects maps a failure-table result to its sideways effects.
func failureEffects(exp Expedition, result string, stream *rng.Stream, cfg tuning.Tuning, newID func() string, resolvedAt time.Time) []Effect {
	switch result {
	case ResultMinorClue:
		return []Effect{theorySeed(exp)}
	case ResultAdjacentDiscovery:
		return []Effect{influenceEffect(2), theorySeed(exp)}
	case ResultMajorSidewaysUnlock:
		tag := domainTags[stream.Intn(len(domainTags))]
		return []Effect{
			{Kind: EffectDomainUnlock, DomainTag: tag},
			sidecastEffect(exp, stream, cfg, newID, resolvedAt),
		}
	default:
		return nil
	}
}

func influenceEffect(delta int) Effect {
	return Effect{
		Kind:      EffectInfluenceDelta,
		Influence: &InfluenceEffect{Faction: "academic", Delta: delta},
	}
}

func theorySeed(exp Expedition) Effect {
	return Effect{
		Kind: EffectTheorySeed,
		TheorySeed: &TheorySeedEffect{
			Claim: fmt.Sprintf("field notes from expedition %s hint at an earlier occupation layer", exp.ID),
		},
	}
}

// sidecastEffect draws an archetype then delegates to the scholar package for
// the remaining draws.
func sidecastEffect(exp Expedition, stream *rng.Stream, cfg tuning.Tuning, newID func() string, resolvedAt time.Time) Effect {
	archetype := cfg.Sidecast[stream.Intn(len(cfg.Sidecast))]
	s := scholar.Sidecast(newID(), archetype, stream, resolvedAt)
	return Effect{
		Kind: EffectSidecastScholar,
		Sidecast: &SidecastEffect{
			ScholarID: s.ID,
			Name:      s.Name,
			Archetype: s.Archetype,
			Loyalty:   s.Stats.Loyalty,
			Integrity: s.Stats.Integrity,
			Talent:    s.Stats.Talent,
			Daring:    s.Stats.Daring,
		},
	}
}

func clampInt(v, lower, upper int) int {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
