package scholar

import (
	"math"
	"time"

	"github.com/ashfield-games/greatwork/internal/tuning"
)

// recentWindow bounds how far back facts count toward the mistreatment and
// plateau signals.
const recentWindow = 5 * 365 * 24 * time.Hour

// OfferTerms is the slice of an offer the defection model consumes.
type OfferTerms struct {
	// Quality is the caller-normalized attractiveness of the offer in [0,1].
	Quality float64
	// FactionID identifies the courting faction, matched against feelings.
	FactionID string
}

// Signals are the fact-derived inputs to the defection probability.
type Signals struct {
	// Mistreatment is in [-0.3, 0.3]: positive when recent slights outnumber
	// recent kindnesses.
	Mistreatment float64
	// FactionAlignment is in [-0.3, 0.3]: positive when the scholar already
	// feels warmly toward the courting faction.
	FactionAlignment float64
	// CareerPlateau is in [0, 0.4]: grows with years stuck at the same tier.
	CareerPlateau float64
}

// DeriveSignals computes the defection signals from a scholar snapshot.
// It reads only the snapshot; it never consults the clock or RNG.
func DeriveSignals(s Scholar, offer OfferTerms, now time.Time, currentYear int) Signals {
	since := now.UTC().Add(-recentWindow)

	slights := len(s.Memory.FactsOfKind(FactKindSnubbed, since)) +
		len(s.Memory.FactsOfKind(FactKindPassedOver, since)) +
		len(s.Memory.FactsOfKind(FactKindBetrayed, since))
	kindnesses := len(s.Memory.FactsOfKind(FactKindPraised, since)) +
		len(s.Memory.FactsOfKind(FactKindMentored, since))
	mistreatment := clamp(0.1*float64(slights-kindnesses), -0.3, 0.3)

	alignment := clamp(s.Memory.Feelings[offer.FactionID]*0.03, -0.3, 0.3)

	yearsStuck := currentYear - s.PromotedYear
	if s.PromotedYear == 0 {
		yearsStuck = currentYear - s.CreatedAt.Year()
	}
	if yearsStuck < 0 {
		yearsStuck = 0
	}
	plateau := clamp(0.05*float64(yearsStuck), 0, 0.4)

	return Signals{
		Mistreatment:     mistreatment,
		FactionAlignment: alignment,
		CareerPlateau:    plateau,
	}
}

// DefectionProbability returns the probability that the scholar accepts the
// offer, as a pure function of the snapshot inputs.
//
// The RNG is never consulted here: the caller draws once, externally, and
// compares against the returned probability. Maximum loyalty and integrity
// push the probability toward the sigmoid asymptote but never to exactly
// zero, and a scholar with no facts still returns a small non-zero baseline.
func DefectionProbability(stats Stats, offer OfferTerms, signals Signals, cfg tuning.Defection) float64 {
	x := offer.Quality +
		signals.Mistreatment +
		signals.FactionAlignment +
		signals.CareerPlateau -
		cfg.LoyaltyWeight*(float64(stats.Loyalty)/10) -
		cfg.IntegrityWeight*(float64(stats.Integrity)/10)
	return sigmoid(cfg.Steepness * (x - cfg.Midpoint))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(value, lower, upper float64) float64 {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}
