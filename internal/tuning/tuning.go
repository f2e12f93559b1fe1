// Package tuning loads simulation constants from a YAML file.
//
// Every gameplay constant that designers iterate on lives here rather than in
// code: decay rates, influence caps, outcome bands, roster bounds, and the
// depth-gated failure tables. Defaults() returns the shipped values so the
// engine runs without a tuning file present.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds all designer-adjustable simulation constants.
type Tuning struct {
	// YearsPerTick is how many in-game years one digest tick advances.
	YearsPerTick int `yaml:"years_per_tick"`

	ReputationMin int `yaml:"reputation_min"`
	ReputationMax int `yaml:"reputation_max"`

	// Influence soft cap: cap = base + per_point * reputation.
	InfluenceCapBase     int `yaml:"influence_cap_base"`
	InfluenceCapPerPoint int `yaml:"influence_cap_per_point"`

	// FeelingDecayRate multiplies every unscarred feeling each tick. Must be
	// in (0,1) so feelings approach but never reach zero.
	FeelingDecayRate float64 `yaml:"feeling_decay_rate"`

	RosterMin int `yaml:"roster_min"`
	RosterMax int `yaml:"roster_max"`

	// OfferCooldownYears is how long a declined poach locks the suitor out of
	// re-approaching the same scholar.
	OfferCooldownYears int `yaml:"offer_cooldown_years"`

	// PatronDebt is the commitment a patron-funded expedition records against
	// the player, repaid by a solid or better result.
	PatronDebt int `yaml:"patron_debt"`

	Bands    Bands     `yaml:"bands"`
	Failure  Failure   `yaml:"failure"`
	Retry    Retry     `yaml:"retry"`
	Sidecast []string  `yaml:"sidecast_archetypes"`
	Defect   Defection `yaml:"defection"`
}

// Bands holds the inclusive lower bounds of the expedition outcome bands.
type Bands struct {
	Partial  int `yaml:"partial"`
	Solid    int `yaml:"solid"`
	Landmark int `yaml:"landmark"`
}

// Failure holds the depth-gated failure tables. Weights are consumed by the
// deterministic RNG's weighted draw, so row order is part of the contract.
type Failure struct {
	DeepPrepThreshold int          `yaml:"deep_prep_threshold"`
	Shallow           []TableEntry `yaml:"shallow"`
	Deep              []TableEntry `yaml:"deep"`
}

// TableEntry is one weighted row of a failure table.
type TableEntry struct {
	Result string `yaml:"result"`
	Weight int    `yaml:"weight"`
}

// Retry bounds order handler retries before an order is marked failed.
type Retry struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// Defection holds the defection model constants.
type Defection struct {
	LoyaltyWeight   float64 `yaml:"loyalty_weight"`
	IntegrityWeight float64 `yaml:"integrity_weight"`
	Steepness       float64 `yaml:"steepness"`
	Midpoint        float64 `yaml:"midpoint"`
}

// Defaults returns the shipped tuning values.
func Defaults() Tuning {
	return Tuning{
		YearsPerTick:         1,
		ReputationMin:        -50,
		ReputationMax:        50,
		InfluenceCapBase:     10,
		InfluenceCapPerPoint: 1,
		FeelingDecayRate:     0.98,
		RosterMin:            20,
		RosterMax:            30,
		OfferCooldownYears:   2,
		PatronDebt:           4,
		Bands: Bands{
			Partial:  40,
			Solid:    65,
			Landmark: 85,
		},
		Failure: Failure{
			DeepPrepThreshold: 15,
			Shallow: []TableEntry{
				{Result: "nothing", Weight: 60},
				{Result: "minor_clue", Weight: 40},
			},
			Deep: []TableEntry{
				{Result: "nothing", Weight: 15},
				{Result: "minor_clue", Weight: 30},
				{Result: "adjacent_discovery", Weight: 35},
				{Result: "major_sideways_unlock", Weight: 20},
			},
		},
		Retry: Retry{MaxAttempts: 3},
		Sidecast: []string{
			"field_assistant",
			"rival_postdoc",
			"itinerant_cartographer",
			"archivist",
		},
		Defect: Defection{
			LoyaltyWeight:   0.6,
			IntegrityWeight: 0.4,
			Steepness:       6,
			Midpoint:        0.5,
		},
	}
}

// Load reads tuning values from path, starting from Defaults so omitted keys
// keep their shipped values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Validate rejects tuning values the engine cannot run with.
func (t Tuning) Validate() error {
	if t.FeelingDecayRate <= 0 || t.FeelingDecayRate >= 1 {
		return fmt.Errorf("feeling_decay_rate must be in (0,1), got %v", t.FeelingDecayRate)
	}
	if t.RosterMin <= 0 || t.RosterMax < t.RosterMin {
		return fmt.Errorf("roster bounds invalid: [%d,%d]", t.RosterMin, t.RosterMax)
	}
	if t.ReputationMax <= t.ReputationMin {
		return fmt.Errorf("reputation bounds invalid: [%d,%d]", t.ReputationMin, t.ReputationMax)
	}
	if !(t.Bands.Partial < t.Bands.Solid && t.Bands.Solid < t.Bands.Landmark) {
		return fmt.Errorf("outcome bands must be strictly increasing: %d/%d/%d",
			t.Bands.Partial, t.Bands.Solid, t.Bands.Landmark)
	}
	if len(t.Failure.Shallow) == 0 || len(t.Failure.Deep) == 0 {
		return fmt.Errorf("failure tables must not be empty")
	}
	if t.OfferCooldownYears < 0 {
		return fmt.Errorf("offer_cooldown_years must not be negative, got %d", t.OfferCooldownYears)
	}
	if t.PatronDebt < 0 {
		return fmt.Errorf("patron_debt must not be negative, got %d", t.PatronDebt)
	}
	if t.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be positive, got %d", t.Retry.MaxAttempts)
	}
	if len(t.Sidecast) == 0 {
		return fmt.Errorf("sidecast archetypes must not be empty")
	}
	return nil
}
