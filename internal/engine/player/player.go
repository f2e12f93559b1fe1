// Package player holds the player projection: reputation, the influence
// vector, named cooldowns, and outstanding debts.
//
// Players are created on their first action and never deleted.
package player

import (
	"strings"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/influence"
)

// Player is the projected state for one player.
type Player struct {
	ID         string
	Reputation int
	Influence  influence.Vector
	// Cooldowns maps a cooldown name to the in-game year it expires.
	Cooldowns map[string]int
	// Debts maps a commitment key to the owed amount.
	Debts     map[string]int
	CreatedAt time.Time
}

// New returns a player with zeroed resources.
func New(playerID string, createdAt time.Time) Player {
	return Player{
		ID:        playerID,
		Influence: influence.NewVector(),
		Cooldowns: make(map[string]int),
		Debts:     make(map[string]int),
		CreatedAt: createdAt.UTC(),
	}
}

// Bounds clamps reputation into the configured range.
type Bounds struct {
	Min int
	Max int
}

// AdjustReputation applies a delta clamped to bounds and returns the applied
// amount, which may be smaller than requested at the range edges.
func (p *Player) AdjustReputation(delta int, bounds Bounds) int {
	before := p.Reputation
	next := before + delta
	if next > bounds.Max {
		next = bounds.Max
	}
	if next < bounds.Min {
		next = bounds.Min
	}
	p.Reputation = next
	return next - before
}

// SetCooldown records a named cooldown expiring at the given year.
func (p *Player) SetCooldown(name string, expiresYear int) {
	if p.Cooldowns == nil {
		p.Cooldowns = make(map[string]int)
	}
	p.Cooldowns[name] = expiresYear
}

// CooldownActive reports whether the named cooldown is still in force.
func (p *Player) CooldownActive(name string, currentYear int) bool {
	expires, ok := p.Cooldowns[name]
	return ok && expires > currentYear
}

// DecayCooldowns drops every cooldown that has expired by currentYear.
func (p *Player) DecayCooldowns(currentYear int) int {
	dropped := 0
	for name, expires := range p.Cooldowns {
		if expires <= currentYear {
			delete(p.Cooldowns, name)
			dropped++
		}
	}
	return dropped
}

const patronDebtPrefix = "patron:"

// PoachCooldownKey names the cooldown a declined offer leaves on the suitor.
func PoachCooldownKey(scholarID string) string {
	return "poach:" + scholarID
}

// PatronDebtKey names the debt one patron-funded expedition records.
func PatronDebtKey(expeditionID string) string {
	return patronDebtPrefix + expeditionID
}

// OwesPatron reports whether any patron commitment is still unpaid.
func (p *Player) OwesPatron() bool {
	for key := range p.Debts {
		if strings.HasPrefix(key, patronDebtPrefix) {
			return true
		}
	}
	return false
}

// AddDebt records an owed commitment.
func (p *Player) AddDebt(key string, amount int) {
	if p.Debts == nil {
		p.Debts = make(map[string]int)
	}
	p.Debts[key] += amount
}

// SettleDebt reduces a debt, removing it once fully paid. It returns the
// amount actually settled.
func (p *Player) SettleDebt(key string, amount int) int {
	owed, ok := p.Debts[key]
	if !ok || amount <= 0 {
		return 0
	}
	settled := amount
	if settled > owed {
		settled = owed
	}
	remaining := owed - settled
	if remaining == 0 {
		delete(p.Debts, key)
	} else {
		p.Debts[key] = remaining
	}
	return settled
}
