// Package tactics implements the stochastic tactical board game model:
// board and unit records, the command library, game state, and the
// probability kernels that drive combat resolution. Every type here is
// immutable; all transitions produce new values.
package tactics

// Team identifies a side. The game supports exactly two.
type Team int

const (
	TeamA Team = 0
	TeamB Team = 1
)

// Other returns the opposing team.
func (t Team) Other() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

// RangedWeapon describes a unit's shooting profile.
type RangedWeapon struct {
	Range    int
	Strength int
	AP       int
	Damage   int
	Shots    int
	IsRapid  bool
	IsHeavy  bool
}

// MeleeWeapon describes a unit's close-combat profile.
type MeleeWeapon struct {
	Strength int
	AP       int
	Damage   int
}

// HasWeapon reports whether the ranged weapon is usable (zero value means none).
func (w RangedWeapon) HasWeapon() bool { return w.Shots > 0 }

// HasWeapon reports whether the melee weapon is usable (zero value means none).
func (w MeleeWeapon) HasWeapon() bool { return w.Strength > 0 }

// Unit is an immutable record of a squad occupying one board cell.
// State transitions (damage, flag changes) always produce a new Unit;
// nothing here is ever mutated in place.
type Unit struct {
	Name string

	Count    int // model count, derived from TotalW/Wounds
	Movement int
	WS       int // weapon skill (melee to-hit)
	BS       int // ballistic skill (ranged to-hit)
	T        int // toughness
	Wounds   int // wounds per model
	TotalW   int // total remaining wounds across the unit

	Attacks int
	Ld      int // leadership
	Sv      int // armor save (lower is better, 7 = none)
	Inv     int // invulnerable save (7 = none)

	Ranged RangedWeapon
	Melee  MeleeWeapon

	// Per-phase/turn flags, cleared by EndPhase.
	Moved                bool
	Fired                bool
	AttemptedCharge      bool
	SuccessfulCharge     bool
	Fought               bool
	MovedOutOfCombat     bool
	ModelsLostThisPhase  int
}

// Alive reports whether the unit still has wounds remaining.
func (u Unit) Alive() bool { return u.TotalW > 0 }

// WithModelCount returns a copy of u with Count recomputed from TotalW,
// per the invariant total_w > 0 ⇒ count = ceil(total_w / wounds).
func (u Unit) WithModelCount() Unit {
	if u.TotalW <= 0 {
		u.Count = 0
		return u
	}
	w := u.Wounds
	if w <= 0 {
		w = 1
	}
	u.Count = (u.TotalW + w - 1) / w
	return u
}

// ApplyDamage returns a copy of u with total wounds reduced by dmg
// (clamped at zero) and Count recomputed.
func (u Unit) ApplyDamage(dmg int) Unit {
	u.TotalW -= dmg
	if u.TotalW < 0 {
		u.TotalW = 0
	}
	return u.WithModelCount()
}

// RemoveModels returns a copy of u with n models removed (each carrying
// its full per-model wounds), used by morale resolution.
func (u Unit) RemoveModels(n int) Unit {
	if n <= 0 {
		return u
	}
	w := u.Wounds
	if w <= 0 {
		w = 1
	}
	u.TotalW -= n * w
	if u.TotalW < 0 {
		u.TotalW = 0
	}
	return u.WithModelCount()
}

// ClearPhaseFlags returns a copy of u with all per-phase/turn flags reset,
// as performed by EndPhase.
func (u Unit) ClearPhaseFlags() Unit {
	u.Moved = false
	u.Fired = false
	u.AttemptedCharge = false
	u.SuccessfulCharge = false
	u.Fought = false
	u.MovedOutOfCombat = false
	u.ModelsLostThisPhase = 0
	return u
}

// UnitTemplate is the roster entry loaded from the unit stats CSV
// (spec §6); Placements instantiate Units from templates by name.
type UnitTemplate struct {
	Name     string
	Count    int
	Movement int
	WS       int
	BS       int
	T        int
	Wounds   int
	TotalW   int
	Attacks  int
	Ld       int
	Sv       int
	Inv      int
	Ranged   RangedWeapon
	Melee    MeleeWeapon
}

// Instantiate builds a fresh Unit from the template.
func (t UnitTemplate) Instantiate() Unit {
	u := Unit{
		Name:     t.Name,
		Count:    t.Count,
		Movement: t.Movement,
		WS:       t.WS,
		BS:       t.BS,
		T:        t.T,
		Wounds:   t.Wounds,
		TotalW:   t.TotalW,
		Attacks:  t.Attacks,
		Ld:       t.Ld,
		Sv:       t.Sv,
		Inv:      t.Inv,
		Ranged:   t.Ranged,
		Melee:    t.Melee,
	}
	return u.WithModelCount()
}

// Placement assigns a roster unit to a starting cell for a team, as
// loaded from the placement CSV (spec §6).
type Placement struct {
	UnitName string
	Team     Team
	X, Y     int
}
