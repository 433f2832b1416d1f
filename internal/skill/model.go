// Package skill defines the governed content model: skills, their
// templates, field-level diffs, and validation.
package skill

import (
	"time"
)

// Type is the behavioral type of a skill.
type Type string

// Type constants.
const (
	TypeActive    Type = "active"
	TypePassive   Type = "passive"
	TypeToggle    Type = "toggle"
	TypeChanneled Type = "channeled"
	TypeInstant   Type = "instant"
	TypeCharged   Type = "charged"
)

// ValidTypes lists every accepted behavioral type.
var ValidTypes = []Type{TypeActive, TypePassive, TypeToggle, TypeChanneled, TypeInstant, TypeCharged}

// Category is the broad damage/support classification of a skill.
type Category string

// Category constants.
const (
	CategoryCombat  Category = "combat"
	CategorySupport Category = "support"
	CategoryHealing Category = "healing"
	CategoryUtility Category = "utility"
)

// Element is the elemental affinity of a skill.
type Element string

// Element constants.
const (
	ElementNone     Element = "none"
	ElementPhysical Element = "physical"
	ElementArcane   Element = "arcane"
	ElementFire     Element = "fire"
	ElementFrost    Element = "frost"
	ElementNature   Element = "nature"
	ElementShadow   Element = "shadow"
)

// TargetShape describes the targeting geometry of a skill.
type TargetShape string

// TargetShape constants.
const (
	ShapeSingle TargetShape = "single"
	ShapeArea   TargetShape = "area"
	ShapeCone   TargetShape = "cone"
	ShapeLine   TargetShape = "line"
	ShapeSelf   TargetShape = "self"
)

// EffectKind is one quantified outcome category a skill produces.
type EffectKind string

// EffectKind constants.
const (
	EffectDamage  EffectKind = "damage"
	EffectHeal    EffectKind = "heal"
	EffectBuff    EffectKind = "buff"
	EffectDebuff  EffectKind = "debuff"
	EffectUtility EffectKind = "utility"
)

// Effect is one quantified outcome a skill produces.
type Effect struct {
	Kind     EffectKind `json:"kind" yaml:"kind"`
	Target   string     `json:"target" yaml:"target"` // "enemy", "ally", "self"
	Value    float64    `json:"value" yaml:"value"`
	Duration float64    `json:"duration,omitempty" yaml:"duration,omitempty"`
	Stat     string     `json:"stat,omitempty" yaml:"stat,omitempty"` // affected stat for buff/debuff
}

// RequirementKind is the category of a gating condition.
type RequirementKind string

// RequirementKind constants.
const (
	RequireLevel RequirementKind = "level"
	RequireSkill RequirementKind = "skill"
	RequireStat  RequirementKind = "stat"
	RequireItem  RequirementKind = "item"
	RequireQuest RequirementKind = "quest"
)

// Requirement is a gating condition a player must satisfy to use or
// unlock a skill.
type Requirement struct {
	Kind   RequirementKind `json:"kind" yaml:"kind"`
	Target string          `json:"target,omitempty" yaml:"target,omitempty"` // skill/item/quest/stat id
	Value  int             `json:"value" yaml:"value"`                       // threshold; unused for item/quest
}

// Cost is the resource price of activating a skill.
type Cost struct {
	Mana   float64 `json:"mana" yaml:"mana"`
	Health float64 `json:"health" yaml:"health"`
}

// Total returns the combined resource cost.
func (c Cost) Total() float64 { return c.Mana + c.Health }

// ScalingCurve is the shape of a scaling factor's growth.
type ScalingCurve string

// ScalingCurve constants.
const (
	CurveLinear      ScalingCurve = "linear"
	CurveQuadratic   ScalingCurve = "quadratic"
	CurveLogarithmic ScalingCurve = "logarithmic"
	CurveExponential ScalingCurve = "exponential"
)

// ScalingFactor describes how a skill's output grows with a stat.
type ScalingFactor struct {
	Stat       string       `json:"stat" yaml:"stat"`
	Multiplier float64      `json:"multiplier" yaml:"multiplier"`
	Curve      ScalingCurve `json:"curve" yaml:"curve"`
}

// Skill is the unit of governed content: a character ability definition.
//
// Invariant: 1 <= Level <= MaxLevel; Cooldown, CastTime, and costs are
// non-negative; ID is immutable once created. Skills are never
// hard-deleted: a governed delete sets Active to false.
type Skill struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Type         Type            `json:"type"`
	Category     Category        `json:"category"`
	Element      Element         `json:"element"`
	TargetShape  TargetShape     `json:"target_shape"`
	Tree         string          `json:"tree,omitempty"` // skill tree grouping
	Level        int             `json:"level"`
	MaxLevel     int             `json:"max_level"`
	Cost         Cost            `json:"cost"`
	Cooldown     float64         `json:"cooldown"`
	CastTime     float64         `json:"cast_time"`
	Range        float64         `json:"range"`
	Effects      []Effect        `json:"effects"`
	Requirements []Requirement   `json:"requirements"`
	Scaling      []ScalingFactor `json:"scaling,omitempty"`
	Active       bool            `json:"active"`
	Tags         []string        `json:"tags,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TotalDamage sums the value of every damage effect.
func (s *Skill) TotalDamage() float64 {
	var total float64
	for _, e := range s.Effects {
		if e.Kind == EffectDamage {
			total += e.Value
		}
	}
	return total
}

// TotalHealing sums the value of every heal effect.
func (s *Skill) TotalHealing() float64 {
	var total float64
	for _, e := range s.Effects {
		if e.Kind == EffectHeal {
			total += e.Value
		}
	}
	return total
}

// RequiresSkill reports whether any requirement references the given
// skill id as an unlock dependency.
func (s *Skill) RequiresSkill(id string) bool {
	for _, r := range s.Requirements {
		if r.Kind == RequireSkill && r.Target == id {
			return true
		}
	}
	return false
}

// HasTag reports whether the skill carries the given free-form tag.
func (s *Skill) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Registry accessors hand out clones so
// callers can never mutate the authoritative working set directly.
func (s *Skill) Clone() *Skill {
	out := *s
	// Empty slices stay non-nil.
	out.Effects = append([]Effect{}, s.Effects...)
	out.Requirements = append([]Requirement{}, s.Requirements...)
	out.Scaling = append([]ScalingFactor{}, s.Scaling...)
	out.Tags = append([]string{}, s.Tags...)
	return &out
}
