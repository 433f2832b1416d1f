package skill

import "time"

// System defaults applied when neither the caller nor a template
// supplies a value.
const (
	DefaultLevel    = 1
	DefaultMaxLevel = 10
)

// DefaultCategory is the category assigned when none is given.
const DefaultCategory = CategoryCombat

// Draft is a partial skill: every field is optional. Drafts are the
// input to create and update; nil fields mean "no opinion", so a
// caller's explicit values can be distinguished from absences when
// merging against templates and defaults, and so updates touch only
// the fields the caller named.
type Draft struct {
	ID           *string         `json:"id,omitempty"`
	Name         *string         `json:"name,omitempty"`
	Description  *string         `json:"description,omitempty"`
	Type         *Type           `json:"type,omitempty"`
	Category     *Category       `json:"category,omitempty"`
	Element      *Element        `json:"element,omitempty"`
	TargetShape  *TargetShape    `json:"target_shape,omitempty"`
	Tree         *string         `json:"tree,omitempty"`
	Level        *int            `json:"level,omitempty"`
	MaxLevel     *int            `json:"max_level,omitempty"`
	Cost         *Cost           `json:"cost,omitempty"`
	Cooldown     *float64        `json:"cooldown,omitempty"`
	CastTime     *float64        `json:"cast_time,omitempty"`
	Range        *float64        `json:"range,omitempty"`
	Effects      []Effect        `json:"effects,omitempty"`
	Requirements []Requirement   `json:"requirements,omitempty"`
	Scaling      []ScalingFactor `json:"scaling,omitempty"`
	Active       *bool           `json:"active,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
}

// IsEmpty reports whether the draft names no fields at all.
func (d Draft) IsEmpty() bool {
	return d.ID == nil && d.Name == nil && d.Description == nil && d.Type == nil &&
		d.Category == nil && d.Element == nil && d.TargetShape == nil && d.Tree == nil &&
		d.Level == nil && d.MaxLevel == nil && d.Cost == nil && d.Cooldown == nil &&
		d.CastTime == nil && d.Range == nil && d.Effects == nil && d.Requirements == nil &&
		d.Scaling == nil && d.Active == nil && d.Tags == nil
}

// Build materializes a fully-defaulted Skill from a draft and an
// optional template. Merge priority: explicit draft fields, then
// template-derived base fields, then system defaults. The result never
// has absent fields, so validation and diffing downstream never branch
// on missing values.
//
// Precondition: tmpl may be nil (no template).
// Postcondition: Returns a Skill with every field populated; slices are
// non-nil copies.
func Build(d Draft, tmpl *Template, now time.Time) *Skill {
	s := &Skill{
		Type:         TypeActive,
		Category:     DefaultCategory,
		Element:      ElementNone,
		TargetShape:  ShapeSingle,
		Level:        DefaultLevel,
		MaxLevel:     DefaultMaxLevel,
		Effects:      []Effect{},
		Requirements: []Requirement{},
		Scaling:      []ScalingFactor{},
		Tags:         []string{},
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if tmpl != nil {
		if tmpl.Type != "" {
			s.Type = tmpl.Type
		}
		if tmpl.Category != "" {
			s.Category = tmpl.Category
		}
		if tmpl.Element != "" {
			s.Element = tmpl.Element
		}
		if tmpl.TargetShape != "" {
			s.TargetShape = tmpl.TargetShape
		}
		if tmpl.Tree != "" {
			s.Tree = tmpl.Tree
		}
		if tmpl.MaxLevel > 0 {
			s.MaxLevel = tmpl.MaxLevel
		}
		if tmpl.Cost != nil {
			s.Cost = *tmpl.Cost
		}
		if tmpl.Cooldown > 0 {
			s.Cooldown = tmpl.Cooldown
		}
		if tmpl.CastTime > 0 {
			s.CastTime = tmpl.CastTime
		}
		if tmpl.Range > 0 {
			s.Range = tmpl.Range
		}
		s.Effects = append([]Effect{}, tmpl.BaseEffects...)
		s.Requirements = append([]Requirement{}, tmpl.Requirements...)
		s.Scaling = append([]ScalingFactor{}, tmpl.Scaling...)
		s.Tags = append([]string{}, tmpl.Tags...)
	}

	ApplyDraft(s, d)
	return s
}

// ApplyDraft overlays the draft's named fields onto s, leaving every
// other field untouched. Update flows use this against a clone of the
// current skill to produce the prospective value before diffing.
//
// Precondition: s must not be nil. The draft's ID, if set, is only
// honored when s.ID is empty: skill ids are immutable once created.
func ApplyDraft(s *Skill, d Draft) {
	if d.ID != nil && s.ID == "" {
		s.ID = *d.ID
	}
	if d.Name != nil {
		s.Name = *d.Name
	}
	if d.Description != nil {
		s.Description = *d.Description
	}
	if d.Type != nil {
		s.Type = *d.Type
	}
	if d.Category != nil {
		s.Category = *d.Category
	}
	if d.Element != nil {
		s.Element = *d.Element
	}
	if d.TargetShape != nil {
		s.TargetShape = *d.TargetShape
	}
	if d.Tree != nil {
		s.Tree = *d.Tree
	}
	if d.Level != nil {
		s.Level = *d.Level
	}
	if d.MaxLevel != nil {
		s.MaxLevel = *d.MaxLevel
	}
	if d.Cost != nil {
		s.Cost = *d.Cost
	}
	if d.Cooldown != nil {
		s.Cooldown = *d.Cooldown
	}
	if d.CastTime != nil {
		s.CastTime = *d.CastTime
	}
	if d.Range != nil {
		s.Range = *d.Range
	}
	if d.Effects != nil {
		s.Effects = append([]Effect{}, d.Effects...)
	}
	if d.Requirements != nil {
		s.Requirements = append([]Requirement{}, d.Requirements...)
	}
	if d.Scaling != nil {
		s.Scaling = append([]ScalingFactor{}, d.Scaling...)
	}
	if d.Active != nil {
		s.Active = *d.Active
	}
	if d.Tags != nil {
		s.Tags = append([]string{}, d.Tags...)
	}
}

// Helpers for building drafts in callers and tests.

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
