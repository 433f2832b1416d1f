package skill

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Field names one mutable Skill field. ID, CreatedAt, and UpdatedAt are
// deliberately absent: identity is immutable and timestamps are not
// governed content.
type Field string

// Field constants.
const (
	FieldName         Field = "name"
	FieldDescription  Field = "description"
	FieldType         Field = "type"
	FieldCategory     Field = "category"
	FieldElement      Field = "element"
	FieldTargetShape  Field = "target_shape"
	FieldTree         Field = "tree"
	FieldLevel        Field = "level"
	FieldMaxLevel     Field = "max_level"
	FieldCost         Field = "cost"
	FieldCooldown     Field = "cooldown"
	FieldCastTime     Field = "cast_time"
	FieldRange        Field = "range"
	FieldEffects      Field = "effects"
	FieldRequirements Field = "requirements"
	FieldScaling      Field = "scaling"
	FieldActive       Field = "active"
	FieldTags         Field = "tags"
)

// FieldChange is one strongly-typed old/new pair for a single mutable
// Skill field. The concrete variants below enumerate the complete set;
// there is no dynamic field access anywhere in apply or invert.
type FieldChange interface {
	// Field names the changed field.
	Field() Field
	// Apply writes the new value into s.
	Apply(s *Skill)
	// Invert returns the exact inverse change (old and new swapped).
	Invert() FieldChange
	// Describe renders a human-readable "field: old -> new" line for
	// audit display.
	Describe() string
}

// StringChange is a FieldChange over a string-valued field.
type StringChange struct {
	Name     Field
	Old, New string
}

// Field implements FieldChange.
func (c StringChange) Field() Field { return c.Name }

// Apply implements FieldChange.
func (c StringChange) Apply(s *Skill) {
	switch c.Name {
	case FieldName:
		s.Name = c.New
	case FieldDescription:
		s.Description = c.New
	case FieldType:
		s.Type = Type(c.New)
	case FieldCategory:
		s.Category = Category(c.New)
	case FieldElement:
		s.Element = Element(c.New)
	case FieldTargetShape:
		s.TargetShape = TargetShape(c.New)
	case FieldTree:
		s.Tree = c.New
	}
}

// Invert implements FieldChange.
func (c StringChange) Invert() FieldChange { return StringChange{Name: c.Name, Old: c.New, New: c.Old} }

// Describe implements FieldChange.
func (c StringChange) Describe() string { return fmt.Sprintf("%s: %q -> %q", c.Name, c.Old, c.New) }

// IntChange is a FieldChange over an int-valued field.
type IntChange struct {
	Name     Field
	Old, New int
}

// Field implements FieldChange.
func (c IntChange) Field() Field { return c.Name }

// Apply implements FieldChange.
func (c IntChange) Apply(s *Skill) {
	switch c.Name {
	case FieldLevel:
		s.Level = c.New
	case FieldMaxLevel:
		s.MaxLevel = c.New
	}
}

// Invert implements FieldChange.
func (c IntChange) Invert() FieldChange { return IntChange{Name: c.Name, Old: c.New, New: c.Old} }

// Describe implements FieldChange.
func (c IntChange) Describe() string { return fmt.Sprintf("%s: %d -> %d", c.Name, c.Old, c.New) }

// FloatChange is a FieldChange over a float-valued field.
type FloatChange struct {
	Name     Field
	Old, New float64
}

// Field implements FieldChange.
func (c FloatChange) Field() Field { return c.Name }

// Apply implements FieldChange.
func (c FloatChange) Apply(s *Skill) {
	switch c.Name {
	case FieldCooldown:
		s.Cooldown = c.New
	case FieldCastTime:
		s.CastTime = c.New
	case FieldRange:
		s.Range = c.New
	}
}

// Invert implements FieldChange.
func (c FloatChange) Invert() FieldChange { return FloatChange{Name: c.Name, Old: c.New, New: c.Old} }

// Describe implements FieldChange.
func (c FloatChange) Describe() string { return fmt.Sprintf("%s: %g -> %g", c.Name, c.Old, c.New) }

// BoolChange is a FieldChange over the activation flag.
type BoolChange struct {
	Name     Field
	Old, New bool
}

// Field implements FieldChange.
func (c BoolChange) Field() Field { return c.Name }

// Apply implements FieldChange.
func (c BoolChange) Apply(s *Skill) {
	if c.Name == FieldActive {
		s.Active = c.New
	}
}

// Invert implements FieldChange.
func (c BoolChange) Invert() FieldChange { return BoolChange{Name: c.Name, Old: c.New, New: c.Old} }

// Describe implements FieldChange.
func (c BoolChange) Describe() string { return fmt.Sprintf("%s: %t -> %t", c.Name, c.Old, c.New) }

// CostChange is a FieldChange over the resource cost pair.
type CostChange struct {
	Old, New Cost
}

// Field implements FieldChange.
func (c CostChange) Field() Field { return FieldCost }

// Apply implements FieldChange.
func (c CostChange) Apply(s *Skill) { s.Cost = c.New }

// Invert implements FieldChange.
func (c CostChange) Invert() FieldChange { return CostChange{Old: c.New, New: c.Old} }

// Describe implements FieldChange.
func (c CostChange) Describe() string {
	return fmt.Sprintf("cost: {mana %g, health %g} -> {mana %g, health %g}",
		c.Old.Mana, c.Old.Health, c.New.Mana, c.New.Health)
}

// EffectsChange is a FieldChange over the ordered effect list.
type EffectsChange struct {
	Old, New []Effect
}

// Field implements FieldChange.
func (c EffectsChange) Field() Field { return FieldEffects }

// Apply implements FieldChange.
func (c EffectsChange) Apply(s *Skill) { s.Effects = append([]Effect{}, c.New...) }

// Invert implements FieldChange.
func (c EffectsChange) Invert() FieldChange { return EffectsChange{Old: c.New, New: c.Old} }

// Describe implements FieldChange.
func (c EffectsChange) Describe() string {
	return fmt.Sprintf("effects: %d entries -> %d entries", len(c.Old), len(c.New))
}

// RequirementsChange is a FieldChange over the ordered requirement list.
type RequirementsChange struct {
	Old, New []Requirement
}

// Field implements FieldChange.
func (c RequirementsChange) Field() Field { return FieldRequirements }

// Apply implements FieldChange.
func (c RequirementsChange) Apply(s *Skill) { s.Requirements = append([]Requirement{}, c.New...) }

// Invert implements FieldChange.
func (c RequirementsChange) Invert() FieldChange { return RequirementsChange{Old: c.New, New: c.Old} }

// Describe implements FieldChange.
func (c RequirementsChange) Describe() string {
	return fmt.Sprintf("requirements: %d entries -> %d entries", len(c.Old), len(c.New))
}

// ScalingChange is a FieldChange over the scaling factor list.
type ScalingChange struct {
	Old, New []ScalingFactor
}

// Field implements FieldChange.
func (c ScalingChange) Field() Field { return FieldScaling }

// Apply implements FieldChange.
func (c ScalingChange) Apply(s *Skill) { s.Scaling = append([]ScalingFactor{}, c.New...) }

// Invert implements FieldChange.
func (c ScalingChange) Invert() FieldChange { return ScalingChange{Old: c.New, New: c.Old} }

// Describe implements FieldChange.
func (c ScalingChange) Describe() string {
	return fmt.Sprintf("scaling: %d factors -> %d factors", len(c.Old), len(c.New))
}

// TagsChange is a FieldChange over the free-form tag list.
type TagsChange struct {
	Old, New []string
}

// Field implements FieldChange.
func (c TagsChange) Field() Field { return FieldTags }

// Apply implements FieldChange.
func (c TagsChange) Apply(s *Skill) { s.Tags = append([]string{}, c.New...) }

// Invert implements FieldChange.
func (c TagsChange) Invert() FieldChange { return TagsChange{Old: c.New, New: c.Old} }

// Describe implements FieldChange.
func (c TagsChange) Describe() string {
	return fmt.Sprintf("tags: %v -> %v", c.Old, c.New)
}

// Diff computes the ordered field-level differences between old and new.
// Update flows run this before anything else: an empty diff means the
// mutation is a no-op and must be refused.
//
// Precondition: old and new must not be nil and must refer to the same
// skill id.
// Postcondition: Returns a non-nil slice; applying every change to a
// clone of old yields a skill equal to new (ignoring timestamps).
func Diff(oldS, newS *Skill) []FieldChange {
	changes := []FieldChange{}

	if oldS.Name != newS.Name {
		changes = append(changes, StringChange{Name: FieldName, Old: oldS.Name, New: newS.Name})
	}
	if oldS.Description != newS.Description {
		changes = append(changes, StringChange{Name: FieldDescription, Old: oldS.Description, New: newS.Description})
	}
	if oldS.Type != newS.Type {
		changes = append(changes, StringChange{Name: FieldType, Old: string(oldS.Type), New: string(newS.Type)})
	}
	if oldS.Category != newS.Category {
		changes = append(changes, StringChange{Name: FieldCategory, Old: string(oldS.Category), New: string(newS.Category)})
	}
	if oldS.Element != newS.Element {
		changes = append(changes, StringChange{Name: FieldElement, Old: string(oldS.Element), New: string(newS.Element)})
	}
	if oldS.TargetShape != newS.TargetShape {
		changes = append(changes, StringChange{Name: FieldTargetShape, Old: string(oldS.TargetShape), New: string(newS.TargetShape)})
	}
	if oldS.Tree != newS.Tree {
		changes = append(changes, StringChange{Name: FieldTree, Old: oldS.Tree, New: newS.Tree})
	}
	if oldS.Level != newS.Level {
		changes = append(changes, IntChange{Name: FieldLevel, Old: oldS.Level, New: newS.Level})
	}
	if oldS.MaxLevel != newS.MaxLevel {
		changes = append(changes, IntChange{Name: FieldMaxLevel, Old: oldS.MaxLevel, New: newS.MaxLevel})
	}
	if oldS.Cost != newS.Cost {
		changes = append(changes, CostChange{Old: oldS.Cost, New: newS.Cost})
	}
	if oldS.Cooldown != newS.Cooldown {
		changes = append(changes, FloatChange{Name: FieldCooldown, Old: oldS.Cooldown, New: newS.Cooldown})
	}
	if oldS.CastTime != newS.CastTime {
		changes = append(changes, FloatChange{Name: FieldCastTime, Old: oldS.CastTime, New: newS.CastTime})
	}
	if oldS.Range != newS.Range {
		changes = append(changes, FloatChange{Name: FieldRange, Old: oldS.Range, New: newS.Range})
	}
	if !reflect.DeepEqual(oldS.Effects, newS.Effects) {
		changes = append(changes, EffectsChange{
			Old: append([]Effect{}, oldS.Effects...),
			New: append([]Effect{}, newS.Effects...),
		})
	}
	if !reflect.DeepEqual(oldS.Requirements, newS.Requirements) {
		changes = append(changes, RequirementsChange{
			Old: append([]Requirement{}, oldS.Requirements...),
			New: append([]Requirement{}, newS.Requirements...),
		})
	}
	if !reflect.DeepEqual(oldS.Scaling, newS.Scaling) {
		changes = append(changes, ScalingChange{
			Old: append([]ScalingFactor{}, oldS.Scaling...),
			New: append([]ScalingFactor{}, newS.Scaling...),
		})
	}
	if oldS.Active != newS.Active {
		changes = append(changes, BoolChange{Name: FieldActive, Old: oldS.Active, New: newS.Active})
	}
	if !reflect.DeepEqual(oldS.Tags, newS.Tags) {
		changes = append(changes, TagsChange{
			Old: append([]string{}, oldS.Tags...),
			New: append([]string{}, newS.Tags...),
		})
	}

	return changes
}

// ApplyChanges applies every change to s in order.
//
// Precondition: s must not be nil.
func ApplyChanges(s *Skill, changes []FieldChange) {
	for _, c := range changes {
		c.Apply(s)
	}
}

// InvertChanges returns the exact inverse diff: each change inverted,
// in reverse order. Applying it after the original diff restores the
// pre-change field values.
func InvertChanges(changes []FieldChange) []FieldChange {
	out := make([]FieldChange, 0, len(changes))
	for i := len(changes) - 1; i >= 0; i-- {
		out = append(out, changes[i].Invert())
	}
	return out
}

// changeEnvelope is the JSON wire form of one FieldChange: a kind tag
// plus raw old/new payloads. Used by the change-log archive.
type changeEnvelope struct {
	Field Field           `json:"field"`
	Kind  string          `json:"kind"`
	Old   json.RawMessage `json:"old"`
	New   json.RawMessage `json:"new"`
}

// MarshalChanges encodes a diff as JSON for archival.
//
// Postcondition: Returns a JSON array; UnmarshalChanges round-trips it.
func MarshalChanges(changes []FieldChange) ([]byte, error) {
	envs := make([]changeEnvelope, 0, len(changes))
	for _, c := range changes {
		env := changeEnvelope{Field: c.Field()}
		var oldV, newV any
		switch v := c.(type) {
		case StringChange:
			env.Kind, oldV, newV = "string", v.Old, v.New
		case IntChange:
			env.Kind, oldV, newV = "int", v.Old, v.New
		case FloatChange:
			env.Kind, oldV, newV = "float", v.Old, v.New
		case BoolChange:
			env.Kind, oldV, newV = "bool", v.Old, v.New
		case CostChange:
			env.Kind, oldV, newV = "cost", v.Old, v.New
		case EffectsChange:
			env.Kind, oldV, newV = "effects", v.Old, v.New
		case RequirementsChange:
			env.Kind, oldV, newV = "requirements", v.Old, v.New
		case ScalingChange:
			env.Kind, oldV, newV = "scaling", v.Old, v.New
		case TagsChange:
			env.Kind, oldV, newV = "tags", v.Old, v.New
		default:
			return nil, fmt.Errorf("unknown field change type %T", c)
		}
		var err error
		if env.Old, err = json.Marshal(oldV); err != nil {
			return nil, fmt.Errorf("encoding old value for %s: %w", env.Field, err)
		}
		if env.New, err = json.Marshal(newV); err != nil {
			return nil, fmt.Errorf("encoding new value for %s: %w", env.Field, err)
		}
		envs = append(envs, env)
	}
	return json.Marshal(envs)
}

// UnmarshalChanges decodes a diff previously encoded by MarshalChanges.
func UnmarshalChanges(data []byte) ([]FieldChange, error) {
	var envs []changeEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("decoding change list: %w", err)
	}

	out := make([]FieldChange, 0, len(envs))
	for _, env := range envs {
		c, err := decodeEnvelope(env)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeEnvelope(env changeEnvelope) (FieldChange, error) {
	switch env.Kind {
	case "string":
		var o, n string
		if err := decodePair(env, &o, &n); err != nil {
			return nil, err
		}
		return StringChange{Name: env.Field, Old: o, New: n}, nil
	case "int":
		var o, n int
		if err := decodePair(env, &o, &n); err != nil {
			return nil, err
		}
		return IntChange{Name: env.Field, Old: o, New: n}, nil
	case "float":
		var o, n float64
		if err := decodePair(env, &o, &n); err != nil {
			return nil, err
		}
		return FloatChange{Name: env.Field, Old: o, New: n}, nil
	case "bool":
		var o, n bool
		if err := decodePair(env, &o, &n); err != nil {
			return nil, err
		}
		return BoolChange{Name: env.Field, Old: o, New: n}, nil
	case "cost":
		var o, n Cost
		if err := decodePair(env, &o, &n); err != nil {
			return nil, err
		}
		return CostChange{Old: o, New: n}, nil
	case "effects":
		var o, n []Effect
		if err := decodePair(env, &o, &n); err != nil {
			return nil, err
		}
		return EffectsChange{Old: o, New: n}, nil
	case "requirements":
		var o, n []Requirement
		if err := decodePair(env, &o, &n); err != nil {
			return nil, err
		}
		return RequirementsChange{Old: o, New: n}, nil
	case "scaling":
		var o, n []ScalingFactor
		if err := decodePair(env, &o, &n); err != nil {
			return nil, err
		}
		return ScalingChange{Old: o, New: n}, nil
	case "tags":
		var o, n []string
		if err := decodePair(env, &o, &n); err != nil {
			return nil, err
		}
		return TagsChange{Old: o, New: n}, nil
	default:
		return nil, fmt.Errorf("unknown field change kind %q", env.Kind)
	}
}

func decodePair[T any](env changeEnvelope, oldV, newV *T) error {
	if err := json.Unmarshal(env.Old, oldV); err != nil {
		return fmt.Errorf("decoding old value for %s: %w", env.Field, err)
	}
	if err := json.Unmarshal(env.New, newV); err != nil {
		return fmt.Errorf("decoding new value for %s: %w", env.Field, err)
	}
	return nil
}
