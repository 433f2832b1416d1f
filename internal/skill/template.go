package skill

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is a read-only archetype for new skills, loaded from YAML
// at startup. Creation may start from a template and override any
// field; templates never change at runtime.
type Template struct {
	ID           string          `yaml:"id"`
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description"`
	Type         Type            `yaml:"type"`
	Category     Category        `yaml:"category"`
	Element      Element         `yaml:"element"`
	TargetShape  TargetShape     `yaml:"target_shape"`
	Tree         string          `yaml:"tree"`
	MaxLevel     int             `yaml:"max_level"`
	Cost         *Cost           `yaml:"cost"`
	Cooldown     float64         `yaml:"cooldown"`
	CastTime     float64         `yaml:"cast_time"`
	Range        float64         `yaml:"range"`
	BaseEffects  []Effect        `yaml:"base_effects"`
	Scaling      []ScalingFactor `yaml:"scaling"`
	Requirements []Requirement   `yaml:"requirements"`
	Tags         []string        `yaml:"tags"`
}

// Validate checks that the template satisfies basic invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, MaxLevel is
// not negative, cooldown/cast time/costs are non-negative, and every
// scaling factor names a stat with a known curve; returns an error on
// the first violation otherwise.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("skill template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("skill template %q: name must not be empty", t.ID)
	}
	if t.MaxLevel < 0 {
		return fmt.Errorf("skill template %q: max_level must not be negative", t.ID)
	}
	if t.Cooldown < 0 {
		return fmt.Errorf("skill template %q: cooldown must not be negative", t.ID)
	}
	if t.CastTime < 0 {
		return fmt.Errorf("skill template %q: cast_time must not be negative", t.ID)
	}
	if t.Cost != nil && (t.Cost.Mana < 0 || t.Cost.Health < 0) {
		return fmt.Errorf("skill template %q: costs must not be negative", t.ID)
	}
	validCurves := map[ScalingCurve]bool{
		CurveLinear: true, CurveQuadratic: true, CurveLogarithmic: true, CurveExponential: true,
	}
	for i, sf := range t.Scaling {
		if sf.Stat == "" {
			return fmt.Errorf("skill template %q: scaling[%d]: stat must not be empty", t.ID, i)
		}
		if !validCurves[sf.Curve] {
			return fmt.Errorf("skill template %q: scaling[%d]: unknown curve %q", t.ID, i, sf.Curve)
		}
	}
	return nil
}

// LoadTemplateFromBytes parses a single skill template from raw YAML bytes.
// Unknown fields are rejected.
//
// Precondition: data must be valid YAML for a single Template.
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// Library holds all seeded templates keyed by ID. It is read-only
// after startup and safe for concurrent reads without synchronization.
type Library struct {
	templates map[string]*Template
}

// NewLibrary creates a Library from the given templates.
//
// Precondition: every template must be non-nil with a non-empty ID;
// later duplicates overwrite earlier ones.
func NewLibrary(templates []*Template) *Library {
	lib := &Library{templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		lib.templates[t.ID] = t
	}
	return lib
}

// Get returns the template for id, or (nil, false) if not found.
func (l *Library) Get(id string) (*Template, bool) {
	t, ok := l.templates[id]
	return t, ok
}

// All returns a snapshot slice of all templates.
func (l *Library) All() []*Template {
	out := make([]*Template, 0, len(l.templates))
	for _, t := range l.templates {
		out = append(out, t)
	}
	return out
}

// LoadLibrary reads every *.yaml file in dir and returns a populated
// Library.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Library, or an error on the first
// parse or validation failure; on error, the partial result is discarded.
func LoadLibrary(dir string) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading template dir %q: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return NewLibrary(templates), nil
}
