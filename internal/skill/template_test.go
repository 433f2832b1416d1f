package skill_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidvictrix/skillforge/internal/skill"
)

const meleeTemplateYAML = `
id: basic_melee
name: Basic Melee
description: "A straightforward physical strike."
type: active
category: combat
element: physical
target_shape: single
tree: warrior
max_level: 15
cost:
  mana: 0
  health: 0
cooldown: 4
range: 1
base_effects:
  - kind: damage
    target: enemy
    value: 25
scaling:
  - stat: strength
    multiplier: 1.5
    curve: linear
requirements:
  - kind: level
    value: 1
tags:
  - melee
`

func TestLoadTemplateFromBytes_Valid(t *testing.T) {
	tmpl, err := skill.LoadTemplateFromBytes([]byte(meleeTemplateYAML))
	require.NoError(t, err)
	assert.Equal(t, "basic_melee", tmpl.ID)
	assert.Equal(t, skill.ElementPhysical, tmpl.Element)
	assert.Equal(t, 15, tmpl.MaxLevel)
	require.Len(t, tmpl.BaseEffects, 1)
	assert.Equal(t, 25.0, tmpl.BaseEffects[0].Value)
	require.Len(t, tmpl.Scaling, 1)
	assert.Equal(t, skill.CurveLinear, tmpl.Scaling[0].Curve)
}

func TestLoadTemplateFromBytes_UnknownField_ReturnsError(t *testing.T) {
	_, err := skill.LoadTemplateFromBytes([]byte("id: x\nname: X\nbogus_field: 1\n"))
	assert.Error(t, err)
}

func TestLoadTemplateFromBytes_MissingID_ReturnsError(t *testing.T) {
	_, err := skill.LoadTemplateFromBytes([]byte("name: No ID\n"))
	assert.Error(t, err)
}

func TestTemplate_Validate_BadCurve(t *testing.T) {
	tmpl := &skill.Template{
		ID:   "bad",
		Name: "Bad",
		Scaling: []skill.ScalingFactor{
			{Stat: "strength", Multiplier: 1, Curve: "sinusoidal"},
		},
	}
	err := tmpl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "curve")
}

func TestTemplate_Validate_NegativeCooldown(t *testing.T) {
	tmpl := &skill.Template{ID: "bad", Name: "Bad", Cooldown: -1}
	assert.Error(t, tmpl.Validate())
}

func TestLoadLibrary_ReadsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "melee.yaml"), []byte(meleeTemplateYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	lib, err := skill.LoadLibrary(dir)
	require.NoError(t, err)
	tmpl, ok := lib.Get("basic_melee")
	require.True(t, ok)
	assert.Equal(t, "Basic Melee", tmpl.Name)
	assert.Len(t, lib.All(), 1)
}

func TestLoadLibrary_EmptyDir(t *testing.T) {
	lib, err := skill.LoadLibrary(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, lib.All())
}

func TestLoadLibrary_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(":::bad:::"), 0644))
	_, err := skill.LoadLibrary(dir)
	assert.Error(t, err)
}

func TestLoadLibrary_NonexistentDir_ReturnsError(t *testing.T) {
	_, err := skill.LoadLibrary("/nonexistent/path/to/templates")
	assert.Error(t, err)
}

func TestLibrary_Get_NotFound(t *testing.T) {
	lib := skill.NewLibrary(nil)
	_, ok := lib.Get("missing")
	assert.False(t, ok)
}
