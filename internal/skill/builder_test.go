package skill_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidvictrix/skillforge/internal/skill"
)

func TestBuild_SystemDefaults(t *testing.T) {
	now := time.Now()
	s := skill.Build(skill.Draft{ID: skill.StringPtr("s1")}, nil, now)

	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, 1, s.Level)
	assert.Equal(t, 10, s.MaxLevel)
	assert.Equal(t, 0.0, s.Cooldown)
	assert.Equal(t, skill.CategoryCombat, s.Category)
	assert.Equal(t, skill.TypeActive, s.Type)
	assert.True(t, s.Active)
	require.NotNil(t, s.Effects)
	require.NotNil(t, s.Requirements)
	require.NotNil(t, s.Tags)
}

func TestBuild_TemplateOverridesDefaults(t *testing.T) {
	tmpl := &skill.Template{
		ID:       "arcane_spell",
		Name:     "Arcane Spell",
		Type:     skill.TypeChanneled,
		Category: skill.CategorySupport,
		Element:  skill.ElementArcane,
		MaxLevel: 20,
		Cooldown: 8,
		Cost:     &skill.Cost{Mana: 30},
		BaseEffects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 45},
		},
		Requirements: []skill.Requirement{{Kind: skill.RequireLevel, Value: 10}},
	}

	s := skill.Build(skill.Draft{ID: skill.StringPtr("s1")}, tmpl, time.Now())
	assert.Equal(t, skill.TypeChanneled, s.Type)
	assert.Equal(t, skill.ElementArcane, s.Element)
	assert.Equal(t, 20, s.MaxLevel)
	assert.Equal(t, 8.0, s.Cooldown)
	assert.Equal(t, 30.0, s.Cost.Mana)
	require.Len(t, s.Effects, 1)
	assert.Equal(t, 45.0, s.Effects[0].Value)
	require.Len(t, s.Requirements, 1)
}

func TestBuild_ExplicitFieldsBeatTemplate(t *testing.T) {
	tmpl := &skill.Template{
		ID:       "basic_melee",
		Name:     "Basic Melee",
		Cooldown: 3,
		BaseEffects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 10},
		},
	}
	d := skill.Draft{
		ID:       skill.StringPtr("s1"),
		Cooldown: skill.FloatPtr(5),
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 100},
		},
	}
	s := skill.Build(d, tmpl, time.Now())
	assert.Equal(t, 5.0, s.Cooldown, "caller cooldown must beat template")
	require.Len(t, s.Effects, 1)
	assert.Equal(t, 100.0, s.Effects[0].Value, "caller effects must beat template base effects")
}

func TestBuild_TemplateSlicesAreCopied(t *testing.T) {
	tmpl := &skill.Template{
		ID:   "basic_melee",
		Name: "Basic Melee",
		BaseEffects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 10},
		},
	}
	s := skill.Build(skill.Draft{ID: skill.StringPtr("s1")}, tmpl, time.Now())
	s.Effects[0].Value = 999
	assert.Equal(t, 10.0, tmpl.BaseEffects[0].Value, "built skill must not alias template storage")
}

func TestApplyDraft_IDImmutableOnExistingSkill(t *testing.T) {
	s := skill.Build(skill.Draft{ID: skill.StringPtr("s1")}, nil, time.Now())
	skill.ApplyDraft(s, skill.Draft{ID: skill.StringPtr("s2"), Name: skill.StringPtr("Renamed")})
	assert.Equal(t, "s1", s.ID, "id must not change after creation")
	assert.Equal(t, "Renamed", s.Name)
}

func TestDraft_IsEmpty(t *testing.T) {
	assert.True(t, skill.Draft{}.IsEmpty())
	assert.False(t, skill.Draft{Name: skill.StringPtr("x")}.IsEmpty())
	assert.False(t, skill.Draft{Effects: []skill.Effect{}}.IsEmpty())
}
