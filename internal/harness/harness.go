// Package harness runs balance test suites against skill snapshots:
// a deterministic damage-calculation suite, a ceiling-based balance
// suite, and designer-authored Lua checks. Runs are read-only with
// respect to the registry; the harness only ever sees copies.
package harness

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bidvictrix/skillforge/internal/scripting"
	"github.com/bidvictrix/skillforge/internal/skill"
)

// Damage model coefficients. Each level past the first adds a small
// fraction of the base value; each point of the governing stat adds a
// smaller one. The bonus stays inside the 10% correctness envelope for
// ordinary synthetic profiles.
const (
	levelScale = 0.002
	statScale  = 0.005

	// correctnessTolerance is the allowed relative deviation between
	// calculated and declared damage in the calculation suite.
	correctnessTolerance = 0.10
)

// DefaultHistorySize is the number of results retained per skill when
// no override is configured.
const DefaultHistorySize = 20

// StatBlock is a synthetic player stat profile.
type StatBlock struct {
	Strength     int `json:"strength"`
	Intelligence int `json:"intelligence"`
	Agility      int `json:"agility"`
	Vitality     int `json:"vitality"`
}

// scale returns the stats multiplied by n.
func (b StatBlock) scale(n int) StatBlock {
	return StatBlock{
		Strength:     b.Strength * n,
		Intelligence: b.Intelligence * n,
		Agility:      b.Agility * n,
		Vitality:     b.Vitality * n,
	}
}

// Environment is the synthetic execution context a test run targets.
type Environment struct {
	// Tier names the deployment tier the run simulates, e.g. "staging".
	Tier        string    `json:"tier,omitempty"`
	PlayerLevel int       `json:"player_level"`
	Stats       StatBlock `json:"stats"`
	TargetLevel int       `json:"target_level,omitempty"`
	Conditions  []string  `json:"conditions,omitempty"`
}

// Status is the overall outcome of a test run.
type Status string

// Status values.
const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

// CaseResult is one assertion's outcome within a run.
type CaseResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of one harness run against one skill.
type Result struct {
	SkillID  string        `json:"skill_id"`
	Status   Status        `json:"status"`
	Cases    []CaseResult  `json:"cases"`
	Duration time.Duration `json:"duration"`
	RanAt    time.Time     `json:"ran_at"`
}

// Harness executes the built-in suites plus any loaded scripted checks
// and retains a bounded per-skill result history.
//
// Safe for concurrent Run calls.
type Harness struct {
	policy      skill.Policy
	checks      *scripting.Runner
	logger      *zap.Logger
	historySize int

	mu      sync.RWMutex
	history map[string][]*Result // skill id → results, oldest first
}

// New creates a Harness.
//
// Precondition: logger must be non-nil. checks may be nil (no scripted
// suite). historySize <= 0 uses DefaultHistorySize.
func New(policy skill.Policy, checks *scripting.Runner, historySize int, logger *zap.Logger) *Harness {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Harness{
		policy:      policy,
		checks:      checks,
		logger:      logger,
		historySize: historySize,
		history:     make(map[string][]*Result),
	}
}

// Run executes every suite against the skill snapshot and records the
// result in the skill's history. A panic inside a suite yields status
// error with a synthetic failing case carrying the panic text; there
// is no automatic retry.
//
// Precondition: s must be non-nil.
// Postcondition: Returns a non-nil Result with at least one case.
func (h *Harness) Run(s *skill.Skill, env Environment) *Result {
	start := time.Now()
	result := &Result{SkillID: s.ID, RanAt: start}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Status = StatusError
				result.Cases = append(result.Cases, CaseResult{
					Name:   "suite execution",
					Passed: false,
					Detail: fmt.Sprint(r),
				})
				h.logger.Error("test suite panicked",
					zap.String("skill_id", s.ID),
					zap.Any("panic", r),
				)
			}
		}()
		result.Cases = append(result.Cases, h.damageSuite(s, env)...)
		result.Cases = append(result.Cases, h.balanceSuite(s)...)
		result.Cases = append(result.Cases, h.scriptedSuite(s)...)
	}()

	result.Duration = time.Since(start)
	if result.Status != StatusError {
		result.Status = StatusPassed
		for _, c := range result.Cases {
			if !c.Passed {
				result.Status = StatusFailed
				break
			}
		}
	}

	h.record(result)
	h.logger.Info("balance test run finished",
		zap.String("skill_id", s.ID),
		zap.String("status", string(result.Status)),
		zap.Int("cases", len(result.Cases)),
		zap.Duration("duration", result.Duration),
	)
	return result
}

// History returns the retained results for a skill, newest first.
//
// Postcondition: Returns a non-nil slice.
func (h *Harness) History(skillID string) []*Result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stored := h.history[skillID]
	out := make([]*Result, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	return out
}

func (h *Harness) record(r *Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	stored := append(h.history[r.SkillID], r)
	if len(stored) > h.historySize {
		stored = stored[len(stored)-h.historySize:]
	}
	h.history[r.SkillID] = stored
}

// CalculatedDamage computes the effect's damage for a synthetic player:
// base value plus a level-scaled term and a stat-scaled bonus. Physical
// skills scale with strength; every other element scales with
// intelligence.
func CalculatedDamage(s *skill.Skill, e skill.Effect, level int, stats StatBlock) float64 {
	stat := stats.Intelligence
	if s.Element == skill.ElementPhysical {
		stat = stats.Strength
	}
	if level < 1 {
		level = 1
	}
	return e.Value*(1+levelScale*float64(level-1)) + e.Value*statScale*float64(stat)
}

// damageSuite checks each damage effect for formula correctness (the
// calculated value stays within tolerance of the declared base) and
// scaling sanity (doubling level and stats strictly increases it).
func (h *Harness) damageSuite(s *skill.Skill, env Environment) []CaseResult {
	cases := []CaseResult{}
	level := env.PlayerLevel
	if level < 1 {
		level = 1
	}

	idx := 0
	for _, e := range s.Effects {
		if e.Kind != skill.EffectDamage {
			continue
		}
		idx++

		calculated := CalculatedDamage(s, e, level, env.Stats)
		name := fmt.Sprintf("damage formula correctness (effect %d)", idx)
		if e.Value == 0 {
			cases = append(cases, CaseResult{
				Name:   name,
				Passed: false,
				Detail: "damage effect declares zero base value",
			})
			continue
		}
		deviation := math.Abs(calculated-e.Value) / e.Value
		cases = append(cases, CaseResult{
			Name:   name,
			Passed: deviation <= correctnessTolerance,
			Detail: fmt.Sprintf("declared %.1f, calculated %.2f (%.1f%% deviation)", e.Value, calculated, deviation*100),
		})

		scaled := CalculatedDamage(s, e, level*2, env.Stats.scale(2))
		cases = append(cases, CaseResult{
			Name:   fmt.Sprintf("damage scaling sanity (effect %d)", idx),
			Passed: scaled > calculated,
			Detail: fmt.Sprintf("%.2f at level %d, %.2f at level %d", calculated, level, scaled, level*2),
		})
	}
	return cases
}

// balanceSuite asserts the DPS ceiling and, for costed skills, the
// damage-per-cost ceiling.
func (h *Harness) balanceSuite(s *skill.Skill) []CaseResult {
	cases := []CaseResult{}

	dps := s.TotalDamage() / math.Max(s.Cooldown, 1)
	cases = append(cases, CaseResult{
		Name:   "dps ceiling",
		Passed: dps <= h.policy.DPSCeiling,
		Detail: fmt.Sprintf("%.2f dps against ceiling %.0f", dps, h.policy.DPSCeiling),
	})

	if cost := s.Cost.Total(); cost > 0 {
		perCost := s.TotalDamage() / cost
		cases = append(cases, CaseResult{
			Name:   "damage per cost ceiling",
			Passed: perCost <= h.policy.DamagePerCostCeiling,
			Detail: fmt.Sprintf("%.2f damage per cost unit against ceiling %.0f", perCost, h.policy.DamagePerCostCeiling),
		})
	}
	return cases
}

func (h *Harness) scriptedSuite(s *skill.Skill) []CaseResult {
	if h.checks == nil || h.checks.Len() == 0 {
		return nil
	}
	checkResults := h.checks.Run(s)
	cases := make([]CaseResult, 0, len(checkResults))
	for _, cr := range checkResults {
		cases = append(cases, CaseResult{
			Name:   "scripted check: " + cr.Name,
			Passed: cr.Passed,
			Detail: cr.Message,
		})
	}
	return cases
}
