package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/bidvictrix/skillforge/internal/skill"
)

// Severity is the assessed balance risk of a change, ordered from
// harmless to game-breaking.
type Severity int

// Severity levels, in ascending order.
const (
	SeverityNone Severity = iota
	SeverityMinor
	SeverityModerate
	SeverityMajor
	SeverityCritical
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityMinor:
		return "minor"
	case SeverityModerate:
		return "moderate"
	case SeverityMajor:
		return "major"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalJSON renders the severity as its lowercase name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON parses the lowercase severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "none":
		*s = SeverityNone
	case "minor":
		*s = SeverityMinor
	case "moderate":
		*s = SeverityModerate
	case "major":
		*s = SeverityMajor
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", name)
	}
	return nil
}

// RequiresApproval reports whether the default policy gates a change
// of this severity behind an approval workflow.
func (s Severity) RequiresApproval() bool {
	return s >= SeverityMajor
}

// ChangeKind is the category of a governed mutation.
type ChangeKind string

// ChangeKind constants.
const (
	ChangeCreate   ChangeKind = "create"
	ChangeUpdate   ChangeKind = "update"
	ChangeDelete   ChangeKind = "delete"
	ChangeRollback ChangeKind = "rollback"
)

// Impact is the derived risk assessment for one proposed change. It is
// recorded on the change-log entry, never persisted independently.
type Impact struct {
	AffectedPlayers     int      `json:"affected_players"`
	Severity            Severity `json:"severity"`
	CompatibilityIssues []string `json:"compatibility_issues,omitempty"`
	Recommendations     []string `json:"recommendations,omitempty"`
}

// Thresholds for the update assessment. The ratio ladder is checked
// from largest to smallest; zero old damage maps straight to critical.
const (
	ratioCritical = 0.5
	ratioMajor    = 0.2
	ratioModerate = 0.1

	costDeltaReview     = 10.0
	cooldownRatioReview = 0.3

	deleteUsageMajor = 50
	noticeUsageFloor = 100
)

// UsageSource reports how many players currently have a skill, feeding
// the affected-player estimate. Implementations may stub this with
// zero when no live player store is wired.
type UsageSource interface {
	UsageCount(ctx context.Context, skillID string) (int, error)
}

// Assessor classifies the balance risk of a proposed change.
type Assessor struct {
	usage  UsageSource
	logger *zap.Logger
}

// NewAssessor creates an Assessor.
//
// Precondition: usage and logger must be non-nil.
func NewAssessor(usage UsageSource, logger *zap.Logger) *Assessor {
	return &Assessor{usage: usage, logger: logger}
}

// Assess classifies one change.
//
// Updates are laddered on the damage delta ratio. Introducing damage
// where there was none is critical (no baseline bounds the ratio), but
// a damageless skill staying damageless assesses off ratio zero: edits
// to its other fields stay minor.
//
// Precondition: newSkill must be non-nil for create/update; oldSkill
// must be non-nil for update/delete.
// Postcondition: Returns an Impact whose severity never decreases as
// the damage delta ratio grows.
func (a *Assessor) Assess(ctx context.Context, kind ChangeKind, newSkill, oldSkill *skill.Skill) Impact {
	target := newSkill
	if target == nil {
		target = oldSkill
	}

	affected := 0
	if target != nil {
		n, err := a.usage.UsageCount(ctx, target.ID)
		if err != nil {
			// A dead usage source must not block governance; assess
			// with zero and leave a trace for reconciliation.
			a.logger.Warn("usage count lookup failed",
				zap.String("skill_id", target.ID),
				zap.Error(err),
			)
		} else {
			affected = n
		}
	}

	impact := Impact{AffectedPlayers: affected, Severity: SeverityMinor}

	switch kind {
	case ChangeCreate:
		impact.Severity = SeverityMinor
	case ChangeDelete:
		a.assessDelete(&impact)
	case ChangeUpdate:
		a.assessUpdate(&impact, newSkill, oldSkill)
	}

	if affected > noticeUsageFloor {
		impact.Recommendations = append(impact.Recommendations,
			fmt.Sprintf("notify %d affected players before release", affected))
	}

	return impact
}

func (a *Assessor) assessDelete(impact *Impact) {
	if impact.AffectedPlayers > deleteUsageMajor {
		impact.Severity = SeverityMajor
	} else {
		impact.Severity = SeverityModerate
	}
	if impact.AffectedPlayers > 0 {
		impact.CompatibilityIssues = append(impact.CompatibilityIssues,
			fmt.Sprintf("%d players currently have this skill", impact.AffectedPlayers))
	}
}

func (a *Assessor) assessUpdate(impact *Impact, newSkill, oldSkill *skill.Skill) {
	oldDamage := oldSkill.TotalDamage()
	newDamage := newSkill.TotalDamage()

	ratio := 0.0
	switch {
	case oldDamage == 0 && newDamage == 0:
		ratio = 0
	case oldDamage == 0:
		// Adding damage to a damageless skill has no meaningful baseline;
		// treat the ratio as unbounded.
		ratio = math.Inf(1)
	default:
		ratio = math.Abs(newDamage-oldDamage) / oldDamage
	}

	// Ladder is ordered largest-first: the first rung that matches wins.
	switch {
	case ratio > ratioCritical:
		impact.Severity = SeverityCritical
	case ratio > ratioMajor:
		impact.Severity = SeverityMajor
	case ratio > ratioModerate:
		impact.Severity = SeverityModerate
	default:
		impact.Severity = SeverityMinor
	}

	if ratio > 0 && !math.IsInf(ratio, 1) {
		impact.CompatibilityIssues = append(impact.CompatibilityIssues,
			fmt.Sprintf("total damage changes %.0f -> %.0f (%.0f%%)", oldDamage, newDamage, ratio*100))
	}

	// Cost and cooldown deltas are flagged for review without touching
	// the severity ladder.
	if delta := math.Abs(newSkill.Cost.Total() - oldSkill.Cost.Total()); delta > costDeltaReview {
		impact.Recommendations = append(impact.Recommendations,
			fmt.Sprintf("review resource cost change of %.0f units", delta))
	}
	if oldSkill.Cooldown > 0 {
		if cdRatio := math.Abs(newSkill.Cooldown-oldSkill.Cooldown) / oldSkill.Cooldown; cdRatio > cooldownRatioReview {
			impact.Recommendations = append(impact.Recommendations,
				fmt.Sprintf("review cooldown change of %.0f%%", cdRatio*100))
		}
	} else if newSkill.Cooldown > 0 {
		impact.Recommendations = append(impact.Recommendations, "review newly introduced cooldown")
	}
}
