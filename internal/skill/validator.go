package skill

import (
	"fmt"
	"strings"
)

// FieldError is one blocking, field-scoped validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every blocking failure found in one pass.
// A mutation that produces a ValidationError is never partially
// applied: the skill is left untouched.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Warning is an advisory balance finding. Warnings never block a
// mutation; they ride along with a successful response.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Policy carries the balance ceilings the validator warns against.
// These are deployment configuration, not business law; see the
// governance section of the server config.
type Policy struct {
	DPSCeiling           float64
	HPSCeiling           float64
	BuffDurationCeiling  float64
	DamagePerCostCeiling float64
}

// DefaultPolicy returns the stock balance policy.
func DefaultPolicy() Policy {
	return Policy{
		DPSCeiling:           100,
		HPSCeiling:           80,
		BuffDurationCeiling:  300,
		DamagePerCostCeiling: 10,
	}
}

// Validator checks structural correctness and emits balance warnings.
type Validator struct {
	policy Policy
}

// NewValidator creates a Validator with the given balance policy.
func NewValidator(policy Policy) *Validator {
	return &Validator{policy: policy}
}

// Policy returns the validator's balance policy.
func (v *Validator) Policy() Policy { return v.policy }

// Validate checks s structurally and against the balance policy.
//
// Precondition: s must be a fully-defaulted skill (built via Build or
// cloned from the registry); no field may be absent.
// Postcondition: Returns the advisory warnings and, if any blocking
// rule failed, a *ValidationError listing every violation.
func (v *Validator) Validate(s *Skill) ([]Warning, error) {
	var errs []FieldError

	if s.ID == "" {
		errs = append(errs, FieldError{Field: "id", Message: "must not be empty"})
	}
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "must not be empty"})
	}
	if strings.TrimSpace(s.Description) == "" {
		errs = append(errs, FieldError{Field: "description", Message: "must not be empty"})
	}
	if !validType(s.Type) {
		errs = append(errs, FieldError{Field: "type", Message: fmt.Sprintf("unknown type %q", s.Type)})
	}
	if s.Level < 1 {
		errs = append(errs, FieldError{Field: "level", Message: "must be >= 1"})
	}
	if s.MaxLevel < s.Level {
		errs = append(errs, FieldError{Field: "max_level", Message: "must be >= level"})
	}
	if s.Cooldown < 0 {
		errs = append(errs, FieldError{Field: "cooldown", Message: "must not be negative"})
	}
	if s.CastTime < 0 {
		errs = append(errs, FieldError{Field: "cast_time", Message: "must not be negative"})
	}
	if s.Cost.Mana < 0 {
		errs = append(errs, FieldError{Field: "cost.mana", Message: "must not be negative"})
	}
	if s.Cost.Health < 0 {
		errs = append(errs, FieldError{Field: "cost.health", Message: "must not be negative"})
	}

	warnings := v.balanceWarnings(s)

	if len(errs) > 0 {
		return warnings, &ValidationError{Errors: errs}
	}
	return warnings, nil
}

func validType(t Type) bool {
	for _, vt := range ValidTypes {
		if t == vt {
			return true
		}
	}
	return false
}

// balanceWarnings applies the advisory heuristics: empty or degenerate
// effects, DPS and HPS ceilings, and excessive buff durations.
func (v *Validator) balanceWarnings(s *Skill) []Warning {
	warnings := []Warning{}

	if len(s.Effects) == 0 {
		warnings = append(warnings, Warning{
			Field:   "effects",
			Message: "skill has no effects",
		})
	}
	for i, e := range s.Effects {
		if e.Value <= 0 && e.Kind != EffectUtility {
			warnings = append(warnings, Warning{
				Field:   fmt.Sprintf("effects[%d].value", i),
				Message: fmt.Sprintf("%s effect has non-positive magnitude %g", e.Kind, e.Value),
			})
		}
		if e.Kind == EffectBuff && e.Duration > v.policy.BuffDurationCeiling {
			warnings = append(warnings, Warning{
				Field:   fmt.Sprintf("effects[%d].duration", i),
				Message: fmt.Sprintf("buff duration %g exceeds ceiling %g", e.Duration, v.policy.BuffDurationCeiling),
			})
		}
	}

	// Per-unit-time ceilings treat instant skills as cooldown 1.
	interval := s.Cooldown
	if interval < 1 {
		interval = 1
	}
	if dps := s.TotalDamage() / interval; dps > v.policy.DPSCeiling {
		warnings = append(warnings, Warning{
			Field:   "effects",
			Message: fmt.Sprintf("damage per unit time %.2f exceeds ceiling %g", dps, v.policy.DPSCeiling),
		})
	}
	if hps := s.TotalHealing() / interval; hps > v.policy.HPSCeiling {
		warnings = append(warnings, Warning{
			Field:   "effects",
			Message: fmt.Sprintf("healing per unit time %.2f exceeds ceiling %g", hps, v.policy.HPSCeiling),
		})
	}

	return warnings
}
