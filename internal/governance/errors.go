// Package governance implements the change-management pipeline for
// skill content: impact assessment, approval workflows, the bounded
// change log with rollback, and the engine that gates every mutation.
package governance

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned to callers. None of these are retried
// internally: they are caller errors, not transient faults.
var (
	// ErrSkillNotFound is returned when a skill id resolves to nothing.
	ErrSkillNotFound = errors.New("skill not found")
	// ErrEntryNotFound is returned when a change-log entry id resolves to nothing.
	ErrEntryNotFound = errors.New("change log entry not found")
	// ErrEntryNotApplied is returned when a rollback targets an entry
	// whose change never took effect (pending or rejected).
	ErrEntryNotApplied = errors.New("change log entry was never applied")
	// ErrActiveImmutable is returned when an update draft touches the
	// active flag. Deactivation goes through Delete; reactivation through
	// Rollback.
	ErrActiveImmutable = errors.New("the active flag cannot be changed by update")

	// ErrTemplateNotFound is returned when a create names a template id
	// that is not in the seeded library.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrWorkflowNotFound is returned when a workflow id resolves to nothing.
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrDuplicateID is returned when a create collides with an existing skill id.
	ErrDuplicateID = errors.New("skill id already exists")
	// ErrNoop is returned when an update's diff against the current value is empty.
	ErrNoop = errors.New("update is a no-op")
	// ErrWorkflowOpen is returned when a risky change targets a skill
	// that already has a pending or reviewing workflow.
	ErrWorkflowOpen = errors.New("skill already has an open approval workflow")
	// ErrWorkflowClosed is returned when approving or rejecting a
	// workflow that has reached a terminal state.
	ErrWorkflowClosed = errors.New("workflow is not open")
	// ErrRoleNotRequired is returned when a role outside the required
	// approver set attempts a workflow action.
	ErrRoleNotRequired = errors.New("role is not in the required approver set")
	// ErrAlreadyApproved is returned when a role approves the same workflow twice.
	ErrAlreadyApproved = errors.New("role has already approved this workflow")
)

// DependencyError blocks a delete: other skills reference the target,
// or its live usage exceeds the configured safety threshold. The
// payload lists the blockers explicitly.
type DependencyError struct {
	SkillID        string   `json:"skill_id"`
	Dependents     []string `json:"dependents,omitempty"`
	UsageCount     int      `json:"usage_count,omitempty"`
	UsageThreshold int      `json:"usage_threshold,omitempty"`
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	var parts []string
	if len(e.Dependents) > 0 {
		parts = append(parts, fmt.Sprintf("required by [%s]", strings.Join(e.Dependents, ", ")))
	}
	if e.UsageThreshold > 0 && e.UsageCount > e.UsageThreshold {
		parts = append(parts, fmt.Sprintf("usage count %d exceeds safety threshold %d", e.UsageCount, e.UsageThreshold))
	}
	return fmt.Sprintf("cannot delete skill %q: %s", e.SkillID, strings.Join(parts, "; "))
}
