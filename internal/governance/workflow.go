package governance

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus is the lifecycle state of an approval workflow.
type WorkflowStatus string

// Workflow states. Open states are pending and reviewing; the rest are
// terminal.
const (
	StatusPending   WorkflowStatus = "pending"
	StatusReviewing WorkflowStatus = "reviewing"
	StatusApproved  WorkflowStatus = "approved"
	StatusRejected  WorkflowStatus = "rejected"
	StatusCancelled WorkflowStatus = "cancelled"
)

// Open reports whether the status is non-terminal.
func (s WorkflowStatus) Open() bool {
	return s == StatusPending || s == StatusReviewing
}

// Priority is the handling urgency of a workflow, derived from the
// assessed severity.
type Priority string

// Priority constants.
const (
	PriorityNormal    Priority = "normal"
	PriorityHigh      Priority = "high"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

// PriorityFor maps a severity onto a workflow priority.
func PriorityFor(sev Severity) Priority {
	switch sev {
	case SeverityCritical:
		return PriorityEmergency
	case SeverityMajor:
		return PriorityUrgent
	case SeverityModerate:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// Role is an approver role drawn from the fixed vocabulary. The engine
// checks role membership only; authenticating the identity behind a
// role is the admin layer's problem.
type Role string

// Role constants.
const (
	RoleDesigner     Role = "designer"
	RoleLeadDesigner Role = "lead_designer"
	RoleBalanceTeam  Role = "balance_team"
	RoleGameDirector Role = "game_director"
)

// ValidRole reports whether r is in the fixed role vocabulary.
func ValidRole(r Role) bool {
	switch r {
	case RoleDesigner, RoleLeadDesigner, RoleBalanceTeam, RoleGameDirector:
		return true
	}
	return false
}

// RequiredApprovers returns the quorum role set for a severity. The
// moderate and minor rows never gate in the default policy (those
// changes apply immediately) but are defined for forced reviews.
func RequiredApprovers(sev Severity) []Role {
	switch sev {
	case SeverityCritical:
		return []Role{RoleLeadDesigner, RoleGameDirector, RoleBalanceTeam}
	case SeverityMajor:
		return []Role{RoleLeadDesigner, RoleBalanceTeam}
	case SeverityModerate:
		return []Role{RoleBalanceTeam}
	default:
		return []Role{RoleDesigner}
	}
}

// Workflow tracks one pending risky change. The underlying change is
// held on its change-log entry; the workflow only records the gate.
type Workflow struct {
	ID      string         `json:"id"`
	SkillID string         `json:"skill_id"`
	EntryID string         `json:"entry_id"`
	Status  WorkflowStatus `json:"status"`
	// Required is the quorum role set derived from severity.
	Required []Role `json:"required"`
	// ApprovedBy maps each role that signed off to the identity that
	// acted for it.
	ApprovedBy      map[Role]string `json:"approved_by"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	// Deadline is advisory metadata only; nothing enforces it.
	Deadline *time.Time `json:"deadline,omitempty"`
	Priority Priority   `json:"priority"`
}

// remaining returns the required roles that have not yet signed off.
func (w *Workflow) remaining() []Role {
	var out []Role
	for _, r := range w.Required {
		if _, ok := w.ApprovedBy[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// clone returns a copy safe to hand outside the table's lock.
func (w *Workflow) clone() *Workflow {
	out := *w
	out.Required = append([]Role(nil), w.Required...)
	out.ApprovedBy = make(map[Role]string, len(w.ApprovedBy))
	for k, v := range w.ApprovedBy {
		out.ApprovedBy[k] = v
	}
	return &out
}

// WorkflowTable owns every workflow and enforces the single-open-
// workflow-per-skill invariant. All methods are safe for concurrent
// use; approval actions synchronize on the table, not on skill ids.
type WorkflowTable struct {
	mu          sync.RWMutex
	byID        map[string]*Workflow
	openBySkill map[string]string // skill id → open workflow id
}

// NewWorkflowTable creates an empty table.
func NewWorkflowTable() *WorkflowTable {
	return &WorkflowTable{
		byID:        make(map[string]*Workflow),
		openBySkill: make(map[string]string),
	}
}

// Open creates a pending workflow for the given skill and entry.
//
// Precondition: skillID and entryID must be non-empty.
// Postcondition: Returns the new workflow, or ErrWorkflowOpen if the
// skill already has an open workflow.
func (t *WorkflowTable) Open(skillID, entryID string, sev Severity, now time.Time) (*Workflow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if openID, ok := t.openBySkill[skillID]; ok {
		return nil, fmt.Errorf("workflow %s: %w", openID, ErrWorkflowOpen)
	}

	w := &Workflow{
		ID:         uuid.NewString(),
		SkillID:    skillID,
		EntryID:    entryID,
		Status:     StatusPending,
		Required:   RequiredApprovers(sev),
		ApprovedBy: make(map[Role]string),
		CreatedAt:  now,
		Priority:   PriorityFor(sev),
	}
	t.byID[w.ID] = w
	t.openBySkill[skillID] = w.ID
	return w.clone(), nil
}

// HasOpen reports whether the skill has an open workflow.
func (t *WorkflowTable) HasOpen(skillID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.openBySkill[skillID]
	return ok
}

// Get returns a copy of the workflow with the given id.
func (t *WorkflowTable) Get(id string) (*Workflow, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return w.clone(), true
}

// List returns copies of all workflows, optionally filtered by status,
// newest-first.
//
// Postcondition: Returns a non-nil slice.
func (t *WorkflowTable) List(status WorkflowStatus) []*Workflow {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := []*Workflow{}
	for _, w := range t.byID {
		if status != "" && w.Status != status {
			continue
		}
		out = append(out, w.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// OpenCount returns the number of open workflows.
func (t *WorkflowTable) OpenCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.openBySkill)
}

// Approve records one role's sign-off.
//
// Transition: pending -> reviewing while roles are missing; the final
// required role transitions to approved. The engine applies the
// underlying change only when quorum=true is returned.
//
// Postcondition: Returns (workflow copy, quorum reached, error). Errors:
// ErrWorkflowNotFound, ErrWorkflowClosed, ErrRoleNotRequired,
// ErrAlreadyApproved.
func (t *WorkflowTable) Approve(id string, role Role, approver string) (*Workflow, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.byID[id]
	if !ok {
		return nil, false, fmt.Errorf("workflow %q: %w", id, ErrWorkflowNotFound)
	}
	if !w.Status.Open() {
		return nil, false, fmt.Errorf("workflow %q is %s: %w", id, w.Status, ErrWorkflowClosed)
	}
	if !roleIn(w.Required, role) {
		return nil, false, fmt.Errorf("workflow %q, role %q: %w", id, role, ErrRoleNotRequired)
	}
	if _, dup := w.ApprovedBy[role]; dup {
		return nil, false, fmt.Errorf("workflow %q, role %q: %w", id, role, ErrAlreadyApproved)
	}

	w.ApprovedBy[role] = approver
	if len(w.remaining()) > 0 {
		w.Status = StatusReviewing
		return w.clone(), false, nil
	}

	w.Status = StatusApproved
	delete(t.openBySkill, w.SkillID)
	return w.clone(), true, nil
}

// Reject moves an open workflow to rejected with the given reason. Any
// required-role holder may reject at any time before a terminal state.
//
// Postcondition: Returns the workflow copy, or ErrWorkflowNotFound /
// ErrWorkflowClosed / ErrRoleNotRequired.
func (t *WorkflowTable) Reject(id string, role Role, reason string) (*Workflow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", id, ErrWorkflowNotFound)
	}
	if !w.Status.Open() {
		return nil, fmt.Errorf("workflow %q is %s: %w", id, w.Status, ErrWorkflowClosed)
	}
	if !roleIn(w.Required, role) {
		return nil, fmt.Errorf("workflow %q, role %q: %w", id, role, ErrRoleNotRequired)
	}

	w.Status = StatusRejected
	w.RejectionReason = reason
	delete(t.openBySkill, w.SkillID)
	return w.clone(), nil
}

// Cancel moves an open workflow to cancelled. This is an administrative
// action distinct from rejection; no role check applies.
//
// Postcondition: Returns the workflow copy, or ErrWorkflowNotFound /
// ErrWorkflowClosed.
func (t *WorkflowTable) Cancel(id string) (*Workflow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("workflow %q: %w", id, ErrWorkflowNotFound)
	}
	if !w.Status.Open() {
		return nil, fmt.Errorf("workflow %q is %s: %w", id, w.Status, ErrWorkflowClosed)
	}

	w.Status = StatusCancelled
	delete(t.openBySkill, w.SkillID)
	return w.clone(), nil
}

func roleIn(roles []Role, r Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
