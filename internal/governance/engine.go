package governance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bidvictrix/skillforge/internal/skill"
)

// SkillStore is the persistence port. Load and save operate on the
// entire collection per call; there is no partial-key API.
type SkillStore interface {
	// Load returns the full collection; an empty map on first run is valid.
	Load(ctx context.Context) (map[string]*skill.Skill, error)
	// Save replaces the stored collection with the given one.
	Save(ctx context.Context, skills map[string]*skill.Skill) error
}

// Notifier is the notification port: it informs live game servers that
// a skill definition changed. Failures are logged by the engine and
// never fail the governed mutation.
type Notifier interface {
	Notify(ctx context.Context, skillID string, s *skill.Skill) error
}

// ArchiveSink receives change-log entries evicted from the bounded
// in-memory log, preserving audit history beyond the ring capacity.
type ArchiveSink interface {
	Archive(ctx context.Context, e *Entry) error
}

// EngineConfig carries the engine's collaborators and policy. Store,
// Notifier, and Usage are required; Archive may be nil (evictions are
// then dropped with a log line).
type EngineConfig struct {
	Logger    *zap.Logger
	Store     SkillStore
	Notifier  Notifier
	Usage     UsageSource
	Archive   ArchiveSink
	Templates *skill.Library
	Policy    skill.Policy
	// ChangeLogCapacity bounds the in-memory audit ring.
	ChangeLogCapacity int
	// DeleteUsageThreshold is the usage count above which deletes are
	// refused outright with a DependencyError.
	DeleteUsageThreshold int
}

// Engine is the governance engine: the only write path to the skill
// registry. Every mutation runs validate -> assess -> (apply | open
// workflow) -> log -> persist -> notify inside a per-skill critical
// section; operations on different skills proceed in parallel.
type Engine struct {
	logger    *zap.Logger
	registry  *skill.Registry
	validator *skill.Validator
	templates *skill.Library
	assessor  *Assessor
	workflows *WorkflowTable
	log       *ChangeLog
	store     SkillStore
	notifier  Notifier
	archive   ArchiveSink

	deleteUsageThreshold int

	locks     keyedLocks
	persistMu sync.Mutex

	// now is the clock; swapped in tests.
	now func() time.Time
}

// NewEngine constructs an Engine from its collaborators. The registry
// starts empty; call Start to populate it from the persistence port.
//
// Precondition: cfg.Logger, cfg.Store, cfg.Notifier, and cfg.Usage must
// be non-nil. A nil cfg.Templates yields an empty template library.
func NewEngine(cfg EngineConfig) *Engine {
	templates := cfg.Templates
	if templates == nil {
		templates = skill.NewLibrary(nil)
	}
	return &Engine{
		logger:               cfg.Logger,
		registry:             skill.NewRegistry(),
		validator:            skill.NewValidator(cfg.Policy),
		templates:            templates,
		assessor:             NewAssessor(cfg.Usage, cfg.Logger),
		workflows:            NewWorkflowTable(),
		log:                  NewChangeLog(cfg.ChangeLogCapacity),
		store:                cfg.Store,
		notifier:             cfg.Notifier,
		archive:              cfg.Archive,
		deleteUsageThreshold: cfg.DeleteUsageThreshold,
		locks:                keyedLocks{locks: make(map[string]*sync.Mutex)},
		now:                  time.Now,
	}
}

// keyedLocks hands out one mutex per skill id. Entries are never
// freed; the set is bounded by the number of distinct skill ids seen.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) get(id string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	return m
}

// Start populates the registry from the persistence port.
//
// Postcondition: The registry reflects the stored collection; an empty
// store is valid (first run).
func (e *Engine) Start(ctx context.Context) error {
	skills, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading skill collection: %w", err)
	}
	e.registry.Populate(skills)
	e.logger.Info("skill registry populated", zap.Int("skills", len(skills)))
	return nil
}

// MutationResult reports the outcome of a governed create/update/delete.
type MutationResult struct {
	SkillID string `json:"skill_id"`
	// Applied is true when the change took effect immediately; false
	// means a workflow was opened and the change is pending quorum.
	Applied  bool            `json:"applied"`
	Entry    *Entry          `json:"entry"`
	Workflow *Workflow       `json:"workflow,omitempty"`
	Warnings []skill.Warning `json:"warnings,omitempty"`
}

// Get returns a copy of the skill with the given id.
func (e *Engine) Get(id string) (*skill.Skill, bool) {
	return e.registry.Get(id)
}

// List returns skills matching the filter.
func (e *Engine) List(f skill.Filter) []*skill.Skill {
	return e.registry.List(f)
}

// Templates returns the seeded template library.
func (e *Engine) Templates() *skill.Library {
	return e.templates
}

// ChangeLogs returns change-log entries, newest first, optionally
// filtered by skill id and capped by limit.
func (e *Engine) ChangeLogs(skillID string, limit int) []*Entry {
	return e.log.List(skillID, limit)
}

// Workflows returns workflows, optionally filtered by status.
func (e *Engine) Workflows(status WorkflowStatus) []*Workflow {
	return e.workflows.List(status)
}

// Workflow returns one workflow by id.
func (e *Engine) Workflow(id string) (*Workflow, bool) {
	return e.workflows.Get(id)
}

// SystemStatus is the aggregate engine status for the admin surface.
type SystemStatus struct {
	TotalSkills      int `json:"total_skills"`
	ActiveSkills     int `json:"active_skills"`
	PendingApprovals int `json:"pending_approvals"`
	RecentChanges    int `json:"recent_changes_24h"`
}

// Status returns the aggregate system status.
func (e *Engine) Status() SystemStatus {
	return SystemStatus{
		TotalSkills:      e.registry.Len(),
		ActiveSkills:     e.registry.ActiveCount(),
		PendingApprovals: e.workflows.OpenCount(),
		RecentChanges:    e.log.CountSince(e.now().Add(-24 * time.Hour)),
	}
}

// Create builds a skill from the draft (and optional template), runs
// validation, and applies it. Creates are assessed minor and never
// gated in the default policy.
//
// Precondition: author must be non-empty.
// Postcondition: On success the skill is registered, logged, persisted,
// and notified. On a *skill.ValidationError or ErrDuplicateID the
// registry is unchanged.
func (e *Engine) Create(ctx context.Context, d skill.Draft, templateID, author, reason string) (*MutationResult, error) {
	var tmpl *skill.Template
	if templateID != "" {
		t, ok := e.templates.Get(templateID)
		if !ok {
			return nil, fmt.Errorf("template %q: %w", templateID, ErrTemplateNotFound)
		}
		tmpl = t
	}

	if d.ID == nil || *d.ID == "" {
		d.ID = skill.StringPtr(uuid.NewString())
	}
	id := *d.ID

	lock := e.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	s := skill.Build(d, tmpl, e.now())
	warnings, err := e.validator.Validate(s)
	if err != nil {
		return nil, err
	}
	if e.registry.Exists(id) {
		return nil, fmt.Errorf("skill %q: %w", id, ErrDuplicateID)
	}

	impact := e.assessor.Assess(ctx, ChangeCreate, s, nil)

	entry := e.newEntry(id, ChangeCreate, author, reason, impact, nil)
	entry.Approved = true

	e.registry.Put(s)
	e.appendEntry(ctx, entry)
	e.persistAndNotify(ctx, s)

	e.logger.Info("skill created",
		zap.String("skill_id", id),
		zap.String("author", author),
		zap.String("severity", impact.Severity.String()),
	)
	return &MutationResult{SkillID: id, Applied: true, Entry: entry, Warnings: warnings}, nil
}

// Update computes the field diff between the current skill and the
// draft overlay, validates the prospective value, and either applies
// immediately or opens an approval workflow when the assessed severity
// is major or critical.
//
// Postcondition: On immediate apply, Get reflects the new values. On
// gating, Get still returns the old values and a workflow is open.
// Drafts that touch the active flag are refused with ErrActiveImmutable:
// deactivation carries dependency and usage safeguards that only Delete
// applies.
func (e *Engine) Update(ctx context.Context, id string, d skill.Draft, author, reason string) (*MutationResult, error) {
	if d.Active != nil {
		return nil, fmt.Errorf("skill %q: %w", id, ErrActiveImmutable)
	}

	lock := e.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	current, ok := e.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("skill %q: %w", id, ErrSkillNotFound)
	}

	// The diff runs before anything else: a vacuous update must not
	// produce an audit entry.
	prospective := current.Clone()
	skill.ApplyDraft(prospective, d)
	diffs := skill.Diff(current, prospective)
	if len(diffs) == 0 {
		return nil, fmt.Errorf("skill %q: %w", id, ErrNoop)
	}

	warnings, err := e.validator.Validate(prospective)
	if err != nil {
		return nil, err
	}

	impact := e.assessor.Assess(ctx, ChangeUpdate, prospective, current)

	if impact.Severity.RequiresApproval() {
		return e.openWorkflow(ctx, id, ChangeUpdate, author, reason, impact, diffs, warnings)
	}

	entry := e.newEntry(id, ChangeUpdate, author, reason, impact, diffs)
	entry.Approved = true

	prospective.UpdatedAt = e.now()
	e.registry.Put(prospective)
	e.appendEntry(ctx, entry)
	e.persistAndNotify(ctx, prospective)

	e.logger.Info("skill updated",
		zap.String("skill_id", id),
		zap.String("author", author),
		zap.String("severity", impact.Severity.String()),
		zap.Int("fields", len(diffs)),
	)
	return &MutationResult{SkillID: id, Applied: true, Entry: entry, Warnings: warnings}, nil
}

// Delete deactivates a skill after dependency and usage checks. The
// skill is never hard-deleted; history and id remain. High-usage
// deletes are gated behind approval per the assessed severity.
//
// Postcondition: On immediate apply the skill's Active flag is false.
// A blocked delete returns *DependencyError and changes nothing.
func (e *Engine) Delete(ctx context.Context, id, author, reason string) (*MutationResult, error) {
	lock := e.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	current, ok := e.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("skill %q: %w", id, ErrSkillNotFound)
	}

	depErr := &DependencyError{SkillID: id, UsageThreshold: e.deleteUsageThreshold}
	depErr.Dependents = e.registry.Dependents(id)

	impact := e.assessor.Assess(ctx, ChangeDelete, nil, current)
	depErr.UsageCount = impact.AffectedPlayers

	if len(depErr.Dependents) > 0 ||
		(e.deleteUsageThreshold > 0 && depErr.UsageCount > e.deleteUsageThreshold) {
		return nil, depErr
	}

	diffs := []skill.FieldChange{
		skill.BoolChange{Name: skill.FieldActive, Old: current.Active, New: false},
	}

	if impact.Severity.RequiresApproval() {
		return e.openWorkflow(ctx, id, ChangeDelete, author, reason, impact, diffs, nil)
	}

	entry := e.newEntry(id, ChangeDelete, author, reason, impact, diffs)
	entry.Approved = true

	current.Active = false
	current.UpdatedAt = e.now()
	e.registry.Put(current)
	e.appendEntry(ctx, entry)
	e.persistAndNotify(ctx, current)

	e.logger.Info("skill deactivated",
		zap.String("skill_id", id),
		zap.String("author", author),
		zap.String("severity", impact.Severity.String()),
	)
	return &MutationResult{SkillID: id, Applied: true, Entry: entry}, nil
}

// RequestReview opens an approval workflow for an update regardless of
// its assessed severity, for callers that want sign-off on a change the
// default policy would apply immediately.
func (e *Engine) RequestReview(ctx context.Context, id string, d skill.Draft, author, reason string) (*MutationResult, error) {
	if d.Active != nil {
		return nil, fmt.Errorf("skill %q: %w", id, ErrActiveImmutable)
	}

	lock := e.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	current, ok := e.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("skill %q: %w", id, ErrSkillNotFound)
	}

	prospective := current.Clone()
	skill.ApplyDraft(prospective, d)
	diffs := skill.Diff(current, prospective)
	if len(diffs) == 0 {
		return nil, fmt.Errorf("skill %q: %w", id, ErrNoop)
	}

	warnings, err := e.validator.Validate(prospective)
	if err != nil {
		return nil, err
	}

	impact := e.assessor.Assess(ctx, ChangeUpdate, prospective, current)
	return e.openWorkflow(ctx, id, ChangeUpdate, author, reason, impact, diffs, warnings)
}

// openWorkflow appends a pending entry and opens the gate. Called with
// the skill's lock held.
func (e *Engine) openWorkflow(ctx context.Context, id string, kind ChangeKind, author, reason string, impact Impact, diffs []skill.FieldChange, warnings []skill.Warning) (*MutationResult, error) {
	if e.workflows.HasOpen(id) {
		return nil, fmt.Errorf("skill %q: %w", id, ErrWorkflowOpen)
	}

	entry := e.newEntry(id, kind, author, reason, impact, diffs)
	w, err := e.workflows.Open(id, entry.ID, impact.Severity, e.now())
	if err != nil {
		return nil, err
	}
	e.appendEntry(ctx, entry)

	e.logger.Info("approval workflow opened",
		zap.String("skill_id", id),
		zap.String("workflow_id", w.ID),
		zap.String("severity", impact.Severity.String()),
		zap.String("priority", string(w.Priority)),
	)
	// The log owns the appended entry; the result carries a copy so the
	// caller never aliases a pointer a later quorum will write to.
	return &MutationResult{SkillID: id, Applied: false, Entry: entry.clone(), Workflow: w, Warnings: warnings}, nil
}

// Approve records one role's sign-off on a workflow. When the last
// required role signs off, the pending change is applied atomically
// under the skill's critical section: diffs are written into the
// skill, the entry is marked approved, and the collection is persisted
// and notified.
//
// Postcondition: Errors are ErrWorkflowNotFound, ErrWorkflowClosed,
// ErrRoleNotRequired, ErrAlreadyApproved, ErrEntryNotFound; none are
// retried.
func (e *Engine) Approve(ctx context.Context, workflowID string, role Role, approver string) (*Workflow, error) {
	// The pending entry must still be live before any vote commits: a
	// long-lived workflow can outlast its entry in the bounded log, and
	// a quorum with no entry would close the workflow without ever
	// applying the change. Such a workflow is cancelled so the skill is
	// not wedged.
	if open, ok := e.workflows.Get(workflowID); ok && open.Status.Open() {
		if _, live := e.log.Get(open.EntryID); !live {
			if _, cerr := e.workflows.Cancel(workflowID); cerr != nil {
				return nil, fmt.Errorf("cancelling workflow %q with evicted entry: %w", workflowID, cerr)
			}
			e.logger.Warn("workflow cancelled: pending entry evicted from change log",
				zap.String("workflow_id", workflowID),
				zap.String("entry_id", open.EntryID),
			)
			return nil, fmt.Errorf("workflow %q: pending entry %q: %w", workflowID, open.EntryID, ErrEntryNotFound)
		}
	}

	w, quorum, err := e.workflows.Approve(workflowID, role, approver)
	if err != nil {
		return nil, err
	}
	if !quorum {
		e.logger.Info("workflow approval recorded",
			zap.String("workflow_id", w.ID),
			zap.String("role", string(role)),
		)
		return w, nil
	}

	// Quorum reached: the application step takes the same per-skill
	// region as ordinary mutations.
	lock := e.locks.get(w.SkillID)
	lock.Lock()
	defer lock.Unlock()

	entry, ok := e.log.Get(w.EntryID)
	if !ok {
		return nil, fmt.Errorf("applying workflow %q: %w", w.ID, ErrEntryNotFound)
	}
	s, ok := e.registry.Get(w.SkillID)
	if !ok {
		return nil, fmt.Errorf("applying workflow %q: skill %q: %w", w.ID, w.SkillID, ErrSkillNotFound)
	}

	skill.ApplyChanges(s, entry.Diffs)
	s.UpdatedAt = e.now()
	e.registry.Put(s)

	if _, ok := e.log.MarkApproved(entry.ID, approver); !ok {
		e.logger.Warn("approved entry evicted before sign-off could be recorded",
			zap.String("entry_id", entry.ID),
		)
	}

	e.persistAndNotify(ctx, s)

	e.logger.Info("workflow approved and change applied",
		zap.String("workflow_id", w.ID),
		zap.String("skill_id", w.SkillID),
		zap.String("final_approver", approver),
	)
	return w, nil
}

// Reject moves an open workflow to rejected. The pending change is
// discarded; the skill is untouched.
func (e *Engine) Reject(ctx context.Context, workflowID string, role Role, reason string) (*Workflow, error) {
	w, err := e.workflows.Reject(workflowID, role, reason)
	if err != nil {
		return nil, err
	}
	e.logger.Info("workflow rejected",
		zap.String("workflow_id", w.ID),
		zap.String("skill_id", w.SkillID),
		zap.String("role", string(role)),
		zap.String("reason", reason),
	)
	return w, nil
}

// Cancel administratively closes an open workflow without applying the
// pending change.
func (e *Engine) Cancel(ctx context.Context, workflowID string) (*Workflow, error) {
	w, err := e.workflows.Cancel(workflowID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("workflow cancelled",
		zap.String("workflow_id", w.ID),
		zap.String("skill_id", w.SkillID),
	)
	return w, nil
}

// Rollback reverts a previously applied change by applying the exact
// inverse of its logged diff. Rollback restores a state that already
// passed governance, so it applies immediately and is never gated.
//
// Postcondition: On success the skill's governed fields equal their
// pre-change values and a new rollback-kind entry referencing the
// reverted entry is appended.
func (e *Engine) Rollback(ctx context.Context, skillID, entryID, author string) (*MutationResult, error) {
	lock := e.locks.get(skillID)
	lock.Lock()
	defer lock.Unlock()

	entry, ok := e.log.Get(entryID)
	if !ok {
		return nil, fmt.Errorf("entry %q: %w", entryID, ErrEntryNotFound)
	}
	if entry.SkillID != skillID {
		return nil, fmt.Errorf("entry %q does not target skill %q: %w", entryID, skillID, ErrEntryNotFound)
	}
	// Only applied changes can be reverted. A gated entry whose workflow
	// is still open (or was rejected) never touched the skill; inverting
	// it would corrupt the current state.
	if !entry.Approved {
		return nil, fmt.Errorf("entry %q: %w", entryID, ErrEntryNotApplied)
	}
	s, ok := e.registry.Get(skillID)
	if !ok {
		return nil, fmt.Errorf("skill %q: %w", skillID, ErrSkillNotFound)
	}

	var inverse []skill.FieldChange
	switch entry.Kind {
	case ChangeCreate:
		// A create carries no field diff; its inverse is deactivation.
		inverse = []skill.FieldChange{
			skill.BoolChange{Name: skill.FieldActive, Old: s.Active, New: false},
		}
	default:
		inverse = skill.InvertChanges(entry.Diffs)
	}

	skill.ApplyChanges(s, inverse)
	s.UpdatedAt = e.now()

	impact := Impact{Severity: SeverityMinor}
	rbEntry := e.newEntry(skillID, ChangeRollback, author, fmt.Sprintf("rollback of %s", entryID), impact, inverse)
	rbEntry.Approved = true
	rbEntry.RollbackOf = entryID

	e.registry.Put(s)
	e.appendEntry(ctx, rbEntry)
	e.persistAndNotify(ctx, s)

	e.logger.Info("change rolled back",
		zap.String("skill_id", skillID),
		zap.String("entry_id", entryID),
		zap.String("author", author),
	)
	return &MutationResult{SkillID: skillID, Applied: true, Entry: rbEntry}, nil
}

func (e *Engine) newEntry(skillID string, kind ChangeKind, author, reason string, impact Impact, diffs []skill.FieldChange) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		SkillID:   skillID,
		Kind:      kind,
		Timestamp: e.now(),
		Author:    author,
		Diffs:     diffs,
		Reason:    reason,
		Impact:    impact,
	}
}

// appendEntry appends to the bounded log and archives any evicted entry.
func (e *Engine) appendEntry(ctx context.Context, entry *Entry) {
	evicted := e.log.Append(entry)
	if evicted == nil {
		return
	}
	if e.archive == nil {
		e.logger.Warn("change log entry evicted without archive sink",
			zap.String("entry_id", evicted.ID),
		)
		return
	}
	if err := e.archive.Archive(ctx, evicted); err != nil {
		e.logger.Error("archiving evicted change log entry failed",
			zap.String("entry_id", evicted.ID),
			zap.Error(err),
		)
	}
}

// persistAndNotify writes the whole collection through the persistence
// port and fires the notification port. I/O failures are logged, never
// propagated: the in-memory registry is the source of truth for
// subsequent reads, and persistence is reconciled on the next write.
func (e *Engine) persistAndNotify(ctx context.Context, changed *skill.Skill) {
	e.persistMu.Lock()
	snapshot := e.registry.Snapshot()
	err := e.store.Save(ctx, snapshot)
	e.persistMu.Unlock()
	if err != nil {
		e.logger.Error("persisting skill collection failed",
			zap.String("skill_id", changed.ID),
			zap.Error(err),
		)
	}

	if err := e.notifier.Notify(ctx, changed.ID, changed); err != nil {
		e.logger.Warn("skill change notification failed",
			zap.String("skill_id", changed.ID),
			zap.Error(err),
		)
	}
}
