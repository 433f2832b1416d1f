package governance_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bidvictrix/skillforge/internal/governance"
	"github.com/bidvictrix/skillforge/internal/skill"
)

// memStore is an in-memory SkillStore recording every save.
type memStore struct {
	mu      sync.Mutex
	skills  map[string]*skill.Skill
	saves   int
	saveErr error
	loadErr error
}

func (m *memStore) Load(context.Context) (map[string]*skill.Skill, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.skills == nil {
		return map[string]*skill.Skill{}, nil
	}
	return m.skills, nil
}

func (m *memStore) Save(_ context.Context, skills map[string]*skill.Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.skills = skills
	m.saves++
	return nil
}

// memNotifier records every notification.
type memNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (m *memNotifier) Notify(_ context.Context, skillID string, _ *skill.Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, skillID)
	return nil
}

type memArchive struct {
	entries []*governance.Entry
}

func (m *memArchive) Archive(_ context.Context, e *governance.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

type engineFixture struct {
	engine   *governance.Engine
	store    *memStore
	notifier *memNotifier
	usage    *stubUsage
	archive  *memArchive
}

func newEngineFixture(t *testing.T, opts ...func(*governance.EngineConfig)) *engineFixture {
	t.Helper()
	f := &engineFixture{
		store:    &memStore{},
		notifier: &memNotifier{},
		usage:    &stubUsage{counts: map[string]int{}},
		archive:  &memArchive{},
	}
	cfg := governance.EngineConfig{
		Logger:               zap.NewNop(),
		Store:                f.store,
		Notifier:             f.notifier,
		Usage:                f.usage,
		Archive:              f.archive,
		Policy:               skill.DefaultPolicy(),
		ChangeLogCapacity:    100,
		DeleteUsageThreshold: 1000,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.engine = governance.NewEngine(cfg)
	require.NoError(t, f.engine.Start(context.Background()))
	return f
}

func (f *engineFixture) mustCreate(t *testing.T, id string, damage, cooldown float64) *skill.Skill {
	t.Helper()
	res, err := f.engine.Create(context.Background(), skill.Draft{
		ID:          skill.StringPtr(id),
		Name:        skill.StringPtr("Test " + id),
		Description: skill.StringPtr("Created for tests."),
		Cost:        &skill.Cost{Mana: 20},
		Cooldown:    skill.FloatPtr(cooldown),
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: damage},
		},
	}, "", "tester", "seed")
	require.NoError(t, err)
	require.True(t, res.Applied)
	s, ok := f.engine.Get(id)
	require.True(t, ok)
	return s
}

func TestEngine_Create_AppliesImmediately(t *testing.T) {
	f := newEngineFixture(t)

	res, err := f.engine.Create(context.Background(), skill.Draft{
		ID:          skill.StringPtr("fireball"),
		Name:        skill.StringPtr("Fireball"),
		Description: skill.StringPtr("Hurls a fiery bolt."),
		Cooldown:    skill.FloatPtr(5),
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 60},
		},
	}, "", "alice", "new fire tree opener")
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.Equal(t, "fireball", res.SkillID)
	require.NotNil(t, res.Entry)
	assert.Equal(t, governance.ChangeCreate, res.Entry.Kind)
	assert.True(t, res.Entry.Approved)
	assert.Equal(t, governance.SeverityMinor, res.Entry.Impact.Severity)

	s, ok := f.engine.Get("fireball")
	require.True(t, ok)
	assert.Equal(t, "Fireball", s.Name)
	assert.True(t, s.Active)
	assert.Equal(t, skill.DefaultLevel, s.Level)

	assert.Equal(t, 1, f.store.saves)
	assert.Equal(t, []string{"fireball"}, f.notifier.events)
}

func TestEngine_Create_GeneratesIDWhenAbsent(t *testing.T) {
	f := newEngineFixture(t)

	res, err := f.engine.Create(context.Background(), skill.Draft{
		Name:        skill.StringPtr("Nameless"),
		Description: skill.StringPtr("No id supplied."),
	}, "", "alice", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.SkillID)
	_, ok := f.engine.Get(res.SkillID)
	assert.True(t, ok)
}

func TestEngine_Create_RejectsInvalidDraft(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Create(context.Background(), skill.Draft{
		ID: skill.StringPtr("broken"),
		// Name and description missing.
		Cooldown: skill.FloatPtr(-1),
	}, "", "alice", "")

	var verr *skill.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Errors), 3)

	_, ok := f.engine.Get("broken")
	assert.False(t, ok, "invalid skill must not be registered")
	assert.Zero(t, f.store.saves)
}

func TestEngine_Create_RejectsDuplicateID(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 60, 5)

	_, err := f.engine.Create(context.Background(), skill.Draft{
		ID:          skill.StringPtr("fireball"),
		Name:        skill.StringPtr("Fireball Again"),
		Description: skill.StringPtr("Duplicate."),
	}, "", "bob", "")
	assert.ErrorIs(t, err, governance.ErrDuplicateID)
}

func TestEngine_Create_UnknownTemplate(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Create(context.Background(), skill.Draft{
		Name:        skill.StringPtr("X"),
		Description: skill.StringPtr("Y"),
	}, "no-such-template", "alice", "")
	assert.ErrorIs(t, err, governance.ErrTemplateNotFound)
}

func TestEngine_Update_MinorAppliesImmediately(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	res, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 105},
		},
	}, "alice", "small numbers pass")
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.Nil(t, res.Workflow)
	assert.Equal(t, governance.SeverityMinor, res.Entry.Impact.Severity)

	s, _ := f.engine.Get("fireball")
	assert.Equal(t, 105.0, s.TotalDamage())
}

func TestEngine_Update_NoopRejected(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)
	logsBefore := len(f.engine.ChangeLogs("fireball", 0))

	_, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Cooldown: skill.FloatPtr(5),
	}, "alice", "touch nothing")
	assert.ErrorIs(t, err, governance.ErrNoop)

	assert.Len(t, f.engine.ChangeLogs("fireball", 0), logsBefore, "no-op must not be logged")
}

func TestEngine_Update_UnknownSkill(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Update(context.Background(), "ghost", skill.Draft{
		Cooldown: skill.FloatPtr(1),
	}, "alice", "")
	assert.ErrorIs(t, err, governance.ErrSkillNotFound)
}

func TestEngine_Update_MajorChangeIsGated(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	res, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 130},
		},
	}, "alice", "buff fire tree")
	require.NoError(t, err)

	assert.False(t, res.Applied)
	require.NotNil(t, res.Workflow)
	assert.Equal(t, governance.StatusPending, res.Workflow.Status)
	assert.ElementsMatch(t,
		[]governance.Role{governance.RoleLeadDesigner, governance.RoleBalanceTeam},
		res.Workflow.Required)
	assert.False(t, res.Entry.Approved)

	// The pending change is invisible to readers.
	s, _ := f.engine.Get("fireball")
	assert.Equal(t, 100.0, s.TotalDamage())

	// A second gated update on the same skill is refused.
	_, err = f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 140},
		},
	}, "bob", "competing buff")
	assert.ErrorIs(t, err, governance.ErrWorkflowOpen)
}

func TestEngine_Approve_QuorumAppliesPendingChange(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	res, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 130},
		},
	}, "alice", "buff fire tree")
	require.NoError(t, err)
	wfID := res.Workflow.ID

	_, err = f.engine.Approve(context.Background(), wfID, governance.RoleLeadDesigner, "lead")
	require.NoError(t, err)
	s, _ := f.engine.Get("fireball")
	assert.Equal(t, 100.0, s.TotalDamage(), "partial quorum must not apply")

	w, err := f.engine.Approve(context.Background(), wfID, governance.RoleBalanceTeam, "balance")
	require.NoError(t, err)
	assert.Equal(t, governance.StatusApproved, w.Status)

	s, _ = f.engine.Get("fireball")
	assert.Equal(t, 130.0, s.TotalDamage())

	entries := f.engine.ChangeLogs("fireball", 1)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.True(t, entry.Approved)
	assert.Equal(t, "balance", entry.ApprovedBy)

	// Applied via approval means persisted and notified.
	assert.Contains(t, f.notifier.events, "fireball")
}

func TestEngine_Reject_DiscardsPendingChange(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	res, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 200},
		},
	}, "alice", "double it")
	require.NoError(t, err)
	assert.Equal(t, governance.SeverityCritical, res.Entry.Impact.Severity)

	w, err := f.engine.Reject(context.Background(), res.Workflow.ID, governance.RoleGameDirector, "way too strong")
	require.NoError(t, err)
	assert.Equal(t, governance.StatusRejected, w.Status)

	s, _ := f.engine.Get("fireball")
	assert.Equal(t, 100.0, s.TotalDamage())

	// The skill is unblocked for new proposals.
	_, err = f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 108},
		},
	}, "alice", "gentler buff")
	assert.NoError(t, err)
}

func TestEngine_Cancel_ClosesWorkflow(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	res, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 200},
		},
	}, "alice", "")
	require.NoError(t, err)

	w, err := f.engine.Cancel(context.Background(), res.Workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusCancelled, w.Status)

	s, _ := f.engine.Get("fireball")
	assert.Equal(t, 100.0, s.TotalDamage())
}

func TestEngine_Delete_DeactivatesWithLowUsage(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)
	f.usage.counts["fireball"] = 5

	res, err := f.engine.Delete(context.Background(), "fireball", "alice", "obsolete")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, governance.ChangeDelete, res.Entry.Kind)

	s, ok := f.engine.Get("fireball")
	require.True(t, ok, "deletes deactivate, never remove")
	assert.False(t, s.Active)
}

func TestEngine_Delete_HighUsageIsGated(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)
	f.usage.counts["fireball"] = 60

	res, err := f.engine.Delete(context.Background(), "fireball", "alice", "rework")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	require.NotNil(t, res.Workflow)
	assert.Equal(t, governance.PriorityUrgent, res.Workflow.Priority)

	s, _ := f.engine.Get("fireball")
	assert.True(t, s.Active, "gated delete must not deactivate yet")

	// Quorum flips the Active flag through the recorded diff.
	_, err = f.engine.Approve(context.Background(), res.Workflow.ID, governance.RoleLeadDesigner, "lead")
	require.NoError(t, err)
	_, err = f.engine.Approve(context.Background(), res.Workflow.ID, governance.RoleBalanceTeam, "balance")
	require.NoError(t, err)

	s, _ = f.engine.Get("fireball")
	assert.False(t, s.Active)
}

func TestEngine_Delete_BlockedByDependents(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	_, err := f.engine.Create(context.Background(), skill.Draft{
		ID:          skill.StringPtr("meteor"),
		Name:        skill.StringPtr("Meteor"),
		Description: skill.StringPtr("Upgrade of fireball."),
		Requirements: []skill.Requirement{
			{Kind: skill.RequireSkill, Target: "fireball", Value: 5},
		},
	}, "", "alice", "")
	require.NoError(t, err)

	_, err = f.engine.Delete(context.Background(), "fireball", "alice", "cleanup")
	var depErr *governance.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, []string{"meteor"}, depErr.Dependents)

	s, _ := f.engine.Get("fireball")
	assert.True(t, s.Active)
}

func TestEngine_Delete_BlockedAboveUsageThreshold(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)
	f.usage.counts["fireball"] = 1500

	_, err := f.engine.Delete(context.Background(), "fireball", "alice", "")
	var depErr *governance.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, 1500, depErr.UsageCount)
}

func TestEngine_Rollback_RestoresPreviousValues(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	res, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Cooldown: skill.FloatPtr(8),
		Cost:     &skill.Cost{Mana: 25},
	}, "alice", "tune resources")
	require.NoError(t, err)
	require.True(t, res.Applied)

	rb, err := f.engine.Rollback(context.Background(), "fireball", res.Entry.ID, "bob")
	require.NoError(t, err)
	assert.True(t, rb.Applied)
	assert.Equal(t, governance.ChangeRollback, rb.Entry.Kind)
	assert.Equal(t, res.Entry.ID, rb.Entry.RollbackOf)

	s, _ := f.engine.Get("fireball")
	assert.Equal(t, 5.0, s.Cooldown)
	assert.Equal(t, 20.0, s.Cost.Mana)
}

func TestEngine_Rollback_OfCreateDeactivates(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)
	created := f.engine.ChangeLogs("fireball", 1)[0]
	require.Equal(t, governance.ChangeCreate, created.Kind)

	_, err := f.engine.Rollback(context.Background(), "fireball", created.ID, "bob")
	require.NoError(t, err)

	s, _ := f.engine.Get("fireball")
	assert.False(t, s.Active)
}

func TestEngine_Rollback_EntryValidation(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)
	f.mustCreate(t, "frostbolt", 80, 4)
	frostEntry := f.engine.ChangeLogs("frostbolt", 1)[0]

	_, err := f.engine.Rollback(context.Background(), "fireball", "no-such-entry", "bob")
	assert.ErrorIs(t, err, governance.ErrEntryNotFound)

	// An entry belonging to another skill is not accepted.
	_, err = f.engine.Rollback(context.Background(), "fireball", frostEntry.ID, "bob")
	assert.ErrorIs(t, err, governance.ErrEntryNotFound)
}

func TestEngine_RequestReview_GatesRegardlessOfSeverity(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	res, err := f.engine.RequestReview(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 102},
		},
	}, "alice", "want sign-off anyway")
	require.NoError(t, err)

	assert.False(t, res.Applied)
	require.NotNil(t, res.Workflow)
	assert.Equal(t, governance.SeverityMinor, res.Entry.Impact.Severity)
	assert.ElementsMatch(t, []governance.Role{governance.RoleDesigner}, res.Workflow.Required)

	_, err = f.engine.Approve(context.Background(), res.Workflow.ID, governance.RoleDesigner, "peer")
	require.NoError(t, err)

	s, _ := f.engine.Get("fireball")
	assert.Equal(t, 102.0, s.TotalDamage())
}

func TestEngine_PersistFailureDoesNotFailMutation(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)
	f.store.saveErr = errors.New("postgres down")
	f.notifier.err = errors.New("redis down")

	res, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Cooldown: skill.FloatPtr(6),
	}, "alice", "durable in memory")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	s, _ := f.engine.Get("fireball")
	assert.Equal(t, 6.0, s.Cooldown)
}

func TestEngine_Start_LoadsStoredCollection(t *testing.T) {
	seed := damageSkill("stored", 40, 3, 10)
	f := newEngineFixture(t, func(cfg *governance.EngineConfig) {
		cfg.Store = &memStore{skills: map[string]*skill.Skill{"stored": seed}}
	})

	s, ok := f.engine.Get("stored")
	require.True(t, ok)
	assert.Equal(t, "Test Strike", s.Name)
}

func TestEngine_Status(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)
	f.mustCreate(t, "frostbolt", 80, 4)

	_, err := f.engine.Delete(context.Background(), "frostbolt", "alice", "")
	require.NoError(t, err)

	_, err = f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 200},
		},
	}, "alice", "")
	require.NoError(t, err)

	status := f.engine.Status()
	assert.Equal(t, 2, status.TotalSkills)
	assert.Equal(t, 1, status.ActiveSkills)
	assert.Equal(t, 1, status.PendingApprovals)
	assert.Equal(t, 4, status.RecentChanges)
}

func TestEngine_Rollback_RefusesUnappliedEntry(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	res, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 200},
		},
	}, "alice", "double it")
	require.NoError(t, err)
	require.False(t, res.Applied)
	logsBefore := len(f.engine.ChangeLogs("fireball", 0))

	_, err = f.engine.Rollback(context.Background(), "fireball", res.Entry.ID, "bob")
	assert.ErrorIs(t, err, governance.ErrEntryNotApplied)

	s, _ := f.engine.Get("fireball")
	assert.Equal(t, 100.0, s.TotalDamage(), "pending change must stay invisible")
	w, ok := f.engine.Workflow(res.Workflow.ID)
	require.True(t, ok)
	assert.True(t, w.Status.Open(), "refused rollback must not disturb the workflow")
	assert.Len(t, f.engine.ChangeLogs("fireball", 0), logsBefore, "refused rollback must not be logged")

	// A rejected entry never took effect either.
	_, err = f.engine.Reject(context.Background(), res.Workflow.ID, governance.RoleGameDirector, "too strong")
	require.NoError(t, err)
	_, err = f.engine.Rollback(context.Background(), "fireball", res.Entry.ID, "bob")
	assert.ErrorIs(t, err, governance.ErrEntryNotApplied)
}

func TestEngine_Update_RejectsActiveFlag(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	_, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Active: skill.BoolPtr(false),
	}, "alice", "sneaky deactivation")
	assert.ErrorIs(t, err, governance.ErrActiveImmutable)

	_, err = f.engine.RequestReview(context.Background(), "fireball", skill.Draft{
		Active: skill.BoolPtr(false),
	}, "alice", "sneaky deactivation with sign-off")
	assert.ErrorIs(t, err, governance.ErrActiveImmutable)

	s, _ := f.engine.Get("fireball")
	assert.True(t, s.Active, "deactivation must go through Delete")
}

func TestEngine_Approve_EvictedEntryCancelsWorkflow(t *testing.T) {
	f := newEngineFixture(t, func(cfg *governance.EngineConfig) {
		cfg.ChangeLogCapacity = 2
	})
	f.mustCreate(t, "fireball", 100, 5)

	res, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 130},
		},
	}, "alice", "buff fire tree")
	require.NoError(t, err)
	require.False(t, res.Applied)

	// Churn on other skills ages the pending entry out of the log.
	f.mustCreate(t, "frostbolt", 80, 4)
	f.mustCreate(t, "arcane-blast", 70, 3)

	_, err = f.engine.Approve(context.Background(), res.Workflow.ID, governance.RoleLeadDesigner, "lead")
	assert.ErrorIs(t, err, governance.ErrEntryNotFound)

	w, ok := f.engine.Workflow(res.Workflow.ID)
	require.True(t, ok)
	assert.Equal(t, governance.StatusCancelled, w.Status)

	s, _ := f.engine.Get("fireball")
	assert.Equal(t, 100.0, s.TotalDamage())

	// The skill is unblocked for a fresh proposal.
	_, err = f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 130},
		},
	}, "alice", "resubmitted buff")
	assert.NoError(t, err)
}

func TestEngine_ChangeLogs_StableWhileApprovalLands(t *testing.T) {
	f := newEngineFixture(t)
	f.mustCreate(t, "fireball", 100, 5)

	res, err := f.engine.Update(context.Background(), "fireball", skill.Draft{
		Effects: []skill.Effect{
			{Kind: skill.EffectDamage, Target: "enemy", Value: 130},
		},
	}, "alice", "buff fire tree")
	require.NoError(t, err)

	// Readers marshal log entries while the final approvals land; the
	// log hands out copies, so the writes never touch what they hold.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			for _, e := range f.engine.ChangeLogs("fireball", 0) {
				if _, err := json.Marshal(e); err != nil {
					t.Error(err)
					return
				}
			}
		}
	}()

	_, err = f.engine.Approve(context.Background(), res.Workflow.ID, governance.RoleLeadDesigner, "lead")
	require.NoError(t, err)
	_, err = f.engine.Approve(context.Background(), res.Workflow.ID, governance.RoleBalanceTeam, "balance")
	require.NoError(t, err)
	<-done

	entries := f.engine.ChangeLogs("fireball", 1)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Approved)
	assert.Equal(t, "balance", entries[0].ApprovedBy)
}

func TestEngine_EvictedEntriesReachArchive(t *testing.T) {
	f := newEngineFixture(t, func(cfg *governance.EngineConfig) {
		cfg.ChangeLogCapacity = 2
	})
	f.mustCreate(t, "fireball", 100, 5)
	f.mustCreate(t, "frostbolt", 80, 4)
	f.mustCreate(t, "arcane-blast", 70, 3)

	require.Len(t, f.archive.entries, 1)
	assert.Equal(t, "fireball", f.archive.entries[0].SkillID)
}
