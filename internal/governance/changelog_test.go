package governance_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidvictrix/skillforge/internal/governance"
)

func logEntry(id, skillID string, ts time.Time) *governance.Entry {
	return &governance.Entry{
		ID:        id,
		SkillID:   skillID,
		Kind:      governance.ChangeUpdate,
		Timestamp: ts,
		Author:    "tester",
	}
}

func TestChangeLog_Append_EvictsOldestAtCapacity(t *testing.T) {
	log := governance.NewChangeLog(3)
	base := time.Now()

	for i := 0; i < 3; i++ {
		evicted := log.Append(logEntry(fmt.Sprintf("e%d", i), "fireball", base.Add(time.Duration(i)*time.Second)))
		assert.Nil(t, evicted)
	}
	require.Equal(t, 3, log.Len())

	evicted := log.Append(logEntry("e3", "fireball", base.Add(3*time.Second)))
	require.NotNil(t, evicted)
	assert.Equal(t, "e0", evicted.ID)
	assert.Equal(t, 3, log.Len())

	_, ok := log.Get("e0")
	assert.False(t, ok, "evicted entry must not be retrievable")
	_, ok = log.Get("e3")
	assert.True(t, ok)
}

func TestChangeLog_List_NewestFirstWithFilterAndLimit(t *testing.T) {
	log := governance.NewChangeLog(10)
	base := time.Now()

	log.Append(logEntry("a1", "fireball", base))
	log.Append(logEntry("b1", "frostbolt", base.Add(time.Second)))
	log.Append(logEntry("a2", "fireball", base.Add(2*time.Second)))
	log.Append(logEntry("a3", "fireball", base.Add(3*time.Second)))

	all := log.List("", 0)
	require.Len(t, all, 4)
	assert.Equal(t, "a3", all[0].ID)
	assert.Equal(t, "a1", all[3].ID)

	fireball := log.List("fireball", 2)
	require.Len(t, fireball, 2)
	assert.Equal(t, "a3", fireball[0].ID)
	assert.Equal(t, "a2", fireball[1].ID)

	assert.Empty(t, log.List("unknown", 0))
}

func TestChangeLog_CountSince(t *testing.T) {
	log := governance.NewChangeLog(10)
	base := time.Now()

	log.Append(logEntry("old", "fireball", base.Add(-48*time.Hour)))
	log.Append(logEntry("recent1", "fireball", base.Add(-time.Hour)))
	log.Append(logEntry("recent2", "frostbolt", base.Add(-time.Minute)))

	assert.Equal(t, 2, log.CountSince(base.Add(-24*time.Hour)))
	assert.Equal(t, 3, log.CountSince(base.Add(-72*time.Hour)))
	assert.Equal(t, 0, log.CountSince(base))
}

func TestChangeLog_Get_ReturnsCopy(t *testing.T) {
	log := governance.NewChangeLog(10)
	log.Append(logEntry("e1", "fireball", time.Now()))

	got, ok := log.Get("e1")
	require.True(t, ok)
	got.Approved = true
	got.ApprovedBy = "mallory"

	again, ok := log.Get("e1")
	require.True(t, ok)
	assert.False(t, again.Approved, "mutating an accessor result must not touch the log")
	assert.Empty(t, again.ApprovedBy)
}

func TestChangeLog_MarkApproved(t *testing.T) {
	log := governance.NewChangeLog(10)
	log.Append(logEntry("e1", "fireball", time.Now()))

	marked, ok := log.MarkApproved("e1", "balance")
	require.True(t, ok)
	assert.True(t, marked.Approved)
	assert.Equal(t, "balance", marked.ApprovedBy)

	got, ok := log.Get("e1")
	require.True(t, ok)
	assert.True(t, got.Approved)
	assert.Equal(t, "balance", got.ApprovedBy)

	_, ok = log.MarkApproved("evicted-or-unknown", "balance")
	assert.False(t, ok)
}

func TestChangeLog_OrderSurvivesWraparound(t *testing.T) {
	log := governance.NewChangeLog(4)
	base := time.Now()

	for i := 0; i < 10; i++ {
		log.Append(logEntry(fmt.Sprintf("e%d", i), "fireball", base.Add(time.Duration(i)*time.Second)))
	}

	got := log.List("", 0)
	require.Len(t, got, 4)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("e%d", 9-i), e.ID)
	}
}
