package governance

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/bidvictrix/skillforge/internal/skill"
)

// Entry is one immutable audit record of an applied or pending change.
// Approved/ApprovedBy are the only fields written after append, and
// only through MarkApproved under the log's lock.
type Entry struct {
	ID         string              `json:"id"`
	SkillID    string              `json:"skill_id"`
	Kind       ChangeKind          `json:"kind"`
	Timestamp  time.Time           `json:"timestamp"`
	Author     string              `json:"author"`
	Diffs      []skill.FieldChange `json:"-"`
	Reason     string              `json:"reason"`
	Impact     Impact              `json:"impact"`
	Approved   bool                `json:"approved"`
	ApprovedBy string              `json:"approved_by,omitempty"`
	// RollbackOf references the entry this rollback reverted; empty for
	// every other kind.
	RollbackOf string `json:"rollback_of,omitempty"`
}

// clone returns a copy safe to hand outside the log's lock. FieldChange
// values are immutable, so copying the slice header chain suffices.
func (e *Entry) clone() *Entry {
	out := *e
	out.Diffs = append([]skill.FieldChange{}, e.Diffs...)
	return &out
}

// DiffLines renders the field diffs as human-readable audit lines.
func (e *Entry) DiffLines() []string {
	out := make([]string, 0, len(e.Diffs))
	for _, d := range e.Diffs {
		out = append(out, d.Describe())
	}
	return out
}

// MarshalJSON renders the entry with its diffs as audit lines. The
// typed diffs themselves do not cross the wire; they only live in the
// log and the archive.
func (e *Entry) MarshalJSON() ([]byte, error) {
	type alias Entry
	return json.Marshal(struct {
		*alias
		Changes []string `json:"changes,omitempty"`
	}{alias: (*alias)(e), Changes: e.DiffLines()})
}

// ChangeLog is an append-only, size-bounded history ordered by append
// time. Capacity is enforced in exactly one place: Append evicts the
// oldest entry once the ring is full and hands it back so the engine
// can archive it.
//
// All methods are safe for concurrent use.
type ChangeLog struct {
	mu       sync.RWMutex
	entries  []*Entry // ring storage, len == capacity
	head     int      // index of the oldest entry
	count    int
	capacity int
	index    map[string]*Entry // entry id → entry, live entries only
}

// NewChangeLog creates an empty log bounded to the given capacity.
//
// Precondition: capacity must be >= 1.
func NewChangeLog(capacity int) *ChangeLog {
	if capacity < 1 {
		capacity = 1
	}
	return &ChangeLog{
		entries:  make([]*Entry, capacity),
		capacity: capacity,
		index:    make(map[string]*Entry),
	}
}

// Append adds e as the newest entry, evicting the oldest entry if the
// log is at capacity.
//
// Precondition: e must be non-nil with a unique non-empty ID.
// Postcondition: Returns the evicted entry, or nil if there was room.
func (l *ChangeLog) Append(e *Entry) *Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var evicted *Entry
	if l.count == l.capacity {
		evicted = l.entries[l.head]
		delete(l.index, evicted.ID)
		l.entries[l.head] = nil
		l.head = (l.head + 1) % l.capacity
		l.count--
	}

	pos := (l.head + l.count) % l.capacity
	l.entries[pos] = e
	l.count++
	l.index[e.ID] = e

	return evicted
}

// Get returns a copy of the live entry with the given id.
//
// Postcondition: Returns (entry, true) if found, or (nil, false) if the
// id is unknown or the entry has been evicted.
func (l *ChangeLog) Get(id string) (*Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return e.clone(), true
}

// MarkApproved records the final sign-off on a live entry.
//
// Postcondition: Returns a copy of the updated entry, or (nil, false)
// if the entry has been evicted.
func (l *ChangeLog) MarkApproved(id, approver string) (*Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.index[id]
	if !ok {
		return nil, false
	}
	e.Approved = true
	e.ApprovedBy = approver
	return e.clone(), true
}

// List returns copies of the entries newest-first, optionally filtered
// by skill id, capped at limit (limit <= 0 means no cap).
//
// Postcondition: Returns a non-nil slice (may be empty).
func (l *ChangeLog) List(skillID string, limit int) []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []*Entry{}
	for i := l.count - 1; i >= 0; i-- {
		e := l.entries[(l.head+i)%l.capacity]
		if skillID != "" && e.SkillID != skillID {
			continue
		}
		out = append(out, e.clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of live entries.
func (l *ChangeLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// CountSince returns the number of live entries stamped after cutoff.
func (l *ChangeLog) CountSince(cutoff time.Time) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for i := 0; i < l.count; i++ {
		if l.entries[(l.head+i)%l.capacity].Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}
