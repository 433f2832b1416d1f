package skill

import (
	"sort"
	"sync"
)

// Registry is the authoritative in-memory working set of skills,
// keyed by id. It is populated from the persistence port at startup
// and kept consistent through every governed mutation.
//
// All methods are safe for concurrent use. Accessors return deep
// copies; the registry exclusively owns the live Skill values.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*Skill
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]*Skill)}
}

// Populate replaces the entire working set with the given collection.
// Called once at startup with the persistence port's load result; an
// empty map is valid (first run).
func (r *Registry) Populate(skills map[string]*Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills = make(map[string]*Skill, len(skills))
	for id, s := range skills {
		r.skills[id] = s.Clone()
	}
}

// Get returns a copy of the skill with the given id.
//
// Postcondition: Returns (clone, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(id string) (*Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Exists reports whether a skill with the given id is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.skills[id]
	return ok
}

// Put inserts or replaces the skill under its own id.
//
// Precondition: s must not be nil and s.ID must not be empty.
func (r *Registry) Put(s *Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[s.ID] = s.Clone()
}

// Len returns the number of registered skills, active or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// ActiveCount returns the number of skills whose activation flag is set.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.skills {
		if s.Active {
			n++
		}
	}
	return n
}

// Filter selects skills from the working set.
type Filter struct {
	// Category restricts to one category; empty matches all.
	Category Category
	// Tree restricts to one skill tree; empty matches all.
	Tree string
	// Active, when non-nil, restricts by activation flag.
	Active *bool
}

// List returns copies of every skill matching the filter, sorted by id
// for stable output.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (r *Registry) List(f Filter) []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*Skill{}
	for _, s := range r.skills {
		if f.Category != "" && s.Category != f.Category {
			continue
		}
		if f.Tree != "" && s.Tree != f.Tree {
			continue
		}
		if f.Active != nil && s.Active != *f.Active {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns a deep copy of the whole collection, keyed by id.
// This is what the persistence port saves.
func (r *Registry) Snapshot() map[string]*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Skill, len(r.skills))
	for id, s := range r.skills {
		out[id] = s.Clone()
	}
	return out
}

// Dependents returns the ids of skills (other than id itself) whose
// requirements reference id. Governed deletes are blocked while this
// is non-empty.
//
// Postcondition: Returns a sorted, non-nil slice.
func (r *Registry) Dependents(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []string{}
	for sid, s := range r.skills {
		if sid == id {
			continue
		}
		if s.RequiresSkill(id) {
			out = append(out, sid)
		}
	}
	sort.Strings(out)
	return out
}
