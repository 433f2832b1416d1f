package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/bidvictrix/skillforge/internal/skill"
)

// checkFunction is the global every balance-check script must define.
// It receives a skill snapshot table and returns (ok, message).
const checkFunction = "check"

// CheckResult is the outcome of one scripted balance check against one
// skill.
type CheckResult struct {
	// Name is the check's file name without the .lua extension.
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Runner loads designer-authored Lua balance checks from a directory
// and evaluates them against skill snapshots. Each evaluation runs in
// a fresh sandboxed VM, so a check can never observe state left behind
// by a previous run.
//
// Runner is safe for concurrent Run after LoadDir completes.
type Runner struct {
	mu        sync.RWMutex
	sources   map[string]string // check name → script source
	instLimit int
	logger    *zap.Logger
}

// NewRunner creates a Runner with no checks loaded.
//
// Precondition: logger must be non-nil. instLimit <= 0 uses
// DefaultInstructionLimit.
func NewRunner(instLimit int, logger *zap.Logger) *Runner {
	return &Runner{
		sources:   make(map[string]string),
		instLimit: instLimit,
		logger:    logger,
	}
}

// LoadDir reads every *.lua file in dir and registers it as a check
// named after the file. Reloading a directory replaces the check set.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns an error if any script cannot be read or does
// not parse; on error the previous check set is kept.
func (r *Runner) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading check dir %q: %w", dir, err)
	}

	loaded := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("scripting: reading check %q: %w", path, err)
		}
		name := strings.TrimSuffix(e.Name(), ".lua")
		if err := r.compileCheck(name, string(src)); err != nil {
			return err
		}
		loaded[name] = string(src)
	}

	r.mu.Lock()
	r.sources = loaded
	r.mu.Unlock()
	r.logger.Info("balance check scripts loaded",
		zap.String("dir", dir),
		zap.Int("checks", len(loaded)),
	)
	return nil
}

// Register adds one check from source, replacing any check with the
// same name. Used by tests and by callers that load scripts from
// somewhere other than a directory.
func (r *Runner) Register(name, source string) error {
	if err := r.compileCheck(name, source); err != nil {
		return err
	}
	r.mu.Lock()
	r.sources[name] = source
	r.mu.Unlock()
	return nil
}

// Names returns the loaded check names in sorted order.
func (r *Runner) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for name := range r.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of loaded checks.
func (r *Runner) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// compileCheck verifies the script parses and defines the check
// function.
func (r *Runner) compileCheck(name, source string) error {
	L, cancel := NewSandboxedState(r.instLimit)
	defer cancel()
	defer L.Close()

	if err := L.DoString(source); err != nil {
		return fmt.Errorf("scripting: loading check %q: %w", name, err)
	}
	if L.GetGlobal(checkFunction).Type() != lua.LTFunction {
		return fmt.Errorf("scripting: check %q does not define a %q function", name, checkFunction)
	}
	return nil
}

// Run evaluates every loaded check against the skill and returns one
// result per check, ordered by check name. Script runtime errors fail
// the individual check and are logged at Warn level, never propagated.
//
// Precondition: s must be non-nil.
// Postcondition: Returns a non-nil slice with len == Len().
func (r *Runner) Run(s *skill.Skill) []CheckResult {
	r.mu.RLock()
	names := make([]string, 0, len(r.sources))
	sources := make(map[string]string, len(r.sources))
	for name, src := range r.sources {
		names = append(names, name)
		sources[name] = src
	}
	r.mu.RUnlock()
	sort.Strings(names)

	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		results = append(results, r.runOne(name, sources[name], s))
	}
	return results
}

func (r *Runner) runOne(name, source string, s *skill.Skill) CheckResult {
	L, cancel := NewSandboxedState(r.instLimit)
	defer cancel()
	defer L.Close()

	if err := L.DoString(source); err != nil {
		r.logger.Warn("balance check failed to load",
			zap.String("check", name),
			zap.String("skill_id", s.ID),
			zap.Error(err),
		)
		return CheckResult{Name: name, Passed: false, Message: err.Error()}
	}

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(checkFunction),
		NRet:    2,
		Protect: true,
	}, skillToLua(L, s)); err != nil {
		r.logger.Warn("balance check runtime error",
			zap.String("check", name),
			zap.String("skill_id", s.ID),
			zap.Error(err),
		)
		return CheckResult{Name: name, Passed: false, Message: err.Error()}
	}

	msg := L.Get(-1)
	ok := L.Get(-2)
	L.Pop(2)

	result := CheckResult{Name: name, Passed: lua.LVAsBool(ok)}
	if msg != lua.LNil {
		result.Message = lua.LVAsString(msg)
	}
	return result
}

// skillToLua renders a read-only snapshot of the skill as a Lua table.
// Mutating the table inside a script has no effect on the skill.
func skillToLua(L *lua.LState, s *skill.Skill) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(s.ID))
	L.SetField(t, "name", lua.LString(s.Name))
	L.SetField(t, "type", lua.LString(string(s.Type)))
	L.SetField(t, "category", lua.LString(string(s.Category)))
	L.SetField(t, "element", lua.LString(string(s.Element)))
	L.SetField(t, "tree", lua.LString(s.Tree))
	L.SetField(t, "level", lua.LNumber(s.Level))
	L.SetField(t, "max_level", lua.LNumber(s.MaxLevel))
	L.SetField(t, "cooldown", lua.LNumber(s.Cooldown))
	L.SetField(t, "cast_time", lua.LNumber(s.CastTime))
	L.SetField(t, "range", lua.LNumber(s.Range))
	L.SetField(t, "active", lua.LBool(s.Active))
	L.SetField(t, "total_damage", lua.LNumber(s.TotalDamage()))
	L.SetField(t, "total_healing", lua.LNumber(s.TotalHealing()))

	cost := L.NewTable()
	L.SetField(cost, "mana", lua.LNumber(s.Cost.Mana))
	L.SetField(cost, "health", lua.LNumber(s.Cost.Health))
	L.SetField(cost, "total", lua.LNumber(s.Cost.Total()))
	L.SetField(t, "cost", cost)

	effects := L.NewTable()
	for _, e := range s.Effects {
		et := L.NewTable()
		L.SetField(et, "kind", lua.LString(string(e.Kind)))
		L.SetField(et, "target", lua.LString(e.Target))
		L.SetField(et, "value", lua.LNumber(e.Value))
		L.SetField(et, "duration", lua.LNumber(e.Duration))
		L.SetField(et, "stat", lua.LString(e.Stat))
		effects.Append(et)
	}
	L.SetField(t, "effects", effects)

	tags := L.NewTable()
	for _, tag := range s.Tags {
		tags.Append(lua.LString(tag))
	}
	L.SetField(t, "tags", tags)

	return t
}
