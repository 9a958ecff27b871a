// Package luapolicy implements the scripted variant of the "tag/role
// predicate" collaborator: an operator-supplied Lua script defining
// keep_relation(tags) and keep_member(relation_tags, role) predicates,
// for policy changes that do not warrant a rebuild.
package luapolicy

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Runtime wraps a Lua interpreter holding the keep_relation/keep_member
// globals defined by a loaded script.
type Runtime struct {
	L            *lua.LState
	keepRelation lua.LValue
	keepMember   lua.LValue
}

// NewRuntime creates an interpreter with no script loaded yet.
func NewRuntime() *Runtime {
	return &Runtime{L: lua.NewState(lua.Options{SkipOpenLibs: false})}
}

// Close releases the interpreter.
func (r *Runtime) Close() {
	r.L.Close()
}

// LoadFile loads and runs a policy script, then captures its
// keep_relation/keep_member globals.
func (r *Runtime) LoadFile(path string) error {
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("luapolicy: load %s: %w", path, err)
	}
	r.extractCallbacks()
	return nil
}

// LoadString loads and runs a policy script from source, for testing.
func (r *Runtime) LoadString(code string) error {
	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("luapolicy: load script: %w", err)
	}
	r.extractCallbacks()
	return nil
}

func (r *Runtime) extractCallbacks() {
	r.keepRelation = r.L.GetGlobal("keep_relation")
	r.keepMember = r.L.GetGlobal("keep_member")
}

// HasKeepRelation reports whether the script defined keep_relation.
func (r *Runtime) HasKeepRelation() bool {
	return r.keepRelation != nil && r.keepRelation.Type() == lua.LTFunction
}

// HasKeepMember reports whether the script defined keep_member.
func (r *Runtime) HasKeepMember() bool {
	return r.keepMember != nil && r.keepMember.Type() == lua.LTFunction
}

// KeepRelation calls keep_relation(tags) and returns its boolean result.
// A script that does not define keep_relation keeps everything.
func (r *Runtime) KeepRelation(tags map[string]string) (bool, error) {
	if !r.HasKeepRelation() {
		return true, nil
	}
	result, err := r.call(r.keepRelation, tagsToTable(r.L, tags))
	if err != nil {
		return false, fmt.Errorf("luapolicy: keep_relation: %w", err)
	}
	return result, nil
}

// KeepMember calls keep_member(relation_tags, role) and returns its
// boolean result. A script that does not define keep_member keeps every
// member of a relation already kept.
func (r *Runtime) KeepMember(relationTags map[string]string, role string) (bool, error) {
	if !r.HasKeepMember() {
		return true, nil
	}
	result, err := r.call(r.keepMember, tagsToTable(r.L, relationTags), lua.LString(role))
	if err != nil {
		return false, fmt.Errorf("luapolicy: keep_member: %w", err)
	}
	return result, nil
}

func (r *Runtime) call(fn lua.LValue, args ...lua.LValue) (bool, error) {
	if err := r.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		return false, err
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)
	return lua.LVAsBool(ret), nil
}

func tagsToTable(L *lua.LState, tags map[string]string) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range tags {
		tbl.RawSetString(k, lua.LString(v))
	}
	return tbl
}
