// Package relations implements the relation assembly engine: given a
// two-pass stream of OSM objects, it identifies relations of interest,
// remembers which member objects they still need, and hands each relation
// to a caller-supplied hook as soon as every wanted member has been seen.
//
// Two façades share the same tracked-reference bookkeeping: Collector
// drives the classic two-pass scan itself (pass 1 builds the wish-list,
// pass 2 fulfills it); RelationsDatabase + MembersDatabase expose the same
// bookkeeping for callers that already have relations loaded and want to
// track members as objects arrive from an arbitrary source.
package relations

import "fmt"

// Kind identifies one of the three OSM object categories.
type Kind uint8

const (
	KindNode Kind = iota
	KindWay
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindWay:
		return "way"
	case KindRelation:
		return "relation"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) index() int { return int(k) }

// numKinds is the number of distinct Kind values; used to size per-kind
// tables (e.g. Collector's member-meta vectors).
const numKinds = 3

// Ref is a typed reference from a relation to another object: its kind, id,
// and role within the parent relation. ID is zeroed by ZeroMemberRef when a
// member is filtered out during pass 1, so a zero ID means "not tracked".
type Ref struct {
	Kind Kind
	ID   int64
	Role string
}

// Object is the minimal surface the engine needs from an incoming stream
// item. Concrete adapters (e.g. internal/pbf) implement this over their own
// OSM library types so the engine stays independent of any particular
// parser.
type Object interface {
	Kind() Kind
	ID() int64
}

// Relation is an Object that additionally exposes its member list. Members
// returns the relation's members in positional order; ZeroMemberRef clears
// the ID of the member at the given position, recording that pass 1 chose
// not to track it.
type Relation interface {
	Object
	Members() []Ref
	ZeroMemberRef(pos int)
}

// InvariantError reports a violated bookkeeping invariant: a handle
// dereferenced after removal, a track() call after prepare(), or similar
// programming errors. These are always fatal; there is no release-mode
// relaxation of the check.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "relations: invariant violated: " + e.Msg }

func invariantf(format string, args ...any) error {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}

// MemberTracker documents the refcount-per-id pattern shared by the
// two-pass Collector and the streaming MembersDatabase: track a wanted
// reference, freeze the index, feed candidate objects, and release a
// reference when a relation no longer needs it. MembersDatabase[T]
// implements this shape; Collector implements the same pattern internally
// over its own member-meta vectors rather than through this interface,
// since it tracks all three kinds at once instead of being parameterized
// over one.
type MemberTracker[T any] interface {
	Track(rel RelationHandle, memberID int64, position int)
	Prepare()
	Add(id int64, object T, onComplete func(RelationHandle)) bool
	Remove(memberID, relationID int64)
}
