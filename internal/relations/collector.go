package relations

import "sort"

// RelationMeta is the Collector's per-tracked-relation bookkeeping record: a
// relation paired with a count of members it is still waiting on. It lives
// inside the Collector's relation arena at a stable Offset; MemberMeta
// entries reference it by that offset rather than by pointer so relocating
// the arena never invalidates them.
type RelationMeta struct {
	relation    Relation
	needMembers int
	vacated     bool
}

// HasAllMembers reports whether every member this relation's keep_member
// hook asked for has been captured.
func (rm *RelationMeta) HasAllMembers() bool { return rm.needMembers == 0 }

// NeedMembers returns the relation's current outstanding-member count.
func (rm *RelationMeta) NeedMembers() int { return rm.needMembers }

// Relation returns the tracked relation itself.
func (rm *RelationMeta) Relation() Relation { return rm.relation }

// memberMeta is the Collector's per-tracked-member-slot record: one entry
// per (relation, position) pairing waiting on a member id. Entries for a
// single Kind are kept in one slice, sorted by memberID once pass 1 ends,
// so pass 2 can equal_range it with binary search.
type memberMeta struct {
	memberID      int64
	relationIndex Offset // offset of the owning RelationMeta in the relation arena
	position      int
	offset        Offset // offset of the captured object in the members arena
	hasOffset     bool
	removed       bool
}

// Hooks is the set of override points a Collector consumer supplies.
// BaseHooks gives every method but CompleteRelation a no-op default;
// embedding it and defining only CompleteRelation is the common case.
type Hooks interface {
	// KeepRelation filters at pass 1; relations it rejects are never
	// tracked and never reach CompleteRelation.
	KeepRelation(c *Collector, r Relation) bool
	// KeepMember filters individual members at pass 1. A rejected member
	// has its Ref zeroed in place and is never looked for in pass 2.
	KeepMember(c *Collector, r Relation, ref Ref) bool
	// CompleteRelation fires once a relation's every kept member has been
	// captured. It is the payload hook; there is no default implementation.
	CompleteRelation(c *Collector, rm *RelationMeta) error
	// NodeNotInAnyRelation, WayNotInAnyRelation, and RelationNotInAnyRelation
	// are optional side channels fired during pass 2 for objects that no
	// tracked relation was waiting on.
	NodeNotInAnyRelation(c *Collector, o Object)
	WayNotInAnyRelation(c *Collector, o Object)
	RelationNotInAnyRelation(c *Collector, o Object)
	// Flush runs once pass 2 has seen every input object.
	Flush(c *Collector) error
}

// BaseHooks is an embeddable zero-value implementation of every Hooks
// method except CompleteRelation. An embedder that does not define
// CompleteRelation itself will fail to satisfy Hooks at compile time,
// mirroring the "MANDATORY override" requirement without runtime checks.
type BaseHooks struct{}

func (BaseHooks) KeepRelation(*Collector, Relation) bool      { return true }
func (BaseHooks) KeepMember(*Collector, Relation, Ref) bool   { return true }
func (BaseHooks) NodeNotInAnyRelation(*Collector, Object)     {}
func (BaseHooks) WayNotInAnyRelation(*Collector, Object)      {}
func (BaseHooks) RelationNotInAnyRelation(*Collector, Object) {}
func (BaseHooks) Flush(*Collector) error                      { return nil }

// MemoryStats is a point-in-time capacity snapshot of a Collector, as
// returned by UsedMemory. It separates measurement from logging: callers
// decide whether and how to report it.
type MemoryStats struct {
	RelationCount      int
	MemberMetaCounts   [numKinds]int
	RelationArenaBytes int
	MembersArenaBytes  int
}

// IncompleteRelation pairs a relation that never reached completion with
// how many of its kept members were still missing at end of input.
type IncompleteRelation struct {
	Relation    Relation
	NeedMembers int
}

// Collector orchestrates the classic two-pass relation assembly scan: pass
// 1 (ReadRelations) extracts relations of interest and their member
// wish-list; pass 2 (FindAndAddObject, driven once per incoming object)
// captures wanted members and fires CompleteRelation as soon as a
// relation's full member set is in hand.
//
// A single Collector is interested in whichever of nodes/ways/relations
// TrackNodes/TrackWays/TrackRelations request; the original design
// expresses this as three template booleans, but a Go Collector simply
// carries the flags at runtime and skips populating member-meta vectors
// for kinds it was not asked to track.
type Collector struct {
	hooks Hooks

	trackNodes, trackWays, trackRelations bool

	relArena *ObjectArena[RelationMeta]

	memberMeta [numKinds][]memberMeta
	sorted     bool

	membersArena Arena[Object]
	purger       *Purger

	completions int
}

// NewCollector creates a Collector that fires hooks as relations and their
// members are observed. membersArena backs the captured-member store
// (typically NewObjectArena[Object](...) for in-memory runs, or a
// GobArena[Object] wrapping a ByteArena for disk-backed ones); purgeEvery
// is how many completions elapse between compactions of membersArena (0
// selects the default of 10000, per §4.5's purge schedule).
func NewCollector(hooks Hooks, trackNodes, trackWays, trackRelations bool, membersArena Arena[Object], purgeEvery int) *Collector {
	c := &Collector{
		hooks:          hooks,
		trackNodes:     trackNodes,
		trackWays:      trackWays,
		trackRelations: trackRelations,
		relArena:       NewObjectArena[RelationMeta](1024),
		membersArena:   membersArena,
	}
	c.purger = NewPurger(membersArena, purgeEvery)
	return c
}

// wants reports whether the collector is tracking members of the given kind.
func (c *Collector) wants(k Kind) bool {
	switch k {
	case KindNode:
		return c.trackNodes
	case KindWay:
		return c.trackWays
	case KindRelation:
		return c.trackRelations
	default:
		return false
	}
}

// ReadRelations drives pass 1 over input, tracking every relation the
// KeepRelation hook accepts and every member its KeepMember hook wants.
// After input is drained, the per-kind member-meta vectors are sorted by
// member id so pass 2 can use binary search; no further relation may be
// added afterward.
func (c *Collector) ReadRelations(input <-chan Relation) {
	for r := range input {
		c.addRelation(r)
	}
	c.sortMemberMeta()
}

func (c *Collector) addRelation(r Relation) {
	if !c.hooks.KeepRelation(c, r) {
		return
	}

	off := c.relArena.Add(RelationMeta{relation: r})
	rm := c.relArena.Get(off)

	members := r.Members()
	for n, ref := range members {
		if ref.ID == 0 {
			continue
		}
		if c.wants(ref.Kind) && c.hooks.KeepMember(c, r, ref) {
			c.memberMeta[ref.Kind.index()] = append(c.memberMeta[ref.Kind.index()], memberMeta{
				memberID:      ref.ID,
				relationIndex: off,
				position:      n,
			})
			rm.needMembers++
		} else {
			r.ZeroMemberRef(n)
		}
	}

	if rm.needMembers == 0 {
		c.relArena.Rollback()
		return
	}
	c.relArena.Commit()
}

// sortMemberMeta sorts each kind's member-meta vector by member id. Called
// once, automatically, at the end of ReadRelations.
func (c *Collector) sortMemberMeta() {
	for k := range c.memberMeta {
		entries := c.memberMeta[k]
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].memberID < entries[j].memberID })
	}
	c.sorted = true
}

func equalRangeMembers(entries []memberMeta, id int64) (int, int) {
	lo := sort.Search(len(entries), func(i int) bool { return entries[i].memberID >= id })
	hi := sort.Search(len(entries), func(i int) bool { return entries[i].memberID > id })
	return lo, hi
}

// FindAndAddObject is pass 2's per-object driver. It returns true iff o was
// referenced by at least one still-live tracked member slot (regardless of
// whether that reference completed a relation); false means no relation is
// waiting on o, and the appropriate *NotInAnyRelation hook has been called.
func (c *Collector) FindAndAddObject(o Object) (bool, error) {
	kind := o.Kind()
	entries := c.memberMeta[kind.index()]
	lo, hi := equalRangeMembers(entries, o.ID())

	anyLive := false
	for i := lo; i < hi; i++ {
		if !entries[i].removed {
			anyLive = true
			break
		}
	}
	if !anyLive {
		c.notInAnyRelation(kind, o)
		return false, nil
	}

	off := c.membersArena.Add(o)
	c.membersArena.Commit()
	for i := lo; i < hi; i++ {
		if entries[i].removed {
			continue
		}
		entries[i].offset = off
		entries[i].hasOffset = true
	}

	// Process every non-removed entry in the range (see DESIGN.md for why
	// this departs from the original's early-break-on-first-removed-entry).
	for i := lo; i < hi; i++ {
		e := &entries[i]
		if e.removed {
			continue
		}
		rm := c.relArena.Get(e.relationIndex)
		rm.needMembers--
		if !rm.HasAllMembers() {
			continue
		}
		if err := c.hooks.CompleteRelation(c, rm); err != nil {
			return true, err
		}
		c.clearMemberMetas(rm, e.relationIndex)
		*rm = RelationMeta{vacated: true}
		c.relArena.SetRemoved(e.relationIndex)
		c.completions++
		c.purger.RecordCompletion(c)
	}
	return true, nil
}

func (c *Collector) notInAnyRelation(kind Kind, o Object) {
	switch kind {
	case KindNode:
		c.hooks.NodeNotInAnyRelation(c, o)
	case KindWay:
		c.hooks.WayNotInAnyRelation(c, o)
	case KindRelation:
		c.hooks.RelationNotInAnyRelation(c, o)
	}
}

// clearMemberMetas releases bookkeeping for a just-completed relation: for
// each member it asked for, if this was the last relation referencing that
// member id, the captured object is tombstoned in the members arena; then
// the member-meta entry belonging to this relation is itself tombstoned.
func (c *Collector) clearMemberMetas(rm *RelationMeta, relIdx Offset) {
	for _, ref := range rm.relation.Members() {
		if ref.ID == 0 {
			continue
		}
		entries := c.memberMeta[ref.Kind.index()]
		lo, hi := equalRangeMembers(entries, ref.ID)

		live := 0
		for i := lo; i < hi; i++ {
			if !entries[i].removed {
				live++
			}
		}
		if live == 1 {
			for i := lo; i < hi; i++ {
				if !entries[i].removed && entries[i].hasOffset {
					c.membersArena.SetRemoved(entries[i].offset)
					break
				}
			}
		}

		for i := lo; i < hi; i++ {
			if !entries[i].removed && entries[i].relationIndex == relIdx {
				entries[i].removed = true
				break
			}
		}
	}
}

// MovingInBuffer implements MoveListener for the members arena: it rewrites
// every MemberMeta.offset equal to old to new, so a PurgeRemoved triggered
// by the Purger never leaves a stale reference behind.
func (c *Collector) MovingInBuffer(old, new Offset) {
	for k := range c.memberMeta {
		for i := range c.memberMeta[k] {
			e := &c.memberMeta[k][i]
			if e.hasOffset && e.offset == old {
				e.offset = new
			}
		}
	}
}

// GetRelation returns the relation wrapped by rm.
func (c *Collector) GetRelation(rm *RelationMeta) Relation { return rm.relation }

// GetMember returns the captured object stored at off in the members
// arena. off must come from a MemberMeta observed during the lifetime of
// the CompleteRelation call it was captured in.
func (c *Collector) GetMember(off Offset) Object { return *c.membersArena.Get(off) }

// GetMemberByID looks up a currently-captured member by (kind, id). It
// returns false if no tracked entry for that id has an object captured.
func (c *Collector) GetMemberByID(kind Kind, id int64) (Object, bool) {
	entries := c.memberMeta[kind.index()]
	lo, hi := equalRangeMembers(entries, id)
	for i := lo; i < hi; i++ {
		if !entries[i].removed && entries[i].hasOffset {
			return *c.membersArena.Get(entries[i].offset), true
		}
	}
	var zero Object
	return zero, false
}

// Flush calls the Flush hook once pass 2 has drained its input.
func (c *Collector) Flush() error { return c.hooks.Flush(c) }

// GetIncompleteRelations enumerates every tracked relation whose member set
// was never fully observed. Results reference the collector's relation
// arena and remain valid until the Collector is discarded or
// CompactRelations is called.
func (c *Collector) GetIncompleteRelations() []IncompleteRelation {
	var out []IncompleteRelation
	for i := 0; i < c.relArena.Len(); i++ {
		rm := c.relArena.Get(Offset(i))
		if rm.vacated || rm.HasAllMembers() {
			continue
		}
		out = append(out, IncompleteRelation{Relation: rm.relation, NeedMembers: rm.needMembers})
	}
	return out
}

// relationMoveAdapter adapts MovingInBuffer notifications from the relation
// arena (as opposed to the members arena, which Collector itself listens
// for) into MemberMeta.relationIndex rewrites.
type relationMoveAdapter struct{ c *Collector }

func (a relationMoveAdapter) MovingInBuffer(old, new Offset) {
	for k := range a.c.memberMeta {
		for i := range a.c.memberMeta[k] {
			e := &a.c.memberMeta[k][i]
			if !e.removed && e.relationIndex == old {
				e.relationIndex = new
			}
		}
	}
}

// CompactRelations rebuilds the relation arena without its vacated
// (completed) slots, rewriting every MemberMeta.relationIndex that pointed
// past them. It is a maintenance helper for long-running processes with
// millions of relations, grounded in the original's clean_assembled_relations;
// unlike Purger it is not scheduled automatically and callers invoke it when
// convenient (e.g. between PBF passes is not applicable here, but a caller
// processing relations in batches may call it between batches).
func (c *Collector) CompactRelations() {
	c.relArena.PurgeRemoved(relationMoveAdapter{c})
}

// UsedMemory returns a capacity snapshot. Logging or exporting it (e.g. via
// internal/report) is the caller's job.
func (c *Collector) UsedMemory() MemoryStats {
	var counts [numKinds]int
	for k := range c.memberMeta {
		counts[k] = len(c.memberMeta[k])
	}
	return MemoryStats{
		RelationCount:      c.relArena.Len(),
		MemberMetaCounts:   counts,
		RelationArenaBytes: c.relArena.Bytes(),
		MembersArenaBytes:  c.membersArena.Bytes(),
	}
}
