package relations

import "sort"

// entryStatus is the lifecycle state of a single tracked (member, relation)
// pairing inside a MembersDatabase.
type entryStatus uint8

const (
	// StatusTracked means the member has been requested by some relation
	// but has not yet been seen in the input.
	StatusTracked entryStatus = iota
	// StatusAvailable means the member has been captured and is stashed.
	StatusAvailable
	// StatusRemoved means this (member, relation) pairing no longer needs
	// tracking, typically because its relation completed or was removed.
	StatusRemoved
)

type trackedMember struct {
	memberID    int64
	relation    RelationHandle
	position    int
	stashHandle Handle
	hasStash    bool
	status      entryStatus
}

// Counts is a point-in-time snapshot of a MembersDatabase's entry states.
type Counts struct {
	Tracked, Available, Removed int
}

// MembersDatabase tracks, for a single member type T, every (relation,
// position) pairing waiting on a given member id, with one stashed copy of
// T per id shared across all relations that reference it.
//
// Usage is track() calls (any order) until every relation of interest has
// registered its wanted members, then prepare() once, then any number of
// add()/remove()/get() calls as objects arrive from the input.
type MembersDatabase[T any] struct {
	stash    *ItemStash
	entries  []trackedMember
	prepared bool
}

// NewMembersDatabase creates a database for member type T, storing
// captured objects in stash (which may be shared with a RelationsDatabase
// or other MembersDatabase[T] instances).
func NewMembersDatabase[T any](stash *ItemStash) *MembersDatabase[T] {
	return &MembersDatabase[T]{stash: stash}
}

// Track registers that rel needs the member with the given id at the given
// position in its member list, and increments rel's outstanding-member
// count. Track must not be called after Prepare.
func (m *MembersDatabase[T]) Track(rel RelationHandle, memberID int64, position int) {
	if m.prepared {
		panic(invariantf("Track called after Prepare"))
	}
	m.entries = append(m.entries, trackedMember{
		memberID: memberID,
		relation: rel,
		position: position,
		status:   StatusTracked,
	})
	rel.incrementNeedMembers()
}

// Prepare sorts the tracked entries by member id so Add/Get/Remove can use
// binary search. No further Track calls are permitted afterward.
func (m *MembersDatabase[T]) Prepare() {
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].memberID < m.entries[j].memberID
	})
	m.prepared = true
}

func (m *MembersDatabase[T]) equalRange(id int64) (int, int) {
	lo := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].memberID >= id })
	hi := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].memberID > id })
	return lo, hi
}

// Add offers object to the database. If at least one non-removed tracked
// entry exists for object's id, exactly one copy of object is stashed, the
// handle is recorded on every matching non-removed entry, each such
// entry's relation decrements its outstanding-member count, and
// onComplete is invoked once per relation whose count reaches zero as a
// result. Add returns true iff at least one entry matched.
func (m *MembersDatabase[T]) Add(id int64, object T, onComplete func(RelationHandle)) bool {
	lo, hi := m.equalRange(id)
	if lo == hi {
		return false
	}
	anyLive := false
	for i := lo; i < hi; i++ {
		if m.entries[i].status != StatusRemoved {
			anyLive = true
			break
		}
	}
	if !anyLive {
		return false
	}

	h := m.stash.Add(object)
	for i := lo; i < hi; i++ {
		e := &m.entries[i]
		if e.status == StatusRemoved {
			continue
		}
		e.stashHandle = h
		e.hasStash = true
		e.status = StatusAvailable
		e.relation.gotOneMember()
		if e.relation.HasAllMembers() {
			onComplete(e.relation)
		}
	}
	return true
}

// Remove transitions the entry matching (memberID, relationID) to removed.
// If no non-removed entry for memberID remains afterward, the stashed
// object (if any) is released.
func (m *MembersDatabase[T]) Remove(memberID, relationID int64) {
	lo, hi := m.equalRange(memberID)
	for i := lo; i < hi; i++ {
		e := &m.entries[i]
		if e.status == StatusRemoved {
			continue
		}
		if e.relation.ID() == relationID {
			e.status = StatusRemoved
			break
		}
	}

	stillLive := false
	for i := lo; i < hi; i++ {
		if m.entries[i].status != StatusRemoved {
			stillLive = true
			break
		}
	}
	if stillLive {
		return
	}
	for i := lo; i < hi; i++ {
		if m.entries[i].hasStash {
			m.stash.Remove(m.entries[i].stashHandle)
			m.entries[i].hasStash = false
			break
		}
	}
}

// Get returns the stashed object for memberID if it has been captured
// (status available for at least one matching entry).
func (m *MembersDatabase[T]) Get(memberID int64) (T, bool) {
	lo, hi := m.equalRange(memberID)
	for i := lo; i < hi; i++ {
		if m.entries[i].status == StatusAvailable {
			v, ok := m.stash.Get(m.entries[i].stashHandle)
			if ok {
				return v.(T), true
			}
		}
	}
	var zero T
	return zero, false
}

// Count returns a snapshot of how many tracked entries are in each state.
func (m *MembersDatabase[T]) Count() Counts {
	var c Counts
	for _, e := range m.entries {
		switch e.status {
		case StatusTracked:
			c.Tracked++
		case StatusAvailable:
			c.Available++
		case StatusRemoved:
			c.Removed++
		}
	}
	return c
}

// Size returns the total number of tracked entries, including removed ones.
func (m *MembersDatabase[T]) Size() int { return len(m.entries) }
