package relations

// Handle is a stable, opaque reference into an ItemStash. It is safe to
// compare and use as a map key. A handle whose slot has been removed must
// not be dereferenced; the generation counter makes that case detectable
// rather than silently aliasing a reused slot.
type Handle struct {
	index uint32
	gen   uint32
}

type stashSlot struct {
	value    any
	gen      uint32
	occupied bool
}

// ItemStash is a handle-indexed object store. Add copies its argument in
// (by value, as any) and returns a handle; Get dereferences a handle; Remove
// releases the slot for reuse. Slots are reused after removal, but each
// reuse bumps a generation counter so a stale handle from before the reuse
// is rejected by Get rather than aliasing the new occupant.
//
// A single ItemStash may be shared by unrelated owners storing different
// concrete types (e.g. RelationsDatabase storing Relation values and
// MembersDatabase[T] storing T values) since values are stored as any and
// type-asserted by the caller that knows what it put there.
type ItemStash struct {
	slots []stashSlot
	free  []uint32
}

// NewItemStash creates an empty stash.
func NewItemStash() *ItemStash {
	return &ItemStash{}
}

// Add stores item and returns a handle for later retrieval.
func (s *ItemStash) Add(item any) Handle {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		slot := &s.slots[idx]
		slot.value = item
		slot.occupied = true
		return Handle{index: idx, gen: slot.gen}
	}
	idx := uint32(len(s.slots))
	s.slots = append(s.slots, stashSlot{value: item, occupied: true})
	return Handle{index: idx, gen: 0}
}

// Get returns the value stored under h, or ok=false if h refers to a
// removed or stale slot.
func (s *ItemStash) Get(h Handle) (any, bool) {
	if int(h.index) >= len(s.slots) {
		return nil, false
	}
	slot := &s.slots[h.index]
	if !slot.occupied || slot.gen != h.gen {
		return nil, false
	}
	return slot.value, true
}

// Remove releases the slot referenced by h, invalidating h for future Get
// calls. Removing an already-removed or stale handle is a no-op.
func (s *ItemStash) Remove(h Handle) {
	if int(h.index) >= len(s.slots) {
		return
	}
	slot := &s.slots[h.index]
	if !slot.occupied || slot.gen != h.gen {
		return
	}
	slot.occupied = false
	slot.value = nil
	slot.gen++
	s.free = append(s.free, h.index)
}

// Len returns the total number of slots ever allocated, including those
// currently free. It is not the live count; callers that need a live count
// should track it themselves (see RelationsDatabase, MembersDatabase).
func (s *ItemStash) Len() int { return len(s.slots) }
