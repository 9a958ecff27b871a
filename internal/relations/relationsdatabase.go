package relations

// relationEntry is what RelationsDatabase actually stores in the shared
// ItemStash: the tracked relation plus its outstanding-member count.
type relationEntry struct {
	relation    Relation
	needMembers int
}

// RelationsDatabase owns the set of relations a streaming assembly run is
// tracking. It issues stable RelationHandles and can enumerate the
// relations still live (not yet explicitly removed).
type RelationsDatabase struct {
	stash      *ItemStash
	order      []Handle
	removedSet map[Handle]bool
	totalAdded int
}

// NewRelationsDatabase creates a database backed by stash. Multiple
// databases (or a RelationsDatabase and one or more MembersDatabase[T])
// may share the same stash.
func NewRelationsDatabase(stash *ItemStash) *RelationsDatabase {
	return &RelationsDatabase{stash: stash, removedSet: make(map[Handle]bool)}
}

// Add stashes a copy of r and returns a handle to it. The relation's
// outstanding-member count starts at zero; callers populate it via
// MembersDatabase.Track.
func (db *RelationsDatabase) Add(r Relation) RelationHandle {
	h := db.stash.Add(&relationEntry{relation: r})
	db.order = append(db.order, h)
	db.totalAdded++
	return RelationHandle{h: h, db: db}
}

// Size returns the total number of relations ever added to this database.
// It does not decrease when a relation is removed — removal tombstones a
// slot, it does not compact the database.
func (db *RelationsDatabase) Size() int { return db.totalAdded }

// GetRelations returns handles to every relation that has not been
// explicitly removed, in the order they were added.
func (db *RelationsDatabase) GetRelations() []RelationHandle {
	out := make([]RelationHandle, 0, len(db.order))
	for _, h := range db.order {
		if !db.removedSet[h] {
			out = append(out, RelationHandle{h: h, db: db})
		}
	}
	return out
}

// RelationHandle is a stable reference to a relation tracked by a
// RelationsDatabase.
type RelationHandle struct {
	h  Handle
	db *RelationsDatabase
}

func (rh RelationHandle) entry() *relationEntry {
	v, ok := rh.db.stash.Get(rh.h)
	if !ok {
		panic(invariantf("dereferenced a removed RelationHandle"))
	}
	return v.(*relationEntry)
}

// ID returns the wrapped relation's object ID.
func (rh RelationHandle) ID() int64 { return rh.entry().relation.ID() }

// Relation returns the wrapped relation.
func (rh RelationHandle) Relation() Relation { return rh.entry().relation }

// Members returns the wrapped relation's member list.
func (rh RelationHandle) Members() []Ref { return rh.entry().relation.Members() }

// NeedMembers returns the relation's current outstanding-member count.
func (rh RelationHandle) NeedMembers() int { return rh.entry().needMembers }

// HasAllMembers reports whether the relation's outstanding-member count
// has reached zero.
func (rh RelationHandle) HasAllMembers() bool { return rh.entry().needMembers == 0 }

func (rh RelationHandle) incrementNeedMembers() { rh.entry().needMembers++ }

func (rh RelationHandle) gotOneMember() { rh.entry().needMembers-- }

// Remove releases the relation's stash slot and marks it no longer live in
// GetRelations. It does not affect Size.
func (rh RelationHandle) Remove() {
	rh.db.stash.Remove(rh.h)
	rh.db.removedSet[rh.h] = true
}
