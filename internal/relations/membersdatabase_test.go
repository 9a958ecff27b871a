package relations

import "testing"

func TestMembersDatabase_TrackPrepareAddCompletes(t *testing.T) {
	stash := NewItemStash()
	relDB := NewRelationsDatabase(stash)
	members := NewMembersDatabase[string](stash)

	rel := relDB.Add(&fakeRelation{id: 20})
	members.Track(rel, 10, 0)
	members.Track(rel, 11, 1)
	members.Prepare()

	var completed []int64
	onComplete := func(h RelationHandle) { completed = append(completed, h.ID()) }

	if ok := members.Add(10, "way-10", onComplete); !ok {
		t.Fatal("Add(10) = false, want true")
	}
	if len(completed) != 0 {
		t.Fatalf("completed too early: %v", completed)
	}
	if ok := members.Add(11, "way-11", onComplete); !ok {
		t.Fatal("Add(11) = false, want true")
	}
	if len(completed) != 1 || completed[0] != 20 {
		t.Fatalf("completed = %v, want [20]", completed)
	}

	if ok := members.Add(999, "nope", onComplete); ok {
		t.Fatal("Add(999) = true, want false (untracked id)")
	}
}

func TestMembersDatabase_DuplicateMemberDecrementsOncePerOccurrence(t *testing.T) {
	stash := NewItemStash()
	relDB := NewRelationsDatabase(stash)
	members := NewMembersDatabase[string](stash)

	rel := relDB.Add(&fakeRelation{id: 20})
	members.Track(rel, 10, 0)
	members.Track(rel, 11, 1)
	members.Track(rel, 12, 2)
	members.Track(rel, 11, 3)
	members.Prepare()

	if got := members.Count(); got != (Counts{Tracked: 4}) {
		t.Fatalf("Count() before add = %+v, want {4 0 0}", got)
	}
	if got := members.Size(); got != 4 {
		t.Fatalf("Size() = %d, want 4", got)
	}

	var completed []int64
	onComplete := func(h RelationHandle) { completed = append(completed, h.ID()) }
	members.Add(10, "w10", onComplete)
	members.Add(11, "w11", onComplete)
	members.Add(12, "w12", onComplete)

	if len(completed) != 1 || completed[0] != 20 {
		t.Fatalf("completed = %v, want exactly one completion of relation 20", completed)
	}
	if got := members.Count(); got != (Counts{Available: 4}) {
		t.Fatalf("Count() after completion = %+v, want {0 4 0}", got)
	}

	// Explicit removal of every member slot, then the relation itself.
	members.Remove(10, 20)
	members.Remove(11, 20)
	members.Remove(11, 20) // second occurrence
	members.Remove(12, 20)
	rel.Remove()

	if got := relDB.Size(); got != 1 {
		t.Fatalf("RelationsDatabase.Size() = %d, want 1 (tombstoned, not compacted)", got)
	}
	if got := relDB.GetRelations(); len(got) != 0 {
		t.Fatalf("GetRelations() = %v, want empty", got)
	}
	if got := members.Size(); got != 4 {
		t.Fatalf("MembersDatabase.Size() = %d, want 4", got)
	}
	if got := members.Count(); got != (Counts{Removed: 4}) {
		t.Fatalf("Count() after removal = %+v, want {0 0 4}", got)
	}
}

func TestMembersDatabase_RefcountBalanceInvariant(t *testing.T) {
	stash := NewItemStash()
	relDB := NewRelationsDatabase(stash)
	members := NewMembersDatabase[string](stash)

	relA := relDB.Add(&fakeRelation{id: 1})
	relB := relDB.Add(&fakeRelation{id: 2})
	members.Track(relA, 100, 0)
	members.Track(relB, 100, 0) // two relations share one member id
	members.Track(relA, 101, 1)
	members.Prepare()

	assertBalance := func(t *testing.T, label string) {
		t.Helper()
		c := members.Count()
		if c.Tracked+c.Available+c.Removed != members.Size() {
			t.Errorf("%s: balance broken: %+v vs size %d", label, c, members.Size())
		}
	}

	assertBalance(t, "initial")
	members.Add(100, "shared", func(RelationHandle) {})
	assertBalance(t, "after shared add")
	members.Remove(100, 1)
	assertBalance(t, "after partial remove")
	members.Add(101, "solo", func(RelationHandle) {})
	assertBalance(t, "after second add")
	members.Remove(100, 2)
	assertBalance(t, "after releasing last reference")

	// The stashed object for id 100 must be gone once both relations
	// released it (refcount hit zero).
	if _, ok := members.Get(100); ok {
		t.Error("Get(100) should report not-found once every reference is removed")
	}
}
