package relations

import "testing"

func TestPurger_CompactsAtThresholdAndResets(t *testing.T) {
	a := NewObjectArena[int](4)
	for _, v := range []int{1, 2, 3} {
		off := a.Add(v)
		a.Commit()
		if v == 2 {
			a.SetRemoved(off)
		}
	}

	p := NewPurger(a, 3)
	noop := moveRecorder(func(Offset, Offset) {})

	p.RecordCompletion(noop)
	p.RecordCompletion(noop)
	if a.Len() != 3 {
		t.Fatalf("Len() = %d before threshold reached, want 3 (no compaction yet)", a.Len())
	}
	if p.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", p.Pending())
	}

	p.RecordCompletion(noop)
	if a.Len() != 2 {
		t.Fatalf("Len() = %d after threshold reached, want 2 (removed entry purged)", a.Len())
	}
	if p.Pending() != 0 {
		t.Fatalf("Pending() = %d after compaction, want reset to 0", p.Pending())
	}
}

func TestPurger_DefaultThresholdUsedWhenNonPositive(t *testing.T) {
	a := NewObjectArena[int](1)
	p := NewPurger(a, 0)
	if p.threshold != defaultPurgeThreshold {
		t.Fatalf("threshold = %d, want default %d", p.threshold, defaultPurgeThreshold)
	}
}
