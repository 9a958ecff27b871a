package relations

// defaultPurgeThreshold is how many relation completions elapse, by
// default, between compactions of a Purger's arena (spec §4.5: "after
// every 10 000 completions").
const defaultPurgeThreshold = 10000

// Purger schedules periodic compaction of an arena after a configurable
// number of relation completions. Collector owns one for its members
// arena; it is broken out as its own type because the schedule (count
// completions, compact, reset) is independent of what the Collector does
// around it, and a caller driving MembersDatabase directly against a
// ByteArena-backed members store can reuse the same policy.
type Purger struct {
	arena     Purgeable
	threshold int
	since     int
}

// NewPurger creates a Purger that compacts arena every threshold
// completions. threshold <= 0 selects defaultPurgeThreshold.
func NewPurger(arena Purgeable, threshold int) *Purger {
	if threshold <= 0 {
		threshold = defaultPurgeThreshold
	}
	return &Purger{arena: arena, threshold: threshold}
}

// RecordCompletion counts one relation completion toward the purge
// schedule. Once threshold completions have accumulated since the last
// compaction, it calls arena.PurgeRemoved(listener) and resets the count.
func (p *Purger) RecordCompletion(listener MoveListener) {
	p.since++
	if p.since < p.threshold {
		return
	}
	p.arena.PurgeRemoved(listener)
	p.since = 0
}

// Pending returns how many completions have accumulated since the last
// compaction, mostly useful for tests and telemetry.
func (p *Purger) Pending() int { return p.since }
