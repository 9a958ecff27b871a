package relations

// IncompleteReporter enumerates relations whose member set was never fully
// observed after end of input. Collector.GetIncompleteRelations does the
// actual work; this type exists as the named "Report" collaborator that
// internal/report exports, matching the component's own entry in the
// system overview rather than folding it silently into Collector.
type IncompleteReporter struct {
	collector *Collector
}

// NewIncompleteReporter creates a reporter over c. It must be created after
// pass 2 (c.Flush) has run to see a complete picture.
func NewIncompleteReporter(c *Collector) *IncompleteReporter {
	return &IncompleteReporter{collector: c}
}

// Report returns every relation still missing at least one kept member.
func (r *IncompleteReporter) Report() []IncompleteRelation {
	return r.collector.GetIncompleteRelations()
}

// Count returns len(Report()) without allocating the slice, for quick
// end-of-run health checks.
func (r *IncompleteReporter) Count() int {
	count := 0
	for i := 0; i < r.collector.relArena.Len(); i++ {
		rm := r.collector.relArena.Get(Offset(i))
		if !rm.vacated && !rm.HasAllMembers() {
			count++
		}
	}
	return count
}
