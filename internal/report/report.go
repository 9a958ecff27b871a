// Package report renders a Collector's end-of-run telemetry — its
// UsedMemory() capacity snapshot and IncompleteReporter's set of relations
// that never completed — as an Arrow IPC file, for offline inspection or
// diffing across runs. It deliberately keeps "measure" (relations.
// MemoryStats, relations.IncompleteRelation) separate from "log"/"export":
// this package only turns already-measured values into bytes on disk.
package report

import (
	"fmt"
	"os"
	"strconv"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/wegman-software/osm-relation-assembler/internal/relations"
)

var schema = arrow.NewSchema([]arrow.Field{
	{Name: "relation_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "need_members", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
}, nil)

// statsMetadata turns a MemoryStats snapshot into schema-level key/value
// metadata, since the incomplete-relations record batch is the one part of
// the report with a natural per-row shape and Arrow schemas carry metadata
// maps for exactly this kind of run-level summary.
func statsMetadata(stats relations.MemoryStats) arrow.Metadata {
	keys := []string{
		"relation_count",
		"member_meta_nodes",
		"member_meta_ways",
		"member_meta_relations",
		"relation_arena_bytes",
		"members_arena_bytes",
	}
	values := []string{
		strconv.Itoa(stats.RelationCount),
		strconv.Itoa(stats.MemberMetaCounts[0]),
		strconv.Itoa(stats.MemberMetaCounts[1]),
		strconv.Itoa(stats.MemberMetaCounts[2]),
		strconv.Itoa(stats.RelationArenaBytes),
		strconv.Itoa(stats.MembersArenaBytes),
	}
	return arrow.NewMetadata(keys, values)
}

// Write renders stats and incomplete as a single Arrow IPC file at path:
// one row per incomplete relation, with stats carried as schema metadata.
func Write(path string, stats relations.MemoryStats, incomplete []relations.IncompleteRelation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()

	meta := statsMetadata(stats)
	runSchema := arrow.NewSchema(schema.Fields(), &meta)

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(runSchema), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return fmt.Errorf("report: create ipc writer: %w", err)
	}
	defer w.Close()

	builder := array.NewRecordBuilder(memory.DefaultAllocator, runSchema)
	defer builder.Release()

	idBuilder := builder.Field(0).(*array.Int64Builder)
	needBuilder := builder.Field(1).(*array.Int64Builder)
	for _, rel := range incomplete {
		idBuilder.Append(rel.Relation.ID())
		needBuilder.Append(int64(rel.NeedMembers))
	}

	rec := builder.NewRecord()
	defer rec.Release()

	if err := w.Write(rec); err != nil {
		return fmt.Errorf("report: write record: %w", err)
	}
	return nil
}

// IncompleteRow is one row of a report read back by Read: a relation id
// that never completed, and how many of its kept members were still
// missing at end of input.
type IncompleteRow struct {
	RelationID  int64
	NeedMembers int64
}

// Read loads a report written by Write, returning the stats metadata
// (schema-level key/value pairs, see statsMetadata) and every incomplete
// relation row.
func Read(path string) (stats map[string]string, rows []IncompleteRow, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("report: open %s: %w", path, err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, nil, fmt.Errorf("report: open ipc reader: %w", err)
	}
	defer r.Close()

	meta := r.Schema().Metadata()
	stats = make(map[string]string, meta.Len())
	for i, k := range meta.Keys() {
		stats[k] = meta.Values()[i]
	}

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, nil, fmt.Errorf("report: read record %d: %w", i, err)
		}
		ids := rec.Column(0).(*array.Int64)
		needs := rec.Column(1).(*array.Int64)
		for row := 0; row < int(rec.NumRows()); row++ {
			rows = append(rows, IncompleteRow{RelationID: ids.Value(row), NeedMembers: needs.Value(row)})
		}
	}
	return stats, rows, nil
}
