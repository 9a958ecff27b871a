package pbf

import (
	"encoding/gob"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm-relation-assembler/internal/relations"
)

func init() {
	// Node, Way, and *Relation are the only concrete types ever stored
	// behind a relations.Object interface value in this package; gob needs
	// each one registered before it can encode/decode an interface,
	// exercised by GobArena when a run backs its members arena on disk.
	gob.Register(Node{})
	gob.Register(Way{})
	gob.Register(&Relation{})
}

func tagsMap(tags osm.Tags) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}

func kindOf(t osm.Type) relations.Kind {
	switch t {
	case osm.TypeWay:
		return relations.KindWay
	case osm.TypeRelation:
		return relations.KindRelation
	default:
		return relations.KindNode
	}
}

// Node adapts *osm.Node to relations.Object. Only the fields the engine
// and policy collaborators ever read are copied out, rather than holding
// the full *osm.Node (with its changeset/version/user Info block) alive in
// the members arena, and so every field is exported and gob-encodable
// when the arena is disk-backed.
type Node struct {
	ID_  int64
	Lat  float64
	Lon  float64
	Tags map[string]string
}

func NewNode(n *osm.Node) Node {
	return Node{ID_: int64(n.ID), Lat: n.Lat, Lon: n.Lon, Tags: tagsMap(n.Tags)}
}

func (o Node) Kind() relations.Kind       { return relations.KindNode }
func (o Node) ID() int64                  { return o.ID_ }
func (o Node) GetTags() map[string]string { return o.Tags }

// Way adapts *osm.Way to relations.Object, similarly copying only what
// downstream consumers need.
type Way struct {
	ID_   int64
	Nodes []int64
	Tags  map[string]string
}

func NewWay(w *osm.Way) Way {
	nodeIDs := make([]int64, len(w.Nodes))
	for i, n := range w.Nodes {
		nodeIDs[i] = int64(n.ID)
	}
	return Way{ID_: int64(w.ID), Nodes: nodeIDs, Tags: tagsMap(w.Tags)}
}

func (o Way) Kind() relations.Kind       { return relations.KindWay }
func (o Way) ID() int64                  { return o.ID_ }
func (o Way) GetTags() map[string]string { return o.Tags }

// Relation adapts *osm.Relation to relations.Relation. Its Refs slice is
// built once at construction and mutated in place by ZeroMemberRef, so
// repeated calls to Members() observe prior zeroing.
type Relation struct {
	ID_  int64
	Refs []relations.Ref
	Tags map[string]string
}

func newRelation(r *osm.Relation) *Relation {
	refs := make([]relations.Ref, len(r.Members))
	for i, m := range r.Members {
		refs[i] = relations.Ref{Kind: kindOf(m.Type), ID: int64(m.Ref), Role: m.Role}
	}
	return &Relation{ID_: int64(r.ID), Refs: refs, Tags: tagsMap(r.Tags)}
}

func (o *Relation) Kind() relations.Kind       { return relations.KindRelation }
func (o *Relation) ID() int64                  { return o.ID_ }
func (o *Relation) Members() []relations.Ref   { return o.Refs }
func (o *Relation) ZeroMemberRef(pos int)      { o.Refs[pos].ID = 0 }
func (o *Relation) GetTags() map[string]string { return o.Tags }

// Tagged is implemented by every object this package produces; policy
// collaborators type-assert to it rather than the engine depending on it.
type Tagged interface {
	GetTags() map[string]string
}
