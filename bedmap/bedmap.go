// Package bedmap projects linear BED annotations onto variation-graph nodes.
//
// Given a chromosome's nodes sorted by start coordinate, a record
// [start, end) is attached to the node containing start, at the offset of
// start within that node, and then to every following node whose start
// coordinate is below end, at offset zero.  A record that starts before the
// first node has no containing node; it is attached to the first node at
// offset zero, since an offset cannot be negative.
package bedmap

import (
	"context"
	"sort"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/graphannot/encoding/bed"
	"github.com/grailbio/graphannot/feature"
	"github.com/grailbio/graphannot/nodeindex"
)

// Mapping attaches a feature to a node.
type Mapping struct {
	NodeID  uint64
	Feature feature.Feature
}

// NodeFeatures maps a node id to the features of one track overlapping it.
type NodeFeatures map[uint64][]feature.Feature

// nodeStop returns the exclusive end of nodes[i].
func nodeStop(nodes []nodeindex.Node, i int) uint64 {
	if i+1 < len(nodes) {
		return nodes[i+1].Coord
	}
	return nodes[i].Coord + nodeindex.TailLength
}

// Project maps one record onto nodes, which must be sorted by ascending
// Coord.  id becomes the ID of every produced feature.
func Project(rec bed.Record, nodes []nodeindex.Node, id uint64) []Mapping {
	if len(nodes) == 0 {
		return nil
	}
	newFeature := func(offset uint64) feature.Feature {
		return feature.Feature{
			StartOffset: offset,
			ID:          id,
			Name:        rec.Name,
			IsReverse:   rec.Strand.IsReverse(),
			Attributes:  []string{},
		}
	}
	// idx is the last node starting at or before rec.Start.
	idx := sort.Search(len(nodes), func(i int) bool { return nodes[i].Coord > rec.Start }) - 1
	var offset uint64
	if idx < 0 {
		// The record starts before the first node.
		idx = 0
		if rec.End <= nodes[0].Coord {
			return nil
		}
	} else {
		if rec.Start >= nodeStop(nodes, idx) {
			return nil
		}
		offset = rec.Start - nodes[idx].Coord
	}
	mappings := []Mapping{{NodeID: nodes[idx].ID, Feature: newFeature(offset)}}
	for idx+1 < len(nodes) && nodes[idx+1].Coord < rec.End {
		idx++
		mappings = append(mappings, Mapping{NodeID: nodes[idx].ID, Feature: newFeature(0)})
	}
	return mappings
}

// MapRecords projects every record onto coords.  The i'th record gets
// feature ID i.  chrPrefix is removed from record chromosome names before
// lookup; records on chromosomes absent from coords are skipped.
func MapRecords(recs []bed.Record, coords nodeindex.CoordMap, chrPrefix string) NodeFeatures {
	features := NodeFeatures{}
	for i, rec := range recs {
		nodes, ok := coords[strings.TrimPrefix(rec.Chrom, chrPrefix)]
		if !ok {
			continue
		}
		for _, m := range Project(rec, nodes, uint64(i)) {
			features[m.NodeID] = append(features[m.NodeID], m.Feature)
		}
	}
	return features
}

// MapTrack reads a BED track and projects it onto coords.
func MapTrack(ctx context.Context, track feature.Track, coords nodeindex.CoordMap) (NodeFeatures, error) {
	recs, err := bed.ReadFile(ctx, track.URL)
	if err != nil {
		return nil, err
	}
	return MapRecords(recs, coords, track.ChrPrefix), nil
}

// DB holds the node features of every BED track, in track order.
type DB struct {
	tracks   []feature.Track
	features []NodeFeatures
}

// Build maps every BED-format track onto coords, in parallel.  Tracks of
// other formats are ignored.  A track that cannot be read is logged and
// contributes no features.
func Build(ctx context.Context, tracks []feature.Track, coords nodeindex.CoordMap) *DB {
	db := &DB{}
	for _, t := range tracks {
		if t.Format == feature.BED {
			db.tracks = append(db.tracks, t)
		}
	}
	db.features = make([]NodeFeatures, len(db.tracks))
	_ = traverse.Each(len(db.tracks), func(i int) error {
		features, err := MapTrack(ctx, db.tracks[i], coords)
		if err != nil {
			log.Error.Printf("bedmap: %v: %v", db.tracks[i], err)
			features = NodeFeatures{}
		}
		db.features[i] = features
		log.Debug.Printf("bedmap: %v: %d node(s) annotated", db.tracks[i], len(features))
		return nil
	})
	return db
}

// Tracks returns the BED tracks held by db.
func (db *DB) Tracks() []feature.Track { return db.tracks }

// NumNodes returns the number of nodes annotated by the i'th track.
func (db *DB) NumNodes(i int) int { return len(db.features[i]) }

// Features returns, for each track of db, the features overlapping a node.
// The result has one (possibly empty) entry per track.
func (db *DB) Features(nodeID uint64) [][]feature.Feature {
	result := make([][]feature.Feature, len(db.features))
	for i, features := range db.features {
		result[i] = features[nodeID]
		if result[i] == nil {
			result[i] = []feature.Feature{}
		}
	}
	return result
}
