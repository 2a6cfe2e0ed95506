package bedmap

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/graphannot/encoding/bed"
	"github.com/grailbio/graphannot/feature"
	"github.com/grailbio/graphannot/nodeindex"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var testNodes = []nodeindex.Node{{ID: 1, Coord: 100}, {ID: 2, Coord: 200}, {ID: 3, Coord: 300}}

type placement struct {
	node, offset uint64
}

func placements(ms []Mapping) []placement {
	var p []placement
	for _, m := range ms {
		p = append(p, placement{m.NodeID, m.Feature.StartOffset})
	}
	return p
}

func TestProject(t *testing.T) {
	tests := []struct {
		start, end uint64
		want       []placement
	}{
		{150, 250, []placement{{1, 50}, {2, 0}}},
		{200, 250, []placement{{2, 0}}},
		{100, 101, []placement{{1, 0}}},
		{120, 180, []placement{{1, 20}}},
		{150, 301, []placement{{1, 50}, {2, 0}, {3, 0}}},
		{150, 300, []placement{{1, 50}, {2, 0}}},
		{50, 150, []placement{{1, 0}}},
		{50, 350, []placement{{1, 0}, {2, 0}, {3, 0}}},
		{10, 100, nil},
		{1299, 1400, []placement{{3, 999}}},
		{1300, 1400, nil},
	}
	for _, test := range tests {
		rec := bed.Record{Chrom: "1", Start: test.start, End: test.end}
		expect.EQ(t, placements(Project(rec, testNodes, 0)), test.want, test)
	}
	expect.EQ(t, len(Project(bed.Record{Start: 1, End: 2}, nil, 0)), 0)
}

func TestProjectFeature(t *testing.T) {
	rec := bed.Record{Chrom: "1", Start: 150, End: 250, Name: "geneA", Strand: bed.Reverse}
	ms := Project(rec, testNodes, 7)
	assert.EQ(t, len(ms), 2)
	for _, m := range ms {
		expect.EQ(t, m.Feature.ID, uint64(7))
		expect.EQ(t, m.Feature.Name, "geneA")
		expect.EQ(t, m.Feature.StopOffset, uint64(0))
		expect.True(t, *m.Feature.IsReverse)
	}
	rec.Strand = bed.Unknown
	expect.True(t, Project(rec, testNodes, 7)[0].Feature.IsReverse == nil)
}

func TestMapRecords(t *testing.T) {
	coords := nodeindex.CoordMap{"1": testNodes}
	recs := []bed.Record{
		{Chrom: "chr1", Start: 150, End: 250, Name: "a"},
		{Chrom: "chr1", Start: 160, End: 170, Name: "b"},
		{Chrom: "chr7", Start: 150, End: 250, Name: "unindexed"},
	}
	features := MapRecords(recs, coords, "chr")
	expect.EQ(t, len(features), 2)
	// Overlapping records each add an entry; nothing is deduplicated.
	assert.EQ(t, len(features[1]), 2)
	expect.EQ(t, features[1][0].Name, "a")
	expect.EQ(t, features[1][0].ID, uint64(0))
	expect.EQ(t, features[1][1].Name, "b")
	expect.EQ(t, features[1][1].ID, uint64(1))
	expect.EQ(t, features[1][1].StartOffset, uint64(60))
	expect.EQ(t, len(features[2]), 1)

	// Without the prefix, nothing matches.
	expect.EQ(t, len(MapRecords(recs, coords, "")), 0)
}

func TestBuild(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "genes.bed")
	assert.NoError(t, ioutil.WriteFile(path, []byte("1\t150\t250\tgeneA\t0\t+\n"), 0644))

	tracks := []feature.Track{
		feature.NewTrack("genes", path, ""),
		feature.NewTrack("signal", filepath.Join(tempDir, "cov.bw"), ""),
		feature.NewTrack("missing", filepath.Join(tempDir, "missing.bed"), ""),
	}
	db := Build(context.Background(), tracks, nodeindex.CoordMap{"1": testNodes})
	expect.EQ(t, len(db.Tracks()), 2)

	expect.EQ(t, db.NumNodes(0), 2)
	expect.EQ(t, db.NumNodes(1), 0)

	got := db.Features(2)
	assert.EQ(t, len(got), 2)
	assert.EQ(t, len(got[0]), 1)
	expect.EQ(t, got[0][0].Name, "geneA")
	expect.False(t, *got[0][0].IsReverse)
	expect.EQ(t, got[1], []feature.Feature{})

	got = db.Features(42)
	expect.EQ(t, got, [][]feature.Feature{{}, {}})
}
