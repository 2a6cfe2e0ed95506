package annotation

import (
	"context"
	"encoding/binary"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/graphannot/encoding/bbi"
	"github.com/grailbio/graphannot/encoding/bbi/bbitest"
	"github.com/grailbio/graphannot/feature"
	"github.com/grailbio/graphannot/region"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTrackFiles writes a bigBed, a bigWig, a bigWig named like a bigBed
// and a BED file into dir.
func writeTrackFiles(t *testing.T, dir string) {
	files := map[string][]byte{
		"genes.bb":  bbitest.BigBed(binary.LittleEndian, true),
		"cov.bw":    bbitest.BigWig(binary.BigEndian, false),
		"signal.bb": bbitest.BigWig(binary.LittleEndian, true),
		"peaks.bed": []byte("1\t10\t30\tp0\t0\t-\n1\t500\t600\tp1\n"),
	}
	for name, data := range files {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), data, 0644))
	}
}

func TestFileOpener(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	writeTrackFiles(t, dir)
	ctx := context.Background()
	var o FileOpener

	er, err := o.OpenEntries(ctx, filepath.Join(dir, "genes.bb"))
	require.NoError(t, err)
	entries, err := er.Entries("chr1", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []bbi.Entry{{Start: 10, End: 20, Rest: "geneA\t0\t+"}, {Start: 30, End: 40, Rest: "geneB\t0\t-"}}, entries)
	require.NoError(t, er.Close())

	sr, err := o.OpenSignal(ctx, filepath.Join(dir, "cov.bw"))
	require.NoError(t, err)
	means, err := sr.Stats("chr1", 0, 200, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, means)
	require.NoError(t, sr.Close())

	// The file kind decides, not the extension.
	_, err = o.OpenEntries(ctx, filepath.Join(dir, "signal.bb"))
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
	_, err = o.OpenSignal(ctx, filepath.Join(dir, "genes.bb"))
	assert.True(t, errors.Is(errors.Invalid, err), "%v", err)

	_, err = o.OpenEntries(ctx, filepath.Join(dir, "missing.bb"))
	assert.Error(t, err)

	recs, err := o.ReadBED(ctx, filepath.Join(dir, "peaks.bed"))
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestEngineFiles(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	writeTrackFiles(t, dir)
	tracks := []feature.Track{
		feature.NewTrack("genes", filepath.Join(dir, "genes.bb"), "chr"),
		feature.NewTrack("mislabeled", filepath.Join(dir, "signal.bb"), "chr"),
		feature.NewTrack("peaks", filepath.Join(dir, "peaks.bed"), ""),
		feature.NewTrack("coverage", filepath.Join(dir, "cov.bw"), "chr"),
	}
	e := New(tracks, nil, DefaultOpts)
	ctx := context.Background()

	got := e.RegionToFeature(ctx, region.Region{Chrom: "1", Start: 15, Stop: 35}, TypeBED, 0)
	require.Len(t, got, 3)
	require.Len(t, got[0], 2)
	assert.Equal(t, "genes", got[0][0].Name)
	assert.Equal(t, uint64(10), got[0][0].StartOffset)
	assert.Equal(t, uint64(20), got[0][0].StopOffset)
	assert.False(t, *got[0][0].IsReverse)
	assert.True(t, *got[0][1].IsReverse)
	// A bigWig behind a bigBed name answers nothing.
	assert.NotNil(t, got[1])
	assert.Len(t, got[1], 0)
	require.Len(t, got[2], 1)
	assert.Equal(t, []string{"p0", "0", "-"}, got[2][0].Attributes)

	wig := e.RegionToFeature(ctx, region.Region{Chrom: "1", Start: 150, Stop: 205}, TypeWig, 0)
	require.Len(t, wig, 1)
	require.Len(t, wig[0], 2)
	assert.Equal(t, float32(3), *wig[0][0].Value)
	assert.Equal(t, float32(5), *wig[0][1].Value)

	binned := e.RegionToFeature(ctx, region.Region{Chrom: "1", Start: 0, Stop: 200}, TypeWig, 2)
	require.Len(t, binned[0], 2)
	assert.Equal(t, float32(1), *binned[0][0].Value)
	assert.Equal(t, uint64(100), binned[0][1].StartOffset)
	assert.Equal(t, float32(3), *binned[0][1].Value)
}
