package bbi

import (
	"bytes"
	"context"
	"encoding/binary"
	"io/ioutil"
	"math"
	"path/filepath"
	"testing"

	"github.com/grailbio/graphannot/encoding/bbi/bbitest"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestBigWig(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for _, compress := range []bool{false, true} {
			r, err := NewReader(bytes.NewReader(bbitest.BigWig(order, compress)))
			assert.NoError(t, err)
			expect.EQ(t, r.Kind(), BigWig)
			expect.EQ(t, r.NumChroms(), 2)
			c, ok := r.Chrom("chr2")
			expect.True(t, ok)
			expect.EQ(t, c.ID, uint32(1))

			ivs, err := r.Intervals("chr1", 150, 205)
			assert.NoError(t, err)
			expect.EQ(t, ivs, []Interval{{100, 200, 3}, {200, 210, 5}})

			ivs, err = r.Intervals("chr1", 210, 1000)
			assert.NoError(t, err)
			expect.EQ(t, ivs, []Interval{{210, 220, 7}})

			ivs, err = r.Intervals("chr2", 0, 1000)
			assert.NoError(t, err)
			expect.EQ(t, ivs, []Interval{{50, 55, 2}, {60, 65, 4}})

			ivs, err = r.Intervals("chr1", 300, 400)
			assert.NoError(t, err)
			expect.EQ(t, len(ivs), 0)

			ivs, err = r.Intervals("chrUn", 0, 100)
			assert.NoError(t, err)
			expect.EQ(t, len(ivs), 0)

			_, err = r.Entries("chr1", 0, 100)
			expect.NotNil(t, err)
			expect.NoError(t, r.Close())
		}
	}
}

func TestStats(t *testing.T) {
	r, err := NewReader(bytes.NewReader(bbitest.BigWig(binary.LittleEndian, true)))
	assert.NoError(t, err)

	means, err := r.Stats("chr1", 0, 200, 2)
	assert.NoError(t, err)
	expect.EQ(t, means, []float64{1, 3})

	means, err = r.Stats("chr1", 50, 150, 1)
	assert.NoError(t, err)
	expect.EQ(t, means, []float64{2})

	means, err = r.Stats("chr1", 190, 230, 4)
	assert.NoError(t, err)
	assert.EQ(t, len(means), 4)
	expect.EQ(t, means[:3], []float64{3, 5, 7})
	expect.True(t, math.IsNaN(means[3]))

	_, err = r.Stats("chr1", 0, 100, 0)
	expect.NotNil(t, err)
	_, err = r.Stats("chr1", 0, 100, MaxBins+1)
	expect.NotNil(t, err)

	// More bins than bases leaves the zero-width bins empty.
	means, err = r.Stats("chr1", 98, 102, 8)
	assert.NoError(t, err)
	assert.EQ(t, len(means), 8)
	for i, mean := range means {
		if lo, hi := BinBounds(98, 102, i, 8); lo == hi {
			expect.True(t, math.IsNaN(mean), i)
		} else {
			expect.False(t, math.IsNaN(mean), i)
		}
	}
}

// scanMeans computes bin means by scanning every interval for every bin.
func scanMeans(ivs []Interval, start, end uint64, bins int) []float64 {
	means := make([]float64, bins)
	for i := range means {
		binStart, binEnd := BinBounds(start, end, i, bins)
		var sum float64
		var covered uint64
		for _, iv := range ivs {
			lo, hi := uint64(iv.Start), uint64(iv.End)
			if lo < binStart {
				lo = binStart
			}
			if hi > binEnd {
				hi = binEnd
			}
			if lo >= hi {
				continue
			}
			sum += float64(iv.Value) * float64(hi-lo)
			covered += hi - lo
		}
		means[i] = math.NaN()
		if covered > 0 {
			means[i] = sum / float64(covered)
		}
	}
	return means
}

func TestBinMeansMatchesScan(t *testing.T) {
	var ivs []Interval
	pos := uint32(5)
	for i := 0; i < 5000; i++ {
		// Intervals of 1..37 bases separated by gaps of 0..12 bases.
		end := pos + 1 + uint32(i*7%37)
		ivs = append(ivs, Interval{pos, end, float32(i%11) - 3})
		pos = end + uint32(i*5%13)
	}
	for _, w := range []struct {
		start, end uint64
		bins       int
	}{
		{0, uint64(pos) + 10, 1},
		{0, uint64(pos) + 10, 7},
		{100, 50000, 333},
		{12345, 12400, 100},
		{0, uint64(pos), 1000},
	} {
		got := binMeans(ivs, w.start, w.end, w.bins)
		want := scanMeans(ivs, w.start, w.end, w.bins)
		assert.EQ(t, len(got), len(want))
		for i := range want {
			if math.IsNaN(want[i]) {
				expect.True(t, math.IsNaN(got[i]), w, i)
				continue
			}
			expect.EQ(t, got[i], want[i], w, i)
		}
	}
}

func TestBinMeansLarge(t *testing.T) {
	const (
		n    = 2000000
		bins = 2000
	)
	// One-base intervals whose value is the index of the bin they fall in.
	ivs := make([]Interval, n)
	for i := range ivs {
		ivs[i] = Interval{uint32(i), uint32(i + 1), float32(i / (n / bins))}
	}
	means := binMeans(ivs, 0, n, bins)
	assert.EQ(t, len(means), bins)
	for i, mean := range means {
		expect.EQ(t, mean, float64(i), i)
	}
}

func TestBinBounds(t *testing.T) {
	var prev uint64 = 10
	for i := 0; i < 3; i++ {
		lo, hi := BinBounds(10, 20, i, 3)
		expect.EQ(t, lo, prev)
		prev = hi
	}
	expect.EQ(t, prev, uint64(20))
}

func TestBigBed(t *testing.T) {
	data := bbitest.BigBed(binary.LittleEndian, true)

	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "genes.bb")
	assert.NoError(t, ioutil.WriteFile(path, data, 0644))

	r, err := Open(context.Background(), path)
	assert.NoError(t, err)
	defer func() { expect.NoError(t, r.Close()) }()
	expect.EQ(t, r.Kind(), BigBed)

	entries, err := r.Entries("chr1", 15, 35)
	assert.NoError(t, err)
	expect.EQ(t, entries, []Entry{{10, 20, "geneA\t0\t+"}, {30, 40, "geneB\t0\t-"}})

	entries, err = r.Entries("chr1", 20, 30)
	assert.NoError(t, err)
	expect.EQ(t, len(entries), 0)

	_, err = r.Intervals("chr1", 0, 100)
	expect.NotNil(t, err)
}

func TestBadMagic(t *testing.T) {
	_, err := NewReader(bytes.NewReader(make([]byte, headerSize)))
	expect.NotNil(t, err)
	_, err = NewReader(bytes.NewReader([]byte{1, 2}))
	expect.NotNil(t, err)
}
