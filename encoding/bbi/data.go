package bbi

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Interval is one bigWig datum: Value covers bases [Start, End).
type Interval struct {
	Start, End uint32
	Value      float32
}

// Entry is one bigBed record.  Rest holds the tab-separated columns after
// the third, without the trailing NUL.
type Entry struct {
	Start, End uint32
	Rest       string
}

// bigWig section types.
const (
	sectionBedGraph  = 1
	sectionVarStep   = 2
	sectionFixedStep = 3
)

// sectionHeader starts each bigWig data block.
type sectionHeader struct {
	ChromID   uint32
	Start     uint32
	End       uint32
	ItemStep  uint32
	ItemSpan  uint32
	Type      uint8
	Reserved  uint8
	ItemCount uint16
}

const sectionHeaderSize = 24

// clampQuery converts a query to the 32-bit coordinates used on disk.
func clampQuery(start, end uint64) (uint32, uint32) {
	if end > math.MaxUint32 {
		end = math.MaxUint32
	}
	if start > end {
		start = end
	}
	return uint32(start), uint32(end)
}

// Intervals returns the bigWig data overlapping [start, end) on chrom, in
// file order.  An unknown chromosome yields no data and no error.
func (r *Reader) Intervals(chrom string, start, end uint64) ([]Interval, error) {
	if r.kind != BigWig {
		return nil, errors.Errorf("bbi: Intervals called on a %v file", r.kind)
	}
	c, ok := r.chroms[chrom]
	if !ok {
		return nil, nil
	}
	qStart, qEnd := clampQuery(start, end)
	blocks, err := r.overlappingBlocks(c.ID, qStart, qEnd)
	if err != nil {
		return nil, err
	}
	var result []Interval
	for _, b := range blocks {
		data, err := r.readBlock(b)
		if err != nil {
			return nil, err
		}
		if result, err = r.decodeSection(data, c.ID, qStart, qEnd, result); err != nil {
			return nil, errors.Wrapf(err, "bbi: block at %d", b.offset)
		}
	}
	return result, nil
}

func (r *Reader) decodeSection(data []byte, chromID, qStart, qEnd uint32, result []Interval) ([]Interval, error) {
	if len(data) < sectionHeaderSize {
		return result, errors.Errorf("section is %d bytes, shorter than its header", len(data))
	}
	var h sectionHeader
	if err := binary.Read(bytes.NewReader(data[:sectionHeaderSize]), r.order, &h); err != nil {
		return result, err
	}
	if h.ChromID != chromID {
		return result, nil
	}
	data = data[sectionHeaderSize:]
	var itemSize int
	switch h.Type {
	case sectionBedGraph:
		itemSize = 12
	case sectionVarStep:
		itemSize = 8
	case sectionFixedStep:
		itemSize = 4
	default:
		return result, errors.Errorf("unknown section type %d", h.Type)
	}
	if len(data) < int(h.ItemCount)*itemSize {
		return result, errors.Errorf("section holds %d bytes, want %d items of %d", len(data), h.ItemCount, itemSize)
	}
	for i := 0; i < int(h.ItemCount); i++ {
		item := data[i*itemSize:]
		var iv Interval
		switch h.Type {
		case sectionBedGraph:
			iv.Start = r.order.Uint32(item)
			iv.End = r.order.Uint32(item[4:])
			iv.Value = math.Float32frombits(r.order.Uint32(item[8:]))
		case sectionVarStep:
			iv.Start = r.order.Uint32(item)
			iv.End = iv.Start + h.ItemSpan
			iv.Value = math.Float32frombits(r.order.Uint32(item[4:]))
		case sectionFixedStep:
			iv.Start = h.Start + uint32(i)*h.ItemStep
			iv.End = iv.Start + h.ItemSpan
			iv.Value = math.Float32frombits(r.order.Uint32(item))
		}
		if iv.Start < qEnd && iv.End > qStart {
			result = append(result, iv)
		}
	}
	return result, nil
}

// Entries returns the bigBed records overlapping [start, end) on chrom, in
// file order.  An unknown chromosome yields no records and no error.
func (r *Reader) Entries(chrom string, start, end uint64) ([]Entry, error) {
	if r.kind != BigBed {
		return nil, errors.Errorf("bbi: Entries called on a %v file", r.kind)
	}
	c, ok := r.chroms[chrom]
	if !ok {
		return nil, nil
	}
	qStart, qEnd := clampQuery(start, end)
	blocks, err := r.overlappingBlocks(c.ID, qStart, qEnd)
	if err != nil {
		return nil, err
	}
	var result []Entry
	for _, b := range blocks {
		data, err := r.readBlock(b)
		if err != nil {
			return nil, err
		}
		for len(data) > 0 {
			if len(data) < 12 {
				return nil, errors.Errorf("bbi: truncated bigBed record in block at %d", b.offset)
			}
			id := r.order.Uint32(data)
			e := Entry{Start: r.order.Uint32(data[4:]), End: r.order.Uint32(data[8:])}
			data = data[12:]
			n := bytes.IndexByte(data, 0)
			if n < 0 {
				return nil, errors.Errorf("bbi: unterminated bigBed record in block at %d", b.offset)
			}
			e.Rest = string(data[:n])
			data = data[n+1:]
			if id == c.ID && e.Start < qEnd && e.End > qStart {
				result = append(result, e)
			}
		}
	}
	return result, nil
}

// MaxBins bounds the bins argument of Stats.
const MaxBins = 100000

// Stats splits [start, end) on chrom into bins equal sub-ranges and returns
// the mean signal of each, weighted by covered bases.  Bin i spans
// [start+i*(end-start)/bins, start+(i+1)*(end-start)/bins).  A bin with no
// covered base gets NaN.  bins must be in [1, MaxBins].
func (r *Reader) Stats(chrom string, start, end uint64, bins int) ([]float64, error) {
	if bins <= 0 || bins > MaxBins {
		return nil, errors.Errorf("bbi: %d bins, want 1..%d", bins, MaxBins)
	}
	ivs, err := r.Intervals(chrom, start, end)
	if err != nil {
		return nil, err
	}
	return binMeans(ivs, start, end, bins), nil
}

// BinBounds returns the bounds of bin i of bins over [start, end).
func BinBounds(start, end uint64, i, bins int) (uint64, uint64) {
	n := end - start
	return start + uint64(i)*n/uint64(bins), start + uint64(i+1)*n/uint64(bins)
}

// binOf returns the bin of bins over [start, end) that contains pos, which
// must lie in [start, end).
func binOf(start, end, pos uint64, bins int) int {
	i := int((pos - start) * uint64(bins) / (end - start))
	for i+1 < bins {
		if lo, _ := BinBounds(start, end, i+1, bins); lo > pos {
			break
		}
		i++
	}
	for i > 0 {
		if lo, _ := BinBounds(start, end, i, bins); lo <= pos {
			break
		}
		i--
	}
	return i
}

// binMeans computes Stats in one pass over ivs.  Each interval only visits
// the bins it overlaps.
func binMeans(ivs []Interval, start, end uint64, bins int) []float64 {
	sums := make([]float64, bins)
	covered := make([]uint64, bins)
	if end > start {
		for _, iv := range ivs {
			lo, hi := uint64(iv.Start), uint64(iv.End)
			if lo < start {
				lo = start
			}
			if hi > end {
				hi = end
			}
			if lo >= hi {
				continue
			}
			for i := binOf(start, end, lo, bins); i < bins; i++ {
				binStart, binEnd := BinBounds(start, end, i, bins)
				if binStart >= hi {
					break
				}
				a, b := lo, hi
				if a < binStart {
					a = binStart
				}
				if b > binEnd {
					b = binEnd
				}
				if a >= b {
					continue
				}
				sums[i] += float64(iv.Value) * float64(b-a)
				covered[i] += b - a
			}
		}
	}
	means := make([]float64, bins)
	for i := range means {
		if covered[i] == 0 {
			means[i] = math.NaN()
			continue
		}
		means[i] = sums[i] / float64(covered[i])
	}
	return means
}
