// Package annotation resolves the features of configured tracks that
// overlap a genomic region or a graph node.
//
// Tracks are dispatched on their declared format and the requested track
// type: BED and bigBed tracks answer TypeBED queries, bigWig tracks answer
// TypeWig queries, and any other pairing is skipped.  Region queries return
// absolute coordinates; node queries return offsets clipped to the node's
// window.
package annotation

import (
	"context"
	"math"
	"runtime"
	"sort"
	"strings"

	"github.com/biogo/store/interval"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/graphannot/encoding/bbi"
	"github.com/grailbio/graphannot/encoding/bed"
	"github.com/grailbio/graphannot/feature"
	"github.com/grailbio/graphannot/region"
)

// TrackType selects which tracks answer a region query.
type TrackType string

const (
	// TypeBED selects BED and bigBed tracks.
	TypeBED TrackType = "bed"
	// TypeWig selects bigWig tracks.
	TypeWig TrackType = "wig"
)

// ParseTrackType converts "bed" or "wig".
func ParseTrackType(s string) (TrackType, bool) {
	switch t := TrackType(s); t {
	case TypeBED, TypeWig:
		return t, true
	}
	return "", false
}

// Mode chooses how feature coordinates are reported.
type Mode int

const (
	// Simple reports absolute reference coordinates.
	Simple Mode = iota
	// Full reports distances from the window edges, clamped at zero.
	Full
)

// Opts configures an Engine.
type Opts struct {
	// Parallelism bounds the number of tracks queried concurrently.  Values
	// <= 0 mean runtime.NumCPU().
	Parallelism int
	// Opener reads track files.  Nil means FileOpener.
	Opener Opener
}

// DefaultOpts is the default Engine configuration.
var DefaultOpts = Opts{}

// Locator maps a node id to its reference region.  *nodeindex.Index
// implements it.
type Locator interface {
	Region(nodeID uint64) (region.Region, bool)
}

// Engine answers overlap queries against a fixed track list.  It keeps no
// state between calls and is safe for concurrent use.
type Engine struct {
	tracks      []feature.Track
	locator     Locator
	opener      Opener
	parallelism int
}

// New creates an Engine over tracks.  locator may be nil if
// NodeIDToFeature is never called.
func New(tracks []feature.Track, locator Locator, opts Opts) *Engine {
	e := &Engine{
		tracks:      tracks,
		locator:     locator,
		opener:      opts.Opener,
		parallelism: opts.Parallelism,
	}
	if e.opener == nil {
		e.opener = FileOpener{}
	}
	if e.parallelism <= 0 {
		e.parallelism = runtime.NumCPU()
	}
	return e
}

// Tracks returns the engine's track list.
func (e *Engine) Tracks() []feature.Track { return e.tracks }

// participates reports whether track answers queries of type typ.
func participates(track feature.Track, typ TrackType) bool {
	switch track.Format {
	case feature.BED, feature.BigBed:
		return typ == TypeBED
	case feature.BigWig:
		return typ == TypeWig
	}
	return false
}

// query is one (track, window) request.
type query struct {
	track  feature.Track
	window region.Region
	mode   Mode
	bins   int
}

// run answers every query, in parallel, and returns the results in query
// order.  Failed queries yield empty lists.
func (e *Engine) run(ctx context.Context, queries []query) [][]feature.Feature {
	results := make([][]feature.Feature, len(queries))
	parallelism := e.parallelism
	if parallelism > len(queries) {
		parallelism = len(queries)
	}
	_ = traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(queries)) / parallelism
		endIdx := ((jobIdx + 1) * len(queries)) / parallelism
		for i := startIdx; i < endIdx; i++ {
			features, err := e.answer(ctx, queries[i])
			if err != nil {
				log.Error.Printf("annotation: %v %v: %v", queries[i].track, queries[i].window, err)
				features = nil
			}
			if features == nil {
				features = []feature.Feature{}
			}
			results[i] = features
		}
		return nil
	})
	return results
}

func (e *Engine) answer(ctx context.Context, q query) ([]feature.Feature, error) {
	if q.window.Inverted() {
		return nil, nil
	}
	chrom := q.track.QueryChrom(q.window.Chrom)
	switch q.track.Format {
	case feature.BED:
		recs, err := e.opener.ReadBED(ctx, q.track.URL)
		if err != nil {
			return nil, err
		}
		return bedFeatures(recs, chrom, q), nil
	case feature.BigBed:
		var features []feature.Feature
		err := withEntries(ctx, e.opener, q.track.URL, func(r EntryReader) error {
			entries, err := r.Entries(chrom, q.window.Start, q.window.Stop)
			if err != nil {
				return err
			}
			for i, entry := range entries {
				var attrs []string
				if entry.Rest != "" {
					attrs = strings.Split(entry.Rest, "\t")
				}
				features = append(features, q.newFeature(uint64(entry.Start), uint64(entry.End), i, attrs))
			}
			return nil
		})
		return features, err
	case feature.BigWig:
		var features []feature.Feature
		err := withSignal(ctx, e.opener, q.track.URL, func(r SignalReader) error {
			if q.bins > 0 {
				means, err := r.Stats(chrom, q.window.Start, q.window.Stop, q.bins)
				if err != nil {
					return err
				}
				features = binFeatures(means, q)
				return nil
			}
			ivs, err := r.Intervals(chrom, q.window.Start, q.window.Stop)
			if err != nil {
				return err
			}
			for i, iv := range ivs {
				f := q.newFeature(uint64(iv.Start), uint64(iv.End), i, []string{})
				f.Value = feature.Float32(iv.Value)
				features = append(features, f)
			}
			return nil
		})
		return features, err
	}
	return nil, nil
}

// Clip converts the interval [start, end) to offsets from the edges of
// window, clamping at zero where the interval extends past an edge.
func Clip(start, end uint64, window region.Region) (startOffset, stopOffset uint64) {
	if start > window.Start {
		startOffset = start - window.Start
	}
	if end < window.Stop {
		stopOffset = window.Stop - end
	}
	return startOffset, stopOffset
}

// newFeature builds the i'th feature of a query result.  attrs are the
// columns after the third; the strand column, when present, sets
// IsReverse.
func (q query) newFeature(start, end uint64, i int, attrs []string) feature.Feature {
	if attrs == nil {
		attrs = []string{}
	}
	f := feature.Feature{
		StartOffset: start,
		StopOffset:  end,
		ID:          uint64(i),
		Name:        q.track.Name,
		Attributes:  attrs,
	}
	if q.mode == Full {
		f.StartOffset, f.StopOffset = Clip(start, end, q.window)
	}
	if len(attrs) > 2 {
		f.IsReverse = bed.ParseStrand(attrs[2]).IsReverse()
	}
	return f
}

// binFeatures reports one feature per bin, carrying the bin's own bounds and
// its mean value.  Uncovered bins have no value.
func binFeatures(means []float64, q query) []feature.Feature {
	features := make([]feature.Feature, len(means))
	for i, mean := range means {
		start, stop := bbi.BinBounds(q.window.Start, q.window.Stop, i, len(means))
		features[i] = feature.Feature{
			StartOffset: start,
			StopOffset:  stop,
			ID:          uint64(i),
			Name:        q.track.Name,
			Attributes:  []string{},
		}
		if !math.IsNaN(mean) {
			features[i].Value = feature.Float32(float32(mean))
		}
	}
	return features
}

// bedInterval is one BED record in an interval tree.
type bedInterval struct {
	start, end int
	uid        uintptr
}

func (iv bedInterval) Overlap(b interval.IntRange) bool {
	// Half-open interval indexing.
	return iv.end > b.Start && iv.start < b.End
}
func (iv bedInterval) ID() uintptr              { return iv.uid }
func (iv bedInterval) Range() interval.IntRange { return interval.IntRange{Start: iv.start, End: iv.end} }

// bedFeatures returns the records on chrom overlapping the query window, in
// file order.
func bedFeatures(recs []bed.Record, chrom string, q query) []feature.Feature {
	tree := &interval.IntTree{}
	for i, rec := range recs {
		if rec.Chrom != chrom || rec.End <= rec.Start {
			continue
		}
		if err := tree.Insert(bedInterval{int(rec.Start), int(rec.End), uintptr(i)}, true); err != nil {
			log.Error.Printf("annotation: %v: record %d: %v", q.track, i, err)
		}
	}
	if tree.Len() == 0 || q.window.Stop <= q.window.Start {
		return nil
	}
	tree.AdjustRanges()
	hits := tree.Get(bedInterval{start: int(q.window.Start), end: int(q.window.Stop)})
	ids := make([]int, len(hits))
	for i, hit := range hits {
		ids[i] = int(hit.ID())
	}
	sort.Ints(ids)
	features := make([]feature.Feature, len(ids))
	for i, id := range ids {
		rec := recs[id]
		features[i] = q.newFeature(rec.Start, rec.End, i, append([]string{}, rec.Rest...))
	}
	return features
}

// regionQueries builds the queries of every track answering typ, in track
// order.
func (e *Engine) regionQueries(r region.Region, typ TrackType, bins int) []query {
	var queries []query
	for _, track := range e.tracks {
		if !participates(track, typ) {
			log.Debug.Printf("annotation: %v does not answer %q queries", track, typ)
			continue
		}
		q := query{track: track, window: r, mode: Simple}
		if track.Format == feature.BigWig {
			q.bins = bins
		}
		queries = append(queries, q)
	}
	return queries
}

// RegionToFeature returns, for each track answering typ in configuration
// order, the features overlapping r.  When bins > 0, bigWig tracks report
// bins mean values instead of raw signal.
func (e *Engine) RegionToFeature(ctx context.Context, r region.Region, typ TrackType, bins int) [][]feature.Feature {
	return e.run(ctx, e.regionQueries(r, typ, bins))
}

// RegionToFeatureMap is RegionToFeature keyed by track URL.
func (e *Engine) RegionToFeatureMap(ctx context.Context, r region.Region, typ TrackType, bins int) map[string][]feature.Feature {
	queries := e.regionQueries(r, typ, bins)
	results := e.run(ctx, queries)
	m := make(map[string][]feature.Feature, len(queries))
	for i, q := range queries {
		m[q.track.URL] = results[i]
	}
	return m
}

// RegionsToFeature applies RegionToFeature to each region.  Element i of the
// result belongs to regions[i].
func (e *Engine) RegionsToFeature(ctx context.Context, regions []region.Region, typ TrackType, bins int) [][][]feature.Feature {
	results := make([][][]feature.Feature, len(regions))
	for i, r := range regions {
		results[i] = e.RegionToFeature(ctx, r, typ, bins)
	}
	return results
}

// RegionsToFeatureMap applies RegionToFeatureMap to each region.
func (e *Engine) RegionsToFeatureMap(ctx context.Context, regions []region.Region, typ TrackType, bins int) []map[string][]feature.Feature {
	results := make([]map[string][]feature.Feature, len(regions))
	for i, r := range regions {
		results[i] = e.RegionToFeatureMap(ctx, r, typ, bins)
	}
	return results
}

// NodeIDToFeature returns, for each supported track in configuration order,
// the features overlapping the node's region, as offsets clipped to that
// region.  The region's start is first moved back by one base.  An unknown
// node yields an empty result.
func (e *Engine) NodeIDToFeature(ctx context.Context, nodeID uint64) [][]feature.Feature {
	if e.locator == nil {
		return [][]feature.Feature{}
	}
	r, ok := e.locator.Region(nodeID)
	if !ok {
		log.Debug.Printf("annotation: node %d not indexed", nodeID)
		return [][]feature.Feature{}
	}
	r.StartMinus()
	var queries []query
	for _, track := range e.tracks {
		if track.Format == feature.Unsupported {
			log.Printf("annotation: skipping %v: unsupported format", track)
			continue
		}
		queries = append(queries, query{track: track, window: r, mode: Full})
	}
	return e.run(ctx, queries)
}
