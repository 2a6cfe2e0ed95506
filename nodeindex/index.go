// Package nodeindex maps variation-graph node ids to the linear genomic
// region each node covers.
//
// The index is built once from per-chromosome layout files listing
// (node id, start coordinate) pairs in coordinate order.  Node i of a
// chromosome covers [coord_i, coord_{i+1}); the last node, which has no
// successor, covers TailLength bases from its own coordinate.  Regions are
// persisted in a Pebble store keyed by EncodeKey(id), with the canonical
// region string as the value.  After the build the store is only ever opened
// read-only, and one handle is shared by all lookups.
package nodeindex

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/graphannot/region"
)

// TailLength is the synthetic span assigned to the last node of a chromosome.
const TailLength = 1000

// DefaultChroms lists the chromosomes indexed by default.
var DefaultChroms = []string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13", "14", "15", "16",
	"17", "18", "19", "20", "21", "22", "X", "Y",
}

// Opts configures index construction.
type Opts struct {
	// Path is the directory of the Pebble store.
	Path string
	// LayoutPattern is the path of a chromosome's layout file, with "{}"
	// standing for ChrPrefix+chromosome.  E.g., "/data/layout/{}.tsv.gz".
	LayoutPattern string
	// ChrPrefix is prepended to chromosome names when expanding
	// LayoutPattern.  Stored regions never carry it.
	ChrPrefix string
	// Chroms lists the chromosomes to index.
	Chroms []string
	// Reinit forces a rebuild even if the store already exists.
	Reinit bool
}

// DefaultOpts is the default index configuration.
var DefaultOpts = Opts{
	Path:   "graphannot.index",
	Chroms: DefaultChroms,
}

// AssignRegions calls fn for every node of a chromosome with the region the
// node covers.  nodes must be sorted by ascending Coord.
func AssignRegions(chrom string, nodes []Node, fn func(id uint64, r region.Region) error) error {
	for i, n := range nodes {
		r := region.Region{Chrom: chrom, Start: n.Coord, Stop: n.Coord + TailLength}
		if i+1 < len(nodes) {
			r.Stop = nodes[i+1].Coord
		}
		if err := fn(n.ID, r); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether a store has been created at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NeedsBuild reports whether Ensure would (re)build the store.
func NeedsBuild(opts Opts) bool {
	return opts.Reinit || !Exists(opts.Path)
}

// Build writes the regions of every node in coords to a new store at path,
// replacing whatever was there.  A chromosome whose batch fails to commit is
// logged and skipped.
func Build(ctx context.Context, path string, coords CoordMap) (err error) {
	if err = os.RemoveAll(path); err != nil {
		return errors.E(err, "nodeindex: clearing", path)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return errors.E(err, "nodeindex: creating", path)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for _, chrom := range coords.Chroms() {
		batch := db.NewBatch()
		err := AssignRegions(chrom, coords[chrom], func(id uint64, r region.Region) error {
			return batch.Set(EncodeKey(id), []byte(r.String()), nil)
		})
		if err == nil {
			err = batch.Commit(pebble.Sync)
		}
		if cerr := batch.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			log.Error.Printf("nodeindex: chromosome %s: %v; skipping", chrom, err)
			continue
		}
		log.Debug.Printf("nodeindex: chromosome %s: %d node(s)", chrom, len(coords[chrom]))
	}
	m := meta{version: KeyVersion, fingerprint: coords.Fingerprint()}
	if err = db.Set(metaKey, m.encode(), pebble.Sync); err != nil {
		return errors.E(err, "nodeindex: writing metadata")
	}
	log.Printf("nodeindex: built %s with %d node(s)", path, coords.NumNodes())
	return nil
}

// Index is a read-only handle on a built store.  It is safe for concurrent
// use.
type Index struct {
	db          *pebble.DB
	path        string
	fingerprint uint64
}

// Open opens the store at path read-only.
func Open(path string) (*Index, error) {
	if !Exists(path) {
		return nil, errors.E(errors.NotExist, "nodeindex:", path)
	}
	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		return nil, errors.E(err, "nodeindex: opening", path)
	}
	idx := &Index{db: db, path: path}
	buf, ok := idx.get(metaKey)
	if !ok {
		_ = db.Close()
		return nil, errors.E(errors.Invalid, "nodeindex: missing metadata in", path)
	}
	m, err := decodeMeta(buf)
	if err == nil && m.version != KeyVersion {
		err = fmt.Errorf("nodeindex: %s has key version %d, want %d", path, m.version, KeyVersion)
	}
	if err != nil {
		_ = db.Close()
		return nil, errors.E(errors.Invalid, err)
	}
	idx.fingerprint = m.fingerprint
	return idx, nil
}

// get returns a copy of the value stored under key.
func (idx *Index) get(key []byte) ([]byte, bool) {
	val, closer, err := idx.db.Get(key)
	if err != nil {
		if err != pebble.ErrNotFound {
			log.Error.Printf("nodeindex: %s: get %x: %v", idx.path, key, err)
		}
		return nil, false
	}
	buf := append([]byte(nil), val...)
	if err := closer.Close(); err != nil {
		log.Error.Printf("nodeindex: %s: %v", idx.path, err)
	}
	return buf, true
}

// Region returns the region covered by a node.  ok is false if the node is
// not indexed or its stored value cannot be parsed.
func (idx *Index) Region(id uint64) (r region.Region, ok bool) {
	buf, ok := idx.get(EncodeKey(id))
	if !ok {
		return region.Region{}, false
	}
	r, err := region.ParseRaw(string(buf))
	if err != nil {
		log.Debug.Printf("nodeindex: node %d: malformed value %q", id, buf)
		return region.Region{}, false
	}
	return r, true
}

// Fingerprint returns the CoordMap fingerprint recorded at build time.
func (idx *Index) Fingerprint() uint64 { return idx.fingerprint }

// Close releases the store.
func (idx *Index) Close() error { return idx.db.Close() }

// Ensure loads the layouts named by opts, builds the store if NeedsBuild,
// and opens it.  The loaded layouts are returned alongside the index, since
// they are needed to project annotations onto nodes.
func Ensure(ctx context.Context, opts Opts) (*Index, CoordMap, error) {
	coords := LoadLayouts(ctx, opts)
	if NeedsBuild(opts) {
		if err := Build(ctx, opts.Path, coords); err != nil {
			return nil, coords, err
		}
	} else {
		log.Printf("nodeindex: reusing %s", opts.Path)
	}
	idx, err := Open(opts.Path)
	if err != nil {
		return nil, coords, err
	}
	if idx.Fingerprint() != coords.Fingerprint() {
		log.Printf("nodeindex: %s was built from different layouts; rebuild with reinit to refresh it", opts.Path)
	}
	return idx, coords, nil
}
