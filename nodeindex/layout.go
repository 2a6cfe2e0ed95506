package nodeindex

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/graphannot/util"
)

// Node is one entry of a linear graph layout: the node id and the linear
// coordinate at which the node starts.
type Node struct {
	ID    uint64
	Coord uint64
}

// CoordMap maps a chromosome name (without prefix) to its nodes, sorted by
// ascending Coord.
type CoordMap map[string][]Node

// Chroms returns the chromosome names in sorted order.
func (m CoordMap) Chroms() []string {
	chroms := make([]string, 0, len(m))
	for chrom := range m {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	return chroms
}

// NumNodes returns the total number of nodes over all chromosomes.
func (m CoordMap) NumNodes() int {
	n := 0
	for _, nodes := range m {
		n += len(nodes)
	}
	return n
}

// Fingerprint hashes the chromosome names and node lists.  Two CoordMaps with
// the same content have the same fingerprint.
func (m CoordMap) Fingerprint() uint64 {
	var h uint64
	var buf [16]byte
	for _, chrom := range m.Chroms() {
		h = farm.Hash64WithSeed([]byte(chrom), h)
		for _, n := range m[chrom] {
			binary.LittleEndian.PutUint64(buf[:8], n.ID)
			binary.LittleEndian.PutUint64(buf[8:], n.Coord)
			h = farm.Hash64WithSeed(buf[:], h)
		}
	}
	return h
}

// getTokens stores up to len(tokens) whitespace-delimited tokens of line,
// returning the number found.
func getTokens(tokens [][]byte, line []byte) int {
	posEnd := 0
	lineLen := len(line)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if line[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if line[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = line[pos:posEnd]
	}
	return len(tokens)
}

// ReadLayout reads (node id, coordinate) pairs, one per line.  Lines with
// fewer than two fields are skipped.  Coordinates must be strictly
// ascending.
func ReadLayout(r io.Reader) ([]Node, error) {
	scanner := bufio.NewScanner(r)
	var (
		tokens  [2][]byte
		nodes   []Node
		lineIdx int
	)
	for scanner.Scan() {
		lineIdx++
		if getTokens(tokens[:], scanner.Bytes()) != 2 {
			continue
		}
		id, err := strconv.ParseUint(gunsafe.BytesToString(tokens[0]), 10, 64)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("nodeindex.ReadLayout: line %d: node id", lineIdx), err)
		}
		coord, err := strconv.ParseUint(gunsafe.BytesToString(tokens[1]), 10, 64)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("nodeindex.ReadLayout: line %d: coordinate", lineIdx), err)
		}
		if n := len(nodes); n > 0 && coord <= nodes[n-1].Coord {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("nodeindex.ReadLayout: line %d: coordinate %d not above %d", lineIdx, coord, nodes[n-1].Coord))
		}
		nodes = append(nodes, Node{ID: id, Coord: coord})
	}
	return nodes, scanner.Err()
}

// ReadLayoutFile is ReadLayout for an (optionally gzipped) file.
func ReadLayoutFile(ctx context.Context, path string) (nodes []Node, err error) {
	in, err := util.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return ReadLayout(in)
}

// LayoutPath expands the "{}" placeholder of pattern with chrPrefix+chrom.
func LayoutPath(pattern, chrPrefix, chrom string) string {
	return strings.Replace(pattern, "{}", chrPrefix+chrom, -1)
}

// LoadLayouts reads the layout of every chromosome in opts.Chroms.  A
// chromosome whose layout cannot be read is logged and left out; the others
// are still returned.
func LoadLayouts(ctx context.Context, opts Opts) CoordMap {
	coords := CoordMap{}
	for _, chrom := range opts.Chroms {
		path := LayoutPath(opts.LayoutPattern, opts.ChrPrefix, chrom)
		log.Debug.Printf("chromosome %s: %s", chrom, path)
		nodes, err := ReadLayoutFile(ctx, path)
		if err != nil {
			log.Printf("could not read layout %s; skipping: %v", path, err)
			continue
		}
		if len(nodes) == 0 {
			log.Printf("layout %s is empty; skipping", path)
			continue
		}
		coords[chrom] = nodes
	}
	log.Printf("loaded layouts of %d chromosome(s), %d node(s)", len(coords), coords.NumNodes())
	return coords
}
