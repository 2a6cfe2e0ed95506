// Package geneindex finds genes by name.  The index is built from the "gene"
// rows of GTF or GFF3 annotation files and supports exact lookup, prefix
// listing and approximate suggestions.
package geneindex

import (
	"bufio"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/graphannot/encoding/bed"
	"github.com/grailbio/graphannot/region"
	"github.com/grailbio/graphannot/util"
)

// Format is the dialect of an annotation file.
type Format int

const (
	// GTF attributes are written `key "value";`.
	GTF Format = iota
	// GFF3 attributes are written `key=value;`.
	GFF3
)

// FormatOf guesses the dialect from the file name.  Anything that is not
// .gff or .gff3 (optionally gzipped) is treated as GTF.
func FormatOf(p string) Format {
	name := strings.TrimSuffix(strings.ToLower(path.Base(p)), ".gz")
	switch path.Ext(name) {
	case ".gff", ".gff3":
		return GFF3
	}
	return GTF
}

// Gene is one named gene.  Region holds the 1-based inclusive coordinates
// of the annotation file with the chromosome in canonical form.
type Gene struct {
	Name   string        `json:"name"`
	Region region.Region `json:"region"`
	Strand bed.Strand    `json:"-"`
}

// gffRecord is one line of a GTF or GFF3 file.
type gffRecord struct {
	Chrom      string
	Source     string
	Molecule   string
	Start      int
	Stop       int
	Score      string // unused floating point value, but may be "."
	Strand     string
	Frame      string
	Attributes string
}

// parseAttributes parses the ninth column of a record into attrs, which is
// cleared first.
func parseAttributes(attrs map[string]string, text string, format Format) {
	for k := range attrs {
		delete(attrs, k)
	}
	sep := " "
	if format == GFF3 {
		sep = "="
	}
	for _, field := range strings.Split(strings.TrimSpace(text), ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		pair := strings.SplitN(field, sep, 2)
		if len(pair) != 2 {
			continue
		}
		attrs[pair[0]] = strings.Trim(strings.TrimSpace(pair[1]), "\"")
	}
}

// nameKey is the attribute holding the gene name.
const nameKey = "gene_name"

// Read returns the named genes of an annotation stream.  Rows whose
// feature type is not "gene", or that carry no gene_name, are ignored.
func Read(r io.Reader, format Format) ([]Gene, error) {
	scanner := tsv.NewReader(bufio.NewReaderSize(r, 64<<10))
	scanner.Comment = '#'
	scanner.LazyQuotes = true
	var (
		genes []Gene
		rec   gffRecord
		attrs = map[string]string{}
	)
	for {
		if err := scanner.Read(&rec); err != nil {
			if err == io.EOF {
				return genes, nil
			}
			return genes, err
		}
		if rec.Molecule != "gene" {
			continue
		}
		parseAttributes(attrs, rec.Attributes, format)
		name, ok := attrs[nameKey]
		if !ok || rec.Start < 0 || rec.Stop < 0 {
			continue
		}
		genes = append(genes, Gene{
			Name: name,
			Region: region.Region{
				Chrom: region.NormalizeChrom(rec.Chrom, ""),
				Start: uint64(rec.Start),
				Stop:  uint64(rec.Stop),
			},
			Strand: bed.ParseStrand(rec.Strand),
		})
	}
}

// ReadFile is Read for a (optionally gzipped) file.
func ReadFile(ctx context.Context, path string) (genes []Gene, err error) {
	in, err := util.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if genes, err = Read(in, FormatOf(path)); err != nil {
		err = errors.E(err, "geneindex: reading", path)
	}
	return genes, err
}

// Index maps gene names to genes.
type Index struct {
	genes map[string]Gene
	// names is sorted.
	names []string
}

// New indexes genes.  When a name repeats, the last gene wins.
func New(genes []Gene) *Index {
	idx := &Index{genes: make(map[string]Gene, len(genes))}
	for _, g := range genes {
		idx.genes[g.Name] = g
	}
	idx.names = make([]string, 0, len(idx.genes))
	for name := range idx.genes {
		idx.names = append(idx.names, name)
	}
	sort.Strings(idx.names)
	return idx
}

// Build reads every path and indexes the union of their genes.  A file that
// cannot be read is logged and skipped.
func Build(ctx context.Context, paths []string) *Index {
	var genes []Gene
	for _, p := range paths {
		g, err := ReadFile(ctx, p)
		if err != nil {
			log.Error.Printf("geneindex: skipping %s: %v", p, err)
			continue
		}
		log.Debug.Printf("geneindex: %s: %d gene(s)", p, len(g))
		genes = append(genes, g...)
	}
	return New(genes)
}

// Len returns the number of distinct names.
func (idx *Index) Len() int { return len(idx.names) }

// Equals looks up a gene by its exact name.
func (idx *Index) Equals(name string) (Gene, bool) {
	g, ok := idx.genes[name]
	return g, ok
}

// StartsWith lists, in sorted order, the names beginning with prefix.
func (idx *Index) StartsWith(prefix string) []string {
	i := sort.SearchStrings(idx.names, prefix)
	var names []string
	for ; i < len(idx.names) && strings.HasPrefix(idx.names[i], prefix); i++ {
		names = append(names, idx.names[i])
	}
	return names
}

// Suggest returns up to n names closest to name by Levenshtein distance,
// nearest first, ties broken by name.  Names further than maxDist edits
// away are not returned.
func (idx *Index) Suggest(name string, n, maxDist int) []string {
	type candidate struct {
		name string
		dist int
	}
	var candidates []candidate
	for _, other := range idx.names {
		if d := matchr.Levenshtein(name, other); d <= maxDist {
			candidates = append(candidates, candidate{other, d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}
