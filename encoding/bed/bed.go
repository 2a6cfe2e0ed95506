// Package bed reads interval records from BED files.  See
// https://genome.ucsc.edu/FAQ/FAQformat.html#format1.  Only the first three
// columns are required; name (column 4) and strand (column 6) are decoded
// when present, and every column after the third is kept verbatim in
// Record.Rest.
package bed

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/graphannot/util"
	"github.com/pkg/errors"
)

// Strand is the orientation of a BED record.
type Strand int8

const (
	// Unknown is used for "." and for records without a strand column.
	Unknown Strand = iota
	// Forward is "+".
	Forward
	// Reverse is "-".
	Reverse
)

// ParseStrand decodes a BED strand column.
func ParseStrand(s string) Strand {
	switch s {
	case "+":
		return Forward
	case "-":
		return Reverse
	}
	return Unknown
}

// IsReverse returns nil for Unknown, and otherwise a pointer to whether the
// strand is Reverse.
func (s Strand) IsReverse() *bool {
	if s == Unknown {
		return nil
	}
	v := s == Reverse
	return &v
}

// Record is one BED line.  Start is 0-based, End is exclusive.
type Record struct {
	Chrom  string
	Start  uint64
	End    uint64
	Name   string
	Strand Strand
	// Rest holds columns 4 and later.
	Rest []string
}

// Reader reads Records from a BED stream.
type Reader struct {
	scanner *bufio.Scanner
	lineIdx int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<20)
	return &Reader{scanner: scanner}
}

func isHeader(line []byte) bool {
	return len(line) == 0 ||
		line[0] == '#' ||
		bytes.HasPrefix(line, []byte("track")) ||
		bytes.HasPrefix(line, []byte("browser"))
}

// Read returns the next record, or io.EOF once the input is exhausted.
// Blank lines, comments and track/browser lines are skipped.
func (r *Reader) Read() (Record, error) {
	for r.scanner.Scan() {
		r.lineIdx++
		line := bytes.TrimRight(r.scanner.Bytes(), "\r")
		if isHeader(line) {
			continue
		}
		var cols []string
		if bytes.IndexByte(line, '\t') >= 0 {
			cols = strings.Split(string(line), "\t")
		} else {
			cols = strings.Fields(string(line))
		}
		if len(cols) < 3 {
			return Record{}, errors.Errorf("bed: line %d has %d columns, want at least 3", r.lineIdx, len(cols))
		}
		start, err := strconv.ParseUint(cols[1], 10, 64)
		if err != nil {
			return Record{}, errors.Wrapf(err, "bed: line %d: start", r.lineIdx)
		}
		end, err := strconv.ParseUint(cols[2], 10, 64)
		if err != nil {
			return Record{}, errors.Wrapf(err, "bed: line %d: end", r.lineIdx)
		}
		if end < start {
			return Record{}, errors.Errorf("bed: line %d: end %d before start %d", r.lineIdx, end, start)
		}
		rec := Record{Chrom: cols[0], Start: start, End: end, Rest: cols[3:]}
		if len(cols) > 3 {
			rec.Name = cols[3]
		}
		if len(cols) > 5 {
			rec.Strand = ParseStrand(cols[5])
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}

// ReadAll reads every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}

// ReadFile reads every record of the (optionally gzipped) BED file at path.
func ReadFile(ctx context.Context, path string) (recs []Record, err error) {
	in, err := util.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	recs, err = NewReader(in).ReadAll()
	return recs, errors.Wrap(err, path)
}
