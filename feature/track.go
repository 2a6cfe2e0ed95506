package feature

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/graphannot/util"
)

// Format is the file format of a track.
type Format int

const (
	// Unsupported is any format this module cannot query.
	Unsupported Format = iota
	// BED is a plain (optionally gzipped) BED file.
	BED
	// BigBed is a UCSC bigBed file.
	BigBed
	// BigWig is a UCSC bigWig file.
	BigWig
)

func (f Format) String() string {
	switch f {
	case BED:
		return "bed"
	case BigBed:
		return "bigbed"
	case BigWig:
		return "bigwig"
	}
	return "unsupported"
}

// FormatOf infers a track's format from the extension of its url.
func FormatOf(url string) Format {
	name := strings.ToLower(path.Base(url))
	name = strings.TrimSuffix(name, ".gz")
	switch path.Ext(name) {
	case ".bed":
		return BED
	case ".bb", ".bigbed":
		return BigBed
	case ".bw", ".bigwig":
		return BigWig
	}
	return Unsupported
}

// Track declares one annotation or signal source.
type Track struct {
	Name string
	URL  string
	// ChrPrefix is prepended to chromosome names when querying the track.
	ChrPrefix string
	// Format is resolved from URL by NewTrack.
	Format Format
}

// NewTrack returns a Track with its Format resolved.
func NewTrack(name, url, chrPrefix string) Track {
	return Track{Name: name, URL: url, ChrPrefix: chrPrefix, Format: FormatOf(url)}
}

// QueryChrom returns the chromosome name to use when querying the track.
func (t Track) QueryChrom(chrom string) string { return t.ChrPrefix + chrom }

func (t Track) String() string {
	return fmt.Sprintf("%s(%s, %s)", t.Name, t.URL, t.Format)
}

// trackRow is one line of a track list.
type trackRow struct {
	Name      string
	URL       string
	ChrPrefix string
}

// noPrefix marks an absent chromosome prefix in a track list.
const noPrefix = "."

// ReadTracks parses a track list: one "name<TAB>url<TAB>chr_prefix" line
// per track, with "." for no prefix.  Lines starting with '#' are ignored.
func ReadTracks(r io.Reader) ([]Track, error) {
	scanner := tsv.NewReader(r)
	scanner.Comment = '#'
	var tracks []Track
	for {
		var row trackRow
		if err := scanner.Read(&row); err != nil {
			if err == io.EOF {
				return tracks, nil
			}
			return nil, err
		}
		if row.ChrPrefix == noPrefix {
			row.ChrPrefix = ""
		}
		tracks = append(tracks, NewTrack(row.Name, row.URL, row.ChrPrefix))
	}
}

// ReadTracksFile is ReadTracks for a file.
func ReadTracksFile(ctx context.Context, path string) (tracks []Track, err error) {
	in, err := util.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return ReadTracks(in)
}
