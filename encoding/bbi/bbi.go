// Package bbi reads UCSC "big binary indexed" files: bigWig signal tracks
// and bigBed interval tracks.  See
// https://genome.ucsc.edu/goldenPath/help/bigWig.html and Kent et al.,
// "BigWig and BigBed: enabling browsing of large distributed datasets",
// Bioinformatics 2010.
//
// Only the full-resolution data is read; zoom levels are ignored.  A Reader
// is not safe for concurrent use.
package bbi

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"io/ioutil"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

const (
	bigWigMagic    = 0x888FFC26
	bigBedMagic    = 0x8789F2EB
	chromTreeMagic = 0x78CA8C91
	rTreeMagic     = 0x2468ACE0

	headerSize      = 64
	rTreeHeaderSize = 48
)

// Kind identifies the flavor of a bbi file.
type Kind int

const (
	// BigWig files hold per-base float32 signal.
	BigWig Kind = iota + 1
	// BigBed files hold BED records.
	BigBed
)

func (k Kind) String() string {
	switch k {
	case BigWig:
		return "bigWig"
	case BigBed:
		return "bigBed"
	}
	return "unknown"
}

// Header is the fixed-size header at the start of every bbi file.
type Header struct {
	Magic              uint32
	Version            uint16
	ZoomLevels         uint16
	ChromTreeOffset    uint64
	FullDataOffset     uint64
	FullIndexOffset    uint64
	FieldCount         uint16
	DefinedFieldCount  uint16
	AutoSQLOffset      uint64
	TotalSummaryOffset uint64
	UncompressBufSize  uint32
	ExtensionOffset    uint64
}

// Chrom is one entry of a file's chromosome list.
type Chrom struct {
	Name string
	ID   uint32
	Size uint32
}

// Reader reads a bigWig or bigBed file.
type Reader struct {
	in     io.ReadSeeker
	order  binary.ByteOrder
	header Header
	kind   Kind
	chroms map[string]Chrom
	// closeFn releases the underlying file, if Reader owns it.
	closeFn func() error
}

// NewReader parses the header and chromosome list of the bbi file in.
func NewReader(in io.ReadSeeker) (*Reader, error) {
	r := &Reader{in: in}
	buf, err := r.readAt(0, headerSize)
	if err != nil {
		return nil, errors.Wrap(err, "bbi: read header")
	}
	switch {
	case binary.LittleEndian.Uint32(buf) == bigWigMagic || binary.LittleEndian.Uint32(buf) == bigBedMagic:
		r.order = binary.LittleEndian
	case binary.BigEndian.Uint32(buf) == bigWigMagic || binary.BigEndian.Uint32(buf) == bigBedMagic:
		r.order = binary.BigEndian
	default:
		return nil, errors.Errorf("bbi: bad magic %#x", binary.LittleEndian.Uint32(buf))
	}
	if err := binary.Read(bytes.NewReader(buf), r.order, &r.header); err != nil {
		return nil, errors.Wrap(err, "bbi: decode header")
	}
	if r.header.Magic == bigWigMagic {
		r.kind = BigWig
	} else {
		r.kind = BigBed
	}
	if r.chroms, err = r.readChromTree(); err != nil {
		return nil, err
	}
	vlog.VI(1).Infof("bbi: opened %v, version %d, %d chromosome(s), compressed=%v",
		r.kind, r.header.Version, len(r.chroms), r.header.UncompressBufSize > 0)
	return r, nil
}

// Open opens the bbi file at path, which may be any path supported by
// grailbio/base/file.
func Open(ctx context.Context, path string) (*Reader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f.Reader(ctx))
	if err != nil {
		_ = f.Close(ctx)
		return nil, errors.Wrap(err, path)
	}
	r.closeFn = func() error { return f.Close(ctx) }
	return r, nil
}

// Close releases the file opened by Open.  It is a no-op for readers created
// by NewReader.
func (r *Reader) Close() error {
	if r.closeFn == nil {
		return nil
	}
	err := r.closeFn()
	r.closeFn = nil
	return err
}

// Kind reports whether r reads a bigWig or a bigBed file.
func (r *Reader) Kind() Kind { return r.kind }

// Header returns the file header.
func (r *Reader) Header() Header { return r.header }

// Chrom looks up a chromosome by name.
func (r *Reader) Chrom(name string) (Chrom, bool) {
	c, ok := r.chroms[name]
	return c, ok
}

// NumChroms returns the number of chromosomes in the file.
func (r *Reader) NumChroms() int { return len(r.chroms) }

func (r *Reader) readAt(off uint64, n int) ([]byte, error) {
	if _, err := r.in.Seek(int64(off), io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.in, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readBlock reads one data block, inflating it if the file is compressed.
func (r *Reader) readBlock(b block) ([]byte, error) {
	buf, err := r.readAt(b.offset, int(b.size))
	if err != nil {
		return nil, errors.Wrapf(err, "bbi: read block at %d", b.offset)
	}
	if r.header.UncompressBufSize == 0 {
		return buf, nil
	}
	z, err := zlib.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrapf(err, "bbi: inflate block at %d", b.offset)
	}
	defer z.Close() // nolint: errcheck
	out, err := ioutil.ReadAll(z)
	return out, errors.Wrapf(err, "bbi: inflate block at %d", b.offset)
}
