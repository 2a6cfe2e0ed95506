// Package util holds small helpers shared by the readers in this module.
package util

import (
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
)

// ReadCloser is a reader over a file opened with file.Open, transparently
// decompressed when the path names a gzip file.
type ReadCloser struct {
	io.Reader
	ctx context.Context
	f   file.File
	gz  *gzip.Reader
}

// Open opens path for sequential reading.  Paths ending in ".gz" (or any
// other suffix fileio.DetermineType classifies as gzip) are decompressed.
func Open(ctx context.Context, path string) (*ReadCloser, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	rc := &ReadCloser{ctx: ctx, f: f, Reader: f.Reader(ctx)}
	if fileio.DetermineType(path) == fileio.Gzip {
		if rc.gz, err = gzip.NewReader(rc.Reader); err != nil {
			_ = f.Close(ctx)
			return nil, err
		}
		rc.Reader = rc.gz
	}
	return rc, nil
}

// Close closes the decompressor, if any, and the underlying file.
func (rc *ReadCloser) Close() error {
	var err error
	if rc.gz != nil {
		err = rc.gz.Close()
	}
	if cerr := rc.f.Close(rc.ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
