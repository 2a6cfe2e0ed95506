package annotation

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/graphannot/encoding/bbi"
	"github.com/grailbio/graphannot/encoding/bed"
)

// EntryReader returns bigBed-style entries overlapping a window.
type EntryReader interface {
	Entries(chrom string, start, end uint64) ([]bbi.Entry, error)
	Close() error
}

// SignalReader returns bigWig-style signal overlapping a window.
type SignalReader interface {
	Intervals(chrom string, start, end uint64) ([]bbi.Interval, error)
	// Stats returns the mean of each of bins equal sub-windows, NaN where
	// nothing is covered.
	Stats(chrom string, start, end uint64, bins int) ([]float64, error)
	Close() error
}

// Opener gives access to track files.  Readers it returns are used by one
// goroutine and closed by the caller.
type Opener interface {
	OpenEntries(ctx context.Context, url string) (EntryReader, error)
	OpenSignal(ctx context.Context, url string) (SignalReader, error)
	ReadBED(ctx context.Context, url string) ([]bed.Record, error)
}

// FileOpener is the Opener backed by encoding/bbi and encoding/bed.
type FileOpener struct{}

func openKind(ctx context.Context, url string, kind bbi.Kind) (*bbi.Reader, error) {
	r, err := bbi.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if r.Kind() != kind {
		_ = r.Close()
		return nil, errors.E(errors.Invalid, url, "is a", r.Kind().String(), "file, want", kind.String())
	}
	return r, nil
}

// OpenEntries implements Opener.
func (FileOpener) OpenEntries(ctx context.Context, url string) (EntryReader, error) {
	r, err := openKind(ctx, url, bbi.BigBed)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// OpenSignal implements Opener.
func (FileOpener) OpenSignal(ctx context.Context, url string) (SignalReader, error) {
	r, err := openKind(ctx, url, bbi.BigWig)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ReadBED implements Opener.
func (FileOpener) ReadBED(ctx context.Context, url string) ([]bed.Record, error) {
	return bed.ReadFile(ctx, url)
}

// withEntries opens url, passes the reader to fn and closes it on every
// path.  fn must not retain the reader.
func withEntries(ctx context.Context, o Opener, url string, fn func(EntryReader) error) (err error) {
	r, err := o.OpenEntries(ctx, url)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(r)
}

// withSignal is withEntries for signal tracks.
func withSignal(ctx context.Context, o Opener, url string, fn func(SignalReader) error) (err error) {
	r, err := o.OpenSignal(ctx, url)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(r)
}
