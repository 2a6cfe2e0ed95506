// Package region parses and formats linear genomic coordinate expressions of
// the form "chrom:start-stop".
//
// Chromosome names are normalized against a configured prefix so that the
// same region is always keyed the same way regardless of how the caller
// spelled it.  With an empty prefix a literal leading "chr" is stripped
// ("chr1" -> "1"); with a non-empty prefix, the prefix is stripped when
// present and put back when the remaining name would be shorter than the
// prefix itself ("1" -> "chr1" for prefix "chr").
package region

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

var (
	regionRE         = regexp.MustCompile(`^(.+):(\d+)-?(\d*)$`)
	optionalRegionRE = regexp.MustCompile(`^(.+):(\d*)-?(\d*)$`)
)

// defaultStripPrefix is removed from chromosome names when no prefix is
// configured.
const defaultStripPrefix = "chr"

// Region is a chromosome plus a [Start, Stop) interval in linear reference
// coordinates.  Start > Stop is representable; see Inverted.
type Region struct {
	Chrom string `json:"path"`
	Start uint64 `json:"start"`
	Stop  uint64 `json:"stop"`
}

// String returns the canonical "chrom:start-stop" form.  It is used verbatim
// as a storage and lookup key.
func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.Stop)
}

// StartMinus decrements Start by one.  It converts a 1-based start into the
// 0-based half-open convention.  A zero start is left unchanged.
func (r *Region) StartMinus() {
	if r.Start > 0 {
		r.Start--
	}
}

// Interval returns |Stop - Start|.
func (r Region) Interval() uint64 {
	if r.Inverted() {
		return r.Start - r.Stop
	}
	return r.Stop - r.Start
}

// Inverted reports whether Start > Stop.
func (r Region) Inverted() bool { return r.Start > r.Stop }

// NormalizeChrom applies the prefix rule described in the package comment.
func NormalizeChrom(chrom, chrPrefix string) string {
	if chrPrefix == "" {
		return strings.TrimPrefix(chrom, defaultStripPrefix)
	}
	chrom = strings.TrimPrefix(chrom, chrPrefix)
	if len(chrom) < len(chrPrefix) {
		return chrPrefix + chrom
	}
	return chrom
}

func parseUint(field, what, text string) (uint64, error) {
	v, err := strconv.ParseUint(field, 10, 64)
	if err != nil {
		return 0, errors.E(errors.Invalid, err, fmt.Sprintf("region %q: bad %s", text, what))
	}
	return v, nil
}

func parse(text string) (chrom string, start, stop uint64, err error) {
	m := regionRE.FindStringSubmatch(text)
	if m == nil {
		err = errors.E(errors.Invalid, fmt.Sprintf("region %q: expected chrom:start-stop", text))
		return
	}
	chrom = m[1]
	if start, err = parseUint(m[2], "start", text); err != nil {
		return
	}
	stop, err = parseUint(m[3], "stop", text)
	return
}

// Parse parses "chrom:start-stop" and normalizes the chromosome name against
// chrPrefix.  Malformed text yields an error of kind errors.Invalid.
func Parse(text, chrPrefix string) (Region, error) {
	chrom, start, stop, err := parse(text)
	if err != nil {
		return Region{}, err
	}
	return Region{Chrom: NormalizeChrom(chrom, chrPrefix), Start: start, Stop: stop}, nil
}

// ParseRaw parses "chrom:start-stop" keeping the chromosome name as written.
func ParseRaw(text string) (Region, error) {
	chrom, start, stop, err := parse(text)
	if err != nil {
		return Region{}, err
	}
	return Region{Chrom: chrom, Start: start, Stop: stop}, nil
}

// MustParse is like Parse, but panics on error.
func MustParse(text, chrPrefix string) Region {
	r, err := Parse(text, chrPrefix)
	if err != nil {
		panic(err)
	}
	return r
}

// OptionalRegion is a Region whose bounds may be absent.  It supports
// whole-chromosome ("chr1:") and point ("chr1:100") queries.
type OptionalRegion struct {
	Chrom string  `json:"path"`
	Start *uint64 `json:"start"`
	Stop  *uint64 `json:"stop"`
}

// ParseOptional parses "chrom:[start][-[stop]]" and normalizes the chromosome
// name against chrPrefix.
func ParseOptional(text, chrPrefix string) (OptionalRegion, error) {
	m := optionalRegionRE.FindStringSubmatch(text)
	if m == nil {
		return OptionalRegion{}, errors.E(errors.Invalid, fmt.Sprintf("region %q: expected chrom:[start][-stop]", text))
	}
	r := OptionalRegion{Chrom: NormalizeChrom(m[1], chrPrefix)}
	for i, dst := range []**uint64{&r.Start, &r.Stop} {
		if m[i+2] == "" {
			continue
		}
		v, err := parseUint(m[i+2], "position", text)
		if err != nil {
			return OptionalRegion{}, err
		}
		*dst = &v
	}
	return r, nil
}

// String renders "chrom", "chrom:start" or "chrom:start-stop" depending on
// which bounds are present.
func (r OptionalRegion) String() string {
	switch {
	case r.Start == nil:
		return r.Chrom
	case r.Stop == nil:
		return fmt.Sprintf("%s:%d", r.Chrom, *r.Start)
	default:
		return fmt.Sprintf("%s:%d-%d", r.Chrom, *r.Start, *r.Stop)
	}
}

// Interval returns |Stop - Start|.  ok is false unless both bounds are set.
func (r OptionalRegion) Interval() (n uint64, ok bool) {
	if r.Start == nil || r.Stop == nil {
		return 0, false
	}
	return Region{Start: *r.Start, Stop: *r.Stop}.Interval(), true
}

// Inverted reports whether Start > Stop.  ok is false unless both bounds are
// set.
func (r OptionalRegion) Inverted() (inverted, ok bool) {
	if r.Start == nil || r.Stop == nil {
		return false, false
	}
	return *r.Start > *r.Stop, true
}

// Region converts r into a Region.  ok is false unless both bounds are set.
func (r OptionalRegion) Region() (Region, bool) {
	if r.Start == nil || r.Stop == nil {
		return Region{}, false
	}
	return Region{Chrom: r.Chrom, Start: *r.Start, Stop: *r.Stop}, true
}
