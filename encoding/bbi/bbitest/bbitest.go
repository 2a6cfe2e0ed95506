// Package bbitest synthesizes small bigWig and bigBed files for tests.
//
// Files have one uncompressed chromosome tree leaf and an R-tree whose root
// has one leaf child per data block.  No zoom levels are written.
package bbitest

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zlib"
)

const (
	BigWigMagic = 0x888FFC26
	BigBedMagic = 0x8789F2EB

	chromTreeMagic = 0x78CA8C91
	rTreeMagic     = 0x2468ACE0

	headerSize     = 64
	nodeHeaderSize = 4
	rInnerItemSize = 24
	rLeafItemSize  = 32

	sectionBedGraph  = 1
	sectionVarStep   = 2
	sectionFixedStep = 3
)

// ChromSize is the size recorded for every chromosome.
const ChromSize = 1000000

// Block is one data block and the range it covers.
type Block struct {
	ChromID, Start, End uint32
	Payload             []byte
}

// Interval is one bedGraph item.
type Interval struct {
	Start, End uint32
	Value      float32
}

// Record is one bigBed record.
type Record struct {
	Start, End uint32
	Rest       string
}

type header struct {
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

type sectionHeader struct {
	ChromID   uint32
	Start     uint32
	End       uint32
	ItemStep  uint32
	ItemSpan  uint32
	Type      uint8
	Reserved  uint8
	ItemCount uint16
}

func put(buf *bytes.Buffer, order binary.ByteOrder, vals ...interface{}) {
	for _, v := range vals {
		if err := binary.Write(buf, order, v); err != nil {
			panic(err)
		}
	}
}

// File lays out a bbi file holding blocks.  chroms[i] gets chromosome id i.
// Blocks are zlib-compressed when compress is set.
func File(order binary.ByteOrder, magic uint32, compress bool, chroms []string, blocks []Block) []byte {
	keySize := 0
	for _, c := range chroms {
		if len(c) > keySize {
			keySize = len(c)
		}
	}
	body := bytes.Buffer{}
	offset := func() uint64 { return uint64(headerSize + body.Len()) }

	h := header{Magic: magic, Version: 4, FieldCount: 3, DefinedFieldCount: 3}
	h.ChromTreeOffset = offset()
	put(&body, order, uint32(chromTreeMagic), uint32(len(chroms)), uint32(keySize), uint32(8), uint64(len(chroms)), uint64(0))
	put(&body, order, uint8(1), uint8(0), uint16(len(chroms)))
	for i, c := range chroms {
		key := make([]byte, keySize)
		copy(key, c)
		put(&body, order, key, uint32(i), uint32(ChromSize))
	}

	h.FullDataOffset = offset()
	put(&body, order, uint64(len(blocks)))
	type span struct{ offset, size uint64 }
	spans := make([]span, len(blocks))
	for i, b := range blocks {
		data := b.Payload
		if compress {
			var z bytes.Buffer
			w := zlib.NewWriter(&z)
			if _, err := w.Write(data); err != nil {
				panic(err)
			}
			if err := w.Close(); err != nil {
				panic(err)
			}
			data = z.Bytes()
			if uint32(len(b.Payload)) > h.UncompressBufSize {
				h.UncompressBufSize = uint32(len(b.Payload))
			}
		}
		spans[i] = span{offset(), uint64(len(data))}
		body.Write(data)
	}

	h.FullIndexOffset = offset()
	put(&body, order, uint32(rTreeMagic), uint32(256), uint64(len(blocks)),
		uint32(0), uint32(0), uint32(0), uint32(0), h.FullIndexOffset, uint32(1024), uint32(0))
	leafStart := offset() + nodeHeaderSize + uint64(len(blocks))*rInnerItemSize
	put(&body, order, uint8(0), uint8(0), uint16(len(blocks)))
	for i, b := range blocks {
		put(&body, order, b.ChromID, b.Start, b.ChromID, b.End,
			leafStart+uint64(i)*(nodeHeaderSize+rLeafItemSize))
	}
	for i, b := range blocks {
		put(&body, order, uint8(1), uint8(0), uint16(1))
		put(&body, order, b.ChromID, b.Start, b.ChromID, b.End, spans[i].offset, spans[i].size)
	}

	out := bytes.Buffer{}
	put(&out, order, h)
	if out.Len() != headerSize {
		panic(fmt.Sprintf("bbitest: header has %d bytes", out.Len()))
	}
	out.Write(body.Bytes())
	return out.Bytes()
}

// BedGraphSection encodes a bigWig section of bedGraph items.
func BedGraphSection(order binary.ByteOrder, chromID uint32, items ...Interval) []byte {
	buf := bytes.Buffer{}
	put(&buf, order, sectionHeader{ChromID: chromID, Start: items[0].Start, End: items[len(items)-1].End,
		Type: sectionBedGraph, ItemCount: uint16(len(items))})
	for _, iv := range items {
		put(&buf, order, iv.Start, iv.End, iv.Value)
	}
	return buf.Bytes()
}

// VarStepSection encodes a bigWig varStep section.
func VarStepSection(order binary.ByteOrder, chromID, span uint32, starts []uint32, vals []float32) []byte {
	buf := bytes.Buffer{}
	put(&buf, order, sectionHeader{ChromID: chromID, Start: starts[0], End: starts[len(starts)-1] + span,
		ItemSpan: span, Type: sectionVarStep, ItemCount: uint16(len(starts))})
	for i := range starts {
		put(&buf, order, starts[i], vals[i])
	}
	return buf.Bytes()
}

// FixedStepSection encodes a bigWig fixedStep section.
func FixedStepSection(order binary.ByteOrder, chromID, start, step, span uint32, vals []float32) []byte {
	buf := bytes.Buffer{}
	put(&buf, order, sectionHeader{ChromID: chromID, Start: start, End: start + uint32(len(vals)-1)*step + span,
		ItemStep: step, ItemSpan: span, Type: sectionFixedStep, ItemCount: uint16(len(vals))})
	put(&buf, order, vals)
	return buf.Bytes()
}

// BigBedBlock encodes bigBed records on one chromosome.
func BigBedBlock(order binary.ByteOrder, chromID uint32, recs ...Record) []byte {
	buf := bytes.Buffer{}
	for _, rec := range recs {
		put(&buf, order, chromID, rec.Start, rec.End, []byte(rec.Rest), uint8(0))
	}
	return buf.Bytes()
}

// BigWig returns a bigWig over chr1 and chr2 holding:
//
//	chr1 [0,100)=1 [100,200)=3   (bedGraph)
//	chr1 [200,210)=5 [210,220)=7 (fixedStep)
//	chr2 [50,55)=2 [60,65)=4     (varStep)
func BigWig(order binary.ByteOrder, compress bool) []byte {
	return File(order, BigWigMagic, compress, []string{"chr1", "chr2"}, []Block{
		{0, 0, 200, BedGraphSection(order, 0, Interval{0, 100, 1}, Interval{100, 200, 3})},
		{0, 200, 220, FixedStepSection(order, 0, 200, 10, 10, []float32{5, 7})},
		{1, 50, 65, VarStepSection(order, 1, 5, []uint32{50, 60}, []float32{2, 4})},
	})
}

// BigBed returns a bigBed over chr1 holding geneA [10,20) on + and geneB
// [30,40) on -.
func BigBed(order binary.ByteOrder, compress bool) []byte {
	return File(order, BigBedMagic, compress, []string{"chr1"}, []Block{
		{0, 10, 40, BigBedBlock(order, 0,
			Record{10, 20, "geneA\t0\t+"},
			Record{30, 40, "geneB\t0\t-"})},
	})
}
