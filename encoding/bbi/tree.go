package bbi

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

// chromTreeHeader precedes the root of the chromosome B+ tree.
type chromTreeHeader struct {
	Magic     uint32
	BlockSize uint32
	KeySize   uint32
	ValSize   uint32
	ItemCount uint64
	Reserved  uint64
}

// nodeHeader starts every node of both the chromosome B+ tree and the data
// R-tree.
type nodeHeader struct {
	IsLeaf   uint8
	Reserved uint8
	Count    uint16
}

const (
	chromTreeHeaderSize = 32
	nodeHeaderSize      = 4
)

func (r *Reader) readNodeHeader(off uint64) (nodeHeader, error) {
	var h nodeHeader
	buf, err := r.readAt(off, nodeHeaderSize)
	if err != nil {
		return h, err
	}
	err = binary.Read(bytes.NewReader(buf), r.order, &h)
	return h, err
}

// readChromTree loads the whole chromosome list.
func (r *Reader) readChromTree() (map[string]Chrom, error) {
	buf, err := r.readAt(r.header.ChromTreeOffset, chromTreeHeaderSize)
	if err != nil {
		return nil, errors.Wrap(err, "bbi: read chromosome tree")
	}
	var h chromTreeHeader
	if err := binary.Read(bytes.NewReader(buf), r.order, &h); err != nil {
		return nil, errors.Wrap(err, "bbi: decode chromosome tree")
	}
	if h.Magic != chromTreeMagic {
		return nil, errors.Errorf("bbi: bad chromosome tree magic %#x", h.Magic)
	}
	if h.ValSize != 8 {
		return nil, errors.Errorf("bbi: chromosome tree value size %d, want 8", h.ValSize)
	}
	chroms := make(map[string]Chrom, h.ItemCount)
	if err := r.readChromNode(r.header.ChromTreeOffset+chromTreeHeaderSize, int(h.KeySize), chroms); err != nil {
		return nil, err
	}
	return chroms, nil
}

func (r *Reader) readChromNode(off uint64, keySize int, chroms map[string]Chrom) error {
	h, err := r.readNodeHeader(off)
	if err != nil {
		return errors.Wrapf(err, "bbi: chromosome tree node at %d", off)
	}
	itemSize := keySize + 8
	buf, err := r.readAt(off+nodeHeaderSize, int(h.Count)*itemSize)
	if err != nil {
		return errors.Wrapf(err, "bbi: chromosome tree node at %d", off)
	}
	for i := 0; i < int(h.Count); i++ {
		item := buf[i*itemSize : (i+1)*itemSize]
		if h.IsLeaf != 0 {
			name := string(bytes.TrimRight(item[:keySize], "\x00"))
			chroms[name] = Chrom{
				Name: name,
				ID:   r.order.Uint32(item[keySize:]),
				Size: r.order.Uint32(item[keySize+4:]),
			}
			continue
		}
		if err := r.readChromNode(r.order.Uint64(item[keySize:]), keySize, chroms); err != nil {
			return err
		}
	}
	return nil
}

// block locates one data block of the file.
type block struct {
	offset, size uint64
}

// pos orders (chromosome id, base) pairs.
type pos struct {
	chrom, base uint32
}

func (p pos) less(o pos) bool {
	return p.chrom < o.chrom || (p.chrom == o.chrom && p.base < o.base)
}

const (
	rLeafItemSize  = 32
	rInnerItemSize = 24
)

// overlappingBlocks returns the data blocks whose bounds intersect
// [start, end) on chromosome chromID, in file order.
func (r *Reader) overlappingBlocks(chromID, start, end uint32) ([]block, error) {
	buf, err := r.readAt(r.header.FullIndexOffset, 4)
	if err != nil {
		return nil, errors.Wrap(err, "bbi: read index")
	}
	if magic := r.order.Uint32(buf); magic != rTreeMagic {
		return nil, errors.Errorf("bbi: bad index magic %#x", magic)
	}
	var blocks []block
	qStart, qEnd := pos{chromID, start}, pos{chromID, end}
	err = r.walkRTree(r.header.FullIndexOffset+rTreeHeaderSize, qStart, qEnd, &blocks)
	vlog.VI(2).Infof("bbi: chrom %d [%d, %d): %d block(s)", chromID, start, end, len(blocks))
	return blocks, err
}

func (r *Reader) walkRTree(off uint64, qStart, qEnd pos, blocks *[]block) error {
	h, err := r.readNodeHeader(off)
	if err != nil {
		return errors.Wrapf(err, "bbi: index node at %d", off)
	}
	itemSize := rInnerItemSize
	if h.IsLeaf != 0 {
		itemSize = rLeafItemSize
	}
	buf, err := r.readAt(off+nodeHeaderSize, int(h.Count)*itemSize)
	if err != nil {
		return errors.Wrapf(err, "bbi: index node at %d", off)
	}
	for i := 0; i < int(h.Count); i++ {
		item := buf[i*itemSize : (i+1)*itemSize]
		lo := pos{r.order.Uint32(item[0:]), r.order.Uint32(item[4:])}
		hi := pos{r.order.Uint32(item[8:]), r.order.Uint32(item[12:])}
		if !(qStart.less(hi) && lo.less(qEnd)) {
			continue
		}
		if h.IsLeaf != 0 {
			*blocks = append(*blocks, block{offset: r.order.Uint64(item[16:]), size: r.order.Uint64(item[24:])})
			continue
		}
		if err := r.walkRTree(r.order.Uint64(item[16:]), qStart, qEnd, blocks); err != nil {
			return err
		}
	}
	return nil
}
