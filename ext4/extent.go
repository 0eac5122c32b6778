package ext4

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"golang.org/x/xerrors"
)

const (
	ExtentMagic = 0xF30A

	extentHeaderSize = 12
	extentEntrySize  = 12
	maxExtentDepth   = 5

	// extents longer than this are unwritten (preallocated)
	maxInitExtentLen = 32768
)

// ExtentHeader heads every node of the extent tree, including the root
// stored in i_block.
type ExtentHeader struct {
	Magic      uint16 `struc:"uint16,little"`
	Entries    uint16 `struc:"uint16,little"`
	Max        uint16 `struc:"uint16,little"`
	Depth      uint16 `struc:"uint16,little"`
	Generation uint32 `struc:"uint32,little"`
}

// Extent is extent tree leaf nodes
type Extent struct {
	Block   uint32 `struc:"uint32,little"`
	Len     uint16 `struc:"uint16,little"`
	StartHi uint16 `struc:"uint16,little"`
	StartLo uint32 `struc:"uint32,little"`
}

// ExtentInternal is an index node entry pointing at the next level.
type ExtentInternal struct {
	Block    uint32 `struc:"uint32,little"`
	LeafLow  uint32 `struc:"uint32,little"`
	LeafHigh uint16 `struc:"uint16,little"`
	Unused   uint16 `struc:"uint16,little"`
}

// Start returns the first physical block of the extent.
func (e *Extent) Start() uint64 {
	return uint64(e.StartHi)<<32 | uint64(e.StartLo)
}

// Length returns the number of blocks covered, unwritten or not.
func (e *Extent) Length() uint64 {
	if e.Len > maxInitExtentLen {
		return uint64(e.Len - maxInitExtentLen)
	}
	return uint64(e.Len)
}

func (e *Extent) Unwritten() bool {
	return e.Len > maxInitExtentLen
}

func (e *ExtentInternal) leaf() uint64 {
	return uint64(e.LeafHigh)<<32 | uint64(e.LeafLow)
}

// Extents resolves the physical block runs of an extent mapped inode,
// sorted by logical block.
func Extents(r io.ReaderAt, g *Geometry, inode *Inode) ([]Extent, error) {
	if !inode.UsesExtents() {
		return nil, xerrors.Errorf("inode flags 0x%x without EXTENTS_FL: %w", inode.Flags, ErrInvalidArgument)
	}
	extents, err := walkExtents(r, g, inode.BlockOrExtents[:], -1, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to get extents: %w", err)
	}
	sort.Slice(extents, func(i, j int) bool {
		return extents[i].Block < extents[j].Block
	})
	return extents, nil
}

// walkExtents decodes node b. depth is the depth the parent expects, -1 at
// the root.
func walkExtents(r io.ReaderAt, g *Geometry, b []byte, depth int, extents []Extent) ([]Extent, error) {
	extentReader := bytes.NewReader(b)
	var hdr ExtentHeader
	if err := binary.Read(extentReader, binary.LittleEndian, &hdr); err != nil {
		return nil, xerrors.Errorf("failed to parse extent header (%v): %w", err, ErrShortRead)
	}
	if hdr.Magic != ExtentMagic {
		return nil, xerrors.Errorf("extent header magic 0x%04x: %w", hdr.Magic, ErrBadMagic)
	}
	if hdr.Depth > maxExtentDepth || (depth >= 0 && int(hdr.Depth) != depth) {
		return nil, xerrors.Errorf("extent node depth %d, want %d: %w", hdr.Depth, depth, ErrBadMagic)
	}
	if extentHeaderSize+int(hdr.Entries)*extentEntrySize > len(b) {
		return nil, xerrors.Errorf("%d extent entries in %d bytes: %w", hdr.Entries, len(b), ErrShortRead)
	}

	if hdr.Depth == 0 {
		for i := uint16(0); i < hdr.Entries; i++ {
			var extent Extent
			if err := binary.Read(extentReader, binary.LittleEndian, &extent); err != nil {
				return nil, xerrors.Errorf("failed to read leaf node extent: %w", err)
			}
			extents = append(extents, extent)
		}
		return extents, nil
	}

	for i := uint16(0); i < hdr.Entries; i++ {
		var idx ExtentInternal
		if err := binary.Read(extentReader, binary.LittleEndian, &idx); err != nil {
			return nil, xerrors.Errorf("failed to read internal extent: %w", err)
		}
		node, err := readBlockAt(r, idx.leaf(), g.BlockSize, 1)
		if err != nil {
			return nil, xerrors.Errorf("failed to read extent node %d: %w", idx.leaf(), err)
		}
		extents, err = walkExtents(r, g, node, int(hdr.Depth)-1, extents)
		if err != nil {
			return nil, err
		}
	}
	return extents, nil
}
