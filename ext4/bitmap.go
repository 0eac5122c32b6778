package ext4

import (
	"io"

	"golang.org/x/xerrors"
)

// Status is the allocation state of an inode or block. An uninitialized
// group has no bitmap on disk, which is not the same as free.
type Status int

const (
	StatusInUse Status = iota
	StatusFree
	StatusUninitialized
)

func (s Status) String() string {
	switch s {
	case StatusInUse:
		return "in use"
	case StatusFree:
		return "free"
	case StatusUninitialized:
		return "uninitialized"
	default:
		return "unknown"
	}
}

// testBit reads bit n of a LSB-first bitmap.
func testBit(bitmap []byte, n uint64) Status {
	if bitmap[n/8]&(1<<(n%8)) != 0 {
		return StatusInUse
	}
	return StatusFree
}

func bitStatus(r io.ReaderAt, g *Geometry, block, bit uint64) (Status, error) {
	if bit/8 >= g.BlockSize {
		return 0, xerrors.Errorf("bit %d past bitmap block: %w", bit, ErrInconsistentSuperblock)
	}
	bitmap, err := readBlockAt(r, block, g.BlockSize, 1)
	if err != nil {
		return 0, xerrors.Errorf("failed to read bitmap block %d: %w", block, err)
	}
	return testBit(bitmap, bit), nil
}

// InodeStatus reports the allocation state of inode ino. Groups flagged
// INODE_UNINIT are answered without reading the bitmap.
func InodeStatus(r io.ReaderAt, g *Geometry, gds GroupDescriptors, ino uint64) (Status, error) {
	group, index, err := g.GroupOfInode(ino)
	if err != nil {
		return 0, err
	}
	gd, err := gds.Get(group)
	if err != nil {
		return 0, xerrors.Errorf("failed to get group descriptor of inode %d: %w", ino, err)
	}
	if gd.InodeUninit() {
		return StatusUninitialized, nil
	}
	return bitStatus(r, g, gd.InodeBitmap(g.Features.Is64Bit), index)
}

// BlockStatus reports the allocation state of block. Groups flagged
// BLOCK_UNINIT are answered without reading the bitmap. With bigalloc the
// bitmap tracks clusters.
func BlockStatus(r io.ReaderAt, g *Geometry, gds GroupDescriptors, block uint64) (Status, error) {
	group, offset, err := g.GroupOfBlock(block)
	if err != nil {
		return 0, err
	}
	gd, err := gds.Get(group)
	if err != nil {
		return 0, xerrors.Errorf("failed to get group descriptor of block %d: %w", block, err)
	}
	if gd.BlockUninit() {
		return StatusUninitialized, nil
	}
	return bitStatus(r, g, gd.BlockBitmap(g.Features.Is64Bit), offset/g.ClusterRatio)
}
