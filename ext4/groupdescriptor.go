package ext4

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"
)

// GroupDescriptor is the 64 byte layout. 32 byte descriptors are zero padded
// before decoding, so the high halves read as zero.
type GroupDescriptor struct {
	BlockBitmapLo     uint32 `struc:"uint32,little"`
	InodeBitmapLo     uint32 `struc:"uint32,little"`
	InodeTableLo      uint32 `struc:"uint32,little"`
	FreeBlocksCountLo uint16 `struc:"uint16,little"`
	FreeInodesCountLo uint16 `struc:"uint16,little"`
	UsedDirsCountLo   uint16 `struc:"uint16,little"`
	Flags             uint16 `struc:"uint16,little"`
	ExcludeBitmapLo   uint32 `struc:"uint32,little"`
	BlockBitmapCsumLo uint16 `struc:"uint16,little"`
	InodeBitmapCsumLo uint16 `struc:"uint16,little"`
	ItableUnusedLo    uint16 `struc:"uint16,little"`
	Checksum          uint16 `struc:"uint16,little"`
	BlockBitmapHi     uint32 `struc:"uint32,little"`
	InodeBitmapHi     uint32 `struc:"uint32,little"`
	InodeTableHi      uint32 `struc:"uint32,little"`
	FreeBlocksCountHi uint16 `struc:"uint16,little"`
	FreeInodesCountHi uint16 `struc:"uint16,little"`
	UsedDirsCountHi   uint16 `struc:"uint16,little"`
	ItableUnusedHi    uint16 `struc:"uint16,little"`
	ExcludeBitmapHi   uint32 `struc:"uint32,little"`
	BlockBitmapCsumHi uint16 `struc:"uint16,little"`
	InodeBitmapCsumHi uint16 `struc:"uint16,little"`
	Reserved          uint32 `struc:"uint32,little"`
}

func parseGroupDescriptor(b []byte) (GroupDescriptor, error) {
	var gd GroupDescriptor
	if len(b) < MinDescSize64bit {
		b = append(append([]byte{}, b...), make([]byte, MinDescSize64bit-len(b))...)
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &gd); err != nil {
		return GroupDescriptor{}, xerrors.Errorf("failed to binary read group descriptor (%v): %w", err, ErrShortRead)
	}
	return gd, nil
}

func (gd *GroupDescriptor) BlockBitmap(featureInCompat64bit bool) uint64 {
	return Wide(gd.BlockBitmapLo, gd.BlockBitmapHi, featureInCompat64bit)
}

func (gd *GroupDescriptor) InodeBitmap(featureInCompat64bit bool) uint64 {
	return Wide(gd.InodeBitmapLo, gd.InodeBitmapHi, featureInCompat64bit)
}

func (gd *GroupDescriptor) InodeTable(featureInCompat64bit bool) uint64 {
	return Wide(gd.InodeTableLo, gd.InodeTableHi, featureInCompat64bit)
}

func (gd *GroupDescriptor) ExcludeBitmap(featureInCompat64bit bool) uint64 {
	return Wide(gd.ExcludeBitmapLo, gd.ExcludeBitmapHi, featureInCompat64bit)
}

func (gd *GroupDescriptor) FreeInodesCount(featureInCompat64bit bool) uint32 {
	if !featureInCompat64bit {
		return uint32(gd.FreeInodesCountLo)
	}
	return Join16(gd.FreeInodesCountLo, gd.FreeInodesCountHi)
}

func (gd *GroupDescriptor) FreeBlocksCount() uint32 {
	return Join16(gd.FreeBlocksCountLo, gd.FreeBlocksCountHi)
}

func (gd *GroupDescriptor) UsedDirsCount() uint32 {
	return Join16(gd.UsedDirsCountLo, gd.UsedDirsCountHi)
}

func (gd *GroupDescriptor) ItableUnused() uint32 {
	return Join16(gd.ItableUnusedLo, gd.ItableUnusedHi)
}

func (gd *GroupDescriptor) InodeUninit() bool { return gd.Flags&BG_INODE_UNINIT != 0 }
func (gd *GroupDescriptor) BlockUninit() bool { return gd.Flags&BG_BLOCK_UNINIT != 0 }
func (gd *GroupDescriptor) InodeZeroed() bool { return gd.Flags&BG_INODE_ZEROED != 0 }

// GroupDescriptors owns the descriptor table. Every access is checked
// against the group count.
type GroupDescriptors struct {
	gds []GroupDescriptor
}

func (d GroupDescriptors) Len() int {
	return len(d.gds)
}

// Get returns a copy of the descriptor of group.
func (d GroupDescriptors) Get(group uint64) (GroupDescriptor, error) {
	if group >= uint64(len(d.gds)) {
		return GroupDescriptor{}, xerrors.Errorf("group %d not in [0, %d): %w", group, len(d.gds), ErrInvalidArgument)
	}
	return d.gds[group], nil
}
