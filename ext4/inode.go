package ext4

import (
	"bytes"
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

const inodeStructSize = 256

// Inode is index-node. Records shorter than the struct (128 byte inodes)
// are zero padded, records longer are truncated.
type Inode struct {
	Mode           uint16   `struc:"uint16,little"`
	UID            uint16   `struc:"uint16,little"`
	SizeLo         uint32   `struc:"uint32,little"`
	Atime          uint32   `struc:"uint32,little"`
	Ctime          uint32   `struc:"uint32,little"`
	Mtime          uint32   `struc:"uint32,little"`
	Dtime          uint32   `struc:"uint32,little"`
	GID            uint16   `struc:"uint16,little"`
	LinksCount     uint16   `struc:"uint16,little"`
	BlocksLo       uint32   `struc:"uint32,little"`
	Flags          uint32   `struc:"uint32,little"`
	Osd1           uint32   `struc:"uint32,little"`
	BlockOrExtents [60]byte `struc:"[60]byte"`
	Generation     uint32   `struc:"uint32,little"`
	FileACLLo      uint32   `struc:"uint32,little"`
	SizeHigh       uint32   `struc:"uint32,little"`
	ObsoFaddr      uint32   `struc:"uint32,little"`
	// OSD2 - linux only starts
	BlocksHigh  uint16 `struc:"uint16,little"`
	FileACLHigh uint16 `struc:"uint16,little"`
	UIDHigh     uint16 `struc:"uint16,little"`
	GIDHigh     uint16 `struc:"uint16,little"`
	ChecksumLow uint16 `struc:"uint16,little"`
	Unused      uint16 `struc:"uint16,little"`
	// OSD2 - linux only ends
	ExtraIsize  uint16 `struc:"uint16,little"`
	ChecksumHi  uint16 `struc:"uint16,little"`
	CtimeExtra  uint32 `struc:"uint32,little"`
	MtimeExtra  uint32 `struc:"uint32,little"`
	AtimeExtra  uint32 `struc:"uint32,little"`
	Crtime      uint32 `struc:"uint32,little"`
	CrtimeExtra uint32 `struc:"uint32,little"`
	VersionHi   uint32 `struc:"uint32,little"`
	Projid      uint32 `struc:"uint32,little"`
	// padding
	Reserved [96]uint8 `struc:"[96]uint8"`
}

const (
	modeTypeMask = 0xF000
	modeSocket   = 0xC000
	modeSymlink  = 0xA000
	modeRegular  = 0x8000
	modeDir      = 0x4000
)

func (i Inode) IsDir() bool     { return i.Mode&modeTypeMask == modeDir }
func (i Inode) IsRegular() bool { return i.Mode&modeTypeMask == modeRegular }
func (i Inode) IsSocket() bool  { return i.Mode&modeTypeMask == modeSocket }
func (i Inode) IsSymlink() bool { return i.Mode&modeTypeMask == modeSymlink }

func (i *Inode) UsesExtents() bool {
	return (i.Flags & EXTENTS_FL) != 0
}

func (i *Inode) UsesDirectoryHashTree() bool {
	return (i.Flags & INDEX_FL) != 0
}

// GetSize is get inode file size
func (i *Inode) GetSize() uint64 {
	return uint64(i.SizeHigh)<<32 | uint64(i.SizeLo)
}

// FileACL returns the block holding this inode's external xattrs, 0 if none.
func (i *Inode) FileACL(featureInCompat64bit bool) uint64 {
	return Wide(i.FileACLLo, uint32(i.FileACLHigh), featureInCompat64bit)
}

func (i *Inode) UIDFull() uint32 { return Join16(i.UID, i.UIDHigh) }
func (i *Inode) GIDFull() uint32 { return Join16(i.GID, i.GIDHigh) }

func parseInode(b []byte) (*Inode, error) {
	if len(b) < inodeStructSize {
		b = append(append([]byte{}, b...), make([]byte, inodeStructSize-len(b))...)
	}
	inode := Inode{}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &inode); err != nil {
		return nil, xerrors.Errorf("failed to read binary (%v): %w", err, ErrShortRead)
	}
	return &inode, nil
}

// InodeOffset returns the byte offset of inode ino's record.
func InodeOffset(g *Geometry, gds GroupDescriptors, ino uint64) (int64, error) {
	group, index, err := g.GroupOfInode(ino)
	if err != nil {
		return 0, err
	}
	gd, err := gds.Get(group)
	if err != nil {
		return 0, xerrors.Errorf("failed to get group descriptor of inode %d: %w", ino, err)
	}
	table := gd.InodeTable(g.Features.Is64Bit)
	if table > (1<<63-1-index*g.InodeSize)/g.BlockSize {
		return 0, xerrors.Errorf("inode table block %d of group %d out of range: %w", table, group, ErrInconsistentSuperblock)
	}
	return int64(table*g.BlockSize + index*g.InodeSize), nil
}

// ReadInodeRecord reads the raw s_inode_size bytes of inode ino.
func ReadInodeRecord(r io.ReaderAt, g *Geometry, gds GroupDescriptors, ino uint64) ([]byte, error) {
	off, err := InodeOffset(g, gds, ino)
	if err != nil {
		return nil, xerrors.Errorf("failed to locate inode %d: %w", ino, err)
	}
	buf, err := readAt(r, off, int64(g.InodeSize))
	if err != nil {
		return nil, xerrors.Errorf("failed to read inode %d: %w", ino, err)
	}
	return buf, nil
}
