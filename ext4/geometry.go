package ext4

import (
	"io"
	"math"

	"golang.org/x/xerrors"
)

/*
Ext4 Block Layout
+-----------------+------------------+-------------------+---------------------+-------------------+--------------+-------------+------------------+
| Group 0 Padding | ext4 Super Block | Group Descriptors | Reserved GDT Blocks | Data Block Bitmap | inode Bitmap | inode Table | Data Blocks      |
+-----------------+------------------+-------------------+---------------------+-------------------+--------------+-------------+------------------+
| 1024 bytes      | 1 block          | many blocks       | many blocks         | 1 block           | 1 block      | many blocks | many more blocks |
+-----------------+------------------+-------------------+---------------------+-------------------+--------------+-------------+------------------+
*/

// Geometry is everything derivable from the superblock alone. It is built
// once by NewGeometry and never modified, so it can be shared freely.
type Geometry struct {
	Features Features

	BlockSize    uint64
	ClusterRatio uint64

	BlockCount     uint64
	InodeCount     uint64
	FirstDataBlock uint64
	BlocksPerGroup uint64
	InodesPerGroup uint64
	InodeSize      uint64

	GroupCount          uint64
	DescriptorSize      uint64
	DescriptorsPerBlock uint64
	DescriptorBlocks    uint64
	InodeTableBlocks    uint64

	FirstMetaBG  uint64
	BackupGroups [2]uint64
}

// NewGeometry derives the filesystem geometry. A superblock whose counts
// would divide by zero or overflow is ErrInconsistentSuperblock.
func NewGeometry(sb *Superblock) (*Geometry, error) {
	if sb == nil {
		return nil, xerrors.Errorf("nil superblock: %w", ErrInvalidArgument)
	}
	if sb.LogBlockSize > maxLogBlockSize {
		return nil, xerrors.Errorf("s_log_block_size %d: %w", sb.LogBlockSize, ErrInconsistentSuperblock)
	}
	if sb.BlockPerGroup == 0 || sb.InodePerGroup == 0 {
		return nil, xerrors.Errorf("zero blocks (%d) or inodes (%d) per group: %w",
			sb.BlockPerGroup, sb.InodePerGroup, ErrInconsistentSuperblock)
	}

	features := sb.Features()
	g := &Geometry{
		Features:       features,
		BlockSize:      MinBlockSize << sb.LogBlockSize,
		ClusterRatio:   1,
		BlockCount:     sb.GetBlockCount(),
		InodeCount:     uint64(sb.InodeCount),
		FirstDataBlock: uint64(sb.FirstDataBlock),
		BlocksPerGroup: uint64(sb.BlockPerGroup),
		InodesPerGroup: uint64(sb.InodePerGroup),
		InodeSize:      sb.GetInodeSize(),
		FirstMetaBG:    uint64(sb.FirstMetaBg),
		BackupGroups:   [2]uint64{uint64(sb.BackupBgs[0]), uint64(sb.BackupBgs[1])},
	}

	if sb.LogClusterSize > sb.LogBlockSize {
		shift := sb.LogClusterSize - sb.LogBlockSize
		if shift > 31 {
			return nil, xerrors.Errorf("s_log_cluster_size %d: %w", sb.LogClusterSize, ErrInconsistentSuperblock)
		}
		g.ClusterRatio = 1 << shift
	}

	if g.BlockCount < g.FirstDataBlock {
		return nil, xerrors.Errorf("block count %d below first data block %d: %w",
			g.BlockCount, g.FirstDataBlock, ErrInconsistentSuperblock)
	}
	g.GroupCount = divWithRoundUp(g.BlockCount-g.FirstDataBlock, g.BlocksPerGroup)
	if g.GroupCount > math.MaxUint32 {
		return nil, xerrors.Errorf("group count %d: %w", g.GroupCount, ErrInconsistentSuperblock)
	}

	g.DescriptorSize = MinDescSize
	if features.Is64Bit {
		g.DescriptorSize = uint64(sb.DescSize)
	}
	// the kernel only mounts power of two sizes, which also keeps every
	// descriptor inside one block
	if g.DescriptorSize < MinDescSize || g.DescriptorSize > g.BlockSize || g.DescriptorSize&(g.DescriptorSize-1) != 0 {
		return nil, xerrors.Errorf("descriptor size %d: %w", g.DescriptorSize, ErrInconsistentSuperblock)
	}
	g.DescriptorsPerBlock = g.BlockSize / g.DescriptorSize
	g.DescriptorBlocks = divWithRoundUp(g.GroupCount, g.DescriptorsPerBlock)
	if g.DescriptorBlocks > maxReadSize/g.BlockSize {
		return nil, xerrors.Errorf("descriptor table of %d blocks: %w", g.DescriptorBlocks, ErrInconsistentSuperblock)
	}

	if g.InodeSize < GoodOldInodeSize || g.InodeSize > g.BlockSize {
		return nil, xerrors.Errorf("inode size %d: %w", g.InodeSize, ErrInconsistentSuperblock)
	}
	g.InodeTableBlocks = divWithRoundUp(g.InodesPerGroup*g.InodeSize, g.BlockSize)

	return g, nil
}

// OpenGeometry reads the primary superblock from r and derives its geometry.
func OpenGeometry(r io.ReaderAt) (*Superblock, *Geometry, error) {
	if r == nil {
		return nil, nil, xerrors.Errorf("nil device: %w", ErrInvalidArgument)
	}
	buf, err := readAt(r, SuperBlockOffset, SuperBlockSize)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to read super block: %w", err)
	}
	sb, err := parseSuperBlock(buf)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to parse super block: %w", err)
	}
	g, err := NewGeometry(sb)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to resolve geometry: %w", err)
	}
	return sb, g, nil
}

// Check reports whether r starts with an ext2/3/4 superblock.
func Check(r io.ReaderAt) bool {
	_, _, err := OpenGeometry(r)
	return err == nil
}

// GroupOfInode returns the group owning inode ino and its index in that
// group's inode table.
func (g *Geometry) GroupOfInode(ino uint64) (group, index uint64, err error) {
	if ino == 0 || ino > g.InodeCount {
		return 0, 0, xerrors.Errorf("inode %d not in [1, %d]: %w", ino, g.InodeCount, ErrInvalidArgument)
	}
	return (ino - 1) / g.InodesPerGroup, (ino - 1) % g.InodesPerGroup, nil
}

// GroupOfBlock returns the group owning block and the block's offset
// within the group.
func (g *Geometry) GroupOfBlock(block uint64) (group, offset uint64, err error) {
	if block < g.FirstDataBlock || block >= g.BlockCount {
		return 0, 0, xerrors.Errorf("block %d not in [%d, %d): %w", block, g.FirstDataBlock, g.BlockCount, ErrInvalidArgument)
	}
	rel := block - g.FirstDataBlock
	return rel / g.BlocksPerGroup, rel % g.BlocksPerGroup, nil
}
