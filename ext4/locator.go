package ext4

import (
	"io"

	"golang.org/x/xerrors"
)

// HasSuperblock reports whether group carries a superblock copy (and, outside
// meta_bg, a copy of the descriptor table).
func (g *Geometry) HasSuperblock(group uint64) bool {
	if group == 0 {
		return true
	}
	if g.Features.SparseSuper2 {
		return group == g.BackupGroups[0] || group == g.BackupGroups[1]
	}
	if group == 1 || !g.Features.SparseSuper {
		return true
	}
	if group%2 == 0 {
		return false
	}
	return isPowerOf(group, 3) || isPowerOf(group, 5) || isPowerOf(group, 7)
}

func isPowerOf(n, base uint64) bool {
	for n > 1 && n%base == 0 {
		n /= base
	}
	return n == 1
}

// GroupLocation returns the first block of group.
func (g *Geometry) GroupLocation(group uint64) uint64 {
	loc := g.FirstDataBlock + group*g.BlocksPerGroup
	// with 1k blocks and bigalloc, block 0 is shared with the boot sector and
	// the superblock lives in block 1
	if group == 0 && g.BlockSize == MinBlockSize && g.ClusterRatio > 1 {
		loc++
	}
	return loc
}

// GroupDescriptorLocation returns the block holding descriptor block idx.
// Before s_first_meta_bg descriptors follow the group 0 superblock; from
// there on each meta group stores its own descriptor block in its first group.
func (g *Geometry) GroupDescriptorLocation(idx uint64) uint64 {
	if !g.Features.MetaBG || idx < g.FirstMetaBG {
		return g.GroupLocation(0) + 1 + idx
	}
	group := g.DescriptorsPerBlock * idx
	loc := g.GroupLocation(group)
	if g.HasSuperblock(group) {
		loc++
	}
	return loc
}

// contiguousDescriptorBlocks is the number of descriptor blocks stored as one
// run after the primary superblock.
func (g *Geometry) contiguousDescriptorBlocks() uint64 {
	if !g.Features.MetaBG || g.FirstMetaBG > g.DescriptorBlocks {
		return g.DescriptorBlocks
	}
	return g.FirstMetaBG
}

// descriptorChunkBlocks caps each read of the contiguous run, so a table
// that is not really there fails before much is allocated.
const descriptorChunkBlocks = 256

// ReadGroupDescriptors loads the whole descriptor table: the contiguous run
// after the superblock, then every meta_bg descriptor block from its own
// location.
func ReadGroupDescriptors(r io.ReaderAt, g *Geometry) (GroupDescriptors, error) {
	if r == nil || g == nil || g.BlockSize == 0 || g.DescriptorSize == 0 || g.DescriptorsPerBlock == 0 {
		return GroupDescriptors{}, xerrors.Errorf("nil device or incomplete geometry: %w", ErrInvalidArgument)
	}
	if g.DescriptorBlocks > maxReadSize/g.BlockSize ||
		g.GroupCount > g.DescriptorBlocks*g.DescriptorsPerBlock ||
		g.DescriptorsPerBlock*g.DescriptorSize > g.BlockSize {
		return GroupDescriptors{}, xerrors.Errorf("%d groups in %d descriptor blocks: %w",
			g.GroupCount, g.DescriptorBlocks, ErrInconsistentSuperblock)
	}

	var raw []byte
	run := g.contiguousDescriptorBlocks()
	start := g.GroupDescriptorLocation(0)
	for done := uint64(0); done < run; {
		n := run - done
		if n > descriptorChunkBlocks {
			n = descriptorChunkBlocks
		}
		buf, err := readBlockAt(r, start+done, g.BlockSize, n)
		if err != nil {
			return GroupDescriptors{}, xerrors.Errorf("failed to read group descriptor table: %w", err)
		}
		raw = append(raw, buf...)
		done += n
	}
	for i := run; i < g.DescriptorBlocks; i++ {
		buf, err := readBlockAt(r, g.GroupDescriptorLocation(i), g.BlockSize, 1)
		if err != nil {
			return GroupDescriptors{}, xerrors.Errorf("failed to read meta_bg descriptor block %d: %w", i, err)
		}
		raw = append(raw, buf...)
	}

	gds := make([]GroupDescriptor, g.GroupCount)
	for i := range gds {
		n := uint64(i)
		off := n/g.DescriptorsPerBlock*g.BlockSize + n%g.DescriptorsPerBlock*g.DescriptorSize
		gd, err := parseGroupDescriptor(raw[off : off+g.DescriptorSize])
		if err != nil {
			return GroupDescriptors{}, xerrors.Errorf("failed to parse group descriptor %d: %w", i, err)
		}
		gds[i] = gd
	}
	return GroupDescriptors{gds: gds}, nil
}
