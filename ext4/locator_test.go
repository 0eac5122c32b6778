package ext4

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestGroupLocationIncreasing(t *testing.T) {
	geometries := map[string]*Geometry{
		"1k":          {BlockSize: 1024, ClusterRatio: 1, FirstDataBlock: 1, BlocksPerGroup: 8192},
		"4k":          {BlockSize: 4096, ClusterRatio: 1, FirstDataBlock: 0, BlocksPerGroup: 32768},
		"1k bigalloc": {BlockSize: 1024, ClusterRatio: 16, FirstDataBlock: 0, BlocksPerGroup: 8192},
		"tiny groups": {BlockSize: 1024, ClusterRatio: 1, FirstDataBlock: 1, BlocksPerGroup: 1},
	}
	for name, g := range geometries {
		t.Run(name, func(t *testing.T) {
			prev := g.GroupLocation(0)
			for group := uint64(1); group < 1000; group++ {
				loc := g.GroupLocation(group)
				require.Greater(t, loc, prev, "group %d", group)
				prev = loc
			}
		})
	}
}

func TestGroupLocationBigalloc1k(t *testing.T) {
	g := &Geometry{BlockSize: 1024, ClusterRatio: 16, FirstDataBlock: 0, BlocksPerGroup: 8192}
	assert.Equal(t, uint64(1), g.GroupLocation(0))
	assert.Equal(t, uint64(8192), g.GroupLocation(1))

	g.ClusterRatio = 1
	assert.Equal(t, uint64(0), g.GroupLocation(0))

	g = &Geometry{BlockSize: 4096, ClusterRatio: 16, FirstDataBlock: 0, BlocksPerGroup: 32768}
	assert.Equal(t, uint64(0), g.GroupLocation(0))
}

func TestHasSuperblock(t *testing.T) {
	t.Run("sparse_super", func(t *testing.T) {
		g := &Geometry{Features: Features{SparseSuper: true}}
		var got []uint64
		for group := uint64(0); group < 130; group++ {
			if g.HasSuperblock(group) {
				got = append(got, group)
			}
		}
		want := []uint64{0, 1, 3, 5, 7, 9, 25, 27, 49, 81, 125}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("backup groups mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no sparse_super", func(t *testing.T) {
		g := &Geometry{}
		for group := uint64(0); group < 64; group++ {
			assert.True(t, g.HasSuperblock(group), "group %d", group)
		}
	})

	t.Run("sparse_super2", func(t *testing.T) {
		g := &Geometry{
			Features:     Features{SparseSuper: true, SparseSuper2: true},
			BackupGroups: [2]uint64{1, 9},
		}
		for group := uint64(0); group < 64; group++ {
			want := group == 0 || group == 1 || group == 9
			assert.Equal(t, want, g.HasSuperblock(group), "group %d", group)
		}

		g.BackupGroups = [2]uint64{0, 0}
		assert.True(t, g.HasSuperblock(0))
		assert.False(t, g.HasSuperblock(1))
	})
}

func TestIsPowerOf(t *testing.T) {
	for _, n := range []uint64{1, 3, 9, 27, 243, 59049} {
		assert.True(t, isPowerOf(n, 3), "%d", n)
	}
	for _, n := range []uint64{0, 2, 6, 15, 45, 59048} {
		assert.False(t, isPowerOf(n, 3), "%d", n)
	}
}

func TestGroupDescriptorLocation(t *testing.T) {
	g := &Geometry{
		Features:            Features{SparseSuper: true, MetaBG: true},
		BlockSize:           1024,
		ClusterRatio:        1,
		FirstDataBlock:      1,
		BlocksPerGroup:      8192,
		DescriptorsPerBlock: 32,
		DescriptorBlocks:    4,
		FirstMetaBG:         1,
	}
	assert.Equal(t, uint64(2), g.GroupDescriptorLocation(0))
	// group 32 has no backup superblock, group 64 neither
	assert.Equal(t, uint64(1+32*8192), g.GroupDescriptorLocation(1))
	assert.Equal(t, uint64(1+64*8192), g.GroupDescriptorLocation(2))
	assert.Equal(t, uint64(1), g.contiguousDescriptorBlocks())

	g.Features.SparseSuper = false
	assert.Equal(t, uint64(1+32*8192+1), g.GroupDescriptorLocation(1))

	// s_first_meta_bg past the table: every block is in the contiguous run
	g.FirstMetaBG = 9
	for idx := uint64(0); idx < 4; idx++ {
		assert.Equal(t, 2+idx, g.GroupDescriptorLocation(idx))
	}
	assert.Equal(t, uint64(4), g.contiguousDescriptorBlocks())
	g.FirstMetaBG = 1

	g.Features.MetaBG = false
	for idx := uint64(0); idx < 4; idx++ {
		assert.Equal(t, 2+idx, g.GroupDescriptorLocation(idx))
	}
	assert.Equal(t, uint64(4), g.contiguousDescriptorBlocks())
}

func TestReadGroupDescriptors(t *testing.T) {
	img := newTestImage(t)
	g, err := NewGeometry(img.sb)
	require.NoError(t, err)

	gds, err := ReadGroupDescriptors(img.reader(), g)
	require.NoError(t, err)
	require.Equal(t, 2, gds.Len())

	for i, want := range testDescriptors() {
		got, err := gds.Get(uint64(i))
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("group %d descriptor mismatch (-want +got):\n%s", i, diff)
		}
	}

	_, err = gds.Get(2)
	assert.True(t, xerrors.Is(err, ErrInvalidArgument), "got %v", err)

	_, err = ReadGroupDescriptors(nil, g)
	assert.True(t, xerrors.Is(err, ErrInvalidArgument), "got %v", err)
}

// metaBGImage builds a 1k block filesystem of 40 groups of 8 blocks with
// meta_bg set. With firstMetaBG 1 the first descriptor block follows the
// superblock and the second lives in group 32.
func metaBGImage(t *testing.T, firstMetaBG uint32) ([]byte, *Geometry) {
	t.Helper()
	const (
		groups = 40
		bpg    = 8
	)
	sb := &Superblock{
		InodeCount:      groups * 8,
		BlockCountLo:    1 + groups*bpg,
		FirstDataBlock:  1,
		BlockPerGroup:   bpg,
		InodePerGroup:   8,
		Magic:           SuperBlockMagic,
		RevLevel:        1,
		InodeSize:       GoodOldInodeSize,
		FirstMetaBg:     firstMetaBG,
		FeatureRoCompat: FEATURE_RO_COMPAT_SPARSE_SUPER,
		FeatureIncompat: FEATURE_INCOMPAT_META_BG,
	}
	g, err := NewGeometry(sb)
	require.NoError(t, err)
	require.Equal(t, uint64(groups), g.GroupCount)
	require.Equal(t, uint64(2), g.DescriptorBlocks)

	img := &testImage{t: t, buf: make([]byte, (1+groups*bpg)*1024), sb: sb}
	img.writeSuperblock()
	for i := uint64(0); i < groups; i++ {
		gd := GroupDescriptor{InodeTableLo: uint32(1000 + i), FreeBlocksCountLo: uint16(i)}
		img.putDescriptor(g.GroupDescriptorLocation(i/32), i%32, MinDescSize, gd)
	}
	return img.buf, g
}

func TestReadGroupDescriptorsMetaBG(t *testing.T) {
	buf, g := metaBGImage(t, 1)
	assert.Equal(t, uint64(257), g.GroupDescriptorLocation(1))

	gds, err := ReadGroupDescriptors(bytes.NewReader(buf), g)
	require.NoError(t, err)
	require.Equal(t, 40, gds.Len())
	for _, group := range []uint64{0, 31, 32, 39} {
		gd, err := gds.Get(group)
		require.NoError(t, err)
		assert.Equal(t, 1000+group, gd.InodeTable(false), "group %d", group)
		assert.Equal(t, uint32(group), gd.FreeBlocksCount(), "group %d", group)
	}

	_, err = ReadGroupDescriptors(bytes.NewReader(buf[:257*1024]), g)
	assert.True(t, xerrors.Is(err, ErrShortRead), "got %v", err)
}

func TestReadGroupDescriptorsFirstMetaBGPastTable(t *testing.T) {
	buf, g := metaBGImage(t, 5)
	require.True(t, g.Features.MetaBG)
	assert.Equal(t, g.DescriptorBlocks, g.contiguousDescriptorBlocks())
	assert.Equal(t, uint64(3), g.GroupDescriptorLocation(1))

	gds, err := ReadGroupDescriptors(bytes.NewReader(buf), g)
	require.NoError(t, err)
	require.Equal(t, 40, gds.Len())
	for group := uint64(0); group < 40; group++ {
		gd, err := gds.Get(group)
		require.NoError(t, err)
		assert.Equal(t, 1000+group, gd.InodeTable(false), "group %d", group)
	}

	_, err = ReadGroupDescriptors(bytes.NewReader(buf[:3*1024]), g)
	assert.True(t, xerrors.Is(err, ErrShortRead), "got %v", err)
}

func TestReadGroupDescriptors64bit(t *testing.T) {
	const groups = 40
	sb := &Superblock{
		InodeCount:      groups * 8,
		BlockCountLo:    1 + groups*8,
		FirstDataBlock:  1,
		BlockPerGroup:   8,
		InodePerGroup:   8,
		Magic:           SuperBlockMagic,
		RevLevel:        1,
		InodeSize:       GoodOldInodeSize,
		DescSize:        MinDescSize64bit,
		FeatureIncompat: FEATURE_INCOMPAT_64BIT,
	}
	g, err := NewGeometry(sb)
	require.NoError(t, err)
	require.Equal(t, uint64(16), g.DescriptorsPerBlock)
	require.Equal(t, uint64(3), g.DescriptorBlocks)

	img := &testImage{t: t, buf: make([]byte, (1+groups*8)*1024), sb: sb}
	img.writeSuperblock()
	for i := uint64(0); i < groups; i++ {
		gd := GroupDescriptor{InodeTableLo: uint32(1000 + i), InodeTableHi: uint32(i)}
		img.putDescriptor(2+i/16, i%16, MinDescSize64bit, gd)
	}

	gds, err := ReadGroupDescriptors(img.reader(), g)
	require.NoError(t, err)
	for group := uint64(0); group < groups; group++ {
		gd, err := gds.Get(group)
		require.NoError(t, err)
		assert.Equal(t, group<<32|(1000+group), gd.InodeTable(true), "group %d", group)
	}
}

func TestReadGroupDescriptorsLyingSuperblock(t *testing.T) {
	sb := &Superblock{
		InodeCount:    1 << 20,
		BlockCountLo:  0xffffffff,
		LogBlockSize:  2,
		BlockPerGroup: 1,
		InodePerGroup: 1,
		Magic:         SuperBlockMagic,
		RevLevel:      1,
		InodeSize:     GoodOldInodeSize,
	}
	img := &testImage{t: t, buf: make([]byte, 4096), sb: sb}
	img.writeSuperblock()

	// about 2^32 groups: the table could never be read in one go
	_, _, err := OpenGeometry(img.reader())
	assert.True(t, xerrors.Is(err, ErrInconsistentSuperblock), "got %v", err)

	huge := &Geometry{
		BlockSize:           4096,
		GroupCount:          0xffffffff,
		DescriptorSize:      MinDescSize,
		DescriptorsPerBlock: 128,
		DescriptorBlocks:    1 << 25,
	}
	_, err = ReadGroupDescriptors(img.reader(), huge)
	assert.True(t, xerrors.Is(err, ErrInconsistentSuperblock), "got %v", err)

	// 2^20 groups fit the limit but the image ends long before the table does
	sb.BlockCountLo = 1 << 20
	img.writeSuperblock()
	_, g, err := OpenGeometry(img.reader())
	require.NoError(t, err)
	require.Equal(t, uint64(1<<20), g.GroupCount)
	_, err = ReadGroupDescriptors(img.reader(), g)
	assert.True(t, xerrors.Is(err, ErrShortRead), "got %v", err)
}
