package ext4

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// Layout of the small image built by newTestImage, 1k blocks:
//
//	block 0       boot sector
//	block 1       superblock
//	block 2       descriptor table
//	block 3       group 0 block bitmap
//	block 4       group 0 inode bitmap
//	blocks 5-8    group 0 inode table
//	block 20      xattr block
//	block 33      group 1 superblock backup
//	block 34      group 1 descriptor backup
//	block 35      group 1 block bitmap
//	block 36      group 1 inode bitmap
//	blocks 37-40  group 1 inode table
const (
	testBlockSize      = 1024
	testBlockCount     = 65
	testBlocksPerGroup = 32
	testInodesPerGroup = 16
	testInodeSize      = 256

	testXattrBlock = 20
)

type testImage struct {
	t   *testing.T
	buf []byte
	sb  *Superblock
}

func testSuperblock() *Superblock {
	return &Superblock{
		InodeCount:      2 * testInodesPerGroup,
		BlockCountLo:    testBlockCount,
		FirstDataBlock:  1,
		LogBlockSize:    0,
		BlockPerGroup:   testBlocksPerGroup,
		ClusterPerGroup: testBlocksPerGroup,
		InodePerGroup:   testInodesPerGroup,
		Magic:           SuperBlockMagic,
		RevLevel:        1,
		FirstIno:        11,
		InodeSize:       testInodeSize,
		FeatureCompat:   FEATURE_COMPAT_EXT_ATTR,
		FeatureRoCompat: FEATURE_RO_COMPAT_SPARSE_SUPER | FEATURE_RO_COMPAT_EXTRA_ISIZE,
		FeatureIncompat: FEATURE_INCOMPAT_FILETYPE | FEATURE_INCOMPAT_EXTENTS,
		UUID:            [16]byte{0xde, 0xad, 0xbe, 0xef, 0, 1, 0x40, 2, 0x80, 3, 4, 5, 6, 7, 8, 9},
		VolumeName:      [16]byte{'s', 'c', 'r', 'a', 't', 'c', 'h'},
	}
}

func testDescriptors() [2]GroupDescriptor {
	return [2]GroupDescriptor{
		{BlockBitmapLo: 3, InodeBitmapLo: 4, InodeTableLo: 5, FreeBlocksCountLo: 20, FreeInodesCountLo: 4, UsedDirsCountLo: 2},
		{BlockBitmapLo: 35, InodeBitmapLo: 36, InodeTableLo: 37, FreeBlocksCountLo: 24, FreeInodesCountLo: 16,
			Flags: BG_INODE_UNINIT | BG_BLOCK_UNINIT},
	}
}

// newTestImage lays out a two group filesystem: group 0 with inodes 1-12
// and blocks 1-11 in use, group 1 uninitialized.
func newTestImage(t *testing.T) *testImage {
	t.Helper()
	img := &testImage{
		t:   t,
		buf: make([]byte, testBlockCount*testBlockSize),
		sb:  testSuperblock(),
	}
	img.writeSuperblock()
	for i, gd := range testDescriptors() {
		img.putDescriptor(2, uint64(i), MinDescSize, gd)
	}
	img.setBits(3, 0, 11)
	img.setBits(4, 0, 12)
	// group 1 bitmaps hold garbage, the flags say not to trust them
	for i := range img.block(35) {
		img.block(35)[i] = 0xa5
		img.block(36)[i] = 0x5a
	}
	return img
}

func (img *testImage) writeSuperblock() {
	img.t.Helper()
	var b bytes.Buffer
	require.NoError(img.t, binary.Write(&b, binary.LittleEndian, img.sb))
	require.Equal(img.t, SuperBlockSize, b.Len())
	copy(img.buf[SuperBlockOffset:], b.Bytes())
}

func (img *testImage) block(n uint64) []byte {
	return img.buf[n*testBlockSize : (n+1)*testBlockSize]
}

// putDescriptor stores the first size bytes of gd as entry index of the
// descriptor block at block.
func (img *testImage) putDescriptor(block, index, size uint64, gd GroupDescriptor) {
	img.t.Helper()
	var b bytes.Buffer
	require.NoError(img.t, binary.Write(&b, binary.LittleEndian, &gd))
	copy(img.block(block)[index*size:], b.Bytes()[:size])
}

func (img *testImage) setBits(block uint64, from, to int) {
	bm := img.block(block)
	for n := from; n < to; n++ {
		bm[n/8] |= 1 << (n % 8)
	}
}

// putInode encodes inode at its slot in group 0's table and returns the
// raw record.
func (img *testImage) putInode(ino uint64, inode Inode) []byte {
	img.t.Helper()
	var b bytes.Buffer
	require.NoError(img.t, binary.Write(&b, binary.LittleEndian, &inode))
	off := 5*testBlockSize + (ino-1)*testInodeSize
	copy(img.buf[off:off+testInodeSize], b.Bytes())
	return img.buf[off : off+testInodeSize]
}

func (img *testImage) reader() *bytes.Reader {
	return bytes.NewReader(img.buf)
}

type testXattr struct {
	index uint8
	name  string
	value string
}

// buildXattrs lays out size bytes the way the kernel does: header, entries
// growing from the front, a zero terminator, values packed at the back.
// Value offsets are written relative to valueBase.
func buildXattrs(t *testing.T, header []byte, size int, valueBase int, attrs ...testXattr) []byte {
	t.Helper()
	buf := make([]byte, size)
	copy(buf, header)
	off := len(header)
	end := size
	for _, a := range attrs {
		end -= int(roundUp(uint64(len(a.value)), xattrPad))
		copy(buf[end:], a.value)

		e := buf[off:]
		e[0] = uint8(len(a.name))
		e[1] = a.index
		binary.LittleEndian.PutUint16(e[2:], uint16(end-valueBase))
		binary.LittleEndian.PutUint32(e[4:], 0)
		binary.LittleEndian.PutUint32(e[8:], uint32(len(a.value)))
		binary.LittleEndian.PutUint32(e[12:], 0x1234)
		copy(e[xattrEntryHeaderSize:], a.name)
		off += int(roundUp(xattrEntryHeaderSize+uint64(len(a.name)), xattrPad))
	}
	require.LessOrEqual(t, off+4, end, "xattr table overflows")
	return buf
}

func xattrBlockHeader() []byte {
	hdr := make([]byte, xattrBlockHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:], XATTR_MAGIC)
	binary.LittleEndian.PutUint32(hdr[4:], 1)
	binary.LittleEndian.PutUint32(hdr[8:], 1)
	return hdr
}
