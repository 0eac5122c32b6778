package ext4

const (
	// SuperBlockOffset is the byte offset of the primary superblock
	SuperBlockOffset = 0x400
	SuperBlockSize   = 0x400
	SuperBlockMagic  = 0xEF53

	// MinBlockSize is the block size when s_log_block_size is 0
	MinBlockSize    = 0x400
	maxLogBlockSize = 6

	// GoodOldInodeSize is the fixed inode core shared by every revision
	GoodOldInodeSize = 128
	GoodOldRev       = 0

	MinDescSize      = 32
	MinDescSize64bit = 64
)

// Compatible features
const (
	FEATURE_COMPAT_DIR_PREALLOC  = 0x0001
	FEATURE_COMPAT_IMAGIC_INODES = 0x0002
	FEATURE_COMPAT_HAS_JOURNAL   = 0x0004
	FEATURE_COMPAT_EXT_ATTR      = 0x0008
	FEATURE_COMPAT_RESIZE_INODE  = 0x0010
	FEATURE_COMPAT_DIR_INDEX     = 0x0020
	FEATURE_COMPAT_SPARSE_SUPER2 = 0x0200
)

// Read-only compatible features
const (
	FEATURE_RO_COMPAT_SPARSE_SUPER  = 0x0001
	FEATURE_RO_COMPAT_LARGE_FILE    = 0x0002
	FEATURE_RO_COMPAT_BTREE_DIR     = 0x0004
	FEATURE_RO_COMPAT_HUGE_FILE     = 0x0008
	FEATURE_RO_COMPAT_GDT_CSUM      = 0x0010
	FEATURE_RO_COMPAT_DIR_NLINK     = 0x0020
	FEATURE_RO_COMPAT_EXTRA_ISIZE   = 0x0040
	FEATURE_RO_COMPAT_QUOTA         = 0x0100
	FEATURE_RO_COMPAT_BIGALLOC      = 0x0200
	FEATURE_RO_COMPAT_METADATA_CSUM = 0x0400
	FEATURE_RO_COMPAT_READONLY      = 0x1000
	FEATURE_RO_COMPAT_PROJECT       = 0x2000
)

// Incompatible features
const (
	FEATURE_INCOMPAT_COMPRESSION = 0x0001
	FEATURE_INCOMPAT_FILETYPE    = 0x0002
	FEATURE_INCOMPAT_RECOVER     = 0x0004
	FEATURE_INCOMPAT_JOURNAL_DEV = 0x0008
	FEATURE_INCOMPAT_META_BG     = 0x0010
	FEATURE_INCOMPAT_EXTENTS     = 0x0040
	FEATURE_INCOMPAT_64BIT       = 0x0080
	FEATURE_INCOMPAT_MMP         = 0x0100
	FEATURE_INCOMPAT_FLEX_BG     = 0x0200
	FEATURE_INCOMPAT_EA_INODE    = 0x0400
	FEATURE_INCOMPAT_DIRDATA     = 0x1000
	FEATURE_INCOMPAT_CSUM_SEED   = 0x2000
	FEATURE_INCOMPAT_LARGEDIR    = 0x4000
	FEATURE_INCOMPAT_INLINE_DATA = 0x8000
	FEATURE_INCOMPAT_ENCRYPT     = 0x10000
)

// Block group flags
const (
	BG_INODE_UNINIT = 0x0001
	BG_BLOCK_UNINIT = 0x0002
	BG_INODE_ZEROED = 0x0004
)

// Inode flags
const (
	INDEX_FL   = 0x1000
	EXTENTS_FL = 0x80000
)

// Extended attributes
const (
	XATTR_MAGIC = 0xEA020000

	xattrBlockHeaderSize = 32
	xattrIbodyHeaderSize = 4
	xattrEntryHeaderSize = 16
	xattrPad             = 4
)
