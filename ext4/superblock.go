package ext4

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

// Superblock is ref https://ext4.wiki.kernel.org/index.php/Ext4_Disk_Layout
type Superblock struct {
	InodeCount           uint32     `struc:"uint32,little"`
	BlockCountLo         uint32     `struc:"uint32,little"`
	RBlockCountLo        uint32     `struc:"uint32,little"`
	FreeBlockCountLo     uint32     `struc:"uint32,little"`
	FreeInodeCount       uint32     `struc:"uint32,little"`
	FirstDataBlock       uint32     `struc:"uint32,little"`
	LogBlockSize         uint32     `struc:"uint32,little"`
	LogClusterSize       uint32     `struc:"uint32,little"`
	BlockPerGroup        uint32     `struc:"uint32,little"`
	ClusterPerGroup      uint32     `struc:"uint32,little"`
	InodePerGroup        uint32     `struc:"uint32,little"`
	Mtime                uint32     `struc:"uint32,little"`
	Wtime                uint32     `struc:"uint32,little"`
	MntCount             uint16     `struc:"uint16,little"`
	MaxMntCount          uint16     `struc:"uint16,little"`
	Magic                uint16     `struc:"uint16,little"`
	State                uint16     `struc:"uint16,little"`
	Errors               uint16     `struc:"uint16,little"`
	MinorRevLevel        uint16     `struc:"uint16,little"`
	Lastcheck            uint32     `struc:"uint32,little"`
	Checkinterval        uint32     `struc:"uint32,little"`
	CreatorOs            uint32     `struc:"uint32,little"`
	RevLevel             uint32     `struc:"uint32,little"`
	DefResuid            uint16     `struc:"uint16,little"`
	DefResgid            uint16     `struc:"uint16,little"`
	FirstIno             uint32     `struc:"uint32,little"`
	InodeSize            uint16     `struc:"uint16,little"`
	BlockGroupNr         uint16     `struc:"uint16,little"`
	FeatureCompat        uint32     `struc:"uint32,little"`
	FeatureIncompat      uint32     `struc:"uint32,little"`
	FeatureRoCompat      uint32     `struc:"uint32,little"`
	UUID                 [16]byte   `struc:"[16]byte"`
	VolumeName           [16]byte   `struc:"[16]byte"`
	LastMounted          [64]byte   `struc:"[64]byte"`
	AlgorithmUsageBitmap uint32     `struc:"uint32,little"`
	PreallocBlocks       byte       `struc:"byte"`
	PreallocDirBlocks    byte       `struc:"byte"`
	ReservedGdtBlocks    uint16     `struc:"uint16,little"`
	JournalUUID          [16]byte   `struc:"[16]byte"`
	JournalInum          uint32     `struc:"uint32,little"`
	JournalDev           uint32     `struc:"uint32,little"`
	LastOrphan           uint32     `struc:"uint32,little"`
	HashSeed             [4]uint32  `struc:"[4]uint32,little"`
	DefHashVersion       byte       `struc:"byte"`
	JnlBackupType        byte       `struc:"byte"`
	DescSize             uint16     `struc:"uint16,little"`
	DefaultMountOpts     uint32     `struc:"uint32,little"`
	FirstMetaBg          uint32     `struc:"uint32,little"`
	MkfTime              uint32     `struc:"uint32,little"`
	JnlBlocks            [17]uint32 `struc:"[17]uint32,little"`
	BlockCountHi         uint32     `struc:"uint32,little"`
	RBlockCountHi        uint32     `struc:"uint32,little"`
	FreeBlockCountHi     uint32     `struc:"uint32,little"`
	MinExtraIsize        uint16     `struc:"uint16,little"`
	WantExtraIsize       uint16     `struc:"uint16,little"`
	Flags                uint32     `struc:"uint32,little"`
	RaidStride           uint16     `struc:"uint16,little"`
	MmpUpdateInterval    uint16     `struc:"uint16,little"`
	MmpBlock             uint64     `struc:"uint64,little"`
	RaidStripeWidth      uint32     `struc:"uint32,little"`
	LogGroupPerFlex      byte       `struc:"byte"`
	ChecksumType         byte       `struc:"byte"`
	EncryptionLevel      byte       `struc:"byte"`
	ReservedPad          byte       `struc:"byte"`
	KbyteWritten         uint64     `struc:"uint64,little"`
	SnapshotInum         uint32     `struc:"uint32,little"`
	SnapshotID           uint32     `struc:"uint32,little"`
	SnapshotRBlockCount  uint64     `struc:"uint64,little"`
	SnapshotList         uint32     `struc:"uint32,little"`
	ErrorCount           uint32     `struc:"uint32,little"`
	FirstErrorTime       uint32     `struc:"uint32,little"`
	FirstErrorIno        uint32     `struc:"uint32,little"`
	FirstErrorBlock      uint64     `struc:"uint64,little"`
	FirstErrorFunc       [32]byte   `struc:"[32]byte"`
	FirstErrorLine       uint32     `struc:"uint32,little"`
	LastErrorTime        uint32     `struc:"uint32,little"`
	LastErrorIno         uint32     `struc:"uint32,little"`
	LastErrorLine        uint32     `struc:"uint32,little"`
	LastErrorBlock       uint64     `struc:"uint64,little"`
	LastErrorFunc        [32]byte   `struc:"[32]byte"`
	MountOpts            [64]byte   `struc:"[64]byte"`
	UsrQuotaInum         uint32     `struc:"uint32,little"`
	GrpQuotaInum         uint32     `struc:"uint32,little"`
	OverheadClusters     uint32     `struc:"uint32,little"`
	BackupBgs            [2]uint32  `struc:"[2]uint32,little"`
	EncryptAlgos         [4]byte    `struc:"[4]byte"`
	EncryptPwSalt        [16]byte   `struc:"[16]byte"`
	LpfIno               uint32     `struc:"uint32,little"`
	PrjQuotaInum         uint32     `struc:"uint32,little"`
	ChecksumSeed         uint32     `struc:"uint32,little"`
	Reserved             [98]uint32 `struc:"[98]uint32,little"`
	Checksum             uint32     `struc:"uint32,little"`
}

// Features is the resolved feature set every decoder consumes.
// Flags are tested once here and passed around as plain booleans.
type Features struct {
	Is64Bit      bool
	MetaBG       bool
	FlexBG       bool
	SparseSuper  bool
	SparseSuper2 bool
	ExtAttr      bool
	Bigalloc     bool
	ExtraIsize   bool
}

func (sb *Superblock) hasCompat(mask uint32) bool   { return sb.FeatureCompat&mask != 0 }
func (sb *Superblock) hasIncompat(mask uint32) bool { return sb.FeatureIncompat&mask != 0 }
func (sb *Superblock) hasRoCompat(mask uint32) bool { return sb.FeatureRoCompat&mask != 0 }

func (sb *Superblock) FeatureCompatHasJournal() bool   { return sb.hasCompat(FEATURE_COMPAT_HAS_JOURNAL) }
func (sb *Superblock) FeatureCompatExtAttr() bool      { return sb.hasCompat(FEATURE_COMPAT_EXT_ATTR) }
func (sb *Superblock) FeatureCompatSparseSuper2() bool { return sb.hasCompat(FEATURE_COMPAT_SPARSE_SUPER2) }

func (sb *Superblock) FeatureRoCompatSparseSuper() bool { return sb.hasRoCompat(FEATURE_RO_COMPAT_SPARSE_SUPER) }
func (sb *Superblock) FeatureRoCompatBigalloc() bool    { return sb.hasRoCompat(FEATURE_RO_COMPAT_BIGALLOC) }
func (sb *Superblock) FeatureRoCompatExtraIsize() bool  { return sb.hasRoCompat(FEATURE_RO_COMPAT_EXTRA_ISIZE) }
func (sb *Superblock) FeatureRoCompatMetadataCsum() bool {
	return sb.hasRoCompat(FEATURE_RO_COMPAT_METADATA_CSUM)
}

func (sb *Superblock) FeatureIncompatMetaBg() bool  { return sb.hasIncompat(FEATURE_INCOMPAT_META_BG) }
func (sb *Superblock) FeatureIncompatFlexBg() bool  { return sb.hasIncompat(FEATURE_INCOMPAT_FLEX_BG) }
func (sb *Superblock) FeatureIncompatExtents() bool { return sb.hasIncompat(FEATURE_INCOMPAT_EXTENTS) }
func (sb *Superblock) FeatureInCompat64bit() bool   { return sb.hasIncompat(FEATURE_INCOMPAT_64BIT) }

// Features resolves the feature bitmasks into the booleans the locators use.
func (sb *Superblock) Features() Features {
	return Features{
		Is64Bit:      sb.FeatureInCompat64bit(),
		MetaBG:       sb.FeatureIncompatMetaBg(),
		FlexBG:       sb.FeatureIncompatFlexBg(),
		SparseSuper:  sb.FeatureRoCompatSparseSuper(),
		SparseSuper2: sb.FeatureCompatSparseSuper2(),
		ExtAttr:      sb.FeatureCompatExtAttr(),
		Bigalloc:     sb.FeatureRoCompatBigalloc(),
		ExtraIsize:   sb.FeatureRoCompatExtraIsize(),
	}
}

// GetBlockCount returns s_blocks_count, using the high half only on 64bit filesystems.
func (sb *Superblock) GetBlockCount() uint64 {
	return Wide(sb.BlockCountLo, sb.BlockCountHi, sb.FeatureInCompat64bit())
}

func (sb *Superblock) GetFreeBlockCount() uint64 {
	return Wide(sb.FreeBlockCountLo, sb.FreeBlockCountHi, sb.FeatureInCompat64bit())
}

func (sb *Superblock) GetReservedBlockCount() uint64 {
	return Wide(sb.RBlockCountLo, sb.RBlockCountHi, sb.FeatureInCompat64bit())
}

// GetInodeSize falls back to the 128 byte inode on revision 0 filesystems,
// where s_inode_size is undefined.
func (sb *Superblock) GetInodeSize() uint64 {
	if sb.RevLevel == GoodOldRev {
		return GoodOldInodeSize
	}
	return uint64(sb.InodeSize)
}

func (sb *Superblock) FSUUID() uuid.UUID {
	return uuid.UUID(sb.UUID)
}

func (sb *Superblock) JournalID() uuid.UUID {
	return uuid.UUID(sb.JournalUUID)
}

func (sb *Superblock) VolumeLabel() string {
	return string(bytes.TrimRight(sb.VolumeName[:], "\x00"))
}

func parseSuperBlock(buf []byte) (*Superblock, error) {
	var sb Superblock
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &sb); err != nil {
		return nil, xerrors.Errorf("failed to binary read super block (%v): %w", err, ErrShortRead)
	}
	if sb.Magic != SuperBlockMagic {
		return nil, xerrors.Errorf("unsupported block, magic 0x%04x: %w", sb.Magic, ErrNotExt4)
	}
	return &sb, nil
}
