package ext4

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// XattrSource tells where an entry was found.
type XattrSource int

const (
	XattrSourceInode XattrSource = iota
	XattrSourceBlock
)

func (s XattrSource) String() string {
	if s == XattrSourceBlock {
		return "block"
	}
	return "inode"
}

var xattrPrefixes = map[uint8]string{
	1:  "user.",
	2:  "system.posix_acl_access",
	3:  "system.posix_acl_default",
	4:  "trusted.",
	5:  "lustre.",
	6:  "security.",
	7:  "system.",
	8:  "system.richacl",
	9:  "encryption.",
	10: "hurd.",
}

// XattrPrefix maps e_name_index to its namespace prefix.
func XattrPrefix(index uint8) string {
	if p, ok := xattrPrefixes[index]; ok {
		return p
	}
	return "unknown."
}

// XattrBlockHeader heads an external attribute block. The in-inode header
// is only the magic.
type XattrBlockHeader struct {
	Magic    uint32    `struc:"uint32,little"`
	Refcount uint32    `struc:"uint32,little"`
	Blocks   uint32    `struc:"uint32,little"`
	Hash     uint32    `struc:"uint32,little"`
	Checksum uint32    `struc:"uint32,little"`
	Reserved [3]uint32 `struc:"[3]uint32,little"`
}

// xattrEntryHeader is ext4_xattr_entry followed by its name.
type xattrEntryHeader struct {
	NameLen   uint8  `struc:"uint8,sizeof=Name"`
	NameIndex uint8  `struc:"uint8"`
	ValueOffs uint16 `struc:"uint16,little"`
	ValueInum uint32 `struc:"uint32,little"`
	ValueSize uint32 `struc:"uint32,little"`
	Hash      uint32 `struc:"uint32,little"`
	Name      string `struc:"[]byte"`
}

// XattrEntry is one decoded attribute. Value holds the inline value; it is
// nil when the value lives in inode ValueInum.
type XattrEntry struct {
	NameIndex uint8
	Prefix    string
	Name      string
	ValueOffs uint16
	ValueInum uint32
	ValueSize uint32
	Hash      uint32
	Value     []byte
	Source    XattrSource
}

func (e *XattrEntry) FullName() string {
	return e.Prefix + e.Name
}

// xattrChain is a buffer holding entries from first on. Inline value offsets
// are relative to valueBase.
type xattrChain struct {
	buf       []byte
	first     uint64
	valueBase uint64
	source    XattrSource
}

type xattrLoader func() (xattrChain, error)

// XattrIterator walks one or more attribute chains lazily. Each chain is
// loaded when the previous one is exhausted. A chain whose header magic is
// wrong yields nothing.
type XattrIterator struct {
	loaders []xattrLoader
	logger  *zap.Logger

	chain *xattrChain
	off   uint64
	err   error
}

func newXattrIterator(logger *zap.Logger, loaders ...xattrLoader) *XattrIterator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XattrIterator{loaders: loaders, logger: logger}
}

// XattrsFromInode walks the in-inode attributes of a raw inode record.
func XattrsFromInode(record []byte) *XattrIterator {
	return newXattrIterator(nil, func() (xattrChain, error) { return ibodyChain(record) })
}

// XattrsFromBlock walks the attributes of a raw external attribute block.
func XattrsFromBlock(block []byte) *XattrIterator {
	return newXattrIterator(nil, func() (xattrChain, error) { return blockChain(block) })
}

// Next returns the next entry, or io.EOF once every chain is exhausted.
func (it *XattrIterator) Next() (*XattrEntry, error) {
	for {
		if it.err != nil {
			return nil, it.err
		}
		if it.chain == nil {
			if len(it.loaders) == 0 {
				return nil, io.EOF
			}
			load := it.loaders[0]
			it.loaders = it.loaders[1:]
			chain, err := load()
			if xerrors.Is(err, ErrBadMagic) {
				it.logger.Debug("skipping xattr chain", zap.Error(err))
				continue
			}
			if err != nil {
				it.err = err
				return nil, err
			}
			it.chain, it.off = &chain, chain.first
			continue
		}

		entry, size, err := parseXattrEntry(it.chain, it.off)
		if err != nil {
			it.err = err
			return nil, err
		}
		if entry == nil {
			it.chain = nil
			continue
		}
		it.off += size
		return entry, nil
	}
}

// All drains the iterator.
func (it *XattrIterator) All() ([]XattrEntry, error) {
	var entries []XattrEntry
	for {
		e, err := it.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, *e)
	}
}

func ibodyChain(record []byte) (xattrChain, error) {
	if len(record) <= GoodOldInodeSize+2 {
		return xattrChain{}, nil
	}
	extra := uint64(binary.LittleEndian.Uint16(record[GoodOldInodeSize:]))
	hdr := GoodOldInodeSize + extra
	if extra == 0 || hdr+xattrIbodyHeaderSize > uint64(len(record)) {
		return xattrChain{}, nil
	}
	if magic := binary.LittleEndian.Uint32(record[hdr:]); magic != XATTR_MAGIC {
		return xattrChain{}, xerrors.Errorf("in-inode header magic 0x%08x: %w", magic, ErrBadMagic)
	}
	first := hdr + xattrIbodyHeaderSize
	return xattrChain{buf: record, first: first, valueBase: first, source: XattrSourceInode}, nil
}

func blockChain(block []byte) (xattrChain, error) {
	hdr, err := ParseXattrBlockHeader(block)
	if err != nil {
		return xattrChain{}, err
	}
	if hdr.Magic != XATTR_MAGIC {
		return xattrChain{}, xerrors.Errorf("block header magic 0x%08x: %w", hdr.Magic, ErrBadMagic)
	}
	return xattrChain{buf: block, first: xattrBlockHeaderSize, valueBase: 0, source: XattrSourceBlock}, nil
}

func ParseXattrBlockHeader(block []byte) (*XattrBlockHeader, error) {
	if len(block) < xattrBlockHeaderSize {
		return nil, xerrors.Errorf("xattr block of %d bytes: %w", len(block), ErrShortRead)
	}
	var hdr XattrBlockHeader
	if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, &hdr); err != nil {
		return nil, xerrors.Errorf("failed to binary read xattr block header (%v): %w", err, ErrShortRead)
	}
	return &hdr, nil
}

// parseXattrEntry decodes the entry at off. It returns a nil entry at the
// all-zero terminator or when no room for another entry is left.
func parseXattrEntry(c *xattrChain, off uint64) (*XattrEntry, uint64, error) {
	buf := c.buf
	if off+xattrEntryHeaderSize > uint64(len(buf)) {
		return nil, 0, nil
	}
	b := buf[off:]
	if b[0] == 0 && b[1] == 0 && binary.LittleEndian.Uint16(b[2:]) == 0 && binary.LittleEndian.Uint32(b[4:]) == 0 {
		return nil, 0, nil
	}
	size := roundUp(xattrEntryHeaderSize+uint64(b[0]), xattrPad)
	if off+xattrEntryHeaderSize+uint64(b[0]) > uint64(len(buf)) {
		return nil, 0, xerrors.Errorf("xattr entry at %d overruns its %d byte buffer: %w", off, len(buf), ErrShortRead)
	}

	var h xattrEntryHeader
	if err := struc.Unpack(bytes.NewReader(b), &h); err != nil {
		return nil, 0, xerrors.Errorf("failed to unpack xattr entry at %d (%v): %w", off, err, ErrShortRead)
	}

	entry := &XattrEntry{
		NameIndex: h.NameIndex,
		Prefix:    XattrPrefix(h.NameIndex),
		Name:      h.Name,
		ValueOffs: h.ValueOffs,
		ValueInum: h.ValueInum,
		ValueSize: h.ValueSize,
		Hash:      h.Hash,
		Source:    c.source,
	}
	if h.ValueInum == 0 && h.ValueSize > 0 {
		start := c.valueBase + uint64(h.ValueOffs)
		end := start + uint64(h.ValueSize)
		if end > uint64(len(buf)) {
			return nil, 0, xerrors.Errorf("value of xattr %q ends at %d past %d: %w", entry.FullName(), end, len(buf), ErrShortRead)
		}
		entry.Value = buf[start:end]
	}
	return entry, size, nil
}
