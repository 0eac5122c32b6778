package ext4

import (
	"io"

	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// FileSystem is a read-only view of an ext4 image. Superblock, geometry and
// descriptor table are loaded once by NewFS and never change afterwards, so
// a FileSystem may be shared between goroutines as long as r allows
// concurrent ReadAt calls (io.ReaderAt implementations must).
type FileSystem struct {
	r io.ReaderAt

	sb  *Superblock
	geo *Geometry
	gds GroupDescriptors

	cache  Cache[string, Inode]
	logger *zap.Logger
}

// Option configures a FileSystem.
type Option func(*FileSystem)

// WithLogger sets the logger, zap.NewNop() by default.
func WithLogger(logger *zap.Logger) Option {
	return func(fs *FileSystem) {
		if logger != nil {
			fs.logger = logger
		}
	}
}

// WithCache caches decoded inodes.
func WithCache(cache Cache[string, Inode]) Option {
	return func(fs *FileSystem) {
		if cache != nil {
			fs.cache = cache
		}
	}
}

// NewFS reads the superblock and the descriptor table of the image behind r.
func NewFS(r io.ReaderAt, opts ...Option) (*FileSystem, error) {
	fs := &FileSystem{
		r:      r,
		cache:  &noCache[string, Inode]{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(fs)
	}

	sb, geo, err := OpenGeometry(r)
	if err != nil {
		return nil, xerrors.Errorf("failed to open geometry: %w", err)
	}
	fs.logger.Debug("resolved geometry",
		zap.Uint64("block_size", geo.BlockSize),
		zap.Uint64("cluster_ratio", geo.ClusterRatio),
		zap.Uint64("groups", geo.GroupCount),
		zap.Uint64("descriptor_size", geo.DescriptorSize),
		zap.Uint64("descriptor_blocks", geo.DescriptorBlocks),
		zap.Bool("64bit", geo.Features.Is64Bit),
		zap.Bool("meta_bg", geo.Features.MetaBG),
		zap.Stringer("uuid", sb.FSUUID()),
	)

	gds, err := ReadGroupDescriptors(r, geo)
	if err != nil {
		return nil, xerrors.Errorf("failed to get group descriptors: %w", err)
	}
	fs.logger.Debug("loaded group descriptors",
		zap.Int("count", gds.Len()),
		zap.Uint64("contiguous_blocks", geo.contiguousDescriptorBlocks()),
		zap.Uint64("first_meta_bg", geo.FirstMetaBG),
	)

	fs.sb, fs.geo, fs.gds = sb, geo, gds
	return fs, nil
}

func (fs *FileSystem) Superblock() *Superblock { return fs.sb }
func (fs *FileSystem) Geometry() *Geometry     { return fs.geo }

// GroupDescriptor returns the descriptor of group.
func (fs *FileSystem) GroupDescriptor(group uint64) (GroupDescriptor, error) {
	return fs.gds.Get(group)
}

func (fs *FileSystem) InodeOffset(ino uint64) (int64, error) {
	return InodeOffset(fs.geo, fs.gds, ino)
}

// InodeRecord returns the raw bytes of inode ino.
func (fs *FileSystem) InodeRecord(ino uint64) ([]byte, error) {
	return ReadInodeRecord(fs.r, fs.geo, fs.gds, ino)
}

// ReadInode reads and decodes inode ino.
func (fs *FileSystem) ReadInode(ino uint64) (*Inode, error) {
	if c, ok := fs.cache.Get(inodeCacheKey(ino)); ok {
		return &c, nil
	}

	buf, err := fs.InodeRecord(ino)
	if err != nil {
		return nil, err
	}
	inode, err := parseInode(buf)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse inode %d: %w", ino, err)
	}

	fs.cache.Add(inodeCacheKey(ino), *inode)
	return inode, nil
}

func (fs *FileSystem) InodeStatus(ino uint64) (Status, error) {
	return InodeStatus(fs.r, fs.geo, fs.gds, ino)
}

func (fs *FileSystem) BlockStatus(block uint64) (Status, error) {
	return BlockStatus(fs.r, fs.geo, fs.gds, block)
}

// Xattrs walks the extended attributes of inode ino: in-inode entries first,
// then the external block. The block is read only when the walk reaches it.
// Calling Xattrs again restarts the walk.
func (fs *FileSystem) Xattrs(ino uint64) (*XattrIterator, error) {
	record, err := fs.InodeRecord(ino)
	if err != nil {
		return nil, err
	}
	inode, err := parseInode(record)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse inode %d: %w", ino, err)
	}

	acl := inode.FileACL(fs.geo.Features.Is64Bit)
	logger := fs.logger.With(zap.Uint64("inode", ino))
	return newXattrIterator(logger,
		func() (xattrChain, error) { return ibodyChain(record) },
		func() (xattrChain, error) {
			if acl == 0 {
				return xattrChain{}, nil
			}
			block, err := readBlockAt(fs.r, acl, fs.geo.BlockSize, 1)
			if err != nil {
				return xattrChain{}, xerrors.Errorf("failed to read xattr block %d: %w", acl, err)
			}
			return blockChain(block)
		},
	), nil
}

// Extents resolves where the data of inode ino lives.
func (fs *FileSystem) Extents(ino uint64) ([]Extent, error) {
	inode, err := fs.ReadInode(ino)
	if err != nil {
		return nil, err
	}
	extents, err := Extents(fs.r, fs.geo, inode)
	if err != nil {
		return nil, xerrors.Errorf("inode %d: %w", ino, err)
	}
	fs.logger.Debug("resolved extents", zap.Uint64("inode", ino), zap.Int("count", len(extents)))
	return extents, nil
}
