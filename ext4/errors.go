package ext4

import "golang.org/x/xerrors"

// Every error returned by this package wraps one of these.
var (
	// ErrInvalidArgument reports an out of range inode, block or group number.
	ErrInvalidArgument = xerrors.New("invalid argument")

	// ErrShortRead reports fewer bytes than requested, usually a truncated image.
	ErrShortRead = xerrors.New("short read")

	// ErrBadMagic reports an on-disk header (xattr or extent node) that does
	// not carry its expected magic or shape. Xattr walkers recover from it by
	// yielding no entries.
	ErrBadMagic = xerrors.New("bad on-disk header magic")

	// ErrInconsistentSuperblock reports geometry that cannot be derived.
	ErrInconsistentSuperblock = xerrors.New("inconsistent superblock")

	// ErrNotExt4 reports a superblock without the ext2/3/4 magic.
	ErrNotExt4 = xerrors.New("not an ext4 filesystem")
)
