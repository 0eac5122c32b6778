package ext4

import (
	"io"

	"golang.org/x/xerrors"
)

// readAt reads exactly size bytes at off. Anything less is ErrShortRead;
// images are static so there is no retry.
func readAt(r io.ReaderAt, off int64, size int64) ([]byte, error) {
	if off < 0 || size < 0 {
		return nil, xerrors.Errorf("read %d bytes at offset %d: %w", size, off, ErrInvalidArgument)
	}
	buf := make([]byte, size)
	n, err := r.ReadAt(buf, off)
	if int64(n) == size {
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, xerrors.Errorf("read %d bytes at offset %d, got %d (%v): %w", size, off, n, err, ErrShortRead)
}

// maxReadSize bounds a single read so a lying superblock cannot make us
// allocate more than this up front.
const maxReadSize = 1 << 31

func readBlockAt(r io.ReaderAt, block uint64, blockSize uint64, count uint64) ([]byte, error) {
	off, size := block*blockSize, count*blockSize
	if off/blockSize != block || off > 1<<63-1 || size > maxReadSize {
		return nil, xerrors.Errorf("block %d (x%d) out of addressable range: %w", block, count, ErrInvalidArgument)
	}
	return readAt(r, int64(off), int64(size))
}
