package ext2

import (
	"fmt"

	"github.com/nanos-project/ext2fs/util/timestamp"
)

// ReadAt reads up to len(buf) bytes starting at byte offset into in.
// If offset is at or past size, it returns (0, nil).
func (fs *FileSystem) ReadAt(in *inode, offset uint64, buf []byte) (int, error) {
	if offset >= uint64(in.size) {
		return 0, nil
	}
	blockSize := uint64(fs.sb.blockSize)
	remaining := uint64(in.size) - offset
	toRead := uint64(len(buf))
	if toRead > remaining {
		toRead = remaining
	}
	var total uint64
	for total < toRead {
		pos := offset + total
		logical := uint32(pos / blockSize)
		inBlock := pos % blockSize
		chunk := blockSize - inBlock
		if chunk > toRead-total {
			chunk = toRead - total
		}
		physical, err := fs.blockPointer(in, logical)
		if err != nil {
			return int(total), err
		}
		if physical == 0 {
			// Unmapped block reads as zeros (a hole), matching a
			// freshly-grown file whose tail was never written.
			for i := uint64(0); i < chunk; i++ {
				buf[total+i] = 0
			}
			total += chunk
			continue
		}
		blockBuf := make([]byte, blockSize)
		if err := readFSBlocks(fs.device, fs.sb.blockSize, uint64(physical), 1, blockBuf); err != nil {
			return int(total), fmt.Errorf("%w: reading data block: %v", ErrIOError, err)
		}
		copy(buf[total:total+chunk], blockBuf[inBlock:inBlock+chunk])
		total += chunk
	}
	return int(total), nil
}

// WriteAt writes buf at byte offset into in. It allocates direct
// blocks as needed but does not grow into single-indirect blocks;
// once the logical block index reaches 12 the write stops and the bytes
// written so far are returned with no error. The inode is updated (size,
// mtime) and written back before returning.
func (fs *FileSystem) WriteAt(inNum uint32, in *inode, offset uint64, buf []byte) (int, error) {
	blockSize := uint64(fs.sb.blockSize)
	var total uint64
	for total < uint64(len(buf)) {
		pos := offset + total
		logical := pos / blockSize
		if logical >= directBlocks {
			break
		}
		inBlock := pos % blockSize
		chunk := blockSize - inBlock
		if chunk > uint64(len(buf))-total {
			chunk = uint64(len(buf)) - total
		}

		physical := in.block[logical]
		if physical == 0 {
			newBlock, err := fs.AllocBlock()
			if err != nil {
				return int(total), err
			}
			if newBlock == 0 {
				break
			}
			in.block[logical] = newBlock
			in.blocks512 += uint32(blockSize / 512)
			physical = newBlock
		}

		blockBuf := make([]byte, blockSize)
		if err := readFSBlocks(fs.device, fs.sb.blockSize, uint64(physical), 1, blockBuf); err != nil {
			return int(total), fmt.Errorf("%w: reading data block for write: %v", ErrIOError, err)
		}
		copy(blockBuf[inBlock:inBlock+chunk], buf[total:total+chunk])
		if err := writeFSBlocks(fs.device, fs.sb.blockSize, uint64(physical), 1, blockBuf); err != nil {
			return int(total), fmt.Errorf("%w: writing data block: %v", ErrIOError, err)
		}
		total += chunk
	}

	if offset+total > uint64(in.size) {
		in.size = uint32(offset + total)
	}
	in.mtime = uint32(timestamp.GetTime().Unix())
	in.ctime = in.mtime
	if err := fs.WriteInode(inNum, in); err != nil {
		return int(total), err
	}
	return int(total), nil
}

// Truncate shrinks in to newSize, freeing direct data blocks beyond the new
// end. Growing is not supported.
func (fs *FileSystem) Truncate(inNum uint32, in *inode, newSize uint32) error {
	if newSize > in.size {
		return fmt.Errorf("%w: truncate cannot grow a file", ErrNotSupported)
	}
	blockSize := fs.sb.blockSize
	oldBlocks := (in.size + blockSize - 1) / blockSize
	newBlocks := (newSize + blockSize - 1) / blockSize
	for l := newBlocks; l < oldBlocks && l < directBlocks; l++ {
		physical := in.block[l]
		if physical == 0 {
			continue
		}
		if err := fs.FreeBlock(physical); err != nil {
			return err
		}
		in.block[l] = 0
		if in.blocks512 >= blockSize/512 {
			in.blocks512 -= blockSize / 512
		}
	}
	in.size = newSize
	in.ctime = uint32(timestamp.GetTime().Unix())
	return fs.WriteInode(inNum, in)
}
