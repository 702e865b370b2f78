package ext2

import (
	"encoding/binary"
	"fmt"
)

// maxInlineSymlinkLen is the number of bytes available in the i_block area
// for a "fast" symlink: 15 slots of 4 bytes each.
const maxInlineSymlinkLen = numBlockPointers * 4

// ReadSymlink returns the target path stored in a symlink inode. It
// fails if in is not a symlink.
func (fs *FileSystem) ReadSymlink(in *inode) (string, error) {
	if !in.isSymlink() {
		return "", fmt.Errorf("%w: not a symlink", ErrInvalidArgument)
	}
	if in.size > maxInlineSymlinkLen {
		// Slow symlink: target lives in the first data block.
		physical := in.block[0]
		if physical == 0 {
			return "", fmt.Errorf("%w: slow symlink has no data block", ErrIOError)
		}
		buf := make([]byte, fs.sb.blockSize)
		if err := readFSBlocks(fs.device, fs.sb.blockSize, uint64(physical), 1, buf); err != nil {
			return "", fmt.Errorf("%w: reading symlink data block: %v", ErrIOError, err)
		}
		n := in.size
		if uint32(len(buf)) < n {
			n = uint32(len(buf))
		}
		return string(buf[:n]), nil
	}
	// Fast symlink: target is packed into the block-pointer area.
	raw := make([]byte, maxInlineSymlinkLen)
	for i := 0; i < numBlockPointers; i++ {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], in.block[i])
	}
	n := in.size
	if n > maxInlineSymlinkLen {
		n = maxInlineSymlinkLen
	}
	return string(raw[:n]), nil
}

// ReadSymlinkAt resolves path and returns its target, failing if path does
// not name a symlink. It exists so callers outside this package (the vfs
// facade) can follow a symlink without needing access to the unexported
// inode type.
func (fs *FileSystem) ReadSymlinkAt(path string) (string, error) {
	_, in, err := fs.Resolve(path)
	if err != nil {
		return "", err
	}
	return fs.ReadSymlink(in)
}

// CreateSymlink allocates a symlink inode for target, writes it, and adds a
// directory entry named name of type FTSymlink to the directory described
// by parentInode/parentNum. It returns the new inode number.
func (fs *FileSystem) CreateSymlink(parentInode *inode, parentNum uint32, name, target string) (uint32, error) {
	if len(target) == 0 {
		return 0, fmt.Errorf("%w: empty symlink target", ErrInvalidArgument)
	}
	newNum, err := fs.AllocInode()
	if err != nil {
		return 0, err
	}
	if newNum == 0 {
		return 0, ErrNoSpace
	}

	in := &inode{
		mode:       ModeLink | 0777,
		linksCount: 1,
		size:       uint32(len(target)),
	}
	in.touch(true, true)

	if len(target) <= maxInlineSymlinkLen {
		raw := make([]byte, maxInlineSymlinkLen)
		copy(raw, target)
		for i := 0; i < numBlockPointers; i++ {
			in.block[i] = binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		}
	} else {
		dataBlock, err := fs.AllocBlock()
		if err != nil {
			return 0, err
		}
		if dataBlock == 0 {
			return 0, ErrNoSpace
		}
		buf := make([]byte, fs.sb.blockSize)
		copy(buf, target)
		if err := writeFSBlocks(fs.device, fs.sb.blockSize, uint64(dataBlock), 1, buf); err != nil {
			return 0, fmt.Errorf("%w: writing symlink data block: %v", ErrIOError, err)
		}
		in.block[0] = dataBlock
		in.blocks512 = fs.sb.blockSize / 512
	}

	if err := fs.WriteInode(newNum, in); err != nil {
		return 0, err
	}
	if err := fs.InsertDirEntry(parentInode, parentNum, newNum, name, FTSymlink); err != nil {
		return 0, err
	}
	return newNum, nil
}
