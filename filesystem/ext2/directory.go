package ext2

import (
	"fmt"
)

// dirBlockCount returns how many direct blocks of in are populated.
// Directories only ever grow through direct block slots.
func dirBlockCount(in *inode) int {
	n := 0
	for i := 0; i < directBlocks; i++ {
		if in.block[i] == 0 {
			break
		}
		n++
	}
	return n
}

// readDirBlock reads logical directory block idx of in.
func (fs *FileSystem) readDirBlock(in *inode, idx int) ([]byte, error) {
	physical := in.block[idx]
	if physical == 0 {
		return nil, fmt.Errorf("%w: directory block %d unmapped", ErrIOError, idx)
	}
	buf := make([]byte, fs.sb.blockSize)
	if err := readFSBlocks(fs.device, fs.sb.blockSize, uint64(physical), 1, buf); err != nil {
		return nil, fmt.Errorf("%w: reading directory block: %v", ErrIOError, err)
	}
	return buf, nil
}

func (fs *FileSystem) writeDirBlock(in *inode, idx int, buf []byte) error {
	physical := in.block[idx]
	if physical == 0 {
		return fmt.Errorf("%w: directory block %d unmapped", ErrIOError, idx)
	}
	return writeFSBlocks(fs.device, fs.sb.blockSize, uint64(physical), 1, buf)
}

// LookupInDir scans every block's entries for a name match. Returns
// ErrNotFound if absent.
func (fs *FileSystem) LookupInDir(dirInode *inode, name string) (uint32, error) {
	if !dirInode.isDir() {
		return 0, ErrNotADirectory
	}
	nBlocks := dirBlockCount(dirInode)
	for b := 0; b < nBlocks; b++ {
		block, err := fs.readDirBlock(dirInode, b)
		if err != nil {
			return 0, err
		}
		for _, e := range parseDirBlock(block) {
			if e.inode == 0 {
				continue
			}
			if int(e.nameLen) == len(name) && e.name == name {
				return e.inode, nil
			}
		}
	}
	return 0, ErrNotFound
}

// ReadDirEntries returns every live (non-zero-inode) entry in dirInode, in
// on-disk order.
func (fs *FileSystem) ReadDirEntries(dirInode *inode) ([]dirEntry, error) {
	if !dirInode.isDir() {
		return nil, ErrNotADirectory
	}
	var out []dirEntry
	nBlocks := dirBlockCount(dirInode)
	for b := 0; b < nBlocks; b++ {
		block, err := fs.readDirBlock(dirInode, b)
		if err != nil {
			return nil, err
		}
		for _, e := range parseDirBlock(block) {
			if e.inode != 0 {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// InsertDirEntry adds a directory entry named name, pointing at childNum
// with the given file type, into the directory described by dirInode
// (whose inode number is dirNum). It first looks for slack in an
// existing entry's rec_len, and only allocates a new block if no block
// has room.
func (fs *FileSystem) InsertDirEntry(dirInode *inode, dirNum uint32, childNum uint32, name string, fileType uint8) error {
	if len(name) < 1 || len(name) > MaxNameLen {
		return fmt.Errorf("%w: name length %d out of range", ErrInvalidArgument, len(name))
	}
	need := actualLen(len(name))
	nBlocks := dirBlockCount(dirInode)

	for b := 0; b < nBlocks; b++ {
		block, err := fs.readDirBlock(dirInode, b)
		if err != nil {
			return err
		}
		for _, e := range parseDirBlock(block) {
			// A live entry's usable slack sits after its own actual_len;
			// a tombstone (inode==0) contributes its whole rec_len.
			used := actualLen(int(e.nameLen))
			if e.inode == 0 {
				used = 0
			}
			if e.recLen <= used {
				continue
			}
			slack := e.recLen - used
			if slack < need {
				continue
			}
			newOffset := e.offset + int(used)
			if e.inode != 0 {
				e.recLen = used
				writeDirEntry(block, e)
			}
			newEntry := dirEntry{
				offset:   newOffset,
				inode:    childNum,
				recLen:   slack,
				nameLen:  uint8(len(name)),
				fileType: fileType,
				name:     name,
			}
			writeDirEntry(block, newEntry)
			return fs.writeDirBlock(dirInode, b, block)
		}
	}

	// No slack anywhere: allocate a new block formatted as a single entry
	// spanning the whole block.
	if nBlocks >= directBlocks {
		return fmt.Errorf("%w: directory has no free direct block slot", ErrNoSpace)
	}
	newBlock, err := fs.AllocBlock()
	if err != nil {
		return err
	}
	if newBlock == 0 {
		return ErrNoSpace
	}
	block := make([]byte, fs.sb.blockSize)
	writeDirEntry(block, dirEntry{
		offset:   0,
		inode:    childNum,
		recLen:   uint16(fs.sb.blockSize),
		nameLen:  uint8(len(name)),
		fileType: fileType,
		name:     name,
	})
	if err := writeFSBlocks(fs.device, fs.sb.blockSize, uint64(newBlock), 1, block); err != nil {
		return fmt.Errorf("%w: writing new directory block: %v", ErrIOError, err)
	}
	dirInode.block[nBlocks] = newBlock
	dirInode.size += fs.sb.blockSize
	dirInode.blocks512 += fs.sb.blockSize / 512
	if err := fs.WriteInode(dirNum, dirInode); err != nil {
		return err
	}
	return nil
}

// RemoveDirEntry removes the entry named name from the directory described
// by dirInode/dirNum.
func (fs *FileSystem) RemoveDirEntry(dirInode *inode, dirNum uint32, name string) error {
	nBlocks := dirBlockCount(dirInode)
	for b := 0; b < nBlocks; b++ {
		block, err := fs.readDirBlock(dirInode, b)
		if err != nil {
			return err
		}
		entries := parseDirBlock(block)
		for i := range entries {
			e := entries[i]
			if e.inode == 0 || int(e.nameLen) != len(name) || e.name != name {
				continue
			}
			if i > 0 {
				// The immediately preceding entry (live or tombstone)
				// absorbs the target's rec_len, keeping the block tiled.
				prev := entries[i-1]
				prev.recLen += e.recLen
				writeDirEntry(block, prev)
			} else {
				e.inode = 0
				writeDirEntry(block, e)
			}
			return fs.writeDirBlock(dirInode, b, block)
		}
	}
	return ErrNotFound
}

// PopulateNewDirectory adds the "." and ".." entries required of every
// directory.
func (fs *FileSystem) PopulateNewDirectory(dirInode *inode, dirNum, parentNum uint32) error {
	if err := fs.InsertDirEntry(dirInode, dirNum, dirNum, ".", FTDir); err != nil {
		return err
	}
	return fs.InsertDirEntry(dirInode, dirNum, parentNum, "..", FTDir)
}

// IsDirEmpty reports whether dirInode contains only "." and "..".
func (fs *FileSystem) IsDirEmpty(dirInode *inode) (bool, error) {
	entries, err := fs.ReadDirEntries(dirInode)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.name != "." && e.name != ".." {
			return false, nil
		}
	}
	return true, nil
}
