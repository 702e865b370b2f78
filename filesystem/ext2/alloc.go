package ext2

import (
	"fmt"

	"github.com/nanos-project/ext2fs/util/bitmap"
)

// writeSuperblock writes the in-memory superblock back to its fixed
// 1024-byte offset. Called after every allocation/free so the on-disk
// counters never lag the bitmaps.
func (fs *FileSystem) writeSuperblock() error {
	if err := writeBytesAt(fs.device, superblockOffset, fs.sb.toBytes()); err != nil {
		return fmt.Errorf("%w: writing superblock: %v", ErrIOError, err)
	}
	return nil
}

// writeGroupDescriptors writes the whole group descriptor table back to
// disk, starting at the block immediately after the superblock's block.
func (fs *FileSystem) writeGroupDescriptors() error {
	gdtBlock := uint64(fs.sb.firstDataBlock) + 1
	gdtBytesLen := uint64(len(fs.gds)) * groupDescriptorSize
	gdtBlocks := (gdtBytesLen + uint64(fs.sb.blockSize) - 1) / uint64(fs.sb.blockSize)
	buf := make([]byte, gdtBlocks*uint64(fs.sb.blockSize))
	copy(buf, fs.gds.toBytes())
	if err := writeFSBlocks(fs.device, fs.sb.blockSize, gdtBlock, gdtBlocks, buf); err != nil {
		return fmt.Errorf("%w: writing group descriptor table: %v", ErrIOError, err)
	}
	return nil
}

// readGroupBitmap reads the block or inode bitmap for a group into a
// bitmap.Bitmap, sized to cover one group's worth of entries.
func (fs *FileSystem) readGroupBitmap(bitmapBlock uint32, nBits uint32) (*bitmap.Bitmap, error) {
	buf := make([]byte, fs.sb.blockSize)
	if err := readFSBlocks(fs.device, fs.sb.blockSize, uint64(bitmapBlock), 1, buf); err != nil {
		return nil, fmt.Errorf("%w: reading bitmap block %d: %v", ErrIOError, bitmapBlock, err)
	}
	nBytes := (nBits + 7) / 8
	return bitmap.FromBytes(buf[:nBytes]), nil
}

// writeGroupBitmap performs a read-modify-write of bitmapBlock, copying
// bm's bytes into the head of the block and leaving the rest untouched.
func (fs *FileSystem) writeGroupBitmap(bitmapBlock uint32, bm *bitmap.Bitmap) error {
	buf := make([]byte, fs.sb.blockSize)
	if err := readFSBlocks(fs.device, fs.sb.blockSize, uint64(bitmapBlock), 1, buf); err != nil {
		return fmt.Errorf("%w: reading bitmap block %d: %v", ErrIOError, bitmapBlock, err)
	}
	raw := bm.ToBytes()
	copy(buf, raw)
	if err := writeFSBlocks(fs.device, fs.sb.blockSize, uint64(bitmapBlock), 1, buf); err != nil {
		return fmt.Errorf("%w: writing bitmap block %d: %v", ErrIOError, bitmapBlock, err)
	}
	return nil
}

// AllocBlock finds and marks used the first free data block, returning its
// physical filesystem block number, or 0 if the filesystem is full.
func (fs *FileSystem) AllocBlock() (uint32, error) {
	for g := range fs.gds {
		gd := &fs.gds[g]
		if gd.freeBlocksCount == 0 {
			continue
		}
		bm, err := fs.readGroupBitmap(gd.blockBitmap, fs.sb.blocksPerGroup)
		if err != nil {
			return 0, err
		}
		bit := bm.FirstFree(0)
		if bit < 0 || uint32(bit) >= fs.sb.blocksPerGroup {
			continue
		}
		if err := bm.Set(bit); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrIOError, err)
		}
		if err := fs.writeGroupBitmap(gd.blockBitmap, bm); err != nil {
			return 0, err
		}
		gd.freeBlocksCount--
		fs.sb.freeBlocksCount--
		if err := fs.writeGroupDescriptors(); err != nil {
			return 0, err
		}
		if err := fs.writeSuperblock(); err != nil {
			return 0, err
		}
		blockNum := uint32(g)*fs.sb.blocksPerGroup + uint32(bit) + fs.sb.firstDataBlock
		return blockNum, nil
	}
	return 0, nil
}

// FreeBlock clears the bitmap bit for blockNum and updates counters. It is
// an error to free a block below the first data block.
func (fs *FileSystem) FreeBlock(blockNum uint32) error {
	if blockNum < fs.sb.firstDataBlock {
		return fmt.Errorf("%w: cannot free reserved block %d", ErrInvalidArgument, blockNum)
	}
	idx := blockNum - fs.sb.firstDataBlock
	g := idx / fs.sb.blocksPerGroup
	bit := int(idx % fs.sb.blocksPerGroup)
	if uint64(g) >= uint64(len(fs.gds)) {
		return fmt.Errorf("%w: block %d out of range", ErrInvalidArgument, blockNum)
	}
	gd := &fs.gds[g]
	bm, err := fs.readGroupBitmap(gd.blockBitmap, fs.sb.blocksPerGroup)
	if err != nil {
		return err
	}
	if err := bm.Clear(bit); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := fs.writeGroupBitmap(gd.blockBitmap, bm); err != nil {
		return err
	}
	gd.freeBlocksCount++
	fs.sb.freeBlocksCount++
	if err := fs.writeGroupDescriptors(); err != nil {
		return err
	}
	return fs.writeSuperblock()
}

// AllocInode finds and marks used the first free inode, returning its
// 1-based inode number, or 0 if none is free. Symmetric with AllocBlock.
func (fs *FileSystem) AllocInode() (uint32, error) {
	for g := range fs.gds {
		gd := &fs.gds[g]
		if gd.freeInodesCount == 0 {
			continue
		}
		bm, err := fs.readGroupBitmap(gd.inodeBitmap, fs.sb.inodesPerGroup)
		if err != nil {
			return 0, err
		}
		bit := bm.FirstFree(0)
		if bit < 0 || uint32(bit) >= fs.sb.inodesPerGroup {
			continue
		}
		if err := bm.Set(bit); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrIOError, err)
		}
		if err := fs.writeGroupBitmap(gd.inodeBitmap, bm); err != nil {
			return 0, err
		}
		gd.freeInodesCount--
		fs.sb.freeInodesCount--
		if err := fs.writeGroupDescriptors(); err != nil {
			return 0, err
		}
		if err := fs.writeSuperblock(); err != nil {
			return 0, err
		}
		inodeNum := uint32(g)*fs.sb.inodesPerGroup + uint32(bit) + 1
		return inodeNum, nil
	}
	return 0, nil
}

// FreeInode clears the bitmap bit for inodeNum and updates counters.
func (fs *FileSystem) FreeInode(inodeNum uint32) error {
	if inodeNum == 0 {
		return fmt.Errorf("%w: inode 0 is not valid", ErrInvalidArgument)
	}
	idx := inodeNum - 1
	g := idx / fs.sb.inodesPerGroup
	bit := int(idx % fs.sb.inodesPerGroup)
	if uint64(g) >= uint64(len(fs.gds)) {
		return fmt.Errorf("%w: inode %d out of range", ErrInvalidArgument, inodeNum)
	}
	gd := &fs.gds[g]
	bm, err := fs.readGroupBitmap(gd.inodeBitmap, fs.sb.inodesPerGroup)
	if err != nil {
		return err
	}
	if err := bm.Clear(bit); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if err := fs.writeGroupBitmap(gd.inodeBitmap, bm); err != nil {
		return err
	}
	gd.freeInodesCount++
	fs.sb.freeInodesCount++
	if err := fs.writeGroupDescriptors(); err != nil {
		return err
	}
	return fs.writeSuperblock()
}
