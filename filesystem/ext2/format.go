package ext2

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nanos-project/ext2fs/blockdev"
	"github.com/nanos-project/ext2fs/util/bitmap"
	"github.com/nanos-project/ext2fs/util/timestamp"
)

// Params controls Format's layout choices. Zero values pick
// reasonable defaults.
type Params struct {
	// BlockSize in bytes; must be 1024, 2048, or 4096. Defaults to 1024.
	BlockSize uint32
	// InodesPerGroup defaults to one inode per 4 blocks in the group.
	InodesPerGroup uint32
}

func (o Params) withDefaults() Params {
	if o.BlockSize == 0 {
		o.BlockSize = minBlockSize
	}
	return o
}

// Format lays out a fresh, empty ext2 revision-0 filesystem on device: a
// superblock, one group descriptor table (no backup copies - this
// implementation's Mount never looks for one), and for
// every block group a block bitmap, inode bitmap, and inode table. The
// root directory is created as inode 2 with "." and ".." entries.
//
// Unlike a production mkfs, reserved inodes 1 and 3-6 are marked used in
// the inode bitmap but never given real inode contents; nothing in this
// module ever resolves them by path.
func Format(device blockdev.Device, opts Params) (*FileSystem, error) {
	opts = opts.withDefaults()
	if opts.BlockSize < minBlockSize || opts.BlockSize > maxBlockSize || opts.BlockSize&(opts.BlockSize-1) != 0 {
		return nil, fmt.Errorf("%w: block size %d is not 1024, 2048, or 4096", ErrInvalidArgument, opts.BlockSize)
	}
	devBlockSize := device.BlockSize()
	if devBlockSize == 0 || opts.BlockSize%devBlockSize != 0 {
		return nil, fmt.Errorf("%w: block size %d is not a multiple of device block size %d", ErrInvalidArgument, opts.BlockSize, devBlockSize)
	}
	totalDeviceBytes := uint64(device.BlockCount()) * uint64(devBlockSize)
	totalBlocks := uint32(totalDeviceBytes / uint64(opts.BlockSize))
	if totalBlocks < 8 {
		return nil, fmt.Errorf("%w: device too small to hold an ext2 filesystem", ErrInvalidArgument)
	}

	firstDataBlock := uint32(1)
	if opts.BlockSize > minBlockSize {
		firstDataBlock = 0
	}

	blocksPerGroup := opts.BlockSize * 8 // one bitmap block covers 8*blockSize blocks
	if blocksPerGroup > totalBlocks-firstDataBlock {
		blocksPerGroup = totalBlocks - firstDataBlock
	}
	inodesPerGroup := opts.InodesPerGroup
	if inodesPerGroup == 0 {
		inodesPerGroup = blocksPerGroup / 4
	}
	inodesPerBlock := opts.BlockSize / inodeSize
	if inodesPerBlock == 0 {
		inodesPerBlock = 1
	}
	// Round inodesPerGroup up to a whole number of inode-table blocks.
	inodesPerGroup = ((inodesPerGroup + inodesPerBlock - 1) / inodesPerBlock) * inodesPerBlock
	if inodesPerGroup == 0 {
		inodesPerGroup = inodesPerBlock
	}
	// Group 0 must hold all the reserved inodes plus at least one usable slot.
	if inodesPerGroup < firstNonReserved {
		return nil, fmt.Errorf("%w: inodes-per-group %d leaves no usable inode after the %d reserved ones", ErrInvalidArgument, inodesPerGroup, firstNonReserved-1)
	}

	numGroups := (totalBlocks - firstDataBlock + blocksPerGroup - 1) / blocksPerGroup

	sb := &superblock{
		blocksCount:    totalBlocks,
		firstDataBlock: firstDataBlock,
		logBlockSize:   log2Div1024(opts.BlockSize),
		logFragSize:    log2Div1024(opts.BlockSize),
		blocksPerGroup: blocksPerGroup,
		fragsPerGroup:  blocksPerGroup,
		inodesPerGroup: inodesPerGroup,
		mntCount:       0,
		maxMntCount:    0xFFFF,
		magic:          ext2Magic,
		state:          stateValid,
		errors:         errorsContinue,
		minorRevLevel:  0,
		creatorOS:      0,
		revLevel:       0,
		blockSize:      opts.BlockSize,
		inodesCount:    inodesPerGroup * numGroups,
	}
	now := uint32(timestamp.GetTime().Unix())
	sb.mtime = now
	sb.wtime = now

	gdtBlock := uint64(firstDataBlock) + 1
	gdtBytesLen := uint64(numGroups) * groupDescriptorSize
	gdtBlocks := (gdtBytesLen + uint64(opts.BlockSize) - 1) / uint64(opts.BlockSize)

	gds := make(groupDescriptors, numGroups)

	// cursor walks forward from just after the (single, non-replicated)
	// superblock + group descriptor table, handing out metadata blocks to
	// each group in turn.
	cursor := gdtBlock + gdtBlocks
	inodeTableBlocksPerGroup := (inodesPerGroup + inodesPerBlock - 1) / inodesPerBlock

	type groupLayout struct {
		blockBitmap uint32
		inodeBitmap uint32
		inodeTable  uint32
		dataStart   uint32
		dataEnd     uint32 // exclusive
	}
	layouts := make([]groupLayout, numGroups)

	for g := uint32(0); g < numGroups; g++ {
		groupFirstBlock := firstDataBlock + g*blocksPerGroup
		groupLastBlock := groupFirstBlock + blocksPerGroup
		if groupLastBlock > totalBlocks {
			groupLastBlock = totalBlocks
		}
		l := groupLayout{}
		l.blockBitmap = uint32(cursor)
		cursor++
		l.inodeBitmap = uint32(cursor)
		cursor++
		l.inodeTable = uint32(cursor)
		cursor += uint64(inodeTableBlocksPerGroup)
		l.dataStart = uint32(cursor)
		l.dataEnd = groupLastBlock
		if l.dataStart > l.dataEnd {
			return nil, fmt.Errorf("%w: device too small for requested inodes-per-group", ErrInvalidArgument)
		}
		layouts[g] = l
		cursor = uint64(l.dataEnd)

		gds[g] = groupDescriptor{
			blockBitmap:     l.blockBitmap,
			inodeBitmap:     l.inodeBitmap,
			inodeTable:      l.inodeTable,
			freeBlocksCount: uint16(l.dataEnd - l.dataStart),
			freeInodesCount: uint16(inodesPerGroup),
			usedDirsCount:   0,
		}
	}

	fs := &FileSystem{device: device, sb: sb, gds: gds, log: logrus.NewEntry(logrus.New())}

	// Mark metadata blocks (everything before each group's data region,
	// plus the shared superblock/gdt span in group 0) used in the block
	// bitmaps, and write the bitmaps/inode tables out.
	for g := uint32(0); g < numGroups; g++ {
		l := layouts[g]
		bm := bitmap.NewBits(int(blocksPerGroup))
		groupFirstBlock := firstDataBlock + g*blocksPerGroup
		for b := groupFirstBlock; b < l.dataStart; b++ {
			if err := bm.Set(int(b - groupFirstBlock)); err != nil {
				return nil, err
			}
		}
		// In a truncated final group, bits past the device's last block
		// are marked used so the allocator never hands them out.
		for b := l.dataEnd - groupFirstBlock; b < blocksPerGroup; b++ {
			if err := bm.Set(int(b)); err != nil {
				return nil, err
			}
		}
		if err := fs.writeGroupBitmap(l.blockBitmap, bm); err != nil {
			return nil, err
		}

		ibm := bitmap.NewBits(int(inodesPerGroup))
		if g == 0 {
			// Reserve inodes 1..firstNonReserved-1.
			for i := uint32(0); i < firstNonReserved-1; i++ {
				if err := ibm.Set(int(i)); err != nil {
					return nil, err
				}
			}
		}
		if err := fs.writeGroupBitmap(l.inodeBitmap, ibm); err != nil {
			return nil, err
		}

		zero := make([]byte, uint64(inodeTableBlocksPerGroup)*uint64(opts.BlockSize))
		if err := writeFSBlocks(device, opts.BlockSize, uint64(l.inodeTable), uint64(inodeTableBlocksPerGroup), zero); err != nil {
			return nil, fmt.Errorf("%w: zeroing inode table: %v", ErrIOError, err)
		}
	}

	sb.freeBlocksCount = 0
	for _, gd := range gds {
		sb.freeBlocksCount += uint32(gd.freeBlocksCount)
	}
	sb.freeInodesCount = sb.inodesCount - (firstNonReserved - 1)
	gds[0].freeInodesCount -= uint16(firstNonReserved - 1)
	gds[0].usedDirsCount = 1

	if err := fs.writeSuperblock(); err != nil {
		return nil, err
	}
	if err := fs.writeGroupDescriptors(); err != nil {
		return nil, err
	}

	// Root directory: inode 2 is in group 0's first non-reserved-adjacent
	// slot. Reserved inode bits 1..10 are already set, so manually place
	// root rather than going through AllocInode (which would hand out 11).
	rootInode := &inode{mode: ModeDir | 0755, linksCount: 2}
	rootInode.touch(true, true)
	if err := fs.WriteInode(InodeRoot, rootInode); err != nil {
		return nil, err
	}
	if err := fs.PopulateNewDirectory(rootInode, InodeRoot, InodeRoot); err != nil {
		return nil, err
	}

	return Mount(device)
}

// log2Div1024 returns n such that 1024<<n == blockSize.
func log2Div1024(blockSize uint32) uint32 {
	n := uint32(0)
	for v := minBlockSize; v < blockSize; v <<= 1 {
		n++
	}
	return n
}
