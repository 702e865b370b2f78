package ext2

import (
	"encoding/binary"
	"fmt"
)

// On-disk layout constants.
const (
	ext2Magic        uint16 = 0xEF53
	superblockSize   uint64 = 1024
	superblockOffset uint64 = 1024
	minBlockSize     uint32 = 1024
	maxBlockSize     uint32 = 4096
)

// Filesystem states (s_state).
const (
	stateValid uint16 = 1
	stateError uint16 = 2
)

// Error policies (s_errors).
const (
	errorsContinue uint16 = 1
	errorsRO       uint16 = 2
	errorsPanic    uint16 = 3
)

// superblock is the decoded form of the 1024-byte ext2 revision-0
// superblock. Field names mirror the on-disk s_* fields with the prefix
// dropped.
type superblock struct {
	inodesCount      uint32
	blocksCount      uint32
	rBlocksCount     uint32
	freeBlocksCount  uint32
	freeInodesCount  uint32
	firstDataBlock   uint32
	logBlockSize     uint32
	logFragSize      uint32
	blocksPerGroup   uint32
	fragsPerGroup    uint32
	inodesPerGroup   uint32
	mtime            uint32
	wtime            uint32
	mntCount         uint16
	maxMntCount      uint16
	magic            uint16
	state            uint16
	errors           uint16
	minorRevLevel    uint16
	lastcheck        uint32
	checkinterval    uint32
	creatorOS        uint32
	revLevel         uint32
	defResuid        uint16
	defResgid        uint16

	// blockSize is derived from logBlockSize, not stored on disk.
	blockSize uint32
}

// superblockFromBytes decodes a 1024-byte superblock buffer.
func superblockFromBytes(b []byte) (*superblock, error) {
	if uint64(len(b)) != superblockSize {
		return nil, fmt.Errorf("%w: superblock buffer is %d bytes, want %d", ErrInvalidArgument, len(b), superblockSize)
	}
	sb := &superblock{
		inodesCount:     binary.LittleEndian.Uint32(b[0:4]),
		blocksCount:     binary.LittleEndian.Uint32(b[4:8]),
		rBlocksCount:    binary.LittleEndian.Uint32(b[8:12]),
		freeBlocksCount: binary.LittleEndian.Uint32(b[12:16]),
		freeInodesCount: binary.LittleEndian.Uint32(b[16:20]),
		firstDataBlock:  binary.LittleEndian.Uint32(b[20:24]),
		logBlockSize:    binary.LittleEndian.Uint32(b[24:28]),
		logFragSize:     binary.LittleEndian.Uint32(b[28:32]),
		blocksPerGroup:  binary.LittleEndian.Uint32(b[32:36]),
		fragsPerGroup:   binary.LittleEndian.Uint32(b[36:40]),
		inodesPerGroup:  binary.LittleEndian.Uint32(b[40:44]),
		mtime:           binary.LittleEndian.Uint32(b[44:48]),
		wtime:           binary.LittleEndian.Uint32(b[48:52]),
		mntCount:        binary.LittleEndian.Uint16(b[52:54]),
		maxMntCount:     binary.LittleEndian.Uint16(b[54:56]),
		magic:           binary.LittleEndian.Uint16(b[56:58]),
		state:           binary.LittleEndian.Uint16(b[58:60]),
		errors:          binary.LittleEndian.Uint16(b[60:62]),
		minorRevLevel:   binary.LittleEndian.Uint16(b[62:64]),
		lastcheck:       binary.LittleEndian.Uint32(b[64:68]),
		checkinterval:   binary.LittleEndian.Uint32(b[68:72]),
		creatorOS:       binary.LittleEndian.Uint32(b[72:76]),
		revLevel:        binary.LittleEndian.Uint32(b[76:80]),
		defResuid:       binary.LittleEndian.Uint16(b[80:82]),
		defResgid:       binary.LittleEndian.Uint16(b[82:84]),
	}
	bs := minBlockSize << sb.logBlockSize
	if bs < minBlockSize || bs > maxBlockSize {
		return nil, fmt.Errorf("%w: implausible block size %d", ErrInvalidArgument, bs)
	}
	sb.blockSize = bs
	return sb, nil
}

// toBytes encodes sb back into a 1024-byte buffer, zero-padded past the
// defined fields.
func (sb *superblock) toBytes() []byte {
	b := make([]byte, superblockSize)
	binary.LittleEndian.PutUint32(b[0:4], sb.inodesCount)
	binary.LittleEndian.PutUint32(b[4:8], sb.blocksCount)
	binary.LittleEndian.PutUint32(b[8:12], sb.rBlocksCount)
	binary.LittleEndian.PutUint32(b[12:16], sb.freeBlocksCount)
	binary.LittleEndian.PutUint32(b[16:20], sb.freeInodesCount)
	binary.LittleEndian.PutUint32(b[20:24], sb.firstDataBlock)
	binary.LittleEndian.PutUint32(b[24:28], sb.logBlockSize)
	binary.LittleEndian.PutUint32(b[28:32], sb.logFragSize)
	binary.LittleEndian.PutUint32(b[32:36], sb.blocksPerGroup)
	binary.LittleEndian.PutUint32(b[36:40], sb.fragsPerGroup)
	binary.LittleEndian.PutUint32(b[40:44], sb.inodesPerGroup)
	binary.LittleEndian.PutUint32(b[44:48], sb.mtime)
	binary.LittleEndian.PutUint32(b[48:52], sb.wtime)
	binary.LittleEndian.PutUint16(b[52:54], sb.mntCount)
	binary.LittleEndian.PutUint16(b[54:56], sb.maxMntCount)
	binary.LittleEndian.PutUint16(b[56:58], sb.magic)
	binary.LittleEndian.PutUint16(b[58:60], sb.state)
	binary.LittleEndian.PutUint16(b[60:62], sb.errors)
	binary.LittleEndian.PutUint16(b[62:64], sb.minorRevLevel)
	binary.LittleEndian.PutUint32(b[64:68], sb.lastcheck)
	binary.LittleEndian.PutUint32(b[68:72], sb.checkinterval)
	binary.LittleEndian.PutUint32(b[72:76], sb.creatorOS)
	binary.LittleEndian.PutUint32(b[76:80], sb.revLevel)
	binary.LittleEndian.PutUint16(b[80:82], sb.defResuid)
	binary.LittleEndian.PutUint16(b[82:84], sb.defResgid)
	return b
}

// blockGroupCount returns ceil(blocksCount / blocksPerGroup).
func (sb *superblock) blockGroupCount() uint64 {
	if sb.blocksPerGroup == 0 {
		return 0
	}
	return (uint64(sb.blocksCount) + uint64(sb.blocksPerGroup) - 1) / uint64(sb.blocksPerGroup)
}

// addrPerBlock returns the number of 4-byte block-number slots in a single
// indirect block.
func (sb *superblock) addrPerBlock() uint32 {
	return sb.blockSize / 4
}
