package ext2

import "encoding/binary"

// groupDescriptorSize is the on-disk size of a single block group
// descriptor entry.
const groupDescriptorSize uint64 = 32

// groupDescriptor is the decoded form of one 32-byte block group
// descriptor.
type groupDescriptor struct {
	blockBitmap     uint32
	inodeBitmap     uint32
	inodeTable      uint32
	freeBlocksCount uint16
	freeInodesCount uint16
	usedDirsCount   uint16
	pad             uint16
}

func groupDescriptorFromBytes(b []byte) groupDescriptor {
	return groupDescriptor{
		blockBitmap:     binary.LittleEndian.Uint32(b[0:4]),
		inodeBitmap:     binary.LittleEndian.Uint32(b[4:8]),
		inodeTable:      binary.LittleEndian.Uint32(b[8:12]),
		freeBlocksCount: binary.LittleEndian.Uint16(b[12:14]),
		freeInodesCount: binary.LittleEndian.Uint16(b[14:16]),
		usedDirsCount:   binary.LittleEndian.Uint16(b[16:18]),
		pad:             binary.LittleEndian.Uint16(b[18:20]),
	}
}

func (gd groupDescriptor) toBytes() []byte {
	b := make([]byte, groupDescriptorSize)
	binary.LittleEndian.PutUint32(b[0:4], gd.blockBitmap)
	binary.LittleEndian.PutUint32(b[4:8], gd.inodeBitmap)
	binary.LittleEndian.PutUint32(b[8:12], gd.inodeTable)
	binary.LittleEndian.PutUint16(b[12:14], gd.freeBlocksCount)
	binary.LittleEndian.PutUint16(b[14:16], gd.freeInodesCount)
	binary.LittleEndian.PutUint16(b[16:18], gd.usedDirsCount)
	binary.LittleEndian.PutUint16(b[18:20], gd.pad)
	return b
}

// groupDescriptors is the in-memory block group descriptor table, one
// entry per block group, ordered by group number.
type groupDescriptors []groupDescriptor

// groupDescriptorsFromBytes decodes n consecutive group descriptors
// starting at the beginning of b.
func groupDescriptorsFromBytes(b []byte, n int) groupDescriptors {
	gds := make(groupDescriptors, n)
	for i := 0; i < n; i++ {
		start := uint64(i) * groupDescriptorSize
		gds[i] = groupDescriptorFromBytes(b[start : start+groupDescriptorSize])
	}
	return gds
}

// toBytes encodes the whole table back to a byte-packed buffer of
// len(gds)*groupDescriptorSize bytes.
func (gds groupDescriptors) toBytes() []byte {
	b := make([]byte, uint64(len(gds))*groupDescriptorSize)
	for i, gd := range gds {
		start := uint64(i) * groupDescriptorSize
		copy(b[start:start+groupDescriptorSize], gd.toBytes())
	}
	return b
}
