package ext2

import (
	"encoding/binary"
	"fmt"

	"github.com/nanos-project/ext2fs/util/timestamp"
)

// inodeSize is the on-disk size of a revision-0 inode.
const inodeSize uint32 = 128

// numBlockPointers is the length of the i_block array: 12 direct plus
// single/double/triple indirect. Only slots 0-11 (direct)
// and 12 (single-indirect) are ever followed; 13 and 14 exist only so the
// struct round-trips bit-exact.
const numBlockPointers = 15

const (
	directBlocks       = 12
	singleIndirectSlot = 12
	doubleIndirectSlot = 13
	tripleIndirectSlot = 14
)

// File type bits held in the high nibble of i_mode.
const (
	ModeFIFO   uint16 = 0x1000
	ModeChar   uint16 = 0x2000
	ModeDir    uint16 = 0x4000
	ModeBlock  uint16 = 0x6000
	ModeRegular uint16 = 0x8000
	ModeLink   uint16 = 0xA000
	ModeSocket uint16 = 0xC000

	modeTypeMask uint16 = 0xF000
	modePermMask uint16 = 0x0FFF
)

// inode is the decoded form of a single 128-byte ext2 inode.
type inode struct {
	mode        uint16
	uid         uint16
	size        uint32
	atime       uint32
	ctime       uint32
	mtime       uint32
	dtime       uint32
	gid         uint16
	linksCount  uint16
	blocks512   uint32
	flags       uint32
	osd1        uint32
	block       [numBlockPointers]uint32
	generation  uint32
	fileACL     uint32
	dirACL      uint32
	faddr       uint32
	osd2        [12]byte
}

func inodeFromBytes(b []byte) (*inode, error) {
	if uint32(len(b)) != inodeSize {
		return nil, fmt.Errorf("%w: inode buffer is %d bytes, want %d", ErrInvalidArgument, len(b), inodeSize)
	}
	in := &inode{
		mode:       binary.LittleEndian.Uint16(b[0:2]),
		uid:        binary.LittleEndian.Uint16(b[2:4]),
		size:       binary.LittleEndian.Uint32(b[4:8]),
		atime:      binary.LittleEndian.Uint32(b[8:12]),
		ctime:      binary.LittleEndian.Uint32(b[12:16]),
		mtime:      binary.LittleEndian.Uint32(b[16:20]),
		dtime:      binary.LittleEndian.Uint32(b[20:24]),
		gid:        binary.LittleEndian.Uint16(b[24:26]),
		linksCount: binary.LittleEndian.Uint16(b[26:28]),
		blocks512:  binary.LittleEndian.Uint32(b[28:32]),
		flags:      binary.LittleEndian.Uint32(b[32:36]),
		osd1:       binary.LittleEndian.Uint32(b[36:40]),
	}
	for i := 0; i < numBlockPointers; i++ {
		off := 40 + i*4
		in.block[i] = binary.LittleEndian.Uint32(b[off : off+4])
	}
	in.generation = binary.LittleEndian.Uint32(b[100:104])
	in.fileACL = binary.LittleEndian.Uint32(b[104:108])
	in.dirACL = binary.LittleEndian.Uint32(b[108:112])
	in.faddr = binary.LittleEndian.Uint32(b[112:116])
	copy(in.osd2[:], b[116:128])
	return in, nil
}

func (in *inode) toBytes() []byte {
	b := make([]byte, inodeSize)
	binary.LittleEndian.PutUint16(b[0:2], in.mode)
	binary.LittleEndian.PutUint16(b[2:4], in.uid)
	binary.LittleEndian.PutUint32(b[4:8], in.size)
	binary.LittleEndian.PutUint32(b[8:12], in.atime)
	binary.LittleEndian.PutUint32(b[12:16], in.ctime)
	binary.LittleEndian.PutUint32(b[16:20], in.mtime)
	binary.LittleEndian.PutUint32(b[20:24], in.dtime)
	binary.LittleEndian.PutUint16(b[24:26], in.gid)
	binary.LittleEndian.PutUint16(b[26:28], in.linksCount)
	binary.LittleEndian.PutUint32(b[28:32], in.blocks512)
	binary.LittleEndian.PutUint32(b[32:36], in.flags)
	binary.LittleEndian.PutUint32(b[36:40], in.osd1)
	for i := 0; i < numBlockPointers; i++ {
		off := 40 + i*4
		binary.LittleEndian.PutUint32(b[off:off+4], in.block[i])
	}
	binary.LittleEndian.PutUint32(b[100:104], in.generation)
	binary.LittleEndian.PutUint32(b[104:108], in.fileACL)
	binary.LittleEndian.PutUint32(b[108:112], in.dirACL)
	binary.LittleEndian.PutUint32(b[112:116], in.faddr)
	copy(b[116:128], in.osd2[:])
	return b
}

// fileType returns the high-nibble type bits of mode.
func (in *inode) fileType() uint16 { return in.mode & modeTypeMask }

// perm returns the low 9 permission bits of mode.
func (in *inode) perm() uint16 { return in.mode & modePermMask & 0777 }

func (in *inode) isDir() bool     { return in.fileType() == ModeDir }
func (in *inode) isRegular() bool { return in.fileType() == ModeRegular }
func (in *inode) isSymlink() bool { return in.fileType() == ModeLink }

// touch stamps ctime and optionally atime/mtime using the current
// (possibly SOURCE_DATE_EPOCH-pinned) time.
func (in *inode) touch(atime, mtime bool) {
	now := uint32(timestamp.GetTime().Unix())
	in.ctime = now
	if atime {
		in.atime = now
	}
	if mtime {
		in.mtime = now
	}
}

// inodeLocation computes which filesystem block of the inode table holds
// inode number num, and the slot index inside that block.
func (fs *FileSystem) inodeLocation(num uint32) (group uint64, block uint64, slot uint64, err error) {
	if num == 0 || num > fs.sb.inodesCount {
		return 0, 0, 0, fmt.Errorf("%w: inode number %d out of range", ErrInvalidArgument, num)
	}
	inodesPerGroup := uint64(fs.sb.inodesPerGroup)
	idx := uint64(num) - 1
	group = idx / inodesPerGroup
	offsetInGroup := idx % inodesPerGroup
	inodesPerBlock := uint64(fs.sb.blockSize) / uint64(inodeSize)
	if group >= uint64(len(fs.gds)) {
		return 0, 0, 0, fmt.Errorf("%w: inode %d maps to group %d beyond group descriptor table", ErrInvalidArgument, num, group)
	}
	block = uint64(fs.gds[group].inodeTable) + offsetInGroup/inodesPerBlock
	slot = offsetInGroup % inodesPerBlock
	return group, block, slot, nil
}

// ReadInode reads inode number num from the inode table.
func (fs *FileSystem) ReadInode(num uint32) (*inode, error) {
	_, block, slot, err := fs.inodeLocation(num)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, fs.sb.blockSize)
	if err := readFSBlocks(fs.device, fs.sb.blockSize, block, 1, buf); err != nil {
		return nil, fmt.Errorf("%w: reading inode %d: %v", ErrIOError, num, err)
	}
	start := slot * uint64(inodeSize)
	return inodeFromBytes(buf[start : start+uint64(inodeSize)])
}

// WriteInode performs a read-modify-write of the inode table block holding
// inode number num.
func (fs *FileSystem) WriteInode(num uint32, in *inode) error {
	_, block, slot, err := fs.inodeLocation(num)
	if err != nil {
		return err
	}
	buf := make([]byte, fs.sb.blockSize)
	if err := readFSBlocks(fs.device, fs.sb.blockSize, block, 1, buf); err != nil {
		return fmt.Errorf("%w: reading inode table block for inode %d: %v", ErrIOError, num, err)
	}
	start := slot * uint64(inodeSize)
	copy(buf[start:start+uint64(inodeSize)], in.toBytes())
	if err := writeFSBlocks(fs.device, fs.sb.blockSize, block, 1, buf); err != nil {
		return fmt.Errorf("%w: writing inode %d: %v", ErrIOError, num, err)
	}
	return nil
}

// blockPointer maps a 0-based logical block index inside an inode to a
// physical filesystem block number. physical == 0 means
// unmapped.
func (fs *FileSystem) blockPointer(in *inode, logical uint32) (physical uint32, err error) {
	addrPerBlock := fs.sb.addrPerBlock()
	switch {
	case logical < directBlocks:
		return in.block[logical], nil
	case logical < directBlocks+addrPerBlock:
		indirectBlock := in.block[singleIndirectSlot]
		if indirectBlock == 0 {
			return 0, nil
		}
		buf := make([]byte, fs.sb.blockSize)
		if err := readFSBlocks(fs.device, fs.sb.blockSize, uint64(indirectBlock), 1, buf); err != nil {
			return 0, fmt.Errorf("%w: reading indirect block: %v", ErrIOError, err)
		}
		idx := logical - directBlocks
		off := idx * 4
		return binary.LittleEndian.Uint32(buf[off : off+4]), nil
	default:
		return 0, ErrTooLarge
	}
}
