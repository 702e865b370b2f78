// Package ext2 implements a read/write ext2 revision 0 filesystem over a
// blockdev.Device: superblock/group-descriptor handling, inode and block
// allocation, directory entry management, symlinks, and path resolution.
//
// Only direct and single-indirect block pointers are honored; there is no
// journaling, double/triple indirection, fragment support, or extended
// attribute handling.
package ext2

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nanos-project/ext2fs/blockdev"
	"github.com/nanos-project/ext2fs/filesystem"
	"github.com/nanos-project/ext2fs/util"
)

// Errors returned by this package. Callers that need to distinguish a
// failure reason should use errors.Is.
var (
	ErrIOError         = errors.New("ext2: device I/O error")
	ErrNotFound        = errors.New("ext2: no such file or directory")
	ErrNotADirectory   = errors.New("ext2: not a directory")
	ErrIsADirectory    = errors.New("ext2: is a directory")
	ErrNotEmpty        = errors.New("ext2: directory not empty")
	ErrNoSpace         = errors.New("ext2: no space left on device")
	ErrTooLarge        = errors.New("ext2: read or write beyond single-indirect range")
	ErrInvalidArgument = errors.New("ext2: invalid argument")
	ErrAlreadyExists   = errors.New("ext2: file already exists")
	ErrBadMagic        = errors.New("ext2: bad superblock magic")
	ErrAlreadyMounted  = errors.New("ext2: filesystem already mounted on this handle")
	// ErrNotSupported is returned for operations this package understands
	// but does not implement, e.g. growing a file through truncate.
	ErrNotSupported = errors.New("ext2: operation not supported")
)

// Reserved inode numbers; the first inode available for allocation is 11.
const (
	InodeBadBlocks   uint32 = 1
	InodeRoot        uint32 = 2
	InodeACLIndex    uint32 = 3
	InodeACLData     uint32 = 4
	InodeBootLoader  uint32 = 5
	InodeUndelete    uint32 = 6
	firstNonReserved uint32 = 11
)

// MaxNameLen is the maximum byte length of a single path component / directory entry name.
const MaxNameLen = 255

// FileSystem is a mounted ext2 filesystem handle: the decoded superblock,
// the group descriptor table, and derived parameters, layered over a
// blockdev.Device. AsFileSystem wraps it to implement filesystem.FileSystem.
type FileSystem struct {
	device  blockdev.Device
	sb      *superblock
	gds     groupDescriptors
	mountID uuid.UUID
	log     *logrus.Entry
}

// Type implements filesystem.FileSystem (via the AsFileSystem adapter, see
// adapter.go - FileSystem itself exposes ext2-native uint16 uid/gid/mode
// signatures that the vfs package consumes directly).
func (fs *FileSystem) Type() filesystem.Type { return filesystem.TypeExt2 }

// Mount reads the superblock and group descriptor table from device and
// returns a mounted filesystem handle.
func Mount(device blockdev.Device) (*FileSystem, error) {
	if device == nil {
		return nil, fmt.Errorf("%w: nil device", ErrInvalidArgument)
	}
	mountID := uuid.New()
	log := logrus.WithFields(logrus.Fields{"component": "ext2", "mount_id": mountID, "device": device.Name()})

	sbBuf := make([]byte, superblockSize)
	if err := readBytesAt(device, superblockOffset, sbBuf); err != nil {
		return nil, fmt.Errorf("%w: reading superblock: %v", ErrIOError, err)
	}
	sb, err := superblockFromBytes(sbBuf)
	if err != nil {
		return nil, err
	}
	if sb.magic != ext2Magic {
		log.WithFields(logrus.Fields{
			"magic": fmt.Sprintf("0x%04x", sb.magic),
			"dump":  util.DumpByteSlice(sbBuf[:64], 16, true, true, false, nil),
		}).Warn("bad superblock magic")
		return nil, ErrBadMagic
	}

	numGroups := sb.blockGroupCount()
	gdtBlock := uint64(sb.firstDataBlock) + 1
	gdtBytesLen := numGroups * groupDescriptorSize
	gdtBlocks := (gdtBytesLen + uint64(sb.blockSize) - 1) / uint64(sb.blockSize)
	gdtBuf := make([]byte, gdtBlocks*uint64(sb.blockSize))
	if err := readFSBlocks(device, sb.blockSize, gdtBlock, gdtBlocks, gdtBuf); err != nil {
		return nil, fmt.Errorf("%w: reading group descriptor table: %v", ErrIOError, err)
	}
	gds := groupDescriptorsFromBytes(gdtBuf, int(numGroups))

	fs := &FileSystem{
		device:  device,
		sb:      sb,
		gds:     gds,
		mountID: mountID,
		log:     log,
	}
	log.WithFields(logrus.Fields{
		"block_size":   sb.blockSize,
		"blocks_count": sb.blocksCount,
		"block_groups": numGroups,
	}).Info("mounted ext2 filesystem")
	return fs, nil
}

// Device returns the underlying block device.
func (fs *FileSystem) Device() blockdev.Device { return fs.device }

// BlockSize returns the filesystem block size in bytes.
func (fs *FileSystem) BlockSize() uint32 { return fs.sb.blockSize }

// MountID returns the random correlation id assigned to this mount.
func (fs *FileSystem) MountID() uuid.UUID { return fs.mountID }
