package ext2

import (
	"fmt"

	"github.com/nanos-project/ext2fs/blockdev"
)

// fsBlocksToDeviceBlocks converts a filesystem block range to the
// underlying device's block range: filesystem-block B maps to device
// block B*(blockSize/512), counts scale identically.
func fsBlocksToDeviceBlocks(blockSize uint32, fsBlock, fsCount uint64) (devBlock, devCount uint32, err error) {
	if blockSize%blockdev.DeviceBlockSize != 0 {
		return 0, 0, fmt.Errorf("%w: filesystem block size %d is not a multiple of device block size %d", ErrInvalidArgument, blockSize, blockdev.DeviceBlockSize)
	}
	ratio := uint64(blockSize / blockdev.DeviceBlockSize)
	db := fsBlock * ratio
	dc := fsCount * ratio
	if db > uint64(^uint32(0)) || dc > uint64(^uint32(0)) {
		return 0, 0, fmt.Errorf("%w: device block range overflow", ErrInvalidArgument)
	}
	return uint32(db), uint32(dc), nil
}

// readFSBlocks reads fsCount filesystem blocks of blockSize bytes starting
// at fsBlock into buf, which must be exactly fsCount*blockSize bytes.
func readFSBlocks(device blockdev.Device, blockSize uint32, fsBlock, fsCount uint64, buf []byte) error {
	if uint64(len(buf)) != fsCount*uint64(blockSize) {
		return fmt.Errorf("%w: buffer is %d bytes, want %d", ErrInvalidArgument, len(buf), fsCount*uint64(blockSize))
	}
	devBlock, devCount, err := fsBlocksToDeviceBlocks(blockSize, fsBlock, fsCount)
	if err != nil {
		return err
	}
	return device.Read(devBlock, devCount, buf)
}

// writeFSBlocks writes buf (fsCount*blockSize bytes) to fsCount filesystem
// blocks of blockSize bytes starting at fsBlock.
func writeFSBlocks(device blockdev.Device, blockSize uint32, fsBlock, fsCount uint64, buf []byte) error {
	if uint64(len(buf)) != fsCount*uint64(blockSize) {
		return fmt.Errorf("%w: buffer is %d bytes, want %d", ErrInvalidArgument, len(buf), fsCount*uint64(blockSize))
	}
	devBlock, devCount, err := fsBlocksToDeviceBlocks(blockSize, fsBlock, fsCount)
	if err != nil {
		return err
	}
	return device.Write(devBlock, devCount, buf)
}

// readBytesAt reads len(buf) bytes at an arbitrary byte offset from device,
// by rounding out to whole device blocks and copying the requested slice.
// Used for the superblock, which sits at a fixed 1024-byte byte offset
// unrelated to the filesystem's own block size (not yet known at the point
// it is read).
func readBytesAt(device blockdev.Device, byteOffset uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	const dbs = uint64(blockdev.DeviceBlockSize)
	firstBlock := byteOffset / dbs
	lastByte := byteOffset + uint64(len(buf)) - 1
	lastBlock := lastByte / dbs
	count := lastBlock - firstBlock + 1
	if firstBlock > uint64(^uint32(0)) || count > uint64(^uint32(0)) {
		return fmt.Errorf("%w: byte offset out of range", ErrInvalidArgument)
	}
	tmp := make([]byte, count*dbs)
	if err := device.Read(uint32(firstBlock), uint32(count), tmp); err != nil {
		return err
	}
	start := byteOffset - firstBlock*dbs
	copy(buf, tmp[start:start+uint64(len(buf))])
	return nil
}

// writeBytesAt performs a read-modify-write of the device blocks spanning
// [byteOffset, byteOffset+len(buf)) and writes buf into that span.
func writeBytesAt(device blockdev.Device, byteOffset uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	const dbs = uint64(blockdev.DeviceBlockSize)
	firstBlock := byteOffset / dbs
	lastByte := byteOffset + uint64(len(buf)) - 1
	lastBlock := lastByte / dbs
	count := lastBlock - firstBlock + 1
	if firstBlock > uint64(^uint32(0)) || count > uint64(^uint32(0)) {
		return fmt.Errorf("%w: byte offset out of range", ErrInvalidArgument)
	}
	tmp := make([]byte, count*dbs)
	if err := device.Read(uint32(firstBlock), uint32(count), tmp); err != nil {
		return err
	}
	start := byteOffset - firstBlock*dbs
	copy(tmp[start:start+uint64(len(buf))], buf)
	return device.Write(uint32(firstBlock), uint32(count), tmp)
}
