// Package filedev backs a blockdev.Device with a host file or raw device
// node, so disk images can be mounted and persisted across runs.
package filedev

import (
	"errors"
	"fmt"
	"os"

	"github.com/nanos-project/ext2fs/blockdev"
)

// Device backs a blockdev.Device with an *os.File.
type Device struct {
	name       string
	f          *os.File
	blockCount uint32
	readOnly   bool
}

var _ blockdev.Device = (*Device)(nil)

// Open opens an existing file or raw device node at path as a block
// device. The file's size must be a whole number of blockdev.DeviceBlockSize
// blocks. Pass readOnly to refuse writes.
func Open(name, path string, readOnly bool) (*Device, error) {
	if path == "" {
		return nil, errors.New("filedev: must pass a path")
	}
	mode := os.O_RDONLY
	if !readOnly {
		mode = os.O_RDWR
	}
	f, err := os.OpenFile(path, mode, 0o600)
	if err != nil {
		return nil, fmt.Errorf("filedev: opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("filedev: stat %s: %w", path, err)
	}
	if info.Size()%blockdev.DeviceBlockSize != 0 {
		f.Close()
		return nil, fmt.Errorf("filedev: %s size %d is not a multiple of block size %d", path, info.Size(), blockdev.DeviceBlockSize)
	}
	return &Device{
		name:       name,
		f:          f,
		blockCount: uint32(info.Size() / blockdev.DeviceBlockSize),
		readOnly:   readOnly,
	}, nil
}

// Create creates a new file at path of the given size (rounded up to a
// whole number of blocks) and backs a block device with it.
func Create(name, path string, sizeBytes int64) (*Device, error) {
	if sizeBytes <= 0 {
		return nil, errors.New("filedev: must pass a positive size")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("filedev: creating %s: %w", path, err)
	}
	blockCount := (sizeBytes + blockdev.DeviceBlockSize - 1) / blockdev.DeviceBlockSize
	if err := f.Truncate(blockCount * blockdev.DeviceBlockSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("filedev: sizing %s: %w", path, err)
	}
	return &Device{
		name:       name,
		f:          f,
		blockCount: uint32(blockCount),
	}, nil
}

// Close closes the underlying file.
func (d *Device) Close() error { return d.f.Close() }

// Name implements blockdev.Device.
func (d *Device) Name() string { return d.name }

// BlockCount implements blockdev.Device.
func (d *Device) BlockCount() uint32 { return d.blockCount }

// BlockSize implements blockdev.Device.
func (d *Device) BlockSize() uint32 { return blockdev.DeviceBlockSize }

// Read implements blockdev.Device.
func (d *Device) Read(firstBlock, count uint32, buf []byte) error {
	if err := d.checkRange(firstBlock, count, len(buf)); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	_, err := d.f.ReadAt(buf, int64(firstBlock)*blockdev.DeviceBlockSize)
	if err != nil {
		return fmt.Errorf("filedev: reading %q: %w", d.name, err)
	}
	return nil
}

// Write implements blockdev.Device.
func (d *Device) Write(firstBlock, count uint32, buf []byte) error {
	if d.readOnly {
		return blockdev.ErrReadOnly
	}
	if err := d.checkRange(firstBlock, count, len(buf)); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	_, err := d.f.WriteAt(buf, int64(firstBlock)*blockdev.DeviceBlockSize)
	if err != nil {
		return fmt.Errorf("filedev: writing %q: %w", d.name, err)
	}
	return nil
}

func (d *Device) checkRange(firstBlock, count uint32, bufLen int) error {
	if count == 0 {
		return nil
	}
	if firstBlock >= d.blockCount || count > d.blockCount-firstBlock {
		return blockdev.ErrOutOfRange
	}
	if want := int(count) * int(blockdev.DeviceBlockSize); bufLen != want {
		return blockdev.ErrShortBuffer
	}
	return nil
}
