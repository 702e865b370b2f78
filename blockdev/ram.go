package blockdev

import (
	"fmt"
	"io"
)

// RAMDevice is an in-memory block device: a byte array of size
// BlockCount()*DeviceBlockSize, copied on every read and write. It is the
// default backing store used to mount and exercise an ext2 filesystem
// without touching the host disk.
type RAMDevice struct {
	name string
	data []byte
}

// NewRAMDevice allocates a zero-filled RAM device able to address
// blockCount blocks of DeviceBlockSize bytes each.
func NewRAMDevice(name string, blockCount uint32) *RAMDevice {
	return &RAMDevice{
		name: name,
		data: make([]byte, uint64(blockCount)*DeviceBlockSize),
	}
}

// NewRAMDeviceSize allocates a zero-filled RAM device at least sizeBytes
// large, rounded up to a whole number of blocks.
func NewRAMDeviceSize(name string, sizeBytes uint64) *RAMDevice {
	blocks := (sizeBytes + DeviceBlockSize - 1) / DeviceBlockSize
	return NewRAMDevice(name, uint32(blocks))
}

// Name implements Device.
func (d *RAMDevice) Name() string { return d.name }

// BlockCount implements Device.
func (d *RAMDevice) BlockCount() uint32 { return uint32(len(d.data) / DeviceBlockSize) }

// BlockSize implements Device.
func (d *RAMDevice) BlockSize() uint32 { return DeviceBlockSize }

// Read implements Device.
func (d *RAMDevice) Read(firstBlock, count uint32, buf []byte) error {
	if err := checkRange(d, firstBlock, count, len(buf)); err != nil {
		return err
	}
	start := uint64(firstBlock) * DeviceBlockSize
	end := start + uint64(count)*DeviceBlockSize
	copy(buf, d.data[start:end])
	return nil
}

// Write implements Device.
func (d *RAMDevice) Write(firstBlock, count uint32, buf []byte) error {
	if err := checkRange(d, firstBlock, count, len(buf)); err != nil {
		return err
	}
	start := uint64(firstBlock) * DeviceBlockSize
	end := start + uint64(count)*DeviceBlockSize
	copy(d.data[start:end], buf)
	return nil
}

// LoadImage overwrites the device contents from r, starting at block 0.
// It is an error for the image to be larger than the device; a shorter
// image leaves the remainder of the device zeroed.
func (d *RAMDevice) LoadImage(r io.Reader) error {
	n, err := io.ReadFull(r, d.data)
	switch err {
	case nil:
		// image may be larger than the device; confirm there's nothing left.
		var extra [1]byte
		if n, _ := r.Read(extra[:]); n > 0 {
			return fmt.Errorf("blockdev: image larger than device %q", d.name)
		}
		return nil
	case io.ErrUnexpectedEOF, io.EOF:
		// a short image is fine - the remainder of the device is zeroed.
		for i := n; i < len(d.data); i++ {
			d.data[i] = 0
		}
		return nil
	default:
		return fmt.Errorf("blockdev: loading image into %q: %w", d.name, err)
	}
}

// Dump returns a copy of the full device contents, e.g. for persisting a
// RAM device's image back out to the host filesystem.
func (d *RAMDevice) Dump() []byte {
	out := make([]byte, len(d.data))
	copy(out, d.data)
	return out
}
