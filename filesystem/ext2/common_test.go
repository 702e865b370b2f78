package ext2

import (
	"testing"

	"github.com/nanos-project/ext2fs/blockdev"
)

// newTestFS formats and mounts a fresh RAM-backed filesystem of the given
// size, so tests never touch the host disk.
func newTestFS(t *testing.T, sizeBytes uint64, opts Params) *FileSystem {
	t.Helper()
	device := blockdev.NewRAMDeviceSize("ramdisk0", sizeBytes)
	fs, err := Format(device, opts)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	return fs
}

const testImageSize = 256 * 1024 // smallest image every test in the suite is expected to fit in

func blockdevRAM(t *testing.T, sizeBytes uint64) *blockdev.RAMDevice {
	t.Helper()
	return blockdev.NewRAMDeviceSize("ramdisk0", sizeBytes)
}
