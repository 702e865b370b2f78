package blockdev

import (
	"bytes"
	"strings"
	"testing"
)

func TestRAMDeviceReadWriteRoundTrip(t *testing.T) {
	d := NewRAMDevice("ramdisk0", 4)
	want := bytes.Repeat([]byte{0xAB}, int(DeviceBlockSize))
	if err := d.Write(1, 1, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := make([]byte, DeviceBlockSize)
	if err := d.Read(1, 1, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read back %x, want %x", got, want)
	}
	// Untouched blocks stay zero.
	zero := make([]byte, DeviceBlockSize)
	if err := d.Read(0, 1, got); err != nil {
		t.Fatalf("Read block 0: %v", err)
	}
	if !bytes.Equal(got, zero) {
		t.Fatalf("block 0 should still be zero, got %x", got)
	}
}

func TestRAMDeviceOutOfRangeFailsWithoutPartialEffect(t *testing.T) {
	d := NewRAMDevice("ramdisk0", 2)
	buf := make([]byte, DeviceBlockSize*3)
	if err := d.Read(0, 3, buf); err == nil {
		t.Fatal("expected an error reading past BlockCount")
	}
	if err := d.Write(1, 2, buf); err == nil {
		t.Fatal("expected an error writing past BlockCount")
	}
	// device must still read back as all zero - no partial write occurred.
	probe := make([]byte, DeviceBlockSize)
	if err := d.Read(1, 1, probe); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, b := range probe {
		if b != 0 {
			t.Fatalf("out-of-range write left a partial effect: %x", probe)
		}
	}
}

func TestRAMDeviceShortBufferRejected(t *testing.T) {
	d := NewRAMDevice("ramdisk0", 2)
	buf := make([]byte, DeviceBlockSize-1)
	if err := d.Read(0, 1, buf); err == nil {
		t.Fatal("expected a short-buffer error")
	}
}

func TestRAMDeviceLoadImage(t *testing.T) {
	d := NewRAMDeviceSize("ramdisk0", DeviceBlockSize*2)
	img := strings.NewReader(strings.Repeat("x", int(DeviceBlockSize)))
	if err := d.LoadImage(img); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	got := make([]byte, DeviceBlockSize)
	if err := d.Read(0, 1, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{'x'}, int(DeviceBlockSize))) {
		t.Fatalf("image not loaded at block 0")
	}
	// Remainder of the device stays zeroed.
	rest := make([]byte, DeviceBlockSize)
	if err := d.Read(1, 1, rest); err != nil {
		t.Fatalf("Read block 1: %v", err)
	}
	for _, b := range rest {
		if b != 0 {
			t.Fatalf("short image should leave the remainder zeroed, got %x", rest)
		}
	}
}

func TestRAMDeviceLoadImageTooLarge(t *testing.T) {
	d := NewRAMDevice("ramdisk0", 1)
	img := strings.NewReader(strings.Repeat("x", int(DeviceBlockSize)*2))
	if err := d.LoadImage(img); err == nil {
		t.Fatal("expected an error loading an oversize image")
	}
}
