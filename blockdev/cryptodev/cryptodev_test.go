package cryptodev

import (
	"bytes"
	"testing"

	"github.com/nanos-project/ext2fs/blockdev"
)

func TestReadWriteRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt: %v", err)
	}
	key := DeriveKey("correct horse battery staple", salt)
	under := blockdev.NewRAMDevice("ramdisk0", 4)
	d, err := New(under, key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := bytes.Repeat([]byte{0x42}, int(blockdev.DeviceBlockSize)*2)
	if err := d.Write(1, 2, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := make([]byte, len(want))
	if err := d.Read(1, 2, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %x, want %x", got, want)
	}
}

func TestUnderlyingDeviceStoresCiphertext(t *testing.T) {
	key := DeriveKey("hunter2", []byte("0123456789abcdef"))
	under := blockdev.NewRAMDevice("ramdisk0", 2)
	d, err := New(under, key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	plain := bytes.Repeat([]byte{0xFF}, int(blockdev.DeviceBlockSize))
	if err := d.Write(0, 1, plain); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw := make([]byte, blockdev.DeviceBlockSize)
	if err := under.Read(0, 1, raw); err != nil {
		t.Fatalf("Read raw: %v", err)
	}
	if bytes.Equal(raw, plain) {
		t.Fatal("underlying device holds plaintext, expected ciphertext")
	}
}

func TestDifferentKeysDecryptDifferently(t *testing.T) {
	under := blockdev.NewRAMDevice("ramdisk0", 1)
	keyA := DeriveKey("passphrase-a", []byte("saltsaltsaltsalt"))
	keyB := DeriveKey("passphrase-b", []byte("saltsaltsaltsalt"))

	dA, err := New(under, keyA)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := bytes.Repeat([]byte{0x11}, int(blockdev.DeviceBlockSize))
	if err := dA.Write(0, 1, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dB, err := New(under, keyB)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := make([]byte, blockdev.DeviceBlockSize)
	if err := dB.Read(0, 1, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if bytes.Equal(got, want) {
		t.Fatal("decrypting with the wrong key produced the original plaintext")
	}
}
