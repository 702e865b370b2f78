// Package cryptodev wraps a blockdev.Device with passphrase-derived AES-CTR
// encryption, a deliberately simplified stand-in for a LUKS2-style
// encrypted volume: a real LUKS2 container carries a header with multiple
// key slots and uses AES-XTS so ciphertext blocks don't depend on a
// running counter, neither of which this package implements. What it
// keeps is the core idea - block reads/writes are transparently
// encrypted/decrypted under a key derived from a passphrase - which is
// enough to exercise the same blockdev.Device contract the ext2 core
// mounts against.
package cryptodev

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/nanos-project/ext2fs/blockdev"
)

const (
	keyLen         = 32 // AES-256
	pbkdf2Rounds   = 200_000
	saltLen        = 16
	nonceBlockSize = aes.BlockSize
)

// DeriveKey derives an AES-256 key from a passphrase and salt using
// PBKDF2-HMAC-SHA256, the same family of key-derivation function LUKS2
// uses (argon2id in real LUKS2; PBKDF2 here, since that is what
// golang.org/x/crypto ships without pulling in a separate argon2 module).
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Rounds, keyLen, sha256.New)
}

// NewSalt returns a fresh random salt suitable for DeriveKey.
func NewSalt() ([]byte, error) {
	return randomBytes(saltLen)
}

// Device wraps an underlying blockdev.Device, encrypting/decrypting every
// block with AES-CTR under a per-device key. The counter for block b's
// keystream starts at b<<32 so that no two blocks ever reuse a counter
// value under the same key.
type Device struct {
	under blockdev.Device
	block cipher.Block
}

var _ blockdev.Device = (*Device)(nil)

// New wraps under with AES-CTR encryption keyed by key (32 bytes, e.g. from
// DeriveKey).
func New(under blockdev.Device, key []byte) (*Device, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptodev: %w", err)
	}
	return &Device{under: under, block: block}, nil
}

// Name implements blockdev.Device.
func (d *Device) Name() string { return d.under.Name() }

// BlockCount implements blockdev.Device.
func (d *Device) BlockCount() uint32 { return d.under.BlockCount() }

// BlockSize implements blockdev.Device.
func (d *Device) BlockSize() uint32 { return d.under.BlockSize() }

// Read reads and decrypts count blocks starting at firstBlock.
func (d *Device) Read(firstBlock, count uint32, buf []byte) error {
	if err := d.under.Read(firstBlock, count, buf); err != nil {
		return err
	}
	d.xorKeystream(firstBlock, count, buf)
	return nil
}

// Write encrypts and writes count blocks starting at firstBlock.
func (d *Device) Write(firstBlock, count uint32, buf []byte) error {
	blockSize := d.under.BlockSize()
	tmp := make([]byte, len(buf))
	copy(tmp, buf)
	d.xorKeystreamWithSize(firstBlock, count, blockSize, tmp)
	return d.under.Write(firstBlock, count, tmp)
}

func (d *Device) xorKeystream(firstBlock, count uint32, buf []byte) {
	d.xorKeystreamWithSize(firstBlock, count, d.under.BlockSize(), buf)
}

// xorKeystreamWithSize encrypts/decrypts buf (count*blockSize bytes)
// in place, re-keying the CTR counter at the start of every device block
// so that each block's ciphertext depends only on its own block number.
func (d *Device) xorKeystreamWithSize(firstBlock, count, blockSize uint32, buf []byte) {
	for i := uint32(0); i < count; i++ {
		blockNum := firstBlock + i
		iv := make([]byte, nonceBlockSize)
		binary.BigEndian.PutUint64(iv[nonceBlockSize-8:], uint64(blockNum)<<32)
		stream := cipher.NewCTR(d.block, iv)
		start := i * blockSize
		end := start + blockSize
		stream.XORKeyStream(buf[start:end], buf[start:end])
	}
}
