package ext2

import (
	"bytes"
	"errors"
	"testing"
)

func mustCreateFile(t *testing.T, fs *FileSystem, path, name string) (uint32, *inode) {
	t.Helper()
	if _, err := fs.CreateNode(path, name, false); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	num, in, err := fs.Resolve(path + name)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return num, in
}

func TestWriteAtReadAtRoundTrip(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{})
	num, in := mustCreateFile(t, fs, "/", "f")

	want := bytes.Repeat([]byte("0123456789"), 50)
	n, err := fs.WriteAt(num, in, 0, want)
	if err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if n != len(want) {
		t.Fatalf("WriteAt wrote %d bytes, want %d", n, len(want))
	}
	if in.size != uint32(len(want)) {
		t.Fatalf("inode size = %d, want %d", in.size, len(want))
	}

	got := make([]byte, len(want))
	n, err = fs.ReadAt(in, 0, got)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != len(want) {
		t.Fatalf("ReadAt read %d bytes, want %d", n, len(want))
	}
	if !bytes.Equal(got, want) {
		t.Fatal("read-back mismatch")
	}
}

func TestReadAtPastEOFReturnsZero(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{})
	_, in := mustCreateFile(t, fs, "/", "f")
	buf := make([]byte, 16)
	n, err := fs.ReadAt(in, 1000, buf)
	if err != nil {
		t.Fatalf("ReadAt past EOF: %v", err)
	}
	if n != 0 {
		t.Fatalf("ReadAt past EOF returned %d bytes, want 0", n)
	}
}

func TestReadAtUnmappedBlockReadsZeros(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{})
	num, in := mustCreateFile(t, fs, "/", "f")
	// Write only the final byte of the second block, leaving the rest of
	// the file a hole that must read back as zeros.
	blockSize := uint64(fs.sb.blockSize)
	if _, err := fs.WriteAt(num, in, blockSize*2-1, []byte{0xFF}); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	buf := make([]byte, blockSize)
	if _, err := fs.ReadAt(in, 0, buf); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d of unwritten first block = 0x%02x, want 0", i, b)
		}
	}
}

func TestWriteAtStopsAtSingleIndirectBoundary(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{BlockSize: 1024})
	num, in := mustCreateFile(t, fs, "/", "f")
	blockSize := uint64(fs.sb.blockSize)

	buf := bytes.Repeat([]byte{0x7A}, int(blockSize)*(directBlocks+2))
	n, err := fs.WriteAt(num, in, 0, buf)
	if err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	want := int(blockSize) * directBlocks
	if n != want {
		t.Fatalf("WriteAt wrote %d bytes spanning past direct blocks, want exactly %d (stop at block %d)", n, want, directBlocks)
	}
	if in.size != uint32(want) {
		t.Fatalf("inode size = %d, want %d", in.size, want)
	}
}

func TestTruncateShrinksAndFreesBlocks(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{})
	num, in := mustCreateFile(t, fs, "/", "f")
	blockSize := uint64(fs.sb.blockSize)

	data := bytes.Repeat([]byte{0x11}, int(blockSize)*3)
	if _, err := fs.WriteAt(num, in, 0, data); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	before := fs.sb.freeBlocksCount

	if err := fs.Truncate(num, in, uint32(blockSize)); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if in.size != uint32(blockSize) {
		t.Fatalf("size after truncate = %d, want %d", in.size, blockSize)
	}
	if fs.sb.freeBlocksCount != before+2 {
		t.Fatalf("freeBlocksCount = %d after truncate, want %d (+2 freed)", fs.sb.freeBlocksCount, before+2)
	}

	buf := make([]byte, blockSize)
	if _, err := fs.ReadAt(in, 0, buf); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(buf, data[:blockSize]) {
		t.Fatal("surviving block contents changed by truncate")
	}
}

func TestTruncateRejectsGrowth(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{})
	num, in := mustCreateFile(t, fs, "/", "f")
	if err := fs.Truncate(num, in, 4096); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("Truncate grow = %v, want ErrNotSupported", err)
	}
}
