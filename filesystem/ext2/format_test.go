package ext2

import "testing"

func TestFormatThenMountRoundTrip(t *testing.T) {
	device := newTestFS(t, testImageSize, Params{})
	if device.sb.magic != ext2Magic {
		t.Fatalf("magic = 0x%04x, want 0x%04x", device.sb.magic, ext2Magic)
	}

	remounted, err := Mount(device.device)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if remounted.sb.blocksCount != device.sb.blocksCount {
		t.Fatalf("remount blocksCount = %d, want %d", remounted.sb.blocksCount, device.sb.blocksCount)
	}
	if len(remounted.gds) != len(device.gds) {
		t.Fatalf("remount group descriptor count = %d, want %d", len(remounted.gds), len(device.gds))
	}
}

func TestMountRejectsBadMagic(t *testing.T) {
	device := newTestFS(t, testImageSize, Params{})
	device.sb.magic = 0
	if err := device.writeSuperblock(); err != nil {
		t.Fatalf("writeSuperblock: %v", err)
	}
	if _, err := Mount(device.device); err != ErrBadMagic {
		t.Fatalf("Mount with corrupted magic = %v, want ErrBadMagic", err)
	}
}

func TestFormatRootIsDirInode2(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{})
	st, err := fs.StatPath("/")
	if err != nil {
		t.Fatalf("StatPath(/): %v", err)
	}
	if st.Inode != InodeRoot {
		t.Fatalf("root inode = %d, want %d", st.Inode, InodeRoot)
	}
	if st.Type != ModeDir {
		t.Fatalf("root type = 0x%04x, want ModeDir", st.Type)
	}
}

func TestFormatBlockSizes(t *testing.T) {
	for _, bs := range []uint32{1024, 2048, 4096} {
		bs := bs
		t.Run("", func(t *testing.T) {
			fs := newTestFS(t, 512*1024, Params{BlockSize: bs})
			if fs.sb.blockSize != bs {
				t.Fatalf("blockSize = %d, want %d", fs.sb.blockSize, bs)
			}
			if _, err := fs.StatPath("/"); err != nil {
				t.Fatalf("StatPath(/): %v", err)
			}
		})
	}
}

func TestFormatRejectsBadBlockSize(t *testing.T) {
	device := blockdevRAM(t, testImageSize)
	if _, err := Format(device, Params{BlockSize: 3000}); err == nil {
		t.Fatal("expected an error for a non-power-of-two block size")
	}
}
