package vfs

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/nanos-project/ext2fs/blockdev"
	"github.com/nanos-project/ext2fs/filesystem/ext2"
)

const testImageSize = 256 * 1024

func newMountedVFS(t *testing.T) *VFS {
	t.Helper()
	device := blockdev.NewRAMDeviceSize("ramdisk0", testImageSize)
	if _, err := ext2.Format(device, ext2.Params{}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	v := New()
	if err := v.MountRoot(device); err != nil {
		t.Fatalf("MountRoot: %v", err)
	}
	return v
}

func TestMountRootTwiceFails(t *testing.T) {
	v := newMountedVFS(t)
	device := blockdev.NewRAMDeviceSize("ramdisk1", testImageSize)
	if _, err := ext2.Format(device, ext2.Params{}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if err := v.MountRoot(device); err != ErrAlreadyMounted {
		t.Fatalf("second MountRoot = %v, want ErrAlreadyMounted", err)
	}
}

func TestOpsRequireMount(t *testing.T) {
	v := New()
	if err := v.Create("/f"); err != ErrNotMounted {
		t.Fatalf("Create before mount = %v, want ErrNotMounted", err)
	}
	if _, err := v.Stat("/"); err != ErrNotMounted {
		t.Fatalf("Stat before mount = %v, want ErrNotMounted", err)
	}
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Create("/hello.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !v.Exists("/hello.txt") {
		t.Fatal("Exists(/hello.txt) = false after Create")
	}

	h, err := v.Open("/hello.txt", os.O_RDWR)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := []byte("hello, ext2")
	if n, err := v.Write(h, want); err != nil || n != len(want) {
		t.Fatalf("Write = (%d, %v), want (%d, nil)", n, err, len(want))
	}
	if _, err := v.Seek(h, 0, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	got := make([]byte, len(want))
	if n, err := v.Read(h, got); err != nil || n != len(want) {
		t.Fatalf("Read = (%d, %v), want (%d, nil)", n, err, len(want))
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read back %q, want %q", got, want)
	}
	if err := v.Close(h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err := v.Stat("/hello.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Size != uint32(len(want)) {
		t.Fatalf("Stat.Size = %d, want %d", st.Size, len(want))
	}
}

func TestOpenCreateFlagMakesNewFile(t *testing.T) {
	v := newMountedVFS(t)
	h, err := v.Open("/new.txt", os.O_RDWR|os.O_CREATE)
	if err != nil {
		t.Fatalf("Open with O_CREATE: %v", err)
	}
	v.Close(h)
	if !v.Exists("/new.txt") {
		t.Fatal("Exists(/new.txt) = false after Open(O_CREATE)")
	}
}

func TestOpenDirectoryFails(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := v.Open("/d", os.O_RDONLY); err != ext2.ErrIsADirectory {
		t.Fatalf("Open(directory) = %v, want ErrIsADirectory", err)
	}
}

func TestMkdirCreateUnlinkSequence(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := v.Create("/d/f"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := v.Unlink("/d"); err != ext2.ErrNotEmpty {
		t.Fatalf("Unlink non-empty dir = %v, want ErrNotEmpty", err)
	}
	if err := v.Unlink("/d/f"); err != nil {
		t.Fatalf("Unlink file: %v", err)
	}
	if err := v.Unlink("/d"); err != nil {
		t.Fatalf("Unlink now-empty dir: %v", err)
	}
	if v.Exists("/d") {
		t.Fatal("Exists(/d) = true after Unlink")
	}
}

func TestTruncateThenRead(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Create("/f"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := v.Open("/f", os.O_RDWR)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := v.Write(h, bytes.Repeat([]byte{1}, 100)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	v.Close(h)

	if err := v.Truncate("/f", 10); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	st, err := v.Stat("/f")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Size != 10 {
		t.Fatalf("Stat.Size after truncate = %d, want 10", st.Size)
	}

	h, err = v.Open("/f", os.O_RDONLY)
	if err != nil {
		t.Fatalf("Open after truncate: %v", err)
	}
	defer v.Close(h)
	got := make([]byte, 100)
	if n, err := v.Read(h, got); err != nil || n != 10 {
		t.Fatalf("Read after truncate = (%d, %v), want (10, nil)", n, err)
	}
}

func TestTruncateRejectsDirectory(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := v.Truncate("/d", 0); err != ext2.ErrIsADirectory {
		t.Fatalf("Truncate(directory) = %v, want ErrIsADirectory", err)
	}
}

func TestSymlinkAbsoluteResolution(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Create("/target.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := v.CreateSymlink("/target.txt", "/link"); err != nil {
		t.Fatalf("CreateSymlink: %v", err)
	}
	st, err := v.Stat("/link")
	if err != nil {
		t.Fatalf("Stat(/link): %v", err)
	}
	if st.IsSymlink() {
		t.Fatal("Stat followed through a symlink but reported IsSymlink = true")
	}
	lst, err := v.Lstat("/link")
	if err != nil {
		t.Fatalf("Lstat(/link): %v", err)
	}
	if !lst.IsSymlink() {
		t.Fatal("Lstat(/link).IsSymlink() = false")
	}
	target, err := v.Readlink("/link")
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "/target.txt" {
		t.Fatalf("Readlink = %q, want /target.txt", target)
	}
}

func TestSymlinkRelativeResolvesAgainstParent(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := v.Create("/d/target.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := v.CreateSymlink("target.txt", "/d/link"); err != nil {
		t.Fatalf("CreateSymlink: %v", err)
	}
	st, err := v.Stat("/d/link")
	if err != nil {
		t.Fatalf("Stat(/d/link): %v", err)
	}
	if !st.IsRegular() {
		t.Fatalf("Stat(/d/link).Type = 0x%04x, want a regular file (resolved relative to /d)", st.Type)
	}
}

func TestSymlinkLoopDetected(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.CreateSymlink("/b", "/a"); err != nil {
		t.Fatalf("CreateSymlink a->b: %v", err)
	}
	if err := v.CreateSymlink("/a", "/b"); err != nil {
		t.Fatalf("CreateSymlink b->a: %v", err)
	}
	if _, err := v.Stat("/a"); err != ErrSymlinkLoop {
		t.Fatalf("Stat on a symlink cycle = %v, want ErrSymlinkLoop", err)
	}
}

func TestChmodChangesPermBits(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Create("/f"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := v.Chmod("/f", 0600); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	st, err := v.Stat("/f")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Mode&0777 != 0600 {
		t.Fatalf("Mode perm = %o, want 0600", st.Mode&0777)
	}
}

func TestOpendirReaddirClosedir(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Create("/a"); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if err := v.Create("/b"); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	h, err := v.Opendir("/")
	if err != nil {
		t.Fatalf("Opendir: %v", err)
	}
	seen := map[string]bool{}
	for {
		st, ok, err := v.Readdir(h)
		if err != nil {
			t.Fatalf("Readdir: %v", err)
		}
		if !ok {
			break
		}
		seen[st.Name] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("Opendir/Readdir over / = %v, want both a and b", seen)
	}
	if err := v.Closedir(h); err != nil {
		t.Fatalf("Closedir: %v", err)
	}
	if _, _, err := v.Readdir(h); err != ErrBadHandle {
		t.Fatalf("Readdir after Closedir = %v, want ErrBadHandle", err)
	}
}

func TestListDirectoryWritesOneLinePerEntry(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Create("/f"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var buf bytes.Buffer
	if err := v.ListDirectory("/", &buf); err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("f")) {
		t.Fatalf("ListDirectory output = %q, want it to mention f", buf.String())
	}
}

func TestPathNormalizationIgnoresRepeatedSlashes(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := v.Create("/d/f"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !v.Exists("//d//f/") {
		t.Fatal("Exists(\"//d//f/\") = false, want path normalization to tolerate repeated/trailing slashes")
	}
}

func TestBadHandleOperationsFail(t *testing.T) {
	v := newMountedVFS(t)
	if _, err := v.Read(999, make([]byte, 1)); err != ErrBadHandle {
		t.Fatalf("Read(bad handle) = %v, want ErrBadHandle", err)
	}
	if err := v.Close(999); err != ErrBadHandle {
		t.Fatalf("Close(bad handle) = %v, want ErrBadHandle", err)
	}
}

func TestModeStringRendersTypeAndPermBits(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Create("/f"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	st, err := v.Stat("/f")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if got := st.ModeString(); got != "-rw-r--r--" {
		t.Fatalf("ModeString = %q, want -rw-r--r--", got)
	}
	if err := v.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	dst, err := v.Stat("/d")
	if err != nil {
		t.Fatalf("Stat(/d): %v", err)
	}
	if got := dst.ModeString(); got != "drwxr-xr-x" {
		t.Fatalf("ModeString = %q, want drwxr-xr-x", got)
	}
}

func TestMountRootDefaultUsesRegistry(t *testing.T) {
	v := New()
	if err := v.MountRootDefault(); err == nil {
		t.Fatal("MountRootDefault with no registered device should fail")
	}

	device := blockdev.NewRAMDeviceSize(RootDeviceName, testImageSize)
	if _, err := ext2.Format(device, ext2.Params{}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if err := blockdev.DefaultRegistry.Register(device); err != nil {
		t.Fatalf("Register: %v", err)
	}
	t.Cleanup(func() { blockdev.DefaultRegistry.Unregister(RootDeviceName) })

	if err := v.MountRootDefault(); err != nil {
		t.Fatalf("MountRootDefault: %v", err)
	}
	st, err := v.Stat("/")
	if err != nil {
		t.Fatalf("Stat(/): %v", err)
	}
	if st.Inode != 2 || !st.IsDir() {
		t.Fatalf("root stat = inode %d type 0x%04x, want inode 2 directory", st.Inode, st.Type)
	}
}

func TestSeekClampsToFileSize(t *testing.T) {
	v := newMountedVFS(t)
	if err := v.Create("/f"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := v.Open("/f", os.O_RDWR)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer v.Close(h)
	if _, err := v.Write(h, []byte("abcdef")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	pos, err := v.Seek(h, 100, io.SeekStart)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if pos != 6 {
		t.Fatalf("Seek past EOF = %d, want clamp to size 6", pos)
	}
}
