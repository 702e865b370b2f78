package ext2

import (
	"errors"
	"strings"
	"testing"
)

func TestFastSymlinkRoundTrip(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{})
	_, rootInode, err := fs.Resolve("/")
	if err != nil {
		t.Fatalf("Resolve(/): %v", err)
	}
	const target = "/hello.txt"
	num, err := fs.CreateSymlink(rootInode, InodeRoot, "link", target)
	if err != nil {
		t.Fatalf("CreateSymlink: %v", err)
	}
	in, err := fs.ReadInode(num)
	if err != nil {
		t.Fatalf("ReadInode: %v", err)
	}
	if !in.isSymlink() {
		t.Fatal("new inode is not a symlink")
	}
	if in.size > maxInlineSymlinkLen {
		t.Fatalf("short target stored as a slow symlink: size = %d", in.size)
	}
	got, err := fs.ReadSymlinkAt("/link")
	if err != nil {
		t.Fatalf("ReadSymlinkAt: %v", err)
	}
	if got != target {
		t.Fatalf("ReadSymlinkAt = %q, want %q", got, target)
	}
}

func TestSlowSymlinkRoundTrip(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{})
	_, rootInode, err := fs.Resolve("/")
	if err != nil {
		t.Fatalf("Resolve(/): %v", err)
	}
	target := "/" + strings.Repeat("a", maxInlineSymlinkLen+1)
	num, err := fs.CreateSymlink(rootInode, InodeRoot, "biglink", target)
	if err != nil {
		t.Fatalf("CreateSymlink: %v", err)
	}
	in, err := fs.ReadInode(num)
	if err != nil {
		t.Fatalf("ReadInode: %v", err)
	}
	if in.size <= maxInlineSymlinkLen {
		t.Fatalf("long target stored as a fast symlink: size = %d", in.size)
	}
	if in.block[0] == 0 {
		t.Fatal("slow symlink has no data block allocated")
	}
	got, err := fs.ReadSymlinkAt("/biglink")
	if err != nil {
		t.Fatalf("ReadSymlinkAt: %v", err)
	}
	if got != target {
		t.Fatalf("ReadSymlinkAt = %q, want %q", got, target)
	}
}

func TestReadSymlinkRejectsNonSymlink(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{})
	if _, err := fs.CreateNode("/", "f", false); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	_, in, err := fs.Resolve("/f")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := fs.ReadSymlink(in); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("ReadSymlink(regular file) = %v, want ErrInvalidArgument", err)
	}
}

func TestCreateSymlinkRejectsEmptyTarget(t *testing.T) {
	fs := newTestFS(t, testImageSize, Params{})
	_, rootInode, err := fs.Resolve("/")
	if err != nil {
		t.Fatalf("Resolve(/): %v", err)
	}
	if _, err := fs.CreateSymlink(rootInode, InodeRoot, "link", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("CreateSymlink empty target = %v, want ErrInvalidArgument", err)
	}
}
