// Command fuseserve bridges a mounted vfs.VFS to a real FUSE mountpoint,
// the host-visible analogue of vfs.VFS's own path-based API: every
// lookup/read/write/create call below is carried out by one or a few
// vfs.VFS calls on the node's path, the way go-fuse's own loopbackNode
// carries each out with syscalls against the host filesystem it mirrors.
package main

import (
	"context"
	"io"
	"path"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nanos-project/ext2fs/vfs"
)

// ext2Root holds the parameters shared by every node in the tree: the
// mounted VFS session. It plays the role of loopbackRoot in
// go-fuse's own loopback filesystem.
type ext2Root struct {
	vfs *vfs.VFS
}

func (r *ext2Root) newNode(childPath string) fs.InodeEmbedder {
	return &ext2Node{root: r, path: childPath}
}

// ext2Node is one node in the FUSE-visible tree, identified by its
// absolute ext2 path (recomputed, not cached across renames - this
// filesystem doesn't implement Rename, so the path is stable for the
// node's lifetime).
type ext2Node struct {
	fs.Inode

	root *ext2Root
	path string
}

var (
	_ = (fs.NodeGetattrer)((*ext2Node)(nil))
	_ = (fs.NodeSetattrer)((*ext2Node)(nil))
	_ = (fs.NodeLookuper)((*ext2Node)(nil))
	_ = (fs.NodeReaddirer)((*ext2Node)(nil))
	_ = (fs.NodeOpener)((*ext2Node)(nil))
	_ = (fs.NodeReader)((*ext2Node)(nil))
	_ = (fs.NodeWriter)((*ext2Node)(nil))
	_ = (fs.NodeCreater)((*ext2Node)(nil))
	_ = (fs.NodeMkdirer)((*ext2Node)(nil))
	_ = (fs.NodeUnlinker)((*ext2Node)(nil))
	_ = (fs.NodeRmdirer)((*ext2Node)(nil))
	_ = (fs.NodeSymlinker)((*ext2Node)(nil))
	_ = (fs.NodeReadlinker)((*ext2Node)(nil))
	_ = (fs.NodeReleaser)((*ext2Node)(nil))
)

func childPath(parent, name string) string {
	return path.Join(parent, name)
}

func attrFromStat(out *fuse.Attr, st vfs.Stat) {
	out.Ino = uint64(st.Inode)
	out.Size = uint64(st.Size)
	out.Mode = uint32(st.Mode)
	out.Uid = uint32(st.UID)
	out.Gid = uint32(st.GID)
	out.Nlink = 1
	out.Blksize = 1024
	out.Blocks = (out.Size + 511) / 512
}

func (n *ext2Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := n.root.vfs.Lstat(n.path)
	if err != nil {
		return toErrno(err)
	}
	attrFromStat(&out.Attr, st)
	return 0
}

// Setattr implements chmod/chown/truncate, the three metadata mutations
// vfs supports; mtime/atime changes from the kernel are accepted but not
// separately persisted since vfs already refreshes them on read/write.
func (n *ext2Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if m, ok := in.GetMode(); ok {
		if err := n.root.vfs.Chmod(n.path, uint16(m&0o7777)); err != nil {
			return toErrno(err)
		}
	}
	uid, uok := in.GetUID()
	gid, gok := in.GetGID()
	if uok || gok {
		st, err := n.root.vfs.Lstat(n.path)
		if err != nil {
			return toErrno(err)
		}
		if !uok {
			uid = uint32(st.UID)
		}
		if !gok {
			gid = uint32(st.GID)
		}
		if err := n.root.vfs.Chown(n.path, uint16(uid), uint16(gid)); err != nil {
			return toErrno(err)
		}
	}
	if sz, ok := in.GetSize(); ok {
		if err := n.root.vfs.Truncate(n.path, uint32(sz)); err != nil {
			return toErrno(err)
		}
	}
	st, err := n.root.vfs.Lstat(n.path)
	if err != nil {
		return toErrno(err)
	}
	attrFromStat(&out.Attr, st)
	return 0
}

func (n *ext2Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	st, err := n.root.vfs.Lstat(childPath(n.path, name))
	if err != nil {
		return nil, toErrno(err)
	}
	attrFromStat(&out.Attr, st)
	child := n.root.newNode(childPath(n.path, name))
	return n.NewInode(ctx, child, fs.StableAttr{Mode: uint32(st.Mode), Ino: uint64(st.Inode)}), 0
}

func (n *ext2Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	h, err := n.root.vfs.Opendir(n.path)
	if err != nil {
		return nil, toErrno(err)
	}
	defer n.root.vfs.Closedir(h)

	var entries []fuse.DirEntry
	for {
		st, ok, err := n.root.vfs.Readdir(h)
		if err != nil {
			return nil, toErrno(err)
		}
		if !ok {
			break
		}
		entries = append(entries, fuse.DirEntry{Name: st.Name, Ino: uint64(st.Inode), Mode: uint32(st.Mode)})
	}
	return fs.NewListDirStream(entries), 0
}

// ext2FileHandle wraps the vfs open-file handle as a FUSE FileHandle; each
// Read/Write call carries its own offset, so it seeks before every access
// rather than assuming sequential access (a vfs handle has one cursor
// shared by Read/Write/Seek).
type ext2FileHandle struct {
	mu sync.Mutex
	v  *vfs.VFS
	h  int
}

var _ = (fs.FileHandle)((*ext2FileHandle)(nil))

func (n *ext2Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	h, err := n.root.vfs.Open(n.path, int(flags))
	if err != nil {
		return nil, 0, toErrno(err)
	}
	return &ext2FileHandle{v: n.root.vfs, h: h}, 0, 0
}

func (n *ext2Node) Release(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	f, ok := fh.(*ext2FileHandle)
	if !ok {
		return syscall.EBADF
	}
	return toErrno(f.v.Close(f.h))
}

func (n *ext2Node) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	f, ok := fh.(*ext2FileHandle)
	if !ok {
		return nil, syscall.EBADF
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.v.Seek(f.h, off, 0); err != nil {
		return nil, toErrno(err)
	}
	nRead, err := f.v.Read(f.h, dest)
	if err != nil && err != io.EOF && nRead == 0 {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:nRead]), 0
}

func (n *ext2Node) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	f, ok := fh.(*ext2FileHandle)
	if !ok {
		return 0, syscall.EBADF
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.v.Seek(f.h, off, 0); err != nil {
		return 0, toErrno(err)
	}
	nWritten, err := f.v.Write(f.h, data)
	if err != nil && nWritten == 0 {
		return 0, toErrno(err)
	}
	return uint32(nWritten), 0
}

func (n *ext2Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p := childPath(n.path, name)
	if err := n.root.vfs.Create(p); err != nil {
		return nil, nil, 0, toErrno(err)
	}
	if m := uint16(mode & 0o7777); m != 0o644 {
		_ = n.root.vfs.Chmod(p, m)
	}
	h, err := n.root.vfs.Open(p, int(flags))
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}
	st, err := n.root.vfs.Lstat(p)
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}
	attrFromStat(&out.Attr, st)
	child := n.root.newNode(p)
	inode := n.NewInode(ctx, child, fs.StableAttr{Mode: uint32(st.Mode), Ino: uint64(st.Inode)})
	return inode, &ext2FileHandle{v: n.root.vfs, h: h}, 0, 0
}

func (n *ext2Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := childPath(n.path, name)
	if err := n.root.vfs.Mkdir(p); err != nil {
		return nil, toErrno(err)
	}
	st, err := n.root.vfs.Lstat(p)
	if err != nil {
		return nil, toErrno(err)
	}
	attrFromStat(&out.Attr, st)
	child := n.root.newNode(p)
	return n.NewInode(ctx, child, fs.StableAttr{Mode: uint32(st.Mode), Ino: uint64(st.Inode)}), 0
}

func (n *ext2Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return toErrno(n.root.vfs.Unlink(childPath(n.path, name)))
}

func (n *ext2Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return toErrno(n.root.vfs.Unlink(childPath(n.path, name)))
}

func (n *ext2Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := childPath(n.path, name)
	if err := n.root.vfs.CreateSymlink(target, p); err != nil {
		return nil, toErrno(err)
	}
	st, err := n.root.vfs.Lstat(p)
	if err != nil {
		return nil, toErrno(err)
	}
	attrFromStat(&out.Attr, st)
	child := n.root.newNode(p)
	return n.NewInode(ctx, child, fs.StableAttr{Mode: uint32(st.Mode), Ino: uint64(st.Inode)}), 0
}

func (n *ext2Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.root.vfs.Readlink(n.path)
	if err != nil {
		return nil, toErrno(err)
	}
	return []byte(target), 0
}
