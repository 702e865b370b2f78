package ext2

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	fsys "github.com/nanos-project/ext2fs/filesystem"
)

// Mkdir implements filesystem.FileSystem.
func (fs *FileSystem) Mkdir(pathname string) error {
	parent, name := path.Split(path.Clean(pathname))
	if parent == "" {
		parent = "/"
	}
	_, err := fs.CreateNode(parent, name, true)
	return err
}

// Symlink implements filesystem.FileSystem.
func (fs *FileSystem) Symlink(target, linkpath string) error {
	parentDir, name := path.Split(path.Clean(linkpath))
	if parentDir == "" {
		parentDir = "/"
	}
	parentNum, parentInode, err := fs.resolveDir(parentDir)
	if err != nil {
		return err
	}
	_, err = fs.CreateSymlink(parentInode, parentNum, name, target)
	return err
}

// ChmodFileMode is Chmod taking an os.FileMode; the AsFileSystem adapter's
// Chmod, which implements filesystem.FileSystem, delegates to it.
func (fs *FileSystem) ChmodFileMode(name string, mode os.FileMode) error {
	return fs.Chmod(name, uint16(mode.Perm()))
}

// ChownInt is Chown taking int uid/gid; the AsFileSystem adapter's Chown,
// which implements filesystem.FileSystem, delegates to it.
func (fs *FileSystem) ChownInt(name string, uid, gid int) error {
	return fs.Chown(name, uint16(uid), uint16(gid))
}

// dirEntryInfo adapts a resolved directory child to os.FileInfo.
type dirEntryInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	mtime time.Time
	isDir bool
}

func (fi dirEntryInfo) Name() string       { return fi.name }
func (fi dirEntryInfo) Size() int64        { return fi.size }
func (fi dirEntryInfo) Mode() os.FileMode  { return fi.mode }
func (fi dirEntryInfo) ModTime() time.Time { return fi.mtime }
func (fi dirEntryInfo) IsDir() bool        { return fi.isDir }
func (fi dirEntryInfo) Sys() interface{}   { return nil }

// ReadDir implements filesystem.FileSystem.
func (fs *FileSystem) ReadDir(pathname string) ([]os.FileInfo, error) {
	_, dirInode, err := fs.resolveDir(pathname)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDirEntries(dirInode)
	if err != nil {
		return nil, err
	}
	var out []os.FileInfo
	for _, e := range entries {
		if e.name == "." || e.name == ".." {
			continue
		}
		childInode, err := fs.ReadInode(e.inode)
		if err != nil {
			return nil, err
		}
		out = append(out, dirEntryInfo{
			name:  e.name,
			size:  int64(childInode.size),
			mode:  fileModeFromInode(childInode),
			mtime: time.Unix(int64(childInode.mtime), 0).UTC(),
			isDir: childInode.isDir(),
		})
	}
	return out, nil
}

func fileModeFromInode(in *inode) os.FileMode {
	m := os.FileMode(in.perm())
	switch in.fileType() {
	case ModeDir:
		m |= os.ModeDir
	case ModeLink:
		m |= os.ModeSymlink
	case ModeChar:
		m |= os.ModeDevice | os.ModeCharDevice
	case ModeBlock:
		m |= os.ModeDevice
	case ModeFIFO:
		m |= os.ModeNamedPipe
	case ModeSocket:
		m |= os.ModeSocket
	}
	return m
}

// OpenFile implements filesystem.FileSystem. flag follows os.O_* semantics;
// only O_RDONLY/O_WRONLY/O_RDWR and O_CREATE/O_TRUNC are honored.
func (fs *FileSystem) OpenFile(pathname string, flag int) (fsys.File, error) {
	num, in, err := fs.Resolve(pathname)
	if err != nil {
		if !errors.Is(err, ErrNotFound) || flag&os.O_CREATE == 0 {
			return nil, err
		}
		parentDir, name := path.Split(path.Clean(pathname))
		if parentDir == "" {
			parentDir = "/"
		}
		num, err = fs.CreateNode(parentDir, name, false)
		if err != nil {
			return nil, err
		}
		in, err = fs.ReadInode(num)
		if err != nil {
			return nil, err
		}
	}
	if in.isDir() {
		return nil, ErrIsADirectory
	}
	if flag&os.O_TRUNC != 0 {
		if err := fs.Truncate(num, in, 0); err != nil {
			return nil, err
		}
	}
	return &File{fs: fs, inodeNum: num, in: in, writable: flag&(os.O_WRONLY|os.O_RDWR) != 0}, nil
}

// Remove implements filesystem.FileSystem.
func (fs *FileSystem) Remove(pathname string) error {
	return fs.Unlink(pathname)
}

var _ fsys.FileSystem = (*fileSystemAdapter)(nil)

// fileSystemAdapter satisfies filesystem.FileSystem's exact method set
// (os.FileMode/int uid-gid signatures) by delegating to FileSystem's
// uint16-based methods; FileSystem itself exposes the richer ext2-native
// signatures used directly by the vfs package.
type fileSystemAdapter struct {
	*FileSystem
}

// AsFileSystem wraps fs so it satisfies filesystem.FileSystem.
func AsFileSystem(fs *FileSystem) fsys.FileSystem {
	return fileSystemAdapter{fs}
}

func (a fileSystemAdapter) Chmod(name string, mode os.FileMode) error {
	return a.FileSystem.ChmodFileMode(name, mode)
}

func (a fileSystemAdapter) Chown(name string, uid, gid int) error {
	return a.FileSystem.ChownInt(name, uid, gid)
}

// File implements filesystem.File (and therefore io.Reader/Writer/Seeker/
// Closer) over an open ext2 inode.
type File struct {
	fs       *FileSystem
	inodeNum uint32
	in       *inode
	pos      int64
	writable bool
	closed   bool
}

var _ fsys.File = (*File)(nil)

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("%w: file is closed", ErrInvalidArgument)
	}
	if f.pos >= int64(f.in.size) {
		return 0, io.EOF
	}
	n, err := f.fs.ReadAt(f.in, uint64(f.pos), p)
	f.pos += int64(n)
	if err == nil && n == 0 {
		return 0, io.EOF
	}
	return n, err
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("%w: file is closed", ErrInvalidArgument)
	}
	if !f.writable {
		return 0, fsys.ErrReadonlyFilesystem
	}
	n, err := f.fs.WriteAt(f.inodeNum, f.in, uint64(f.pos), p)
	f.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker. The resulting position is clamped to
// [0, size]: without sparse-file support there is nothing addressable past
// the end, and writes only ever append at it.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = int64(f.in.size)
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", ErrInvalidArgument, whence)
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, fmt.Errorf("%w: negative seek position", ErrInvalidArgument)
	}
	if newPos > int64(f.in.size) {
		newPos = int64(f.in.size)
	}
	f.pos = newPos
	return f.pos, nil
}

// Close implements io.Closer. Ext2 has no per-handle state to flush beyond
// what Write already persisted, so Close simply marks the handle dead.
func (f *File) Close() error {
	f.closed = true
	return nil
}
