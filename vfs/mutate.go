package vfs

import (
	"path"

	"github.com/nanos-project/ext2fs/filesystem/ext2"
)

// Create makes a new empty regular file at path.
func (v *VFS) Create(p string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return err
	}
	parent, name := splitParent(p)
	_, err := v.fs.CreateNode(parent, name, false)
	return err
}

// Mkdir creates a new directory at path.
func (v *VFS) Mkdir(p string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return err
	}
	return v.fs.Mkdir(p)
}

// Unlink removes path. A non-empty directory cannot be
// removed.
func (v *VFS) Unlink(p string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return err
	}
	return v.fs.Unlink(p)
}

// CreateSymlink creates a symlink named linkpath containing target.
// target is stored verbatim (relative or absolute); it is only
// interpreted at resolution time, by resolveFollowingSymlinks.
func (v *VFS) CreateSymlink(target, linkpath string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return err
	}
	return v.fs.Symlink(target, linkpath)
}

// Chmod replaces the permission bits of path, preserving its type.
func (v *VFS) Chmod(p string, perm uint16) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return err
	}
	_, cur, err := v.resolveFollowingSymlinks(p)
	if err != nil {
		return err
	}
	return v.fs.Chmod(cur, perm)
}

// Chown assigns uid/gid on path.
func (v *VFS) Chown(p string, uid, gid uint16) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return err
	}
	_, cur, err := v.resolveFollowingSymlinks(p)
	if err != nil {
		return err
	}
	return v.fs.Chown(cur, uid, gid)
}

// Truncate shrinks the file at path to newSize. Handles already open on
// path keep whatever size/position they cached at open time until closed
// and reopened; callers are a single mutator at a time, so no handle
// invalidation is attempted.
func (v *VFS) Truncate(p string, newSize uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return err
	}
	st, cur, err := v.resolveFollowingSymlinks(p)
	if err != nil {
		return err
	}
	if st.Type == ext2.ModeDir {
		return ext2.ErrIsADirectory
	}
	num, in, err := v.fs.Resolve(cur)
	if err != nil {
		return err
	}
	return v.fs.Truncate(num, in, newSize)
}

// splitParent splits an absolute path into its parent directory and final
// component, the same convention ext2.FileSystem.Mkdir/Symlink use.
func splitParent(p string) (parent, name string) {
	dir, base := path.Split(path.Clean(p))
	if dir == "" {
		dir = "/"
	}
	return dir, base
}
