package vfs

import (
	"errors"
	"os"

	"github.com/nanos-project/ext2fs/filesystem/ext2"
)

// Open resolves path (following symlinks), loads the
// target, and returns a fresh handle positioned at offset 0. Directories
// cannot be opened as files. flag follows os.O_* semantics.
func (v *VFS) Open(path string, flag int) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return 0, err
	}

	resolved := path
	st, cur, err := v.resolveFollowingSymlinks(path)
	switch {
	case err == nil:
		if st.Type == ext2.ModeDir {
			return 0, ext2.ErrIsADirectory
		}
		resolved = cur
	case errors.Is(err, ext2.ErrNotFound) && flag&os.O_CREATE != 0:
		// Fall through to OpenFile below, which creates it at the literal
		// path; symlinks are not followed while creating a new name.
	default:
		return 0, err
	}

	f, err := v.fs.OpenFile(resolved, flag)
	if err != nil {
		return 0, err
	}
	h := v.allocHandle()
	v.openFiles[h] = &openFile{file: f, path: resolved}
	return h, nil
}

// Close releases a file handle returned by Open.
func (v *VFS) Close(handle int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.openFiles[handle]
	if !ok {
		return ErrBadHandle
	}
	delete(v.openFiles, handle)
	return of.file.Close()
}

// Read reads into buf from the current position of handle, advancing it.
func (v *VFS) Read(handle int, buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.openFiles[handle]
	if !ok {
		return 0, ErrBadHandle
	}
	return of.file.Read(buf)
}

// Write writes buf at the current position of handle, advancing it.
func (v *VFS) Write(handle int, buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.openFiles[handle]
	if !ok {
		return 0, ErrBadHandle
	}
	return of.file.Write(buf)
}

// Seek repositions handle per io.Seeker semantics.
func (v *VFS) Seek(handle int, offset int64, whence int) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.openFiles[handle]
	if !ok {
		return 0, ErrBadHandle
	}
	return of.file.Seek(offset, whence)
}
