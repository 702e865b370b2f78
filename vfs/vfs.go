// Package vfs is the facade a caller drives to work with files and
// directories by path: it resolves paths through the mounted ext2
// filesystem, follows symlinks on open, enforces type checks, and
// orchestrates the multi-step mutations (create, unlink, symlink) that
// touch more than one piece of on-disk metadata.
package vfs

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nanos-project/ext2fs/blockdev"
	"github.com/nanos-project/ext2fs/filesystem"
	"github.com/nanos-project/ext2fs/filesystem/ext2"
)

// MaxSymlinkDepth bounds symlink-following on open.
const MaxSymlinkDepth = 8

// Errors returned by this package, in addition to the ext2 package's own
// sentinels (ext2.ErrNotFound, ext2.ErrNotADirectory, and so on) which
// propagate unwrapped through vfs calls.
var (
	ErrNotMounted     = errors.New("vfs: no filesystem mounted")
	ErrAlreadyMounted = errors.New("vfs: a filesystem is already mounted")
	ErrSymlinkLoop    = errors.New("vfs: too many levels of symbolic links")
	ErrBadHandle      = errors.New("vfs: invalid file or directory handle")
)

// VFS is a single mount-table slot (one root filesystem) plus the open
// file/directory handle tables. The zero value is a VFS with nothing
// mounted; use New.
type VFS struct {
	mu sync.Mutex

	fs        *ext2.FileSystem
	sessionID uuid.UUID
	log       *logrus.Entry

	nextHandle int
	openFiles  map[int]*openFile
	openDirs   map[int]*openDir
}

type openFile struct {
	file filesystem.File
	path string
}

type openDir struct {
	entries []ext2.Stat
	pos     int
}

// New returns a VFS with nothing mounted.
func New() *VFS {
	sessionID := uuid.New()
	return &VFS{
		sessionID: sessionID,
		log:       logrus.WithFields(logrus.Fields{"component": "vfs", "session_id": sessionID}),
		openFiles: make(map[int]*openFile),
		openDirs:  make(map[int]*openDir),
	}
}

// MountRoot mounts the ext2 filesystem found on device as the (only) root
// filesystem. A second call while a filesystem is already mounted fails
// with ErrAlreadyMounted.
func (v *VFS) MountRoot(device blockdev.Device) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fs != nil {
		return ErrAlreadyMounted
	}
	fs, err := ext2.Mount(device)
	if err != nil {
		return err
	}
	v.fs = fs
	v.log.Info("root filesystem mounted")
	return nil
}

// RootDeviceName is the device name MountRootDefault looks up in
// blockdev.DefaultRegistry.
const RootDeviceName = "ramdisk0"

// MountRootDefault locates the device named RootDeviceName in
// blockdev.DefaultRegistry and mounts it as the root filesystem.
func (v *VFS) MountRootDefault() error {
	device, ok := blockdev.DefaultRegistry.Lookup(RootDeviceName)
	if !ok {
		return fmt.Errorf("vfs: root device %q not registered", RootDeviceName)
	}
	return v.MountRoot(device)
}

// Unmount detaches the root filesystem. Any open handles become invalid.
func (v *VFS) Unmount() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fs == nil {
		return ErrNotMounted
	}
	v.fs = nil
	v.openFiles = make(map[int]*openFile)
	v.openDirs = make(map[int]*openDir)
	v.log.Info("root filesystem unmounted")
	return nil
}

func (v *VFS) requireMounted() error {
	if v.fs == nil {
		return ErrNotMounted
	}
	return nil
}

// resolveFollowingSymlinks repeatedly stats path, following symlink targets
// (bounding the chain at MaxSymlinkDepth), and returns the stat of the
// final non-symlink node together with the path it was found at. A
// relative symlink target is resolved against the symlink's own parent
// directory.
func (v *VFS) resolveFollowingSymlinks(p string) (ext2.Stat, string, error) {
	cur := p
	for depth := 0; ; depth++ {
		st, err := v.fs.StatPath(cur)
		if err != nil {
			return ext2.Stat{}, "", err
		}
		if st.Type != ext2.ModeLink {
			return st, cur, nil
		}
		if depth >= MaxSymlinkDepth {
			return ext2.Stat{}, "", ErrSymlinkLoop
		}
		target, err := v.fs.ReadSymlinkAt(cur)
		if err != nil {
			return ext2.Stat{}, "", err
		}
		if strings.HasPrefix(target, "/") {
			cur = target
		} else {
			cur = path.Join(path.Dir(cur), target)
		}
	}
}

func (v *VFS) allocHandle() int {
	v.nextHandle++
	return v.nextHandle
}
