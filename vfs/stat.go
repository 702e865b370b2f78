package vfs

import (
	"github.com/nanos-project/ext2fs/filesystem/ext2"
)

// Stat is the metadata a caller sees for a path or directory entry:
// {inode, name, type, size}, plus the mode/uid/gid ext2
// already tracks per inode.
type Stat struct {
	Inode uint32
	Name  string
	Type  uint16
	Size  uint32
	Mode  uint16
	UID   uint16
	GID   uint16
}

func toStat(s ext2.Stat) Stat {
	return Stat{Inode: s.Inode, Name: s.Name, Type: s.Type, Size: s.Size, Mode: s.Mode, UID: s.UID, GID: s.GID}
}

// IsDir reports whether the stat describes a directory.
func (s Stat) IsDir() bool { return s.Type == ext2.ModeDir }

// IsSymlink reports whether the stat describes a symbolic link.
func (s Stat) IsSymlink() bool { return s.Type == ext2.ModeLink }

// IsRegular reports whether the stat describes a regular file.
func (s Stat) IsRegular() bool { return s.Type == ext2.ModeRegular }

// typeTag renders a single-character type tag for ListDirectory output,
// the vfs analogue of `ls -l`'s leading mode character.
func typeTag(t uint16) string {
	switch t {
	case ext2.ModeDir:
		return "d"
	case ext2.ModeLink:
		return "l"
	case ext2.ModeRegular:
		return "-"
	case ext2.ModeChar:
		return "c"
	case ext2.ModeBlock:
		return "b"
	case ext2.ModeFIFO:
		return "p"
	case ext2.ModeSocket:
		return "s"
	default:
		return "?"
	}
}

// ModeString renders the stat's type and permission bits the way ls -l
// does, e.g. "-rw-r--r--" or "drwxr-xr-x".
func (s Stat) ModeString() string {
	b := []byte(typeTag(s.Type))
	bits := []struct {
		mask uint16
		ch   byte
	}{
		{0400, 'r'}, {0200, 'w'}, {0100, 'x'},
		{0040, 'r'}, {0020, 'w'}, {0010, 'x'},
		{0004, 'r'}, {0002, 'w'}, {0001, 'x'},
	}
	for _, bit := range bits {
		if s.Mode&bit.mask != 0 {
			b = append(b, bit.ch)
		} else {
			b = append(b, '-')
		}
	}
	return string(b)
}

// Stat resolves path (following symlinks) and returns its metadata.
func (v *VFS) Stat(p string) (Stat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return Stat{}, err
	}
	st, _, err := v.resolveFollowingSymlinks(p)
	if err != nil {
		return Stat{}, err
	}
	return toStat(st), nil
}

// Lstat resolves path without following a trailing symlink, returning the
// symlink's own metadata rather than its target's. Intermediate path
// components are still resolved normally by the underlying ext2 lookup.
func (v *VFS) Lstat(p string) (Stat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return Stat{}, err
	}
	st, err := v.fs.StatPath(p)
	if err != nil {
		return Stat{}, err
	}
	return toStat(st), nil
}

// Readlink returns the raw target text stored in the symlink at path,
// without interpreting or following it.
func (v *VFS) Readlink(p string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return "", err
	}
	return v.fs.ReadSymlinkAt(p)
}

// Exists reports whether path resolves to an inode, following symlinks.
func (v *VFS) Exists(p string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fs == nil {
		return false
	}
	_, _, err := v.resolveFollowingSymlinks(p)
	return err == nil
}

// listEntries reads the directory at cur (already symlink-resolved, stat
// st already known to be a directory) and returns its entries as ext2.Stat.
func (v *VFS) listEntries(cur string, st ext2.Stat) ([]ext2.Stat, error) {
	if st.Type != ext2.ModeDir {
		return nil, ext2.ErrNotADirectory
	}
	return v.fs.ListEntries(cur)
}
