package vfs

import (
	"fmt"
	"io"
)

// Opendir resolves path (following symlinks), requires a directory, and
// returns a handle over a snapshot of its entries for iteration.
func (v *VFS) Opendir(path string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return 0, err
	}
	st, cur, err := v.resolveFollowingSymlinks(path)
	if err != nil {
		return 0, err
	}
	entries, err := v.listEntries(cur, st)
	if err != nil {
		return 0, err
	}
	h := v.allocHandle()
	v.openDirs[h] = &openDir{entries: entries}
	return h, nil
}

// Readdir returns the next entry for handle, or (Stat{}, false, nil) once
// exhausted.
func (v *VFS) Readdir(handle int) (Stat, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	od, ok := v.openDirs[handle]
	if !ok {
		return Stat{}, false, ErrBadHandle
	}
	if od.pos >= len(od.entries) {
		return Stat{}, false, nil
	}
	st := od.entries[od.pos]
	od.pos++
	return toStat(st), true, nil
}

// Closedir releases a directory handle returned by Opendir.
func (v *VFS) Closedir(handle int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.openDirs[handle]; !ok {
		return ErrBadHandle
	}
	delete(v.openDirs, handle)
	return nil
}

// ListDirectory writes a one-line summary (type tag, name, size) for every
// entry in path to w.
func (v *VFS) ListDirectory(path string, w io.Writer) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.requireMounted(); err != nil {
		return err
	}
	st, cur, err := v.resolveFollowingSymlinks(path)
	if err != nil {
		return err
	}
	entries, err := v.listEntries(cur, st)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s %-32s %d\n", toStat(e).ModeString(), e.Name, e.Size); err != nil {
			return err
		}
	}
	return nil
}
