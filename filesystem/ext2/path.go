package ext2

import (
	"fmt"
	"strings"
)

// splitPath splits an absolute path into its non-empty components,
// skipping consecutive slashes and any trailing slash.
func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	comps := make([]string, 0, len(raw))
	for _, c := range raw {
		if c != "" {
			comps = append(comps, c)
		}
	}
	return comps
}

// Resolve walks an absolute path to an inode number, without following
// symlinks (symlink following is the VFS facade's responsibility).
// "/" resolves to the root inode.
func (fs *FileSystem) Resolve(path string) (uint32, *inode, error) {
	comps := splitPath(path)
	cur := InodeRoot
	curInode, err := fs.ReadInode(cur)
	if err != nil {
		return 0, nil, err
	}
	for _, name := range comps {
		if !curInode.isDir() {
			return 0, nil, ErrNotADirectory
		}
		next, err := fs.LookupInDir(curInode, name)
		if err != nil {
			return 0, nil, err
		}
		nextInode, err := fs.ReadInode(next)
		if err != nil {
			return 0, nil, err
		}
		cur = next
		curInode = nextInode
	}
	return cur, curInode, nil
}

// ResolveParent splits path into its parent directory and final component,
// resolves the parent, and returns it together with the leaf name. It does
// not require the leaf itself to exist.
func (fs *FileSystem) ResolveParent(path string) (parentNum uint32, parentInode *inode, name string, err error) {
	comps := splitPath(path)
	if len(comps) == 0 {
		return 0, nil, "", ErrInvalidArgument
	}
	name = comps[len(comps)-1]
	if len(name) > MaxNameLen {
		return 0, nil, "", fmt.Errorf("%w: name %q exceeds %d bytes", ErrInvalidArgument, name, MaxNameLen)
	}
	parentComps := comps[:len(comps)-1]

	cur := InodeRoot
	curInode, err := fs.ReadInode(cur)
	if err != nil {
		return 0, nil, "", err
	}
	for _, c := range parentComps {
		if !curInode.isDir() {
			return 0, nil, "", ErrNotADirectory
		}
		next, err := fs.LookupInDir(curInode, c)
		if err != nil {
			return 0, nil, "", err
		}
		nextInode, err := fs.ReadInode(next)
		if err != nil {
			return 0, nil, "", err
		}
		cur = next
		curInode = nextInode
	}
	if !curInode.isDir() {
		return 0, nil, "", ErrNotADirectory
	}
	return cur, curInode, name, nil
}
