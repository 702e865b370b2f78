package ext2

import (
	"fmt"

	"github.com/nanos-project/ext2fs/util/timestamp"
)

// CreateNode allocates a new inode named name inside the directory at
// parentPath and links it in. isDir selects between a
// REG|0644 file (links_count=1) and a DIR|0755 directory (links_count=2,
// pre-populated with "." and "..").
func (fs *FileSystem) CreateNode(parentPath, name string, isDir bool) (uint32, error) {
	parentNum, parentInode, err := fs.resolveDir(parentPath)
	if err != nil {
		return 0, err
	}
	if len(name) < 1 || len(name) > MaxNameLen {
		return 0, fmt.Errorf("%w: name length %d out of range", ErrInvalidArgument, len(name))
	}
	if _, err := fs.LookupInDir(parentInode, name); err == nil {
		return 0, ErrAlreadyExists
	}

	newNum, err := fs.AllocInode()
	if err != nil {
		return 0, err
	}
	if newNum == 0 {
		return 0, ErrNoSpace
	}

	in := &inode{}
	ftype := FTRegular
	if isDir {
		in.mode = ModeDir | 0755
		in.linksCount = 2
		ftype = FTDir
	} else {
		in.mode = ModeRegular | 0644
		in.linksCount = 1
	}
	in.touch(true, true)

	if err := fs.WriteInode(newNum, in); err != nil {
		return 0, err
	}
	if err := fs.InsertDirEntry(parentInode, parentNum, newNum, name, ftype); err != nil {
		return 0, err
	}
	if isDir {
		parentInode.linksCount++
		if err := fs.WriteInode(parentNum, parentInode); err != nil {
			return 0, err
		}
		if err := fs.PopulateNewDirectory(in, newNum, parentNum); err != nil {
			return 0, err
		}
	}
	return newNum, nil
}

// resolveDir resolves path and requires it to be a directory.
func (fs *FileSystem) resolveDir(path string) (uint32, *inode, error) {
	num, in, err := fs.Resolve(path)
	if err != nil {
		return 0, nil, err
	}
	if !in.isDir() {
		return 0, nil, ErrNotADirectory
	}
	return num, in, nil
}

// Unlink removes the named entry from its parent directory. A non-empty
// directory cannot be removed.
func (fs *FileSystem) Unlink(path string) error {
	parentNum, parentInode, name, err := fs.ResolveParent(path)
	if err != nil {
		return err
	}
	childNum, err := fs.LookupInDir(parentInode, name)
	if err != nil {
		return err
	}
	childInode, err := fs.ReadInode(childNum)
	if err != nil {
		return err
	}

	if childInode.isDir() {
		empty, err := fs.IsDirEmpty(childInode)
		if err != nil {
			return err
		}
		if !empty {
			return ErrNotEmpty
		}
		parentInode.linksCount--
		if err := fs.WriteInode(parentNum, parentInode); err != nil {
			return err
		}
	}

	if err := fs.RemoveDirEntry(parentInode, parentNum, name); err != nil {
		return err
	}

	if childInode.linksCount > 0 {
		childInode.linksCount--
	}
	if childInode.linksCount == 0 {
		for l := 0; l < directBlocks; l++ {
			if childInode.block[l] == 0 {
				continue
			}
			if err := fs.FreeBlock(childInode.block[l]); err != nil {
				return err
			}
			childInode.block[l] = 0
		}
		if err := fs.FreeInode(childNum); err != nil {
			return err
		}
		childInode.dtime = uint32(timestamp.GetTime().Unix())
	}
	return fs.WriteInode(childNum, childInode)
}

// Chmod replaces the permission bits of the named inode, preserving its
// file-type bits.
func (fs *FileSystem) Chmod(path string, perm uint16) error {
	num, in, err := fs.Resolve(path)
	if err != nil {
		return err
	}
	in.mode = in.fileType() | (perm & modePermMask & 0777)
	in.ctime = uint32(timestamp.GetTime().Unix())
	return fs.WriteInode(num, in)
}

// Chown assigns uid/gid on the named inode.
func (fs *FileSystem) Chown(path string, uid, gid uint16) error {
	num, in, err := fs.Resolve(path)
	if err != nil {
		return err
	}
	in.uid = uid
	in.gid = gid
	in.ctime = uint32(timestamp.GetTime().Unix())
	return fs.WriteInode(num, in)
}

// Stat is the minimal metadata the vfs facade exposes per path.
type Stat struct {
	Inode uint32
	Name  string
	Type  uint16
	Size  uint32
	Mode  uint16
	UID   uint16
	GID   uint16
}

// StatPath resolves path and returns its metadata.
func (fs *FileSystem) StatPath(path string) (Stat, error) {
	num, in, err := fs.Resolve(path)
	if err != nil {
		return Stat{}, err
	}
	comps := splitPath(path)
	name := "/"
	if len(comps) > 0 {
		name = comps[len(comps)-1]
	}
	return Stat{
		Inode: num,
		Name:  name,
		Type:  in.fileType(),
		Size:  in.size,
		Mode:  in.mode,
		UID:   in.uid,
		GID:   in.gid,
	}, nil
}

// ListEntries resolves path as a directory and returns a Stat for each
// live entry other than "." and "..", in on-disk order.
func (fs *FileSystem) ListEntries(path string) ([]Stat, error) {
	_, dirInode, err := fs.resolveDir(path)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDirEntries(dirInode)
	if err != nil {
		return nil, err
	}
	var out []Stat
	for _, e := range entries {
		if e.name == "." || e.name == ".." {
			continue
		}
		childInode, err := fs.ReadInode(e.inode)
		if err != nil {
			return nil, err
		}
		out = append(out, Stat{
			Inode: e.inode,
			Name:  e.name,
			Type:  childInode.fileType(),
			Size:  childInode.size,
			Mode:  childInode.mode,
			UID:   childInode.uid,
			GID:   childInode.gid,
		})
	}
	return out, nil
}

// Exists reports whether path resolves to an inode.
func (fs *FileSystem) Exists(path string) bool {
	_, _, err := fs.Resolve(path)
	return err == nil
}
