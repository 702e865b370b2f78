// Package filesystem provides the narrow interface a concrete on-disk
// filesystem implements and that the vfs facade mediates access through.
// The only concrete implementation in this module is filesystem/ext2.
package filesystem

import (
	"errors"
	"os"
)

var (
	// ErrNotSupported marks an operation a filesystem type understands
	// but an implementation does not perform. filesystem/ext2 reports such
	// cases with its own ext2.ErrNotSupported (e.g. growing a file through
	// truncate).
	ErrNotSupported = errors.New("method not supported by this filesystem")
	// ErrReadonlyFilesystem is returned when a mutating call is made on a
	// filesystem mounted read-only.
	ErrReadonlyFilesystem = errors.New("read-only filesystem")
)

// FileSystem is a reference to a single mounted filesystem.
type FileSystem interface {
	// Type returns the type of filesystem.
	Type() Type
	// Mkdir creates a directory.
	Mkdir(pathname string) error
	// Symlink creates a symbolic link named linkpath containing the string target.
	Symlink(target, linkpath string) error
	// Chmod changes the permission bits of the named file, preserving its type bits.
	Chmod(name string, mode os.FileMode) error
	// Chown changes the numeric uid and gid of the named file.
	Chown(name string, uid, gid int) error
	// ReadDir reads the contents of a directory.
	ReadDir(pathname string) ([]os.FileInfo, error)
	// OpenFile opens a handle to read or write to a file.
	OpenFile(pathname string, flag int) (File, error)
	// Remove removes the named file or empty directory.
	Remove(pathname string) error
}

// Type represents the type of filesystem this is.
type Type int

const (
	// TypeExt2 is an ext2 revision 0 compatible filesystem.
	TypeExt2 Type = iota
)

func (t Type) String() string {
	switch t {
	case TypeExt2:
		return "ext2"
	default:
		return "unknown"
	}
}
