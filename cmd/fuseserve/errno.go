package main

import (
	"errors"
	"syscall"

	"github.com/nanos-project/ext2fs/filesystem/ext2"
	"github.com/nanos-project/ext2fs/vfs"
)

// toErrno maps a vfs/ext2 sentinel error to the syscall.Errno FUSE expects
// on the wire, the bridge's analogue of loopback.go's ToErrno(err) over a
// real host syscall error.
func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ext2.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, ext2.ErrNotADirectory):
		return syscall.ENOTDIR
	case errors.Is(err, ext2.ErrIsADirectory):
		return syscall.EISDIR
	case errors.Is(err, ext2.ErrNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, ext2.ErrNoSpace):
		return syscall.ENOSPC
	case errors.Is(err, ext2.ErrTooLarge):
		return syscall.EFBIG
	case errors.Is(err, ext2.ErrInvalidArgument):
		return syscall.EINVAL
	case errors.Is(err, ext2.ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, ext2.ErrIOError):
		return syscall.EIO
	case errors.Is(err, ext2.ErrNotSupported):
		return syscall.ENOSYS
	case errors.Is(err, vfs.ErrNotMounted):
		return syscall.ENODEV
	case errors.Is(err, vfs.ErrSymlinkLoop):
		return syscall.ELOOP
	case errors.Is(err, vfs.ErrBadHandle):
		return syscall.EBADF
	default:
		return syscall.EIO
	}
}
