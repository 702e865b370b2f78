package filesystem

import "io"

// File is a reference to a single open file on disk.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}
