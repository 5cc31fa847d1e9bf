package dv

import (
	"context"
	"io"
)

// ByteStore is the filesystem the service keeps in step with the catalog.
// Errors for missing paths wrap fs.ErrNotExist; Mkdir on an existing path
// wraps fs.ErrExist.
type ByteStore interface {
	IsFile(path string) (bool, error)
	IsDir(path string) (bool, error)

	// Mkdir creates a single directory. The parent must exist.
	Mkdir(path string) error
	// Rmdir removes a directory and anything left inside it.
	Rmdir(path string) error

	// Rename moves src to dst in one step, replacing dst if it exists.
	Rename(src, dst string) error
	// Copy writes a durable copy of src at dst. dst must not exist.
	Copy(src, dst string) error
	Delete(path string) error

	Read(path string) ([]byte, error)
	// Upload writes r to a new file at path and returns the bytes written.
	Upload(ctx context.Context, r io.Reader, path string) (int64, error)

	Filesize(path string) (int64, error)
	// Mimetype sniffs the media type of the file, without parameters.
	Mimetype(path string) (string, error)
	// Checksum returns the hex digest of the file's bytes.
	Checksum(path string) (string, error)
	// Sum returns the hex digest of data, in the same format as Checksum.
	Sum(data []byte) string
}

// Upload describes bytes staged under the temporary root.
type Upload struct {
	Path     string
	Size     int64
	Checksum string
}

// Stager writes an incoming stream to a private temporary file before any
// lock is taken.
type Stager interface {
	Stage(ctx context.Context, r io.Reader) (*Upload, error)
}

// Thumbnailer renders previews of image items.
type Thumbnailer interface {
	Supports(mimetype string) bool
	Render(src io.Reader, dst io.Writer) error
	// Extension is the file extension of rendered output, with the dot.
	Extension() string
}

// ReadCache holds verified file contents keyed by path. Load only returns
// data that was saved under the same checksum.
type ReadCache interface {
	Load(path, checksum string) ([]byte, bool)
	Save(path, checksum string, data []byte)
	Delete(path string)
	Clear()
}
