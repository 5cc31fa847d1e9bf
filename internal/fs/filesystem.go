package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	iofs "io/fs"
	"mime"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"docvault/internal/dv"
)

// OSByteStore is the real filesystem implementation of dv.ByteStore.
type OSByteStore struct {
	newHash func() hash.Hash
}

// NewOSByteStore creates a byte store that checksums with algo.
func NewOSByteStore(algo Algorithm) (*OSByteStore, error) {
	newHash, err := NewHasher(algo)
	if err != nil {
		return nil, err
	}
	return &OSByteStore{newHash: newHash}, nil
}

func (s *OSByteStore) IsFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, iofs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *OSByteStore) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, iofs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (s *OSByteStore) Mkdir(path string) error {
	return os.Mkdir(path, 0o755)
}

func (s *OSByteStore) Rmdir(path string) error {
	ok, err := s.IsDir(path)
	if err != nil {
		return err
	}
	if !ok {
		return &iofs.PathError{Op: "rmdir", Path: path, Err: iofs.ErrNotExist}
	}
	return os.RemoveAll(path)
}

func (s *OSByteStore) Rename(src, dst string) error {
	return os.Rename(src, dst)
}

// Copy writes src to a new file at dst and syncs it. A partial dst is
// removed on failure.
func (s *OSByteStore) Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = s.writeNew(context.Background(), in, dst)
	return err
}

func (s *OSByteStore) Delete(path string) error {
	return os.Remove(path)
}

func (s *OSByteStore) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Upload writes r to a new file at path and syncs it. Cancelling ctx stops
// the copy and removes the partial file.
func (s *OSByteStore) Upload(ctx context.Context, r io.Reader, path string) (int64, error) {
	return s.writeNew(ctx, r, path)
}

func (s *OSByteStore) writeNew(ctx context.Context, r io.Reader, path string) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, ContextReader(ctx, r))
	if err != nil {
		f.Close()
		os.Remove(path)
		return n, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return n, fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return n, fmt.Errorf("closing %s: %w", path, err)
	}
	return n, nil
}

func (s *OSByteStore) Filesize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Mimetype sniffs the file contents and drops parameters such as charset.
func (s *OSByteStore) Mimetype(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detecting mimetype of %s: %w", path, err)
	}
	mediatype, _, err := mime.ParseMediaType(m.String())
	if err != nil {
		return m.String(), nil
	}
	return mediatype, nil
}

func (s *OSByteStore) Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, _, err := Digest(s.newHash, f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return sum, nil
}

func (s *OSByteStore) Sum(data []byte) string {
	sum, _, _ := Digest(s.newHash, bytes.NewReader(data))
	return sum
}

// ContextReader stops reading once ctx is done.
func ContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Compile-time check that OSByteStore implements dv.ByteStore.
var _ dv.ByteStore = (*OSByteStore)(nil)
