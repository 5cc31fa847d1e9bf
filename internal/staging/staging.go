// Package staging writes upload streams to private temporary files under
// the temporary root before they are promoted into the vault.
package staging

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"docvault/internal/dv"
	"docvault/internal/fs"
)

// Suffix marks staged upload files.
const Suffix = ".tmp"

// Area stages uploads as <dir>/<id>.tmp. Each upload gets its own file, so
// staging needs no locking and may run before the caller takes any.
type Area struct {
	dir     string
	maxSize int64
	newHash func() hash.Hash
	idgen   dv.IDGenerator
	clock   dv.Clock
	logger  dv.Logger
}

var _ dv.Stager = (*Area)(nil)

// NewArea creates the staging directory if needed. maxSize limits a single
// upload in bytes; zero means unlimited.
func NewArea(dir string, maxSize int64, newHash func() hash.Hash, idgen dv.IDGenerator, clock dv.Clock, logger dv.Logger) (*Area, error) {
	if maxSize < 0 {
		return nil, fmt.Errorf("max upload size must not be negative, got %d", maxSize)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &Area{
		dir:     dir,
		maxSize: maxSize,
		newHash: newHash,
		idgen:   idgen,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Dir returns the staging directory.
func (a *Area) Dir() string {
	return a.dir
}

// Stage copies r into a new staged file, hashing it on the way. The file is
// synced before Stage returns. On any error the partial file is removed.
func (a *Area) Stage(ctx context.Context, r io.Reader) (*dv.Upload, error) {
	path := filepath.Join(a.dir, a.idgen.New()+Suffix)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: creating upload file: %w", dv.ErrWrite, err)
	}

	fail := func(err error) (*dv.Upload, error) {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	src := fs.ContextReader(ctx, r)
	if a.maxSize > 0 {
		// One byte past the limit is enough to detect an oversize upload.
		src = io.LimitReader(src, a.maxSize+1)
	}
	h := a.newHash()
	n, err := io.Copy(f, io.TeeReader(src, h))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fail(err)
		}
		return fail(fmt.Errorf("staging upload: %w", err))
	}
	if a.maxSize > 0 && n > a.maxSize {
		return fail(fmt.Errorf("%w: upload exceeds maximum size of %d bytes", dv.ErrValidation, a.maxSize))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("%w: syncing upload: %w", dv.ErrWrite, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("%w: closing upload: %w", dv.ErrWrite, err)
	}

	a.logger.Debug("upload staged", "path", path, "size", n)
	return &dv.Upload{
		Path:     path,
		Size:     n,
		Checksum: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
