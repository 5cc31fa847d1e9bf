package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"docvault/internal/backup"
	"docvault/internal/fs"
)

// FileSystemVault keeps each backup as one file directly under root.
// Uploads are written to a dot-prefixed temp file and renamed into place.
type FileSystemVault struct {
	root string
}

var _ backup.Vault = (*FileSystemVault)(nil)

// NewFileSystemVault creates root if needed.
func NewFileSystemVault(root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}
	return &FileSystemVault{root: root}, nil
}

func (v *FileSystemVault) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	if err := checkName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(v.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, fs.ContextReader(ctx, r))
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, filepath.Join(v.root, name)); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

func (v *FileSystemVault) Get(ctx context.Context, name string, w io.Writer) error {
	if err := checkName(name); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(v.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", backup.ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, fs.ContextReader(ctx, f)); err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	return nil
}

// List returns every completed backup file.
func (v *FileSystemVault) List(ctx context.Context) ([]backup.Object, error) {
	entries, err := os.ReadDir(v.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault directory: %w", err)
	}
	var objs []backup.Object
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		objs = append(objs, backup.Object{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime().UTC()})
	}
	return objs, nil
}

func (v *FileSystemVault) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(v.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", backup.ErrNotFound, name)
	}
	return err
}

// ValidateSetup checks that root is a directory we can create files in.
func (v *FileSystemVault) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}
	probe, err := os.CreateTemp(v.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}
