package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"docvault/internal/dv"
)

const (
	// Prefix and Suffix frame the names of catalog backups.
	Prefix = "catalog-"
	Suffix = ".db.zst.age"

	timeLayout  = "20060102T150405Z"
	scratchName = "backup"
)

// Service creates, lists, prunes and restores catalog backups.
type Service struct {
	snap   Snapshotter
	vault  Vault
	enc    Encryptor
	tmpDir string
	clock  dv.Clock
	logger dv.Logger
}

// NewService creates a backup service. Intermediate files are written to
// tmpDir and removed before each call returns.
func NewService(snap Snapshotter, vault Vault, enc Encryptor, tmpDir string, clock dv.Clock, logger dv.Logger) *Service {
	return &Service{
		snap:   snap,
		vault:  vault,
		enc:    enc,
		tmpDir: tmpDir,
		clock:  clock,
		logger: logger,
	}
}

// Create snapshots the catalog and stores it as
// catalog-<UTC timestamp>.db.zst.age.
func (s *Service) Create(ctx context.Context) (*Object, error) {
	if !s.enc.IsConfigured() {
		return nil, fmt.Errorf("encryption keys are not set up")
	}

	if err := os.MkdirAll(s.scratchDir(), 0o700); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	snapshot, err := s.tempPath("snapshot-*.db")
	if err != nil {
		return nil, err
	}
	defer os.Remove(snapshot)
	if err := s.snap.BackupTo(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("snapshotting catalog: %w", err)
	}

	sealed, err := os.CreateTemp(s.scratchDir(), "backup-*"+Suffix)
	if err != nil {
		return nil, fmt.Errorf("creating backup file: %w", err)
	}
	defer os.Remove(sealed.Name())
	defer sealed.Close()

	if err := s.seal(snapshot, sealed); err != nil {
		return nil, err
	}
	size, err := sealed.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("sizing backup: %w", err)
	}
	if _, err := sealed.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding backup: %w", err)
	}

	now := s.clock.Now().UTC()
	obj := &Object{Name: Prefix + now.Format(timeLayout) + Suffix, Size: size, ModTime: now}
	if err := s.vault.Put(ctx, obj.Name, sealed, size); err != nil {
		return nil, fmt.Errorf("uploading backup: %w", err)
	}

	s.logger.Info("catalog backup created", "name", obj.Name, "size", size)
	return obj, nil
}

// seal compresses and encrypts the snapshot into dst.
func (s *Service) seal(snapshot string, dst io.Writer) error {
	src, err := os.Open(snapshot)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer src.Close()

	enc, err := s.enc.Seal(dst)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	zw, err := zstd.NewWriter(enc, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("starting compression: %w", err)
	}
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		return fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing compression: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finishing encryption: %w", err)
	}
	return nil
}

// List returns the catalog backups in the vault, newest first.
func (s *Service) List(ctx context.Context) ([]Object, error) {
	objs, err := s.vault.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	objs = slices.DeleteFunc(objs, func(o Object) bool {
		return !strings.HasPrefix(o.Name, Prefix) || !strings.HasSuffix(o.Name, Suffix)
	})
	// Timestamps in names sort lexically.
	slices.SortFunc(objs, func(a, b Object) int { return strings.Compare(b.Name, a.Name) })
	return objs, nil
}

// Prune deletes all but the newest keep backups and returns the names it
// deleted.
func (s *Service) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("%w: must keep at least one backup", dv.ErrValidation)
	}
	objs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, o := range objs[min(keep, len(objs)):] {
		if err := s.vault.Delete(ctx, o.Name); err != nil {
			return deleted, fmt.Errorf("deleting backup %s: %w", o.Name, err)
		}
		deleted = append(deleted, o.Name)
		s.logger.Info("catalog backup pruned", "name", o.Name)
	}
	return deleted, nil
}

// Restore decrypts and decompresses a backup into a new file at dest.
// An existing dest is never overwritten.
func (s *Service) Restore(ctx context.Context, name, passphrase, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%w: %s already exists", dv.ErrConflict, dest)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", dest, err)
	}

	opener, err := s.enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}

	out, err := os.CreateTemp(filepath.Dir(dest), ".restore-*.tmp")
	if err != nil {
		return fmt.Errorf("creating restore file: %w", err)
	}
	defer os.Remove(out.Name())
	defer out.Close()

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.vault.Get(gctx, name, pw)
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := decode(opener, pr, out)
		// Unblock the download if decoding stopped early.
		pr.CloseWithError(err)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: backup %s", dv.ErrNotFound, name)
		}
		return fmt.Errorf("restoring %s: %w", name, err)
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("syncing restore file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing restore file: %w", err)
	}
	if err := os.Link(out.Name(), dest); err != nil {
		return fmt.Errorf("placing restored catalog: %w", err)
	}
	s.logger.Info("catalog backup restored", "name", name, "dest", dest)
	return nil
}

// decode decrypts and decompresses r into w.
func decode(opener Opener, r io.Reader, w io.Writer) error {
	plain, err := opener.Open(r)
	if err != nil {
		return fmt.Errorf("starting decryption: %w", err)
	}
	zr, err := zstd.NewReader(plain)
	if err != nil {
		return fmt.Errorf("starting decompression: %w", err)
	}
	defer zr.Close()
	if _, err := io.Copy(w, zr); err != nil {
		return fmt.Errorf("decoding backup: %w", err)
	}
	return nil
}

// scratchDir holds intermediate files. It is kept apart from staged
// uploads, which are swept at startup.
func (s *Service) scratchDir() string {
	return filepath.Join(s.tmpDir, scratchName)
}

func (s *Service) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.scratchDir(), pattern)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	name := f.Name()
	f.Close()
	// The snapshot target must not exist.
	if err := os.Remove(name); err != nil {
		return "", fmt.Errorf("preparing temp file: %w", err)
	}
	return name, nil
}
