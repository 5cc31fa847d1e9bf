package dv

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"

	"docvault/internal/model"
)

// ReadItem returns the head bytes of an item, verified against the
// catalog checksum. No lock is taken: a reader racing a replace sees
// either version, or ErrConflict if the bytes it read do not match the
// row it read.
func (s *Service) ReadItem(ctx context.Context, container, filename string) ([]byte, *model.Item, error) {
	c, it, err := s.GetItem(ctx, container, filename)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.readVerified(s.headPath(c, it.Filename), it.Checksum)
	if err != nil {
		return nil, nil, err
	}
	return data, it, nil
}

// ReadRevision returns the bytes of one revision of an item.
func (s *Service) ReadRevision(ctx context.Context, container, filename string, number int64) ([]byte, *model.Revision, error) {
	_, it, err := s.GetItem(ctx, container, filename)
	if err != nil {
		return nil, nil, err
	}
	rev, err := s.catalog.FindRevision(ctx, it.ID, number)
	if err != nil {
		return nil, nil, fmt.Errorf("finding revision: %w", err)
	}
	if rev == nil {
		return nil, nil, fmt.Errorf("%w: revision %d of %q", ErrNotFound, number, filename)
	}
	data, err := s.readVerified(s.revisionPath(rev.UUID), rev.Checksum)
	if err != nil {
		return nil, nil, err
	}
	return data, rev, nil
}

// ReadThumbnail returns the thumbnail bytes of an item.
func (s *Service) ReadThumbnail(ctx context.Context, container, filename string) ([]byte, *model.Thumbnail, error) {
	_, it, err := s.GetItem(ctx, container, filename)
	if err != nil {
		return nil, nil, err
	}
	thumb, err := s.catalog.FindThumbnail(ctx, it.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("finding thumbnail: %w", err)
	}
	if thumb == nil {
		return nil, nil, fmt.Errorf("%w: thumbnail of %q", ErrNotFound, filename)
	}
	data, err := s.readVerified(s.thumbnailPath(thumb), thumb.Checksum)
	if err != nil {
		return nil, nil, err
	}
	return data, thumb, nil
}

// readVerified serves path from the cache when it holds bytes verified
// against checksum, and otherwise reads the file, checks it and caches it.
// A mismatch is reported, never repaired.
func (s *Service) readVerified(path, checksum string) ([]byte, error) {
	if data, ok := s.cache.Load(path, checksum); ok {
		return data, nil
	}

	data, err := s.store.Read(path)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %s is missing", ErrConflict, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if got := s.store.Sum(data); got != checksum {
		s.logger.Error("checksum mismatch", "path", path, "expected", checksum, "actual", got)
		return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrConflict, path)
	}

	s.cache.Save(path, checksum, data)
	return data, nil
}
