package dv

import (
	"bytes"
	"context"
	"fmt"

	"docvault/internal/model"
)

// generateThumbnail renders a preview of an image item after its head was
// committed. The caller holds the item lock. Failures leave the item
// without a thumbnail and are only logged.
func (s *Service) generateThumbnail(ctx context.Context, c *model.Container, it *model.Item) {
	if s.thumbs == nil || !s.thumbs.Supports(it.Mimetype) {
		return
	}
	if err := s.writeThumbnail(ctx, c, it); err != nil {
		s.logger.Warn("thumbnail generation failed", "container", c.Name, "item", it.Filename, "error", err)
	}
}

func (s *Service) writeThumbnail(ctx context.Context, c *model.Container, it *model.Item) error {
	src, err := s.store.Read(s.headPath(c, it.Filename))
	if err != nil {
		return fmt.Errorf("reading head: %w", err)
	}

	var buf bytes.Buffer
	if err := s.thumbs.Render(bytes.NewReader(src), &buf); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}

	thumb := &model.Thumbnail{
		ID:        s.idgen.New(),
		ItemID:    it.ID,
		UUID:      s.idgen.New(),
		Extension: s.thumbs.Extension(),
		Filesize:  int64(buf.Len()),
		Checksum:  s.store.Sum(buf.Bytes()),
		CreatedAt: s.clock.Now(),
	}
	path := s.thumbnailPath(thumb)

	if _, err := s.store.Upload(ctx, &buf, path); err != nil {
		s.discard(path)
		return writeError("writing thumbnail", path, err)
	}

	err = func() error {
		tx, err := s.catalog.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if err := tx.InsertThumbnail(ctx, thumb); err != nil {
			return fmt.Errorf("recording thumbnail: %w", err)
		}
		return tx.Commit()
	}()
	if err != nil {
		s.discard(path)
		return err
	}

	s.logger.Debug("thumbnail generated", "item", it.Filename, "path", path, "size", thumb.Filesize)
	return nil
}
