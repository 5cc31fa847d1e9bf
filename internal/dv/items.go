package dv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"slices"

	"docvault/internal/lock"
	"docvault/internal/model"
)

// ItemDetails is an item with its tags, thumbnail and revisions.
type ItemDetails struct {
	Container *model.Container
	Item      *model.Item
	Tags      []string
	Thumbnail *model.Thumbnail
	// Revisions are ordered newest first.
	Revisions []*model.Revision
}

// GetItem returns the row of an item.
func (s *Service) GetItem(ctx context.Context, container, filename string) (*model.Container, *model.Item, error) {
	c, err := s.resolveContainer(ctx, container)
	if err != nil {
		return nil, nil, err
	}
	it, err := s.catalog.FindItem(ctx, c.ID, filename)
	if err != nil {
		return nil, nil, fmt.Errorf("finding item: %w", err)
	}
	if it == nil {
		return nil, nil, fmt.Errorf("%w: item %q in %q", ErrNotFound, filename, container)
	}
	return c, it, nil
}

// DescribeItem returns an item with everything attached to it.
func (s *Service) DescribeItem(ctx context.Context, container, filename string) (*ItemDetails, error) {
	c, it, err := s.GetItem(ctx, container, filename)
	if err != nil {
		return nil, err
	}
	tags, err := s.catalog.ListTags(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	thumb, err := s.catalog.FindThumbnail(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("finding thumbnail: %w", err)
	}
	revs, err := s.History(ctx, container, filename)
	if err != nil {
		return nil, err
	}
	return &ItemDetails{Container: c, Item: it, Tags: tags, Thumbnail: thumb, Revisions: revs}, nil
}

// ListItems returns the items of a container ordered by filename.
func (s *Service) ListItems(ctx context.Context, container string) ([]*model.Item, error) {
	c, err := s.resolveContainer(ctx, container)
	if err != nil {
		return nil, err
	}
	items, err := s.catalog.ListItems(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// History returns the revisions of an item, newest first.
func (s *Service) History(ctx context.Context, container, filename string) ([]*model.Revision, error) {
	_, it, err := s.GetItem(ctx, container, filename)
	if err != nil {
		return nil, err
	}
	revs, err := s.catalog.ListRevisions(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}
	slices.Reverse(revs)
	return revs, nil
}

// DeleteItem removes an item and all of its files. Every file the catalog
// expects is checked before anything is deleted; if one is missing the
// delete is refused with ErrConflict.
func (s *Service) DeleteItem(ctx context.Context, container, filename string) (err error) {
	defer func() { recordWrite("item.delete", err) }()

	c, err := s.resolveContainer(ctx, container)
	if err != nil {
		return err
	}
	release, err := s.locks.Items(ctx, lock.Key{ContainerID: c.ID, Name: filename})
	if err != nil {
		return err
	}
	defer release()

	c, err = s.reloadContainer(ctx, c.ID, container)
	if err != nil {
		return err
	}
	if err := writable(c); err != nil {
		return err
	}
	it, err := s.catalog.FindItem(ctx, c.ID, filename)
	if err != nil {
		return fmt.Errorf("finding item: %w", err)
	}
	if it == nil {
		return fmt.Errorf("%w: item %q in %q", ErrNotFound, filename, container)
	}

	if err := s.deleteItemFiles(ctx, c, it, true); err != nil {
		return err
	}

	tx, err := s.catalog.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.DeleteItem(ctx, it.ID); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info("item deleted", "container", c.Name, "item", it.Filename)
	s.dispatch(ctx, Event{Kind: EventItemDeleted, Container: c, Item: it})
	return nil
}

// deleteItemFiles removes the thumbnail, the revisions and the head of an
// item, in that order. In strict mode every file must exist and this is
// checked before the first delete; otherwise missing files are skipped.
func (s *Service) deleteItemFiles(ctx context.Context, c *model.Container, it *model.Item, strict bool) error {
	thumb, err := s.catalog.FindThumbnail(ctx, it.ID)
	if err != nil {
		return fmt.Errorf("finding thumbnail: %w", err)
	}
	revs, err := s.catalog.ListRevisions(ctx, it.ID)
	if err != nil {
		return fmt.Errorf("listing revisions: %w", err)
	}

	head := s.headPath(c, it.Filename)
	paths := make([]string, 0, len(revs)+2)
	if thumb != nil {
		paths = append(paths, s.thumbnailPath(thumb))
	}
	for _, r := range revs {
		paths = append(paths, s.revisionPath(r.UUID))
	}
	paths = append(paths, head)

	if strict {
		for _, p := range paths {
			ok, err := s.store.IsFile(p)
			if err != nil {
				return fmt.Errorf("checking %s: %w", p, err)
			}
			if !ok {
				return fmt.Errorf("%w: expected file %s is missing", ErrConflict, p)
			}
		}
	}

	for _, p := range paths {
		err := s.store.Delete(p)
		switch {
		case err == nil:
		case errors.Is(err, iofs.ErrNotExist) && !strict:
			s.logger.Warn("file already gone", "path", p)
		case errors.Is(err, iofs.ErrNotExist):
			return fmt.Errorf("%w: expected file %s is missing", ErrConflict, p)
		default:
			return writeError("deleting", p, err)
		}
		s.cache.Delete(p)
	}
	return nil
}

// MoveParams name the source and destination of a move. An empty To keeps
// the container; an empty NewFilename keeps the filename.
type MoveParams struct {
	From        string
	Filename    string
	To          string
	NewFilename string
}

// RenameItem renames an item within its container.
func (s *Service) RenameItem(ctx context.Context, container, filename, newFilename string) (*model.Item, error) {
	return s.MoveItem(ctx, MoveParams{From: container, Filename: filename, NewFilename: newFilename})
}

// MoveItem renames an item and/or moves it to another container. Both
// containers are read-locked in id order, then both item keys in key order.
// The head file follows the row; revisions and thumbnails stay where they
// are because their paths do not depend on the item's name.
func (s *Service) MoveItem(ctx context.Context, p MoveParams) (_ *model.Item, err error) {
	defer func() { recordWrite("item.move", err) }()

	if p.To == "" {
		p.To = p.From
	}
	if p.NewFilename == "" {
		p.NewFilename = p.Filename
	}
	if err := ValidateName("item", p.NewFilename); err != nil {
		return nil, err
	}

	src, err := s.resolveContainer(ctx, p.From)
	if err != nil {
		return nil, err
	}
	dst := src
	if p.To != p.From {
		if dst, err = s.resolveContainer(ctx, p.To); err != nil {
			return nil, err
		}
	}
	if src.ID == dst.ID && p.Filename == p.NewFilename {
		return nil, fmt.Errorf("%w: source and destination are the same", ErrValidation)
	}

	release, err := s.locks.Items(ctx,
		lock.Key{ContainerID: src.ID, Name: p.Filename},
		lock.Key{ContainerID: dst.ID, Name: p.NewFilename})
	if err != nil {
		return nil, err
	}
	defer release()

	if src, err = s.reloadContainer(ctx, src.ID, p.From); err != nil {
		return nil, err
	}
	if dst, err = s.reloadContainer(ctx, dst.ID, p.To); err != nil {
		return nil, err
	}
	if err := writable(src); err != nil {
		return nil, err
	}
	if err := writable(dst); err != nil {
		return nil, err
	}

	it, err := s.catalog.FindItem(ctx, src.ID, p.Filename)
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	if it == nil {
		return nil, fmt.Errorf("%w: item %q in %q", ErrNotFound, p.Filename, p.From)
	}
	taken, err := s.catalog.FindItem(ctx, dst.ID, p.NewFilename)
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	if taken != nil {
		return nil, fmt.Errorf("%w: item %q already exists in %q", ErrConflict, p.NewFilename, p.To)
	}

	oldHead := s.headPath(src, p.Filename)
	newHead := s.headPath(dst, p.NewFilename)
	if ok, err := s.store.IsFile(oldHead); err != nil {
		return nil, fmt.Errorf("checking %s: %w", oldHead, err)
	} else if !ok {
		return nil, fmt.Errorf("%w: head file of %q is missing", ErrConflict, p.Filename)
	}
	if ok, err := s.store.IsFile(newHead); err != nil {
		return nil, fmt.Errorf("checking %s: %w", newHead, err)
	} else if ok {
		return nil, fmt.Errorf("%w: untracked file exists at %s", ErrConflict, newHead)
	}

	next := *it
	next.ContainerID = dst.ID
	next.Filename = p.NewFilename
	next.UpdatedAt = s.clock.Now()

	renamed := false
	err = func() error {
		tx, err := s.catalog.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := tx.UpdateItem(ctx, &next); err != nil {
			return fmt.Errorf("moving item: %w", err)
		}
		if err := s.store.Rename(oldHead, newHead); err != nil {
			return writeError("moving head to", newHead, err)
		}
		renamed = true
		return tx.Commit()
	}()
	s.cache.Delete(oldHead)
	s.cache.Delete(newHead)
	if err != nil {
		if renamed {
			s.compensate("move-head-back", func() error { return s.store.Rename(newHead, oldHead) },
				"from", newHead, "to", oldHead)
		}
		return nil, err
	}

	s.logger.Info("item moved", "from", oldHead, "to", newHead)
	s.dispatch(ctx, Event{Kind: EventItemMoved, Container: dst, Item: &next, Previous: p.From + "/" + p.Filename})
	return &next, nil
}

// RestoreRevision makes the content of an old revision the new head. The
// current head becomes a revision like in any other replace.
func (s *Service) RestoreRevision(ctx context.Context, container, filename string, number int64, creator string) (*PutResult, error) {
	data, _, err := s.ReadRevision(ctx, container, filename, number)
	if err != nil {
		return nil, err
	}
	return s.Put(ctx, PutParams{
		Container: container,
		Filename:  filename,
		Content:   bytes.NewReader(data),
		Creator:   creator,
	})
}
