package dv

import (
	"context"
	"fmt"
	"io"

	"docvault/internal/lock"
	"docvault/internal/model"
)

// PutParams describe an upload into a container.
type PutParams struct {
	Container string
	Filename  string
	Content   io.Reader
	Creator   string
	// Tags replace the item's tag set when non-nil.
	Tags []string
}

// PutResult reports what a Put did.
type PutResult struct {
	Item *model.Item
	// Revision is the revision created from the previous head, nil for a
	// create or an unchanged replace.
	Revision  *model.Revision
	Created   bool
	Unchanged bool
}

// Put creates an item, or replaces its head and records the previous
// head as a new revision.
//
// The content is staged before any lock is taken. Under the container read
// lock and the item lock, the item row and head file decide the operation:
// neither exists means create, both exist means replace, and one without
// the other is a conflict.
func (s *Service) Put(ctx context.Context, p PutParams) (_ *PutResult, err error) {
	if err := ValidateName("item", p.Filename); err != nil {
		return nil, err
	}
	var tags []string
	if p.Tags != nil {
		if tags, err = NormalizeTags(p.Tags); err != nil {
			return nil, err
		}
	}

	c, err := s.resolveContainer(ctx, p.Container)
	if err != nil {
		return nil, err
	}
	if err := writable(c); err != nil {
		return nil, err
	}

	up, err := s.stager.Stage(ctx, p.Content)
	if err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}
	// Once promoted the staged file no longer exists; discard ignores that.
	defer s.discard(up.Path)

	release, err := s.locks.Items(ctx, lock.Key{ContainerID: c.ID, Name: p.Filename})
	if err != nil {
		return nil, err
	}
	defer release()

	c, err = s.reloadContainer(ctx, c.ID, p.Container)
	if err != nil {
		return nil, err
	}
	if err := writable(c); err != nil {
		return nil, err
	}

	head := s.headPath(c, p.Filename)
	it, err := s.catalog.FindItem(ctx, c.ID, p.Filename)
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	onDisk, err := s.store.IsFile(head)
	if err != nil {
		return nil, fmt.Errorf("checking head %s: %w", head, err)
	}

	switch {
	case it == nil && !onDisk:
		defer func() { recordWrite("item.create", err) }()
		return s.create(ctx, c, p, up, tags, head)
	case it != nil && onDisk:
		defer func() { recordWrite("item.replace", err) }()
		return s.replace(ctx, c, it, p, up, tags, head)
	case it == nil:
		return nil, fmt.Errorf("%w: untracked file exists at %s", ErrConflict, head)
	default:
		return nil, fmt.Errorf("%w: head file of %q is missing", ErrConflict, p.Filename)
	}
}

func (s *Service) create(ctx context.Context, c *model.Container, p PutParams, up *Upload, tags []string, head string) (*PutResult, error) {
	mimetype, err := s.store.Mimetype(up.Path)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	it := &model.Item{
		ID:          s.idgen.New(),
		ContainerID: c.ID,
		Filename:    p.Filename,
		Filesize:    up.Size,
		Mimetype:    mimetype,
		Checksum:    up.Checksum,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	promoted := false
	err = func() error {
		tx, err := s.catalog.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := tx.InsertItem(ctx, it); err != nil {
			return fmt.Errorf("creating item: %w", err)
		}
		if len(tags) > 0 {
			if err := tx.ReplaceTags(ctx, it.ID, tags); err != nil {
				return fmt.Errorf("tagging item: %w", err)
			}
		}
		if err := s.store.Rename(up.Path, head); err != nil {
			return writeError("promoting upload to", head, err)
		}
		promoted = true
		return tx.Commit()
	}()
	s.cache.Delete(head)
	if err != nil {
		if promoted {
			s.compensate("remove-head", func() error { return s.store.Delete(head) }, "path", head)
		}
		return nil, err
	}

	s.logger.Info("item created", "container", c.Name, "item", it.Filename, "size", it.Filesize)
	s.generateThumbnail(ctx, c, it)
	s.dispatch(ctx, Event{Kind: EventItemCreated, Container: c, Item: it})
	return &PutResult{Item: it, Created: true}, nil
}

func (s *Service) replace(ctx context.Context, c *model.Container, it *model.Item, p PutParams, up *Upload, tags []string, head string) (*PutResult, error) {
	mimetype, err := s.store.Mimetype(up.Path)
	if err != nil {
		return nil, err
	}
	if mimetype != it.Mimetype {
		return nil, fmt.Errorf("%w: content type of %q would change from %s to %s",
			ErrConflict, it.Filename, it.Mimetype, mimetype)
	}

	if up.Checksum == it.Checksum && s.policy == SkipIdentical {
		if tags != nil {
			if err := s.writeTags(ctx, it.ID, tags); err != nil {
				return nil, err
			}
		}
		s.logger.Debug("identical content, nothing to replace", "container", c.Name, "item", it.Filename)
		return &PutResult{Item: it, Unchanged: true}, nil
	}

	oldThumb, err := s.catalog.FindThumbnail(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("finding thumbnail: %w", err)
	}

	now := s.clock.Now()
	rev := &model.Revision{
		ID:             s.idgen.New(),
		ItemID:         it.ID,
		Creator:        p.Creator,
		RevisionNumber: it.LatestRevisionNumber + 1,
		UUID:           s.idgen.New(),
		Filesize:       it.Filesize,
		Checksum:       it.Checksum,
		CreatedAt:      now,
	}
	revPath := s.revisionPath(rev.UUID)

	if err := s.store.Copy(head, revPath); err != nil {
		s.discard(revPath)
		return nil, writeError("copying head to", revPath, err)
	}

	next := *it
	next.Filesize = up.Size
	next.Checksum = up.Checksum
	next.LatestRevisionNumber = rev.RevisionNumber
	next.UpdatedAt = now

	replaced := false
	err = func() error {
		tx, err := s.catalog.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := tx.InsertRevision(ctx, rev); err != nil {
			return fmt.Errorf("recording revision: %w", err)
		}
		if err := tx.UpdateItem(ctx, &next); err != nil {
			return fmt.Errorf("updating item: %w", err)
		}
		if oldThumb != nil {
			if err := tx.DeleteThumbnail(ctx, it.ID); err != nil {
				return fmt.Errorf("dropping thumbnail: %w", err)
			}
		}
		if tags != nil {
			if err := tx.ReplaceTags(ctx, it.ID, tags); err != nil {
				return fmt.Errorf("tagging item: %w", err)
			}
		}
		if err := s.store.Rename(up.Path, head); err != nil {
			return writeError("promoting upload to", head, err)
		}
		replaced = true
		return tx.Commit()
	}()
	s.cache.Delete(head)
	if err != nil {
		if replaced {
			// The revision copy is the only copy of the old head. If it
			// cannot be moved back it stays where it is.
			s.compensate("restore-head", func() error { return s.store.Rename(revPath, head) },
				"revision", revPath, "head", head)
		} else {
			s.discard(revPath)
		}
		return nil, err
	}

	if oldThumb != nil {
		s.discard(s.thumbnailPath(oldThumb))
	}

	s.logger.Info("item replaced", "container", c.Name, "item", next.Filename, "revision", rev.RevisionNumber)
	s.generateThumbnail(ctx, c, &next)
	s.dispatch(ctx, Event{Kind: EventItemUpdated, Container: c, Item: &next, Revision: rev})
	return &PutResult{Item: &next, Revision: rev}, nil
}
