package dv

import (
	"context"
	"fmt"

	"docvault/internal/lock"
	"docvault/internal/model"
)

// ItemUpdate changes item metadata. Nil fields are left as they are.
type ItemUpdate struct {
	Summary *string
	// Tags replace the whole tag set when non-nil.
	Tags []string
}

// UpdateItem changes the summary and/or tags of an item under its lock.
func (s *Service) UpdateItem(ctx context.Context, container, filename string, upd ItemUpdate) (_ *model.Item, err error) {
	defer func() { recordWrite("item.metadata", err) }()

	var tags []string
	if upd.Tags != nil {
		if tags, err = NormalizeTags(upd.Tags); err != nil {
			return nil, err
		}
	}

	c, err := s.resolveContainer(ctx, container)
	if err != nil {
		return nil, err
	}
	release, err := s.locks.Items(ctx, lock.Key{ContainerID: c.ID, Name: filename})
	if err != nil {
		return nil, err
	}
	defer release()

	if c, err = s.reloadContainer(ctx, c.ID, container); err != nil {
		return nil, err
	}
	if err := writable(c); err != nil {
		return nil, err
	}
	it, err := s.catalog.FindItem(ctx, c.ID, filename)
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	if it == nil {
		return nil, fmt.Errorf("%w: item %q in %q", ErrNotFound, filename, container)
	}

	next := *it
	if upd.Summary != nil {
		next.Summary = *upd.Summary
		next.UpdatedAt = s.clock.Now()
	}

	tx, err := s.catalog.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if upd.Summary != nil {
		if err := tx.UpdateItem(ctx, &next); err != nil {
			return nil, fmt.Errorf("updating item: %w", err)
		}
	}
	if tags != nil {
		if err := tx.ReplaceTags(ctx, it.ID, tags); err != nil {
			return nil, fmt.Errorf("tagging item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.dispatch(ctx, Event{Kind: EventItemUpdated, Container: c, Item: &next})
	return &next, nil
}

// Tags returns the tags of an item.
func (s *Service) Tags(ctx context.Context, container, filename string) ([]string, error) {
	_, it, err := s.GetItem(ctx, container, filename)
	if err != nil {
		return nil, err
	}
	tags, err := s.catalog.ListTags(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// writeTags replaces the tag set of an item in its own transaction. The
// caller holds the item lock.
func (s *Service) writeTags(ctx context.Context, itemID string, tags []string) error {
	tx, err := s.catalog.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.ReplaceTags(ctx, itemID, tags); err != nil {
		return fmt.Errorf("tagging item: %w", err)
	}
	return tx.Commit()
}
