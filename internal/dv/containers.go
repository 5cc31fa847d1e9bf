package dv

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"

	"docvault/internal/lock"
	"docvault/internal/model"
)

// NewContainer describes a container to create.
type NewContainer struct {
	Owner    string
	Name     string
	Summary  string
	Readonly bool
}

// ContainerUpdate changes a container. Nil fields are left as they are.
type ContainerUpdate struct {
	Name     *string
	Summary  *string
	Readonly *bool
}

// CreateContainer inserts the container row and creates its directory.
// The directory is removed again if the commit fails.
func (s *Service) CreateContainer(ctx context.Context, p NewContainer) (_ *model.Container, err error) {
	defer func() { recordWrite("container.create", err) }()

	if err := ValidateName("container", p.Name); err != nil {
		return nil, err
	}
	if p.Owner == "" {
		return nil, fmt.Errorf("%w: container owner is empty", ErrValidation)
	}

	existing, err := s.catalog.FindContainerByName(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("checking for existing container: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: container %q already exists", ErrConflict, p.Name)
	}

	now := s.clock.Now()
	c := &model.Container{
		ID:        s.idgen.New(),
		Owner:     p.Owner,
		Name:      p.Name,
		Readonly:  p.Readonly,
		Summary:   p.Summary,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Nobody can know the new id yet, but holding its write lock keeps the
	// rule that directory changes happen under the container write lock.
	release, err := s.locks.Container(ctx, c.ID, lock.Write)
	if err != nil {
		return nil, err
	}
	defer release()

	dir := s.containerDir(c.Name)
	if err := s.createContainer(ctx, c, dir); err != nil {
		return nil, err
	}

	s.logger.Info("container created", "container", c.Name, "owner", c.Owner)
	s.dispatch(ctx, Event{Kind: EventContainerCreated, Container: c})
	return c, nil
}

func (s *Service) createContainer(ctx context.Context, c *model.Container, dir string) error {
	tx, err := s.catalog.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.InsertContainer(ctx, c); err != nil {
		return fmt.Errorf("creating container: %w", err)
	}
	if err := s.store.Mkdir(dir); err != nil {
		if errors.Is(err, iofs.ErrExist) {
			return fmt.Errorf("%w: directory %s already exists", ErrConflict, dir)
		}
		return writeError("creating directory", dir, err)
	}
	if err := tx.Commit(); err != nil {
		s.compensate("remove-container-dir", func() error { return s.store.Rmdir(dir) }, "path", dir)
		return fmt.Errorf("creating container: %w", err)
	}
	return nil
}

// GetContainer returns a container by name.
func (s *Service) GetContainer(ctx context.Context, name string) (*model.Container, error) {
	return s.resolveContainer(ctx, name)
}

// ListContainers returns the containers of owner, or all containers when
// owner is empty.
func (s *Service) ListContainers(ctx context.Context, owner string) ([]*model.Container, error) {
	cs, err := s.catalog.ListContainers(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}
	return cs, nil
}

// UpdateContainer changes the summary, readonly flag or name of a
// container under its write lock. A rename moves the directory first and
// moves it back if the catalog update fails. A readonly container can only
// be renamed by an update that also clears the flag.
func (s *Service) UpdateContainer(ctx context.Context, name string, upd ContainerUpdate) (_ *model.Container, err error) {
	defer func() { recordWrite("container.update", err) }()

	c, err := s.resolveContainer(ctx, name)
	if err != nil {
		return nil, err
	}
	release, err := s.locks.Container(ctx, c.ID, lock.Write)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err = s.reloadContainer(ctx, c.ID, name)
	if err != nil {
		return nil, err
	}

	next := *c
	if upd.Summary != nil {
		next.Summary = *upd.Summary
	}
	if upd.Readonly != nil {
		next.Readonly = *upd.Readonly
	}
	next.UpdatedAt = s.clock.Now()

	renaming := upd.Name != nil && *upd.Name != c.Name
	if !renaming {
		if err := s.saveContainer(ctx, &next); err != nil {
			return nil, err
		}
		s.dispatch(ctx, Event{Kind: EventContainerUpdated, Container: &next})
		return &next, nil
	}

	if c.Readonly && next.Readonly {
		return nil, fmt.Errorf("%w: %q cannot be renamed", ErrReadonly, c.Name)
	}
	if err := ValidateName("container", *upd.Name); err != nil {
		return nil, err
	}
	next.Name = *upd.Name

	if err := s.renameContainer(ctx, c, &next); err != nil {
		return nil, err
	}

	s.logger.Info("container renamed", "from", c.Name, "to", next.Name)
	s.dispatch(ctx, Event{Kind: EventContainerUpdated, Container: &next, Previous: c.Name})
	return &next, nil
}

func (s *Service) saveContainer(ctx context.Context, c *model.Container) error {
	tx, err := s.catalog.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.UpdateContainer(ctx, c); err != nil {
		return fmt.Errorf("updating container: %w", err)
	}
	return tx.Commit()
}

func (s *Service) renameContainer(ctx context.Context, old, next *model.Container) error {
	oldDir := s.containerDir(old.Name)
	newDir := s.containerDir(next.Name)

	taken, err := s.store.IsDir(newDir)
	if err != nil {
		return fmt.Errorf("checking directory %s: %w", newDir, err)
	}
	if taken {
		return fmt.Errorf("%w: directory %s already exists", ErrConflict, newDir)
	}
	other, err := s.catalog.FindContainerByName(ctx, next.Name)
	if err != nil {
		return fmt.Errorf("checking container name: %w", err)
	}
	if other != nil {
		return fmt.Errorf("%w: container %q already exists", ErrConflict, next.Name)
	}

	items, err := s.catalog.ListItems(ctx, old.ID)
	if err != nil {
		return fmt.Errorf("listing items: %w", err)
	}

	if err := s.store.Rename(oldDir, newDir); err != nil {
		return writeError("renaming directory", oldDir, err)
	}

	if err := s.saveContainer(ctx, next); err != nil {
		s.compensate("rename-container-dir-back", func() error { return s.store.Rename(newDir, oldDir) },
			"from", newDir, "to", oldDir)
		return err
	}

	for _, it := range items {
		s.cache.Delete(s.headPath(old, it.Filename))
		s.cache.Delete(s.headPath(next, it.Filename))
	}
	return nil
}

// DeleteContainer removes a container, its items and every file they own.
// Missing files are skipped. Readonly containers cannot be deleted.
func (s *Service) DeleteContainer(ctx context.Context, name string) (err error) {
	defer func() { recordWrite("container.delete", err) }()

	c, err := s.resolveContainer(ctx, name)
	if err != nil {
		return err
	}
	release, err := s.locks.Container(ctx, c.ID, lock.Write)
	if err != nil {
		return err
	}
	defer release()

	c, err = s.reloadContainer(ctx, c.ID, name)
	if err != nil {
		return err
	}
	if err := writable(c); err != nil {
		return err
	}

	items, err := s.catalog.ListItems(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("listing items: %w", err)
	}
	for _, it := range items {
		if err := s.deleteItemFiles(ctx, c, it, false); err != nil {
			return err
		}
	}

	dir := s.containerDir(c.Name)
	if err := s.store.Rmdir(dir); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return writeError("removing directory", dir, err)
	}

	tx, err := s.catalog.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.DeleteContainer(ctx, c.ID); err != nil {
		return fmt.Errorf("deleting container: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info("container deleted", "container", c.Name, "items", len(items))
	s.dispatch(ctx, Event{Kind: EventContainerDeleted, Container: c})
	return nil
}
