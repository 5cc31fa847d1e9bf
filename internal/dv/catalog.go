package dv

import (
	"context"

	"docvault/internal/model"
)

// CatalogReader exposes the lookups shared by the catalog and its
// transactions. Lookups of a single row return (nil, nil) when the row
// does not exist.
type CatalogReader interface {
	FindContainerByID(ctx context.Context, id string) (*model.Container, error)
	FindContainerByName(ctx context.Context, name string) (*model.Container, error)
	// ListContainers returns the containers of owner, or every container
	// when owner is empty, ordered by name.
	ListContainers(ctx context.Context, owner string) ([]*model.Container, error)

	FindItem(ctx context.Context, containerID, filename string) (*model.Item, error)
	FindItemByID(ctx context.Context, id string) (*model.Item, error)
	// ListItems returns the items of a container ordered by filename.
	ListItems(ctx context.Context, containerID string) ([]*model.Item, error)

	// ListRevisions returns the revisions of an item by ascending number.
	ListRevisions(ctx context.Context, itemID string) ([]*model.Revision, error)
	FindRevision(ctx context.Context, itemID string, number int64) (*model.Revision, error)

	FindThumbnail(ctx context.Context, itemID string) (*model.Thumbnail, error)

	// ListTags returns the tags of an item in lexical order.
	ListTags(ctx context.Context, itemID string) ([]string, error)
}

// Tx is a catalog transaction. Writes are staged until Commit. Rollback
// after Commit is a no-op, so callers defer it unconditionally.
//
// While a Tx is open, all catalog access must go through it: the catalog
// may serialize transactions on a single connection.
type Tx interface {
	CatalogReader

	InsertContainer(ctx context.Context, c *model.Container) error
	UpdateContainer(ctx context.Context, c *model.Container) error
	DeleteContainer(ctx context.Context, id string) error

	InsertItem(ctx context.Context, item *model.Item) error
	UpdateItem(ctx context.Context, item *model.Item) error
	DeleteItem(ctx context.Context, id string) error

	InsertRevision(ctx context.Context, rev *model.Revision) error

	InsertThumbnail(ctx context.Context, thumb *model.Thumbnail) error
	DeleteThumbnail(ctx context.Context, itemID string) error

	// ReplaceTags replaces the whole tag set of an item.
	ReplaceTags(ctx context.Context, itemID string, tags []string) error

	Commit() error
	Rollback() error
}

// Catalog is the relational store of containers, items, revisions,
// thumbnails and tags. Unique constraint violations are reported as
// ErrConflict.
type Catalog interface {
	CatalogReader
	Begin(ctx context.Context) (Tx, error)
}
