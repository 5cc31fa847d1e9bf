package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"docvault/internal/dv"
	"docvault/internal/model"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the SQL of the catalog. It runs against the connection
// pool or a transaction depending on db.
type queries struct {
	db dbtx
}

const containerColumns = `id, owner, name, readonly, summary, created_at, updated_at`

const itemColumns = `id, container_id, filename, filesize, mimetype, checksum,
	latest_revision_number, summary, created_at, updated_at`

const revisionColumns = `id, item_id, creator, revision_number, uuid, filesize, checksum, created_at`

const thumbnailColumns = `id, item_id, uuid, extension, filesize, checksum, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanContainer(row scanner) (*model.Container, error) {
	var c model.Container
	err := row.Scan(&c.ID, &c.Owner, &c.Name, &c.Readonly, &c.Summary, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanItem(row scanner) (*model.Item, error) {
	var it model.Item
	err := row.Scan(&it.ID, &it.ContainerID, &it.Filename, &it.Filesize, &it.Mimetype, &it.Checksum,
		&it.LatestRevisionNumber, &it.Summary, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func scanRevision(row scanner) (*model.Revision, error) {
	var r model.Revision
	err := row.Scan(&r.ID, &r.ItemID, &r.Creator, &r.RevisionNumber, &r.UUID, &r.Filesize, &r.Checksum, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanThumbnail(row scanner) (*model.Thumbnail, error) {
	var t model.Thumbnail
	err := row.Scan(&t.ID, &t.ItemID, &t.UUID, &t.Extension, &t.Filesize, &t.Checksum, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// one runs a single-row query and maps sql.ErrNoRows to (nil, nil).
func one[T any](ctx context.Context, db dbtx, scan func(scanner) (*T, error), what, query string, args ...any) (*T, error) {
	v, err := scan(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", what, err)
	}
	return v, nil
}

func many[T any](ctx context.Context, db dbtx, scan func(scanner) (*T, error), what, query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", what, err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing %s: %w", what, err)
	}
	return out, nil
}

// exec runs a statement and classifies constraint violations.
func (q *queries) exec(ctx context.Context, what, query string, args ...any) (sql.Result, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(what, err)
	}
	return res, nil
}

// execOne is exec for statements that must touch exactly one row.
func (q *queries) execOne(ctx context.Context, what, query string, args ...any) error {
	res, err := q.exec(ctx, what, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, dv.ErrNotFound)
	}
	return nil
}

func classify(what string, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s: %w", dv.ErrConflict, what, err)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Containers

func (q *queries) FindContainerByID(ctx context.Context, id string) (*model.Container, error) {
	return one(ctx, q.db, scanContainer, "container",
		`SELECT `+containerColumns+` FROM containers WHERE id = ?`, id)
}

func (q *queries) FindContainerByName(ctx context.Context, name string) (*model.Container, error) {
	return one(ctx, q.db, scanContainer, "container",
		`SELECT `+containerColumns+` FROM containers WHERE name = ?`, name)
}

func (q *queries) ListContainers(ctx context.Context, owner string) ([]*model.Container, error) {
	if owner == "" {
		return many(ctx, q.db, scanContainer, "containers",
			`SELECT `+containerColumns+` FROM containers ORDER BY name`)
	}
	return many(ctx, q.db, scanContainer, "containers",
		`SELECT `+containerColumns+` FROM containers WHERE owner = ? ORDER BY name`, owner)
}

func (q *queries) InsertContainer(ctx context.Context, c *model.Container) error {
	_, err := q.exec(ctx, "inserting container",
		`INSERT INTO containers (`+containerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Owner, c.Name, c.Readonly, c.Summary, c.CreatedAt, c.UpdatedAt)
	return err
}

func (q *queries) UpdateContainer(ctx context.Context, c *model.Container) error {
	return q.execOne(ctx, "updating container",
		`UPDATE containers SET owner = ?, name = ?, readonly = ?, summary = ?, updated_at = ? WHERE id = ?`,
		c.Owner, c.Name, c.Readonly, c.Summary, c.UpdatedAt, c.ID)
}

func (q *queries) DeleteContainer(ctx context.Context, id string) error {
	return q.execOne(ctx, "deleting container", `DELETE FROM containers WHERE id = ?`, id)
}

// Items

func (q *queries) FindItem(ctx context.Context, containerID, filename string) (*model.Item, error) {
	return one(ctx, q.db, scanItem, "item",
		`SELECT `+itemColumns+` FROM items WHERE container_id = ? AND filename = ?`, containerID, filename)
}

func (q *queries) FindItemByID(ctx context.Context, id string) (*model.Item, error) {
	return one(ctx, q.db, scanItem, "item",
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
}

func (q *queries) ListItems(ctx context.Context, containerID string) ([]*model.Item, error) {
	return many(ctx, q.db, scanItem, "items",
		`SELECT `+itemColumns+` FROM items WHERE container_id = ? ORDER BY filename`, containerID)
}

func (q *queries) InsertItem(ctx context.Context, it *model.Item) error {
	_, err := q.exec(ctx, "inserting item",
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.ContainerID, it.Filename, it.Filesize, it.Mimetype, it.Checksum,
		it.LatestRevisionNumber, it.Summary, it.CreatedAt, it.UpdatedAt)
	return err
}

func (q *queries) UpdateItem(ctx context.Context, it *model.Item) error {
	return q.execOne(ctx, "updating item",
		`UPDATE items SET container_id = ?, filename = ?, filesize = ?, mimetype = ?, checksum = ?,
			latest_revision_number = ?, summary = ?, updated_at = ?
		WHERE id = ?`,
		it.ContainerID, it.Filename, it.Filesize, it.Mimetype, it.Checksum,
		it.LatestRevisionNumber, it.Summary, it.UpdatedAt, it.ID)
}

func (q *queries) DeleteItem(ctx context.Context, id string) error {
	return q.execOne(ctx, "deleting item", `DELETE FROM items WHERE id = ?`, id)
}

// Revisions

func (q *queries) ListRevisions(ctx context.Context, itemID string) ([]*model.Revision, error) {
	return many(ctx, q.db, scanRevision, "revisions",
		`SELECT `+revisionColumns+` FROM revisions WHERE item_id = ? ORDER BY revision_number`, itemID)
}

func (q *queries) FindRevision(ctx context.Context, itemID string, number int64) (*model.Revision, error) {
	return one(ctx, q.db, scanRevision, "revision",
		`SELECT `+revisionColumns+` FROM revisions WHERE item_id = ? AND revision_number = ?`, itemID, number)
}

func (q *queries) InsertRevision(ctx context.Context, r *model.Revision) error {
	_, err := q.exec(ctx, "inserting revision",
		`INSERT INTO revisions (`+revisionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ItemID, r.Creator, r.RevisionNumber, r.UUID, r.Filesize, r.Checksum, r.CreatedAt)
	return err
}

// Thumbnails

func (q *queries) FindThumbnail(ctx context.Context, itemID string) (*model.Thumbnail, error) {
	return one(ctx, q.db, scanThumbnail, "thumbnail",
		`SELECT `+thumbnailColumns+` FROM thumbnails WHERE item_id = ?`, itemID)
}

func (q *queries) InsertThumbnail(ctx context.Context, t *model.Thumbnail) error {
	_, err := q.exec(ctx, "inserting thumbnail",
		`INSERT INTO thumbnails (`+thumbnailColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ItemID, t.UUID, t.Extension, t.Filesize, t.Checksum, t.CreatedAt)
	return err
}

// DeleteThumbnail removes the thumbnail row of an item, if any.
func (q *queries) DeleteThumbnail(ctx context.Context, itemID string) error {
	_, err := q.exec(ctx, "deleting thumbnail", `DELETE FROM thumbnails WHERE item_id = ?`, itemID)
	return err
}

// Tags

func (q *queries) ListTags(ctx context.Context, itemID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT value FROM tags WHERE item_id = ? ORDER BY value`, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

func (q *queries) ReplaceTags(ctx context.Context, itemID string, tags []string) error {
	if _, err := q.exec(ctx, "clearing tags", `DELETE FROM tags WHERE item_id = ?`, itemID); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := q.exec(ctx, "inserting tag",
			`INSERT INTO tags (item_id, value) VALUES (?, ?)`, itemID, tag); err != nil {
			return err
		}
	}
	return nil
}
