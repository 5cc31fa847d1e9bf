package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"docvault/internal/backup"
	"docvault/internal/cache"
	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migrations"
	"docvault/internal/dv"
	"docvault/internal/encryption"
	"docvault/internal/fs"
	"docvault/internal/hooks"
	"docvault/internal/lock"
	"docvault/internal/model"
	"docvault/internal/staging"
	"docvault/internal/thumbnail"
	"docvault/internal/vault"
)

// ErrNoVault is returned by backup operations when no vault is configured.
var ErrNoVault = errors.New("no backup vault configured")

// App is the application layer between the CLI and dv.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw arguments, and releases the catalog and log file on Close.
type App struct {
	cfg       *config.Config
	catalog   *database.SQLiteCatalog
	service   *dv.Service
	encryptor backup.Encryptor
	backups   *backup.Service // nil without a vault
	ignore    *fs.IgnoreMatcher
	log       dv.Logger
	op        *Operation
	logFile   *os.File
}

// New creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "put", "backup create").
// The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, operation string) (_ *App, err error) {
	clock := dv.RealClock{}
	op := NewOperation(operation, clock.Now())

	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	a := &App{cfg: cfg, log: log, op: op, logFile: logFile}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	for _, dir := range []string{cfg.Storage.ItemsRoot, cfg.Storage.RevisionsRoot, cfg.Storage.ThumbnailsRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage root: %w", err)
		}
	}

	a.catalog, err = database.NewCatalogFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	store, err := fs.NewOSByteStore(fs.Algorithm(cfg.Checksum.Algorithm))
	if err != nil {
		return nil, fmt.Errorf("creating byte store: %w", err)
	}

	area, err := staging.NewAreaFromConfig(cfg, dv.UUIDGenerator{}, clock, log)
	if err != nil {
		return nil, fmt.Errorf("creating staging area: %w", err)
	}
	if stale := cfg.Upload.StaleAfter.Duration; stale > 0 {
		if n, err := area.Sweep(stale); err != nil {
			log.Warn("orphan sweep failed", "error", err)
		} else if n > 0 {
			log.Info("removed orphaned uploads", "count", n)
		}
	}

	policy, err := dv.ParseRevisionPolicy(cfg.Revisions.Policy)
	if err != nil {
		return nil, err
	}

	dispatcher := hooks.NewDispatcher()
	dispatcher.OnAll(hooks.LogEvents(log))

	deps := dv.Deps{
		Catalog: a.catalog,
		Store:   store,
		Stager:  area,
		Locks:   lock.NewRegistry(),
		Hooks:   dispatcher,
		Logger:  log,
		Clock:   clock,
		IDs:     dv.UUIDGenerator{},
	}
	if cfg.Cache.MaxSize > 0 {
		c, err := cache.New(cfg.Cache.MaxSize, cfg.Cache.MaxEntrySize)
		if err != nil {
			return nil, fmt.Errorf("creating read cache: %w", err)
		}
		deps.Cache = c
	}
	if cfg.Thumbnail.Enabled {
		r, err := thumbnail.NewRenderer(cfg.Thumbnail.Width, cfg.Thumbnail.Height, cfg.Thumbnail.Quality)
		if err != nil {
			return nil, fmt.Errorf("creating thumbnail renderer: %w", err)
		}
		deps.Thumbnailer = r
	}
	a.service = dv.NewService(dv.Options{
		Roots: dv.Roots{
			Items:      cfg.Storage.ItemsRoot,
			Revisions:  cfg.Storage.RevisionsRoot,
			Thumbnails: cfg.Storage.ThumbnailsRoot,
		},
		Policy: policy,
	}, deps)

	patterns, err := fs.ParseIgnoreFile(filepath.Join(cfg.Storage.ItemsRoot, fs.IgnoreFilename))
	if err != nil {
		return nil, err
	}
	a.ignore, err = fs.NewIgnoreMatcher(append(patterns, cfg.Check.Ignore...))
	if err != nil {
		return nil, err
	}

	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if cfg.Backup.Vault.Type != "" {
		v, err := vault.NewVaultFromConfig(ctx, cfg.Backup.Vault)
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
		a.backups = backup.NewService(a.catalog, v, a.encryptor, cfg.Storage.TemporaryRoot, clock, log)
	}

	log.Debug("operation started", "operation", op.Name)
	return a, nil
}

// track records a failed operation so Close can report it.
func (a *App) track(err error) error {
	if err != nil {
		a.op.Fail(err)
	}
	return err
}

// Service exposes the vault service for read-only callers.
func (a *App) Service() *dv.Service {
	return a.service
}

func (a *App) CreateContainer(ctx context.Context, owner, name, summary string, readonly bool) (*model.Container, error) {
	c, err := a.service.CreateContainer(ctx, dv.NewContainer{
		Owner:    owner,
		Name:     name,
		Summary:  summary,
		Readonly: readonly,
	})
	return c, a.track(err)
}

// ListContainers returns the containers of owner, or all containers when
// owner is empty.
func (a *App) ListContainers(ctx context.Context, owner string) ([]*model.Container, error) {
	cs, err := a.service.ListContainers(ctx, owner)
	return cs, a.track(err)
}

// UpdateContainer renames a container and/or changes its metadata.
func (a *App) UpdateContainer(ctx context.Context, name string, upd dv.ContainerUpdate) (*model.Container, error) {
	c, err := a.service.UpdateContainer(ctx, name, upd)
	return c, a.track(err)
}

func (a *App) DeleteContainer(ctx context.Context, name string) error {
	return a.track(a.service.DeleteContainer(ctx, name))
}

// PutFile uploads the local file at rawPath into container. An empty
// filename uses the base name of rawPath.
func (a *App) PutFile(ctx context.Context, container, rawPath, filename, creator string, tags []string) (*dv.PutResult, error) {
	p, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, a.track(fmt.Errorf("resolving path: %w", err))
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, a.track(fmt.Errorf("opening %s: %w", rawPath, err))
	}
	defer f.Close()

	if filename == "" {
		filename = filepath.Base(p)
	}
	return a.Put(ctx, dv.PutParams{
		Container: container,
		Filename:  filename,
		Content:   f,
		Creator:   creator,
		Tags:      tags,
	})
}

// Put uploads p.Content as-is.
func (a *App) Put(ctx context.Context, p dv.PutParams) (*dv.PutResult, error) {
	res, err := a.service.Put(ctx, p)
	return res, a.track(err)
}

// Export writes the verified bytes of an item head, or of revision number
// when it is positive, to w.
func (a *App) Export(ctx context.Context, container, filename string, revision int64, w io.Writer) error {
	var data []byte
	var err error
	if revision > 0 {
		data, _, err = a.service.ReadRevision(ctx, container, filename, revision)
	} else {
		data, _, err = a.service.ReadItem(ctx, container, filename)
	}
	if err != nil {
		return a.track(err)
	}
	if _, err := w.Write(data); err != nil {
		return a.track(fmt.Errorf("writing output: %w", err))
	}
	return nil
}

// ExportThumbnail writes the verified thumbnail of an item to w.
func (a *App) ExportThumbnail(ctx context.Context, container, filename string, w io.Writer) error {
	data, _, err := a.service.ReadThumbnail(ctx, container, filename)
	if err != nil {
		return a.track(err)
	}
	if _, err := w.Write(data); err != nil {
		return a.track(fmt.Errorf("writing output: %w", err))
	}
	return nil
}

func (a *App) DeleteItem(ctx context.Context, container, filename string) error {
	return a.track(a.service.DeleteItem(ctx, container, filename))
}

// MoveItem renames an item and/or moves it to another container.
func (a *App) MoveItem(ctx context.Context, p dv.MoveParams) (*model.Item, error) {
	it, err := a.service.MoveItem(ctx, p)
	return it, a.track(err)
}

// Describe returns an item with its tags, thumbnail and revisions.
func (a *App) Describe(ctx context.Context, container, filename string) (*dv.ItemDetails, error) {
	d, err := a.service.DescribeItem(ctx, container, filename)
	return d, a.track(err)
}

func (a *App) ListItems(ctx context.Context, container string) ([]*model.Item, error) {
	items, err := a.service.ListItems(ctx, container)
	return items, a.track(err)
}

// RestoreRevision makes revision number the new head of an item.
func (a *App) RestoreRevision(ctx context.Context, container, filename string, number int64, creator string) (*dv.PutResult, error) {
	res, err := a.service.RestoreRevision(ctx, container, filename, number, creator)
	return res, a.track(err)
}

// UpdateItem changes the summary and/or tags of an item.
func (a *App) UpdateItem(ctx context.Context, container, filename string, upd dv.ItemUpdate) (*model.Item, error) {
	it, err := a.service.UpdateItem(ctx, container, filename, upd)
	return it, a.track(err)
}

func (a *App) Tags(ctx context.Context, container, filename string) ([]string, error) {
	tags, err := a.service.Tags(ctx, container, filename)
	return tags, a.track(err)
}

// Check verifies the vault, skipping untracked files matched by the
// configured ignore patterns.
func (a *App) Check(ctx context.Context) ([]dv.Problem, error) {
	problems, err := a.service.Check(ctx, dv.CheckOptions{Ignore: a.ignore.Match})
	return problems, a.track(err)
}

// SetupKeys generates the backup encryption keys.
func (a *App) SetupKeys(passphrase string) error {
	return a.track(a.encryptor.Setup(passphrase))
}

func (a *App) backupService() (*backup.Service, error) {
	if a.backups == nil {
		return nil, a.track(ErrNoVault)
	}
	return a.backups, nil
}

// CreateBackup stores an encrypted snapshot of the catalog in the vault.
func (a *App) CreateBackup(ctx context.Context) (*backup.Object, error) {
	b, err := a.backupService()
	if err != nil {
		return nil, err
	}
	obj, err := b.Create(ctx)
	return obj, a.track(err)
}

// ListBackups returns the catalog backups in the vault, newest first.
func (a *App) ListBackups(ctx context.Context) ([]backup.Object, error) {
	b, err := a.backupService()
	if err != nil {
		return nil, err
	}
	objs, err := b.List(ctx)
	return objs, a.track(err)
}

// PruneBackups keeps the newest keep backups and deletes the rest.
func (a *App) PruneBackups(ctx context.Context, keep int) ([]string, error) {
	b, err := a.backupService()
	if err != nil {
		return nil, err
	}
	deleted, err := b.Prune(ctx, keep)
	return deleted, a.track(err)
}

// RestoreBackup writes backup name to rawDest, which must not exist. The
// live catalog is never touched.
func (a *App) RestoreBackup(ctx context.Context, name, passphrase, rawDest string) (string, error) {
	b, err := a.backupService()
	if err != nil {
		return "", err
	}
	dest, err := filepath.Abs(rawDest)
	if err != nil {
		return "", a.track(fmt.Errorf("resolving path: %w", err))
	}
	return dest, a.track(b.Restore(ctx, name, passphrase, dest))
}

// CatalogStatus reports the schema version of the catalog.
func (a *App) CatalogStatus() (migrations.Status, error) {
	st, err := a.catalog.MigrationStatus()
	return st, a.track(err)
}

// CatalogSchema returns the DDL of the catalog.
func (a *App) CatalogSchema(ctx context.Context) (string, error) {
	s, err := a.catalog.Schema(ctx)
	return s, a.track(err)
}

// Close finishes the operation record and closes all resources.
func (a *App) Close() error {
	a.log.Info("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", a.op.Elapsed(time.Now()).Round(time.Millisecond).String())
	return a.release()
}

func (a *App) release() error {
	var firstErr error
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			firstErr = fmt.Errorf("closing catalog: %w", err)
		}
		a.catalog = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return firstErr
}
