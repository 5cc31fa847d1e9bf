package database

import (
	"fmt"
	"os"
	"path/filepath"

	"docvault/internal/config"
)

// CatalogFilename is the name of the catalog file inside the data dir.
const CatalogFilename = "catalog.db"

// NewCatalogFromConfig opens the catalog selected by the database config.
func NewCatalogFromConfig(cfg config.DatabaseConfig) (*SQLiteCatalog, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteCatalog(filepath.Join(cfg.DataDir, CatalogFilename))
	case "memory":
		return NewSQLiteCatalog(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
