package vault

import (
	"context"
	"fmt"

	"docvault/internal/backup"
	"docvault/internal/config"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (backup.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(), nil
	case "s3":
		return NewS3VaultFromConfig(ctx, cfg)
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.FSVaultRoot)
	case "":
		return nil, fmt.Errorf("no backup vault configured")
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
