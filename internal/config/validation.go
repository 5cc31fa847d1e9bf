package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags first, then the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	roots := map[string]string{
		"items_root":      cfg.Storage.ItemsRoot,
		"revisions_root":  cfg.Storage.RevisionsRoot,
		"thumbnails_root": cfg.Storage.ThumbnailsRoot,
		"temporary_root":  cfg.Storage.TemporaryRoot,
	}
	seen := make(map[string]string, len(roots))
	for _, key := range []string{"items_root", "revisions_root", "thumbnails_root", "temporary_root"} {
		p := filepath.Clean(roots[key])
		if other, ok := seen[p]; ok {
			return fmt.Errorf("storage: %s and %s must differ", other, key)
		}
		seen[p] = key
	}

	if cfg.Cache.MaxSize > 0 && cfg.Cache.MaxEntrySize > cfg.Cache.MaxSize {
		return fmt.Errorf("cache: max_entry_size (%d) exceeds max_size (%d)", cfg.Cache.MaxEntrySize, cfg.Cache.MaxSize)
	}
	if cfg.Upload.StaleAfter.Duration < 0 {
		return fmt.Errorf("upload: stale_after must not be negative")
	}

	for i, p := range cfg.Check.Ignore {
		if _, err := filepath.Match(p, ""); errors.Is(err, filepath.ErrBadPattern) {
			return fmt.Errorf("check.ignore[%d]: invalid pattern %q", i, p)
		}
	}

	if cfg.Encryption.Type != "test" && cfg.Backup.Vault.Type != "" {
		if cfg.Encryption.PublicKeyPath == "" || cfg.Encryption.PrivateKeyPath == "" {
			return fmt.Errorf("encryption: key paths are required when a backup vault is configured")
		}
	}
	return nil
}

// formatValidationError reports the first failed field in config terms.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
