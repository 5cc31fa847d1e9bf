package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for docvault.
type Config struct {
	BaseDir    string           `toml:"base_dir" validate:"required"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Storage    StorageConfig    `toml:"storage"`
	Database   DatabaseConfig   `toml:"database"`
	Cache      CacheConfig      `toml:"cache"`
	Upload     UploadConfig     `toml:"upload"`
	Thumbnail  ThumbnailConfig  `toml:"thumbnail"`
	Checksum   ChecksumConfig   `toml:"checksum"`
	Revisions  RevisionsConfig  `toml:"revisions"`
	Check      CheckConfig      `toml:"check"`
	Backup     BackupConfig     `toml:"backup"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// StorageConfig holds the directories files are kept under. The roots must
// be distinct and on one filesystem so renames between them are atomic.
type StorageConfig struct {
	ItemsRoot      string `toml:"items_root" validate:"required"`
	RevisionsRoot  string `toml:"revisions_root" validate:"required"`
	ThumbnailsRoot string `toml:"thumbnails_root" validate:"required"`
	TemporaryRoot  string `toml:"temporary_root" validate:"required"`
}

// DatabaseConfig represents configuration for the catalog database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"` // only used for type=sqlite
}

// CacheConfig bounds the read cache in bytes. MaxSize 0 disables it.
type CacheConfig struct {
	MaxSize      int64 `toml:"max_size" validate:"gte=0"`
	MaxEntrySize int64 `toml:"max_entry_size" validate:"gte=0"`
}

// UploadConfig limits uploads and controls the startup sweep of abandoned
// staged files.
type UploadConfig struct {
	MaxSize    int64    `toml:"max_size" validate:"gte=0"` // 0 means unlimited
	StaleAfter Duration `toml:"stale_after"`
}

// ThumbnailConfig sets the bounding box and JPEG quality of previews.
type ThumbnailConfig struct {
	Enabled bool `toml:"enabled"`
	Width   int  `toml:"width" validate:"required_if=Enabled true,gte=0,lte=4096"`
	Height  int  `toml:"height" validate:"required_if=Enabled true,gte=0,lte=4096"`
	Quality int  `toml:"quality" validate:"required_if=Enabled true,gte=0,lte=100"`
}

type ChecksumConfig struct {
	Algorithm string `toml:"algorithm" validate:"oneof=sha256 blake3"`
}

type RevisionsConfig struct {
	Policy string `toml:"policy" validate:"oneof=skip-identical always"`
}

// CheckConfig holds extra ignore patterns for the integrity check.
type CheckConfig struct {
	Ignore []string `toml:"ignore"`
}

// BackupConfig selects where catalog backups are stored.
type BackupConfig struct {
	Vault VaultConfig `toml:"vault"`
}

// VaultConfig represents configuration for a backup vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
// An empty Type disables backups.
type VaultConfig struct {
	Type string `toml:"type" validate:"omitempty,oneof=memory s3 filesystem"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"`
	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty" validate:"required_with=S3AccessKeyID"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty" validate:"required_if=Type filesystem"`
}

// EncryptionConfig holds paths to the age key pair used for backups.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"omitempty,oneof=age test"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// Duration is a time.Duration written as a string such as "24h".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// NewConfig creates a Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Storage: StorageConfig{
			ItemsRoot:      filepath.Join(baseDir, "items"),
			RevisionsRoot:  filepath.Join(baseDir, "revisions"),
			ThumbnailsRoot: filepath.Join(baseDir, "thumbnails"),
			TemporaryRoot:  filepath.Join(baseDir, "tmp"),
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Cache:    CacheConfig{MaxSize: 64 << 20, MaxEntrySize: 4 << 20},
		Upload:   UploadConfig{MaxSize: 1 << 30, StaleAfter: Duration{24 * time.Hour}},
		Thumbnail: ThumbnailConfig{
			Enabled: true,
			Width:   256,
			Height:  256,
			Quality: 85,
		},
		Checksum:  ChecksumConfig{Algorithm: "sha256"},
		Revisions: RevisionsConfig{Policy: "skip-identical"},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "docvault.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "docvault.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init validates cfg and writes it to a new config file at path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
