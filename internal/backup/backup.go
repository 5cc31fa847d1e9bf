// Package backup snapshots the catalog, compresses and encrypts the
// snapshot and stores it in a vault.
package backup

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by vaults for a backup name they do not hold.
var ErrNotFound = errors.New("backup not found")

// Object describes a stored backup.
type Object struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Vault stores backup objects by name.
type Vault interface {
	// Put stores exactly size bytes read from r under name, replacing any
	// object with that name only once all bytes were received.
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	// Get writes the object to w. Missing objects wrap ErrNotFound.
	Get(ctx context.Context, name string, w io.Writer) error
	List(ctx context.Context) ([]Object, error)
	Delete(ctx context.Context, name string) error
	// ValidateSetup checks that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// Encryptor seals backups for a key pair protected by a passphrase.
type Encryptor interface {
	// Setup creates the key pair, protecting the private key with
	// passphrase.
	Setup(passphrase string) error
	IsConfigured() bool
	// Seal returns a writer that encrypts into w. Close must be called to
	// flush the final block.
	Seal(w io.Writer) (io.WriteCloser, error)
	// Unlock decrypts the private key.
	Unlock(passphrase string) (Opener, error)
}

// Opener decrypts sealed streams with an unlocked private key.
type Opener interface {
	Open(r io.Reader) (io.Reader, error)
}

// Snapshotter writes a consistent copy of the catalog to a new file.
type Snapshotter interface {
	BackupTo(ctx context.Context, dest string) error
}
