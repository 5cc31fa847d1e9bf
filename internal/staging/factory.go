package staging

import (
	"docvault/internal/config"
	"docvault/internal/dv"
	"docvault/internal/fs"
)

// NewAreaFromConfig creates the staging area under the configured
// temporary root, hashing with the configured checksum algorithm.
func NewAreaFromConfig(cfg *config.Config, idgen dv.IDGenerator, clock dv.Clock, logger dv.Logger) (*Area, error) {
	newHash, err := fs.NewHasher(fs.Algorithm(cfg.Checksum.Algorithm))
	if err != nil {
		return nil, err
	}
	return NewArea(cfg.Storage.TemporaryRoot, cfg.Upload.MaxSize, newHash, idgen, clock, logger)
}
