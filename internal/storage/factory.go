package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/storage/badger"
	"github.com/ternarybob/checkin/internal/storage/file"
)

// NewFingerprintStore creates the fingerprint store selected by config.Storage.Type
func NewFingerprintStore(logger arbor.ILogger, config *common.Config) (interfaces.FingerprintStore, error) {
	switch config.Storage.Type {
	case "", "file":
		logger.Debug().Str("path", config.Storage.File.Path).Msg("Using file fingerprint storage")
		return file.NewFingerprintStorage(config.Storage.File.Path, logger), nil
	case "badger":
		db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
		if err != nil {
			return nil, err
		}
		return badger.NewFingerprintStorage(db, logger), nil
	default:
		return nil, fmt.Errorf("%w: unsupported storage type: %s (use 'file' or 'badger')", common.ErrConfig, config.Storage.Type)
	}
}
