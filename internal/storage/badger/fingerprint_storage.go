package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/checkin/internal/interfaces"
)

// fingerprintKey is the single record holding the last balance fingerprint
const fingerprintKey = "balance_hash"

// fingerprintRecord is the stored form of the balance fingerprint
type fingerprintRecord struct {
	Key         string    `badgerhold:"key"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FingerprintStorage implements interfaces.FingerprintStore on Badger
type FingerprintStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFingerprintStorage creates a new FingerprintStorage instance
func NewFingerprintStorage(db *BadgerDB, logger arbor.ILogger) interfaces.FingerprintStore {
	return &FingerprintStorage{
		db:     db,
		logger: logger,
	}
}

// Load returns the stored fingerprint; ok is false when none was saved yet
func (s *FingerprintStorage) Load(ctx context.Context) (string, bool, error) {
	var record fingerprintRecord
	err := s.db.Store().Get(fingerprintKey, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get fingerprint: %w", err)
	}
	return record.Fingerprint, true, nil
}

// Save overwrites the stored fingerprint
func (s *FingerprintStorage) Save(ctx context.Context, fingerprint string) error {
	record := fingerprintRecord{
		Key:         fingerprintKey,
		Fingerprint: fingerprint,
		UpdatedAt:   time.Now(),
	}
	if err := s.db.Store().Upsert(fingerprintKey, &record); err != nil {
		return fmt.Errorf("failed to save fingerprint: %w", err)
	}

	s.logger.Debug().Str("fingerprint", fingerprint).Msg("Fingerprint saved")
	return nil
}

// Close closes the underlying database
func (s *FingerprintStorage) Close() error {
	return s.db.Close()
}
