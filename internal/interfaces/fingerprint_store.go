package interfaces

import "context"

// FingerprintStore persists the balance fingerprint between runs
type FingerprintStore interface {
	// Load returns the previous fingerprint; ok is false on the first run
	Load(ctx context.Context) (fingerprint string, ok bool, err error)

	// Save overwrites the stored fingerprint
	Save(ctx context.Context, fingerprint string) error

	// Close releases the underlying storage
	Close() error
}
