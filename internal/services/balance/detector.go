package balance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/models"
)

// FingerprintLength is the number of hex characters kept from the digest
const FingerprintLength = 16

// Fingerprint hashes the quota of every account in snapshot. Only quota is
// encoded, keyed by account key in sorted order, so account order and used
// quota never affect the result.
func Fingerprint(snapshot models.BalanceSnapshot) string {
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		encodedKey, _ := json.Marshal(key)
		b.Write(encodedKey)
		b.WriteByte(':')
		b.WriteString(models.FormatAmount(snapshot[key].Quota))
	}
	b.WriteByte('}')

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}

// Detector compares the current snapshot with the fingerprint of the previous run
type Detector struct {
	store  interfaces.FingerprintStore
	logger arbor.ILogger
}

// NewDetector creates a new balance change detector
func NewDetector(store interfaces.FingerprintStore, logger arbor.ILogger) *Detector {
	return &Detector{
		store:  store,
		logger: logger,
	}
}

// Evaluate reports whether balances changed since the last run and persists the
// new fingerprint. An empty snapshot is not compared and nothing is written.
// A save error is returned alongside a valid result.
func (d *Detector) Evaluate(ctx context.Context, snapshot models.BalanceSnapshot) (bool, string, error) {
	if len(snapshot) == 0 {
		d.logger.Debug().Msg("No balances fetched, skipping change detection")
		return false, "", nil
	}

	current := Fingerprint(snapshot)

	previous, ok, err := d.store.Load(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to load previous fingerprint, treating as first run")
		ok = false
	}

	changed := !ok || previous != current
	if !ok {
		d.logger.Info().Str("fingerprint", current).Msg("First run detected, will send notification with current balances")
	} else if changed {
		d.logger.Info().
			Str("previous", previous).
			Str("current", current).
			Msg("Balance changes detected, will send notification")
	} else {
		d.logger.Info().Msg("No balance changes detected")
	}

	if err := d.store.Save(ctx, current); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to save balance fingerprint")
		return changed, current, err
	}

	return changed, current, nil
}
