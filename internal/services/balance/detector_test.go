package balance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/models"
)

// memoryStore is an in-memory FingerprintStore
type memoryStore struct {
	value   string
	ok      bool
	saves   int
	loadErr error
	saveErr error
}

func (s *memoryStore) Load(ctx context.Context) (string, bool, error) {
	return s.value, s.ok, s.loadErr
}

func (s *memoryStore) Save(ctx context.Context, fingerprint string) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.value, s.ok = fingerprint, true
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}

func TestFingerprint(t *testing.T) {
	snapshot := models.BalanceSnapshot{
		"account_1": {Quota: 50, Used: 3},
		"account_2": {Quota: 12.5, Used: 0},
	}

	fp := Fingerprint(snapshot)
	assert.Len(t, fp, FingerprintLength)
	assert.Equal(t, fp, Fingerprint(snapshot), "fingerprint is deterministic")

	// Map order carries no meaning; rebuild in reverse insertion order
	reordered := models.BalanceSnapshot{}
	reordered["account_2"] = snapshot["account_2"]
	reordered["account_1"] = snapshot["account_1"]
	assert.Equal(t, fp, Fingerprint(reordered))

	usedOnly := models.BalanceSnapshot{
		"account_1": {Quota: 50, Used: 99},
		"account_2": {Quota: 12.5, Used: 7},
	}
	assert.Equal(t, fp, Fingerprint(usedOnly), "used quota does not affect the fingerprint")

	quotaChanged := models.BalanceSnapshot{
		"account_1": {Quota: 49.99, Used: 3},
		"account_2": {Quota: 12.5, Used: 0},
	}
	assert.NotEqual(t, fp, Fingerprint(quotaChanged))
}

func TestFingerprintEncoding(t *testing.T) {
	// sha256(`{"account_1":50.0}`), matching fingerprints written by earlier releases
	assert.Equal(t, "8b601689669478dd", Fingerprint(models.BalanceSnapshot{"account_1": {Quota: 50}}))
	assert.Equal(t, "eafa1033eb8fad49", Fingerprint(models.BalanceSnapshot{
		"account_2": {Quota: 0.25},
		"account_1": {Quota: 12.5},
	}))
	assert.Equal(t, "c96ae66b75d76dad", Fingerprint(models.BalanceSnapshot{
		"account_1": {Quota: models.ScaleQuota(62500)},
	}))
}

func TestEvaluateFirstRun(t *testing.T) {
	store := &memoryStore{}
	detector := NewDetector(store, arbor.NewLogger())
	snapshot := models.BalanceSnapshot{"account_1": {Quota: 50}}

	changed, fp, err := detector.Evaluate(context.Background(), snapshot)
	require.NoError(t, err)
	assert.True(t, changed, "first run always counts as changed")
	assert.Equal(t, Fingerprint(snapshot), fp)
	assert.Equal(t, fp, store.value)

	changed, _, err = detector.Evaluate(context.Background(), snapshot)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, store.saves, "fingerprint is persisted on every evaluation")

	changed, _, err = detector.Evaluate(context.Background(), models.BalanceSnapshot{"account_1": {Quota: 60}})
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestEvaluateEmptySnapshot(t *testing.T) {
	store := &memoryStore{value: "previous", ok: true}
	detector := NewDetector(store, arbor.NewLogger())

	changed, fp, err := detector.Evaluate(context.Background(), models.BalanceSnapshot{})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, fp)
	assert.Equal(t, 0, store.saves)
	assert.Equal(t, "previous", store.value)
}

func TestEvaluateStoreErrors(t *testing.T) {
	snapshot := models.BalanceSnapshot{"account_1": {Quota: 50}}

	store := &memoryStore{value: Fingerprint(snapshot), ok: true, loadErr: errors.New("disk gone")}
	changed, _, err := NewDetector(store, arbor.NewLogger()).Evaluate(context.Background(), snapshot)
	require.NoError(t, err)
	assert.True(t, changed, "unreadable history is treated as a first run")

	store = &memoryStore{saveErr: errors.New("read-only")}
	changed, fp, err := NewDetector(store, arbor.NewLogger()).Evaluate(context.Background(), snapshot)
	assert.Error(t, err)
	assert.True(t, changed)
	assert.NotEmpty(t, fp)
}
