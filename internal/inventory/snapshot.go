package inventory

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nixlim/herd-top/internal/errors"
	"go.uber.org/zap"
)

// Snapshot is a submission attempt that received no response. PayloadHash
// always equals PayloadHash(Payload); build snapshots with NewSnapshot.
type Snapshot struct {
	FarmID         string    `json:"farmId"`
	IdempotencyKey string    `json:"idempotencyKey"`
	PayloadHash    string    `json:"payloadHash"`
	Payload        Payload   `json:"payload"`
	CreatedAt      time.Time `json:"createdAt"`
}

func NewSnapshot(farmID, idempotencyKey string, p Payload, createdAt time.Time) Snapshot {
	return Snapshot{
		FarmID:         farmID,
		IdempotencyKey: idempotencyKey,
		PayloadHash:    PayloadHash(p),
		Payload:        p,
		CreatedAt:      createdAt.UTC(),
	}
}

// DraftKey returns the key and hash the snapshot was taken with.
func (s Snapshot) DraftKey() DraftKey {
	return DraftKey{Key: s.IdempotencyKey, PayloadHash: s.PayloadHash}
}

func (s Snapshot) valid(farmID string) error {
	switch {
	case s.FarmID == "" || s.IdempotencyKey == "" || s.PayloadHash == "" || s.CreatedAt.IsZero():
		return errors.New("missing required fields")
	case s.FarmID != farmID:
		return errors.Newf("snapshot belongs to farm %q", s.FarmID)
	case s.PayloadHash != PayloadHash(s.Payload):
		return errors.New("payload hash does not match payload")
	}
	return nil
}

// KV is the scoped string store snapshots are persisted in.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// RetryKeyPrefix prefixes every persisted retry snapshot key.
const RetryKeyPrefix = "herd-top.inventory.retry."

func retryKey(farmID string) string {
	return RetryKeyPrefix + farmID
}

// RetryStore persists at most one snapshot per farm.
type RetryStore struct {
	kv     KV
	logger *zap.SugaredLogger
}

func NewRetryStore(kv KV, logger *zap.SugaredLogger) *RetryStore {
	return &RetryStore{kv: kv, logger: logger}
}

func (s *RetryStore) Save(snap Snapshot) error {
	if err := snap.valid(snap.FarmID); err != nil {
		return errors.Wrap(err, "refusing to save retry snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encoding retry snapshot")
	}
	if err := s.kv.Set(retryKey(snap.FarmID), string(data)); err != nil {
		return errors.Wrap(err, "saving retry snapshot")
	}
	s.logger.Infow("retry snapshot saved",
		"farm", snap.FarmID,
		"idempotency_key", snap.IdempotencyKey,
	)
	return nil
}

// Load returns the snapshot for farmID. Unreadable, malformed or mismatched
// records are treated as absent.
func (s *RetryStore) Load(farmID string) (Snapshot, bool) {
	raw, ok, err := s.kv.Get(retryKey(farmID))
	if err != nil {
		s.logger.Warnw("reading retry snapshot failed", "farm", farmID, "error", err)
		return Snapshot{}, false
	}
	if !ok {
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.logger.Warnw("ignoring malformed retry snapshot", "farm", farmID, "error", err)
		return Snapshot{}, false
	}
	if err := snap.valid(farmID); err != nil {
		s.logger.Warnw("ignoring invalid retry snapshot", "farm", farmID, "error", err)
		return Snapshot{}, false
	}
	return snap, true
}

func (s *RetryStore) Clear(farmID string) error {
	if err := s.kv.Delete(retryKey(farmID)); err != nil {
		return errors.Wrap(err, "clearing retry snapshot")
	}
	return nil
}

type keyLister interface {
	Keys(prefix string) ([]string, error)
}

// PendingFarms lists the farms holding a snapshot in this scope. Stores that
// cannot enumerate keys report none.
func (s *RetryStore) PendingFarms() ([]string, error) {
	kl, ok := s.kv.(keyLister)
	if !ok {
		return nil, nil
	}
	keys, err := kl.Keys(RetryKeyPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "listing retry snapshots")
	}
	farms := make([]string, 0, len(keys))
	for _, k := range keys {
		farms = append(farms, strings.TrimPrefix(k, RetryKeyPrefix))
	}
	return farms, nil
}
