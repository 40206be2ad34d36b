package inventory

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const keyPrefix = "inventory-"

// randomUUID is swapped in tests to exercise the fallback.
var randomUUID = uuid.NewRandom

// NewIdempotencyKey returns "inventory-" followed by a random UUID, or by a
// timestamp and random suffix if the system random source fails.
func NewIdempotencyKey() string {
	id, err := randomUUID()
	if err == nil {
		return keyPrefix + id.String()
	}
	return fallbackKey(time.Now())
}

func fallbackKey(now time.Time) string {
	return keyPrefix + strconv.FormatInt(now.UnixMilli(), 36) + "-" + strconv.FormatUint(rand.Uint64(), 36)
}

// DraftKey pairs an idempotency key with the hash it was issued for.
type DraftKey struct {
	Key         string `json:"key"`
	PayloadHash string `json:"payloadHash"`
}

// SyncDraftKey keeps current when it was issued for the same payload hash as
// next; otherwise it issues a new key bound to next's hash. changed reports
// whether a new key was issued.
func SyncDraftKey(current DraftKey, next Payload) (DraftKey, bool) {
	hash := PayloadHash(next)
	if current.Key != "" && current.PayloadHash == hash {
		return current, false
	}
	return DraftKey{Key: NewIdempotencyKey(), PayloadHash: hash}, true
}
