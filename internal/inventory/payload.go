// Package inventory makes inventory movement submissions safe to retry.
//
// A payload is reduced to a normalized form and hashed. The same hash keeps
// the same idempotency key; any change to the hash rotates it. After a
// submission that got no response, a snapshot of the attempt is persisted so
// it can be retried with the original key.
package inventory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	TypeEntry      = "ENTRY"
	TypeExit       = "EXIT"
	TypeAdjustment = "ADJUSTMENT"

	DirectionIncrease = "INCREASE"
	DirectionDecrease = "DECREASE"
)

// Payload is the movement form as typed by the user.
type Payload struct {
	Type            string `json:"type,omitempty"`
	ItemID          string `json:"itemId,omitempty"`
	LotID           string `json:"lotId,omitempty"`
	Quantity        string `json:"quantity,omitempty"`
	AdjustDirection string `json:"adjustDirection,omitempty"`
	Reason          string `json:"reason,omitempty"`
	MovementDate    string `json:"movementDate,omitempty"`
}

// Normalize trims every field, drops empty ones, upper-cases the enums and
// rewrites the quantity in canonical decimal form. AdjustDirection is only
// kept for ADJUSTMENT movements.
func Normalize(p Payload) map[string]string {
	out := make(map[string]string, 7)
	put := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			out[key] = value
		}
	}

	typ := strings.ToUpper(strings.TrimSpace(p.Type))
	put("type", typ)
	put("itemId", p.ItemID)
	put("lotId", p.LotID)
	put("quantity", canonicalDecimal(p.Quantity))
	if typ == TypeAdjustment {
		put("adjustDirection", strings.ToUpper(p.AdjustDirection))
	}
	put("reason", p.Reason)
	put("movementDate", p.MovementDate)

	return out
}

// canonicalDecimal turns "2.0", "02" and "2,0" into "2". Input that is not a
// number is returned trimmed so the backend can reject it.
func canonicalDecimal(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	candidate := s
	if strings.Contains(candidate, ",") && !strings.Contains(candidate, ".") {
		candidate = strings.Replace(candidate, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(candidate, 64)
	if err != nil {
		return s
	}
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// PayloadHash is the hex SHA-256 of the normalized payload encoded as JSON.
// encoding/json sorts map keys, so the encoding is deterministic.
func PayloadHash(p Payload) string {
	data, _ := json.Marshal(Normalize(p))
	return hashBytes(data)
}

func hashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// RequestBody is the normalized payload with a numeric quantity, ready to
// post to the backend.
func RequestBody(p Payload) map[string]any {
	norm := Normalize(p)
	body := make(map[string]any, len(norm))
	for k, v := range norm {
		body[k] = v
	}
	if q, ok := norm["quantity"]; ok {
		if _, err := strconv.ParseFloat(q, 64); err == nil {
			body["quantity"] = json.Number(q)
		}
	}
	return body
}
