package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// Key derives the deterministic idempotency key for a logical notification
// request. The data map is serialized with sorted keys so that two maps with
// the same contents always produce the same key regardless of insertion
// order.
func Key(userID, templateID string, data map[string]string) string {
	var sb strings.Builder
	sb.WriteString(userID)
	sb.WriteByte(0)
	sb.WriteString(templateID)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		sb.WriteByte(0)
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(data[k])
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
