package inklet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

const markerPrefix = "undo-"

// GetHash returns a short stable content hash, used for idempotent ledger
// record ids and synthesized placeholder stroke ids.
func GetHash(b []byte) string {
	h := xxh3.Hash128(b)
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// RecordID derives the logical ledger id for a record from its content.
func RecordID(kind string, body []byte) string {
	return kind + "-" + GetHash(body)
}

// MarkerID composes the marker id for a stroke. The same slot is reused for
// redo state; readers must be able to recover the stroke id from this alone.
func MarkerID(strokeID string) string {
	return markerPrefix + strokeID
}

// StrokeIDFromMarkerID recovers the target stroke id from a marker id.
func StrokeIDFromMarkerID(markerID string) (string, bool) {
	if !strings.HasPrefix(markerID, markerPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(markerID, markerPrefix)
	return id, id != ""
}

// FormatStrokeID renders an allocator-issued counter value as a stroke id.
func FormatStrokeID(n int64) string {
	return strconv.FormatInt(n, 10)
}
