package domain

// Fast-cache key layout. The stack and watermark keys exist in several
// generations; readers try the candidates in order and writers keep the
// legacy names populated where older clients still look for them.
const (
	CounterKey = "strokecounter"

	StrokeKeyPrefix = "stroke-"

	MarkerKeyPrefix       = "undo-"
	LegacyRedoMarkerKey   = "redo-"
	UndoStackPrefix       = "undostack-"
	RedoStackPrefix       = "redostack-"
	WatermarkKeyPrefix    = "clearwatermark-"
	LegacyWatermarkPrefix = "lastclear-"

	GlobalScope = "global"
)

// StackKeyCandidates returns the cache keys a stack may live under, current
// naming first. Lookups use the first non-empty candidate; writes always go
// to the first.
func StackKeyCandidates(prefix, roomID, userID string) []string {
	return []string{
		prefix + roomID + "-" + userID,
		prefix + userID + "-" + roomID,
		prefix + userID,
	}
}

// StrokeKey is the cache key for a stroke record.
func StrokeKey(strokeID string) string {
	return StrokeKeyPrefix + strokeID
}

// WatermarkKeys returns the primary and legacy cache keys for a scope's
// clear watermark.
func WatermarkKeys(scope string) (string, string) {
	return WatermarkKeyPrefix + scope, LegacyWatermarkPrefix + scope
}
