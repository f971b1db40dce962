package domain

import "encoding/json"

// Stroke is a single committed drawing action. Created once on submit, never
// mutated; undo and cut markers hide it without deleting it.
type Stroke struct {
	ID              string          `json:"id"`
	RoomID          string          `json:"roomId"`
	UserID          string          `json:"userId"`
	Timestamp       int64           `json:"timestamp"`
	ServerTimestamp int64           `json:"serverTimestamp"`
	Payload         json.RawMessage `json:"payload"`
}

// Marker declares a stroke's current suppression state. For a given stroke,
// the marker with the greatest timestamp wins; mirror markers are never
// deleted, only superseded.
type Marker struct {
	ID        string `json:"id"`
	StrokeID  string `json:"strokeId"`
	RoomID    string `json:"roomId"`
	ActorID   string `json:"actorUserId"`
	Undone    bool   `json:"undone"`
	Timestamp int64  `json:"timestamp"`
}

// Watermark is the per-room (or global) clear boundary: strokes at or below
// Timestamp are hidden outside history mode.
type Watermark struct {
	RoomID    string `json:"roomId"`
	Timestamp int64  `json:"timestamp"`
	Counter   int64  `json:"counter"`
}

// Window selects a history-recall range. Presence of a window switches the
// read path into history mode, which ignores the clear watermark.
type Window struct {
	Since *int64
	Until *int64
}

// RoomSnapshot is a cached copy of a previously resolved room view. It is
// only valid while the effective watermark is unchanged.
type RoomSnapshot struct {
	Watermark int64    `json:"watermark"`
	Strokes   []Stroke `json:"strokes"`
}

type OpStatus string

const (
	StatusSuccess OpStatus = "success"
	StatusEmpty   OpStatus = "empty"
)
