package inklet

import (
	"encoding/json"
)

// Record kinds committed to the ledger and mirrored into the document store.
const (
	RecordKindStroke  string = "stroke"
	RecordKindMarker  string = "marker"
	RecordKindCounter string = "counter"
	RecordKindClear   string = "clear"
)

// LedgerRecord is an immutable record destined for the append-only ledger.
// ID is a content-derived logical id so that retried commits are idempotent
// where the backing service supports it.
type LedgerRecord struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	RefID     string          `json:"refId"`
	RoomID    string          `json:"roomId"`
	Timestamp int64           `json:"timestamp"`
	Body      json.RawMessage `json:"body"`
}

// CommitReceipt is the ledger service's answer to a commit.
type CommitReceipt struct {
	TransactionID string `json:"transactionId"`
}

// Event is published on the per-room signal channel after each mutation.
type Event struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	Body   json.RawMessage `json:"body,omitempty"`
}

type SubmitRequest struct {
	RoomID    string          `json:"roomId"`
	UserID    string          `json:"userId"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type SubmitResponse struct {
	ID              string `json:"id"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

type UndoRequest struct {
	UserID string `json:"userId"`
}

type OpResponse struct {
	Status string `json:"status"`
}

type ClearRequest struct {
	RoomID string `json:"roomId,omitempty"`
}

type WellKnownInklet struct {
	Version   string            `json:"version"`
	Name      string            `json:"name"`
	Endpoints map[string]string `json:"endpoints"`
}
