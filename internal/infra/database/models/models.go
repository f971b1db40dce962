package models

import (
	"time"
)

// Stroke is the mirror store's full copy of a submitted stroke.
type Stroke struct {
	ID              string    `json:"id" gorm:"primaryKey;type:text"`
	RoomID          string    `json:"roomId" gorm:"type:text;index"`
	UserID          string    `json:"userId" gorm:"type:text;index"`
	Timestamp       int64     `json:"timestamp" gorm:"index"`
	ServerTimestamp int64     `json:"serverTimestamp"`
	Payload         string    `json:"payload" gorm:"type:text"`
	CDate           time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// Transaction is the append-only mirror of a ledger commit: undo/redo
// markers, counter checkpoints and clear watermarks. Rows are never updated
// or deleted, only superseded by newer rows.
type Transaction struct {
	TxID      string    `json:"txId" gorm:"primaryKey;type:text"`
	Kind      string    `json:"kind" gorm:"type:text;index"`
	RefID     string    `json:"refId" gorm:"type:text;index"`
	RoomID    string    `json:"roomId" gorm:"type:text;index"`
	Timestamp int64     `json:"timestamp" gorm:"index"`
	Body      string    `json:"body" gorm:"type:text"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
