package repository

import (
	"context"
	"encoding/json"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inklet/inklet"
	"github.com/inklet/inklet/internal/domain"
	"github.com/inklet/inklet/internal/infra/database/models"
)

// TransactionRepository mirrors every ledger commit into the document store.
// Rows are append-only: markers are superseded by timestamp, never deleted,
// so history recall and post-wipe recovery stay possible.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) InsertRecord(ctx context.Context, rec inklet.LedgerRecord) error {
	row := models.Transaction{
		TxID:      rec.ID,
		Kind:      rec.Kind,
		RefID:     rec.RefID,
		RoomID:    rec.RoomID,
		Timestamp: rec.Timestamp,
		Body:      string(rec.Body),
	}

	// idempotent by logical id: replayed commits are no-ops
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&row).Error
}

func (r *TransactionRepository) FindMarkersByRoom(ctx context.Context, roomID string) ([]domain.Marker, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("kind = ? AND room_id = ?", inklet.RecordKindMarker, roomID).
		Order("c_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	markers := make([]domain.Marker, 0, len(rows))
	for _, row := range rows {
		var m domain.Marker
		if err := json.Unmarshal([]byte(row.Body), &m); err != nil {
			continue
		}
		if m.StrokeID == "" {
			// legacy rows carry only the marker id
			if id, ok := inklet.StrokeIDFromMarkerID(row.RefID); ok {
				m.StrokeID = id
			}
		}
		markers = append(markers, m)
	}
	return markers, nil
}

func (r *TransactionRepository) FindMarkersByStroke(ctx context.Context, strokeID string) ([]domain.Marker, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("kind = ? AND ref_id = ?", inklet.RecordKindMarker, inklet.MarkerID(strokeID)).
		Order("c_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	markers := make([]domain.Marker, 0, len(rows))
	for _, row := range rows {
		var m domain.Marker
		if err := json.Unmarshal([]byte(row.Body), &m); err != nil {
			continue
		}
		markers = append(markers, m)
	}
	return markers, nil
}

func (r *TransactionRepository) LatestCounter(ctx context.Context) (int64, bool, error) {
	var row models.Transaction
	err := r.db.WithContext(ctx).
		Where("kind = ?", inklet.RecordKindCounter).
		Order("timestamp DESC").
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	value, err := strconv.ParseInt(row.Body, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (r *TransactionRepository) LatestWatermark(ctx context.Context, scope string) (domain.Watermark, bool, error) {
	var row models.Transaction
	err := r.db.WithContext(ctx).
		Where("kind = ? AND room_id = ?", inklet.RecordKindClear, scope).
		Order("timestamp DESC").
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Watermark{}, false, nil
	}
	if err != nil {
		return domain.Watermark{}, false, err
	}

	var wm domain.Watermark
	if err := json.Unmarshal([]byte(row.Body), &wm); err != nil {
		return domain.Watermark{}, false, err
	}
	return wm, true, nil
}
