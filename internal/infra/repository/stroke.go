package repository

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inklet/inklet/internal/domain"
	"github.com/inklet/inklet/internal/infra/database/models"
)

// StrokeRepository holds the mirror store's full stroke records. The mirror
// is the system of record when the cache is empty.
type StrokeRepository struct {
	db *gorm.DB
}

func NewStrokeRepository(db *gorm.DB) *StrokeRepository {
	return &StrokeRepository{db: db}
}

func (r *StrokeRepository) Insert(ctx context.Context, stroke domain.Stroke) error {
	row := models.Stroke{
		ID:              stroke.ID,
		RoomID:          stroke.RoomID,
		UserID:          stroke.UserID,
		Timestamp:       stroke.Timestamp,
		ServerTimestamp: stroke.ServerTimestamp,
		Payload:         string(stroke.Payload),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&row).Error
}

func (r *StrokeRepository) FindByRoom(ctx context.Context, roomID string) ([]domain.Stroke, error) {
	var rows []models.Stroke
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	strokes := make([]domain.Stroke, 0, len(rows))
	for _, row := range rows {
		strokes = append(strokes, strokeFromModel(row))
	}
	return strokes, nil
}

func (r *StrokeRepository) FindByID(ctx context.Context, id string) (domain.Stroke, error) {
	var row models.Stroke
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Stroke{}, domain.NotFoundError{Resource: "stroke"}
	}
	if err != nil {
		return domain.Stroke{}, err
	}
	return strokeFromModel(row), nil
}

func strokeFromModel(row models.Stroke) domain.Stroke {
	return domain.Stroke{
		ID:              row.ID,
		RoomID:          row.RoomID,
		UserID:          row.UserID,
		Timestamp:       row.Timestamp,
		ServerTimestamp: row.ServerTimestamp,
		Payload:         json.RawMessage(row.Payload),
	}
}
