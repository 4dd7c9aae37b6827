package repository

import (
	"context"
	"fmt"
	"time"

	"workshopdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParticipantTotals is the raw attendance aggregate; Revenue is a decimal string
type ParticipantTotals struct {
	Total     int64
	Paid      int64
	CheckedIn int64
	Revenue   string
}

type StatisticsRepository interface {
	CountWorkshopsByStatus(ctx context.Context) (map[string]int64, error)
	ParticipantTotals(ctx context.Context, workshopID *uuid.UUID) (ParticipantTotals, error)
	UpcomingWorkshops(ctx context.Context, from time.Time, limit int) ([]model.Workshop, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) CountWorkshopsByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := GetDB(ctx, r.db).Model(&model.Workshop{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count workshops: %w", err)
	}

	counts := make(map[string]int64, len(model.WorkshopStatuses))
	for _, s := range model.WorkshopStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ParticipantTotals aggregates over one workshop, or over all when workshopID is nil.
// Revenue sums the ticket fee of paid participants.
func (r *statisticsRepository) ParticipantTotals(ctx context.Context, workshopID *uuid.UUID) (ParticipantTotals, error) {
	var result struct {
		Total     int64
		Paid      int64
		CheckedIn int64
		Revenue   string
	}

	db := GetDB(ctx, r.db).Table("participants").
		Select(`COUNT(participants.id) as total,
			COALESCE(SUM(CASE WHEN participants.is_paid THEN 1 ELSE 0 END), 0) as paid,
			COALESCE(SUM(CASE WHEN participants.is_checked_in THEN 1 ELSE 0 END), 0) as checked_in,
			COALESCE(CAST(SUM(CASE WHEN participants.is_paid THEN ticket_types.fee ELSE 0 END) AS TEXT), '0') as revenue`).
		Joins("JOIN ticket_types ON ticket_types.id = participants.ticket_type_id").
		Joins("JOIN workshops ON workshops.id = participants.workshop_id AND workshops.deleted_at IS NULL")
	if workshopID != nil {
		db = db.Where("participants.workshop_id = ?", *workshopID)
	}

	if err := db.Scan(&result).Error; err != nil {
		return ParticipantTotals{}, fmt.Errorf("failed to aggregate participants: %w", err)
	}

	return ParticipantTotals{
		Total:     result.Total,
		Paid:      result.Paid,
		CheckedIn: result.CheckedIn,
		Revenue:   result.Revenue,
	}, nil
}

func (r *statisticsRepository) UpcomingWorkshops(ctx context.Context, from time.Time, limit int) ([]model.Workshop, error) {
	var workshops []model.Workshop
	err := GetDB(ctx, r.db).
		Where("date_time >= ? AND status IN ?", from, []string{model.WorkshopStatusPublished, model.WorkshopStatusOngoing}).
		Order("date_time asc").
		Limit(limit).
		Find(&workshops).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming workshops: %w", err)
	}
	return workshops, nil
}
