package service

import (
	"context"
	"fmt"
	"time"

	"workshopdesk/internal/model"
	"workshopdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const upcomingLimit = 5

type StatisticsService interface {
	Dashboard(ctx context.Context) (*model.DashboardStats, error)
	WorkshopStats(ctx context.Context, workshopID uuid.UUID) (*model.WorkshopStats, error)
}

type statisticsService struct {
	repo      repository.StatisticsRepository
	workshops repository.WorkshopRepository
	now       func() time.Time
}

func NewStatisticsService(repo repository.StatisticsRepository, workshops repository.WorkshopRepository) StatisticsService {
	return &statisticsService{repo: repo, workshops: workshops, now: time.Now}
}

func parseRevenue(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}

// Dashboard aggregates counters over every workshop plus attendance of the next upcoming ones
func (s *statisticsService) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	byStatus, err := s.repo.CountWorkshopsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.ParticipantTotals(ctx, nil)
	if err != nil {
		return nil, err
	}

	stats := &model.DashboardStats{
		WorkshopsByStatus: byStatus,
		TotalParticipants: totals.Total,
		PaidParticipants:  totals.Paid,
		CheckedIn:         totals.CheckedIn,
		Revenue:           parseRevenue(totals.Revenue),
		Upcoming:          []model.WorkshopStats{},
	}
	for _, n := range byStatus {
		stats.TotalWorkshops += n
	}

	upcoming, err := s.repo.UpcomingWorkshops(ctx, s.now(), upcomingLimit)
	if err != nil {
		return nil, err
	}
	for i := range upcoming {
		ws, err := s.statsFor(ctx, &upcoming[i])
		if err != nil {
			return nil, err
		}
		stats.Upcoming = append(stats.Upcoming, *ws)
	}
	return stats, nil
}

func (s *statisticsService) WorkshopStats(ctx context.Context, workshopID uuid.UUID) (*model.WorkshopStats, error) {
	w, err := s.workshops.FindByID(ctx, workshopID)
	if err != nil {
		return nil, notFound(err, "workshop")
	}
	return s.statsFor(ctx, w)
}

func (s *statisticsService) statsFor(ctx context.Context, w *model.Workshop) (*model.WorkshopStats, error) {
	totals, err := s.repo.ParticipantTotals(ctx, &w.ID)
	if err != nil {
		return nil, fmt.Errorf("workshop %s: %w", w.ID, err)
	}
	return &model.WorkshopStats{
		WorkshopID:   w.ID.String(),
		Title:        w.Title,
		Status:       w.Status,
		Participants: totals.Total,
		Paid:         totals.Paid,
		CheckedIn:    totals.CheckedIn,
		Revenue:      parseRevenue(totals.Revenue),
	}, nil
}
