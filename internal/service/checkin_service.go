package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"workshopdesk/internal/metrics"
	"workshopdesk/internal/model"
	"workshopdesk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Check-in methods, also used as the metrics label
const (
	CheckInScan   = "scan"
	CheckInManual = "manual"
)

type ScanRequest struct {
	TicketCode string `json:"ticket_code" binding:"required,max=32"`
}

type ManualCheckInRequest struct {
	ParticipantID string `json:"participant_id" binding:"required,uuid"`
}

type CheckInResponse struct {
	Participant ParticipantResponse `json:"participant"`
	Method      string              `json:"method"`
}

type CheckInService interface {
	Scan(ctx context.Context, actorID *uuid.UUID, workshopID uuid.UUID, ticketCode string) (*CheckInResponse, error)
	Manual(ctx context.Context, actorID *uuid.UUID, workshopID, participantID uuid.UUID) (*CheckInResponse, error)
	Undo(ctx context.Context, actorID *uuid.UUID, workshopID, participantID uuid.UUID) (*ParticipantResponse, error)
}

type checkInService struct {
	participants repository.ParticipantRepository
	workshops    repository.WorkshopRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	events       EventPublisher
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

func NewCheckInService(
	participants repository.ParticipantRepository,
	workshops repository.WorkshopRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) CheckInService {
	return &checkInService{
		participants: participants,
		workshops:    workshops,
		auditRepo:    auditRepo,
		txManager:    txManager,
		events:       events,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *checkInService) openWorkshop(ctx context.Context, workshopID uuid.UUID) (*model.Workshop, error) {
	w, err := s.workshops.FindByID(ctx, workshopID)
	if err != nil {
		return nil, notFound(err, "workshop")
	}
	if !w.AcceptsCheckIn() {
		return nil, conflictf("check-in is closed for %s workshops", w.Status)
	}
	return w, nil
}

func (s *checkInService) Scan(ctx context.Context, actorID *uuid.UUID, workshopID uuid.UUID, ticketCode string) (*CheckInResponse, error) {
	if _, err := s.openWorkshop(ctx, workshopID); err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(ticketCode))
	p, err := s.participants.FindByTicketCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "ticket")
	}
	// a valid ticket for another workshop is reported the same as an unknown one
	if p.WorkshopID != workshopID {
		return nil, fmt.Errorf("ticket %w", ErrNotFound)
	}
	return s.checkIn(ctx, actorID, p, CheckInScan)
}

func (s *checkInService) Manual(ctx context.Context, actorID *uuid.UUID, workshopID, participantID uuid.UUID) (*CheckInResponse, error) {
	if _, err := s.openWorkshop(ctx, workshopID); err != nil {
		return nil, err
	}
	p, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		return nil, notFound(err, "participant")
	}
	if p.WorkshopID != workshopID {
		return nil, fmt.Errorf("participant %w", ErrNotFound)
	}
	return s.checkIn(ctx, actorID, p, CheckInManual)
}

func (s *checkInService) checkIn(ctx context.Context, actorID *uuid.UUID, p *model.Participant, method string) (*CheckInResponse, error) {
	at := s.now()
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		changed, err := s.participants.MarkCheckedIn(txCtx, p.ID, at)
		if err != nil {
			return fmt.Errorf("failed to check in: %w", err)
		}
		if !changed {
			return conflictf("%s is already checked in", p.Name)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionCheckIn, p.ID.String(), p.Email,
			map[string]string{"method": method, "ticket_code": p.TicketCode})
	})
	if err != nil {
		return nil, err
	}

	p.IsCheckedIn = true
	p.CheckedInAt = &at
	res := &CheckInResponse{Participant: *toParticipantResponse(p), Method: method}

	s.metrics.RecordCheckIn(method)
	if s.events != nil {
		s.events.Publish(EventCheckIn, res)
	}
	s.logger.Info("Participant checked in",
		zap.String("workshop_id", p.WorkshopID.String()),
		zap.String("participant_id", p.ID.String()),
		zap.String("method", method))
	return res, nil
}

func (s *checkInService) Undo(ctx context.Context, actorID *uuid.UUID, workshopID, participantID uuid.UUID) (*ParticipantResponse, error) {
	p, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		return nil, notFound(err, "participant")
	}
	if p.WorkshopID != workshopID {
		return nil, fmt.Errorf("participant %w", ErrNotFound)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		changed, err := s.participants.UndoCheckIn(txCtx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to undo check-in: %w", err)
		}
		if !changed {
			return conflictf("%s is not checked in", p.Name)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionUndoCheckIn, p.ID.String(), p.Email, nil)
	})
	if err != nil {
		return nil, err
	}

	p.IsCheckedIn = false
	p.CheckedInAt = nil
	res := toParticipantResponse(p)
	if s.events != nil {
		s.events.Publish(EventCheckInUndone, res)
	}
	return res, nil
}
