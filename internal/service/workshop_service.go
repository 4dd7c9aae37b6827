package service

import (
	"context"
	"fmt"
	"time"

	"workshopdesk/internal/model"
	"workshopdesk/internal/repository"
	"workshopdesk/pkg/pagination"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateWorkshopRequest struct {
	Title       string    `json:"title" binding:"required,max=255"`
	Description string    `json:"description"`
	DateTime    time.Time `json:"date_time" binding:"required"`
	Location    string    `json:"location" binding:"required,max=255"`
	// optional initial ticket types; without any, a free "Standard" ticket is created
	TicketTypes []CreateTicketTypeRequest `json:"ticket_types" binding:"omitempty,dive"`
}

type UpdateWorkshopRequest struct {
	Title       *string    `json:"title" binding:"omitempty,max=255"`
	Description *string    `json:"description"`
	DateTime    *time.Time `json:"date_time"`
	Location    *string    `json:"location" binding:"omitempty,max=255"`
}

type ChangeWorkshopStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type WorkshopResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	DateTime    string               `json:"date_time"`
	Location    string               `json:"location"`
	TicketTypes []TicketTypeResponse `json:"ticket_types,omitempty"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

func toWorkshopResponse(w *model.Workshop) *WorkshopResponse {
	res := &WorkshopResponse{
		ID:          w.ID.String(),
		Title:       w.Title,
		Description: w.Description,
		Status:      w.Status,
		DateTime:    w.DateTime.Format(timeLayout),
		Location:    w.Location,
		CreatedAt:   w.CreatedAt.Format(timeLayout),
		UpdatedAt:   w.UpdatedAt.Format(timeLayout),
	}
	for i := range w.TicketTypes {
		res.TicketTypes = append(res.TicketTypes, toTicketTypeResponse(&w.TicketTypes[i]))
	}
	return res
}

// --- Interface ---

type WorkshopService interface {
	ListWorkshops(ctx context.Context, params pagination.Params, filter repository.WorkshopFilter) ([]WorkshopResponse, int64, error)
	GetWorkshop(ctx context.Context, id uuid.UUID) (*WorkshopResponse, error)
	CreateWorkshop(ctx context.Context, actorID *uuid.UUID, req CreateWorkshopRequest) (*WorkshopResponse, error)
	UpdateWorkshop(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateWorkshopRequest) (*WorkshopResponse, error)
	DeleteWorkshop(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error
	ChangeStatus(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req ChangeWorkshopStatusRequest) (*WorkshopResponse, error)
}

type workshopService struct {
	workshops   repository.WorkshopRepository
	ticketTypes repository.TicketTypeRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewWorkshopService(
	workshops repository.WorkshopRepository,
	ticketTypes repository.TicketTypeRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) WorkshopService {
	return &workshopService{workshops: workshops, ticketTypes: ticketTypes, auditRepo: auditRepo, txManager: txManager}
}

func (s *workshopService) ListWorkshops(ctx context.Context, params pagination.Params, filter repository.WorkshopFilter) ([]WorkshopResponse, int64, error) {
	if filter.Status != "" && !model.IsValidWorkshopStatus(filter.Status) {
		return nil, 0, validationf("unknown status %q", filter.Status)
	}
	workshops, total, err := s.workshops.List(ctx, params, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch workshops: %w", err)
	}

	res := make([]WorkshopResponse, 0, len(workshops))
	for i := range workshops {
		res = append(res, *toWorkshopResponse(&workshops[i]))
	}
	return res, total, nil
}

func (s *workshopService) GetWorkshop(ctx context.Context, id uuid.UUID) (*WorkshopResponse, error) {
	w, err := s.workshops.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "workshop")
	}
	return toWorkshopResponse(w), nil
}

func (s *workshopService) CreateWorkshop(ctx context.Context, actorID *uuid.UUID, req CreateWorkshopRequest) (*WorkshopResponse, error) {
	ticketReqs := req.TicketTypes
	if len(ticketReqs) == 0 {
		ticketReqs = []CreateTicketTypeRequest{{Name: "Standard", Fee: "0"}}
	}
	tickets := make([]*model.TicketType, 0, len(ticketReqs))
	names := make(map[string]bool, len(ticketReqs))
	for _, tr := range ticketReqs {
		tt, err := newTicketType(tr)
		if err != nil {
			return nil, err
		}
		if names[tt.Name] {
			return nil, validationf("duplicate ticket type %q", tt.Name)
		}
		names[tt.Name] = true
		tickets = append(tickets, tt)
	}

	w := &model.Workshop{
		Title:       req.Title,
		Description: req.Description,
		Status:      model.WorkshopStatusDraft,
		DateTime:    req.DateTime,
		Location:    req.Location,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.workshops.Create(txCtx, w); err != nil {
			return fmt.Errorf("failed to create workshop: %w", err)
		}
		// created one by one so created_at order follows request order
		for _, tt := range tickets {
			tt.WorkshopID = w.ID
			if err := s.ticketTypes.Create(txCtx, tt); err != nil {
				return fmt.Errorf("failed to create ticket type: %w", err)
			}
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionCreateWorkshop, w.ID.String(), w.Title, nil)
	})
	if err != nil {
		return nil, err
	}

	return s.GetWorkshop(ctx, w.ID)
}

func (s *workshopService) UpdateWorkshop(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateWorkshopRequest) (*WorkshopResponse, error) {
	w, err := s.workshops.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "workshop")
	}
	if w.Status == model.WorkshopStatusCompleted || w.Status == model.WorkshopStatusCancelled {
		return nil, conflictf("workshop is %s and can no longer be edited", w.Status)
	}

	if req.Title != nil {
		w.Title = *req.Title
	}
	if req.Description != nil {
		w.Description = *req.Description
	}
	if req.DateTime != nil {
		w.DateTime = *req.DateTime
	}
	if req.Location != nil {
		w.Location = *req.Location
	}
	w.TicketTypes = nil

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.workshops.Update(txCtx, w); err != nil {
			return fmt.Errorf("failed to update workshop: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateWorkshop, w.ID.String(), w.Title, nil)
	})
	if err != nil {
		return nil, err
	}

	return s.GetWorkshop(ctx, id)
}

func (s *workshopService) DeleteWorkshop(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error {
	w, err := s.workshops.FindByID(ctx, id)
	if err != nil {
		return notFound(err, "workshop")
	}
	if w.Status == model.WorkshopStatusOngoing {
		return conflictf("an ongoing workshop cannot be deleted")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.workshops.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete workshop: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionDeleteWorkshop, id.String(), w.Title, nil)
	})
}

// ChangeStatus moves a workshop along draft -> published -> ongoing -> completed,
// or to cancelled from any non-terminal status
func (s *workshopService) ChangeStatus(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req ChangeWorkshopStatusRequest) (*WorkshopResponse, error) {
	if !model.IsValidWorkshopStatus(req.Status) {
		return nil, validationf("unknown status %q", req.Status)
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		w, err := s.workshops.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFound(err, "workshop")
		}
		if !model.CanTransitionWorkshop(w.Status, req.Status) {
			return conflictf("cannot change status from %s to %s", w.Status, req.Status)
		}
		if err := s.workshops.UpdateStatus(txCtx, id, req.Status); err != nil {
			return fmt.Errorf("failed to update workshop status: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionChangeWorkshopStatus, id.String(), w.Title,
			map[string]string{"from": w.Status, "to": req.Status})
	})
	if err != nil {
		return nil, err
	}

	return s.GetWorkshop(ctx, id)
}
