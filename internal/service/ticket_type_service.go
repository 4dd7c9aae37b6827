package service

import (
	"context"
	"fmt"
	"strings"

	"workshopdesk/internal/model"
	"workshopdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateTicketTypeRequest struct {
	Name string `json:"name" binding:"required,max=255"`
	Fee  string `json:"fee" binding:"required"` // decimal string
}

type UpdateTicketTypeRequest struct {
	Name *string `json:"name" binding:"omitempty,max=255"`
	Fee  *string `json:"fee"`
}

type TicketTypeResponse struct {
	ID         string `json:"id"`
	WorkshopID string `json:"workshop_id"`
	Name       string `json:"name"`
	Fee        string `json:"fee"`
	CreatedAt  string `json:"created_at"`
}

func toTicketTypeResponse(t *model.TicketType) TicketTypeResponse {
	return TicketTypeResponse{
		ID:         t.ID.String(),
		WorkshopID: t.WorkshopID.String(),
		Name:       t.Name,
		Fee:        t.Fee.StringFixed(2),
		CreatedAt:  t.CreatedAt.Format(timeLayout),
	}
}

func parseFee(raw string) (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, validationf("fee must be a decimal number")
	}
	if fee.IsNegative() {
		return decimal.Zero, validationf("fee must not be negative")
	}
	// decimal(10,2)
	if fee.GreaterThanOrEqual(decimal.New(1, 8)) {
		return decimal.Zero, validationf("fee is too large")
	}
	return fee.Round(2), nil
}

func newTicketType(req CreateTicketTypeRequest) (*model.TicketType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationf("ticket type name is required")
	}
	fee, err := parseFee(req.Fee)
	if err != nil {
		return nil, err
	}
	return &model.TicketType{Name: name, Fee: fee}, nil
}

// --- Interface ---

type TicketTypeService interface {
	ListTicketTypes(ctx context.Context, workshopID uuid.UUID) ([]TicketTypeResponse, error)
	CreateTicketType(ctx context.Context, actorID *uuid.UUID, workshopID uuid.UUID, req CreateTicketTypeRequest) (*TicketTypeResponse, error)
	UpdateTicketType(ctx context.Context, actorID *uuid.UUID, workshopID, id uuid.UUID, req UpdateTicketTypeRequest) (*TicketTypeResponse, error)
	DeleteTicketType(ctx context.Context, actorID *uuid.UUID, workshopID, id uuid.UUID) error
}

type ticketTypeService struct {
	workshops   repository.WorkshopRepository
	ticketTypes repository.TicketTypeRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewTicketTypeService(
	workshops repository.WorkshopRepository,
	ticketTypes repository.TicketTypeRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) TicketTypeService {
	return &ticketTypeService{workshops: workshops, ticketTypes: ticketTypes, auditRepo: auditRepo, txManager: txManager}
}

func (s *ticketTypeService) ListTicketTypes(ctx context.Context, workshopID uuid.UUID) ([]TicketTypeResponse, error) {
	if _, err := s.workshops.FindByID(ctx, workshopID); err != nil {
		return nil, notFound(err, "workshop")
	}
	types, err := s.ticketTypes.ListByWorkshop(ctx, workshopID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticket types: %w", err)
	}
	res := make([]TicketTypeResponse, 0, len(types))
	for i := range types {
		res = append(res, toTicketTypeResponse(&types[i]))
	}
	return res, nil
}

// findInWorkshop loads a ticket type and checks it belongs to the workshop
func (s *ticketTypeService) findInWorkshop(ctx context.Context, workshopID, id uuid.UUID) (*model.TicketType, error) {
	tt, err := s.ticketTypes.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "ticket type")
	}
	if tt.WorkshopID != workshopID {
		return nil, fmt.Errorf("ticket type %w", ErrNotFound)
	}
	return tt, nil
}

func (s *ticketTypeService) nameTaken(ctx context.Context, workshopID uuid.UUID, name string, except uuid.UUID) (bool, error) {
	id, found, err := s.ticketTypes.IDByName(ctx, workshopID, name)
	if err != nil {
		return false, fmt.Errorf("failed to check ticket type name: %w", err)
	}
	return found && id != except, nil
}

func (s *ticketTypeService) CreateTicketType(ctx context.Context, actorID *uuid.UUID, workshopID uuid.UUID, req CreateTicketTypeRequest) (*TicketTypeResponse, error) {
	w, err := s.workshops.FindByID(ctx, workshopID)
	if err != nil {
		return nil, notFound(err, "workshop")
	}
	tt, err := newTicketType(req)
	if err != nil {
		return nil, err
	}
	taken, err := s.nameTaken(ctx, workshopID, tt.Name, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflictf("ticket type %q already exists for this workshop", tt.Name)
	}

	tt.WorkshopID = w.ID
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ticketTypes.Create(txCtx, tt); err != nil {
			return fmt.Errorf("failed to create ticket type: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionCreateTicketType, tt.ID.String(), tt.Name,
			map[string]string{"workshop_id": w.ID.String(), "fee": tt.Fee.StringFixed(2)})
	})
	if err != nil {
		return nil, err
	}

	res := toTicketTypeResponse(tt)
	return &res, nil
}

func (s *ticketTypeService) UpdateTicketType(ctx context.Context, actorID *uuid.UUID, workshopID, id uuid.UUID, req UpdateTicketTypeRequest) (*TicketTypeResponse, error) {
	tt, err := s.findInWorkshop(ctx, workshopID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, validationf("ticket type name is required")
		}
		taken, err := s.nameTaken(ctx, workshopID, name, tt.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, conflictf("ticket type %q already exists for this workshop", name)
		}
		tt.Name = name
	}
	if req.Fee != nil {
		if tt.Fee, err = parseFee(*req.Fee); err != nil {
			return nil, err
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ticketTypes.Update(txCtx, tt); err != nil {
			return fmt.Errorf("failed to update ticket type: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateTicketType, tt.ID.String(), tt.Name,
			map[string]string{"fee": tt.Fee.StringFixed(2)})
	})
	if err != nil {
		return nil, err
	}

	res := toTicketTypeResponse(tt)
	return &res, nil
}

// DeleteTicketType refuses when participants hold the ticket type
func (s *ticketTypeService) DeleteTicketType(ctx context.Context, actorID *uuid.UUID, workshopID, id uuid.UUID) error {
	tt, err := s.findInWorkshop(ctx, workshopID, id)
	if err != nil {
		return err
	}
	n, err := s.ticketTypes.CountParticipants(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}
	if n > 0 {
		return conflictf("ticket type %q has %d participant(s)", tt.Name, n)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ticketTypes.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete ticket type: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionDeleteTicketType, id.String(), tt.Name, nil)
	})
}
