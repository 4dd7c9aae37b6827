package repository

import (
	"context"
	"errors"

	"workshopdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TicketTypeRepository interface {
	Create(ctx context.Context, ticketType *model.TicketType) error
	Update(ctx context.Context, ticketType *model.TicketType) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TicketType, error)
	ListByWorkshop(ctx context.Context, workshopID uuid.UUID) ([]model.TicketType, error)
	CountParticipants(ctx context.Context, id uuid.UUID) (int64, error)

	// IDByName and DefaultID serve the participant importer.
	IDByName(ctx context.Context, workshopID uuid.UUID, name string) (uuid.UUID, bool, error)
	DefaultID(ctx context.Context, workshopID uuid.UUID) (uuid.UUID, bool, error)
}

type ticketTypeRepository struct {
	db *gorm.DB
}

func NewTicketTypeRepository(db *gorm.DB) TicketTypeRepository {
	return &ticketTypeRepository{db: db}
}

func (r *ticketTypeRepository) Create(ctx context.Context, ticketType *model.TicketType) error {
	return GetDB(ctx, r.db).Omit("Workshop").Create(ticketType).Error
}

func (r *ticketTypeRepository) Update(ctx context.Context, ticketType *model.TicketType) error {
	return GetDB(ctx, r.db).Model(ticketType).Select("Name", "Fee").Updates(ticketType).Error
}

func (r *ticketTypeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.TicketType{}).Error
}

func (r *ticketTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TicketType, error) {
	var tt model.TicketType
	if err := GetDB(ctx, r.db).First(&tt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tt, nil
}

// ListByWorkshop returns ticket types in creation order; the first one is the workshop default
func (r *ticketTypeRepository) ListByWorkshop(ctx context.Context, workshopID uuid.UUID) ([]model.TicketType, error) {
	var types []model.TicketType
	err := GetDB(ctx, r.db).
		Where("workshop_id = ?", workshopID).
		Order("created_at asc, id asc").
		Find(&types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (r *ticketTypeRepository) CountParticipants(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.Participant{}).Where("ticket_type_id = ?", id).Count(&n).Error
	return n, err
}

// IDByName looks a ticket type up by exact name within one workshop
func (r *ticketTypeRepository) IDByName(ctx context.Context, workshopID uuid.UUID, name string) (uuid.UUID, bool, error) {
	var tt model.TicketType
	err := GetDB(ctx, r.db).
		Select("id").
		Where("workshop_id = ? AND name = ?", workshopID, name).
		Take(&tt).Error
	return foundID(tt.ID, err)
}

// DefaultID is the workshop's earliest-created ticket type. Ids are UUIDv7, so the
// lowest id breaks created_at ties in creation order.
func (r *ticketTypeRepository) DefaultID(ctx context.Context, workshopID uuid.UUID) (uuid.UUID, bool, error) {
	var tt model.TicketType
	err := GetDB(ctx, r.db).
		Select("id").
		Where("workshop_id = ?", workshopID).
		Order("created_at asc, id asc").
		First(&tt).Error
	return foundID(tt.ID, err)
}

func foundID(id uuid.UUID, err error) (uuid.UUID, bool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}
