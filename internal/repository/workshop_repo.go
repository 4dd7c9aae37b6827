package repository

import (
	"context"
	"strings"

	"workshopdesk/internal/model"
	"workshopdesk/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkshopFilter narrows workshop listings
type WorkshopFilter struct {
	Status string
}

type WorkshopRepository interface {
	Create(ctx context.Context, workshop *model.Workshop) error
	Update(ctx context.Context, workshop *model.Workshop) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Workshop, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Workshop, error)
	List(ctx context.Context, params pagination.Params, filter WorkshopFilter) ([]model.Workshop, int64, error)
}

type workshopRepository struct {
	db *gorm.DB
}

func NewWorkshopRepository(db *gorm.DB) WorkshopRepository {
	return &workshopRepository{db: db}
}

func (r *workshopRepository) Create(ctx context.Context, workshop *model.Workshop) error {
	return GetDB(ctx, r.db).Omit("TicketTypes").Create(workshop).Error
}

func (r *workshopRepository) Update(ctx context.Context, workshop *model.Workshop) error {
	return GetDB(ctx, r.db).Model(workshop).
		Select("Title", "Description", "DateTime", "Location").
		Updates(workshop).Error
}

func (r *workshopRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Workshop{}).Where("id = ?", id).Update("status", status).Error
}

func (r *workshopRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Workshop{}).Error
}

func (r *workshopRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Workshop, error) {
	var workshop model.Workshop
	err := GetDB(ctx, r.db).
		Preload("TicketTypes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		First(&workshop, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &workshop, nil
}

func (r *workshopRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Workshop, error) {
	var workshop model.Workshop
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&workshop).Error; err != nil {
		return nil, err
	}
	return &workshop, nil
}

func (r *workshopRepository) List(ctx context.Context, params pagination.Params, filter WorkshopFilter) ([]model.Workshop, int64, error) {
	var workshops []model.Workshop
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Workshop{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if params.Search != "" {
		like := "%" + strings.ToLower(params.Search) + "%"
		db = db.Where("LOWER(title) LIKE ? OR LOWER(location) LIKE ?", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("date_time desc").Offset(params.Offset).Limit(params.Limit).Find(&workshops).Error; err != nil {
		return nil, 0, err
	}

	return workshops, total, nil
}
