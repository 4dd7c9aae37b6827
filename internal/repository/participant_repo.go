package repository

import (
	"context"
	"strings"
	"time"

	"workshopdesk/internal/model"
	"workshopdesk/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParticipantFilter narrows participant listings of one workshop
type ParticipantFilter struct {
	TicketTypeID *uuid.UUID
	IsPaid       *bool
	IsCheckedIn  *bool
}

type ParticipantRepository interface {
	Create(ctx context.Context, participant *model.Participant) error
	CreateBatch(ctx context.Context, participants []*model.Participant, batchSize int) error
	Update(ctx context.Context, participant *model.Participant) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Participant, error)
	FindByTicketCode(ctx context.Context, code string) (*model.Participant, error)
	List(ctx context.Context, workshopID uuid.UUID, params pagination.Params, filter ParticipantFilter) ([]model.Participant, int64, error)
	EachByWorkshop(ctx context.Context, workshopID uuid.UUID, batchSize int, fn func([]model.Participant) error) error
	ExistingEmails(ctx context.Context, workshopID uuid.UUID, emails []string) (map[string]bool, error)
	EmailTaken(ctx context.Context, workshopID uuid.UUID, email string, exceptID *uuid.UUID) (bool, error)
	SetPaid(ctx context.Context, id uuid.UUID, paid bool) error
	MarkCheckedIn(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	UndoCheckIn(ctx context.Context, id uuid.UUID) (bool, error)
}

type participantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Create(ctx context.Context, participant *model.Participant) error {
	return GetDB(ctx, r.db).Omit("Workshop", "TicketType").Create(participant).Error
}

func (r *participantRepository) CreateBatch(ctx context.Context, participants []*model.Participant, batchSize int) error {
	if len(participants) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Omit("Workshop", "TicketType").CreateInBatches(participants, batchSize).Error
}

func (r *participantRepository) Update(ctx context.Context, participant *model.Participant) error {
	return GetDB(ctx, r.db).Model(participant).
		Select("TicketTypeID", "Name", "Email", "Phone", "Occupation", "Address", "Company", "Position", "IsPaid").
		Updates(participant).Error
}

func (r *participantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Participant{}).Error
}

func (r *participantRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Participant, error) {
	var p model.Participant
	if err := GetDB(ctx, r.db).Preload("TicketType").First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepository) FindByTicketCode(ctx context.Context, code string) (*model.Participant, error) {
	var p model.Participant
	err := GetDB(ctx, r.db).Preload("TicketType").
		Where("ticket_code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepository) List(ctx context.Context, workshopID uuid.UUID, params pagination.Params, filter ParticipantFilter) ([]model.Participant, int64, error) {
	var participants []model.Participant
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Participant{}).Where("workshop_id = ?", workshopID)
	if filter.TicketTypeID != nil {
		db = db.Where("ticket_type_id = ?", *filter.TicketTypeID)
	}
	if filter.IsPaid != nil {
		db = db.Where("is_paid = ?", *filter.IsPaid)
	}
	if filter.IsCheckedIn != nil {
		db = db.Where("is_checked_in = ?", *filter.IsCheckedIn)
	}
	if params.Search != "" {
		like := "%" + strings.ToLower(params.Search) + "%"
		db = db.Where("LOWER(name) LIKE ? OR email LIKE ? OR ticket_code LIKE ?", like, like, "%"+strings.ToUpper(params.Search)+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("TicketType").Order("created_at asc, id asc").Offset(params.Offset).Limit(params.Limit).Find(&participants).Error; err != nil {
		return nil, 0, err
	}

	return participants, total, nil
}

// EachByWorkshop streams a workshop's participants in batches, ordered by creation
func (r *participantRepository) EachByWorkshop(ctx context.Context, workshopID uuid.UUID, batchSize int, fn func([]model.Participant) error) error {
	for offset := 0; ; offset += batchSize {
		var batch []model.Participant
		err := GetDB(ctx, r.db).
			Preload("TicketType").
			Where("workshop_id = ?", workshopID).
			Order("created_at asc, id asc").
			Offset(offset).Limit(batchSize).
			Find(&batch).Error
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
	}
}

// ExistingEmails reports which of emails (normalized) are already registered for the workshop
func (r *participantRepository) ExistingEmails(ctx context.Context, workshopID uuid.UUID, emails []string) (map[string]bool, error) {
	found := make(map[string]bool, len(emails))
	if len(emails) == 0 {
		return found, nil
	}

	var existing []string
	err := GetDB(ctx, r.db).Model(&model.Participant{}).
		Where("workshop_id = ? AND email IN ?", workshopID, emails).
		Pluck("email", &existing).Error
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		found[e] = true
	}
	return found, nil
}

func (r *participantRepository) EmailTaken(ctx context.Context, workshopID uuid.UUID, email string, exceptID *uuid.UUID) (bool, error) {
	var n int64
	db := GetDB(ctx, r.db).Model(&model.Participant{}).
		Where("workshop_id = ? AND email = ?", workshopID, model.NormalizeEmail(email))
	if exceptID != nil {
		db = db.Where("id <> ?", *exceptID)
	}
	if err := db.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *participantRepository) SetPaid(ctx context.Context, id uuid.UUID, paid bool) error {
	return GetDB(ctx, r.db).Model(&model.Participant{}).Where("id = ?", id).Update("is_paid", paid).Error
}

// MarkCheckedIn flips is_checked_in only if it was false; the bool reports whether it did
func (r *participantRepository) MarkCheckedIn(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.Participant{}).
		Where("id = ? AND is_checked_in = ?", id, false).
		Updates(map[string]interface{}{"is_checked_in": true, "checked_in_at": at})
	return result.RowsAffected == 1, result.Error
}

func (r *participantRepository) UndoCheckIn(ctx context.Context, id uuid.UUID) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.Participant{}).
		Where("id = ? AND is_checked_in = ?", id, true).
		Updates(map[string]interface{}{"is_checked_in": false, "checked_in_at": nil})
	return result.RowsAffected == 1, result.Error
}
