package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TicketType is an admission tier of one workshop
type TicketType struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	WorkshopID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ticket_types_workshop_name" json:"workshop_id"`
	Workshop   *Workshop       `gorm:"foreignKey:WorkshopID;constraint:OnDelete:CASCADE" json:"-"`
	Name       string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_ticket_types_workshop_name" json:"name"`
	Fee        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"fee"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// BeforeCreate assigns a time-ordered id so creation order survives created_at ties
func (t *TicketType) BeforeCreate(tx *gorm.DB) error {
	if t.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}
