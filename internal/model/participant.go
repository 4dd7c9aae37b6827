package model

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant is a registration of one person to one workshop with one ticket type
type Participant struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	WorkshopID   uuid.UUID   `gorm:"type:uuid;not null;index:idx_participants_workshop_email" json:"workshop_id"`
	Workshop     *Workshop   `gorm:"foreignKey:WorkshopID;constraint:OnDelete:CASCADE" json:"workshop,omitempty"`
	TicketTypeID uuid.UUID   `gorm:"type:uuid;not null;index" json:"ticket_type_id"`
	TicketType   *TicketType `gorm:"foreignKey:TicketTypeID;constraint:OnDelete:RESTRICT" json:"ticket_type,omitempty"`
	Name         string      `gorm:"type:varchar(255);not null" json:"name"`
	Email        string      `gorm:"type:varchar(255);not null;index:idx_participants_workshop_email" json:"email"`
	Phone        *string     `gorm:"type:varchar(20)" json:"phone"`
	Occupation   *string     `gorm:"type:varchar(255)" json:"occupation"`
	Address      *string     `gorm:"type:text" json:"address"`
	Company      *string     `gorm:"type:varchar(255)" json:"company"`
	Position     *string     `gorm:"type:varchar(255)" json:"position"`
	TicketCode   string      `gorm:"type:varchar(32);uniqueIndex;not null" json:"ticket_code"`
	IsPaid       bool        `gorm:"not null;default:false" json:"is_paid"`
	IsCheckedIn  bool        `gorm:"not null;default:false" json:"is_checked_in"`
	CheckedInAt  *time.Time  `json:"checked_in_at"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.TicketCode == "" {
		p.TicketCode = NewTicketCode()
	}
	return nil
}

const ticketCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O, 1/I

// NewTicketCode returns a random code such as "TKT-7QX2M9KD4R" suitable for QR payloads
func NewTicketCode() string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to a uuid fragment
		return "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	}
	for i, b := range buf {
		buf[i] = ticketCodeAlphabet[int(b)%len(ticketCodeAlphabet)]
	}
	return "TKT-" + string(buf)
}

// NormalizeEmail is the canonical form used for storage and per-workshop uniqueness
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
