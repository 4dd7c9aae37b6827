package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkshopStatus enum
const (
	WorkshopStatusDraft     = "draft"
	WorkshopStatusPublished = "published"
	WorkshopStatusOngoing   = "ongoing"
	WorkshopStatusCompleted = "completed"
	WorkshopStatusCancelled = "cancelled"
)

// WorkshopStatuses lists the statuses in lifecycle order
var WorkshopStatuses = []string{
	WorkshopStatusDraft,
	WorkshopStatusPublished,
	WorkshopStatusOngoing,
	WorkshopStatusCompleted,
	WorkshopStatusCancelled,
}

var workshopTransitions = map[string][]string{
	WorkshopStatusDraft:     {WorkshopStatusPublished, WorkshopStatusCancelled},
	WorkshopStatusPublished: {WorkshopStatusOngoing, WorkshopStatusCancelled},
	WorkshopStatusOngoing:   {WorkshopStatusCompleted, WorkshopStatusCancelled},
}

// IsValidWorkshopStatus reports whether s is one of WorkshopStatuses
func IsValidWorkshopStatus(s string) bool {
	for _, v := range WorkshopStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransitionWorkshop reports whether a workshop may move from one status to another.
// completed and cancelled are terminal.
func CanTransitionWorkshop(from, to string) bool {
	for _, next := range workshopTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Workshop is an event participants register for
type Workshop struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      string         `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	DateTime    time.Time      `gorm:"not null;index" json:"date_time"`
	Location    string         `gorm:"type:varchar(255);not null" json:"location"`
	TicketTypes []TicketType   `gorm:"foreignKey:WorkshopID" json:"ticket_types,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (w *Workshop) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Status == "" {
		w.Status = WorkshopStatusDraft
	}
	return nil
}

// AcceptsCheckIn reports whether participants can currently be checked in
func (w *Workshop) AcceptsCheckIn() bool {
	return w.Status == WorkshopStatusPublished || w.Status == WorkshopStatusOngoing
}
