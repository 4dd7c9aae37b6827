package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreateWorkshop       = "CREATE_WORKSHOP"
	ActionUpdateWorkshop       = "UPDATE_WORKSHOP"
	ActionDeleteWorkshop       = "DELETE_WORKSHOP"
	ActionChangeWorkshopStatus = "CHANGE_WORKSHOP_STATUS"

	ActionCreateTicketType = "CREATE_TICKET_TYPE"
	ActionUpdateTicketType = "UPDATE_TICKET_TYPE"
	ActionDeleteTicketType = "DELETE_TICKET_TYPE"

	ActionCreateParticipant  = "CREATE_PARTICIPANT"
	ActionUpdateParticipant  = "UPDATE_PARTICIPANT"
	ActionDeleteParticipant  = "DELETE_PARTICIPANT"
	ActionTogglePaid         = "TOGGLE_PAID"
	ActionImportParticipants = "IMPORT_PARTICIPANTS"
	ActionCheckIn            = "CHECK_IN"
	ActionUndoCheckIn        = "UNDO_CHECK_IN"

	ActionCreateRole            = "CREATE_ROLE"
	ActionUpdateRole            = "UPDATE_ROLE"
	ActionDeleteRole            = "DELETE_ROLE"
	ActionUpdateRolePermissions = "UPDATE_ROLE_PERMISSIONS"

	ActionCreateUser = "CREATE_USER"
	ActionUpdateUser = "UPDATE_USER"
	ActionDeleteUser = "DELETE_USER"
)

// AuditLog tracks Who, What, and When for back-office changes
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // nil for system jobs
	User       *User          `gorm:"foreignKey:UserID" json:"user"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
