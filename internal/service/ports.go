package service

import "context"

// Archiver keeps a copy of uploaded import files
type Archiver interface {
	Archive(ctx context.Context, key, contentType string, body []byte) (location string, err error)
}

// EventPublisher pushes live events to connected back-office clients
type EventPublisher interface {
	Publish(event string, payload any)
}

// Events published on the live channel
const (
	EventCheckIn         = "checkin"
	EventCheckInUndone   = "checkin.undone"
	EventImportCompleted = "import.completed"
	EventParticipantPaid = "participant.paid"
)
