package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"workshopdesk/internal/database"
	"workshopdesk/internal/metrics"
	"workshopdesk/internal/model"
	"workshopdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

type publishedEvent struct {
	Name    string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Name: event, Payload: payload})
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

type memArchiver struct {
	keys []string
	err  error
}

func (a *memArchiver) Archive(_ context.Context, key, _ string, _ []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.keys = append(a.keys, key)
	return "mem://" + key, nil
}

// deskFixture wires the workshop-facing services over one SQLite database
type deskFixture struct {
	ctx          context.Context
	db           *gorm.DB
	workshops    WorkshopService
	ticketTypes  TicketTypeService
	participants ParticipantService
	checkIn      CheckInService
	stats        StatisticsService
	audit        AuditService
	events       *recordingPublisher
	archiver     *memArchiver
	metrics      *metrics.Metrics
	actor        *uuid.UUID
}

func newDeskFixture(t *testing.T) *deskFixture {
	t.Helper()
	db := newTestDB(t)

	txManager := repository.NewTransactionManager(db)
	workshopRepo := repository.NewWorkshopRepository(db)
	ticketTypeRepo := repository.NewTicketTypeRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	f := &deskFixture{
		ctx:      context.Background(),
		db:       db,
		events:   &recordingPublisher{},
		archiver: &memArchiver{},
		metrics:  metrics.New(),
	}
	actor := uuid.New()
	f.actor = &actor

	f.workshops = NewWorkshopService(workshopRepo, ticketTypeRepo, auditRepo, txManager)
	f.ticketTypes = NewTicketTypeService(workshopRepo, ticketTypeRepo, auditRepo, txManager)
	f.participants = NewParticipantService(participantRepo, workshopRepo, ticketTypeRepo, auditRepo, txManager,
		f.archiver, f.events, f.metrics, ParticipantServiceConfig{}, zap.NewNop())
	f.checkIn = NewCheckInService(participantRepo, workshopRepo, auditRepo, txManager, f.events, f.metrics, zap.NewNop())
	f.stats = NewStatisticsService(repository.NewStatisticsRepository(db), workshopRepo)
	f.audit = NewAuditService(auditRepo)
	return f
}

// createWorkshop creates a workshop with the named ticket types and fees, in order
func (f *deskFixture) createWorkshop(t *testing.T, title string, tickets ...CreateTicketTypeRequest) *WorkshopResponse {
	t.Helper()
	w, err := f.workshops.CreateWorkshop(f.ctx, f.actor, CreateWorkshopRequest{
		Title:       title,
		DateTime:    time.Now().Add(72 * time.Hour),
		Location:    "Hall A",
		TicketTypes: tickets,
	})
	require.NoError(t, err)
	return w
}

func (f *deskFixture) setStatus(t *testing.T, workshopID string, statuses ...string) {
	t.Helper()
	id := uuid.MustParse(workshopID)
	for _, s := range statuses {
		_, err := f.workshops.ChangeStatus(f.ctx, f.actor, id, ChangeWorkshopStatusRequest{Status: s})
		require.NoError(t, err)
	}
}

func (f *deskFixture) addParticipant(t *testing.T, w *WorkshopResponse, ticket, name, email string, paid bool) *ParticipantResponse {
	t.Helper()
	p, err := f.participants.CreateParticipant(f.ctx, f.actor, uuid.MustParse(w.ID), CreateParticipantRequest{
		TicketTypeID: ticketID(t, w, ticket),
		Name:         name,
		Email:        email,
		IsPaid:       paid,
	})
	require.NoError(t, err)
	return p
}

func ticketID(t *testing.T, w *WorkshopResponse, name string) string {
	t.Helper()
	for _, tt := range w.TicketTypes {
		if tt.Name == name {
			return tt.ID
		}
	}
	t.Fatalf("ticket type %s not found", name)
	return ""
}

func countAudit(t *testing.T, db *gorm.DB, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.AuditLog{}).Where("action = ?", action).Count(&n).Error)
	return n
}
