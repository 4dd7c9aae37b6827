package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"workshopdesk/internal/database"
	"workshopdesk/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func TestTicketTypeRepository_DefaultID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	workshops := NewWorkshopRepository(db)
	tickets := NewTicketTypeRepository(db)

	w := &model.Workshop{Title: "Go Basics", DateTime: time.Now().Add(24 * time.Hour), Location: "Room 1"}
	require.NoError(t, workshops.Create(ctx, w))

	_, ok, err := tickets.DefaultID(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// a bulk seed stamps every row with the same created_at
	stamp := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var first uuid.UUID
	for i := 0; i < 20; i++ {
		tt := &model.TicketType{WorkshopID: w.ID, Name: fmt.Sprintf("Tier %02d", i), CreatedAt: stamp, UpdatedAt: stamp}
		require.NoError(t, tickets.Create(ctx, tt))
		if i == 0 {
			first = tt.ID
		}
	}

	id, ok, err := tickets.DefaultID(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, id)

	older := &model.TicketType{WorkshopID: w.ID, Name: "Early Bird", CreatedAt: stamp.Add(-time.Hour)}
	require.NoError(t, tickets.Create(ctx, older))
	id, _, err = tickets.DefaultID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, older.ID, id)
}

func TestTicketTypeRepository_IDByName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	w := &model.Workshop{Title: "Go Basics", DateTime: time.Now(), Location: "Room 1"}
	require.NoError(t, NewWorkshopRepository(db).Create(ctx, w))
	tickets := NewTicketTypeRepository(db)
	vip := &model.TicketType{WorkshopID: w.ID, Name: "VIP"}
	require.NoError(t, tickets.Create(ctx, vip))

	id, ok, err := tickets.IDByName(ctx, w.ID, "VIP")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, vip.ID, id)

	_, ok, err = tickets.IDByName(ctx, w.ID, "vip")
	require.NoError(t, err)
	assert.False(t, ok)
}
