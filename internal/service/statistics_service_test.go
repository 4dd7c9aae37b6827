package service

import (
	"testing"

	"workshopdesk/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard_Empty(t *testing.T) {
	f := newDeskFixture(t)

	stats, err := f.stats.Dashboard(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalWorkshops)
	assert.True(t, stats.Revenue.IsZero())
	assert.NotNil(t, stats.Upcoming)
	assert.Len(t, stats.WorkshopsByStatus, len(model.WorkshopStatuses))
}

func TestDashboard_Totals(t *testing.T) {
	f := newDeskFixture(t)
	a := f.createWorkshop(t, "A", CreateTicketTypeRequest{Name: "Standard", Fee: "99.50"}, CreateTicketTypeRequest{Name: "VIP", Fee: "150"})
	b := f.createWorkshop(t, "B")
	f.setStatus(t, a.ID, model.WorkshopStatusPublished)

	ann := f.addParticipant(t, a, "Standard", "Ann", "ann@example.com", true)
	f.addParticipant(t, a, "VIP", "Bob", "bob@example.com", true)
	f.addParticipant(t, a, "VIP", "Cid", "cid@example.com", false)
	f.addParticipant(t, b, "Standard", "Ann", "ann@example.com", true)

	_, err := f.checkIn.Manual(f.ctx, f.actor, uuid.MustParse(a.ID), uuid.MustParse(ann.ID))
	require.NoError(t, err)

	stats, err := f.stats.Dashboard(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalWorkshops)
	assert.Equal(t, int64(1), stats.WorkshopsByStatus[model.WorkshopStatusDraft])
	assert.Equal(t, int64(1), stats.WorkshopsByStatus[model.WorkshopStatusPublished])
	assert.Equal(t, int64(4), stats.TotalParticipants)
	assert.Equal(t, int64(3), stats.PaidParticipants)
	assert.Equal(t, int64(1), stats.CheckedIn)
	assert.True(t, decimal.RequireFromString("249.50").Equal(stats.Revenue), "revenue %s", stats.Revenue)

	// only published and ongoing workshops are upcoming
	require.Len(t, stats.Upcoming, 1)
	assert.Equal(t, a.ID, stats.Upcoming[0].WorkshopID)
	assert.Equal(t, int64(3), stats.Upcoming[0].Participants)
}

func TestWorkshopStats(t *testing.T) {
	f := newDeskFixture(t)
	w := f.createWorkshop(t, "A", CreateTicketTypeRequest{Name: "Standard", Fee: "20"})
	f.addParticipant(t, w, "Standard", "Ann", "ann@example.com", true)
	f.addParticipant(t, w, "Standard", "Bob", "bob@example.com", false)

	ws, err := f.stats.WorkshopStats(f.ctx, uuid.MustParse(w.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(2), ws.Participants)
	assert.Equal(t, int64(1), ws.Paid)
	assert.True(t, decimal.NewFromInt(20).Equal(ws.Revenue))
	assert.Equal(t, model.WorkshopStatusDraft, ws.Status)

	_, err = f.stats.WorkshopStats(f.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
