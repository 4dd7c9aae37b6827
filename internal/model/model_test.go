package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionWorkshop(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{WorkshopStatusDraft, WorkshopStatusPublished, true},
		{WorkshopStatusPublished, WorkshopStatusOngoing, true},
		{WorkshopStatusOngoing, WorkshopStatusCompleted, true},
		{WorkshopStatusDraft, WorkshopStatusCancelled, true},
		{WorkshopStatusOngoing, WorkshopStatusCancelled, true},
		{WorkshopStatusDraft, WorkshopStatusOngoing, false},
		{WorkshopStatusPublished, WorkshopStatusDraft, false},
		{WorkshopStatusCompleted, WorkshopStatusCancelled, false},
		{WorkshopStatusCancelled, WorkshopStatusPublished, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionWorkshop(tt.from, tt.to))
		})
	}
}

func TestIsValidWorkshopStatus(t *testing.T) {
	assert.True(t, IsValidWorkshopStatus("ongoing"))
	assert.False(t, IsValidWorkshopStatus("archived"))
}

func TestNewTicketCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		code := NewTicketCode()
		assert.True(t, strings.HasPrefix(code, "TKT-"))
		assert.Len(t, code, 14)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@example.com", NormalizeEmail("  Ann@Example.COM "))
}
