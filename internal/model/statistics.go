package model

import "github.com/shopspring/decimal"

// DashboardStats aggregates back-office counters across all workshops
type DashboardStats struct {
	WorkshopsByStatus map[string]int64 `json:"workshops_by_status"`
	TotalWorkshops    int64            `json:"total_workshops"`
	TotalParticipants int64            `json:"total_participants"`
	PaidParticipants  int64            `json:"paid_participants"`
	CheckedIn         int64            `json:"checked_in"`
	Revenue           decimal.Decimal  `json:"revenue"` // sum of ticket fees of paid participants
	Upcoming          []WorkshopStats  `json:"upcoming"`
}

// WorkshopStats is the per-workshop attendance summary
type WorkshopStats struct {
	WorkshopID   string          `json:"workshop_id"`
	Title        string          `json:"title"`
	Status       string          `json:"status"`
	Participants int64           `json:"participants"`
	Paid         int64           `json:"paid"`
	CheckedIn    int64           `json:"checked_in"`
	Revenue      decimal.Decimal `json:"revenue"`
}
