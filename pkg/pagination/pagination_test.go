package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		page       string
		limit      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", "", DefaultPage, DefaultLimit, 0},
		{"explicit", "3", "10", 3, 10, 20},
		{"negative page", "-2", "10", 1, 10, 0},
		{"limit capped", "1", "500", 1, MaxLimit, 0},
		{"garbage", "abc", "xyz", DefaultPage, DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.page, tt.limit, "  ann ")
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset)
			assert.Equal(t, "ann", p.Search)
		})
	}
}
