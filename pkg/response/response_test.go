package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessWithPagination_TotalPages(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		total int64
		want  int
	}{
		{"exact", 10, 30, 3},
		{"remainder", 10, 31, 4},
		{"empty", 10, 0, 0},
		{"zero limit", 0, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := SuccessWithPagination(200, []int{}, 1, tt.limit, tt.total)
			assert.Equal(t, "success", resp.Status)
			assert.Equal(t, tt.want, resp.Meta.TotalPages)
		})
	}
}

func TestErrorWithDetails(t *testing.T) {
	resp := ErrorWithDetails(422, "validation failed", map[string]string{"email": "invalid"})
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 422, resp.StatusCode)
	assert.NotNil(t, resp.Details)
}
