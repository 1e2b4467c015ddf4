package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		limit  int
		offset int
	}{
		{name: "defaults", query: "", limit: 25, offset: 0},
		{name: "explicit", query: "?limit=10&offset=20", limit: 10, offset: 20},
		{name: "capped", query: "?limit=1000", limit: 100, offset: 0},
		{name: "invalid", query: "?limit=abc&offset=-5", limit: 25, offset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/"+tt.query, nil)

			limit, offset := parsePagination(c)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestRequireQuery(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/?course_id=course-1", nil)

	value, ok := requireQuery(c, "course_id")
	assert.True(t, ok)
	assert.Equal(t, "course-1", value)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	_, ok = requireQuery(c, "course_id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "course_id is required")
}

func TestRespondInternalError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondInternalError(c, zap.NewNop(), errors.New("dial tcp: connection refused"), "load run")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestNewPaginatedResponse(t *testing.T) {
	resp := newPaginatedResponse([]int{1, 2}, 12, 5, 5)

	assert.Equal(t, int64(12), resp.Total)
	assert.True(t, resp.HasMore)
	assert.Equal(t, 3, resp.TotalPages)

	resp = newPaginatedResponse([]int{}, 0, 25, 0)
	assert.False(t, resp.HasMore)
	assert.Equal(t, 0, resp.TotalPages)
}
