package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type staticCounter int

func (c staticCounter) Count() int { return int(c) }

func TestChecker_Ready(t *testing.T) {
	t.Run("容量充足", func(t *testing.T) {
		checker := NewChecker(staticCounter(1), 10, zap.NewNop())

		rec := httptest.NewRecorder()
		checker.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("会话已满", func(t *testing.T) {
		checker := NewChecker(staticCounter(10), 10, zap.NewNop())

		rec := httptest.NewRecorder()
		checker.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("不限制会话", func(t *testing.T) {
		checker := NewChecker(staticCounter(100000), 0, zap.NewNop())

		rec := httptest.NewRecorder()
		checker.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestChecker_Live(t *testing.T) {
	checker := NewChecker(staticCounter(0), 10, zap.NewNop())

	rec := httptest.NewRecorder()
	checker.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChecker_Status(t *testing.T) {
	checker := NewChecker(staticCounter(3), 10, zap.NewNop())

	status := checker.Status()
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, 3, status["sessions"])
}
