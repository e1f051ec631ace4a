package aggregator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/relaygrid/pointsx/pkg/rollup"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("cron-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &App{
		CronKeyHash: hash,
		Logger:      zap.NewNop(),
	}
}

func TestRequireCronKey(t *testing.T) {
	app := newTestApp(t)
	h := app.requireCronKey(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/rollup/hour", nil)
	r.Header.Set("x-cron-key", "cron-secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodPost, "/rollup/hour", nil)
	r.Header.Set("x-cron-key", "wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = httptest.NewRequest(http.MethodPost, "/rollup/hour", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing key")
}

func TestResolveWindow(t *testing.T) {
	app := newTestApp(t)

	// pinned backfill window
	body := strings.NewReader(`{"windowStart":"2026-03-01T12:00:00Z"}`)
	r := httptest.NewRequest(http.MethodPost, "/rollup/hour", body)
	w := httptest.NewRecorder()
	win, ok := app.resolveWindow(w, r, rollup.HourWindow, rollup.PreviousHour)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), win.Start)

	// empty body falls back to the previous complete window
	r = httptest.NewRequest(http.MethodPost, "/rollup/hour", strings.NewReader(""))
	w = httptest.NewRecorder()
	win, ok = app.resolveWindow(w, r, rollup.HourWindow, rollup.PreviousHour)
	require.True(t, ok)
	assert.Equal(t, rollup.PreviousHour(time.Now()).Start, win.Start)

	// malformed timestamp is a 400
	r = httptest.NewRequest(http.MethodPost, "/rollup/hour", strings.NewReader(`{"windowStart":"yesterday"}`))
	w = httptest.NewRecorder()
	_, ok = app.resolveWindow(w, r, rollup.HourWindow, rollup.PreviousHour)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
