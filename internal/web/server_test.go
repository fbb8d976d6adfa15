package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solidframe/solidframe/internal/reactor"
)

func testScheduler(t *testing.T) *reactor.Scheduler {
	t.Helper()

	sched, err := reactor.NewScheduler(2)
	require.NoError(t, err)
	t.Cleanup(sched.Stop)

	return sched
}

func TestHandleStatusRendersHTML(t *testing.T) {
	sched := testScheduler(t)

	s := NewServer(DefaultConfig(), sched, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	s.handleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "solidframe status")
	require.Contains(t, rec.Body.String(), "<table>")
}

func TestHandleHealthz(t *testing.T) {
	sched := testScheduler(t)
	s := NewServer(DefaultConfig(), sched, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.handleHealthz(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
