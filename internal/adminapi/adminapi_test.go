package adminapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aras-services/emberweb/internal/route"
	"github.com/aras-services/emberweb/internal/session"
)

func newFixture(t *testing.T) *Router {
	t.Helper()
	tbl := route.New()
	tbl.Add(&route.Route{Prefix: "/", AuthType: route.AuthNone})
	sessions := session.New(time.Minute, 0, nil)
	t.Cleanup(sessions.Close)
	return &Router{Routes: tbl, Sessions: sessions}
}

func TestHealthzReturnsOK(t *testing.T) {
	a := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestDebugRoutesListsRegisteredRoutes(t *testing.T) {
	a := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/debug/routes", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"prefix": "/"`)
}

func TestDebugSessionsReportsCount(t *testing.T) {
	a := newFixture(t)
	a.Sessions.Create()
	a.Sessions.Create()

	req := httptest.NewRequest(http.MethodGet, "/debug/sessions", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count": 2`)
}
