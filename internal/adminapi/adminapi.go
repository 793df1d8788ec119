// Package adminapi exposes the read-only operator surface supplemented in
// SPEC_FULL.md §10: a health probe and introspection endpoints over the
// live route table and session store, for operators embedding the server
// in a larger deployment to wire into their own monitoring.
package adminapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aras-services/emberweb/internal/route"
	"github.com/aras-services/emberweb/internal/session"
)

// Router builds the admin HTTP handler over the live route table and
// session store. It never mutates either; it only reads.
type Router struct {
	Routes   *route.Table
	Sessions *session.Store
}

// Handler assembles the chi-routed admin API, grounded on the teacher's
// router+middleware chain shape (logging, panic recovery, request IDs,
// CORS) applied to a much smaller route set.
func (a *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/debug/routes", a.handleDebugRoutes)
	r.Get("/debug/sessions", a.handleDebugSessions)
	return r
}

func (a *Router) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type routeView struct {
	Prefix     string   `json:"prefix"`
	Methods    []string `json:"methods,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
	Abilities  []string `json:"abilities,omitempty"`
	AuthType   string   `json:"auth_type"`
	Handlers   []string `json:"handlers,omitempty"`
}

func (a *Router) handleDebugRoutes(w http.ResponseWriter, r *http.Request) {
	all := a.Routes.All()
	views := make([]routeView, 0, len(all))
	for _, rt := range all {
		views = append(views, routeView{
			Prefix:     rt.Prefix,
			Methods:    keysOf(rt.Methods),
			Extensions: keysOf(rt.Extensions),
			Abilities:  rt.Abilities,
			AuthType:   string(rt.AuthType),
			Handlers:   rt.Handlers,
		})
	}
	writeJSON(w, views)
}

type sessionSummary struct {
	Count int `json:"count"`
}

func (a *Router) handleDebugSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, sessionSummary{Count: a.Sessions.Len()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func keysOf(m map[string]bool) []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
