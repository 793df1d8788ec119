package handler

import (
	"github.com/aras-services/emberweb/internal/reqstate"
	"github.com/aras-services/emberweb/internal/route"
)

// Auth implements the built-in gating handler of spec.md §4.F: "purely
// gating; always returns unclaimed after applying the authenticate check".
// The authenticate check itself runs in internal/server before a request
// reaches the handler chain at all (§4.D); Auth exists only so route
// configs can list "auth" explicitly in their handler chain as a visible
// checkpoint without changing dispatch behavior.
type Auth struct{}

func (Auth) Name() string { return "auth" }

func (Auth) Serve(req *reqstate.Request, r *route.Route) bool {
	return false
}
