package handler

import (
	"net/http"

	"github.com/aras-services/emberweb/internal/reqstate"
	"github.com/aras-services/emberweb/internal/route"
)

// Redirect implements the built-in table-driven 3xx rewrite handler of
// spec.md §4.F.
type Redirect struct {
	// Table maps an exact request path to a redirect target.
	Table map[string]string
	// Status is the redirect status emitted; defaults to 302 Found.
	Status int
}

func (h *Redirect) Name() string { return "redirect" }

func (h *Redirect) Serve(req *reqstate.Request, r *route.Route) bool {
	target, ok := h.Table[req.Path]
	if !ok {
		return false
	}
	status := h.Status
	if status == 0 {
		status = http.StatusFound
	}
	req.Redirect(status, target)
	return true
}
