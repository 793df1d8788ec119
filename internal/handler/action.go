package handler

import (
	"strings"

	"github.com/aras-services/emberweb/internal/reqstate"
	"github.com/aras-services/emberweb/internal/route"
)

// ActionPrefix is the path prefix action callbacks are registered under,
// per spec.md §6's "invokes a named in-process callback registered under
// /action/<name>".
const ActionPrefix = "/action/"

// Action implements the built-in action handler of spec.md §4.F: dispatches
// to a registered callback by name, passing decoded query/form variables.
type Action struct {
	Actions map[string]ActionFunc
}

func (a *Action) Name() string { return "action" }

func (a *Action) Serve(req *reqstate.Request, r *route.Route) bool {
	if !strings.HasPrefix(req.Path, ActionPrefix) {
		return false
	}
	name := strings.TrimPrefix(req.Path, ActionPrefix)
	fn, ok := a.Actions[name]
	if !ok {
		req.Fail(reqstate.ErrNotFound, "no such action")
		return true
	}
	fn(req, req.Form)
	if req.State() != reqstate.Complete {
		req.Done()
	}
	return true
}
