// Package handler implements the ordered handler registry and the built-in
// handlers of spec.md §4.F: file, action, redirect, upload, auth.
package handler

import (
	"go.uber.org/zap"

	"github.com/aras-services/emberweb/internal/reqstate"
	"github.com/aras-services/emberweb/internal/route"
)

// ActionFunc is a named in-process callback invoked by the action built-in,
// receiving decoded query/form variables.
type ActionFunc func(req *reqstate.Request, vars map[string]string)

// Handler is one entry in the ordered dispatch chain. Serve returns true if
// it claimed the request (and has begun or completed producing a response),
// false to let the next handler in the chain try.
type Handler interface {
	Name() string
	Serve(req *reqstate.Request, r *route.Route) bool
}

// Registry holds handlers in registration order; dispatch tries them in
// that order and the first claim wins, per spec.md §4.F.
type Registry struct {
	handlers []Handler
	log      *zap.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{log: log}
}

// Register installs h at the end of the dispatch chain. Safe to call only
// between requests (spec.md §5).
func (reg *Registry) Register(h Handler) {
	reg.handlers = append(reg.handlers, h)
}

// All returns the registered handlers in dispatch order.
func (reg *Registry) All() []Handler { return reg.handlers }

// admits reports whether r's handler-name filter allows name; an empty
// filter admits every registered handler.
func admits(r *route.Route, name string) bool {
	if r == nil || len(r.Handlers) == 0 {
		return true
	}
	for _, n := range r.Handlers {
		if n == name {
			return true
		}
	}
	return false
}

// Dispatch transitions READY→RUNNING and iterates handlers in order,
// skipping those the route's handler list excludes, until one claims the
// request. If none claim, the request fails with NotFound (spec.md §4.F:
// "If none claim → 404").
func (reg *Registry) Dispatch(req *reqstate.Request, r *route.Route) bool {
	req.Run()
	for _, h := range reg.handlers {
		if !admits(r, h.Name()) {
			continue
		}
		if h.Serve(req, r) {
			reg.log.Debug("handler claimed request", zap.String("handler", h.Name()), zap.String("path", req.Path))
			return true
		}
	}
	req.Fail(reqstate.ErrNotFound, "no handler claimed the request")
	return false
}
