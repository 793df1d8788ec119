// Package server orchestrates the per-connection request lifecycle of
// spec.md §4.E/§5, wiring together the route table, auth engine, session
// store, and handler registry built by the other internal packages.
//
// REDESIGN (SPEC_FULL.md §7): spec.md describes a single-threaded,
// cooperative event loop with two suspension points (blocking read,
// blocking write). Go has goroutines and blocking I/O that already yields
// to the runtime scheduler, so each accepted connection runs on its own
// goroutine instead: a blocking net.Conn.Read/Write call *is* the
// suspension point. Process-wide state (route table, user/role tables,
// session store, handler registry) stays behind the same sync.RWMutex
// discipline spec.md §5 allows as its multi-threaded fallback.
package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/aras-services/emberweb/internal/auth"
	"github.com/aras-services/emberweb/internal/handler"
	"github.com/aras-services/emberweb/internal/reqstate"
	"github.com/aras-services/emberweb/internal/route"
	"github.com/aras-services/emberweb/internal/session"
)

// Config bounds the per-connection lifecycle and carries the reqstate
// parsing limits. IdleTimeout sets the read deadline once at the start of
// each request and the write deadline once per response flush; neither is
// extended as bytes arrive or are written. RequestDeadline is stored but
// not enforced: no wall-clock cap applies and no 408 is sent.
type Config struct {
	IdleTimeout     time.Duration
	RequestDeadline time.Duration
	Limits          reqstate.Limits
}

// DefaultConfig mirrors typical embedded-server defaults.
var DefaultConfig = Config{
	IdleTimeout:     90 * time.Second,
	RequestDeadline: 30 * time.Second,
	Limits:          reqstate.DefaultLimits,
}

// Server ties the route table, auth engine, session store, and handler
// registry together and drives the accept loop.
type Server struct {
	Routes   *route.Table
	Auth     *auth.Engine
	Sessions *session.Store
	Handlers *handler.Registry
	LoginTable map[int]string // status code -> redirect target, for RedirectByStatus

	cfg Config
	log *zap.Logger

	listener net.Listener
}

// New constructs a Server over already-built components.
func New(routes *route.Table, authEngine *auth.Engine, sessions *session.Store, handlers *handler.Registry, cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Limits.MaxHeaderLine == 0 {
		cfg = DefaultConfig
	}
	return &Server{
		Routes:   routes,
		Auth:     authEngine,
		Sessions: sessions,
		Handlers: handlers,
		cfg:      cfg,
		log:      log,
	}
}

// Listen binds endpoint ("[host]:port") and begins accepting connections. It
// does not block; call ServeEvents to run the accept loop.
func (s *Server) Listen(endpoint string) error {
	ln, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// ServeEvents runs the accept loop until ctx is canceled or Close is
// called, spawning one goroutine per accepted connection (the REDESIGN
// described in the package doc).
func (s *Server) ServeEvents(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(conn)
	}
}

// Addr reports the listener's bound address. Only meaningful after Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting new connections and closes the session store's
// background sweep.
func (s *Server) Close() error {
	s.Sessions.Close()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// handleConn owns conn exclusively for its lifetime: reads, parses,
// dispatches, and writes one request at a time, looping for keep-alive
// (spec.md §5: "within one connection, the next request is not parsed
// until the current one reaches COMPLETE").
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 16*1024)

	for {
		conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		req := reqstate.New(s.cfg.Limits, s.log)

		if !s.readUntilReady(conn, req, buf) {
			return
		}

		s.dispatch(req)
		if err := s.flush(conn, req); err != nil {
			return
		}
		if req.CloseAfter {
			return
		}
	}
}

// readUntilReady feeds socket bytes into req until it reaches READY (or a
// terminal failure state). Returns false if the connection should be
// closed (read error or idle timeout); a parse failure returns true so the
// error response Fail rendered is flushed.
func (s *Server) readUntilReady(conn net.Conn, req *reqstate.Request, buf []byte) bool {
	for req.State() != reqstate.Ready {
		if req.State() == reqstate.Complete {
			return true // parse failed; Fail already rendered the error response
		}
		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := req.Feed(buf[:n]); ferr != nil {
				return true // Fail already rendered the error response
			}
		}
		if err != nil {
			return false
		}
	}
	return true
}

// dispatch runs route selection, authentication, and handler dispatch for a
// request that has reached READY. A request already Complete (a parse
// failure) skips straight through.
func (s *Server) dispatch(req *reqstate.Request) {
	if req.State() == reqstate.Complete {
		return
	}

	ext := extensionOf(req.Path)
	r := s.Routes.Select(req.Path, req.Method, ext)
	if r == nil {
		req.Fail(reqstate.ErrNotFound, "no route matches")
		return
	}
	req.Route = r

	result := s.Auth.Authenticate(auth.AuthRequest{
		Route:           r,
		Method:          req.Method,
		URI:             req.Path,
		AuthHeader:      req.HeaderValue("Authorization"),
		Form:            req.Form,
		ExistingSession: req.Cookies[session.CookieName],
	})
	switch result.Decision {
	case auth.DecisionOK:
		// fallthrough to ability check below
	case auth.DecisionMissing, auth.DecisionDenied:
		req.SetHeader("WWW-Authenticate", result.Challenge)
		if r.AuthType == route.AuthForm {
			if _, ok := s.LoginTable[401]; !ok && result.Challenge != "" {
				req.Redirect(302, result.Challenge)
			} else {
				req.RedirectByStatus(s.LoginTable, 401)
			}
		} else {
			req.Fail(reqstate.ErrAuthRequired, "authentication required")
		}
		return
	case auth.DecisionBadProtocol:
		req.Fail(reqstate.ErrAuthBadProtocol, "authentication protocol mismatch")
		return
	}
	if result.SessionID != "" {
		req.SessionID = result.SessionID
		req.SetHeader("Set-Cookie", session.CookieName+"="+result.SessionID+"; Path=/; HttpOnly")
	} else {
		req.SessionID = req.Cookies[session.CookieName]
	}

	if missing, ok := s.Auth.Authorize(result.Username, r); !ok {
		req.Fail(reqstate.ErrAuthRequired, "missing required ability: "+missing)
		return
	}

	s.Handlers.Dispatch(req, r)
}

// flush drains the response buffer (and any installed background writer)
// to conn.
func (s *Server) flush(conn net.Conn, req *reqstate.Request) error {
	conn.SetWriteDeadline(time.Now().Add(s.cfg.IdleTimeout))
	if _, err := req.OutBuffer().WriteTo(conn); err != nil {
		return err
	}
	if bg := req.BackgroundWriter(); bg != nil {
		for {
			finished, err := bg.WriteChunk()
			if _, werr := req.OutBuffer().WriteTo(conn); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}
			if finished {
				break
			}
		}
	}
	req.Done()
	return nil
}

func extensionOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i+1:]
		case '/':
			return ""
		}
	}
	return ""
}
