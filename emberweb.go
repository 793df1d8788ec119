// Package emberweb is the embeddable HTTP/1.1 server library described by
// this repository's design: a single process embeds a Server, points it at
// a document root and a combined auth/route directive file, registers any
// custom handlers/actions, and drives its event loop.
package emberweb

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aras-services/emberweb/internal/adminapi"
	"github.com/aras-services/emberweb/internal/auth"
	"github.com/aras-services/emberweb/internal/handler"
	"github.com/aras-services/emberweb/internal/reqstate"
	"github.com/aras-services/emberweb/internal/route"
	"github.com/aras-services/emberweb/internal/server"
	"github.com/aras-services/emberweb/internal/session"
)

// Server is the embedding handle: construct one with Open, then Listen and
// ServeEvents.
type Server struct {
	routeFile string
	store     auth.AuthStore

	routes   *route.Table
	sessions *session.Store
	authn    *auth.Engine
	handlers *handler.Registry
	inner    *server.Server

	log *zap.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	log              *zap.Logger
	idleTTL          time.Duration
	sweepInterval    time.Duration
	serverCfg        server.Config
	abilityDepth     int
	autoLogin        bool
	authStore        auth.AuthStore
	defaultDocument  string
	readOnly         bool
	digestRealm      string
	basicRealm       string
	formLoginPage    string
	bearerSecret     []byte
	bearerIssuer     string
	bearerLifetime   time.Duration
	loginRedirectMap map[int]string
}

func defaultOptions() *options {
	return &options{
		log:           zap.NewNop(),
		idleTTL:       30 * time.Minute,
		sweepInterval: time.Minute,
		serverCfg:     server.DefaultConfig,
		abilityDepth:  20,
	}
}

// WithLogger sets the logger threaded through every component.
func WithLogger(log *zap.Logger) Option { return func(o *options) { o.log = log } }

// WithSessionTTL overrides the idle session timeout and sweep interval.
func WithSessionTTL(idle, sweep time.Duration) Option {
	return func(o *options) { o.idleTTL = idle; o.sweepInterval = sweep }
}

// WithServerConfig overrides connection idle/request-deadline/parsing limits.
func WithServerConfig(cfg server.Config) Option { return func(o *options) { o.serverCfg = cfg } }

// WithAutoLogin enables development mode: every request authenticates as
// "dev" without checking credentials. Never enable in production.
func WithAutoLogin() Option { return func(o *options) { o.autoLogin = true } }

// WithAuthStore overrides the default file-backed AuthStore (e.g. with
// auth.NewPgStore for the supplemented Postgres-backed alternative).
func WithAuthStore(s auth.AuthStore) Option { return func(o *options) { o.authStore = s } }

// WithDefaultDocument sets the directory-index document name for the file
// handler (default "index.html").
func WithDefaultDocument(name string) Option { return func(o *options) { o.defaultDocument = name } }

// WithReadOnly runs the file handler in ROM mode: PUT/DELETE are never
// served, matching deployment on read-only storage.
func WithReadOnly() Option { return func(o *options) { o.readOnly = true } }

// WithBasicRealm enables HTTP Basic auth under the given realm.
func WithBasicRealm(realm string) Option { return func(o *options) { o.basicRealm = realm } }

// WithDigestRealm enables HTTP Digest auth under the given realm.
func WithDigestRealm(realm string) Option { return func(o *options) { o.digestRealm = realm } }

// WithFormLogin enables form-based login, serving loginPage on challenge.
func WithFormLogin(loginPage string) Option { return func(o *options) { o.formLoginPage = loginPage } }

// WithBearerAuth enables the supplemented JWT bearer auth type.
func WithBearerAuth(secret []byte, issuer string, lifetime time.Duration) Option {
	return func(o *options) {
		o.bearerSecret = secret
		o.bearerIssuer = issuer
		o.bearerLifetime = lifetime
	}
}

// WithLoginRedirects maps a status code (typically 401) to the path a Form
// auth challenge redirects unauthenticated clients to.
func WithLoginRedirects(table map[int]string) Option {
	return func(o *options) { o.loginRedirectMap = table }
}

// Open constructs a Server rooted at docRoot, loading routes and
// users/roles from routeFile (the combined auth/route directive format of
// §6). A non-existent routeFile is treated as empty, matching FileStore and
// route.LoadDirectives' own create-on-first-Write semantics.
func Open(docRoot, routeFile string, opts ...Option) (*Server, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	routes := route.New()
	if err := route.LoadDirectives(routeFile, routes); err != nil {
		return nil, fmt.Errorf("emberweb: loading routes: %w", err)
	}

	store := o.authStore
	if store == nil {
		fs := auth.NewFileStore(routeFile)
		fs.Routes = routes
		store = fs
	}
	tables, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("emberweb: loading auth tables: %w", err)
	}

	sessions := session.New(o.idleTTL, o.sweepInterval, o.log)
	authn := auth.New(sessions, auth.Options{AbilityDepth: o.abilityDepth, AutoLogin: o.autoLogin, Log: o.log})
	authn.LoadTables(tables)

	if o.basicRealm != "" {
		authn.RegisterProtocol(route.AuthBasic, authn.NewBasicProtocol(o.basicRealm))
	}
	if o.digestRealm != "" {
		digest, err := authn.NewDigestProtocol(o.digestRealm)
		if err != nil {
			return nil, fmt.Errorf("emberweb: initializing digest auth: %w", err)
		}
		authn.RegisterProtocol(route.AuthDigest, digest)
	}
	if o.formLoginPage != "" {
		authn.RegisterProtocol(route.AuthForm, authn.NewFormProtocol(o.formLoginPage))
	}
	if len(o.bearerSecret) > 0 {
		authn.RegisterProtocol(route.AuthBearer, authn.NewBearerProtocol(o.bearerSecret, o.bearerIssuer, o.bearerLifetime))
	}

	handlers := handler.NewRegistry(o.log)
	handlers.Register(&handler.File{
		DocRoot:         docRoot,
		DefaultDocument: o.defaultDocument,
		ReadOnly:        o.readOnly,
		Log:             o.log,
	})
	handlers.Register(&handler.Action{Actions: map[string]handler.ActionFunc{}})
	handlers.Register(&handler.Redirect{Table: map[string]string{}})

	inner := server.New(routes, authn, sessions, handlers, o.serverCfg, o.log)
	inner.LoginTable = o.loginRedirectMap

	return &Server{
		routeFile: routeFile,
		store:     store,
		routes:    routes,
		sessions:  sessions,
		authn:     authn,
		handlers:  handlers,
		inner:     inner,
		log:       o.log,
	}, nil
}

// Listen binds the server to endpoint ("[host]:port").
func (s *Server) Listen(endpoint string) error { return s.inner.Listen(endpoint) }

// ServeEvents runs the accept loop until ctx is canceled.
func (s *Server) ServeEvents(ctx context.Context) error { return s.inner.ServeEvents(ctx) }

// Close shuts the server down: stops accepting connections and the session
// sweep goroutine.
func (s *Server) Close() error { return s.inner.Close() }

// Addr reports the bound listener address. Only meaningful after Listen.
func (s *Server) Addr() string { return s.inner.Addr() }

// AdminAPI builds the read-only operator surface (§10) over this Server's
// live route table and session store, for an embedding process to mount
// alongside its own admin tooling.
func (s *Server) AdminAPI() *adminapi.Router {
	return &adminapi.Router{Routes: s.routes, Sessions: s.sessions}
}

// DefineHandler registers a custom Handler after the built-ins, which are
// tried before it (first-claim-wins dispatch order, §4.F).
func (s *Server) DefineHandler(h handler.Handler) error {
	s.handlers.Register(h)
	return nil
}

// DefineAction registers a callback reachable at /action/<name>.
func (s *Server) DefineAction(name string, fn handler.ActionFunc) error {
	for _, h := range s.handlers.All() {
		if a, ok := h.(*handler.Action); ok {
			a.Actions[name] = fn
			return nil
		}
	}
	return fmt.Errorf("emberweb: no action handler registered")
}

// AddUser registers a new user with a cleartext password (hashed formats
// are loaded via the auth file directly; this convenience method exists
// for runtime provisioning).
func (s *Server) AddUser(username, password string, roles []string) error {
	s.authn.AddUser(&auth.User{Username: username, Password: password, Format: auth.PasswordCleartext, Roles: roles})
	return s.persistAuthTables()
}

// AddRole registers a new role.
func (s *Server) AddRole(name string, abilities []string) error {
	s.authn.AddRole(&auth.Role{Name: name, Abilities: abilities})
	return s.persistAuthTables()
}

// SetUserRoles replaces a user's role assignment, recomputing its ability
// set.
func (s *Server) SetUserRoles(username string, roles []string) error {
	if !s.authn.SetUserRoles(username, roles) {
		return fmt.Errorf("emberweb: no such user %q", username)
	}
	return s.persistAuthTables()
}

func (s *Server) persistAuthTables() error {
	return s.store.Write(s.authn.Snapshot())
}

// LoginUser mints (or reuses) a session for req, associating it with
// username, and stamps req.SessionID so the caller's response carries the
// session cookie once flushed.
func (s *Server) LoginUser(req *reqstate.Request, username string) error {
	if _, ok := s.authn.GetUser(username); !ok {
		return auth.ErrNoSuchUser(username)
	}
	id := s.authn.Login(req.SessionID, username)
	req.SessionID = id
	req.SetHeader("Set-Cookie", session.CookieName+"="+id+"; Path=/; HttpOnly")
	return nil
}

// LogoutUser removes the authenticated username from req's session, if any,
// and clears req.SessionID; the session and its other variables remain.
func (s *Server) LogoutUser(req *reqstate.Request) error {
	s.authn.Logout(req.SessionID)
	req.SessionID = ""
	return nil
}

// GetSessionVar reads a variable from req's session.
func (s *Server) GetSessionVar(req *reqstate.Request, name string) (any, bool) {
	sess, ok := s.sessions.Get(req.SessionID)
	if !ok {
		return nil, false
	}
	return sess.Get(name)
}

// SetSessionVar writes a variable into req's session, minting one first if
// req doesn't yet have one.
func (s *Server) SetSessionVar(req *reqstate.Request, name string, val any) {
	sess, ok := s.sessions.Get(req.SessionID)
	if !ok {
		sess = s.sessions.Create()
		req.SessionID = sess.ID
		req.SetHeader("Set-Cookie", session.CookieName+"="+sess.ID+"; Path=/; HttpOnly")
	}
	sess.Set(name, val)
}
