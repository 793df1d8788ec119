// Command example_gateway demonstrates embedding emberweb.Server behind a
// gorilla/mux-routed API gateway: the gateway owns its own admin-facing
// routes (health check, the read-only admin API) while
// everything else is reverse-proxied straight through to the embedded
// emberweb instance, which does its own routing/auth/dispatch per spec.md.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/aras-services/emberweb"
)

// Gateway wraps an embedded emberweb.Server, fronting it with a gorilla/mux
// router that adds gateway-level concerns (health check, admin API
// forwarding) the embedded server itself doesn't expose over HTTP.
type Gateway struct {
	embedded *emberweb.Server
	proxy    *httputil.ReverseProxy
	stop     context.CancelFunc
}

// NewGateway opens an emberweb.Server rooted at docRoot/routeFile, starts
// its event loop, and wires a reverse proxy to its listener address.
func NewGateway(docRoot, routeFile, listenAddr string) (*Gateway, error) {
	srv, err := emberweb.Open(docRoot, routeFile,
		emberweb.WithBasicRealm("gateway"),
		emberweb.WithFormLogin("/login.html"),
	)
	if err != nil {
		return nil, err
	}
	if err := srv.Listen(listenAddr); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := srv.ServeEvents(ctx); err != nil {
			log.Printf("embedded server exited: %v", err)
		}
	}()

	target := &url.URL{Scheme: "http", Host: srv.Addr()}
	gw := &Gateway{embedded: srv, proxy: httputil.NewSingleHostReverseProxy(target), stop: cancel}
	return gw, nil
}

// Close stops the embedded server's event loop and listener.
func (gw *Gateway) Close() error {
	gw.stop()
	return gw.embedded.Close()
}

// HandleHealthCheck reports the gateway's own liveness plus the embedded
// server's bound address, without forwarding a real request through the
// proxy (the embedded server speaks raw HTTP/1.1 over TCP, not a Go
// http.Handler, so there is no cheaper local healthcheck than "is it bound").
func (gw *Gateway) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "emberweb-gateway",
		"backend": gw.embedded.Addr(),
	})
}

// HandleAdminAPI forwards to the embedded server's read-only operator
// surface (internal/adminapi), mounted directly rather than proxied since
// it is already an http.Handler.
func (gw *Gateway) HandleAdminAPI() http.Handler {
	return gw.embedded.AdminAPI().Handler()
}

// HandleProxy forwards any request not claimed by a gateway-specific route
// straight through to the embedded server, which applies its own route
// table, authentication, and handler dispatch.
func (gw *Gateway) HandleProxy(w http.ResponseWriter, r *http.Request) {
	gw.proxy.ServeHTTP(w, r)
}

// SetupRoutes builds the gorilla/mux router: gateway-owned endpoints take
// priority, everything else falls through to the embedded server.
func (gw *Gateway) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/gateway/health", gw.HandleHealthCheck).Methods(http.MethodGet)
	r.PathPrefix("/gateway/admin/").Handler(http.StripPrefix("/gateway/admin", gw.HandleAdminAPI()))
	r.PathPrefix("/").HandlerFunc(gw.HandleProxy)
	return r
}

func main() {
	docRoot := os.Getenv("EMBERWEB_DOC_ROOT")
	if docRoot == "" {
		docRoot = "./www"
	}
	routeFile := os.Getenv("EMBERWEB_ROUTE_FILE")
	if routeFile == "" {
		routeFile = "./emberweb.conf"
	}
	backendAddr := os.Getenv("EMBERWEB_BACKEND_ADDR")
	if backendAddr == "" {
		backendAddr = "127.0.0.1:0"
	}
	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "3000"
	}

	gw, err := NewGateway(docRoot, routeFile, backendAddr)
	if err != nil {
		log.Fatalf("failed to start embedded emberweb server: %v", err)
	}
	defer gw.Close()

	router := gw.SetupRoutes()
	httpSrv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("API gateway starting on port %s, backed by emberweb at %s", port, gw.embedded.Addr())
	log.Fatal(httpSrv.ListenAndServe())
}
