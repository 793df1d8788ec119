package server

import (
	"bufio"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aras-services/emberweb/internal/auth"
	"github.com/aras-services/emberweb/internal/handler"
	"github.com/aras-services/emberweb/internal/route"
	"github.com/aras-services/emberweb/internal/session"
)

// newTestServer wires a minimal stack: one file route, no auth required.
func newTestServer(t *testing.T, docRoot string) *Server {
	t.Helper()
	routes := route.New()
	routes.Add(&route.Route{Prefix: "/", AuthType: route.AuthNone})

	sessions := session.New(time.Minute, time.Minute, nil)
	t.Cleanup(sessions.Close)

	engine := auth.New(sessions, auth.Options{})

	registry := handler.NewRegistry(nil)
	registry.Register(&handler.File{DocRoot: docRoot})

	return New(routes, engine, sessions, registry, DefaultConfig, nil)
}

// servePipe runs handleConn on one end of a net.Pipe and returns the other.
func servePipe(t *testing.T, s *Server) net.Conn {
	t.Helper()
	client, srv := net.Pipe()
	go s.handleConn(srv)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestServerServesStaticFileOverConnection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi there"), 0o644))
	s := newTestServer(t, dir)

	client := servePipe(t, s)
	_, err := client.Write([]byte("GET /hello.txt HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, statusLine, "200")

	for foundBody := false; !foundBody; {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			foundBody = true
		}
	}
	body := make([]byte, len("hi there"))
	_, err = io.ReadFull(reader, body)
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(body))
}

func TestServerUnknownRouteIs404(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, dir)
	routes := route.New() // empty table: nothing matches
	s.Routes = routes

	client := servePipe(t, s)
	_, err := client.Write([]byte("GET /nope HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, statusLine, "404")
}

func TestServerRequiresBasicAuthChallenge(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("top secret"), 0o644))

	routes := route.New()
	routes.Add(&route.Route{Prefix: "/", AuthType: route.AuthBasic})

	sessions := session.New(time.Minute, time.Minute, nil)
	t.Cleanup(sessions.Close)

	engine := auth.New(sessions, auth.Options{})
	engine.AddUser(&auth.User{Username: "alice", Password: "pw", Format: auth.PasswordCleartext})
	engine.RegisterProtocol(route.AuthBasic, engine.NewBasicProtocol("test"))

	registry := handler.NewRegistry(nil)
	registry.Register(&handler.File{DocRoot: dir})

	s := New(routes, engine, sessions, registry, DefaultConfig, nil)

	client := servePipe(t, s)
	_, err := client.Write([]byte("GET /secret.txt HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, statusLine, "401")
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, "html", extensionOf("/a/b/c.html"))
	assert.Equal(t, "", extensionOf("/a/b/c"))
	assert.Equal(t, "", extensionOf("/a/b/"))
}
