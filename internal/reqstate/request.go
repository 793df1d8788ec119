// Package reqstate implements the per-connection request state machine of
// spec.md §4.E: an incremual parser over bytes arriving in a ringbuf.Buffer,
// chunked body decoding, and the Error/Redirect/RedirectByStatus response
// helpers.
package reqstate

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aras-services/emberweb/internal/bgwriter"
	"github.com/aras-services/emberweb/internal/ringbuf"
	"github.com/aras-services/emberweb/internal/route"
)

// Limits bounds the parser, the Go realization of spec.md §4.E's
// "Content-Length exceeds the configured per-request limit" rule and a
// header-line ceiling to stop an unbounded request line/header from
// exhausting memory before Content-Length is even known.
type Limits struct {
	MaxContentLength int64
	MaxHeaderLine    int
	MaxHeaderCount   int
}

// DefaultLimits mirrors typical embedded-server defaults: small bodies,
// small header sections.
var DefaultLimits = Limits{
	MaxContentLength: 1 << 20, // 1 MiB
	MaxHeaderLine:    8 << 10, // 8 KiB
	MaxHeaderCount:   100,
}

// Request is the per-connection state machine. Owned exclusively by its
// connection's goroutine (internal/server); never shared.
type Request struct {
	in     *ringbuf.Buffer
	out    *ringbuf.Buffer
	limits Limits
	log    *zap.Logger

	state  State
	status int

	Method  string
	URI     string // raw request-target as sent on the wire
	Path    string // URI with query string stripped
	Version string

	Query   url.Values
	Headers map[string][]string
	Cookies map[string]string
	Form    map[string]string

	ContentLength int64
	chunked       bool
	bodyRemaining int64 // non-chunked: bytes still wanted
	chunkRemaining int64 // chunked: bytes remaining in the current chunk
	Body          []byte

	Route *route.Route

	// SessionID is the session cookie value resolved by the auth engine for
	// this request (existing or freshly minted), set by internal/server
	// after Authenticate runs. Empty if no session applies.
	SessionID string

	CloseAfter bool
	StartedAt  time.Time

	respHeaders map[string]string
	headFlushed bool

	bg *bgwriter.Writer

	errKind    ErrKind
	errMessage string
	failed     bool
}

// New allocates a fresh Request ready to receive bytes via Feed.
func New(limits Limits, log *zap.Logger) *Request {
	if log == nil {
		log = zap.NewNop()
	}
	if limits.MaxHeaderLine <= 0 {
		limits = DefaultLimits
	}
	return &Request{
		in:        ringbuf.New(1024, ringbuf.DefaultMaxCapacity),
		out:       ringbuf.New(1024, ringbuf.DefaultMaxCapacity),
		limits:    limits,
		log:       log,
		state:     Begin,
		Headers:   map[string][]string{},
		Cookies:   map[string]string{},
		StartedAt: time.Now(),
	}
}

// State reports the current lifecycle state.
func (r *Request) State() State { return r.state }

// Failed reports whether Fail has been called.
func (r *Request) Failed() bool { return r.failed }

// StatusCode reports the response status, set by route dispatch or Fail.
func (r *Request) StatusCode() int { return r.status }

// SetStatus sets the response status code a successful handler will emit.
func (r *Request) SetStatus(code int) { r.status = code }

// OutBuffer exposes the response write buffer to the handler/server layer.
func (r *Request) OutBuffer() *ringbuf.Buffer { return r.out }

// Feed appends newly-read socket bytes to the input buffer and advances the
// state machine as far as the available bytes allow. It never blocks; when
// there isn't enough data to complete the current state, it returns with
// the partial bytes retained in the input buffer for the next Feed call.
func (r *Request) Feed(p []byte) error {
	if len(p) > 0 {
		if err := r.in.PutBlock(p); err != nil {
			r.Fail(ErrInternal, "out of memory growing input buffer")
			return err
		}
	}
	return r.advance()
}

func (r *Request) advance() error {
	for {
		switch r.state {
		case Begin:
			if !r.skipBlankLines() {
				return nil
			}
			r.state = FirstLine

		case FirstLine:
			line, ok, err := r.readLine()
			if err != nil {
				r.Fail(ErrProtocol, err.Error())
				return err
			}
			if !ok {
				return nil
			}
			if err := r.parseFirstLine(line); err != nil {
				r.Fail(ErrProtocol, err.Error())
				return err
			}
			r.state = Headers

		case Headers:
			done, err := r.consumeHeaders()
			if err != nil {
				return err
			}
			if !done {
				return nil
			}
			if r.failed {
				return nil
			}
			r.state = Content

		case Content:
			done, err := r.consumeContent()
			if err != nil {
				return err
			}
			if !done {
				return nil
			}
			r.finalizeForm()
			r.state = Ready
			return nil

		default:
			return nil
		}
	}
}

// skipBlankLines discards leading CRLFs a lenient client may send between
// requests on a keep-alive connection, per RFC 7230 §3.5. Returns false if
// more data is needed to tell.
func (r *Request) skipBlankLines() bool {
	for {
		b := r.in.Bytes()
		if len(b) == 0 {
			return false
		}
		if b[0] == '\r' || b[0] == '\n' {
			r.in.Skip(1)
			continue
		}
		return true
	}
}

// readLine extracts one CRLF-terminated line (CRLF stripped) from the input
// buffer without copying when possible. ok is false if no full line is
// buffered yet; a line longer than MaxHeaderLine is a protocol error.
func (r *Request) readLine() (line []byte, ok bool, err error) {
	idx := r.in.Index([]byte("\r\n"))
	if idx < 0 {
		if r.in.Len() > r.limits.MaxHeaderLine {
			return nil, false, fmt.Errorf("reqstate: header line exceeds %d bytes: %w", r.limits.MaxHeaderLine, ErrMalformedHeader)
		}
		return nil, false, nil
	}
	buf := make([]byte, idx)
	r.in.GetBlock(buf)
	r.in.Skip(2) // consume the CRLF itself
	return buf, true, nil
}

func (r *Request) finalizeForm() {
	r.Form = map[string]string{}
	for k, v := range r.Query {
		if len(v) > 0 {
			r.Form[k] = v[0]
		}
	}
	if ct := r.headerValue("Content-Type"); strings.HasPrefix(ct, "application/x-www-form-urlencoded") && len(r.Body) > 0 {
		values, err := url.ParseQuery(string(r.Body))
		if err == nil {
			for k, v := range values {
				if len(v) > 0 {
					r.Form[k] = v[0]
				}
			}
		}
	}
}

func (r *Request) headerValue(name string) string {
	vals := r.Headers[strings.ToLower(name)]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// HeaderValue returns the first value of header name (case-insensitive),
// empty string if absent.
func (r *Request) HeaderValue(name string) string { return r.headerValue(name) }

// --- background writer (spec.md §4.G) ---

// InstallBackgroundWriter attaches bw as this request's streaming writer.
// Panics if one is already installed, per spec.md's "installing it while
// one exists is a programming error".
func (r *Request) InstallBackgroundWriter(bw *bgwriter.Writer) {
	if r.bg != nil {
		panic(ErrBackgroundWriterInstalled)
	}
	r.bg = bw
}

// BackgroundWriter returns the installed writer, nil if none.
func (r *Request) BackgroundWriter() *bgwriter.Writer { return r.bg }

// --- lifecycle transitions driven by the handler/server layer ---

// Run transitions READY → RUNNING, marking that a handler has claimed the
// request.
func (r *Request) Run() { r.state = Running }

// Done transitions RUNNING → COMPLETE, called by a handler once it has
// written its full response (or by the background writer on EOF).
func (r *Request) Done() { r.state = Complete }

// Fail renders a minimal error body into the output buffer, sets the status
// and terminal state, and marks CloseAfter per spec.md §7's per-kind close
// policy. Equivalent to the spec's `error(status, msg)` helper generalized
// over ErrKind.
func (r *Request) Fail(kind ErrKind, msg string) {
	r.failed = true
	r.errKind = kind
	r.errMessage = msg
	r.status = statusFor(kind)
	r.CloseAfter = r.CloseAfter || closesConnection(kind)
	r.writeErrorBody(r.status, msg)
	r.state = Complete
	r.log.Debug("request failed",
		zap.Int("status", r.status), zap.String("method", r.Method), zap.String("path", r.Path), zap.String("msg", msg))
}

// ErrKind reports the last failure kind recorded by Fail.
func (r *Request) ErrKind() ErrKind { return r.errKind }

// writeErrorBody renders `error(status, msg)`: a minimal HTML body with the
// status code and message, as a complete HTTP response.
func (r *Request) writeErrorBody(status int, msg string) {
	body := fmt.Sprintf("<html><head><title>%d</title></head><body><h1>%d %s</h1></body></html>",
		status, status, msg)
	r.out.Reset()
	r.headFlushed = false
	r.SetHeader("Content-Type", "text/html; charset=utf-8")
	r.Write([]byte(body))
}

// Redirect emits a 3xx with Location and closes the connection after
// sending, per spec.md §4.E.
func (r *Request) Redirect(status int, target string) {
	r.status = status
	r.CloseAfter = true
	r.out.Reset()
	r.headFlushed = false
	r.SetHeader("Location", target)
	r.SetHeader("Content-Type", "text/html; charset=utf-8")
	r.Write([]byte(fmt.Sprintf("<html><body>Redirecting to <a href=\"%s\">%s</a></body></html>", target, target)))
	r.state = Complete
}

// RedirectByStatus consults table for a destination keyed by the current
// status code (e.g. 401 → login page) and redirects there if present,
// falling back to Fail with a generic message otherwise.
func (r *Request) RedirectByStatus(table map[int]string, status int) {
	if target, ok := table[status]; ok {
		r.Redirect(302, target)
		return
	}
	r.Fail(statusKind(status), http.StatusText(status))
}

func statusKind(status int) ErrKind {
	switch status {
	case 401:
		return ErrAuthRequired
	case 404:
		return ErrNotFound
	case 413:
		return ErrRequestTooLarge
	case 408:
		return ErrTimeout
	case 503:
		return ErrUnavailable
	default:
		return ErrInternal
	}
}

// splitTarget splits URI into Path and Query, called from parseFirstLine.
func splitTarget(uri string) (path string, query url.Values, err error) {
	u, err := url.ParseRequestURI(uri)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrMalformedRequestLine, err)
	}
	return u.Path, u.Query(), nil
}

// formatContentLength renders n as a decimal Content-Length value; the
// parsing side is in finalizeHeaders.
func formatContentLength(n int64) string {
	return strconv.FormatInt(n, 10)
}
