package reqstate

import (
	"fmt"
	"net/http"
	"sort"
	"time"
)

// WriteHeaders sets a response header, replacing any previous value. Must be
// called before the first Write (headers are flushed lazily on first body
// write or on an explicit FlushHead).
func (r *Request) WriteHeaders(headers map[string]string) {
	if r.respHeaders == nil {
		r.respHeaders = map[string]string{}
	}
	for k, v := range headers {
		r.respHeaders[k] = v
	}
}

// SetHeader sets a single response header.
func (r *Request) SetHeader(name, value string) {
	r.WriteHeaders(map[string]string{name: value})
}

// Write appends body bytes, flushing the status line and headers first if
// this is the first write. Implements the "short responses are emitted into
// the write buffer" path of spec.md §4.E. Large file responses call
// FlushHead and install a bgwriter.Writer whose chunks arrive here too.
func (r *Request) Write(p []byte) (int, error) {
	r.flushHead()
	if err := r.out.PutBlock(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// FlushHead writes the status line and headers without any body, used by
// handlers that stream the body separately via a background writer.
func (r *Request) FlushHead() { r.flushHead() }

func (r *Request) flushHead() {
	if r.headFlushed {
		return
	}
	r.headFlushed = true
	if r.status == 0 {
		r.status = 200
	}

	conn := "keep-alive"
	if r.CloseAfter {
		conn = "close"
	}
	r.out.PutString(fmt.Sprintf("HTTP/1.1 %d %s\r\n", r.status, http.StatusText(r.status)))
	r.out.PutString(fmt.Sprintf("Server: emberweb\r\n"))
	r.out.PutString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(http.TimeFormat)))
	r.out.PutString(fmt.Sprintf("Connection: %s\r\n", conn))

	names := make([]string, 0, len(r.respHeaders))
	for name := range r.respHeaders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.out.PutString(fmt.Sprintf("%s: %s\r\n", name, r.respHeaders[name]))
	}
	r.out.PutString("\r\n")
}
