package reqstate

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// parseFirstLine parses "METHOD uri HTTP/x.y", per spec.md §4.E's
// BEGIN→FIRST_LINE→HEADERS transition.
func (r *Request) parseFirstLine(line []byte) error {
	parts := strings.Fields(string(line))
	if len(parts) != 3 {
		return fmt.Errorf("%w: %q", ErrMalformedRequestLine, string(line))
	}
	method, uri, version := parts[0], parts[1], parts[2]
	if method == "" || uri == "" {
		return fmt.Errorf("%w: empty method or uri", ErrMalformedRequestLine)
	}
	if !strings.HasPrefix(version, "HTTP/1.") {
		return fmt.Errorf("%w: unsupported version %q", ErrMalformedRequestLine, version)
	}

	path, query, err := splitTarget(uri)
	if err != nil {
		return err
	}

	r.Method = strings.ToUpper(method)
	r.URI = uri
	r.Path = path
	r.Query = query
	r.Version = version
	return nil
}

// consumeHeaders reads header lines until the blank line that ends the
// section, parsing Content-Length/Transfer-Encoding/Cookie as it goes.
// Returns done=false if more data is needed.
func (r *Request) consumeHeaders() (done bool, err error) {
	for {
		line, ok, lerr := r.readLine()
		if lerr != nil {
			r.Fail(ErrProtocol, lerr.Error())
			return false, lerr
		}
		if !ok {
			return false, nil
		}
		if len(line) == 0 {
			if err := r.finalizeHeaders(); err != nil {
				return false, err
			}
			return true, nil
		}
		if err := r.parseHeaderLine(line); err != nil {
			r.Fail(ErrProtocol, err.Error())
			return false, err
		}
		if len(r.Headers) > r.limits.MaxHeaderCount {
			err := fmt.Errorf("%w: too many headers", ErrMalformedHeader)
			r.Fail(ErrProtocol, err.Error())
			return false, err
		}
	}
}

func (r *Request) parseHeaderLine(line []byte) error {
	s := string(line)
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return fmt.Errorf("%w: %q", ErrMalformedHeader, s)
	}
	name := strings.ToLower(strings.TrimSpace(s[:colon]))
	value := strings.TrimSpace(s[colon+1:])
	if name == "" {
		return fmt.Errorf("%w: empty header name", ErrMalformedHeader)
	}
	r.Headers[name] = append(r.Headers[name], value)
	if name == "cookie" {
		r.parseCookieHeader(value)
	}
	return nil
}

func (r *Request) parseCookieHeader(value string) {
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		r.Cookies[strings.TrimSpace(part[:eq])] = strings.TrimSpace(part[eq+1:])
	}
}

// finalizeHeaders parses Content-Length/Transfer-Encoding now that the full
// header section is known, applying the per-request size limit of spec.md
// §4.E ("Content-Length exceeds the configured per-request limit → 413 with
// connection close").
func (r *Request) finalizeHeaders() error {
	if te := r.headerValue("Transfer-Encoding"); strings.EqualFold(te, "chunked") {
		r.chunked = true
		r.chunkRemaining = -1 // signals "read chunk size line next"
		return nil
	}
	if cl := r.headerValue("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			err := fmt.Errorf("%w: bad Content-Length %q", ErrMalformedHeader, cl)
			r.Fail(ErrProtocol, err.Error())
			return err
		}
		if n > r.limits.MaxContentLength {
			r.Fail(ErrRequestTooLarge, "request body exceeds configured limit")
			return fmt.Errorf("reqstate: content-length %d exceeds limit %d", n, r.limits.MaxContentLength)
		}
		r.ContentLength = n
		r.bodyRemaining = n
	}
	return nil
}

// consumeContent accumulates the body (fixed-length or chunked), per
// spec.md §4.E's CONTENT→READY transition. Methods without a declared body
// (no Content-Length, not chunked) complete immediately.
func (r *Request) consumeContent() (done bool, err error) {
	if r.chunked {
		return r.consumeChunkedContent()
	}
	if r.bodyRemaining == 0 {
		return true, nil
	}
	avail := r.in.Bytes()
	take := int64(len(avail))
	if take > r.bodyRemaining {
		take = r.bodyRemaining
	}
	if take > 0 {
		buf := make([]byte, take)
		r.in.GetBlock(buf)
		r.Body = append(r.Body, buf...)
		r.bodyRemaining -= take
	}
	return r.bodyRemaining == 0, nil
}

// consumeChunkedContent decodes a chunked transfer-encoded body
// incrementally: size-line, chunk-data, CRLF, repeated until a zero-size
// chunk, per spec.md §4.E ("a trailing zero-chunk completes CONTENT").
func (r *Request) consumeChunkedContent() (done bool, err error) {
	for {
		if r.chunkRemaining < 0 {
			line, ok, lerr := r.readLine()
			if lerr != nil {
				r.Fail(ErrProtocol, lerr.Error())
				return false, lerr
			}
			if !ok {
				return false, nil
			}
			sizeStr := line
			if semi := indexByte(sizeStr, ';'); semi >= 0 {
				sizeStr = sizeStr[:semi]
			}
			n, perr := strconv.ParseInt(strings.TrimSpace(string(sizeStr)), 16, 64)
			if perr != nil || n < 0 {
				perr := fmt.Errorf("%w: bad chunk size", ErrMalformedChunk)
				r.Fail(ErrProtocol, perr.Error())
				return false, perr
			}
			if int64(len(r.Body))+n > r.limits.MaxContentLength {
				r.Fail(ErrRequestTooLarge, "chunked request body exceeds configured limit")
				return false, fmt.Errorf("reqstate: chunked body exceeds limit %d", r.limits.MaxContentLength)
			}
			if n == 0 {
				// Trailing headers (if any) then the terminating CRLF; this
				// library does not surface trailers.
				for {
					tline, ok, lerr := r.readLine()
					if lerr != nil {
						r.Fail(ErrProtocol, lerr.Error())
						return false, lerr
					}
					if !ok {
						return false, nil
					}
					if len(tline) == 0 {
						return true, nil
					}
				}
			}
			r.chunkRemaining = n
		}

		avail := r.in.Bytes()
		take := int64(len(avail))
		if take > r.chunkRemaining {
			take = r.chunkRemaining
		}
		if take > 0 {
			buf := make([]byte, take)
			r.in.GetBlock(buf)
			r.Body = append(r.Body, buf...)
			r.chunkRemaining -= take
		}
		if r.chunkRemaining > 0 {
			return false, nil
		}
		// Consume the chunk's trailing CRLF.
		trailer, ok, lerr := r.readLine()
		if lerr != nil {
			r.Fail(ErrProtocol, lerr.Error())
			return false, lerr
		}
		if !ok {
			return false, nil
		}
		if len(trailer) != 0 {
			err := fmt.Errorf("%w: chunk not terminated by CRLF", ErrMalformedChunk)
			r.Fail(ErrProtocol, err.Error())
			return false, err
		}
		r.chunkRemaining = -1
	}
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// loggerOrNop returns log, or a no-op logger when log is nil.
func loggerOrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
