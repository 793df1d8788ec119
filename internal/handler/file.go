package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aras-services/emberweb/internal/bgwriter"
	"github.com/aras-services/emberweb/internal/reqstate"
	"github.com/aras-services/emberweb/internal/route"
)

// smallFileThreshold is the cutoff below which File serves the whole body in
// one Write; at or above it, it installs a bgwriter.Writer instead, matching
// spec.md §4.G's "large file responses install a background writer".
const smallFileThreshold = 64 << 10 // 64 KiB

// File implements the built-in static-document handler of spec.md §4.F:
// If-Modified-Since/Last-Modified, HEAD, directory→default-document
// redirect, and DELETE/PUT when not read-only.
type File struct {
	DocRoot         string
	DefaultDocument string
	ReadOnly        bool
	Log             *zap.Logger
}

func (f *File) Name() string { return "file" }

func (f *File) Serve(req *reqstate.Request, r *route.Route) bool {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}

	local := f.resolve(req.Path)
	info, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return false // let a later handler (or 404) take it
		}
		req.Fail(reqstate.ErrInternal, "stat failed")
		return true
	}

	if info.IsDir() {
		target := strings.TrimSuffix(req.Path, "/") + "/" + f.defaultDocument()
		req.Redirect(http.StatusFound, target)
		return true
	}

	switch req.Method {
	case "GET", "HEAD":
		return f.serveGet(req, local, info)
	case "DELETE":
		if f.ReadOnly {
			return false // not served from ROM mode; falls through to 404
		}
		if err := os.Remove(local); err != nil {
			req.Fail(reqstate.ErrInternal, "delete failed")
			return true
		}
		req.SetStatus(http.StatusNoContent)
		req.Write(nil)
		return true
	case "PUT":
		if f.ReadOnly {
			return false
		}
		if err := os.WriteFile(local, req.Body, 0o644); err != nil {
			req.Fail(reqstate.ErrInternal, "write failed")
			return true
		}
		req.SetStatus(http.StatusNoContent)
		req.Write(nil)
		return true
	default:
		return false
	}
}

func (f *File) serveGet(req *reqstate.Request, local string, info os.FileInfo) bool {
	lastMod := info.ModTime().UTC().Format(http.TimeFormat)
	if ims := req.HeaderValue("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !info.ModTime().After(t.Add(time.Second)) {
			req.SetStatus(http.StatusNotModified)
			req.SetHeader("Last-Modified", lastMod)
			req.Write(nil)
			return true
		}
	}

	req.SetHeader("Last-Modified", lastMod)
	req.SetHeader("Content-Type", contentTypeFor(local))

	if req.Method == "HEAD" {
		req.SetHeader("Content-Length", contentLength(info.Size()))
		req.FlushHead()
		return true
	}

	if info.Size() < smallFileThreshold {
		data, err := os.ReadFile(local)
		if err != nil {
			req.Fail(reqstate.ErrInternal, "read failed")
			return true
		}
		req.SetHeader("Content-Length", contentLength(int64(len(data))))
		req.Write(data)
		return true
	}

	fh, err := os.Open(local)
	if err != nil {
		req.Fail(reqstate.ErrInternal, "open failed")
		return true
	}
	req.SetHeader("Content-Length", contentLength(info.Size()))
	req.FlushHead()
	req.InstallBackgroundWriter(bgwriter.New(fh, req))
	return true
}

func contentLength(n int64) string { return strconv.FormatInt(n, 10) }

// resolve joins DocRoot with the cleaned request path, refusing to escape
// the root via ".." segments.
func (f *File) resolve(reqPath string) string {
	clean := filepath.Clean("/" + reqPath)
	return filepath.Join(f.DocRoot, clean)
}

func (f *File) defaultDocument() string {
	if f.DefaultDocument == "" {
		return "index.html"
	}
	return f.DefaultDocument
}

func contentTypeFor(path string) string {
	ext := filepath.Ext(path)
	if ct := mimeTypes[strings.ToLower(ext)]; ct != "" {
		return ct
	}
	return "application/octet-stream"
}

var mimeTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".txt":  "text/plain; charset=utf-8",
}
