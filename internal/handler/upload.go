package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aras-services/emberweb/internal/reqstate"
	"github.com/aras-services/emberweb/internal/route"
)

// Upload implements the built-in upload handler of spec.md §4.F: stores a
// PUT/POST body to a temp file under Dir, enforcing MaxSize.
type Upload struct {
	Dir     string
	MaxSize int64
}

func (h *Upload) Name() string { return "upload" }

func (h *Upload) Serve(req *reqstate.Request, r *route.Route) bool {
	if req.Method != "PUT" && req.Method != "POST" {
		return false
	}
	if h.MaxSize > 0 && int64(len(req.Body)) > h.MaxSize {
		req.Fail(reqstate.ErrRequestTooLarge, "upload exceeds configured size cap")
		return true
	}

	name := uuid.New().String()
	dst := filepath.Join(h.Dir, name)
	if err := os.WriteFile(dst, req.Body, 0o600); err != nil {
		req.Fail(reqstate.ErrInternal, "failed to store upload")
		return true
	}

	req.SetStatus(http.StatusCreated)
	req.SetHeader("Content-Type", "text/plain; charset=utf-8")
	req.Write([]byte(name))
	return true
}
