package httpserver

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/webdav"

	"quotedesk/internal/fsutil"
)

func init() {
	// chi answers 405 for methods it does not know about
	chi.RegisterMethod("PROPFIND")
}

// davHandler mounts the storage root read-only, so folders can be browsed
// from a file manager. Writes go through the JSON API only.
func (s *Server) davHandler() http.Handler {
	dav := &webdav.Handler{
		Prefix:     "/dav",
		FileSystem: hideTemp{webdav.Dir(s.cfg.Root)},
		LockSystem: webdav.NewMemLS(),
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, "PROPFIND":
			dav.ServeHTTP(w, r)
		default:
			w.Header().Set("Allow", "GET, HEAD, OPTIONS, PROPFIND")
			writeStatus(w, http.StatusMethodNotAllowed, map[string]any{"detail": "WebDAV mount is read-only"})
		}
	})
}

// hideTemp drops in-flight sidecar temp files from directory listings.
type hideTemp struct {
	webdav.FileSystem
}

func (h hideTemp) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	f, err := h.FileSystem.OpenFile(ctx, name, flag, perm)
	if err != nil {
		return nil, err
	}
	return tempFiltered{f}, nil
}

type tempFiltered struct {
	webdav.File
}

func (f tempFiltered) Readdir(count int) ([]os.FileInfo, error) {
	fis, err := f.File.Readdir(count)
	out := fis[:0]
	for _, fi := range fis {
		if !fsutil.IsTempName(fi.Name()) {
			out = append(out, fi)
		}
	}
	return out, err
}
