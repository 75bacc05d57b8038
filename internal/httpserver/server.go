package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"quotedesk/internal/apperr"
	"quotedesk/internal/archive"
	"quotedesk/internal/config"
	"quotedesk/internal/folders"
	"quotedesk/internal/metrics"
	"quotedesk/internal/sheet"
	"quotedesk/internal/sidecar"
)

// Options configures a Server. Log and Metrics may be nil.
type Options struct {
	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

type Server struct {
	cfg      config.Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	folders  *folders.Registry
	stores   *sidecar.Stores
	importer *archive.Importer
	thumbDir string
}

func New(opts Options) (*Server, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	if err := os.MkdirAll(opts.Config.Root, 0o755); err != nil {
		return nil, err
	}
	reg := folders.New(opts.Config.Root)
	stores := sidecar.NewStores(reg)
	im, err := archive.New(archive.Options{
		Registry:  reg,
		Parts:     stores.Parts,
		Extractor: sheet.NewExtractor(opts.Config.Sheet),
		StateDir:  opts.Config.StateDir,
		MaxBytes:  opts.Config.Upload.MaxBytes,
		Log:       log.Named("archive"),
	})
	if err != nil {
		return nil, err
	}
	thumbDir := filepath.Join(opts.Config.StateDir, "thumbs")
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		return nil, err
	}
	return &Server{
		cfg:      opts.Config,
		log:      log,
		metrics:  m,
		folders:  reg,
		stores:   stores,
		importer: im,
		thumbDir: thumbDir,
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(withHeaders)
	r.Use(cors)
	r.Use(middleware.StripSlashes)
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Post("/upload", s.handleUpload)
	r.Get("/folders", s.handleListFolders)
	r.Get("/folders_with_dates", s.handleListFoldersWithDates)

	r.Route("/folders/{name}", func(r chi.Router) {
		r.Delete("/", s.handleDeleteFolder)

		r.Get("/files", s.handleListFiles)
		r.Get("/files/*", s.handleDownload)
		r.Get("/thumb/*", s.handleThumb)

		r.Post("/costs", s.handleSaveCost)
		r.Get("/costs", s.handleGetCosts)
		r.Get("/costs/{partNo}", s.handleGetCost)

		r.Get("/parts/{partNo}", s.handleGetPart)

		r.Post("/quotation", s.handleSaveQuotation)
		r.Get("/quotation", s.handleGetQuotation)

		r.Post("/grandtotal", s.handleSaveGrandTotal)
		r.Get("/grandtotal", s.handleGetGrandTotal)
	})

	if s.cfg.WebDAV {
		dav := s.davHandler()
		r.Handle("/dav", dav)
		r.Handle("/dav/*", dav)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, s.log, apperr.NotFound("Not Found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, map[string]any{"detail": "Method Not Allowed"})
	})
	return r
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, v any) {
	writeStatus(w, http.StatusOK, v)
}

func writeStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeError renders err as {"detail": ...} with the status of its kind.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Error("request failed", zap.Error(err))
	}
	writeStatus(w, apperr.Status(kind), map[string]any{"detail": err.Error()})
}

// param returns a decoded route parameter.
func param(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// decodeBody reads a JSON object, keeping numbers as json.Number.
func decodeBody(r *http.Request) (sidecar.Doc, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var doc sidecar.Doc
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, apperr.InvalidInput("Request body must be a JSON object")
	}
	return doc, nil
}
