package httpserver

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"quotedesk/internal/apperr"
	"quotedesk/internal/metrics"
)

// uploadField is the multipart field clients send the archive in. The first
// file part is used whatever its field name.
const uploadField = "zip_file"

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Upload.MaxBytes > 0 {
		// leave room for multipart framing; the importer enforces the exact limit
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes+1<<20)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		s.metrics.ObserveUpload(metrics.UploadRejected, 0)
		writeError(w, s.log, apperr.InvalidInput("Expected a multipart/form-data body"))
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		s.metrics.ObserveUpload(metrics.UploadRejected, 0)
		writeError(w, s.log, err)
		return
	}
	defer part.Close()

	res, err := s.importer.Import(r.Context(), part, part.FileName())
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			err = apperr.InvalidInput("Archive exceeds %d bytes", s.cfg.Upload.MaxBytes)
		}
		if apperr.Is(err, apperr.KindInternal) {
			s.metrics.ObserveUpload(metrics.UploadError, 0)
		} else {
			s.metrics.ObserveUpload(metrics.UploadRejected, 0)
		}
		writeError(w, s.log, err)
		return
	}

	body := map[string]any{"message": res.Message}
	switch {
	case res.PartsLoaded != nil:
		body["parts_loaded"] = *res.PartsLoaded
		s.metrics.ObserveUpload(metrics.UploadOK, *res.PartsLoaded)
	case res.SheetErr != nil:
		s.metrics.ObserveUpload(metrics.UploadSheetFail, 0)
	default:
		s.metrics.ObserveUpload(metrics.UploadNoSheet, 0)
	}
	s.dropThumbs(res.Folder)
	s.log.Info("folder uploaded",
		zap.String("folder", res.Folder),
		zap.String("blake2b", res.Digest),
		zap.Any("parts_loaded", res.PartsLoaded),
	)
	writeJSON(w, body)
}

// nextFilePart returns the first file part of the form. Parts before it
// that carry plain fields are skipped.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apperr.InvalidInput("Missing '%s' file", uploadField)
		}
		if err != nil {
			return nil, apperr.InvalidInput("Malformed multipart body")
		}
		if p.FileName() != "" {
			return p, nil
		}
		_ = p.Close()
	}
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	names, err := s.folders.List()
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, map[string]any{"folders": names})
}

func (s *Server) handleListFoldersWithDates(w http.ResponseWriter, r *http.Request) {
	items, err := s.folders.ListWithDates()
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, map[string]any{"folders": items})
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	if err := s.folders.Delete(name); err != nil {
		writeError(w, s.log, err)
		return
	}
	s.dropThumbs(name)
	s.log.Info("folder deleted", zap.String("folder", name))
	writeJSON(w, map[string]any{"message": fmt.Sprintf("Folder '%s' has been deleted.", name)})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.folders.ListFiles(param(r, "name"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, map[string]any{"files": files})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	f, err := s.folders.Open(param(r, "name"), param(r, "*"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", f.ContentType)
	if r.URL.Query().Get("dl") == "1" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Info.Name()))
	}
	http.ServeContent(w, r, f.Info.Name(), f.Info.ModTime(), f)
}

func (s *Server) handleSaveCost(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	if _, err := s.folders.Dir(name); err != nil {
		writeError(w, s.log, err)
		return
	}
	payload, err := decodeBody(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	key, err := s.stores.Costs.SetEntry(name, payload)
	if err != nil {
		if apperr.Is(err, apperr.KindInvalidInput) {
			err = apperr.InvalidInput("Missing '%s' (part number) in cost data", s.stores.Costs.KeyField())
		}
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, map[string]any{
		"message": fmt.Sprintf("Cost data saved for part '%s' in folder '%s'.", key, name),
	})
}

func (s *Server) handleGetCosts(w http.ResponseWriter, r *http.Request) {
	doc, exists, err := s.stores.Costs.GetAll(param(r, "name"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if !exists {
		writeJSON(w, map[string]any{"message": "No cost data found.", "cost_data": doc})
		return
	}
	writeJSON(w, map[string]any{"cost_data": doc})
}

func (s *Server) handleGetCost(w http.ResponseWriter, r *http.Request) {
	key, v, err := s.stores.Costs.GetOne(param(r, "name"), param(r, "partNo"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, map[string]any{key: v})
}

func (s *Server) handleGetPart(w http.ResponseWriter, r *http.Request) {
	partNo, qty, err := s.stores.Parts.Lookup(param(r, "name"), param(r, "partNo"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, map[string]any{"part.no": partNo, "quantity": qty})
}

func (s *Server) handleSaveQuotation(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	if _, err := s.folders.Dir(name); err != nil {
		writeError(w, s.log, err)
		return
	}
	payload, err := decodeBody(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	field := s.stores.Quotation.Field()
	doc, err := s.stores.Quotation.Set(name, payload[field])
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, map[string]any{
		"message": fmt.Sprintf("Quotation name saved for folder '%s'", name),
		field:     doc[field],
	})
}

func (s *Server) handleGetQuotation(w http.ResponseWriter, r *http.Request) {
	doc, found, err := s.stores.Quotation.Get(param(r, "name"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if !found {
		writeJSON(w, map[string]any{"message": "No quotation name found", s.stores.Quotation.Field(): nil})
		return
	}
	writeJSON(w, doc)
}

func (s *Server) handleSaveGrandTotal(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	if _, err := s.folders.Dir(name); err != nil {
		writeError(w, s.log, err)
		return
	}
	payload, err := decodeBody(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	field := s.stores.GrandTotal.Field()
	doc, err := s.stores.GrandTotal.Set(name, payload[field])
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, map[string]any{
		"message": fmt.Sprintf("Grand total saved for folder '%s'.", name),
		field:     doc[field],
	})
}

func (s *Server) handleGetGrandTotal(w http.ResponseWriter, r *http.Request) {
	doc, found, err := s.stores.GrandTotal.Get(param(r, "name"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if !found {
		writeJSON(w, map[string]any{s.stores.GrandTotal.Field(): nil})
		return
	}
	writeJSON(w, doc)
}
