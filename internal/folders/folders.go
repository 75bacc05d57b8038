// Package folders manages the directories under the storage root: one per
// uploaded quotation job.
package folders

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"quotedesk/internal/apperr"
	"quotedesk/internal/fsutil"
)

// UploadFile is the sidecar written at import time. Its upload_date takes
// precedence over the directory mtime.
const UploadFile = "upload.json"

// UploadInfo is the content of UploadFile.
type UploadInfo struct {
	UploadDate string `json:"upload_date"`
	Archive    string `json:"archive,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Blake2b    string `json:"blake2b,omitempty"`
}

type Dated struct {
	Name       string `json:"name"`
	UploadDate string `json:"upload_date"`
}

type Registry struct {
	root string
}

func New(root string) *Registry {
	return &Registry{root: root}
}

func (r *Registry) Root() string { return r.root }

// Path returns the directory for name without checking that it exists.
func (r *Registry) Path(name string) (string, error) {
	if err := fsutil.ValidFolderName(name); err != nil {
		return "", apperr.NotFound("Folder not found")
	}
	return filepath.Join(r.root, name), nil
}

// Dir returns the directory for an existing folder or a NotFound error.
func (r *Registry) Dir(name string) (string, error) {
	p, err := r.Path(name)
	if err != nil {
		return "", err
	}
	if !fsutil.IsDir(p) {
		return "", apperr.NotFound("Folder not found")
	}
	return p, nil
}

// List returns the names of all folders. A missing root is an empty list.
func (r *Registry) List() ([]string, error) {
	ents, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, apperr.Internal(err, "Error listing folders")
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ListWithDates annotates every folder with its upload date, falling back to
// the directory mtime when upload.json is absent, unreadable or empty.
func (r *Registry) ListWithDates() ([]Dated, error) {
	if !fsutil.IsDir(r.root) {
		return nil, apperr.NotFound("Upload directory not found")
	}
	ents, err := os.ReadDir(r.root)
	if err != nil {
		return nil, apperr.Internal(err, "Error listing folders")
	}
	out := make([]Dated, 0, len(ents))
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		d := Dated{Name: e.Name()}
		var info UploadInfo
		if err := fsutil.ReadJSON(filepath.Join(r.root, e.Name(), UploadFile), &info); err == nil {
			d.UploadDate = info.UploadDate
		}
		if d.UploadDate == "" {
			if st, err := e.Info(); err == nil {
				d.UploadDate = st.ModTime().UTC().Format(time.RFC3339Nano)
			} else {
				d.UploadDate = time.Now().UTC().Format(time.RFC3339Nano)
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// Delete removes a folder and everything in it.
func (r *Registry) Delete(name string) error {
	p, err := r.Dir(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return apperr.Internal(err, "Error deleting folder")
	}
	return nil
}
