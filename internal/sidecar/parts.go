package sidecar

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"quotedesk/internal/apperr"
	"quotedesk/internal/fsutil"
	"quotedesk/internal/sheet"
)

// Parts is the part number -> quantity table derived at upload time.
type Parts struct {
	*base
}

// Save writes the table into an already resolved folder directory.
func (p *Parts) Save(dir string, t sheet.Table) error {
	if t == nil {
		t = sheet.Table{}
	}
	unlock := p.locks.Lock(filepath.Base(dir))
	defer unlock()
	return fsutil.WriteJSON(filepath.Join(dir, PartsFile), t)
}

// Lookup returns the quantity for the trimmed part number.
func (p *Parts) Lookup(folder, partNo string) (string, int, error) {
	f, err := p.base.file(folder, PartsFile)
	if err != nil {
		return "", 0, err
	}
	var t sheet.Table
	if err := fsutil.ReadJSON(f, &t); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", 0, apperr.NotFound("Part data not found for this folder")
		}
		return "", 0, apperr.Internal(err, "Error reading part data")
	}
	partNo = strings.TrimSpace(partNo)
	qty, ok := t[partNo]
	if !ok {
		return "", 0, apperr.NotFound("Part number not found")
	}
	return partNo, qty, nil
}
