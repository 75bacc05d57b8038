package sidecar

import (
	"quotedesk/internal/apperr"
	"quotedesk/internal/fsutil"
)

const savedAtField = "saved_at"

// SingleStore holds one value per folder as {field: value, saved_at: ...}.
// Every Set replaces the previous document.
type SingleStore struct {
	*base
	filename string
	field    string
	label    string
	present  func(any) bool
}

func (s *SingleStore) Field() string { return s.field }

// Set validates value and writes the document, returning what was stored.
func (s *SingleStore) Set(folder string, value any) (Doc, error) {
	p, err := s.base.file(folder, s.filename)
	if err != nil {
		return nil, err
	}
	if !s.present(value) {
		return nil, apperr.InvalidInput("Missing '%s' in request body", s.field)
	}
	doc := Doc{s.field: value, savedAtField: s.stamp()}

	unlock := s.locks.Lock(folder)
	defer unlock()
	if err := fsutil.WriteJSON(p, doc); err != nil {
		return nil, apperr.Internal(err, "Error saving "+s.label)
	}
	return doc, nil
}

// Get returns the stored document; found is false when nothing was saved.
func (s *SingleStore) Get(folder string) (doc Doc, found bool, err error) {
	p, err := s.base.file(folder, s.filename)
	if err != nil {
		return nil, false, err
	}
	doc, missing, err := load(p)
	if err != nil {
		return nil, false, apperr.Internal(err, "Error reading "+s.label)
	}
	return doc, !missing, nil
}
