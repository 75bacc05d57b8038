package sidecar

import (
	"strings"

	"quotedesk/internal/apperr"
	"quotedesk/internal/fsutil"
)

// KeyedStore keeps one entry per key in a single document. Writing a key
// replaces that entry and leaves the others alone.
type KeyedStore struct {
	*base
	filename   string
	keyField   string
	stampField string
	label      string
}

func (s *KeyedStore) KeyField() string { return s.keyField }

// SetEntry stores payload under the key found in its key field, adding a
// save timestamp. It returns the key used.
func (s *KeyedStore) SetEntry(folder string, payload Doc) (string, error) {
	p, err := s.base.file(folder, s.filename)
	if err != nil {
		return "", err
	}
	key, ok := keyString(payload[s.keyField])
	if !ok {
		return "", apperr.InvalidInput("Missing '%s' in %s", s.keyField, s.label)
	}

	entry := make(Doc, len(payload)+1)
	for k, v := range payload {
		entry[k] = v
	}
	entry[s.stampField] = s.stamp()

	unlock := s.locks.Lock(folder)
	defer unlock()

	// An unreadable document is replaced rather than blocking new writes.
	doc, _, err := load(p)
	if err != nil {
		doc = Doc{}
	}
	doc[key] = entry
	if err := fsutil.WriteJSON(p, doc); err != nil {
		return "", apperr.Internal(err, "Error saving "+s.label)
	}
	return key, nil
}

// GetAll returns the whole document. exists is false when nothing has been
// written yet; the document is then empty.
func (s *KeyedStore) GetAll(folder string) (doc Doc, exists bool, err error) {
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

// GetOne returns the entry stored under the trimmed key.
func (s *KeyedStore) GetOne(folder, key string) (string, any, error) {
	p, err := s.base.file(folder, s.filename)
	if err != nil {
		return "", nil, err
	}
	doc, missing, err := load(p)
	if err != nil {
		return "", nil, apperr.Internal(err, "Error reading "+s.label)
	}
	if missing {
		return "", nil, apperr.NotFound("No %s found", s.label)
	}
	key = strings.TrimSpace(key)
	v, ok := doc[key]
	if !ok {
		return "", nil, apperr.NotFound("%s for this part not found", capitalize(s.label))
	}
	return key, v, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
