package fsutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrPathEscape  = errors.New("path escape")
	ErrInvalidName = errors.New("invalid folder name")
)

// CleanRelPath takes a user path like "", ".", "/a/b", "a//b", and returns a
// safe, slash-based, no-leading-slash relative path ("" means root).
func CleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." || p == "/" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// JoinWithinRoot returns an absolute filesystem path under root for a rel
// path. Unlike CleanRelPath it does not silently drop "..": a rel path that
// would climb out of root is an error, which is what archive extraction needs.
func JoinWithinRoot(rootAbs string, rel string) (string, error) {
	if strings.Contains(rel, "\x00") {
		return "", ErrPathEscape
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	rootClean := filepath.Clean(rootAbs)
	absClean := filepath.Clean(filepath.Join(rootClean, filepath.FromSlash(rel)))
	if absClean != rootClean && !strings.HasPrefix(absClean, rootClean+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return absClean, nil
}

// ValidFolderName reports whether name can be used as a single directory
// directly under the storage root.
func ValidFolderName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return ErrInvalidName
	}
	return nil
}

func IsDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

func Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// tempPrefix marks files WriteJSON has not renamed into place yet.
const tempPrefix = ".quotedesk-"

// IsTempName reports whether a base name belongs to an in-flight WriteJSON.
// Listings skip such files.
func IsTempName(name string) bool {
	return strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, ".tmp")
}

// WriteJSON writes v as 2-space indented JSON. The file is written next to
// its destination first and renamed into place.
func WriteJSON(p string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(p), err)
	}
	tmp := filepath.Join(filepath.Dir(p), tempPrefix+filepath.Base(p)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// ReadJSON decodes the file at p into v. Numbers decoded into interface
// values stay json.Number so they are written back unchanged. A missing file
// yields an error satisfying errors.Is(err, os.ErrNotExist).
func ReadJSON(p string, v any) error {
	b, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(p), err)
	}
	return nil
}
