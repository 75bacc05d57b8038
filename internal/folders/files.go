package folders

import (
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"quotedesk/internal/apperr"
	"quotedesk/internal/fsutil"
)

// ListFiles returns the slash-separated paths of all regular files in a
// folder, relative to the folder.
func (r *Registry) ListFiles(name string) ([]string, error) {
	dir, err := r.Dir(name)
	if err != nil {
		return nil, err
	}
	files := []string{}
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.Type().IsRegular() || fsutil.IsTempName(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, apperr.Internal(err, "Error listing files")
	}
	return files, nil
}

// File is an open file inside a folder. The caller closes it.
type File struct {
	*os.File
	Info        fs.FileInfo
	ContentType string
}

// Open resolves rel inside the folder and opens it for reading. Paths that
// escape the folder and directories are reported as missing.
func (r *Registry) Open(name, rel string) (*File, error) {
	dir, err := r.Dir(name)
	if err != nil {
		return nil, err
	}
	abs, err := fsutil.JoinWithinRoot(dir, fsutil.CleanRelPath(rel))
	if err != nil || abs == filepath.Clean(dir) {
		return nil, apperr.NotFound("File not found")
	}
	st, err := os.Stat(abs)
	if err != nil || st.IsDir() {
		return nil, apperr.NotFound("File not found")
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, apperr.Internal(err, "Error opening file")
	}
	return &File{File: f, Info: st, ContentType: ContentTypeForName(st.Name())}, nil
}

// ContentTypeForName guesses a MIME type from the file extension, falling
// back to a table for systems with sparse mime databases.
func ContentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "application/octet-stream"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".dxf":
		return "image/vnd.dxf"
	case ".dwg":
		return "image/vnd.dwg"
	case ".step", ".stp":
		return "model/step"
	case ".json":
		return "application/json"
	case ".txt", ".csv", ".md", ".log":
		return "text/plain; charset=utf-8"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// IsImageExt reports whether ext (lower case, with dot) can be thumbnailed.
func IsImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	default:
		return false
	}
}
