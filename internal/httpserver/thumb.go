package httpserver

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	// decoders
	_ "image/gif"
	_ "image/png"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"quotedesk/internal/apperr"
	"quotedesk/internal/folders"
	"quotedesk/internal/fsutil"
)

const (
	defaultThumbSize = 256
	maxThumbSize     = 1024
)

// handleThumb serves a JPEG preview of an image inside a folder, e.g. a
// scanned drawing. Results are cached per folder, see thumbKey.
func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	rel := param(r, "*")
	size := defaultThumbSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 16 || n > maxThumbSize {
			writeError(w, s.log, apperr.InvalidInput("size must be between 16 and %d", maxThumbSize))
			return
		}
		size = n
	}

	f, err := s.folders.Open(name, rel)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	defer f.Close()
	if !folders.IsImageExt(strings.ToLower(filepath.Ext(f.Info.Name()))) {
		writeError(w, s.log, apperr.NotFound("File not found"))
		return
	}

	cache := filepath.Join(s.thumbDir, name, thumbKey(rel, f.Info, size))
	if b, err := os.ReadFile(cache); err == nil {
		writeThumb(w, b)
		return
	}
	b, err := makeThumb(f, size)
	if err != nil {
		writeError(w, s.log, apperr.InvalidInput("Cannot decode image: %v", err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(cache), 0o755); err == nil {
		if err := os.WriteFile(cache, b, 0o644); err != nil {
			s.log.Warn("thumbnail cache write failed", zap.String("path", cache), zap.Error(err))
		}
	}
	writeThumb(w, b)
}

func writeThumb(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(b)
}

func makeThumb(r io.Reader, max int) ([]byte, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, os.ErrInvalid
	}
	if max <= 0 {
		max = defaultThumbSize
	}

	nw, nh := w, h
	if w > h {
		if w > max {
			nw = max
			nh = int(float64(h) * (float64(max) / float64(w)))
		}
	} else if h > max {
		nh = max
		nw = int(float64(w) * (float64(max) / float64(h)))
	}
	nw = maxInt(nw, 1)
	nh = maxInt(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 82}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// thumbKey names a cached thumbnail after the file's relative path, its
// mtime (nanoseconds) and byte size, and the requested edge length.
func thumbKey(rel string, fi os.FileInfo, size int) string {
	sum := blake2b.Sum256([]byte(fsutil.CleanRelPath(rel)))
	return fmt.Sprintf("%s-%d-%d-%d.jpg", hex.EncodeToString(sum[:16]), fi.ModTime().UnixNano(), fi.Size(), size)
}

// dropThumbs forgets every cached thumbnail of a folder.
func (s *Server) dropThumbs(name string) {
	dir, err := fsutil.JoinWithinRoot(s.thumbDir, name)
	if err != nil || dir == filepath.Clean(s.thumbDir) {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		s.log.Warn("thumbnail cache cleanup failed", zap.String("folder", name), zap.Error(err))
	}
}
