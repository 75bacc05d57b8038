// Package archive turns an uploaded zip into a folder under the storage root
// and derives its parts table.
package archive

import (
	"archive/zip"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"quotedesk/internal/apperr"
	"quotedesk/internal/folders"
	"quotedesk/internal/fsutil"
	"quotedesk/internal/sheet"
	"quotedesk/internal/sidecar"
)

const Ext = ".zip"

// Options configures an Importer. Log may be nil.
type Options struct {
	Registry  *folders.Registry
	Parts     *sidecar.Parts
	Extractor *sheet.Extractor
	StateDir  string
	MaxBytes  int64
	Log       *zap.Logger
}

type Importer struct {
	reg       *folders.Registry
	parts     *sidecar.Parts
	extractor *sheet.Extractor
	stageDir  string
	maxBytes  int64
	log       *zap.Logger
	now       func() time.Time
}

func New(opts Options) (*Importer, error) {
	dir := filepath.Join(opts.StateDir, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{
		reg:       opts.Registry,
		parts:     opts.Parts,
		extractor: opts.Extractor,
		stageDir:  dir,
		maxBytes:  opts.MaxBytes,
		log:       log,
		now:       time.Now,
	}, nil
}

// Result describes a finished import. PartsLoaded is nil when no parts
// table was written, either because there was no spreadsheet or because it
// could not be parsed (SheetErr is then set).
type Result struct {
	Folder      string
	Message     string
	Spreadsheet string
	PartsLoaded *int
	SheetErr    error
	Size        int64
	Digest      string
}

// FolderName strips the archive extension from a client supplied file name.
func FolderName(declared string) (string, error) {
	declared = path.Base(strings.ReplaceAll(strings.TrimSpace(declared), "\\", "/"))
	if !strings.HasSuffix(declared, Ext) {
		return "", apperr.InvalidInput("Only ZIP files allowed")
	}
	name := strings.TrimSuffix(declared, Ext)
	if err := fsutil.ValidFolderName(name); err != nil {
		return "", apperr.InvalidInput("Invalid archive name %q", declared)
	}
	return name, nil
}

// Import stages r, extracts it into a new folder named after declared and
// builds the parts table. A failure during extraction leaves the partially
// extracted folder in place.
func (im *Importer) Import(ctx context.Context, r io.Reader, declared string) (Result, error) {
	name, err := FolderName(declared)
	if err != nil {
		return Result{}, err
	}
	dir, err := im.reg.Path(name)
	if err != nil {
		return Result{}, err
	}
	if fsutil.Exists(dir) {
		return Result{}, apperr.Conflict("Folder already exists")
	}

	tmp, size, digest, err := im.stage(ctx, r)
	if tmp != "" {
		defer func() { _ = os.Remove(tmp) }()
	}
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(im.reg.Root(), 0o755); err != nil {
		return Result{}, apperr.Internal(err, "Error creating upload directory")
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return Result{}, apperr.Conflict("Folder already exists")
		}
		return Result{}, apperr.Internal(err, "Error creating folder")
	}

	n, err := extract(tmp, dir)
	if err != nil {
		return Result{}, err
	}
	im.log.Info("archive extracted",
		zap.String("folder", name),
		zap.Int("entries", n),
		zap.Int64("size", size),
	)

	info := folders.UploadInfo{
		UploadDate: im.now().UTC().Format(time.RFC3339Nano),
		Archive:    name + Ext,
		Size:       size,
		Blake2b:    digest,
	}
	if err := fsutil.WriteJSON(filepath.Join(dir, folders.UploadFile), info); err != nil {
		return Result{}, apperr.Internal(err, "Error writing upload info")
	}

	res := Result{Folder: name, Size: size, Digest: digest}
	im.loadParts(dir, &res)
	return res, nil
}

func (im *Importer) loadParts(dir string, res *Result) {
	sr, err := im.extractor.Extract(dir)
	switch {
	case errors.Is(err, sheet.ErrNoSpreadsheet):
		res.Message = fmt.Sprintf("Folder '%s' uploaded, but no Excel file found.", res.Folder)
		return
	case err != nil:
		res.SheetErr = err
		res.Message = fmt.Sprintf("Excel parsing failed: %v", err)
		im.log.Warn("spreadsheet parse failed", zap.String("folder", res.Folder), zap.Error(err))
		return
	}
	res.Spreadsheet = filepath.ToSlash(strings.TrimPrefix(sr.Path, dir+string(filepath.Separator)))
	if err := im.parts.Save(dir, sr.Table); err != nil {
		res.SheetErr = err
		res.Message = fmt.Sprintf("Excel parsing failed: %v", err)
		im.log.Error("write parts table", zap.String("folder", res.Folder), zap.Error(err))
		return
	}
	n := len(sr.Table)
	res.PartsLoaded = &n
	res.Message = fmt.Sprintf("Folder '%s' uploaded.", res.Folder)
}

// stage copies r into the staging dir while hashing it. The returned path is
// set whenever a staging file was created, even on error.
func (im *Importer) stage(ctx context.Context, r io.Reader) (string, int64, string, error) {
	tmp := filepath.Join(im.stageDir, uuid.NewString()+Ext+".tmp")
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, "", apperr.Internal(err, "Error staging upload")
	}
	h, _ := blake2b.New256(nil)

	src := r
	if im.maxBytes > 0 {
		src = io.LimitReader(r, im.maxBytes+1)
	}
	n, err := io.Copy(io.MultiWriter(dst, h), ctxReader{ctx: ctx, r: src})
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if ctx.Err() != nil {
			return tmp, 0, "", ctx.Err()
		}
		return tmp, 0, "", apperr.Internal(err, "Error staging upload")
	}
	if im.maxBytes > 0 && n > im.maxBytes {
		return tmp, 0, "", apperr.InvalidInput("Archive exceeds %d bytes", im.maxBytes)
	}
	return tmp, n, hex.EncodeToString(h.Sum(nil)), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// extract writes every entry of the zip at src below dir, keeping internal
// paths. Entries that would land outside dir are rejected. It returns the
// number of files written.
func extract(src, dir string) (int, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return 0, apperr.InvalidInput("Invalid ZIP archive: %v", err)
	}
	defer zr.Close()

	var n int
	for _, f := range zr.File {
		target, err := fsutil.JoinWithinRoot(dir, f.Name)
		if err != nil {
			return n, apperr.InvalidInput("Archive entry %q escapes the folder", f.Name)
		}
		mode := f.Mode()
		switch {
		case target == filepath.Clean(dir):
			continue
		case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
			if err := os.MkdirAll(target, 0o755); err != nil {
				return n, apperr.Internal(err, "Error extracting archive")
			}
			continue
		case !mode.IsRegular():
			// symlinks and devices are not materialised
			continue
		}
		if err := writeEntry(f, target); err != nil {
			return n, apperr.Internal(err, "Error extracting archive")
		}
		n++
	}
	return n, nil
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
