package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotedesk/internal/sheet"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr)
	assert.True(t, filepath.IsAbs(cfg.Root))
	assert.Equal(t, "uploads", filepath.Base(cfg.Root))
	assert.Equal(t, ".quotedesk", filepath.Base(cfg.StateDir))
	assert.Equal(t, int64(512<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, sheet.DefaultLayout(), cfg.Sheet)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.WebDAV)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "quotedesk.yaml")
	body := `
addr: 127.0.0.1:9000
root: ` + filepath.Join(dir, "data") + `
state: ` + filepath.Join(dir, "state") + `
sheet:
  partNumberColumn: 0
  quantityColumn: 2
  headerRows: 3
log:
  format: console
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	cfg, err := Load(New(), p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Root)
	assert.Equal(t, 0, cfg.Sheet.PartNumberColumn)
	assert.Equal(t, 2, cfg.Sheet.QuantityColumn)
	assert.Equal(t, 3, cfg.Sheet.HeaderRows)
	assert.Equal(t, []string{".xlsx"}, cfg.Sheet.Extensions)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QUOTEDESK_ROOT", filepath.Join(dir, "r"))
	t.Setenv("QUOTEDESK_SHEET_QUANTITYCOLUMN", "7")
	t.Setenv("QUOTEDESK_LOG_LEVEL", "debug")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "r"), cfg.Root)
	assert.Equal(t, 7, cfg.Sheet.QuantityColumn)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsStateInsideRoot(t *testing.T) {
	dir := t.TempDir()
	v := New()
	v.Set("root", dir)
	v.Set("state", filepath.Join(dir, ".state"))

	_, err := Load(v, "")
	assert.ErrorContains(t, err, "state must not be inside root")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Root: "r", StateDir: "s", Sheet: sheet.DefaultLayout()}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Root = " "
	assert.Error(t, c.Validate())

	c = base()
	c.Upload.MaxBytes = -1
	assert.Error(t, c.Validate())

	c = base()
	c.Sheet.QuantityColumn = c.Sheet.PartNumberColumn
	assert.Error(t, c.Validate())

	c = base()
	c.Log.Format = "xml"
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)

	c = base()
	c.Root = ""
	c.Upload.MaxBytes = -1
	err := c.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "root is required")
	assert.ErrorContains(t, err, "MaxBytes")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}
