// Package sheet derives a part number -> quantity table from the spreadsheet
// shipped inside an uploaded folder.
package sheet

import (
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoSpreadsheet is returned by Extract when the folder has no file with
// one of the layout's extensions. It is informational, not a failure.
var ErrNoSpreadsheet = errors.New("no spreadsheet found")

// Table maps trimmed part numbers to quantities.
type Table map[string]int

// Layout describes where the interesting cells live. Columns are zero-based.
type Layout struct {
	PartNumberColumn int      `mapstructure:"partNumberColumn" yaml:"partNumberColumn" json:"partNumberColumn"`
	QuantityColumn   int      `mapstructure:"quantityColumn" yaml:"quantityColumn" json:"quantityColumn"`
	HeaderRows       int      `mapstructure:"headerRows" yaml:"headerRows" json:"headerRows"`
	Extensions       []string `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
}

// DefaultLayout reads part numbers from column B and quantities from
// column E, below a single header row.
func DefaultLayout() Layout {
	return Layout{
		PartNumberColumn: 1,
		QuantityColumn:   4,
		HeaderRows:       1,
		Extensions:       []string{".xlsx"},
	}
}

func (l Layout) Validate() error {
	if l.PartNumberColumn < 0 || l.QuantityColumn < 0 {
		return errors.New("sheet: columns must not be negative")
	}
	if l.PartNumberColumn == l.QuantityColumn {
		return errors.New("sheet: part number and quantity columns must differ")
	}
	if l.HeaderRows < 0 {
		return errors.New("sheet: headerRows must not be negative")
	}
	if len(l.Extensions) == 0 {
		return errors.New("sheet: at least one extension is required")
	}
	return nil
}

type Extractor struct {
	layout Layout
}

func NewExtractor(layout Layout) *Extractor {
	return &Extractor{layout: layout}
}

// Result is what Extract found. Path is the spreadsheet that was read.
type Result struct {
	Path  string
	Table Table
}

// Extract reads the first spreadsheet below dir. It returns ErrNoSpreadsheet
// when there is none; any other error means the file could not be parsed.
func (e *Extractor) Extract(dir string) (Result, error) {
	p, err := FindSpreadsheet(dir, e.layout.Extensions)
	if err != nil {
		return Result{}, err
	}
	rows, err := readRows(p)
	if err != nil {
		return Result{Path: p}, err
	}
	return Result{Path: p, Table: ParseRows(rows, e.layout)}, nil
}

// FindSpreadsheet walks dir in lexical order and returns the first regular
// file with a matching extension. Office lock files ("~$name.xlsx") are skipped.
func FindSpreadsheet(dir string, exts []string) (string, error) {
	var found string
	errFound := errors.New("found")
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "~$") || !hasExt(name, exts) {
			return nil
		}
		found = p
		return errFound
	})
	if found != "" {
		return found, nil
	}
	if err != nil {
		return "", err
	}
	return "", ErrNoSpreadsheet
}

func hasExt(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func readRows(p string) ([][]string, error) {
	f, err := excelize.OpenFile(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	name := f.GetSheetName(0)
	if name == "" {
		return nil, errors.New("no worksheet found")
	}
	// stored values, not the number-formatted display text
	return f.GetRows(name, excelize.Options{RawCellValue: true})
}

// ParseRows skips the header rows and keeps every row whose part number is
// non-blank and whose quantity is a non-zero number. Later duplicates win.
func ParseRows(rows [][]string, layout Layout) Table {
	out := make(Table)
	for i, row := range rows {
		if i < layout.HeaderRows {
			continue
		}
		partNo := cellValue(row, layout.PartNumberColumn)
		raw := cellValue(row, layout.QuantityColumn)
		if partNo == "" || raw == "" {
			continue
		}
		qty, ok := parseQuantity(raw)
		if !ok {
			continue
		}
		out[partNo] = qty
	}
	return out
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseQuantity reads a raw cell value. Fractions are truncated toward zero
// ("2.5" is 2); zero, non-numeric and out of range values are rejected.
func parseQuantity(s string) (int, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f == 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
