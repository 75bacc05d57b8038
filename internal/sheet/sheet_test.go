package sheet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook saves rows to p on the first sheet, starting at A1.
func writeWorkbook(t *testing.T, p string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	name := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(name, cell, &r))
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, f.SaveAs(p))
}

// partRow places part and qty in columns B and E.
func partRow(part, qty any) []any {
	return []any{"", part, "desc", "mat", qty}
}

func TestExtractDuplicatesBlanksAndJunk(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "bom.xlsx"), [][]any{
		{"#", "Part No", "Description", "Material", "Qty"},
		partRow("A1", 5),
		partRow("A1", 7),
		partRow("", 3),
		partRow("B2", "x"),
	})

	res, err := NewExtractor(DefaultLayout()).Extract(dir)
	require.NoError(t, err)
	assert.Equal(t, Table{"A1": 7}, res.Table)
	assert.Equal(t, filepath.Join(dir, "bom.xlsx"), res.Path)
}

func TestExtractTrimsAndTruncatesNumbers(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "nested", "parts.xlsx"), [][]any{
		{"", "Part", "", "", "Qty"},
		partRow("  P-100  ", 2),
		partRow("P-200", 3.0),
		partRow("P-300", 2.5),
		partRow("P-400", 0),
		partRow(1234, 1),
		partRow("P-500", "1e3"),
	})

	res, err := NewExtractor(DefaultLayout()).Extract(dir)
	require.NoError(t, err)
	assert.Equal(t, Table{"P-100": 2, "P-200": 3, "P-300": 2, "1234": 1, "P-500": 1000}, res.Table)
}

func TestExtractReadsRawValuesOfFormattedCells(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bom.xlsx")

	f := excelize.NewFile()
	name := f.GetSheetName(0)
	rows := [][]any{
		{"", "Part", "", "", "Qty"},
		partRow("P1", 1500),
		partRow("P2", 2.5),
		partRow(12345, 3),
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(name, cell, &r))
	}
	thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	require.NoError(t, err)
	twoDecimals, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(name, "E2", "E4", thousands))
	require.NoError(t, f.SetCellStyle(name, "B4", "B4", twoDecimals))
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	res, err := NewExtractor(DefaultLayout()).Extract(dir)
	require.NoError(t, err)
	assert.Equal(t, Table{"P1": 1500, "P2": 2, "12345": 3}, res.Table)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"7", 7, true},
		{"7.0", 7, true},
		{"2.9", 2, true},
		{"-3.5", -3, true},
		{"0.5", 0, true},
		{"0", 0, false},
		{"1,500", 0, false},
		{"x", 0, false},
		{"NaN", 0, false},
		{"1e12", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseQuantity(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestExtractNoSpreadsheet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drawing.pdf"), []byte("%PDF"), 0o644))

	_, err := NewExtractor(DefaultLayout()).Extract(dir)
	assert.ErrorIs(t, err, ErrNoSpreadsheet)
}

func TestExtractCorruptSpreadsheet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.xlsx"), []byte("not a zip"), 0o644))

	res, err := NewExtractor(DefaultLayout()).Extract(dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSpreadsheet)
	assert.Equal(t, filepath.Join(dir, "broken.xlsx"), res.Path)
}

func TestFindSpreadsheetSkipsLockFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "~$bom.xlsx"), []byte("lock"), 0o644))
	writeWorkbook(t, filepath.Join(dir, "sub", "bom.XLSX"), [][]any{{"h"}})

	p, err := FindSpreadsheet(dir, []string{".xlsx"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "bom.XLSX"), p)
}

func TestParseRowsCustomLayout(t *testing.T) {
	layout := Layout{PartNumberColumn: 0, QuantityColumn: 1, HeaderRows: 2, Extensions: []string{".xlsx"}}
	rows := [][]string{
		{"title"},
		{"part", "qty"},
		{"X", "4"},
		{"Y"},
		{},
		{"Z", " 9 "},
	}
	assert.Equal(t, Table{"X": 4, "Z": 9}, ParseRows(rows, layout))
}

func TestParseRowsNoHeader(t *testing.T) {
	layout := Layout{PartNumberColumn: 0, QuantityColumn: 1, Extensions: []string{".xlsx"}}
	assert.Equal(t, Table{"A": 1}, ParseRows([][]string{{"A", "1"}}, layout))
}

func TestLayoutValidate(t *testing.T) {
	assert.NoError(t, DefaultLayout().Validate())

	bad := []Layout{
		{PartNumberColumn: -1, QuantityColumn: 1, Extensions: []string{".xlsx"}},
		{PartNumberColumn: 2, QuantityColumn: 2, Extensions: []string{".xlsx"}},
		{PartNumberColumn: 0, QuantityColumn: 1, HeaderRows: -1, Extensions: []string{".xlsx"}},
		{PartNumberColumn: 0, QuantityColumn: 1},
	}
	for _, l := range bad {
		assert.Error(t, l.Validate(), "%+v", l)
	}
}
