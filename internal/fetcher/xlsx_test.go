package fetcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			cell := row.AddCell()
			cell.SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSXHeader(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Tanggal", "Omzet"},
		{"2024-01-15", "1000"},
	})
	header, err := ReadXLSXHeader(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tanggal", "Omzet"}, header)
}

func TestReadXLSXHeader_SkipsLeadingBlankRows(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"", ""},
		{"Tanggal", "Omzet"},
	})
	header, err := ReadXLSXHeader(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tanggal", "Omzet"}, header)
}

func TestReadXLSXHeader_SheetOutOfRange(t *testing.T) {
	path := createTestXLSX(t, [][]string{{"a"}})
	_, err := ReadXLSXHeader(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestStreamXLSX_SkipsHeaderAndBlankRows(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Tanggal", "Omzet"},
		{"2024-01-15", "1000"},
		{" ", ""},
		{"2024-01-16", "2000"},
	})
	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-01-16", "2000"}, rows[1])
}

func TestStreamXLSX_IncludeHeader(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Tanggal", "Omzet"},
		{"2024-01-15", "1000"},
	})
	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{IncludeHeader: true})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Tanggal", "Omzet"}, rows[0])
}

func TestStreamXLSX_Cancelled(t *testing.T) {
	path := createTestXLSX(t, [][]string{{"a"}, {"1"}, {"2"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rowCh, errCh := StreamXLSX(ctx, path, XLSXOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStreamXLSX_BadFile(t *testing.T) {
	rowCh, errCh := StreamXLSX(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
}

func TestStreamXLSX_DateCellsAsISO(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)

	header := sheet.AddRow()
	header.AddCell().SetString("Tanggal")
	header.AddCell().SetString("Omzet")

	day := sheet.AddRow()
	day.AddCell().SetDate(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	day.AddCell().SetFloat(1234.5)

	stamp := sheet.AddRow()
	stamp.AddCell().SetDateTime(time.Date(2024, 1, 16, 9, 30, 0, 0, time.UTC))
	stamp.AddCell().SetFloat(99)

	midnight := sheet.AddRow()
	midnight.AddCell().SetDateTime(time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC))
	midnight.AddCell().SetFloat(7)

	path := filepath.Join(t.TempDir(), "dates.xlsx")
	require.NoError(t, f.Save(path))

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2024-01-15", "1234.5"}, rows[0])
	assert.Equal(t, []string{"2024-01-16 09:30:00", "99"}, rows[1])
	assert.Equal(t, []string{"2024-01-17", "7"}, rows[2])
}
