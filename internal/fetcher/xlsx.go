package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects what is read from a workbook.
type XLSXOptions struct {
	SheetIndex    int  // default 0
	IncludeHeader bool // also stream the header row
}

// ReadXLSXHeader returns the first non-blank row of the selected sheet, or
// nil when the sheet has none.
func ReadXLSXHeader(path string, opts XLSXOptions) ([]string, error) {
	sheet, err := openSheet(path, opts.SheetIndex)
	if err != nil {
		return nil, err
	}
	for _, row := range sheet.Rows {
		if cells := rowToStrings(row); !blankRow(cells) {
			return cells, nil
		}
	}
	return nil, nil
}

// StreamXLSX sends the rows of an XLSX sheet to a channel. Blank rows are
// skipped, and so is the header row unless IncludeHeader is set. The
// workbook is loaded into memory before streaming starts.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		sheet, err := openSheet(path, opts.SheetIndex)
		if err != nil {
			errCh <- err
			return
		}

		headerSeen := false
		for _, row := range sheet.Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}

			cells := rowToStrings(row)
			if blankRow(cells) {
				continue
			}
			if !headerSeen {
				headerSeen = true
				if !opts.IncludeHeader {
					continue
				}
			}

			select {
			case rowCh <- cells:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func openSheet(path string, index int) (*xlsx.Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if index < 0 || index >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", index, len(f.Sheets))
	}
	return f.Sheets[index], nil
}

// rowToStrings returns the formatted cell values of a row. Date cells are
// written as ISO dates, since tealeg's default date formats are US short
// forms. Cells whose formatting fails fall back to their raw value.
func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	date1904 := row.Sheet != nil && row.Sheet.File != nil && row.Sheet.File.Date1904
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cellString(cell, date1904)
	}
	return cells
}

func cellString(cell *xlsx.Cell, date1904 bool) string {
	if cell.Type() == xlsx.CellTypeNumeric && cell.IsTime() {
		if t, err := cell.GetTime(date1904); err == nil {
			t = t.Round(time.Second)
			if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
				return t.Format("2006-01-02")
			}
			return t.Format("2006-01-02 15:04:05")
		}
	}
	v, err := cell.FormattedValue()
	if err != nil {
		return cell.Value
	}
	return v
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
