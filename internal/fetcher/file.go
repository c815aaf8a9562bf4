package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketlens/internal/model"
)

// ReadHeaders returns the header row of a stored export file.
// An empty slice means the file has no header row.
func ReadHeaders(path string, fileType model.FileType) ([]string, error) {
	switch fileType {
	case model.FileTypeXLSX:
		return ReadXLSXHeader(path, XLSXOptions{})
	case model.FileTypeCSV:
		return readCSVHeader(path)
	default:
		return nil, eris.Errorf("fetcher: unsupported file type %q", fileType)
	}
}

func readCSVHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csv: open file")
	}
	defer f.Close() //nolint:errcheck

	br, delim, err := prepareCSV(f)
	if err != nil {
		return nil, err
	}
	record, err := newCSVReader(br, CSVOptions{Delimiter: delim, LazyQuotes: true}).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	return record, nil
}

// StreamRows streams the data rows (header excluded) of a stored export file.
// The file is read incrementally for CSV; both channels close when done and
// cancelling ctx stops the producer and closes the file.
func StreamRows(ctx context.Context, path string, fileType model.FileType) (<-chan []string, <-chan error) {
	switch fileType {
	case model.FileTypeXLSX:
		return StreamXLSX(ctx, path, XLSXOptions{})
	case model.FileTypeCSV:
		f, err := os.Open(path)
		if err != nil {
			return failed(eris.Wrap(err, "csv: open file"))
		}
		br, delim, err := prepareCSV(f)
		if err != nil {
			f.Close() //nolint:errcheck
			return failed(err)
		}
		return StreamCSV(ctx, br, CSVOptions{
			Delimiter:  delim,
			SkipHeader: true,
			LazyQuotes: true,
			TrimSpace:  true,
			Closer:     f,
		})
	default:
		return failed(eris.Errorf("fetcher: unsupported file type %q", fileType))
	}
}

func failed(err error) (<-chan []string, <-chan error) {
	rowCh := make(chan []string)
	errCh := make(chan error, 1)
	errCh <- err
	close(rowCh)
	close(errCh)
	return rowCh, errCh
}

// FileTypeFromName infers the declared file type from an upload's file name.
func FileTypeFromName(name string) model.FileType {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return model.FileTypeCSV
	}
	return model.FileTypeXLSX
}
