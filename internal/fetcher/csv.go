// Package fetcher reads marketplace export files: header rows for
// classification and streamed data rows for normalization.
package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	SkipHeader bool // drop the first non-blank record
	LazyQuotes bool
	TrimSpace  bool
	Closer     io.Closer // optional: closed once streaming stops
}

// StreamCSV parses r on a producer goroutine and sends each record on the row
// channel. Records whose cells are all blank are dropped, matching StreamXLSX.
// A read failure or cancellation is sent on the error channel; both channels
// close when the producer exits.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)
		if opts.Closer != nil {
			defer opts.Closer.Close() //nolint:errcheck
		}

		reader := newCSVReader(r, opts)
		skip := opts.SkipHeader
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read record")
				return
			}

			if opts.TrimSpace {
				for i := range record {
					record[i] = strings.TrimSpace(record[i])
				}
			}
			if blankRow(record) {
				continue
			}
			if skip {
				skip = false
				continue
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func newCSVReader(r io.Reader, opts CSVOptions) *csv.Reader {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // exports often pad or truncate trailing cells
	return reader
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// prepareCSV strips a UTF-8 byte order mark and guesses the delimiter from
// the first line. Marketplace exports in Indonesian locale often use ';'
// because ',' is the decimal separator.
func prepareCSV(r io.Reader) (*bufio.Reader, rune, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, 0, eris.Wrap(err, "csv: discard bom")
		}
	}

	head, err := br.Peek(br.Size())
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, 0, eris.Wrap(err, "csv: peek first line")
	}
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	return br, sniffDelimiter(head), nil
}

func sniffDelimiter(line []byte) rune {
	counts := map[rune]int{',': 0, ';': 0, '\t': 0, '|': 0}
	inQuotes := false
	for _, c := range string(line) {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if _, ok := counts[c]; ok {
			counts[c]++
		}
	}
	best := ','
	for _, c := range []rune{';', '\t', '|'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
