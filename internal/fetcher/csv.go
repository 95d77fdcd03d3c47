// Package fetcher reads tabular input files (CSV, XLSX) and retrieves
// remote inputs over FTP.
package fetcher

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune   // default ','
	Encoding  string // charset label (e.g. "windows-1252"); default UTF-8
}

// ReadCSV reads a delimited file with a header row. All cells come back as
// strings and blank cells stay empty strings; short rows are padded to the
// header width so every row has one cell per header. When no delimiter is
// given, the header line is sniffed for tab, semicolon, or pipe separation.
func ReadCSV(r io.Reader, opts CSVOptions) (headers []string, rows [][]string, err error) {
	if opts.Encoding != "" {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "csv: unsupported charset %q", opts.Encoding)
		}
		r = enc.NewDecoder().Reader(r)
	}

	br := bufio.NewReader(r)
	delim := opts.Delimiter
	if delim == 0 {
		sample, _ := br.Peek(4096)
		delim = sniffDelimiter(sample)
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow ragged rows

	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrap(err, "csv: read row")
		}
		if first {
			first = false
			headers = record
			continue
		}
		rows = append(rows, padRow(record, len(headers)))
	}

	if first {
		return nil, nil, eris.New("csv: empty file, no header row")
	}
	return headers, rows, nil
}

// sniffDelimiter picks the candidate that occurs most often in the first
// line of the sample. Comma wins ties and empty samples.
func sniffDelimiter(sample []byte) rune {
	line := string(sample)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	delim, count := ',', strings.Count(line, ",")
	for _, cand := range []rune{'\t', ';', '|'} {
		if n := strings.Count(line, string(cand)); n > count {
			delim, count = cand, n
		}
	}
	return delim
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
