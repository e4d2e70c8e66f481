// Package tabular reads and writes delimited text tables (CSV/TSV).
// It knows nothing about participants or merging; callers receive the header
// and raw records and decide what a missing value means.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyFile = errors.New("file has no header row")
)

// File is a parsed delimited table.
type File struct {
	Path    string
	Header  []string
	Records [][]string
}

// missingTokens mirrors the tokens statistical tooling reads as NA.
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"NULL": true,
	"null": true,
	"#N/A": true,
	"<NA>": true,
	"None": true,
}

// IsMissing reports whether a raw cell should be treated as a missing value.
func IsMissing(v string) bool {
	return missingTokens[strings.TrimSpace(v)]
}

// DelimiterFor picks the field separator from the file extension.
func DelimiterFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab", ".txt":
		return '\t'
	default:
		return ','
	}
}

// ReadFile opens and parses the table at path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	out, err := Read(f, DelimiterFor(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out.Path = path
	return out, nil
}

// Read parses a delimited table whose first row is the header. Short rows are
// padded with empty cells and long rows are truncated to the header width.
func Read(r io.Reader, comma rune) (*File, error) {
	rdr := csv.NewReader(r)
	rdr.Comma = comma
	rdr.FieldsPerRecord = -1
	rdr.LazyQuotes = true

	out := &File{}
	for i := 0; ; i++ {
		line, err := rdr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		if i == 0 {
			header := make([]string, len(line))
			for j, col := range line {
				header[j] = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
			}
			out.Header = header
			continue
		}

		rec := make([]string, len(out.Header))
		copy(rec, line)
		out.Records = append(out.Records, rec)
	}

	if out.Header == nil {
		return nil, ErrEmptyFile
	}
	return out, nil
}

// FirstColumn reads only the first column of every data row of the table at
// path. Missing cells are skipped.
func FirstColumn(path string) ([]string, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(f.Header) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	values := make([]string, 0, len(f.Records))
	for _, rec := range f.Records {
		if IsMissing(rec[0]) {
			continue
		}
		values = append(values, strings.TrimSpace(rec[0]))
	}
	return values, nil
}

// Write emits header and records as comma-separated text.
func Write(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// WriteFile writes the table to path, creating parent directories as needed.
func WriteFile(path string, header []string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, header, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
