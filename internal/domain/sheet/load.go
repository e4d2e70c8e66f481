package sheet

import (
	"strings"

	"github.com/araddon/dateparse"
	"gopkg.in/guregu/null.v3"

	"github.com/baard/baard/internal/platform/tabular"
)

// DateLayout is the layout date columns are normalized to.
const DateLayout = "2006-01-02"

// LoadOptions shapes a raw file into a domain table.
type LoadOptions struct {
	// Select keeps only these columns (plus record_id). Empty keeps everything.
	Select []string
	// Drop removes these columns when present.
	Drop []string
	// Dates are normalized to DateLayout. Ambiguous dd/mm vs mm/dd values and
	// anything unparseable are kept verbatim and counted.
	Dates []string
}

// LoadStats describes what happened while shaping a file.
type LoadStats struct {
	Rows           int
	MissingKeys    int
	UnparsedDates  int
	RenamedKeyFrom string
}

// FromFile converts a parsed file into a domain table keyed by record_id. When
// the header has no record_id column the first column is used as the key.
// Keys are normalized with NormalizeID and missing-value tokens become null.
func FromFile(name string, f *tabular.File, opts LoadOptions) (*Table, LoadStats) {
	var stats LoadStats

	keyPos := -1
	for i, h := range f.Header {
		if h == RecordIDColumn {
			keyPos = i
			break
		}
	}
	if keyPos == -1 && len(f.Header) > 0 {
		keyPos = 0
		stats.RenamedKeyFrom = f.Header[0]
	}

	header := make([]string, len(f.Header))
	copy(header, f.Header)
	if keyPos >= 0 {
		header[keyPos] = RecordIDColumn
	}

	keep := make(map[string]bool, len(opts.Select))
	for _, c := range opts.Select {
		keep[c] = true
	}
	drop := make(map[string]bool, len(opts.Drop))
	for _, c := range opts.Drop {
		drop[c] = true
	}
	included := func(i int, c string) bool {
		if i == keyPos {
			return true
		}
		if drop[c] {
			return false
		}
		return len(keep) == 0 || keep[c]
	}

	t := NewTable(name)
	for i, c := range header {
		if included(i, c) {
			t.AddColumn(c)
		}
	}

	dates := make(map[string]bool, len(opts.Dates))
	for _, c := range opts.Dates {
		dates[c] = true
	}

	for _, rec := range f.Records {
		if keyPos < 0 || tabular.IsMissing(rec[keyPos]) {
			stats.MissingKeys++
			continue
		}
		row := make(Row, len(header))
		for i, c := range header {
			if !included(i, c) {
				continue
			}
			if _, seen := row[c]; seen {
				continue
			}
			v := rec[i]
			switch {
			case i == keyPos:
				row[c] = null.StringFrom(NormalizeID(v))
			case tabular.IsMissing(v):
				row[c] = null.String{}
			case dates[c]:
				norm, ok := normalizeDate(v)
				if !ok {
					stats.UnparsedDates++
				}
				row[c] = null.StringFrom(norm)
			default:
				row[c] = null.StringFrom(strings.TrimSpace(v))
			}
		}
		t.Rows = append(t.Rows, row)
	}
	stats.Rows = len(t.Rows)
	return t, stats
}

func normalizeDate(v string) (string, bool) {
	v = strings.TrimSpace(v)
	ts, err := dateparse.ParseStrict(v, dateparse.PreferMonthFirst(false))
	if err != nil {
		return v, false
	}
	return ts.Format(DateLayout), true
}
