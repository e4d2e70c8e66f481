package sheet

import (
	"fmt"
	"sort"

	"gopkg.in/guregu/null.v3"
)

// MergeStats reports the outcome of a single left join.
type MergeStats struct {
	Source     string
	Matched    int
	Duplicates int
	// Renamed maps an incoming column to the name it received on collision.
	Renamed map[string]string
}

// UniqueIDs normalizes ids, drops empty and repeated values and sorts the rest.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = NormalizeID(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Universe builds the base table of the merge: one row per distinct
// normalized record id, sorted ascending.
func Universe(ids []string) *Table {
	t := NewTable("master", RecordIDColumn)
	for _, id := range UniqueIDs(ids) {
		t.Rows = append(t.Rows, Row{RecordIDColumn: null.StringFrom(id)})
	}
	return t
}

// Dedupe drops every row whose record id was already seen, keeping the first
// occurrence. It returns the number of rows removed.
func Dedupe(t *Table) int {
	seen := make(map[string]bool, len(t.Rows))
	kept := t.Rows[:0]
	dropped := 0
	for _, r := range t.Rows {
		id := r.RecordID()
		if seen[id] {
			dropped++
			continue
		}
		seen[id] = true
		kept = append(kept, r)
	}
	for i := len(kept); i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = kept
	return dropped
}

// SortByRecordID orders rows ascending by record id. The sort is stable so
// rows sharing an id keep their relative order.
func SortByRecordID(t *Table) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].RecordID() < t.Rows[j].RecordID()
	})
}

// LeftJoin returns a new table with every row of base and the columns of
// domain appended. Rows are matched on record_id; base rows without a match get
// null cells. When domain holds several rows for one id the first one is used
// and the rest are counted in MergeStats.Duplicates. Neither input is modified.
func LeftJoin(base, domain *Table) (*Table, MergeStats) {
	stats := MergeStats{Source: domain.Name, Renamed: map[string]string{}}

	out := NewTable(base.Name, base.columns...)

	// Resolve incoming names against the columns already present.
	incoming := make([]string, 0, len(domain.columns))
	target := make(map[string]string, len(domain.columns))
	for _, c := range domain.columns {
		if c == RecordIDColumn {
			continue
		}
		name := c
		if out.HasColumn(name) {
			name = disambiguate(out, c, domain.Name)
			stats.Renamed[c] = name
		}
		out.AddColumn(name)
		incoming = append(incoming, c)
		target[c] = name
	}

	byID := make(map[string]Row, len(domain.Rows))
	for _, r := range domain.Rows {
		id := NormalizeID(r.RecordID())
		if _, dup := byID[id]; dup {
			stats.Duplicates++
			continue
		}
		byID[id] = r
	}

	out.Rows = make([]Row, 0, len(base.Rows))
	for _, br := range base.Rows {
		nr := make(Row, len(br)+len(incoming))
		for k, v := range br {
			nr[k] = v
		}
		dr, ok := byID[br.RecordID()]
		if ok {
			stats.Matched++
		}
		for _, c := range incoming {
			if ok {
				nr[target[c]] = dr[c]
			} else {
				nr[target[c]] = null.String{}
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return out, stats
}

func disambiguate(t *Table, column, source string) string {
	if source == "" {
		source = "y"
	}
	name := column + "_" + source
	for i := 2; t.HasColumn(name); i++ {
		name = fmt.Sprintf("%s_%s_%d", column, source, i)
	}
	return name
}
