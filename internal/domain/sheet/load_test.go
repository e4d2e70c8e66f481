package sheet

import (
	"reflect"
	"testing"

	"github.com/baard/baard/internal/platform/tabular"
)

func TestFromFile_UsesRecordIDColumn(t *testing.T) {
	f := &tabular.File{
		Header: []string{"site", "record_id", "baseline_madrs"},
		Records: [][]string{
			{"CU", "cu001", "24"},
			{"CU", "", "20"},
			{"UP", "up002", "NA"},
		},
	}
	tbl, stats := FromFile("madrs", f, LoadOptions{})

	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	if stats.MissingKeys != 1 {
		t.Errorf("MissingKeys = %d, want 1", stats.MissingKeys)
	}
	if stats.RenamedKeyFrom != "" {
		t.Errorf("RenamedKeyFrom = %q, want empty", stats.RenamedKeyFrom)
	}
	if got := tbl.Rows[0].RecordID(); got != "CU001" {
		t.Errorf("record id = %q, want CU001", got)
	}
	if tbl.Rows[1].Get("baseline_madrs").Valid {
		t.Error("NA should load as null")
	}
}

func TestFromFile_FirstColumnBecomesKey(t *testing.T) {
	f := &tabular.File{
		Header:  []string{"subjects", "FA"},
		Records: [][]string{{"cu001", "0.41"}},
	}
	tbl, stats := FromFile("dwi", f, LoadOptions{})
	if stats.RenamedKeyFrom != "subjects" {
		t.Errorf("RenamedKeyFrom = %q", stats.RenamedKeyFrom)
	}
	if !reflect.DeepEqual(tbl.Columns(), []string{"record_id", "FA"}) {
		t.Errorf("Columns() = %v", tbl.Columns())
	}
}

func TestFromFile_SelectAndDrop(t *testing.T) {
	f := &tabular.File{
		Header:  []string{"record_id", "mr_date", "lh_cuneus_thickness", "subjects"},
		Records: [][]string{{"A", "2021-03-04", "2.1", "s1"}},
	}

	sel, _ := FromFile("mri_date", f, LoadOptions{Select: []string{"mr_date"}})
	if !reflect.DeepEqual(sel.Columns(), []string{"record_id", "mr_date"}) {
		t.Errorf("Select columns = %v", sel.Columns())
	}

	dropped, _ := FromFile("smri", f, LoadOptions{Drop: []string{"mr_date", "subjects", "not_there"}})
	if !reflect.DeepEqual(dropped.Columns(), []string{"record_id", "lh_cuneus_thickness"}) {
		t.Errorf("Drop columns = %v", dropped.Columns())
	}
	if _, ok := dropped.Rows[0]["mr_date"]; ok {
		t.Error("dropped column still has cells")
	}
}

func TestFromFile_NormalizesDates(t *testing.T) {
	f := &tabular.File{
		Header:  []string{"record_id", "mr_date"},
		Records: [][]string{{"A", "March 15, 2021"}, {"B", "not a date"}, {"C", "2021-05-01"}},
	}
	tbl, stats := FromFile("mri_date", f, LoadOptions{Dates: []string{"mr_date"}})

	if got := tbl.Rows[0].Get("mr_date").ValueOrZero(); got != "2021-03-15" {
		t.Errorf("mr_date = %q, want 2021-03-15", got)
	}
	if got := tbl.Rows[1].Get("mr_date").ValueOrZero(); got != "not a date" {
		t.Errorf("unparseable date should be kept verbatim, got %q", got)
	}
	if got := tbl.Rows[2].Get("mr_date").ValueOrZero(); got != "2021-05-01" {
		t.Errorf("mr_date = %q", got)
	}
	if stats.UnparsedDates != 1 {
		t.Errorf("UnparsedDates = %d, want 1", stats.UnparsedDates)
	}
}

func TestFromFile_AmbiguousDatesKeptVerbatim(t *testing.T) {
	f := &tabular.File{
		Header:  []string{"record_id", "mr_date"},
		Records: [][]string{{"A", "03/04/2021"}, {"B", "13/04/2021"}, {"C", "2021-04-13"}},
	}
	tbl, stats := FromFile("mri_date", f, LoadOptions{Dates: []string{"mr_date"}})

	want := []string{"03/04/2021", "13/04/2021", "2021-04-13"}
	for i, w := range want {
		if got := tbl.Rows[i].Get("mr_date").ValueOrZero(); got != w {
			t.Errorf("row %d mr_date = %q, want %q", i, got, w)
		}
	}
	if stats.UnparsedDates != 2 {
		t.Errorf("UnparsedDates = %d, want 2", stats.UnparsedDates)
	}
}

func TestFromFile_DatesPassThroughByDefault(t *testing.T) {
	f := &tabular.File{
		Header:  []string{"record_id", "mr_date"},
		Records: [][]string{{"A", "03/04/2021"}},
	}
	tbl, stats := FromFile("mri_date", f, LoadOptions{})
	if got := tbl.Rows[0].Get("mr_date").ValueOrZero(); got != "03/04/2021" {
		t.Errorf("mr_date = %q, want verbatim", got)
	}
	if stats.UnparsedDates != 0 {
		t.Errorf("UnparsedDates = %d, want 0", stats.UnparsedDates)
	}
}
