package mastersheet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/baard/baard/internal/domain/sheet"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func fixtureRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "temp/processed/OPT_madrs.csv",
		"record_id,baseline_madrs,week10_madrs\nWU0002,20,10\nwu0001,30,25\nWU0001,1,1\n")
	writeFile(t, root, "temp/processed/OPT_demographics.csv",
		"record_id,age,gender,bmi\nWU0001,70,Male,41\nWU0002,65,Female,25\nUP0003,60,Female,19\n")
	writeFile(t, root, "temp/processed/baseline_blood.csv",
		"record_id,IL-6\nWU0001,9\nUP0003,-3\n")
	writeFile(t, root, "mri/smri/processed/OPT_baseline_selected_thickness.csv",
		"record_id,mr_date,lh_thick\nWU0001,2021-03-04,2.5\n")
	return root
}

func newTestBuilder(root string, sources []Source) *Builder {
	return NewBuilder(Options{
		Root:        root,
		Name:        "master",
		Sources:     sources,
		Concurrency: 2,
	}, zerolog.Nop())
}

func sourceStats(res *Result, name string) (SourceStats, bool) {
	for _, s := range res.Stats.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceStats{}, false
}

func TestBuild(t *testing.T) {
	res, err := newTestBuilder(fixtureRoot(t), nil).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if res.Sheet.Len() != 3 || res.Stats.RecordIDs != 3 {
		t.Fatalf("expected 3 participants, got %d rows and %d ids", res.Sheet.Len(), res.Stats.RecordIDs)
	}
	if res.Name != "master" || res.Sheet.Name != "master" {
		t.Errorf("unexpected names %q / %q", res.Name, res.Sheet.Name)
	}
	if res.RunID.String() == "" {
		t.Error("expected run id")
	}

	wantOrder := []string{"UP0003", "WU0001", "WU0002"}
	for i, id := range wantOrder {
		if got := res.Sheet.Rows[i].RecordID(); got != id {
			t.Errorf("row %d = %q, want %q", i, got, id)
		}
	}

	wantLead := []string{sheet.RecordIDColumn, "site", "has_smri", "has_fmri", "has_dwi", "has_blood"}
	cols := res.Sheet.Columns()
	for i, c := range wantLead {
		if cols[i] != c {
			t.Errorf("column %d = %q, want %q", i, cols[i], c)
		}
	}

	up, _ := res.Sheet.Lookup("UP0003")
	wu1, _ := res.Sheet.Lookup("WU0001")
	wu2, _ := res.Sheet.Lookup("WU0002")

	checks := []struct {
		row  sheet.Row
		col  string
		want string
	}{
		{wu1, "site", "WU"},
		{wu1, "has_smri", "1"},
		{wu1, "has_fmri", "0"},
		{wu1, "has_blood", "1"},
		{wu1, "IL-6_sqrt", "3"},
		{wu1, "mr_date", "2021-03-04"},
		{wu1, "lh_thick", "2.5"},
		{wu1, "baseline_madrs", "30"},
		{wu1, "BMI_extreme", "1"},
		{wu1, "sex", "1"},
		{wu2, "response_delta", "50"},
		{wu2, "response_status", "1"},
		{wu2, "remission_status", "1"},
		{wu2, "has_smri", "0"},
		{up, "BMI_extreme", "1"},
		{up, "has_blood", "1"},
	}
	for _, c := range checks {
		if got := c.row.Get(c.col); got.String != c.want {
			t.Errorf("%s %s = %v, want %q", c.row.RecordID(), c.col, got, c.want)
		}
	}
	if wu2.Get("IL-6_sqrt").Valid || up.Get("IL-6_sqrt").Valid || up.Get("IL-6_log").Valid {
		t.Error("expected null transforms for missing and negative markers")
	}
	if up.Get("remission_status").Valid {
		t.Error("expected null remission without scores")
	}

	if len(res.Stats.Sources) != len(DefaultSources()) {
		t.Errorf("expected stats for every source, got %d", len(res.Stats.Sources))
	}
	madrs, ok := sourceStats(res, "madrs")
	if !ok || !madrs.Loaded || madrs.Duplicates != 1 || madrs.Rows != 3 {
		t.Errorf("unexpected madrs stats %+v", madrs)
	}
	phq9, _ := sourceStats(res, "phq9")
	if phq9.Loaded || phq9.Error == "" {
		t.Errorf("expected phq9 skipped with error, got %+v", phq9)
	}
	if len(res.Stats.Biomarkers) != 1 || res.Stats.Biomarkers[0] != "IL-6" {
		t.Errorf("unexpected biomarkers %v", res.Stats.Biomarkers)
	}
	if res.Stats.ModalityCoverage["smri"] != 1 || res.Stats.ModalityCoverage["dwi"] != 0 {
		t.Errorf("unexpected coverage %v", res.Stats.ModalityCoverage)
	}
	if _, ok := res.Stats.MissingInputs["sex"]; ok {
		t.Error("gender is present; sex should not report missing inputs")
	}
	if _, ok := res.Stats.MissingInputs["falls"]; !ok {
		t.Error("expected falls inputs reported missing")
	}
}

func TestBuild_NoRecordIDs(t *testing.T) {
	_, err := newTestBuilder(t.TempDir(), nil).Build(context.Background())
	if !errors.Is(err, ErrNoRecordIDs) {
		t.Errorf("expected ErrNoRecordIDs, got %v", err)
	}
}

func TestBuild_MissingRoot(t *testing.T) {
	_, err := newTestBuilder(filepath.Join(t.TempDir(), "nope"), nil).Build(context.Background())
	if err == nil || errors.Is(err, ErrNoRecordIDs) {
		t.Errorf("expected walk error, got %v", err)
	}
}

func TestBuild_RequiredSourceMissing(t *testing.T) {
	sources := []Source{
		{Name: "madrs", Path: "temp/processed/OPT_madrs.csv"},
		{Name: "phq9", Path: "temp/processed/OPT_phq9.csv", Required: true},
	}
	_, err := newTestBuilder(fixtureRoot(t), sources).Build(context.Background())
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestBuild_CustomSources(t *testing.T) {
	sources := []Source{
		{Name: "madrs", Path: "temp/processed/OPT_madrs.csv"},
		{Name: "missing", Path: "temp/processed/none.csv"},
	}
	res, err := newTestBuilder(fixtureRoot(t), sources).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Stats.Sources) != 2 {
		t.Fatalf("expected 2 source stats, got %d", len(res.Stats.Sources))
	}
	if res.Stats.Sources[0].Name != "madrs" || res.Stats.Sources[1].Error == "" {
		t.Errorf("unexpected stats %+v", res.Stats.Sources)
	}
	if res.Sheet.HasColumn("age") {
		t.Error("demographics was not listed and should not be merged")
	}
	if res.Sheet.Len() != 3 {
		t.Errorf("expected universe preserved, got %d rows", res.Sheet.Len())
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestBuilder(fixtureRoot(t), nil).Build(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestRecordIDs(t *testing.T) {
	ids, err := newTestBuilder(fixtureRoot(t), nil).RecordIDs(context.Background())
	if err != nil {
		t.Fatalf("RecordIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != "UP0003" {
		t.Errorf("unexpected ids %v", ids)
	}
}
