package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gopkg.in/guregu/null.v3"

	"github.com/baard/baard/internal/domain/mastersheet"
	"github.com/baard/baard/internal/domain/sheet"
	"github.com/baard/baard/internal/platform/db"
)

func sheetResult(name string, ids ...string) *mastersheet.Result {
	t := sheet.NewTable(name, sheet.RecordIDColumn, "age", "remission_status")
	for i, id := range ids {
		r := sheet.Row{sheet.RecordIDColumn: null.StringFrom(id)}
		if i%2 == 0 {
			r["age"] = null.StringFrom("70")
		}
		t.Rows = append(t.Rows, r)
	}
	return &mastersheet.Result{
		RunID:   uuid.New(),
		Name:    name,
		BuiltAt: time.Now().UTC(),
		Sheet:   t,
		Stats:   mastersheet.Stats{RecordIDs: len(ids), Columns: 3},
	}
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	schema := uniqueSchema("migrate")
	defer globalDB.Pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE")

	migrator := db.NewMigrator(globalDB.Pool, os.DirFS(globalDB.MigrationsDir))

	n, err := migrator.Up(ctx, schema)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if n == 0 {
		t.Fatal("expected migrations applied to a fresh schema")
	}

	again, err := migrator.Up(ctx, schema)
	if err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if again != 0 {
		t.Errorf("expected no pending migrations, got %d", again)
	}

	statuses, err := migrator.Status(ctx, schema)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %d not applied", s.Version)
		}
	}
}

func TestPGSink_ReplacesPreviousRun(t *testing.T) {
	ctx := context.Background()
	pool := migratedPool(t, ctx, "sink")
	sink := mastersheet.NewPGSink(pool)

	first := sheetResult("baard_master_sheet", "UP0001", "UP0002", "WU0003")
	if err := sink.Write(ctx, first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	second := sheetResult("baard_master_sheet", "UP0001", "WU0004")
	if err := sink.Write(ctx, second); err != nil {
		t.Fatalf("second write: %v", err)
	}
	other := sheetResult("other_sheet", "UP0009")
	if err := sink.Write(ctx, other); err != nil {
		t.Fatalf("other write: %v", err)
	}

	var runID uuid.UUID
	var rowCount int
	var columns []string
	err := pool.QueryRow(ctx,
		`SELECT run_id, row_count, columns FROM sheet_runs WHERE sheet_name = $1`, "baard_master_sheet",
	).Scan(&runID, &rowCount, &columns)
	if err != nil {
		t.Fatalf("select run: %v", err)
	}
	if runID != second.RunID || rowCount != 2 {
		t.Errorf("expected latest run with 2 rows, got %s with %d", runID, rowCount)
	}
	if len(columns) != 3 || columns[0] != sheet.RecordIDColumn {
		t.Errorf("unexpected columns %v", columns)
	}

	var total int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM sheet_rows`).Scan(&total); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 rows across both sheets, got %d", total)
	}

	var recordID string
	var data []byte
	err = pool.QueryRow(ctx,
		`SELECT record_id, data FROM sheet_rows WHERE sheet_name = $1 AND position = 1`, "baard_master_sheet",
	).Scan(&recordID, &data)
	if err != nil {
		t.Fatalf("select row: %v", err)
	}
	if recordID != "WU0004" {
		t.Errorf("expected WU0004 at position 1, got %s", recordID)
	}
	var obj map[string]*string
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if v, ok := obj["age"]; !ok || v != nil {
		t.Errorf("expected age stored as null, got %v", v)
	}
}

func TestPoolHealthHandler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := db.PoolHealthHandler(globalDB.Pool)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
