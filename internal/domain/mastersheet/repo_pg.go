package mastersheet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baard/baard/internal/domain/sheet"
)

var sheetRowColumns = []string{"run_id", "sheet_name", "position", "record_id", "data"}

// PGSink stores sheets in sheet_runs/sheet_rows. Each write replaces the
// previous run of the same sheet name in a single transaction.
type PGSink struct {
	pool *pgxpool.Pool
}

func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

func (s *PGSink) Name() string { return "postgres" }

func (s *PGSink) Write(ctx context.Context, res *Result) error {
	columns, err := json.Marshal(res.Sheet.Columns())
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}
	stats, err := json.Marshal(res.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	rows, err := copyRows(res)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM sheet_runs WHERE sheet_name = $1`, res.Name); err != nil {
		return fmt.Errorf("delete previous run: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO sheet_runs (run_id, sheet_name, built_at, row_count, columns, stats)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		res.RunID, res.Name, res.BuiltAt, res.Sheet.Len(), columns, stats,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"sheet_rows"}, sheetRowColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copy rows: wrote %d of %d", n, len(rows))
	}
	return tx.Commit(ctx)
}

// copyRows encodes each sheet row as a JSON object keyed by column name.
// Null cells are encoded as JSON null.
func copyRows(res *Result) ([][]any, error) {
	cols := res.Sheet.Columns()
	out := make([][]any, 0, res.Sheet.Len())
	for i, r := range res.Sheet.Rows {
		data, err := json.Marshal(rowObject(cols, r))
		if err != nil {
			return nil, fmt.Errorf("encode row %s: %w", r.RecordID(), err)
		}
		out = append(out, []any{res.RunID, res.Name, i, r.RecordID(), data})
	}
	return out, nil
}

func rowObject(cols []string, r sheet.Row) map[string]*string {
	obj := make(map[string]*string, len(cols))
	for _, c := range cols {
		if v := r.Get(c); v.Valid {
			s := v.String
			obj[c] = &s
		} else {
			obj[c] = nil
		}
	}
	return obj
}
