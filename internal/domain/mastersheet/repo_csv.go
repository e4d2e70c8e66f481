package mastersheet

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/baard/baard/internal/domain/sheet"
	"github.com/baard/baard/internal/platform/tabular"
)

// CSVSink writes sheets as "<dir>/<name>.csv".
type CSVSink struct {
	Dir string
}

func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{Dir: dir}
}

func (s *CSVSink) Name() string { return "csv" }

// Path returns the file a table with the given name is written to.
func (s *CSVSink) Path(name string) string {
	return filepath.Join(s.Dir, name+".csv")
}

func (s *CSVSink) Write(ctx context.Context, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.WriteTable(res.Sheet)
}

// WriteTable writes any table, such as a feature view or issues list.
func (s *CSVSink) WriteTable(t *sheet.Table) error {
	header, records := t.Records()
	if err := tabular.WriteFile(s.Path(t.Name), header, records); err != nil {
		return fmt.Errorf("writing %s: %w", t.Name, err)
	}
	return nil
}
