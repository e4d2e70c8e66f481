package cohort

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/baard/baard/internal/domain/sheet"
	"github.com/baard/baard/internal/platform/tabular"
)

// ProcessedDir is the directory name that marks cleaned per-domain tables.
const ProcessedDir = "processed"

// Collector gathers the participant identifier universe from a data tree.
type Collector struct {
	root   string
	logger zerolog.Logger
}

func NewCollector(root string, logger zerolog.Logger) *Collector {
	return &Collector{root: root, logger: logger}
}

// Collect walks the root and reads the first column of every *.csv file
// found inside a "processed" directory. Files that cannot be read are logged
// and skipped. The result is normalized, deduplicated and sorted.
func (c *Collector) Collect(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.root {
				return fmt.Errorf("walking %s: %w", path, err)
			}
			c.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !isCSV(path) {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == ProcessedDir {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var ids []string
	for _, f := range files {
		values, err := tabular.FirstColumn(f)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", f).Msg("skipping file during id collection")
			continue
		}
		ids = append(ids, values...)
	}
	universe := sheet.UniqueIDs(ids)
	c.logger.Info().Int("files", len(files)).Int("record_ids", len(universe)).Msg("record ids collected")
	return universe, nil
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}
