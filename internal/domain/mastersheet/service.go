package mastersheet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/baard/baard/internal/domain/cohort"
	"github.com/baard/baard/internal/domain/participant"
	"github.com/baard/baard/internal/domain/sheet"
	"github.com/baard/baard/internal/platform/tabular"
)

// Options configures a Builder.
type Options struct {
	Root        string
	Name        string
	Sources     []Source
	Modalities  []cohort.Modality
	Concurrency int
}

// Builder assembles the master sheet from a data root.
type Builder struct {
	opts      Options
	collector *cohort.Collector
	tagger    *cohort.Tagger
	logger    zerolog.Logger
	now       func() time.Time
}

func NewBuilder(opts Options, logger zerolog.Logger) *Builder {
	if opts.Sources == nil {
		opts.Sources = DefaultSources()
	}
	if opts.Modalities == nil {
		opts.Modalities = cohort.DefaultModalities
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Builder{
		opts:      opts,
		collector: cohort.NewCollector(opts.Root, logger),
		tagger:    cohort.NewTagger(opts.Root, opts.Modalities, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// RecordIDs returns the participant universe of the data root.
func (b *Builder) RecordIDs(ctx context.Context) ([]string, error) {
	ids, err := b.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting record ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoRecordIDs
	}
	return ids, nil
}

type loaded struct {
	table *sheet.Table
	stats SourceStats
}

// Build runs the full pipeline: collect ids, load and merge every source in
// manifest order, tag imaging availability, derive participant fields, add
// biomarker transforms and normalize the column layout.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	started := b.now()
	ids, err := b.RecordIDs(ctx)
	if err != nil {
		return nil, err
	}
	master := sheet.Universe(ids)

	sources, err := b.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := Stats{RecordIDs: master.Len()}
	for _, l := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if l.table == nil {
			stats.Sources = append(stats.Sources, l.stats)
			continue
		}
		l.stats.Duplicates = sheet.Dedupe(l.table)
		var ms sheet.MergeStats
		master, ms = sheet.LeftJoin(master, l.table)
		l.stats.Matched = ms.Matched
		if len(ms.Renamed) > 0 {
			l.stats.Renamed = ms.Renamed
		}
		stats.Sources = append(stats.Sources, l.stats)

		b.logger.Debug().
			Str("source", l.stats.Name).
			Int("matched", ms.Matched).
			Int("duplicates", l.stats.Duplicates).
			Msg("source merged")
		for from, to := range ms.Renamed {
			b.logger.Warn().Str("source", l.stats.Name).Str("column", from).Str("renamed_to", to).
				Msg("column name collision")
		}
	}

	stats.MasterDuplicates = sheet.Dedupe(master)
	sheet.SortByRecordID(master)

	avail := b.tagger.Tag(master)
	stats.ModalityCoverage = make(map[string]int, len(avail))
	for m, set := range avail {
		stats.ModalityCoverage[m] = len(set)
	}

	stats.MissingInputs = participant.MissingInputs(master.Columns())
	for name, cols := range stats.MissingInputs {
		b.logger.Warn().Str("derivation", name).Strs("missing_columns", cols).
			Msg("derivation inputs absent; using null")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	participant.Apply(master)
	stats.Biomarkers = participant.AddTransforms(master, participant.Biomarkers)
	master.ApplyLayout(participant.Layout(cohort.ModalityNames(b.opts.Modalities)))
	master.Name = b.opts.Name

	stats.Columns = len(master.Columns())
	stats.BuildDurationMsec = b.now().Sub(started).Milliseconds()

	res := &Result{
		RunID:   uuid.New(),
		Name:    b.opts.Name,
		BuiltAt: b.now().UTC(),
		Sheet:   master,
		Stats:   stats,
	}
	b.logger.Info().
		Str("run_id", res.RunID.String()).
		Int("rows", master.Len()).
		Int("columns", stats.Columns).
		Msg("master sheet built")
	return res, nil
}

// loadAll reads every source concurrently. Results keep manifest order.
func (b *Builder) loadAll(ctx context.Context) ([]loaded, error) {
	out := make([]loaded, len(b.opts.Sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)

	for i, src := range b.opts.Sources {
		i, src := i, src
		g.Go(func() error {
			tbl, st, err := b.load(gctx, src)
			if err != nil {
				if src.Required {
					return fmt.Errorf("loading required source %s: %w", src.Name, err)
				}
				b.logger.Warn().Err(err).Str("source", src.Name).Str("path", src.Path).
					Msg("skipping source")
				st.Error = err.Error()
				out[i] = loaded{stats: st}
				return nil
			}
			out[i] = loaded{table: tbl, stats: st}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Builder) load(ctx context.Context, src Source) (*sheet.Table, SourceStats, error) {
	st := SourceStats{Name: src.Name, Path: src.Path}
	if err := ctx.Err(); err != nil {
		return nil, st, err
	}

	path := filepath.Join(b.opts.Root, src.Path)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, st, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	f, err := tabular.ReadFile(path)
	if err != nil {
		return nil, st, err
	}

	tbl, ls := sheet.FromFile(src.Name, f, sheet.LoadOptions{
		Select: src.Select,
		Drop:   src.Drop,
		Dates:  src.Dates,
	})
	st.Loaded = true
	st.Rows = ls.Rows
	st.MissingKeys = ls.MissingKeys
	st.UnparsedDates = ls.UnparsedDates
	if ls.MissingKeys > 0 {
		b.logger.Warn().Str("source", src.Name).Int("rows", ls.MissingKeys).Msg("rows without record_id skipped")
	}
	if ls.RenamedKeyFrom != "" {
		b.logger.Debug().Str("source", src.Name).Str("column", ls.RenamedKeyFrom).Msg("first column used as record_id")
	}
	return tbl, st, nil
}
