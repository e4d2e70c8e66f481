package cohort

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"gopkg.in/guregu/null.v3"

	"github.com/baard/baard/internal/domain/participant"
	"github.com/baard/baard/internal/domain/sheet"
	"github.com/baard/baard/internal/platform/tabular"
)

// Modality is an imaging domain with its own processed directory.
type Modality struct {
	Name string
	Dir  string
}

// DefaultModalities are the imaging domains tagged on every master sheet.
var DefaultModalities = []Modality{
	{Name: "smri", Dir: filepath.Join("mri", "smri", ProcessedDir)},
	{Name: "fmri", Dir: filepath.Join("mri", "fmri", ProcessedDir)},
	{Name: "dwi", Dir: filepath.Join("mri", "dwi", ProcessedDir)},
}

// ModalityNames returns the names of the given modalities in order.
func ModalityNames(mods []Modality) []string {
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.Name
	}
	return out
}

// Availability maps a modality name to the set of record ids that have it.
type Availability map[string]map[string]bool

// Has reports whether recordID has data for modality.
func (a Availability) Has(modality, recordID string) bool {
	return a[modality][sheet.NormalizeID(recordID)]
}

// Tagger computes per-modality presence from the processed imaging tables.
type Tagger struct {
	root       string
	modalities []Modality
	logger     zerolog.Logger
}

func NewTagger(root string, modalities []Modality, logger zerolog.Logger) *Tagger {
	return &Tagger{root: root, modalities: modalities, logger: logger}
}

// Scan reads the *.csv files directly inside each modality directory. A
// missing directory yields an empty set; unreadable files are skipped.
func (t *Tagger) Scan() Availability {
	out := make(Availability, len(t.modalities))
	for _, m := range t.modalities {
		set := make(map[string]bool)
		out[m.Name] = set

		dir := filepath.Join(t.root, m.Dir)
		if _, err := os.Stat(dir); err != nil {
			t.logger.Warn().Str("modality", m.Name).Str("dir", dir).Msg("modality directory not found")
			continue
		}
		files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
		if err != nil {
			t.logger.Warn().Err(err).Str("modality", m.Name).Msg("listing modality files")
			continue
		}
		sort.Strings(files)
		for _, f := range files {
			values, err := tabular.FirstColumn(f)
			if err != nil {
				t.logger.Warn().Err(err).Str("file", f).Msg("skipping file during availability tagging")
				continue
			}
			for _, v := range values {
				if id := sheet.NormalizeID(v); id != "" {
					set[id] = true
				}
			}
		}
		t.logger.Debug().Str("modality", m.Name).Int("participants", len(set)).Msg("modality scanned")
	}
	return out
}

// Tag scans the modality directories and writes a has_<modality> flag for
// every row of the table.
func (t *Tagger) Tag(tbl *sheet.Table) Availability {
	avail := t.Scan()
	for _, m := range t.modalities {
		col := participant.AvailabilityColumn(m.Name)
		tbl.AddColumn(col)
		for _, r := range tbl.Rows {
			var flag int64
			if avail.Has(m.Name, r.RecordID()) {
				flag = 1
			}
			r.SetInt(col, null.IntFrom(flag))
		}
	}
	return avail
}
