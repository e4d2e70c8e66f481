package mastersheet

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/baard/baard/internal/domain/sheet"
)

var (
	// ErrNoRecordIDs means the processed corpus holds no participant ids.
	ErrNoRecordIDs    = errors.New("no record ids found in processed tables")
	ErrSourceNotFound = errors.New("source file not found")
	ErrUnknownModel   = errors.New("unknown model")
	ErrSheetNotBuilt  = errors.New("master sheet has not been built")
)

// SourceStats reports how one domain source was loaded and merged.
type SourceStats struct {
	Name          string            `json:"name"`
	Path          string            `json:"path"`
	Loaded        bool              `json:"loaded"`
	Error         string            `json:"error,omitempty"`
	Rows          int               `json:"rows"`
	MissingKeys   int               `json:"missing_keys"`
	UnparsedDates int               `json:"unparsed_dates"`
	Matched       int               `json:"matched"`
	Duplicates    int               `json:"duplicates"`
	Renamed       map[string]string `json:"renamed,omitempty"`
}

// Stats summarizes a build.
type Stats struct {
	RecordIDs         int                 `json:"record_ids"`
	Columns           int                 `json:"columns"`
	MasterDuplicates  int                 `json:"master_duplicates"`
	Sources           []SourceStats       `json:"sources"`
	Biomarkers        []string            `json:"biomarkers"`
	MissingInputs     map[string][]string `json:"missing_inputs,omitempty"`
	ModalityCoverage  map[string]int      `json:"modality_coverage"`
	BuildDurationMsec int64               `json:"build_duration_ms"`
}

// Result is one built master sheet.
type Result struct {
	RunID   uuid.UUID    `json:"run_id"`
	Name    string       `json:"name"`
	BuiltAt time.Time    `json:"built_at"`
	Sheet   *sheet.Table `json:"-"`
	Stats   Stats        `json:"stats"`
}
