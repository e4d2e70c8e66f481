package mastersheet

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source describes one per-domain table merged into the master sheet.
type Source struct {
	Name string `yaml:"name"`
	// Path is relative to the data root.
	Path   string   `yaml:"path"`
	Select []string `yaml:"select,omitempty"`
	Drop   []string `yaml:"drop,omitempty"`
	Dates  []string `yaml:"dates,omitempty"`
	// Required sources abort the build when they cannot be loaded.
	Required bool `yaml:"required,omitempty"`
}

type manifest struct {
	Sources []Source `yaml:"sources"`
}

// DefaultSources is the built-in manifest, in merge order.
func DefaultSources() []Source {
	return []Source{
		{
			Name:   "mri_date",
			Path:   "mri/smri/processed/OPT_baseline_selected_thickness.csv",
			Select: []string{"mr_date"},
		},
		{Name: "baseline_date", Path: "temp/processed/OPT_baseline_date.csv"},
		{Name: "madrs", Path: "temp/processed/OPT_madrs.csv"},
		{Name: "phq9", Path: "temp/processed/OPT_phq9.csv"},
		{Name: "demographics", Path: "temp/processed/OPT_demographics.csv"},
		{Name: "mini", Path: "temp/processed/OPT_mini.csv"},
		{Name: "athf", Path: "temp/processed/OPT_ATHF.csv"},
		{Name: "decision_support", Path: "temp/processed/OPT_decision_support.csv"},
		{Name: "neurocog", Path: "temp/processed/baseline_indexscores.csv"},
		{Name: "nih_toolbox_cog", Path: "temp/processed/OPT_nih_toolbox_cog.csv"},
		{Name: "nih_toolbox_motor", Path: "temp/processed/OPT_nih_toolbox_motor.csv"},
		{Name: "falls", Path: "temp/processed/OPT_falls.csv"},
		{Name: "blood", Path: "temp/processed/baseline_blood.csv"},
		{Name: "genetics", Path: "temp/processed/OPT_genetics.csv"},
		{
			Name: "smri",
			Path: "mri/smri/processed/OPT_baseline_selected_thickness.csv",
			Drop: []string{"mr_date"},
		},
		{Name: "fmri", Path: "mri/fmri/processed/OPT_baseline_connectivity_Network_Connectivity.csv"},
		{Name: "dwi", Path: "mri/dwi/processed/FA_2024.csv", Drop: []string{"subjects"}},
	}
}

// LoadSources reads a YAML manifest of the form "sources: [...]".
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates a YAML manifest.
func ParseSources(data []byte) ([]Source, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing sources: %w", err)
	}
	if len(m.Sources) == 0 {
		return nil, fmt.Errorf("sources file lists no sources")
	}
	seen := make(map[string]bool, len(m.Sources))
	for i, s := range m.Sources {
		if s.Name == "" {
			return nil, fmt.Errorf("source %d: name is required", i)
		}
		if s.Path == "" {
			return nil, fmt.Errorf("source %q: path is required", s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("source %q listed twice", s.Name)
		}
		seen[s.Name] = true
	}
	return m.Sources, nil
}
