package participant

import (
	"fmt"

	"github.com/baard/baard/internal/domain/sheet"
)

// Input columns read from the merged sheet.
const (
	ColBaselineMADRS     = "baseline_madrs"
	ColWeek10MADRS       = "week10_madrs"
	ColBaselinePHQ9      = "baseline_phq9"
	ColWeek6PHQ9         = "week6_phq9"
	ColWeek8PHQ9         = "week8_phq9"
	ColWeek10PHQ9        = "week10_phq9"
	ColBMI               = "bmi"
	ColAge               = "age"
	ColGender            = "gender"
	ColAgeAtFirstEpisode = "mini_addtl_q2"
)

// Output columns written by Apply.
const (
	ColSite                  = "site"
	ColHasBlood              = "has_blood"
	ColTotalOnBupropion      = "total_on_bup"
	ColTotalOnAripiprazole   = "total_on_arp"
	ColMedicationGroup       = "medication_group"
	ColTakingBupropion       = "taking_bup"
	ColTakingAripiprazole    = "taking_arp"
	ColMedicationRegimen     = "medication_regimen"
	ColTotalFalls            = "total_number_falls"
	ColTotalInjuries         = "total_number_injuries"
	ColRemissionStatus       = "remission_status"
	ColResponseDelta         = "response_delta"
	ColResponseStatus        = "response_status"
	ColHadFall               = "had_fall"
	ColBMIExtreme            = "BMI_extreme"
	ColAgeAtFirstEpisodeNum  = "mini_addtl_q2_numeric"
	ColYearsWithDepression   = "years_with_depression"
	ColSex                   = "sex"
	SqrtSuffix               = "_sqrt"
	LogSuffix                = "_log"
	availabilityColumnPrefix = "has_"
)

// Biomarkers are the blood markers that receive sqrt and log variants.
var Biomarkers = []string{
	"IL-6", "gp130", "IL-8/CXCL8", "uPAR", "MIF",
	"CCL2/JE/MCP-1", "Osteoprotegerin/TNFRSF11B", "IL-1 beta/IL-1F2",
	"CCL20/MIP-3 alpha", "CCL3/MIP-1 alpha", "CCL4/MIP-1 beta",
	"CCL13/MCP-4", "GM-CSF", "ICAM-1/CD54", "TNF RII/TNFRSF1B",
	"TNF RI/TNFRSF1A", "PIGF", "CXCL1/GRO alpha/KC/CINC-1",
	"IGFBP-2", "TIMP-1", "IGFBP-6", "Angiogenin",
}

// BloodSentinelMarker marks a participant as having a blood draw.
const BloodSentinelMarker = "IL-6"

func MedColumn(week, slot int) string { return fmt.Sprintf("week%d_med%d", week, slot) }
func FreqColumn(week int) string      { return fmt.Sprintf("week%d_freq2", week) }
func FallsColumn(week int) string     { return fmt.Sprintf("number_falls_week%d", week) }
func InjuryColumn(week int) string    { return fmt.Sprintf("fall_injury_week%d", week) }
func OnBupColumn(week int) string     { return fmt.Sprintf("on_bup_week%d", week) }
func OnArpColumn(week int) string     { return fmt.Sprintf("on_arp_week%d", week) }

// AvailabilityColumn names the presence flag of an imaging modality.
func AvailabilityColumn(modality string) string { return availabilityColumnPrefix + modality }

// Derivation declares the optional columns a derived output reads.
type Derivation struct {
	Name    string
	Inputs  []string
	Outputs []string
}

// Derivations lists every row-wise derivation and its inputs.
func Derivations() []Derivation {
	var meds, falls, injuries, onCols []string
	for _, w := range AssessmentWeeks {
		meds = append(meds, MedColumn(w, 1), MedColumn(w, 2))
		falls = append(falls, FallsColumn(w))
		injuries = append(injuries, InjuryColumn(w))
		onCols = append(onCols, OnBupColumn(w), OnArpColumn(w))
	}
	return []Derivation{
		{Name: "site", Inputs: []string{sheet.RecordIDColumn}, Outputs: []string{ColSite}},
		{Name: "has_blood", Inputs: []string{BloodSentinelMarker}, Outputs: []string{ColHasBlood}},
		{
			Name:    "medication_group",
			Inputs:  meds,
			Outputs: append(onCols, ColTotalOnBupropion, ColTotalOnAripiprazole, ColMedicationGroup, ColTakingBupropion, ColTakingAripiprazole),
		},
		{Name: "medication_regimen", Inputs: meds, Outputs: []string{ColMedicationRegimen}},
		{Name: "falls", Inputs: append(falls, injuries...), Outputs: []string{ColTotalFalls, ColTotalInjuries, ColHadFall}},
		{
			Name:    "remission_status",
			Inputs:  []string{ColWeek10MADRS, ColWeek10PHQ9, ColWeek8PHQ9, ColWeek6PHQ9},
			Outputs: []string{ColRemissionStatus},
		},
		{
			Name:    "response",
			Inputs:  []string{ColBaselineMADRS, ColWeek10MADRS, ColBaselinePHQ9, ColWeek10PHQ9},
			Outputs: []string{ColResponseDelta, ColResponseStatus},
		},
		{Name: "bmi_extreme", Inputs: []string{ColBMI}, Outputs: []string{ColBMIExtreme}},
		{
			Name:    "years_with_depression",
			Inputs:  []string{ColAge, ColAgeAtFirstEpisode},
			Outputs: []string{ColAgeAtFirstEpisodeNum, ColYearsWithDepression},
		},
		{Name: "sex", Inputs: []string{ColGender}, Outputs: []string{ColSex}},
	}
}

// MissingInputs maps each derivation to the inputs absent from columns.
// Derivations with every input present are omitted.
func MissingInputs(columns []string) map[string][]string {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	out := make(map[string][]string)
	for _, d := range Derivations() {
		for _, in := range d.Inputs {
			if !have[in] {
				out[d.Name] = append(out[d.Name], in)
			}
		}
	}
	return out
}

// Layout is the column placement used for the master sheet.
func Layout(modalities []string) sheet.Layout {
	idFollowers := []string{ColSite}
	for _, m := range modalities {
		idFollowers = append(idFollowers, AvailabilityColumn(m))
	}
	idFollowers = append(idFollowers, ColHasBlood)

	placements := []sheet.Placement{{Anchor: sheet.RecordIDColumn, Followers: idFollowers}}
	for _, w := range AssessmentWeeks {
		placements = append(placements, sheet.Placement{
			Anchor:    FreqColumn(w),
			Followers: []string{OnBupColumn(w), OnArpColumn(w)},
		})
	}
	last := AssessmentWeeks[len(AssessmentWeeks)-1]
	placements = append(placements,
		sheet.Placement{Anchor: OnArpColumn(last), Followers: []string{ColTotalOnBupropion, ColTotalOnAripiprazole}},
		sheet.Placement{Anchor: ColTotalOnAripiprazole, Followers: []string{ColMedicationGroup, ColTotalFalls}},
		sheet.Placement{Anchor: ColMedicationGroup, Followers: []string{ColTakingBupropion, ColTakingAripiprazole, ColMedicationRegimen}},
		sheet.Placement{Anchor: ColTotalFalls, Followers: []string{ColHadFall, ColTotalInjuries}},
		sheet.Placement{Anchor: ColBMI, Followers: []string{ColBMIExtreme}},
		sheet.Placement{Anchor: ColAge, Followers: []string{ColYearsWithDepression}},
		sheet.Placement{Anchor: ColAgeAtFirstEpisode, Followers: []string{ColAgeAtFirstEpisodeNum}},
		sheet.Placement{Anchor: ColGender, Followers: []string{ColSex}},
	)
	return sheet.Layout{Placements: placements, Suffixes: []string{SqrtSuffix, LogSuffix}}
}
