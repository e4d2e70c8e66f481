package mastersheet

import (
	"fmt"
	"slices"
	"strconv"

	"gopkg.in/guregu/null.v3"

	"github.com/baard/baard/internal/domain/participant"
	"github.com/baard/baard/internal/domain/sheet"
)

// Model names with a feature list.
const (
	ModelBupropion    = "bup"
	ModelAripiprazole = "arp"
)

// Issues list columns.
const (
	ColTotalMissing     = "total_missing"
	missingVarColPrefix = "missing_var_"
)

var basicVariables = []string{
	"age", "sex", "edu_lvl", "baseline_madrs",
	"remission_status", "mini_addtl_q1", "athf_f1_total_trials_v2", "years_with_depression",
	"BMI_extreme",
}

var nihToolboxVariables = []string{
	"fcc_baseline", "dccs_baseline", "flanker_baseline",
	"listSort_baseline", "pattComp_baseline", "psm_baseline",
}

var neurocogVariables = []string{
	"AIS_01", "MDMIS_01", "LIS_01", "MVCIS_01", "IMIS_01", "MTOTALIS_01",
	"CWI3CSSFinal_01", "DERRSS4_01", "CWI4CSSFinal_01", "DTMT4ER_01", "DTMT4CO_01", "DTMT4_01",
	"DTMTS4_01", "RCS_Z_01", "RDS_Z_01", "RFC_Z_01", "RFR_Z_01", "RLO_Z_01",
	"RLL_Z_01", "RREC_Z_01", "PICTURE_Z_01", "RSR_Z_01", "RSF_Z_01", "RSM_Z_01",
}

var structuralVariables = []string{
	"WM.hypointensities_log", "lh_bankssts_thickness",
	"lh_caudalanteriorcingulate_thickness", "lh_caudalmiddlefrontal_thickness",
	"lh_cuneus_thickness", "lh_entorhinal_thickness",
	"lh_fusiform_thickness", "lh_inferiorparietal_thickness",
	"lh_inferiortemporal_thickness", "lh_isthmuscingulate_thickness",
	"lh_lateraloccipital_thickness", "lh_lateralorbitofrontal_thickness",
	"lh_lingual_thickness", "lh_medialorbitofrontal_thickness",
	"lh_middletemporal_thickness", "lh_parahippocampal_thickness",
	"lh_paracentral_thickness", "lh_parsopercularis_thickness",
	"lh_parsorbitalis_thickness", "lh_parstriangularis_thickness",
	"lh_pericalcarine_thickness", "lh_postcentral_thickness",
	"lh_posteriorcingulate_thickness", "lh_precentral_thickness",
	"lh_precuneus_thickness", "lh_rostralanteriorcingulate_thickness",
	"lh_rostralmiddlefrontal_thickness", "lh_superiorfrontal_thickness",
	"lh_superiorparietal_thickness", "lh_superiortemporal_thickness",
	"lh_supramarginal_thickness", "lh_frontalpole_thickness",
	"lh_temporalpole_thickness", "lh_transversetemporal_thickness",
	"lh_insula_thickness", "rh_bankssts_thickness",
	"rh_caudalanteriorcingulate_thickness", "rh_caudalmiddlefrontal_thickness",
	"rh_cuneus_thickness", "rh_entorhinal_thickness",
	"rh_fusiform_thickness", "rh_inferiorparietal_thickness",
	"rh_inferiortemporal_thickness", "rh_isthmuscingulate_thickness",
	"rh_lateraloccipital_thickness", "rh_lateralorbitofrontal_thickness",
	"rh_lingual_thickness", "rh_medialorbitofrontal_thickness",
	"rh_middletemporal_thickness", "rh_parahippocampal_thickness",
	"rh_paracentral_thickness", "rh_parsopercularis_thickness",
	"rh_parsorbitalis_thickness", "rh_parstriangularis_thickness",
	"rh_pericalcarine_thickness", "rh_postcentral_thickness",
	"rh_posteriorcingulate_thickness", "rh_precentral_thickness",
	"rh_precuneus_thickness", "rh_rostralanteriorcingulate_thickness",
	"rh_rostralmiddlefrontal_thickness", "rh_superiorfrontal_thickness",
	"rh_superiorparietal_thickness", "rh_superiortemporal_thickness",
	"rh_supramarginal_thickness", "rh_frontalpole_thickness",
	"rh_temporalpole_thickness", "rh_transversetemporal_thickness",
	"rh_insula_thickness", "Left.Lateral.Ventricle_etiv",
	"Left.Inf.Lat.Vent_etiv", "Left.Thalamus.Proper_etiv",
	"Left.Caudate_etiv", "Left.Putamen_etiv",
	"X3rd.Ventricle_etiv", "X4th.Ventricle_etiv",
	"Left.Hippocampus_etiv", "Left.Amygdala_etiv",
	"Right.Lateral.Ventricle_etiv", "Right.Inf.Lat.Vent_etiv",
	"Right.Thalamus.Proper_etiv", "Right.Caudate_etiv",
	"Right.Putamen_etiv", "Right.Hippocampus_etiv",
	"Right.Amygdala_etiv",
}

var connectivityVariables = []string{
	"Vis", "Limbic", "Cont", "SomMot",
	"SalVentAttn", "Default", "DorsAttn", "Limbic_to_Vis",
	"Cont_to_Vis", "SomMot_to_Vis", "SalVentAttn_to_Vis", "Default_to_Vis",
	"DorsAttn_to_Vis", "Cont_to_Limbic", "Limbic_to_SomMot", "Limbic_to_SalVentAttn",
	"Default_to_Limbic", "DorsAttn_to_Limbic", "Cont_to_SomMot", "Cont_to_SalVentAttn",
	"Cont_to_Default", "Cont_to_DorsAttn", "SalVentAttn_to_SomMot", "Default_to_SomMot",
	"DorsAttn_to_SomMot", "Default_to_SalVentAttn", "DorsAttn_to_SalVentAttn", "Default_to_DorsAttn",
}

// ModelVariables returns the ordered feature list of a model: the basic
// covariates followed by the additional blood, NIH toolbox, neurocognitive,
// structural and connectivity variables.
func ModelVariables(model string) ([]string, error) {
	if !slices.Contains(Models(), model) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	vars := append([]string(nil), basicVariables...)
	for _, m := range participant.Biomarkers {
		vars = append(vars, m+participant.SqrtSuffix)
	}
	vars = append(vars, nihToolboxVariables...)
	vars = append(vars, neurocogVariables...)
	vars = append(vars, structuralVariables...)
	vars = append(vars, connectivityVariables...)
	return vars, nil
}

// Models lists the known model names.
func Models() []string { return []string{ModelBupropion, ModelAripiprazole} }

// FeatureView projects the master sheet onto a model's variables. Listed
// variables absent from the sheet are returned separately, never invented.
func FeatureView(t *sheet.Table, model string) (*sheet.Table, []string, error) {
	vars, err := ModelVariables(model)
	if err != nil {
		return nil, nil, err
	}
	view, missing := t.Select(model+"_features", vars)
	return view, missing, nil
}

// IssuesList reports, per participant, the model variables with no value.
// Only variables present in the sheet are checked. Each row carries exactly
// total_missing names; participants with complete data are omitted.
func IssuesList(t *sheet.Table, model string) (*sheet.Table, error) {
	view, _, err := FeatureView(t, model)
	if err != nil {
		return nil, err
	}
	vars := view.Columns()[1:]

	type issue struct {
		id      string
		missing []string
	}
	var issues []issue
	widest := 0
	for _, r := range view.Rows {
		var missing []string
		for _, v := range vars {
			if !r.Get(v).Valid {
				missing = append(missing, v)
			}
		}
		if len(missing) == 0 {
			continue
		}
		issues = append(issues, issue{id: r.RecordID(), missing: missing})
		if len(missing) > widest {
			widest = len(missing)
		}
	}

	out := sheet.NewTable(model+"_issues", sheet.RecordIDColumn, ColTotalMissing)
	for i := 1; i <= widest; i++ {
		out.AddColumn(MissingVarColumn(i))
	}
	for _, is := range issues {
		r := sheet.Row{
			sheet.RecordIDColumn: null.StringFrom(is.id),
			ColTotalMissing:      null.StringFrom(strconv.Itoa(len(is.missing))),
		}
		for i, v := range is.missing {
			r[MissingVarColumn(i+1)] = null.StringFrom(v)
		}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// MissingVarColumn names the i-th (1-based) missing variable column.
func MissingVarColumn(i int) string { return missingVarColPrefix + strconv.Itoa(i) }
