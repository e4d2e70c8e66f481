package participant

import (
	"gopkg.in/guregu/null.v3"

	"github.com/baard/baard/internal/domain/sheet"
)

// Apply derives every participant field and writes it back into the table as
// new columns. Existing derived columns are overwritten, so applying twice
// yields the same table.
func Apply(t *sheet.Table) {
	cols := outputColumns()
	for _, c := range cols {
		t.AddColumn(c)
	}
	for _, r := range t.Rows {
		write(r, Derive(Extract(r)))
	}
}

func outputColumns() []string {
	cols := []string{ColSite, ColHasBlood}
	for _, w := range AssessmentWeeks {
		cols = append(cols, OnBupColumn(w), OnArpColumn(w))
	}
	return append(cols,
		ColTotalOnBupropion, ColTotalOnAripiprazole,
		ColMedicationGroup, ColTakingBupropion, ColTakingAripiprazole, ColMedicationRegimen,
		ColTotalFalls, ColTotalInjuries,
		ColRemissionStatus, ColResponseDelta, ColResponseStatus,
		ColHadFall, ColBMIExtreme,
		ColAgeAtFirstEpisodeNum, ColYearsWithDepression,
		ColSex,
	)
}

func write(r sheet.Row, d Derived) {
	r.SetString(ColSite, null.NewString(d.Site, d.Site != ""))
	setFlag(r, ColHasBlood, d.HasBlood)
	for _, w := range AssessmentWeeks {
		setFlag(r, OnBupColumn(w), d.OnBupropion[w])
		setFlag(r, OnArpColumn(w), d.OnAripiprazole[w])
	}
	setFlag(r, ColTotalOnBupropion, d.TotalOnBupropion)
	setFlag(r, ColTotalOnAripiprazole, d.TotalOnAripiprazole)
	r.SetString(ColMedicationGroup, d.MedicationGroup)
	setFlag(r, ColTakingBupropion, d.TakingBupropion)
	setFlag(r, ColTakingAripiprazole, d.TakingAripiprazole)
	r.SetString(ColMedicationRegimen, null.StringFrom(string(d.Regimen)))
	r.SetFloat(ColTotalFalls, null.FloatFrom(d.TotalFalls))
	r.SetFloat(ColTotalInjuries, null.FloatFrom(d.TotalInjuries))
	r.SetInt(ColRemissionStatus, d.RemissionStatus)
	r.SetInt(ColResponseDelta, d.ResponseDelta)
	setFlag(r, ColResponseStatus, d.ResponseStatus)
	setFlag(r, ColHadFall, d.HadFall)
	setFlag(r, ColBMIExtreme, d.BMIExtreme)
	r.SetFloat(ColAgeAtFirstEpisodeNum, d.AgeAtFirstEpisode)
	r.SetFloat(ColYearsWithDepression, d.YearsWithDepression)
	setFlag(r, ColSex, d.Sex)
}

func setFlag(r sheet.Row, col string, v int) {
	r.SetInt(col, null.IntFrom(int64(v)))
}
