package participant

import (
	"math"
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/baard/baard/internal/domain/sheet"
)

// Thresholds used by the outcome derivations.
const (
	MADRSRemissionMax    = 10
	PHQ9RemissionMax     = 4
	ResponseThresholdPct = 50
	BMIUpper             = 40
	BMILower             = 20
)

// Extract builds the typed record from a merged row. Missing columns and
// missing cells both yield null fields.
func Extract(r sheet.Row) Record {
	rec := Record{
		RecordID:          r.RecordID(),
		BaselineMADRS:     r.Float(ColBaselineMADRS),
		Week10MADRS:       r.Float(ColWeek10MADRS),
		BaselinePHQ9:      r.Float(ColBaselinePHQ9),
		Week6PHQ9:         r.Float(ColWeek6PHQ9),
		Week8PHQ9:         r.Float(ColWeek8PHQ9),
		Week10PHQ9:        r.Float(ColWeek10PHQ9),
		BMI:               r.Float(ColBMI),
		Age:               r.Float(ColAge),
		Gender:            r.Get(ColGender),
		AgeAtFirstEpisode: r.Get(ColAgeAtFirstEpisode),
		BloodSentinel:     r.Get(BloodSentinelMarker),
	}
	for _, w := range AssessmentWeeks {
		rec.Medications = append(rec.Medications, WeeklyMedication{
			Week: w,
			Med1: r.Get(MedColumn(w, 1)),
			Med2: r.Get(MedColumn(w, 2)),
		})
		rec.FallsByWeek = append(rec.FallsByWeek, r.Float(FallsColumn(w)))
		rec.InjuriesByWeek = append(rec.InjuriesByWeek, r.Float(InjuryColumn(w)))
	}
	return rec
}

// Derive computes every derived field of a record.
func Derive(rec Record) Derived {
	d := Derived{
		Site:           Site(rec.RecordID),
		OnBupropion:    make(map[int]int, len(rec.Medications)),
		OnAripiprazole: make(map[int]int, len(rec.Medications)),
	}

	for _, m := range rec.Medications {
		bup := boolInt(takes(m, Bupropion))
		arp := boolInt(takes(m, Aripiprazole))
		d.OnBupropion[m.Week] = bup
		d.OnAripiprazole[m.Week] = arp
		d.TotalOnBupropion += bup
		d.TotalOnAripiprazole += arp
	}
	d.MedicationGroup = MedicationGroup(d.TotalOnBupropion, d.TotalOnAripiprazole)
	d.TakingBupropion = boolInt(d.MedicationGroup.ValueOrZero() == GroupBupropion)
	d.TakingAripiprazole = boolInt(d.MedicationGroup.ValueOrZero() == GroupAripiprazole)
	d.Regimen = ClassifyMedication(rec.Medications)

	d.RemissionStatus = RemissionStatus(rec)
	d.ResponseDelta = ResponseDelta(rec)
	d.ResponseStatus = ResponseStatus(d.ResponseDelta)

	d.TotalFalls = sum(rec.FallsByWeek)
	d.TotalInjuries = sum(rec.InjuriesByWeek)
	d.HadFall = boolInt(d.TotalFalls > 0)

	d.BMIExtreme = BMIExtreme(rec.BMI)
	d.AgeAtFirstEpisode = sheet.ParseFloat(rec.AgeAtFirstEpisode)
	d.YearsWithDepression = YearsWithDepression(rec.Age, d.AgeAtFirstEpisode)

	d.Sex = boolInt(rec.Gender.ValueOrZero() == "Male")
	d.HasBlood = boolInt(rec.BloodSentinel.Valid)
	return d
}

// Site is the recruiting site prefix of a record id.
func Site(recordID string) string {
	id := []rune(strings.ToUpper(recordID))
	if len(id) < 2 {
		return string(id)
	}
	return string(id[:2])
}

func normalizeMed(v null.String) string {
	if !v.Valid {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(v.String))
}

func takes(m WeeklyMedication, drug string) bool {
	return normalizeMed(m.Med1) == drug || normalizeMed(m.Med2) == drug
}

// ClassifyMedication assigns the regimen over the weekly medication slots.
// Rules are evaluated in priority order and the first match wins:
// no medication, augmentation (earliest week decides), switch between primary
// drugs, single drug, then everything else.
func ClassifyMedication(weeks []WeeklyMedication) Regimen {
	all := make(map[string]bool)
	primary := make(map[string]bool)
	for _, w := range weeks {
		m1, m2 := normalizeMed(w.Med1), normalizeMed(w.Med2)
		if m1 != "" {
			all[m1] = true
			primary[m1] = true
		}
		if m2 != "" {
			all[m2] = true
		}
	}

	if len(all) == 0 {
		return RegimenNone
	}

	for _, w := range weeks {
		m1, m2 := normalizeMed(w.Med1), normalizeMed(w.Med2)
		if m1 == Bupropion && m2 == Aripiprazole {
			return RegimenBupropionAugment
		}
		if m1 == Aripiprazole && m2 == Bupropion {
			return RegimenAripiprazoleAugment
		}
	}

	if primary[Bupropion] && primary[Aripiprazole] {
		return RegimenSwitch
	}

	if len(all) == 1 {
		switch {
		case all[Bupropion]:
			return RegimenBupropion
		case all[Aripiprazole]:
			return RegimenAripiprazole
		}
	}
	return RegimenMixedOrOther
}

// MedicationGroup labels participants who took exactly one of the two study
// drugs across the follow-up weeks; everyone else is null.
func MedicationGroup(totalBupropion, totalAripiprazole int) null.String {
	switch {
	case totalBupropion >= 1 && totalAripiprazole == 0:
		return null.StringFrom(GroupBupropion)
	case totalAripiprazole >= 1 && totalBupropion == 0:
		return null.StringFrom(GroupAripiprazole)
	default:
		return null.String{}
	}
}

// RemissionStatus uses the week-10 MADRS when present, otherwise the latest
// available PHQ-9 among weeks 10, 8 and 6. Null when no score is available.
func RemissionStatus(rec Record) null.Int {
	if rec.Week10MADRS.Valid {
		return null.IntFrom(int64(boolInt(rec.Week10MADRS.Float64 <= MADRSRemissionMax)))
	}
	for _, score := range []null.Float{rec.Week10PHQ9, rec.Week8PHQ9, rec.Week6PHQ9} {
		if score.Valid {
			return null.IntFrom(int64(boolInt(score.Float64 <= PHQ9RemissionMax)))
		}
	}
	return null.Int{}
}

// ResponseDelta is the percent improvement from baseline to week 10, from the
// MADRS pair when usable and the PHQ-9 pair otherwise. Halves round to even.
func ResponseDelta(rec Record) null.Int {
	if d, ok := percentChange(rec.BaselineMADRS, rec.Week10MADRS); ok {
		return null.IntFrom(d)
	}
	if d, ok := percentChange(rec.BaselinePHQ9, rec.Week10PHQ9); ok {
		return null.IntFrom(d)
	}
	return null.Int{}
}

func percentChange(baseline, week10 null.Float) (int64, bool) {
	if !baseline.Valid || !week10.Valid || baseline.Float64 == 0 {
		return 0, false
	}
	delta := (baseline.Float64 - week10.Float64) / baseline.Float64 * 100
	return int64(math.RoundToEven(delta)), true
}

// ResponseStatus is 1 when the delta reaches the response threshold. A null
// delta counts as non-response.
func ResponseStatus(delta null.Int) int {
	return boolInt(delta.Valid && delta.Int64 >= ResponseThresholdPct)
}

// BMIExtreme flags BMI above 40 or below 20. Null BMI is not extreme.
func BMIExtreme(bmi null.Float) int {
	return boolInt(bmi.Valid && (bmi.Float64 > BMIUpper || bmi.Float64 < BMILower))
}

// YearsWithDepression is age minus age at first episode; null if either is.
func YearsWithDepression(age, firstEpisode null.Float) null.Float {
	if !age.Valid || !firstEpisode.Valid {
		return null.Float{}
	}
	return null.FloatFrom(age.Float64 - firstEpisode.Float64)
}

func sum(values []null.Float) float64 {
	var total float64
	for _, v := range values {
		if v.Valid {
			total += v.Float64
		}
	}
	return total
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
