package participant

import (
	"gopkg.in/guregu/null.v3"
)

// AssessmentWeeks are the follow-up weeks with medication, falls and score data.
var AssessmentWeeks = []int{2, 4, 6, 8, 10}

// Controlled medication vocabulary, compared after normalization.
const (
	Bupropion    = "bupropion"
	Aripiprazole = "aripiprazole"
)

// Regimen is the detailed medication classification of a participant.
type Regimen string

const (
	RegimenNone                Regimen = "no_medications"
	RegimenBupropionAugment    Regimen = "bupropion_augment"
	RegimenAripiprazoleAugment Regimen = "aripiprazole_augment"
	RegimenSwitch              Regimen = "switch"
	RegimenBupropion           Regimen = "on_bupropion"
	RegimenAripiprazole        Regimen = "on_aripiprazole"
	RegimenMixedOrOther        Regimen = "mixed_or_other"
)

// Medication group values, derived from weekly presence totals.
const (
	GroupBupropion    = "BUPROPION"
	GroupAripiprazole = "ARIPIPRAZOLE"
)

// WeeklyMedication holds the two medication slots recorded at one week.
type WeeklyMedication struct {
	Week int
	Med1 null.String
	Med2 null.String
}

// Record is the typed view of a master-sheet row used by the derivations.
// Every field is optional; absent columns arrive as null.
type Record struct {
	RecordID string

	Medications []WeeklyMedication

	BaselineMADRS null.Float
	Week10MADRS   null.Float
	BaselinePHQ9  null.Float
	Week6PHQ9     null.Float
	Week8PHQ9     null.Float
	Week10PHQ9    null.Float

	FallsByWeek    []null.Float
	InjuriesByWeek []null.Float

	BMI    null.Float
	Age    null.Float
	Gender null.String
	// AgeAtFirstEpisode is the raw MINI answer; it is coerced to a number
	// during derivation.
	AgeAtFirstEpisode null.String

	// BloodSentinel is the raw marker cell. Any value, numeric or not, marks
	// a blood draw.
	BloodSentinel null.String
}

// Derived holds every computed field for one participant.
type Derived struct {
	Site string

	OnBupropion         map[int]int
	OnAripiprazole      map[int]int
	TotalOnBupropion    int
	TotalOnAripiprazole int

	MedicationGroup    null.String
	TakingBupropion    int
	TakingAripiprazole int
	Regimen            Regimen

	RemissionStatus null.Int
	ResponseDelta   null.Int
	ResponseStatus  int

	TotalFalls    float64
	TotalInjuries float64
	HadFall       int

	BMIExtreme int

	AgeAtFirstEpisode   null.Float
	YearsWithDepression null.Float

	Sex      int
	HasBlood int
}
