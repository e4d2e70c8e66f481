package participant

import (
	"math"

	"gopkg.in/guregu/null.v3"

	"github.com/baard/baard/internal/domain/sheet"
)

// Sqrt is defined for non-negative values only.
func Sqrt(v null.Float) null.Float {
	if !v.Valid || v.Float64 < 0 {
		return null.Float{}
	}
	return null.FloatFrom(math.Sqrt(v.Float64))
}

// Log is the natural log, defined for positive values only.
func Log(v null.Float) null.Float {
	if !v.Valid || v.Float64 <= 0 {
		return null.Float{}
	}
	return null.FloatFrom(math.Log(v.Float64))
}

// AddTransforms appends "<marker>_sqrt" and "<marker>_log" columns for every
// marker present in the table. Source columns are left untouched and
// non-numeric cells produce nulls. It returns the markers that were present.
func AddTransforms(t *sheet.Table, markers []string) []string {
	var present []string
	for _, m := range markers {
		if !t.HasColumn(m) {
			continue
		}
		present = append(present, m)
		sqrtCol, logCol := m+SqrtSuffix, m+LogSuffix
		t.AddColumn(sqrtCol)
		t.AddColumn(logCol)
		for _, r := range t.Rows {
			v := r.Float(m)
			r.SetFloat(sqrtCol, Sqrt(v))
			r.SetFloat(logCol, Log(v))
		}
	}
	return present
}
