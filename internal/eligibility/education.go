package eligibility

import "strings"

var educationRank = map[string]int{
	"NONE":                0,
	"BELOW_MATRICULATION": 1,
	"MATRICULATION":       2,
	"HIGHER_SECONDARY":    3,
	"DIPLOMA":             4,
	"GRADUATION":          5,
	"POST_GRADUATION":     6,
	"PHD":                 7,
}

// EducationRank orders education levels; unknown levels rank as NONE.
func EducationRank(level string) int {
	return educationRank[strings.ToUpper(strings.TrimSpace(level))]
}
