package scheme

import (
	"encoding/json"
	"time"

	"welfare/pkg/domain"
)

// All is the jurisdiction sentinel: a scheme with State or District equal to
// All (or empty) is not restricted on that level.
const All = "All"

type Scheme struct {
	ID          domain.SchemeID
	Title       string
	Description string
	Category    string
	Amount      int64
	State       string
	District    string
	// Criteria is the raw rule set; nil or empty means no rule set.
	Criteria  json.RawMessage
	CreatedBy domain.CitizenID
	CreatedAt time.Time
}

// IsAll reports whether a jurisdiction value is unrestricted.
func IsAll(v string) bool {
	return v == "" || v == All
}

// CandidateState returns the state filter for a population scan, or "" when
// the scheme is nationwide.
func (s Scheme) CandidateState() string {
	if IsAll(s.State) {
		return ""
	}
	return s.State
}
