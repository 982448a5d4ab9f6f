package citizen

import (
	"time"

	"welfare/pkg/domain"
)

type Role string

const (
	RoleOfficial    Role = "OFFICIAL"
	RoleBeneficiary Role = "BENEFICIARY"
)

// EducationNone is the default education level for profiles that omit it.
const EducationNone = "NONE"

// Profile holds the demographic fields schemes are evaluated against.
// Income and Age are nil when the citizen has not provided them.
type Profile struct {
	State      string
	District   string
	Income     *int64
	Age        *int
	Gender     string
	Occupation string
	Education  string
	Pincode    string
}

type Citizen struct {
	ID          domain.CitizenID
	Name        string
	Phone       string
	Role        Role
	Profile     Profile
	BankAccount string
	IFSC        string
	CreatedAt   time.Time
}

func (c Citizen) IsOfficial() bool { return c.Role == RoleOfficial }

// Actor returns the identity the citizen acts under.
func (c Citizen) Actor() Actor { return Actor{ID: c.ID, Role: c.Role} }

// Actor is the caller of an officer operation.
type Actor struct {
	ID   domain.CitizenID
	Role Role
}

func (a Actor) IsOfficial() bool { return a.Role == RoleOfficial }

// EducationLevel returns the profile's education, defaulting to NONE.
func (p Profile) EducationLevel() string {
	if p.Education == "" {
		return EducationNone
	}
	return p.Education
}

// CandidateQuery selects beneficiaries for a scan, one keyset page at a time.
// An empty State selects every state.
type CandidateQuery struct {
	State string
	After domain.CitizenID
	Limit int
}
