// Package eligibility decides whether a citizen qualifies for a scheme.
//
// Evaluation is pure: no I/O and no clock. A scheme is compiled once per scan
// into a Policy and the Policy is applied to each candidate. Every failure
// path is fail-closed: a rule set or profile that cannot be read yields a
// not-eligible Decision carrying the error.
package eligibility

import (
	"errors"
	"fmt"
	"strings"

	"welfare/internal/citizen"
	"welfare/internal/scheme"
)

type Reason string

const (
	ReasonEligible              Reason = "eligible"
	ReasonStateMismatch         Reason = "state_mismatch"
	ReasonDistrictMismatch      Reason = "district_mismatch"
	ReasonIncomeAboveLimit      Reason = "income_above_limit"
	ReasonBelowMinAge           Reason = "below_min_age"
	ReasonAboveMaxAge           Reason = "above_max_age"
	ReasonGenderMismatch        Reason = "gender_mismatch"
	ReasonEducationBelowMinimum Reason = "education_below_minimum"
	ReasonOccupationMismatch    Reason = "occupation_mismatch"
	ReasonMalformedRules        Reason = "malformed_rules"
	ReasonMalformedProfile      Reason = "malformed_profile"
)

// ErrMalformedProfile marks a citizen profile field that cannot be evaluated.
var ErrMalformedProfile = errors.New("malformed profile")

// Decision is the outcome of evaluating one citizen. Err is set only for
// the malformed reasons.
type Decision struct {
	Eligible bool
	Reason   Reason
	Err      error
}

// Policy is a scheme compiled for repeated evaluation.
type Policy struct {
	state    string
	district string
	rules    RuleSet
	err      error
}

// Compile parses the scheme's rule set once. A malformed rule set produces a
// policy that rejects every citizen; inspect Err to report it.
func Compile(s scheme.Scheme) *Policy {
	rules, err := ParseRuleSet(s.Criteria)
	return &Policy{
		state:    s.State,
		district: s.District,
		rules:    rules,
		err:      err,
	}
}

// Err returns the rule set parse error, if any.
func (p *Policy) Err() error { return p.err }

// Ignored returns rule keys that the evaluator does not understand.
func (p *Policy) Ignored() []string { return p.rules.Ignored }

// Evaluate reports whether c is eligible for the scheme, in the order:
// jurisdiction, rule set presence, income, age, gender, education, occupation.
// The first failing check decides.
func Evaluate(c citizen.Citizen, s scheme.Scheme) bool {
	return Compile(s).Evaluate(c).Eligible
}

func (p *Policy) Evaluate(c citizen.Citizen) Decision {
	if p.err != nil {
		return Decision{Reason: ReasonMalformedRules, Err: p.err}
	}

	if !scheme.IsAll(p.state) && p.state != c.Profile.State {
		return reject(ReasonStateMismatch)
	}
	if !scheme.IsAll(p.district) && p.district != c.Profile.District {
		return reject(ReasonDistrictMismatch)
	}

	rules := p.rules
	if !rules.Present {
		return Decision{Eligible: true, Reason: ReasonEligible}
	}

	income, age, err := readProfile(c.Profile)
	if err != nil {
		return Decision{Reason: ReasonMalformedProfile, Err: err}
	}

	if rules.IncomeLimit != nil && income > *rules.IncomeLimit {
		return reject(ReasonIncomeAboveLimit)
	}
	if rules.MinAge != nil && age < *rules.MinAge {
		return reject(ReasonBelowMinAge)
	}
	if rules.MaxAge != nil && age > *rules.MaxAge {
		return reject(ReasonAboveMaxAge)
	}
	if rules.Gender != "" && !strings.EqualFold(rules.Gender, c.Profile.Gender) {
		return reject(ReasonGenderMismatch)
	}
	if rules.MinEducation != "" && EducationRank(c.Profile.EducationLevel()) < EducationRank(rules.MinEducation) {
		return reject(ReasonEducationBelowMinimum)
	}
	if rules.Occupation != "" && (c.Profile.Occupation == "" || !strings.EqualFold(rules.Occupation, c.Profile.Occupation)) {
		return reject(ReasonOccupationMismatch)
	}

	return Decision{Eligible: true, Reason: ReasonEligible}
}

func reject(r Reason) Decision {
	return Decision{Reason: r}
}

// readProfile applies the absent-means-zero defaults.
func readProfile(p citizen.Profile) (income int64, age int, err error) {
	if p.Income != nil {
		if *p.Income < 0 {
			return 0, 0, fmt.Errorf("%w: negative income", ErrMalformedProfile)
		}
		income = *p.Income
	}
	if p.Age != nil {
		if *p.Age < 0 {
			return 0, 0, fmt.Errorf("%w: negative age", ErrMalformedProfile)
		}
		age = *p.Age
	}
	return income, age, nil
}
