package eligibility

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"welfare/internal/scheme"
)

// Rule set keys as stored in a scheme's criteria document.
const (
	keyIncomeLimit  = "incomeLimit"
	keyMinAge       = "minAge"
	keyMaxAge       = "maxAge"
	keyGender       = "gender"
	keyMinEducation = "minEducation"
	keyOccupation   = "occupation"
)

// ErrMalformedRules marks a rule set that cannot be interpreted.
var ErrMalformedRules = errors.New("malformed rule set")

// RuleSet is the typed form of a scheme's criteria document. Nil numeric
// bounds and empty string fields are unset. Present is false when the scheme
// carries no rule set at all.
type RuleSet struct {
	Present      bool
	IncomeLimit  *int64
	MinAge       *int
	MaxAge       *int
	Gender       string
	MinEducation string
	Occupation   string
	// Ignored lists keys that are not part of the rule vocabulary.
	Ignored []string
}

// ParseRuleSet decodes a criteria document. Numeric rules accept JSON numbers
// or numeric strings; a zero bound is treated as no bound. String rules equal
// to "All" (any case) are unset.
func ParseRuleSet(raw json.RawMessage) (RuleSet, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return RuleSet{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return RuleSet{}, fmt.Errorf("%w: criteria must be a JSON object: %v", ErrMalformedRules, err)
	}

	rs := RuleSet{Present: true}
	var err error
	for key, value := range fields {
		switch key {
		case keyIncomeLimit:
			rs.IncomeLimit, err = parseBound(key, value)
		case keyMinAge:
			rs.MinAge, err = parseAge(key, value)
		case keyMaxAge:
			rs.MaxAge, err = parseAge(key, value)
		case keyGender:
			rs.Gender, err = parseSelector(key, value)
		case keyMinEducation:
			rs.MinEducation, err = parseSelector(key, value)
		case keyOccupation:
			rs.Occupation, err = parseSelector(key, value)
		default:
			rs.Ignored = append(rs.Ignored, key)
		}
		if err != nil {
			return RuleSet{}, err
		}
	}
	sort.Strings(rs.Ignored)
	return rs, nil
}

// Validate reports whether a scheme's criteria can be compiled.
func Validate(s scheme.Scheme) error {
	_, err := ParseRuleSet(s.Criteria)
	return err
}

func parseBound(key string, raw json.RawMessage) (*int64, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var text string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRules, key, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", ErrMalformedRules, key)
		}
		text = n.String()
	}

	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		// 50000.0 is integral and accepted; 49999.5 is not.
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
			return nil, fmt.Errorf("%w: %s must be a whole number, got %q", ErrMalformedRules, key, text)
		}
		v = int64(f)
	}
	if v < 0 {
		return nil, fmt.Errorf("%w: %s must not be negative", ErrMalformedRules, key)
	}
	if v == 0 {
		return nil, nil
	}
	return &v, nil
}

func parseAge(key string, raw json.RawMessage) (*int, error) {
	v, err := parseBound(key, raw)
	if err != nil || v == nil {
		return nil, err
	}
	if *v > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %s out of range", ErrMalformedRules, key)
	}
	age := int(*v)
	return &age, nil
}

func parseSelector(key string, raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrMalformedRules, key)
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, scheme.All) {
		return "", nil
	}
	return s, nil
}
