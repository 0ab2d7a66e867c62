package fieldspec

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Validator checks one field value. It is pure and total: any input yields
// a pass/fail answer plus an optional corrective hint, never a panic.
type Validator func(value string) (normalized string, ok bool, hint string)

var (
	numericRe = regexp.MustCompile(`^\d+$`)
	phoneRe   = regexp.MustCompile(`^\+?\d{10,14}$`)
	emailRe   = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

const (
	isoDateLayout = "2006-01-02"
	dmyDateLayout = "02/01/2006"
)

// fuzzy registry matches: accept small typos, suggest close candidates.
const (
	registryMaxDistance = 2
	registryMinLen      = 4
	registryMaxSuggest  = 3
)

func buildValidator(raw rawValidate) (Validator, error) {
	switch raw.Kind {
	case "", "nonempty":
		return nonEmpty, nil

	case "min_len":
		if raw.Min < 1 {
			return nil, fmt.Errorf("min_len validator needs min >= 1")
		}
		return minLen(raw.Min), nil

	case "numeric":
		return numeric, nil

	case "date":
		return dateField, nil

	case "email":
		return email, nil

	case "phone":
		return phone, nil

	case "pattern":
		if raw.Pattern == "" {
			return nil, fmt.Errorf("pattern validator needs a pattern")
		}
		re, err := regexp.Compile("^(?:" + raw.Pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("bad pattern: %w", err)
		}
		return patternField(re), nil

	case "registry":
		if len(raw.Values) == 0 {
			return nil, fmt.Errorf("registry validator needs values")
		}
		return registryField(raw.Values), nil

	default:
		return nil, fmt.Errorf("unknown validator kind %q", raw.Kind)
	}
}

func nonEmpty(v string) (string, bool, string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false, "A value is required here."
	}
	return v, true, ""
}

func minLen(n int) Validator {
	return func(v string) (string, bool, string) {
		v = strings.TrimSpace(v)
		if utf8.RuneCountInString(v) < n {
			return "", false, fmt.Sprintf("That looks too short. Please enter at least %d characters.", n)
		}
		return v, true, ""
	}
}

func numeric(v string) (string, bool, string) {
	v = strings.TrimSpace(v)
	if !numericRe.MatchString(v) {
		return "", false, "Digits only, please."
	}
	return v, true, ""
}

// dateField accepts YYYY-MM-DD or DD/MM/YYYY and normalizes to ISO.
func dateField(v string) (string, bool, string) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(isoDateLayout, v); err == nil {
		return t.Format(isoDateLayout), true, ""
	}
	if t, err := time.Parse(dmyDateLayout, v); err == nil {
		return t.Format(isoDateLayout), true, ""
	}
	return "", false, "Use YYYY-MM-DD or DD/MM/YYYY."
}

func email(v string) (string, bool, string) {
	v = strings.TrimSpace(v)
	if !emailRe.MatchString(v) {
		return "", false, "Please enter a valid email like name@example.com."
	}
	return strings.ToLower(v), true, ""
}

func phone(v string) (string, bool, string) {
	v = strings.ReplaceAll(strings.TrimSpace(v), " ", "")
	if !phoneRe.MatchString(v) {
		return "", false, "Please enter a valid phone number, e.g. +919812345678."
	}
	return v, true, ""
}

func patternField(re *regexp.Regexp) Validator {
	return func(v string) (string, bool, string) {
		v = strings.TrimSpace(v)
		if !re.MatchString(v) {
			return "", false, ""
		}
		return v, true, ""
	}
}

// registryField accepts values present in a fixed list: case-insensitive
// exact matches, or near matches within a small edit distance. Rejections
// suggest the closest registered entries.
func registryField(values []string) Validator {
	registered := make([]string, len(values))
	copy(registered, values)

	return func(v string) (string, bool, string) {
		in := strings.TrimSpace(v)
		if in == "" {
			return "", false, "A value is required here."
		}
		lower := strings.ToLower(in)

		type scored struct {
			name string
			dist int
		}
		ranked := make([]scored, 0, len(registered))
		for _, cand := range registered {
			cl := strings.ToLower(cand)
			if cl == lower {
				return cand, true, ""
			}
			ranked = append(ranked, scored{name: cand, dist: levenshtein.ComputeDistance(lower, cl)})
		}

		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].dist != ranked[j].dist {
				return ranked[i].dist < ranked[j].dist
			}
			return ranked[i].name < ranked[j].name
		})

		if len(in) >= registryMinLen && ranked[0].dist <= registryMaxDistance {
			return ranked[0].name, true, ""
		}

		n := len(ranked)
		if n > registryMaxSuggest {
			n = registryMaxSuggest
		}
		names := make([]string, 0, n)
		for _, s := range ranked[:n] {
			names = append(names, s.name)
		}
		return "", false, "Not found in the registry. Closest matches: " + strings.Join(names, ", ") + "."
	}
}
