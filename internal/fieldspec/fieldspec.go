package fieldspec

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field is one required input for a complaint category, with its prompt
// and validation predicate.
type Field struct {
	Name   string
	Prompt string
	Hint   string
	check  Validator
}

// Validate applies the field's predicate. It returns the normalized value,
// whether the input passed, and a corrective hint when it did not.
func (f Field) Validate(value string) (string, bool, string) {
	norm, ok, hint := f.check(value)
	if ok {
		return norm, true, ""
	}
	if hint == "" {
		hint = f.Hint
	}
	if hint == "" {
		hint = "That value doesn't look right. Please try again."
	}
	return "", false, hint
}

// Spec binds a (category, sub-category) pair to its ordered required fields.
type Spec struct {
	Category    string
	Code        string
	SubCategory string
	Fields      []Field
}

// Pair names one known (category, sub-category) combination.
type Pair struct {
	Category    string
	SubCategory string
}

// Table is the immutable field requirement table, loaded once at startup.
type Table struct {
	specs map[pairKey]*Spec
	order []pairKey
	codes map[string]string
}

type pairKey struct {
	cat string
	sub string
}

func keyOf(category, subCategory string) pairKey {
	return pairKey{
		cat: strings.ToLower(strings.TrimSpace(category)),
		sub: strings.ToLower(strings.TrimSpace(subCategory)),
	}
}

type rawValidate struct {
	Kind    string   `yaml:"kind"`
	Min     int      `yaml:"min"`
	Pattern string   `yaml:"pattern"`
	Values  []string `yaml:"values"`
}

type rawField struct {
	Name     string      `yaml:"name"`
	Prompt   string      `yaml:"prompt"`
	Hint     string      `yaml:"hint"`
	Validate rawValidate `yaml:"validate"`
}

type rawSpec struct {
	Category    string     `yaml:"category"`
	Code        string     `yaml:"code"`
	SubCategory string     `yaml:"sub_category"`
	Fields      []rawField `yaml:"fields"`
}

type rawTable struct {
	Specs []rawSpec `yaml:"specs"`
}

var codeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// Load reads and parses a field requirement table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fieldspec table: %w", err)
	}
	return Parse(data)
}

// Parse builds a Table from YAML bytes, compiling every validator up front
// so a bad entry fails at startup, not mid-conversation.
func Parse(data []byte) (*Table, error) {
	var raw rawTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fieldspec table: %w", err)
	}
	if len(raw.Specs) == 0 {
		return nil, fmt.Errorf("fieldspec table has no specs")
	}

	t := &Table{
		specs: make(map[pairKey]*Spec, len(raw.Specs)),
		codes: make(map[string]string),
	}

	for _, rs := range raw.Specs {
		if strings.TrimSpace(rs.Category) == "" || strings.TrimSpace(rs.SubCategory) == "" {
			return nil, fmt.Errorf("fieldspec entry missing category or sub_category")
		}
		if !codeRe.MatchString(rs.Code) {
			return nil, fmt.Errorf("fieldspec %s/%s: code %q must be two uppercase letters", rs.Category, rs.SubCategory, rs.Code)
		}

		key := keyOf(rs.Category, rs.SubCategory)
		if _, dup := t.specs[key]; dup {
			return nil, fmt.Errorf("fieldspec %s/%s declared twice", rs.Category, rs.SubCategory)
		}
		if prev, ok := t.codes[key.cat]; ok && prev != rs.Code {
			return nil, fmt.Errorf("category %s has conflicting codes %s and %s", rs.Category, prev, rs.Code)
		}

		spec := &Spec{
			Category:    strings.TrimSpace(rs.Category),
			Code:        rs.Code,
			SubCategory: strings.TrimSpace(rs.SubCategory),
		}
		seen := make(map[string]bool, len(rs.Fields))
		for _, rf := range rs.Fields {
			if strings.TrimSpace(rf.Name) == "" {
				return nil, fmt.Errorf("fieldspec %s/%s: field with empty name", rs.Category, rs.SubCategory)
			}
			if seen[rf.Name] {
				return nil, fmt.Errorf("fieldspec %s/%s: field %s declared twice", rs.Category, rs.SubCategory, rf.Name)
			}
			seen[rf.Name] = true
			check, err := buildValidator(rf.Validate)
			if err != nil {
				return nil, fmt.Errorf("fieldspec %s/%s field %s: %w", rs.Category, rs.SubCategory, rf.Name, err)
			}
			spec.Fields = append(spec.Fields, Field{
				Name:   rf.Name,
				Prompt: rf.Prompt,
				Hint:   rf.Hint,
				check:  check,
			})
		}

		t.specs[key] = spec
		t.order = append(t.order, key)
		t.codes[key.cat] = rs.Code
	}

	return t, nil
}

// Required returns the ordered required fields for a category pair. An
// unmapped pair has no requirements and yields an empty slice.
func (t *Table) Required(category, subCategory string) []Field {
	spec, ok := t.specs[keyOf(category, subCategory)]
	if !ok {
		return nil
	}
	return spec.Fields
}

// Missing returns the required fields not yet present (or empty) in filled,
// preserving the table's canonical ordering.
func (t *Table) Missing(category, subCategory string, filled map[string]string) []Field {
	var out []Field
	for _, f := range t.Required(category, subCategory) {
		if strings.TrimSpace(filled[f.Name]) == "" {
			out = append(out, f)
		}
	}
	return out
}

// Code returns the two-letter complaint number prefix for a category, or
// the empty string when the category is unmapped.
func (t *Table) Code(category string) string {
	return t.codes[strings.ToLower(strings.TrimSpace(category))]
}

// Pairs lists every known (category, sub-category) combination in table
// order, for manual category selection.
func (t *Table) Pairs() []Pair {
	out := make([]Pair, 0, len(t.order))
	for _, key := range t.order {
		spec := t.specs[key]
		out = append(out, Pair{Category: spec.Category, SubCategory: spec.SubCategory})
	}
	return out
}
