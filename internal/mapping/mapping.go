// Package mapping implements the attribute-mapping model: declarative
// bindings from host-side data sources to Issuer-side custom-attribute
// names, validated at construction and persisted as a canonical null-elided
// JSON array.
package mapping

import (
	"encoding/json"
	"fmt"

	dErrors "credbridge/pkg/domain-errors"
)

// Persisted table discriminators. The Go model uses a sealed Source variant;
// these names survive only in the canonical JSON.
const (
	TableCourse       = "course"
	TableCourseCustom = "customfield_field"
	TableUserProfile  = "user_info_field"
)

// Built-in course fields a CourseBuiltin source may reference.
var courseFields = map[string]bool{
	"fullname":  true,
	"shortname": true,
	"startdate": true,
	"enddate":   true,
}

// CourseFields enumerates the bindable built-in course fields in a stable
// order.
func CourseFields() []string {
	return []string{"fullname", "shortname", "startdate", "enddate"}
}

// Source identifies host-side data for one binding. The variant is sealed so
// validation is exhaustive: a course builtin always carries a field name and
// the other two always carry a positive row id.
type Source interface {
	table() string
}

// CourseBuiltin binds one of the enumerated built-in course fields.
type CourseBuiltin struct {
	Field string
}

// CourseCustom binds a row of the host's course custom-field table.
type CourseCustom struct {
	ID int64
}

// UserProfile binds a row of the host's user profile-field table.
type UserProfile struct {
	ID int64
}

func (CourseBuiltin) table() string { return TableCourse }
func (CourseCustom) table() string  { return TableCourseCustom }
func (UserProfile) table() string   { return TableUserProfile }

// Mapping is a single validated binding. Attribute may be empty while an
// admin is still editing rows; such rows are carried but never resolved.
type Mapping struct {
	Source    Source
	Attribute string
}

// New validates a binding at construction time.
func New(source Source, attribute string) (Mapping, error) {
	switch src := source.(type) {
	case CourseBuiltin:
		if !courseFields[src.Field] {
			return Mapping{}, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("invalid field value %q for the course table", src.Field))
		}
	case CourseCustom:
		if src.ID <= 0 {
			return Mapping{}, dErrors.New(dErrors.CodeInvalidInput, "id is required for the customfield_field table")
		}
	case UserProfile:
		if src.ID <= 0 {
			return Mapping{}, dErrors.New(dErrors.CodeInvalidInput, "id is required for the user_info_field table")
		}
	default:
		return Mapping{}, dErrors.New(dErrors.CodeInvalidInput, "invalid table value")
	}
	return Mapping{Source: source, Attribute: attribute}, nil
}

// List is an ordered, immutable sequence of mappings with unique non-empty
// attribute names.
type List struct {
	mappings []Mapping
}

// NewList validates attribute uniqueness over the given mappings.
func NewList(mappings []Mapping) (List, error) {
	seen := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if m.Attribute == "" {
			continue
		}
		if seen[m.Attribute] {
			return List{}, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("duplicate accredibleattribute found: %s", m.Attribute))
		}
		seen[m.Attribute] = true
	}

	copied := make([]Mapping, len(mappings))
	copy(copied, mappings)
	return List{mappings: copied}, nil
}

// Mappings returns the bindings in insertion order.
func (l List) Mappings() []Mapping {
	out := make([]Mapping, len(l.mappings))
	copy(out, l.mappings)
	return out
}

// Len reports the number of bindings, including attribute-less editing rows.
func (l List) Len() int {
	return len(l.mappings)
}

// mappingDoc is the canonical persisted shape. Keys with zero values are
// dropped so round-tripping preserves only what was set.
type mappingDoc struct {
	Table     string `json:"table"`
	Field     string `json:"field,omitempty"`
	ID        int64  `json:"id,omitempty"`
	Attribute string `json:"accredibleattribute,omitempty"`
}

// CanonicalJSON serializes the list as the persisted JSON array, preserving
// insertion order. An empty list serializes to "[]".
func (l List) CanonicalJSON() (string, error) {
	docs := make([]mappingDoc, 0, len(l.mappings))
	for _, m := range l.mappings {
		doc := mappingDoc{Table: m.Source.table(), Attribute: m.Attribute}
		switch src := m.Source.(type) {
		case CourseBuiltin:
			doc.Field = src.Field
		case CourseCustom:
			doc.ID = src.ID
		case UserProfile:
			doc.ID = src.ID
		}
		docs = append(docs, doc)
	}

	raw, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("encode attribute mapping list: %w", err)
	}
	return string(raw), nil
}

// Parse reconstructs a List from its canonical JSON text. An empty document
// yields an empty list. Parsing re-runs construction validation, so a stored
// document that no longer validates is surfaced rather than silently kept.
func Parse(text string) (List, error) {
	if text == "" {
		return List{}, nil
	}

	var docs []mappingDoc
	if err := json.Unmarshal([]byte(text), &docs); err != nil {
		return List{}, dErrors.Wrap(dErrors.CodeInvalidInput, "malformed attribute mapping document", err)
	}

	mappings := make([]Mapping, 0, len(docs))
	for _, doc := range docs {
		source, err := sourceFromDoc(doc)
		if err != nil {
			return List{}, err
		}
		m, err := New(source, doc.Attribute)
		if err != nil {
			return List{}, err
		}
		mappings = append(mappings, m)
	}

	return NewList(mappings)
}

func sourceFromDoc(doc mappingDoc) (Source, error) {
	switch doc.Table {
	case TableCourse:
		return CourseBuiltin{Field: doc.Field}, nil
	case TableCourseCustom:
		return CourseCustom{ID: doc.ID}, nil
	case TableUserProfile:
		return UserProfile{ID: doc.ID}, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid table value")
	}
}
