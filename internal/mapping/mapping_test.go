package mapping

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "credbridge/pkg/domain-errors"
)

type MappingSuite struct {
	suite.Suite
}

func TestMappingSuite(t *testing.T) {
	suite.Run(t, new(MappingSuite))
}

func (s *MappingSuite) TestConstructionValidation() {
	s.Run("course builtin accepts the enumerated fields", func() {
		for _, field := range []string{"fullname", "shortname", "startdate", "enddate"} {
			_, err := New(CourseBuiltin{Field: field}, "attr-"+field)
			s.NoError(err)
		}
	})

	s.Run("course builtin rejects unknown field", func() {
		_, err := New(CourseBuiltin{Field: "summary"}, "attr")
		s.Require().Error(err)
		s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	s.Run("custom field requires a positive id", func() {
		_, err := New(CourseCustom{ID: 0}, "attr")
		s.Require().Error(err)

		_, err = New(UserProfile{ID: -3}, "attr")
		s.Require().Error(err)
	})

	s.Run("empty attribute is allowed during editing", func() {
		m, err := New(CourseCustom{ID: 5}, "")
		s.Require().NoError(err)
		s.Empty(m.Attribute)
	})

	s.Run("nil source rejected", func() {
		_, err := New(nil, "attr")
		s.Require().Error(err)
	})
}

func (s *MappingSuite) TestDuplicateAttributes() {
	grade1, err := New(CourseBuiltin{Field: "fullname"}, "grade")
	s.Require().NoError(err)
	grade2, err := New(UserProfile{ID: 4}, "grade")
	s.Require().NoError(err)

	s.Run("duplicate non-empty attribute fails", func() {
		_, err := NewList([]Mapping{grade1, grade2})
		s.Require().Error(err)
		s.Contains(err.Error(), "duplicate accredibleattribute found: grade")
	})

	s.Run("multiple empty attributes are fine", func() {
		a, _ := New(CourseCustom{ID: 1}, "")
		b, _ := New(CourseCustom{ID: 2}, "")
		list, err := NewList([]Mapping{a, b})
		s.Require().NoError(err)
		s.Equal(2, list.Len())
	})
}

func (s *MappingSuite) TestCanonicalJSON() {
	builtin, _ := New(CourseBuiltin{Field: "startdate"}, "Moodle Course Start Date")
	custom, _ := New(CourseCustom{ID: 12}, "Moodle Course Custom Field")
	profile, _ := New(UserProfile{ID: 3}, "")

	list, err := NewList([]Mapping{builtin, custom, profile})
	s.Require().NoError(err)

	text, err := list.CanonicalJSON()
	s.Require().NoError(err)

	s.Run("empty values are dropped", func() {
		s.Equal(`[{"table":"course","field":"startdate","accredibleattribute":"Moodle Course Start Date"},`+
			`{"table":"customfield_field","id":12,"accredibleattribute":"Moodle Course Custom Field"},`+
			`{"table":"user_info_field","id":3}]`, text)
	})

	s.Run("round trip is the identity", func() {
		parsed, err := Parse(text)
		s.Require().NoError(err)
		s.Equal(list.Mappings(), parsed.Mappings())

		again, err := parsed.CanonicalJSON()
		s.Require().NoError(err)
		s.Equal(text, again)
	})
}

func (s *MappingSuite) TestParse() {
	s.Run("empty document yields empty list", func() {
		list, err := Parse("")
		s.Require().NoError(err)
		s.Equal(0, list.Len())
	})

	s.Run("malformed document rejected", func() {
		_, err := Parse("{not json")
		s.Require().Error(err)
		s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	s.Run("unknown table rejected", func() {
		_, err := Parse(`[{"table":"enrolments","id":1}]`)
		s.Require().Error(err)
	})

	s.Run("stored duplicates rejected on re-parse", func() {
		_, err := Parse(`[{"table":"course","field":"fullname","accredibleattribute":"x"},` +
			`{"table":"user_info_field","id":2,"accredibleattribute":"x"}]`)
		s.Require().Error(err)
	})
}

func (s *MappingSuite) TestDecodeDefaults() {
	text := `[{"table":"course","field":"startdate","accredibleattribute":"Start"},` +
		`{"table":"user_info_field","id":7,"accredibleattribute":"Nick"},` +
		`{"table":"course","field":"fullname","accredibleattribute":"Name"},` +
		`{"table":"customfield_field","id":9,"accredibleattribute":"Cohort"}]`

	defaults, err := DecodeDefaults(text)
	s.Require().NoError(err)

	s.Run("partitions keep their relative order and ordinals", func() {
		s.Require().Len(defaults.CourseFieldMapping, 2)
		s.Equal(CourseFieldRow{Index: 0, Field: "startdate", Attribute: "Start"}, defaults.CourseFieldMapping[0])
		s.Equal(CourseFieldRow{Index: 1, Field: "fullname", Attribute: "Name"}, defaults.CourseFieldMapping[1])

		s.Require().Len(defaults.CourseCustomFieldMapping, 1)
		s.Equal(IDFieldRow{Index: 0, ID: 9, Attribute: "Cohort"}, defaults.CourseCustomFieldMapping[0])

		s.Require().Len(defaults.UserProfileFieldMapping, 1)
		s.Equal(IDFieldRow{Index: 0, ID: 7, Attribute: "Nick"}, defaults.UserProfileFieldMapping[0])
	})

	s.Run("empty document yields empty arrays not nil", func() {
		defaults, err := DecodeDefaults("")
		s.Require().NoError(err)
		s.NotNil(defaults.CourseFieldMapping)
		s.NotNil(defaults.CourseCustomFieldMapping)
		s.NotNil(defaults.UserProfileFieldMapping)
		s.Empty(defaults.CourseFieldMapping)
	})
}

func (s *MappingSuite) TestFromSubmission() {
	s.Run("partitions stamp the table and merge in order", func() {
		list, err := FromSubmission(
			[]CourseFieldInput{{Field: "shortname", Attribute: "Code"}},
			[]IDFieldInput{{ID: 4, Attribute: "Cohort"}},
			[]IDFieldInput{{ID: 8, Attribute: "Nick"}},
		)
		s.Require().NoError(err)

		mappings := list.Mappings()
		s.Require().Len(mappings, 3)
		s.Equal(CourseBuiltin{Field: "shortname"}, mappings[0].Source)
		s.Equal(CourseCustom{ID: 4}, mappings[1].Source)
		s.Equal(UserProfile{ID: 8}, mappings[2].Source)
	})

	s.Run("validated submission re-validates after serialization", func() {
		list, err := FromSubmission(
			[]CourseFieldInput{{Field: "fullname", Attribute: "Name"}},
			nil,
			[]IDFieldInput{{ID: 2, Attribute: "Nick"}},
		)
		s.Require().NoError(err)

		text, err := list.CanonicalJSON()
		s.Require().NoError(err)

		_, err = Parse(text)
		s.NoError(err)
	})

	s.Run("cross partition duplicates rejected", func() {
		_, err := FromSubmission(
			[]CourseFieldInput{{Field: "fullname", Attribute: "grade"}},
			[]IDFieldInput{{ID: 4, Attribute: "grade"}},
			nil,
		)
		s.Require().Error(err)
		s.Contains(err.Error(), "duplicate accredibleattribute")
	})

	s.Run("invalid row aborts the submission", func() {
		_, err := FromSubmission(
			[]CourseFieldInput{{Field: "bogus", Attribute: "x"}},
			nil, nil,
		)
		s.Require().Error(err)
	})
}
