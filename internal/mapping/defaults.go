package mapping

// Defaults is the stored mapping document decoded into the three parallel
// ordered arrays the admin form renders. Index is the row's ordinal within
// its partition and keeps dynamic form rows stable across reloads.
type Defaults struct {
	CourseFieldMapping       []CourseFieldRow `json:"coursefieldmapping"`
	CourseCustomFieldMapping []IDFieldRow     `json:"coursecustomfieldmapping"`
	UserProfileFieldMapping  []IDFieldRow     `json:"userprofilefieldmapping"`
}

// CourseFieldRow is a default row bound to a built-in course field.
type CourseFieldRow struct {
	Index     int    `json:"index"`
	Field     string `json:"field"`
	Attribute string `json:"accredibleattribute"`
}

// IDFieldRow is a default row bound to a custom-field or profile-field id.
type IDFieldRow struct {
	Index     int    `json:"index"`
	ID        int64  `json:"id"`
	Attribute string `json:"accredibleattribute"`
}

// DecodeDefaults splits a canonical mapping document into the per-table form
// arrays. An empty document yields three empty arrays, never nil, so the
// form always has something to render.
func DecodeDefaults(text string) (Defaults, error) {
	defaults := Defaults{
		CourseFieldMapping:       []CourseFieldRow{},
		CourseCustomFieldMapping: []IDFieldRow{},
		UserProfileFieldMapping:  []IDFieldRow{},
	}

	list, err := Parse(text)
	if err != nil {
		return Defaults{}, err
	}

	for _, m := range list.Mappings() {
		switch src := m.Source.(type) {
		case CourseBuiltin:
			defaults.CourseFieldMapping = append(defaults.CourseFieldMapping, CourseFieldRow{
				Index:     len(defaults.CourseFieldMapping),
				Field:     src.Field,
				Attribute: m.Attribute,
			})
		case CourseCustom:
			defaults.CourseCustomFieldMapping = append(defaults.CourseCustomFieldMapping, IDFieldRow{
				Index:     len(defaults.CourseCustomFieldMapping),
				ID:        src.ID,
				Attribute: m.Attribute,
			})
		case UserProfile:
			defaults.UserProfileFieldMapping = append(defaults.UserProfileFieldMapping, IDFieldRow{
				Index:     len(defaults.UserProfileFieldMapping),
				ID:        src.ID,
				Attribute: m.Attribute,
			})
		}
	}

	return defaults, nil
}
