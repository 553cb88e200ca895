package mapping

// Admin submissions arrive as three parallel ordered arrays; the table
// discriminator is stamped by partition here, never trusted from the client.

// CourseFieldInput is one submitted row of the built-in course partition.
type CourseFieldInput struct {
	Field     string `json:"field"`
	Attribute string `json:"accredibleattribute"`
}

// IDFieldInput is one submitted row of the custom-field or profile-field
// partitions.
type IDFieldInput struct {
	ID        int64  `json:"id"`
	Attribute string `json:"accredibleattribute"`
}

// FromSubmission merges the three partitions into a flat validated List,
// preserving partition order (course fields, then course custom fields,
// then user profile fields).
func FromSubmission(courseFields []CourseFieldInput, customFields, profileFields []IDFieldInput) (List, error) {
	mappings := make([]Mapping, 0, len(courseFields)+len(customFields)+len(profileFields))

	for _, row := range courseFields {
		m, err := New(CourseBuiltin{Field: row.Field}, row.Attribute)
		if err != nil {
			return List{}, err
		}
		mappings = append(mappings, m)
	}
	for _, row := range customFields {
		m, err := New(CourseCustom{ID: row.ID}, row.Attribute)
		if err != nil {
			return List{}, err
		}
		mappings = append(mappings, m)
	}
	for _, row := range profileFields {
		m, err := New(UserProfile{ID: row.ID}, row.Attribute)
		if err != nil {
			return List{}, err
		}
		mappings = append(mappings, m)
	}

	return NewList(mappings)
}
