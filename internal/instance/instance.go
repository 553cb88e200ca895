// Package instance owns the per-course credentialing configuration: which
// Issuer group or legacy achievement a course feeds, the earning rules, and
// the persisted attribute-mapping document.
package instance

import (
	"credbridge/internal/mapping"
	dErrors "credbridge/pkg/domain-errors"
)

// Instance is the per-course configuration record. GroupID zero and
// AchievementID empty both mean unset; exactly one of the two identifies the
// Issuer target. Zero FinalQuiz means no final quiz is configured.
type Instance struct {
	ID                        int64   `json:"id"`
	Course                    int64   `json:"course"`
	Name                      string  `json:"name"`
	GroupID                   int64   `json:"groupid,omitempty"`
	AchievementID             string  `json:"achievementid,omitempty"`
	FinalQuiz                 int64   `json:"finalquiz,omitempty"`
	PassingGrade              float64 `json:"passinggrade"`
	CompletionActivities      string  `json:"completionactivities,omitempty"`
	IncludeGradeAttribute     bool    `json:"includegradeattribute"`
	GradeAttributeGradeItemID int64   `json:"gradeattributegradeitemid,omitempty"`
	GradeAttributeKeyName     string  `json:"gradeattributekeyname,omitempty"`
	AttributeMapping          string  `json:"attributemapping,omitempty"`
	CertificateName           string  `json:"certificatename,omitempty"`
	Description               string  `json:"description,omitempty"`
	TimeCreated               int64   `json:"timecreated"`
}

// UsesLegacyAchievement reports whether the instance targets the Issuer by
// achievement name rather than group id.
func (i Instance) UsesLegacyAchievement() bool {
	return i.GroupID == 0 && i.AchievementID != ""
}

// MappingList parses the stored attribute-mapping document. A null or empty
// document yields an empty list.
func (i Instance) MappingList() (mapping.List, error) {
	return mapping.Parse(i.AttributeMapping)
}

func (i Instance) validate() error {
	if i.Course == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "course is required")
	}
	if i.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if i.PassingGrade < 0 || i.PassingGrade > 100 {
		return dErrors.New(dErrors.CodeInvalidInput, "passing grade must be between 0 and 100")
	}
	if (i.GroupID == 0) == (i.AchievementID == "") {
		return dErrors.New(dErrors.CodeInvalidInput, "exactly one of groupid and achievementid must be set")
	}
	if i.AttributeMapping != "" {
		if _, err := mapping.Parse(i.AttributeMapping); err != nil {
			return err
		}
	}
	return nil
}
