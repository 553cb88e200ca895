package http

import (
	"credbridge/internal/instance"
	"credbridge/internal/mapping"
)

// quizSubmittedRequest is the webhook payload for a submitted quiz attempt.
type quizSubmittedRequest struct {
	UserID   int64 `json:"user_id"`
	QuizID   int64 `json:"quiz_id"`
	CourseID int64 `json:"course_id"`
}

// courseCompletedRequest is the webhook payload for a completed course.
type courseCompletedRequest struct {
	UserID   int64 `json:"user_id"`
	CourseID int64 `json:"course_id"`
}

// saveInstanceRequest carries an instance record plus the admin form's three
// parallel mapping arrays. The arrays are normalized and re-validated server
// side; only their canonical JSON is persisted.
type saveInstanceRequest struct {
	ID                        int64          `json:"id,omitempty"`
	Course                    int64          `json:"course"`
	Name                      string         `json:"name"`
	GroupID                   int64          `json:"groupid,omitempty"`
	AchievementID             string         `json:"achievementid,omitempty"`
	FinalQuiz                 int64          `json:"finalquiz,omitempty"`
	PassingGrade              float64        `json:"passinggrade"`
	CompletionActivities      map[int64]bool `json:"completionactivities,omitempty"`
	IncludeGradeAttribute     bool           `json:"includegradeattribute"`
	GradeAttributeGradeItemID int64          `json:"gradeattributegradeitemid,omitempty"`
	GradeAttributeKeyName     string         `json:"gradeattributekeyname,omitempty"`
	CertificateName           string         `json:"certificatename,omitempty"`
	Description               string         `json:"description,omitempty"`

	CourseFieldMapping       []mapping.CourseFieldInput `json:"coursefieldmapping,omitempty"`
	CourseCustomFieldMapping []mapping.IDFieldInput     `json:"coursecustomfieldmapping,omitempty"`
	UserProfileFieldMapping  []mapping.IDFieldInput     `json:"userprofilefieldmapping,omitempty"`
}

func (r saveInstanceRequest) toInstance(attributeMapping string) instance.Instance {
	return instance.Instance{
		ID:                        r.ID,
		Course:                    r.Course,
		Name:                      r.Name,
		GroupID:                   r.GroupID,
		AchievementID:             r.AchievementID,
		FinalQuiz:                 r.FinalQuiz,
		PassingGrade:              r.PassingGrade,
		CompletionActivities:      instance.EncodeActivities(r.CompletionActivities),
		IncludeGradeAttribute:     r.IncludeGradeAttribute,
		GradeAttributeGradeItemID: r.GradeAttributeGradeItemID,
		GradeAttributeKeyName:     r.GradeAttributeKeyName,
		AttributeMapping:          attributeMapping,
		CertificateName:           r.CertificateName,
		Description:               r.Description,
	}
}

// syncGroupRequest asks for a host course to be synced into an Issuer group.
type syncGroupRequest struct {
	CourseID   int64 `json:"course_id"`
	InstanceID int64 `json:"instance_id,omitempty"`
	GroupID    int64 `json:"group_id,omitempty"`
}

// ssoLinkRequest asks for a recipient single sign-on link.
type ssoLinkRequest struct {
	CredentialID   int64  `json:"credential_id,omitempty"`
	RecipientID    int64  `json:"recipient_id,omitempty"`
	RecipientEmail string `json:"recipient_email,omitempty"`
	WalletView     bool   `json:"wallet_view,omitempty"`
	GroupID        int64  `json:"group_id,omitempty"`
	RedirectTo     string `json:"redirect_to,omitempty"`
}
