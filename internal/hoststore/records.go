// Package hoststore gives read access to the host LMS's relational data:
// courses, users, quizzes and attempts, custom course fields, user profile
// fields, and grade items. Consumers declare their own narrow interfaces;
// this package provides the record types and the memory and Postgres
// implementations that satisfy them.
package hoststore

import (
	"strings"

	"credbridge/pkg/platform/text"
)

// Course is the host course row. Start and end dates are UNIX timestamps,
// zero when unset.
type Course struct {
	ID        int64
	FullName  string
	ShortName string
	Summary   string
	StartDate int64
	EndDate   int64
}

// User is the host user row.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
}

// FullName renders the display name the way the host does.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Quiz is the host quiz row. MaxGrade is the maximum achievable grade.
type Quiz struct {
	ID       int64
	CourseID int64
	Name     string
	MaxGrade float64
}

// QuizAttempt is one attempt row. Attempt is the 1-based attempt number.
type QuizAttempt struct {
	ID         int64
	QuizID     int64
	UserID     int64
	Attempt    int
	State      string
	SumGrades  float64
	TimeFinish int64
}

// AttemptFinished is the state of a submitted, graded attempt.
const AttemptFinished = "finished"

// CustomField is a course custom-field definition. ConfigData carries the
// host's JSON config blob; for select fields it holds the options list.
type CustomField struct {
	ID         int64
	Name       string
	Type       string
	ConfigData string
}

// CustomFieldData is the stored value of a custom field for one course.
type CustomFieldData struct {
	FieldID    int64
	InstanceID int64
	Value      string
}

// UserInfoField is a user profile-field definition. Param1 carries the
// newline-separated options list for menu fields.
type UserInfoField struct {
	ID       int64
	Name     string
	DataType string
	Param1   string
}

// Options parses the menu options of a profile field.
func (f UserInfoField) Options() []string {
	return text.SplitLines(f.Param1)
}

// UserInfoData is the stored value of a profile field for one user.
type UserInfoData struct {
	FieldID int64
	UserID  int64
	Value   string
}

// GradeItem is a gradebook item. ItemType is "course" for the course total
// and "mod" for activity items.
type GradeItem struct {
	ID       int64
	CourseID int64
	ItemType string
	ItemName string
}
