package main

import (
	"context"

	"credbridge/internal/hoststore"
)

// hostReader is the union of host-database reads the wired services consume.
// Both hoststore.MemoryStore and hoststore.PostgresStore satisfy it, so main
// can pick the backing store once and hand the same value to every consumer.
type hostReader interface {
	GetCourse(ctx context.Context, id int64) (hoststore.Course, error)
	GetUser(ctx context.Context, id int64) (hoststore.User, error)
	GetQuiz(ctx context.Context, id int64) (hoststore.Quiz, error)
	ListQuizzesByCourse(ctx context.Context, courseID int64) ([]hoststore.Quiz, error)
	BestGrade(ctx context.Context, quizID, userID int64) (float64, bool, error)
	ListFinishedAttempts(ctx context.Context, courseID, userID int64) ([]hoststore.QuizAttempt, error)
	GradeValue(ctx context.Context, gradeItemID, userID int64) (float64, bool, error)
	EnrolmentStart(ctx context.Context, courseID, userID int64) (int64, error)

	GetCustomField(ctx context.Context, id int64) (hoststore.CustomField, error)
	GetCustomFieldData(ctx context.Context, fieldID, courseID int64) (hoststore.CustomFieldData, error)
	GetUserInfoField(ctx context.Context, id int64) (hoststore.UserInfoField, error)
	GetUserInfoData(ctx context.Context, fieldID, userID int64) (hoststore.UserInfoData, error)

	ListGradeItems(ctx context.Context, courseID int64) ([]hoststore.GradeItem, error)
	ListCustomFields(ctx context.Context) ([]hoststore.CustomField, error)
	ListUserInfoFields(ctx context.Context) ([]hoststore.UserInfoField, error)
}
