// Package event defines the domain events the bridge emits when credential
// state changes, and the sink interface publishers implement.
package event

import "context"

// CredentialCreated is emitted after a successful issuance.
type CredentialCreated struct {
	CredentialID int64  `json:"credential_id"`
	GroupID      int64  `json:"group_id,omitempty"`
	CourseID     int64  `json:"course_id"`
	UserID       int64  `json:"user_id"`
	IssuedOn     string `json:"issued_on,omitempty"`
}

// GradeUpgraded is emitted after an existing credential's grade evidence is
// raised to a new best score.
type GradeUpgraded struct {
	CredentialID int64 `json:"credential_id"`
	CourseID     int64 `json:"course_id"`
	UserID       int64 `json:"user_id"`
	OldGrade     int   `json:"old_grade"`
	NewGrade     int   `json:"new_grade"`
}

// Sink receives domain events. Publish failures are the caller's to handle;
// issuance itself never rolls back on a failed publish.
type Sink interface {
	PublishCredentialCreated(ctx context.Context, ev CredentialCreated) error
	PublishGradeUpgraded(ctx context.Context, ev GradeUpgraded) error
}

// MemorySink collects events in memory for tests.
type MemorySink struct {
	Created  []CredentialCreated
	Upgraded []GradeUpgraded
}

func (s *MemorySink) PublishCredentialCreated(_ context.Context, ev CredentialCreated) error {
	s.Created = append(s.Created, ev)
	return nil
}

func (s *MemorySink) PublishGradeUpgraded(_ context.Context, ev GradeUpgraded) error {
	s.Upgraded = append(s.Upgraded, ev)
	return nil
}
