package hoststore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"credbridge/pkg/platform/sentinel"
)

// MemoryStore is an in-memory mirror of the host tables, used by tests and
// local development.
type MemoryStore struct {
	mu             sync.RWMutex
	courses        map[int64]Course
	users          map[int64]User
	quizzes        map[int64]Quiz
	attempts       []QuizAttempt
	customFields   map[int64]CustomField
	customData     map[fieldInstanceKey]CustomFieldData
	userInfoFields map[int64]UserInfoField
	userInfoData   map[fieldInstanceKey]UserInfoData
	gradeItems     []GradeItem
	gradeValues    map[fieldInstanceKey]float64
	enrolments     map[fieldInstanceKey]int64
}

type fieldInstanceKey struct {
	fieldID    int64
	instanceID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courses:        make(map[int64]Course),
		users:          make(map[int64]User),
		quizzes:        make(map[int64]Quiz),
		customFields:   make(map[int64]CustomField),
		customData:     make(map[fieldInstanceKey]CustomFieldData),
		userInfoFields: make(map[int64]UserInfoField),
		userInfoData:   make(map[fieldInstanceKey]UserInfoData),
		gradeValues:    make(map[fieldInstanceKey]float64),
		enrolments:     make(map[fieldInstanceKey]int64),
	}
}

func (s *MemoryStore) PutCourse(c Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
}

func (s *MemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStore) PutQuiz(q Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[q.ID] = q
}

func (s *MemoryStore) PutAttempt(a QuizAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
}

func (s *MemoryStore) PutCustomField(f CustomField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customFields[f.ID] = f
}

func (s *MemoryStore) PutCustomFieldData(d CustomFieldData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customData[fieldInstanceKey{d.FieldID, d.InstanceID}] = d
}

func (s *MemoryStore) PutUserInfoField(f UserInfoField) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userInfoFields[f.ID] = f
}

func (s *MemoryStore) PutUserInfoData(d UserInfoData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userInfoData[fieldInstanceKey{d.FieldID, d.UserID}] = d
}

func (s *MemoryStore) PutGradeItem(g GradeItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gradeItems = append(s.gradeItems, g)
}

func (s *MemoryStore) PutGradeValue(gradeItemID, userID int64, finalGrade float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gradeValues[fieldInstanceKey{gradeItemID, userID}] = finalGrade
}

func (s *MemoryStore) PutEnrolment(courseID, userID, timeStart int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrolments[fieldInstanceKey{courseID, userID}] = timeStart
}

func (s *MemoryStore) GetCourse(_ context.Context, id int64) (Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return Course{}, fmt.Errorf("course %d: %w", id, sentinel.ErrNotFound)
	}
	return c, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, sentinel.ErrNotFound)
	}
	return u, nil
}

func (s *MemoryStore) GetQuiz(_ context.Context, id int64) (Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quizzes[id]
	if !ok {
		return Quiz{}, fmt.Errorf("quiz %d: %w", id, sentinel.ErrNotFound)
	}
	return q, nil
}

func (s *MemoryStore) ListQuizzesByCourse(_ context.Context, courseID int64) ([]Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Quiz
	for _, q := range s.quizzes {
		if q.CourseID == courseID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// BestGrade returns the highest grade across the user's finished attempts at
// the quiz. The second return is false when no finished attempt exists.
func (s *MemoryStore) BestGrade(_ context.Context, quizID, userID int64) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	best, found := 0.0, false
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.UserID == userID && a.State == AttemptFinished {
			if !found || a.SumGrades > best {
				best, found = a.SumGrades, true
			}
		}
	}
	return best, found, nil
}

// ListFinishedAttempts returns the user's finished attempts across every quiz
// in the course, newest first.
func (s *MemoryStore) ListFinishedAttempts(_ context.Context, courseID, userID int64) ([]QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []QuizAttempt
	for _, a := range s.attempts {
		if a.UserID != userID || a.State != AttemptFinished {
			continue
		}
		q, ok := s.quizzes[a.QuizID]
		if !ok || q.CourseID != courseID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeFinish > out[j].TimeFinish })
	return out, nil
}

func (s *MemoryStore) GetCustomField(_ context.Context, id int64) (CustomField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.customFields[id]
	if !ok {
		return CustomField{}, fmt.Errorf("custom field %d: %w", id, sentinel.ErrNotFound)
	}
	return f, nil
}

func (s *MemoryStore) GetCustomFieldData(_ context.Context, fieldID, courseID int64) (CustomFieldData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.customData[fieldInstanceKey{fieldID, courseID}]
	if !ok {
		return CustomFieldData{}, fmt.Errorf("custom field data %d/%d: %w", fieldID, courseID, sentinel.ErrNotFound)
	}
	return d, nil
}

func (s *MemoryStore) ListCustomFields(_ context.Context) ([]CustomField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CustomField, 0, len(s.customFields))
	for _, f := range s.customFields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetUserInfoField(_ context.Context, id int64) (UserInfoField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.userInfoFields[id]
	if !ok {
		return UserInfoField{}, fmt.Errorf("user info field %d: %w", id, sentinel.ErrNotFound)
	}
	return f, nil
}

func (s *MemoryStore) GetUserInfoData(_ context.Context, fieldID, userID int64) (UserInfoData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.userInfoData[fieldInstanceKey{fieldID, userID}]
	if !ok {
		return UserInfoData{}, fmt.Errorf("user info data %d/%d: %w", fieldID, userID, sentinel.ErrNotFound)
	}
	return d, nil
}

func (s *MemoryStore) ListUserInfoFields(_ context.Context) ([]UserInfoField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UserInfoField, 0, len(s.userInfoFields))
	for _, f := range s.userInfoFields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListGradeItems(_ context.Context, courseID int64) ([]GradeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []GradeItem
	for _, g := range s.gradeItems {
		if g.CourseID == courseID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GradeValue returns the user's final grade on a gradebook item. The second
// return is false when no grade is recorded.
func (s *MemoryStore) GradeValue(_ context.Context, gradeItemID, userID int64) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.gradeValues[fieldInstanceKey{gradeItemID, userID}]
	return v, ok, nil
}

// EnrolmentStart returns the user's enrolment start timestamp in the course,
// zero when the user has no recorded enrolment.
func (s *MemoryStore) EnrolmentStart(_ context.Context, courseID, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enrolments[fieldInstanceKey{courseID, userID}], nil
}
