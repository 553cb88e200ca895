package hoststore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"credbridge/pkg/platform/sentinel"
)

// PostgresStore reads the host mirror tables in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed host store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetCourse(ctx context.Context, id int64) (Course, error) {
	const q = `SELECT id, fullname, shortname, summary, startdate, enddate
		FROM host_course WHERE id = $1`
	var c Course
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.FullName, &c.ShortName, &c.Summary, &c.StartDate, &c.EndDate)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, fmt.Errorf("course %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return Course{}, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (User, error) {
	const q = `SELECT id, firstname, lastname, email FROM host_user WHERE id = $1`
	var u User
	err := s.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetQuiz(ctx context.Context, id int64) (Quiz, error) {
	const q = `SELECT id, course_id, name, max_grade FROM host_quiz WHERE id = $1`
	var z Quiz
	err := s.db.QueryRowContext(ctx, q, id).Scan(&z.ID, &z.CourseID, &z.Name, &z.MaxGrade)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, fmt.Errorf("quiz %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return Quiz{}, fmt.Errorf("get quiz: %w", err)
	}
	return z, nil
}

func (s *PostgresStore) ListQuizzesByCourse(ctx context.Context, courseID int64) ([]Quiz, error) {
	const q = `SELECT id, course_id, name, max_grade FROM host_quiz
		WHERE course_id = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, courseID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()
	var out []Quiz
	for rows.Next() {
		var z Quiz
		if err := rows.Scan(&z.ID, &z.CourseID, &z.Name, &z.MaxGrade); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func (s *PostgresStore) BestGrade(ctx context.Context, quizID, userID int64) (float64, bool, error) {
	const q = `SELECT MAX(sum_grades) FROM host_quiz_attempt
		WHERE quiz_id = $1 AND user_id = $2 AND state = $3`
	var best sql.NullFloat64
	err := s.db.QueryRowContext(ctx, q, quizID, userID, AttemptFinished).Scan(&best)
	if err != nil {
		return 0, false, fmt.Errorf("best grade: %w", err)
	}
	return best.Float64, best.Valid, nil
}

func (s *PostgresStore) ListFinishedAttempts(ctx context.Context, courseID, userID int64) ([]QuizAttempt, error) {
	const q = `SELECT a.id, a.quiz_id, a.user_id, a.attempt, a.state, a.sum_grades, a.time_finish
		FROM host_quiz_attempt a
		JOIN host_quiz z ON z.id = a.quiz_id
		WHERE z.course_id = $1 AND a.user_id = $2 AND a.state = $3
		ORDER BY a.time_finish DESC`
	rows, err := s.db.QueryContext(ctx, q, courseID, userID, AttemptFinished)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()
	var out []QuizAttempt
	for rows.Next() {
		var a QuizAttempt
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Attempt, &a.State, &a.SumGrades, &a.TimeFinish); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetCustomField(ctx context.Context, id int64) (CustomField, error) {
	const q = `SELECT id, name, type, config_data FROM host_customfield_field WHERE id = $1`
	var f CustomField
	err := s.db.QueryRowContext(ctx, q, id).Scan(&f.ID, &f.Name, &f.Type, &f.ConfigData)
	if errors.Is(err, sql.ErrNoRows) {
		return CustomField{}, fmt.Errorf("custom field %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return CustomField{}, fmt.Errorf("get custom field: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) GetCustomFieldData(ctx context.Context, fieldID, courseID int64) (CustomFieldData, error) {
	const q = `SELECT field_id, instance_id, value FROM host_customfield_data
		WHERE field_id = $1 AND instance_id = $2`
	var d CustomFieldData
	err := s.db.QueryRowContext(ctx, q, fieldID, courseID).Scan(&d.FieldID, &d.InstanceID, &d.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return CustomFieldData{}, fmt.Errorf("custom field data %d/%d: %w", fieldID, courseID, sentinel.ErrNotFound)
	}
	if err != nil {
		return CustomFieldData{}, fmt.Errorf("get custom field data: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListCustomFields(ctx context.Context) ([]CustomField, error) {
	const q = `SELECT id, name, type, config_data FROM host_customfield_field ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list custom fields: %w", err)
	}
	defer rows.Close()
	var out []CustomField
	for rows.Next() {
		var f CustomField
		if err := rows.Scan(&f.ID, &f.Name, &f.Type, &f.ConfigData); err != nil {
			return nil, fmt.Errorf("scan custom field: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUserInfoField(ctx context.Context, id int64) (UserInfoField, error) {
	const q = `SELECT id, name, datatype, param1 FROM host_user_info_field WHERE id = $1`
	var f UserInfoField
	err := s.db.QueryRowContext(ctx, q, id).Scan(&f.ID, &f.Name, &f.DataType, &f.Param1)
	if errors.Is(err, sql.ErrNoRows) {
		return UserInfoField{}, fmt.Errorf("user info field %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return UserInfoField{}, fmt.Errorf("get user info field: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) GetUserInfoData(ctx context.Context, fieldID, userID int64) (UserInfoData, error) {
	const q = `SELECT field_id, user_id, value FROM host_user_info_data
		WHERE field_id = $1 AND user_id = $2`
	var d UserInfoData
	err := s.db.QueryRowContext(ctx, q, fieldID, userID).Scan(&d.FieldID, &d.UserID, &d.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return UserInfoData{}, fmt.Errorf("user info data %d/%d: %w", fieldID, userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return UserInfoData{}, fmt.Errorf("get user info data: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListUserInfoFields(ctx context.Context) ([]UserInfoField, error) {
	const q = `SELECT id, name, datatype, param1 FROM host_user_info_field ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list user info fields: %w", err)
	}
	defer rows.Close()
	var out []UserInfoField
	for rows.Next() {
		var f UserInfoField
		if err := rows.Scan(&f.ID, &f.Name, &f.DataType, &f.Param1); err != nil {
			return nil, fmt.Errorf("scan user info field: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListGradeItems(ctx context.Context, courseID int64) ([]GradeItem, error) {
	const q = `SELECT id, course_id, item_type, item_name FROM host_grade_item
		WHERE course_id = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, courseID)
	if err != nil {
		return nil, fmt.Errorf("list grade items: %w", err)
	}
	defer rows.Close()
	var out []GradeItem
	for rows.Next() {
		var g GradeItem
		if err := rows.Scan(&g.ID, &g.CourseID, &g.ItemType, &g.ItemName); err != nil {
			return nil, fmt.Errorf("scan grade item: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GradeValue(ctx context.Context, gradeItemID, userID int64) (float64, bool, error) {
	const q = `SELECT final_grade FROM host_grade_value
		WHERE grade_item_id = $1 AND user_id = $2`
	var v sql.NullFloat64
	err := s.db.QueryRowContext(ctx, q, gradeItemID, userID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("grade value: %w", err)
	}
	return v.Float64, v.Valid, nil
}

func (s *PostgresStore) EnrolmentStart(ctx context.Context, courseID, userID int64) (int64, error) {
	const q = `SELECT COALESCE(MIN(time_start), 0) FROM host_enrolment
		WHERE course_id = $1 AND user_id = $2`
	var start int64
	if err := s.db.QueryRowContext(ctx, q, courseID, userID).Scan(&start); err != nil {
		return 0, fmt.Errorf("enrolment start: %w", err)
	}
	return start, nil
}
