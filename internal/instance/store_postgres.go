package instance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"credbridge/pkg/platform/sentinel"
)

// PostgresStore persists instances in PostgreSQL. Unset optional columns are
// stored as NULL so the record reads back with the same zero values it was
// written with.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, inst *Instance) (int64, error) {
	const q = `INSERT INTO accredible_instance
		(course, name, group_id, achievement_id, final_quiz, passing_grade,
		 completion_activities, include_grade_attribute, grade_attribute_grade_item_id,
		 grade_attribute_key_name, attribute_mapping, certificate_name, description,
		 time_created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	var id int64
	err := s.db.QueryRowContext(ctx, q,
		inst.Course, inst.Name,
		nullInt(inst.GroupID), nullStr(inst.AchievementID), nullInt(inst.FinalQuiz),
		inst.PassingGrade, nullStr(inst.CompletionActivities), inst.IncludeGradeAttribute,
		nullInt(inst.GradeAttributeGradeItemID), nullStr(inst.GradeAttributeKeyName),
		nullStr(inst.AttributeMapping), nullStr(inst.CertificateName), nullStr(inst.Description),
		inst.TimeCreated,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create instance: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, inst *Instance) error {
	const q = `UPDATE accredible_instance SET
		course = $2, name = $3, group_id = $4, achievement_id = $5, final_quiz = $6,
		passing_grade = $7, completion_activities = $8, include_grade_attribute = $9,
		grade_attribute_grade_item_id = $10, grade_attribute_key_name = $11,
		attribute_mapping = $12, certificate_name = $13, description = $14
		WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q,
		inst.ID, inst.Course, inst.Name,
		nullInt(inst.GroupID), nullStr(inst.AchievementID), nullInt(inst.FinalQuiz),
		inst.PassingGrade, nullStr(inst.CompletionActivities), inst.IncludeGradeAttribute,
		nullInt(inst.GradeAttributeGradeItemID), nullStr(inst.GradeAttributeKeyName),
		nullStr(inst.AttributeMapping), nullStr(inst.CertificateName), nullStr(inst.Description),
	)
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("instance %d: %w", inst.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Instance, error) {
	const q = selectCols + ` WHERE id = $1`
	inst, err := scanInstance(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Instance{}, fmt.Errorf("instance %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return Instance{}, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

func (s *PostgresStore) ListByCourse(ctx context.Context, courseID int64) ([]Instance, error) {
	const q = selectCols + ` WHERE course = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, courseID)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()
	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

const selectCols = `SELECT id, course, name, group_id, achievement_id, final_quiz,
	passing_grade, completion_activities, include_grade_attribute,
	grade_attribute_grade_item_id, grade_attribute_key_name, attribute_mapping,
	certificate_name, description, time_created
	FROM accredible_instance`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (Instance, error) {
	var (
		inst                               Instance
		groupID, finalQuiz, gradeItemID    sql.NullInt64
		achievementID, completion          sql.NullString
		keyName, mappingDoc, certName, dsc sql.NullString
	)
	err := row.Scan(&inst.ID, &inst.Course, &inst.Name, &groupID, &achievementID,
		&finalQuiz, &inst.PassingGrade, &completion, &inst.IncludeGradeAttribute,
		&gradeItemID, &keyName, &mappingDoc, &certName, &dsc, &inst.TimeCreated)
	if err != nil {
		return Instance{}, err
	}
	inst.GroupID = groupID.Int64
	inst.AchievementID = achievementID.String
	inst.FinalQuiz = finalQuiz.Int64
	inst.CompletionActivities = completion.String
	inst.GradeAttributeGradeItemID = gradeItemID.Int64
	inst.GradeAttributeKeyName = keyName.String
	inst.AttributeMapping = mappingDoc.String
	inst.CertificateName = certName.String
	inst.Description = dsc.String
	return inst, nil
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullStr(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
