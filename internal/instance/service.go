package instance

import (
	"context"
	"log/slog"

	"credbridge/pkg/requestcontext"
)

// Store persists instance records.
type Store interface {
	Create(ctx context.Context, inst *Instance) (int64, error)
	Update(ctx context.Context, inst *Instance) error
	Get(ctx context.Context, id int64) (Instance, error)
	ListByCourse(ctx context.Context, courseID int64) ([]Instance, error)
}

// Service applies the write-side rules before handing records to the store.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Save validates and persists an instance. New records get a creation
// timestamp; when the grade attribute is disabled both grade fields are
// cleared on write so stale configuration never survives a toggle.
func (s *Service) Save(ctx context.Context, inst *Instance) error {
	if err := inst.validate(); err != nil {
		return err
	}
	if !inst.IncludeGradeAttribute {
		inst.GradeAttributeGradeItemID = 0
		inst.GradeAttributeKeyName = ""
	}
	if inst.ID == 0 {
		inst.TimeCreated = requestcontext.Now(ctx).Unix()
		id, err := s.store.Create(ctx, inst)
		if err != nil {
			return err
		}
		inst.ID = id
		s.logger.InfoContext(ctx, "instance created",
			"instance_id", inst.ID, "course_id", inst.Course)
		return nil
	}
	if err := s.store.Update(ctx, inst); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "instance updated",
		"instance_id", inst.ID, "course_id", inst.Course)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (Instance, error) {
	return s.store.Get(ctx, id)
}

// ListByCourse returns every instance attached to a course.
func (s *Service) ListByCourse(ctx context.Context, courseID int64) ([]Instance, error) {
	return s.store.ListByCourse(ctx, courseID)
}
