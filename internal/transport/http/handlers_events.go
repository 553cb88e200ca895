package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"credbridge/internal/platform/metrics"
	"credbridge/internal/platform/middleware"
	dErrors "credbridge/pkg/domain-errors"
	"credbridge/pkg/platform/httputil"
)

// EventEngine evaluates host completion events.
type EventEngine interface {
	OnQuizSubmitted(ctx context.Context, userID, quizID, courseID int64) error
	OnCourseCompleted(ctx context.Context, userID, courseID int64) error
}

// EventsHandler receives the host's webhook events.
type EventsHandler struct {
	engine    EventEngine
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

func NewEventsHandler(engine EventEngine, validator middleware.TokenValidator, logger *slog.Logger, m *metrics.Metrics) *EventsHandler {
	return &EventsHandler{
		engine:    engine,
		logger:    logger,
		metrics:   m,
		validator: validator,
	}
}

// Register mounts the webhook routes with their middleware chain.
func (h *EventsHandler) Register(r chi.Router) {
	eventsRouter := chi.NewRouter()
	eventsRouter.Use(middleware.Recovery(h.logger))
	eventsRouter.Use(middleware.RequestID)
	eventsRouter.Use(middleware.Logger(h.logger))
	eventsRouter.Use(middleware.Timeout(60 * time.Second))
	eventsRouter.Use(middleware.ContentTypeJSON)
	eventsRouter.Use(middleware.RequireAuth(h.validator, "events", h.logger))
	eventsRouter.Post("/quiz-submitted", h.handleQuizSubmitted)
	eventsRouter.Post("/course-completed", h.handleCourseCompleted)

	r.Mount("/events", eventsRouter)
}

func (h *EventsHandler) handleQuizSubmitted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, err := httputil.Decode[quizSubmittedRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.UserID <= 0 || req.QuizID <= 0 || req.CourseID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "user_id, quiz_id and course_id are required"))
		return
	}

	if err := h.engine.OnQuizSubmitted(ctx, req.UserID, req.QuizID, req.CourseID); err != nil {
		h.logger.ErrorContext(ctx, "quiz-submitted handling failed",
			"user_id", req.UserID, "quiz_id", req.QuizID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.metrics.WebhookDuration.Observe(time.Since(start).Seconds())
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *EventsHandler) handleCourseCompleted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, err := httputil.Decode[courseCompletedRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.UserID <= 0 || req.CourseID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "user_id and course_id are required"))
		return
	}

	if err := h.engine.OnCourseCompleted(ctx, req.UserID, req.CourseID); err != nil {
		h.logger.ErrorContext(ctx, "course-completed handling failed",
			"user_id", req.UserID, "course_id", req.CourseID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.metrics.WebhookDuration.Observe(time.Since(start).Seconds())
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
