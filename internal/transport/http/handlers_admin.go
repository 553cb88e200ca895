package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"credbridge/internal/formhelper"
	"credbridge/internal/hoststore"
	"credbridge/internal/instance"
	"credbridge/internal/issuer"
	"credbridge/internal/mapping"
	"credbridge/internal/platform/middleware"
	dErrors "credbridge/pkg/domain-errors"
	"credbridge/pkg/platform/httputil"
)

// InstanceService persists per-course configuration records.
type InstanceService interface {
	Save(ctx context.Context, inst *instance.Instance) error
	Get(ctx context.Context, id int64) (instance.Instance, error)
	ListByCourse(ctx context.Context, courseID int64) ([]instance.Instance, error)
}

// GroupDirectory lists and syncs Issuer groups.
type GroupDirectory interface {
	ListGroups(ctx context.Context) (map[int64]string, error)
	ListTemplates(ctx context.Context) (map[string]int64, error)
	SyncGroup(ctx context.Context, course hoststore.Course, instanceID, groupID int64, courseLink string) (int64, error)
}

// FormCatalog builds the admin form's option lists.
type FormCatalog interface {
	GradeItemOptions(ctx context.Context, courseID int64) ([]formhelper.Option, error)
	CourseFieldOptions() []formhelper.Option
	CourseCustomFieldOptions(ctx context.Context) ([]formhelper.Option, error)
	UserProfileFieldOptions(ctx context.Context) ([]formhelper.Option, error)
	AttributeKeyChoices(ctx context.Context) []formhelper.Option
	MappingDefaults(doc string) (mapping.Defaults, error)
}

// SSOClient generates recipient single sign-on links.
type SSOClient interface {
	GenerateSSOLink(ctx context.Context, req issuer.SSOLinkRequest) (string, error)
}

// CourseReader loads host courses for group sync.
type CourseReader interface {
	GetCourse(ctx context.Context, id int64) (hoststore.Course, error)
}

// AdminHandler serves the admin UI's JSON API.
type AdminHandler struct {
	instances   InstanceService
	groups      GroupDirectory
	catalog     FormCatalog
	sso         SSOClient
	courses     CourseReader
	hostBaseURL string
	logger      *slog.Logger
	validator   middleware.TokenValidator
}

func NewAdminHandler(instances InstanceService, groups GroupDirectory, catalog FormCatalog, sso SSOClient, courses CourseReader, hostBaseURL string, validator middleware.TokenValidator, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		instances:   instances,
		groups:      groups,
		catalog:     catalog,
		sso:         sso,
		courses:     courses,
		hostBaseURL: hostBaseURL,
		logger:      logger,
		validator:   validator,
	}
}

// Register mounts the admin routes with their middleware chain.
func (h *AdminHandler) Register(r chi.Router) {
	adminRouter := chi.NewRouter()
	adminRouter.Use(middleware.Recovery(h.logger))
	adminRouter.Use(middleware.RequestID)
	adminRouter.Use(middleware.Logger(h.logger))
	adminRouter.Use(middleware.Timeout(30 * time.Second))
	adminRouter.Use(middleware.ContentTypeJSON)
	adminRouter.Use(middleware.RequireAuth(h.validator, "admin", h.logger))
	adminRouter.Post("/instances", h.handleSaveInstance)
	adminRouter.Get("/instances/{instanceID}", h.handleGetInstance)
	adminRouter.Get("/instances/{instanceID}/mapping-defaults", h.handleMappingDefaults)
	adminRouter.Get("/courses/{courseID}/instances", h.handleListInstances)
	adminRouter.Get("/courses/{courseID}/form-options", h.handleFormOptions)
	adminRouter.Get("/groups", h.handleListGroups)
	adminRouter.Get("/templates", h.handleListTemplates)
	adminRouter.Post("/groups/sync", h.handleSyncGroup)
	adminRouter.Post("/sso-link", h.handleSSOLink)

	r.Mount("/admin", adminRouter)
}

// handleSaveInstance validates the submitted mapping arrays, encodes the
// completion-activity set, and creates or updates the instance record.
func (h *AdminHandler) handleSaveInstance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[saveInstanceRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	list, err := mapping.FromSubmission(req.CourseFieldMapping, req.CourseCustomFieldMapping, req.UserProfileFieldMapping)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc := ""
	if list.Len() > 0 {
		doc, err = list.CanonicalJSON()
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	inst := req.toInstance(doc)
	if req.ID != 0 {
		// Updates keep the original creation timestamp.
		existing, err := h.instances.Get(ctx, req.ID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		inst.TimeCreated = existing.TimeCreated
	}

	if err := h.instances.Save(ctx, &inst); err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if req.ID == 0 {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, inst)
}

func (h *AdminHandler) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "instanceID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	inst, err := h.instances.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inst)
}

func (h *AdminHandler) handleMappingDefaults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "instanceID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	inst, err := h.instances.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defaults, err := h.catalog.MappingDefaults(inst.AttributeMapping)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, defaults)
}

func (h *AdminHandler) handleListInstances(w http.ResponseWriter, r *http.Request) {
	courseID, err := pathID(r, "courseID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	insts, err := h.instances.ListByCourse(r.Context(), courseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"instances": insts})
}

// handleFormOptions returns every option catalog the admin form needs in a
// single response.
func (h *AdminHandler) handleFormOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID, err := pathID(r, "courseID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	gradeItems, err := h.catalog.GradeItemOptions(ctx, courseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	customFields, err := h.catalog.CourseCustomFieldOptions(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	profileFields, err := h.catalog.UserProfileFieldOptions(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"gradeitems":    gradeItems,
		"coursefields":  h.catalog.CourseFieldOptions(),
		"customfields":  customFields,
		"profilefields": profileFields,
		"attributekeys": h.catalog.AttributeKeyChoices(ctx),
	})
}

func (h *AdminHandler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.ListGroups(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *AdminHandler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.groups.ListTemplates(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *AdminHandler) handleSyncGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[syncGroupRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.CourseID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "course_id is required"))
		return
	}

	course, err := h.courses.GetCourse(ctx, req.CourseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	groupID, err := h.groups.SyncGroup(ctx, course, req.InstanceID, req.GroupID, h.courseLink(req.CourseID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"group_id": groupID})
}

func (h *AdminHandler) handleSSOLink(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[ssoLinkRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.CredentialID == 0 && req.RecipientID == 0 && req.RecipientEmail == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "a credential or recipient reference is required"))
		return
	}

	link, err := h.sso.GenerateSSOLink(r.Context(), issuer.SSOLinkRequest{
		CredentialID:   req.CredentialID,
		RecipientID:    req.RecipientID,
		RecipientEmail: req.RecipientEmail,
		WalletView:     req.WalletView,
		GroupID:        req.GroupID,
		RedirectTo:     req.RedirectTo,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"link": link})
}

func (h *AdminHandler) courseLink(courseID int64) string {
	if h.hostBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/course/view.php?id=%d", h.hostBaseURL, courseID)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}
