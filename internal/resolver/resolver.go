// Package resolver turns an attribute-mapping list into the custom-attribute
// values for one course and one user, reading the host store and applying
// per-field-type coercions.
package resolver

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"credbridge/internal/hoststore"
	"credbridge/internal/mapping"
	"credbridge/pkg/platform/text"
)

// HostStore is the read surface the resolver needs from the host data.
type HostStore interface {
	GetCourse(ctx context.Context, id int64) (hoststore.Course, error)
	GetCustomField(ctx context.Context, id int64) (hoststore.CustomField, error)
	GetCustomFieldData(ctx context.Context, fieldID, courseID int64) (hoststore.CustomFieldData, error)
	GetUserInfoField(ctx context.Context, id int64) (hoststore.UserInfoField, error)
	GetUserInfoData(ctx context.Context, fieldID, userID int64) (hoststore.UserInfoData, error)
}

// Resolver resolves mapping lists against the host store.
type Resolver struct {
	store  HostStore
	logger *slog.Logger
}

func New(store HostStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve produces the attribute name to value map for the given course and
// user. Bindings whose attribute name is empty, whose field definition or
// data row is missing, or whose resolved value is empty are skipped; a failed
// binding never aborts the rest of the list.
func (r *Resolver) Resolve(ctx context.Context, list mapping.List, courseID, userID int64) (map[string]string, error) {
	out := make(map[string]string, list.Len())
	for _, m := range list.Mappings() {
		if m.Attribute == "" {
			continue
		}
		value, err := r.resolveOne(ctx, m, courseID, userID)
		if err != nil {
			r.logger.WarnContext(ctx, "attribute binding skipped",
				"attribute", m.Attribute, "error", err)
			continue
		}
		if value == "" {
			continue
		}
		out[m.Attribute] = value
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, m mapping.Mapping, courseID, userID int64) (string, error) {
	switch src := m.Source.(type) {
	case mapping.CourseBuiltin:
		return r.resolveCourseField(ctx, src.Field, courseID)
	case mapping.CourseCustom:
		return r.resolveCustomField(ctx, src.ID, courseID)
	case mapping.UserProfile:
		return r.resolveProfileField(ctx, src.ID, userID)
	}
	return "", nil
}

func (r *Resolver) resolveCourseField(ctx context.Context, field string, courseID int64) (string, error) {
	course, err := r.store.GetCourse(ctx, courseID)
	if err != nil {
		return "", err
	}
	switch field {
	case "fullname":
		return course.FullName, nil
	case "shortname":
		return course.ShortName, nil
	case "startdate":
		return formatDate(course.StartDate), nil
	case "enddate":
		return formatDate(course.EndDate), nil
	}
	return "", nil
}

func (r *Resolver) resolveCustomField(ctx context.Context, fieldID, courseID int64) (string, error) {
	field, err := r.store.GetCustomField(ctx, fieldID)
	if err != nil {
		return "", err
	}
	data, err := r.store.GetCustomFieldData(ctx, fieldID, courseID)
	if err != nil {
		return "", err
	}
	switch field.Type {
	case "date":
		return formatDateString(data.Value), nil
	case "textarea":
		return text.StripTags(data.Value), nil
	case "select":
		return optionLabel(customFieldOptions(field.ConfigData), data.Value), nil
	default:
		return data.Value, nil
	}
}

func (r *Resolver) resolveProfileField(ctx context.Context, fieldID, userID int64) (string, error) {
	field, err := r.store.GetUserInfoField(ctx, fieldID)
	if err != nil {
		return "", err
	}
	data, err := r.store.GetUserInfoData(ctx, fieldID, userID)
	if err != nil {
		return "", err
	}
	switch field.DataType {
	case "datetime":
		return formatDateString(data.Value), nil
	case "textarea":
		return text.StripTags(data.Value), nil
	case "menu":
		return optionLabel(field.Options(), data.Value), nil
	default:
		return data.Value, nil
	}
}

// formatDate renders a UNIX timestamp as the UTC calendar day, empty when the
// timestamp is unset.
func formatDate(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

func formatDateString(raw string) string {
	ts, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return ""
	}
	return formatDate(ts)
}

// optionLabel maps a stored 1-based option index onto its label. Out-of-range
// or non-numeric values resolve to empty.
func optionLabel(options []string, raw string) string {
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || idx < 1 || idx > len(options) {
		return ""
	}
	return options[idx-1]
}

// customFieldOptions reads the newline-separated options list out of a custom
// field's JSON config blob.
func customFieldOptions(configData string) []string {
	var cfg struct {
		Options string `json:"options"`
	}
	if err := json.Unmarshal([]byte(configData), &cfg); err != nil {
		return nil
	}
	return text.SplitLines(cfg.Options)
}
