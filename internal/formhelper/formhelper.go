// Package formhelper builds the option catalogs the admin UI needs to render
// its dropdowns: grade items, host field lists, and Issuer attribute keys.
// Every catalog is a deterministic transform over host-store or Issuer reads.
package formhelper

import (
	"context"
	"log/slog"
	"strconv"

	"credbridge/internal/hoststore"
	"credbridge/internal/issuer"
	"credbridge/internal/mapping"
)

// Option is one dropdown entry. Value is the submitted form value; the empty
// value marks the sentinel prompt row.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

const (
	gradeItemPrompt    = "Select an Activity Grade"
	customFieldPrompt  = "Select a Course Custom Field"
	profileFieldPrompt = "Select a User Profile Field"
	attributeKeyPrompt = "Select an Accredible attribute"

	courseTotalLabel = "Course Total"
)

// HostStore is the read surface the form helper needs.
type HostStore interface {
	ListGradeItems(ctx context.Context, courseID int64) ([]hoststore.GradeItem, error)
	ListCustomFields(ctx context.Context) ([]hoststore.CustomField, error)
	ListUserInfoFields(ctx context.Context) ([]hoststore.UserInfoField, error)
}

// AttributeKeysClient lists Issuer attribute key definitions by kind.
type AttributeKeysClient interface {
	ListAttributeKeys(ctx context.Context, kind string) ([]issuer.AttributeKey, error)
}

// FormHelper produces admin form option catalogs.
type FormHelper struct {
	host   HostStore
	keys   AttributeKeysClient
	logger *slog.Logger
}

func New(host HostStore, keys AttributeKeysClient, logger *slog.Logger) *FormHelper {
	return &FormHelper{host: host, keys: keys, logger: logger}
}

// GradeItemOptions lists the course's gradebook items: the sentinel prompt,
// the course total when present, then each activity item.
func (f *FormHelper) GradeItemOptions(ctx context.Context, courseID int64) ([]Option, error) {
	items, err := f.host.ListGradeItems(ctx, courseID)
	if err != nil {
		return nil, err
	}
	out := []Option{{Value: "", Label: gradeItemPrompt}}
	for _, item := range items {
		if item.ItemType == "course" {
			out = append(out, Option{Value: strconv.FormatInt(item.ID, 10), Label: courseTotalLabel})
			break
		}
	}
	for _, item := range items {
		if item.ItemType == "mod" {
			out = append(out, Option{Value: strconv.FormatInt(item.ID, 10), Label: item.ItemName})
		}
	}
	return out, nil
}

// CourseFieldOptions enumerates the built-in course fields a mapping may
// bind.
func (f *FormHelper) CourseFieldOptions() []Option {
	out := make([]Option, 0, len(mapping.CourseFields()))
	for _, field := range mapping.CourseFields() {
		out = append(out, Option{Value: field, Label: field})
	}
	return out
}

// CourseCustomFieldOptions lists the host's course custom fields.
func (f *FormHelper) CourseCustomFieldOptions(ctx context.Context) ([]Option, error) {
	fields, err := f.host.ListCustomFields(ctx)
	if err != nil {
		return nil, err
	}
	out := []Option{{Value: "", Label: customFieldPrompt}}
	for _, field := range fields {
		out = append(out, Option{Value: strconv.FormatInt(field.ID, 10), Label: field.Name})
	}
	return out, nil
}

// UserProfileFieldOptions lists the host's user profile fields.
func (f *FormHelper) UserProfileFieldOptions(ctx context.Context) ([]Option, error) {
	fields, err := f.host.ListUserInfoFields(ctx)
	if err != nil {
		return nil, err
	}
	out := []Option{{Value: "", Label: profileFieldPrompt}}
	for _, field := range fields {
		out = append(out, Option{Value: strconv.FormatInt(field.ID, 10), Label: field.Name})
	}
	return out, nil
}

// AttributeKeyChoices merges the Issuer's text and date attribute keys under
// the sentinel prompt. An Issuer failure degrades to the prompt alone so the
// admin form still renders.
func (f *FormHelper) AttributeKeyChoices(ctx context.Context) []Option {
	out := []Option{{Value: "", Label: attributeKeyPrompt}}
	for _, kind := range []string{"text", "date"} {
		keys, err := f.keys.ListAttributeKeys(ctx, kind)
		if err != nil {
			f.logger.WarnContext(ctx, "attribute keys unavailable", "kind", kind, "error", err)
			continue
		}
		for _, key := range keys {
			out = append(out, Option{Value: key.Key, Label: key.Key})
		}
	}
	return out
}

// MappingDefaults decodes a stored mapping document into the three parallel
// arrays the admin form renders.
func (f *FormHelper) MappingDefaults(doc string) (mapping.Defaults, error) {
	return mapping.DecodeDefaults(doc)
}
