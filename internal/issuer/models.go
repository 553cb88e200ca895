package issuer

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Recipient identifies who a credential is issued to.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EvidenceItem is a typed annotation attached to a credential. StringObject
// is category-specific: grade items carry a numeric string (returned by the
// API as either a bare string or an object with a "grade" key), duration
// items a start/end/days object, transcripts a JSON array.
type EvidenceItem struct {
	ID           int64           `json:"id,omitempty"`
	Type         string          `json:"type,omitempty"`
	Description  string          `json:"description,omitempty"`
	Category     string          `json:"category,omitempty"`
	StringObject json.RawMessage `json:"string_object,omitempty"`
	Hidden       bool            `json:"hidden,omitempty"`
}

// GradeValue extracts the numeric grade from a grade evidence item,
// tolerating both response encodings. Returns false when the payload does
// not parse as a grade.
func (e EvidenceItem) GradeValue() (int, bool) {
	raw := strings.TrimSpace(string(e.StringObject))
	if raw == "" {
		return 0, false
	}

	var obj struct {
		Grade string `json:"grade"`
	}
	if err := json.Unmarshal(e.StringObject, &obj); err == nil && obj.Grade != "" {
		return parseGradeInt(obj.Grade)
	}

	var s string
	if err := json.Unmarshal(e.StringObject, &s); err == nil {
		return parseGradeInt(s)
	}

	return parseGradeInt(raw)
}

func parseGradeInt(s string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// Credential is the Issuer-owned record referenced by opaque id. The bridge
// never deletes credentials; it only creates them and updates evidence items.
type Credential struct {
	ID            int64          `json:"id"`
	Recipient     Recipient      `json:"recipient"`
	GroupID       int64          `json:"group_id,omitempty"`
	IssuedOn      string         `json:"issued_on,omitempty"`
	ExpiredOn     string         `json:"expired_on,omitempty"`
	URL           string         `json:"url,omitempty"`
	EvidenceItems []EvidenceItem `json:"evidence_items,omitempty"`
}

// GradeEvidence returns the credential's grade evidence item, if any.
func (c Credential) GradeEvidence() (EvidenceItem, bool) {
	for _, item := range c.EvidenceItems {
		if item.Type == "grade" || item.Category == "grade" {
			return item, true
		}
	}
	return EvidenceItem{}, false
}

// Group is the Issuer-side container for a credential template/cohort.
type Group struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	CourseName        string `json:"course_name,omitempty"`
	CourseDescription string `json:"course_description,omitempty"`
	CourseLink        string `json:"course_link,omitempty"`
}

// AttributeKey is one issuer-side custom attribute definition.
type AttributeKey struct {
	ID   int64  `json:"id"`
	Key  string `json:"key"`
	Kind string `json:"kind,omitempty"`
}

// PageMeta carries the pagination cursor. NextPage is nil on the last page.
type PageMeta struct {
	NextPage *int `json:"next_page"`
}

// CredentialPage is one page of a credential listing.
type CredentialPage struct {
	Credentials []Credential `json:"credentials"`
	Meta        PageMeta     `json:"meta"`
}

// GroupPage is one page of a group listing or search.
type GroupPage struct {
	Groups []Group  `json:"groups"`
	Meta   PageMeta `json:"meta"`
}

// CreateCredentialRequest composes a modern (group-id keyed) issuance.
type CreateCredentialRequest struct {
	Name             string
	Email            string
	GroupID          int64
	IssuedOn         string
	ExpiredOn        string
	CustomAttributes map[string]string
}

// LegacyCredentialRequest composes an issuance against records that still
// hold an achievement name instead of a group id.
type LegacyCredentialRequest struct {
	Name              string
	Email             string
	GroupName         string
	IssuedOn          string
	ExpiredOn         string
	CourseName        string
	CourseDescription string
	CourseLink        string
	CustomAttributes  map[string]string
}

// GroupRequest composes a group create.
type GroupRequest struct {
	Name              string
	CourseName        string
	CourseDescription string
	CourseLink        string
}

// GroupUpdate composes a partial group update; empty fields are elided.
type GroupUpdate struct {
	Name              string
	CourseName        string
	CourseDescription string
	CourseLink        string
	DesignID          int64
}

// SSOLinkRequest composes a request for a recipient single sign-on link.
type SSOLinkRequest struct {
	CredentialID   int64
	RecipientID    int64
	RecipientEmail string
	WalletView     bool
	GroupID        int64
	RedirectTo     string
}
