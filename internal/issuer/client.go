// Package issuer implements the typed REST client against the Accredible
// credentialing API: region-aware base URL, token authentication,
// null-elided request bodies, and paginated list retrieval.
package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"credbridge/internal/platform/metrics"
	dErrors "credbridge/pkg/domain-errors"
	"credbridge/pkg/platform/circuit"
	"credbridge/pkg/platform/sentinel"
)

const (
	baseURLDefault = "https://api.accredible.com/v1/"
	baseURLEU      = "https://eu.api.accredible.com/v1/"

	// integrationName identifies the host platform to the Issuer.
	integrationName = "Moodle"
)

// Config carries the process-wide Issuer settings. Pass it explicitly; the
// client never reads globals.
type Config struct {
	APIKey   string
	EURegion bool
	// Endpoint overrides region selection entirely (development use).
	Endpoint       string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Client is the typed, region-aware Issuer REST client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	breaker    *circuit.Breaker
}

// New constructs a Client. metrics may be nil in tests.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	base := baseURLDefault
	if cfg.EURegion {
		base = baseURLEU
	}
	if cfg.Endpoint != "" {
		base = cfg.Endpoint
	}

	connect := cfg.ConnectTimeout
	if connect == 0 {
		connect = 10 * time.Second
	}
	read := cfg.ReadTimeout
	if read == 0 {
		read = 30 * time.Second
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: read,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connect}).DialContext,
			},
		},
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("credbridge/issuer"),
		breaker: circuit.New("issuer"),
	}
}

// ListCredentials fetches one page of credentials, optionally filtered by
// group and recipient email. Empty pages are not an error.
func (c *Client) ListCredentials(ctx context.Context, groupID int64, email string, pageSize, page int) (CredentialPage, error) {
	q := url.Values{}
	if groupID != 0 {
		q.Set("group_id", strconv.FormatInt(groupID, 10))
	} else {
		q.Set("group_id", "")
	}
	q.Set("email", email)
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))

	var out CredentialPage
	err := c.do(ctx, "list_credentials", http.MethodGet, "all_credentials?"+q.Encode(), nil, &out)
	return out, err
}

// GetCredential fetches a single credential with its evidence items.
func (c *Client) GetCredential(ctx context.Context, credentialID int64) (Credential, error) {
	var env struct {
		Credential Credential `json:"credential"`
	}
	err := c.do(ctx, "get_credential", http.MethodGet, fmt.Sprintf("credentials/%d", credentialID), nil, &env)
	return env.Credential, err
}

// CreateCredential issues a credential into an existing group.
func (c *Client) CreateCredential(ctx context.Context, req CreateCredentialRequest) (Credential, error) {
	body := map[string]any{
		"credential": map[string]any{
			"group_id": req.GroupID,
			"recipient": map[string]any{
				"name":  req.Name,
				"email": req.Email,
			},
			"issued_on":         optStr(req.IssuedOn),
			"expired_on":        optStr(req.ExpiredOn),
			"custom_attributes": optAttrs(req.CustomAttributes),
		},
	}

	var env struct {
		Credential Credential `json:"credential"`
	}
	err := c.do(ctx, "create_credential", http.MethodPost, "credentials", body, &env)
	return env.Credential, err
}

// CreateCredentialLegacy issues a credential keyed by achievement (group)
// name. Kept for records that still hold an achievementid.
func (c *Client) CreateCredentialLegacy(ctx context.Context, req LegacyCredentialRequest) (Credential, error) {
	body := map[string]any{
		"credential": map[string]any{
			"group_name": req.GroupName,
			"recipient": map[string]any{
				"name":  req.Name,
				"email": req.Email,
			},
			"issued_on":         optStr(req.IssuedOn),
			"expired_on":        optStr(req.ExpiredOn),
			"custom_attributes": optAttrs(req.CustomAttributes),
			"name":              optStr(req.CourseName),
			"description":       optStr(req.CourseDescription),
			"course_link":       optStr(req.CourseLink),
		},
	}

	var env struct {
		Credential Credential `json:"credential"`
	}
	err := c.do(ctx, "create_credential_legacy", http.MethodPost, "credentials", body, &env)
	return env.Credential, err
}

// EvidenceItemRequest is the write shape for evidence items. StringObject is
// the category-specific payload, already serialized where the category
// demands nested JSON.
type EvidenceItemRequest struct {
	Description  string
	Category     string
	StringObject string
	Hidden       bool
}

// CreateEvidenceItem attaches an evidence item to a credential.
func (c *Client) CreateEvidenceItem(ctx context.Context, credentialID int64, item EvidenceItemRequest) (EvidenceItem, error) {
	body := map[string]any{
		"evidence_item": map[string]any{
			"description":   item.Description,
			"category":      item.Category,
			"string_object": item.StringObject,
			"hidden":        item.Hidden,
		},
	}

	var env struct {
		EvidenceItem EvidenceItem `json:"evidence_item"`
	}
	err := c.do(ctx, "create_evidence_item", http.MethodPost, fmt.Sprintf("credentials/%d/evidence_items", credentialID), body, &env)
	return env.EvidenceItem, err
}

// CreateEvidenceItemGrade attaches grade evidence. The grade must be a
// numeric string in [0,100].
func (c *Client) CreateEvidenceItemGrade(ctx context.Context, grade, description string, credentialID int64, hidden bool) (EvidenceItem, error) {
	if !validGrade(grade) {
		return EvidenceItem{}, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("%s must be a numeric value between 0 and 100", grade))
	}

	return c.CreateEvidenceItem(ctx, credentialID, EvidenceItemRequest{
		Description:  description,
		Category:     "grade",
		StringObject: grade,
		Hidden:       hidden,
	})
}

// CreateEvidenceItemDuration attaches course-duration evidence. Duration is
// floor((end-start)/1 day); a same-day enrollment is invalid, but a sub-day
// span across midnight counts as one day.
func (c *Client) CreateEvidenceItemDuration(ctx context.Context, start, end time.Time, credentialID int64, hidden bool) (EvidenceItem, error) {
	startDay := start.UTC().Format("2006-01-02")
	endDay := end.UTC().Format("2006-01-02")
	days := int(end.Sub(start).Seconds()) / 86400

	if days == 0 {
		if startDay == endDay {
			return EvidenceItem{}, dErrors.New(dErrors.CodeInvalidInput, "enrollment duration must be greater than 0")
		}
		days = 1
	}

	payload, err := json.Marshal(map[string]any{
		"start_date":       startDay,
		"end_date":         endDay,
		"duration_in_days": days,
	})
	if err != nil {
		return EvidenceItem{}, fmt.Errorf("encode duration payload: %w", err)
	}

	return c.CreateEvidenceItem(ctx, credentialID, EvidenceItemRequest{
		Description:  fmt.Sprintf("Completed in %d day%s", days, plural(days)),
		Category:     "course_duration",
		StringObject: string(payload),
		Hidden:       hidden,
	})
}

// UpdateEvidenceItemGrade replaces the grade payload of an existing evidence
// item in place.
func (c *Client) UpdateEvidenceItemGrade(ctx context.Context, credentialID, itemID int64, grade string) (EvidenceItem, error) {
	if !validGrade(grade) {
		return EvidenceItem{}, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("%s must be a numeric value between 0 and 100", grade))
	}

	body := map[string]any{
		"evidence_item": map[string]any{
			"string_object": grade,
		},
	}

	var env struct {
		EvidenceItem EvidenceItem `json:"evidence_item"`
	}
	err := c.do(ctx, "update_evidence_item_grade", http.MethodPut,
		fmt.Sprintf("credentials/%d/evidence_items/%d", credentialID, itemID), body, &env)
	return env.EvidenceItem, err
}

// ListAttributeKeys searches the issuer's custom attribute keys by kind
// ("text" or "date").
func (c *Client) ListAttributeKeys(ctx context.Context, kind string) ([]AttributeKey, error) {
	body := map[string]any{
		"kind": kind,
	}

	var env struct {
		AttributeKeys []AttributeKey `json:"attribute_keys"`
	}
	err := c.do(ctx, "list_attribute_keys", http.MethodPost, "attribute_keys/search", body, &env)
	return env.AttributeKeys, err
}

// ListGroups fetches one page of the issuer's groups.
func (c *Client) ListGroups(ctx context.Context, pageSize, page int) (GroupPage, error) {
	var out GroupPage
	err := c.do(ctx, "list_groups", http.MethodGet,
		fmt.Sprintf("issuer/all_groups?page_size=%d&page=%d", pageSize, page), nil, &out)
	return out, err
}

// SearchGroups fetches one page of groups via the search endpoint, which the
// legacy path uses because it keys templates by name.
func (c *Client) SearchGroups(ctx context.Context, pageSize, page int) (GroupPage, error) {
	body := map[string]any{"page": page, "page_size": pageSize}
	var out GroupPage
	err := c.do(ctx, "search_groups", http.MethodPost, "issuer/groups/search", body, &out)
	return out, err
}

// CreateGroup creates an Issuer group for a host course.
func (c *Client) CreateGroup(ctx context.Context, req GroupRequest) (Group, error) {
	body := map[string]any{
		"group": map[string]any{
			"name":               req.Name,
			"course_name":        req.CourseName,
			"course_description": req.CourseDescription,
			"course_link":        optStr(req.CourseLink),
		},
	}

	var env struct {
		Group Group `json:"group"`
	}
	err := c.do(ctx, "create_group", http.MethodPost, "issuer/groups", body, &env)
	return env.Group, err
}

// UpdateGroup applies a partial update; empty fields are left untouched.
func (c *Client) UpdateGroup(ctx context.Context, groupID int64, req GroupUpdate) (Group, error) {
	body := map[string]any{
		"group": map[string]any{
			"name":               optStr(req.Name),
			"course_name":        optStr(req.CourseName),
			"course_description": optStr(req.CourseDescription),
			"course_link":        optStr(req.CourseLink),
			"design_id":          optID(req.DesignID),
		},
	}

	var env struct {
		Group Group `json:"group"`
	}
	err := c.do(ctx, "update_group", http.MethodPut, fmt.Sprintf("issuer/groups/%d", groupID), body, &env)
	return env.Group, err
}

// GenerateSSOLink requests a recipient single sign-on link.
func (c *Client) GenerateSSOLink(ctx context.Context, req SSOLinkRequest) (string, error) {
	body := map[string]any{
		"credential_id":   optID(req.CredentialID),
		"recipient_id":    optID(req.RecipientID),
		"recipient_email": optStr(req.RecipientEmail),
		"group_id":        optID(req.GroupID),
		"redirect_to":     optStr(req.RedirectTo),
	}
	if req.WalletView {
		body["wallet_view"] = true
	}

	var out struct {
		Link string `json:"link"`
	}
	err := c.do(ctx, "generate_sso_link", http.MethodPost, "sso/generate_link", body, &out)
	return out.Link, err
}

// do runs one authenticated round-trip. Request bodies pass through
// stripNulls so optional keys are absent rather than null.
func (c *Client) do(ctx context.Context, operation, method, path string, body map[string]any, out any) error {
	ctx, span := c.tracer.Start(ctx, "issuer."+operation)
	defer span.End()
	start := time.Now()

	if !c.breaker.Allow() {
		span.SetStatus(codes.Error, "circuit open")
		return fmt.Errorf("%w: %s: circuit open", sentinel.ErrIssuer, operation)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(stripNulls(body))
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accredible-Integration", integrationName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordOutcome(ctx, false)
		c.observe(operation, start, true)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %s: %v", sentinel.ErrIssuer, operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordOutcome(ctx, false)
		c.observe(operation, start, true)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %s: read response: %v", sentinel.ErrIssuer, operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Only server-side failures trip the breaker; a 4xx means the
		// Issuer is reachable and responding.
		c.recordOutcome(ctx, resp.StatusCode < 500)
		c.observe(operation, start, true)
		span.SetStatus(codes.Error, resp.Status)
		c.logger.WarnContext(ctx, "issuer request failed",
			"operation", operation,
			"status", resp.StatusCode,
			"body", truncate(string(raw), 512),
		)
		return fmt.Errorf("%w: %s returned %d: %s", sentinel.ErrIssuer, operation, resp.StatusCode, truncate(string(raw), 512))
	}

	c.recordOutcome(ctx, true)

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			c.observe(operation, start, true)
			return fmt.Errorf("%w: %s: decode response: %v", sentinel.ErrIssuer, operation, err)
		}
	}

	c.observe(operation, start, false)
	return nil
}

func (c *Client) recordOutcome(ctx context.Context, ok bool) {
	if ok {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "issuer circuit closed")
		}
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "issuer circuit opened")
	}
}

func (c *Client) observe(operation string, start time.Time, failed bool) {
	if c.metrics == nil {
		return
	}
	c.metrics.IssuerCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if failed {
		c.metrics.IssuerErrors.Inc()
	}
}

func validGrade(grade string) bool {
	f, err := strconv.ParseFloat(grade, 64)
	if err != nil {
		return false
	}
	return f >= 0 && f <= 100
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
