package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"credbridge/internal/event"
	"credbridge/internal/issuer"
	"credbridge/internal/platform/metrics"
	"credbridge/pkg/platform/sentinel"
)

// CredentialsClient is the slice of the Issuer client the credential
// directory needs.
type CredentialsClient interface {
	GetCredential(ctx context.Context, credentialID int64) (issuer.Credential, error)
	ListCredentials(ctx context.Context, groupID int64, email string, pageSize, page int) (issuer.CredentialPage, error)
	CreateCredential(ctx context.Context, req issuer.CreateCredentialRequest) (issuer.Credential, error)
	CreateCredentialLegacy(ctx context.Context, req issuer.LegacyCredentialRequest) (issuer.Credential, error)
}

// Credentials searches and creates Issuer credentials.
type Credentials struct {
	client  CredentialsClient
	sink    event.Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewCredentials(client CredentialsClient, sink event.Sink, logger *slog.Logger, m *metrics.Metrics) *Credentials {
	return &Credentials{client: client, sink: sink, logger: logger, metrics: m}
}

// ListCredentials concatenates every page of the group's credential listing,
// optionally filtered by recipient email. A failed page discards the partial
// result.
func (c *Credentials) ListCredentials(ctx context.Context, groupID int64, email string) ([]issuer.Credential, error) {
	var out []issuer.Credential
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := c.client.ListCredentials(ctx, groupID, email, pageSize, page)
		if err != nil {
			return nil, fmt.Errorf("%w: list credentials page %d: %v", sentinel.ErrDirectoryUnavailable, page, err)
		}
		out = append(out, result.Credentials...)
		if result.Meta.NextPage == nil {
			break
		}
	}
	return out, nil
}

// GetCredential fetches the full credential record by id. Listing responses
// omit evidence items, so callers that need them refetch here.
func (c *Credentials) GetCredential(ctx context.Context, credentialID int64) (issuer.Credential, error) {
	cred, err := c.client.GetCredential(ctx, credentialID)
	if err != nil {
		return issuer.Credential{}, fmt.Errorf("%w: get credential %d: %v", sentinel.ErrDirectoryUnavailable, credentialID, err)
	}
	return cred, nil
}

// FindExisting returns the first credential in the group whose recipient
// email matches, case-insensitively.
func (c *Credentials) FindExisting(ctx context.Context, groupID int64, email string) (issuer.Credential, bool, error) {
	creds, err := c.ListCredentials(ctx, groupID, email)
	if err != nil {
		return issuer.Credential{}, false, err
	}
	for _, cred := range creds {
		if strings.EqualFold(cred.Recipient.Email, email) {
			return cred, true, nil
		}
	}
	return issuer.Credential{}, false, nil
}

// IssueRequest carries everything a new credential needs. CourseID and
// UserID only feed the emitted domain event.
type IssueRequest struct {
	RecipientName    string
	RecipientEmail   string
	GroupID          int64
	IssuedOn         string
	CustomAttributes map[string]string
	CourseID         int64
	UserID           int64
	Emit             bool
}

// EnsureCredential creates a credential for a recipient known not to have
// one; callers establish the precondition through FindExisting. On success a
// credential_created event is emitted when requested. A failed emit is
// logged, never propagated, since the credential already exists at that
// point.
func (c *Credentials) EnsureCredential(ctx context.Context, req IssueRequest) (issuer.Credential, error) {
	cred, err := c.client.CreateCredential(ctx, issuer.CreateCredentialRequest{
		Name:             req.RecipientName,
		Email:            req.RecipientEmail,
		GroupID:          req.GroupID,
		IssuedOn:         req.IssuedOn,
		CustomAttributes: req.CustomAttributes,
	})
	if err != nil {
		return issuer.Credential{}, fmt.Errorf("%w: %v", sentinel.ErrCredentialCreate, err)
	}
	c.afterIssue(ctx, cred, req)
	return cred, nil
}

// LegacyIssueRequest issues against a template name instead of a group id.
type LegacyIssueRequest struct {
	IssueRequest
	GroupName         string
	CourseName        string
	CourseDescription string
	CourseLink        string
}

// EnsureCredentialLegacy is EnsureCredential for records that predate group
// ids and still address the Issuer by achievement name.
func (c *Credentials) EnsureCredentialLegacy(ctx context.Context, req LegacyIssueRequest) (issuer.Credential, error) {
	cred, err := c.client.CreateCredentialLegacy(ctx, issuer.LegacyCredentialRequest{
		Name:              req.RecipientName,
		Email:             req.RecipientEmail,
		GroupName:         req.GroupName,
		IssuedOn:          req.IssuedOn,
		CourseName:        req.CourseName,
		CourseDescription: req.CourseDescription,
		CourseLink:        req.CourseLink,
		CustomAttributes:  req.CustomAttributes,
	})
	if err != nil {
		return issuer.Credential{}, fmt.Errorf("%w: %v", sentinel.ErrCredentialCreate, err)
	}
	c.afterIssue(ctx, cred, req.IssueRequest)
	return cred, nil
}

func (c *Credentials) afterIssue(ctx context.Context, cred issuer.Credential, req IssueRequest) {
	c.metrics.CredentialsIssued.Inc()
	c.logger.InfoContext(ctx, "credential issued",
		"credential_id", cred.ID, "group_id", req.GroupID, "user_id", req.UserID)
	if !req.Emit || c.sink == nil {
		return
	}
	err := c.sink.PublishCredentialCreated(ctx, event.CredentialCreated{
		CredentialID: cred.ID,
		GroupID:      req.GroupID,
		CourseID:     req.CourseID,
		UserID:       req.UserID,
		IssuedOn:     req.IssuedOn,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "credential_created event publish failed",
			"credential_id", cred.ID, "error", err)
	}
}
