package issuer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "credbridge/pkg/domain-errors"
	"credbridge/pkg/platform/sentinel"
)

type ClientSuite struct {
	suite.Suite
	server   *httptest.Server
	client   *Client
	requests []recordedRequest
	respond  func(w http.ResponseWriter, r *http.Request)
}

type recordedRequest struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.requests = nil
	s.respond = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			header: r.Header.Clone(),
		}
		if raw, err := io.ReadAll(r.Body); err == nil && len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.body)
		}
		s.requests = append(s.requests, rec)
		s.respond(w, r)
	}))

	s.client = New(Config{
		APIKey:   "secret-key",
		Endpoint: s.server.URL + "/v1/",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) lastRequest() recordedRequest {
	s.Require().NotEmpty(s.requests)
	return s.requests[len(s.requests)-1]
}

func (s *ClientSuite) TestRegionSelection() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.Run("default region", func() {
		c := New(Config{APIKey: "k"}, logger, nil)
		s.Equal("https://api.accredible.com/v1/", c.baseURL)
	})

	s.Run("eu region", func() {
		c := New(Config{APIKey: "k", EURegion: true}, logger, nil)
		s.Equal("https://eu.api.accredible.com/v1/", c.baseURL)
	})

	s.Run("endpoint override wins", func() {
		c := New(Config{APIKey: "k", EURegion: true, Endpoint: "http://localhost:9999/v1/"}, logger, nil)
		s.Equal("http://localhost:9999/v1/", c.baseURL)
	})
}

func (s *ClientSuite) TestRequestHeaders() {
	_, err := s.client.GetCredential(context.Background(), 42)
	s.Require().NoError(err)

	req := s.lastRequest()
	s.Equal("Token secret-key", req.header.Get("Authorization"))
	s.Equal("application/json; charset=utf-8", req.header.Get("Content-Type"))
	s.Equal("Moodle", req.header.Get("Accredible-Integration"))
	s.Equal("/v1/credentials/42", req.path)
}

func (s *ClientSuite) TestCreateCredential() {
	s.respond = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"credential":{"id":42,"recipient":{"name":"Jane Learner","email":"jane@example.com"},"group_id":9549}}`))
	}

	s.Run("optional keys are absent, not null", func() {
		cred, err := s.client.CreateCredential(context.Background(), CreateCredentialRequest{
			Name:    "Jane Learner",
			Email:   "jane@example.com",
			GroupID: 9549,
		})
		s.Require().NoError(err)
		s.Equal(int64(42), cred.ID)

		req := s.lastRequest()
		s.Equal(http.MethodPost, req.method)
		s.Equal("/v1/credentials", req.path)

		credential, ok := req.body["credential"].(map[string]any)
		s.Require().True(ok)
		s.Equal(float64(9549), credential["group_id"])
		s.NotContains(credential, "issued_on")
		s.NotContains(credential, "expired_on")
		s.NotContains(credential, "custom_attributes")
	})

	s.Run("custom attributes pass through", func() {
		_, err := s.client.CreateCredential(context.Background(), CreateCredentialRequest{
			Name:     "Jane Learner",
			Email:    "jane@example.com",
			GroupID:  9549,
			IssuedOn: "2024-02-09",
			CustomAttributes: map[string]string{
				"Moodle Course Start Date": "2024-02-09",
			},
		})
		s.Require().NoError(err)

		credential := s.lastRequest().body["credential"].(map[string]any)
		s.Equal("2024-02-09", credential["issued_on"])
		attrs := credential["custom_attributes"].(map[string]any)
		s.Equal("2024-02-09", attrs["Moodle Course Start Date"])
	})
}

func (s *ClientSuite) TestCreateCredentialLegacy() {
	s.respond = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"credential":{"id":7}}`))
	}

	_, err := s.client.CreateCredentialLegacy(context.Background(), LegacyCredentialRequest{
		Name:              "Jane Learner",
		Email:             "jane@example.com",
		GroupName:         "moodle-course-7",
		CourseName:        "Course 101",
		CourseDescription: "About things",
	})
	s.Require().NoError(err)

	credential := s.lastRequest().body["credential"].(map[string]any)
	s.Equal("moodle-course-7", credential["group_name"])
	s.Equal("Course 101", credential["name"])
	s.NotContains(credential, "course_link")
	s.NotContains(credential, "group_id")
}

func (s *ClientSuite) TestListCredentials() {
	s.respond = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"credentials":[{"id":1},{"id":2}],"meta":{"next_page":2}}`))
	}

	page, err := s.client.ListCredentials(context.Background(), 9549, "jane@example.com", 50, 1)
	s.Require().NoError(err)
	s.Len(page.Credentials, 2)
	s.Require().NotNil(page.Meta.NextPage)
	s.Equal(2, *page.Meta.NextPage)

	req := s.lastRequest()
	s.Equal("/v1/all_credentials", req.path)
	s.Contains(req.query, "group_id=9549")
	s.Contains(req.query, "email=jane%40example.com")
	s.Contains(req.query, "page_size=50")
	s.Contains(req.query, "page=1")
}

func (s *ClientSuite) TestGradeEvidence() {
	s.respond = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"evidence_item":{"id":11,"category":"grade","string_object":"85"}}`))
	}

	s.Run("valid grade posts", func() {
		item, err := s.client.CreateEvidenceItemGrade(context.Background(), "85", "Final Quiz", 42, false)
		s.Require().NoError(err)
		s.Equal(int64(11), item.ID)

		req := s.lastRequest()
		s.Equal("/v1/credentials/42/evidence_items", req.path)
		evidence := req.body["evidence_item"].(map[string]any)
		s.Equal("grade", evidence["category"])
		s.Equal("85", evidence["string_object"])
	})

	s.Run("non-numeric grade rejected", func() {
		_, err := s.client.CreateEvidenceItemGrade(context.Background(), "eleventy", "Final Quiz", 42, false)
		s.Require().Error(err)
		s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	s.Run("out of range grade rejected", func() {
		_, err := s.client.CreateEvidenceItemGrade(context.Background(), "101", "Final Quiz", 42, false)
		s.Require().Error(err)
		s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	s.Run("update validates too", func() {
		_, err := s.client.UpdateEvidenceItemGrade(context.Background(), 42, 11, "-1")
		s.Require().Error(err)
		s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	s.Run("update puts to the item path", func() {
		_, err := s.client.UpdateEvidenceItemGrade(context.Background(), 42, 11, "90")
		s.Require().NoError(err)

		req := s.lastRequest()
		s.Equal(http.MethodPut, req.method)
		s.Equal("/v1/credentials/42/evidence_items/11", req.path)
		evidence := req.body["evidence_item"].(map[string]any)
		s.Equal("90", evidence["string_object"])
	})
}

func (s *ClientSuite) TestDurationEvidence() {
	s.respond = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"evidence_item":{"id":12,"category":"course_duration"}}`))
	}

	day := 24 * time.Hour
	start := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	s.Run("multi day duration floors", func() {
		_, err := s.client.CreateEvidenceItemDuration(context.Background(), start, start.Add(10*day+3*time.Hour), 42, true)
		s.Require().NoError(err)

		evidence := s.lastRequest().body["evidence_item"].(map[string]any)
		s.Equal("Completed in 10 days", evidence["description"])

		var payload map[string]any
		s.Require().NoError(json.Unmarshal([]byte(evidence["string_object"].(string)), &payload))
		s.Equal(float64(10), payload["duration_in_days"])
		s.Equal("2024-02-01", payload["start_date"])
		s.Equal("2024-02-11", payload["end_date"])
	})

	s.Run("same day fails", func() {
		_, err := s.client.CreateEvidenceItemDuration(context.Background(), start, start.Add(2*time.Hour), 42, true)
		s.Require().Error(err)
		s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	s.Run("sub day across midnight counts as one", func() {
		lateStart := time.Date(2024, 2, 1, 23, 0, 0, 0, time.UTC)
		_, err := s.client.CreateEvidenceItemDuration(context.Background(), lateStart, lateStart.Add(4*time.Hour), 42, true)
		s.Require().NoError(err)

		evidence := s.lastRequest().body["evidence_item"].(map[string]any)
		s.Equal("Completed in 1 day", evidence["description"])
	})
}

func (s *ClientSuite) TestGroups() {
	s.Run("create group", func() {
		s.respond = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"group":{"id":12472,"name":"course-101-ab12"}}`))
		}

		group, err := s.client.CreateGroup(context.Background(), GroupRequest{
			Name:              "course-101-ab12",
			CourseName:        "Course 101",
			CourseDescription: "About things",
		})
		s.Require().NoError(err)
		s.Equal(int64(12472), group.ID)
		s.Equal("/v1/issuer/groups", s.lastRequest().path)
	})

	s.Run("update group elides empty fields", func() {
		s.respond = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"group":{"id":12472}}`))
		}

		_, err := s.client.UpdateGroup(context.Background(), 12472, GroupUpdate{CourseLink: "https://host/course/7"})
		s.Require().NoError(err)

		req := s.lastRequest()
		s.Equal(http.MethodPut, req.method)
		s.Equal("/v1/issuer/groups/12472", req.path)
		group := req.body["group"].(map[string]any)
		s.Equal("https://host/course/7", group["course_link"])
		s.NotContains(group, "name")
		s.NotContains(group, "design_id")
	})

	s.Run("search groups posts the page", func() {
		s.respond = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"groups":[{"id":1,"name":"g1"}],"meta":{"next_page":null}}`))
		}

		page, err := s.client.SearchGroups(context.Background(), 50, 3)
		s.Require().NoError(err)
		s.Len(page.Groups, 1)
		s.Nil(page.Meta.NextPage)

		req := s.lastRequest()
		s.Equal("/v1/issuer/groups/search", req.path)
		s.Equal(float64(3), req.body["page"])
		s.Equal(float64(50), req.body["page_size"])
	})
}

func (s *ClientSuite) TestGenerateSSOLink() {
	s.respond = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"link":"https://credential.net/sso/abc"}`))
	}

	link, err := s.client.GenerateSSOLink(context.Background(), SSOLinkRequest{
		RecipientEmail: "jane@example.com",
		GroupID:        9549,
	})
	s.Require().NoError(err)
	s.Equal("https://credential.net/sso/abc", link)

	body := s.lastRequest().body
	s.Equal("jane@example.com", body["recipient_email"])
	s.Equal(float64(9549), body["group_id"])
	s.NotContains(body, "credential_id")
	s.NotContains(body, "redirect_to")
}

func (s *ClientSuite) TestErrorSurfacing() {
	s.respond = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":"group not found"}`))
	}

	_, err := s.client.CreateCredential(context.Background(), CreateCredentialRequest{
		Name:    "Jane Learner",
		Email:   "jane@example.com",
		GroupID: 1,
	})
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrIssuer)
	s.Contains(err.Error(), "group not found")
}

func (s *ClientSuite) TestCircuitOpensOnServerErrors() {
	s.respond = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}

	for range 5 {
		_, err := s.client.GetCredential(context.Background(), 42)
		s.Require().Error(err)
	}
	s.Len(s.requests, 5)

	// The open circuit rejects the next call before it reaches the server.
	_, err := s.client.GetCredential(context.Background(), 42)
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrIssuer)
	s.Contains(err.Error(), "circuit open")
	s.Len(s.requests, 5)
}

func (s *ClientSuite) TestClientErrorsDoNotOpenCircuit() {
	s.respond = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}

	for range 6 {
		_, err := s.client.GetCredential(context.Background(), 42)
		s.Require().Error(err)
	}
	s.Len(s.requests, 6)
}

func TestGradeValue(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
		ok   bool
	}{
		{"object form", `{"grade":"70"}`, 70, true},
		{"bare string", `"85"`, 85, true},
		{"decimal truncates", `"85.7"`, 85, true},
		{"garbage", `"high"`, 0, false},
		{"empty", ``, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := EvidenceItem{StringObject: json.RawMessage(tc.raw)}
			got, ok := item.GradeValue()
			if ok != tc.ok || got != tc.want {
				t.Fatalf("GradeValue(%s) = (%d,%v), want (%d,%v)", tc.raw, got, ok, tc.want, tc.ok)
			}
		})
	}
}
