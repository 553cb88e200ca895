package directory_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"credbridge/internal/directory"
	"credbridge/internal/event"
	"credbridge/internal/hoststore"
	"credbridge/internal/instance"
	"credbridge/internal/issuer"
	"credbridge/internal/platform/metrics"
	"credbridge/pkg/platform/sentinel"
)

type fakeIssuer struct {
	listGroups       func(page int) (issuer.GroupPage, error)
	searchGroups     func(page int) (issuer.GroupPage, error)
	createGroup      func(req issuer.GroupRequest) (issuer.Group, error)
	updateGroup      func(groupID int64, req issuer.GroupUpdate) (issuer.Group, error)
	getCredential    func(credentialID int64) (issuer.Credential, error)
	listCredentials  func(groupID int64, email string, page int) (issuer.CredentialPage, error)
	createCredential func(req issuer.CreateCredentialRequest) (issuer.Credential, error)
	createLegacy     func(req issuer.LegacyCredentialRequest) (issuer.Credential, error)
}

func (f *fakeIssuer) ListGroups(_ context.Context, _, page int) (issuer.GroupPage, error) {
	return f.listGroups(page)
}

func (f *fakeIssuer) SearchGroups(_ context.Context, _, page int) (issuer.GroupPage, error) {
	return f.searchGroups(page)
}

func (f *fakeIssuer) CreateGroup(_ context.Context, req issuer.GroupRequest) (issuer.Group, error) {
	return f.createGroup(req)
}

func (f *fakeIssuer) UpdateGroup(_ context.Context, groupID int64, req issuer.GroupUpdate) (issuer.Group, error) {
	return f.updateGroup(groupID, req)
}

func (f *fakeIssuer) GetCredential(_ context.Context, credentialID int64) (issuer.Credential, error) {
	return f.getCredential(credentialID)
}

func (f *fakeIssuer) ListCredentials(_ context.Context, groupID int64, email string, _, page int) (issuer.CredentialPage, error) {
	return f.listCredentials(groupID, email, page)
}

func (f *fakeIssuer) CreateCredential(_ context.Context, req issuer.CreateCredentialRequest) (issuer.Credential, error) {
	return f.createCredential(req)
}

func (f *fakeIssuer) CreateCredentialLegacy(_ context.Context, req issuer.LegacyCredentialRequest) (issuer.Credential, error) {
	return f.createLegacy(req)
}

func intp(v int) *int { return &v }

type DirectorySuite struct {
	suite.Suite
	client    *fakeIssuer
	instances *instance.MemoryStore
	sink      *event.MemorySink
	groups    *directory.Groups
	creds     *directory.Credentials
}

func TestDirectorySuite(t *testing.T) {
	suite.Run(t, new(DirectorySuite))
}

func (s *DirectorySuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWith(prometheus.NewRegistry())
	s.client = &fakeIssuer{}
	s.instances = instance.NewMemoryStore()
	s.sink = &event.MemorySink{}
	s.groups = directory.NewGroups(s.client, s.instances, nil, time.Minute, logger, m)
	s.creds = directory.NewCredentials(s.client, s.sink, logger, m)
}

func (s *DirectorySuite) TestListGroupsMergesPages() {
	s.client.listGroups = func(page int) (issuer.GroupPage, error) {
		switch page {
		case 1:
			return issuer.GroupPage{
				Groups: []issuer.Group{{ID: 1, Name: "alpha"}, {ID: 2, Name: "beta"}},
				Meta:   issuer.PageMeta{NextPage: intp(2)},
			}, nil
		case 2:
			return issuer.GroupPage{Groups: []issuer.Group{{ID: 3, Name: "gamma"}}}, nil
		}
		return issuer.GroupPage{}, fmt.Errorf("unexpected page %d", page)
	}

	got, err := s.groups.ListGroups(context.Background())
	s.Require().NoError(err)
	s.Equal(map[int64]string{1: "alpha", 2: "beta", 3: "gamma"}, got)
}

func (s *DirectorySuite) TestListGroupsStopsAtPageCeiling() {
	var pages int
	s.client.listGroups = func(page int) (issuer.GroupPage, error) {
		pages++
		return issuer.GroupPage{
			Groups: []issuer.Group{{ID: int64(page), Name: "g"}},
			Meta:   issuer.PageMeta{NextPage: intp(page + 1)},
		}, nil
	}

	got, err := s.groups.ListGroups(context.Background())
	s.Require().NoError(err)
	s.Equal(100, pages)
	s.Len(got, 100)
}

func (s *DirectorySuite) TestListGroupsPageFailureSurfaces() {
	s.client.listGroups = func(page int) (issuer.GroupPage, error) {
		if page == 2 {
			return issuer.GroupPage{}, errors.New("boom")
		}
		return issuer.GroupPage{Meta: issuer.PageMeta{NextPage: intp(page + 1)}}, nil
	}

	_, err := s.groups.ListGroups(context.Background())
	s.Require().ErrorIs(err, sentinel.ErrDirectoryUnavailable)
}

func (s *DirectorySuite) TestListTemplatesKeyedByName() {
	s.client.searchGroups = func(page int) (issuer.GroupPage, error) {
		return issuer.GroupPage{
			Groups: []issuer.Group{{ID: 5, Name: "Course A"}, {ID: 6, Name: "Course B"}},
		}, nil
	}

	got, err := s.groups.ListTemplates(context.Background())
	s.Require().NoError(err)
	s.Equal(map[string]int64{"Course A": 5, "Course B": 6}, got)
}

func (s *DirectorySuite) TestSyncGroupCreatesWithRandomSuffix() {
	var captured issuer.GroupRequest
	s.client.createGroup = func(req issuer.GroupRequest) (issuer.Group, error) {
		captured = req
		return issuer.Group{ID: 321}, nil
	}

	course := hoststore.Course{
		ID:        7,
		FullName:  "Automation Basics",
		ShortName: "auto101",
		Summary:   "<p>Learn automation</p>",
	}
	id, err := s.groups.SyncGroup(context.Background(), course, 0, 0, "https://lms.example.com/course/7")
	s.Require().NoError(err)
	s.Equal(int64(321), id)
	s.True(strings.HasPrefix(captured.Name, "auto101-"))
	s.Greater(len(captured.Name), len("auto101-"))
	s.Equal("Automation Basics", captured.CourseName)
	s.Equal("Learn automation", captured.CourseDescription)
	s.Equal("https://lms.example.com/course/7", captured.CourseLink)
}

func (s *DirectorySuite) TestSyncGroupEmptySummaryUsesSentinelDescription() {
	var captured issuer.GroupRequest
	s.client.createGroup = func(req issuer.GroupRequest) (issuer.Group, error) {
		captured = req
		return issuer.Group{ID: 1}, nil
	}

	_, err := s.groups.SyncGroup(context.Background(), hoststore.Course{ShortName: "x"}, 0, 0, "")
	s.Require().NoError(err)
	s.Equal("Recipient has compeleted the achievement.", captured.CourseDescription)
}

func (s *DirectorySuite) TestSyncGroupUpdatesExistingInstance() {
	id, err := s.instances.Create(context.Background(), &instance.Instance{
		Course: 7, Name: "inst", GroupID: 888, PassingGrade: 50,
	})
	s.Require().NoError(err)

	var gotID int64
	var captured issuer.GroupUpdate
	s.client.updateGroup = func(groupID int64, req issuer.GroupUpdate) (issuer.Group, error) {
		gotID, captured = groupID, req
		return issuer.Group{ID: groupID}, nil
	}

	s.Run("falls back to stored group", func() {
		got, err := s.groups.SyncGroup(context.Background(), hoststore.Course{FullName: "C"}, id, 0, "link")
		s.Require().NoError(err)
		s.Equal(int64(888), got)
		s.Equal(int64(888), gotID)
		s.Equal("link", captured.CourseLink)
	})

	s.Run("explicit group wins", func() {
		got, err := s.groups.SyncGroup(context.Background(), hoststore.Course{FullName: "C"}, id, 999, "link")
		s.Require().NoError(err)
		s.Equal(int64(999), got)
	})
}

func (s *DirectorySuite) TestSyncGroupFailureWrapsSentinel() {
	s.client.createGroup = func(issuer.GroupRequest) (issuer.Group, error) {
		return issuer.Group{}, errors.New("boom")
	}

	_, err := s.groups.SyncGroup(context.Background(), hoststore.Course{ShortName: "x"}, 0, 0, "")
	s.Require().ErrorIs(err, sentinel.ErrSyncFailed)
}

func (s *DirectorySuite) TestListCredentialsMergesPages() {
	makeCreds := func(n int, offset int64) []issuer.Credential {
		out := make([]issuer.Credential, n)
		for i := range out {
			out[i] = issuer.Credential{ID: offset + int64(i)}
		}
		return out
	}
	s.client.listCredentials = func(groupID int64, email string, page int) (issuer.CredentialPage, error) {
		s.Equal(int64(42), groupID)
		switch page {
		case 1:
			return issuer.CredentialPage{
				Credentials: makeCreds(50, 0),
				Meta:        issuer.PageMeta{NextPage: intp(2)},
			}, nil
		case 2:
			return issuer.CredentialPage{Credentials: makeCreds(20, 50)}, nil
		}
		return issuer.CredentialPage{}, fmt.Errorf("unexpected page %d", page)
	}

	got, err := s.creds.ListCredentials(context.Background(), 42, "")
	s.Require().NoError(err)
	s.Len(got, 70)
	s.Equal(int64(69), got[69].ID)
}

func (s *DirectorySuite) TestListCredentialsFailureDiscardsPartial() {
	s.client.listCredentials = func(_ int64, _ string, page int) (issuer.CredentialPage, error) {
		if page == 3 {
			return issuer.CredentialPage{}, errors.New("boom")
		}
		return issuer.CredentialPage{
			Credentials: []issuer.Credential{{ID: int64(page)}},
			Meta:        issuer.PageMeta{NextPage: intp(page + 1)},
		}, nil
	}

	got, err := s.creds.ListCredentials(context.Background(), 1, "")
	s.Require().ErrorIs(err, sentinel.ErrDirectoryUnavailable)
	s.Nil(got)
}

func (s *DirectorySuite) TestGetCredential() {
	s.client.getCredential = func(credentialID int64) (issuer.Credential, error) {
		return issuer.Credential{
			ID:            credentialID,
			EvidenceItems: []issuer.EvidenceItem{{ID: 31, Type: "grade"}},
		}, nil
	}

	cred, err := s.creds.GetCredential(context.Background(), 900)
	s.Require().NoError(err)
	s.Equal(int64(900), cred.ID)
	s.Len(cred.EvidenceItems, 1)

	s.client.getCredential = func(int64) (issuer.Credential, error) {
		return issuer.Credential{}, errors.New("boom")
	}
	_, err = s.creds.GetCredential(context.Background(), 900)
	s.ErrorIs(err, sentinel.ErrDirectoryUnavailable)
}

func (s *DirectorySuite) TestFindExisting() {
	s.client.listCredentials = func(_ int64, _ string, _ int) (issuer.CredentialPage, error) {
		return issuer.CredentialPage{Credentials: []issuer.Credential{
			{ID: 1, Recipient: issuer.Recipient{Email: "other@example.com"}},
			{ID: 2, Recipient: issuer.Recipient{Email: "Student@Example.com"}},
		}}, nil
	}

	s.Run("matches case insensitively", func() {
		cred, found, err := s.creds.FindExisting(context.Background(), 42, "student@example.com")
		s.Require().NoError(err)
		s.True(found)
		s.Equal(int64(2), cred.ID)
	})

	s.Run("absent recipient", func() {
		_, found, err := s.creds.FindExisting(context.Background(), 42, "nobody@example.com")
		s.Require().NoError(err)
		s.False(found)
	})
}

func (s *DirectorySuite) TestEnsureCredentialIssuesAndEmits() {
	var captured issuer.CreateCredentialRequest
	s.client.createCredential = func(req issuer.CreateCredentialRequest) (issuer.Credential, error) {
		captured = req
		return issuer.Credential{ID: 777, GroupID: req.GroupID}, nil
	}

	cred, err := s.creds.EnsureCredential(context.Background(), directory.IssueRequest{
		RecipientName:    "Alice Example",
		RecipientEmail:   "alice@example.com",
		GroupID:          42,
		IssuedOn:         "2024-06-01",
		CustomAttributes: map[string]string{"Track": "test2"},
		CourseID:         7,
		UserID:           9,
		Emit:             true,
	})
	s.Require().NoError(err)
	s.Equal(int64(777), cred.ID)
	s.Equal("Alice Example", captured.Name)
	s.Equal(map[string]string{"Track": "test2"}, captured.CustomAttributes)

	s.Require().Len(s.sink.Created, 1)
	ev := s.sink.Created[0]
	s.Equal(int64(777), ev.CredentialID)
	s.Equal(int64(7), ev.CourseID)
	s.Equal(int64(9), ev.UserID)
	s.Equal("2024-06-01", ev.IssuedOn)
}

func (s *DirectorySuite) TestEnsureCredentialWithoutEmit() {
	s.client.createCredential = func(req issuer.CreateCredentialRequest) (issuer.Credential, error) {
		return issuer.Credential{ID: 1}, nil
	}

	_, err := s.creds.EnsureCredential(context.Background(), directory.IssueRequest{
		RecipientEmail: "a@example.com", GroupID: 1,
	})
	s.Require().NoError(err)
	s.Empty(s.sink.Created)
}

func (s *DirectorySuite) TestEnsureCredentialFailureWrapsSentinel() {
	s.client.createCredential = func(issuer.CreateCredentialRequest) (issuer.Credential, error) {
		return issuer.Credential{}, errors.New("upstream 422")
	}

	_, err := s.creds.EnsureCredential(context.Background(), directory.IssueRequest{GroupID: 1})
	s.Require().ErrorIs(err, sentinel.ErrCredentialCreate)
	s.Empty(s.sink.Created)
}

func (s *DirectorySuite) TestEnsureCredentialLegacy() {
	var captured issuer.LegacyCredentialRequest
	s.client.createLegacy = func(req issuer.LegacyCredentialRequest) (issuer.Credential, error) {
		captured = req
		return issuer.Credential{ID: 5}, nil
	}

	cred, err := s.creds.EnsureCredentialLegacy(context.Background(), directory.LegacyIssueRequest{
		IssueRequest: directory.IssueRequest{
			RecipientName:  "Bob",
			RecipientEmail: "bob@example.com",
		},
		GroupName:  "legacy-template",
		CourseName: "Old Course",
	})
	s.Require().NoError(err)
	s.Equal(int64(5), cred.ID)
	s.Equal("legacy-template", captured.GroupName)
	s.Equal("Old Course", captured.CourseName)
}
