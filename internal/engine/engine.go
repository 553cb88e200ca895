// Package engine evaluates host completion events against the per-course
// instances and decides when a credential is earned, issued, or upgraded.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"credbridge/internal/directory"
	"credbridge/internal/event"
	"credbridge/internal/hoststore"
	"credbridge/internal/instance"
	"credbridge/internal/issuer"
	"credbridge/internal/mapping"
	"credbridge/internal/platform/metrics"
)

// errRepeatAttempt aborts a completion-activities evaluation when any quiz
// in the set has more than one finished attempt. Only first attempts can
// earn through that branch.
var errRepeatAttempt = errors.New("repeat attempt")

// HostStore is the read surface the engine needs from the host data.
type HostStore interface {
	GetCourse(ctx context.Context, id int64) (hoststore.Course, error)
	GetUser(ctx context.Context, id int64) (hoststore.User, error)
	GetQuiz(ctx context.Context, id int64) (hoststore.Quiz, error)
	ListQuizzesByCourse(ctx context.Context, courseID int64) ([]hoststore.Quiz, error)
	BestGrade(ctx context.Context, quizID, userID int64) (float64, bool, error)
	ListFinishedAttempts(ctx context.Context, courseID, userID int64) ([]hoststore.QuizAttempt, error)
	GradeValue(ctx context.Context, gradeItemID, userID int64) (float64, bool, error)
	EnrolmentStart(ctx context.Context, courseID, userID int64) (int64, error)
}

// CredentialDirectory is the slice of the credential directory the engine
// drives.
type CredentialDirectory interface {
	FindExisting(ctx context.Context, groupID int64, email string) (issuer.Credential, bool, error)
	GetCredential(ctx context.Context, credentialID int64) (issuer.Credential, error)
	EnsureCredential(ctx context.Context, req directory.IssueRequest) (issuer.Credential, error)
	EnsureCredentialLegacy(ctx context.Context, req directory.LegacyIssueRequest) (issuer.Credential, error)
}

// TemplateDirectory resolves legacy achievement names to group ids.
type TemplateDirectory interface {
	ListTemplates(ctx context.Context) (map[string]int64, error)
}

// EvidenceClient writes evidence items on existing credentials.
type EvidenceClient interface {
	CreateEvidenceItem(ctx context.Context, credentialID int64, item issuer.EvidenceItemRequest) (issuer.EvidenceItem, error)
	CreateEvidenceItemGrade(ctx context.Context, grade, description string, credentialID int64, hidden bool) (issuer.EvidenceItem, error)
	CreateEvidenceItemDuration(ctx context.Context, start, end time.Time, credentialID int64, hidden bool) (issuer.EvidenceItem, error)
	UpdateEvidenceItemGrade(ctx context.Context, credentialID, itemID int64, grade string) (issuer.EvidenceItem, error)
}

// InstanceLister returns the instances attached to a course.
type InstanceLister interface {
	ListByCourse(ctx context.Context, courseID int64) ([]instance.Instance, error)
}

// AttributeResolver resolves a mapping list into custom attributes.
type AttributeResolver interface {
	Resolve(ctx context.Context, list mapping.List, courseID, userID int64) (map[string]string, error)
}

// Engine holds the wiring for both event entry points. It keeps no per-event
// state; every evaluation reads the host store and the Issuer on demand.
type Engine struct {
	host      HostStore
	instances InstanceLister
	creds     CredentialDirectory
	templates TemplateDirectory
	evidence  EvidenceClient
	resolver  AttributeResolver
	sink      event.Sink
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// hostBaseURL builds course links for legacy issuances; empty disables
	// them.
	hostBaseURL string
}

func New(host HostStore, instances InstanceLister, creds CredentialDirectory, templates TemplateDirectory, evidence EvidenceClient, resolver AttributeResolver, sink event.Sink, hostBaseURL string, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		host:        host,
		instances:   instances,
		creds:       creds,
		templates:   templates,
		evidence:    evidence,
		resolver:    resolver,
		sink:        sink,
		logger:      logger,
		metrics:     m,
		hostBaseURL: hostBaseURL,
	}
}

// OnQuizSubmitted handles a quiz-attempt-submitted event. Each instance
// attached to the course is evaluated independently; a failed instance is
// logged and skipped so other instances still run. A repeat attempt on a
// completion activity silences the whole event.
func (e *Engine) OnQuizSubmitted(ctx context.Context, userID, quizID, courseID int64) error {
	user, err := e.host.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	quiz, err := e.host.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	insts, err := e.instances.ListByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	for _, inst := range insts {
		err := e.evaluateQuiz(ctx, inst, user, quiz, courseID)
		if errors.Is(err, errRepeatAttempt) {
			e.logger.InfoContext(ctx, "repeat attempt, event ignored",
				"quiz_id", quizID, "user_id", userID)
			return nil
		}
		if err != nil {
			e.logger.WarnContext(ctx, "instance evaluation failed",
				"instance_id", inst.ID, "user_id", userID, "error", err)
		}
	}
	return nil
}

// OnCourseCompleted handles a course-completed event. Instances configured
// with completion activities issue unconditionally; the host fires the
// completion event at most once per user.
func (e *Engine) OnCourseCompleted(ctx context.Context, userID, courseID int64) error {
	user, err := e.host.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	insts, err := e.instances.ListByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	for _, inst := range insts {
		if len(instance.DecodeActivities(inst.CompletionActivities)) == 0 {
			continue
		}
		target, err := e.resolveTarget(ctx, inst)
		if err != nil {
			e.logger.WarnContext(ctx, "issuer target unresolved",
				"instance_id", inst.ID, "error", err)
			continue
		}
		if _, err := e.issue(ctx, inst, user, courseID, target, 0, false); err != nil {
			e.logger.WarnContext(ctx, "issuance failed",
				"instance_id", inst.ID, "user_id", userID, "error", err)
		}
	}
	return nil
}

func (e *Engine) evaluateQuiz(ctx context.Context, inst instance.Instance, user hoststore.User, quiz hoststore.Quiz, courseID int64) error {
	acts := instance.DecodeActivities(inst.CompletionActivities)
	if inst.FinalQuiz == 0 && len(acts) == 0 {
		return nil
	}

	// The repeat-attempt gate runs before either branch can act. Any quiz in
	// the completion set with more than one finished attempt aborts the whole
	// handler, including later events for other quizzes in the set.
	_, tracked := acts[quiz.ID]
	var attempts []hoststore.QuizAttempt
	if tracked {
		var err error
		attempts, err = e.host.ListFinishedAttempts(ctx, courseID, user.ID)
		if err != nil {
			return err
		}
		finished := make(map[int64]int)
		for _, a := range attempts {
			if _, ok := acts[a.QuizID]; ok {
				finished[a.QuizID]++
			}
		}
		for _, n := range finished {
			if n > 1 {
				return errRepeatAttempt
			}
		}
	}

	var errs []error
	if inst.FinalQuiz != 0 && quiz.ID == inst.FinalQuiz {
		if err := e.finalQuiz(ctx, inst, user, quiz, courseID); err != nil {
			errs = append(errs, err)
		}
	}
	if tracked {
		if err := e.completion(ctx, inst, user, quiz, courseID, acts, attempts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// finalQuiz applies the passing-grade rule: upgrade the grade evidence on an
// existing credential, or issue a fresh one when the score clears the bar.
func (e *Engine) finalQuiz(ctx context.Context, inst instance.Instance, user hoststore.User, quiz hoststore.Quiz, courseID int64) error {
	score, err := e.quizScore(ctx, quiz, user.ID)
	if err != nil {
		return err
	}

	target, err := e.resolveTarget(ctx, inst)
	if err != nil {
		return err
	}
	existing, found, err := e.creds.FindExisting(ctx, target.groupID, user.Email)
	if err != nil {
		return err
	}
	if found {
		return e.upgradeGrade(ctx, existing, int(score), courseID, user.ID)
	}
	if score >= inst.PassingGrade {
		_, err := e.issue(ctx, inst, user, courseID, target, int(score), true)
		return err
	}
	return nil
}

// completion walks the completion-activity set. The triggering quiz counts as
// attempted; every other activity counts when the user has a finished attempt
// on it. Once all activities are complete and no credential exists, one is
// issued.
func (e *Engine) completion(ctx context.Context, inst instance.Instance, user hoststore.User, quiz hoststore.Quiz, courseID int64, acts instance.Activities, attempts []hoststore.QuizAttempt) error {
	attempted := map[int64]bool{quiz.ID: true}
	for _, a := range attempts {
		attempted[a.QuizID] = true
	}
	for id := range acts {
		if attempted[id] {
			acts[id] = true
		}
	}
	if !acts.AllComplete() {
		return nil
	}

	target, err := e.resolveTarget(ctx, inst)
	if err != nil {
		return err
	}
	_, found, err := e.creds.FindExisting(ctx, target.groupID, user.Email)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	_, err = e.issue(ctx, inst, user, courseID, target, 0, false)
	return err
}

func (e *Engine) upgradeGrade(ctx context.Context, listed issuer.Credential, newGrade int, courseID, userID int64) error {
	// Listing responses do not carry evidence items; refetch the credential
	// by id before locating the grade item.
	cred, err := e.creds.GetCredential(ctx, listed.ID)
	if err != nil {
		return err
	}
	item, ok := cred.GradeEvidence()
	if !ok {
		return nil
	}
	old, ok := item.GradeValue()
	if !ok || old >= newGrade {
		return nil
	}
	if _, err := e.evidence.UpdateEvidenceItemGrade(ctx, cred.ID, item.ID, strconv.Itoa(newGrade)); err != nil {
		return err
	}
	e.metrics.GradeUpgrades.Inc()
	e.logger.InfoContext(ctx, "grade evidence upgraded",
		"credential_id", cred.ID, "old_grade", old, "new_grade", newGrade)
	if e.sink != nil {
		err := e.sink.PublishGradeUpgraded(ctx, event.GradeUpgraded{
			CredentialID: cred.ID,
			CourseID:     courseID,
			UserID:       userID,
			OldGrade:     old,
			NewGrade:     newGrade,
		})
		if err != nil {
			e.logger.WarnContext(ctx, "grade_upgraded event publish failed",
				"credential_id", cred.ID, "error", err)
		}
	}
	return nil
}

// quizScore is the user's best finished grade as a percentage, capped at 100.
// No finished attempt scores zero.
func (e *Engine) quizScore(ctx context.Context, quiz hoststore.Quiz, userID int64) (float64, error) {
	if quiz.MaxGrade <= 0 {
		return 0, nil
	}
	best, found, err := e.host.BestGrade(ctx, quiz.ID, userID)
	if err != nil || !found {
		return 0, err
	}
	score := best / quiz.MaxGrade * 100
	if score > 100 {
		score = 100
	}
	return score, nil
}

// issuerTarget is a resolved destination: the group id for lookups plus the
// legacy achievement name when the instance predates group ids.
type issuerTarget struct {
	groupID    int64
	legacyName string
}

func (e *Engine) resolveTarget(ctx context.Context, inst instance.Instance) (issuerTarget, error) {
	if inst.GroupID != 0 {
		return issuerTarget{groupID: inst.GroupID}, nil
	}
	if inst.AchievementID == "" {
		return issuerTarget{}, fmt.Errorf("instance %d has no issuer target", inst.ID)
	}
	templates, err := e.templates.ListTemplates(ctx)
	if err != nil {
		return issuerTarget{}, err
	}
	groupID, ok := templates[inst.AchievementID]
	if !ok {
		return issuerTarget{}, fmt.Errorf("template %q not found", inst.AchievementID)
	}
	return issuerTarget{groupID: groupID, legacyName: inst.AchievementID}, nil
}

func (e *Engine) issue(ctx context.Context, inst instance.Instance, user hoststore.User, courseID int64, target issuerTarget, grade int, hasGrade bool) (issuer.Credential, error) {
	attrs := e.resolveAttributes(ctx, inst, user, courseID)

	req := directory.IssueRequest{
		RecipientName:    user.FullName(),
		RecipientEmail:   user.Email,
		GroupID:          target.groupID,
		CustomAttributes: attrs,
		CourseID:         courseID,
		UserID:           user.ID,
		Emit:             true,
	}

	var cred issuer.Credential
	var err error
	if target.legacyName != "" {
		course, cerr := e.host.GetCourse(ctx, courseID)
		if cerr != nil {
			return issuer.Credential{}, cerr
		}
		cred, err = e.creds.EnsureCredentialLegacy(ctx, directory.LegacyIssueRequest{
			IssueRequest: req,
			GroupName:    target.legacyName,
			CourseName:   course.FullName,
			CourseLink:   e.courseLink(courseID),
		})
	} else {
		cred, err = e.creds.EnsureCredential(ctx, req)
	}
	if err != nil {
		return issuer.Credential{}, err
	}

	e.attachEvidence(ctx, cred.ID, inst, user, courseID, grade, hasGrade)
	return cred, nil
}

// resolveAttributes never fails issuance: a broken mapping document or grade
// read degrades to fewer attributes with a warning.
func (e *Engine) resolveAttributes(ctx context.Context, inst instance.Instance, user hoststore.User, courseID int64) map[string]string {
	attrs := map[string]string{}

	list, err := inst.MappingList()
	if err != nil {
		e.logger.WarnContext(ctx, "stored mapping document unreadable",
			"instance_id", inst.ID, "error", err)
	} else if list.Len() > 0 {
		resolved, err := e.resolver.Resolve(ctx, list, courseID, user.ID)
		if err != nil {
			e.logger.WarnContext(ctx, "attribute resolution failed",
				"instance_id", inst.ID, "error", err)
		} else {
			attrs = resolved
		}
	}

	if inst.IncludeGradeAttribute && inst.GradeAttributeKeyName != "" {
		value, found, err := e.host.GradeValue(ctx, inst.GradeAttributeGradeItemID, user.ID)
		if err != nil {
			e.logger.WarnContext(ctx, "grade attribute read failed",
				"instance_id", inst.ID, "error", err)
		} else if found {
			attrs[inst.GradeAttributeKeyName] = strconv.FormatFloat(value, 'f', -1, 64)
		}
	}
	return attrs
}

func (e *Engine) courseLink(courseID int64) string {
	if e.hostBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/course/view.php?id=%d", e.hostBaseURL, courseID)
}
