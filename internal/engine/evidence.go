package engine

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"credbridge/internal/hoststore"
	"credbridge/internal/instance"
	"credbridge/internal/issuer"
	"credbridge/pkg/requestcontext"
)

const gradeEvidenceDescription = "Final Quiz Grade"

// attachEvidence decorates a freshly issued credential with grade, duration,
// and transcript evidence. Evidence failures never unwind the issuance; the
// credential already exists and each item is logged and skipped on error.
func (e *Engine) attachEvidence(ctx context.Context, credentialID int64, inst instance.Instance, user hoststore.User, courseID int64, grade int, hasGrade bool) {
	if hasGrade {
		description := gradeEvidenceDescription
		if quiz, err := e.host.GetQuiz(ctx, inst.FinalQuiz); err == nil && quiz.Name != "" {
			description = quiz.Name
		}
		// Failing grades are attached but stay hidden on the credential.
		hidden := grade < 50
		_, err := e.evidence.CreateEvidenceItemGrade(ctx, strconv.Itoa(grade), description, credentialID, hidden)
		if err != nil {
			e.logger.WarnContext(ctx, "grade evidence skipped",
				"credential_id", credentialID, "error", err)
		}
	}
	e.attachDuration(ctx, credentialID, user, courseID)
	e.attachTranscript(ctx, credentialID, user, courseID, inst.FinalQuiz)
}

// attachDuration records the span from enrolment start to now. Records with
// no enrolment fall back to the course start date; with neither, no duration
// evidence is written.
func (e *Engine) attachDuration(ctx context.Context, credentialID int64, user hoststore.User, courseID int64) {
	start, err := e.host.EnrolmentStart(ctx, courseID, user.ID)
	if err != nil {
		e.logger.WarnContext(ctx, "duration evidence skipped",
			"credential_id", credentialID, "error", err)
		return
	}
	if start == 0 {
		course, err := e.host.GetCourse(ctx, courseID)
		if err != nil {
			e.logger.WarnContext(ctx, "duration evidence skipped",
				"credential_id", credentialID, "error", err)
			return
		}
		start = course.StartDate
	}
	if start == 0 {
		return
	}
	end := requestcontext.Now(ctx)
	_, err = e.evidence.CreateEvidenceItemDuration(ctx, time.Unix(start, 0), end, credentialID, true)
	if err != nil {
		e.logger.WarnContext(ctx, "duration evidence skipped",
			"credential_id", credentialID, "error", err)
	}
}

type transcriptRow struct {
	Category string  `json:"category"`
	Percent  float64 `json:"percent"`
}

// attachTranscript summarizes the user's best grade on each non-final quiz as
// a single transcript evidence item. The transcript is only worth attaching
// when at least two thirds of those quizzes were attempted and the average
// score is passing.
func (e *Engine) attachTranscript(ctx context.Context, credentialID int64, user hoststore.User, courseID, finalQuizID int64) {
	quizzes, err := e.host.ListQuizzesByCourse(ctx, courseID)
	if err != nil {
		e.logger.WarnContext(ctx, "transcript evidence skipped",
			"credential_id", credentialID, "error", err)
		return
	}
	var (
		rows       []transcriptRow
		total      int
		totalScore float64
	)
	for _, quiz := range quizzes {
		if quiz.ID == finalQuizID || quiz.MaxGrade <= 0 {
			continue
		}
		total++
		best, found, err := e.host.BestGrade(ctx, quiz.ID, user.ID)
		if err != nil || !found {
			continue
		}
		percent := math.Min(best/quiz.MaxGrade*100, 100)
		totalScore += percent
		rows = append(rows, transcriptRow{Category: quiz.Name, Percent: percent})
	}
	if total == 0 || len(rows) == 0 {
		return
	}
	if float64(len(rows))/float64(total) < 0.66 || totalScore/float64(len(rows)) <= 50 {
		return
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return
	}
	_, err = e.evidence.CreateEvidenceItem(ctx, credentialID, issuer.EvidenceItemRequest{
		Description:  "Course Transcript",
		Category:     "transcript",
		StringObject: string(payload),
		Hidden:       true,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "transcript evidence skipped",
			"credential_id", credentialID, "error", err)
	}
}
