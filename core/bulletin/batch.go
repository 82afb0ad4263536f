package bulletin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
)

// ReasonNoGrades is the skip reason of a student without entries for the period.
const ReasonNoGrades = "no grades for period"

type (
	GeneratedBulletin struct {
		StudentID       string          `json:"student_id"`
		StudentName     string          `json:"student_name"`
		Filename        string          `json:"filename"`
		WeightedAverage float64         `json:"weighted_average"`
		Mention         grading.Mention `json:"mention"`
	}

	SkippedStudent struct {
		StudentID   string `json:"student_id"`
		StudentName string `json:"student_name"`
		Reason      string `json:"reason"`
	}

	// BatchRunResult is the manifest of one class-wide run. Both lists follow roster order.
	BatchRunResult struct {
		RunID      string              `json:"run_id"`
		Period     grading.Period      `json:"period"`
		Generated  []GeneratedBulletin `json:"generated"`
		Skipped    []SkippedStudent    `json:"skipped"`
		StartedAt  time.Time           `json:"started_at"`
		FinishedAt time.Time           `json:"finished_at"`
	}
)

func (r *BatchRunResult) skip(student grading.StudentIdentity, reason string) {
	r.Skipped = append(r.Skipped, SkippedStudent{
		StudentID:   student.ID,
		StudentName: student.FullName(),
		Reason:      reason,
	})
}

// BatchGenerator produces and saves the bulletins of a whole class, one student at a time.
type BatchGenerator struct {
	Composer Composer
	Sink     Sink
	Throttle ThrottlePolicy // nil means no pacing
	Logger   core.Logger
}

// GenerateForClass composes and saves a bulletin for every student of roster with entries for period.
// Only unusable arguments are returned as errors, before any work starts; per-student failures are
// reported in the result's Skipped list. Cancelling ctx skips the students not yet processed.
func (g *BatchGenerator) GenerateForClass(
	ctx context.Context,
	roster []grading.StudentIdentity,
	gradesByStudent map[string][]grading.GradeEntry,
	period grading.Period,
) (*BatchRunResult, error) {
	switch {
	case roster == nil:
		return nil, core.NewArgumentError("missing roster")
	case !period.Valid():
		return nil, core.NewArgumentError("unknown period: " + period.String())
	case g.Composer == nil:
		return nil, core.NewArgumentError("missing composer")
	case g.Sink == nil:
		return nil, core.NewArgumentError("missing sink")
	}
	throttle, log := g.Throttle.start(), loggerOrDiscard(g.Logger)

	res := &BatchRunResult{
		RunID:     uuid.New().String(),
		Period:    period,
		Generated: make([]GeneratedBulletin, 0, len(roster)),
		Skipped:   make([]SkippedStudent, 0),
		StartedAt: time.Now(),
	}
	names := make(filenameSet, len(roster))

	for i, student := range roster {
		if err := ctx.Err(); err != nil {
			res.abort(roster[i:], err, log)
			break
		}
		entries := gradesByStudent[student.ID]
		if len(entries) == 0 {
			res.skip(student, ReasonNoGrades)
			continue
		}
		if err := throttle.Wait(ctx); err != nil {
			res.abort(roster[i:], err, log)
			break
		}

		doc, err := composeSafely(g.Composer, student, entries, period)
		if err != nil {
			log.Warn("bulletin: composition failed", err, map[string]interface{}{"run_id": res.RunID, "student_id": student.ID})
			res.skip(student, err.Error())
			continue
		}
		filename := names.claim(doc.Filename)
		if err := doc.SaveAs(ctx, g.Sink, filename); err != nil {
			log.Warn("bulletin: save failed", err, map[string]interface{}{"run_id": res.RunID, "student_id": student.ID})
			res.skip(student, err.Error())
			continue
		}

		res.Generated = append(res.Generated, GeneratedBulletin{
			StudentID:       student.ID,
			StudentName:     student.FullName(),
			Filename:        filename,
			WeightedAverage: doc.Result.WeightedAverage,
			Mention:         doc.Result.Mention,
		})
	}

	res.FinishedAt = time.Now()
	log.Info("bulletin: batch finished", map[string]interface{}{
		"run_id":    res.RunID,
		"period":    period.String(),
		"roster":    len(roster),
		"generated": len(res.Generated),
		"skipped":   len(res.Skipped),
	})
	return res, nil
}

func (r *BatchRunResult) abort(rest []grading.StudentIdentity, err error, log core.Logger) {
	log.Warn("bulletin: batch aborted", err, map[string]interface{}{"run_id": r.RunID, "remaining": len(rest)})
	for _, student := range rest {
		r.skip(student, err.Error())
	}
}

// composeSafely turns a composer panic into an error scoped to the student.
func composeSafely(
	composer Composer,
	student grading.StudentIdentity,
	entries []grading.GradeEntry,
	period grading.Period,
) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, errors.Errorf("composition panicked: %v", r)
		}
	}()
	doc, err = composer.Compose(student, entries, period)
	if err == nil && doc == nil {
		err = errors.New("composer returned no document")
	}
	return doc, err
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...interface{}) {}
func (discardLogger) Info(string, ...interface{})  {}
func (discardLogger) Warn(string, ...interface{})  {}
func (discardLogger) Error(string, ...interface{}) {}
func (discardLogger) Fatal(string, ...interface{}) {}

func loggerOrDiscard(log core.Logger) core.Logger {
	if log == nil {
		return discardLogger{}
	}
	return log
}
