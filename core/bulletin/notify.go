package bulletin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
)

const (
	ReasonNoContact     = "no guardian contact"
	ReasonNoGradedEntry = "no graded entries"
)

// Notification is what a guardian receives once a bulletin is ready.
type Notification struct {
	GuardianName     string
	GuardianContact  string
	StudentName      string
	SubjectOrSummary string
	ScoreOrStatus    string
	CommentOrNote    string
	Period           grading.Period
	Attachment       *Document // optional
}

// Transport delivers notifications to guardians, eg. by email.
type Transport interface {
	Send(ctx context.Context, n Notification) error
}

type (
	NotificationOutcome struct {
		StudentID string `json:"student_id"`
		Contact   string `json:"contact"`
		Delivered bool   `json:"delivered"`
		Error     string `json:"error,omitempty"`
	}

	SkippedNotification struct {
		StudentID   string `json:"student_id"`
		StudentName string `json:"student_name"`
		Reason      string `json:"reason"`
	}

	// NotificationSummary accounts for every roster student: either in Outcomes or in Skipped.
	NotificationSummary struct {
		RunID     string                `json:"run_id"`
		Period    grading.Period        `json:"period"`
		Attempted int                   `json:"attempted"`
		Delivered int                   `json:"delivered"`
		Outcomes  []NotificationOutcome `json:"outcomes"`
		Skipped   []SkippedNotification `json:"skipped"`
	}
)

func (s *NotificationSummary) Failed() int { return s.Attempted - s.Delivered }

func (s *NotificationSummary) skip(student grading.StudentIdentity, reason string) {
	s.Skipped = append(s.Skipped, SkippedNotification{
		StudentID:   student.ID,
		StudentName: student.FullName(),
		Reason:      reason,
	})
}

// Notifier tells guardians that their student's bulletin is ready, one guardian at a time.
type Notifier struct {
	Transport Transport
	Throttle  ThrottlePolicy // nil means no pacing
	Composer  Composer // when set, the bulletin is attached to the notification
	Logger    core.Logger
}

// NotifyGuardians sends one notification per eligible student of roster: the student must have a
// guardian contact and at least one graded entry for period. Transport failures are recorded in the
// summary and never retried. Only unusable arguments are returned as errors.
func (n *Notifier) NotifyGuardians(
	ctx context.Context,
	roster []grading.StudentIdentity,
	gradesByStudent map[string][]grading.GradeEntry,
	period grading.Period,
) (*NotificationSummary, error) {
	switch {
	case roster == nil:
		return nil, core.NewArgumentError("missing roster")
	case !period.Valid():
		return nil, core.NewArgumentError("unknown period: " + period.String())
	case n.Transport == nil:
		return nil, core.NewArgumentError("missing notification transport")
	}
	throttle, log := n.Throttle.start(), loggerOrDiscard(n.Logger)

	sum := &NotificationSummary{
		RunID:    uuid.New().String(),
		Period:   period,
		Outcomes: make([]NotificationOutcome, 0, len(roster)),
		Skipped:  make([]SkippedNotification, 0),
	}

	for i, student := range roster {
		contact := core.CleanString(student.GuardianContact)
		entries := gradesByStudent[student.ID]
		switch {
		case contact == "":
			sum.skip(student, ReasonNoContact)
			continue
		case !grading.HasGrades(entries):
			sum.skip(student, ReasonNoGradedEntry)
			continue
		}
		if err := throttle.Wait(ctx); err != nil {
			log.Warn("bulletin: notifications aborted", err, map[string]interface{}{"run_id": sum.RunID, "remaining": len(roster) - i})
			for _, rest := range roster[i:] {
				sum.skip(rest, err.Error())
			}
			break
		}

		msg := n.notification(student, contact, entries, period, log)
		sum.Attempted++
		outcome := NotificationOutcome{StudentID: student.ID, Contact: contact}
		if err := sendSafely(ctx, n.Transport, msg); err != nil {
			log.Warn("bulletin: notification failed", err, map[string]interface{}{"run_id": sum.RunID, "student_id": student.ID})
			outcome.Error = err.Error()
		} else {
			outcome.Delivered = true
			sum.Delivered++
		}
		sum.Outcomes = append(sum.Outcomes, outcome)
	}

	log.Info("bulletin: notifications finished", map[string]interface{}{
		"run_id":    sum.RunID,
		"period":    period.String(),
		"roster":    len(roster),
		"attempted": sum.Attempted,
		"delivered": sum.Delivered,
		"skipped":   len(sum.Skipped),
	})
	return sum, nil
}

func (n *Notifier) notification(
	student grading.StudentIdentity,
	contact string,
	entries []grading.GradeEntry,
	period grading.Period,
	log core.Logger,
) Notification {
	res := grading.Aggregate(entries)
	msg := Notification{
		GuardianName:     guardianName(student),
		GuardianContact:  contact,
		StudentName:      student.FullName(),
		SubjectOrSummary: fmt.Sprintf("Bulletin du %s disponible", period),
		ScoreOrStatus:    fmt.Sprintf("Moyenne générale : %s/20 - %s", formatScore(res.WeightedAverage), res.Mention.Label()),
		CommentOrNote:    fmt.Sprintf("%d matière(s) notée(s) sur %d", res.EntryCount, len(entries)),
		Period:           period,
	}
	if n.Composer != nil {
		// the notification goes out without the bulletin rather than not at all
		doc, err := composeSafely(n.Composer, student, entries, period)
		if err != nil {
			log.Warn("bulletin: attachment skipped", err, map[string]interface{}{"student_id": student.ID})
		} else {
			msg.Attachment = doc
		}
	}
	return msg
}

func guardianName(student grading.StudentIdentity) string {
	if name := core.CleanString(student.GuardianName); name != "" {
		return name
	}
	return "Parent/Tuteur de " + student.FullName()
}

func sendSafely(ctx context.Context, transport Transport, msg Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("transport panicked: %v", r)
		}
	}()
	return transport.Send(ctx, msg)
}
