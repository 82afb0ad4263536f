package bulletin

import (
	"context"
	"errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
)

var (
	// errors
	ErrStudentNotFound = errors.New("student not found")
	ErrClassNotFound   = errors.New("class not found")
)

type (
	// Repository reads rosters and grades from the school's data store.
	Repository interface {
		// ClassRoster returns the students of className ordered by last then first name.
		ClassRoster(ctx context.Context, className string) ([]grading.StudentIdentity, error)
		Student(ctx context.Context, id string) (grading.StudentIdentity, error)
		// PeriodGrades returns the entries of period keyed by student ID, in subject order.
		// Students without entries are absent from the map.
		PeriodGrades(ctx context.Context, studentIDs []string, period grading.Period) (map[string][]grading.GradeEntry, error)
	}

	Service struct {
		repo     Repository
		composer Composer
		batch    *BatchGenerator
		notifier *Notifier
	}
)

func NewService(repo Repository, composer Composer, batch *BatchGenerator, notifier *Notifier) *Service {
	return &Service{
		repo:     repo,
		composer: composer,
		batch:    batch,
		notifier: notifier,
	}
}

func checkPeriod(period grading.Period) error {
	if !period.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "period", Error: "unknown period"})
	}
	return nil
}

// Preview composes the bulletin of one student; nothing is saved.
func (svc *Service) Preview(ctx context.Context, studentID string, period grading.Period) (*Document, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}
	student, err := svc.repo.Student(ctx, studentID)
	if err != nil {
		return nil, err
	}
	grades, err := svc.repo.PeriodGrades(ctx, []string{student.ID}, period)
	if err != nil {
		return nil, err
	}
	return svc.composer.Compose(student, grades[student.ID], period)
}

// GenerateClass saves the bulletins of every student of className.
func (svc *Service) GenerateClass(ctx context.Context, className string, period grading.Period) (*BatchRunResult, error) {
	roster, grades, err := svc.load(ctx, className, period)
	if err != nil {
		return nil, err
	}
	return svc.batch.GenerateForClass(ctx, roster, grades, period)
}

// NotifyClass tells the guardians of className that bulletins are ready.
func (svc *Service) NotifyClass(ctx context.Context, className string, period grading.Period) (*NotificationSummary, error) {
	roster, grades, err := svc.load(ctx, className, period)
	if err != nil {
		return nil, err
	}
	return svc.notifier.NotifyGuardians(ctx, roster, grades, period)
}

func (svc *Service) load(ctx context.Context, className string, period grading.Period) (
	[]grading.StudentIdentity,
	map[string][]grading.GradeEntry,
	error,
) {
	if err := checkPeriod(period); err != nil {
		return nil, nil, err
	}
	roster, err := svc.repo.ClassRoster(ctx, core.CleanString(className))
	if err != nil {
		return nil, nil, err
	}
	if len(roster) == 0 {
		return nil, nil, ErrClassNotFound
	}
	ids := make([]string, len(roster))
	for i, student := range roster {
		ids[i] = student.ID
	}
	grades, err := svc.repo.PeriodGrades(ctx, ids, period)
	if err != nil {
		return nil, nil, err
	}
	return roster, grades, nil
}
