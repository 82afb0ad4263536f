package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/bulletin"
	"github.com/trezcool/masomo/core/grading"
)

const studentColumns = "id, first_name, last_name, class_name, guardian_name, guardian_contact"

type gradeRow struct {
	StudentID string `db:"student_id"`
	grading.GradeEntry
}

type Repository struct {
	db core.DBExecutor
}

var _ bulletin.Repository = (*Repository)(nil)

func NewRepository(db core.DBExecutor) *Repository {
	return &Repository{db: db}
}

// WithinTx runs fn with a repository bound to a new transaction.
// The transaction is committed when fn returns nil and rolled back otherwise.
func WithinTx(ctx context.Context, db *sqlx.DB, fn func(repo *Repository) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return dbError(err, "beginning transaction")
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err = fn(NewRepository(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// dbError turns a lost database connection into a shutdown error; the API cannot serve without it.
func dbError(err error, msg string) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return core.NewShutdownError(msg + ": database connection lost: " + err.Error())
	}
	return errors.Wrap(err, msg)
}

func (repo *Repository) ClassRoster(ctx context.Context, className string) ([]grading.StudentIdentity, error) {
	roster := make([]grading.StudentIdentity, 0)
	q := repo.db.Rebind("SELECT " + studentColumns + " FROM students WHERE class_name = ? ORDER BY last_name, first_name, id")
	if err := repo.db.SelectContext(ctx, &roster, q, className); err != nil {
		return nil, dbError(err, "selecting roster")
	}
	return roster, nil
}

func (repo *Repository) Student(ctx context.Context, id string) (grading.StudentIdentity, error) {
	var s grading.StudentIdentity
	q := repo.db.Rebind("SELECT " + studentColumns + " FROM students WHERE id = ?")
	if err := repo.db.GetContext(ctx, &s, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, bulletin.ErrStudentNotFound
		}
		return s, dbError(err, "selecting student")
	}
	return s, nil
}

func (repo *Repository) PeriodGrades(ctx context.Context, studentIDs []string, period grading.Period) (map[string][]grading.GradeEntry, error) {
	grades := make(map[string][]grading.GradeEntry)
	if len(studentIDs) == 0 {
		return grades, nil
	}

	q, args, err := sqlx.In(
		`SELECT student_id, subject_name, score, weight, comment FROM grades
		WHERE period = ? AND student_id IN (?)
		ORDER BY student_id, position, id`,
		period.String(), studentIDs,
	)
	if err != nil {
		return nil, err
	}
	var rows []gradeRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, dbError(err, "selecting grades")
	}
	for _, row := range rows {
		grades[row.StudentID] = append(grades[row.StudentID], row.GradeEntry)
	}
	return grades, nil
}

// SaveStudent inserts s, or updates it if its ID already exists.
func (repo *Repository) SaveStudent(ctx context.Context, s grading.StudentIdentity) error {
	q := repo.db.Rebind(`INSERT INTO students (` + studentColumns + `) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			class_name = EXCLUDED.class_name,
			guardian_name = EXCLUDED.guardian_name,
			guardian_contact = EXCLUDED.guardian_contact,
			updated_at = now()`)
	_, err := repo.db.ExecContext(ctx, q, s.ID, s.FirstName, s.LastName, s.ClassName, s.GuardianName, s.GuardianContact)
	return errors.Wrap(err, "saving student")
}

// ReplaceGrades replaces the entries of a student for period; entries keep their order.
// Run it through WithinTx to make it atomic.
func (repo *Repository) ReplaceGrades(ctx context.Context, studentID string, period grading.Period, entries []grading.GradeEntry) error {
	q := repo.db.Rebind("DELETE FROM grades WHERE student_id = ? AND period = ?")
	if _, err := repo.db.ExecContext(ctx, q, studentID, period.String()); err != nil {
		return errors.Wrap(err, "deleting grades")
	}

	q = repo.db.Rebind(`INSERT INTO grades (student_id, period, position, subject_name, score, weight, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for i, e := range entries {
		if _, err := repo.db.ExecContext(ctx, q, studentID, period.String(), i, e.SubjectName, e.Score, e.Weight, e.Comment); err != nil {
			return errors.Wrapf(err, "inserting grade %q", e.SubjectName)
		}
	}
	return nil
}
