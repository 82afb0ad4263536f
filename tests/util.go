package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
	"github.com/trezcool/masomo/storage/database"
)

// ClassName is the class seeded by SeedClass.
const ClassName = "6e A"

// Seeder stores students and grades; implemented by every repository.
type Seeder interface {
	SaveStudent(ctx context.Context, s grading.StudentIdentity) error
	ReplaceGrades(ctx context.Context, studentID string, period grading.Period, entries []grading.GradeEntry) error
}

// PrepareDB opens the test database, migrates it and empties its tables.
// The test is skipped when no database is reachable.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Database.Name = "masomo_test"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		t.Skipf("no test database: %v", err)
	}

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	if _, err = db.Exec("TRUNCATE students, grades RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncating tables failed: %v", err)
	}
	return db
}

func Score(v float64) null.Float64 { return null.Float64From(v) }

// SeedClass stores a class of four students for Term1:
//   - "1" Amani Kabila: graded, with a guardian contact
//   - "2" Baraka Lumumba: no grades, no guardian contact
//   - "3" Chiku Mbuyi: partially graded, with a guardian contact
//   - "4" Dalia Ngoy: entries without scores, with a guardian contact
func SeedClass(t *testing.T, repo Seeder) []grading.StudentIdentity {
	t.Helper()
	ctx := context.Background()

	roster := []grading.StudentIdentity{
		{ID: "1", FirstName: "Amani", LastName: "Kabila", ClassName: ClassName, GuardianName: "Mme Kabila", GuardianContact: "kabila@test.test"},
		{ID: "2", FirstName: "Baraka", LastName: "Lumumba", ClassName: ClassName},
		{ID: "3", FirstName: "Chiku", LastName: "Mbuyi", ClassName: ClassName, GuardianName: "M. Mbuyi", GuardianContact: "mbuyi@test.test"},
		{ID: "4", FirstName: "Dalia", LastName: "Ngoy", ClassName: ClassName, GuardianContact: "ngoy@test.test"},
	}
	grades := map[string][]grading.GradeEntry{
		"1": {
			{SubjectName: "Mathématiques", Score: Score(16), Weight: 4, Comment: "Très bon trimestre"},
			{SubjectName: "Français", Score: Score(13), Weight: 3},
		},
		"3": {
			{SubjectName: "Mathématiques", Score: Score(9), Weight: 4},
			{SubjectName: "Français", Weight: 3},
		},
		"4": {
			{SubjectName: "Mathématiques", Weight: 4},
		},
	}

	for _, s := range roster {
		if err := repo.SaveStudent(ctx, s); err != nil {
			t.Fatalf("SaveStudent() failed: %v", err)
		}
		if entries, ok := grades[s.ID]; ok {
			if err := repo.ReplaceGrades(ctx, s.ID, grading.Term1, entries); err != nil {
				t.Fatalf("ReplaceGrades() failed: %v", err)
			}
		}
	}
	return roster
}
