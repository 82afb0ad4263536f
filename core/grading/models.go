package grading

import (
	"strings"

	"github.com/volatiletech/null/v8"
)

// MaxScore is the upper bound of the grading scale.
const MaxScore = 20

// Period is an academic sub-interval of the school year.
type Period string

const (
	Term1 Period = "Trimestre 1"
	Term2 Period = "Trimestre 2"
	Term3 Period = "Trimestre 3"
)

// Periods lists the periods of a school year, in order.
var Periods = []Period{Term1, Term2, Term3}

// Index returns the position of p in Periods, or -1 if p is unknown.
func (p Period) Index() int {
	for i, period := range Periods {
		if period == p {
			return i
		}
	}
	return -1
}

func (p Period) Valid() bool { return p.Index() >= 0 }

// Slug replaces spaces with underscores, eg. "Trimestre 1" -> "Trimestre_1".
func (p Period) Slug() string {
	return strings.ReplaceAll(strings.TrimSpace(string(p)), " ", "_")
}

func (p Period) String() string { return string(p) }

// GradeEntry is one graded subject of a student for a period.
// An invalid Score means no grade was recorded yet.
type GradeEntry struct {
	SubjectName string       `json:"subject_name" db:"subject_name" validate:"required,notblank"`
	Score       null.Float64 `json:"score" db:"score" validate:"omitempty,gte=0,lte=20,hundredths"`
	Weight      int          `json:"weight" db:"weight" validate:"gte=0"`
	Comment     string       `json:"comment,omitempty" db:"comment"`
}

// Graded reports whether a score was recorded for the entry.
func (e GradeEntry) Graded() bool { return e.Score.Valid }

// StudentIdentity holds what a bulletin needs to know about a student.
type StudentIdentity struct {
	ID              string `json:"id" db:"id" validate:"required"`
	FirstName       string `json:"first_name" db:"first_name" validate:"required,notblank"`
	LastName        string `json:"last_name" db:"last_name" validate:"required,notblank"`
	ClassName       string `json:"class_name" db:"class_name"`
	GuardianName    string `json:"guardian_name,omitempty" db:"guardian_name"`
	GuardianContact string `json:"guardian_contact,omitempty" db:"guardian_contact" validate:"omitempty,email"`
}

func (s StudentIdentity) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
}

// AggregateResult is derived from a set of grade entries; it is never cached.
type AggregateResult struct {
	WeightedAverage float64 `json:"weighted_average"`
	Mention         Mention `json:"mention"`
	EntryCount      int     `json:"entry_count"` // entries with a recorded score
}

// HasGrades reports whether at least one entry carries a recorded score.
func HasGrades(entries []GradeEntry) bool {
	for _, e := range entries {
		if e.Graded() {
			return true
		}
	}
	return false
}
