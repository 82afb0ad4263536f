package bulletin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo/core/grading"
)

var fixedNow = time.Date(2021, time.March, 26, 10, 30, 0, 0, time.UTC)

func newTestComposer() *PDFComposer {
	return NewPDFComposer(Options{
		InstitutionName: "Complexe Scolaire Les Étoiles",
		Now:             func() time.Time { return fixedNow },
	})
}

func entry(subject string, score float64, weight int) grading.GradeEntry {
	return grading.GradeEntry{SubjectName: subject, Score: null.Float64From(score), Weight: weight}
}

func ungraded(subject string, weight int) grading.GradeEntry {
	return grading.GradeEntry{SubjectName: subject, Weight: weight}
}

func student(id, first, last, contact string) grading.StudentIdentity {
	return grading.StudentIdentity{
		ID:              id,
		FirstName:       first,
		LastName:        last,
		ClassName:       "6e A",
		GuardianName:    "Parent " + last,
		GuardianContact: contact,
	}
}

// memSink keeps saved files in memory.
type memSink struct {
	mu     sync.Mutex
	files  map[string][]byte
	order  []string
	failOn map[string]bool
}

func newMemSink() *memSink {
	return &memSink{files: make(map[string][]byte), failOn: make(map[string]bool)}
}

func (s *memSink) Save(_ context.Context, filename string, r io.Reader) error {
	if s.failOn[filename] {
		return errors.New("disk full")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[filename] = buf.Bytes()
	s.order = append(s.order, filename)
	return nil
}

// stubComposer delegates to a real composer except for the listed students.
type stubComposer struct {
	next    Composer
	fail    map[string]error
	panicOn map[string]bool
}

func (c *stubComposer) Compose(s grading.StudentIdentity, entries []grading.GradeEntry, p grading.Period) (*Document, error) {
	if c.panicOn[s.ID] {
		panic("font not found")
	}
	if err := c.fail[s.ID]; err != nil {
		return nil, err
	}
	return c.next.Compose(s, entries, p)
}

// countingThrottle counts waits and cancels ctx after a given number of them.
type countingThrottle struct {
	waits    int
	cancelAt int
	cancel   context.CancelFunc
}

func (t *countingThrottle) Wait(ctx context.Context) error {
	t.waits++
	if t.cancel != nil && t.waits == t.cancelAt {
		t.cancel()
	}
	return ctx.Err()
}

type fakeTransport struct {
	sent   []Notification
	failOn map[string]error
}

func (tr *fakeTransport) Send(_ context.Context, n Notification) error {
	if err := tr.failOn[n.GuardianContact]; err != nil {
		return err
	}
	tr.sent = append(tr.sent, n)
	return nil
}

type fakeRepo struct {
	students []grading.StudentIdentity
	grades   map[grading.Period]map[string][]grading.GradeEntry
	err      error
}

func (r *fakeRepo) ClassRoster(_ context.Context, className string) ([]grading.StudentIdentity, error) {
	if r.err != nil {
		return nil, r.err
	}
	var roster []grading.StudentIdentity
	for _, s := range r.students {
		if s.ClassName == className {
			roster = append(roster, s)
		}
	}
	return roster, nil
}

func (r *fakeRepo) Student(_ context.Context, id string) (grading.StudentIdentity, error) {
	for _, s := range r.students {
		if s.ID == id {
			return s, nil
		}
	}
	return grading.StudentIdentity{}, ErrStudentNotFound
}

func (r *fakeRepo) PeriodGrades(_ context.Context, ids []string, p grading.Period) (map[string][]grading.GradeEntry, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string][]grading.GradeEntry)
	for _, id := range ids {
		if entries, ok := r.grades[p][id]; ok {
			out[id] = entries
		}
	}
	return out, nil
}

func studentIDs(ss []SkippedStudent) []string {
	ids := make([]string, len(ss))
	for i, s := range ss {
		ids[i] = s.StudentID
	}
	return ids
}
