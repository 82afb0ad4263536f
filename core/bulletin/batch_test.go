package bulletin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
)

func classFixture() ([]grading.StudentIdentity, map[string][]grading.GradeEntry) {
	roster := []grading.StudentIdentity{
		student("1", "Amani", "Kabila", "kabila@test.test"),
		student("2", "Baraka", "Lumumba", ""),
		student("3", "Chiku", "Mbuyi", "mbuyi@test.test"),
		student("4", "Dalia", "Ngoy", "ngoy@test.test"),
	}
	grades := map[string][]grading.GradeEntry{
		"1": {entry("Maths", 16, 4), entry("Français", 13, 3)},
		// "2" has no grades
		"3": {entry("Maths", 9, 4), ungraded("Français", 3)},
		"4": {ungraded("Maths", 4)},
	}
	return roster, grades
}

func TestBatchGenerator_GenerateForClass(t *testing.T) {
	roster, grades := classFixture()
	sink := newMemSink()
	throttle := &countingThrottle{}
	g := &BatchGenerator{Composer: newTestComposer(), Sink: sink, Throttle: func() Throttle { return throttle }}

	res, err := g.GenerateForClass(context.Background(), roster, grades, grading.Term1)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, grading.Term1, res.Period)
	assert.Equal(t, len(roster), len(res.Generated)+len(res.Skipped))

	require.Len(t, res.Generated, 3)
	assert.Equal(t, "1", res.Generated[0].StudentID)
	assert.Equal(t, "3", res.Generated[1].StudentID)
	assert.Equal(t, "4", res.Generated[2].StudentID)
	assert.Equal(t, 14.71, res.Generated[0].WeightedAverage)
	assert.Equal(t, grading.Good, res.Generated[0].Mention)

	assert.Equal(t, []SkippedStudent{{StudentID: "2", StudentName: "Baraka Lumumba", Reason: ReasonNoGrades}}, res.Skipped)
	assert.Equal(t, []string{
		"Bulletin_Kabila_Amani_Trimestre_1.pdf",
		"Bulletin_Mbuyi_Chiku_Trimestre_1.pdf",
		"Bulletin_Ngoy_Dalia_Trimestre_1.pdf",
	}, sink.order)
	assert.Equal(t, 3, throttle.waits, "one wait per download")
}

func TestBatchGenerator_GenerateForClass_partialFailures(t *testing.T) {
	roster, grades := classFixture()
	sink := newMemSink()
	sink.failOn["Bulletin_Ngoy_Dalia_Trimestre_1.pdf"] = true
	composer := &stubComposer{
		next:    newTestComposer(),
		fail:    map[string]error{"1": errors.New("layout overflow")},
		panicOn: map[string]bool{"3": true},
	}
	g := &BatchGenerator{Composer: composer, Sink: sink}

	res, err := g.GenerateForClass(context.Background(), roster, grades, grading.Term1)
	require.NoError(t, err)

	assert.Empty(t, res.Generated)
	assert.Equal(t, []string{"1", "2", "3", "4"}, studentIDs(res.Skipped))
	assert.Equal(t, "layout overflow", res.Skipped[0].Reason)
	assert.Equal(t, ReasonNoGrades, res.Skipped[1].Reason)
	assert.Equal(t, "composition panicked: font not found", res.Skipped[2].Reason)
	assert.Contains(t, res.Skipped[3].Reason, "disk full")
	assert.Empty(t, sink.files)
}

func TestBatchGenerator_GenerateForClass_homonyms(t *testing.T) {
	roster := []grading.StudentIdentity{
		student("1", "Amani", "Kabila", ""),
		student("2", "Amani", "Kabila", ""),
	}
	grades := map[string][]grading.GradeEntry{
		"1": {entry("Maths", 12, 1)},
		"2": {entry("Maths", 15, 1)},
	}
	sink := newMemSink()
	g := &BatchGenerator{Composer: newTestComposer(), Sink: sink}

	res, err := g.GenerateForClass(context.Background(), roster, grades, grading.Term2)
	require.NoError(t, err)
	require.Len(t, res.Generated, 2)
	assert.Equal(t, "Bulletin_Kabila_Amani_Trimestre_2.pdf", res.Generated[0].Filename)
	assert.Equal(t, "Bulletin_Kabila_Amani_Trimestre_2_2.pdf", res.Generated[1].Filename)
	assert.Len(t, sink.files, 2)
}

func TestBatchGenerator_GenerateForClass_cancelled(t *testing.T) {
	roster, grades := classFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	throttle := &countingThrottle{cancelAt: 2, cancel: cancel}
	sink := newMemSink()
	g := &BatchGenerator{Composer: newTestComposer(), Sink: sink, Throttle: func() Throttle { return throttle }}

	res, err := g.GenerateForClass(ctx, roster, grades, grading.Term1)
	require.NoError(t, err)

	assert.Equal(t, len(roster), len(res.Generated)+len(res.Skipped))
	require.Len(t, res.Generated, 1)
	assert.Equal(t, "1", res.Generated[0].StudentID)
	assert.Equal(t, []string{"2", "3", "4"}, studentIDs(res.Skipped))
	assert.Equal(t, context.Canceled.Error(), res.Skipped[2].Reason)
	assert.Len(t, sink.files, 1)
}

func TestBatchGenerator_GenerateForClass_emptyRoster(t *testing.T) {
	g := &BatchGenerator{Composer: newTestComposer(), Sink: newMemSink()}
	res, err := g.GenerateForClass(context.Background(), []grading.StudentIdentity{}, nil, grading.Term1)
	require.NoError(t, err)
	assert.Empty(t, res.Generated)
	assert.Empty(t, res.Skipped)
}

func TestBatchGenerator_GenerateForClass_argumentErrors(t *testing.T) {
	roster, grades := classFixture()
	tests := []struct {
		name   string
		g      *BatchGenerator
		roster []grading.StudentIdentity
		period grading.Period
	}{
		{name: "nil roster", g: &BatchGenerator{Composer: newTestComposer(), Sink: newMemSink()}, period: grading.Term1},
		{name: "unknown period", g: &BatchGenerator{Composer: newTestComposer(), Sink: newMemSink()}, roster: roster, period: ""},
		{name: "no composer", g: &BatchGenerator{Sink: newMemSink()}, roster: roster, period: grading.Term1},
		{name: "no sink", g: &BatchGenerator{Composer: newTestComposer()}, roster: roster, period: grading.Term1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.g.GenerateForClass(context.Background(), tt.roster, grades, tt.period)
			if !core.IsArgumentError(err) {
				t.Errorf("GenerateForClass() error = %v, want an argument error", err)
			}
			if res != nil {
				t.Errorf("GenerateForClass() = %v, want nil", res)
			}
		})
	}
}

func TestBatchGenerator_GenerateForClass_nonEmailContact(t *testing.T) {
	roster := []grading.StudentIdentity{student("1", "Amani", "Kabila", "+243 812 345 678")}
	grades := map[string][]grading.GradeEntry{"1": {entry("Maths", 15, 2)}}
	sink := newMemSink()

	res, err := (&BatchGenerator{Composer: newTestComposer(), Sink: sink}).GenerateForClass(context.Background(), roster, grades, grading.Term1)
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Generated, 1)
	assert.Contains(t, sink.files, "Bulletin_Kabila_Amani_Trimestre_1.pdf")
}

func TestBatchGenerator_GenerateForClass_paceIsPerRun(t *testing.T) {
	roster := []grading.StudentIdentity{student("1", "Amani", "Kabila", "")}
	grades := map[string][]grading.GradeEntry{"1": {entry("Maths", 15, 2)}}
	g := &BatchGenerator{Composer: newTestComposer(), Sink: newMemSink(), Throttle: Interval(time.Hour)}

	// a limiter shared between runs would make the second run wait an hour and miss its deadline
	for run := 1; run <= 2; run++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		res, err := g.GenerateForClass(ctx, roster, grades, grading.Term1)
		cancel()
		require.NoError(t, err)
		if len(res.Generated) != 1 {
			t.Errorf("run %d: GenerateForClass() generated %d, want 1 (skipped: %v)", run, len(res.Generated), res.Skipped)
		}
	}
}
