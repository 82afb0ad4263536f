package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/bulletin"
	"github.com/trezcool/masomo/core/grading"
	"github.com/trezcool/masomo/services/email"
	"github.com/trezcool/masomo/services/logger"
	"github.com/trezcool/masomo/storage/database/inmem"
	"github.com/trezcool/masomo/tests"
)

type testEnv struct {
	cli    *commandLine
	repo   *inmemdb.Repository
	mailer *emailsvc.ConsoleServiceMock
	out    *bytes.Buffer

	failGradesOf string // student ID whose grades cannot be written inside a transaction
}

// failingStore fails to write the grades of one student.
type failingStore struct {
	Store
	studentID string
}

func (s failingStore) ReplaceGrades(ctx context.Context, studentID string, period grading.Period, entries []grading.GradeEntry) error {
	if studentID == s.studentID {
		return errors.New("insert failed")
	}
	return s.Store.ReplaceGrades(ctx, studentID, period, entries)
}

func setup(t *testing.T) *testEnv {
	conf := core.NewTestConfig()
	conf.Bulletin.DownloadDelay = 0
	conf.Bulletin.NotifyDelay = 0
	conf.Bulletin.OutputDir = t.TempDir()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	grading.InitValidators(validate, translator)

	repo := inmemdb.NewRepository(inmemdb.Open())
	testutil.SeedClass(t, repo)
	mailer := emailsvc.NewConsoleServiceMock(conf)
	out := new(bytes.Buffer)

	env := &testEnv{repo: repo, mailer: mailer, out: out}
	env.cli = &commandLine{
		conf:   conf,
		logger: logsvc.NewRollbarLogger(log.New(new(bytes.Buffer), "", 0), conf),
		out:    out,
		store:  repo,
		atomic: func(ctx context.Context, fn func(store Store) error) error {
			return repo.WithinTx(ctx, func(tx *inmemdb.Repository) error {
				if env.failGradesOf != "" {
					return fn(failingStore{Store: tx, studentID: env.failGradesOf})
				}
				return fn(tx)
			})
		},
		validate:   validate,
		translator: translator,
		composer:   bulletin.NewPDFComposer(bulletin.Options{InstitutionName: conf.InstitutionName}),
		transport:  emailsvc.NewGuardianMailer(mailer, conf),
	}
	return env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
		return
	}
	if tt.wantErr != nil {
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	} else if tt.wantErrStr != "" {
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	} else {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_run(t *testing.T) {
	env := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "generate: no args", args: []string{"generate"}, wantErr: errHelp},
		{name: "generate: no period", args: []string{"generate", "-class", testutil.ClassName}, wantErr: errHelp},
		{name: "generate: unknown flag", args: []string{"generate", "-lol"}, wantErr: errHelp},
		{name: "notify: no class", args: []string{"notify", "-period", "Trimestre 1"}, wantErr: errHelp},
		{name: "import: no file", args: []string{"import"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(context.Background(), args))
		})
	}
}

func Test_commandLine_generate(t *testing.T) {
	env := setup(t)

	outDir := filepath.Join(t.TempDir(), "out")
	args := []string{"admin", "generate", "-class", testutil.ClassName, "-period", "Trimestre 1", "-out", outDir}
	require.NoError(t, env.cli.run(context.Background(), args))

	files, err := os.ReadDir(outDir)
	require.NoError(t, err)
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{
		"Bulletin_Kabila_Amani_Trimestre_1.pdf",
		"Bulletin_Mbuyi_Chiku_Trimestre_1.pdf",
		"Bulletin_Ngoy_Dalia_Trimestre_1.pdf",
	}, names)

	output := env.out.String()
	assert.Contains(t, output, "Baraka Lumumba")
	assert.Contains(t, output, bulletin.ReasonNoGrades)
	assert.Contains(t, output, "3 generated, 1 skipped")
}

func Test_commandLine_generate_errors(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	err := env.cli.run(ctx, []string{"admin", "generate", "-class", "lol", "-period", "Trimestre 1"})
	if err != bulletin.ErrClassNotFound {
		t.Errorf("cli.run() error = %v, wantErr %v", err, bulletin.ErrClassNotFound)
	}

	err = env.cli.run(ctx, []string{"admin", "generate", "-class", testutil.ClassName, "-period", "Trimestre 9"})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("cli.run() error = %v, want a validation error", err)
	}
}

func Test_commandLine_notify(t *testing.T) {
	env := setup(t)

	args := []string{"admin", "notify", "-class", testutil.ClassName, "-period", "Trimestre 1"}
	require.NoError(t, env.cli.run(context.Background(), args))

	msgs := env.mailer.SentMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "kabila@test.test", msgs[0].To[0].Address)
	assert.Equal(t, "mbuyi@test.test", msgs[1].To[0].Address)
	for _, msg := range msgs {
		assert.True(t, msg.HasAttachments(), "attachment expected for %s", msg.To[0].Address)
	}
	assert.Contains(t, env.out.String(), "2 attempted, 2 delivered, 0 failed, 2 skipped")
}

func Test_commandLine_notify_withoutAttachment(t *testing.T) {
	env := setup(t)
	env.cli.conf.Bulletin.AttachToEmails = false
	env.cli.transport = emailsvc.NewGuardianMailer(env.mailer, env.cli.conf)

	args := []string{"admin", "notify", "-class", testutil.ClassName, "-period", "Trimestre 1"}
	require.NoError(t, env.cli.run(context.Background(), args))

	for _, msg := range env.mailer.SentMessages() {
		assert.False(t, msg.HasAttachments())
	}
}

func Test_commandLine_import(t *testing.T) {
	env := setup(t)
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}
	valid := write("valid.json", `{
		"students": [
			{"id": "10", "first_name": " Eliya ", "last_name": "Tshala", "class_name": "5e B", "guardian_contact": "TSHALA@Test.test"}
		],
		"grades": [
			{"student_id": "10", "period": "Trimestre 2", "entries": [
				{"subject_name": "Histoire", "score": 12.5, "weight": 2},
				{"subject_name": "Géographie", "score": null, "weight": 2}
			]}
		]
	}`)
	badScore := write("bad_score.json", `{
		"grades": [{"student_id": "1", "period": "Trimestre 1", "entries": [{"subject_name": "Maths", "score": 21, "weight": 1}]}]
	}`)
	badPrecision := write("bad_precision.json", `{
		"grades": [{"student_id": "1", "period": "Trimestre 1", "entries": [{"subject_name": "Maths", "score": 15.555, "weight": 1}]}]
	}`)
	badPeriod := write("bad_period.json", `{"grades": [{"student_id": "1", "period": "lol", "entries": []}]}`)
	malformed := write("malformed.json", `{"students": [`)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "missing file", path: filepath.Join(dir, "lol.json"), wantErr: true},
		{name: "malformed", path: malformed, wantErr: true},
		{name: "score out of range", path: badScore, wantErr: true},
		{name: "score too precise", path: badPrecision, wantErr: true},
		{name: "unknown period", path: badPeriod, wantErr: true},
		{name: "valid", path: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.cli.run(context.Background(), []string{"admin", "import", "-file", tt.path})
			if (err != nil) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	ctx := context.Background()
	student, err := env.repo.Student(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, "Eliya", student.FirstName)
	assert.Equal(t, "tshala@test.test", student.GuardianContact)

	grades, err := env.repo.PeriodGrades(ctx, []string{"10"}, grading.Term2)
	require.NoError(t, err)
	require.Len(t, grades["10"], 2)
	assert.False(t, grades["10"][1].Graded())

	// rejected files leave existing grades untouched
	grades, err = env.repo.PeriodGrades(ctx, []string{"1"}, grading.Term1)
	require.NoError(t, err)
	assert.Len(t, grades["1"], 2)
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	defer func(orig func(string, *sql.DB, ...string) error) { migrateFunc = orig }(migrateFunc)
	migrateFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "report_runs", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(context.Background(), args))
		})
	}
}

func Test_commandLine_import_validationMessages(t *testing.T) {
	env := setup(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"students": [{"id": "10", "first_name": "Eliya", "last_name": " "}],
		"grades": [{"student_id": "1", "period": "Trimestre 1", "entries": [
			{"subject_name": "Maths", "score": 12, "weight": 1},
			{"subject_name": "Chimie", "score": 15.555, "weight": 1}
		]}]
	}`), 0o600))

	err := env.cli.run(context.Background(), []string{"admin", "import", "-file", path})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "cli.run() error = %v, want a validation error", err)

	fields := make(map[string]string, len(vErr.Fields))
	for _, f := range vErr.Fields {
		fields[f.Field] = f.Error
	}
	assert.Equal(t, map[string]string{
		"students[0].last_name":      "this field is required",
		"grades[0].entries[1].score": "at most 2 decimals are allowed",
	}, fields)
	assert.NotContains(t, err.Error(), "Field validation for")
}

func Test_commandLine_import_atomic(t *testing.T) {
	env := setup(t)
	env.failGradesOf = "3"
	path := filepath.Join(t.TempDir(), "import.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"students": [{"id": "10", "first_name": "Eliya", "last_name": "Tshala", "class_name": "6e A"}],
		"grades": [
			{"student_id": "1", "period": "Trimestre 1", "entries": [{"subject_name": "Histoire", "score": 11, "weight": 2}]},
			{"student_id": "3", "period": "Trimestre 1", "entries": [{"subject_name": "Histoire", "score": 9, "weight": 2}]}
		]
	}`), 0o600))

	if err := env.cli.run(context.Background(), []string{"admin", "import", "-file", path}); err == nil {
		t.Fatal("cli.run() error = nil, want the failed insert")
	}

	// the failure on student 3 undoes everything written before it
	ctx := context.Background()
	_, err := env.repo.Student(ctx, "10")
	assert.Equal(t, bulletin.ErrStudentNotFound, err)
	grades, err := env.repo.PeriodGrades(ctx, []string{"1", "3"}, grading.Term1)
	require.NoError(t, err)
	require.Len(t, grades["1"], 2)
	assert.Equal(t, "Mathématiques", grades["1"][0].SubjectName)
	assert.Len(t, grades["3"], 2)
	assert.Empty(t, env.out.String())
}
