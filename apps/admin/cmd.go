package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/bulletin"
	"github.com/trezcool/masomo/core/grading"
	filestore "github.com/trezcool/masomo/storage/files"
)

var errHelp = errors.New("help provided")

// Store is the data store the CLI reads from and imports into.
type Store interface {
	bulletin.Repository
	SaveStudent(ctx context.Context, s grading.StudentIdentity) error
	ReplaceGrades(ctx context.Context, studentID string, period grading.Period, entries []grading.GradeEntry) error
}

type commandLine struct {
	conf       *core.Config
	logger     core.Logger
	out        io.Writer
	db         *sql.DB
	store      Store
	atomic     func(ctx context.Context, fn func(store Store) error) error // runs fn in a transaction
	validate   *validator.Validate
	translator ut.Translator
	composer   bulletin.Composer
	transport  bulletin.Transport
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  generate -class CLASS -period PERIOD [-out DIR] - save the bulletins of a class")
	_, _ = fmt.Fprintln(cli.out, "  notify -class CLASS -period PERIOD              - tell guardians that bulletins are ready")
	_, _ = fmt.Fprintln(cli.out, "  import -file FILE                               - import students and grades from a JSON file")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                          - run a goose command (up, down, status, ...)")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	generateCmd := flag.NewFlagSet("generate", flag.ContinueOnError)
	generateClass := generateCmd.String("class", "", "The class whose bulletins are generated.")
	generatePeriod := generateCmd.String("period", "", "The period, eg. \"Trimestre 1\".")
	generateOut := generateCmd.String("out", cli.conf.Bulletin.OutputDir, "The directory bulletins are saved to.")

	notifyCmd := flag.NewFlagSet("notify", flag.ContinueOnError)
	notifyClass := notifyCmd.String("class", "", "The class whose guardians are notified.")
	notifyPeriod := notifyCmd.String("period", "", "The period, eg. \"Trimestre 1\".")

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importFile := importCmd.String("file", "", "The JSON file to import.")

	for _, fs := range []*flag.FlagSet{generateCmd, notifyCmd, importCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "generate":
		if err := generateCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *generateClass == "" || *generatePeriod == "" {
			generateCmd.Usage()
			return errHelp
		}
		return cli.generate(ctx, *generateClass, grading.Period(*generatePeriod), *generateOut)
	case "notify":
		if err := notifyCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *notifyClass == "" || *notifyPeriod == "" {
			notifyCmd.Usage()
			return errHelp
		}
		return cli.notify(ctx, *notifyClass, grading.Period(*notifyPeriod))
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importFile(ctx, *importFile)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) service(sink bulletin.Sink) *bulletin.Service {
	return bulletin.NewService(
		cli.store,
		cli.composer,
		&bulletin.BatchGenerator{
			Composer: cli.composer,
			Sink:     sink,
			Throttle: bulletin.Interval(cli.conf.Bulletin.DownloadDelay),
			Logger:   cli.logger,
		},
		&bulletin.Notifier{
			Transport: cli.transport,
			Throttle:  bulletin.Interval(cli.conf.Bulletin.NotifyDelay),
			Composer:  cli.attachmentComposer(),
			Logger:    cli.logger,
		},
	)
}

func (cli *commandLine) attachmentComposer() bulletin.Composer {
	if cli.conf.Bulletin.AttachToEmails {
		return cli.composer
	}
	return nil
}

func (cli *commandLine) generate(ctx context.Context, className string, period grading.Period, dir string) error {
	sink, err := filestore.NewDirSink(dir)
	if err != nil {
		return err
	}
	res, err := cli.service(sink).GenerateClass(ctx, className, period)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "run %s - %s - %s\n", res.RunID, className, period)
	for _, g := range res.Generated {
		_, _ = fmt.Fprintf(w, "ok\t%s\t%.2f\t%s\t%s\n", g.StudentName, g.WeightedAverage, g.Mention.Label(), g.Filename)
	}
	for _, s := range res.Skipped {
		_, _ = fmt.Fprintf(w, "skipped\t%s\t%s\n", s.StudentName, s.Reason)
	}
	_, _ = fmt.Fprintf(w, "%d generated, %d skipped, saved to %s\n", len(res.Generated), len(res.Skipped), sink.Dir())
	return w.Flush()
}

func (cli *commandLine) notify(ctx context.Context, className string, period grading.Period) error {
	sum, err := cli.service(nil).NotifyClass(ctx, className, period)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "run %s - %s - %s\n", sum.RunID, className, period)
	for _, o := range sum.Outcomes {
		status := "delivered"
		if !o.Delivered {
			status = "failed: " + o.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", o.StudentID, o.Contact, status)
	}
	for _, s := range sum.Skipped {
		_, _ = fmt.Fprintf(w, "%s\t%s\tskipped: %s\n", s.StudentID, s.StudentName, s.Reason)
	}
	_, _ = fmt.Fprintf(w, "%d attempted, %d delivered, %d failed, %d skipped\n", sum.Attempted, sum.Delivered, sum.Failed(), len(sum.Skipped))
	return w.Flush()
}
