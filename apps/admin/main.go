package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/bulletin"
	"github.com/trezcool/masomo/core/grading"
	emailsvc "github.com/trezcool/masomo/services/email"
	logsvc "github.com/trezcool/masomo/services/logger"
	"github.com/trezcool/masomo/storage/database"
	sqlxrepos "github.com/trezcool/masomo/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)

	// interrupting stops a batch between two students
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// set up DB
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()
	if err = database.Ping(ctx, db, 10); err != nil {
		logger.Fatal("pinging database", err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	grading.InitValidators(validate, translator)

	var mailer core.EmailService
	if conf.Debug {
		mailer = emailsvc.NewConsoleService(std, conf)
	} else {
		mailer = emailsvc.NewSendgridService(logger, conf)
	}

	// start CLI
	cli := commandLine{
		conf:   conf,
		logger: logger,
		out:    os.Stdout,
		db:     db.DB,
		store:  sqlxrepos.NewRepository(db),
		atomic: func(ctx context.Context, fn func(store Store) error) error {
			return sqlxrepos.WithinTx(ctx, db, func(repo *sqlxrepos.Repository) error { return fn(repo) })
		},
		validate:   validate,
		translator: translator,
		composer:   bulletin.NewPDFComposer(bulletin.Options{InstitutionName: conf.InstitutionName}),
		transport:  emailsvc.NewGuardianMailer(mailer, conf),
	}
	if err = cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		stop()
		os.Exit(1)
	}
}
