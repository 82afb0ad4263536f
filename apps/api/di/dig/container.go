package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo/apps/api/echo"
	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/bulletin"
	emailsvc "github.com/trezcool/masomo/services/email"
	logsvc "github.com/trezcool/masomo/services/logger"
	"github.com/trezcool/masomo/storage/database"
	sqlxrepos "github.com/trezcool/masomo/storage/database/sqlx"
	filestore "github.com/trezcool/masomo/storage/files"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRepository(db *sqlx.DB) bulletin.Repository {
	return sqlxrepos.NewRepository(db)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf)
	}
	return emailsvc.NewSendgridService(logger, conf)
}

func newTransport(mailer core.EmailService, conf *core.Config) bulletin.Transport {
	return emailsvc.NewGuardianMailer(mailer, conf)
}

func newComposer(conf *core.Config) bulletin.Composer {
	return bulletin.NewPDFComposer(bulletin.Options{InstitutionName: conf.InstitutionName})
}

func newSink(conf *core.Config) (bulletin.Sink, error) {
	return filestore.NewDirSink(conf.Bulletin.OutputDir)
}

func newBatchGenerator(conf *core.Config, composer bulletin.Composer, sink bulletin.Sink, logger core.Logger) *bulletin.BatchGenerator {
	return &bulletin.BatchGenerator{
		Composer: composer,
		Sink:     sink,
		Throttle: bulletin.Interval(conf.Bulletin.DownloadDelay),
		Logger:   logger,
	}
}

func newNotifier(conf *core.Config, transport bulletin.Transport, composer bulletin.Composer, logger core.Logger) *bulletin.Notifier {
	n := &bulletin.Notifier{
		Transport: transport,
		Throttle:  bulletin.Interval(conf.Bulletin.NotifyDelay),
		Logger:    logger,
	}
	if conf.Bulletin.AttachToEmails {
		n.Composer = composer
	}
	return n
}

func newTranslator() ut.Translator {
	return core.NewTranslator()
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepository))
	must(c.Provide(newEmailService))
	must(c.Provide(newTransport))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(newComposer))
	must(c.Provide(newSink))
	must(c.Provide(newBatchGenerator))
	must(c.Provide(newNotifier))
	must(c.Provide(bulletin.NewService))
	must(c.Provide(echoapi.NewServer))
	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
