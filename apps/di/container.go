// Package di wires the application services by hand from the configuration.
package di

import (
	"context"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/report"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	notifysvc "github.com/trezcool/mahudhurio/services/notify"
	"github.com/trezcool/mahudhurio/services/queue"
	"github.com/trezcool/mahudhurio/storage/database"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
)

// Container holds every wired dependency of an app process.
type Container struct {
	Conf       *core.Config
	Logger     core.Logger
	DB         *sqlx.DB
	Redis      *redis.Client // nil when redis is not configured
	Notifier   *notifysvc.Service
	Validate   *validator.Validate
	Translator ut.Translator
	Location   *time.Location

	Schedule *schedule.Service
	Students *student.Service
	Ledger   *ledger.Service
	Engine   *attendance.Engine
	Reports  *report.Service
	Sweeper  *attendance.Sweeper
}

// NewLogger returns a rollbar logger printing to stdout with prefix, reporting only outside debug.
func NewLogger(conf *core.Config, prefix string) core.Logger {
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	return logger
}

// SetUpDB creates the database if needed, connects and applies pending migrations.
func SetUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = database.Migrate(ctx, db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ScheduleConfig(conf *core.Config) (schedule.Config, error) {
	start, err := core.ParseClockTime(conf.Schedule.WorkDayStart)
	if err != nil {
		return schedule.Config{}, errors.Wrap(err, "parsing work day start")
	}
	end, err := core.ParseClockTime(conf.Schedule.WorkDayEnd)
	if err != nil {
		return schedule.Config{}, errors.Wrap(err, "parsing work day end")
	}
	return schedule.Config{BufferMinutes: conf.Schedule.BufferMinutes, WorkDayStart: start, WorkDayEnd: end}, nil
}

func AttendanceConfig(conf *core.Config) (attendance.Config, error) {
	loc, err := time.LoadLocation(conf.Attendance.Location)
	if err != nil {
		return attendance.Config{}, errors.Wrapf(err, "loading location %q", conf.Attendance.Location)
	}
	return attendance.Config{
		EarlyLimitMinutes:      conf.Attendance.EarlyLimitMinutes,
		LateLimitMinutes:       conf.Attendance.LateLimitMinutes,
		VeryLateAfterMinutes:   conf.Attendance.VeryLateAfterMinutes,
		AutoCancelAfterMinutes: conf.Attendance.AutoCancelAfterMinutes,
		Location:               loc,
	}, nil
}

func LedgerConfig(conf *core.Config) ledger.Config {
	return ledger.Config{
		ReturningCreditBalance: conf.Ledger.ReturningCreditBalance,
		WarnAtRemainingCredit:  conf.Ledger.WarnAtRemainingCredit,
		FinalWarningDebt:       conf.Ledger.FinalWarningDebt,
	}
}

// NewDispatcher prints notifications in debug, and emails guardians otherwise.
func NewDispatcher(conf *core.Config, renderer core.Renderer) core.Dispatcher {
	emailConf := emailsvc.Config{AppName: conf.AppName, From: conf.DefaultFromEmail(), APIKey: conf.Sendgrid.APIKey}
	console := emailsvc.NewConsoleDispatcher(renderer, emailConf, log.New(os.Stdout, "NOTIFY : ", log.LstdFlags))
	if conf.Debug {
		return notifysvc.NewMultiDispatcher(notifysvc.EmailRoute(console), notifysvc.PhoneRoute("console", console))
	}
	return notifysvc.NewMultiDispatcher(notifysvc.EmailRoute(emailsvc.NewSendgridDispatcher(renderer, emailConf)))
}

// NewQueue is the redis outbox when redis is configured, the in-memory queue otherwise.
func NewQueue(conf *core.Config, client *redis.Client) queue.Queue {
	if client == nil {
		return queue.NewMemoryQueue(conf.Notify.BufferSize)
	}
	return queue.NewRedisQueue(client, conf.Redis.QueueKey, conf.Notify.BufferSize)
}

// New wires the services over db. The notification workers are not started.
func New(conf *core.Config, logger core.Logger, db *sqlx.DB) (*Container, error) {
	schedConf, err := ScheduleConfig(conf)
	if err != nil {
		return nil, err
	}
	attConf, err := AttendanceConfig(conf)
	if err != nil {
		return nil, err
	}
	renderer, err := core.NewTemplateRenderer(core.DefaultTemplates())
	if err != nil {
		return nil, errors.Wrap(err, "parsing notification templates")
	}

	c := &Container{Conf: conf, Logger: logger, DB: db, Location: attConf.Location}
	c.Validate, c.Translator = core.NewValidator()

	scheduleRepo := sqlxrepos.NewScheduleRepository(db)
	studentRepo := sqlxrepos.NewStudentRepository(db)
	ledgerRepo := sqlxrepos.NewLedgerRepository(db)
	attendanceRepo := sqlxrepos.NewAttendanceRepository(db)
	tx := sqlxrepos.NewTransactor(db)

	c.Redis = queue.NewRedisClient(conf.Redis)
	c.Notifier = notifysvc.NewService(
		NewQueue(conf, c.Redis),
		NewDispatcher(conf, renderer),
		logger,
		conf.Notify.Workers,
		attendance.DeliveryHook(attendanceRepo, logger),
	)

	c.Schedule = schedule.NewService(scheduleRepo, schedConf)
	c.Students = student.NewService(studentRepo)
	c.Ledger = ledger.NewService(ledgerRepo, tx, studentRepo, c.Schedule, c.Notifier, logger, LedgerConfig(conf))
	c.Engine = attendance.NewEngine(attendanceRepo, tx, c.Students, c.Schedule, c.Ledger, c.Notifier, logger, attConf)
	c.Reports = report.NewService(c.Schedule, c.Students, c.Ledger, attendanceRepo, attConf.Location)
	c.Sweeper = attendance.NewSweeper(c.Engine, logger)
	return c, nil
}

// Close releases the connections; the notifier must be stopped first.
func (c *Container) Close() error {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			return errors.Wrap(err, "closing redis")
		}
	}
	return errors.Wrap(c.DB.Close(), "closing database")
}
