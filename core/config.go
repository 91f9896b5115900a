package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		DebugHost          string
		SecretKey          string
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
		DisableReqLogs     bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string // empty disables the redis notification queue
		Password string
		DB       int
		QueueKey string
	}

	SendgridConfig struct {
		APIKey string
	}

	AttendanceConfig struct {
		EarlyLimitMinutes      int
		LateLimitMinutes       int
		VeryLateAfterMinutes   int
		AutoCancelAfterMinutes int
		Location               string
		SweepSchedule          string // cron spec
	}

	ScheduleConfig struct {
		BufferMinutes int
		WorkDayStart  string // HH:MM
		WorkDayEnd    string // HH:MM
	}

	LedgerConfig struct {
		ReturningCreditBalance int
		WarnAtRemainingCredit  int
		FinalWarningDebt       int
	}

	NotifyConfig struct {
		Workers    int
		BufferSize int
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		FromEmailName    string
		FromEmailAddress string
		RollbarToken     string

		Server     ServerConfig
		Database   DatabaseConfig
		Redis      RedisConfig
		Sendgrid   SendgridConfig
		Attendance AttendanceConfig
		Schedule   ScheduleConfig
		Ledger     LedgerConfig
		Notify     NotifyConfig
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.FromEmailName, Address: c.FromEmailAddress}
}

// NewConfig loads the configuration from defaults, an optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the uppercased env name, eg. DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Mahudhurio")
	v.SetDefault("build", "develop")
	v.SetDefault("fromEmailName", "Mahudhurio")
	v.SetDefault("fromEmailAddress", "noreply@localhost")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.secretKey", "x9!kq-3m$u@f7(tz_2h=lc^0w*e8r#vb)nya5go&pjd4")
	v.SetDefault("server.jwtExpirationDelta", 12*time.Hour)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "mahudhurio")
	v.SetDefault("database.user", "mahudhurio")
	v.SetDefault("database.password", "mahudhurio")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queueKey", "mahudhurio:notifications")

	v.SetDefault("sendgrid.apiKey", "")

	v.SetDefault("attendance.earlyLimitMinutes", 30)
	v.SetDefault("attendance.lateLimitMinutes", 10)
	v.SetDefault("attendance.veryLateAfterMinutes", 15)
	v.SetDefault("attendance.autoCancelAfterMinutes", 15)
	v.SetDefault("attendance.location", "Local")
	v.SetDefault("attendance.sweepSchedule", "@every 1m")

	v.SetDefault("schedule.bufferMinutes", 15)
	v.SetDefault("schedule.workDayStart", "08:00")
	v.SetDefault("schedule.workDayEnd", "22:00")

	v.SetDefault("ledger.returningCreditBalance", 2)
	v.SetDefault("ledger.warnAtRemainingCredit", 1)
	v.SetDefault("ledger.finalWarningDebt", 2)

	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.bufferSize", 256)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		WorkDir:          workDir,
		FromEmailName:    v.GetString("fromEmailName"),
		FromEmailAddress: v.GetString("fromEmailAddress"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			SecretKey:          v.GetString("server.secretKey"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:     v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			QueueKey: v.GetString("redis.queueKey"),
		},
		Sendgrid: SendgridConfig{
			APIKey: v.GetString("sendgrid.apiKey"),
		},
		Attendance: AttendanceConfig{
			EarlyLimitMinutes:      v.GetInt("attendance.earlyLimitMinutes"),
			LateLimitMinutes:       v.GetInt("attendance.lateLimitMinutes"),
			VeryLateAfterMinutes:   v.GetInt("attendance.veryLateAfterMinutes"),
			AutoCancelAfterMinutes: v.GetInt("attendance.autoCancelAfterMinutes"),
			Location:               v.GetString("attendance.location"),
			SweepSchedule:          v.GetString("attendance.sweepSchedule"),
		},
		Schedule: ScheduleConfig{
			BufferMinutes: v.GetInt("schedule.bufferMinutes"),
			WorkDayStart:  v.GetString("schedule.workDayStart"),
			WorkDayEnd:    v.GetString("schedule.workDayEnd"),
		},
		Ledger: LedgerConfig{
			ReturningCreditBalance: v.GetInt("ledger.returningCreditBalance"),
			WarnAtRemainingCredit:  v.GetInt("ledger.warnAtRemainingCredit"),
			FinalWarningDebt:       v.GetInt("ledger.finalWarningDebt"),
		},
		Notify: NotifyConfig{
			Workers:    v.GetInt("notify.workers"),
			BufferSize: v.GetInt("notify.bufferSize"),
		},
	}
}
