package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers

	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/apps/di"
	"github.com/trezcool/mahudhurio/core"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	logger := di.NewLogger(conf, "API")

	db, err := di.SetUpDB(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	c, err := di.New(conf, logger, db)
	if err != nil {
		logger.Fatal(fmt.Sprintf("wiring services: %v", err), err)
	}
	defer func() {
		if err = c.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing connections: %v", err), err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	c.Notifier.Start()
	defer c.Notifier.Stop()

	if err = c.Sweeper.StartCron(conf.Attendance.SweepSchedule); err != nil {
		logger.Fatal(fmt.Sprintf("starting sweeper: %v", err), err)
	}
	defer func() { <-c.Sweeper.Stop().Done() }()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Validate:   c.Validate,
			Translator: c.Translator,
			Location:   c.Location,
			Schedule:   c.Schedule,
			Students:   c.Students,
			Ledger:     c.Ledger,
			Engine:     c.Engine,
			Reports:    c.Reports,
			Metrics:    promhttp.Handler(),
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
