package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/apps/di"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := di.NewLogger(conf, "ADMIN")

	// set up DB; migrations are left to the migrate command
	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Ping(context.Background(), db.DB); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	c, err := di.New(conf, logger, db)
	if err != nil {
		logger.Fatal(fmt.Sprintf("wiring services: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db.DB,
		students: c.Students,
		ledger:   c.Ledger,
		engine:   c.Engine,
		out:      os.Stdout,
	}
	c.Notifier.Start()
	err = cli.run(os.Args)
	c.Notifier.Stop()
	_ = c.Close()

	if err != nil {
		if !errors.Is(err, errHelp) {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
