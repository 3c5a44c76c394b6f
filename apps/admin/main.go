package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/alertify/apps/shared"
	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger(conf, "ADMIN")

	// the alert database may not exist before the first migration
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := database.CreateIfNotExist(conf); err != nil {
			logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
	}

	app, err := shared.Setup(context.Background(), conf, logger, shared.Options{
		MailOut: log.New(os.Stdout, "EMAIL : ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:       app.DB,
		alertSvc: app.Alerts,
		newTask:  app.NewSendAlertsTask,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	if cerr := app.Close(); cerr != nil {
		logger.Error(fmt.Sprintf("closing: %v", cerr), cerr)
	}
	logger.Close()

	if err != nil {
		if !errors.Is(err, errHelp) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
