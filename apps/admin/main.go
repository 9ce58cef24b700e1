package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/trezcool/masomo-checker/core"
	logsvc "github.com/trezcool/masomo-checker/services/logger"
	"github.com/trezcool/masomo-checker/storage"
	"github.com/trezcool/masomo-checker/storage/database"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(false)

	// start CLI
	cli := commandLine{
		conf:      conf,
		logger:    appLogger,
		out:       os.Stdout,
		openStore: storage.Open,
		openDB: func(conf *core.Config) (*sql.DB, error) {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
			db, err := database.Open(conf)
			if err != nil {
				return nil, err
			}
			return db.DB, nil
		},
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
