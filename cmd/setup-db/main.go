// Command setup-db provisions the inventory database: it creates the
// database itself (unless told to skip) and the inventory_items table with
// its indexes. Safe to run repeatedly.
package main

import (
	"context"
	"flag"
	"net/url"
	"os"
	"strings"

	"github.com/unifyhq/finale-ftp/config"
	"github.com/unifyhq/finale-ftp/log/zaplog"
	"github.com/unifyhq/finale-ftp/store"
)

func main() {
	var confFile string
	var skipCreateDB bool

	flag.StringVar(&confFile, "conf", "", "Configuration file")
	flag.BoolVar(&skipCreateDB, "skip-create-db", false,
		"Skip database creation, only create tables and indexes")
	flag.Parse()

	logger := zaplog.Default()

	conf, err := config.Load(confFile)
	if err != nil {
		logger.Error("Can't load conf", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if skipCreateDB {
		logger.Info("Skipping database creation as requested")
	} else {
		adminURL, dbName, err := splitDatabaseURL(conf.Database.URL)
		if err != nil {
			logger.Error("Can't parse database URL", "err", err)
			os.Exit(1)
		}

		if err := store.CreateDatabase(ctx, adminURL, dbName, logger); err != nil {
			logger.Error("Database creation failed", "err", err)
			logger.Info("You can retry with -skip-create-db if the database already exists")
			os.Exit(1)
		}
	}

	if err := store.Provision(ctx, conf.Database.URL, logger); err != nil {
		logger.Error("Schema setup failed", "err", err)
		os.Exit(1)
	}

	logger.Info("Database setup completed successfully")
}

// splitDatabaseURL derives the maintenance connection URL (same server, the
// "postgres" database) and the target database name from the configured URL.
func splitDatabaseURL(raw string) (adminURL, dbName string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	dbName = strings.TrimPrefix(u.Path, "/")

	admin := *u
	admin.Path = "/postgres"
	return admin.String(), dbName, nil
}
