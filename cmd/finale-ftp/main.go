package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/fclairamb/go-log"

	finaleftp "github.com/unifyhq/finale-ftp"
	"github.com/unifyhq/finale-ftp/config"
	"github.com/unifyhq/finale-ftp/log/zaplog"
)

var (
	// BuildVersion is the current version of the program
	BuildVersion = ""

	// BuildDate is the time the program was built
	BuildDate = ""

	// Commit is the git hash of the program
	Commit = ""
)

var gateway *finaleftp.Gateway

func main() {
	var confFile string

	flag.StringVar(&confFile, "conf", "", "Configuration file")
	flag.Parse()

	logger := zaplog.Default()

	logger.Info("Finale inventory FTP gateway",
		"version", BuildVersion, "date", BuildDate, "commit", Commit)

	conf, err := config.Load(confFile)
	if err != nil {
		logger.Error("Can't load conf", "err", err)
		os.Exit(1)
	}

	gateway, err = finaleftp.New(context.Background(), conf)
	if err != nil {
		logger.Error("Could not build the gateway", "err", err)
		os.Exit(1)
	}

	go signalHandler(logger)

	if err := gateway.ListenAndServe(); err != nil {
		logger.Error("Problem listening", "err", err)
	}
}

func signalHandler(logger log.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)

	sig := <-ch
	logger.Info("Shutting down", "signal", sig.String())
	_ = gateway.Stop()
}
