package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/database"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/pipeline"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/server"
)

var (
	APP_NAME = os.Getenv("APP_NAME")
)

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	cfg := config.GetConfig()

	pipe, err := pipeline.New(logger.WithField("component", "pipeline"), cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build pipeline")
	}

	server.StartServer(server.GetConfig().Port, pipe, cfg)
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
