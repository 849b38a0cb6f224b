package loop

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/database"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/executors"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/pipeline"
)

type Loop struct {
}

func (l *Loop) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to read-only database")
		return err
	}

	cfg := config.GetConfig()
	log := logrus.WithField("cmd", "loop")

	pipe, err := pipeline.New(log, cfg)
	if err != nil {
		return err
	}

	return executors.StartLoop(ctx, pipe)
}
