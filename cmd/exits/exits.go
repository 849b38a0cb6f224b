package exits

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/database"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/pipeline"
)

type Exits struct {
}

func (e *Exits) Start() error {
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
	log := logrus.WithField("cmd", "exits")

	pipe, err := pipeline.New(log, cfg)
	if err != nil {
		return err
	}

	report, err := pipe.RunExits(ctx)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"generated": report.Stats.Generated,
		"valid":     report.Validation.Valid,
		"executed":  report.Execution.Executed,
		"failed":    report.Execution.Failed,
		"dry_run":   cfg.DryRun,
	}).Info("exit run finished")

	return nil
}
