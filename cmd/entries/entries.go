package entries

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/database"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/pipeline"
)

type Entries struct {
	Tickers []string
}

func (e *Entries) Start() error {
	if len(e.Tickers) == 0 {
		return errors.New("no candidate tickers given")
	}

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
	log := logrus.WithField("cmd", "entries")

	pipe, err := pipeline.New(log, cfg)
	if err != nil {
		return err
	}

	report, err := pipe.RunEntries(ctx, e.Tickers)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"candidates": len(e.Tickers),
		"generated":  report.Stats.Generated,
		"skipped":    report.Stats.Skipped,
		"rejected":   report.Stats.Rejected,
		"valid":      report.Validation.Valid,
		"executed":   report.Execution.Executed,
		"failed":     report.Execution.Failed,
		"dry_run":    cfg.DryRun,
	}).Info("entry run finished")

	return nil
}
