package executors

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/pipeline"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/risk"
)

// pipelineRunner is what the loop drives each tick.
type pipelineRunner interface {
	RunEntries(ctx context.Context, candidates []string) (*pipeline.Report, error)
	RunExits(ctx context.Context) (*pipeline.Report, error)
}

// StartLoop runs the pipeline on a fixed period until ctx is cancelled.
// Exits are evaluated every tick so trailing stops keep ratcheting; entries
// only run while the market session allows new positions.
func StartLoop(ctx context.Context, pipe pipelineRunner) error {
	config := GetConfig()

	if len(config.Tickers) == 0 {
		return errors.New("loop_tickers not set")
	}

	ticker := time.NewTicker(config.LoopPeriod)
	defer ticker.Stop()

	sessionCfg := risk.DefaultSessionSizeConfig()
	sessionCfg.AllowAfterHours = config.AllowAfterHours

	logger.WithFields(logger.Fields{
		"tickers":     config.Tickers,
		"loop_period": config.LoopPeriod.String(),
	}).Info("pipeline loop starting")

	for {
		select {
		case <-ctx.Done():
			logger.Info("loop stopped")
			return nil

		case <-ticker.C:
			if err := runTick(ctx, pipe, config.Tickers, sessionCfg, time.Now()); err != nil {
				logger.WithError(err).Error("pipeline tick failed, will exit here")
				return err
			}
		}
	}
}

func runTick(ctx context.Context, pipe pipelineRunner, tickers []string, sessionCfg risk.SessionSizeConfig, now time.Time) error {
	exitReport, err := pipe.RunExits(ctx)
	if err != nil {
		return err
	}
	logger.WithFields(logger.Fields{
		"generated": exitReport.Stats.Generated,
		"executed":  executedCount(exitReport),
	}).Info("exit pass complete")

	canEnter, session := risk.CanEnterAt(now, sessionCfg)
	if !canEnter {
		logger.WithField("session", session).Info("entries skipped outside tradable session")
		return nil
	}

	entryReport, err := pipe.RunEntries(ctx, tickers)
	if err != nil {
		return err
	}
	logger.WithFields(logger.Fields{
		"session":   session,
		"evaluated": entryReport.Stats.Evaluated,
		"generated": entryReport.Stats.Generated,
		"executed":  executedCount(entryReport),
	}).Info("entry pass complete")

	return nil
}

func executedCount(r *pipeline.Report) int {
	if r == nil || r.Execution == nil {
		return 0
	}
	return r.Execution.Executed
}
