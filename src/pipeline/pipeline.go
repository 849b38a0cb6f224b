package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/execution"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/repository"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/signal"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/validation"
)

// Report is the outcome of one pipeline run: what was generated, how
// validation went, and what the executor did with the passers. Signals
// carries every signal including the rejected ones, with their validation
// flags written, for auditing.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Stats        signal.BatchStats     `json:"stats"`
	Validation   validation.Summary    `json:"validation"`
	Execution    *execution.Result     `json:"execution"`
	TradeSummary execution.Summary     `json:"trade_summary"`
	Signals      []model.TradingSignal `json:"signals"`
}

// Pipeline chains signal generation, validation and execution into the two
// entry points the CLI and the HTTP API expose.
type Pipeline struct {
	logger     *logrus.Entry
	generator  *signal.Generator
	validator  *validation.Validator
	executor   *execution.Executor
	exceptions *repository.ExceptionRepository
	cfg        config.Config
	now        func() time.Time
}

// New wires the full pipeline against the package-global database
// connections. Call database.InitMainDB and database.InitReadOnlyDB first.
func New(logger *logrus.Entry, cfg config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	market := repository.NewMarketDataRepository()
	positions := repository.NewPositionRepository()
	trades := repository.NewTradeRepository()

	sizer := NewSizer(cfg)
	risk := NewRiskMetrics(logger, trades, positions, cfg)
	monitor := NewMonitor(logger, positions, market)

	generator, err := signal.NewGenerator(logger, market, positions, sizer, monitor, risk, cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	validator := validation.NewValidator(logger, market, positions, risk, cfg)

	executor, err := execution.NewExecutor(logger, trades, positions, market, cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	pipe := NewWithComponents(logger, generator, validator, executor, cfg)
	pipe.exceptions = repository.NewExceptionRepository()
	return pipe, nil
}

// NewWithComponents assembles a pipeline from pre-built stages.
func NewWithComponents(
	logger *logrus.Entry,
	generator *signal.Generator,
	validator *validation.Validator,
	executor *execution.Executor,
	cfg config.Config,
) *Pipeline {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pipeline{
		logger:    logger,
		generator: generator,
		validator: validator,
		executor:  executor,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Canceller exposes the order-cancel surface of the executor.
func (p *Pipeline) Canceller() *execution.Executor {
	return p.executor
}

// RunEntries evaluates the candidate tickers end to end: generate entry
// signals, gate them, execute the passers.
func (p *Pipeline) RunEntries(ctx context.Context, candidates []string) (*Report, error) {
	report := &Report{StartedAt: p.now()}

	batch, err := p.generator.GenerateEntrySignals(ctx, candidates, p.cfg.MinCompositeScore, p.cfg.MinMomentumScore)
	if err != nil {
		Capture(ctx, p.exceptions, "trading_pipeline", "pipeline", "RunEntries", "error", err,
			map[string]interface{}{"candidates": candidates})
		return nil, fmt.Errorf("generating entry signals: %w", err)
	}
	report.Stats = batch.Stats

	passed, summary := p.validator.ValidateBatch(ctx, batch.Signals)
	report.Validation = summary
	report.Signals = batch.Signals

	report.Execution = p.executor.ExecuteBatch(ctx, passed)
	report.TradeSummary = execution.Summarize(report.Execution.Trades)
	p.captureExecutionErrors(ctx, report.Execution)
	report.FinishedAt = p.now()

	p.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"generated":  batch.Stats.Generated,
		"valid":      summary.Valid,
		"executed":   report.Execution.Executed,
	}).Info("entry pipeline complete")

	return report, nil
}

// RunExits scans open positions for stop breaches and deteriorating
// fundamentals, then executes the resulting sells.
func (p *Pipeline) RunExits(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: p.now()}

	signals, err := p.generator.GenerateExitSignals(ctx)
	if err != nil {
		Capture(ctx, p.exceptions, "trading_pipeline", "pipeline", "RunExits", "error", err, nil)
		return nil, fmt.Errorf("generating exit signals: %w", err)
	}
	report.Stats.Evaluated = len(signals)
	report.Stats.Generated = len(signals)

	passed, summary := p.validator.ValidateBatch(ctx, signals)
	report.Validation = summary
	report.Signals = signals

	report.Execution = p.executor.ExecuteBatch(ctx, passed)
	report.TradeSummary = execution.Summarize(report.Execution.Trades)
	p.captureExecutionErrors(ctx, report.Execution)
	report.FinishedAt = p.now()

	p.logger.WithFields(logrus.Fields{
		"generated": len(signals),
		"valid":     summary.Valid,
		"executed":  report.Execution.Executed,
	}).Info("exit pipeline complete")

	return report, nil
}

// captureExecutionErrors persists each per-signal execution failure so a
// failed fill is never only a log line.
func (p *Pipeline) captureExecutionErrors(ctx context.Context, result *execution.Result) {
	for signalID, message := range result.Errors {
		Capture(ctx, p.exceptions, "trading_pipeline", "execution", "ExecuteBatch", "error",
			errors.New(message), map[string]interface{}{"signal_id": signalID})
	}
}
