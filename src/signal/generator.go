package signal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/commission"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/conviction"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
)

const (
	stopLossBandPct   = 0.90 // fixed 10% below entry
	takeProfitBandPct = 1.20 // fixed 20% above entry

	volumeLookbackDays       = 20
	fundamentalsLookbackDays = 30

	compositeDropThreshold = 20.0
	minQualityScore        = 40.0
	minGrowthScore         = 30.0
)

// Generator produces entry and exit trading signals. It never surfaces a
// per-ticker data problem as an error; missing upstream data is a recorded
// skip and the batch moves on.
type Generator struct {
	logger    *logrus.Entry
	market    MarketData
	positions PositionBook
	sizer     PositionSizer
	monitor   PositionMonitor
	risk      RiskMetricsProvider
	scorer    *conviction.Scorer
	fees      *commission.Model
	cfg       config.Config
	now       func() time.Time
}

// NewGenerator wires the generator. The conviction scorer and commission
// model are built here so weight and fee mistakes fail at startup.
func NewGenerator(
	logger *logrus.Entry,
	market MarketData,
	positions PositionBook,
	sizer PositionSizer,
	monitor PositionMonitor,
	risk RiskMetricsProvider,
	cfg config.Config,
) (*Generator, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	scorer, err := conviction.NewScorer(conviction.DefaultWeights())
	if err != nil {
		return nil, fmt.Errorf("signal generator: %w", err)
	}

	fees, err := commission.NewModel(cfg.Fees)
	if err != nil {
		return nil, fmt.Errorf("signal generator: %w", err)
	}

	return &Generator{
		logger:    logger,
		market:    market,
		positions: positions,
		sizer:     sizer,
		monitor:   monitor,
		risk:      risk,
		scorer:    scorer,
		fees:      fees,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

// GenerateEntrySignals evaluates each candidate ticker and emits entry
// signals sorted by conviction, strongest first. Tickers without price or
// composite-score data are skipped; tickers failing the score floors are
// rejected. Neither aborts the batch.
func (g *Generator) GenerateEntrySignals(
	ctx context.Context,
	candidates []string,
	minCompositeScore float64,
	minMomentumScore float64,
) (EntryBatch, error) {

	batch := EntryBatch{Stats: newBatchStats()}

	snapshot, err := g.risk.Snapshot(ctx, g.cfg.UserID)
	if err != nil {
		return batch, fmt.Errorf("fetching risk snapshot: %w", err)
	}

	invested, err := g.positions.TotalInvested(ctx, g.cfg.UserID)
	if err != nil {
		return batch, fmt.Errorf("summing invested amount: %w", err)
	}
	portfolioValue := snapshot.CashBalance + invested

	for _, ticker := range candidates {
		select {
		case <-ctx.Done():
			return batch, fmt.Errorf("entry generation canceled: %w", ctx.Err())
		default:
		}

		batch.Stats.Evaluated++

		sig, skipReason, rejected := g.entrySignalFor(ctx, ticker, minCompositeScore, minMomentumScore, snapshot, portfolioValue)
		if skipReason != "" {
			g.logger.WithFields(logrus.Fields{
				"ticker": ticker,
				"reason": skipReason,
			}).Debug("candidate skipped")
			batch.Stats.skip(ticker, skipReason)
			continue
		}
		if rejected {
			batch.Stats.Rejected++
			continue
		}

		batch.Signals = append(batch.Signals, *sig)
		batch.Stats.Generated++
	}

	sort.SliceStable(batch.Signals, func(i, j int) bool {
		return convictionOf(batch.Signals[i]) > convictionOf(batch.Signals[j])
	})

	g.logger.WithFields(logrus.Fields{
		"evaluated": batch.Stats.Evaluated,
		"skipped":   batch.Stats.Skipped,
		"rejected":  batch.Stats.Rejected,
		"generated": batch.Stats.Generated,
	}).Info("entry signal batch complete")

	return batch, nil
}

// entrySignalFor runs the per-ticker entry pipeline. It returns exactly one
// of: a signal, a non-empty skip reason (missing data), or rejected=true
// (score floors not met).
func (g *Generator) entrySignalFor(
	ctx context.Context,
	ticker string,
	minCompositeScore float64,
	minMomentumScore float64,
	snapshot model.RiskMetricsSnapshot,
	portfolioValue float64,
) (*model.TradingSignal, string, bool) {

	price, err := g.market.LatestPrice(ctx, ticker)
	if err != nil || price == nil {
		return nil, "no price data", false
	}

	score, err := g.market.LatestCompositeScore(ctx, ticker)
	if err != nil || score == nil {
		return nil, "no composite score", false
	}

	if score.CompositeScore < minCompositeScore || score.MomentumScore < minMomentumScore {
		return nil, "", true
	}

	volumeScore := g.volumeScoreFor(ctx, ticker)

	conv := g.scorer.Score(score.ValueScore, score.MomentumScore, volumeScore, score.QualityScore)
	if conv.TotalScore < g.cfg.MinConvictionScore {
		return nil, "", true
	}

	currentPrice := price.Close
	stopLoss := currentPrice * stopLossBandPct
	takeProfit := currentPrice * takeProfitBandPct

	sizing, err := g.sizer.CalculatePositionSize(ctx, SizingRequest{
		PortfolioValue: portfolioValue,
		EntryPrice:     currentPrice,
		StopLossPrice:  stopLoss,
		Method:         "kelly",
		WinRate:        snapshot.WinRate,
		AvgWinPct:      snapshot.AvgWinPct,
		AvgLossPct:     snapshot.AvgLossPct,
	})
	if err != nil {
		return nil, "position sizing failed", false
	}

	shares := int64(float64(sizing.Shares) * conv.TotalScore / 100.0)
	if shares < 1 {
		shares = 1
	}

	expectedReturnPct := (takeProfit - currentPrice) / currentPrice * 100
	riskPct := (currentPrice - stopLoss) / currentPrice * 100
	riskReward := 0.0
	if riskPct != 0 {
		riskReward = expectedReturnPct / riskPct
	}

	sig := &model.TradingSignal{
		SignalID:          uuid.NewString(),
		Ticker:            ticker,
		Type:              model.SignalTypeEntryBuy,
		Strength:          strengthFor(conv.TotalScore),
		Urgency:           model.UrgencyNormal,
		Timestamp:         g.now(),
		CurrentPrice:      currentPrice,
		TargetPrice:       &takeProfit,
		StopLossPrice:     &stopLoss,
		TakeProfitPrice:   &takeProfit,
		RecommendedShares: shares,
		PositionValue:     float64(shares) * currentPrice,
		OrderType:         model.OrderTypeMarket,
		Conviction:        &conv,
		Reasons:           append([]string{fmt.Sprintf("conviction score %.1f", conv.TotalScore)}, conv.Notes...),
		ExpectedReturnPct: expectedReturnPct,
		RiskRewardRatio:   riskReward,
		DataQualityScore:  score.DataQualityScore,
	}

	kelly := sizing.KellyFraction
	sig.KellyFraction = &kelly

	if portfolioValue > 0 {
		sig.PositionPct = sig.PositionValue / portfolioValue * 100
	}

	if g.cfg.UseLimitOrders {
		limit := currentPrice * (1 - g.cfg.LimitOrderDiscountPct/100)
		sig.OrderType = model.OrderTypeLimit
		sig.LimitPrice = &limit
	}

	g.attachMetricSnapshots(ctx, sig)
	g.sanityCheck(ctx, sig, snapshot)

	return sig, "", false
}

// attachMetricSnapshots copies the latest technical and fundamental metric
// maps onto the signal so the validator's data-quality gate can inspect
// them. Missing snapshots leave the maps empty; the gate rejects those.
func (g *Generator) attachMetricSnapshots(ctx context.Context, sig *model.TradingSignal) {
	if tech, err := g.market.LatestTechnical(ctx, sig.Ticker); err == nil && tech != nil {
		sig.Technicals = tech.Metrics
	}
	if fund, err := g.market.LatestFundamental(ctx, sig.Ticker); err == nil && fund != nil {
		sig.Fundamentals = fund.Metrics
		sig.Sector = fund.Sector
	}
}

// sanityCheck runs the generator's own cheap checks before the signal ever
// reaches the validator. Oversized positions, unaffordable positions and
// duplicate holdings invalidate the signal; a thin risk/reward ratio is a
// warning only.
func (g *Generator) sanityCheck(ctx context.Context, sig *model.TradingSignal, snapshot model.RiskMetricsSnapshot) {
	sig.IsValid = true

	if g.cfg.MaxPositionSizePct > 0 && sig.PositionPct > g.cfg.MaxPositionSizePct {
		sig.IsValid = false
		sig.ValidationWarnings = append(sig.ValidationWarnings,
			fmt.Sprintf("position size %.1f%% exceeds maximum %.1f%%", sig.PositionPct, g.cfg.MaxPositionSizePct))
	}

	buyCosts := g.fees.CalculateBuyCosts(sig.RecommendedShares, decimal.NewFromFloat(sig.CurrentPrice))
	if netAmount, _ := buyCosts.NetAmount().Float64(); netAmount > snapshot.CashBalance {
		sig.IsValid = false
		sig.ValidationWarnings = append(sig.ValidationWarnings,
			fmt.Sprintf("insufficient funds: need %.0f, cash %.0f", netAmount, snapshot.CashBalance))
	}

	if sig.RiskRewardRatio > 0 && sig.RiskRewardRatio < 1.5 {
		sig.ValidationWarnings = append(sig.ValidationWarnings,
			fmt.Sprintf("risk/reward ratio %.2f below 1.5", sig.RiskRewardRatio))
	}

	if existing, err := g.positions.FindByUserAndTicker(ctx, g.cfg.UserID, sig.Ticker); err == nil && existing != nil {
		sig.IsValid = false
		sig.ValidationWarnings = append(sig.ValidationWarnings, "position already held")
	}
}

// volumeScoreFor derives a 0-100 volume score from the trailing 20 days:
// the latest day's volume against the window average, boosted when the most
// recent 5-day average runs more than 20% above the prior 5 days.
func (g *Generator) volumeScoreFor(ctx context.Context, ticker string) float64 {
	history, err := g.market.PriceHistory(ctx, ticker, volumeLookbackDays)
	if err != nil || len(history) == 0 {
		return 0
	}

	var total int64
	for _, p := range history {
		total += p.Volume
	}
	avgVolume := float64(total) / float64(len(history))
	if avgVolume <= 0 {
		return 0
	}

	latestVolume := float64(history[len(history)-1].Volume)
	ratio := latestVolume / avgVolume

	var score float64
	switch {
	case ratio >= 2:
		score = 100
	case ratio >= 1:
		score = 50 + (ratio-1)*50
	default:
		score = ratio * 50
	}

	if len(history) >= 10 {
		recent := avgVolumeOf(history[len(history)-5:])
		prior := avgVolumeOf(history[len(history)-10 : len(history)-5])
		if prior > 0 && recent > prior*1.2 {
			score *= 1.1
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

func avgVolumeOf(prices []model.Price) float64 {
	if len(prices) == 0 {
		return 0
	}
	var total int64
	for _, p := range prices {
		total += p.Volume
	}
	return float64(total) / float64(len(prices))
}

func strengthFor(total float64) model.SignalStrength {
	switch {
	case total >= 85:
		return model.StrengthVeryStrong
	case total >= 70:
		return model.StrengthStrong
	case total >= 60:
		return model.StrengthModerate
	default:
		return model.StrengthWeak
	}
}

func convictionOf(sig model.TradingSignal) float64 {
	if sig.Conviction == nil {
		return 0
	}
	return sig.Conviction.TotalScore
}
