package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Costs is the full transaction-cost breakdown for one side of an order.
// Amounts are rounded to whole KRW at computation time; the derived values
// (TotalFees, NetAmount, EffectivePrice, FeePercentage) are computed on
// demand, never stored.
type Costs struct {
	Quantity int64
	Price    decimal.Decimal
	IsBuy    bool

	GrossAmount    decimal.Decimal
	Commission     decimal.Decimal
	TransactionTax decimal.Decimal
	AgriFishTax    decimal.Decimal
	ExchangeFee    decimal.Decimal
	ClearingFee    decimal.Decimal
}

// TotalFees is the sum of every fee component.
func (c Costs) TotalFees() decimal.Decimal {
	return c.Commission.
		Add(c.TransactionTax).
		Add(c.AgriFishTax).
		Add(c.ExchangeFee).
		Add(c.ClearingFee)
}

// NetAmount is the cash impact of the order: gross plus fees on a buy,
// gross minus fees on a sell.
func (c Costs) NetAmount() decimal.Decimal {
	if c.IsBuy {
		return c.GrossAmount.Add(c.TotalFees())
	}
	return c.GrossAmount.Sub(c.TotalFees())
}

// EffectivePrice is the per-share price after fees.
func (c Costs) EffectivePrice() decimal.Decimal {
	if c.Quantity == 0 {
		return decimal.Zero
	}
	return c.NetAmount().Div(decimal.NewFromInt(c.Quantity))
}

// FeePercentage is the total fees as a percentage of the gross amount.
func (c Costs) FeePercentage() decimal.Decimal {
	if c.GrossAmount.IsZero() {
		return decimal.Zero
	}
	return c.TotalFees().Div(c.GrossAmount).Mul(hundred)
}

// RoundTrip is the result of costing a matched buy and sell of the same
// quantity, including the breakeven sell price at which the net P&L is zero.
type RoundTrip struct {
	BuyCosts  Costs
	SellCosts Costs

	GrossPnl       decimal.Decimal
	NetPnl         decimal.Decimal
	NetPnlPct      decimal.Decimal
	BreakevenPrice decimal.Decimal
}

// Model computes transaction costs from a single fee structure. The same
// instance is injected into the order executor so cost constants are defined
// exactly once.
type Model struct {
	fees config.FeeStructure
}

// NewModel validates the fee structure up front; bad rates are a
// configuration error and must fail construction.
func NewModel(fees config.FeeStructure) (*Model, error) {
	if err := fees.Validate(); err != nil {
		return nil, fmt.Errorf("commission model: %w", err)
	}
	return &Model{fees: fees}, nil
}

// CalculateBuyCosts prices the buy side: commission (with the minimum floor)
// plus optional exchange and clearing fees. Buys carry no transaction tax.
func (m *Model) CalculateBuyCosts(quantity int64, price decimal.Decimal) Costs {
	gross := price.Mul(decimal.NewFromInt(quantity)).Round(0)

	return Costs{
		Quantity:    quantity,
		Price:       price,
		IsBuy:       true,
		GrossAmount: gross,
		Commission:  m.commission(gross),
		ExchangeFee: ratePctOf(gross, m.fees.ExchangeFeeRatePct),
		ClearingFee: ratePctOf(gross, m.fees.ClearingFeeRatePct),
	}
}

// CalculateSellCosts prices the sell side: commission plus the transaction
// tax on the gross amount and the agriculture/fishery levy on the tax.
func (m *Model) CalculateSellCosts(quantity int64, price decimal.Decimal) Costs {
	gross := price.Mul(decimal.NewFromInt(quantity)).Round(0)
	tax := ratePctOf(gross, m.fees.TransactionTaxRatePct)

	return Costs{
		Quantity:       quantity,
		Price:          price,
		IsBuy:          false,
		GrossAmount:    gross,
		Commission:     m.commission(gross),
		TransactionTax: tax,
		AgriFishTax:    ratePctOf(tax, m.fees.AgriFishTaxRatePct),
		ExchangeFee:    ratePctOf(gross, m.fees.ExchangeFeeRatePct),
		ClearingFee:    ratePctOf(gross, m.fees.ClearingFeeRatePct),
	}
}

// CalculateRoundTripCosts costs both legs of a matched buy/sell and derives
// the breakeven sell price by inverting the sell-cost formula:
//
//	breakeven = buyPrice * (1 + buyCommPct) / (1 - (sellCommPct + taxPct + agriPct))
//
// where agriPct is the agri/fish levy expressed as a fraction of the gross
// amount (levy rate applied to the tax rate). The closed form ignores the
// min-commission floor, which only matters at very small order sizes.
func (m *Model) CalculateRoundTripCosts(quantity int64, buyPrice, sellPrice decimal.Decimal) RoundTrip {
	buy := m.CalculateBuyCosts(quantity, buyPrice)
	sell := m.CalculateSellCosts(quantity, sellPrice)

	grossPnl := sellPrice.Sub(buyPrice).Mul(decimal.NewFromInt(quantity))
	netPnl := grossPnl.Sub(buy.TotalFees()).Sub(sell.TotalFees())

	netPnlPct := decimal.Zero
	if buyNet := buy.NetAmount(); !buyNet.IsZero() {
		netPnlPct = netPnl.Div(buyNet).Mul(hundred)
	}

	return RoundTrip{
		BuyCosts:       buy,
		SellCosts:      sell,
		GrossPnl:       grossPnl,
		NetPnl:         netPnl,
		NetPnlPct:      netPnlPct,
		BreakevenPrice: m.BreakevenSellPrice(buyPrice),
	}
}

// BreakevenSellPrice solves the sell-cost formula for the price at which a
// round trip nets zero.
func (m *Model) BreakevenSellPrice(buyPrice decimal.Decimal) decimal.Decimal {
	commPct := decimal.NewFromFloat(m.fees.CommissionRatePct).Div(hundred)
	taxPct := decimal.NewFromFloat(m.fees.TransactionTaxRatePct).Div(hundred)
	agriPct := taxPct.Mul(decimal.NewFromFloat(m.fees.AgriFishTaxRatePct).Div(hundred))

	denominator := one.Sub(commPct.Add(taxPct).Add(agriPct))
	if denominator.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	return buyPrice.Mul(one.Add(commPct)).Div(denominator)
}

// GetMaxSharesToBuy returns the largest share count whose buy-side net amount
// fits inside the available cash. The first estimate divides cash by the
// commission-inflated price; the decrement loop then absorbs the
// non-linearity the min-commission floor introduces at small sizes.
func (m *Model) GetMaxSharesToBuy(cash, price decimal.Decimal) int64 {
	if price.LessThanOrEqual(decimal.Zero) || cash.LessThanOrEqual(decimal.Zero) {
		return 0
	}

	commPct := decimal.NewFromFloat(m.fees.CommissionRatePct).Div(hundred)
	shares := cash.Div(price.Mul(one.Add(commPct))).IntPart()

	for shares > 0 && m.CalculateBuyCosts(shares, price).NetAmount().GreaterThan(cash) {
		shares--
	}

	if shares < 0 {
		return 0
	}
	return shares
}

// commission applies the percentage rate with the configured minimum floor,
// rounded to whole KRW.
func (m *Model) commission(gross decimal.Decimal) decimal.Decimal {
	fee := ratePctOf(gross, m.fees.CommissionRatePct)
	minimum := decimal.NewFromFloat(m.fees.MinCommission)
	if fee.LessThan(minimum) {
		return minimum.Round(0)
	}
	return fee
}

func ratePctOf(amount decimal.Decimal, ratePct float64) decimal.Decimal {
	if ratePct == 0 {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromFloat(ratePct)).Div(hundred).Round(0)
}
