package execution

import "github.com/sangrokhan/ko-stock-filter-sub001/src/model"

// Summary is a pure aggregation over a set of trades, independent of how
// the batch that produced them went.
type Summary struct {
	Total     int `json:"total"`
	Tickers   int `json:"tickers"`
	Buys      int `json:"buys"`
	Sells     int `json:"sells"`
	Executed  int `json:"executed"`
	Pending   int `json:"pending"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`

	BuyValue        float64 `json:"buy_value"`
	SellValue       float64 `json:"sell_value"`
	TotalCommission float64 `json:"total_commission"`
	TotalTax        float64 `json:"total_tax"`
	RealizedPnl     float64 `json:"realized_pnl"`
}

// Summarize folds the trades into one summary. Monetary fields only count
// executed trades; a pending or cancelled order has moved no money.
func Summarize(trades []model.Trade) Summary {
	var s Summary
	tickers := make(map[string]struct{})

	for _, t := range trades {
		s.Total++
		tickers[t.Ticker] = struct{}{}

		switch t.Action {
		case model.OrderActionBuy:
			s.Buys++
		case model.OrderActionSell:
			s.Sells++
		}

		switch t.Status {
		case model.OrderStatusExecuted:
			s.Executed++
		case model.OrderStatusPending:
			s.Pending++
		case model.OrderStatusCancelled:
			s.Cancelled++
		case model.OrderStatusFailed:
			s.Failed++
		}

		if t.Status != model.OrderStatusExecuted {
			continue
		}

		switch t.Action {
		case model.OrderActionBuy:
			s.BuyValue += t.TotalAmount
		case model.OrderActionSell:
			s.SellValue += t.TotalAmount
			s.RealizedPnl += t.RealizedPnl
		}
		s.TotalCommission += t.Commission
		s.TotalTax += t.Tax
	}

	s.Tickers = len(tickers)
	return s
}
