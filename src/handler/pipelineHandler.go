package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/execution"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/pipeline"
)

type entryRunner interface {
	RunEntries(ctx context.Context, candidates []string) (*pipeline.Report, error)
}

type exitRunner interface {
	RunExits(ctx context.Context) (*pipeline.Report, error)
}

type orderCanceller interface {
	CancelOrder(ctx context.Context, orderID, reason string) (*model.Trade, error)
}

type entriesRequest struct {
	Tickers []string `json:"tickers"`
}

// RunEntriesHandler triggers an entry pipeline run over the posted candidate
// tickers and returns the full run report.
func RunEntriesHandler(runner entryRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req entriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(req.Tickers) == 0 {
			http.Error(w, "tickers must not be empty", http.StatusBadRequest)
			return
		}

		report, err := runner.RunEntries(r.Context(), req.Tickers)
		if err != nil {
			logger.WithError(err).Error("entry pipeline run failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.WithError(err).Error("failed to encode entry pipeline report")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// RunExitsHandler triggers an exit pipeline run and returns the run report.
func RunExitsHandler(runner exitRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := runner.RunExits(r.Context())
		if err != nil {
			logger.WithError(err).Error("exit pipeline run failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.WithError(err).Error("failed to encode exit pipeline report")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelOrderHandler cancels a pending order by its order id.
func CancelOrderHandler(canceller orderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			http.Error(w, "missing orderID", http.StatusBadRequest)
			return
		}

		var req cancelRequest
		if r.Body != nil {
			// An empty body is fine; the reason is optional.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		trade, err := canceller.CancelOrder(r.Context(), orderID, req.Reason)
		if err != nil {
			switch {
			case errors.Is(err, execution.ErrOrderNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, execution.ErrOrderTerminal):
				http.Error(w, "order already in terminal status", http.StatusConflict)
			default:
				logger.WithError(err).Error("failed to cancel order")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(trade); err != nil {
			logger.WithError(err).Error("failed to encode cancel response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}
