package handler

import (
	"context"
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/repository"
)

type positionLister interface {
	FindAllByUser(ctx context.Context, userID uint) ([]model.Position, error)
}

// ListPositionsHandler returns every open position of the configured user.
func ListPositionsHandler(repo positionLister, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		positions, err := repo.FindAllByUser(r.Context(), cfg.UserID)
		if err != nil {
			logger.WithError(err).Error("failed to list positions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(positions); err != nil {
			logger.WithError(err).Error("failed to encode positions response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// DefaultListPositionsHandler wires the handler to the production repository implementation.
func DefaultListPositionsHandler(cfg config.Config) http.HandlerFunc {
	return ListPositionsHandler(repository.NewPositionRepository(), cfg)
}
