package serve

import (
	"github.com/sirupsen/logrus"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/config"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/database"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/pipeline"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/server"
)

type Serve struct {
}

func (s *Serve) Start() error {
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

	pipe, err := pipeline.New(logrus.WithField("component", "pipeline"), cfg)
	if err != nil {
		return err
	}

	server.StartServer(server.GetConfig().Port, pipe, cfg)
	return nil
}
