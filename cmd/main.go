package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/sangrokhan/ko-stock-filter-sub001/cmd/entries"
	"github.com/sangrokhan/ko-stock-filter-sub001/cmd/exits"
	"github.com/sangrokhan/ko-stock-filter-sub001/cmd/loop"
	"github.com/sangrokhan/ko-stock-filter-sub001/cmd/serve"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Trading Pipeline CMD"
	app.Usage = "The trading-decision pipeline command line interface"

	app.Commands = []cli.Command{
		entriesCMD,
		exitsCMD,
		loopCMD,
		serveCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	entriesCMD = cli.Command{
		Name:      "entries",
		Usage:     "run the entry pipeline over candidate tickers",
		Action:    entriesAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "tickers",
				Usage: "comma-separated candidate tickers, e.g. 005930,000660",
			},
		},
		Description: `Generate, validate and execute entry signals for the given tickers`,
	}
	exitsCMD = cli.Command{
		Name:        "exits",
		Usage:       "run the exit pipeline over open positions",
		Action:      exitsAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Scan open positions for stop breaches and deteriorating fundamentals`,
	}
	loopCMD = cli.Command{
		Name:        "loop",
		Usage:       "run the pipeline continuously on a fixed period",
		Action:      loopAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run exits every tick and entries while the KRX session allows new positions. Candidates come from LOOP_TICKERS`,
	}
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "start the HTTP API",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the pipeline, positions and trades endpoints`,
	}
)

func entriesAction(c *cli.Context) error {

	logrus.Info("Starting entries CMD")

	var tickers []string
	for _, ticker := range strings.Split(c.String("tickers"), ",") {
		if trimmed := strings.TrimSpace(ticker); trimmed != "" {
			tickers = append(tickers, trimmed)
		}
	}

	run := &entries.Entries{Tickers: tickers}
	err := run.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func loopAction(_ *cli.Context) error {

	logrus.Info("Starting loop CMD")

	run := &loop.Loop{}
	err := run.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func serveAction(_ *cli.Context) error {

	logrus.Info("Starting serve CMD")

	run := &serve.Serve{}
	err := run.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func exitsAction(_ *cli.Context) error {

	logrus.Info("Starting exits CMD")

	run := &exits.Exits{}
	err := run.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}
