package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pachmu/job_finder_bot/config"
	"github.com/pachmu/job_finder_bot/internal/bot"
	"github.com/pachmu/job_finder_bot/internal/db"
	"github.com/pachmu/job_finder_bot/internal/jobs"
	"github.com/pachmu/job_finder_bot/internal/listing"
	"github.com/pachmu/job_finder_bot/internal/theme"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "./config/config.yaml", "Path to config file")

func main() {
	flag.Parse()
	conf, err := config.GetConfig(*configPath)
	if err != nil {
		logrus.Fatal(err)
	}
	level, err := logrus.ParseLevel(conf.Log.Level)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	errGr, ctx := errgroup.WithContext(ctx)
	sqliteDB, err := db.NewSQLiteDB(conf.Sqlite.Datasource)
	if err != nil {
		logrus.Fatal(err)
	}
	defer sqliteDB.Close()

	board := jobs.NewBoard(listing.NewFetcher(conf.Listing.URL, conf.Listing.Timeout), sqliteDB)
	handler := bot.NewMessageHandler(conf.Bot.ChatID, board, &theme.Switch{})
	bt, err := bot.NewTelegramBot(conf.Bot.Token, handler)
	if err != nil {
		logrus.Fatal(err)
	}
	errGr.Go(func() error {
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		select {
		case <-quitCh:
		case <-ctx.Done():
		}

		cancel()
		return nil
	})

	errGr.Go(func() error {
		return bt.Run(ctx)
	})
	logrus.Info("Bot started")

	err = errGr.Wait()
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.Info("Process terminated")
}
