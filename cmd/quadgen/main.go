package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/S0me0neR0man/quadstash/internal/config"
	"github.com/S0me0neR0man/quadstash/internal/generator"
	"github.com/S0me0neR0man/quadstash/internal/index"
	"github.com/S0me0neR0man/quadstash/internal/storage"
)

func main() {
	conf, err := config.NewConfig(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	logger, err := conf.Logger()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	store, err := storage.Open(conf.StoreOptions(), logger)
	if err != nil {
		sugar.Fatalw("open store", "path", conf.StoreFile, "error", err)
	}
	sugar.Infow("store opened", "path", conf.StoreFile, "recovered", store.Recovered(), "entries", store.Len())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	gen := generator.New(index.NewInserter(store, logger), generator.Options{
		Entities:      conf.Entities,
		MaxSizeMeters: conf.MaxSizeMeters,
		Workers:       conf.Workers,
		Seed:          conf.Seed,
		FlushInterval: conf.FlushInterval,
	}, logger)

	report, err := gen.Run(ctx)
	if err != nil {
		sugar.Errorw("generate", "error", err)
	}
	if err := store.Close(context.Background()); err != nil {
		sugar.Errorw("close store", "error", err)
	}
	sugar.Infow("report", "run", report.RunID, "entities", report.Entities,
		"duplicates", report.Duplicates, "exhausted", report.Exhausted, "elapsed", report.Elapsed)
}
