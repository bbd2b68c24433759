package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/S0me0neR0man/quadstash/internal/config"
	"github.com/S0me0neR0man/quadstash/internal/index"
	"github.com/S0me0neR0man/quadstash/internal/server"
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
	sugar.Infow("store opened", "path", conf.StoreFile, "id", store.ID(),
		"recovered", store.Recovered(), "entries", store.Len())

	ins := index.NewInserter(store, logger, index.LogPuts(logger), index.InstrumentPuts)
	s := server.NewIndexServer(ins, conf, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := s.Start(ctx); err != nil {
		sugar.Errorw("server", "error", err)
	}
	if err := store.Close(context.Background()); err != nil {
		sugar.Errorw("close store", "error", err)
	}
	sugar.Infow("bye", "stats", ins.Stats())
}
