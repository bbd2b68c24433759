package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/S0me0neR0man/quadstash/internal/client"
	"github.com/S0me0neR0man/quadstash/internal/config"
	"github.com/S0me0neR0man/quadstash/internal/quadkey"
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

	c, err := client.NewGRPClient(conf.Addr, conf.AuthToken)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	checker := NewChecker(c, quadkey.UnitsForMeters(conf.MaxSizeMeters), conf.Seed, logger)
	checker.Go(ctx)
	checked, failed := checker.Wait()

	logger.Sugar().Infow("check finished", "checked", checked, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
