package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"rradio/internal/broadcaster"
	"rradio/internal/bus"
	"rradio/internal/config"
	"rradio/internal/controller"
	"rradio/internal/driver"
	"rradio/internal/messages"
	"rradio/internal/ports"
	"rradio/internal/ports/tcp"
	"rradio/internal/ports/web"
	"rradio/internal/station"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			logger.WithError(err).Warn("could not load .env file")
		}
	}

	configPath := os.Getenv("RRADIO_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.WithError(err).Error("failed to load configuration")
		return 1
	}

	b := bus.New()
	bc := broadcaster.New(messages.NewPlayerState(cfg.InitialVolume))
	drv := driver.New(driver.NewFileEngine())
	ctl := controller.New(b, bc, drv, cfg, cfg.StationsDirectory, logger)

	ch := &ports.Channels{Bus: b, Broadcaster: bc}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctl.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		station.Watch(ctx, cfg.StationsDirectory, logger)
	}()

	var portWG sync.WaitGroup

	if cfg.TCP.Enabled {
		listener, err := net.Listen("tcp", cfg.TCP.Address)
		if err != nil {
			logger.WithError(err).Error("failed to bind tcp port")
			cancel()
			return 1
		}
		portWG.Add(1)
		go func() {
			defer portWG.Done()
			if err := tcp.ServeListener(ctx, listener, ch, logger); err != nil {
				logger.WithError(err).Warn("tcp port stopped")
			}
		}()
	}

	if cfg.Web.Enabled {
		listener, err := net.Listen("tcp", cfg.Web.Address)
		if err != nil {
			logger.WithError(err).Error("failed to bind web port")
			cancel()
			return 1
		}
		portWG.Add(1)
		go func() {
			defer portWG.Done()
			if err := web.ServeListener(ctx, listener, ch, logger, cfg.Web.StaticDir); err != nil {
				logger.WithError(err).Warn("web port stopped")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	<-sig
	logger.Info("received shutdown signal")
	cancel()

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		portWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		logger.Warn("shutdown grace period elapsed, exiting with goroutines still draining")
	}

	return 0
}
