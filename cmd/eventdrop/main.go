package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/dmitrymomot/eventdrop/internal/handlers"
	"github.com/dmitrymomot/eventdrop/pkg/authgate"
	"github.com/dmitrymomot/eventdrop/pkg/authrate"
	"github.com/dmitrymomot/eventdrop/pkg/config"
	"github.com/dmitrymomot/eventdrop/pkg/event"
	"github.com/dmitrymomot/eventdrop/pkg/filestore"
	"github.com/dmitrymomot/eventdrop/pkg/httpserver"
	"github.com/dmitrymomot/eventdrop/pkg/logger"
)

type appConfig struct {
	DataRoot string `env:"DATA_ROOT" envDefault:"./data"`

	Log      logger.Config
	Server   httpserver.Config
	AuthRate authrate.Config
	Handlers handlers.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(cfg.Log, logger.WithAttr(slog.String("app", "eventdrop")))

	events, err := event.NewStore(cfg.DataRoot)
	if err != nil {
		log.Error("init event store", slog.Any("error", err))
		os.Exit(1)
	}
	files, err := filestore.NewStore(cfg.DataRoot)
	if err != nil {
		log.Error("init file store", slog.Any("error", err))
		os.Exit(1)
	}

	gate := authgate.New(authrate.NewMemoryTracker(cfg.AuthRate), authgate.WithLogger(log))
	h := handlers.New(events, files, gate, cfg.Handlers, log)

	srv := httpserver.New(cfg.Server, log)
	if err := srv.Run(context.Background(), h.Router()); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
