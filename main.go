package main

import (
	"fmt"
	"net/http"
	"os"

	"chessai/internal/config"
	"chessai/internal/engine"
	"chessai/internal/game"
	"chessai/internal/handlers"
	"chessai/internal/logging"
	"chessai/internal/storage"
	"chessai/internal/templates"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.Setup(os.Stderr, cfg.LogFormat, cfg.Debug)

	templates.SetVersion(versionString())

	// The server still starts without an engine; automated moves then fail
	// with engine_unavailable and the player can continue manually.
	var mover game.Mover
	if path, err := engine.Locate(cfg.EnginePath); err != nil {
		log.Error().Err(err).Msg("no chess engine; games against the computer are disabled")
	} else {
		log.Info().Str("path", path).Dur("think", cfg.ThinkTime).Msg("using engine")
		mover = engine.New(path)
	}

	var store *storage.Store
	if cfg.DSN != "" {
		db, err := storage.New(cfg.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open database")
		}
		store = storage.NewStore(db)
		log.Info().Msg("persisting games to postgres")
	}

	hub := game.NewHub(cfg.IdleTTL)
	seq := game.NewSequencer(mover, cfg.ThinkTime)
	h := handlers.NewHandler(hub, seq, store)

	mux := http.NewServeMux()
	h.Routes(mux)

	log.Info().Str("addr", cfg.Addr).Str("version", versionString()).Msg("Chess AI listening")
	if err := http.ListenAndServe(cfg.Addr, handlers.LogRequests(mux)); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}
