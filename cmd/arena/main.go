package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/marsdevs/chess-arena/internal/archive"
	"github.com/marsdevs/chess-arena/internal/bot"
	"github.com/marsdevs/chess-arena/internal/config"
	"github.com/marsdevs/chess-arena/internal/directory"
	"github.com/marsdevs/chess-arena/internal/game"
	"github.com/marsdevs/chess-arena/internal/httpapi"
	"github.com/marsdevs/chess-arena/internal/invite"
	"github.com/marsdevs/chess-arena/internal/msgcat"
	"github.com/marsdevs/chess-arena/internal/obslog"
	"github.com/marsdevs/chess-arena/internal/wallet"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		obslog.L().Fatal("config_load_error", zap.Error(err))
	}

	store, err := game.NewStore(cfg.RedisURL)
	if err != nil {
		obslog.L().Fatal("redis_connect_error", zap.Error(err))
	}
	defer store.Close()

	repo, err := archive.NewRepository(cfg.DatabaseURL)
	if err != nil {
		obslog.L().Fatal("database_connect_error", zap.Error(err))
	}
	defer repo.Close()

	cat, err := msgcat.New(os.Getenv("ARENA_MESSAGES_DIR"))
	if err != nil {
		obslog.L().Fatal("msgcat_load_error", zap.Error(err))
	}

	ledger := wallet.NewPostgresLedger(repo.DB())
	students := directory.NewPostgresDirectory(repo.DB())

	games := game.NewManager(store, bot.NewSelector(cfg.BotDepth, nil), ledger)
	games.AttachArchive(repo)
	invites := invite.NewManager(store.Client(), games, cfg.InviteTTL)

	srv := httpapi.NewServer(games, invites, students, cat, cfg.OnlineStudentsLimit)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.HTTPAddr) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			obslog.L().Fatal("http_serve_error", zap.Error(err))
		}
	case s := <-sig:
		obslog.L().Info("shutdown_signal", zap.String("signal", s.String()))
		if err := srv.Shutdown(); err != nil {
			obslog.L().Warn("http_shutdown_error", zap.Error(err))
		}
	}
	obslog.L().Info("shutdown_complete")
}
