package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/hfcRed/Agent-8s-sub000/external/config"
	"github.com/hfcRed/Agent-8s-sub000/external/discord"
	historyimpl "github.com/hfcRed/Agent-8s-sub000/external/history"
	telemetryimpl "github.com/hfcRed/Agent-8s-sub000/external/telemetry"
	viewimpl "github.com/hfcRed/Agent-8s-sub000/external/view"
	"github.com/hfcRed/Agent-8s-sub000/internal/config"
	discordpkg "github.com/hfcRed/Agent-8s-sub000/internal/discord"
	"github.com/hfcRed/Agent-8s-sub000/internal/lobby"
	"github.com/hfcRed/Agent-8s-sub000/internal/retry"
	"github.com/samber/do/v2"
)

const (
	discordConnectTimeout = 20 * time.Second
	shutdownTimeout       = 30 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching lobby bot")
	runBot(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	discord.RegisterDI(injector)
	viewimpl.RegisterDI(injector)
	telemetryimpl.RegisterDI(injector)
	historyimpl.RegisterDI(injector)
	lobby.RegisterDI(injector)

	return injector
}

func runBot(cfg *config.Config, injector do.Injector) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	coordinator, err := do.Invoke[*lobby.Coordinator](injector)
	if err != nil {
		slog.Error("failed to resolve lobby coordinator", "error", err)
		os.Exit(1)
	}
	sweeper, err := do.Invoke[*lobby.Sweeper](injector)
	if err != nil {
		slog.Error("failed to resolve stale sweeper", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := retry.Critical.Do(ctx, "discord connect", func() error {
		return dc.Connect(ctx)
	}); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")

	if err := retry.Critical.Do(ctx, "upsert slash commands", func() error {
		return dc.UpsertGuildSlashCommands(cfg.DiscordGuildID, lobby.SlashCommandDefinitions())
	}); err != nil {
		slog.Error("failed to upsert slash commands", "error", err, "guild_id", cfg.DiscordGuildID)
		os.Exit(1)
	}

	dc.RegisterSlashCommandHandler(coordinator.HandleSlashCommand)
	dc.RegisterButtonHandler(coordinator.HandleButton)
	dc.RegisterMessageDeleteHandler(func(ev discordpkg.MessageDeleteEvent) {
		coordinator.HandleAnchorDeleted(context.Background(), ev)
	})
	slog.Info("discord handlers registered", "guild_id", cfg.DiscordGuildID)

	if err := sweeper.Start(); err != nil {
		slog.Error("failed to start stale sweeper", "error", err)
		os.Exit(1)
	}

	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	sweeper.Stop()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	coordinator.Shutdown(shutdownCtx)
}
