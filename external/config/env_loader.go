package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/hfcRed/Agent-8s-sub000/internal/config"
)

type envConfig struct {
	Env                 string        `env:"ENV" envDefault:"production"`
	DiscordToken        string        `env:"DISCORD_TOKEN,required"`
	DiscordGuildID      string        `env:"DISCORD_GUILD_ID,required"`
	LobbyCapacity       int           `env:"LOBBY_CAPACITY" envDefault:"8"`
	TeamVoiceChannels   int           `env:"TEAM_VOICE_CHANNELS" envDefault:"2"`
	AutoStart           bool          `env:"AUTO_START" envDefault:"true"`
	AutoStartDelay      time.Duration `env:"AUTO_START_DELAY" envDefault:"30s"`
	UpdateDebounce      time.Duration `env:"UPDATE_DEBOUNCE" envDefault:"2s"`
	GuardSafetyWindow   time.Duration `env:"GUARD_SAFETY_WINDOW" envDefault:"30s"`
	SweepSchedule       string        `env:"SWEEP_SCHEDULE" envDefault:"@every 10m"`
	MaxLobbyLifetime    time.Duration `env:"MAX_LOBBY_LIFETIME" envDefault:"8h"`
	RepingCooldown      time.Duration `env:"REPING_COOLDOWN" envDefault:"10m"`
	DatabaseURL         string        `env:"DATABASE_URL"`
	TelemetryWebhookURL string        `env:"TELEMETRY_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                 raw.Env,
		DiscordToken:        raw.DiscordToken,
		DiscordGuildID:      raw.DiscordGuildID,
		LobbyCapacity:       raw.LobbyCapacity,
		TeamVoiceChannels:   raw.TeamVoiceChannels,
		AutoStart:           raw.AutoStart,
		AutoStartDelay:      raw.AutoStartDelay,
		UpdateDebounce:      raw.UpdateDebounce,
		GuardSafetyWindow:   raw.GuardSafetyWindow,
		SweepSchedule:       raw.SweepSchedule,
		MaxLobbyLifetime:    raw.MaxLobbyLifetime,
		RepingCooldown:      raw.RepingCooldown,
		DatabaseURL:         raw.DatabaseURL,
		TelemetryWebhookURL: raw.TelemetryWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
