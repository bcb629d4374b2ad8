package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env                 string
	DiscordToken        string
	DiscordGuildID      string
	LobbyCapacity       int
	TeamVoiceChannels   int
	AutoStart           bool
	AutoStartDelay      time.Duration
	UpdateDebounce      time.Duration
	GuardSafetyWindow   time.Duration
	SweepSchedule       string
	MaxLobbyLifetime    time.Duration
	RepingCooldown      time.Duration
	DatabaseURL         string
	TelemetryWebhookURL string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.LobbyCapacity < 2 {
		return fmt.Errorf("LOBBY_CAPACITY must be at least 2, got %d", c.LobbyCapacity)
	}
	if c.TeamVoiceChannels < 0 {
		return fmt.Errorf("TEAM_VOICE_CHANNELS must not be negative, got %d", c.TeamVoiceChannels)
	}
	for _, d := range c.positiveDurationChecks() {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "SWEEP_SCHEDULE", value: c.SweepSchedule},
	}
}

type positiveDurationField struct {
	name  string
	value time.Duration
}

func (c *Config) positiveDurationChecks() []positiveDurationField {
	return []positiveDurationField{
		{name: "AUTO_START_DELAY", value: c.AutoStartDelay},
		{name: "UPDATE_DEBOUNCE", value: c.UpdateDebounce},
		{name: "GUARD_SAFETY_WINDOW", value: c.GuardSafetyWindow},
		{name: "MAX_LOBBY_LIFETIME", value: c.MaxLobbyLifetime},
		{name: "REPING_COOLDOWN", value: c.RepingCooldown},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
