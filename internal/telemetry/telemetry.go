package telemetry

import (
	"context"
	"time"
)

type Event struct {
	Name      string            `json:"name"`
	SessionID string            `json:"session_id,omitempty"`
	GuildID   string            `json:"guild_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	At        time.Time         `json:"at"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

type Tracker interface {
	Track(ctx context.Context, ev Event) error
}
