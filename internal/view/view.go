package view

import (
	"time"

	"github.com/hfcRed/Agent-8s-sub000/internal/discord"
)

type ParticipantView struct {
	UserID   string
	Role     string
	Rank     int
	IsOwner  bool
	JoinedAt time.Time
}

// Snapshot is an immutable copy of lobby state taken under the store lock.
// Builders must treat it as read-only.
type Snapshot struct {
	SessionID    string
	GuildID      string
	ChannelID    string
	ThreadID     string
	MatchID      string
	OwnerID      string
	Capacity     int
	Participants []ParticipantView
	Spectators   []string
	Waitlist     []string
	CreatedAt    time.Time
	Started      bool
	StartedAt    time.Time
	AutoStartAt  time.Time
	Terminal     bool
	State        string
}

func (s Snapshot) IsFull() bool {
	return len(s.Participants) >= s.Capacity
}

type Builder interface {
	BuildMessage(snap Snapshot) discord.MessageContent
}
