package history

import (
	"context"
	"time"
)

type MatchOutcome string

const (
	MatchOutcomeFinished  MatchOutcome = "finished"
	MatchOutcomeCancelled MatchOutcome = "cancelled"
	MatchOutcomeExpired   MatchOutcome = "expired"
)

type MatchParticipant struct {
	UserID string
	Role   string
	Rank   int
}

type RecordMatchInput struct {
	MatchID      string
	SessionID    string
	GuildID      string
	ChannelID    string
	OwnerID      string
	Outcome      MatchOutcome
	Participants []MatchParticipant
	OpenedAt     time.Time
	StartedAt    time.Time
	EndedAt      time.Time
}

type Repository interface {
	RecordMatch(ctx context.Context, input RecordMatchInput) error
	CountMatchesByGuild(ctx context.Context, guildID string) (int64, error)
}
