package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hfcRed/Agent-8s-sub000/internal/history"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) history.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) RecordMatch(ctx context.Context, input history.RecordMatchInput) error {
	participants, err := json.Marshal(input.Participants)
	if err != nil {
		return err
	}
	var startedAt *time.Time
	if !input.StartedAt.IsZero() {
		startedAt = &input.StartedAt
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO matches (match_id, session_id, guild_id, channel_id, owner_id, outcome, participants, opened_at, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (match_id) DO NOTHING`,
		input.MatchID, input.SessionID, input.GuildID, input.ChannelID, input.OwnerID,
		string(input.Outcome), participants, input.OpenedAt, startedAt, input.EndedAt)
	return err
}

func (r *PostgresRepository) CountMatchesByGuild(ctx context.Context, guildID string) (int64, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM matches WHERE guild_id = $1`,
		guildID)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
