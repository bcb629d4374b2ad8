package history

import (
	"context"

	"github.com/hfcRed/Agent-8s-sub000/internal/history"
)

type NoopRepository struct{}

func NewNoopRepository() history.Repository {
	return &NoopRepository{}
}

func (r *NoopRepository) RecordMatch(_ context.Context, _ history.RecordMatchInput) error {
	return nil
}

func (r *NoopRepository) CountMatchesByGuild(_ context.Context, _ string) (int64, error) {
	return 0, nil
}
