package repository

import (
	"context"

	"token-score-engine/internal/domain/entity"
)

// ScoreRepository defines persistence for completed scoring results
type ScoreRepository interface {
	// SaveScore persists a score result and links it to its token node
	SaveScore(ctx context.Context, result *entity.ScoreResult) error

	// GetLatestScore retrieves the most recent score for a token
	GetLatestScore(ctx context.Context, tokenAddress string) (*entity.ScoreResult, error)

	// GetScoreHistory retrieves past scores for a token, newest first
	GetScoreHistory(ctx context.Context, tokenAddress string, limit int) ([]*entity.ScoreResult, error)
}
