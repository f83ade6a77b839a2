package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"token-score-engine/internal/domain/entity"
	"token-score-engine/internal/domain/repository"
	"token-score-engine/internal/infrastructure/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4JScoreRepository implements ScoreRepository interface. Each scoring
// run becomes a Score node linked to its Token node, so the history of a
// token's risk profile is one relationship traversal away.
type Neo4JScoreRepository struct {
	client *Neo4JClient
	logger *logger.Logger
}

// NewNeo4JScoreRepository creates a new Neo4J score repository
func NewNeo4JScoreRepository(client *Neo4JClient, logger *logger.Logger) repository.ScoreRepository {
	return &Neo4JScoreRepository{
		client: client,
		logger: logger.WithComponent("neo4j-score-repo"),
	}
}

// SaveScore persists a score result and links it to its token node
func (r *Neo4JScoreRepository) SaveScore(ctx context.Context, result *entity.ScoreResult) error {
	session := r.client.GetDriver().NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	// The full result is stored as a JSON detail blob alongside the
	// queryable scalar fields
	detail, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode score result: %w", err)
	}

	query := `
		MERGE (t:Token {address: $address})
		ON CREATE SET t.first_scored = $timestamp
		SET t.last_scored = $timestamp,
			t.latest_score = $total_score,
			t.latest_risk_level = $risk_level
		CREATE (s:Score {
			total_score: $total_score,
			eoa_score: $eoa_score,
			holder_score: $holder_score,
			permission_score: $permission_score,
			risk_level: $risk_level,
			analysis_mode: $analysis_mode,
			timestamp: $timestamp,
			detail: $detail
		})
		CREATE (t)-[:HAS_SCORE]->(s)
	`

	params := map[string]interface{}{
		"address":          result.TokenAddress,
		"total_score":      result.TotalScore,
		"eoa_score":        result.EOA.Score,
		"holder_score":     result.Holder.Score,
		"permission_score": result.Permission.Score,
		"risk_level":       string(result.RiskLevel),
		"analysis_mode":    string(result.Mode),
		"timestamp":        result.Timestamp.Format(time.RFC3339),
		"detail":           string(detail),
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, params)
	})

	if err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}

	return nil
}

// GetLatestScore retrieves the most recent score for a token
func (r *Neo4JScoreRepository) GetLatestScore(ctx context.Context, tokenAddress string) (*entity.ScoreResult, error) {
	scores, err := r.GetScoreHistory(ctx, tokenAddress, 1)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}
	return scores[0], nil
}

// GetScoreHistory retrieves past scores for a token, newest first
func (r *Neo4JScoreRepository) GetScoreHistory(ctx context.Context, tokenAddress string, limit int) ([]*entity.ScoreResult, error) {
	session := r.client.GetDriver().NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	if limit <= 0 {
		limit = 10
	}

	query := `
		MATCH (t:Token {address: $address})-[:HAS_SCORE]->(s:Score)
		RETURN s.detail AS detail
		ORDER BY s.timestamp DESC
		LIMIT $limit
	`

	params := map[string]interface{}{
		"address": tokenAddress,
		"limit":   limit,
	}

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}

	var scores []*entity.ScoreResult
	for _, record := range records.([]*neo4j.Record) {
		detail, ok := record.Get("detail")
		if !ok {
			continue
		}
		detailStr, ok := detail.(string)
		if !ok {
			continue
		}

		var score entity.ScoreResult
		if err := json.Unmarshal([]byte(detailStr), &score); err != nil {
			r.logger.Warn("skipping undecodable score record")
			continue
		}
		scores = append(scores, &score)
	}

	return scores, nil
}
