package service

import (
	"context"
	"time"

	"token-score-engine/internal/domain/entity"
	domainservice "token-score-engine/internal/domain/service"
	"token-score-engine/internal/infrastructure/cache"
	"token-score-engine/internal/infrastructure/logger"
)

// holderPageSize is how many top holders are fetched; only the top 10
// drive the score but the fuller page improves the reported metrics
const holderPageSize = 100

// HolderAnalyzer scores supply concentration from the combined share of
// the top 10 holders. Worth up to 30 of the 100 total points.
type HolderAnalyzer struct {
	cached   *cache.Cached
	retry    *cache.Retry
	chain    domainservice.ChainStateReader
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewHolderAnalyzer creates the holder concentration analyzer. The chain
// reader is optional and only used to backfill ownership shares when the
// data source returns balances without percentages.
func NewHolderAnalyzer(cached *cache.Cached, retry *cache.Retry, chain domainservice.ChainStateReader, cacheTTL time.Duration, logger *logger.Logger) *HolderAnalyzer {
	return &HolderAnalyzer{
		cached:   cached,
		retry:    retry,
		chain:    chain,
		cacheTTL: cacheTTL,
		logger:   logger.WithComponent("holder-analyzer"),
	}
}

type holderSnapshot struct {
	Holders []entity.TokenHolder `json:"holders"`
	Total   int                  `json:"total"`
}

// Analyze fetches the holder leaderboard from the given source and scores
// the top-10 concentration. Fetch errors are returned to the caller, which
// owns the fallback decision.
func (a *HolderAnalyzer) Analyze(ctx context.Context, source domainservice.DataSource, req entity.ScoreRequest) (entity.AnalyzerResult, error) {
	key := cache.Key("holders", req.TokenAddress, source.Name(), holderPageSize)

	var snapshot holderSnapshot
	err := a.cached.Do(ctx, key, a.cacheTTL, &snapshot, func(ctx context.Context) (any, error) {
		var holders []entity.TokenHolder
		var total int

		err := a.retry.Do(ctx, "fetch holders", func(ctx context.Context) error {
			var err error
			holders, total, err = source.FetchHolders(ctx, req.TokenAddress, holderPageSize)
			return err
		})
		if err != nil {
			return nil, err
		}

		// Recompute unknown shares before caching so repeated calls
		// within the TTL score the same snapshot
		a.backfillPercentages(ctx, req.TokenAddress, holders)
		return holderSnapshot{Holders: holders, Total: total}, nil
	})
	if err != nil {
		return entity.AnalyzerResult{}, err
	}

	return a.score(snapshot, source.Name()), nil
}

// backfillPercentages recomputes ownership shares from the on-chain total
// supply when the source returned balances without a supply basis
func (a *HolderAnalyzer) backfillPercentages(ctx context.Context, tokenAddress string, holders []entity.TokenHolder) {
	if a.chain == nil {
		return
	}

	needsBackfill := false
	for i := range holders {
		if !holders[i].HasPercentage() {
			needsBackfill = true
			break
		}
	}
	if !needsBackfill {
		return
	}

	totalSupply, err := a.chain.TotalSupply(ctx, tokenAddress)
	if err != nil || totalSupply <= 0 {
		// No supply basis: unknown shares become zero, never negative or NaN
		a.logger.Warn("total supply unavailable, treating unknown shares as zero")
		for i := range holders {
			if !holders[i].HasPercentage() {
				holders[i].Percentage = 0
			}
		}
		return
	}

	for i := range holders {
		if !holders[i].HasPercentage() {
			holders[i].Percentage = holders[i].BalanceFormatted / totalSupply * 100
		}
	}
}

// score derives the concentration result. An empty holder set scores 0
// with an unknown risk level rather than failing the composite.
func (a *HolderAnalyzer) score(snapshot holderSnapshot, sourceName string) entity.AnalyzerResult {
	if len(snapshot.Holders) == 0 {
		return entity.AnalyzerResult{
			Score:      0,
			MaxScore:   entity.MaxScoreHolder,
			RiskLevel:  entity.RiskLevelUnknown,
			DataSource: sourceName,
			Metrics: map[string]any{
				"total_holders":    0,
				"top10_percentage": 0.0,
				"message":          "no holders found",
			},
		}
	}

	top := snapshot.Holders
	if len(top) > 10 {
		top = top[:10]
	}

	top10Percentage := 0.0
	known := 0
	topHolders := make([]map[string]any, 0, len(top))
	for i := range top {
		h := &top[i]
		if h.HasPercentage() {
			top10Percentage += h.Percentage
			known++
		}
		topHolders = append(topHolders, map[string]any{
			"address":     h.Address,
			"balance":     h.BalanceFormatted,
			"percentage":  round2(h.Percentage),
			"rank":        h.Rank,
			"is_contract": h.IsContract,
		})
	}

	score := scoreHolderConcentration(top10Percentage)
	riskLevel := holderRiskLevel(top10Percentage)

	return entity.AnalyzerResult{
		Score:      score,
		MaxScore:   entity.MaxScoreHolder,
		RiskLevel:  riskLevel,
		DataSource: sourceName,
		Metrics: map[string]any{
			"total_holders":     snapshot.Total,
			"top10_percentage":  round2(top10Percentage),
			"top10_known_share": known,
			"top_holders":       topHolders,
		},
	}
}

// scoreHolderConcentration maps the top-10 share to [3, 30]. Each band is
// linear and the function is continuous at the band edges; the floor of 3
// keeps even a fully concentrated token off an absolute zero.
func scoreHolderConcentration(top10Percentage float64) float64 {
	switch {
	case top10Percentage <= 20:
		return entity.MaxScoreHolder
	case top10Percentage <= 40:
		return round2(30.0 - (top10Percentage-20)*0.5)
	case top10Percentage <= 70:
		return round2(20.0 - (top10Percentage-40)*(10.0/30.0))
	default:
		score := 10.0 - (top10Percentage-70)*(7.0/30.0)
		if score < 3.0 {
			score = 3.0
		}
		return round2(score)
	}
}

func holderRiskLevel(top10Percentage float64) entity.RiskLevel {
	switch {
	case top10Percentage <= 20:
		return entity.RiskLevelLow
	case top10Percentage <= 40:
		return entity.RiskLevelMedium
	case top10Percentage <= 60:
		return entity.RiskLevelHigh
	default:
		return entity.RiskLevelExtreme
	}
}
