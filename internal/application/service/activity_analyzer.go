package service

import (
	"context"
	"math"
	"strings"
	"time"

	"token-score-engine/internal/domain/entity"
	domainservice "token-score-engine/internal/domain/service"
	"token-score-engine/internal/infrastructure/cache"
	"token-score-engine/internal/infrastructure/logger"
)

// Activity score thresholds, normalized to a one-hour window: 300 or more
// distinct EOAs is organic traffic, under 50 suggests wash trading.
const (
	activityHighThreshold = 300.0
	activityLowThreshold  = 50.0
)

// ActivityAnalyzer scores token health from the number of distinct
// externally owned accounts interacting with the token inside the request
// window. Worth up to 40 of the 100 total points.
type ActivityAnalyzer struct {
	cached   *cache.Cached
	retry    *cache.Retry
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewActivityAnalyzer creates the EOA activity analyzer
func NewActivityAnalyzer(cached *cache.Cached, retry *cache.Retry, cacheTTL time.Duration, logger *logger.Logger) *ActivityAnalyzer {
	return &ActivityAnalyzer{
		cached:   cached,
		retry:    retry,
		cacheTTL: cacheTTL,
		logger:   logger.WithComponent("activity-analyzer"),
	}
}

// Analyze fetches interaction records from the given source and derives
// the activity score. Fetch errors are returned to the caller, which owns
// the fallback decision.
func (a *ActivityAnalyzer) Analyze(ctx context.Context, source domainservice.DataSource, req entity.ScoreRequest) (entity.AnalyzerResult, error) {
	records, err := a.fetchRecords(ctx, source, req)
	if err != nil {
		return entity.AnalyzerResult{}, err
	}

	return a.score(records, req.TimeWindowHours, source.Name()), nil
}

// fetchRecords walks the activity feed up to the request limit, memoized
// per token and limit. Pagination stops on an empty page, an empty cursor
// or the limit, whichever comes first.
func (a *ActivityAnalyzer) fetchRecords(ctx context.Context, source domainservice.DataSource, req entity.ScoreRequest) ([]entity.AccountRecord, error) {
	key := cache.Key("activity", req.TokenAddress, source.Name(), req.Limit)

	var records []entity.AccountRecord
	err := a.cached.Do(ctx, key, a.cacheTTL, &records, func(ctx context.Context) (any, error) {
		var all []entity.AccountRecord

		err := a.retry.Do(ctx, "fetch activity", func(ctx context.Context) error {
			all = all[:0]
			cursor := ""

			for len(all) < req.Limit {
				pageSize := req.Limit - len(all)
				if pageSize > 100 {
					pageSize = 100
				}

				page, nextCursor, err := source.FetchActivity(ctx, req.TokenAddress, cursor, pageSize)
				if err != nil {
					return err
				}
				if len(page) == 0 {
					break
				}

				all = append(all, page...)
				if nextCursor == "" {
					break
				}
				cursor = nextCursor
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		if len(all) > req.Limit {
			all = all[:req.Limit]
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// score derives the activity result from fetched records. Zero records is
// not an error: it scores 0 with high risk, flagged as partial data.
func (a *ActivityAnalyzer) score(records []entity.AccountRecord, windowHours int, sourceName string) entity.AnalyzerResult {
	if len(records) == 0 {
		return entity.AnalyzerResult{
			Score:      0,
			MaxScore:   entity.MaxScoreActivity,
			RiskLevel:  entity.RiskLevelHigh,
			DataSource: sourceName,
			Metrics: map[string]any{
				"unique_eoa_count":  0,
				"total_addresses":   0,
				"records_analyzed":  0,
				"time_window_hours": windowHours,
				"message":           "no interaction records found",
			},
		}
	}

	allAddresses := make(map[string]struct{})
	eoaAddresses := make(map[string]struct{})
	contractAddresses := make(map[string]struct{})
	eoaTxCounts := make(map[string]int)

	for i := range records {
		r := &records[i]
		for _, pair := range []struct {
			addr       string
			isContract bool
		}{
			{r.From, r.FromContract},
			{r.To, r.ToContract},
		} {
			addr := strings.ToLower(pair.addr)
			if addr == "" || addr == entity.ZeroAddress {
				continue
			}
			allAddresses[addr] = struct{}{}
			if pair.isContract {
				contractAddresses[addr] = struct{}{}
			} else {
				eoaAddresses[addr] = struct{}{}
				eoaTxCounts[addr]++
			}
		}
	}

	uniqueEOA := len(eoaAddresses)
	score, riskLevel := scoreActivityCount(uniqueEOA, windowHours)

	eoaPercentage := 0.0
	if len(allAddresses) > 0 {
		eoaPercentage = round2(float64(uniqueEOA) / float64(len(allAddresses)) * 100)
	}

	metrics := map[string]any{
		"unique_eoa_count":   uniqueEOA,
		"total_addresses":    len(allAddresses),
		"contract_addresses": len(contractAddresses),
		"eoa_percentage":     eoaPercentage,
		"records_analyzed":   len(records),
		"time_window_hours":  windowHours,
	}
	for k, v := range activityFrequencyStats(eoaTxCounts) {
		metrics[k] = v
	}

	return entity.AnalyzerResult{
		Score:      score,
		MaxScore:   entity.MaxScoreActivity,
		RiskLevel:  riskLevel,
		DataSource: sourceName,
		Metrics:    metrics,
	}
}

// scoreActivityCount maps a distinct-EOA count to [0, 40]. The count is
// first normalized to a one-hour window; the middle band interpolates
// linearly so the score is continuous at both thresholds.
func scoreActivityCount(uniqueEOA int, windowHours int) (float64, entity.RiskLevel) {
	if windowHours < 1 {
		windowHours = 1
	}
	normalized := float64(uniqueEOA) / float64(windowHours)

	switch {
	case normalized >= activityHighThreshold:
		return entity.MaxScoreActivity, entity.RiskLevelLow
	case normalized >= activityLowThreshold:
		score := 20 + (normalized-activityLowThreshold)/250*20
		return round2(score), entity.RiskLevelMedium
	default:
		score := normalized / activityLowThreshold * 20
		return round2(score), entity.RiskLevelHigh
	}
}

// activityFrequencyStats summarizes per-EOA transaction counts. A large
// share of single-transaction accounts alongside a few very busy ones is
// a wash-trading shape worth surfacing.
func activityFrequencyStats(txCounts map[string]int) map[string]any {
	if len(txCounts) == 0 {
		return nil
	}

	total := 0
	highFrequency := 0
	singleTx := 0
	for _, count := range txCounts {
		total += count
		if count > 10 {
			highFrequency++
		}
		if count == 1 {
			singleTx++
		}
	}

	n := float64(len(txCounts))
	return map[string]any{
		"avg_tx_per_eoa":       round2(float64(total) / n),
		"high_frequency_eoa":   highFrequency,
		"single_tx_eoa":        singleTx,
		"high_freq_percentage": round2(float64(highFrequency) / n * 100),
		"single_tx_percentage": round2(float64(singleTx) / n * 100),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
