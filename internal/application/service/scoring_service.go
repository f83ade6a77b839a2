package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"token-score-engine/internal/domain/entity"
	"token-score-engine/internal/domain/repository"
	domainservice "token-score-engine/internal/domain/service"
	"token-score-engine/internal/infrastructure/config"
	"token-score-engine/internal/infrastructure/logger"
)

// ScoringService orchestrates one composite scoring run: it resolves the
// data-acquisition mode, fans out the three dimension analyzers, applies
// the fast-to-deep fallback, and aggregates the results. The total score
// is the literal sum of the three sub-scores, each already clamped to its
// own ceiling, so no final clamp is needed.
type ScoringService struct {
	fast       domainservice.DataSource
	deep       domainservice.DataSource
	chain      domainservice.ChainStateReader
	activity   *ActivityAnalyzer
	holder     *HolderAnalyzer
	permission *PermissionAnalyzer
	scores     repository.ScoreRepository
	cfg        *config.Config
	logger     *logger.Logger
}

// NewScoringService creates the scoring orchestrator. The fast source and
// score repository may be nil when the provider or history store is not
// configured.
func NewScoringService(
	fast domainservice.DataSource,
	deep domainservice.DataSource,
	chain domainservice.ChainStateReader,
	activity *ActivityAnalyzer,
	holder *HolderAnalyzer,
	permission *PermissionAnalyzer,
	scores repository.ScoreRepository,
	cfg *config.Config,
	logger *logger.Logger,
) *ScoringService {
	return &ScoringService{
		fast:       fast,
		deep:       deep,
		chain:      chain,
		activity:   activity,
		holder:     holder,
		permission: permission,
		scores:     scores,
		cfg:        cfg,
		logger:     logger.WithComponent("scoring-service"),
	}
}

// ScoreToken runs the full composite analysis for one token. Dimension
// failures degrade to zero-score results; only invalid input fails the
// request itself.
func (s *ScoringService) ScoreToken(ctx context.Context, req entity.ScoreRequest) (*entity.ScoreResult, error) {
	req.Normalize()
	if !entity.IsValidAddress(req.TokenAddress) {
		return nil, &domainservice.ValidationError{
			Field:  "token_address",
			Reason: "must be a 0x-prefixed 40-hex-digit address",
		}
	}
	if req.TimeWindowHours <= 0 {
		req.TimeWindowHours = s.cfg.Scoring.TimeWindowHours
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.Scoring.ActivityLimit
	}

	source, err := s.resolveSource(req.Mode)
	if err != nil {
		return nil, err
	}

	s.logger.Info("scoring token",
		zap.String("token", req.TokenAddress),
		zap.String("mode", string(req.Mode)),
		zap.String("source", source.Name()))

	var (
		wg               sync.WaitGroup
		eoaResult        entity.AnalyzerResult
		holderResult     entity.AnalyzerResult
		permissionResult entity.AnalyzerResult
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		eoaResult = s.runWithFallback(ctx, "activity", source, func(ctx context.Context, src domainservice.DataSource) (entity.AnalyzerResult, error) {
			return s.activity.Analyze(ctx, src, req)
		})
	}()
	go func() {
		defer wg.Done()
		holderResult = s.runWithFallback(ctx, "holder", source, func(ctx context.Context, src domainservice.DataSource) (entity.AnalyzerResult, error) {
			return s.holder.Analyze(ctx, src, req)
		})
	}()
	go func() {
		defer wg.Done()
		permissionResult = s.runDimension(ctx, "permission", func(ctx context.Context) (entity.AnalyzerResult, error) {
			return s.permission.Analyze(ctx, req)
		})
	}()
	wg.Wait()

	total := eoaResult.Score + holderResult.Score + permissionResult.Score

	result := &entity.ScoreResult{
		TokenAddress: req.TokenAddress,
		Timestamp:    time.Now().UTC(),
		Mode:         req.Mode,
		BlockRange:   s.scanRange(ctx, source, eoaResult, holderResult),
		EOA:          eoaResult,
		Holder:       holderResult,
		Permission:   permissionResult,
		TotalScore:   round2(total),
		RiskLevel:    entity.OverallRiskLevel(total),
		RiskTags: entity.GenerateRiskTags(
			eoaResult.RiskLevel, holderResult.RiskLevel, permissionResult.RiskLevel),
	}

	s.persist(ctx, result)

	s.logger.Info("scoring completed",
		zap.String("token", req.TokenAddress),
		zap.Float64("total_score", result.TotalScore),
		zap.String("risk_level", string(result.RiskLevel)))

	return result, nil
}

// resolveSource maps the requested mode onto an available data source.
// Auto prefers the fast path when the provider is configured; an explicit
// fast request without a provider is an input error.
func (s *ScoringService) resolveSource(mode entity.AnalysisMode) (domainservice.DataSource, error) {
	switch mode {
	case entity.ModeFast:
		if s.fast == nil {
			return nil, &domainservice.ValidationError{
				Field:  "mode",
				Reason: "fast mode requires a configured indexed provider",
			}
		}
		return s.fast, nil
	case entity.ModeDeep:
		return s.deep, nil
	case entity.ModeAuto, "":
		if s.fast != nil {
			return s.fast, nil
		}
		return s.deep, nil
	default:
		return nil, &domainservice.ValidationError{
			Field:  "mode",
			Reason: "must be auto, fast or deep",
		}
	}
}

// runWithFallback executes a source-driven dimension. A provider
// application error on the fast path triggers one re-run against the deep
// path; transient errors were already retried below this layer and any
// remaining failure degrades the dimension to a zero-score result.
func (s *ScoringService) runWithFallback(ctx context.Context, name string, source domainservice.DataSource, fn func(context.Context, domainservice.DataSource) (entity.AnalyzerResult, error)) entity.AnalyzerResult {
	dimCtx, cancel := context.WithTimeout(ctx, s.cfg.Scoring.DimensionTimeout)
	defer cancel()

	result, err := fn(dimCtx, source)
	if err == nil {
		return result
	}

	if domainservice.IsApplicationError(err) && source.Name() == entity.DataSourceFast && s.deep != nil {
		s.logger.Warn("fast path degraded, falling back to on-chain scan",
			zap.String("dimension", name), zap.Error(err))

		fallbackCtx, cancelFallback := context.WithTimeout(ctx, s.cfg.Scoring.DimensionTimeout)
		defer cancelFallback()

		result, err = fn(fallbackCtx, s.deep)
		if err == nil {
			if result.Metrics == nil {
				result.Metrics = map[string]any{}
			}
			result.Metrics["fallback"] = true
			return result
		}
	}

	s.logger.Error("dimension analysis failed",
		zap.String("dimension", name), zap.Error(err))
	return errorResult(name, err)
}

// runDimension executes a dimension with no alternate source
func (s *ScoringService) runDimension(ctx context.Context, name string, fn func(context.Context) (entity.AnalyzerResult, error)) entity.AnalyzerResult {
	dimCtx, cancel := context.WithTimeout(ctx, s.cfg.Scoring.DimensionTimeout)
	defer cancel()

	result, err := fn(dimCtx)
	if err != nil {
		s.logger.Error("dimension analysis failed",
			zap.String("dimension", name), zap.Error(err))
		return errorResult(name, err)
	}
	return result
}

// errorResult is the degraded outcome of a failed dimension: zero points,
// unknown risk, error recorded for the caller
func errorResult(name string, err error) entity.AnalyzerResult {
	maxScore := entity.MaxScoreActivity
	switch name {
	case "holder":
		maxScore = entity.MaxScoreHolder
	case "permission":
		maxScore = entity.MaxScorePermission
	}

	return entity.AnalyzerResult{
		Score:      0,
		MaxScore:   maxScore,
		RiskLevel:  entity.RiskLevelUnknown,
		DataSource: entity.DataSourceError,
		Err:        err.Error(),
	}
}

// scanRange reports the block window a deep scan covered, when any
// dimension actually used the deep path
func (s *ScoringService) scanRange(ctx context.Context, source domainservice.DataSource, results ...entity.AnalyzerResult) *entity.BlockRange {
	deepUsed := source.Name() == entity.DataSourceDeep
	for _, r := range results {
		if r.DataSource == entity.DataSourceDeep {
			deepUsed = true
		}
	}
	if !deepUsed || s.chain == nil {
		return nil
	}

	latest, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return nil
	}

	from := uint64(0)
	if latest > s.cfg.Chain.HolderFallbackSpan {
		from = latest - s.cfg.Chain.HolderFallbackSpan
	}
	return &entity.BlockRange{From: from, To: latest}
}

// persist records the result in the score history, best effort
func (s *ScoringService) persist(ctx context.Context, result *entity.ScoreResult) {
	if s.scores == nil {
		return
	}
	if err := s.scores.SaveScore(ctx, result); err != nil {
		s.logger.Warn("failed to persist score history",
			zap.String("token", result.TokenAddress), zap.Error(err))
	}
}
