package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"token-score-engine/internal/domain/entity"
	domainservice "token-score-engine/internal/domain/service"
	"token-score-engine/internal/infrastructure/blockchain"
	"token-score-engine/internal/infrastructure/cache"
	"token-score-engine/internal/infrastructure/logger"
)

// PermissionAnalyzer scores the rug-pull leverage a contract's owner
// retains: live ownership, dangerous functions in the bytecode, and
// upgradeable proxy slots. Worth up to 30 of the 100 total points. This
// dimension always reads the chain directly; there is no indexed shortcut.
type PermissionAnalyzer struct {
	chain    domainservice.ChainStateReader
	cached   *cache.Cached
	retry    *cache.Retry
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewPermissionAnalyzer creates the contract permission analyzer
func NewPermissionAnalyzer(chain domainservice.ChainStateReader, cached *cache.Cached, retry *cache.Retry, cacheTTL time.Duration, logger *logger.Logger) *PermissionAnalyzer {
	return &PermissionAnalyzer{
		chain:    chain,
		cached:   cached,
		retry:    retry,
		cacheTTL: cacheTTL,
		logger:   logger.WithComponent("permission-analyzer"),
	}
}

// permissionSnapshot captures the raw chain facts the score derives from.
// Caching the facts rather than the score keeps a config change from
// serving stale scores. The Checked flags mark which checks actually
// completed; a failed check is "not applicable" and earns no points rather
// than failing the dimension.
type permissionSnapshot struct {
	OwnerChecked    bool                           `json:"owner_checked"`
	HasOwner        bool                           `json:"has_owner"`
	OwnerAddress    string                         `json:"owner_address,omitempty"`
	OwnerRenounced  bool                           `json:"owner_renounced"`
	OwnerIsContract bool                           `json:"owner_is_contract"`
	CodeChecked     bool                           `json:"code_checked"`
	Dangerous       []blockchain.DangerousFunction `json:"dangerous_functions"`
	ProxyChecked    bool                           `json:"proxy_checked"`
	IsProxy         bool                           `json:"is_proxy"`
	Implementation  string                         `json:"implementation,omitempty"`
	ProxyAdmin      string                         `json:"proxy_admin,omitempty"`
	AdminRenounced  bool                           `json:"admin_renounced"`
}

// Analyze inspects the token contract and scores its permission risk. The
// analyzer fails only when none of the checks could complete.
func (a *PermissionAnalyzer) Analyze(ctx context.Context, req entity.ScoreRequest) (entity.AnalyzerResult, error) {
	key := cache.Key("permission", req.TokenAddress)

	var snapshot permissionSnapshot
	err := a.cached.Do(ctx, key, a.cacheTTL, &snapshot, func(ctx context.Context) (any, error) {
		return a.inspect(ctx, req.TokenAddress)
	})
	if err != nil {
		return entity.AnalyzerResult{}, err
	}

	return a.score(snapshot), nil
}

// inspect gathers the three chain facts: owner state, dangerous selectors
// in the deployed bytecode, and EIP-1967 proxy slots. Each check is retried
// independently; a check that still fails is recorded as unchecked and the
// others proceed.
func (a *PermissionAnalyzer) inspect(ctx context.Context, tokenAddress string) (permissionSnapshot, error) {
	var snap permissionSnapshot

	ownerErr := a.retry.Do(ctx, "owner lookup", func(ctx context.Context) error {
		owner, err := a.chain.Owner(ctx, tokenAddress)
		if err != nil {
			return err
		}
		snap.OwnerChecked = true
		if owner.State == domainservice.OwnerPresent {
			snap.HasOwner = true
			snap.OwnerAddress = owner.Address
			snap.OwnerRenounced = owner.Renounced()
			if !snap.OwnerRenounced {
				isContract, err := a.chain.IsContract(ctx, owner.Address)
				if err != nil {
					snap.OwnerChecked = false
					snap.HasOwner = false
					snap.OwnerAddress = ""
					return err
				}
				snap.OwnerIsContract = isContract
			}
		}
		return nil
	})

	codeErr := a.retry.Do(ctx, "bytecode fetch", func(ctx context.Context) error {
		code, err := a.chain.Code(ctx, tokenAddress)
		if err != nil {
			return err
		}
		snap.CodeChecked = true
		snap.Dangerous = blockchain.ScanDangerousFunctions(code)
		return nil
	})

	proxyErr := a.retry.Do(ctx, "proxy slots", func(ctx context.Context) error {
		proxy, err := a.chain.Proxy(ctx, tokenAddress)
		if err != nil {
			return err
		}
		snap.ProxyChecked = true
		snap.IsProxy = proxy.IsProxy
		snap.Implementation = proxy.Implementation
		snap.ProxyAdmin = proxy.Admin
		snap.AdminRenounced = proxy.AdminRenounced()
		return nil
	})

	if ownerErr != nil && codeErr != nil && proxyErr != nil {
		return snap, ownerErr
	}
	if ownerErr != nil {
		a.logger.Warn("owner check unavailable", zap.Error(ownerErr))
	}
	if codeErr != nil {
		a.logger.Warn("bytecode check unavailable", zap.Error(codeErr))
	}
	if proxyErr != nil {
		a.logger.Warn("proxy check unavailable", zap.Error(proxyErr))
	}

	return snap, nil
}

// score converts the snapshot into points: up to 20 for ownership state,
// up to 10 for a clean dispatch table, minus 5 for a live upgrade admin.
func (a *PermissionAnalyzer) score(snap permissionSnapshot) entity.AnalyzerResult {
	score := 0.0
	var factors []string

	switch {
	case !snap.OwnerChecked:
		factors = append(factors, "owner check unavailable")
	case !snap.HasOwner:
		score += 20
		factors = append(factors, "no owner function")
	case snap.OwnerRenounced:
		score += 20
		factors = append(factors, "owner renounced")
	case snap.OwnerIsContract:
		score += 15
		factors = append(factors, "owner is a contract (multisig or DAO)")
	default:
		factors = append(factors, "owner retains control")
	}

	switch n := len(snap.Dangerous); {
	case !snap.CodeChecked:
		factors = append(factors, "bytecode check unavailable")
	case n == 0:
		score += 10
		factors = append(factors, "no dangerous functions")
	case n <= 2:
		score += 5
		factors = append(factors, "few dangerous functions present")
	default:
		factors = append(factors, "multiple dangerous functions present")
	}

	switch {
	case !snap.ProxyChecked:
		factors = append(factors, "proxy check unavailable")
	case snap.IsProxy && snap.AdminRenounced:
		factors = append(factors, "proxy admin renounced")
	case snap.IsProxy:
		score -= 5
		if score < 0 {
			score = 0
		}
		factors = append(factors, "upgradeable proxy with live admin")
	default:
		factors = append(factors, "not a proxy contract")
	}

	if score > entity.MaxScorePermission {
		score = entity.MaxScorePermission
	}

	var riskLevel entity.RiskLevel
	switch {
	case score >= 25:
		riskLevel = entity.RiskLevelLow
	case score >= 15:
		riskLevel = entity.RiskLevelMedium
	default:
		riskLevel = entity.RiskLevelHigh
	}

	return entity.AnalyzerResult{
		Score:      score,
		MaxScore:   entity.MaxScorePermission,
		RiskLevel:  riskLevel,
		DataSource: entity.DataSourceDeep,
		Metrics: map[string]any{
			"has_owner":           snap.HasOwner,
			"owner_address":       snap.OwnerAddress,
			"owner_renounced":     snap.OwnerRenounced,
			"owner_is_contract":   snap.OwnerIsContract,
			"dangerous_functions": snap.Dangerous,
			"risk_categories":     blockchain.RiskCategories(snap.Dangerous),
			"is_proxy":            snap.IsProxy,
			"proxy_admin":         snap.ProxyAdmin,
			"risk_factors":        factors,
		},
	}
}
