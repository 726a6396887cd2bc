package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	models "VaultRisk/internal/domain/models"
	domrepo "VaultRisk/internal/domain/repository"
	"VaultRisk/internal/service/ratelimit"
	"VaultRisk/pkg/cache"
	xhttp "VaultRisk/pkg/http"
	xlogger "VaultRisk/pkg/logger"
	xutil "VaultRisk/pkg/util"
)

// VaultScorer produces a risk report for one vault.
type VaultScorer interface {
	Aggregate(ctx context.Context, vault common.Address, chainID int64) (*models.VaultRiskReport, error)
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Option func(*VaultRiskEchoHandler)

// WithResponseCache serves repeated report requests from c for ttl.
func WithResponseCache(c cache.Service, ttl time.Duration) Option {
	return func(h *VaultRiskEchoHandler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// WithRateLimiter limits risk requests per client IP.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(h *VaultRiskEchoHandler) { h.rl = l }
}

// WithHistory enables the snapshot history route.
func WithHistory(store domrepo.SnapshotStore, window time.Duration) Option {
	return func(h *VaultRiskEchoHandler) {
		h.history = store
		if window > 0 {
			h.historyWindow = window
		}
	}
}

func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(h *VaultRiskEchoHandler) { h.checks[name] = check }
}

// VaultRiskEchoHandler serves vault risk reports and snapshot history.
type VaultRiskEchoHandler struct {
	logger        *xlogger.Logger
	scorer        VaultScorer
	cache         cache.Service
	cacheTTL      time.Duration
	rl            *ratelimit.Limiter
	history       domrepo.SnapshotStore
	historyWindow time.Duration
	checks        map[string]ReadinessCheck
	now           func() time.Time
}

func NewVaultRiskEchoHandler(logger *xlogger.Logger, scorer VaultScorer, opts ...Option) *VaultRiskEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	h := &VaultRiskEchoHandler{
		logger:        logger,
		scorer:        scorer,
		historyWindow: 7 * 24 * time.Hour,
		checks:        make(map[string]ReadinessCheck),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *VaultRiskEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/ready", h.Ready)
	g.GET("/vaults/:chainId/:address/risk", h.VaultRisk)
	if h.history != nil {
		g.GET("/markets/:chainId/:marketId/history", h.MarketHistory)
	}
}

func (h *VaultRiskEchoHandler) VaultRisk(c echo.Context) error {
	req := &models.VaultRiskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.rl != nil && !h.rl.Allow(c.RealIP()) {
		h.logger.Warn("risk request rate limited", xlogger.String("remote", c.RealIP()))
		c.Response().Header().Set("Retry-After", "1")
		return xhttp.AppErrorResponse(c, xhttp.RateLimitedError(1))
	}

	ctx := c.Request().Context()
	vault := common.HexToAddress(req.Address)
	cacheKey := cache.ChainKey("risk", req.ChainID, vault.Hex())

	if h.cache != nil && h.cacheTTL > 0 {
		var cached models.VaultRiskReport
		err := h.cache.Get(ctx, cacheKey, &cached)
		switch {
		case err == nil:
			h.logger.Debug("risk cache hit", xlogger.String("key", cacheKey))
			c.Response().Header().Set("X-Cache", "HIT")
			return h.writeReport(c, &cached)
		case !errors.Is(err, cache.ErrCacheMiss):
			h.logger.Warn("risk cache get failed", xlogger.String("key", cacheKey), xlogger.Error(err))
		}
	}

	report, err := h.scorer.Aggregate(ctx, vault, req.ChainID)
	if err != nil {
		appErr := mapError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("vault risk failed",
				xlogger.Int64("chain_id", req.ChainID),
				xlogger.String("vault", vault.Hex()),
				xlogger.Error(err),
			)
		}
		return xhttp.AppErrorResponse(c, appErr)
	}

	if h.cache != nil && h.cacheTTL > 0 {
		if err := h.cache.Set(ctx, cacheKey, report, h.cacheTTL); err != nil {
			h.logger.Warn("risk cache set failed", xlogger.String("key", cacheKey), xlogger.Error(err))
		}
	}
	return h.writeReport(c, report)
}

func (h *VaultRiskEchoHandler) writeReport(c echo.Context, r *models.VaultRiskReport) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, r)
}

func (h *VaultRiskEchoHandler) MarketHistory(c echo.Context) error {
	req := &models.MarketHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := xutil.ParseTimeRange(req.From, req.To, h.historyWindow, h.now())
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	rows, err := h.history.History(c.Request().Context(), req.ChainID, strings.ToLower(req.MarketID), from, to, req.Limit)
	if err != nil {
		h.logger.Error("market history failed",
			xlogger.String("market_id", req.MarketID),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("snapshot store unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Health is a liveness probe.
func (h *VaultRiskEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Ready runs every registered check, in name order, with a shared deadline.
func (h *VaultRiskEchoHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]xhttp.CheckResult, 0, len(names))
	for _, name := range names {
		start := time.Now()
		err := h.checks[name](ctx)
		r := xhttp.CheckResult{Name: name, OK: err == nil, TookMS: time.Since(start).Milliseconds()}
		if err != nil {
			r.Error = err.Error()
			h.logger.Warn("readiness check failed", xlogger.String("check", name), xlogger.Error(err))
		}
		results = append(results, r)
	}
	return xhttp.ReadinessResponse(c, results)
}

func mapError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrInvalidInput):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrVaultNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return xhttp.BadGatewayError("market data source unavailable").WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

var _ xhttp.Handler = (*VaultRiskEchoHandler)(nil)
