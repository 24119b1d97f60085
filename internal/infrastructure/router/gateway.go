package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-routeros/routeros/v3"

	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// Gateway is the single choke point for RouterOS mutations and reads. All
// callers go through its typed operations; nothing else in the codebase
// speaks the RouterOS API.
type Gateway struct {
	cfg  *sharedConfig.MikrotikConfig
	pool *Pool
	log  logger.Interface
}

func NewGateway(cfg *sharedConfig.MikrotikConfig, loggerCfg *sharedConfig.LoggerConfig, log logger.Interface) *Gateway {
	breaker := NewBreaker(
		cfg.MaxErrors,
		time.Duration(cfg.CooldownBaseSeconds)*time.Second,
		time.Duration(cfg.CooldownMaxSeconds)*time.Second,
	)

	gwLog := logger.Interface(log.Named("router"))
	if loggerCfg != nil && loggerCfg.SuppressionThreshold > 0 {
		gwLog = logger.NewSuppressor(gwLog,
			loggerCfg.SuppressionThreshold,
			time.Duration(loggerCfg.SuppressionWindowSeconds)*time.Second)
	}

	gwLog.Debugw("router gateway initialized",
		"addr", cfg.GetAddr(), "ssl", cfg.UseSSL, "pool_size", cfg.PoolSize,
		"plaintext_login", cfg.PlaintextLogin)

	return &Gateway{
		cfg:  cfg,
		pool: NewPool(cfg, breaker, log),
		log:  gwLog,
	}
}

// Close releases pooled connections.
func (g *Gateway) Close() {
	g.pool.Close()
}

func (g *Gateway) run(ctx context.Context, words ...string) (*routeros.Reply, error) {
	return g.pool.Run(ctx, words)
}

// runWithRetry retries transient failures with exponential backoff, bounded
// by the context. Semantic router errors are returned immediately.
func (g *Gateway) runWithRetry(ctx context.Context, words ...string) (*routeros.Reply, error) {
	op := func() (*routeros.Reply, error) {
		reply, err := g.run(ctx, words...)
		if err != nil {
			if isSemantic(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return reply, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3))
}

func isSemantic(err error) bool {
	return errors.IsKind(err, errors.KindRouterSemantic)
}

// queryWord formats a RouterOS print filter, e.g. ?mac-address=AA:BB...
func queryWord(key, value string) string {
	return fmt.Sprintf("?%s=%s", key, value)
}

// attrWord formats a RouterOS attribute, e.g. =comment=...
func attrWord(key, value string) string {
	return fmt.Sprintf("=%s=%s", key, value)
}

func parseUint(s string) uint64 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true") ||
		strings.EqualFold(strings.TrimSpace(s), "yes")
}
