package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/counsel-room/internal/config"
	"github.com/wolfman30/counsel-room/internal/conversation"
	"github.com/wolfman30/counsel-room/internal/risk"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore returns the configured session store. The returned close
// func releases the Redis connection when one was opened.
func BuildSessionStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.SessionStore, func() error, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() error { return nil }

	switch cfg.SessionStore {
	case "", "memory":
		logger.Info("using in-memory session store", "ttl", cfg.SessionTTL.String())
		return conversation.NewMemorySessionStore(cfg.SessionTTL), noop, nil
	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, nil, fmt.Errorf("bootstrap: SESSION_STORE=redis but redis at %q is unreachable", cfg.RedisAddr)
		}
		logger.Info("using redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL.String())
		return conversation.NewRedisSessionStore(client, cfg.SessionTTL, nil), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown SESSION_STORE %q", cfg.SessionStore)
	}
}

// BuildRiskClassifier loads RISK_KEYWORDS_FILE when set, otherwise the
// built-in table.
func BuildRiskClassifier(cfg *appconfig.Config, logger *logging.Logger) (*risk.Classifier, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.RiskKeywordsFile) == "" {
		return risk.NewDefaultClassifier(), nil
	}
	keywords, err := risk.LoadKeywordsFile(cfg.RiskKeywordsFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("loaded risk keywords", "path", cfg.RiskKeywordsFile, "keywords", keywords.Len())
	return risk.NewClassifier(keywords), nil
}
