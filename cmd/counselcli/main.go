package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wolfman30/counsel-room/cmd/mainconfig"
	"github.com/wolfman30/counsel-room/internal/app/bootstrap"
	appconfig "github.com/wolfman30/counsel-room/internal/config"
	"github.com/wolfman30/counsel-room/internal/conversation"
	"github.com/wolfman30/counsel-room/internal/observability/metrics"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

type cliOptions struct {
	apiKey   string
	model    string
	provider string
	logLevel string
	envFile  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "counselcli",
		Short:         "Talk to the counseling assistant from a terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger := loadConfig(opts)
			svc, closeFn, err := buildService(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()
			return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), svc)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiKey, "api-key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
	flags.StringVar(&opts.model, "model", "", "Gemini model ID (defaults to GEMINI_MODEL)")
	flags.StringVar(&opts.provider, "provider", "", "LLM provider: gemini, bedrock, or auto")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(newProbeCmd(opts))
	return root
}

// loadConfig reads the dotenv file, then the environment, then applies flag
// overrides. Logs go to stderr so they never interleave with the REPL.
func loadConfig(opts *cliOptions) (*appconfig.Config, *logging.Logger) {
	logger := logging.NewWithWriter(opts.logLevel, os.Stderr)
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			logger.Debug("no env file loaded", "path", opts.envFile, "error", err)
		}
	}

	cfg := appconfig.Load()
	applyOverrides(cfg, opts)
	return cfg, logger
}

func applyOverrides(cfg *appconfig.Config, opts *cliOptions) {
	if key := strings.TrimSpace(opts.apiKey); key != "" {
		cfg.GeminiAPIKey = key
	}
	if model := strings.TrimSpace(opts.model); model != "" {
		cfg.GeminiModel = model
	}
	if provider := strings.TrimSpace(opts.provider); provider != "" {
		cfg.LLMProvider = strings.ToLower(provider)
	}
	// The terminal session lives only as long as the process.
	cfg.SessionStore = "memory"
}

func buildService(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*conversation.Service, func(), error) {
	llm, err := buildLLM(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	classifier, err := bootstrap.BuildRiskClassifier(cfg, logger)
	if err != nil {
		_ = llm.Close()
		return nil, nil, err
	}
	store, closeStore, err := bootstrap.BuildSessionStore(ctx, cfg, logger)
	if err != nil {
		_ = llm.Close()
		return nil, nil, err
	}
	svc, err := bootstrap.BuildConversationService(cfg, llm, store, classifier, logger, nil)
	if err != nil {
		_ = llm.Close()
		_ = closeStore()
		return nil, nil, err
	}
	return svc, func() {
		_ = llm.Close()
		_ = closeStore()
	}, nil
}

func buildLLM(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*bootstrap.LLM, error) {
	bedrockAPI, err := mainconfig.LoadBedrockRuntime(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	// The CLI keeps its own registry so nothing leaks onto the default one.
	m := metrics.NewCounselMetrics(prometheus.NewRegistry())
	llm, err := bootstrap.BuildLLM(ctx, cfg, bedrockAPI, logger, m)
	if err != nil {
		if errors.Is(err, bootstrap.ErrNoLLMProvider) {
			return nil, fmt.Errorf("%w: pass --api-key or set GEMINI_API_KEY", err)
		}
		return nil, err
	}
	return llm, nil
}
