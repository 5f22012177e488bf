package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appconfig "github.com/wolfman30/counsel-room/internal/config"
	"github.com/wolfman30/counsel-room/internal/conversation"
	"github.com/wolfman30/counsel-room/internal/observability/metrics"
	"github.com/wolfman30/counsel-room/internal/risk"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

// ErrNoLLMProvider is returned when neither Gemini nor Bedrock is configured.
var ErrNoLLMProvider = errors.New("bootstrap: no LLM provider configured (set GEMINI_API_KEY or BEDROCK_MODEL_ID)")

type geminiClient interface {
	conversation.LLMClient
	ModelID() string
	Close() error
}

var newGeminiClient = func(ctx context.Context, apiKey, model string) (geminiClient, error) {
	return conversation.NewGeminiLLMClient(ctx, apiKey, model)
}

// LLM is the generation collaborator shared by every conversation component.
type LLM struct {
	Client conversation.LLMClient
	Model  string
	closer func() error
}

// Close releases provider connections.
func (l *LLM) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer()
}

// BuildLLM selects the generation provider from config. bedrockAPI may be nil
// when Bedrock is not in use. In "auto" mode Gemini is primary and Bedrock is
// the fallback when both are available.
func BuildLLM(ctx context.Context, cfg *appconfig.Config, bedrockAPI conversation.BedrockConverseAPI, logger *logging.Logger, m *metrics.CounselMetrics) (*LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	hasGemini := strings.TrimSpace(cfg.GeminiAPIKey) != ""
	hasBedrock := strings.TrimSpace(cfg.BedrockModelID) != "" && bedrockAPI != nil

	var bedrock *conversation.BedrockLLMClient
	if hasBedrock {
		bedrock = conversation.NewBedrockLLMClient(bedrockAPI, cfg.BedrockModelID)
	}

	switch cfg.LLMProvider {
	case "gemini":
		if !hasGemini {
			return nil, fmt.Errorf("bootstrap: LLM_PROVIDER=gemini requires GEMINI_API_KEY")
		}
		gemini, err := newGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		logger.Info("using gemini LLM", "model", gemini.ModelID())
		return &LLM{
			Client: conversation.NewInstrumentedLLMClient(gemini, gemini.ModelID(), m),
			Model:  gemini.ModelID(),
			closer: gemini.Close,
		}, nil

	case "bedrock":
		if !hasBedrock {
			return nil, fmt.Errorf("bootstrap: LLM_PROVIDER=bedrock requires BEDROCK_MODEL_ID")
		}
		logger.Info("using bedrock LLM", "model", cfg.BedrockModelID)
		return &LLM{
			Client: conversation.NewInstrumentedLLMClient(bedrock, cfg.BedrockModelID, m),
			Model:  cfg.BedrockModelID,
		}, nil

	case "auto", "":
		switch {
		case hasGemini:
			gemini, err := newGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return nil, err
			}
			primary := conversation.NewInstrumentedLLMClient(gemini, gemini.ModelID(), m)
			var client conversation.LLMClient = primary
			if bedrock != nil {
				fallback := conversation.NewInstrumentedLLMClient(bedrock, cfg.BedrockModelID, m)
				client = conversation.NewFallbackLLMClient(primary, fallback, logger)
			}
			logger.Info("using gemini LLM", "model", gemini.ModelID(), "bedrock_fallback", bedrock != nil)
			// Requests leave Model empty so each provider uses its own default.
			return &LLM{Client: client, Model: "", closer: gemini.Close}, nil
		case hasBedrock:
			logger.Info("using bedrock LLM", "model", cfg.BedrockModelID)
			return &LLM{
				Client: conversation.NewInstrumentedLLMClient(bedrock, cfg.BedrockModelID, m),
				Model:  cfg.BedrockModelID,
			}, nil
		default:
			return nil, ErrNoLLMProvider
		}

	default:
		return nil, fmt.Errorf("bootstrap: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// BuildConversationService wires the orchestrator, need classifier, reflector,
// and session store into one Service.
func BuildConversationService(cfg *appconfig.Config, llm *LLM, store conversation.SessionStore, classifier *risk.Classifier, logger *logging.Logger, m *metrics.CounselMetrics) (*conversation.Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if llm == nil || llm.Client == nil {
		return nil, fmt.Errorf("bootstrap: llm client is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := []conversation.OrchestratorOption{
		conversation.WithRiskClassifier(classifier),
		conversation.WithMetrics(m),
		conversation.WithModel(llm.Model),
		conversation.WithGenerationTimeout(cfg.GenerationTimeout),
	}
	if cfg.NeedClassifierEnabled {
		opts = append(opts, conversation.WithNeedClassifier(conversation.NewNeedClassifier(llm.Client, logger, m)))
		logger.Info("need classifier enabled")
	}

	orchestrator := conversation.NewOrchestrator(llm.Client, logger, opts...)
	reflector := conversation.NewReflector(llm.Client, llm.Model)
	return conversation.NewService(store, orchestrator, reflector, logger, m), nil
}
