package conversation

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/counsel-room/internal/observability/metrics"
	"github.com/wolfman30/counsel-room/internal/risk"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

var turnTracer = otel.Tracer("counsel/orchestrator")

// TurnResult is everything a surface needs to render one turn.
type TurnResult struct {
	Reply         string
	Transcript    []Message
	Tier          risk.Tier
	Need          NeedCategory
	ShowResources bool
	Resources     []string
	Failure       FailureKind
	Advisory      string
	Analysis      string
}

// Orchestrator runs one counseling turn: classify, build the instruction,
// generate, parse, and extend the transcript.
type Orchestrator struct {
	classifier *risk.Classifier
	needs      *NeedClassifier
	client     LLMClient
	logger     *logging.Logger
	metrics    *metrics.CounselMetrics

	model             string
	maxTokens         int32
	temperature       float32
	generationTimeout time.Duration
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithNeedClassifier enables need inference. Without it every turn uses
// NeedListening.
func WithNeedClassifier(nc *NeedClassifier) OrchestratorOption {
	return func(o *Orchestrator) {
		o.needs = nc
	}
}

// WithRiskClassifier overrides the built-in keyword table.
func WithRiskClassifier(c *risk.Classifier) OrchestratorOption {
	return func(o *Orchestrator) {
		if c != nil {
			o.classifier = c
		}
	}
}

func WithMetrics(m *metrics.CounselMetrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithModel pins the model id sent on generation requests.
func WithModel(model string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.model = strings.TrimSpace(model)
	}
}

// WithGenerationTimeout bounds the reply generation call. Without it the
// caller's context is the only limit.
func WithGenerationTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.generationTimeout = d
		}
	}
}

func NewOrchestrator(client LLMClient, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		classifier:  risk.NewDefaultClassifier(),
		client:      client,
		logger:      logger,
		maxTokens:   1024,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleTurn appends text to a copy of transcript, generates the counselor
// reply, and returns the extended transcript. It never fails: generation
// errors are reported through Failure and Advisory, in which case the user
// message is kept and no assistant message is added.
func (o *Orchestrator) HandleTurn(ctx context.Context, transcript []Message, text string) TurnResult {
	ctx, span := turnTracer.Start(ctx, "conversation.turn")
	defer span.End()

	prior := cloneTranscript(transcript)
	next := append(cloneTranscript(transcript), Message{Role: RoleUser, Content: text})

	match := o.classifier.Match(text)
	tier := match.Tier
	need := NeedListening
	if o.needs != nil {
		need = o.needs.Classify(ctx, text)
	}
	span.SetAttributes(
		attribute.Int("risk.tier", int(tier)),
		attribute.String("need.category", string(need)),
	)

	result := TurnResult{
		Tier:          tier,
		Need:          need,
		ShowResources: tier.Elevated(),
		Resources:     risk.ResourcesFor(tier),
	}
	if tier.Elevated() {
		o.logger.Warn("elevated risk detected", "tier", int(tier), "keyword", match.Keyword)
	}
	defer func() {
		o.metrics.ObserveTurn(tier.Label(), result.ShowResources)
	}()

	history, err := toChatMessages(prior)
	if err != nil {
		o.logger.Error("transcript has unmappable role", "error", err)
		return o.failed(result, next, FailureUnknown)
	}
	history = append(history, ChatMessage{Role: ChatRoleUser, Content: text})

	genCtx := ctx
	if o.generationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, o.generationTimeout)
		defer cancel()
	}

	resp, err := o.client.Complete(genCtx, LLMRequest{
		Model:        o.model,
		System:       []string{BuildInstruction(tier, need)},
		Messages:     history,
		MaxTokens:    o.maxTokens,
		Temperature:  o.temperature,
		JSONResponse: true,
		Purpose:      "reply",
	})
	if err != nil {
		span.RecordError(err)
		kind := ClassifyGenerationError(err)
		o.logger.Error("reply generation failed", "error", err, "failure", string(kind), "tier", int(tier))
		return o.failed(result, next, kind)
	}

	parsed, err := ParseReply(resp.Text)
	if err != nil {
		o.logger.Warn("model reply was not valid JSON", "error", err, "stop_reason", resp.StopReason)
		parsed = StructuredReply{Reply: ParseFailureFallback}
	} else if !parsed.HasReply {
		o.logger.Warn("model reply missing reply field")
	}

	result.Reply = parsed.Reply
	result.Analysis = parsed.Analysis
	result.Transcript = append(next, Message{Role: RoleAssistant, Content: parsed.Reply})
	return result
}

func (o *Orchestrator) failed(result TurnResult, transcript []Message, kind FailureKind) TurnResult {
	o.metrics.ObserveGenerationFailure(string(kind))
	result.Failure = kind
	result.Advisory = kind.Advisory()
	result.Transcript = transcript
	return result
}
