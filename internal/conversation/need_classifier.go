package conversation

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/counsel-room/internal/observability/metrics"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

var needTracer = otel.Tracer("counsel/need-classifier")

// NeedCategory is the kind of support the student is asking for.
type NeedCategory string

const (
	NeedListening    NeedCategory = "listening"
	NeedSolution     NeedCategory = "solution"
	NeedCoReflection NeedCategory = "co_reflection"
)

// DefaultNeedTimeout bounds a single need-classification call.
const DefaultNeedTimeout = 15 * time.Second

func (n NeedCategory) normalize() NeedCategory {
	switch n {
	case NeedSolution, NeedCoReflection:
		return n
	default:
		return NeedListening
	}
}

// Marker returns the Japanese marker word for n.
func (n NeedCategory) Marker() string {
	switch n.normalize() {
	case NeedSolution:
		return "解決"
	case NeedCoReflection:
		return "一緒に考える"
	default:
		return "傾聴"
	}
}

type needMarker struct {
	need    NeedCategory
	markers []string
}

// Checked in order; the first category with a marker present wins.
var needMarkers = []needMarker{
	{need: NeedListening, markers: []string{"傾聴", "listening"}},
	{need: NeedSolution, markers: []string{"解決", "solution"}},
	{need: NeedCoReflection, markers: []string{"一緒に考える", "co-reflection", "co_reflection"}},
}

const needClassifierPrompt = `相談者のメッセージを読み、相談者が求めている関わりを次の三つから一つだけ選んでください。
- 傾聴：まず話を聴いてほしい
- 解決：具体的な解決策がほしい
- 一緒に考える：答えを一緒に探してほしい

選んだ言葉だけを一語で答えてください。説明は不要です。

メッセージ：%s`

// ParseNeed extracts a NeedCategory from free model output. It reports false
// when no marker is present.
func ParseNeed(raw string) (NeedCategory, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return NeedListening, false
	}
	for _, m := range needMarkers {
		for _, marker := range m.markers {
			if strings.Contains(text, marker) {
				return m.need, true
			}
		}
	}
	return NeedListening, false
}

// NeedClassifier asks the model which support style the student wants.
type NeedClassifier struct {
	client  LLMClient
	logger  *logging.Logger
	metrics *metrics.CounselMetrics
	timeout time.Duration
}

func NewNeedClassifier(client LLMClient, logger *logging.Logger, m *metrics.CounselMetrics) *NeedClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &NeedClassifier{
		client:  client,
		logger:  logger,
		metrics: m,
		timeout: DefaultNeedTimeout,
	}
}

// Classify never fails: any error, timeout, or unrecognized answer degrades
// to NeedListening.
func (c *NeedClassifier) Classify(ctx context.Context, text string) NeedCategory {
	if c == nil || c.client == nil {
		return NeedListening
	}
	ctx, span := needTracer.Start(ctx, "need.classify")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		c.metrics.ObserveNeed(string(NeedListening), "default")
		return NeedListening
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Complete(callCtx, LLMRequest{
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: strings.Replace(needClassifierPrompt, "%s", text, 1)}},
		MaxTokens:   20,
		Temperature: 0,
		Purpose:     "need",
	})
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("need classification failed, defaulting to listening", "error", err)
		c.metrics.ObserveNeed(string(NeedListening), "default")
		return NeedListening
	}

	need, ok := ParseNeed(resp.Text)
	span.SetAttributes(
		attribute.String("need.category", string(need)),
		attribute.Bool("need.recognized", ok),
	)
	if !ok {
		c.logger.Warn("need classification unrecognized, defaulting to listening", "raw", resp.Text)
		c.metrics.ObserveNeed(string(NeedListening), "default")
		return NeedListening
	}
	c.metrics.ObserveNeed(string(need), "model")
	return need
}
