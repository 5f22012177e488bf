package conversation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/counsel-room/internal/observability/metrics"
)

var llmTracer = otel.Tracer("counsel/llm")

// InstrumentedLLMClient records latency, token usage, and a span for every
// completion made through the wrapped client.
type InstrumentedLLMClient struct {
	next    LLMClient
	model   string
	metrics *metrics.CounselMetrics
}

func NewInstrumentedLLMClient(next LLMClient, model string, m *metrics.CounselMetrics) *InstrumentedLLMClient {
	return &InstrumentedLLMClient{next: next, model: model, metrics: m}
}

func (c *InstrumentedLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = "other"
	}

	ctx, span := llmTracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.String("llm.purpose", purpose),
		attribute.Bool("llm.json_response", req.JSONResponse),
	)

	start := time.Now()
	resp, err := c.next.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = string(ClassifyGenerationError(err))
		span.RecordError(err)
	}
	c.metrics.ObserveLLMCall(model, purpose, status, time.Since(start).Seconds())
	if err == nil {
		c.metrics.ObserveTokens(model, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalTokens)
	}
	return resp, err
}
