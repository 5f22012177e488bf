package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/counsel-room/internal/config"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

type scriptedBedrock struct {
	reply string
}

func (s scriptedBedrock) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: s.reply}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(1), OutputTokens: aws.Int32(1), TotalTokens: aws.Int32(2)},
	}, nil
}

func TestSetupMetricsExposesCounselMetrics(t *testing.T) {
	handler, m := setupMetrics(prometheus.NewRegistry())
	require.NotNil(t, handler)
	require.NotNil(t, m)

	m.ObserveTurn("4", true)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "counsel_conversation_turns_total")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestBuildHandlerServesTurns(t *testing.T) {
	cfg := &appconfig.Config{
		LLMProvider:    "bedrock",
		BedrockModelID: "anthropic.claude-3-haiku",
		SessionStore:   "memory",
	}
	logger := logging.NewWithWriter("error", &strings.Builder{})

	handler, cleanup, err := buildHandler(context.Background(), cfg, scriptedBedrock{reply: `{"analysis":"","needs":"","reply":"聞かせてくれてありがとう。"}`}, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	defer cleanup()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&session))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions/"+session.ID+"/messages", strings.NewReader(`{"text":"暴力をふるわれた"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	var turn struct {
		Reply         string `json:"reply"`
		RiskTier      int    `json:"risk_tier"`
		ShowResources bool   `json:"show_resources"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&turn))
	assert.Equal(t, "聞かせてくれてありがとう。", turn.Reply)
	assert.Equal(t, 4, turn.RiskTier)
	assert.True(t, turn.ShowResources)
}

func TestBuildHandlerFailsWithoutProvider(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "auto", SessionStore: "memory"}
	_, _, err := buildHandler(context.Background(), cfg, nil, logging.NewWithWriter("error", &strings.Builder{}), prometheus.NewRegistry())
	assert.Error(t, err)
}
