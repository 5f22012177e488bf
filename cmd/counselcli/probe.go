package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/counsel-room/internal/conversation"
)

// newProbeCmd sends one short completion through the configured provider
// chain and reports latency and token usage.
func newProbeCmd(opts *cliOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that the configured LLM provider answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cfg, logger := loadConfig(opts)
			llm, err := buildLLM(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = llm.Close() }()

			return runProbe(ctx, cmd.OutOrStdout(), llm.Client, llm.Model)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall probe timeout")
	return cmd
}

func runProbe(ctx context.Context, out io.Writer, client conversation.LLMClient, model string) error {
	start := time.Now()
	resp, err := client.Complete(ctx, conversation.LLMRequest{
		Model:       model,
		System:      []string{"あなたは学校のカウンセラーです。一文で短く答えてください。"},
		Messages:    []conversation.ChatMessage{{Role: conversation.ChatRoleUser, Content: "こんにちは"}},
		MaxTokens:   64,
		Temperature: 0.2,
		Purpose:     "probe",
	})
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		kind := conversation.ClassifyGenerationError(err)
		fmt.Fprintf(out, "probe failed after %s (%s): %v\n", elapsed, kind, err)
		return err
	}

	fmt.Fprintf(out, "probe ok in %s\n", elapsed)
	fmt.Fprintf(out, "reply: %s\n", resp.Text)
	fmt.Fprintf(out, "tokens: in=%d out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return nil
}
