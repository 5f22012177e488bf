package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wolfman30/counsel-room/internal/conversation"
)

const (
	commandReset   = "/reset"
	commandReflect = "/reflect"
	commandQuit    = "/quit"

	counselorLabel = "カウンセラー"
	promptLabel    = "あなた> "
)

// chatService is the part of conversation.Service the REPL drives.
type chatService interface {
	CreateSession(ctx context.Context) (*conversation.Session, error)
	ResetSession(ctx context.Context, id string) (*conversation.Session, error)
	SendMessage(ctx context.Context, id, text string) (conversation.TurnResult, error)
	Reflect(ctx context.Context, id string) (string, error)
}

// runREPL reads one message per line until EOF, /quit, or ctx is done.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, svc chatService) error {
	session, err := svc.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	fmt.Fprintln(out, "相談室へようこそ。話したいことを自由に書いてください。")
	fmt.Fprintf(out, "(%s で会話をリセット、%s でふりかえり、%s で終了)\n", commandReset, commandReflect, commandQuit)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, promptLabel)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case commandQuit:
			fmt.Fprintln(out, "またいつでも話しに来てください。")
			return nil
		case commandReset:
			if _, err := svc.ResetSession(ctx, session.ID); err != nil {
				return fmt.Errorf("reset session: %w", err)
			}
			fmt.Fprintln(out, "会話をリセットしました。")
		case commandReflect:
			summary, err := svc.Reflect(ctx, session.ID)
			switch {
			case errors.Is(err, conversation.ErrReflectionUnavailable):
				fmt.Fprintln(out, "ふりかえりは、もう少しお話ししてから使えます。")
			case err != nil:
				fmt.Fprintln(out, conversation.GenerationFailureMessage)
			default:
				fmt.Fprintf(out, "--- ふりかえり ---\n%s\n", summary)
			}
		default:
			if err := sendTurn(ctx, out, svc, session.ID, line); err != nil {
				return err
			}
		}
	}
}

func sendTurn(ctx context.Context, out io.Writer, svc chatService, sessionID, text string) error {
	result, err := svc.SendMessage(ctx, sessionID, text)
	switch {
	case errors.Is(err, conversation.ErrMessageTooLong):
		fmt.Fprintf(out, "メッセージは%d文字以内で入力してください。\n", conversation.MaxMessageRunes)
		return nil
	case err != nil:
		return fmt.Errorf("send message: %w", err)
	}

	if result.Failure == conversation.FailureNone {
		fmt.Fprintf(out, "%s: %s\n", counselorLabel, result.Reply)
	}
	if result.ShowResources {
		fmt.Fprintln(out, "--- 相談できる窓口 ---")
		for _, resource := range result.Resources {
			fmt.Fprintf(out, "・%s\n", resource)
		}
	}
	if result.Advisory != "" {
		fmt.Fprintf(out, "[!] %s\n", result.Advisory)
	}
	return nil
}
