// Package main is the terminal front end for the expense assistant. It
// renders the conversation list and the active session; all conversation
// state lives in the registry and session controller, never here.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/trackit-ai/assistant-go/internal/api"
	"github.com/trackit-ai/assistant-go/internal/config"
	"github.com/trackit-ai/assistant-go/internal/model"
	"github.com/trackit-ai/assistant-go/internal/registry"
	"github.com/trackit-ai/assistant-go/internal/workspace"
	"github.com/trackit-ai/assistant-go/pkg/logger"
	"github.com/trackit-ai/assistant-go/pkg/tracing"
)

func main() {
	userID := flag.String("user", os.Getenv("TRACKIT_USER_ID"), "user id (or TRACKIT_USER_ID)")
	flag.Parse()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "a user id is required: pass -user or set TRACKIT_USER_ID")
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "trackit-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	client := api.New(cfg.APIBaseURL, log,
		api.WithToken(cfg.APIToken),
		api.WithTimeout(cfg.ChatTimeout),
	)
	reg := registry.New(client, log)
	ws := workspace.New(client, reg, *userID, log,
		workspace.WithListLimit(cfg.ListLimit),
		workspace.WithChatTimeout(cfg.ChatTimeout),
	)

	fmt.Println("Setting up your conversation...")
	initCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	if err := ws.Init(initCtx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	printTimeline(ws.Controller().Messages())
	printHelp()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		fmt.Printf("[%s] > ", ws.Active().Title)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return
		case line == "/help":
			printHelp()
		case line == "/list":
			printConversations(ws.Conversations(), ws.Active().ID)
		case line == "/new":
			if _, err := ws.NewConversation(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		case strings.HasPrefix(line, "/switch "):
			if conv, ok := pickConversation(ws, line[len("/switch "):]); ok {
				if err := ws.Select(ctx, conv.ID); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				printTimeline(ws.Controller().Messages())
			}
		case strings.HasPrefix(line, "/delete "):
			if conv, ok := pickConversation(ws, line[len("/delete "):]); ok {
				if err := ws.Delete(ctx, conv.ID); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			}
		default:
			submit(ctx, ws, line)
		}
	}
}

func submit(ctx context.Context, ws *workspace.Workspace, text string) {
	ctl := ws.Controller()
	if err := ctl.Submit(ctx, text); err != nil {
		// Validation rejects are silent no-ops at the UI boundary.
		return
	}

	msgs := ctl.Messages()
	if len(msgs) > 0 {
		printMessage(msgs[len(msgs)-1])
	}
}

func pickConversation(ws *workspace.Workspace, arg string) (model.Conversation, bool) {
	convs := ws.Conversations()
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(convs) {
		fmt.Fprintf(os.Stderr, "pick a conversation number between 1 and %d (see /list)\n", len(convs))
		return model.Conversation{}, false
	}
	return convs[n-1], true
}

func printConversations(convs []model.Conversation, activeID string) {
	if len(convs) == 0 {
		fmt.Println("No conversations yet")
		return
	}
	for i, conv := range convs {
		marker := " "
		if conv.ID == activeID {
			marker = "*"
		}
		fmt.Printf("%s %2d. %s (%d messages)\n", marker, i+1, conv.Title, conv.MessageCount)
	}
}

func printTimeline(msgs []model.Message) {
	if len(msgs) == 0 {
		fmt.Println("Start your conversation: ask about your expenses, receipts, or spending patterns.")
		return
	}
	for _, msg := range msgs {
		printMessage(msg)
	}
}

func printMessage(msg model.Message) {
	label := "assistant"
	if msg.Role == model.RoleUser {
		label = "you"
	}

	badge := ""
	if agent, ok := msg.Metadata["agent"].(string); ok && agent != "" {
		badge = " [" + agent + "]"
	}

	fmt.Printf("%s%s: %s\n", label, badge, msg.Content)
}

func printHelp() {
	fmt.Println("Commands: /new, /list, /switch <n>, /delete <n>, /help, /quit. Anything else is sent to the assistant.")
}
