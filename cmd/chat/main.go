package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"court-advisor-be/internal/config"
	"court-advisor-be/internal/constant"
	"court-advisor-be/internal/model"
	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/internal/repository/unitofwork"
	"court-advisor-be/internal/service"
	"court-advisor-be/pkg/chatstream"
	"court-advisor-be/pkg/conversation"
	"court-advisor-be/pkg/database"
	"court-advisor-be/pkg/llm/factory"

	"github.com/fatih/color"
)

var (
	reasoningColor = color.New(color.Faint, color.Italic)
	citationColor  = color.New(color.FgCyan)
	promptColor    = color.New(color.FgGreen, color.Bold)
)

func main() {
	cfg := config.Load()

	db, err := database.NewGormDB(database.GormConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.Connection,
		Quiet:  true,
	})
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("Unable to migrate chat_logs: %v", err)
	}

	sysLogger := logger.NewIsolatedLogger(cfg.App.LogFilePath)
	defer sysLogger.Sync()

	provider, err := factory.NewConversationProvider(factory.Settings{
		Provider:          cfg.Chat.Provider,
		BaseURL:           cfg.Chat.ProviderBaseURL(),
		APIKey:            cfg.Chat.APIKey,
		Model:             cfg.Chat.Model,
		ReadTimeout:       cfg.Chat.ReadTimeout,
		SuggestionTimeout: cfg.Chat.SuggestionTimeout,
	}, sysLogger)
	if err != nil {
		log.Fatalf("Unable to create provider: %v", err)
	}

	feedback := service.NewFeedbackService(unitofwork.NewRepositoryFactory(db), nil, sysLogger)
	opts := []conversation.Option{conversation.WithInstruction(cfg.Chat.PromptInstruction)}
	if cfg.Chat.Provider == "ollama" {
		opts = append(opts, conversation.WithHistoryReplay())
	}
	manager := conversation.NewManager(provider, feedback, sysLogger, opts...)

	session := conversation.NewSession()
	color.Cyan("Court advisor (%s). Commands: /reset, /rate <1-5> [comment], /quit", session.UserID)
	for i, q := range constant.StarterQuestions {
		fmt.Printf("  %d. %s\n", i+1, q)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptColor.Print("\n> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/reset":
			conversation.Reset(session)
			color.Yellow("New conversation (%s)", session.UserID)
			continue
		case strings.HasPrefix(line, "/rate"):
			rate(feedback, session, strings.TrimSpace(strings.TrimPrefix(line, "/rate")))
			continue
		}

		line = pickSuggestion(line, session)
		runTurn(manager, session, line)
	}
}

// pickSuggestion lets "1".."3" stand for a shown suggestion, or a starter
// question while the conversation is empty.
func pickSuggestion(line string, session *conversation.Session) string {
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 {
		return line
	}
	options := session.PendingSuggestions
	if len(session.History) == 0 {
		options = constant.StarterQuestions
	}
	if n > len(options) {
		return line
	}
	return options[n-1]
}

func runTurn(manager *conversation.Manager, session *conversation.Session, prompt string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	inReasoning := false
	observer := func(e chatstream.Event) {
		switch ev := e.(type) {
		case chatstream.ReasoningDelta:
			inReasoning = true
			reasoningColor.Print(ev.Text)
		case chatstream.AnswerDelta:
			if inReasoning {
				fmt.Println()
				inReasoning = false
			}
			fmt.Print(ev.Text)
		}
	}

	turn, err := manager.Submit(ctx, session, prompt, observer)
	fmt.Println()
	if err != nil {
		var turnErr *conversation.TurnError
		switch {
		case errors.As(err, &turnErr):
			color.Red("Turn failed (%s): %s", turnErr.Failure.Kind, turnErr.Failure.Reason)
		case errors.Is(err, context.Canceled):
			color.Yellow("Cancelled")
		default:
			color.Red("Error: %v", err)
		}
		return
	}

	for _, c := range turn.Citations {
		citationColor.Printf("  [%s] %s: %s\n", c.ScoreLabel(), c.DocumentName, c.Preview(80))
	}
	for i, s := range session.PendingSuggestions {
		color.Magenta("  %d. %s", i+1, s)
	}
}

func rate(feedback service.IFeedbackService, session *conversation.Session, args string) {
	if session.LastLogID == nil {
		color.Yellow("Nothing to rate yet")
		return
	}
	scoreStr, comment, _ := strings.Cut(args, " ")
	score, err := strconv.Atoi(scoreStr)
	if err != nil {
		color.Red("Usage: /rate <1-5> [comment]")
		return
	}
	if err := feedback.Rate(context.Background(), *session.LastLogID, score, strings.TrimSpace(comment)); err != nil {
		color.Red("Rating failed: %v", err)
		return
	}
	conversation.ClearPendingRating(session)
	color.Green("Thanks for the feedback")
}
