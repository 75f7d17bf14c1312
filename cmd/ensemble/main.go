// Package main provides the CLI entry point for the Ensemble multi-persona
// Discord bot.
//
// Ensemble routes each incoming Discord message to one of several configured
// AI personas, maintaining multiple concurrent conversation threads per
// channel and selecting relevant context per reply.
//
// # Basic Usage
//
// Start the bot:
//
//	ensemble serve --config ensemble.yaml
//
// Ask a one-shot question without Discord:
//
//	ensemble ask --persona JohnPM "what's on the roadmap?"
//
// List configured personas:
//
//	ensemble personas
//
// # Environment Variables
//
//   - ENSEMBLE_CONFIG: Path to configuration file (default: ensemble.yaml)
//   - DISCORD_BOT_TOKEN, ANTHROPIC_API_KEY, OPENAI_API_KEY: referenced from
//     the config file via ${VAR} expansion.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/ensemble/internal/chat"
	"github.com/haasonsaas/ensemble/internal/config"
	"github.com/haasonsaas/ensemble/internal/conversation"
	"github.com/haasonsaas/ensemble/internal/discord"
	"github.com/haasonsaas/ensemble/internal/kb"
	"github.com/haasonsaas/ensemble/internal/llm"
	"github.com/haasonsaas/ensemble/internal/orchestrator"
	"github.com/haasonsaas/ensemble/internal/personas"
	"github.com/haasonsaas/ensemble/internal/router"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ensemble",
		Short:        "Ensemble - multi-persona Discord bot with conversation routing",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	defaultConfig := os.Getenv("ENSEMBLE_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "ensemble.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to configuration file")

	rootCmd.AddCommand(
		buildServeCmd(),
		buildAskCmd(),
		buildPersonasCmd(),
	)
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and route messages to personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func buildAskCmd() *cobra.Command {
	var personaName string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a persona a one-shot question without Discord",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := ""
			for i, arg := range args {
				if i > 0 {
					question += " "
				}
				question += arg
			}
			return runAsk(personaName, question)
		},
	}
	cmd.Flags().StringVar(&personaName, "persona", "", "Persona to ask (default: generic responder)")
	return cmd
}

func buildPersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List configured personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPersonas()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := buildLogger(cfg.Logging)

	if cfg.Discord.Token == "" {
		return chat.ErrConfig("discord.token is required for serve", nil)
	}

	directory, err := loadDirectory(cfg)
	if err != nil {
		return err
	}

	store := conversation.NewStore(conversation.Config{
		MaxMessagesPerConversation: cfg.Conversations.MaxMessagesPerConversation,
		MaxConversations:           cfg.Conversations.MaxConversations,
		StaleThreshold:             time.Duration(cfg.Conversations.StaleThreshold),
		Logger:                     logger,
	})

	routerProvider, err := buildProvider(cfg, cfg.LLM.RouterProvider)
	if err != nil {
		return err
	}
	responderProvider, err := buildProvider(cfg, cfg.LLM.ResponderProvider)
	if err != nil {
		return err
	}

	decider := router.NewLLMDecisionMaker(routerProvider, cfg.LLM.RouterModel, logger)
	responder, err := personas.NewLLMResponder(personas.LLMResponderConfig{
		Provider:             responderProvider,
		Loader:               kb.NewLoader(logger),
		Model:                cfg.LLM.ResponderModel,
		DefaultKnowledgeBase: cfg.Personas.DefaultKnowledgeBase,
		Logger:               logger,
	})
	if err != nil {
		return err
	}

	session, err := discord.NewGatewaySession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	webhooks := discord.NewWebhookManager(session, cfg.Discord.WebhookCache, logger)
	sender := discord.NewSender(session, webhooks, logger)

	metrics := chat.NewMetrics()
	orch, err := orchestrator.New(orchestrator.Config{
		Store:     store,
		Decider:   decider,
		Directory: directory,
		Responder: responder,
		Sender:    sender,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	bot, err := discord.NewBot(discord.BotConfig{
		Token:        cfg.Discord.Token,
		Session:      session,
		Orchestrator: orch,
		Directory:    directory,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.Start(ctx); err != nil {
		return err
	}
	logger.Info("ensemble serving", "personas", directory.Len(), "version", version)

	<-ctx.Done()
	logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bot.Stop(stopCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	snap := metrics.Snapshot()
	logger.Info("final metrics",
		"messages_routed", snap.MessagesRouted,
		"responses_sent", snap.ResponsesSent,
		"responses_suppressed", snap.ResponsesSuppressed,
		"safety_overrides", snap.SafetyOverrides,
		"error_fallbacks", snap.ErrorFallbacks,
		"threads_created", snap.ThreadsCreated,
		"uptime", snap.Uptime.String())
	return nil
}

func runAsk(personaName, question string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := buildLogger(cfg.Logging)

	directory, err := loadDirectory(cfg)
	if err != nil {
		return err
	}

	var persona *personas.Persona
	if personaName != "" {
		p, ok := directory.ByName(personaName)
		if !ok {
			return chat.ErrNotFound(fmt.Sprintf("persona %q not configured", personaName), nil)
		}
		persona = p
	}

	provider, err := buildProvider(cfg, cfg.LLM.ResponderProvider)
	if err != nil {
		return err
	}
	responder, err := personas.NewLLMResponder(personas.LLMResponderConfig{
		Provider:             provider,
		Loader:               kb.NewLoader(logger),
		Model:                cfg.LLM.ResponderModel,
		DefaultKnowledgeBase: cfg.Personas.DefaultKnowledgeBase,
		Logger:               logger,
	})
	if err != nil {
		return err
	}

	prompt := personas.BuildEnhancedQuery(question, nil, "", personas.SelectionFallback)
	answer, err := responder.Respond(context.Background(), persona, prompt)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func runPersonas() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	directory, err := loadDirectory(cfg)
	if err != nil {
		return err
	}
	if directory.Len() == 0 {
		fmt.Println("no personas configured")
		return nil
	}
	for _, info := range directory.Infos() {
		fmt.Printf("%s\t%s\n", info.Name, info.Role)
	}
	return nil
}

func loadDirectory(cfg *config.Config) (*personas.Directory, error) {
	if cfg.Personas.File == "" {
		return personas.NewDirectory(nil), nil
	}
	return personas.LoadDirectory(cfg.Personas.File)
}

func buildProvider(cfg *config.Config, name string) (llm.Provider, error) {
	pc, ok := cfg.LLM.Providers[name]
	if !ok {
		return nil, chat.ErrConfig(fmt.Sprintf("llm provider %q not defined", name), nil)
	}
	switch pc.Type {
	case "anthropic":
		return llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	default:
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
			Name:         name,
		})
	}
}

func buildLogger(lc config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if lc.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
