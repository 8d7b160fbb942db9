package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/pavelanni/interviewer/internal/handler"
	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
	"github.com/pavelanni/interviewer/internal/token"
)

const revokedCleanupInterval = time.Hour

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "interviewer.db", "SQLite database path")
	f.String("token-secret", "", "HMAC secret for access tokens (or set INTERVIEWER_TOKEN_SECRET)")
	f.Bool("accept-unsigned-tokens", false, "Accept legacy unsigned tokens (development only)")
	f.String("admin-password", "", "Initial admin password (or set INTERVIEWER_ADMIN_PASSWORD)")
	f.Bool("secure-cookies", true, "Set Secure flag on auth cookies")
	f.String("llm-provider", "openai", "LLM backend ("+strings.Join(llm.Providers, ", ")+")")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible or Anthropic API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Duration("llm-timeout", 90*time.Second, "Timeout for a single LLM call (0 = none)")
	f.Bool("skip-llm-ping", false, "Do not check the LLM endpoint at startup")
	f.String("prompt-variant", string(prompts.PromptStandard), "Grading prompt variant (strict, standard, lenient)")
	f.IntP("num-questions", "n", 5, "Number of questions per session")
	f.Duration("question-cache-ttl", 30*time.Minute, "How long generated questions are remembered (0 = no caching)")
	f.StringP("lang", "l", "en", "Default language for API messages (en, ru)")
	f.StringSlice("allowed-origins", []string{"http://localhost:3000", "http://localhost:5173"}, "CORS allowed origins")
	f.Float64("login-rate", 1, "Login attempts per second allowed per client IP")
	f.Int("login-burst", 5, "Burst of login attempts allowed per client IP")
	addLogFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.CleanupRevokedTokens(time.Now()); err != nil {
		slog.Warn("failed to clean up revoked tokens", "error", err)
	}

	// Seed default admin user if no users exist.
	if _, err := handler.SeedAdmin(db, v.GetString("admin-password")); err != nil {
		if errors.Is(err, handler.ErrAdminPassword) {
			return fmt.Errorf("%w: set --admin-password flag or INTERVIEWER_ADMIN_PASSWORD env var", err)
		}
		return fmt.Errorf("seed admin: %w", err)
	}

	tokens, err := token.New(v.GetString("token-secret"), token.WithUnsigned(v.GetBool("accept-unsigned-tokens")))
	if err != nil {
		return fmt.Errorf("token codec: %w (set --token-secret or INTERVIEWER_TOKEN_SECRET)", err)
	}
	if v.GetBool("accept-unsigned-tokens") {
		slog.Warn("accepting unsigned tokens; do not use in production")
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = string(prompts.PromptStandard)
	}
	provider := strings.ToLower(v.GetString("llm-provider"))
	completer, err := llm.NewCompleter(ctx, llm.ProviderConfig{
		Provider: provider,
		BaseURL:  v.GetString("llm-url"),
		APIKey:   v.GetString("llm-key"),
		Model:    v.GetString("llm-model"),
	})
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	interviewer, err := llm.NewInterviewer(completer, promptVariant)
	if err != nil {
		return fmt.Errorf("create interviewer: %w", err)
	}
	if !v.GetBool("skip-llm-ping") {
		pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := interviewer.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "provider", provider, "model", v.GetString("llm-model"))
	}

	cfg := model.ServerConfig{
		NumQuestions:     v.GetInt("num-questions"),
		QuestionCacheTTL: v.GetDuration("question-cache-ttl"),
		LLMTimeout:       v.GetDuration("llm-timeout"),
		SecureCookies:    v.GetBool("secure-cookies"),
		LoginRate:        v.GetFloat64("login-rate"),
		LoginBurst:       v.GetInt("login-burst"),
	}
	h := handler.New(db, tokens, interviewer, cfg)

	origins := v.GetStringSlice("allowed-origins")
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
		AllowCredentials: true,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go cleanupRevoked(ctx, db)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"provider", provider,
			"model", v.GetString("llm-model"),
			"lang", lang,
			"num_questions", cfg.NumQuestions,
			"prompt_variant", promptVariant,
			"allowed_origins", origins,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// cleanupRevoked drops expired revocation entries until ctx is done.
func cleanupRevoked(ctx context.Context, db *store.Store) {
	t := time.NewTicker(revokedCleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if err := db.CleanupRevokedTokens(now); err != nil {
				slog.Warn("failed to clean up revoked tokens", "error", err)
			}
		}
	}
}
