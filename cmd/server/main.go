package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	chatui "github.com/MegaGrindStone/stream-chat-ui"
	"github.com/MegaGrindStone/stream-chat-ui/internal/auth"
	"github.com/MegaGrindStone/stream-chat-ui/internal/handlers"
	"github.com/MegaGrindStone/stream-chat-ui/internal/logger"
	"github.com/MegaGrindStone/stream-chat-ui/internal/metrics"
	"github.com/MegaGrindStone/stream-chat-ui/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const sessionPurgeInterval = time.Hour

func main() {
	var cfgFilePath string

	cmd := &cobra.Command{
		Use:           "streamchat-server",
		Short:         "Serve the streaming chat web interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfgFilePath)
		},
	}
	cmd.Flags().StringVarP(&cfgFilePath, "config", "c", "", "Path to config.yaml (default: <user config dir>/streamchat/config.yaml)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func configDir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	dir := filepath.Join(cfgDir, "streamchat")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}
	return dir, nil
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	cfgFile, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfgFilePath string) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	if cfgFilePath == "" {
		cfgFilePath = filepath.Join(dir, "config.yaml")
	}

	cfg, err := loadConfig(cfgFilePath)
	if err != nil {
		return err
	}

	l := logger.New(
		logger.WithDebug(cfg.Debug),
		logger.WithJSON(cfg.LogFormat == "json"),
		logger.WithPretty(cfg.LogFormat == "pretty"),
	)

	llm, err := cfg.LLM.llm(l)
	if err != nil {
		return err
	}

	hcfg, err := cfg.handlersConfig()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := handlers.NewMain(llm, hcfg, metrics.NewRelay(reg), l)
	if err != nil {
		return err
	}

	// Serve static files
	staticFS, err := fs.Sub(chatui.StaticFS, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(l))
	r.Use(middleware.Recoverer)

	var google *auth.Google
	if acfg := cfg.authConfig(); acfg.ClientID != "" {
		dbPath := cfg.Store.Path
		if dbPath == "" {
			dbPath = filepath.Join(dir, "store.db")
		}
		boltDB, err := services.NewBoltDB(dbPath)
		if err != nil {
			return err
		}
		defer boltDB.Close()

		g := auth.NewGoogle(acfg, boltDB, l)
		google = &g
		r.Use(google.Gate)

		go purgeSessions(ctx, boltDB, l)
		l.Info("Google sign-in enabled", slog.String("redirectURL", acfg.RedirectURL))
	} else {
		l.Warn("Google sign-in disabled, the chat is open to anyone who can reach the server")
	}

	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	r.Get("/", m.HandleHome)
	r.Get("/chat", m.HandleChatPage)
	r.Get("/healthz", m.HandleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", m.HandleLogin)
		r.Get("/register", m.HandleRegister)
		if google != nil {
			r.Get("/google", google.HandleSignIn)
			r.Get("/callback", google.HandleCallback)
			r.Post("/logout", google.HandleSignOut)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", m.HandleChat)
		r.Get("/models", m.HandleModels)
		r.Post("/render", m.HandleRender)
	})

	// No write timeout: chat streams stay open for as long as the model keeps producing.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		l.Info("Server starting", slog.String("port", cfg.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		l.Info("Start shutdown")

		// Create context with timeout for shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Gracefully shutdown the server
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error("Graceful shutdown failed", slog.String(logger.ErrKey, err.Error()))
			if err := srv.Close(); err != nil {
				l.Error("Forcing server close", slog.String(logger.ErrKey, err.Error()))
			}
		}
	}

	return nil
}

func purgeSessions(ctx context.Context, db services.BoltDB, l *slog.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := db.PurgeExpiredSessions(ctx, now)
			if err != nil {
				l.Error("Failed to purge sessions", slog.String(logger.ErrKey, err.Error()))
				continue
			}
			if n > 0 {
				l.Info("Purged expired sessions", slog.Int("count", n))
			}
		}
	}
}

// requestLogger logs one record per request once the handler returns.
func requestLogger(l *slog.Logger) func(http.Handler) http.Handler {
	l = l.With(slog.String("module", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				l.Info("Request",
					slog.String("requestID", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
