// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/spinbox/internal/api/connect"
	"github.com/osa030/spinbox/internal/api/web"
	"github.com/osa030/spinbox/internal/app/session"
	"github.com/osa030/spinbox/internal/domain/song"
	"github.com/osa030/spinbox/internal/infra/bridge"
	"github.com/osa030/spinbox/internal/infra/config"
	"github.com/osa030/spinbox/internal/infra/logger"
)

var (
	app        = kingpin.New("spinbox-server", "spinbox media widget server")
	configPath = app.Flag("config", "Path to config file (built-in defaults when absent)").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// check-url command
	checkURLCmd = app.Command("check-url", "Classify a URL the way the playlist would and exit")
	checkURLArg = checkURLCmd.Arg("url", "URL to classify").Required().String()
)

func init() {
	// start command (default)
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == checkURLCmd.FullCommand() {
		os.Exit(checkURL(*checkURLArg))
	}

	closer, err := logger.Init(logger.FromFlags(*verbose, *logfile))
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		_ = closer.Close()
		os.Exit(1)
	}
}

// loadConfig reads path, falling back to the built-in defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		zlog.Info().Msgf("Config file %s not found, using defaults", path)
		return config.Default()
	}
	zlog.Info().Msgf("Loading config from %s", path)
	return config.Load(path)
}

// checkURL prints how raw would be added to the playlist.
func checkURL(raw string) int {
	s, err := song.New(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", raw, err)
		return 1
	}
	fmt.Printf("kind:  %s\n", s.Kind)
	fmt.Printf("title: %s\n", s.Title)
	if s.VideoID != "" {
		fmt.Printf("video: %s\n", s.VideoID)
		fmt.Printf("thumb: %s\n", s.Thumbnail)
	}
	return 0
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	hub := bridge.NewHub()
	defer hub.Close()

	sessionMgr, err := session.NewManager(cfg, hub)
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}
	hub.SetHandler(sessionMgr)

	mux := http.NewServeMux()

	playerPath, playerHandler := apiconnect.NewPlayerServiceHandler(
		apiconnect.NewPlayerService(sessionMgr),
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(cfg)),
	)
	mux.Handle(playerPath, playerHandler)
	mux.Handle("/", web.NewRouter(cfg.Server.Title, hub, sessionMgr))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the listener a moment before running hooks
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		sessionMgr.Close()
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the session first so notice streams end before the server drains
	sessionMgr.Close()
	hub.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
