package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/notifystream/internal/app"
	iauth "github.com/charlesng35/notifystream/internal/auth"
	"github.com/charlesng35/notifystream/internal/services"
	"github.com/charlesng35/notifystream/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("notifystream-server", flag.ContinueOnError)
	fs.SetOutput(stdout)

	var (
		configPath    string
		issueToken    string
		issueUsername string
	)
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")
	fs.StringVar(&issueToken, "issue-token", "", "Print a signed access token for the given user id and exit")
	fs.StringVar(&issueUsername, "issue-username", "", "Username recorded for -issue-token (defaults to the user id)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync()

	log := logger.WithModule("bootstrap")
	for key := range generated {
		log.Info("generated runtime secret", zap.String("key", key))
	}

	if strings.TrimSpace(issueToken) != "" {
		if generated["auth.jwt.secret"] {
			return errors.New("auth.jwt.secret must be configured to issue tokens")
		}
		return issueAccessToken(ctx, cfg, issueToken, issueUsername, stdout)
	}

	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Websocket sessions are hijacked, so Shutdown does not wait for them;
	// closing the broadcaster below ends them.
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown: %w", err)
	}

	if err := stack.Shutdown(shutdownCtx, log); err != nil {
		log.Warn("runtime shutdown", zap.Error(err))
	}

	if runErr != nil {
		return runErr
	}
	log.Info("server stopped gracefully")
	return nil
}

// issueAccessToken records the user locally so notifications can reference it
// and prints a token the gate will accept.
func issueAccessToken(ctx context.Context, cfg *app.Config, userID, username string, stdout io.Writer) error {
	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeDatabase(db) }()

	users, err := services.NewUserService(db)
	if err != nil {
		return err
	}
	user, err := users.Ensure(ctx, userID, username)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Username: user.Username})
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	_, err = fmt.Fprintln(stdout, token)
	return err
}

func loadApplicationConfig(path string) (*app.Config, error) {
	if strings.TrimSpace(path) == "" {
		return app.LoadConfig()
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if info.IsDir() {
		return app.LoadConfig(path)
	}
	return app.LoadConfig(filepath.Dir(path))
}
