package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iksnae/insight-dash/internal"
	"github.com/spf13/cobra"
)

// App holds what a command needs. It is built once per invocation and
// closed when the command returns.
type App struct {
	Config  *internal.Config
	Store   *internal.SessionStore
	Client  *internal.Client
	Printer *internal.Printer

	kv internal.KVStore
}

// newApp loads configuration, applies command-line overrides and opens the session store
func newApp(cmd *cobra.Command) (*App, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if backendFlag != "" {
		cfg.BackendURL = backendFlag
	}
	if storeFlag != "" {
		cfg.StorePath = storeFlag
	}
	if redisFlag != "" {
		cfg.RedisURL = redisFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx := commandContext(cmd)
	kv, err := openKV(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := internal.OpenSessionStore(ctx, kv, cfg.KeyPrefix)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	// Per-call deadlines come from contexts; the http timeout only has to
	// outlast the slowest call.
	client, err := internal.NewClient(cfg.BackendURL,
		internal.WithTimeout(cfg.AnalysisTimeout),
		internal.WithRateLimit(cfg.RateLimit),
	)
	if err != nil {
		kv.Close()
		return nil, err
	}

	return &App{
		Config:  cfg,
		Store:   store,
		Client:  client,
		Printer: internal.NewPrinterFor(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		kv:      kv,
	}, nil
}

func openKV(ctx context.Context, cfg *internal.Config) (internal.KVStore, error) {
	if cfg.RedisURL != "" {
		internal.LogDebug("Using Redis session store")
		kv, err := internal.OpenRedisKV(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return kv, nil
	}
	if cfg.StorePath == "memory" {
		internal.LogDebug("Using in-memory session store")
		return internal.NewMemoryKV(), nil
	}
	internal.LogDebug("Using session store %s", cfg.StorePath)
	kv, err := internal.OpenSQLiteKV(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	return kv, nil
}

// Close releases the session store
func (a *App) Close() error {
	return a.kv.Close()
}

// requireSession returns the current session or ErrNotAuthenticated
func (a *App) requireSession() (*internal.Session, error) {
	sess := a.Store.Current()
	if sess == nil {
		return nil, fmt.Errorf("%w: run 'insight-dash login' first", internal.ErrNotAuthenticated)
	}
	return sess, nil
}

// requestContext bounds a single backend call with the configured timeout
func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.Config.Timeout)
}

// analysisContext bounds an analysis run, which can take much longer than other calls
func (a *App) analysisContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.Config.AnalysisTimeout)
}

// withApp builds the App for a command, runs fn and closes the App
func withApp(fn func(cmd *cobra.Command, args []string, app *App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				internal.LogWarn("Failed to close session store: %v", err)
			}
		}()
		return fn(cmd, args, app)
	}
}

// authenticated is withApp for commands that need a session
func authenticated(fn func(cmd *cobra.Command, args []string, app *App) error) func(*cobra.Command, []string) error {
	return withApp(func(cmd *cobra.Command, args []string, app *App) error {
		if _, err := app.requireSession(); err != nil {
			return err
		}
		return fn(cmd, args, app)
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

// userError replaces transport detail with the generic message users see.
// The detail is logged at debug level.
func userError(err error) error {
	var terr *internal.TransportError
	if errors.As(err, &terr) {
		internal.LogDebug("%v", terr)
		return errors.New(terr.UserMessage())
	}
	return err
}
