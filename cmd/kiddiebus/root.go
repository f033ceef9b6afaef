package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiddiebus/kiddiebus-client/auth"
	"github.com/kiddiebus/kiddiebus-client/auth/identity"
	"github.com/kiddiebus/kiddiebus-client/internal/config"
	"github.com/kiddiebus/kiddiebus-client/internal/logging"
	"github.com/kiddiebus/kiddiebus-client/token"
	"github.com/kiddiebus/kiddiebus-client/token/filestore"
	"github.com/kiddiebus/kiddiebus-client/token/redisstore"
	tokenfakerepo "github.com/kiddiebus/kiddiebus-client/token/repofake"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds what every command needs once the environment has been read
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	out     *printer
	store   token.Store
	manager *auth.Manager
	closers []func() error
}

func newApp() *app {
	return &app{out: newPrinter(os.Stdout, os.Stderr)}
}

func newRootCmd(a *app) *cobra.Command {
	var (
		envFile     string
		banner      bool
		metricsAddr string
	)

	root := &cobra.Command{
		Use:           "kiddiebus",
		Short:         "Kiddie Bus client",
		Long:          "kiddiebus signs in to the Kiddie Bus API and tracks the bus serving a student.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.New()
			if err != nil {
				return err
			}
			if banner {
				displayAppname(cfg.GetAppName())
			}
			return a.init(cmd.Context(), cfg, metricsAddr)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of environment variables to load if present")
	root.PersistentFlags().BoolVar(&banner, "banner", false, "print the application banner")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides METRICS_ADDR)")

	root.AddCommand(
		newLoginCmd(a),
		newLoginGoogleCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProfileCmd(a),
		newTrackCmd(a),
		newCanViewCmd(a),
	)
	return root
}

// loadEnvFile loads path into the environment. Variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func (a *app) init(ctx context.Context, cfg config.Config, metricsAddr string) error {
	a.cfg = cfg
	a.logger = logging.New(os.Stderr, cfg.GetEnv(), cfg.GetLogLevel())
	logging.Install(a.logger)

	store, closeStore, err := openTokenStore(ctx, cfg)
	if err != nil {
		return err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	if metricsAddr == "" {
		metricsAddr = cfg.GetMetricsAddr()
	}
	if metricsAddr != "" {
		a.closers = append(a.closers, serveMetrics(metricsAddr, a.logger))
	}
	return nil
}

// session returns the manager, building it with options on first use
func (a *app) session(options ...auth.ManagerOption) *auth.Manager {
	if a.manager == nil {
		options = append([]auth.ManagerOption{
			auth.WithLogger(a.logger),
			auth.WithNavigator(auth.NavigatorFunc(func() {
				a.out.Warning("Your session has expired. Run `kiddiebus login` to sign in again.")
			})),
		}, options...)
		a.manager = auth.NewManager(a.cfg, a.store, options...)
	}
	return a.manager
}

func (a *app) close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// restore brings back the stored session. Commands that need a user call it first.
func (a *app) restore(ctx context.Context) error {
	m := a.session()
	if err := m.Initialize(ctx); err != nil {
		a.logger.Debug().Err(err).Msg("Stored session discarded")
	}
	if !m.Current().IsAuthenticated {
		return fmt.Errorf("not logged in, run `kiddiebus login` first")
	}
	return nil
}

// verifierOptions checks Google credentials locally when a client ID is configured
func (a *app) verifierOptions(ctx context.Context) ([]auth.ManagerOption, error) {
	clientID := a.cfg.GetGoogleClientID()
	if clientID == "" {
		return nil, nil
	}
	issuer := a.cfg.GetGoogleIssuer()
	if issuer == "" {
		issuer = identity.GoogleIssuer
	}
	v, err := identity.New(ctx, issuer, clientID)
	if err != nil {
		return nil, err
	}
	return []auth.ManagerOption{auth.WithIdentityVerifier(v)}, nil
}

func openTokenStore(ctx context.Context, cfg config.Config) (token.Store, func() error, error) {
	switch cfg.GetTokenStore() {
	case config.TokenStoreFile:
		return filestore.New(cfg.GetTokenFile(), filestore.WithSecret(cfg.GetStoreSecret())), nil, nil
	case config.TokenStoreRedis:
		s, err := redisstore.Dial(ctx, cfg.GetRedisURL(), cfg.GetRedisKey())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.TokenStoreMemory:
		return tokenfakerepo.NewFakeTokenStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown token store %q", cfg.GetTokenStore())
	}
}

func serveMetrics(addr string, logger zerolog.Logger) func() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server.Shutdown: %w", err)
		}
		return nil
	}
}
