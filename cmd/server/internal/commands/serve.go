package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jbalderas/prefcore/internal/catalog"
	"github.com/jbalderas/prefcore/internal/events"
	"github.com/jbalderas/prefcore/internal/httpapi"
	"github.com/jbalderas/prefcore/internal/logger"
	"github.com/jbalderas/prefcore/internal/settings"
	"github.com/jbalderas/prefcore/internal/store"
	memorystore "github.com/jbalderas/prefcore/internal/store/memory"
	postgresstore "github.com/jbalderas/prefcore/internal/store/postgres"
	"github.com/jbalderas/prefcore/internal/telemetry"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

type ServeCmd struct {
	Listen string `help:"HTTP server listen address" default:"localhost:8080" env:"PREFCORE_LISTEN"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:5173" env:"PREFCORE_CORS_ORIGINS"`

	// Catalog configuration
	CatalogFile string `help:"path to a YAML catalog overriding the embedded defaults" default:"" env:"PREFCORE_CATALOG_FILE"`

	// Invalidation event configuration
	EventBuffer int `help:"per-subscriber invalidation event buffer" default:"16" env:"PREFCORE_EVENT_BUFFER"`

	// Operational modes
	Tracing bool `help:"enable OpenTelemetry tracing and metrics export" default:"false" env:"PREFCORE_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"PREFCORE_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"PREFCORE_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if s.Tracing {
		shutdown, err := telemetry.InitTelemetry(ctx, "prefcore", globals.Version)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Telemetry shutdown failed")
			}
		}()
	}

	cat := catalog.Default()
	if s.CatalogFile != "" {
		var err error
		cat, err = catalog.Load(s.CatalogFile)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		log.Info().Str("file", s.CatalogFile).Msg("Loaded catalog overrides")
	}

	prefStore, orgStore, cleanup, err := s.buildStores(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	broker := events.NewBroker(s.EventBuffer)
	prefService := settings.NewPreferenceService(prefStore, cat, broker)
	orgService := settings.NewOrganizationService(orgStore, cat, broker)

	handler := httpapi.NewHandler(prefService, orgService, broker, cat).Routes()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	wrapped := logger.HTTPRequests(log.Logger)(corsMiddleware.Handler(handler))

	server := configureHTTPServer(s.Listen, wrapped)

	log.Info().
		Str("version", globals.Version).
		Str("listen", s.Listen).
		Str("store", s.StoreType).
		Msg("Starting settings API server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// buildStores creates the configured store backends. The returned cleanup
// closes any underlying connection pool.
func (s *ServeCmd) buildStores(ctx context.Context) (store.PreferenceStore, store.OrganizationStore, func(), error) {
	switch s.StoreType {
	case "memory":
		log.Warn().Msg("Using in-memory store - data is lost on restart")
		return memorystore.NewPreferenceStore(), memorystore.NewOrganizationStore(), func() {}, nil

	case "postgres":
		if err := s.PostgresStore.Validate(); err != nil {
			return nil, nil, nil, err
		}

		pool, err := connectWithRetry(ctx, &postgresstore.PoolConfig{
			ConnString:      s.PostgresStore.ConnString,
			MaxConns:        s.PostgresStore.MaxConns,
			MinConns:        s.PostgresStore.MinConns,
			MaxConnLifetime: s.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: s.PostgresStore.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		if s.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, nil, err
			}
		}

		return postgresstore.NewPreferenceStore(pool), postgresstore.NewOrganizationStore(pool), pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store type: %s", s.StoreType)
	}
}

// connectWithRetry retries the initial pool creation with exponential backoff
// so the server survives a database that is still starting up.
func connectWithRetry(ctx context.Context, cfg *postgresstore.PoolConfig) (*pgxpool.Pool, error) {
	return backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		pool, err := postgresstore.NewPool(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Database not ready, retrying")
			return nil, err
		}
		return pool, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(time.Minute),
	)
}
