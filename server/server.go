package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zentity/zk-attest/attestation"
	"github.com/zentity/zk-attest/challenge"
	"github.com/zentity/zk-attest/circuitspec"
	"github.com/zentity/zk-attest/events"
	"github.com/zentity/zk-attest/logger"
	"github.com/zentity/zk-attest/server/api"
)

type ServeConfig struct {
	// Server settings
	Host string
	Port int

	// Circuit settings
	CircuitsDir string
	Circuits    []string // Specific circuit types to load (empty = all)

	// Challenge store
	Store         string // memory, redis, postgres or sqlite
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	DatabaseDSN   string
	SweepInterval time.Duration

	// Attestations
	AttestationSecret string
	AttestationTTL    time.Duration
	Production        bool

	// Events
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Performance settings
	MaxRequestSize  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Security settings
	EnableCORS    bool
	CorsOrigins   []string
	InternalToken string // empty disables the check and the issuance route

	// Rate limiting on /challenges and /proofs/verify
	RateLimitRequests int // per client and route, 0 = disabled
	RateLimitWindow   time.Duration

	// Observability
	EnablePprof bool
	LogLevel    string
	LogFormat   string // "json" or "text"

	// TLS settings
	EnableTLS bool
	CertFile  string
	KeyFile   string
}

func Run(cfg *ServeConfig) error {
	// Validate configuration
	if err := validateServeConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize circuit registry
	registry := api.NewCircuitRegistry()
	if err := loadCircuits(registry, cfg, log); err != nil {
		return fmt.Errorf("failed to load circuits: %w", err)
	}

	store, closeStore, err := NewChallengeStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open challenge store: %w", err)
	}
	defer closeStore()
	go challenge.RunJanitor(ctx, store, cfg.SweepInterval, log)

	limiter, closeLimiter, err := NewRateLimiter(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}
	defer closeLimiter()

	signer, err := attestation.NewSigner([]byte(cfg.AttestationSecret),
		attestation.WithProduction(cfg.Production),
		attestation.WithTTL(cfg.AttestationTTL),
	)
	if err != nil {
		return fmt.Errorf("failed to create attestation signer: %w", err)
	}
	defer signer.Close()

	publisher := events.Nop()
	if cfg.AMQPURL != "" {
		p, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			return fmt.Errorf("failed to connect event publisher: %w", err)
		}
		publisher = p
		log.Info("Publishing verification events", "exchange", cfg.AMQPExchange)
	}
	defer publisher.Close()

	server := api.NewServer(api.Deps{
		Registry:  registry,
		Store:     store,
		Signer:    signer,
		Publisher: publisher,
		Log:       log,
	})

	// Setup router with middleware
	r := NewRouter(server, cfg, limiter, log)

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", addr, "tls", cfg.EnableTLS, "store", cfg.Store)

		var err error
		if cfg.EnableTLS {
			err = httpServer.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or server error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	log.Info("Shutting down server gracefully...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

func loadCircuits(registry *api.CircuitRegistry, cfg *ServeConfig, log logger.Logger) error {
	toLoad := make([]circuitspec.Type, 0, len(cfg.Circuits))
	for _, name := range cfg.Circuits {
		ct, err := circuitspec.ParseType(name)
		if err != nil {
			return err
		}
		toLoad = append(toLoad, ct)
	}
	if len(toLoad) == 0 {
		toLoad = circuitspec.Types()
	}

	loaded := 0
	for _, ct := range toLoad {
		if err := registry.LoadCircuit(ct, cfg.CircuitsDir, false); err != nil {
			log.Warn("Failed to load circuit", "circuit", ct, "error", err)
			continue
		}
		loaded++
		log.Info("Loaded circuit", "circuit", ct)
	}

	if loaded == 0 {
		return fmt.Errorf("no circuits loaded from %s", cfg.CircuitsDir)
	}

	log.Info("Circuit loading complete", "loaded", loaded, "total", len(toLoad))
	return nil
}

func validateServeConfig(cfg *ServeConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}

	if cfg.EnableTLS {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert-file or key-file not provided")
		}
		if _, err := os.Stat(cfg.CertFile); err != nil {
			return fmt.Errorf("cert file not found: %s", cfg.CertFile)
		}
		if _, err := os.Stat(cfg.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %s", cfg.KeyFile)
		}
	}

	if _, err := os.Stat(cfg.CircuitsDir); err != nil {
		return fmt.Errorf("circuits directory not found: %s", cfg.CircuitsDir)
	}

	switch cfg.Store {
	case "", StoreMemory:
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("redis store requires redis-addr")
		}
	case StorePostgres, StoreSQLite:
		if cfg.DatabaseDSN == "" {
			return fmt.Errorf("%s store requires database-dsn", cfg.Store)
		}
	default:
		return fmt.Errorf("unknown store: %s", cfg.Store)
	}

	if cfg.RateLimitRequests < 0 {
		return fmt.Errorf("invalid rate limit: %d", cfg.RateLimitRequests)
	}
	if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}

	if cfg.AttestationSecret == "" {
		return fmt.Errorf("attestation secret is required")
	}
	if cfg.Production {
		if len(cfg.AttestationSecret) < attestation.MinProductionSecretLen {
			return fmt.Errorf("attestation secret must be at least %d characters in production",
				attestation.MinProductionSecretLen)
		}
		if cfg.InternalToken == "" {
			return fmt.Errorf("internal token is required in production")
		}
	}

	return nil
}

// IssuesAttestations reports whether POST /attestations is served. Issuance
// is only exposed behind the internal token.
func (cfg *ServeConfig) IssuesAttestations() bool {
	return cfg.InternalToken != ""
}
