package zkproof

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/zentity/zk-attest/attestation"
	"github.com/zentity/zk-attest/challenge"
	"github.com/zentity/zk-attest/events"
	"github.com/zentity/zk-attest/server"
)

func NewServeCmd() *cobra.Command {
	cfg := &server.ServeConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the attestation API server",
		Long: `Start the HTTP API server that issues challenges, verifies proofs and signs attestations.
Most flags default to an environment variable, and a .env file in the working
directory is loaded first.`,
		Example: `  # Start server on default port
  zkattest serve

  # Shared challenge store
  zkattest serve --store redis --redis-addr localhost:6379

  # Production deployment with TLS
  APP_ENV=production ATTESTATION_SECRET=... INTERNAL_SERVICE_TOKEN=... \
  zkattest serve --host 0.0.0.0 --port 443 --enable-tls \
    --cert-file /etc/ssl/cert.pem --key-file /etc/ssl/key.pem

  # Load specific circuits only
  zkattest serve --circuits age_verification,face_match`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(cfg)
		},
	}

	// Server flags
	cmd.Flags().StringVar(&cfg.Host, "host", envString("HOST", "localhost"), "Host to bind to")
	cmd.Flags().IntVarP(&cfg.Port, "port", "p", envInt("PORT", 8080), "Port to listen on")

	// Circuit flags
	cmd.Flags().StringVarP(&cfg.CircuitsDir, "circuits-dir", "d", envString("CIRCUITS_DIR", "./setup"), "Directory containing compiled circuits")
	cmd.Flags().StringSliceVarP(&cfg.Circuits, "circuits", "c", []string{}, "Specific circuit types to load (comma-separated, empty = all)")

	// Challenge store flags
	cmd.Flags().StringVar(&cfg.Store, "store", envString("CHALLENGE_STORE", server.StoreMemory), "Challenge store (memory, redis, postgres, sqlite)")
	cmd.Flags().StringVar(&cfg.RedisAddr, "redis-addr", envString("REDIS_ADDR", ""), "Redis address for the redis store")
	cmd.Flags().StringVar(&cfg.RedisPassword, "redis-password", envString("REDIS_PASSWORD", ""), "Redis password")
	cmd.Flags().IntVar(&cfg.RedisDB, "redis-db", envInt("REDIS_DB", 0), "Redis database")
	cmd.Flags().StringVar(&cfg.RedisPrefix, "redis-prefix", envString("REDIS_PREFIX", "zk-attest"), "Redis key prefix")
	cmd.Flags().StringVar(&cfg.DatabaseDSN, "database-dsn", envString("DATABASE_URL", ""), "DSN for the postgres and sqlite stores")
	cmd.Flags().DurationVar(&cfg.SweepInterval, "sweep-interval", envDuration("CHALLENGE_SWEEP_INTERVAL", challenge.DefaultSweepInterval), "How often expired challenges are purged")

	// Attestation flags
	cmd.Flags().StringVar(&cfg.AttestationSecret, "attestation-secret", envString("ATTESTATION_SECRET", ""), "Secret the attestation signing key is derived from")
	cmd.Flags().DurationVar(&cfg.AttestationTTL, "attestation-ttl", envDuration("ATTESTATION_TTL", attestation.DefaultTTL), "Attestation token lifetime")
	cmd.Flags().BoolVar(&cfg.Production, "production", isProduction(), "Enforce production requirements (defaults from APP_ENV)")

	// Event flags
	cmd.Flags().StringVar(&cfg.AMQPURL, "amqp-url", envString("AMQP_URL", ""), "RabbitMQ URL for verification events (empty = disabled)")
	cmd.Flags().StringVar(&cfg.AMQPExchange, "amqp-exchange", envString("AMQP_EXCHANGE", "zk-attest.events"), "Exchange verification events are published to")
	cmd.Flags().StringVar(&cfg.AMQPRoutingKey, "amqp-routing-key", envString("AMQP_ROUTING_KEY", events.DefaultRoutingKey), "Routing key for verification events")

	// Performance flags
	cmd.Flags().Int64Var(&cfg.MaxRequestSize, "max-request-size", 10*1024*1024, "Maximum request body size in bytes")
	cmd.Flags().DurationVar(&cfg.ReadTimeout, "read-timeout", 15*time.Second, "HTTP read timeout")
	cmd.Flags().DurationVar(&cfg.WriteTimeout, "write-timeout", 60*time.Second, "HTTP write timeout")
	cmd.Flags().DurationVar(&cfg.IdleTimeout, "idle-timeout", 120*time.Second, "HTTP idle timeout")
	cmd.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")

	// Security flags
	cmd.Flags().BoolVar(&cfg.EnableCORS, "enable-cors", true, "Enable CORS middleware")
	cmd.Flags().StringSliceVar(&cfg.CorsOrigins, "cors-origins", []string{"*"}, "Allowed CORS origins")
	cmd.Flags().StringVar(&cfg.InternalToken, "internal-token", envString("INTERNAL_SERVICE_TOKEN", ""), "Shared token required on every route but /health (empty = disabled, which also disables attestation issuance)")
	cmd.Flags().IntVar(&cfg.RateLimitRequests, "rate-limit-requests", envInt("RATE_LIMIT_REQUESTS", 30), "Requests per client per window on /challenges and /proofs/verify (0 = disabled)")
	cmd.Flags().DurationVar(&cfg.RateLimitWindow, "rate-limit-window", envDuration("RATE_LIMIT_WINDOW", time.Minute), "Rate limit window")

	// Observability flags
	cmd.Flags().BoolVar(&cfg.EnablePprof, "enable-pprof", false, "Enable pprof endpoints (debug only)")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", envString("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", envString("LOG_FORMAT", "text"), "Log format (text, json)")

	// TLS flags
	cmd.Flags().BoolVar(&cfg.EnableTLS, "enable-tls", false, "Enable TLS/HTTPS")
	cmd.Flags().StringVar(&cfg.CertFile, "cert-file", "", "TLS certificate file")
	cmd.Flags().StringVar(&cfg.KeyFile, "key-file", "", "TLS private key file")

	return cmd
}
