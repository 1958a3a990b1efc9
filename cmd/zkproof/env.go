package zkproof

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Flag defaults fall back to these environment variables.

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

// isProduction follows APP_ENV, then NODE_ENV.
func isProduction() bool {
	env := envString("APP_ENV", os.Getenv("NODE_ENV"))
	return strings.EqualFold(env, "production")
}
