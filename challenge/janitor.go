package challenge

import (
	"context"
	"time"

	"github.com/zentity/zk-attest/logger"
)

// DefaultSweepInterval is how often the janitor purges expired challenges.
const DefaultSweepInterval = time.Minute

// Purger drops expired challenges. Every Store in this package implements it.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// RunJanitor purges p every interval until ctx is cancelled. Consume already
// refuses expired records, so this only bounds storage growth.
func RunJanitor(ctx context.Context, p Purger, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = logger.Nop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := p.Purge(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("challenge purge failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Debug("purged expired challenges", "removed", removed)
			}
		}
	}
}
