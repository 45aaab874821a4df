package matching

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically releases presentations that were never answered.
type Sweeper struct {
	service  Service
	interval time.Duration
}

// NewSweeper creates a Sweeper that runs on the given interval.
func NewSweeper(service Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{service: service, interval: interval}
}

// Start blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.service.ExpireStalePresentations(ctx)
			if err != nil {
				log.Printf("presentation sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("released %d stale presentations", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
