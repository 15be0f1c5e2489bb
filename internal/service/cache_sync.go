package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/yourusername/competition-api/internal/domain/repository"
	"github.com/yourusername/competition-api/internal/events"
)

// CacheSync consumes the change feed and drops cached aggregates that other
// instances mutated. Without it a multi-instance deployment serves reads that
// are stale for up to the cache TTL; with it staleness is bounded by feed
// latency. The cache stays advisory either way.
type CacheSync struct {
	feed      events.ChangeFeed
	cacheRepo repository.CacheRepository

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCacheSync creates a cache synchronizer; call Start to begin consuming.
func NewCacheSync(feed events.ChangeFeed, cacheRepo repository.CacheRepository) *CacheSync {
	return &CacheSync{
		feed:      feed,
		cacheRepo: cacheRepo,
	}
}

// Start subscribes to the feed and invalidates cache keys for every change
// until Stop or ctx cancellation.
func (s *CacheSync) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	changes, err := s.feed.Subscribe(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to change feed: %w", err)
	}

	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for change := range changes {
			s.apply(change)
		}
		log.Println("[CacheSync] change feed closed")
	}()

	log.Println("[CacheSync] started")
	return nil
}

// Stop ends consumption and waits for the consumer goroutine to exit.
func (s *CacheSync) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *CacheSync) apply(change events.Change) {
	var key string
	switch change.Entity {
	case events.EntityCompetition:
		key = competitionCacheKey(change.EntityID)
	case events.EntityTeam:
		key = teamCacheKey(change.EntityID)
	default:
		return
	}

	if err := s.cacheRepo.Delete(key); err != nil {
		log.Printf("[CacheSync] invalidation of %s failed: %v", key, err)
	}
}
