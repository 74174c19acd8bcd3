package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 200 * time.Millisecond

// sequencer serializes sends from one identity. The mutex covers goroutines in
// this process; the lock file covers other collective processes signing with
// the same key, which would otherwise race for the same nonce.
type sequencer struct {
	mu   sync.Mutex
	file *flock.Flock
}

func newSequencer(lockDir, account string) (*sequencer, error) {
	s := &sequencer{}
	if strings.TrimSpace(lockDir) == "" {
		return s, nil
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	s.file = flock.New(filepath.Join(lockDir, strings.ToLower(account)+".lock"))
	return s, nil
}

// acquire blocks until the identity is free. The returned release must be called exactly once.
func (s *sequencer) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if s.file == nil {
		return s.mu.Unlock, nil
	}
	locked, err := s.file.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("acquire send lock: %w", err)
	}
	if !locked {
		s.mu.Unlock()
		return nil, fmt.Errorf("acquire send lock: %s is held by another process", s.file.Path())
	}
	return func() {
		_ = s.file.Unlock()
		s.mu.Unlock()
	}, nil
}
