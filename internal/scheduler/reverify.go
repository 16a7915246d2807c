// Package scheduler runs the periodic re-verification of the stored token,
// so a session revoked on the backend does not linger locally until the
// next restart.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/smolnikov/adminpanel/internal/session"
)

const runTimeout = 30 * time.Second

// Reverifier periodically re-checks the auth session against the backend.
type Reverifier struct {
	session  *session.Manager
	schedule string
	logger   *slog.Logger

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
}

func NewReverifier(manager *session.Manager, schedule string, logger *slog.Logger) *Reverifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reverifier{
		session:  manager,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start schedules the re-verification job. Starting twice is a no-op.
func (r *Reverifier) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return nil
	}

	entryID, err := r.cron.AddFunc(r.schedule, r.run)
	if err != nil {
		return fmt.Errorf("invalid re-verification schedule %q: %w", r.schedule, err)
	}
	r.entryID = entryID

	r.cron.Start()
	r.isRunning = true

	r.logger.Info("token re-verification scheduled", "schedule", r.schedule, "next_run", r.nextRunLocked())
	return nil
}

// Stop halts the scheduler and waits for a running check to finish.
func (r *Reverifier) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return
	}

	ctx := r.cron.Stop()
	<-ctx.Done()
	r.isRunning = false

	r.logger.Info("token re-verification stopped")
}

// NextRun returns when the next check will happen, nil when not running.
func (r *Reverifier) NextRun() *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.isRunning {
		return nil
	}
	return r.nextRunLocked()
}

func (r *Reverifier) nextRunLocked() *time.Time {
	for _, entry := range r.cron.Entries() {
		if entry.ID == r.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (r *Reverifier) run() {
	if r.session.Token() == "" {
		r.logger.Debug("re-verification skipped, not logged in")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	r.logger.Debug("re-verifying stored token")
	r.session.Refresh(ctx)
}
