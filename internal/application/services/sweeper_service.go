package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/permitworks/backend/internal/domain/models"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

// expiredFinder yields ACTIVE permits whose work window has elapsed.
type expiredFinder interface {
	FindExpiredActiveIDs(ctx context.Context, now time.Time) ([]string, error)
}

// permitCompleter force-completes a single expired permit.
type permitCompleter interface {
	Complete(ctx context.Context, applicationID string, actor *models.UserSession) error
}

// systemActor stamps sweeper-driven transitions in the audit columns.
var systemActor = &models.UserSession{ID: "system", Name: "System"}

// SweeperService periodically completes ACTIVE permits whose scheduled end
// time has passed. Each permit is swept in its own transaction, so one bad
// row never blocks the rest of the batch, and a permit that a user moved
// first just falls out of the guard as a no-op.
type SweeperService struct {
	finder    expiredFinder
	completer permitCompleter
	schedule  string
	cron      *cron.Cron
	clock     func() time.Time
}

// NewSweeperService creates a new SweeperService
func NewSweeperService(finder expiredFinder, completer permitCompleter, schedule string) *SweeperService {
	return &SweeperService{
		finder:    finder,
		completer: completer,
		schedule:  schedule,
		clock:     time.Now,
	}
}

// Start schedules the sweep. Returns an error only for a bad schedule spec.
func (s *SweeperService) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.RunExpirySweep(ctx, s.clock()); err != nil {
			log.Printf("⚠️ Expiry sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("✅ Expiry sweeper started (schedule %s)", s.schedule)
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *SweeperService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	log.Println("✅ Expiry sweeper stopped")
}

// RunExpirySweep performs one sweep pass and returns how many permits it
// completed. Running it again immediately completes nothing: swept permits
// are no longer ACTIVE, so the query does not return them.
func (s *SweeperService) RunExpirySweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.finder.FindExpiredActiveIDs(ctx, now)
	if err != nil {
		return 0, appErrors.NewDependencyError("database", err)
	}

	completed := 0
	for _, id := range ids {
		if err := s.completer.Complete(ctx, id, systemActor); err != nil {
			// Lost the race with a user-triggered transition; nothing to do.
			if appErrors.IsInvalidTransition(err) {
				continue
			}
			log.Printf("⚠️ Failed to complete expired permit %s: %v", id, err)
			continue
		}
		completed++
	}
	if completed > 0 {
		log.Printf("🧹 Expiry sweep completed %d permit(s)", completed)
	}
	return completed, nil
}
