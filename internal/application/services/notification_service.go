package services

import (
	"context"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/internal/infrastructure/persistence"
	"github.com/permitworks/backend/pkg/constants"
	appErrors "github.com/permitworks/backend/pkg/errors"
)

const (
	dispatchBatchSize = 50
	deliveryRetries   = 3
)

// Deliverer pushes one notification to its recipient. The default
// implementation just logs; email or push providers plug in here.
type Deliverer interface {
	Deliver(ctx context.Context, n *models.Notification) error
}

// LogDeliverer writes notifications to the process log. Used until a real
// channel is configured.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(_ context.Context, n *models.Notification) error {
	log.Printf("📣 [notify %s] %s: %s", n.RecipientID, n.Title, n.Body)
	return nil
}

// NotificationService serves a user's notification feed and runs the outbox
// dispatcher that drains pending intents in the background.
type NotificationService struct {
	notifications *persistence.NotificationRepository
	deliverer     Deliverer
	pollInterval  time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifications *persistence.NotificationRepository, deliverer Deliverer) *NotificationService {
	if deliverer == nil {
		deliverer = LogDeliverer{}
	}
	interval := constants.NotificationPollInterval
	if v := os.Getenv("NOTIFY_POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			interval = n
		}
	}
	return &NotificationService{
		notifications: notifications,
		deliverer:     deliverer,
		pollInterval:  time.Duration(interval) * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// ListMine returns the user's notifications, newest first.
func (s *NotificationService) ListMine(ctx context.Context, user *models.UserSession, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	notifications, err := s.notifications.ListByRecipient(ctx, user.ID, limit)
	if err != nil {
		return nil, appErrors.NewDependencyError("database", err)
	}
	return notifications, nil
}

// MarkRead marks one of the user's notifications as read. Marking someone
// else's notification reports NotFound rather than leaking its existence.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID string, user *models.UserSession) error {
	ok, err := s.notifications.MarkRead(ctx, notificationID, user.ID)
	if err != nil {
		return appErrors.NewDependencyError("database", err)
	}
	if !ok {
		return appErrors.NewNotFoundError("notification", notificationID)
	}
	return nil
}

// Start launches the background dispatcher loop.
func (s *NotificationService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		log.Printf("✅ Notification dispatcher started (poll interval %s)", s.pollInterval)
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := s.DispatchPending(ctx); err != nil {
					log.Printf("⚠️ Notification dispatch failed: %v", err)
				}
				cancel()
			}
		}
	}()
}

// Stop signals the dispatcher loop and waits for it to exit.
func (s *NotificationService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Println("✅ Notification dispatcher stopped")
}

// DispatchPending drains one batch of pending intents. Delivery failures
// bump the retry counter; past deliveryRetries the intent is parked as
// failed so it cannot wedge the outbox.
func (s *NotificationService) DispatchPending(ctx context.Context) error {
	pending, err := s.notifications.ListPending(ctx, dispatchBatchSize)
	if err != nil {
		return appErrors.NewDependencyError("database", err)
	}

	for _, n := range pending {
		if err := s.deliverer.Deliver(ctx, n); err != nil {
			log.Printf("⚠️ Failed to deliver notification %s: %v", n.ID, err)
			if err := s.notifications.MarkFailed(ctx, n.ID, deliveryRetries); err != nil {
				return appErrors.NewDependencyError("database", err)
			}
			continue
		}
		if err := s.notifications.MarkProcessed(ctx, n.ID, time.Now()); err != nil {
			return appErrors.NewDependencyError("database", err)
		}
	}
	return nil
}
