package memory

import (
	"context"
	"strings"
	"sync"

	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/storage"
)

// AlertArchive is an in-memory implementation of storage.AlertArchive.
type AlertArchive struct {
	mu     sync.RWMutex
	alerts []*domain.Alert
}

// NewAlertArchive creates a new in-memory alert archive.
func NewAlertArchive() *AlertArchive {
	return &AlertArchive{}
}

// Insert appends a dispatched alert.
func (a *AlertArchive) Insert(_ context.Context, alert *domain.Alert) error {
	if alert == nil || alert.AlertID == "" {
		return storage.ErrInvalidInput
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	alertCopy := *alert
	a.alerts = append(a.alerts, &alertCopy)
	return nil
}

// LatestForPair returns the most recent archived alert for a pair.
func (a *AlertArchive) LatestForPair(_ context.Context, pair string) (*domain.Alert, error) {
	if pair == "" {
		return nil, storage.ErrInvalidInput
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	var latest *domain.Alert
	for _, alert := range a.alerts {
		if !strings.EqualFold(alert.Pair.PairAddress.Hex(), pair) {
			continue
		}
		if latest == nil || alert.CreatedAt > latest.CreatedAt {
			latest = alert
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	alertCopy := *latest
	return &alertCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.AlertArchive = (*AlertArchive)(nil)
