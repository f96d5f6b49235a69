// Package cache keeps the configuration revision used to scope cached
// evaluation results consistent across server instances.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

// RevisionChannel is the NOTIFY channel written by the config_revisions trigger.
const RevisionChannel = "permcondition_changed"

// RevisionManager tracks the latest configuration revision.
// Changes arrive through PostgreSQL LISTEN/NOTIFY; the revision is also
// re-read from the database once it is older than the refresh interval.
type RevisionManager struct {
	mu          sync.RWMutex
	revision    string
	lastRefresh time.Time

	db         *sql.DB
	connStr    string
	refreshTTL time.Duration
	logger     *slog.Logger

	listener *pq.Listener
	stopCh   chan struct{}
	stopped  bool
}

// NewRevisionManager creates a RevisionManager.
// connStr is used for the LISTEN connection; when empty only the periodic
// refresh is used. A nil db keeps the revision set through SetRevision.
func NewRevisionManager(db *sql.DB, connStr string, refreshTTL time.Duration, logger *slog.Logger) *RevisionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RevisionManager{
		db:         db,
		connStr:    connStr,
		refreshTTL: refreshTTL,
		logger:     logger.With("component", "revision_manager"),
		stopCh:     make(chan struct{}),
	}
}

// Start loads the current revision and subscribes to change notifications.
func (m *RevisionManager) Start(ctx context.Context) error {
	if m.db == nil {
		return nil
	}

	if _, err := m.refresh(ctx); err != nil {
		return fmt.Errorf("failed to fetch initial revision: %w", err)
	}

	if m.connStr == "" {
		return nil
	}
	if err := m.startListener(); err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	return nil
}

// Stop closes the listener. It is safe to call more than once.
func (m *RevisionManager) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	close(m.stopCh)
	m.mu.Unlock()

	if m.listener != nil {
		return m.listener.Close()
	}
	return nil
}

// CurrentRevision returns the latest known revision, refreshing it from the
// database when it is stale.
func (m *RevisionManager) CurrentRevision(ctx context.Context) (string, error) {
	m.mu.RLock()
	revision := m.revision
	stale := time.Since(m.lastRefresh) > m.refreshTTL
	m.mu.RUnlock()

	if m.db == nil || !stale {
		return revision, nil
	}
	return m.refresh(ctx)
}

// SetRevision overrides the current revision.
func (m *RevisionManager) SetRevision(revision string) {
	m.mu.Lock()
	m.revision = revision
	m.lastRefresh = time.Now()
	m.mu.Unlock()
}

func (m *RevisionManager) refresh(ctx context.Context) (string, error) {
	var revision string
	err := m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id)::text, '') FROM config_revisions`).Scan(&revision)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest revision: %w", err)
	}

	m.SetRevision(revision)
	return revision, nil
}

func (m *RevisionManager) startListener() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			m.logger.Warn("listener problem", "event", ev, "error", err)
		}
	}

	m.listener = pq.NewListener(m.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := m.listener.Listen(RevisionChannel); err != nil {
		m.listener.Close()
		m.listener = nil
		return fmt.Errorf("failed to listen on %s: %w", RevisionChannel, err)
	}

	go m.handleNotifications(m.listener.Notify, m.listener.Ping)
	return nil
}

// handleNotifications applies revisions from notify until Stop is called or
// notify is closed.
func (m *RevisionManager) handleNotifications(notify <-chan *pq.Notification, ping func() error) {
	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		select {
		case <-m.stopCh:
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnected; notifications may have been missed.
				m.mu.Lock()
				m.lastRefresh = time.Time{}
				m.mu.Unlock()
				continue
			}
			m.SetRevision(n.Extra)
			m.logger.Debug("configuration revision changed", "revision", n.Extra)
		case <-ticker.C:
			if err := ping(); err != nil {
				m.logger.Warn("listener ping failed", "error", err)
			}
		}
	}
}
