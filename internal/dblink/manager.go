// Package dblink maintains a named dblink connection from the local
// PostgreSQL database to the remote gate_sso database, and retries queries
// that fail because the link went stale.
package dblink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// State tracks the lifecycle of the named link.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateVerified
	StateStale
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateVerified:
		return "verified"
	case StateStale:
		return "stale"
	default:
		return "disconnected"
	}
}

// Config describes the remote database the link points at.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	ConnName string
}

// Execer is the subset of pgxpool.Pool the manager needs. Tests substitute a
// fake.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Manager owns the named dblink connection. All link operations go through
// the local database; the manager never dials the remote host itself.
type Manager struct {
	db      Execer
	cfg     Config
	logger  *slog.Logger
	retries int
	backoff time.Duration

	mu           sync.Mutex
	state        State
	lastVerified time.Time
}

// NewManager creates a link manager. The link is established lazily on first
// use.
func NewManager(db Execer, cfg Config, logger *slog.Logger) *Manager {
	if cfg.ConnName == "" {
		cfg.ConnName = "gate_sso_conn"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		db:      db,
		cfg:     cfg,
		logger:  logger,
		retries: 1,
		backoff: 100 * time.Millisecond,
	}
}

// ConnName returns the name queries must reference in dblink() calls.
func (m *Manager) ConnName() string {
	return m.cfg.ConnName
}

// State returns the current link state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureReady verifies the named link with a probe query and reconnects when
// the probe fails or force is set.
func (m *Manager) EnsureReady(ctx context.Context, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force {
		if err := m.probe(ctx); err == nil {
			m.state = StateVerified
			m.lastVerified = time.Now()
			return nil
		}
		m.state = StateStale
		m.logger.Info("link probe failed, reconnecting", "conn", m.cfg.ConnName)
	}
	return m.reconnect(ctx)
}

// probe runs SELECT 1 through the link. Callers hold the mutex.
func (m *Manager) probe(ctx context.Context) error {
	_, err := m.db.Exec(ctx,
		fmt.Sprintf(`SELECT * FROM dblink(%s, 'SELECT 1') AS t(ok int)`, quoteLiteral(m.cfg.ConnName)))
	return err
}

// reconnect tears down and re-establishes the named link. Callers hold the
// mutex.
func (m *Manager) reconnect(ctx context.Context) error {
	m.state = StateConnecting

	if _, err := m.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS dblink`); err != nil {
		m.state = StateDisconnected
		return fmt.Errorf("install dblink extension: %w", err)
	}

	// A dangling connection with the same name makes dblink_connect fail, so
	// drop it first and ignore the error when none exists.
	if _, err := m.db.Exec(ctx,
		fmt.Sprintf(`SELECT dblink_disconnect(%s)`, quoteLiteral(m.cfg.ConnName))); err != nil {
		m.logger.Debug("link disconnect before reconnect", "conn", m.cfg.ConnName, "error", err)
	}

	if _, err := m.db.Exec(ctx,
		fmt.Sprintf(`SELECT dblink_connect(%s, %s)`,
			quoteLiteral(m.cfg.ConnName), quoteLiteral(m.connInfo()))); err != nil {
		m.state = StateDisconnected
		return fmt.Errorf("connect link %s: %w", m.cfg.ConnName, err)
	}

	if err := m.probe(ctx); err != nil {
		m.state = StateStale
		return fmt.Errorf("verify link %s: %w", m.cfg.ConnName, err)
	}

	m.state = StateVerified
	m.lastVerified = time.Now()
	m.logger.Info("link established", "conn", m.cfg.ConnName, "host", m.cfg.Host, "db", m.cfg.Database)
	return nil
}

// ExecuteWithRetry ensures link readiness, runs fn, and when fn fails with a
// connection-class error, forces a reconnect and tries again. Non-connection
// errors propagate immediately. Readiness runs before every attempt so a
// cold or stale link heals without consuming the retry budget.
func (m *Manager) ExecuteWithRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= m.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(m.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := m.EnsureReady(ctx, attempt > 0); err != nil {
			lastErr = err
			m.logger.Warn("link not ready", "conn", m.cfg.ConnName, "attempt", attempt+1, "error", err)
			continue
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isConnectionError(lastErr) {
			return lastErr
		}
		m.logger.Warn("link query failed", "conn", m.cfg.ConnName, "attempt", attempt+1, "error", lastErr)
	}

	m.mu.Lock()
	m.state = StateStale
	m.mu.Unlock()

	return fmt.Errorf(
		"link %s to %s:%d/%s is unavailable: %w. "+
			"Check that the remote database accepts connections on %s:%d, "+
			"that the %s credentials are valid, "+
			"that the dblink extension is installed locally, "+
			"and that the queried table exists in %s",
		m.cfg.ConnName, m.cfg.Host, m.cfg.Port, m.cfg.Database, lastErr,
		m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Database)
}

// isConnectionError classifies errors that a reconnect can plausibly fix.
func isConnectionError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"could not establish connection",
		"connection",
		"dblink",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (m *Manager) connInfo() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		m.cfg.Host, m.cfg.Port, m.cfg.Database, m.cfg.User, quoteConnValue(m.cfg.Password))
}

// quoteLiteral embeds a string as a SQL literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteConnValue quotes a libpq conninfo value so spaces and quotes survive.
func quoteConnValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
