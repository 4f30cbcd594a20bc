package hytale

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/cache"
	"github.com/nodecraft/identity-gateway/internal/logging"
	"github.com/nodecraft/identity-gateway/internal/metrics"
	"github.com/nodecraft/identity-gateway/internal/transport"
)

const tokensKey = "tokens"

const (
	oauthTokenURL      = "https://auth.hytale.com/oauth2/token"
	getProfilesURL     = "https://account-data.hytale.com/my-account/get-profiles"
	sessionRefreshURL  = "https://account-data.hytale.com/game-session/refresh"
	sessionCreateURL   = "https://account-data.hytale.com/game-session/new"
	refreshTokenAgeMax = 23 * 24 * time.Hour
	shrinkIdleWindow   = 10 * time.Minute
	rateLimitCooldown  = 60 * time.Second
)

// Config configures the manager's static inputs: the env-configured
// refresh token and profile UUID fallbacks, and pool bounds.
type Config struct {
	RefreshToken string
	ProfileUUID  string
	MinPool      int
	MaxPool      int
}

// Caller is the subset of transport.Client the manager needs; accepting it
// as an interface lets tests substitute a fake upstream.
type Caller interface {
	Call(ctx context.Context, req transport.Request, opts transport.Options, stages ...transport.Stage) (*transport.Result, error)
}

// Manager is the process-wide singleton token + session pool manager.
type Manager struct {
	cfg       Config
	store     cache.Store
	transport Caller

	mu   sync.Mutex
	fast atomic.Pointer[StoredTokens]
}

var (
	instance     *Manager
	instanceOnce sync.Once
)

// GetManager returns the process-wide Manager, constructing it on first
// call. Subsequent calls ignore their arguments and return the existing
// instance.
func GetManager(store cache.Store, t Caller, cfg Config) *Manager {
	instanceOnce.Do(func() {
		instance = newManager(store, t, cfg)
	})
	return instance
}

// newManager builds an independent Manager, bypassing the process-wide
// singleton. Used directly by tests that need a fresh instance per case.
func newManager(store cache.Store, t Caller, cfg Config) *Manager {
	m := &Manager{cfg: cfg, store: store, transport: t}
	m.bootstrap(context.Background())
	return m
}

func (m *Manager) bootstrap(ctx context.Context) {
	tokens := m.loadLocked(ctx)
	tokens.migrateLegacy()
	m.fast.Store(tokens.clone())
}

// loadLocked reads StoredTokens from the store, returning a zero-value
// record on a miss. Callers must hold mu.
func (m *Manager) loadLocked(ctx context.Context) *StoredTokens {
	raw, ok, err := m.store.Get(ctx, tokensKey)
	if err != nil || !ok {
		return &StoredTokens{}
	}
	var tokens StoredTokens
	if err := json.Unmarshal(raw, &tokens); err != nil {
		logging.Warn().Err(err).Msg("hytale tokens blob corrupt, starting fresh")
		return &StoredTokens{}
	}
	return &tokens
}

// persistLocked writes tokens back to the store and updates the fast-path
// snapshot. Callers must hold mu.
func (m *Manager) persistLocked(ctx context.Context, tokens *StoredTokens) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	if err := m.store.Put(ctx, tokensKey, raw, 0); err != nil {
		return err
	}
	m.fast.Store(tokens.clone())
	metrics.HytaleSessionPoolSize.Set(float64(len(tokens.Sessions)))
	return nil
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}

// PoolSize reports the current session pool depth, read lock-free off the
// fast-path snapshot, for the readiness probe.
func (m *Manager) PoolSize(_ context.Context) int {
	tokens := m.fast.Load()
	if tokens == nil {
		return 0
	}
	return len(tokens.Sessions)
}

// GetSessionToken ensures the pool is at least MinPool deep, then returns
// the next available session by round-robin.
func (m *Manager) GetSessionToken(ctx context.Context, force bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := m.loadLocked(ctx)
	if force {
		tokens.Sessions = nil
	}

	if _, err := m.accessTokenLocked(ctx, tokens); err != nil {
		return "", err
	}
	if err := m.ensureMinPoolLocked(ctx, tokens); err != nil {
		return "", err
	}

	session, err := m.nextSessionLocked(ctx, tokens)
	if err != nil {
		return "", err
	}
	if err := m.persistLocked(ctx, tokens); err != nil {
		return "", err
	}
	return session.SessionToken, nil
}

// GetSessionTokenForContainer returns a valid, non-rate-limited session; if
// every session is rate-limited, it returns the one whose rate-limit
// timestamp is oldest rather than failing outright (the container proxy
// tolerates a still-cooling-down session better than no session at all).
func (m *Manager) GetSessionTokenForContainer(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := m.loadLocked(ctx)
	if err := m.ensureMinPoolLocked(ctx, tokens); err != nil {
		return "", err
	}

	now := nowMS()
	var oldest *SessionInfo
	for i := range tokens.Sessions {
		s := &tokens.Sessions[i]
		if !s.valid(now) {
			continue
		}
		if s.available(now) {
			return s.SessionToken, nil
		}
		if oldest == nil || s.RateLimitedUntil < oldest.RateLimitedUntil {
			oldest = s
		}
	}
	if oldest == nil {
		return "", apperr.Internal(apperr.CodeHytaleSessionCreationFailed, nil)
	}
	return oldest.SessionToken, nil
}

// ReportRateLimit stamps the session matching token with a 60s cool-down
// and opportunistically expands the pool.
func (m *Manager) ReportRateLimit(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := m.loadLocked(ctx)
	now := nowMS()
	for i := range tokens.Sessions {
		if tokens.Sessions[i].SessionToken == token {
			tokens.Sessions[i].RateLimitedUntil = now + rateLimitCooldown.Milliseconds()
		}
	}
	tokens.LastRateLimitSeen = now
	m.expandLocked(ctx, tokens)
	return m.persistLocked(ctx, tokens)
}

// InvalidateTokens clears the access token and the entire session pool,
// preserving the refresh token.
func (m *Manager) InvalidateTokens(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := m.loadLocked(ctx)
	tokens.AccessToken = ""
	tokens.AccessTokenExpiresAt = 0
	tokens.Sessions = nil
	tokens.NextSessionIndex = 0
	return m.persistLocked(ctx, tokens)
}

// ResetAllTokens wipes persisted state entirely.
func (m *Manager) ResetAllTokens(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistLocked(ctx, &StoredTokens{})
}

// ProactiveRefresh is invoked by the scheduled job: it rotates a near-
// expiry refresh token and shrinks the pool if it has been idle.
func (m *Manager) ProactiveRefresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := m.loadLocked(ctx)
	if tokens.RefreshToken != "" && time.Since(time.UnixMilli(tokens.RefreshTokenRotatedAt)) >= refreshTokenAgeMax {
		if _, err := m.refreshAccessTokenLocked(ctx, tokens); err != nil {
			logging.Warn().Err(err).Msg("hytale proactive refresh token rotation failed")
		}
	}
	m.shrinkLocked(tokens)
	return m.persistLocked(ctx, tokens)
}
