// Package hytale implements the singleton OAuth token and game-session
// pool manager for the Hytale upstream. There is exactly one instance per
// process; all state mutation is serialized through a single critical
// section. A lock-free snapshot of the stored record is read only by
// PoolSize; GetSessionToken and every other operation, including the
// access-token freshness check, run inside the critical section.
package hytale

// SessionInfo is one pooled Hytale game session.
type SessionInfo struct {
	SessionToken     string `json:"session_token"`
	IdentityToken    string `json:"identity_token"`
	ExpiresAt        int64  `json:"expires_at"`                   // epoch ms
	RateLimitedUntil int64  `json:"rate_limited_until,omitempty"` // epoch ms; 0 means available
}

// valid reports whether the session still has enough runway to be minted
// from (expires more than 5 minutes from now).
func (s SessionInfo) valid(nowMS int64) bool {
	return s.ExpiresAt > nowMS+int64(5*60*1000)
}

// available reports whether the session is valid and not currently
// rate-limited.
func (s SessionInfo) available(nowMS int64) bool {
	return s.valid(nowMS) && s.RateLimitedUntil <= nowMS
}

// StoredTokens is the single persisted record backing the manager,
// addressed under the fixed key "tokens".
type StoredTokens struct {
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenRotatedAt int64  `json:"refresh_token_rotated_at"`

	AccessToken          string `json:"access_token"`
	AccessTokenExpiresAt int64  `json:"access_token_expires_at"`

	ProfileUUID string `json:"profile_uuid"`

	Sessions         []SessionInfo `json:"sessions"`
	NextSessionIndex int           `json:"next_session_index"`
	LastRateLimitSeen int64        `json:"last_rate_limit_seen"`

	// Legacy single-session fields, lifted into Sessions on first run and
	// then cleared.
	LegacySessionToken           string `json:"session_token,omitempty"`
	LegacyIdentityToken          string `json:"identity_token,omitempty"`
	LegacyIdentityTokenExpiresAt int64  `json:"identity_token_expires_at,omitempty"`
}

// clone returns a deep-enough copy for safe use as a fast-path snapshot:
// the Sessions slice is copied so a concurrent mutation under the lock
// doesn't race a lock-free reader.
func (t *StoredTokens) clone() *StoredTokens {
	if t == nil {
		return nil
	}
	c := *t
	c.Sessions = append([]SessionInfo(nil), t.Sessions...)
	return &c
}

// migrateLegacy lifts a pre-pool single-session record into Sessions, once.
func (t *StoredTokens) migrateLegacy() {
	if len(t.Sessions) > 0 || t.LegacySessionToken == "" {
		return
	}
	t.Sessions = []SessionInfo{{
		SessionToken:  t.LegacySessionToken,
		IdentityToken: t.LegacyIdentityToken,
		ExpiresAt:     t.LegacyIdentityTokenExpiresAt,
	}}
	t.LegacySessionToken = ""
	t.LegacyIdentityToken = ""
	t.LegacyIdentityTokenExpiresAt = 0
}
