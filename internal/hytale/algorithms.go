package hytale

import (
	"context"
	"time"

	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/metrics"
	"github.com/nodecraft/identity-gateway/internal/transport"
)

// accessTokenLocked returns a valid access token, refreshing it if
// necessary. Callers must hold mu.
func (m *Manager) accessTokenLocked(ctx context.Context, tokens *StoredTokens) (string, error) {
	if tokens.AccessToken != "" && nowMS()+5*60*1000 < tokens.AccessTokenExpiresAt {
		return tokens.AccessToken, nil
	}
	return m.refreshAccessTokenLocked(ctx, tokens)
}

// refreshAccessTokenLocked unconditionally exchanges the refresh token for
// a new access token. Callers must hold mu.
func (m *Manager) refreshAccessTokenLocked(ctx context.Context, tokens *StoredTokens) (string, error) {
	refreshToken := tokens.RefreshToken
	usingStored := refreshToken != ""
	if !usingStored {
		refreshToken = m.cfg.RefreshToken
	}
	if refreshToken == "" {
		return "", apperr.Internal(apperr.CodeHytaleNoRefreshToken, nil)
	}

	req := transport.Request{
		URL:    oauthTokenURL,
		Method: "POST",
		Query: map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		},
	}
	result, err := m.transport.Call(ctx, req, transport.Options{Prefix: "hytale", Timeout: transport.HytaleTimeout}, transport.StageFetch)
	if err != nil {
		if usingStored {
			// The stored refresh token is no longer accepted; clear it so
			// the next attempt falls back to the env-configured one.
			tokens.RefreshToken = ""
		}
		metrics.HytaleTokenRefreshTotal.WithLabelValues("failure").Inc()
		return "", apperr.Internal(apperr.CodeHytaleAuthFailure, map[string]any{"isAuthError": true})
	}

	accessToken, _ := result.JSON["access_token"].(string)
	expiresIn, _ := result.JSON["expires_in"].(float64)
	tokens.AccessToken = accessToken
	tokens.AccessTokenExpiresAt = nowMS() + int64(expiresIn*1000)

	if rotated, ok := result.JSON["refresh_token"].(string); ok && rotated != "" && rotated != refreshToken {
		tokens.RefreshToken = rotated
		tokens.RefreshTokenRotatedAt = nowMS()
	} else if !usingStored {
		tokens.RefreshToken = refreshToken
	}

	metrics.HytaleTokenRefreshTotal.WithLabelValues("success").Inc()
	return accessToken, nil
}

// profileUUIDLocked resolves the profile UUID sessions are minted under.
func (m *Manager) profileUUIDLocked(ctx context.Context, tokens *StoredTokens, accessToken string) (string, error) {
	if m.cfg.ProfileUUID != "" {
		return m.cfg.ProfileUUID, nil
	}
	if tokens.ProfileUUID != "" {
		return tokens.ProfileUUID, nil
	}

	req := transport.Request{
		URL:     getProfilesURL,
		Headers: map[string]string{"Authorization": "Bearer " + accessToken},
	}
	result, err := m.transport.Call(ctx, req, transport.Options{Prefix: "hytale", Timeout: transport.HytaleTimeout}, transport.StageFetch)
	if err != nil {
		return "", err
	}
	profiles, _ := result.JSON["profiles"].([]any)
	if len(profiles) == 0 {
		return "", apperr.Internal(apperr.CodeHytaleNoProfiles, nil)
	}
	first, _ := profiles[0].(map[string]any)
	uuid, _ := first["uuid"].(string)
	tokens.ProfileUUID = uuid
	return uuid, nil
}

// sessionRefreshLocked attempts to refresh an expiring session in place;
// it returns nil rather than an error on any upstream failure, so
// callers fall back to minting a new one.
func (m *Manager) sessionRefreshLocked(ctx context.Context, session SessionInfo) *SessionInfo {
	req := transport.Request{
		URL:     sessionRefreshURL,
		Method:  "POST",
		Headers: map[string]string{"Authorization": "Bearer " + session.SessionToken},
	}
	result, err := m.transport.Call(ctx, req, transport.Options{Prefix: "hytale", Timeout: transport.HytaleTimeout}, transport.StageFetch)
	if err != nil {
		return nil
	}
	newSessionToken, _ := result.JSON["session"].(string)
	identityToken, _ := result.JSON["identity"].(string)
	if newSessionToken == "" {
		return nil
	}
	expiresAt := nowMS() + int64(time.Hour/time.Millisecond)
	if raw, ok := result.JSON["expires_at"].(float64); ok {
		expiresAt = int64(raw)
	}
	return &SessionInfo{SessionToken: newSessionToken, IdentityToken: identityToken, ExpiresAt: expiresAt}
}

// sessionCreateLocked mints a brand new game session against profileUUID.
func (m *Manager) sessionCreateLocked(ctx context.Context, accessToken, profileUUID string) (*SessionInfo, error) {
	req := transport.Request{
		URL:     sessionCreateURL,
		Method:  "POST",
		Headers: map[string]string{"Authorization": "Bearer " + accessToken},
		Query:   map[string]string{"uuid": profileUUID},
	}
	result, err := m.transport.Call(ctx, req, transport.Options{Prefix: "hytale", Timeout: transport.HytaleTimeout}, transport.StageFetch)
	if err != nil {
		return nil, err
	}

	sessionToken, _ := result.JSON["sessionToken"].(string)
	identityToken, _ := result.JSON["identityToken"].(string)
	if sessionToken == "" || identityToken == "" {
		return nil, apperr.Internal(apperr.CodeHytaleSessionCreationFailed, nil)
	}
	expiresAt := nowMS() + int64(time.Hour/time.Millisecond)
	if raw, ok := result.JSON["expires_at"].(float64); ok {
		expiresAt = int64(raw)
	}
	return &SessionInfo{SessionToken: sessionToken, IdentityToken: identityToken, ExpiresAt: expiresAt}, nil
}

// ensureMinPoolLocked tops the pool back up to MinPool, first by refreshing
// expired sessions in place and then by minting new ones.
func (m *Manager) ensureMinPoolLocked(ctx context.Context, tokens *StoredTokens) error {
	minPool := m.minPool()
	now := nowMS()

	var valid, expired []SessionInfo
	for _, s := range tokens.Sessions {
		if s.valid(now) {
			valid = append(valid, s)
		} else {
			expired = append(expired, s)
		}
	}

	for _, s := range expired {
		if len(valid) >= minPool {
			break
		}
		if refreshed := m.sessionRefreshLocked(ctx, s); refreshed != nil {
			valid = append(valid, *refreshed)
		}
	}

	accessToken, err := m.accessTokenLocked(ctx, tokens)
	if err != nil {
		return err
	}
	profileUUID, err := m.profileUUIDLocked(ctx, tokens, accessToken)
	if err != nil {
		return err
	}

	for len(valid) < minPool {
		created, err := m.sessionCreateLocked(ctx, accessToken, profileUUID)
		if err != nil {
			if len(valid) == 0 {
				return err
			}
			break
		}
		valid = append(valid, *created)
	}

	tokens.Sessions = valid
	if tokens.NextSessionIndex >= len(tokens.Sessions) {
		tokens.NextSessionIndex = 0
	}
	return nil
}

// nextSessionLocked scans the pool starting at NextSessionIndex for the
// first available session, advancing the cursor past it.
func (m *Manager) nextSessionLocked(ctx context.Context, tokens *StoredTokens) (*SessionInfo, error) {
	now := nowMS()
	n := len(tokens.Sessions)
	if n == 0 {
		return nil, apperr.Internal(apperr.CodeHytaleRateLimit, nil)
	}

	start := tokens.NextSessionIndex % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if tokens.Sessions[idx].available(now) {
			tokens.NextSessionIndex = (idx + 1) % n
			session := tokens.Sessions[idx]
			return &session, nil
		}
	}

	if expanded, err := m.expandLocked(ctx, tokens); err == nil && expanded != nil {
		return expanded, nil
	}
	return nil, apperr.Internal(apperr.CodeHytaleRateLimit, nil)
}

// expandLocked mints one additional session and appends it if the pool is
// below MaxPool.
func (m *Manager) expandLocked(ctx context.Context, tokens *StoredTokens) (*SessionInfo, error) {
	if len(tokens.Sessions) >= m.maxPool() {
		return nil, nil
	}
	accessToken, err := m.accessTokenLocked(ctx, tokens)
	if err != nil {
		return nil, err
	}
	profileUUID, err := m.profileUUIDLocked(ctx, tokens, accessToken)
	if err != nil {
		return nil, err
	}
	created, err := m.sessionCreateLocked(ctx, accessToken, profileUUID)
	if err != nil {
		return nil, err
	}
	tokens.Sessions = append(tokens.Sessions, *created)
	tokens.NextSessionIndex = len(tokens.Sessions) - 1
	return created, nil
}

// shrinkLocked truncates the valid portion of the pool back to MinPool if
// the pool has been idle (no rate limit observed) for shrinkIdleWindow.
func (m *Manager) shrinkLocked(tokens *StoredTokens) {
	if tokens.LastRateLimitSeen == 0 {
		return
	}
	if time.Since(time.UnixMilli(tokens.LastRateLimitSeen)) < shrinkIdleWindow {
		return
	}
	minPool := m.minPool()
	if len(tokens.Sessions) > minPool {
		tokens.Sessions = tokens.Sessions[:minPool]
		tokens.NextSessionIndex = 0
	}
}

func (m *Manager) minPool() int {
	if m.cfg.MinPool > 0 {
		return m.cfg.MinPool
	}
	return 1
}

func (m *Manager) maxPool() int {
	if m.cfg.MaxPool > 0 {
		return m.cfg.MaxPool
	}
	return 10
}
