// Package hytale implements the Hytale platform pipeline: identifier
// validation, session-token acquisition from the singleton manager, the
// transport fallback chain, and normalization into a uniform PlayerProfile.
package hytale

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/cache"
	hytalesession "github.com/nodecraft/identity-gateway/internal/hytale"
	"github.com/nodecraft/identity-gateway/internal/identity"
	"github.com/nodecraft/identity-gateway/internal/player"
	"github.com/nodecraft/identity-gateway/internal/transport"
)

// PersistentTTL and EdgeTTL are the fixed cache lifetimes for Hytale
// entries.
const (
	PersistentTTL = 7 * 24 * time.Hour
	EdgeTTL       = 5 * 24 * time.Hour
)

const (
	profileByUUIDURL     = "https://account-data.hytale.com/player/profile/uuid/%s"
	profileByUsernameURL = "https://account-data.hytale.com/player/profile/username/%s"
)

// Pipeline resolves Hytale identifiers using a session token minted by the
// process-wide token/session manager.
type Pipeline struct {
	transport *transport.Client
	cache     *cache.Facade
	manager   *hytalesession.Manager
}

// New builds a Hytale Pipeline.
func New(t *transport.Client, c *cache.Facade, m *hytalesession.Manager) *Pipeline {
	return &Pipeline{transport: t, cache: c, manager: m}
}

// Lookup resolves q (a username or UUID) to a PlayerProfile.
func (p *Pipeline) Lookup(ctx context.Context, q string) (*player.Profile, error) {
	role, err := identity.CanonicalizeHytale(q)
	if err != nil {
		return nil, err
	}

	cacheKey := identity.CacheKey("hytale", string(role), q)
	var cached player.Profile
	if p.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var url string
	if role == identity.HytaleRoleUUID {
		url = fmt.Sprintf(profileByUUIDURL, strings.ToLower(q))
	} else {
		url = fmt.Sprintf(profileByUsernameURL, q)
	}

	body, err := p.fetchProfile(ctx, url)
	if err != nil {
		return nil, err
	}

	profile, err := normalizeProfile(body)
	if err != nil {
		return nil, err
	}

	p.cache.PutJSON(ctx, cacheKey, profile, PersistentTTL)
	if uuidKey := identity.CacheKey("hytale", "uuid", profile.ID); uuidKey != cacheKey {
		p.cache.PutJSON(ctx, uuidKey, profile, PersistentTTL)
	}
	if usernameKey := identity.CacheKey("hytale", "username", profile.Username); usernameKey != cacheKey && profile.Username != "" {
		p.cache.PutJSON(ctx, usernameKey, profile, PersistentTTL)
	}

	return profile, nil
}

// fetchProfile runs the raw-TLS -> Fetch -> proxy fallback chain against
// url, retrying exactly once with a freshly invalidated session on a 401 or
// 403, and reporting a 429 back to the manager so it can cool the session
// down before the next caller picks it up.
func (p *Pipeline) fetchProfile(ctx context.Context, url string) (map[string]any, error) {
	body, retryable, err := p.attempt(ctx, url, false)
	if err == nil {
		return body, nil
	}
	if !retryable {
		return nil, err
	}
	body, _, err = p.attempt(ctx, url, true)
	return body, err
}

// attempt performs one full raw-TLS/Fetch/proxy pass with a session token,
// reporting whether the caller should retry the whole pass once more.
func (p *Pipeline) attempt(ctx context.Context, url string, forceFreshSession bool) (body map[string]any, retryable bool, err error) {
	token, err := p.manager.GetSessionToken(ctx, forceFreshSession)
	if err != nil {
		return nil, false, err
	}

	req := transport.Request{URL: url, Headers: map[string]string{"Authorization": "Bearer " + token}}
	opts := transport.Options{
		Prefix:              "hytale",
		Timeout:             transport.HytaleTimeout,
		PassthroughStatuses: []int{401, 403, 404},
	}

	result, err := p.transport.Call(ctx, req, opts, transport.StageRawTLS, transport.StageFetch, transport.StageProxy)
	if err != nil {
		if strings.HasSuffix(errCode(err), "rate_limited") {
			_ = p.manager.ReportRateLimit(ctx, token)
		}
		return nil, false, err
	}

	switch result.Status {
	case 401, 403:
		if forceFreshSession {
			return nil, false, apperr.Internal(apperr.CodeHytaleAuthFailure, map[string]any{"status": result.Status})
		}
		_ = p.manager.InvalidateTokens(ctx)
		return nil, true, apperr.Internal(apperr.CodeHytaleAuthFailure, map[string]any{"status": result.Status})
	case 404:
		return nil, false, apperr.Fail(apperr.CodeHytaleNotFound, nil)
	default:
		return result.JSON, false, nil
	}
}

func errCode(err error) string {
	appErr, ok := apperr.As(err)
	if !ok {
		return ""
	}
	return string(appErr.Code)
}

// normalizeProfile builds a PlayerProfile from the Hytale profile document.
// Skin data, when present, is forwarded verbatim under meta["skin"] rather
// than decoded, since Hytale's skin payload shape is opaque to the gateway.
func normalizeProfile(body map[string]any) (*player.Profile, error) {
	uuid, _ := body["uuid"].(string)
	username, _ := body["username"].(string)
	if uuid == "" || username == "" {
		return nil, apperr.Internal(apperr.CodeHytaleNotFound, map[string]any{"reason": "incomplete profile document"})
	}

	meta := map[string]any{}
	for k, v := range body {
		switch k {
		case "uuid", "username":
			// surfaced as ID/Username, not duplicated in meta
		default:
			meta[k] = v
		}
	}

	profile := &player.Profile{
		ID:       uuid,
		RawID:    identity.StripDashes(uuid),
		Username: username,
		Avatar:   "https://crafthead.net/hytale/avatar/" + uuid,
		Meta:     meta,
		CachedAt: time.Now().Unix(),
	}
	if skin, ok := body["skin"]; ok {
		profile.Meta["skin"] = skin
	} else {
		profile.Meta["skin"] = nil
	}
	return profile, nil
}
