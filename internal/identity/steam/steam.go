// Package steam implements the Steam platform pipeline: vanity name, any
// SteamID form, or Steam64 in, a uniform PlayerProfile out.
package steam

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"

	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/cache"
	"github.com/nodecraft/identity-gateway/internal/identity"
	"github.com/nodecraft/identity-gateway/internal/player"
	"github.com/nodecraft/identity-gateway/internal/transport"
)

// PersistentTTL and EdgeTTL are the fixed cache lifetimes for Steam entries.
const (
	PersistentTTL = 7 * 24 * time.Hour
	EdgeTTL       = 5 * 24 * time.Hour
)

// vanityTTL is how long a resolved vanity-name-to-SteamID mapping is cached.
// Vanity resolution is a separate upstream round trip from the profile
// fetch, so a repeated lookup of the same vanity name within this window
// skips it entirely.
const vanityTTL = 5 * time.Minute

const (
	resolveVanityURL   = "https://api.steampowered.com/ISteamUser/ResolveVanityURL/v1/"
	playerSummariesURL = "https://api.steampowered.com/ISteamUser/GetPlayerSummaries/v2/"
)

// Pipeline resolves Steam identifiers against the Steam Web API.
type Pipeline struct {
	transport   *transport.Client
	cache       *cache.Facade
	apiKeys     []string
	vanityCache *cache.MemoryStore
}

// New builds a Steam Pipeline. apiKeys holds up to four configured keys;
// one is picked uniformly at random per upstream call for crude key-level
// load balancing. The pipeline owns a short-TTL MemoryStore for vanity-name
// resolutions, independent of the persistent profile cache.
func New(t *transport.Client, c *cache.Facade, apiKeys []string) *Pipeline {
	return &Pipeline{transport: t, cache: c, apiKeys: apiKeys, vanityCache: cache.NewMemoryStore()}
}

// Close releases the pipeline's vanity-resolution cache. Safe to call once
// at process shutdown.
func (p *Pipeline) Close() {
	p.vanityCache.Close()
}

func (p *Pipeline) apiKey() string {
	if len(p.apiKeys) == 0 {
		return ""
	}
	return p.apiKeys[rand.IntN(len(p.apiKeys))]
}

// Lookup resolves q (a vanity name, SteamID2/3, or Steam64) to a
// PlayerProfile.
func (p *Pipeline) Lookup(ctx context.Context, q string) (*player.Profile, error) {
	cacheKey := identity.CacheKey("steam", "profile", q)
	var cached player.Profile
	if p.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	candidate := q
	if !identity.LooksLikeSteamID(q) {
		if resolved, err := p.resolveVanity(ctx, q); err == nil && resolved != "" {
			candidate = resolved
		}
	}

	sid := steamid.New(candidate)
	if !sid.Valid() {
		return nil, apperr.Fail(apperr.CodeSteamInvalidID, nil)
	}
	steam64 := sid.String()

	summary, err := p.fetchSummary(ctx, steam64)
	if err != nil {
		return nil, err
	}

	profile := normalizeProfile(sid, summary)

	p.cache.PutJSON(ctx, cacheKey, profile, PersistentTTL)
	if steam64Key := identity.CacheKey("steam", "profile", steam64); steam64Key != cacheKey {
		p.cache.PutJSON(ctx, steam64Key, profile, PersistentTTL)
	}

	return profile, nil
}

// resolveVanity resolves a vanity handle to a Steam64 id, swallowing any
// upstream failure (the caller falls back to treating q as the candidate
// directly). The resolution itself is cached for vanityTTL, keyed on the
// raw vanity string.
func (p *Pipeline) resolveVanity(ctx context.Context, vanity string) (string, error) {
	vanityKey := identity.CacheKey("steam", "vanity", vanity)
	if raw, ok, err := p.vanityCache.Get(ctx, vanityKey); err == nil && ok {
		return string(raw), nil
	}

	req := transport.Request{
		URL:   resolveVanityURL,
		Query: map[string]string{"key": p.apiKey(), "vanityurl": vanity},
	}
	opts := transport.Options{Prefix: "steam"}

	result, err := p.transport.Call(ctx, req, opts, transport.StageFetch)
	if err != nil {
		return "", err
	}

	response, _ := result.JSON["response"].(map[string]any)
	if success, _ := response["success"].(float64); success != 1 {
		return "", apperr.Fail(apperr.CodeSteamInvalidID, nil)
	}
	steamID, _ := response["steamid"].(string)
	if steamID != "" {
		_ = p.vanityCache.Put(ctx, vanityKey, []byte(steamID), vanityTTL)
	}
	return steamID, nil
}

func (p *Pipeline) fetchSummary(ctx context.Context, steam64 string) (map[string]any, error) {
	req := transport.Request{
		URL:   playerSummariesURL,
		Query: map[string]string{"key": p.apiKey(), "steamids": steam64},
	}
	opts := transport.Options{Prefix: "steam"}

	result, err := p.transport.Call(ctx, req, opts, transport.StageFetch)
	if err != nil {
		return nil, err
	}

	response, _ := result.JSON["response"].(map[string]any)
	players, _ := response["players"].([]any)
	if len(players) == 0 {
		return nil, apperr.Fail(apperr.CodeSteamInvalidID, nil)
	}
	summary, _ := players[0].(map[string]any)
	return summary, nil
}

// normalizeProfile merges the SteamID family's textual encodings into meta
// alongside the raw player summary. The summary is merged after the derived
// ids, so a summary field wins over a derived one with the same key.
func normalizeProfile(sid steamid.SteamID, summary map[string]any) *player.Profile {
	meta := map[string]any{
		"steam2id":     sid.Steam(false),
		"steam2id_new": sid.Steam(true),
		"steam3id":     sid.Steam3(),
		"steam64id":    sid.String(),
	}
	for k, v := range summary {
		meta[k] = v
	}

	profile := &player.Profile{
		ID:       sid.String(),
		RawID:    sid.String(),
		Meta:     meta,
		CachedAt: time.Now().Unix(),
	}
	if name, ok := summary["personaname"].(string); ok {
		profile.Username = name
	}
	if avatar, ok := summary["avatarfull"].(string); ok {
		profile.Avatar = avatar
	}
	return profile
}
