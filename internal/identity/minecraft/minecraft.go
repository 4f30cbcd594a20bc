// Package minecraft implements the Minecraft/Mojang platform pipeline:
// username or UUID in, a uniform PlayerProfile out, consulting the cache
// first and falling back across transports on upstream trouble.
package minecraft

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/cache"
	"github.com/nodecraft/identity-gateway/internal/identity"
	"github.com/nodecraft/identity-gateway/internal/player"
	"github.com/nodecraft/identity-gateway/internal/transport"
)

// PersistentTTL and EdgeTTL are the fixed cache lifetimes for Minecraft
// entries.
const (
	PersistentTTL = 7 * 24 * time.Hour
	EdgeTTL       = 5 * 24 * time.Hour
)

const (
	lookupByNameURL    = "https://api.minecraftservices.com/minecraft/profile/lookup/name/%s"
	profileByUUIDURL   = "https://sessionserver.mojang.com/session/minecraft/profile/%s"
	vendorLookupURL    = "https://api.nodecraft.com/minecraft/profile/lookup/name/%s"
	vendorProfileURL   = "https://api.nodecraft.com/session/minecraft/profile/%s"
	notFoundBodyNeedle = "Couldn't find any profile with name"
)

// Pipeline resolves Minecraft identifiers against Mojang's identity
// services.
type Pipeline struct {
	transport    *transport.Client
	cache        *cache.Facade
	vendorAPIKey string
}

// New builds a Minecraft Pipeline.
func New(t *transport.Client, c *cache.Facade, vendorAPIKey string) *Pipeline {
	return &Pipeline{transport: t, cache: c, vendorAPIKey: vendorAPIKey}
}

// Lookup resolves q (a username, dashed UUID, or raw UUID) to a
// PlayerProfile.
func (p *Pipeline) Lookup(ctx context.Context, q string) (*player.Profile, error) {
	key, role, err := identity.CanonicalizeMinecraft(q)
	if err != nil {
		return nil, err
	}

	cacheKey := identity.CacheKey("minecraft", string(role), key)
	var cached player.Profile
	if p.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var rawUUID string
	if role == identity.MinecraftRoleUsername {
		rawUUID, err = p.lookupUUIDByName(ctx, key)
		if err != nil {
			return nil, err
		}
	} else {
		rawUUID = key
	}

	profileBody, err := p.fetchProfile(ctx, rawUUID)
	if err != nil {
		return nil, err
	}

	profile := normalizeProfile(rawUUID, profileBody)

	p.cache.PutJSON(ctx, identity.CacheKey("minecraft", "username", strings.ToLower(profile.Username)), profile, PersistentTTL)
	p.cache.PutJSON(ctx, identity.CacheKey("minecraft", "profile", profile.RawID), profile, PersistentTTL)

	return profile, nil
}

// lookupUUIDByName resolves a username to its raw UUID through the
// name-lookup endpoint, following the raw-TLS -> Fetch -> proxy -> vendor
// fallback chain.
func (p *Pipeline) lookupUUIDByName(ctx context.Context, name string) (string, error) {
	url := fmt.Sprintf(lookupByNameURL, name)
	opts := transport.Options{
		Prefix:              "minecraft",
		PassthroughStatuses: []int{204, 404},
	}

	result, err := p.resolveWithFallback(ctx, url, opts, func() (transport.Request, transport.Options, bool) {
		if p.vendorAPIKey == "" {
			return transport.Request{}, transport.Options{}, false
		}
		return transport.Request{
			URL:     fmt.Sprintf(vendorLookupURL, name),
			Headers: map[string]string{"Authorization": "Bearer " + p.vendorAPIKey},
		}, opts, true
	}, url+"?date="+strconv.FormatInt(nowMillis(), 10))
	if err != nil {
		return "", err
	}

	if result.Status == 204 || (result.Status == 404 && strings.Contains(string(result.Body), notFoundBodyNeedle)) {
		return "", apperr.Fail(apperr.CodeMinecraftInvalidUsername, nil)
	}
	if result.Status != 200 {
		return "", apperr.Internal("minecraft.api_failure", map[string]any{"status": result.Status})
	}

	id, _ := result.JSON["id"].(string)
	if id == "" {
		return "", apperr.Fail(apperr.CodeMinecraftInvalidUsername, nil)
	}
	return strings.ToLower(id), nil
}

// fetchProfile fetches the full profile document for rawUUID.
func (p *Pipeline) fetchProfile(ctx context.Context, rawUUID string) (map[string]any, error) {
	url := fmt.Sprintf(profileByUUIDURL, rawUUID) + "?unsigned=false"
	opts := transport.Options{Prefix: "minecraft", PassthroughStatuses: []int{404}}

	result, err := p.resolveWithFallback(ctx, url, opts, func() (transport.Request, transport.Options, bool) {
		if p.vendorAPIKey == "" {
			return transport.Request{}, transport.Options{}, false
		}
		return transport.Request{
			URL:     fmt.Sprintf(vendorProfileURL, rawUUID) + "?unsigned=false",
			Headers: map[string]string{"Authorization": "Bearer " + p.vendorAPIKey},
		}, opts, true
	}, url)
	if err != nil {
		return nil, err
	}
	if result.Status != 200 {
		return nil, apperr.Fail(apperr.CodeMinecraftInvalidUsername, nil)
	}
	return result.JSON, nil
}

// resolveWithFallback runs the shared Minecraft transport chain: raw-TLS,
// then Fetch on any non-domain error, then the off-box proxy on a 429/403
// from Fetch, then the vendor API (if vendorReq returns ok) on a 429 from
// the proxy.
func (p *Pipeline) resolveWithFallback(ctx context.Context, url string, opts transport.Options, vendorReq func() (transport.Request, transport.Options, bool), rawTLSURL string) (*transport.Result, error) {
	req := transport.Request{URL: rawTLSURL, Headers: map[string]string{"Accept": "application/json"}}

	result, err := p.transport.Call(ctx, req, opts, transport.StageRawTLS)
	if err == nil || isPassthroughResult(result) {
		return result, nil
	}

	fetchReq := transport.Request{URL: url, Headers: map[string]string{"Accept": "application/json"}}
	result, err = p.transport.Call(ctx, fetchReq, opts, transport.StageFetch)
	if err == nil || isPassthroughResult(result) {
		return result, nil
	}
	if !isRateLimitOrForbidden(err) {
		return result, err
	}

	result, err = p.transport.Call(ctx, fetchReq, opts, transport.StageProxy)
	if err == nil || isPassthroughResult(result) {
		return result, nil
	}
	if !isRateLimit(err) {
		return result, err
	}

	vReq, vOpts, ok := vendorReq()
	if !ok {
		return result, err
	}
	return p.transport.Call(ctx, vReq, vOpts, transport.StageFetch)
}

func isPassthroughResult(result *transport.Result) bool {
	return result != nil && (result.Status == 204 || result.Status == 404)
}

func isRateLimitOrForbidden(err error) bool {
	appErr, ok := apperr.As(err)
	if !ok {
		return false
	}
	if status, ok := appErr.Data["status"].(int); ok && status == 403 {
		return true
	}
	return strings.HasSuffix(string(appErr.Code), "rate_limited")
}

func isRateLimit(err error) bool {
	appErr, ok := apperr.As(err)
	return ok && strings.HasSuffix(string(appErr.Code), "rate_limited")
}

// normalizeProfile builds a PlayerProfile from the Mojang profile document.
func normalizeProfile(rawUUID string, body map[string]any) *player.Profile {
	profile := &player.Profile{
		ID:       identity.FormatUUID(rawUUID),
		RawID:    rawUUID,
		Avatar:   "https://crafthead.net/avatar/" + rawUUID,
		Meta:     map[string]any{"name_history": []any{}},
		CachedAt: nowMillis() / 1000,
	}
	if name, ok := body["name"].(string); ok {
		profile.Username = name
	}

	properties, _ := body["properties"].([]any)
	for _, raw := range properties {
		propMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := propMap["name"].(string)
		value, _ := propMap["value"].(string)
		signature, _ := propMap["signature"].(string)
		profile.Properties = append(profile.Properties, player.Property{Name: name, Value: value, Signature: signature})

		if name == "textures" && profile.SkinTexture == "" {
			if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
				var textures texturesPayload
				if json.Unmarshal(decoded, &textures) == nil {
					profile.SkinTexture = textures.Textures.Skin.URL
					profile.CapeTexture = textures.Textures.Cape.URL
				}
			}
		}
	}

	return profile
}

type texturesPayload struct {
	Textures struct {
		Skin struct {
			URL string `json:"url"`
		} `json:"SKIN"`
		Cape struct {
			URL string `json:"url"`
		} `json:"CAPE"`
	} `json:"textures"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
