// Package xbox implements the Xbox Live platform pipeline, proxied through
// a third-party Xbox API provider that authenticates with a single static
// key.
package xbox

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/cache"
	"github.com/nodecraft/identity-gateway/internal/identity"
	"github.com/nodecraft/identity-gateway/internal/player"
	"github.com/nodecraft/identity-gateway/internal/transport"
)

// PersistentTTL, EdgeTTL, and NegativeTTL are the fixed cache lifetimes for
// Xbox entries. Xbox is the only platform with a negative cache.
const (
	PersistentTTL = 7 * 24 * time.Hour
	EdgeTTL       = 5 * 24 * time.Hour
	NegativeTTL   = time.Hour
)

const (
	accountURL    = "https://xbl-api.nodecraft.com/account/%s"
	friendSearch  = "https://xbl-api.nodecraft.com/friends/search"
)

// Pipeline resolves Xbox Live identifiers through the configured provider.
type Pipeline struct {
	transport *transport.Client
	cache     *cache.Facade
	apiKey    string
}

// New builds an Xbox Pipeline.
func New(t *transport.Client, c *cache.Facade, apiKey string) *Pipeline {
	return &Pipeline{transport: t, cache: c, apiKey: apiKey}
}

// Lookup resolves q (a gamertag or XUID) to a PlayerProfile.
func (p *Pipeline) Lookup(ctx context.Context, q string) (*player.Profile, error) {
	cacheKey := identity.CacheKey("xbox", "profile", q)

	if p.cache.IsNegative(ctx, cacheKey) {
		return nil, apperr.Fail(apperr.CodeXboxNotFound, nil)
	}
	var cached player.Profile
	if p.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	role := identity.CanonicalizeXbox(q)

	req := transport.Request{Headers: map[string]string{"X-Authorization": p.apiKey}}
	if role == identity.XboxRoleXUID {
		req.URL = fmtAccountURL(q)
	} else {
		req.URL = friendSearch
		req.Query = map[string]string{"gt": q}
	}

	opts := transport.Options{
		Prefix:                  "xbox",
		PassthroughStatuses:     []int{200},
		NonPassthroughErrorCode: apperr.CodeXboxBadResponseCode,
	}

	result, err := p.transport.Call(ctx, req, opts, transport.StageFetch)
	if err != nil {
		return nil, err
	}

	if code, ok := result.JSON["code"]; ok {
		description, _ := result.JSON["description"].(string)
		codeNum, _ := toFloat(code)
		if codeNum == 2 || codeNum == 28 {
			p.cache.PutNegative(ctx, cacheKey, NegativeTTL)
			return nil, apperr.Fail(apperr.CodeXboxNotFound, nil)
		}
		return nil, apperr.Internal(apperr.CodeXboxBadResponse, map[string]any{"error_code": codeNum, "description": description})
	}

	profile, err := normalizeProfile(result.JSON)
	if err != nil {
		return nil, err
	}

	p.cache.PutJSON(ctx, cacheKey, profile, PersistentTTL)
	if xuidKey := identity.CacheKey("xbox", "profile", profile.ID); xuidKey != cacheKey {
		p.cache.PutJSON(ctx, xuidKey, profile, PersistentTTL)
	}

	return profile, nil
}

func fmtAccountURL(xuid string) string {
	return strings.Replace(accountURL, "%s", xuid, 1)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// normalizeProfile walks profileUsers[0].settings, applying the username
// and avatar fallback chains.
func normalizeProfile(body map[string]any) (*player.Profile, error) {
	profileUsers, _ := body["profileUsers"].([]any)
	if len(profileUsers) == 0 {
		return nil, apperr.Internal(apperr.CodeXboxBadResponse, map[string]any{"reason": "no profileUsers"})
	}
	user, _ := profileUsers[0].(map[string]any)
	xuid, _ := user["id"].(string)
	settingsRaw, _ := user["settings"].([]any)

	meta := map[string]any{}
	settings := map[string]string{}
	for _, raw := range settingsRaw {
		s, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := s["id"].(string)
		value, _ := s["value"].(string)
		settings[id] = value
	}

	var uniqueModernGamertag, modernGamertag, modernGamertagSuffix string
	for id, value := range settings {
		switch id {
		case "Gamertag", "GameDisplayPicRaw", "UniqueModernGamertag", "ModernGamertag", "ModernGamertagSuffix":
			// handled explicitly below
		default:
			meta[camelCase(id)] = value
		}
		switch id {
		case "UniqueModernGamertag":
			uniqueModernGamertag = value
		case "ModernGamertag":
			modernGamertag = value
		case "ModernGamertagSuffix":
			modernGamertagSuffix = value
		}
	}

	username := firstNonEmpty(settings["Gamertag"], uniqueModernGamertag, modernGamertag, stringMeta(meta, "realName"))
	if username == "" {
		return nil, apperr.Internal(apperr.CodeXboxBadResponse, map[string]any{"reason": "no username"})
	}

	avatar := stripPadding(settings["GameDisplayPicRaw"])
	if avatar == "" {
		avatar = "https://avatar-ssl.xboxlive.com/avatar/" + username + "/avatarpic-l.png"
	}

	profile := &player.Profile{
		ID:       xuid,
		RawID:    xuid,
		Username: username,
		Avatar:   avatar,
		Meta:     meta,
		CachedAt: time.Now().Unix(),
	}
	if uniqueModernGamertag != "" {
		profile.Meta["uniqueModernGamertag"] = uniqueModernGamertag
	}
	if modernGamertag != "" {
		profile.Meta["modernGamertag"] = modernGamertag
	}
	if modernGamertagSuffix != "" {
		profile.Meta["modernGamertagSuffix"] = modernGamertagSuffix
	}
	return profile, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func stringMeta(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

// stripPadding removes the mode=Padding query parameter and forces h/w to
// 180, matching GameDisplayPicRaw's avatar convention.
func stripPadding(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Del("mode")
	q.Set("h", "180")
	q.Set("w", "180")
	u.RawQuery = q.Encode()
	return u.String()
}

// camelCase lowercases the first rune of an upstream PascalCase setting id,
// matching the convention the rest of meta's keys follow.
func camelCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
