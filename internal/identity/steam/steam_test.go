package steam

import (
	"context"
	"testing"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecraft/identity-gateway/internal/identity"
)

func TestNormalizeProfile(t *testing.T) {
	sid := steamid.New("76561198047699606")
	summary := map[string]any{
		"personaname": "CherryJimbo",
		"avatarfull":  "https://avatars.steamstatic.com/full.jpg",
	}

	profile := normalizeProfile(sid, summary)

	assert.Equal(t, "76561198047699606", profile.ID)
	assert.Equal(t, "76561198047699606", profile.RawID)
	assert.Equal(t, "CherryJimbo", profile.Username)
	assert.Equal(t, "https://avatars.steamstatic.com/full.jpg", profile.Avatar)
	assert.Equal(t, "76561198047699606", profile.Meta["steam64id"])
	assert.NotEmpty(t, profile.Meta["steam2id"])
	assert.NotEmpty(t, profile.Meta["steam3id"])
	assert.Equal(t, "CherryJimbo", profile.Meta["personaname"])
}

func TestApiKeyEmptyWhenUnconfigured(t *testing.T) {
	p := New(nil, nil, nil)
	defer p.Close()
	assert.Equal(t, "", p.apiKey())
}

func TestApiKeyPicksConfigured(t *testing.T) {
	p := New(nil, nil, []string{"only-key"})
	defer p.Close()
	assert.Equal(t, "only-key", p.apiKey())
}

func TestResolveVanityServesFromCacheWithoutCallingTransport(t *testing.T) {
	p := New(nil, nil, nil)
	defer p.Close()

	ctx := context.Background()
	vanityKey := identity.CacheKey("steam", "vanity", "CherryJimbo")
	require.NoError(t, p.vanityCache.Put(ctx, vanityKey, []byte("76561198047699606"), time.Minute))

	// p.transport is nil; resolveVanity would panic if it fell through to
	// the upstream call instead of serving this cached entry.
	resolved, err := p.resolveVanity(ctx, "CherryJimbo")
	require.NoError(t, err)
	assert.Equal(t, "76561198047699606", resolved)
}
