package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeMinecraft(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantKey  string
		wantRole MinecraftRole
		wantErr  bool
	}{
		{"raw uuid lowercased", "EF6134805B6244E4A4467FBE85D65513", "ef6134805b6244e4a4467fbe85d65513", MinecraftRoleProfile, false},
		{"dashed uuid stripped", "ef613480-5b62-44e4-a446-7fbe85d65513", "ef6134805b6244e4a4467fbe85d65513", MinecraftRoleProfile, false},
		{"username", "CherryJimbo", "cherryjimbo", MinecraftRoleUsername, false},
		{"invalid email-shaped", "player@example.com", "", "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			key, role, err := CanonicalizeMinecraft(c.input)
			if c.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.wantKey, key)
			assert.Equal(t, c.wantRole, role)
		})
	}
}

func TestFormatUUIDRoundTrip(t *testing.T) {
	raw := "ef6134805b6244e4a4467fbe85d65513"
	dashed := FormatUUID(raw)
	assert.Equal(t, "ef613480-5b62-44e4-a446-7fbe85d65513", dashed)
	assert.Equal(t, raw, StripDashes(dashed))
}

func TestFormatUUIDWrongLength(t *testing.T) {
	assert.Equal(t, "short", FormatUUID("short"))
}

func TestLooksLikeSteamID(t *testing.T) {
	assert.True(t, LooksLikeSteamID("STEAM_0:0:43716939"))
	assert.True(t, LooksLikeSteamID("76561198047699606"))
	assert.True(t, LooksLikeSteamID("U:1:87433878"))
	assert.True(t, LooksLikeSteamID("[U:1:87433878]"))
	assert.False(t, LooksLikeSteamID("someVanityName"))
}

func TestCanonicalizeXbox(t *testing.T) {
	assert.Equal(t, XboxRoleXUID, CanonicalizeXbox("2533274818672320"))
	assert.Equal(t, XboxRoleGamertag, CanonicalizeXbox("Jimboodude"))
}

func TestCanonicalizeHytale(t *testing.T) {
	role, err := CanonicalizeHytale("ef613480-5b62-44e4-a446-7fbe85d65513")
	require.NoError(t, err)
	assert.Equal(t, HytaleRoleUUID, role)

	role, err = CanonicalizeHytale("ef6134805b6244e4a4467fbe85d65513")
	require.NoError(t, err)
	assert.Equal(t, HytaleRoleUUID, role)

	role, err = CanonicalizeHytale("Jimboodude")
	require.NoError(t, err)
	assert.Equal(t, HytaleRoleUsername, role)

	_, err = CanonicalizeHytale("x")
	assert.Error(t, err)
}

func TestCacheKeyLowercasesIdentifier(t *testing.T) {
	assert.Equal(t, "minecraft-username-cherryjimbo", CacheKey("minecraft", "username", "CherryJimbo"))
}
