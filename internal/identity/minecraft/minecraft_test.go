package minecraft

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/transport"
)

func TestNormalizeProfileBasic(t *testing.T) {
	body := map[string]any{"name": "CherryJimbo"}
	profile := normalizeProfile("ef6134805b6244e4a4467fbe85d65513", body)

	assert.Equal(t, "ef613480-5b62-44e4-a446-7fbe85d65513", profile.ID)
	assert.Equal(t, "ef6134805b6244e4a4467fbe85d65513", profile.RawID)
	assert.Equal(t, "CherryJimbo", profile.Username)
	assert.Equal(t, "https://crafthead.net/avatar/ef6134805b6244e4a4467fbe85d65513", profile.Avatar)
}

func TestNormalizeProfileDecodesTextures(t *testing.T) {
	texturesJSON := `{"textures":{"SKIN":{"url":"https://textures.minecraft.net/texture/skin"},"CAPE":{"url":"https://textures.minecraft.net/texture/cape"}}}`
	encoded := base64.StdEncoding.EncodeToString([]byte(texturesJSON))

	body := map[string]any{
		"name": "CherryJimbo",
		"properties": []any{
			map[string]any{"name": "textures", "value": encoded, "signature": "sig"},
		},
	}
	profile := normalizeProfile("ef6134805b6244e4a4467fbe85d65513", body)

	assert.Equal(t, "https://textures.minecraft.net/texture/skin", profile.SkinTexture)
	assert.Equal(t, "https://textures.minecraft.net/texture/cape", profile.CapeTexture)
	require.Len(t, profile.Properties, 1)
	assert.Equal(t, "textures", profile.Properties[0].Name)
}

func TestIsRateLimitOrForbidden(t *testing.T) {
	assert.False(t, isRateLimitOrForbidden(nil))

	forbidden := apperr.Internal("minecraft.api_failure", map[string]any{"status": 403})
	assert.True(t, isRateLimitOrForbidden(forbidden))

	rateLimited := apperr.Internal("minecraft.rate_limited", nil)
	assert.True(t, isRateLimitOrForbidden(rateLimited))

	other := apperr.Fail(apperr.CodeMinecraftInvalidUsername, nil)
	assert.False(t, isRateLimitOrForbidden(other))
}

func TestIsPassthroughResult(t *testing.T) {
	assert.False(t, isPassthroughResult(nil))
	assert.True(t, isPassthroughResult(&transport.Result{Status: 204}))
	assert.True(t, isPassthroughResult(&transport.Result{Status: 404}))
	assert.False(t, isPassthroughResult(&transport.Result{Status: 200}))
}
