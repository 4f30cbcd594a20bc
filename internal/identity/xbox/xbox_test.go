package xbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProfile(t *testing.T) {
	body := map[string]any{
		"profileUsers": []any{
			map[string]any{
				"id": "2533274818672320",
				"settings": []any{
					map[string]any{"id": "Gamertag", "value": "Jimboodude"},
					map[string]any{"id": "GameDisplayPicRaw", "value": "https://images-eds.xboxlive.com/pic?mode=Padding"},
					map[string]any{"id": "AccountTier", "value": "Gold"},
				},
			},
		},
	}

	profile, err := normalizeProfile(body)
	require.NoError(t, err)

	assert.Equal(t, "2533274818672320", profile.ID)
	assert.Equal(t, "Jimboodude", profile.Username)
	assert.NotContains(t, profile.Avatar, "mode=Padding")
	assert.Contains(t, profile.Avatar, "h=180")
	assert.Equal(t, "Gold", profile.Meta["accountTier"])
}

func TestNormalizeProfileFallsBackToDefaultAvatar(t *testing.T) {
	body := map[string]any{
		"profileUsers": []any{
			map[string]any{
				"id": "2533274818672320",
				"settings": []any{
					map[string]any{"id": "Gamertag", "value": "Jimboodude"},
				},
			},
		},
	}

	profile, err := normalizeProfile(body)
	require.NoError(t, err)
	assert.Equal(t, "https://avatar-ssl.xboxlive.com/avatar/Jimboodude/avatarpic-l.png", profile.Avatar)
}

func TestNormalizeProfileNoProfileUsers(t *testing.T) {
	_, err := normalizeProfile(map[string]any{})
	assert.Error(t, err)
}

func TestNormalizeProfileNoUsername(t *testing.T) {
	body := map[string]any{
		"profileUsers": []any{
			map[string]any{"id": "2533274818672320", "settings": []any{}},
		},
	}
	_, err := normalizeProfile(body)
	assert.Error(t, err)
}

func TestStripPaddingRemovesModeAndForcesSize(t *testing.T) {
	out := stripPadding("https://images-eds.xboxlive.com/pic?h=64&w=64&mode=Padding")
	assert.NotContains(t, out, "mode=Padding")
	assert.Contains(t, out, "h=180")
	assert.Contains(t, out, "w=180")
}

func TestStripPaddingEmptyInput(t *testing.T) {
	assert.Equal(t, "", stripPadding(""))
}

func TestCamelCase(t *testing.T) {
	assert.Equal(t, "accountTier", camelCase("AccountTier"))
	assert.Equal(t, "", camelCase(""))
}

func TestToFloat(t *testing.T) {
	f, ok := toFloat(float64(28))
	assert.True(t, ok)
	assert.Equal(t, float64(28), f)

	f, ok = toFloat("2")
	assert.True(t, ok)
	assert.Equal(t, float64(2), f)

	_, ok = toFloat(true)
	assert.False(t, ok)
}
