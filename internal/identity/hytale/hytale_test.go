package hytale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecraft/identity-gateway/internal/apperr"
)

func TestNormalizeProfile(t *testing.T) {
	body := map[string]any{
		"uuid":     "ef613480-5b62-44e4-a446-7fbe85d65513",
		"username": "CherryJimbo",
		"skin":     map[string]any{"blob": "opaque"},
	}

	profile, err := normalizeProfile(body)
	require.NoError(t, err)

	assert.Equal(t, "ef613480-5b62-44e4-a446-7fbe85d65513", profile.ID)
	assert.Equal(t, "ef6134805b6244e4a4467fbe85d65513", profile.RawID)
	assert.Equal(t, "CherryJimbo", profile.Username)
	assert.Equal(t, "https://crafthead.net/hytale/avatar/ef613480-5b62-44e4-a446-7fbe85d65513", profile.Avatar)
	assert.Equal(t, map[string]any{"blob": "opaque"}, profile.Meta["skin"])
}

func TestNormalizeProfileMissingSkinIsNil(t *testing.T) {
	body := map[string]any{"uuid": "ef613480-5b62-44e4-a446-7fbe85d65513", "username": "CherryJimbo"}
	profile, err := normalizeProfile(body)
	require.NoError(t, err)
	assert.Nil(t, profile.Meta["skin"])
}

func TestNormalizeProfileIncompleteDocument(t *testing.T) {
	_, err := normalizeProfile(map[string]any{"uuid": "ef613480-5b62-44e4-a446-7fbe85d65513"})
	assert.Error(t, err)
}

func TestErrCode(t *testing.T) {
	assert.Equal(t, "", errCode(nil))
	assert.Equal(t, "", errCode(assert.AnError))
	assert.Equal(t, string(apperr.CodeHytaleNotFound), errCode(apperr.Fail(apperr.CodeHytaleNotFound, nil)))
}
