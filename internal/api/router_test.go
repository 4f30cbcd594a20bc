package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecraft/identity-gateway/internal/apperr"
	"github.com/nodecraft/identity-gateway/internal/background"
	"github.com/nodecraft/identity-gateway/internal/cache"
	"github.com/nodecraft/identity-gateway/internal/player"
)

func testRouter(t *testing.T, deps Deps) (http.Handler, cache.Store) {
	t.Helper()
	store := cache.NewMemoryStore()
	t.Cleanup(store.Close)
	deps.EdgeStore = store
	deps.Group = background.New()
	return NewRouter(deps), store
}

func lookupReturning(profile *player.Profile, err error) Lookup {
	return func(_ context.Context, _ string) (*player.Profile, error) {
		return profile, err
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestPlayerHandlerSuccess(t *testing.T) {
	profile := &player.Profile{ID: "ef613480-5b62-44e4-a446-7fbe85d65513", Username: "CherryJimbo"}
	router, _ := testRouter(t, Deps{Minecraft: lookupReturning(profile, nil)})

	req := httptest.NewRequest(http.MethodGet, "/api/player/minecraft/CherryJimbo", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	data, _ := body["data"].(map[string]any)
	playerData, _ := data["player"].(map[string]any)
	assert.Equal(t, "CherryJimbo", playerData["username"])
}

func TestPlayerHandlerCacheHitOnRepeat(t *testing.T) {
	profile := &player.Profile{ID: "ef613480-5b62-44e4-a446-7fbe85d65513", Username: "CherryJimbo"}
	calls := 0
	lookup := func(_ context.Context, _ string) (*player.Profile, error) {
		calls++
		return profile, nil
	}
	router, _ := testRouter(t, Deps{Minecraft: lookup})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/player/minecraft/CherryJimbo", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 1, calls, "second request should be served from the edge cache")
}

func TestPlayerHandlerInvalidUsernameReturns400(t *testing.T) {
	router, _ := testRouter(t, Deps{Minecraft: lookupReturning(nil, apperr.Fail(apperr.CodeMinecraftInvalidUsername, nil))})

	req := httptest.NewRequest(http.MethodGet, "/api/player/minecraft/bad@email.com", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "minecraft.invalid_username", body["code"])
}

func TestPlayerHandlerInternalErrorReturns500(t *testing.T) {
	router, _ := testRouter(t, Deps{Xbox: lookupReturning(nil, apperr.Internal(apperr.CodeXboxBadResponseCode, map[string]any{"status": 500}))})

	req := httptest.NewRequest(http.MethodGet, "/api/player/xbox/2533274818672320z", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "xbox.bad_response_code", body["code"])
}

func TestUnknownPlatformReturns404(t *testing.T) {
	router, _ := testRouter(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/player/atari/someone", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNonAPIPathDelegatesTo404(t *testing.T) {
	router, _ := testRouter(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "api.404", body["code"])
}

func TestAPINonsensePathReturns404(t *testing.T) {
	router, _ := testRouter(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonsense", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "api.404", body["code"])
}

func TestHealthHandlerReportsOK(t *testing.T) {
	router, _ := testRouter(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
}
