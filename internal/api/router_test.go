package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"recipe-content-studio/internal/core/ai/queue"
	"recipe-content-studio/internal/core/credential"
	"recipe-content-studio/internal/core/image"
	"recipe-content-studio/internal/core/session"
	"recipe-content-studio/internal/core/thumbnail"
	"recipe-content-studio/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		App:         config.AppConfig{Version: "test"},
		Server:      config.ServerConfig{WriteTimeout: 5 * time.Second},
		DedupWindow: time.Second,
	}
}

func TestSetupRouter(t *testing.T) {
	renderer, err := thumbnail.NewRenderer()
	require.NoError(t, err)

	reg := session.NewRegistry(session.Config{MaxSize: 4, TTL: time.Hour}, session.Deps{
		LocalImage:   renderer,
		Keys:         credential.NewMemoryKeyStore(time.Hour),
		DefaultWidth: 1000,
	})
	t.Cleanup(func() { _ = reg.Close() })

	q := queue.NewManager(2, 4)
	t.Cleanup(q.Close)

	router := SetupRouter(testConfig(), Dependencies{
		Sessions:  reg,
		Stats:     reg,
		Queue:     q,
		Images:    image.NewService(1 << 20),
		Providers: map[string]string{"text": "gemini"},
	})

	serve := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	t.Run("health includes queue", func(t *testing.T) {
		w := serve(http.MethodGet, "/health")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"workers":2`)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("metrics", func(t *testing.T) {
		w := serve(http.MethodGet, "/metrics")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "recipe_studio_session_active")
	})

	t.Run("create session", func(t *testing.T) {
		w := serve(http.MethodPost, "/api/v1/sessions")
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("oversized body without content length", func(t *testing.T) {
		w := serve(http.MethodPost, "/api/v1/sessions")
		require.Equal(t, http.StatusCreated, w.Code)
		var created struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

		payload := `{"recipe_name":"` + strings.Repeat("б", maxBodySize) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+created.ID+"/generate", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = -1
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"REQUEST_TOO_LARGE"`)
		assert.Contains(t, w.Body.String(), `"max_size":1048576`)
	})

	t.Run("unknown route", func(t *testing.T) {
		w := serve(http.MethodGet, "/api/v1/nothing")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)
	})

	t.Run("wrong method", func(t *testing.T) {
		w := serve(http.MethodPatch, "/api/v1/sessions")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"METHOD_NOT_ALLOWED"`)
	})
}
