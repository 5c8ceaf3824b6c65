package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"recipe-content-studio/internal/core/content"
	"recipe-content-studio/internal/core/credential"
	"recipe-content-studio/internal/core/image"
	"recipe-content-studio/internal/core/session"
	"recipe-content-studio/internal/core/thumbnail"
	"recipe-content-studio/internal/core/workflow"
	"recipe-content-studio/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type switchText struct {
	mu   sync.Mutex
	fail error
}

func (f *switchText) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *switchText) GenerateText(ctx context.Context, name string, mode content.Mode, fields []content.Field) (*content.GeneratedContent, error) {
	f.mu.Lock()
	err := f.fail
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &content.GeneratedContent{
		YoutubeTitle:         []string{name + " за 10 минут"},
		YoutubeDescription:   "**" + name + "** без хлопот",
		YoutubeTags:          []string{"#рецепт"},
		Ingredients:          []content.Ingredient{{Name: "мука", Quantity: "200", Unit: "г"}},
		Instructions:         []string{"Смешать", "Запечь"},
		ThumbnailDescription: name + " крупным планом",
	}, nil
}

type recordingRemote struct {
	mu    sync.Mutex
	calls int

	// hold 非 nil 時下一次呼叫在 entered 關閉後等待 hold
	hold    chan struct{}
	entered chan struct{}
}

func (r *recordingRemote) holdNext() (entered, release chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entered = make(chan struct{})
	r.hold = make(chan struct{})
	return r.entered, r.hold
}

func (r *recordingRemote) GenerateImage(ctx context.Context, prompt, name string, ratio content.AspectRatio) (string, error) {
	r.mu.Lock()
	r.calls++
	hold, entered := r.hold, r.entered
	r.hold, r.entered = nil, nil
	r.mu.Unlock()

	if hold != nil {
		close(entered)
		<-hold
	}
	return "data:image/png;base64,iVBORw0KGgo=", nil
}

type testServer struct {
	engine *gin.Engine
	text   *switchText
	remote *recordingRemote
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	renderer, err := thumbnail.NewRenderer()
	require.NoError(t, err)

	ts := &testServer{text: &switchText{}, remote: &recordingRemote{}}
	reg := session.NewRegistry(session.Config{MaxSize: 10, TTL: time.Hour}, session.Deps{
		Text: ts.text,
		RemoteImage: func(port *credential.SessionPort) workflow.ImageGenerator {
			return ts.remote
		},
		LocalImage:         renderer,
		Keys:               credential.NewMemoryKeyStore(0),
		RequiresCredential: true,
		StartIndex:         1,
		DefaultWidth:       1280,
	})
	t.Cleanup(func() { _ = reg.Close() })

	ts.engine = gin.New()
	NewHandler(reg, image.NewService(10<<20)).Register(ts.engine.Group("/api/v1"))
	return ts
}

func (ts *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *testServer) create(t *testing.T) string {
	t.Helper()
	w := ts.do(http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	return decodeSnapshot(t, w).ID
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Session  *session.Snapshot `json:"session"`
	Carousel json.RawMessage   `json:"carousel"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreateAndGetSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, workflow.PhaseIdle, snap.Workflow.Phase)
	assert.Equal(t, 1, snap.Carousel.ActiveIndex)
	assert.Equal(t, "generator", snap.Carousel.Pages[1].Component)

	w = ts.do(http.MethodGet, "/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeError(t, w).Code)
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/sessions/"+id, nil).Code)
}

func TestGenerate_InputErrors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, common.ErrCodeValidation, body.Code)
	require.NotNil(t, body.Session)
	assert.Equal(t, workflow.PhaseIdle, body.Session.Workflow.Phase)

	w = ts.do(http.MethodPost, "/sessions/"+id+"/generate", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, common.ErrCodeInvalidRequest, decodeError(t, w).Code)

	w = ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "Блины", Mode: "long"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, common.ErrCodeValidation, decodeError(t, w).Code)
}

func TestGenerate_LocalThumbnailAndDownload(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(http.MethodPut, "/sessions/"+id+"/image-mode", ImageModeRequest{Mode: "local"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "Oven Pancakes", Mode: "short"})
	require.Equal(t, http.StatusOK, w.Code)

	snap := decodeSnapshot(t, w)
	assert.Equal(t, workflow.PhaseReady, snap.Workflow.Phase)
	require.NotNil(t, snap.Workflow.Content)
	assert.True(t, strings.HasPrefix(snap.Workflow.Content.ThumbnailImageURL, "data:image/png;base64,"))
	assert.Zero(t, ts.remote.calls)

	w = ts.do(http.MethodGet, "/sessions/"+id+"/thumbnail.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Oven_Pancakes_thumbnail.png")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func TestDownloadThumbnail_Missing(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(http.MethodGet, "/sessions/"+id+"/thumbnail.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_THUMBNAIL", decodeError(t, w).Code)
}

func TestGenerate_CredentialFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "Блины"})
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, workflow.PhaseCredentialPending, snap.Workflow.Phase)
	assert.True(t, snap.Workflow.CredentialPrompt)
	assert.NotNil(t, snap.Workflow.Content)
	assert.Zero(t, ts.remote.calls)

	w = ts.do(http.MethodPost, "/sessions/"+id+"/credential", CredentialRequest{APIKey: "AIza-user-selected"})
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.Equal(t, workflow.PhaseReady, snap.Workflow.Phase)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", snap.Workflow.Content.ThumbnailImageURL)
	assert.Equal(t, 1, ts.remote.calls)
}

func TestCredential_SelectionFailure(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "Блины"}).Code)

	w := ts.do(http.MethodPost, "/sessions/"+id+"/credential", CredentialRequest{APIKey: "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, common.ErrCodeSelection, body.Code)
	require.NotNil(t, body.Session)
	assert.Equal(t, workflow.PhaseReady, body.Session.Workflow.Phase)
	assert.Equal(t, common.ErrCodeSelection, body.Session.Workflow.ThumbnailError.Code)
}

func TestCredential_Abandon(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "Блины"}).Code)

	w := ts.do(http.MethodDelete, "/sessions/"+id+"/credential", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, workflow.PhaseReady, snap.Workflow.Phase)
	assert.False(t, snap.Workflow.CredentialPrompt)
}

func TestGenerate_TextFailure(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	ts.text.setFail(common.NewTransportError("network down", errors.New("dial tcp: timeout")))

	w := ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "Блины"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, common.ErrCodeTransport, body.Code)
	require.NotNil(t, body.Session)
	assert.Equal(t, workflow.PhaseTextFailed, body.Session.Workflow.Phase)
	assert.Nil(t, body.Session.Workflow.Content)
	assert.Zero(t, ts.remote.calls)
}

func TestRegenerate_Preconditions(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	w := ts.do(http.MethodPost, "/sessions/"+id+"/thumbnail", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, common.ErrCodePrecondition, decodeError(t, w).Code)

	w = ts.do(http.MethodPost, "/sessions/"+id+"/description/regenerate", GenerateRequest{RecipeName: "Блины"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPut, "/sessions/"+id+"/description", DescriptionRequest{Text: "x"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodGet, "/sessions/"+id+"/description.html", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDescriptionEditAndPreview(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/sessions/"+id+"/image-mode", ImageModeRequest{Mode: "local"}).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "Блины"}).Code)

	w := ts.do(http.MethodGet, "/sessions/"+id+"/description.html", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>Блины</strong>")

	w = ts.do(http.MethodPut, "/sessions/"+id+"/description", DescriptionRequest{Text: "Своё _описание_"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Своё _описание_", decodeSnapshot(t, w).Workflow.EditableDescription)

	w = ts.do(http.MethodGet, "/sessions/"+id+"/description.html", nil)
	assert.Contains(t, w.Body.String(), "<em>описание</em>")

	w = ts.do(http.MethodPost, "/sessions/"+id+"/description/regenerate", GenerateRequest{RecipeName: "Блины"})
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, "**Блины** без хлопот", snap.Workflow.EditableDescription)
}

func TestThumbnailPromptAndRegenerate(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/sessions/"+id+"/image-mode", ImageModeRequest{Mode: "local"}).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "Блины"}).Code)

	w := ts.do(http.MethodPut, "/sessions/"+id+"/thumbnail-prompt", PromptRequest{Prompt: "Стопка блинов"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Стопка блинов", decodeSnapshot(t, w).Workflow.CustomPrompt)

	w = ts.do(http.MethodPost, "/sessions/"+id+"/thumbnail", ThumbnailRequest{UseCustomPrompt: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, workflow.PhaseReady, decodeSnapshot(t, w).Workflow.Phase)

	w = ts.do(http.MethodPut, "/sessions/"+id+"/image-mode", ImageModeRequest{Mode: "cloud"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegenerateThumbnail_SupersededReturnsConflict(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "Блины"}).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/sessions/"+id+"/credential", CredentialRequest{APIKey: "AIza-user-selected"}).Code)

	entered, release := ts.remote.holdNext()
	stale := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		stale <- ts.do(http.MethodPost, "/sessions/"+id+"/thumbnail", ThumbnailRequest{})
	}()

	<-entered
	w := ts.do(http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{RecipeName: "Борщ"})
	require.Equal(t, http.StatusOK, w.Code)
	close(release)

	w = <-stale
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "SUPERSEDED", body.Code)
	assert.Contains(t, body.Message, "superseded")
	require.NotNil(t, body.Session)
	assert.Equal(t, id, body.Session.ID)
	assert.Equal(t, "Борщ", body.Session.Workflow.RecipeName)
	assert.Equal(t, workflow.PhaseReady, body.Session.Workflow.Phase)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", body.Session.Workflow.Content.ThumbnailImageURL)
}

func TestCarouselEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)
	base := "/sessions/" + id + "/carousel"

	decode := func(w *httptest.ResponseRecorder) CarouselResponse {
		t.Helper()
		var resp CarouselResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	w := ts.do(http.MethodPost, base+"/drag/start", DragRequest{Source: "touch", X: 900, Interactive: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode(w).Handled)

	w = ts.do(http.MethodPost, base+"/drag/start", DragRequest{Source: "touch", X: 900})
	assert.True(t, decode(w).Handled)

	w = ts.do(http.MethodPost, base+"/drag/move", DragRequest{Source: "touch", X: 500})
	resp := decode(w)
	assert.True(t, resp.Handled)
	assert.True(t, resp.Carousel.Dragging)
	assert.Equal(t, "translateX(-1680px)", resp.Carousel.Transform)
	assert.False(t, resp.Carousel.Eased)

	w = ts.do(http.MethodPost, base+"/drag/end", nil)
	resp = decode(w)
	assert.Equal(t, 2, resp.Carousel.ActiveIndex)
	assert.False(t, resp.Carousel.Dragging)
	assert.True(t, resp.Carousel.Dots[2].Active)

	w = ts.do(http.MethodPost, base+"/drag/start", DragRequest{Source: "mouse", X: 100})
	require.True(t, decode(w).Handled)
	ts.do(http.MethodPost, base+"/drag/move", DragRequest{Source: "mouse", X: 800})
	w = ts.do(http.MethodPost, base+"/drag/leave", nil)
	assert.Equal(t, 1, decode(w).Carousel.ActiveIndex)

	w = ts.do(http.MethodPost, base+"/drag/start", DragRequest{Source: "pen", X: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, base+"/jump", map[string]int{"index": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode(w).Carousel.ActiveIndex)

	w = ts.do(http.MethodPost, base+"/jump", map[string]int{"index": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, common.ErrCodeRange, decodeError(t, w).Code)

	w = ts.do(http.MethodPost, base+"/jump", map[string]int{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, json.Unmarshal(ts.do(http.MethodPost, base+"/jump", map[string]int{"index": 1}).Body.Bytes(), &resp))
	w = ts.do(http.MethodPost, base+"/resize", ResizeRequest{Width: 640})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(w)
	assert.Equal(t, "translateX(-640px)", resp.Carousel.Transform)
	assert.Equal(t, 640.0, resp.Carousel.Width)

	w = ts.do(http.MethodPost, base+"/resize", ResizeRequest{Width: -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, base+"/drag/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, base, nil)
	assert.Equal(t, 1, decode(w).Carousel.ActiveIndex)
}
