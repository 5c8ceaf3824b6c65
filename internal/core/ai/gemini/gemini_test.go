package gemini

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"recipe-content-studio/internal/core/content"
	"recipe-content-studio/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeModels 依序回傳預先準備的結果
type fakeModels struct {
	mu      sync.Mutex
	results []fakeResult
	calls   []fakeCall
}

type fakeResult struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeCall struct {
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prompt := ""
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		prompt = contents[0].Parts[0].Text
	}
	f.calls = append(f.calls, fakeCall{model: model, prompt: prompt, config: config})

	if len(f.results) == 0 {
		return nil, errors.New("no more results")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.resp, r.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func imageResponse(data []byte, mime string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here you go"},
				{InlineData: &genai.Blob{Data: data, MIMEType: mime}},
			}},
		}},
	}
}

type connectorSpy struct {
	models *fakeModels
	keys   []string
}

func (s *connectorSpy) connect(ctx context.Context, apiKey string) (ModelsAPI, error) {
	s.keys = append(s.keys, apiKey)
	return s.models, nil
}

func newTestClient(serverKey string, results ...fakeResult) (*Client, *connectorSpy) {
	spy := &connectorSpy{models: &fakeModels{results: results}}
	c := NewClient(Config{
		APIKey:     serverKey,
		TextModel:  "text-model",
		ImageModel: "image-model",
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		Timeout:    time.Second,
	}, spy.connect)
	return c, spy
}

const descriptionJSON = `{"youtubeDescription": "## Новое описание"}`

func TestBuildSchema(t *testing.T) {
	specs, err := content.Specs([]content.Field{content.FieldYoutubeTitle, content.FieldIngredients})
	require.NoError(t, err)

	s := BuildSchema(specs)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"youtubeTitle", "ingredients"}, s.Required)
	assert.Equal(t, genai.TypeArray, s.Properties["youtubeTitle"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["youtubeTitle"].Items.Type)
	assert.Equal(t, []string{"name", "quantity", "unit"}, s.Properties["ingredients"].Items.Required)
}

func TestGenerateText_Success(t *testing.T) {
	c, spy := newTestClient("server-key-123", fakeResult{resp: textResponse(descriptionJSON)})

	got, err := c.GenerateText(context.Background(), "Блины", content.ModeStandard, []content.Field{content.FieldYoutubeDescription})
	require.NoError(t, err)
	assert.Equal(t, "## Новое описание", got.YoutubeDescription)

	require.Len(t, spy.models.calls, 1)
	call := spy.models.calls[0]
	assert.Equal(t, "text-model", call.model)
	assert.Equal(t, "application/json", call.config.ResponseMIMEType)
	assert.Len(t, call.config.ResponseSchema.Properties, 1)
	assert.Contains(t, call.prompt, `рецепта "Блины"`)
	assert.Equal(t, []string{"server-key-123"}, spy.keys)
}

func TestGenerateText_SchemaErrorNotRetried(t *testing.T) {
	c, spy := newTestClient("server-key-123",
		fakeResult{resp: textResponse(`{"youtubeTitle": ["a"]}`)},
		fakeResult{resp: textResponse(descriptionJSON)},
	)

	_, err := c.GenerateText(context.Background(), "Блины", content.ModeStandard, []content.Field{content.FieldYoutubeDescription})
	require.Error(t, err)
	assert.True(t, common.IsSchemaError(err))
	assert.Len(t, spy.models.calls, 1)
}

func TestGenerateText_TransientErrorRetried(t *testing.T) {
	c, spy := newTestClient("server-key-123",
		fakeResult{err: genai.APIError{Code: 503, Status: "UNAVAILABLE", Message: "overloaded"}},
		fakeResult{resp: textResponse(descriptionJSON)},
	)

	got, err := c.GenerateText(context.Background(), "Блины", content.ModeShort, []content.Field{content.FieldYoutubeDescription})
	require.NoError(t, err)
	assert.Equal(t, "## Новое описание", got.YoutubeDescription)
	assert.Len(t, spy.models.calls, 2)
}

func TestGenerateText_RetriesExhausted(t *testing.T) {
	apiErr := genai.APIError{Code: 500, Message: "internal"}
	c, spy := newTestClient("server-key-123",
		fakeResult{err: apiErr}, fakeResult{err: apiErr}, fakeResult{err: apiErr},
	)

	_, err := c.GenerateText(context.Background(), "Блины", content.ModeStandard, nil)
	require.Error(t, err)
	assert.True(t, common.IsTransportError(err))
	assert.False(t, common.IsPermissionError(err))
	assert.Len(t, spy.models.calls, 3)
}

func TestGenerateText_EmptyResponse(t *testing.T) {
	c, _ := newTestClient("server-key-123",
		fakeResult{resp: textResponse("")}, fakeResult{resp: textResponse("")}, fakeResult{resp: textResponse("")},
	)

	_, err := c.GenerateText(context.Background(), "Блины", content.ModeStandard, nil)
	assert.True(t, common.IsEmptyResponseError(err))
}

func TestGenerateImage_UsesSelectedKeyAndRatio(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	c, spy := newTestClient("server-key-123", fakeResult{resp: imageResponse(png, "image/png")})

	uri, err := c.GenerateImageWithKey(context.Background(), "user-key-456789", "Блины с ягодами", "Блины", content.Ratio9x16)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBORw==", uri)

	require.Len(t, spy.models.calls, 1)
	call := spy.models.calls[0]
	assert.Equal(t, "image-model", call.model)
	assert.Equal(t, "9:16", call.config.ImageConfig.AspectRatio)
	assert.Equal(t, "1K", call.config.ImageConfig.ImageSize)
	assert.Contains(t, call.prompt, `"Блины с ягодами"`)
	assert.Equal(t, []string{"user-key-456789"}, spy.keys)
}

func TestGenerateImage_PermissionNotRetried(t *testing.T) {
	c, spy := newTestClient("server-key-123",
		fakeResult{err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED", Message: "The caller does not have permission"}},
		fakeResult{resp: imageResponse([]byte{1}, "image/png")},
	)

	_, err := c.GenerateImageWithKey(context.Background(), "", "desc", "Блины", content.Ratio16x9)
	require.Error(t, err)
	assert.True(t, common.IsPermissionError(err))
	assert.True(t, common.IsTransportError(err))
	assert.Len(t, spy.models.calls, 1)
}

func TestGenerateImage_NoKeyAtAll(t *testing.T) {
	c, spy := newTestClient("")

	_, err := c.GenerateImageWithKey(context.Background(), "", "desc", "Блины", content.Ratio16x9)
	assert.True(t, common.IsPermissionError(err))
	assert.Empty(t, spy.keys)
}

func TestGenerateImage_NoImagePart(t *testing.T) {
	c, _ := newTestClient("server-key-123",
		fakeResult{resp: textResponse("no image")}, fakeResult{resp: textResponse("no image")}, fakeResult{resp: textResponse("no image")},
	)

	_, err := c.GenerateImageWithKey(context.Background(), "", "desc", "Блины", content.Ratio16x9)
	require.Error(t, err)
	assert.True(t, common.IsTransportError(err))
	assert.False(t, common.IsPermissionError(err))
}

type staticKeys struct {
	key string
	err error
}

func (s staticKeys) SelectedKey(ctx context.Context) (string, error) { return s.key, s.err }

func TestImageGenerator_KeySource(t *testing.T) {
	c, spy := newTestClient("server-key-123", fakeResult{resp: imageResponse([]byte{1, 2}, "image/jpeg")})
	g := NewImageGenerator(c, staticKeys{key: "session-key-000111"})

	uri, err := g.GenerateImage(context.Background(), "desc", "Блины", content.Ratio16x9)
	require.NoError(t, err)
	assert.Contains(t, uri, "data:image/jpeg;base64,")
	assert.Equal(t, []string{"session-key-000111"}, spy.keys)

	failing := NewImageGenerator(c, staticKeys{err: errors.New("redis down")})
	_, err = failing.GenerateImage(context.Background(), "desc", "Блины", content.Ratio16x9)
	assert.True(t, common.IsTransportError(err))
}

func TestIsPermission(t *testing.T) {
	assert.True(t, isPermission(genai.APIError{Code: 401}))
	assert.True(t, isPermission(genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."}))
	assert.True(t, isPermission(errors.New("request failed: permission denied")))
	assert.False(t, isPermission(genai.APIError{Code: 429, Message: "quota"}))
	assert.False(t, isPermission(errors.New("connection reset by peer")))
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	c, spy := newTestClient("server-key-123",
		fakeResult{err: genai.APIError{Code: 503}}, fakeResult{err: genai.APIError{Code: 503}}, fakeResult{err: genai.APIError{Code: 503}},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GenerateText(ctx, "Блины", content.ModeStandard, nil)
	require.Error(t, err)
	assert.Len(t, spy.models.calls, 1)
}
