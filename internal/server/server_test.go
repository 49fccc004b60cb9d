package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ProSocialFlow/internal/config"
	"ProSocialFlow/internal/domain"
	"ProSocialFlow/internal/infrastructure/placeholder"
	"ProSocialFlow/internal/infrastructure/storage"
	"ProSocialFlow/internal/metrics"
	"ProSocialFlow/internal/ports"
	"ProSocialFlow/internal/usecase"
)

type stubGenerator struct {
	calls atomic.Int32
	fail  error
}

func (g *stubGenerator) Generate(_ context.Context, req ports.GenerationRequest) (json.RawMessage, error) {
	g.calls.Add(1)
	if g.fail != nil {
		return nil, g.fail
	}
	switch req.Contract.Name {
	case "topic_ideas":
		props := req.Contract.Schema["properties"].(map[string]any)["ideas"].(map[string]any)["properties"].(map[string]any)
		ideas := map[string]string{}
		for c := range props {
			ideas[c] = "Fresh take on " + c
		}
		return json.Marshal(map[string]any{"ideas": ideas})
	case "social_media_posts":
		start, end := strings.Index(req.Prompt, "["), strings.LastIndex(req.Prompt, "]")
		var topics []map[string]string
		if err := json.Unmarshal([]byte(req.Prompt[start:end+1]), &topics); err != nil {
			return nil, err
		}
		for _, t := range topics {
			t["post"] = "A post about " + t["topic"] + "."
		}
		return json.Marshal(map[string]any{"posts": topics})
	default:
		return json.RawMessage(`{"altText":"A calm lake under autumn light."}`), nil
	}
}

type harness struct {
	handler http.Handler
	gen     *stubGenerator
	store   *storage.MemoryStore
}

func newHarness(t *testing.T, gen *stubGenerator, history ports.HistoryStore) *harness {
	t.Helper()

	store := storage.NewMemoryStore(domain.TopicHistoryLimit)
	if history == nil {
		history = store
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ideas := usecase.NewIdeaGenerator(gen, history, m, nil)
	posts := usecase.NewPostGenerator(usecase.PostGeneratorDeps{Generator: gen, History: history, Metrics: m})
	image := usecase.NewImageGenerator(gen, placeholder.NewSource("picsum.photos", 512), m, nil)
	hist := usecase.NewHistoryService(history, nil)

	sessions := usecase.NewSessionManager(usecase.SessionServices{
		Ideas: ideas, Posts: posts, Image: image, History: hist,
	}, usecase.SessionManagerConfig{Categories: []string{"STEM", "Sports"}}, m, nil)

	srv := New(config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}}, Deps{
		Actions:  usecase.NewActions(ideas, posts, image, hist, nil),
		Sessions: sessions,
		Gatherer: reg,
	})
	return &harness{handler: srv.Handler(), gen: gen, store: store}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Warning string          `json:"warning"`
}

func (h *harness) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func TestHealthAndCategories(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &stubGenerator{}, nil)

	code, _ := h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)

	code, env := h.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["STEM","Sports"]`, string(env.Data))
}

func TestActionIdeas(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &stubGenerator{}, nil)

	code, env := h.do(t, http.MethodPost, "/api/actions/ideas", `{"categories":["STEM","Sports"]}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	var ideas map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &ideas))
	assert.Equal(t, map[string]string{"STEM": "Fresh take on STEM", "Sports": "Fresh take on Sports"}, ideas)
}

func TestActionIdeasValidation(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{}
	h := newHarness(t, gen, nil)

	code, env := h.do(t, http.MethodPost, "/api/actions/ideas", `{"categories":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.Equal(t, "No categories provided.", env.Error)

	code, env = h.do(t, http.MethodPost, "/api/actions/ideas", `{"categories":"STEM"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "Invalid request body")

	assert.Zero(t, gen.calls.Load())
}

func TestActionGenerationFailureMapsToBadGateway(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &stubGenerator{fail: errors.New("upstream down")}, nil)

	code, env := h.do(t, http.MethodPost, "/api/actions/ideas", `{"categories":["STEM"]}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.False(t, env.Success)
	assert.True(t, strings.HasPrefix(env.Error, "Failed to generate ideas: "))
}

func TestActionPostsRecordsHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &stubGenerator{}, nil)

	code, env := h.do(t, http.MethodPost, "/api/actions/posts",
		`{"selectedTopics":[{"category":"STEM","topic":"Fusion"},{"category":"Sports","topic":"Relay"}]}`)
	require.Equal(t, http.StatusOK, code)

	var posts []domain.SocialPost
	require.NoError(t, json.Unmarshal(env.Data, &posts))
	require.Len(t, posts, 2)
	assert.Equal(t, "STEM", posts[0].Category)
	assert.Equal(t, "Fusion", posts[0].Topic)
	assert.Equal(t, "A post about Fusion.", posts[0].Content)

	code, env = h.do(t, http.MethodGet, "/api/actions/history", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"STEM":["Fusion"],"Sports":["Relay"]}`, string(env.Data))
}

func TestActionPostsRejectsIncompleteTopic(t *testing.T) {
	t.Parallel()
	gen := &stubGenerator{}
	h := newHarness(t, gen, nil)

	code, env := h.do(t, http.MethodPost, "/api/actions/posts", `{"selectedTopics":[{"category":"STEM"}]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "Topic is required")
	assert.Zero(t, gen.calls.Load())
}

func TestActionImage(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &stubGenerator{}, nil)

	code, env := h.do(t, http.MethodPost, "/api/actions/image", "")
	require.Equal(t, http.StatusOK, code)

	var img domain.ImageOfTheDay
	require.NoError(t, json.Unmarshal(env.Data, &img))
	assert.True(t, strings.HasPrefix(img.ImageURL, "https://picsum.photos/seed/"))
	assert.Equal(t, "A calm lake under autumn light.", img.AltText)
}

func TestSessionWorkflowOverHTTP(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &stubGenerator{}, nil)

	code, env := h.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, code)
	var snap usecase.SessionSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	base := "/api/sessions/" + snap.ID

	code, env = h.do(t, http.MethodPost, base+"/posts", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Please lock in at least one topic idea before generating posts.", env.Error)

	code, _ = h.do(t, http.MethodPost, base+"/ideas", "")
	require.Equal(t, http.StatusOK, code)

	code, env = h.do(t, http.MethodPut, base+"/locks/STEM", `{"locked":true}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"state":"locked"`)

	code, env = h.do(t, http.MethodPost, base+"/ideas/STEM", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, env = h.do(t, http.MethodPost, base+"/posts", "")
	require.Equal(t, http.StatusOK, code)
	var out usecase.PostsOutcome
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Posts, 1)
	postID := out.Posts[0].ID
	require.NotEmpty(t, postID)

	code, env = h.do(t, http.MethodPatch, base+"/posts/"+postID, `{"content":"Edited"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"post":"Edited"`)

	code, env = h.do(t, http.MethodPost, base+"/posts/"+postID+"/publish", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Publishing is not configured.", env.Error)

	code, _ = h.do(t, http.MethodDelete, base+"/posts/"+postID, "")
	assert.Equal(t, http.StatusOK, code)

	code, env = h.do(t, http.MethodPost, base+"/history", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"STEM":["Fresh take on STEM"]}`, string(env.Data))

	code, _ = h.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusOK, code)

	code, env = h.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, env.Error, "not found")
}

func TestSessionCategoryPathIsExact(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &stubGenerator{}, nil)

	code, env := h.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, code)
	var snap usecase.SessionSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	base := "/api/sessions/" + snap.ID

	code, _ = h.do(t, http.MethodPost, base+"/ideas/STEM", "")
	require.Equal(t, http.StatusOK, code)

	code, env = h.do(t, http.MethodPost, base+"/ideas/%20STEM", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, `Unknown category " STEM".`, env.Error)

	code, env = h.do(t, http.MethodPut, base+"/locks/%20STEM", `{"locked":true}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, `Unknown category " STEM".`, env.Error)
}

type downStore struct{}

func (downStore) Read(context.Context, domain.Category) ([]string, error) {
	return nil, &domain.StoreError{Op: "read", Err: errors.New("offline")}
}

func (downStore) Record(_ context.Context, c domain.Category, _ string) error {
	return &domain.StoreError{Op: "record", Category: c, Err: errors.New("offline")}
}

func (downStore) ReadAll(context.Context) (map[domain.Category][]string, error) {
	return nil, &domain.StoreError{Op: "read all", Err: errors.New("offline")}
}

func TestStoreOutage(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &stubGenerator{}, downStore{})

	code, env := h.do(t, http.MethodGet, "/api/actions/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.True(t, strings.HasPrefix(env.Error, "Failed to fetch history: "))

	code, env = h.do(t, http.MethodPost, "/api/actions/posts", `{"selectedTopics":[{"category":"STEM","topic":"Fusion"}]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Warning)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &stubGenerator{}, nil)

	_, _ = h.do(t, http.MethodPost, "/api/actions/ideas", `{"categories":["STEM"]}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `prosocialflow_generation_requests_total{flow="ideas",outcome="success"} 1`)
}
