package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/entrhq/soulcore/pkg/config"
	"github.com/entrhq/soulcore/pkg/embedding"
	"github.com/entrhq/soulcore/pkg/logging"
	"github.com/entrhq/soulcore/pkg/memstore"
	"github.com/entrhq/soulcore/pkg/router"
	"github.com/entrhq/soulcore/pkg/verify"
)

type mockRouter struct {
	mock.Mock
}

func (m *mockRouter) RouteAll(ctx context.Context, learned router.Learned, rawText, subject string) router.Report {
	args := m.Called(ctx, learned, rawText, subject)
	return args.Get(0).(router.Report)
}

func newTestServer(t *testing.T, rt Router) *Server {
	t.Helper()
	store := memstore.NewMemoryStore()
	_, err := store.Add("User plays guitar as a hobby", []string{"guitar", "hobby"})
	require.NoError(t, err)

	svc := Services{
		Embedder: embedding.NewProvider(context.Background(), embedding.DefaultConfig()),
		Verifier: verify.New(store, verify.WithLogger(logging.Nop("verifier"))),
		Router:   rt,
	}
	cfg := config.Default().Server
	return NewServer(cfg, svc, logging.Nop("api"))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok", "embedding": "offline"}, decode[map[string]string](t, rec))
}

func TestEmbed(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/v1/embed", `{"texts":["synthwave and jazz","ich spiele Gitarre"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[embedResponse](t, rec)
	assert.Equal(t, "offline", resp.Provider)
	assert.Equal(t, 256, resp.Dimensions)
	require.Len(t, resp.Vectors, 2)
	assert.Equal(t, embedding.HashEmbed("synthwave and jazz", 256), resp.Vectors[0])
}

func TestSimilarity(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/v1/similarity", `{"a":"guitar music","b":"guitar music"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1.0, decode[similarityResponse](t, rec).Score, 1e-9)
}

func TestVerify(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/v1/verify",
		`{"reply":"I remember you told me about your guitar hobby","query":"what do you know?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[verify.Result](t, rec)
	assert.False(t, res.Modified)
	require.Len(t, res.Claims, 1)
	assert.Equal(t, verify.StatusSupported, res.Claims[0].Status)
	assert.Contains(t, res.Claims[0].Evidence, "guitar")
}

func TestRoute(t *testing.T) {
	rt := &mockRouter{}
	want := router.Report{
		Interests: []router.RouteLogEntry{{Route: router.RouteInterests, Trigger: "synthwave", Target: "INTERESTS.md", Action: router.ActionSuggested}},
		Personal:  []router.RouteLogEntry{},
	}
	rt.On("RouteAll", mock.Anything, router.Learned{Interests: []string{"synthwave"}}, "I love synthwave", "Sam").Return(want)

	s := newTestServer(t, rt)
	rec := do(t, s.Handler(), http.MethodPost, "/v1/route",
		`{"interests":["synthwave"],"text":"I love synthwave","subject":"Sam"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[router.Report](t, rec)
	require.Len(t, got.Interests, 1)
	assert.Equal(t, router.ActionSuggested, got.Interests[0].Action)
	rt.AssertExpectations(t)
}

func TestBadRequests(t *testing.T) {
	rt := &mockRouter{}
	s := newTestServer(t, rt)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed json", "/v1/verify", `{"reply":`, http.StatusBadRequest},
		{"unknown field", "/v1/verify", `{"reply":"x","extra":1}`, http.StatusBadRequest},
		{"missing reply", "/v1/verify", `{"query":"x"}`, http.StatusBadRequest},
		{"empty texts", "/v1/embed", `{"texts":[]}`, http.StatusBadRequest},
		{"blank text", "/v1/embed", `{"texts":[""]}`, http.StatusBadRequest},
		{"blank interest", "/v1/route", `{"interests":[""]}`, http.StatusBadRequest},
		{"too large", "/v1/verify", `{"reply":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
	rt.AssertNotCalled(t, "RouteAll", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMissingService(t *testing.T) {
	s := NewServer(config.Default().Server, Services{}, nil)
	rec := do(t, s.Handler(), http.MethodPost, "/v1/route", `{"interests":["jazz"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/verify", nil)
	req.Header.Set("Origin", "tauri://localhost")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "tauri://localhost", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Post("http://"+ln.Addr().String()+"/v1/embed", "application/json",
		bytes.NewBufferString(`{"texts":["hello world"]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
