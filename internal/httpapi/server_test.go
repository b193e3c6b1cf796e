package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vividd/internal/cache"
	"vividd/internal/ledger"
	"vividd/internal/registry"
	"vividd/internal/tasks"
	"vividd/pkg/types"
)

type testEnv struct {
	ledger *ledger.Ledger
	cache  *cache.Manager
	tasks  *tasks.Store
	mux    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l, err := ledger.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	reg := registry.NewWith([]types.Artifact{
		{ID: "t2v-model", Kind: types.KindTextToVideo, ExpectedBytes: 100},
		{ID: "i2v-model", Kind: types.KindImageToVideo, ExpectedBytes: 100},
	})
	c, err := cache.New(reg, cache.Config{
		CacheDir: t.TempDir(),
		Fetcher:  &cache.StubFetcher{},
		DiskFree: func(string) (uint64, error) { return 1 << 40, nil },
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	s, err := tasks.New(l, c, &tasks.StubInferencer{OutputDir: t.TempDir()}, tasks.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new tasks: %v", err)
	}
	t.Cleanup(s.Close)
	return &testEnv{
		ledger: l,
		cache:  c,
		tasks:  s,
		mux:    NewMux(Services{Ledger: l, Cache: c, Tasks: s, SignupCredits: 300}),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Buffer
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewBuffer(b)
	} else {
		rd = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	return v
}

func TestModelsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/models", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	resp := decodeBody[types.ArtifactsResponse](t, w)
	if len(resp.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts got %d", len(resp.Artifacts))
	}
	for _, a := range resp.Artifacts {
		if a.Present || a.Download != types.DownloadAbsent {
			t.Fatalf("expected absent artifact got %+v", a)
		}
	}
}

func TestModelStatusAndNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/models/t2v-model/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	e := decodeBody[types.CacheEntry](t, w)
	if e.ArtifactID != "t2v-model" || e.Status != types.DownloadAbsent {
		t.Fatalf("unexpected entry: %+v", e)
	}

	w = env.do(t, http.MethodGet, "/models/nope/status", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
	er := decodeBody[types.ErrorResponse](t, w)
	if er.Code != http.StatusNotFound || er.Error == "" {
		t.Fatalf("unexpected error payload: %+v", er)
	}
}

func TestModelDownloadAndEvict(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/models/t2v-model/download", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d body=%s", w.Code, w.Body.String())
	}
	// download runs off the request path; poll until present
	deadline := time.Now().Add(5 * time.Second)
	for !env.cache.Present("t2v-model") {
		if time.Now().After(deadline) {
			t.Fatalf("download never completed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w = env.do(t, http.MethodDelete, "/models/t2v-model", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := decodeBody[map[string]bool](t, w)
	if !body["evicted"] {
		t.Fatalf("expected evicted=true got %v", body)
	}
	if env.cache.Present("t2v-model") {
		t.Fatalf("artifact still present after evict")
	}

	w = env.do(t, http.MethodPost, "/models/nope/download", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}

func TestModelsCleanup(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"t2v-model", "i2v-model"} {
		if err := env.cache.EnsureDownloaded(context.Background(), id, nil); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
	}
	w := env.do(t, http.MethodPost, "/models/cleanup", map[string][]string{"keep": {"i2v-model"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody[map[string]int](t, w)
	if body["evicted"] != 1 {
		t.Fatalf("expected 1 evicted got %v", body)
	}
	if env.cache.Present("t2v-model") || !env.cache.Present("i2v-model") {
		t.Fatalf("keep list not honored")
	}
}

func TestRequestBodyLimit(t *testing.T) {
	env := newTestEnv(t)
	SetMaxBodyBytes(64)
	t.Cleanup(func() { SetMaxBodyBytes(0) })
	big := strings.Repeat("x", 4096)
	w := env.do(t, http.MethodPost, "/generate/text-to-video", types.GenerateRequest{
		UserID: "alice", Prompt: big,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body got %d", w.Code)
	}
}

func TestModelsStatsAndRecommend(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/models/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	stats := decodeBody[types.CacheStats](t, w)
	if stats.TotalCount != 2 || stats.DownloadedCount != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	w = env.do(t, http.MethodGet, "/models/recommend?use_case=high_quality", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	rec := decodeBody[map[string][]string](t, w)
	if len(rec["recommended"]) == 0 {
		t.Fatalf("expected recommendations got %v", rec)
	}

	w = env.do(t, http.MethodGet, "/models/recommend?gpu_memory_gb=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestGenerateTextToVideo(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ledger.CreateAccount("alice", 100, false); err != nil {
		t.Fatalf("create account: %v", err)
	}

	w := env.do(t, http.MethodPost, "/generate/text-to-video", types.GenerateRequest{
		UserID: "alice", Prompt: "a cat surfing", NumFrames: 97,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d body=%s", w.Code, w.Body.String())
	}
	resp := decodeBody[types.GenerateResponse](t, w)
	if resp.TaskID == "" || resp.Status != string(types.TaskPending) || resp.Cost != 40 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// the status endpoint tracks the task to completion
	deadline := time.Now().Add(5 * time.Second)
	for {
		sw := env.do(t, http.MethodGet, "/status/"+resp.TaskID, nil)
		if sw.Code != http.StatusOK {
			t.Fatalf("status=%d", sw.Code)
		}
		task := decodeBody[types.Task](t, sw)
		if task.Status.IsTerminal() {
			if task.Status != types.TaskCompleted || task.OutputLocation == "" {
				t.Fatalf("unexpected terminal task: %+v", task)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGenerateDefaultsNumFrames(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ledger.CreateAccount("alice", 1000, false); err != nil {
		t.Fatalf("create account: %v", err)
	}
	w := env.do(t, http.MethodPost, "/generate/text-to-video", types.GenerateRequest{
		UserID: "alice", Prompt: "sunrise timelapse",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d body=%s", w.Code, w.Body.String())
	}
	resp := decodeBody[types.GenerateResponse](t, w)
	// 97 frames -> 4 seconds -> 40 credits
	if resp.Cost != 40 {
		t.Fatalf("expected default frame count pricing, cost %d", resp.Cost)
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ledger.CreateAccount("poor", 5, false); err != nil {
		t.Fatalf("create account: %v", err)
	}

	// insufficient credits -> 402
	w := env.do(t, http.MethodPost, "/generate/text-to-video", types.GenerateRequest{
		UserID: "poor", Prompt: "expensive dreams", NumFrames: 97,
	})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", w.Code)
	}

	// unknown user -> 404
	w = env.do(t, http.MethodPost, "/generate/text-to-video", types.GenerateRequest{
		UserID: "ghost", Prompt: "boo", NumFrames: 97,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}

	// invalid params -> 400
	w = env.do(t, http.MethodPost, "/generate/image-to-video", types.GenerateRequest{
		UserID: "poor", Prompt: "no image", NumFrames: 10,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}

	// missing user id -> 400
	w = env.do(t, http.MethodPost, "/generate/text-to-video", types.GenerateRequest{Prompt: "p"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}

	// wrong content type -> 415
	req := httptest.NewRequest(http.MethodPost, "/generate/text-to-video", strings.NewReader("prompt=p"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 got %d", rec.Code)
	}

	// malformed body -> 400
	req = httptest.NewRequest(http.MethodPost, "/generate/text-to-video", strings.NewReader("{nope"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestTasksListEndpoint(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ledger.CreateAccount("alice", 1000, false); err != nil {
		t.Fatalf("create account: %v", err)
	}
	w := env.do(t, http.MethodPost, "/generate/text-to-video", types.GenerateRequest{
		UserID: "alice", Prompt: "first", NumFrames: 24,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit: %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/tasks?user_id=alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := decodeBody[map[string][]types.Task](t, w)
	if len(body["tasks"]) != 1 {
		t.Fatalf("expected 1 task got %d", len(body["tasks"]))
	}

	w = env.do(t, http.MethodGet, "/tasks", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user_id got %d", w.Code)
	}
}

func TestTaskStatusNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/status/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}

func TestSignupEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/users", types.SignupRequest{UserID: "newbie"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	resp := decodeBody[types.BalanceResponse](t, w)
	if resp.UserID != "newbie" || resp.Balance != 300 || resp.Unlimited {
		t.Fatalf("unexpected signup response: %+v", resp)
	}

	// duplicate -> 409
	w = env.do(t, http.MethodPost, "/users", types.SignupRequest{UserID: "newbie"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", w.Code)
	}

	// missing user id -> 400
	w = env.do(t, http.MethodPost, "/users", types.SignupRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}

	// unlimited tier
	w = env.do(t, http.MethodPost, "/users", types.SignupRequest{UserID: "vip", Unlimited: true})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", w.Code)
	}
	resp = decodeBody[types.BalanceResponse](t, w)
	if !resp.Unlimited {
		t.Fatalf("expected unlimited account: %+v", resp)
	}
}

func TestCreditsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	if err := env.ledger.CreateAccount("alice", 300, false); err != nil {
		t.Fatalf("create account: %v", err)
	}

	w := env.do(t, http.MethodGet, "/credits/alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	resp := decodeBody[types.BalanceResponse](t, w)
	if resp.UserID != "alice" || resp.Balance != 300 || resp.Unlimited {
		t.Fatalf("unexpected balance: %+v", resp)
	}
	if len(resp.Transactions) != 1 {
		t.Fatalf("expected signup tx in history got %+v", resp.Transactions)
	}

	w = env.do(t, http.MethodPost, "/credits/alice/add", types.CreditRequest{Amount: 50})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp = decodeBody[types.BalanceResponse](t, w)
	if resp.Balance != 350 {
		t.Fatalf("expected 350 got %d", resp.Balance)
	}

	// invalid amount -> 400, unknown user -> 404
	w = env.do(t, http.MethodPost, "/credits/alice/add", types.CreditRequest{Amount: -5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/credits/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		w := env.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", path, w.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "vividd_") {
		t.Fatalf("expected vividd metrics in exposition")
	}
}
