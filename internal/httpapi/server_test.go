package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsroom/internal/db"
	"horse.fit/newsroom/internal/tasks"
)

type testEnv struct {
	store *db.MemoryStore
	queue *tasks.MemoryQueue
	srv   *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := db.NewMemoryStore()
	queue := tasks.NewMemoryQueue()
	return &testEnv{
		store: store,
		queue: queue,
		srv:   NewServer(store, tasks.NewClient(queue), zerolog.Nop(), Options{}),
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func decodeData[T any](t *testing.T, resp envelope) T {
	t.Helper()

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("encode data: %v", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, resp)
	}
	data := decodeData[map[string]any](t, resp)
	if data["service"] != "newsroom" {
		t.Fatalf("unexpected service: %v", data["service"])
	}
}

func TestStatsReportsCounts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.store.InsertArticle(ctx, &db.Article{Title: "a", Source: "Wire", URL: "https://example.com/a"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec, resp := env.do(t, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	counts := decodeData[db.Counts](t, resp)
	if counts.Articles != 1 || counts.Unprocessed != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	env.store.SetFault(func(op string, _ int64) error {
		if op == "Counts" {
			return errors.New("connection reset")
		}
		return nil
	})
	rec, resp = env.do(t, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusInternalServerError || resp.Status != "error" {
		t.Fatalf("expected error response, got %d %+v", rec.Code, resp)
	}
}

func TestArticleDetail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	article := &db.Article{Title: "Rates rise", Source: "Wire", URL: "https://example.com/rates"}
	if _, err := env.store.InsertArticle(ctx, article); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tag, _, err := env.store.GetOrCreateTag(ctx, "interest rates")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	if _, err := env.store.LinkTag(ctx, article.ID, tag.ID); err != nil {
		t.Fatalf("link: %v", err)
	}

	rec, resp := env.do(t, http.MethodGet, "/api/v1/articles/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	detail := decodeData[articleDetail](t, resp)
	if detail.Title != "Rates rise" || len(detail.Tags) != 1 || detail.Tags[0] != "interest rates" {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/articles/42", "")
	if rec.Code != http.StatusNotFound || resp.Status != "fail" {
		t.Fatalf("expected not found, got %d %+v", rec.Code, resp)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/articles/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected validation failure, got %d", rec.Code)
	}
}

func TestEnqueueAndReadTaskStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodPost, "/api/v1/tasks", `{"task":"fetch_news"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: %d %+v", rec.Code, resp)
	}
	handle := decodeData[tasks.Handle](t, resp)
	if handle.Name != tasks.FetchNews || handle.ID == "" {
		t.Fatalf("unexpected handle: %+v", handle)
	}

	rec, resp = env.do(t, http.MethodGet, "/api/v1/tasks/"+handle.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	status := decodeData[tasks.Status](t, resp)
	if status.State != tasks.StatePending || status.Name != tasks.FetchNews {
		t.Fatalf("unexpected task status: %+v", status)
	}

	task, err := env.queue.Pop(context.Background(), 10*time.Millisecond)
	if err != nil || task == nil || task.ID != handle.ID {
		t.Fatalf("expected queued task %s, got %+v, %v", handle.ID, task, err)
	}
}

func TestEnqueueValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	cases := []struct {
		name string
		body string
	}{
		{name: "unknown task", body: `{"task":"rebuild_index"}`},
		{name: "malformed body", body: `{"task":`},
		{name: "missing article id", body: `{"task":"process_article"}`},
		{name: "negative article id", body: `{"task":"process_article","article_id":-3}`},
	}
	for _, tc := range cases {
		rec, resp := env.do(t, http.MethodPost, "/api/v1/tasks", tc.body)
		if rec.Code != http.StatusBadRequest || resp.Status != "fail" {
			t.Fatalf("%s: expected validation failure, got %d %+v", tc.name, rec.Code, resp)
		}
	}
	if ready, delayed := env.queue.Pending(); ready+delayed != 0 {
		t.Fatalf("expected nothing enqueued, got ready=%d delayed=%d", ready, delayed)
	}
}

func TestProcessArticleTrigger(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodPost, "/api/v1/articles/7/process", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: %d %+v", rec.Code, resp)
	}

	task, err := env.queue.Pop(context.Background(), 10*time.Millisecond)
	if err != nil || task == nil {
		t.Fatalf("expected queued task, got %+v, %v", task, err)
	}
	var args tasks.ArticleArgs
	if err := json.Unmarshal(task.Args, &args); err != nil {
		t.Fatalf("decode args: %v", err)
	}
	if task.Name != tasks.ProcessArticle || args.ArticleID != 7 {
		t.Fatalf("unexpected task: %+v args=%+v", task, args)
	}
}

func TestTaskStatusNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, id := range []string{"missing", "6f1c1f5e-3f5d-4a55-9a53-5b8a8f0c2f10"} {
		rec, resp := env.do(t, http.MethodGet, "/api/v1/tasks/"+id, "")
		if rec.Code != http.StatusNotFound || resp.Status != "fail" {
			t.Fatalf("%s: expected not found, got %d %+v", id, rec.Code, resp)
		}
	}
}

func TestUnknownRouteUsesJSend(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || resp.Status != "fail" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, resp)
	}
}
