package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatd/internal/assistant"
	"chatd/internal/httpapi"
	"chatd/internal/prompt"
	"chatd/internal/store"
	"chatd/pkg/types"
)

// newServer assembles the full stack (sqlite store, queue, worker, HTTP mux)
// around the given runtime and serves it over a real listener.
func newServer(t *testing.T, rt assistant.Runtime, contextBudget int) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	engine, err := prompt.NewEngineForDialect(prompt.DialectChatML, "", "")
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	q := assistant.NewQueue(10)
	w := assistant.NewWorker(q, engine, rt, zerolog.Nop())
	stopped := make(chan struct{})
	go func() {
		w.Run()
		close(stopped)
	}()
	t.Cleanup(func() {
		q.Close()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			t.Fatalf("worker did not stop")
		}
	})

	srv := httptest.NewServer(httpapi.NewMux(httpapi.NewServer(st, q, contextBudget, zerolog.Nop())))
	t.Cleanup(srv.Close)
	return srv
}

func httpGet(t *testing.T, url string, user uuid.UUID) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("X-User-ID", user.String())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// postSSE posts a JSON payload and returns the open streaming response.
func postSSE(t *testing.T, ctx context.Context, url string, user uuid.UUID, payload string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user.String())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	return resp
}

// sseEvent is one server-sent event read off the wire.
type sseEvent struct {
	name string
	data string
}

// readEvents consumes a streaming body until EOF or maxEvents.
func readEvents(t *testing.T, body io.Reader, maxEvents int) []sseEvent {
	t.Helper()
	var out []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if cur.name != "" || cur.data != "" {
				out = append(out, cur)
				cur = sseEvent{}
				if maxEvents > 0 && len(out) >= maxEvents {
					return out
				}
			}
		}
	}
	return out
}

// decodeMessage parses a new_message payload.
func decodeMessage(t *testing.T, data string) types.Message {
	t.Helper()
	var m types.Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return m
}
