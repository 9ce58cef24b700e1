package rtdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	*httptest.Server

	mu      sync.Mutex
	patches []map[string]interface{}
	queries []string
	events  chan string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{events: make(chan string, 10)}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.queries = append(fs.queries, r.URL.RawQuery)
	fs.mu.Unlock()

	switch {
	case r.Header.Get("Accept") == "text/event-stream":
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		_, _ = fmt.Fprint(w, "event: put\ndata: {\"path\":\"/\",\"data\":{\"C1\":{\"name\":\"Maths\"}}}\n\n")
		flusher.Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-fs.events:
				_, _ = fmt.Fprint(w, ev)
				flusher.Flush()
			}
		}

	case r.Method == http.MethodGet && r.URL.Path == "/classes/C1.json":
		_, _ = io.WriteString(w, `{"name":"Maths"}`)
	case r.Method == http.MethodGet && r.URL.Path == "/denied.json":
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"Permission denied"}`)
	case r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `null`)

	case r.Method == http.MethodPatch:
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fs.mu.Lock()
		fs.patches = append(fs.patches, body)
		fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, fs *fakeServer) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), Options{URL: fs.URL + "/", Secret: "s3cret"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Get(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs)
	ctx := context.Background()

	v, err := c.Get(ctx, "classes/C1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Maths"}, v)

	v, err = c.Get(ctx, "classes/C2")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = c.Get(ctx, "denied")
	var apiErr *APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "Permission denied", apiErr.Message)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Contains(t, fs.queries, "auth=s3cret")
}

func TestClient_Update(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs)

	err := c.Update(context.Background(), "classes", map[string]interface{}{
		"C1/assignments/A1/studentAnswers/S1/status": "overdue",
		"C1/assignments/A1/points":                   nil,
	})
	require.NoError(t, err)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Len(t, fs.patches, 1)
	assert.Equal(t, map[string]interface{}{
		"C1/assignments/A1/studentAnswers/S1/status": "overdue",
		"C1/assignments/A1/points":                   nil,
	}, fs.patches[0])
}

func TestClient_Subscribe(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs)

	payloads := make(chan map[string]interface{}, 10)
	sub, err := c.Subscribe(context.Background(), "classes", func(p map[string]interface{}) { payloads <- p })
	require.NoError(t, err)

	next := func() map[string]interface{} {
		select {
		case p := <-payloads:
			return p
		case <-time.After(2 * time.Second):
			t.Fatal("no notification")
			return nil
		}
	}

	assert.Equal(t, map[string]interface{}{"C1": map[string]interface{}{"name": "Maths"}}, next())

	fs.events <- "event: keep-alive\ndata: null\n\n"
	fs.events <- "event: patch\ndata: {\"path\":\"/C1\",\"data\":{\"name\":\"Physics\",\"room\":\"B2\"}}\n\n"
	assert.Equal(t, map[string]interface{}{
		"C1": map[string]interface{}{"name": "Physics", "room": "B2"},
	}, next())

	fs.events <- "event: put\ndata: {\"path\":\"/C1/room\",\"data\":null}\n\n"
	assert.Equal(t, map[string]interface{}{"C1": map[string]interface{}{"name": "Physics"}}, next())

	require.NoError(t, sub.Cancel())
	require.NoError(t, sub.Cancel())
}

func TestClient_nodeURL(t *testing.T) {
	c := &Client{baseURL: "https://masomo.firebaseio.com"}
	tests := []struct {
		path string
		want string
	}{
		{path: "", want: "https://masomo.firebaseio.com/.json"},
		{path: "classes", want: "https://masomo.firebaseio.com/classes.json"},
		{path: "/classes/C 1/", want: "https://masomo.firebaseio.com/classes/C%201.json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := c.nodeURL(tt.path); got != tt.want {
				t.Errorf("nodeURL() = %v, want %v", got, tt.want)
			}
		})
	}
}
