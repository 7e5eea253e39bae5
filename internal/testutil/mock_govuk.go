// Package testutil provides testing utilities for the GOV.UK API clients.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// SearchFunc builds a search response from the request query.
type SearchFunc func(query url.Values) MockResponse

// MockGovUK is a configurable mock of the GOV.UK content and search APIs.
type MockGovUK struct {
	server *httptest.Server

	mu       sync.RWMutex
	content  map[string]MockResponse
	search   SearchFunc
	failures map[string]int // remaining forced failures by path
	requests []*url.URL
}

// NewMockGovUK creates a new mock server. Unknown content paths return 404
// and search returns an empty result set until SetSearch is called.
func NewMockGovUK() *MockGovUK {
	mock := &MockGovUK{
		content:  make(map[string]MockResponse),
		failures: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockGovUK) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGovUK) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockGovUK) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetContent serves body for /api/content/<path>.
func (m *MockGovUK) SetContent(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content["/api/content/"+strings.TrimPrefix(path, "/")] = resp
}

// SetSearch installs the handler for /api/search.json.
func (m *MockGovUK) SetSearch(fn SearchFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.search = fn
}

// FailNext makes the next n requests to path answer 503.
func (m *MockGovUK) FailNext(path string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = n
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockGovUK) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns copies of all request URLs in arrival order.
func (m *MockGovUK) Requests() []*url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*url.URL, len(m.requests))
	for i, u := range m.requests {
		c := *u
		out[i] = &c
	}
	return out
}

func (m *MockGovUK) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	u := *r.URL
	m.requests = append(m.requests, &u)
	if n := m.failures[r.URL.Path]; n > 0 {
		m.failures[r.URL.Path] = n - 1
		m.mu.Unlock()
		writeResponse(w, NewServerErrorResponse())
		return
	}
	m.mu.Unlock()

	m.mu.RLock()
	content, hasContent := m.content[r.URL.Path]
	search := m.search
	m.mu.RUnlock()

	switch {
	case r.URL.Path == "/api/search.json":
		if search == nil {
			writeResponse(w, NewJSONResponse(`{"results": [], "total": 0, "start": 0}`))
			return
		}
		writeResponse(w, search(r.URL.Query()))
	case hasContent:
		writeResponse(w, content)
	default:
		writeResponse(w, MockResponse{
			StatusCode: http.StatusNotFound,
			Body:       `{"error": "not found"}`,
		})
	}
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewJSONResponse creates a standard 200 OK response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
	}
}

// NewServerErrorResponse creates a 503 response as seen from a cold backend.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"error": "Service unavailable"}`,
	}
}

// NewPagedSearch returns a SearchFunc reporting total results. Each page
// holds a single result {"start": <start>, "count": <count>} so tests can
// check which pages were fetched and in what order they were assembled.
// Pages with a higher start are answered faster when delayStep > 0.
func NewPagedSearch(total int, delayStep time.Duration) SearchFunc {
	return func(query url.Values) MockResponse {
		count, _ := strconv.Atoi(query.Get("count"))
		start, _ := strconv.Atoi(query.Get("start"))

		body := map[string]any{"total": total, "start": start, "results": []any{}}
		if query.Get("count") == "" || count > 0 {
			body["results"] = []any{map[string]any{"start": start, "count": count}}
		}

		data, err := json.Marshal(body)
		if err != nil {
			return MockResponse{StatusCode: http.StatusInternalServerError, Body: fmt.Sprintf(`{"error": %q}`, err)}
		}

		resp := NewJSONResponse(string(data))
		if delayStep > 0 && count > 0 {
			pages := total/count + 1
			resp.Delay = time.Duration(pages-start/count) * delayStep
		}
		return resp
	}
}
