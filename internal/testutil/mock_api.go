// Package testutil provides testing utilities for the product harvester.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock product endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock product API server for testing. Product
// payloads are served at /products/<id>.
type MockAPI struct {
	server *httptest.Server

	mu          sync.Mutex
	products    map[string]string
	responses   map[string]MockResponse
	failFirst   map[string]*failPlan
	requests    map[string]int
	total       int
	inFlight    int
	maxInFlight int
}

// failPlan makes an endpoint fail a fixed number of times before succeeding.
type failPlan struct {
	remaining  int
	statusCode int
	body       string
}

// NewMockAPI creates a new mock product API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		products:  make(map[string]string),
		responses: make(map[string]MockResponse),
		failFirst: make(map[string]*failPlan),
		requests:  make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server's product endpoint prefix, suitable for use as
// the fetcher's BaseURL.
func (m *MockAPI) URL() string {
	return m.server.URL + "/products"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetProduct serves the given JSON payload for the ID with status 200.
func (m *MockAPI) SetProduct(id, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = payload
}

// SetResponse configures an arbitrary response for the ID, overriding any
// product payload.
func (m *MockAPI) SetResponse(id string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[id] = resp
}

// FailTimes makes the ID answer statusCode for the first n requests, then
// fall back to the configured product payload.
func (m *MockAPI) FailTimes(id string, n, statusCode int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFirst[id] = &failPlan{remaining: n, statusCode: statusCode, body: body}
}

// RequestsFor returns the number of requests seen for the ID.
func (m *MockAPI) RequestsFor(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id]
}

// TotalRequests returns the total number of requests seen.
func (m *MockAPI) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// MaxInFlight returns the highest number of concurrently served requests
// observed, used to verify the concurrency bound.
func (m *MockAPI) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.total = 0
	m.maxInFlight = 0
}

func (m *MockAPI) handle(w http.ResponseWriter, r *http.Request) {
	const prefix = "/products/"
	if len(r.URL.Path) <= len(prefix) {
		http.NotFound(w, r)
		return
	}
	id := r.URL.Path[len(prefix):]

	m.mu.Lock()
	m.requests[id]++
	m.total++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}

	plan := m.failFirst[id]
	usePlan := plan != nil && plan.remaining > 0
	if usePlan {
		plan.remaining--
	}
	resp, hasResp := m.responses[id]
	payload, hasProduct := m.products[id]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	switch {
	case usePlan:
		w.WriteHeader(plan.statusCode)
		fmt.Fprint(w, plan.body)

	case hasResp:
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		fmt.Fprint(w, resp.Body)

	case hasProduct:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, payload)

	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"product not found"}`)
	}
}
