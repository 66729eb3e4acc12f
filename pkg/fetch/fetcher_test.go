package fetch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tikiops/product-harvester/internal/testutil"
	"github.com/tikiops/product-harvester/pkg/fetch"
)

func newTestClient(t *testing.T, api *testutil.MockAPI, onRateLimited func(time.Duration)) *fetch.Client {
	t.Helper()

	client, err := fetch.NewClient(fetch.Config{
		BaseURL:   api.URL(),
		UserAgent: "harvester-test/1.0",
		Timeout:   2 * time.Second,
	}, onRateLimited)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := fetch.NewClient(fetch.Config{UserAgent: "x"}, nil); err == nil {
		t.Error("NewClient should reject empty base URL")
	}
	if _, err := fetch.NewClient(fetch.Config{BaseURL: "http://x"}, nil); err == nil {
		t.Error("NewClient should reject empty user-agent")
	}
}

func TestClient_Fetch_Success(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetProduct("42", `{"id":42,"name":"widget"}`)

	client := newTestClient(t, api, nil)
	payload, err := client.Fetch(context.Background(), "42")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(payload) != `{"id":42,"name":"widget"}` {
		t.Errorf("Fetch() payload = %s", payload)
	}
	if api.RequestsFor("42") != 1 {
		t.Errorf("expected exactly 1 request, got %d", api.RequestsFor("42"))
	}
}

func TestClient_Fetch_Classification(t *testing.T) {
	tests := []struct {
		name       string
		resp       testutil.MockResponse
		wantKind   fetch.FailureKind
		wantStatus int
	}{
		{
			name:       "404 is not_found",
			resp:       testutil.MockResponse{StatusCode: 404, Body: `{"error":"missing"}`},
			wantKind:   fetch.KindNotFound,
			wantStatus: 404,
		},
		{
			name:       "500 is server_error",
			resp:       testutil.MockResponse{StatusCode: 500, Body: "oops"},
			wantKind:   fetch.KindServerError,
			wantStatus: 500,
		},
		{
			name:       "503 is server_error",
			resp:       testutil.MockResponse{StatusCode: 503, Body: "maintenance"},
			wantKind:   fetch.KindServerError,
			wantStatus: 503,
		},
		{
			name:       "429 is rate_limited",
			resp:       testutil.MockResponse{StatusCode: 429, Body: "slow down"},
			wantKind:   fetch.KindRateLimited,
			wantStatus: 429,
		},
		{
			name:       "403 is client_error",
			resp:       testutil.MockResponse{StatusCode: 403, Body: "forbidden"},
			wantKind:   fetch.KindClientError,
			wantStatus: 403,
		},
		{
			name:     "invalid JSON body is malformed_response",
			resp:     testutil.MockResponse{StatusCode: 200, Body: "<html>not json</html>"},
			wantKind: fetch.KindMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := testutil.NewMockAPI()
			defer api.Close()
			api.SetResponse("1", tt.resp)

			client := newTestClient(t, api, nil)
			_, err := client.Fetch(context.Background(), "1")
			if err == nil {
				t.Fatal("Fetch() expected error")
			}

			var apiErr *fetch.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Fetch() error = %v, want *APIError", err)
			}
			if apiErr.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", apiErr.Kind, tt.wantKind)
			}
			if tt.wantStatus != 0 && apiErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestClient_Fetch_RateLimitedSignalsCooldown(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse("1", testutil.MockResponse{
		StatusCode: 429,
		Body:       "slow down",
		Headers:    map[string]string{"Retry-After": "7"},
	})

	var signalled time.Duration
	client := newTestClient(t, api, func(retryAfter time.Duration) {
		signalled = retryAfter
	})

	_, err := client.Fetch(context.Background(), "1")
	if err == nil {
		t.Fatal("Fetch() expected error")
	}
	if signalled != 7*time.Second {
		t.Errorf("cooldown signal = %v, want 7s", signalled)
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse("1", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"id":1}`,
		Delay:      500 * time.Millisecond,
	})

	client, err := fetch.NewClient(fetch.Config{
		BaseURL:   api.URL(),
		UserAgent: "harvester-test/1.0",
		Timeout:   50 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Fetch(context.Background(), "1")
	var apiErr *fetch.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Fetch() error = %v, want *APIError", err)
	}
	if apiErr.Kind != fetch.KindTimeout {
		t.Errorf("Kind = %s, want %s", apiErr.Kind, fetch.KindTimeout)
	}
}

func TestClient_Fetch_ConnectionError(t *testing.T) {
	api := testutil.NewMockAPI()
	url := api.URL()
	api.Close() // nothing is listening anymore

	client, err := fetch.NewClient(fetch.Config{
		BaseURL:   url,
		UserAgent: "harvester-test/1.0",
		Timeout:   time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.Fetch(context.Background(), "1")
	var apiErr *fetch.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Fetch() error = %v, want *APIError", err)
	}
	if apiErr.Kind != fetch.KindConnectionError {
		t.Errorf("Kind = %s, want %s", apiErr.Kind, fetch.KindConnectionError)
	}
}

func TestClient_Fetch_CancelledContext(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetProduct("1", `{"id":1}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, api, nil)
	_, err := client.Fetch(ctx, "1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
	if api.RequestsFor("1") != 0 {
		t.Error("no request should be issued on a cancelled context")
	}
}
