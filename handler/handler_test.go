package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-test/deep"
	v1 "github.com/m-lab/counters/api/v1"
	"github.com/m-lab/counters/counters"
)

// failingCounters returns err from every operation.
type failingCounters struct {
	err error
}

func (f *failingCounters) Add(ctx context.Context, collection string, keys [][]byte) error {
	return f.err
}

func (f *failingCounters) GetCount(ctx context.Context, collection string) (int64, error) {
	return 0, f.err
}

func (f *failingCounters) GetCounters(ctx context.Context) ([]string, error) {
	return nil, f.err
}

func (f *failingCounters) Check(ctx context.Context) error {
	return f.err
}

func serve(t *testing.T, c counters.Counters, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewServer(c).Register(mux)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	return rw
}

func TestServer_AddAndGetCount(t *testing.T) {
	mem := counters.NewMemory()

	// "YQ==" and "Yg==" are the base64 encodings of "a" and "b".
	rw := serve(t, mem, http.MethodPost, v1.PathAdd,
		`{"collection": "person", "keys": ["YQ==", "Yg==", "YQ=="]}`)
	if rw.Code != http.StatusOK {
		t.Fatalf("Add() status = %d, want %d; body: %s", rw.Code, http.StatusOK, rw.Body.String())
	}

	rw = serve(t, mem, http.MethodPost, v1.PathGetCount, `{"collection": "person"}`)
	if rw.Code != http.StatusOK {
		t.Fatalf("GetCount() status = %d, want %d", rw.Code, http.StatusOK)
	}
	result := v1.GetCountResult{}
	if err := json.Unmarshal(rw.Body.Bytes(), &result); err != nil {
		t.Fatalf("GetCount() returned malformed body: %v", err)
	}
	if result.Count != 2 {
		t.Errorf("GetCount() = %d, want 2", result.Count)
	}
}

func TestServer_GetCountsAndCounters(t *testing.T) {
	mem := counters.NewMemory()
	ctx := context.Background()
	mem.Add(ctx, "a", [][]byte{[]byte("1"), []byte("2")})
	mem.Add(ctx, "b", [][]byte{[]byte("1")})

	rw := serve(t, mem, http.MethodPost, v1.PathGetCounts, `{"collections": ["a", "b", "c"]}`)
	counts := v1.GetCountsResult{}
	if err := json.Unmarshal(rw.Body.Bytes(), &counts); err != nil {
		t.Fatalf("GetCounts() returned malformed body: %v", err)
	}
	want := map[string]int64{"a": 2, "b": 1, "c": 0}
	if diff := deep.Equal(counts.Counts, want); diff != nil {
		t.Errorf("GetCounts() returned diff: %v", diff)
	}

	rw = serve(t, mem, http.MethodPost, v1.PathGetCounters, `{}`)
	names := v1.GetCountersResult{}
	if err := json.Unmarshal(rw.Body.Bytes(), &names); err != nil {
		t.Fatalf("GetCounters() returned malformed body: %v", err)
	}
	if len(names.Counters) != 2 {
		t.Errorf("GetCounters() = %v, want 2 collections", names.Counters)
	}
}

func TestServer_Errors(t *testing.T) {
	unavailable := &counters.UnavailableError{Backend: "redis", Op: "add", Err: errors.New("connection refused")}
	tests := []struct {
		name     string
		c        counters.Counters
		method   string
		path     string
		body     string
		wantCode int
	}{
		{
			name:     "bad-json",
			c:        counters.NewMemory(),
			method:   http.MethodPost,
			path:     v1.PathAdd,
			body:     `{"collection": `,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "wrong-method",
			c:        counters.NewMemory(),
			method:   http.MethodGet,
			path:     v1.PathGetCount,
			wantCode: http.StatusMethodNotAllowed,
		},
		{
			name:     "check-wrong-method",
			c:        counters.NewMemory(),
			method:   http.MethodPost,
			path:     v1.PathCheck,
			wantCode: http.StatusMethodNotAllowed,
		},
		{
			name:     "add-unavailable",
			c:        &failingCounters{err: unavailable},
			method:   http.MethodPost,
			path:     v1.PathAdd,
			body:     `{"collection": "a", "keys": ["YQ=="]}`,
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "get-count-internal",
			c:        &failingCounters{err: errors.New("unexpected")},
			method:   http.MethodPost,
			path:     v1.PathGetCount,
			body:     `{"collection": "a"}`,
			wantCode: http.StatusInternalServerError,
		},
		{
			name:     "get-counters-unavailable",
			c:        &failingCounters{err: unavailable},
			method:   http.MethodPost,
			path:     v1.PathGetCounters,
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "check-unavailable",
			c:        &failingCounters{err: unavailable},
			method:   http.MethodGet,
			path:     v1.PathCheck,
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "check-ok",
			c:        counters.NewMemory(),
			method:   http.MethodGet,
			path:     v1.PathCheck,
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := serve(t, tt.c, tt.method, tt.path, tt.body)
			if rw.Code != tt.wantCode {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, rw.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK {
				return
			}
			reply := struct {
				Error *v1.Error `json:"error"`
			}{}
			if err := json.Unmarshal(rw.Body.Bytes(), &reply); err != nil || reply.Error == nil {
				t.Errorf("%s %s body has no error: %s", tt.method, tt.path, rw.Body.String())
			}
		})
	}
}
