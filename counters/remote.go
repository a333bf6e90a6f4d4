package counters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	v1 "github.com/m-lab/counters/api/v1"
	"github.com/m-lab/counters/metrics"
	"github.com/m-lab/counters/static"
)

var errNoURL = errors.New("remote backend requires a url")

// Remote implements Counters by forwarding every operation to a counters
// server. Any transport, status or decoding failure is returned as an
// UnavailableError.
type Remote struct {
	// HTTPClient is the client that will perform the requests. By default
	// it is initialized to http.DefaultClient.
	HTTPClient *http.Client

	// Timeout is the maximum amount of time we're willing to wait for the
	// server to respond to one request.
	Timeout time.Duration

	// BaseURL is the base url of the counters server.
	BaseURL *url.URL
}

// NewRemote creates a Remote backend for the server at cfg.URL.
func NewRemote(cfg Config) (*Remote, error) {
	if cfg.URL == "" {
		return nil, errNoURL
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = static.RemoteTimeout
	}
	return &Remote{
		HTTPClient: http.DefaultClient,
		Timeout:    timeout,
		BaseURL:    u,
	}, nil
}

// Add forwards the keys to the server's add endpoint.
func (r *Remote) Add(ctx context.Context, collection string, keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	req := &v1.AddRequest{Collection: collection, Keys: keys}
	return r.call(ctx, "add", v1.PathAdd, req, &v1.AddResult{})
}

// GetCount asks the server for the count of the collection.
func (r *Remote) GetCount(ctx context.Context, collection string) (int64, error) {
	result := &v1.GetCountResult{}
	err := r.call(ctx, "get_count", v1.PathGetCount, &v1.GetCountRequest{Collection: collection}, result)
	if err != nil {
		return 0, err
	}
	return result.Count, nil
}

// GetCounts asks the server for the counts of several collections in one
// request.
func (r *Remote) GetCounts(ctx context.Context, collections []string) (map[string]int64, error) {
	result := &v1.GetCountsResult{}
	err := r.call(ctx, "get_counts", v1.PathGetCounts, &v1.GetCountsRequest{Collections: collections}, result)
	if err != nil {
		return nil, err
	}
	if result.Counts == nil {
		result.Counts = map[string]int64{}
	}
	return result.Counts, nil
}

// GetCounters asks the server for its collection names.
func (r *Remote) GetCounters(ctx context.Context) ([]string, error) {
	result := &v1.GetCountersResult{}
	if err := r.call(ctx, "get_counters", v1.PathGetCounters, struct{}{}, result); err != nil {
		return nil, err
	}
	if result.Counters == nil {
		return []string{}, nil
	}
	return result.Counters, nil
}

// Check calls the server's check endpoint, which in turn checks the server's
// own backend.
func (r *Remote) Check(ctx context.Context) error {
	return r.call(ctx, "check", v1.PathCheck, nil, &v1.CheckResult{})
}

// call performs one request. A nil body issues a GET.
func (r *Remote) call(ctx context.Context, op, p string, body, result interface{}) error {
	t := time.Now()
	status, err := r.do(ctx, p, body, result)
	if err != nil {
		metrics.BackendRequestDuration.WithLabelValues(BackendRemote, op, status).Observe(time.Since(t).Seconds())
		return unavailable(BackendRemote, op, err)
	}
	metrics.BackendRequestDuration.WithLabelValues(BackendRemote, op, "OK").Observe(time.Since(t).Seconds())
	return nil
}

func (r *Remote) do(ctx context.Context, p string, body, result interface{}) (string, error) {
	reqctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	method := http.MethodGet
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return "marshal error", err
		}
		method = http.MethodPost
		rd = bytes.NewReader(b)
	}

	reqURL := *r.BaseURL
	reqURL.Path = path.Join("/", reqURL.Path, p)
	req, err := http.NewRequestWithContext(reqctx, method, reqURL.String(), rd)
	if err != nil {
		return "request error", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return "transport error", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "read error", err
	}

	if resp.StatusCode != http.StatusOK {
		reply := struct {
			Error *v1.Error `json:"error"`
		}{}
		if json.Unmarshal(b, &reply) == nil && reply.Error != nil {
			return http.StatusText(resp.StatusCode), fmt.Errorf("%s: %s", reply.Error.Title, reply.Error.Detail)
		}
		return http.StatusText(resp.StatusCode), fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(b, result); err != nil {
		return "malformed response", fmt.Errorf("malformed response: %w", err)
	}
	return "OK", nil
}
