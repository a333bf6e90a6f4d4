// Package handler provides a server and handlers exposing a counters
// backend over HTTP. The remote counters backend is its client.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/justinas/alice"
	log "github.com/sirupsen/logrus"

	"github.com/m-lab/go/rtx"
	v1 "github.com/m-lab/counters/api/v1"
	"github.com/m-lab/counters/counters"
	"github.com/m-lab/counters/metrics"
)

var errMethodNotAllowed = errors.New("method not allowed")

// Server serves counters requests using a Counters backend.
type Server struct {
	counters.Counters
}

// NewServer creates a new server for the given backend.
func NewServer(c counters.Counters) *Server {
	return &Server{Counters: c}
}

// Register adds the counters API handlers to mux.
func (s *Server) Register(mux *http.ServeMux) {
	handle := func(p string, fn http.HandlerFunc) {
		mux.Handle(p, alice.New(measure(p)).ThenFunc(fn))
	}
	handle(v1.PathAdd, s.Add)
	handle(v1.PathGetCount, s.GetCount)
	handle(v1.PathGetCounts, s.GetCounts)
	handle(v1.PathGetCounters, s.GetCounters)
	handle(v1.PathCheck, s.Check)
}

// Add implements /add requests.
func (s *Server) Add(rw http.ResponseWriter, req *http.Request) {
	result := v1.AddResult{}
	setHeaders(rw)

	var ar v1.AddRequest
	if err := readRequest(req, &ar); err != nil {
		result.Error = requestError(err)
		writeFailure(rw, "add", result.Error, &result)
		return
	}
	if err := s.Counters.Add(req.Context(), ar.Collection, ar.Keys); err != nil {
		result.Error = backendError(err)
		writeFailure(rw, "add", result.Error, &result)
		return
	}
	writeSuccess(rw, "add", &result)
}

// GetCount implements /get_count requests.
func (s *Server) GetCount(rw http.ResponseWriter, req *http.Request) {
	result := v1.GetCountResult{}
	setHeaders(rw)

	var gr v1.GetCountRequest
	if err := readRequest(req, &gr); err != nil {
		result.Error = requestError(err)
		writeFailure(rw, "get_count", result.Error, &result)
		return
	}
	n, err := s.Counters.GetCount(req.Context(), gr.Collection)
	if err != nil {
		result.Error = backendError(err)
		writeFailure(rw, "get_count", result.Error, &result)
		return
	}
	result.Count = n
	writeSuccess(rw, "get_count", &result)
}

// GetCounts implements /get_counts requests.
func (s *Server) GetCounts(rw http.ResponseWriter, req *http.Request) {
	result := v1.GetCountsResult{}
	setHeaders(rw)

	var gr v1.GetCountsRequest
	if err := readRequest(req, &gr); err != nil {
		result.Error = requestError(err)
		writeFailure(rw, "get_counts", result.Error, &result)
		return
	}
	counts, err := counters.GetCounts(req.Context(), s.Counters, gr.Collections)
	if err != nil {
		result.Error = backendError(err)
		writeFailure(rw, "get_counts", result.Error, &result)
		return
	}
	result.Counts = counts
	writeSuccess(rw, "get_counts", &result)
}

// GetCounters implements /get_counters requests.
func (s *Server) GetCounters(rw http.ResponseWriter, req *http.Request) {
	result := v1.GetCountersResult{}
	setHeaders(rw)

	if req.Method != http.MethodPost {
		result.Error = methodError()
		writeFailure(rw, "get_counters", result.Error, &result)
		return
	}
	names, err := s.Counters.GetCounters(req.Context())
	if err != nil {
		result.Error = backendError(err)
		writeFailure(rw, "get_counters", result.Error, &result)
		return
	}
	result.Counters = names
	writeSuccess(rw, "get_counters", &result)
}

// Check implements /check requests. It reports whether the backend's
// dependency is reachable.
func (s *Server) Check(rw http.ResponseWriter, req *http.Request) {
	result := v1.CheckResult{}
	setHeaders(rw)

	if req.Method != http.MethodGet {
		result.Error = methodError()
		writeFailure(rw, "check", result.Error, &result)
		return
	}
	if err := s.Counters.Check(req.Context()); err != nil {
		result.Error = backendError(err)
		writeFailure(rw, "check", result.Error, &result)
		return
	}
	writeSuccess(rw, "check", &result)
}

// readRequest decodes the JSON body of a POST request into v.
func readRequest(req *http.Request, v interface{}) error {
	if req.Method != http.MethodPost {
		return errMethodNotAllowed
	}
	b, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func requestError(err error) *v1.Error {
	if errors.Is(err, errMethodNotAllowed) {
		return methodError()
	}
	e := v1.NewError("request", "Failed to decode request", http.StatusBadRequest)
	e.Detail = err.Error()
	return e
}

func methodError() *v1.Error {
	return v1.NewError("request", http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func backendError(err error) *v1.Error {
	log.Errorf("counters backend error: %v", err)
	status := http.StatusInternalServerError
	if counters.IsUnavailable(err) {
		status = http.StatusServiceUnavailable
	}
	e := v1.NewError("backend", "Counters backend failure", status)
	e.Detail = err.Error()
	return e
}

func setHeaders(rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "application/json")
	// Prevent caching of result.
	rw.Header().Set("Cache-Control", "no-store")
}

func writeSuccess(rw http.ResponseWriter, typ string, result interface{}) {
	writeResult(rw, http.StatusOK, result)
	metrics.RequestsTotal.WithLabelValues(typ, "OK").Inc()
}

func writeFailure(rw http.ResponseWriter, typ string, e *v1.Error, result interface{}) {
	writeResult(rw, e.Status, result)
	metrics.RequestsTotal.WithLabelValues(typ, http.StatusText(e.Status)).Inc()
}

// writeResult marshals the result and writes the result to the response writer.
func writeResult(rw http.ResponseWriter, status int, result interface{}) {
	b, err := json.Marshal(result)
	// Errors are only possible when marshalling incompatible types, like functions.
	rtx.PanicOnError(err, "Failed to format result")
	rw.WriteHeader(status)
	rw.Write(b)
}

// measure records the latency of every request to the given path.
func measure(p string) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			t := time.Now()
			next.ServeHTTP(rw, req)
			metrics.RequestHandlerDuration.WithLabelValues(p).Observe(time.Since(t).Seconds())
		})
	}
}
