// Package counterstest runs counters servers for unit tests.
package counterstest

import (
	"net/http"
	"net/http/httptest"

	log "github.com/sirupsen/logrus"

	"github.com/m-lab/counters/counters"
	"github.com/m-lab/counters/handler"
)

// NewCountersServer creates an httptest.Server that responds to counters API
// requests using the given backend. Useful for testing the remote backend.
func NewCountersServer(c counters.Counters) *httptest.Server {
	mux := http.NewServeMux()
	handler.NewServer(c).Register(mux)

	srv := httptest.NewServer(mux)
	log.Debugf("Listening for counters requests on %s", srv.URL)
	return srv
}

// NewRemote returns a remote backend connected to srv.
func NewRemote(srv *httptest.Server) (*counters.Remote, error) {
	return counters.NewRemote(counters.Config{URL: srv.URL})
}
