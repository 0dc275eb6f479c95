// Package redcapmock is an in-memory fake of the REDCap API for tests and
// local development. It serves the form-encoded POST endpoint, keeps the
// records of one project, and can be told to fail upcoming requests.
package redcapmock

import (
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
)

// Path is where the API is served.
const Path = "/api/"

// Failure describes how the server answers a request instead of serving it.
type Failure struct {
	// Status is the HTTP status to answer with. Zero means 200.
	Status int

	// Body is the raw body sent with Status.
	Body string

	// APIError, when set, is sent as {"error": APIError} in the body.
	APIError string

	// Drop closes the connection without answering.
	Drop bool

	// Delay is slept before answering.
	Delay time.Duration
}

// Server is a fake REDCap server. It is safe for concurrent use.
type Server struct {
	logger hclog.Logger

	mu       sync.Mutex
	fixture  *Fixture
	records  []map[string]string
	failures map[string][]Failure
	requests map[string]int
	lastForm map[string]map[string][]string
}

// New returns a server hosting f. A nil f means DefaultFixture.
func New(f *Fixture, logger hclog.Logger) *Server {
	if f == nil {
		f = DefaultFixture()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	records := make([]map[string]string, 0, len(f.Records))
	for _, r := range f.Records {
		records = append(records, maps.Clone(r))
	}

	return &Server{
		logger:   logger.Named("redcap-mock"),
		fixture:  f,
		records:  records,
		failures: make(map[string][]Failure),
		requests: make(map[string]int),
		lastForm: make(map[string]map[string][]string),
	}
}

// Handler returns the router serving Path.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)

	r.Post(Path, s.serveAPI)
	// REDCap also accepts the endpoint without the trailing slash.
	r.Post("/api", s.serveAPI)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// SetVersion changes the version the server reports.
func (s *Server) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixture.Version = v
}

// FailNext queues failures for the next requests with the given content
// parameter. An empty content matches every request.
func (s *Server) FailNext(content string, failures ...Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[content] = append(s.failures[content], failures...)
}

// Requests returns how many requests with the given content were received,
// failed ones included. An empty content counts all requests.
func (s *Server) Requests(content string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[content]
}

// LastForm returns the form of the most recent request with the given
// content.
func (s *Server) LastForm(content string) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm[content]
}

// Records returns a copy of the stored records.
func (s *Server) Records() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, maps.Clone(r))
	}
	return out
}

// nextFailure pops the failure queued for content, if any.
func (s *Server) nextFailure(content string) (Failure, bool) {
	for _, key := range []string{content, ""} {
		if q := s.failures[key]; len(q) > 0 {
			s.failures[key] = q[1:]
			return q[0], true
		}
	}
	return Failure{}, false
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
