// Package wikitest provides an in-process fake wiki for tests.
package wikitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/davintoo/wiki-export-demo/internal/model"
)

// Token is the bearer token the fake wiki accepts.
const Token = "test-token"

const pagePrefix = "/api/v2/wiki/get-item/"

type response struct {
	status int
	body   []byte
}

// Server is a fake wiki host. Pages and files are registered before or
// during a test; every request is counted.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	pages map[string]response
	files map[string]response
	hits  map[string]int
}

// NewServer starts a fake wiki and closes it when t finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		pages: make(map[string]response),
		files: make(map[string]response),
		hits:  make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.requireToken)
	r.Get(pagePrefix+"*", s.handlePage)
	r.Get("/*", s.handleFile)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddPage registers a page with html content and files.
func (s *Server) AddPage(title, html string, files ...model.File) {
	if files == nil {
		files = make([]model.File, 0)
	}
	body, _ := json.Marshal(map[string]any{ //nolint:errcheck // static shape
		"data": map[string]any{
			"html":  html,
			"files": files,
		},
	})
	s.AddRawPage(title, http.StatusOK, string(body))
}

// AddRawPage registers a page answering with status and a verbatim body.
func (s *Server) AddRawPage(title string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[title] = response{status: status, body: []byte(body)}
}

// AddFile registers file content at the host-relative path.
func (s *Server) AddFile(path string, content []byte) {
	s.AddRawFile(path, http.StatusOK, content)
}

// AddRawFile registers a file answering with status and content.
func (s *Server) AddRawFile(path string, status int, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = response{status: status, body: content}
}

// PageHits returns how often the page endpoint was hit for title.
func (s *Server) PageHits(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[pagePrefix+title]
}

// FileHits returns how often path was requested.
func (s *Server) FileHits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalPageHits returns the number of page requests served.
func (s *Server) TotalPageHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.hits {
		if strings.HasPrefix(k, pagePrefix) {
			n += v
		}
	}
	return n
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Cbr-Authorization") != "Bearer "+Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimPrefix(r.URL.Path, pagePrefix)

	s.mu.Lock()
	s.hits[pagePrefix+title]++
	resp, ok := s.pages[title]
	s.mu.Unlock()

	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body) //nolint:errcheck // test server
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	resp, ok := s.files[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body) //nolint:errcheck // test server
}
