// Package apifytest runs an in-process stand-in for the actor API so the
// client, orchestrator and HTTP handlers can be tested end to end.
package apifytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"instalytics/pkg/instagram"
)

// Server is a fake actor API keyed by profile handle
type Server struct {
	server *httptest.Server

	mu       sync.RWMutex
	profiles map[string][]instagram.RawProfile
	posts    map[string][]instagram.RawPost
	failures map[string]string        // "<mode>:<handle>" -> terminal run status
	statuses map[string]int           // "<mode>:<handle>" -> HTTP status on start
	delays   map[string]time.Duration // "<mode>:<handle>" -> delay before start responds
	runs     map[string]*run
	pending  int // polls a run spends RUNNING before finishing

	runCount   int32
	lastInputs sync.Map // mode -> last decoded input
	Token      string
}

type run struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	DatasetID string `json:"defaultDatasetId"`
	polls     int
	final     string
	items     interface{}
}

// NewServer starts a fake actor API
func NewServer() *Server {
	s := &Server{
		profiles: make(map[string][]instagram.RawProfile),
		posts:    make(map[string][]instagram.RawPost),
		failures: make(map[string]string),
		statuses: make(map[string]int),
		delays:   make(map[string]time.Duration),
		runs:     make(map[string]*run),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/acts/", s.handleStart)
	mux.HandleFunc("/v2/actor-runs/", s.handleRun)
	mux.HandleFunc("/v2/datasets/", s.handleItems)
	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the base URL to configure the client with
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down
func (s *Server) Close() {
	s.server.Close()
}

// RunCount returns how many actor runs were started
func (s *Server) RunCount() int {
	return int(atomic.LoadInt32(&s.runCount))
}

// LastInput returns the last input posted for "details" or "posts"
func (s *Server) LastInput(mode string) map[string]interface{} {
	v, ok := s.lastInputs.Load(mode)
	if !ok {
		return nil
	}
	return v.(map[string]interface{})
}

// SetProfile registers the details result for a handle
func (s *Server) SetProfile(handle string, items ...instagram.RawProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[handle] = items
}

// SetPosts registers the posts result for a handle
func (s *Server) SetPosts(handle string, items ...instagram.RawPost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[handle] = items
}

// FailRun makes runs for the mode and handle end in the given status
func (s *Server) FailRun(mode, handle, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[mode+":"+handle] = status
}

// RejectStart makes starting a run for the mode and handle return an HTTP status
func (s *Server) RejectStart(mode, handle string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[mode+":"+handle] = status
}

// Delay holds the start request for the mode and handle
func (s *Server) Delay(mode, handle string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[mode+":"+handle] = d
}

// SetPendingPolls keeps new runs RUNNING for n polls
func (s *Server) SetPendingPolls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = n
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/runs") {
		http.NotFound(w, r)
		return
	}
	if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeError(w, http.StatusUnauthorized, "token-not-provided")
		return
	}

	var input map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-input")
		return
	}

	mode, _ := input["resultsType"].(string)
	handle := handleFromInput(input)
	key := mode + ":" + handle
	s.lastInputs.Store(mode, input)

	s.mu.RLock()
	delay := s.delays[key]
	status := s.statuses[key]
	s.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		writeError(w, status, "rejected")
		return
	}

	n := atomic.AddInt32(&s.runCount, 1)
	rn := &run{
		ID:        fmt.Sprintf("run-%d", n),
		DatasetID: fmt.Sprintf("ds-%d", n),
		Status:    "RUNNING",
		final:     "SUCCEEDED",
	}

	s.mu.Lock()
	if failure, ok := s.failures[key]; ok {
		rn.final = failure
	}
	switch mode {
	case "details":
		items := s.profiles[handle]
		if items == nil {
			items = []instagram.RawProfile{}
		}
		rn.items = items
	default:
		items := s.posts[handle]
		if items == nil {
			items = []instagram.RawPost{}
		}
		rn.items = items
	}
	rn.polls = s.pending
	if rn.polls == 0 {
		rn.Status = rn.final
	}
	s.runs[rn.ID] = rn
	snapshot := *rn
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]interface{}{"data": snapshot})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v2/actor-runs/")

	s.mu.Lock()
	rn, ok := s.runs[id]
	if ok {
		if rn.polls > 0 {
			rn.polls--
		}
		if rn.polls == 0 {
			rn.Status = rn.final
		}
	}
	var snapshot run
	if ok {
		snapshot = *rn
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "record-not-found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": snapshot})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v2/datasets/")
	datasetID := strings.TrimSuffix(rest, "/items")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rn := range s.runs {
		if rn.DatasetID == datasetID {
			writeJSON(w, http.StatusOK, rn.items)
			return
		}
	}
	writeError(w, http.StatusNotFound, "record-not-found")
}

func handleFromInput(input map[string]interface{}) string {
	urls, _ := input["directUrls"].([]interface{})
	if len(urls) == 0 {
		return ""
	}
	u, _ := urls[0].(string)
	u = strings.TrimPrefix(u, instagram.BaseURL+"/")
	return strings.TrimSuffix(u, "/")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"type": kind, "message": kind},
	})
}
