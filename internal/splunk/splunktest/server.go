// Package splunktest provides an in-process fake of the search platform's
// REST API for tests and local runs.
package splunktest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Default credential and session key accepted by a new Server.
const (
	Username   = "analyst"
	Password   = "s3cret"
	SessionKey = "test-session-key"
	CookieName = "splunkd_8000"
)

// Options control which paths of the fake succeed.
type Options struct {
	// TokenLoginStatus overrides the token login response status. Zero means
	// 200 with SessionKey for valid credentials.
	TokenLoginStatus int
	// EmptySessionKey makes a successful token login omit the key.
	EmptySessionKey bool
	// WebLoginDisabled makes web login answer without a session cookie.
	WebLoginDisabled bool
	// RejectCookies makes authenticated endpoints refuse cookie-only calls.
	RejectCookies bool

	// SubmitStatus overrides the job creation status. Zero means 201.
	SubmitStatus int
	// PollsUntilDone is the number of status checks that report not done
	// before the job completes. Negative means never.
	PollsUntilDone int
	// StatusFailAt makes the Nth status check (1-based) answer 500.
	StatusFailAt int
	// JobFails marks the job failed on the first status check.
	JobFails bool

	// ResultsStatus overrides the results status. Zero means 200, or 204
	// when Rows is empty.
	ResultsStatus int
	// Rows is the result set returned by the results endpoint.
	Rows []map[string]any
}

// Server is a fake search platform.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	opts        Options
	statusCalls map[string]int
	requests    []Request
}

// Request records one call received by the fake.
type Request struct {
	Method        string
	Path          string
	Authorization string
	Form          map[string]string
	Query         map[string]string
}

// NewServer starts a fake platform. Callers must Close it.
func NewServer(opts Options) *Server {
	s := newServer(opts)
	s.Server = httptest.NewServer(s.Handler())
	return s
}

// NewHandler returns the fake platform as a handler for a caller-owned
// listener.
func NewHandler(opts Options) http.Handler {
	return newServer(opts).Handler()
}

func newServer(opts Options) *Server {
	return &Server{
		opts:        opts,
		statusCalls: make(map[string]int),
	}
}

// Handler returns the routed API without starting a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Post("/services/auth/login", s.handleTokenLogin)
	r.Post("/en-US/account/login", s.handleWebLogin)
	r.Get("/en-US/app/launcher/home", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/services/search/jobs", s.handleSubmit)
		r.Get("/services/search/jobs/{sid}", s.handleStatus)
		r.Get("/services/search/jobs/{sid}/results", s.handleResults)
	})

	return r
}

// Requests returns a copy of the calls received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// StatusCalls returns how many status checks the job received.
func (s *Server) StatusCalls(sid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls[sid]
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		rec := Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			Form:          flatten(r.PostForm),
			Query:         flatten(r.URL.Query()),
		}
		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Splunk "+SessionKey {
			next.ServeHTTP(w, r)
			return
		}
		if ck, err := r.Cookie(CookieName); err == nil && ck.Value != "" && !s.opts.RejectCookies {
			next.ServeHTTP(w, r)
			return
		}
		writeMessages(w, http.StatusUnauthorized, "call not properly authenticated")
	})
}

func (s *Server) validCredential(r *http.Request) bool {
	return r.PostForm.Get("username") == Username && r.PostForm.Get("password") == Password
}

func (s *Server) handleTokenLogin(w http.ResponseWriter, r *http.Request) {
	if s.opts.TokenLoginStatus != 0 && s.opts.TokenLoginStatus != http.StatusOK {
		writeMessages(w, s.opts.TokenLoginStatus, "login disabled")
		return
	}
	if !s.validCredential(r) {
		writeMessages(w, http.StatusUnauthorized, "Login failed")
		return
	}
	key := SessionKey
	if s.opts.EmptySessionKey {
		key = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionKey": key})
}

func (s *Server) handleWebLogin(w http.ResponseWriter, r *http.Request) {
	if s.opts.WebLoginDisabled || !s.validCredential(r) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>login</html>"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: uuid.NewString(), Path: "/", HttpOnly: true})
	http.Redirect(w, r, "/en-US/app/launcher/home", http.StatusSeeOther)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.opts.SubmitStatus != 0 && s.opts.SubmitStatus != http.StatusCreated {
		writeMessages(w, s.opts.SubmitStatus, "Error in 'search' command")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sid": uuid.NewString()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")

	s.mu.Lock()
	s.statusCalls[sid]++
	n := s.statusCalls[sid]
	s.mu.Unlock()

	if s.opts.StatusFailAt > 0 && n == s.opts.StatusFailAt {
		writeMessages(w, http.StatusInternalServerError, "status unavailable")
		return
	}

	content := map[string]any{
		"isDone":        false,
		"isFailed":      false,
		"dispatchState": "RUNNING",
		"resultCount":   0,
	}
	switch {
	case s.opts.JobFails:
		content["isFailed"] = true
		content["dispatchState"] = "FAILED"
		content["messages"] = []map[string]string{{"type": "FATAL", "text": "search crashed"}}
	case s.opts.PollsUntilDone >= 0 && n > s.opts.PollsUntilDone:
		content["isDone"] = true
		content["dispatchState"] = "DONE"
		content["resultCount"] = len(s.opts.Rows)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entry": []map[string]any{{"name": sid, "content": content}},
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	status := s.opts.ResultsStatus
	if status == 0 {
		status = http.StatusOK
		if len(s.opts.Rows) == 0 {
			status = http.StatusNoContent
		}
	}

	switch status {
	case http.StatusOK:
		rows := s.opts.Rows
		if rows == nil {
			rows = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"preview": false, "results": rows})
	case http.StatusNoContent:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMessages(w, status, "results unavailable")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessages(w http.ResponseWriter, status int, text string) {
	writeJSON(w, status, map[string]any{
		"messages": []map[string]string{{"type": "ERROR", "text": text}},
	})
}

func flatten(v map[string][]string) map[string]string {
	out := make(map[string]string, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}
