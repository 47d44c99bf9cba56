// Package session holds the latest processed run of each browser session in
// memory. A session is identified by a signed cookie.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/pipeline"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/search"
)

const (
	DefaultCookieName = "feedback_insights"
	DefaultTTL        = 2 * time.Hour

	idKey = "sid"
)

// ErrNoRun is returned when a session has no processed run.
var ErrNoRun = errors.New("no processed upload in this session")

// Config controls cookies and retention.
type Config struct {
	CookieName string
	// CookieKey signs the session cookie. It should be at least 32 bytes.
	CookieKey []byte
	Secure    bool
	// TTL is how long an untouched run is kept.
	TTL time.Duration
}

// Entry is the state kept for one session.
type Entry struct {
	Run       *pipeline.Run
	Comments  *search.Index
	UpdatedAt time.Time
}

// Store maps session IDs to their latest run.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	cookies    *sessions.CookieStore
	cookieName string
	ttl        time.Duration
	now        func() time.Time
	onChange   func(active int)
	logger     *slog.Logger
}

// NewStore creates a Store. onChange, if not nil, receives the number of
// live sessions after every change.
func NewStore(cfg Config, onChange func(active int), logger *slog.Logger) *Store {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	cookies := sessions.NewCookieStore(cfg.CookieKey)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Store{
		entries:    make(map[string]*Entry),
		cookies:    cookies,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		now:        time.Now,
		onChange:   onChange,
		logger:     logger.With(slog.String("component", "session")),
	}
}

// ID returns the caller's session ID, issuing a new cookie when the request
// carries none or an invalid one.
func (s *Store) ID(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := s.cookies.Get(r, s.cookieName)
	if err != nil {
		s.logger.Debug("discarding invalid session cookie", slog.Any("error", err))
	}
	if id, ok := sess.Values[idKey].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.NewString()
	sess.Values[idKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save session cookie: %w", err)
	}
	return id, nil
}

// Lookup reads the session ID without issuing a cookie.
func (s *Store) Lookup(r *http.Request) (string, bool) {
	sess, err := s.cookies.Get(r, s.cookieName)
	if err != nil {
		return "", false
	}
	id, ok := sess.Values[idKey].(string)
	return id, ok && id != ""
}

// Put stores run for id, replacing and releasing any earlier run.
func (s *Store) Put(id string, run *pipeline.Run, comments *search.Index) {
	s.mu.Lock()
	prev := s.entries[id]
	s.entries[id] = &Entry{Run: run, Comments: comments, UpdatedAt: s.now()}
	active := len(s.entries)
	s.mu.Unlock()

	if prev != nil {
		s.release(id, prev)
	}
	s.logger.Info("session run stored",
		slog.String("session_id", id),
		slog.String("run_id", run.ID.String()),
		slog.Bool("replaced", prev != nil))
	s.changed(active)
}

// Get returns the live entry for id and refreshes its expiry.
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || s.expired(e) {
		return nil, ErrNoRun
	}
	e.UpdatedAt = s.now()
	return e, nil
}

// Delete drops the run for id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	active := len(s.entries)
	s.mu.Unlock()

	if ok {
		s.release(id, e)
		s.changed(active)
	}
}

// Evict removes every entry idle for longer than the TTL and returns how
// many were removed.
func (s *Store) Evict() int {
	s.mu.Lock()
	var stale map[string]*Entry
	for id, e := range s.entries {
		if s.expired(e) {
			if stale == nil {
				stale = make(map[string]*Entry)
			}
			stale[id] = e
			delete(s.entries, id)
		}
	}
	active := len(s.entries)
	s.mu.Unlock()

	for id, e := range stale {
		s.release(id, e)
	}
	if len(stale) > 0 {
		s.logger.Info("expired sessions evicted",
			slog.Int("evicted", len(stale)),
			slog.Int("active", active))
		s.changed(active)
	}
	return len(stale)
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) expired(e *Entry) bool {
	return s.now().Sub(e.UpdatedAt) > s.ttl
}

func (s *Store) release(id string, e *Entry) {
	if e.Comments == nil {
		return
	}
	if err := e.Comments.Close(); err != nil {
		s.logger.Warn("failed to close comment index",
			slog.String("session_id", id),
			slog.Any("error", err))
	}
}

func (s *Store) changed(active int) {
	if s.onChange != nil {
		s.onChange(active)
	}
}
