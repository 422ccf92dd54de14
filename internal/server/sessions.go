package server

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/platformcommons/apidesigner/internal/designer"
	"github.com/platformcommons/apidesigner/internal/spec"
)

// ErrSessionLimit is returned when the session store is full.
var ErrSessionLimit = errors.New("server: session limit reached")

// Sessions keeps designers in memory keyed by UUID.
type Sessions struct {
	mu     sync.RWMutex
	max    int
	items  map[string]*designer.Designer
	logger *slog.Logger
}

// NewSessions returns an empty store holding at most max designers. A max of
// zero or less means no limit.
func NewSessions(max int, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{max: max, items: map[string]*designer.Designer{}, logger: logger}
}

// Create starts a designer session. A non-empty document seeds the project
// through imp; the caller learns about import failures from the returned
// error and no session is kept.
func (s *Sessions) Create(document []byte, imp spec.Importer) (string, *designer.Designer, *spec.ImportReport, error) {
	id := uuid.NewString()
	log := s.logger.With("session", id)
	d := designer.New(designer.WithImporter(imp), designer.WithLogger(log))

	var report *spec.ImportReport
	if len(document) > 0 {
		r, err := d.Load(document)
		if err != nil {
			return "", nil, nil, err
		}
		report = &r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.items) >= s.max {
		return "", nil, nil, ErrSessionLimit
	}
	s.items[id] = d
	log.Debug("session created", "sessions", len(s.items))
	return id, d, report, nil
}

func (s *Sessions) Get(id string) (*designer.Designer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.items[id]
	return d, ok
}

func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	s.logger.Debug("session discarded", "session", id, "sessions", len(s.items))
	return true
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
