package sample

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
)

// Manager owns loaded samples on the control thread. The audio thread only
// sees *Sample pointers handed to it through structural edits; reference
// counts are changed under the engine's structure lock.
type Manager struct {
	mu         sync.Mutex
	sampleRate int
	nextID     ID
	byID       map[ID]*Sample
	byPath     map[string]*Sample
	log        *slog.Logger
}

// NewManager creates a manager that converts loaded files to sampleRate.
func NewManager(sampleRate int) *Manager {
	return &Manager{
		sampleRate: sampleRate,
		nextID:     1,
		byID:       make(map[ID]*Sample),
		byPath:     make(map[string]*Sample),
		log:        slog.Default(),
	}
}

// SetLogger replaces the manager's logger.
func (m *Manager) SetLogger(l *slog.Logger) {
	if l != nil {
		m.log = l
	}
}

// Load returns the sample for path, decoding it on first use.
func (m *Manager) Load(path string) (*Sample, error) {
	key := filepath.Clean(path)
	m.mu.Lock()
	if s, ok := m.byPath[key]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := LoadWAV(key, m.sampleRate)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.byPath[key]; ok {
		return prev, nil
	}
	m.register(s)
	m.byPath[key] = s
	m.log.Info("sample loaded", "id", s.ID, "path", key, "frames", s.Frames, "channels", s.Channels, "format", s.Format)
	return s, nil
}

// Add registers an in-memory sample and assigns its ID.
func (m *Manager) Add(s *Sample) ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.register(s)
	if s.Path != "" {
		m.byPath[filepath.Clean(s.Path)] = s
	}
	return s.ID
}

func (m *Manager) register(s *Sample) {
	s.ID = m.nextID
	m.nextID++
	m.byID[s.ID] = s
}

// Get looks a sample up by ID.
func (m *Manager) Get(id ID) (*Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	return s, ok
}

// Len returns the number of registered samples.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Purge drops every sample no zone references and returns the dropped IDs in
// ascending order. Call it only after the audio thread acknowledged a purge
// request, so no voice can still be reading a dropped sample.
func (m *Manager) Purge() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dropped []ID
	for id, s := range m.byID {
		if s.Refs() > 0 {
			continue
		}
		delete(m.byID, id)
		if s.Path != "" {
			delete(m.byPath, filepath.Clean(s.Path))
		}
		dropped = append(dropped, id)
	}
	sort.Slice(dropped, func(i, j int) bool { return dropped[i] < dropped[j] })
	if len(dropped) > 0 {
		m.log.Info("samples purged", "count", len(dropped))
	}
	return dropped
}
