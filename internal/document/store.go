package document

import "sync"

// Store holds the executor's open documents and tracks which one is
// active. A nil active document is a valid state: commands that need a
// document fail with a structured error until one is opened.
type Store struct {
	mu     sync.Mutex
	open   map[string]*Design
	active *Design
}

// NewStore returns an empty store with no active document.
func NewStore() *Store {
	return &Store{open: make(map[string]*Design)}
}

// Open creates (or reopens) a document by name and makes it active.
func (s *Store) Open(name string) *Design {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.open[name]
	if !ok {
		d = New(name)
		s.open[name] = d
	}
	s.active = d
	return d
}

// Active returns the active document, or nil if none is open.
func (s *Store) Active() *Design {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close removes a document. Closing the active document leaves the
// store with no active document.
func (s *Store) Close(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.open[name]
	if !ok {
		return
	}
	delete(s.open, name)
	if s.active == d {
		s.active = nil
	}
}
