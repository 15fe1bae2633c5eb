package client

import "sync"

// Session is the guest's transient UI state. Each field has one writer:
// the viewer owns the selection, the upload flow owns the new-photo marker
// and the pass prompt owns the pass.
type Session struct {
	mu       sync.RWMutex
	selected int64
	newPhoto int64
	pass     string
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Select opens a photo in the viewer; 0 closes it.
func (s *Session) Select(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = id
}

func (s *Session) Selected() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// MarkNew highlights the guest's own fresh upload.
func (s *Session) MarkNew(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newPhoto = id
}

func (s *Session) NewPhoto() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newPhoto
}

// ClearNew drops the highlight, but only if it still points at id.
func (s *Session) ClearNew(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.newPhoto == id {
		s.newPhoto = 0
	}
}

// SetPass remembers the guest pass for later uploads.
func (s *Session) SetPass(pass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pass = pass
}

func (s *Session) Pass() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pass
}

// ForgetPass clears a pass the server rejected.
func (s *Session) ForgetPass() {
	s.SetPass("")
}
