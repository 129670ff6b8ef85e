package session

import "sync"

// Session is the client-local identity state. It starts anonymous and becomes
// authenticated once; there is no logout.
type Session struct {
	mu            sync.RWMutex
	currentUser   string
	privateTarget string
	roster        []string
}

func (s *Session) CurrentUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUser
}

func (s *Session) Authenticated() bool {
	return s.CurrentUser() != ""
}

// PrivateTarget is the user the next send is addressed to, or "".
func (s *Session) PrivateTarget() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.privateTarget
}

func (s *Session) Roster() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.roster...)
}

// login returns false if the session was already authenticated.
func (s *Session) login(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentUser != "" {
		return false
	}
	s.currentUser = username
	return true
}

func (s *Session) replaceRoster(users []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster = append([]string(nil), users...)
}

func (s *Session) inRoster(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.roster {
		if u == username {
			return true
		}
	}
	return false
}

func (s *Session) arm(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privateTarget = target
}

// takeTarget returns the armed target and disarms it.
func (s *Session) takeTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.privateTarget
	s.privateTarget = ""
	return target
}
