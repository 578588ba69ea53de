package creation

import (
	"sync"

	"talkingphoto/internal/domain"
)

// Snapshot is the presentation-facing view of the session: the session
// fields plus the derived processing flag the UI binds to.
type Snapshot struct {
	domain.CreationSession
	IsProcessing bool
}

// sessionState owns the single active CreationSession. All mutation goes
// through methods holding the mutex, and every mutation after the pipeline
// starts carries the token it was issued; a stale token means the session
// was reset underneath an in-flight call and the mutation is discarded.
type sessionState struct {
	mu      sync.Mutex
	session domain.CreationSession
	token   int
	cancel  func()
}

func newSessionState() *sessionState {
	return &sessionState{session: domain.CreationSession{Stage: domain.StageIdle}}
}

func (s *sessionState) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{CreationSession: s.session, IsProcessing: s.session.Stage.Processing()}
}

// begin installs a fresh session in the generating-voice stage and returns
// the token guarding all later mutations. The precondition that no session
// is processing must be checked by the caller under the same lock via
// tryBegin.
func (s *sessionState) tryBegin(session domain.CreationSession, cancel func()) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Stage.Processing() {
		return 0, false
	}
	s.token++
	s.session = session
	s.session.Stage = domain.StageGeneratingVoice
	s.cancel = cancel
	return s.token, true
}

// advance applies fn to the session if token is still current.
func (s *sessionState) advance(token int, fn func(*domain.CreationSession)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token {
		return false
	}
	fn(&s.session)
	return true
}

func (s *sessionState) current(token int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return token == s.token
}

// reset cancels any in-flight work and replaces the session wholesale, so
// no observer ever sees a partially cleared session.
func (s *sessionState) reset() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.token++
	s.session = domain.CreationSession{Stage: domain.StageIdle}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
