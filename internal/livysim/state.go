package livysim

import (
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/livyctl/internal/livy"
)

// Store owns simulated session and statement lifecycle state.
//
// Sessions are created in starting and turn idle after a configured
// number of status reads; statements walk waiting, running, available.
type Store struct {
	mu sync.Mutex

	readyAfterPolls int
	statementPolls  int

	nextSessionID int
	sessions      map[int]*sessionState
}

type sessionState struct {
	sess       livy.Session
	polls      int
	nextID     int
	statements map[int]*statementState
}

type statementState struct {
	st    livy.Statement
	polls int
}

// NewStore builds an empty store with the given readiness pacing.
func NewStore(readyAfterPolls, statementPolls int) *Store {
	if readyAfterPolls < 0 {
		readyAfterPolls = 0
	}
	if statementPolls < 0 {
		statementPolls = 0
	}
	return &Store{
		readyAfterPolls: readyAfterPolls,
		statementPolls:  statementPolls,
		sessions:        make(map[int]*sessionState),
	}
}

// CreateSession registers a new session in starting state.
func (s *Store) CreateSession(kind string) livy.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSessionID
	s.nextSessionID++
	state := &sessionState{
		sess: livy.Session{
			ID:    id,
			Kind:  kind,
			State: livy.SessionStarting,
		},
		statements: make(map[int]*statementState),
	}
	s.sessions[id] = state
	return state.sess
}

// GetSession reads one session, advancing its readiness clock.
func (s *Store) GetSession(id int) (livy.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[id]
	if !ok {
		return livy.Session{}, false
	}
	if state.sess.State == livy.SessionStarting {
		if state.polls >= s.readyAfterPolls {
			state.sess.State = livy.SessionIdle
		} else {
			state.polls++
		}
	}
	return state.sess, true
}

// SetSessionState forces a lifecycle state, for failure scenarios.
func (s *Store) SetSessionState(id int, state livy.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return false
	}
	rec.sess.State = state
	return true
}

// ListSessions snapshots the collection without advancing any clocks.
func (s *Store) ListSessions() livy.SessionList {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := livy.SessionList{Sessions: make([]livy.Session, 0, len(s.sessions))}
	for id := 0; id < s.nextSessionID; id++ {
		if rec, ok := s.sessions[id]; ok {
			out.Sessions = append(out.Sessions, rec.sess)
		}
	}
	out.Total = len(out.Sessions)
	return out
}

// DeleteSession removes a session and its statements.
func (s *Store) DeleteSession(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// CreateStatement queues one code fragment on a session.
func (s *Store) CreateStatement(sessionID int, code string) (livy.Statement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return livy.Statement{}, false
	}
	id := rec.nextID
	rec.nextID++
	st := &statementState{
		st: livy.Statement{
			ID:      id,
			Code:    code,
			State:   livy.StatementWaiting,
			Started: time.Now().UnixMilli(),
		},
	}
	rec.statements[id] = st
	return st.st, true
}

// GetStatement reads one statement, advancing it toward completion.
func (s *Store) GetStatement(sessionID, statementID int) (livy.Statement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return livy.Statement{}, false
	}
	st, ok := rec.statements[statementID]
	if !ok {
		return livy.Statement{}, false
	}
	if st.st.State.Terminal() {
		return st.st, true
	}
	st.polls++
	if st.polls > s.statementPolls {
		st.st.State = livy.StatementAvailable
		st.st.Progress = 1.0
		st.st.Completed = time.Now().UnixMilli()
		st.st.Output = &livy.StatementOutput{
			Status:         "ok",
			ExecutionCount: st.st.ID,
			Data:           map[string]any{"text/plain": evalCode(st.st.Code)},
		}
	} else {
		st.st.State = livy.StatementRunning
		st.st.Progress = 0.5
	}
	return st.st, true
}

// SetStatementState forces a terminal statement state, for failure
// scenarios.
func (s *Store) SetStatementState(sessionID, statementID int, state livy.StatementState, evalue string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	st, ok := rec.statements[statementID]
	if !ok {
		return false
	}
	st.st.State = state
	if state == livy.StatementError {
		st.st.Output = &livy.StatementOutput{
			Status: "error",
			EName:  "SimulatedError",
			EValue: evalue,
		}
	}
	return true
}

func sessionLocation(id int) string {
	return fmt.Sprintf("/sessions/%d", id)
}

func statementLocation(sessionID, statementID int) string {
	return fmt.Sprintf("/sessions/%d/statements/%d", sessionID, statementID)
}
