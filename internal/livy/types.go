package livy

import (
	"net/http"
	"strings"
)

// Method is the closed set of HTTP methods the dispatcher accepts.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodDelete Method = http.MethodDelete
)

// Known reports whether m is one of the supported methods.
func (m Method) Known() bool {
	switch m {
	case MethodGet, MethodPost, MethodDelete:
		return true
	}
	return false
}

// SessionState is the remote session lifecycle state reported by Livy.
type SessionState string

const (
	SessionStarting SessionState = "starting"
	SessionIdle     SessionState = "idle"
	SessionBusy     SessionState = "busy"
	SessionError    SessionState = "error"
	SessionDead     SessionState = "dead"
	SessionKilled   SessionState = "killed"
)

// Ready reports whether the session accepts statements.
func (s SessionState) Ready() bool {
	return s == SessionIdle
}

// Terminal reports whether the session failed and will not recover.
func (s SessionState) Terminal() bool {
	switch s {
	case SessionError, SessionDead, SessionKilled:
		return true
	}
	return false
}

// StatementState is the remote statement lifecycle state reported by Livy.
type StatementState string

const (
	StatementWaiting   StatementState = "waiting"
	StatementRunning   StatementState = "running"
	StatementAvailable StatementState = "available"
	StatementError     StatementState = "error"
	StatementCancelled StatementState = "cancelled"
)

// Terminal reports whether the statement finished, successfully or not.
func (s StatementState) Terminal() bool {
	switch s {
	case StatementAvailable, StatementError, StatementCancelled:
		return true
	}
	return false
}

// Succeeded reports whether the statement completed with output available.
func (s StatementState) Succeeded() bool {
	return s == StatementAvailable
}

// Session is one remote execution session handle.
//
// Location holds the server-assigned resource path from the create
// response location header. An empty Location marks a handle whose
// session was deleted or never created.
type Session struct {
	ID      int            `json:"id"`
	Kind    string         `json:"kind,omitempty"`
	State   SessionState   `json:"state"`
	AppID   string         `json:"appId,omitempty"`
	AppInfo map[string]any `json:"appInfo,omitempty"`
	Log     []string       `json:"log,omitempty"`

	Location string `json:"-"`
}

// Active reports whether the handle still points at a live resource path.
func (s *Session) Active() bool {
	return s != nil && strings.TrimSpace(s.Location) != ""
}

// SessionList is the GET /sessions collection envelope.
type SessionList struct {
	From     int       `json:"from"`
	Total    int       `json:"total"`
	Sessions []Session `json:"sessions"`
}

// Statement is one submitted code fragment and its reported progress.
type Statement struct {
	ID        int              `json:"id"`
	Code      string           `json:"code,omitempty"`
	State     StatementState   `json:"state"`
	Output    *StatementOutput `json:"output,omitempty"`
	Progress  float64          `json:"progress,omitempty"`
	Started   int64            `json:"started,omitempty"`
	Completed int64            `json:"completed,omitempty"`

	Location string `json:"-"`
}

// Active reports whether the handle carries a statement resource path.
func (s *Statement) Active() bool {
	return s != nil && strings.TrimSpace(s.Location) != ""
}

// StatementOutput is the Livy statement output block.
type StatementOutput struct {
	Status         string         `json:"status,omitempty"`
	ExecutionCount int            `json:"execution_count,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	EName          string         `json:"ename,omitempty"`
	EValue         string         `json:"evalue,omitempty"`
	Traceback      []string       `json:"traceback,omitempty"`
}

// Text returns the text/plain rendering of the output when present.
func (o *StatementOutput) Text() (string, bool) {
	if o == nil || o.Data == nil {
		return "", false
	}
	raw, ok := o.Data["text/plain"]
	if !ok {
		return "", false
	}
	text, ok := raw.(string)
	return text, ok
}

// Response is the outcome of one dispatched HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}
