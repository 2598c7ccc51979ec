// Package fetch models one remote JSON resource as seen by a storefront view:
// where it lives (Locator), how to ask for it (RequestConfig) and what is
// currently known about it (State).
package fetch

import (
	"encoding/json"
	"errors"
)

var ErrInvalidTransition = errors.New("fetch: invalid state transition")

type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// State is a tagged union over Pending, Ready(payload) and Failed(err).
// The zero value is Pending.
type State struct {
	status  Status
	payload json.RawMessage
	err     error
}

func Pending() State { return State{status: StatusPending} }

// Ready holds a copy of payload, which must be valid JSON.
func Ready(payload json.RawMessage) State {
	cp := make(json.RawMessage, len(payload))
	copy(cp, payload)
	return State{status: StatusReady, payload: cp}
}

// Failed holds err; a nil err is replaced by a generic cause so the variant stays well formed.
func Failed(err error) State {
	if err == nil {
		err = errors.New("fetch: unknown failure")
	}
	return State{status: StatusFailed, err: err}
}

func (s State) Status() Status {
	if s.status == "" {
		return StatusPending
	}
	return s.status
}

func (s State) IsPending() bool { return s.Status() == StatusPending }
func (s State) IsReady() bool   { return s.status == StatusReady }
func (s State) IsFailed() bool  { return s.status == StatusFailed }

// Payload is the Ready payload, nil in any other variant.
func (s State) Payload() json.RawMessage {
	if s.status != StatusReady {
		return nil
	}
	return s.payload
}

// Err is the Failed cause, nil in any other variant.
func (s State) Err() error {
	if s.status != StatusFailed {
		return nil
	}
	return s.err
}

// Resolve moves a Pending state to next. Only Pending may resolve and only
// into Ready or Failed; a new invocation starts again from Pending().
func (s State) Resolve(next State) (State, error) {
	if !s.IsPending() || next.IsPending() {
		return s, ErrInvalidTransition
	}
	return next, nil
}

type stateView struct {
	Status Status          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// MarshalJSON renders the state as {"status", "data", "error"} for display.
func (s State) MarshalJSON() ([]byte, error) {
	v := stateView{Status: s.Status(), Data: s.Payload()}
	if err := s.Err(); err != nil {
		v.Error = Describe(err)
	}
	return json.Marshal(v)
}
