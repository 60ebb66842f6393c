package voice

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// sessionState is the lifecycle phase of one media session.
type sessionState int32

const (
	stateConnecting sessionState = iota
	stateAwaitingStart
	stateActive
	stateClosing
	stateTerminated
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAwaitingStart:
		return "awaiting_start"
	case stateActive:
		return "active"
	case stateClosing:
		return "closing"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// callState is the mutable realtime state of one session: the utterance
// accumulation buffer, the speaking flags that gate echo suppression and
// barge-in, and the handle to the in-flight response task.
type callState struct {
	mu        sync.Mutex
	buffer    []string
	completed []string

	userSpeaking      atomic.Bool
	assistantSpeaking atomic.Bool

	// respCancel cancels the in-flight response task, if any. Guarded by mu;
	// at most one task runs at a time.
	respCancel context.CancelFunc
}

// appendFinal adds one finalized transcript fragment to the pending
// utterance.
func (cs *callState) appendFinal(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}
	cs.mu.Lock()
	cs.buffer = append(cs.buffer, fragment)
	cs.mu.Unlock()
}

// takeUtterance drains the buffer and returns the joined utterance. It
// returns "" when the buffer is empty, which makes commit triggers
// idempotent: the second of two back-to-back triggers finds nothing to take.
func (cs *callState) takeUtterance() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.buffer) == 0 {
		return ""
	}
	utterance := strings.Join(cs.buffer, " ")
	cs.buffer = cs.buffer[:0]
	cs.completed = append(cs.completed, utterance)
	return utterance
}

// utteranceCount reports how many utterances have been committed.
func (cs *callState) utteranceCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.completed)
}

// setResponseCancel records the cancel handle for a newly started response
// task, canceling any previous one first.
func (cs *callState) setResponseCancel(cancel context.CancelFunc) {
	cs.mu.Lock()
	prev := cs.respCancel
	cs.respCancel = cancel
	cs.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// cancelResponse cancels the in-flight response task, if any.
func (cs *callState) cancelResponse() {
	cs.mu.Lock()
	cancel := cs.respCancel
	cs.respCancel = nil
	cs.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
