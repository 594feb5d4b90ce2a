package bridge

import (
	"sync"

	"github.com/google/uuid"

	"github.com/bolt-foundry/gambit/gambiterr"
)

// pendingRequest is one outstanding worker→parent request awaiting a
// terminal reply, keyed by requestId (spec.md §9: "model as a map
// requestId -> continuation").
type pendingRequest struct {
	kind    MessageType
	resolve func(Envelope)
	reject  func(error)
}

// Session tracks one worker's bridge state on either end of the link: the
// bridgeSession identity, the single completionNonce attached to its
// run.start, and the table of requests awaiting a reply.
//
// A Session is safe for concurrent use; the parent's cooperative task may
// register a request while a separate goroutine delivers the worker's
// replies.
type Session struct {
	mu sync.Mutex

	id         string
	nonce      string
	runStarted bool
	terminated bool
	pending    map[string]*pendingRequest
}

// NewSession creates a Session with a fresh bridgeSession identity. Used by
// the side that originates the session — the parent, which mints the
// identity before sending run.start.
func NewSession() *Session {
	return NewSessionWithID(uuid.NewString())
}

// NewSessionWithID creates a Session bound to an already-known
// bridgeSession identity. Used by the worker side, which learns its
// bridgeSession from the first inbound envelope rather than minting one.
func NewSessionWithID(id string) *Session {
	return &Session{id: id, pending: map[string]*pendingRequest{}}
}

// ID returns the bridgeSession tag every envelope on this session must
// carry.
func (s *Session) ID() string { return s.id }

// BeginRun mints the completionNonce for this session's single run.start
// (spec.md §4.3: "at most one run.start per worker; subsequent run.start
// is silently dropped"). The second and later calls return ok=false and
// the caller must silently drop the run.start rather than error.
func (s *Session) BeginRun() (nonce string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runStarted {
		return "", false
	}
	s.runStarted = true
	s.nonce = uuid.NewString()
	return s.nonce, true
}

// IngestRunStart records the nonce carried by an inbound run.start and
// enforces the one-shot rule from the worker's side: the first run.start
// is accepted, every subsequent one is silently dropped (spec.md §4.3).
func (s *Session) IngestRunStart(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runStarted {
		return false
	}
	s.runStarted = true
	s.nonce = nonce
	return true
}

// Nonce returns the completionNonce associated with this session's single
// run, for echoing back in run.result/run.error.
func (s *Session) Nonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}

// Accept reports whether an inbound envelope belongs to this session and,
// for terminal replies, carries the matching completionNonce. Envelopes
// lacking bridgeSession or with a stale/non-matching nonce are ignored per
// spec.md §4.3.
func (s *Session) Accept(e Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.BridgeSession == "" || e.BridgeSession != s.id {
		return false
	}
	if requiresNonce(e.Type) && e.CompletionNonce != s.nonce {
		return false
	}
	return true
}

// Register adds a pending request to the table. resolve is invoked with
// the matching reply envelope; reject is invoked if the session is
// terminated before a reply arrives.
func (s *Session) Register(requestID string, kind MessageType, resolve func(Envelope), reject func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		reject(gambiterr.New(gambiterr.WorkerTerminated, "worker already terminated"))
		return
	}
	s.pending[requestID] = &pendingRequest{kind: kind, resolve: resolve, reject: reject}
}

// Resolve delivers a terminal reply to the request registered under
// requestID and removes it from the table. It reports false if no such
// request is pending (already resolved, or never registered).
func (s *Session) Resolve(requestID string, reply Envelope) bool {
	s.mu.Lock()
	req, ok := s.pending[requestID]
	if ok {
		delete(s.pending, requestID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	req.resolve(reply)
	return true
}

// Reject fails the request registered under requestID with err and
// removes it from the table.
func (s *Session) Reject(requestID string, err error) bool {
	s.mu.Lock()
	req, ok := s.pending[requestID]
	if ok {
		delete(s.pending, requestID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	req.reject(err)
	return true
}

// Terminate marks the session terminated and rejects every pending
// request with WorkerTerminated (spec.md §4.3, §5 "Parent-initiated
// cancellation terminates the worker and rejects all pending requests
// with WorkerTerminated"). Idempotent.
func (s *Session) Terminate() {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.terminated = true
	pending := s.pending
	s.pending = map[string]*pendingRequest{}
	s.mu.Unlock()

	err := gambiterr.New(gambiterr.WorkerTerminated, "worker terminated")
	for _, req := range pending {
		req.reject(err)
	}
}

// Pending returns the number of requests currently awaiting a reply,
// useful for tests and diagnostics.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
