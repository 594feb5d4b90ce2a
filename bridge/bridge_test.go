package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt-foundry/gambit/gambiterr"
)

func TestSecondRunStartIsSilentlyDropped(t *testing.T) {
	s := NewSession()
	nonce1, ok := s.BeginRun()
	require.True(t, ok)
	require.NotEmpty(t, nonce1)

	nonce2, ok := s.BeginRun()
	assert.False(t, ok)
	assert.Empty(t, nonce2)
}

func TestAcceptRejectsWrongSessionAndStaleNonce(t *testing.T) {
	s := NewSession()
	nonce, ok := s.BeginRun()
	require.True(t, ok)

	assert.False(t, s.Accept(Envelope{Type: TypeRunResult, BridgeSession: "other", CompletionNonce: nonce}))
	assert.False(t, s.Accept(Envelope{Type: TypeRunResult, BridgeSession: s.ID(), CompletionNonce: "stale"}))
	assert.True(t, s.Accept(Envelope{Type: TypeRunResult, BridgeSession: s.ID(), CompletionNonce: nonce}))

	// Non-terminal types never require the nonce.
	assert.True(t, s.Accept(Envelope{Type: TypeStreamText, BridgeSession: s.ID()}))
}

func TestPendingRequestResolvesOnce(t *testing.T) {
	s := NewSession()
	var got Envelope
	var rejected error
	s.Register("req-1", TypeModelChatRequest,
		func(e Envelope) { got = e },
		func(err error) { rejected = err })

	require.Equal(t, 1, s.Pending())
	ok := s.Resolve("req-1", Envelope{Type: TypeModelChatResult, RequestID: "req-1"})
	assert.True(t, ok)
	assert.Equal(t, TypeModelChatResult, got.Type)
	assert.Nil(t, rejected)
	assert.Equal(t, 0, s.Pending())

	// Resolving again is a no-op: already removed from the table.
	assert.False(t, s.Resolve("req-1", Envelope{}))
}

func TestTerminateRejectsAllPendingWithWorkerTerminated(t *testing.T) {
	s := NewSession()
	var err1, err2 error
	s.Register("a", TypeModelChatRequest, func(Envelope) {}, func(err error) { err1 = err })
	s.Register("b", TypeSpawnRequest, func(Envelope) {}, func(err error) { err2 = err })
	require.Equal(t, 2, s.Pending())

	s.Terminate()

	require.Error(t, err1)
	require.Error(t, err2)
	assert.True(t, gambiterr.FromError(err1).Kind == gambiterr.WorkerTerminated)
	assert.True(t, gambiterr.FromError(err2).Kind == gambiterr.WorkerTerminated)
	assert.Equal(t, 0, s.Pending())

	// Terminate is idempotent.
	s.Terminate()
}

func TestRegisterAfterTerminateRejectsImmediately(t *testing.T) {
	s := NewSession()
	s.Terminate()

	var rejected error
	s.Register("late", TypeModelChatRequest, func(Envelope) {}, func(err error) { rejected = err })
	require.Error(t, rejected)
	assert.Equal(t, gambiterr.WorkerTerminated, gambiterr.FromError(rejected).Kind)
}

func TestLinkPairDeliversBothDirections(t *testing.T) {
	parent, worker := NewLinkPair(4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, parent.Send(ctx, Envelope{Type: TypeRunStart, BridgeSession: "s1"}))
	e, ok := worker.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, TypeRunStart, e.Type)

	require.NoError(t, worker.Send(ctx, Envelope{Type: TypeRunResult, BridgeSession: "s1"}))
	e, ok = parent.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, TypeRunResult, e.Type)
}

func TestLinkCloseUnblocksRecv(t *testing.T) {
	parent, worker := NewLinkPair(0)
	ctx := context.Background()
	parent.Close()

	_, ok := worker.Recv(ctx)
	assert.False(t, ok)
}
