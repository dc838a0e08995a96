package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/radieske/pvp-results-ingest/internal/game-ingest/queue"
	"github.com/radieske/pvp-results-ingest/internal/game-ingest/repository"
	"github.com/radieske/pvp-results-ingest/pkg/contracts/events"
)

type mockWriter struct{ mock.Mock }

func (m *mockWriter) WritePlayer(ctx context.Context, p events.PlayerResult, now time.Time) (repository.WriteResult, error) {
	args := m.Called(ctx, p, now)
	return args.Get(0).(repository.WriteResult), args.Error(1)
}

// scriptedWriter falha um número fixo de vezes por jogador e registra a ordem das chamadas
type scriptedWriter struct {
	mu       sync.Mutex
	failures map[string]int
	panics   map[string]bool
	calls    []string
	onCall   func(ctx context.Context, p events.PlayerResult)
}

func (s *scriptedWriter) WritePlayer(ctx context.Context, p events.PlayerResult, _ time.Time) (repository.WriteResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, p.ExternalID)
	left := s.failures[p.ExternalID]
	if left > 0 {
		s.failures[p.ExternalID] = left - 1
	}
	s.mu.Unlock()

	if s.onCall != nil {
		s.onCall(ctx, p)
	}
	if s.panics[p.ExternalID] {
		panic("driver exploded")
	}
	if left != 0 {
		return repository.WriteResult{}, errors.New("deadlock detected")
	}
	return repository.WriteResult{UserID: int64(len(p.ExternalID)), WagerDate: time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)}, nil
}

func (s *scriptedWriter) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type memSink struct {
	mu      sync.Mutex
	players []events.PlayerResult
	err     error
}

func (m *memSink) Append(_ context.Context, p events.PlayerResult) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	m.players = append(m.players, p)
	m.mu.Unlock()
	return nil
}

func (m *memSink) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.players))
	for _, p := range m.players {
		ids = append(ids, p.ExternalID)
	}
	return ids
}

func player(id string) events.PlayerResult {
	return events.PlayerResult{
		ExternalID:     id,
		SiteIdentifier: "hypedrop",
		DisplayName:    "name-" + id,
		TotalBet:       decimal.RequireFromString("4.20"),
	}
}

func game(id string, players ...string) events.GameFinishedEvent {
	ev := events.GameFinishedEvent{Event: events.EventGameFinished, GameID: id, Source: "hypedrop"}
	for _, p := range players {
		ev.Players = append(ev.Players, player(p))
	}
	return ev
}

func newTestPersister(t *testing.T, w PlayerWriter, sink *memSink) (*Persister, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := NewPersister(zap.New(core), queue.New(16), w, sink)
	p.RetryDelay = time.Millisecond
	p.ErrorPause = time.Millisecond
	return p, logs
}

func TestPersistPlayerExhaustsRetriesThenFallback(t *testing.T) {
	m := &mockWriter{}
	p := player("u1")
	m.On("WritePlayer", mock.Anything, p, mock.Anything).
		Return(repository.WriteResult{}, errors.New("lock wait timeout")).
		Times(2)

	sink := &memSink{}
	w, _ := newTestPersister(t, m, sink)
	var stages []string
	var fallbacks, persisted int
	w.OnError = func(s string) { stages = append(stages, s) }
	w.OnFallback = func() { fallbacks++ }
	w.OnPersist = func() { persisted++ }

	w.handleEvent(context.Background(), events.GameFinishedEvent{GameID: "g1", Players: []events.PlayerResult{p}})

	m.AssertExpectations(t)
	m.AssertNumberOfCalls(t, "WritePlayer", 2)
	require.Len(t, sink.players, 1)
	assert.Equal(t, p, sink.players[0])
	assert.Equal(t, 1, fallbacks)
	assert.Equal(t, 0, persisted)
	assert.Equal(t, []string{"db_write", "db_write"}, stages)
}

func TestRetryWaitsDoubleTheBaseDelay(t *testing.T) {
	writer := &scriptedWriter{failures: map[string]int{"u1": 3}}
	sink := &memSink{}
	w, _ := newTestPersister(t, writer, sink)
	w.MaxRetries = 3
	w.RetryDelay = 20 * time.Millisecond

	start := time.Now()
	w.handleEvent(context.Background(), game("g1", "u1"))

	// 20ms + 40ms entre as três tentativas
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, []string{"u1", "u1", "u1"}, writer.Calls())
	assert.Equal(t, []string{"u1"}, sink.IDs())
}

func TestFailingPlayerDoesNotBlockSiblings(t *testing.T) {
	writer := &scriptedWriter{failures: map[string]int{"bad": -1}}
	sink := &memSink{}
	w, _ := newTestPersister(t, writer, sink)

	var persisted []string
	w.OnPersisted = func(p events.PlayerResult, _ repository.WriteResult) { persisted = append(persisted, p.ExternalID) }

	w.handleEvent(context.Background(), game("g1", "bad", "b", "c"))

	assert.Equal(t, []string{"bad", "bad", "b", "c"}, writer.Calls())
	assert.Equal(t, []string{"b", "c"}, persisted)
	assert.Equal(t, []string{"bad"}, sink.IDs())
}

func TestTransientFailureRecoversWithoutFallback(t *testing.T) {
	writer := &scriptedWriter{failures: map[string]int{"u1": 1}}
	sink := &memSink{}
	w, _ := newTestPersister(t, writer, sink)

	var got repository.WriteResult
	w.OnPersisted = func(_ events.PlayerResult, res repository.WriteResult) { got = res }

	w.handleEvent(context.Background(), game("g1", "u1"))

	assert.Equal(t, []string{"u1", "u1"}, writer.Calls())
	assert.Empty(t, sink.IDs())
	assert.Equal(t, int64(2), got.UserID)
}

func TestWriterPanicIsTreatedAsWriteError(t *testing.T) {
	writer := &scriptedWriter{panics: map[string]bool{"boom": true}}
	sink := &memSink{}
	w, logs := newTestPersister(t, writer, sink)

	w.handleEvent(context.Background(), game("g1", "boom", "ok"))

	assert.Equal(t, []string{"boom", "boom", "ok"}, writer.Calls())
	assert.Equal(t, []string{"boom"}, sink.IDs())
	failed := logs.FilterMessage("player write failed").All()
	require.Len(t, failed, 2)
	assert.Contains(t, failed[0].ContextMap()["error"], ErrWriterPanic.Error())
}

func TestWriteUsesContextDetachedFromShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr error
	var hasDeadline bool
	writer := &scriptedWriter{onCall: func(wctx context.Context, _ events.PlayerResult) {
		sawErr = wctx.Err()
		_, hasDeadline = wctx.Deadline()
	}}
	w, _ := newTestPersister(t, writer, &memSink{})

	_, err := w.writeOnce(ctx, player("u1"))
	require.NoError(t, err)
	assert.NoError(t, sawErr)
	assert.True(t, hasDeadline)
}

func TestRetryInterruptedByShutdownGoesToFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &scriptedWriter{
		failures: map[string]int{"u1": -1},
		onCall:   func(context.Context, events.PlayerResult) { cancel() },
	}
	sink := &memSink{}
	w, logs := newTestPersister(t, writer, sink)
	w.RetryDelay = time.Hour

	done := make(chan struct{})
	go func() {
		w.handleEvent(ctx, game("g1", "u1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry wait was not interrupted")
	}
	assert.Equal(t, []string{"u1"}, writer.Calls())
	assert.Equal(t, []string{"u1"}, sink.IDs())
	assert.Equal(t, 1, logs.FilterMessage("retry interrupted by shutdown, routing to fallback").Len())
}

func TestFallbackFailureIsLoggedOnly(t *testing.T) {
	writer := &scriptedWriter{failures: map[string]int{"a": -1, "b": -1}}
	sink := &memSink{err: errors.New("disk full")}
	w, logs := newTestPersister(t, writer, sink)
	var stages []string
	w.OnError = func(s string) { stages = append(stages, s) }

	w.handleEvent(context.Background(), game("g1", "a", "b"))

	assert.Equal(t, []string{"a", "a", "b", "b"}, writer.Calls())
	assert.Equal(t, 2, logs.FilterMessage("fallback write failed, player result lost").Len())
	assert.Contains(t, stages, "fallback")
}

func TestRunPersistsInFIFOOrder(t *testing.T) {
	writer := &scriptedWriter{}
	w, _ := newTestPersister(t, writer, &memSink{})

	for _, id := range []string{"g1", "g2", "g3", "g4"} {
		require.NoError(t, w.Queue.Put(context.Background(), game(id, id+"-a", id+"-b")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(writer.Calls()) == 8 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-runErr, context.Canceled)

	assert.Equal(t, []string{
		"g1-a", "g1-b", "g2-a", "g2-b", "g3-a", "g3-b", "g4-a", "g4-b",
	}, writer.Calls())
}

func TestRunRecoversFromPanicAndContinues(t *testing.T) {
	writer := &scriptedWriter{}
	w, logs := newTestPersister(t, writer, &memSink{})

	var mu sync.Mutex
	seen := 0
	w.OnPersisted = func(events.PlayerResult, repository.WriteResult) {
		mu.Lock()
		seen++
		first := seen == 1
		mu.Unlock()
		if first {
			panic("hook failure")
		}
	}
	var consumed int
	w.OnConsumed = func() { consumed++ }

	require.NoError(t, w.Queue.Put(context.Background(), game("g1", "a")))
	require.NoError(t, w.Queue.Put(context.Background(), game("g2", "b")))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(writer.Calls()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-runErr

	assert.Equal(t, []string{"a", "b"}, writer.Calls())
	assert.Equal(t, 1, logs.FilterMessage("panic while draining queue").Len())
	assert.Equal(t, 2, consumed)
}

func TestShutdownSpillsQueuedEventsToFallback(t *testing.T) {
	writer := &scriptedWriter{}
	sink := &memSink{}
	w, logs := newTestPersister(t, writer, sink)

	for _, id := range []string{"g1", "g2", "g3"} {
		require.NoError(t, w.Queue.Put(context.Background(), game(id, id+"-a", id+"-b")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)

	// com o contexto já cancelado, um Get ainda pode vencer a corrida; nada se perde
	handled := append(writer.Calls(), sink.IDs()...)
	assert.ElementsMatch(t, []string{"g1-a", "g1-b", "g2-a", "g2-b", "g3-a", "g3-b"}, handled)
	assert.Equal(t, 0, w.Queue.Len())
	assert.Equal(t, 1, logs.FilterMessage("persistence worker stopped").Len())
}
