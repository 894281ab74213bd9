package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/testutil"
	"github.com/hupe1980/sessionmesh/session"
	"github.com/hupe1980/sessionmesh/vocab"
)

type started struct {
	sess  *core.Session
	first string
}

// blockingRunner records sessions and serves their inbox until ctx ends.
type blockingRunner struct {
	mu       sync.Mutex
	sessions []started
	received []core.Event
}

func (r *blockingRunner) Run(ctx context.Context, sess *core.Session, first string, inbox <-chan core.Event) core.EndReason {
	r.mu.Lock()
	r.sessions = append(r.sessions, started{sess: sess, first: first})
	r.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return core.EndShutdown
		case ev := <-inbox:
			r.mu.Lock()
			r.received = append(r.received, ev)
			r.mu.Unlock()
		}
	}
}

func (r *blockingRunner) Sessions() []started {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]started(nil), r.sessions...)
}

func (r *blockingRunner) Received() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.received...)
}

func newEngine(runner Runner, optFns ...func(o *Options)) *Engine {
	v := vocab.New([]string{"hey abby"}, []string{"code abby"}, []string{"bye"})
	return New(runner, v, optFns...)
}

func ev(user, text string) core.Event {
	return testutil.NewEventBuilder().User(user).Text(text).Build()
}

func TestHandle_SummonStartsSession(t *testing.T) {
	runner := &blockingRunner{}
	eng := newEngine(runner)
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	assert.Equal(t, OutcomeStarted, eng.Handle(context.Background(), ev("u1", "code abby fix this loop")))
	assert.Eventually(t, func() bool { return len(runner.Sessions()) == 1 }, time.Second, 5*time.Millisecond)

	s := runner.Sessions()[0]
	assert.Equal(t, core.ModeCode, s.sess.Mode)
	assert.Equal(t, "fix this loop", s.first)
	assert.Equal(t, "channel-1", s.sess.ChannelRef)
	assert.True(t, eng.IsActive("u1"))
	assert.Equal(t, []string{"u1"}, eng.ActiveSessions())
}

func TestHandle_SecondSummonIsNoOp(t *testing.T) {
	runner := &blockingRunner{}
	eng := newEngine(runner)
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	require.Equal(t, OutcomeStarted, eng.Handle(context.Background(), ev("u1", "hey abby")))
	assert.Equal(t, OutcomeBusy, eng.Handle(context.Background(), ev("u1", "hey abby")))
	assert.Equal(t, OutcomeBusy, eng.Handle(context.Background(), ev("u1", "code abby")))

	assert.Eventually(t, func() bool { return len(runner.Sessions()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, runner.Sessions(), 1)
	assert.Empty(t, runner.Received())
}

func TestHandle_Routing(t *testing.T) {
	runner := &blockingRunner{}
	eng := newEngine(runner)
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	ctx := context.Background()
	require.Equal(t, OutcomeStarted, eng.Handle(ctx, ev("u1", "hey abby")))

	assert.Equal(t, OutcomeRouted, eng.Handle(ctx, ev("u1", "what's up")))
	assert.Equal(t, OutcomeIgnored, eng.Handle(ctx, testutil.NewEventBuilder().User("u1").Channel("other").Text("psst").Build()))
	assert.Equal(t, OutcomeIgnored, eng.Handle(ctx, ev("u1", "!help")))
	assert.Equal(t, OutcomeIgnored, eng.Handle(ctx, testutil.NewEventBuilder().User("u1").Text("beep").Bot().Build()))
	assert.Equal(t, OutcomeIgnored, eng.Handle(ctx, ev("u2", "what's up")))

	assert.Eventually(t, func() bool { return len(runner.Received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "what's up", runner.Received()[0].Text)
}

func TestHandle_SummonPrefixedUtteranceIsATurn(t *testing.T) {
	runner := &blockingRunner{}
	eng := newEngine(runner)
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	ctx := context.Background()
	require.Equal(t, OutcomeStarted, eng.Handle(ctx, ev("u1", "hey abby")))
	assert.Equal(t, OutcomeRouted, eng.Handle(ctx, ev("u1", "hey abby, now explain closures")))
	assert.Equal(t, OutcomeRouted, eng.Handle(ctx, ev("u1", "code abby fix this loop")))

	assert.Eventually(t, func() bool { return len(runner.Received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hey abby, now explain closures", runner.Received()[0].Text)
	assert.Equal(t, "code abby fix this loop", runner.Received()[1].Text)
	assert.Len(t, runner.Sessions(), 1)
}

func TestHandle_ClosedInboxIsBusy(t *testing.T) {
	registry := session.NewRegistry()
	eng := newEngine(&blockingRunner{}, func(o *Options) { o.Registry = registry })
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	ctx := context.Background()
	require.Equal(t, OutcomeStarted, eng.Handle(ctx, ev("u1", "hey abby")))
	b, ok := registry.Lookup("u1")
	require.True(t, ok)
	registry.CloseIf("u1", b.SessionID)

	assert.Equal(t, OutcomeBusy, eng.Handle(ctx, ev("u1", "are you still there")))
	assert.True(t, eng.IsActive("u1"))
}

func TestHandle_FullInboxIsBusy(t *testing.T) {
	stuck := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, _ *core.Session, _ string, _ <-chan core.Event) core.EndReason {
		select {
		case <-stuck:
		case <-ctx.Done():
		}
		return core.EndShutdown
	})
	eng := newEngine(runner, func(o *Options) { o.Config.InboxSize = 1 })
	t.Cleanup(func() {
		close(stuck)
		_ = eng.Shutdown(context.Background())
	})

	ctx := context.Background()
	require.Equal(t, OutcomeStarted, eng.Handle(ctx, ev("u1", "hey abby")))
	assert.Equal(t, OutcomeRouted, eng.Handle(ctx, ev("u1", "one")))
	assert.Equal(t, OutcomeBusy, eng.Handle(ctx, ev("u1", "two")))
}

func TestHandle_SessionLimit(t *testing.T) {
	eng := newEngine(&blockingRunner{}, func(o *Options) { o.Config.MaxConcurrentSessions = 1 })
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	ctx := context.Background()
	require.Equal(t, OutcomeStarted, eng.Handle(ctx, ev("u1", "hey abby")))
	assert.Equal(t, OutcomeBusy, eng.Handle(ctx, ev("u2", "hey abby")))
}

func TestHandle_ConcurrentSummonsStartOneSession(t *testing.T) {
	runner := &blockingRunner{}
	eng := newEngine(runner)
	t.Cleanup(func() { _ = eng.Shutdown(context.Background()) })

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[Outcome]int{}
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := eng.Handle(context.Background(), ev("u1", "hey abby"))
			mu.Lock()
			results[o]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, results[OutcomeStarted])
	assert.Equal(t, 31, results[OutcomeBusy])
}

func TestSessionEndReleasesUser(t *testing.T) {
	runner := runnerFunc(func(context.Context, *core.Session, string, <-chan core.Event) core.EndReason {
		return core.EndDismissed
	})
	eng := newEngine(runner)

	require.Equal(t, OutcomeStarted, eng.Handle(context.Background(), ev("u1", "hey abby")))
	eng.Wait()
	assert.False(t, eng.IsActive("u1"))
	assert.Equal(t, OutcomeStarted, eng.Handle(context.Background(), ev("u1", "hey abby")))
	eng.Wait()
}

func TestPanickingSessionIsReleased(t *testing.T) {
	logger := testutil.NewCaptureLogger()
	runner := runnerFunc(func(context.Context, *core.Session, string, <-chan core.Event) core.EndReason {
		panic("boom")
	})
	eng := newEngine(runner, func(o *Options) { o.Logger = logger })

	require.Equal(t, OutcomeStarted, eng.Handle(context.Background(), ev("u1", "hey abby")))
	eng.Wait()
	assert.False(t, eng.IsActive("u1"))
	assert.Len(t, logger.Find("ERROR", "session panicked"), 1)
}

func TestShutdown(t *testing.T) {
	registry := session.NewRegistry()
	eng := newEngine(&blockingRunner{}, func(o *Options) { o.Registry = registry })

	ctx := context.Background()
	require.Equal(t, OutcomeStarted, eng.Handle(ctx, ev("u1", "hey abby")))
	require.Equal(t, OutcomeStarted, eng.Handle(ctx, ev("u2", "hey abby")))

	require.NoError(t, eng.Shutdown(ctx))
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, OutcomeIgnored, eng.Handle(ctx, ev("u3", "hey abby")))
}

func TestShutdown_Deadline(t *testing.T) {
	release := make(chan struct{})
	runner := runnerFunc(func(context.Context, *core.Session, string, <-chan core.Event) core.EndReason {
		<-release
		return core.EndShutdown
	})
	eng := newEngine(runner)
	require.Equal(t, OutcomeStarted, eng.Handle(context.Background(), ev("u1", "hey abby")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, eng.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	eng.Wait()
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "started", OutcomeStarted.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}

type runnerFunc func(ctx context.Context, sess *core.Session, first string, inbox <-chan core.Event) core.EndReason

func (f runnerFunc) Run(ctx context.Context, sess *core.Session, first string, inbox <-chan core.Event) core.EndReason {
	return f(ctx, sess, first, inbox)
}
