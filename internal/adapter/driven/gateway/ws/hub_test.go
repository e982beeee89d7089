package ws_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/yacall/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	handle domain.Handle

	mu       sync.Mutex
	received []domain.Signal
	closed   bool
	failSend bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{handle: domain.NewHandle()}
}

func (c *fakeClient) Handle() domain.Handle {
	return c.handle
}

func (c *fakeClient) Send(signal domain.Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("broken pipe")
	}
	c.received = append(c.received, signal)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func startHub(t *testing.T) *ws.Hub {
	t.Helper()
	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func register(t *testing.T, hub *ws.Hub, clients ...*fakeClient) {
	t.Helper()
	for _, c := range clients {
		hub.Register(c)
	}
	require.Eventually(t, func() bool { return hub.Len() == len(clients) }, time.Second, 5*time.Millisecond)
}

func TestHubSend(t *testing.T) {
	hub := startHub(t)
	a, b := newFakeClient(), newFakeClient()
	register(t, hub, a, b)

	sig := domain.NewSignal(domain.SignalIncomingCall, "A")
	require.NoError(t, hub.Send(context.Background(), b.handle, sig))
	require.Equal(t, 0, a.count())
	require.Equal(t, []domain.Signal{sig}, b.received)
}

func TestHubSendUnknownHandle(t *testing.T) {
	hub := startHub(t)
	err := hub.Send(context.Background(), domain.NewHandle(), domain.NewSignal(domain.SignalEndCall, ""))
	require.ErrorIs(t, err, ws.ErrClientNotFound)
}

func TestHubBroadcast(t *testing.T) {
	hub := startHub(t)
	clients := []*fakeClient{newFakeClient(), newFakeClient(), newFakeClient()}
	register(t, hub, clients...)

	sig := domain.NewPresenceSignal([]domain.PresenceEntry{{ID: "A", Name: "User", Online: true}})
	require.NoError(t, hub.Broadcast(context.Background(), sig))

	for _, c := range clients {
		require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)
	}
}

func TestHubUnregister(t *testing.T) {
	hub := startHub(t)
	a := newFakeClient()
	register(t, hub, a)

	hub.Unregister(a)
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.True(t, a.isClosed())

	err := hub.Send(context.Background(), a.handle, domain.NewSignal(domain.SignalEndCall, ""))
	require.ErrorIs(t, err, ws.ErrClientNotFound)

	// unregistering twice is harmless
	hub.Unregister(a)
}

func TestHubDropsFailingClientOnBroadcast(t *testing.T) {
	hub := startHub(t)
	good, bad := newFakeClient(), newFakeClient()
	bad.failSend = true
	register(t, hub, good, bad)

	require.NoError(t, hub.Broadcast(context.Background(), domain.NewPresenceSignal(nil)))

	require.Eventually(t, func() bool {
		return hub.Len() == 1 && bad.isClosed() && good.count() == 1
	}, time.Second, 5*time.Millisecond)
	require.False(t, good.isClosed())
}

func TestHubStopClosesClients(t *testing.T) {
	hub := ws.NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	a, b := newFakeClient(), newFakeClient()
	register(t, hub, a, b)

	hub.Stop()
	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	require.True(t, a.isClosed())
	require.True(t, b.isClosed())
	require.Equal(t, 0, hub.Len())

	late := newFakeClient()
	hub.Register(late)
	require.True(t, late.isClosed())
}

// stalledClient blocks its first Send until released.
type stalledClient struct {
	*fakeClient
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *stalledClient) Send(signal domain.Signal) error {
	c.once.Do(func() {
		close(c.entered)
		<-c.release
	})
	return c.fakeClient.Send(signal)
}

func (c *stalledClient) last() domain.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received[len(c.received)-1]
}

func TestHubDeliversNewestPresenceAfterStall(t *testing.T) {
	hub := startHub(t)
	slow := &stalledClient{
		fakeClient: newFakeClient(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	hub.Register(slow)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	snapshot := func(n int) domain.Signal {
		entries := make([]domain.PresenceEntry, n)
		for i := range entries {
			entries[i] = domain.PresenceEntry{ID: domain.UserID(fmt.Sprintf("U%d", i)), Online: true}
		}
		return domain.NewPresenceSignal(entries)
	}

	ctx := context.Background()
	require.NoError(t, hub.Broadcast(ctx, snapshot(1)))
	<-slow.entered

	const n = 100
	for i := 2; i <= n; i++ {
		require.NoError(t, hub.Broadcast(ctx, snapshot(i)))
	}
	close(slow.release)

	require.Eventually(t, func() bool {
		return slow.count() > 0 && len(slow.last().Users) == n
	}, time.Second, 5*time.Millisecond)
	require.LessOrEqual(t, slow.count(), 3)
}
