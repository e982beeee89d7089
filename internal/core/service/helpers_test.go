package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	callmemory "github.com/Wyydra/yacall/internal/adapter/driven/call/memory"
	"github.com/Wyydra/yacall/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/service"
)

var errGone = errors.New("connection gone")

type delivery struct {
	handle domain.Handle
	signal domain.Signal
}

// recordingGateway captures every send and broadcast synchronously.
type recordingGateway struct {
	mu         sync.Mutex
	sent       []delivery
	broadcasts []domain.Signal
	closed     map[domain.Handle]bool
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{closed: make(map[domain.Handle]bool)}
}

func (g *recordingGateway) Send(ctx context.Context, handle domain.Handle, signal domain.Signal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed[handle] {
		return errGone
	}
	g.sent = append(g.sent, delivery{handle: handle, signal: signal})
	return nil
}

func (g *recordingGateway) Broadcast(ctx context.Context, signal domain.Signal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.broadcasts = append(g.broadcasts, signal)
	return nil
}

func (g *recordingGateway) close(h domain.Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed[h] = true
}

func (g *recordingGateway) to(h domain.Handle) []domain.Signal {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.Signal
	for _, d := range g.sent {
		if d.handle == h {
			out = append(out, d.signal)
		}
	}
	return out
}

func (g *recordingGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func (g *recordingGateway) lastBroadcast() (domain.Signal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.broadcasts) == 0 {
		return domain.Signal{}, false
	}
	return g.broadcasts[len(g.broadcasts)-1], true
}

func (g *recordingGateway) broadcastCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.broadcasts)
}

func (g *recordingGateway) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = nil
	g.broadcasts = nil
}

// flakyDirectory fails selected operations with ErrDirectoryUnavailable.
type flakyDirectory struct {
	*memory.UserRepository
	mu       sync.Mutex
	failList bool
	failFind bool
}

func (d *flakyDirectory) setFailures(list, find bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failList, d.failFind = list, find
}

func (d *flakyDirectory) ListOnline(ctx context.Context) ([]domain.User, error) {
	d.mu.Lock()
	fail := d.failList
	d.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("list: %w", domain.ErrDirectoryUnavailable)
	}
	return d.UserRepository.ListOnline(ctx)
}

func (d *flakyDirectory) FindByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	d.mu.Lock()
	fail := d.failFind
	d.mu.Unlock()
	if fail {
		return domain.User{}, fmt.Errorf("find: %w", domain.ErrDirectoryUnavailable)
	}
	return d.UserRepository.FindByID(ctx, id)
}

type fixture struct {
	directory *flakyDirectory
	gateway   *recordingGateway
	ledger    *callmemory.CallEngine
	presence  *service.PresenceBroadcaster
	registry  *service.SessionRegistry
	calls     *service.CallService
	users     *service.UserService
}

func newFixture(t *testing.T, opts ...service.CallOption) *fixture {
	t.Helper()
	f := &fixture{
		directory: &flakyDirectory{UserRepository: memory.NewUserRepository()},
		gateway:   newRecordingGateway(),
		ledger:    callmemory.NewCallEngine(0),
	}
	f.presence = service.NewPresenceBroadcaster(f.directory, f.gateway)
	f.registry = service.NewSessionRegistry(f.directory, f.presence)
	f.calls = service.NewCallService(f.registry, f.gateway, f.ledger, opts...)
	f.users = service.NewUserService(f.directory)
	t.Cleanup(f.ledger.Stop)
	return f
}

// online registers id and binds it to a fresh handle.
func (f *fixture) online(t *testing.T, id domain.UserID) domain.Handle {
	t.Helper()
	ctx := context.Background()
	if _, err := f.directory.FindByID(ctx, id); errors.Is(err, domain.ErrUserNotFound) {
		if _, err := f.users.Register(ctx, id.String(), "User "+id.String(), ""); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	h := domain.NewHandle()
	if err := f.registry.Bind(ctx, id, h); err != nil {
		t.Fatalf("bind %s: %v", id, err)
	}
	return h
}

func presenceIDs(sig domain.Signal) []domain.UserID {
	ids := make([]domain.UserID, 0, len(sig.Users))
	for _, u := range sig.Users {
		ids = append(ids, u.ID)
	}
	return ids
}

// stallingDirectory holds its first ListOnline after reading, until released.
type stallingDirectory struct {
	*memory.UserRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStallingDirectory() *stallingDirectory {
	return &stallingDirectory{
		UserRepository: memory.NewUserRepository(),
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
}

func (d *stallingDirectory) ListOnline(ctx context.Context) ([]domain.User, error) {
	users, err := d.UserRepository.ListOnline(ctx)
	d.once.Do(func() {
		close(d.entered)
		<-d.release
	})
	return users, err
}
