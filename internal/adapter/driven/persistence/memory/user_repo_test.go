package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Wyydra/yacall/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/google/go-cmp/cmp"
)

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()

	created, err := repo.Create(ctx, domain.NewUser("A1", "Alice", "alice@example.com"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Online || created.Handle != nil {
		t.Errorf("new user should start offline: %+v", created)
	}

	if _, err := repo.Create(ctx, domain.NewUser("A1", "Other", "")); !errors.Is(err, domain.ErrDuplicateUser) {
		t.Errorf("duplicate Create error = %v", err)
	}

	got, err := repo.FindByID(ctx, "A1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if diff := cmp.Diff(created, got); diff != "" {
		t.Errorf("FindByID mismatch (-want +got):\n%s", diff)
	}

	if _, err := repo.FindByID(ctx, "nobody"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("FindByID(missing) error = %v", err)
	}
}

func TestSetPresenceAndListOnline(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	for _, id := range []domain.UserID{"C3", "A1", "B2"} {
		if _, err := repo.Create(ctx, domain.NewUser(id, string(id), "")); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	h1, h2 := domain.NewHandle(), domain.NewHandle()
	if err := repo.SetPresence(ctx, "B2", &h1, true); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	if err := repo.SetPresence(ctx, "C3", &h2, true); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	if err := repo.SetPresence(ctx, "ghost", &h2, true); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("SetPresence(missing) error = %v", err)
	}

	online, err := repo.ListOnline(ctx)
	if err != nil {
		t.Fatalf("ListOnline: %v", err)
	}
	var ids []domain.UserID
	for _, u := range online {
		ids = append(ids, u.ID)
	}
	if diff := cmp.Diff([]domain.UserID{"C3", "B2"}, ids); diff != "" {
		t.Errorf("ListOnline order mismatch (-want +got):\n%s", diff)
	}

	// returned records must not alias internal state
	*online[0].Handle = domain.NewHandle()
	c3, _ := repo.FindByID(ctx, "C3")
	if *c3.Handle != h2 {
		t.Error("ListOnline leaked a mutable handle")
	}

	if err := repo.SetPresence(ctx, "B2", nil, false); err != nil {
		t.Fatalf("SetPresence offline: %v", err)
	}
	b2, _ := repo.FindByID(ctx, "B2")
	if b2.Online || b2.Handle != nil {
		t.Errorf("B2 should be offline with no handle: %+v", b2)
	}

	if err := repo.ResetPresence(ctx); err != nil {
		t.Fatalf("ResetPresence: %v", err)
	}
	online, _ = repo.ListOnline(ctx)
	if len(online) != 0 {
		t.Errorf("ResetPresence left %d online", len(online))
	}
}
