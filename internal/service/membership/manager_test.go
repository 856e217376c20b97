package membership_test

import (
	"sync"
	"testing"

	"github.com/zhouzirui/clipdesk/backend/internal/model/event"
	channelStore "github.com/zhouzirui/clipdesk/backend/internal/service/channel"
	"github.com/zhouzirui/clipdesk/backend/internal/service/membership"
	"github.com/zhouzirui/clipdesk/backend/internal/service/session"
)

type fakeEndpoint struct {
	id   string
	mu   sync.Mutex
	sent []any
}

func (f *fakeEndpoint) ID() string { return f.id }

func (f *fakeEndpoint) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeEndpoint) userLists() []event.UserListEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lists []event.UserListEvent
	for _, v := range f.sent {
		if list, ok := v.(event.UserListEvent); ok {
			lists = append(lists, list)
		}
	}
	return lists
}

func newManager() (*membership.Manager, *channelStore.Store, *session.Registry) {
	store := channelStore.NewStore()
	registry := session.NewRegistry()
	return membership.NewManager(store, registry), store, registry
}

func TestJoinRejectsMissingFields(t *testing.T) {
	manager, _, _ := newManager()
	ep := &fakeEndpoint{id: "c1"}

	cases := []struct {
		identity, displayName, channelName string
	}{
		{"", "Alice", "room1"},
		{"u1", "", "room1"},
		{"u1", "Alice", ""},
	}
	for _, tc := range cases {
		if err := manager.Join(tc.identity, tc.displayName, tc.channelName, ep); err != membership.ErrInvalidJoinRequest {
			t.Fatalf("expected ErrInvalidJoinRequest for %+v, got %v", tc, err)
		}
	}
	if len(ep.userLists()) != 0 {
		t.Fatal("rejected join must not broadcast")
	}
}

func TestJoinBroadcastsUserListToAllMembers(t *testing.T) {
	manager, _, registry := newManager()
	ep1 := &fakeEndpoint{id: "c1"}
	ep2 := &fakeEndpoint{id: "c2"}

	if err := manager.Join("u1", "Alice", "room1", ep1); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	if err := manager.Join("u2", "Bob", "room1", ep2); err != nil {
		t.Fatalf("Join err: %v", err)
	}

	lists1 := ep1.userLists()
	if len(lists1) != 2 {
		t.Fatalf("expected 2 user-list events on first member, got %d", len(lists1))
	}
	lists2 := ep2.userLists()
	if len(lists2) != 1 {
		t.Fatalf("expected 1 user-list event on joiner, got %d", len(lists2))
	}

	latest := lists2[0]
	if len(latest.Users) != 2 {
		t.Fatalf("expected 2 users in snapshot, got %d", len(latest.Users))
	}
	if latest.Users["u1"].DisplayName != "Alice" || latest.Users["u2"].DisplayName != "Bob" {
		t.Fatalf("unexpected snapshot: %+v", latest.Users)
	}
	for uuid, member := range latest.Users {
		if member.Color == "" {
			t.Fatalf("member %s has no assigned color", uuid)
		}
	}

	if _, ok := registry.Lookup("u1"); !ok {
		t.Fatal("expected u1 session registered")
	}
	if _, ok := registry.Lookup("u2"); !ok {
		t.Fatal("expected u2 session registered")
	}
}

func TestDisconnectSequence(t *testing.T) {
	manager, store, registry := newManager()
	ep1 := &fakeEndpoint{id: "c1"}
	ep2 := &fakeEndpoint{id: "c2"}

	manager.Join("u1", "Alice", "room1", ep1)
	manager.Join("u2", "Bob", "room1", ep2)

	manager.HandleDisconnect(ep2)

	lists := ep1.userLists()
	latest := lists[len(lists)-1]
	if len(latest.Users) != 1 {
		t.Fatalf("expected 1 remaining user after disconnect, got %d", len(latest.Users))
	}
	if _, ok := latest.Users["u1"]; !ok {
		t.Fatalf("expected u1 to remain, got %+v", latest.Users)
	}
	if _, ok := registry.Lookup("u2"); ok {
		t.Fatal("expected u2 session unregistered after disconnect")
	}

	manager.HandleDisconnect(ep1)
	if _, ok := store.Snapshot("room1"); ok {
		t.Fatal("expected channel deleted after last disconnect")
	}
	if _, ok := registry.Lookup("u1"); ok {
		t.Fatal("expected u1 session unregistered")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	manager, store, _ := newManager()
	ep := &fakeEndpoint{id: "c1"}
	manager.Join("u1", "Alice", "room1", ep)

	manager.HandleDisconnect(ep)
	manager.HandleDisconnect(ep)

	if _, ok := store.Snapshot("room1"); ok {
		t.Fatal("expected channel deleted")
	}
}

func TestLeaveInvalidIsSilent(t *testing.T) {
	manager, _, _ := newManager()
	ep := &fakeEndpoint{id: "c1"}
	manager.Join("u1", "Alice", "room1", ep)

	before := len(ep.userLists())
	manager.Leave("", "room1")
	manager.Leave("u1", "")
	manager.Leave("ghost", "room1")
	manager.Leave("u1", "missing")

	if got := len(ep.userLists()); got != before {
		t.Fatalf("invalid leave must not broadcast, got %d new events", got-before)
	}
}

func TestLeaveBroadcastsToRemaining(t *testing.T) {
	manager, _, _ := newManager()
	ep1 := &fakeEndpoint{id: "c1"}
	ep2 := &fakeEndpoint{id: "c2"}
	manager.Join("u1", "Alice", "room1", ep1)
	manager.Join("u2", "Bob", "room1", ep2)

	manager.Leave("u2", "room1")

	lists := ep1.userLists()
	latest := lists[len(lists)-1]
	if len(latest.Users) != 1 {
		t.Fatalf("expected 1 user after leave, got %d", len(latest.Users))
	}
}
