package membership

import (
	"errors"
	"log"
	"math/rand"

	channelModel "github.com/zhouzirui/clipdesk/backend/internal/model/channel"
	"github.com/zhouzirui/clipdesk/backend/internal/model/event"
	channelStore "github.com/zhouzirui/clipdesk/backend/internal/service/channel"
	"github.com/zhouzirui/clipdesk/backend/internal/service/session"
	"github.com/zhouzirui/clipdesk/backend/internal/transport"
)

// ErrInvalidJoinRequest rejects a join with a missing identity, display name
// or channel name.
var ErrInvalidJoinRequest = errors.New("identity, display name and channel name are required")

// palette of display colors assigned on join.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#800000", "#aaffc3",
}

// Manager drives the join/leave/disconnect lifecycle against the channel
// store and session registry, and broadcasts user-list updates to the
// affected channel.
type Manager struct {
	store    *channelStore.Store
	registry *session.Registry
}

// NewManager wires a manager to its shared state.
func NewManager(store *channelStore.Store, registry *session.Registry) *Manager {
	return &Manager{store: store, registry: registry}
}

// Join admits identity into channelName and broadcasts the updated user-list
// to every member, the new joiner included. A rejoin under the same identity
// silently overwrites the earlier entry.
func (m *Manager) Join(identity, displayName, channelName string, ep transport.Endpoint) error {
	if identity == "" || displayName == "" || channelName == "" {
		return ErrInvalidJoinRequest
	}

	member := channelModel.Member{
		UUID:        identity,
		DisplayName: displayName,
		Color:       palette[rand.Intn(len(palette))],
	}

	snapshot := m.store.Join(channelName, identity, member, ep)
	m.registry.Register(identity, ep)

	log.Printf("[membership] %s (%s) joined channel %s, members=%d", displayName, identity, channelName, len(snapshot))
	m.broadcastUserList(channelName, snapshot)
	return nil
}

// Leave removes identity from channelName. Invalid or stale leave requests
// are swallowed: leave races with disconnect and must not surface noise.
func (m *Manager) Leave(identity, channelName string) {
	if identity == "" || channelName == "" {
		return
	}
	m.remove(identity, channelName)
}

// HandleDisconnect cleans up every membership held by the endpoint. It is
// idempotent: a second call for the same endpoint finds nothing to remove.
func (m *Manager) HandleDisconnect(ep transport.Endpoint) {
	for _, membership := range m.store.MembershipsFor(ep.ID()) {
		m.remove(membership.Identity, membership.Channel)
	}
}

func (m *Manager) remove(identity, channelName string) {
	snapshot, deleted, removed := m.store.Leave(channelName, identity)
	if !removed {
		return
	}

	m.registry.Unregister(identity)

	if deleted {
		log.Printf("[membership] channel %s deleted after last leave", channelName)
		return
	}

	log.Printf("[membership] %s left channel %s, members=%d", identity, channelName, len(snapshot))
	m.broadcastUserList(channelName, snapshot)
}

// broadcastUserList captures the current endpoint set and fans out without
// holding any store lock.
func (m *Manager) broadcastUserList(channelName string, snapshot map[string]channelModel.Member) {
	endpoints, ok := m.store.Endpoints(channelName)
	if !ok {
		return
	}
	transport.Fanout(endpoints, event.NewUserList(channelName, snapshot))
}
