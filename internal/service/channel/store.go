package channel

import (
	"sync"

	channelModel "github.com/zhouzirui/clipdesk/backend/internal/model/channel"
	"github.com/zhouzirui/clipdesk/backend/internal/transport"
)

// Store owns the channel tables: per channel name, a membership metadata map
// and an endpoint map keyed by the same participant identities. A channel
// exists exactly while it has at least one member; the first join creates it
// and the last leave deletes it. All mutation goes through a single mutex so
// the two maps can never drift apart.
type Store struct {
	mu       sync.RWMutex
	channels map[string]*entry
}

type entry struct {
	members   map[string]channelModel.Member
	endpoints map[string]transport.Endpoint
}

// Membership identifies one (channel, participant) pair, used for
// disconnect-triggered cleanup.
type Membership struct {
	Channel  string
	Identity string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{channels: make(map[string]*entry)}
}

// Join inserts or overwrites the member and endpoint entries for identity,
// creating the channel on first join. It returns the resulting membership
// snapshot for the user-list broadcast.
func (s *Store) Join(channelName, identity string, member channelModel.Member, ep transport.Endpoint) map[string]channelModel.Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.channels[channelName]
	if !ok {
		e = &entry{
			members:   make(map[string]channelModel.Member),
			endpoints: make(map[string]transport.Endpoint),
		}
		s.channels[channelName] = e
	}

	e.members[identity] = member
	e.endpoints[identity] = ep

	return copyMembers(e.members)
}

// Leave removes identity from both maps of the channel. removed reports
// whether anything changed; deleted reports that the channel became empty and
// was dropped. When the channel survives, snapshot holds the updated
// membership for broadcast.
func (s *Store) Leave(channelName, identity string) (snapshot map[string]channelModel.Member, deleted, removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.channels[channelName]
	if !ok {
		return nil, false, false
	}
	if _, ok := e.members[identity]; !ok {
		return nil, false, false
	}

	delete(e.members, identity)
	delete(e.endpoints, identity)

	if len(e.members) == 0 {
		delete(s.channels, channelName)
		return nil, true, true
	}
	return copyMembers(e.members), false, true
}

// Snapshot returns a copy of the channel's membership, or ok=false if the
// channel does not exist.
func (s *Store) Snapshot(channelName string) (map[string]channelModel.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.channels[channelName]
	if !ok {
		return nil, false
	}
	return copyMembers(e.members), true
}

// SnapshotAll returns a copy of every channel's membership.
func (s *Store) SnapshotAll() map[string]map[string]channelModel.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make(map[string]map[string]channelModel.Member, len(s.channels))
	for name, e := range s.channels {
		all[name] = copyMembers(e.members)
	}
	return all
}

// IsMember reports whether identity is currently joined to the channel.
func (s *Store) IsMember(channelName, identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.channels[channelName]
	if !ok {
		return false
	}
	_, ok = e.members[identity]
	return ok
}

// Endpoints returns the live endpoints subscribed to the channel. The copy
// lets callers fan out without holding the store lock.
func (s *Store) Endpoints(channelName string) ([]transport.Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.channels[channelName]
	if !ok {
		return nil, false
	}
	endpoints := make([]transport.Endpoint, 0, len(e.endpoints))
	for _, ep := range e.endpoints {
		endpoints = append(endpoints, ep)
	}
	return endpoints, true
}

// MembershipsFor returns every (channel, identity) pair whose live endpoint
// matches endpointID. Identities are matched by endpoint rather than by name
// because a rejoin may have left a stale identity behind on another socket.
func (s *Store) MembershipsFor(endpointID string) []Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var memberships []Membership
	for name, e := range s.channels {
		for identity, ep := range e.endpoints {
			if ep.ID() == endpointID {
				memberships = append(memberships, Membership{Channel: name, Identity: identity})
			}
		}
	}
	return memberships
}

func copyMembers(members map[string]channelModel.Member) map[string]channelModel.Member {
	copied := make(map[string]channelModel.Member, len(members))
	for identity, member := range members {
		copied[identity] = member
	}
	return copied
}
