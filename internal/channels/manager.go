package channels

import (
	"sort"
	"sync"
)

// ChannelStatus pairs a channel id with its joined flag for listings.
type ChannelStatus struct {
	Name   string
	Joined bool
}

// Manager is the registry of channel id → Channel. It distinguishes channels
// the user joined from channels that exist only because a message arrived
// for them ("listening"), and it owns the lifecycle decision that leaving a
// channel discards its history.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

func NewManager() *Manager {
	return &Manager{channels: make(map[string]*Channel)}
}

// Join marks the channel as joined, creating it if needed. Rejoining an
// existing channel is idempotent and preserves its history and participants.
func (m *Manager) Join(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[id]; ok {
		ch.setJoined(true)
		return
	}
	m.channels[id] = NewJoinedChannel(id)
}

// Leave removes the channel outright, joined or merely listening; history
// and participants are lost. Guarding the reserved "system" channel is the
// caller's policy, not ours. It reports whether the channel existed.
func (m *Manager) Leave(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[id]; !ok {
		return false
	}
	delete(m.channels, id)
	return true
}

// AddMessage routes a message to its channel, lazily creating a listening
// channel when none exists.
func (m *Manager) AddMessage(msg Message) {
	m.mu.Lock()
	ch, ok := m.channels[msg.Channel]
	if !ok {
		ch = NewChannel(msg.Channel)
		m.channels[msg.Channel] = ch
	}
	m.mu.Unlock()

	ch.AddMessage(msg)
}

// Channel returns the named channel, or nil.
func (m *Manager) Channel(id string) *Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[id]
}

// ClearChannel empties the named channel's history. It reports whether any
// messages were actually dropped, so callers can distinguish "cleared" from
// "already empty or missing".
func (m *Manager) ClearChannel(id string) bool {
	m.mu.RLock()
	ch := m.channels[id]
	m.mu.RUnlock()
	if ch == nil {
		return false
	}
	return ch.clearMessages()
}

// JoinedChannels lists joined channel ids, most recently active first.
func (m *Manager) JoinedChannels() []string {
	var out []string
	for _, st := range m.AllChannels() {
		if st.Joined {
			out = append(out, st.Name)
		}
	}
	return out
}

// AllChannels lists every channel with its joined flag, most recently active
// first. Activity ties break lexicographically so the order is deterministic.
func (m *Manager) AllChannels() []ChannelStatus {
	m.mu.RLock()
	list := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		list = append(list, ch)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		ai, aj := list[i].LastActivity(), list[j].LastActivity()
		if ai.Equal(aj) {
			return list[i].Name() < list[j].Name()
		}
		return ai.After(aj)
	})

	out := make([]ChannelStatus, len(list))
	for i, ch := range list {
		out[i] = ChannelStatus{Name: ch.Name(), Joined: ch.IsJoined()}
	}
	return out
}

// ChannelCount reports how many channels exist, joined or listening.
func (m *Manager) ChannelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

// MessageCount reports the named channel's stored message count.
func (m *Manager) MessageCount(id string) int {
	if ch := m.Channel(id); ch != nil {
		return ch.MessageCount()
	}
	return 0
}

// ParticipantCount reports the named channel's active participant count.
func (m *Manager) ParticipantCount(id string) int {
	if ch := m.Channel(id); ch != nil {
		return ch.ParticipantCount()
	}
	return 0
}
