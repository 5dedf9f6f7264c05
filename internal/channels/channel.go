package channels

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// maxMessages bounds each channel's history. Once exceeded, the oldest
	// excess messages are dropped in one bulk operation.
	maxMessages = 250

	// participantTTL is how long a participant stays listed after their
	// last message. Expiry is checked opportunistically on every insert.
	participantTTL = time.Hour
)

// Channel owns one chat's message history and participant directory. The id
// is a geohash, the literal "system", or a synthesized "dm:<pubkey>" for
// private chats. Safe for concurrent use: the TUI reads while the ingestion
// path writes.
type Channel struct {
	name string

	mu           sync.RWMutex
	messages     []Message
	participants map[string]*Participant
	lastActivity time.Time
	joined       bool

	now func() time.Time
}

// NewChannel creates a listening-only channel (observed, not joined).
func NewChannel(name string) *Channel {
	return &Channel{
		name:         name,
		participants: make(map[string]*Participant),
		lastActivity: time.Now(),
		now:          time.Now,
	}
}

// NewJoinedChannel creates a channel the user explicitly subscribed to.
func NewJoinedChannel(name string) *Channel {
	ch := NewChannel(name)
	ch.joined = true
	return ch
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) IsJoined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joined
}

func (c *Channel) setJoined(joined bool) {
	c.mu.Lock()
	c.joined = joined
	c.mu.Unlock()
}

func (c *Channel) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// AddMessage stores a message, keeping the history ordered by timestamp and
// bounded, and refreshes the sender's participant record. It cannot fail;
// capacity is enforced by eviction, not rejection.
func (c *Channel) AddMessage(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	p, ok := c.participants[msg.Nickname]
	if !ok {
		p = &Participant{Nickname: msg.Nickname}
		c.participants[msg.Nickname] = p
	}
	p.LastSeen = now
	p.MessageCount++
	// First-seen pubkey wins; later messages never clear a known key.
	if p.PubKey == "" && msg.PubKey != "" {
		p.PubKey = msg.PubKey
	}

	c.insertOrdered(msg)
	c.lastActivity = now

	if excess := len(c.messages) - maxMessages; excess > 0 {
		c.messages = c.messages[excess:]
	}

	for nick, p := range c.participants {
		if now.Sub(p.LastSeen) > participantTTL {
			delete(c.participants, nick)
		}
	}
}

// insertOrdered keeps messages in non-decreasing timestamp order. The common
// case (new message is newest) is an O(1) append; stragglers are spliced in.
func (c *Channel) insertOrdered(msg Message) {
	n := len(c.messages)
	if n == 0 || !msg.Timestamp.Before(c.messages[n-1].Timestamp) {
		c.messages = append(c.messages, msg)
		return
	}
	i := sort.Search(n, func(i int) bool {
		return c.messages[i].Timestamp.After(msg.Timestamp)
	})
	c.messages = append(c.messages, Message{})
	copy(c.messages[i+1:], c.messages[i:])
	c.messages[i] = msg
}

// FindMatchingNicknames returns display-form completions for a prefix. The
// prefix matches case-insensitively against the plain nickname and against
// the full "nick#xxxx" display label. Results are deduplicated and ordered
// by participant recency, most recently active first.
func (c *Channel) FindMatchingNicknames(prefix string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byRecency := make([]*Participant, 0, len(c.participants))
	for _, p := range c.participants {
		byRecency = append(byRecency, p)
	}
	sort.Slice(byRecency, func(i, j int) bool {
		if byRecency[i].LastSeen.Equal(byRecency[j].LastSeen) {
			return byRecency[i].Nickname < byRecency[j].Nickname
		}
		return byRecency[i].LastSeen.After(byRecency[j].LastSeen)
	})

	lower := strings.ToLower(prefix)
	seen := make(map[string]struct{})
	var matches []string
	for _, p := range byRecency {
		display := DisplayNickname(p.Nickname, p.PubKey)
		if !strings.HasPrefix(strings.ToLower(p.Nickname), lower) &&
			!strings.HasPrefix(strings.ToLower(display), lower) {
			continue
		}
		if _, dup := seen[display]; dup {
			continue
		}
		seen[display] = struct{}{}
		matches = append(matches, display)
	}
	return matches
}

func (c *Channel) MessageCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

func (c *Channel) ParticipantCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.participants)
}

// Participant returns a copy of the record for the given nickname.
func (c *Channel) Participant(nickname string) (Participant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.participants[nickname]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Participants returns a copy of every participant record, unordered.
func (c *Channel) Participants() []Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Participant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, *p)
	}
	return out
}

// Messages returns a copy of the full history, oldest first.
func (c *Channel) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// RecentMessages returns up to limit of the newest messages, oldest first.
func (c *Channel) RecentMessages(limit int) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	start := len(c.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(c.messages)-start)
	copy(out, c.messages[start:])
	return out
}

// MessagesSince returns messages with timestamps at or after t, oldest first.
func (c *Channel) MessagesSince(t time.Time) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Message
	for _, m := range c.messages {
		if !m.Timestamp.Before(t) {
			out = append(out, m)
		}
	}
	return out
}

// SearchMessages returns messages whose content contains the query,
// case-insensitively.
func (c *Channel) SearchMessages(query string) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q := strings.ToLower(query)
	var out []Message
	for _, m := range c.messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			out = append(out, m)
		}
	}
	return out
}

// clearMessages empties the history and reports whether anything was dropped.
func (c *Channel) clearMessages() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	had := len(c.messages) > 0
	c.messages = nil
	return had
}
