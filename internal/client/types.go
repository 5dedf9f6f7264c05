package client

import (
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Constants for the client's operation.
const (
	geochatKind          = 20000
	seenCacheSize        = 8192
	userContextCacheSize = 4096
	MaxMsgLen            = 2000

	connectTimeout   = 10 * time.Second
	publishTimeout   = 5 * time.Second
	backfillWindow   = time.Hour
	backfillLimit    = 100
	maintenanceEvery = 30 * time.Second
)

// SystemChannel receives status and housekeeping messages. It always exists
// and cannot be left.
const SystemChannel = "system"

// UserAction represents an action initiated by the user from the TUI.
type UserAction struct {
	Type    string
	Payload string
}

// RelayStatus holds status information about a single relay connection.
type RelayStatus struct {
	URL       string
	Latency   time.Duration
	Connected bool
}

// DisplayEvent represents an event sent from the client to the TUI for display.
type DisplayEvent struct {
	Type         string
	Timestamp    string
	Nick         string
	Content      string
	FullPubKey   string
	ShortPubKey  string
	IsOwnMessage bool
	RelayURL     string
	Chat         string
	Payload      any
}

// StateUpdate is a specific payload for a DisplayEvent to update the TUI's state.
type StateUpdate struct {
	Channels []ChannelEntry
	Current  string
	Nick     string
}

// ChannelEntry is one row of the TUI channel list.
type ChannelEntry struct {
	Name         string
	Joined       bool
	Messages     int
	Participants int
}

// BlockedUser is a persisted block-list entry.
type BlockedUser struct {
	PubKey string `json:"pubkey"`
	Nick   string `json:"nick,omitempty"`
}

// userContext holds cached information about a user seen in a chat.
type userContext struct {
	nick string
	chat string
}

// managedRelay wraps a nostr.Relay with additional state for management.
type managedRelay struct {
	url          string
	relay        *nostr.Relay
	latency      time.Duration
	subscription *nostr.Subscription
	connected    bool
	mu           sync.Mutex
}
