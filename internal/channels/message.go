// Package channels holds the in-memory chat state: per-channel message
// history, participant directories, and the registry that owns channel
// lifecycles. Everything here is ephemeral; nothing survives a restart.
package channels

import (
	"time"
)

// Message is a single decoded chat message. Values are immutable once
// constructed by the ingestion path.
type Message struct {
	Channel         string
	Nickname        string
	Content         string
	Timestamp       time.Time
	PubKey          string
	IsOwn           bool
	IsPrivate       bool
	RecipientPubKey string
}

// Participant tracks one nickname's presence in a channel.
type Participant struct {
	Nickname     string
	PubKey       string
	LastSeen     time.Time
	MessageCount int
}

// DisplayNickname formats a nickname with a short pubkey suffix when one is
// known, e.g. "alice#02c1". Nicknames without a pubkey are returned as-is.
func DisplayNickname(nickname, pubkey string) string {
	if len(pubkey) >= 4 {
		return nickname + "#" + pubkey[:4]
	}
	return nickname
}
