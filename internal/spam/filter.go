// Package spam classifies inbound messages and maintains the auto-mute state
// machine. Classification is a total function: it never fails, it only
// decides whether a message should be dropped before reaching the store.
package spam

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/lessucettes/geochat/internal/channels"
)

const (
	// maxMessagesPerMinute is the frequency ceiling inside one sliding window.
	maxMessagesPerMinute = 15
	// duplicateThreshold mutes after this many identical messages.
	duplicateThreshold = 3
	// maxFutureDrift tolerates clock skew on inbound timestamps.
	maxFutureDrift = 5 * time.Minute
	// maxPastAge rejects replayed history.
	maxPastAge = 24 * time.Hour

	muteDuration     = 600 * time.Second
	frequencyWindow  = 60 * time.Second
	frequencyIdleTTL = 120 * time.Second
)

// spamKeywords is matched case-insensitively as substrings of message content.
var spamKeywords = []string{
	"\U0001F680\U0001F680\U0001F680",
	"CLICK HERE",
	"FREE MONEY",
	"telegram.me",
	"bit.ly",
	"JOIN NOW",
	"LIMITED TIME",
	"EARN $$$",
	"CRYPTO PUMP",
	"\U0001F3B0\U0001F3B0\U0001F3B0",
}

// Verdict is the outcome of classifying one message.
type Verdict struct {
	Spam       bool
	Reason     string
	NewlyMuted bool
}

// MutedUser pairs a muted identity with its remaining mute time.
type MutedUser struct {
	PubKey    string
	Remaining time.Duration
}

type freqEntry struct {
	count       int
	windowStart time.Time
}

type dupEntry struct {
	count  int
	pubkey string
}

// Filter keeps per-identity spam state: message frequency windows, auto-mute
// expiries, and a duplicate-content table keyed by a rolling hash. None of it
// persists across restarts.
type Filter struct {
	mu        sync.Mutex
	frequency map[string]freqEntry
	muted     map[string]time.Time
	hashes    map[uint64]dupEntry

	now func() time.Time
}

func NewFilter() *Filter {
	return &Filter{
		frequency: make(map[string]freqEntry),
		muted:     make(map[string]time.Time),
		hashes:    make(map[uint64]dupEntry),
		now:       time.Now,
	}
}

// IsSpam reports whether the message should be dropped.
func (f *Filter) IsSpam(msg *channels.Message) bool {
	return f.Check(msg).Spam
}

// Check classifies a message. Rules are evaluated in a fixed order and the
// first match decides; most matches also auto-mute the sender for 10 minutes.
// Messages without a pubkey are system-originated and always pass.
func (f *Filter) Check(msg *channels.Message) Verdict {
	if msg.PubKey == "" {
		return Verdict{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()

	if msg.Timestamp.After(now.Add(maxFutureDrift)) {
		return f.spamVerdict(msg.PubKey, "future timestamp", now)
	}

	if msg.Timestamp.Before(now.Add(-maxPastAge)) {
		return f.spamVerdict(msg.PubKey, "old timestamp", now)
	}

	if muteStart, ok := f.muted[msg.PubKey]; ok {
		if now.Sub(muteStart) < muteDuration {
			// Still muted; no new mute, no repeat notification.
			return Verdict{Spam: true, Reason: "muted"}
		}
		delete(f.muted, msg.PubKey)
	}

	content := strings.ToLower(msg.Content)
	for _, kw := range spamKeywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			return f.spamVerdict(msg.PubKey, "spam keywords", now)
		}
	}

	if f.overFrequencyLimit(msg.PubKey, now) {
		return f.spamVerdict(msg.PubKey, "high message frequency", now)
	}

	if f.isDuplicate(msg) {
		return f.spamVerdict(msg.PubKey, "duplicate messages", now)
	}

	if excessiveCaps(msg.Content) {
		return f.spamVerdict(msg.PubKey, "excessive caps", now)
	}

	return Verdict{}
}

func (f *Filter) spamVerdict(pubkey, reason string, now time.Time) Verdict {
	return Verdict{Spam: true, Reason: reason, NewlyMuted: f.autoMute(pubkey, now)}
}

// autoMute records a mute start for the identity. It returns false when the
// identity is already muted so callers surface at most one notification.
func (f *Filter) autoMute(pubkey string, now time.Time) bool {
	if _, ok := f.muted[pubkey]; ok {
		return false
	}
	f.muted[pubkey] = now
	delete(f.frequency, pubkey)
	return true
}

// overFrequencyLimit maintains the 60-second sliding window for an identity
// and reports whether this message pushed it over the limit.
func (f *Filter) overFrequencyLimit(pubkey string, now time.Time) bool {
	e, ok := f.frequency[pubkey]
	if !ok || now.Sub(e.windowStart) >= frequencyWindow {
		f.frequency[pubkey] = freqEntry{count: 1, windowStart: now}
		return false
	}
	e.count++
	f.frequency[pubkey] = e
	return e.count > maxMessagesPerMinute
}

// isDuplicate counts repeats of identical content from the same identity.
// The hash can collide across different content; that risk is accepted.
func (f *Filter) isDuplicate(msg *channels.Message) bool {
	h := contentHash(msg.Content)
	if e, ok := f.hashes[h]; ok {
		if e.pubkey != msg.PubKey {
			return false
		}
		e.count++
		f.hashes[h] = e
		return e.count >= duplicateThreshold
	}
	f.hashes[h] = dupEntry{count: 1, pubkey: msg.PubKey}
	return false
}

// contentHash is a base-31 polynomial rolling hash over the content bytes.
func contentHash(content string) uint64 {
	var h uint64
	for i := 0; i < len(content); i++ {
		h = h*31 + uint64(content[i])
	}
	return h
}

// excessiveCaps flags shouting: content longer than 20 bytes where more than
// 80% of the letters are uppercase.
func excessiveCaps(content string) bool {
	if len(content) <= 20 {
		return false
	}
	var upper, letters int
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters > 0 && float64(upper)/float64(letters) > 0.8
}

// IsUserAutoMuted reports whether the identity has an unexpired auto-mute.
func (f *Filter) IsUserAutoMuted(pubkey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	muteStart, ok := f.muted[pubkey]
	return ok && f.now().Sub(muteStart) < muteDuration
}

// ManuallyUnmuteUser removes a mute immediately, bypassing the TTL. The next
// message from the identity is re-evaluated from scratch. It reports whether
// an active mute was removed.
func (f *Filter) ManuallyUnmuteUser(pubkey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	muteStart, ok := f.muted[pubkey]
	delete(f.muted, pubkey)
	return ok && f.now().Sub(muteStart) < muteDuration
}

// AutoMutedUsers lists currently muted identities with their remaining mute
// time, skipping any whose mute has already lapsed.
func (f *Filter) AutoMutedUsers() []MutedUser {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	var out []MutedUser
	for pubkey, muteStart := range f.muted {
		elapsed := now.Sub(muteStart)
		if elapsed < muteDuration {
			out = append(out, MutedUser{PubKey: pubkey, Remaining: muteDuration - elapsed})
		}
	}
	return out
}

// AutoMutedCount reports the number of tracked mute entries.
func (f *Filter) AutoMutedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.muted)
}

// Enabled reports whether filtering is active. It always is in this build.
func (f *Filter) Enabled() bool { return true }

// CleanupOldData drops stale state: frequency windows idle beyond their TTL,
// the whole duplicate table (coarse reset tied to the cleanup cadence rather
// than a per-entry window), and expired mutes. Call it once per UI tick.
func (f *Filter) CleanupOldData() {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for pubkey, e := range f.frequency {
		if now.Sub(e.windowStart) >= frequencyIdleTTL {
			delete(f.frequency, pubkey)
		}
	}
	f.hashes = make(map[uint64]dupEntry)
	for pubkey, muteStart := range f.muted {
		if now.Sub(muteStart) >= muteDuration {
			delete(f.muted, pubkey)
		}
	}
}
