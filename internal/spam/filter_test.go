package spam

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lessucettes/geochat/internal/channels"
)

func newTestFilter(start time.Time) (*Filter, func(d time.Duration)) {
	current := start
	f := NewFilter()
	f.now = func() time.Time { return current }
	return f, func(d time.Duration) { current = current.Add(d) }
}

func msg(pubkey, content string, ts time.Time) *channels.Message {
	return &channels.Message{
		Channel:   "u4pruyd",
		Nickname:  "tester",
		Content:   content,
		Timestamp: ts,
		PubKey:    pubkey,
	}
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCheck_CleanMessagePasses(t *testing.T) {
	f, _ := newTestFilter(t0)

	v := f.Check(msg("aaaa", "hello everyone", t0))
	require.False(t, v.Spam)
	require.Empty(t, v.Reason)
	require.False(t, v.NewlyMuted)
}

func TestCheck_SystemMessagesExempt(t *testing.T) {
	f, _ := newTestFilter(t0)

	// No pubkey means system-originated; even blatant content passes.
	v := f.Check(&channels.Message{Content: "CLICK HERE FREE MONEY", Timestamp: t0.Add(-48 * time.Hour)})
	require.False(t, v.Spam)
}

func TestCheck_FutureTimestamp(t *testing.T) {
	f, _ := newTestFilter(t0)

	// Just inside the tolerated drift.
	v := f.Check(msg("aaaa", "hi", t0.Add(maxFutureDrift)))
	require.False(t, v.Spam)

	f2, _ := newTestFilter(t0)
	v = f2.Check(msg("aaaa", "hi", t0.Add(maxFutureDrift+time.Second)))
	require.True(t, v.Spam)
	require.Equal(t, "future timestamp", v.Reason)
	require.True(t, v.NewlyMuted)
	require.True(t, f2.IsUserAutoMuted("aaaa"))
}

func TestCheck_OldTimestamp(t *testing.T) {
	f, _ := newTestFilter(t0)

	v := f.Check(msg("aaaa", "hi", t0.Add(-maxPastAge-time.Second)))
	require.True(t, v.Spam)
	require.Equal(t, "old timestamp", v.Reason)
	require.True(t, v.NewlyMuted)
}

func TestCheck_SpamKeywords(t *testing.T) {
	f, _ := newTestFilter(t0)

	cases := []string{
		"CLICK HERE to win",
		"get free money today",   // case-insensitive
		"join t.me via bit.ly/x", // embedded link shortener
	}
	for i, content := range cases {
		pk := fmt.Sprintf("kw%d", i)
		v := f.Check(msg(pk, content, t0))
		require.True(t, v.Spam, "content %q", content)
		require.Equal(t, "spam keywords", v.Reason)
	}
}

func TestCheck_MutedUserSuppressedWithoutNewNotification(t *testing.T) {
	f, _ := newTestFilter(t0)

	v := f.Check(msg("aaaa", "CLICK HERE", t0))
	require.True(t, v.NewlyMuted)

	// A clean message during the mute is still dropped, with no second
	// notification.
	v = f.Check(msg("aaaa", "sorry about that", t0))
	require.True(t, v.Spam)
	require.Equal(t, "muted", v.Reason)
	require.False(t, v.NewlyMuted)
}

func TestCheck_MuteExpiresAfterTenMinutes(t *testing.T) {
	f, advance := newTestFilter(t0)

	f.Check(msg("aaaa", "CLICK HERE", t0))
	require.True(t, f.IsUserAutoMuted("aaaa"))

	advance(muteDuration + time.Second)
	v := f.Check(msg("aaaa", "clean message", t0.Add(muteDuration+time.Second)))
	require.False(t, v.Spam, "mute must lapse after its duration")
	require.False(t, f.IsUserAutoMuted("aaaa"))
}

func TestCheck_FrequencyLimit(t *testing.T) {
	f, _ := newTestFilter(t0)

	for i := 0; i < maxMessagesPerMinute; i++ {
		v := f.Check(msg("aaaa", fmt.Sprintf("unique message %d", i), t0))
		require.False(t, v.Spam, "message %d within the limit", i+1)
	}

	v := f.Check(msg("aaaa", "one too many", t0))
	require.True(t, v.Spam)
	require.Equal(t, "high message frequency", v.Reason)
	require.True(t, v.NewlyMuted)
}

func TestCheck_FrequencyWindowResets(t *testing.T) {
	f, advance := newTestFilter(t0)

	for i := 0; i < maxMessagesPerMinute; i++ {
		f.Check(msg("aaaa", fmt.Sprintf("msg %d", i), t0))
	}

	// A fresh window starts after 60 seconds of wall time.
	advance(frequencyWindow)
	v := f.Check(msg("aaaa", "new window", t0.Add(frequencyWindow)))
	require.False(t, v.Spam)
}

func TestCheck_DuplicateMessages(t *testing.T) {
	f, _ := newTestFilter(t0)

	require.False(t, f.Check(msg("aaaa", "buy my thing", t0)).Spam)
	require.False(t, f.Check(msg("aaaa", "buy my thing", t0)).Spam)

	v := f.Check(msg("aaaa", "buy my thing", t0))
	require.True(t, v.Spam, "the third identical message is spam")
	require.Equal(t, "duplicate messages", v.Reason)
}

func TestCheck_DuplicatesTrackedPerSender(t *testing.T) {
	f, _ := newTestFilter(t0)

	f.Check(msg("aaaa", "gm", t0))
	f.Check(msg("bbbb", "gm", t0))
	v := f.Check(msg("cccc", "gm", t0))
	require.False(t, v.Spam, "identical content from different senders is not duplicate spam")
}

func TestCheck_ExcessiveCaps(t *testing.T) {
	f, _ := newTestFilter(t0)

	// Short shouting is tolerated.
	require.False(t, f.Check(msg("aaaa", "HELLO THERE", t0)).Spam)

	v := f.Check(msg("bbbb", "THIS IS A VERY LOUD MESSAGE INDEED", t0))
	require.True(t, v.Spam)
	require.Equal(t, "excessive caps", v.Reason)

	// Mixed case under the ratio passes.
	require.False(t, f.Check(msg("cccc", "This Is A Perfectly Normal Long Sentence", t0)).Spam)
}

func TestCheck_TimestampRulesPrecedeMuteCheck(t *testing.T) {
	f, _ := newTestFilter(t0)

	f.Check(msg("aaaa", "CLICK HERE", t0))

	// A future-dated message from a muted user reports the timestamp rule,
	// not the mute.
	v := f.Check(msg("aaaa", "hi", t0.Add(time.Hour)))
	require.True(t, v.Spam)
	require.Equal(t, "future timestamp", v.Reason)
}

func TestManuallyUnmuteUser(t *testing.T) {
	f, _ := newTestFilter(t0)

	f.Check(msg("aaaa", "CLICK HERE", t0))
	require.True(t, f.ManuallyUnmuteUser("aaaa"))
	require.False(t, f.IsUserAutoMuted("aaaa"))
	require.False(t, f.ManuallyUnmuteUser("aaaa"), "unmuting twice reports no active mute")

	// The next message is evaluated from scratch.
	v := f.Check(msg("aaaa", "clean now", t0))
	require.False(t, v.Spam)
}

func TestAutoMutedUsers(t *testing.T) {
	f, advance := newTestFilter(t0)

	f.Check(msg("aaaa", "CLICK HERE", t0))
	advance(muteDuration / 2)
	f.Check(msg("bbbb", "FREE MONEY", t0.Add(muteDuration/2)))

	muted := f.AutoMutedUsers()
	require.Len(t, muted, 2)
	for _, m := range muted {
		require.Greater(t, m.Remaining, time.Duration(0))
		require.LessOrEqual(t, m.Remaining, muteDuration)
	}

	// After the first mute lapses only the second remains listed.
	advance(muteDuration / 2)
	muted = f.AutoMutedUsers()
	require.Len(t, muted, 1)
	require.Equal(t, "bbbb", muted[0].PubKey)
}

func TestCleanupOldData(t *testing.T) {
	f, advance := newTestFilter(t0)

	// Seed frequency, duplicate, and mute state.
	f.Check(msg("fresh", "hello", t0))
	f.Check(msg("idle", "hi there", t0))
	f.Check(msg("spammer", "CLICK HERE", t0))

	advance(frequencyIdleTTL)
	f.Check(msg("fresh", "still here", t0.Add(frequencyIdleTTL)))
	f.CleanupOldData()

	f.mu.Lock()
	_, idleKept := f.frequency["idle"]
	_, freshKept := f.frequency["fresh"]
	hashCount := len(f.hashes)
	_, stillMuted := f.muted["spammer"]
	f.mu.Unlock()

	require.False(t, idleKept, "idle frequency entries are dropped")
	require.True(t, freshKept)
	require.Zero(t, hashCount, "the duplicate table is fully reset")
	require.True(t, stillMuted, "unexpired mutes survive cleanup")

	advance(muteDuration)
	f.CleanupOldData()
	f.mu.Lock()
	_, stillMuted = f.muted["spammer"]
	f.mu.Unlock()
	require.False(t, stillMuted, "expired mutes are removed")
}

func TestIsSpamConvenience(t *testing.T) {
	f, _ := newTestFilter(t0)
	require.True(t, f.IsSpam(msg("aaaa", "CRYPTO PUMP starts now", t0)))
	require.False(t, f.IsSpam(msg("bbbb", "lunch?", t0)))
}
