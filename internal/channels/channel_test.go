package channels

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testClock(start time.Time) (func() time.Time, func(d time.Duration)) {
	current := start
	return func() time.Time { return current },
		func(d time.Duration) { current = current.Add(d) }
}

func TestAddMessage_AppendsInOrder(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ch.AddMessage(Message{
			Channel:   "u4pruyd",
			Nickname:  "alice",
			Content:   fmt.Sprintf("msg %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			PubKey:    "a1b2",
		})
	}

	msgs := ch.Messages()
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		require.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
	require.Equal(t, "msg 4", msgs[4].Content)
}

func TestAddMessage_OutOfOrderArrival(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Arrive out of order; stragglers must be spliced into place.
	offsets := []int{10, 5, 20, 1, 15, 3}
	for _, off := range offsets {
		ch.AddMessage(Message{
			Channel:   "u4pruyd",
			Nickname:  "bob",
			Content:   fmt.Sprintf("t+%d", off),
			Timestamp: base.Add(time.Duration(off) * time.Second),
			PubKey:    "b2c3",
		})
	}

	msgs := ch.Messages()
	require.Len(t, msgs, len(offsets))
	for i := 1; i < len(msgs); i++ {
		require.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp),
			"messages must stay in non-decreasing timestamp order")
	}
	require.Equal(t, "t+1", msgs[0].Content)
	require.Equal(t, "t+20", msgs[len(msgs)-1].Content)
}

func TestAddMessage_EqualTimestampsPreserveArrival(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ch.AddMessage(Message{
			Channel:   "u4pruyd",
			Nickname:  "carol",
			Content:   fmt.Sprintf("same %d", i),
			Timestamp: ts,
			PubKey:    "c3d4",
		})
	}

	msgs := ch.Messages()
	require.Equal(t, []string{"same 0", "same 1", "same 2"},
		[]string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestAddMessage_CapRetainsNewest(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < maxMessages+50; i++ {
		ch.AddMessage(Message{
			Channel:   "u4pruyd",
			Nickname:  "alice",
			Content:   fmt.Sprintf("msg %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			PubKey:    "a1b2",
		})
	}

	require.Equal(t, maxMessages, ch.MessageCount())
	msgs := ch.Messages()
	require.Equal(t, "msg 50", msgs[0].Content, "oldest excess must be dropped")
	require.Equal(t, fmt.Sprintf("msg %d", maxMessages+49), msgs[len(msgs)-1].Content)
}

func TestAddMessage_ParticipantTracking(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")
	now, _ := testClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ch.now = now

	ch.AddMessage(Message{Nickname: "alice", Content: "hi", Timestamp: now(), PubKey: "aaaa1111"})
	ch.AddMessage(Message{Nickname: "alice", Content: "again", Timestamp: now(), PubKey: "aaaa1111"})

	p, ok := ch.Participant("alice")
	require.True(t, ok)
	require.Equal(t, 2, p.MessageCount)
	require.Equal(t, "aaaa1111", p.PubKey)
	require.Equal(t, 1, ch.ParticipantCount())
}

func TestAddMessage_FirstPubKeyWins(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")

	ch.AddMessage(Message{Nickname: "alice", Content: "first", Timestamp: time.Now(), PubKey: "aaaa1111"})
	ch.AddMessage(Message{Nickname: "alice", Content: "imposter", Timestamp: time.Now(), PubKey: "ffff9999"})

	p, ok := ch.Participant("alice")
	require.True(t, ok)
	require.Equal(t, "aaaa1111", p.PubKey, "a later pubkey must not displace the first")
}

func TestAddMessage_ParticipantEviction(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")
	now, advance := testClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ch.now = now

	ch.AddMessage(Message{Nickname: "idle", Content: "bye", Timestamp: now(), PubKey: "1111"})
	advance(participantTTL + time.Minute)
	ch.AddMessage(Message{Nickname: "active", Content: "hi", Timestamp: now(), PubKey: "2222"})

	_, ok := ch.Participant("idle")
	require.False(t, ok, "participants idle beyond the TTL are evicted")
	_, ok = ch.Participant("active")
	require.True(t, ok)
}

func TestFindMatchingNicknames(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")
	now, advance := testClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ch.now = now

	ch.AddMessage(Message{Nickname: "al1", Content: "a", Timestamp: now(), PubKey: "02c1ffff"})
	advance(time.Minute)
	ch.AddMessage(Message{Nickname: "alice", Content: "b", Timestamp: now(), PubKey: "9f3adddd"})
	advance(time.Minute)
	ch.AddMessage(Message{Nickname: "bob", Content: "c", Timestamp: now(), PubKey: "77aabbbb"})

	matches := ch.FindMatchingNicknames("al")
	require.Equal(t, []string{"alice#9f3a", "al1#02c1"}, matches,
		"matches are display-form, most recently active first")

	// Prefix can match against the display label too.
	matches = ch.FindMatchingNicknames("al1#02c1")
	require.Equal(t, []string{"al1#02c1"}, matches)

	require.Empty(t, ch.FindMatchingNicknames("zz"))
}

func TestFindMatchingNicknames_CaseInsensitiveAndDedup(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")

	ch.AddMessage(Message{Nickname: "Alice", Content: "a", Timestamp: time.Now(), PubKey: "9f3adddd"})
	ch.AddMessage(Message{Nickname: "Alice", Content: "b", Timestamp: time.Now(), PubKey: "9f3adddd"})

	matches := ch.FindMatchingNicknames("ali")
	require.Equal(t, []string{"Alice#9f3a"}, matches)
}

func TestRecentMessagesAndSince(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		ch.AddMessage(Message{
			Nickname:  "alice",
			Content:   fmt.Sprintf("msg %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			PubKey:    "a1b2",
		})
	}

	recent := ch.RecentMessages(3)
	require.Len(t, recent, 3)
	require.Equal(t, "msg 7", recent[0].Content)

	since := ch.MessagesSince(base.Add(8 * time.Minute))
	require.Len(t, since, 2)
	require.Equal(t, "msg 8", since[0].Content)
}

func TestSearchMessages(t *testing.T) {
	ch := NewJoinedChannel("u4pruyd")
	ch.AddMessage(Message{Nickname: "a", Content: "Hello World", Timestamp: time.Now(), PubKey: "1"})
	ch.AddMessage(Message{Nickname: "b", Content: "goodbye", Timestamp: time.Now(), PubKey: "2"})

	require.Len(t, ch.SearchMessages("hello"), 1)
	require.Len(t, ch.SearchMessages("o"), 2)
	require.Empty(t, ch.SearchMessages("xyz"))
}

func TestDisplayNickname(t *testing.T) {
	require.Equal(t, "alice#02c1", DisplayNickname("alice", "02c1ffeedd"))
	require.Equal(t, "system", DisplayNickname("system", ""))
	require.Equal(t, "x", DisplayNickname("x", "ab"))
}
