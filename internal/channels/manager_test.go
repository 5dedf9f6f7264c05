package channels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManager_JoinIsIdempotent(t *testing.T) {
	m := NewManager()

	m.Join("u4pruyd")
	m.AddMessage(Message{Channel: "u4pruyd", Nickname: "a", Content: "hi", Timestamp: time.Now(), PubKey: "1"})
	m.Join("u4pruyd")

	require.Equal(t, 1, m.MessageCount("u4pruyd"), "re-joining must preserve history")
	require.True(t, m.Channel("u4pruyd").IsJoined())
}

func TestManager_JoinPromotesListeningChannel(t *testing.T) {
	m := NewManager()

	// A message for an unknown channel creates it in listening state.
	m.AddMessage(Message{Channel: "u4pruyd", Nickname: "a", Content: "hi", Timestamp: time.Now(), PubKey: "1"})
	require.False(t, m.Channel("u4pruyd").IsJoined())

	m.Join("u4pruyd")
	require.True(t, m.Channel("u4pruyd").IsJoined())
	require.Equal(t, 1, m.MessageCount("u4pruyd"))
}

func TestManager_Leave(t *testing.T) {
	m := NewManager()
	m.Join("u4pruyd")

	require.True(t, m.Leave("u4pruyd"))
	require.Nil(t, m.Channel("u4pruyd"), "leaving discards the channel entirely")
	require.False(t, m.Leave("u4pruyd"), "leaving twice reports failure")
	require.False(t, m.Leave("never-joined"))
}

func TestManager_LeaveRemovesListeningChannel(t *testing.T) {
	m := NewManager()
	m.AddMessage(Message{Channel: "u4pruyd", Nickname: "a", Content: "hi", Timestamp: time.Now(), PubKey: "1"})
	require.False(t, m.Channel("u4pruyd").IsJoined())

	require.True(t, m.Leave("u4pruyd"), "removal is unconditional for existing channels")
	require.Nil(t, m.Channel("u4pruyd"))
}

func TestManager_ClearChannel(t *testing.T) {
	m := NewManager()
	m.Join("u4pruyd")
	m.AddMessage(Message{Channel: "u4pruyd", Nickname: "a", Content: "hi", Timestamp: time.Now(), PubKey: "1"})

	require.True(t, m.ClearChannel("u4pruyd"))
	require.Equal(t, 0, m.MessageCount("u4pruyd"))
	require.False(t, m.ClearChannel("u4pruyd"), "clearing an empty channel reports nothing dropped")
	require.False(t, m.ClearChannel("missing"))
}

func TestManager_JoinedChannels(t *testing.T) {
	m := NewManager()
	m.Join("bbb")
	m.Join("aaa")
	m.AddMessage(Message{Channel: "zzz", Nickname: "a", Content: "hi", Timestamp: time.Now(), PubKey: "1"})

	joined := m.JoinedChannels()
	require.Equal(t, []string{"aaa", "bbb"}, joined,
		"newest activity first, listening channels excluded")
}

func TestManager_AllChannelsOrdering(t *testing.T) {
	m := NewManager()
	m.Join("old")
	m.Join("busy")

	// Touch "busy" last so it has the most recent activity.
	m.AddMessage(Message{Channel: "old", Nickname: "a", Content: "1", Timestamp: time.Now(), PubKey: "1"})
	time.Sleep(5 * time.Millisecond)
	m.AddMessage(Message{Channel: "busy", Nickname: "a", Content: "2", Timestamp: time.Now(), PubKey: "1"})

	all := m.AllChannels()
	require.Len(t, all, 2)
	require.Equal(t, "busy", all[0].Name, "most recently active first")
	require.Equal(t, "old", all[1].Name)
}

func TestManager_Counters(t *testing.T) {
	m := NewManager()
	m.Join("u4pruyd")
	m.AddMessage(Message{Channel: "u4pruyd", Nickname: "a", Content: "hi", Timestamp: time.Now(), PubKey: "1"})
	m.AddMessage(Message{Channel: "u4pruyd", Nickname: "b", Content: "yo", Timestamp: time.Now(), PubKey: "2"})

	require.Equal(t, 1, m.ChannelCount())
	require.Equal(t, 2, m.MessageCount("u4pruyd"))
	require.Equal(t, 2, m.ParticipantCount("u4pruyd"))
	require.Equal(t, 0, m.MessageCount("missing"))
	require.Equal(t, 0, m.ParticipantCount("missing"))
}
