package client

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lessucettes/geochat/internal/channels"
	"github.com/lessucettes/geochat/internal/spam"
)

// newCommandTestClient builds a client wired to an in-memory store only, no
// network or config, for exercising command handlers.
func newCommandTestClient(t *testing.T) (*Client, chan DisplayEvent) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	events := make(chan DisplayEvent, 256)
	return &Client{
		nick:       "tester",
		manager:    channels.NewManager(),
		filter:     spam.NewFilter(),
		eventsChan: events,
		ctx:        ctx,
		cancel:     cancel,
	}, events
}

func drainEvents(events chan DisplayEvent) []DisplayEvent {
	var out []DisplayEvent
	for {
		select {
		case ev := <-events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSearchCurrentChannel(t *testing.T) {
	c, events := newCommandTestClient(t)
	c.manager.Join("u4pruyd")
	c.setCurrent("u4pruyd")

	c.manager.AddMessage(channels.Message{
		Channel: "u4pruyd", Nickname: "alice", Content: "pizza tonight?",
		Timestamp: time.Now(), PubKey: "9f3a",
	})
	c.manager.AddMessage(channels.Message{
		Channel: "u4pruyd", Nickname: "bob", Content: "nothing relevant",
		Timestamp: time.Now(), PubKey: "77aa",
	})

	c.searchCurrentChannel("pizza")

	got := drainEvents(events)
	require.Len(t, got, 2, "header line plus one match")
	require.Equal(t, "INFO", got[0].Type)
	require.Contains(t, got[0].Content, `1 message(s) matching "pizza"`)
	require.Contains(t, got[1].Content, "alice#9f3a")
	require.Contains(t, got[1].Content, "pizza tonight?")
}

func TestSearchCurrentChannel_NoMatches(t *testing.T) {
	c, events := newCommandTestClient(t)
	c.manager.Join("u4pruyd")
	c.setCurrent("u4pruyd")

	c.searchCurrentChannel("ghost")

	got := drainEvents(events)
	require.Len(t, got, 1)
	require.Contains(t, got[0].Content, "No messages matching")
}

func TestSwitchChannelRepaintsHistory(t *testing.T) {
	c, events := newCommandTestClient(t)
	c.manager.Join(SystemChannel)
	c.manager.Join("u4pruyd")
	c.setCurrent(SystemChannel)

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		c.manager.AddMessage(channels.Message{
			Channel: "u4pruyd", Nickname: "alice", Content: fmt.Sprintf("msg %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second), PubKey: "9f3a",
		})
	}

	c.switchChannel("u4pruyd")
	require.Equal(t, "u4pruyd", c.currentChannel())

	var cleared bool
	var replayed []string
	for _, ev := range drainEvents(events) {
		switch ev.Type {
		case "CLEAR_VIEW":
			cleared = true
			require.Equal(t, "u4pruyd", ev.Chat)
		case "NEW_MESSAGE":
			require.Equal(t, "u4pruyd", ev.Chat)
			replayed = append(replayed, ev.Content)
		}
	}
	require.True(t, cleared, "the pane is cleared before the replay")
	require.Equal(t, []string{"msg 0", "msg 1", "msg 2"}, replayed)
}

func TestSwitchChannelRepaintCapped(t *testing.T) {
	c, events := newCommandTestClient(t)
	c.manager.Join("u4pruyd")
	c.setCurrent(SystemChannel)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < repaintLimit+10; i++ {
		c.manager.AddMessage(channels.Message{
			Channel: "u4pruyd", Nickname: "alice", Content: fmt.Sprintf("msg %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second), PubKey: "9f3a",
		})
	}

	c.switchChannel("u4pruyd")

	var replayed int
	for _, ev := range drainEvents(events) {
		if ev.Type == "NEW_MESSAGE" {
			replayed++
		}
	}
	require.Equal(t, repaintLimit, replayed, "only the newest tail is replayed")
}
