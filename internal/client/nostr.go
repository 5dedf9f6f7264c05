package client

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/lessucettes/geochat/internal/channels"
	"github.com/lessucettes/geochat/internal/georelay"
)

// retryWithBackoff retries fn until it succeeds or ctx is cancelled.
func retryWithBackoff(ctx context.Context, fn func() error) error {
	delay := 500 * time.Millisecond
	for {
		if err := fn(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			if delay < 30*time.Second {
				delay *= 2
			}
		}
	}
}

// connectChannelRelays asks the geo directory for the closest endpoints to
// the channel's geohash and makes sure each carries a subscription for it.
// Runs off the main loop; connection failures degrade to fewer relays.
func (c *Client) connectChannelRelays(gh string) {
	urls := c.directory.ClosestRelaysForGeohash(gh, georelay.DefaultRelayCount)
	if len(urls) == 0 {
		c.addError(fmt.Sprintf("No relays found for channel #%s", gh))
		return
	}

	for _, url := range urls {
		c.relaysMu.Lock()
		mr, exists := c.relays[url]
		c.relaysMu.Unlock()

		if exists {
			c.subscribeRelay(mr, gh)
			continue
		}
		c.wg.Add(1)
		go func(url string) {
			defer c.wg.Done()
			c.connectRelay(url, gh)
		}(url)
	}
}

func (c *Client) connectRelay(url, gh string) {
	ctx, cancel := context.WithTimeout(c.ctx, connectTimeout)
	defer cancel()

	start := time.Now()
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		c.emit(DisplayEvent{Type: "STATUS", Content: fmt.Sprintf("Failed to connect to %s: %v", url, err)})
		return
	}
	latency := time.Since(start)

	mr := &managedRelay{
		url:       url,
		relay:     relay,
		latency:   latency,
		connected: true,
	}

	c.relaysMu.Lock()
	if _, exists := c.relays[url]; exists {
		c.relaysMu.Unlock()
		relay.Close()
		return
	}
	c.relays[url] = mr
	c.relaysMu.Unlock()

	c.emit(DisplayEvent{Type: "STATUS", Content: fmt.Sprintf("Connected to %s (%dms)", url, latency.Milliseconds())})
	c.sendRelaysUpdate()

	c.subscribeRelay(mr, gh)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.listenForEvents(mr)
	}()
}

// subscribeRelay replaces the relay's subscription with one covering all of
// the client's joined channels, backfilling the last hour.
func (c *Client) subscribeRelay(mr *managedRelay, _ string) {
	joined := c.manager.JoinedChannels()
	var geohashes []string
	for _, ch := range joined {
		if isValidGeohash(ch) {
			geohashes = append(geohashes, ch)
		}
	}
	if len(geohashes) == 0 {
		mr.mu.Lock()
		if mr.subscription != nil {
			mr.subscription.Unsub()
			mr.subscription = nil
		}
		mr.mu.Unlock()
		return
	}

	since := nostr.Timestamp(time.Now().Add(-backfillWindow).Unix())
	limit := backfillLimit
	filters := nostr.Filters{{
		Kinds: []int{geochatKind},
		Tags:  nostr.TagMap{"g": geohashes},
		Since: &since,
		Limit: limit,
	}}

	newSub, err := mr.relay.Subscribe(c.ctx, filters)
	if err != nil {
		c.emit(DisplayEvent{Type: "STATUS", Content: fmt.Sprintf("Subscription to %s failed: %v", mr.url, err)})
		return
	}

	mr.mu.Lock()
	oldSub := mr.subscription
	mr.subscription = newSub
	mr.mu.Unlock()

	if oldSub != nil {
		oldSub.Unsub()
	}
	log.Printf("Updated subscription for %s with %d channel(s)", mr.url, len(geohashes))
}

// dropUnneededRelays closes connections that no longer serve any joined
// channel after a leave.
func (c *Client) dropUnneededRelays() {
	needed := make(map[string]struct{})
	for _, ch := range c.manager.JoinedChannels() {
		if !isValidGeohash(ch) {
			continue
		}
		for _, url := range c.directory.ClosestRelaysForGeohash(ch, georelay.DefaultRelayCount) {
			needed[url] = struct{}{}
		}
	}

	c.relaysMu.Lock()
	for url, mr := range c.relays {
		if _, ok := needed[url]; ok {
			continue
		}
		log.Printf("Disconnecting from unneeded relay: %s", url)
		mr.mu.Lock()
		if mr.subscription != nil {
			mr.subscription.Unsub()
			mr.subscription = nil
		}
		if mr.relay != nil {
			mr.relay.Close()
		}
		mr.mu.Unlock()
		delete(c.relays, url)
	}
	c.relaysMu.Unlock()
	c.sendRelaysUpdate()
}

func (c *Client) listenForEvents(mr *managedRelay) {
	log.Printf("Listener started for relay: %s", mr.url)
	defer log.Printf("Listener stopped for relay: %s", mr.url)

	for {
		if c.ctx.Err() != nil {
			return
		}

		mr.mu.Lock()
		sub := mr.subscription
		mr.mu.Unlock()

		if sub == nil {
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		select {
		case <-c.ctx.Done():
			return

		case ev, ok := <-sub.Events:
			if !ok {
				mr.mu.Lock()
				if mr.subscription != sub {
					mr.mu.Unlock()
					continue
				}
				mr.subscription = nil
				mr.connected = false
				mr.mu.Unlock()
				c.sendRelaysUpdate()

				err := retryWithBackoff(c.ctx, func() error {
					c.subscribeRelay(mr, "")
					mr.mu.Lock()
					defer mr.mu.Unlock()
					if mr.subscription == nil {
						return fmt.Errorf("resubscribe failed")
					}
					return nil
				})
				if err != nil {
					return
				}

				mr.mu.Lock()
				mr.connected = true
				mr.mu.Unlock()
				c.sendRelaysUpdate()
				c.emit(DisplayEvent{Type: "STATUS", Content: fmt.Sprintf("Reconnected to %s", mr.url)})
				continue
			}
			if ev == nil {
				continue
			}
			c.processEvent(ev, mr.url)
		}
	}
}

// processEvent is the ingestion path: decode, dedup, drop blocked senders,
// classify through the spam filter, and only then store and display. No
// message is visible to the store or the UI before classification.
func (c *Client) processEvent(ev *nostr.Event, relayURL string) {
	if ev.Kind != geochatKind {
		return
	}

	c.seenCacheMu.Lock()
	if c.seenCache.Contains(ev.ID) {
		c.seenCacheMu.Unlock()
		return
	}
	c.seenCache.Add(ev.ID, true)
	c.seenCacheMu.Unlock()

	gTag := ev.Tags.Find("g")
	if len(gTag) < 2 || gTag[1] == "" {
		return
	}
	channelID := gTag[1]

	// Our own messages are echoed locally at send time.
	if ev.PubKey == c.pk {
		return
	}

	if c.isBlocked(ev.PubKey) {
		return
	}

	nickname := anonNickname(ev.PubKey)
	if nTag := ev.Tags.Find("n"); len(nTag) > 1 {
		if s := sanitizeString(nTag[1]); s != "" {
			nickname = s
		}
	}

	content := sanitizeString(truncateString(ev.Content, MaxMsgLen))

	msg := channels.Message{
		Channel:   channelID,
		Nickname:  nickname,
		Content:   content,
		Timestamp: time.Unix(int64(ev.CreatedAt), 0).UTC(),
		PubKey:    ev.PubKey,
	}

	if verdict := c.filter.Check(&msg); verdict.Spam {
		if verdict.NewlyMuted {
			c.notifyAutoMute(&msg, verdict.Reason)
		}
		return
	}

	c.manager.AddMessage(msg)
	c.userContext.Add(ev.PubKey, userContext{nick: nickname, chat: channelID})

	c.emit(DisplayEvent{
		Type:        "NEW_MESSAGE",
		Timestamp:   msg.Timestamp.Local().Format("15:04:05"),
		Nick:        nickname,
		Content:     content,
		FullPubKey:  ev.PubKey,
		ShortPubKey: shortPubKey(ev.PubKey),
		Chat:        channelID,
		RelayURL:    relayURL,
	})
	c.sendStateUpdate()
}

// notifyAutoMute surfaces a one-time notice when an identity gets muted,
// with extra detail for timestamp manipulation.
func (c *Client) notifyAutoMute(msg *channels.Message, reason string) {
	now := time.Now().UTC()
	switch reason {
	case "future timestamp":
		mins := int(msg.Timestamp.Sub(now).Minutes())
		c.addStatusMessage(fmt.Sprintf("Filtered future-dated message from %s (%dmin in future); sender muted", msg.Nickname, mins))
	case "old timestamp":
		hours := int(now.Sub(msg.Timestamp).Hours())
		c.addStatusMessage(fmt.Sprintf("Filtered old message from %s (%dhr old); sender muted", msg.Nickname, hours))
	default:
		c.addStatusMessage(fmt.Sprintf("Auto-muted %s for 10 minutes (%s)", channels.DisplayNickname(msg.Nickname, msg.PubKey), reason))
	}
}

// sendMessage signs a kind-20000 event for the channel and publishes it to
// every connected relay, fastest first. The message is echoed locally.
func (c *Client) sendMessage(channelID, content string) {
	ev := nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      geochatKind,
		Content:   content,
		Tags: nostr.Tags{
			{"g", channelID},
			{"n", c.nick},
			{"client", "geochat"},
		},
	}
	if err := ev.Sign(c.sk); err != nil {
		c.addError(fmt.Sprintf("Failed to sign event: %v", err))
		return
	}

	msg := channels.Message{
		Channel:   channelID,
		Nickname:  c.nick,
		Content:   content,
		Timestamp: time.Unix(int64(ev.CreatedAt), 0).UTC(),
		PubKey:    c.pk,
		IsOwn:     true,
	}
	c.manager.AddMessage(msg)
	c.emit(DisplayEvent{
		Type:         "NEW_MESSAGE",
		Timestamp:    msg.Timestamp.Local().Format("15:04:05"),
		Nick:         c.nick,
		Content:      content,
		FullPubKey:   c.pk,
		ShortPubKey:  shortPubKey(c.pk),
		IsOwnMessage: true,
		Chat:         channelID,
	})

	c.relaysMu.Lock()
	targets := make([]*managedRelay, 0, len(c.relays))
	for _, mr := range c.relays {
		targets = append(targets, mr)
	}
	c.relaysMu.Unlock()

	if len(targets) == 0 {
		c.addStatusMessage(fmt.Sprintf("Not connected to any relays; message to #%s not sent", channelID))
		return
	}

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].latency < targets[j].latency
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.publish(ev, channelID, targets)
	}()
}

func (c *Client) publish(ev nostr.Event, channelID string, targets []*managedRelay) {
	ctx, cancel := context.WithTimeout(c.ctx, publishTimeout)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0

	for _, mr := range targets {
		wg.Add(1)
		go func(mr *managedRelay) {
			defer wg.Done()
			if err := mr.relay.Publish(ctx, ev); err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			} else {
				log.Printf("Publish failed on %s: %v", mr.url, err)
				mr.mu.Lock()
				mr.connected = false
				mr.mu.Unlock()
			}
		}(mr)
	}
	wg.Wait()

	c.emit(DisplayEvent{
		Type:    "STATUS",
		Content: fmt.Sprintf("Message sent to %d/%d relays for #%s", successCount, len(targets), channelID),
	})
	c.sendRelaysUpdate()
}

func (c *Client) sendRelaysUpdate() {
	c.relaysMu.Lock()
	statuses := make([]RelayStatus, 0, len(c.relays))
	for _, mr := range c.relays {
		mr.mu.Lock()
		statuses = append(statuses, RelayStatus{
			URL:       mr.url,
			Latency:   mr.latency,
			Connected: mr.connected,
		})
		mr.mu.Unlock()
	}
	c.relaysMu.Unlock()

	c.emit(DisplayEvent{Type: "RELAYS_UPDATE", Payload: statuses})
}
