// Package client is the protocol collaborator: it owns the relay
// connections, signs and publishes events, and runs the ingestion path that
// feeds decoded messages through the spam filter into the channel store.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nbd-wtf/go-nostr"

	"github.com/lessucettes/geochat/internal/channels"
	"github.com/lessucettes/geochat/internal/georelay"
	"github.com/lessucettes/geochat/internal/spam"
)

// Client is the main struct for the geochat client.
type Client struct {
	sk   string
	pk   string
	nick string
	conf *config

	manager   *channels.Manager
	filter    *spam.Filter
	directory *georelay.Directory

	relays   map[string]*managedRelay
	relaysMu sync.Mutex

	seenCache   *lru.Cache[string, bool]
	seenCacheMu sync.Mutex
	userContext *lru.Cache[string, userContext]

	privateChats   map[string]string // pubkey -> nick
	current        string
	currentMu      sync.RWMutex
	initialChannel string

	actionsChan <-chan UserAction
	eventsChan  chan<- DisplayEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new client instance. nsec optionally overrides the stored
// identity for one session; autoChannel is joined on startup when set.
func New(actions <-chan UserAction, events chan<- DisplayEvent, nsec, autoChannel string) (*Client, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if conf.BlockedUsers == nil {
		conf.BlockedUsers = []BlockedUser{}
	}

	sk, err := loadOrCreateIdentity(conf, nsec)
	if err != nil {
		return nil, err
	}
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	seenCache, err := lru.New[string, bool](seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen cache: %w", err)
	}
	userContextCache, err := lru.New[string, userContext](userContextCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create user context cache: %w", err)
	}

	directory, err := georelay.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create relay directory: %w", err)
	}

	nick := conf.Nick
	if nick == "" {
		nick = anonNickname(pk)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		sk:             sk,
		pk:             pk,
		nick:           nick,
		conf:           conf,
		manager:        channels.NewManager(),
		filter:         spam.NewFilter(),
		directory:      directory,
		relays:         make(map[string]*managedRelay),
		seenCache:      seenCache,
		userContext:    userContextCache,
		privateChats:   make(map[string]string),
		initialChannel: autoChannel,
		actionsChan:    actions,
		eventsChan:     events,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// Run starts the client's main event loop. Ingestion and commands run here
// on one goroutine; network I/O runs on its own tasks and never blocks it.
func (c *Client) Run() {
	c.manager.Join(SystemChannel)
	c.setCurrent(SystemChannel)

	c.addStatusMessage(fmt.Sprintf("Identity: %s (%s...)", c.nick, c.pk[:8]))
	c.addStatusMessage("To receive messages, join a geohash channel: /join <geohash>")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.directory.Initialize(c.ctx)
	}()

	for _, ch := range c.conf.Channels {
		c.joinChannel(ch)
	}
	if c.initialChannel != "" {
		c.joinChannel(c.initialChannel)
	}
	c.sendStateUpdate()

	ticker := time.NewTicker(maintenanceEvery)
	defer ticker.Stop()

	for {
		select {
		case action, ok := <-c.actionsChan:
			if !ok {
				c.shutdown()
				return
			}
			if quit := c.handleAction(action); quit {
				c.shutdown()
				return
			}
		case <-ticker.C:
			c.filter.CleanupOldData()
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.directory.FetchAndUpdate(c.ctx)
			}()
			c.sendStateUpdate()
		case <-c.ctx.Done():
			return
		}
	}
}

// handleAction dispatches user actions to their respective handlers. It
// returns true when the client should shut down.
func (c *Client) handleAction(action UserAction) bool {
	switch action.Type {
	case "SEND_MESSAGE":
		c.sendToCurrent(action.Payload)
	case "SEND_TO":
		c.sendToTarget(action.Payload)
	case "JOIN_CHANNEL":
		c.joinChannel(action.Payload)
	case "LEAVE_CHANNEL":
		c.leaveChannel(action.Payload)
	case "SWITCH_CHANNEL":
		c.switchChannel(action.Payload)
	case "NEXT_CHANNEL":
		c.switchToNextChannel()
	case "LIST_CHANNELS":
		c.listChannels()
	case "SHOW_ALL":
		c.showAllRecentMessages()
	case "SEARCH_MESSAGES":
		c.searchCurrentChannel(action.Payload)
	case "CLEAR_CHANNEL":
		c.clearCurrentChannel()
	case "SET_NICK":
		c.changeNickname(action.Payload)
	case "BLOCK_USER":
		c.blockUser(action.Payload)
	case "UNBLOCK_USER":
		c.unblockUser(action.Payload)
	case "LIST_BLOCKED":
		c.listBlockedUsers()
	case "SPAM_LIST":
		c.listAutoMutedUsers()
	case "SPAM_UNMUTE":
		c.unmuteSpammer(action.Payload)
	case "SPAM_STATUS":
		c.showSpamFilterStatus()
	case "WHOIS":
		c.whoisUser(action.Payload)
	case "ACTION_HUG":
		c.sendActionMessage(fmt.Sprintf("hugs %s", action.Payload))
	case "ACTION_SLAP":
		c.sendActionMessage(fmt.Sprintf("slaps %s around a bit with a large trout", action.Payload))
	case "SHOW_STATUS":
		c.showStatus()
	case "SHOW_VERSION":
		c.showVersion()
	case "REQUEST_NICK_COMPLETION":
		c.handleNickCompletion(action.Payload)
	case "GET_HELP":
		c.getHelp()
	case "QUIT":
		return true
	}
	return false
}

func (c *Client) shutdown() {
	c.cancel()

	c.relaysMu.Lock()
	for url, mr := range c.relays {
		mr.mu.Lock()
		if mr.subscription != nil {
			mr.subscription.Unsub()
		}
		if mr.relay != nil {
			mr.relay.Close()
		}
		mr.mu.Unlock()
		delete(c.relays, url)
	}
	c.relaysMu.Unlock()

	c.wg.Wait()
	select {
	case c.eventsChan <- DisplayEvent{Type: "SHUTDOWN"}:
	case <-time.After(200 * time.Millisecond):
	}
}

func (c *Client) currentChannel() string {
	c.currentMu.RLock()
	defer c.currentMu.RUnlock()
	return c.current
}

func (c *Client) setCurrent(id string) {
	c.currentMu.Lock()
	c.current = id
	c.currentMu.Unlock()
}

// sendStateUpdate publishes a snapshot of channel state to the TUI.
func (c *Client) sendStateUpdate() {
	all := c.manager.AllChannels()
	entries := make([]ChannelEntry, 0, len(all))
	for _, st := range all {
		entries = append(entries, ChannelEntry{
			Name:         st.Name,
			Joined:       st.Joined,
			Messages:     c.manager.MessageCount(st.Name),
			Participants: c.manager.ParticipantCount(st.Name),
		})
	}
	c.emit(DisplayEvent{Type: "STATE_UPDATE", Payload: StateUpdate{
		Channels: entries,
		Current:  c.currentChannel(),
		Nick:     c.nick,
	}})
}

func (c *Client) emit(ev DisplayEvent) {
	select {
	case c.eventsChan <- ev:
	case <-c.ctx.Done():
	}
}

// addStatusMessage stores a system notice in the system channel and surfaces
// it in the TUI logs. System messages carry no pubkey, so the spam filter
// exempts them by construction.
func (c *Client) addStatusMessage(text string) {
	c.manager.AddMessage(channels.Message{
		Channel:   SystemChannel,
		Nickname:  "system",
		Content:   text,
		Timestamp: time.Now().UTC(),
	})
	c.emit(DisplayEvent{Type: "STATUS", Content: text})
}

// addInfo surfaces command output in the messages pane without storing it.
func (c *Client) addInfo(text string) {
	c.emit(DisplayEvent{Type: "INFO", Content: text})
}

func (c *Client) addError(text string) {
	c.emit(DisplayEvent{Type: "ERROR", Content: text})
}
