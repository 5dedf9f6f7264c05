package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/lessucettes/geochat/internal/channels"
)

// Version is stamped by the build; main assigns it before the client starts.
var Version = "dev"

const (
	maxNickLen        = 32
	repaintLimit      = 50
	searchResultLimit = 20
)

// NickCompletion is the payload of a NICK_COMPLETION_RESULT event.
type NickCompletion struct {
	Prefix  string
	Matches []string
}

func (c *Client) sendToCurrent(text string) {
	text = strings.TrimSpace(sanitizeString(text))
	if text == "" {
		return
	}
	text = truncateString(text, MaxMsgLen)

	target := c.currentChannel()
	switch {
	case target == SystemChannel:
		c.addInfo("The system channel is read-only. Join a channel first: /join <geohash>")
	case strings.HasPrefix(target, "dm:"):
		c.sendPrivateMessage(strings.TrimPrefix(target, "dm:"), text)
	default:
		c.sendMessage(target, text)
	}
}

// sendToTarget handles "/msg <target> <text>". The target is a geohash
// channel or a known nickname; nicknames open a private chat.
func (c *Client) sendToTarget(payload string) {
	parts := strings.SplitN(strings.TrimSpace(payload), " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		c.addInfo("Usage: /msg <channel|nick> <message>")
		return
	}
	target := strings.TrimPrefix(parts[0], "#")
	text := truncateString(strings.TrimSpace(sanitizeString(parts[1])), MaxMsgLen)

	if isValidGeohash(target) {
		if ch := c.manager.Channel(target); ch == nil || !ch.IsJoined() {
			c.addInfo(fmt.Sprintf("Not joined to #%s. Use /join %s first.", target, target))
			return
		}
		c.sendMessage(target, text)
		return
	}

	pk, _, ok := c.lookupPubKey(parts[0])
	if !ok {
		c.addInfo(fmt.Sprintf("Unknown target: %s", parts[0]))
		return
	}
	c.sendPrivateMessage(pk, text)
}

// sendPrivateMessage stores a direct message in a local dm: channel. Private
// chats are kept on this device only and are never published to relays.
func (c *Client) sendPrivateMessage(pk, text string) {
	nick, ok := c.privateChats[pk]
	if !ok {
		if ctx, found := c.userContext.Get(pk); found {
			nick = ctx.nick
		} else {
			nick = anonNickname(pk)
		}
		c.privateChats[pk] = nick
	}

	chatID := "dm:" + pk
	c.manager.Join(chatID)

	msg := channels.Message{
		Channel:         chatID,
		Nickname:        c.nick,
		Content:         text,
		Timestamp:       time.Now().UTC(),
		PubKey:          c.pk,
		IsOwn:           true,
		IsPrivate:       true,
		RecipientPubKey: pk,
	}
	c.manager.AddMessage(msg)
	c.setCurrent(chatID)

	c.emit(DisplayEvent{
		Type:         "NEW_MESSAGE",
		Timestamp:    msg.Timestamp.Local().Format("15:04:05"),
		Nick:         c.nick,
		Content:      text,
		FullPubKey:   c.pk,
		ShortPubKey:  shortPubKey(c.pk),
		IsOwnMessage: true,
		Chat:         chatID,
	})
	c.addInfo(fmt.Sprintf("Private chat with %s is local to this device.", nick))
	c.sendStateUpdate()
}

func (c *Client) joinChannel(id string) {
	id = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "#"))
	if id == "" {
		c.addInfo("Usage: /join <geohash>")
		return
	}
	if id == SystemChannel {
		c.setCurrent(SystemChannel)
		c.sendStateUpdate()
		return
	}
	if !isValidGeohash(id) {
		c.addError(fmt.Sprintf("Invalid geohash: %q", id))
		return
	}

	c.manager.Join(id)
	c.setCurrent(id)

	if !contains(c.conf.Channels, id) {
		c.conf.Channels = append(c.conf.Channels, id)
		if err := c.conf.save(); err != nil {
			c.addError(fmt.Sprintf("Failed to save configuration: %v", err))
		}
	}

	c.addStatusMessage(fmt.Sprintf("Joined channel #%s", id))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.connectChannelRelays(id)
	}()
	c.sendStateUpdate()
}

func (c *Client) leaveChannel(payload string) {
	id := strings.TrimPrefix(strings.TrimSpace(payload), "#")
	if id == "" {
		id = c.currentChannel()
	}
	if id == SystemChannel {
		c.addInfo("The system channel cannot be left.")
		return
	}

	if !c.manager.Leave(id) {
		c.addInfo(fmt.Sprintf("Unknown channel: #%s", id))
		return
	}

	c.conf.Channels = remove(c.conf.Channels, id)
	if err := c.conf.save(); err != nil {
		c.addError(fmt.Sprintf("Failed to save configuration: %v", err))
	}

	if c.currentChannel() == id {
		c.setCurrent(SystemChannel)
	}

	c.relaysMu.Lock()
	relays := make([]*managedRelay, 0, len(c.relays))
	for _, mr := range c.relays {
		relays = append(relays, mr)
	}
	c.relaysMu.Unlock()
	for _, mr := range relays {
		c.subscribeRelay(mr, "")
	}
	c.dropUnneededRelays()

	c.addStatusMessage(fmt.Sprintf("Left channel #%s", id))
	c.sendStateUpdate()
}

func (c *Client) switchChannel(payload string) {
	id := strings.TrimPrefix(strings.TrimSpace(payload), "#")
	if id == "" {
		c.addInfo("Usage: /switch <channel>")
		return
	}
	if c.manager.Channel(id) == nil {
		c.addInfo(fmt.Sprintf("Unknown channel: #%s", id))
		return
	}
	c.setCurrent(id)
	c.sendStateUpdate()
	c.repaintChannel(id)
}

func (c *Client) switchToNextChannel() {
	order := []string{SystemChannel}
	order = append(order, c.manager.JoinedChannels()...)
	if len(order) < 2 {
		return
	}

	cur := c.currentChannel()
	next := order[0]
	for i, id := range order {
		if id == cur {
			next = order[(i+1)%len(order)]
			break
		}
	}
	c.setCurrent(next)
	c.sendStateUpdate()
	c.repaintChannel(next)
}

// repaintChannel replays the tail of a channel's history into the messages
// pane after a switch, so the view shows what the store holds.
func (c *Client) repaintChannel(id string) {
	ch := c.manager.Channel(id)
	if ch == nil {
		return
	}
	c.emit(DisplayEvent{Type: "CLEAR_VIEW", Chat: id})
	for _, m := range ch.RecentMessages(repaintLimit) {
		c.emit(DisplayEvent{
			Type:         "NEW_MESSAGE",
			Timestamp:    m.Timestamp.Local().Format("15:04:05"),
			Nick:         m.Nickname,
			Content:      m.Content,
			FullPubKey:   m.PubKey,
			ShortPubKey:  shortPubKey(m.PubKey),
			IsOwnMessage: m.IsOwn,
			Chat:         id,
		})
	}
}

// searchCurrentChannel scans the current channel's history for a substring,
// newest matches last.
func (c *Client) searchCurrentChannel(payload string) {
	query := strings.TrimSpace(payload)
	if query == "" {
		c.addInfo("Usage: /search <text>")
		return
	}
	ch := c.manager.Channel(c.currentChannel())
	if ch == nil {
		return
	}

	matches := ch.SearchMessages(query)
	if len(matches) == 0 {
		c.addInfo(fmt.Sprintf("No messages matching %q", query))
		return
	}
	c.addInfo(fmt.Sprintf("%d message(s) matching %q:", len(matches), query))
	if len(matches) > searchResultLimit {
		matches = matches[len(matches)-searchResultLimit:]
	}
	for _, m := range matches {
		c.addInfo(fmt.Sprintf("  [%s] %s: %s",
			m.Timestamp.Local().Format("15:04"), channels.DisplayNickname(m.Nickname, m.PubKey), m.Content))
	}
}

func (c *Client) listChannels() {
	all := c.manager.AllChannels()
	if len(all) == 0 {
		c.addInfo("No channels.")
		return
	}
	c.addInfo(fmt.Sprintf("Channels (%d):", len(all)))
	for _, st := range all {
		marker := " "
		if st.Joined {
			marker = "*"
		}
		c.addInfo(fmt.Sprintf("  %s #%s  %d messages, %d participants",
			marker, st.Name, c.manager.MessageCount(st.Name), c.manager.ParticipantCount(st.Name)))
	}
}

// showAllRecentMessages prints a digest of the last ten minutes across every
// channel the client holds.
func (c *Client) showAllRecentMessages() {
	cutoff := time.Now().UTC().Add(-10 * time.Minute)
	total := 0
	for _, st := range c.manager.AllChannels() {
		ch := c.manager.Channel(st.Name)
		if ch == nil {
			continue
		}
		msgs := ch.MessagesSince(cutoff)
		if len(msgs) == 0 {
			continue
		}
		c.addInfo(fmt.Sprintf("--- #%s ---", st.Name))
		for _, m := range msgs {
			c.addInfo(fmt.Sprintf("  [%s] %s: %s",
				m.Timestamp.Local().Format("15:04"), channels.DisplayNickname(m.Nickname, m.PubKey), m.Content))
		}
		total += len(msgs)
	}
	if total == 0 {
		c.addInfo("No messages in the last 10 minutes.")
	}
}

func (c *Client) clearCurrentChannel() {
	id := c.currentChannel()
	if c.manager.ClearChannel(id) {
		c.addInfo(fmt.Sprintf("Cleared messages in #%s", id))
	} else {
		c.addInfo(fmt.Sprintf("Nothing to clear in #%s", id))
	}
	c.emit(DisplayEvent{Type: "CLEAR_VIEW", Chat: id})
	c.sendStateUpdate()
}

func (c *Client) changeNickname(payload string) {
	nick := strings.TrimSpace(sanitizeString(payload))
	if nick == "" {
		c.addInfo(fmt.Sprintf("Current nickname: %s", c.nick))
		return
	}
	if len(nick) > maxNickLen {
		c.addError(fmt.Sprintf("Nickname too long (max %d characters)", maxNickLen))
		return
	}
	old := c.nick
	c.nick = nick
	c.conf.Nick = nick
	if err := c.conf.save(); err != nil {
		c.addError(fmt.Sprintf("Failed to save configuration: %v", err))
	}
	c.addStatusMessage(fmt.Sprintf("Nickname changed: %s -> %s", old, nick))
	c.sendStateUpdate()
}

func (c *Client) blockUser(payload string) {
	ref := strings.TrimSpace(payload)
	if ref == "" {
		c.addInfo("Usage: /block <nick>")
		return
	}
	pk, nick, ok := c.lookupPubKey(ref)
	if !ok {
		c.addInfo(fmt.Sprintf("Unknown user: %s", ref))
		return
	}
	if pk == c.pk {
		c.addInfo("You cannot block yourself.")
		return
	}
	if c.isBlocked(pk) {
		c.addInfo(fmt.Sprintf("%s is already blocked.", nick))
		return
	}
	c.conf.BlockedUsers = append(c.conf.BlockedUsers, BlockedUser{PubKey: pk, Nick: nick})
	if err := c.conf.save(); err != nil {
		c.addError(fmt.Sprintf("Failed to save configuration: %v", err))
	}
	c.addStatusMessage(fmt.Sprintf("Blocked %s (%s...)", nick, shortPubKey(pk)))
}

func (c *Client) unblockUser(payload string) {
	ref := strings.TrimSpace(payload)
	if ref == "" {
		c.addInfo("Usage: /unblock <nick>")
		return
	}
	for i, b := range c.conf.BlockedUsers {
		if b.Nick == ref || b.PubKey == ref || strings.HasPrefix(b.PubKey, ref) {
			c.conf.BlockedUsers = append(c.conf.BlockedUsers[:i], c.conf.BlockedUsers[i+1:]...)
			if err := c.conf.save(); err != nil {
				c.addError(fmt.Sprintf("Failed to save configuration: %v", err))
			}
			c.addStatusMessage(fmt.Sprintf("Unblocked %s", b.Nick))
			return
		}
	}
	c.addInfo(fmt.Sprintf("No blocked user matches %q", ref))
}

func (c *Client) listBlockedUsers() {
	if len(c.conf.BlockedUsers) == 0 {
		c.addInfo("No blocked users.")
		return
	}
	c.addInfo(fmt.Sprintf("Blocked users (%d):", len(c.conf.BlockedUsers)))
	for _, b := range c.conf.BlockedUsers {
		c.addInfo(fmt.Sprintf("  %s (%s...)", b.Nick, shortPubKey(b.PubKey)))
	}
}

func (c *Client) listAutoMutedUsers() {
	muted := c.filter.AutoMutedUsers()
	if len(muted) == 0 {
		c.addInfo("No auto-muted users.")
		return
	}
	c.addInfo(fmt.Sprintf("Auto-muted users (%d):", len(muted)))
	for _, m := range muted {
		nick := anonNickname(m.PubKey)
		if ctx, ok := c.userContext.Get(m.PubKey); ok {
			nick = ctx.nick
		}
		c.addInfo(fmt.Sprintf("  %s (%s...) %ds remaining",
			channels.DisplayNickname(nick, m.PubKey), shortPubKey(m.PubKey), int(m.Remaining.Seconds())))
	}
}

func (c *Client) unmuteSpammer(payload string) {
	ref := strings.TrimSpace(payload)
	if ref == "" {
		c.addInfo("Usage: /spam unmute <nick>")
		return
	}
	pk, nick, ok := c.lookupPubKey(ref)
	if !ok {
		// Fall back to matching against the muted set directly.
		for _, m := range c.filter.AutoMutedUsers() {
			if strings.HasPrefix(m.PubKey, ref) {
				pk, nick, ok = m.PubKey, anonNickname(m.PubKey), true
				break
			}
		}
	}
	if !ok {
		c.addInfo(fmt.Sprintf("Unknown user: %s", ref))
		return
	}
	if c.filter.ManuallyUnmuteUser(pk) {
		c.addStatusMessage(fmt.Sprintf("Unmuted %s", nick))
	} else {
		c.addInfo(fmt.Sprintf("%s is not muted.", nick))
	}
}

func (c *Client) showSpamFilterStatus() {
	state := "disabled"
	if c.filter.Enabled() {
		state = "enabled"
	}
	c.addInfo(fmt.Sprintf("Spam filter is %s; %d user(s) currently auto-muted.",
		state, c.filter.AutoMutedCount()))
}

func (c *Client) whoisUser(payload string) {
	ref := strings.TrimSpace(payload)
	if ref == "" {
		c.addInfo("Usage: /whois <nick>")
		return
	}
	pk, nick, ok := c.lookupPubKey(ref)
	if !ok {
		c.addInfo(fmt.Sprintf("Unknown user: %s", ref))
		return
	}

	npub, err := nip19.EncodePublicKey(pk)
	if err != nil {
		npub = pk
	}
	c.addInfo(fmt.Sprintf("%s:", channels.DisplayNickname(nick, pk)))
	c.addInfo(fmt.Sprintf("  npub:   %s", npub))
	c.addInfo(fmt.Sprintf("  pubkey: %s", pk))

	if ch := c.manager.Channel(c.currentChannel()); ch != nil {
		if p, found := ch.Participant(nick); found {
			c.addInfo(fmt.Sprintf("  last seen: %s, %d message(s) here",
				p.LastSeen.Local().Format("15:04:05"), p.MessageCount))
		}
	}
	if c.filter.IsUserAutoMuted(pk) {
		c.addInfo("  currently auto-muted")
	}
	if c.isBlocked(pk) {
		c.addInfo("  blocked by you")
	}
}

// sendActionMessage publishes an emote ("/me"-style) line to the current
// channel.
func (c *Client) sendActionMessage(text string) {
	target := c.currentChannel()
	if target == SystemChannel || strings.HasPrefix(target, "dm:") {
		c.addInfo("Actions only work in geohash channels.")
		return
	}
	c.sendMessage(target, fmt.Sprintf("* %s %s", c.nick, strings.TrimSpace(text)))
}

func (c *Client) showStatus() {
	c.relaysMu.Lock()
	connected := 0
	for _, mr := range c.relays {
		mr.mu.Lock()
		if mr.connected {
			connected++
		}
		mr.mu.Unlock()
	}
	total := len(c.relays)
	c.relaysMu.Unlock()

	joined := c.manager.JoinedChannels()
	c.addInfo(fmt.Sprintf("Nickname: %s (%s...)", c.nick, shortPubKey(c.pk)))
	c.addInfo(fmt.Sprintf("Relays:   %d/%d connected (%d known worldwide)", connected, total, c.directory.RelayCount()))
	c.addInfo(fmt.Sprintf("Channels: %d joined, current #%s", len(joined), c.currentChannel()))
	c.addInfo(fmt.Sprintf("Spam:     %d user(s) auto-muted, %d blocked",
		c.filter.AutoMutedCount(), len(c.conf.BlockedUsers)))
}

func (c *Client) showVersion() {
	c.addInfo(fmt.Sprintf("geochat %s", Version))
}

func (c *Client) handleNickCompletion(prefix string) {
	ch := c.manager.Channel(c.currentChannel())
	if ch == nil {
		return
	}
	c.emit(DisplayEvent{Type: "NICK_COMPLETION_RESULT", Payload: NickCompletion{
		Prefix:  prefix,
		Matches: ch.FindMatchingNicknames(prefix),
	}})
}

func (c *Client) getHelp() {
	for _, line := range []string{
		"Commands:",
		"  /join <geohash>        join a channel",
		"  /leave [channel]       leave a channel (default: current)",
		"  /switch <channel>      switch the active channel (Tab cycles)",
		"  /msg <target> <text>   send to a channel or start a private chat",
		"  /list                  list known channels",
		"  /all                   show messages from all channels (last 10 min)",
		"  /search <text>         search the current channel's history",
		"  /clear                 clear the current channel",
		"  /nick <name>           change your nickname",
		"  /block <nick>          hide a user's messages",
		"  /unblock <nick>        unhide a user",
		"  /blocked               list blocked users",
		"  /spam [list|unmute <nick>]  spam filter controls",
		"  /whois <nick>          show a user's identity",
		"  /hug <nick>, /slap <nick>   emotes",
		"  /status, /version, /help, /quit",
	} {
		c.addInfo(line)
	}
}

// lookupPubKey resolves a user reference (nickname, display label with
// #prefix, or pubkey hex prefix) to a known pubkey. The current channel's
// participants win over the global context cache.
func (c *Client) lookupPubKey(ref string) (pk, nick string, ok bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", false
	}

	bareNick := ref
	if i := strings.LastIndex(ref, "#"); i > 0 {
		bareNick = ref[:i]
	}

	if ch := c.manager.Channel(c.currentChannel()); ch != nil {
		for _, p := range ch.Participants() {
			if p.PubKey == "" {
				continue
			}
			if p.Nickname == ref || p.Nickname == bareNick ||
				channels.DisplayNickname(p.Nickname, p.PubKey) == ref {
				return p.PubKey, p.Nickname, true
			}
		}
	}

	for _, key := range c.userContext.Keys() {
		if ctx, found := c.userContext.Get(key); found {
			if ctx.nick == ref || ctx.nick == bareNick ||
				channels.DisplayNickname(ctx.nick, key) == ref {
				return key, ctx.nick, true
			}
		}
	}

	if len(ref) >= 8 && isHex(ref) {
		for _, key := range c.userContext.Keys() {
			if strings.HasPrefix(key, strings.ToLower(ref)) {
				n := anonNickname(key)
				if ctx, found := c.userContext.Get(key); found {
					n = ctx.nick
				}
				return key, n, true
			}
		}
		if len(ref) == 64 {
			return strings.ToLower(ref), anonNickname(ref), true
		}
	}
	return "", "", false
}

func (c *Client) isBlocked(pk string) bool {
	for _, b := range c.conf.BlockedUsers {
		if b.PubKey == pk {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
