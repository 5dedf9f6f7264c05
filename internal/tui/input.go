package tui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lessucettes/geochat/internal/client"
)

// setupHandlers configures all the logic for handling user input.
func (t *tui) setupHandlers() {
	// Configure the handler for the main input field.
	t.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		defer t.input.SetText("")

		text := strings.TrimSpace(t.input.GetText())
		if text == "" {
			return
		}

		if strings.HasPrefix(text, "/") {
			t.handleCommand(text)
		} else {
			t.actionsChan <- client.UserAction{Type: "SEND_MESSAGE", Payload: text}
		}
	})

	// Set up global key handlers for focus, exiting, etc.
	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if t.logsMaximized || t.outputMaximized {
			return t.handleMaximizedViewKeys(event)
		}

		switch event.Key() {
		case tcell.KeyTab:
			// Tab on an empty input cycles channels; otherwise it cycles focus.
			if t.app.GetFocus() == t.input && t.input.GetText() == "" {
				t.actionsChan <- client.UserAction{Type: "NEXT_CHANNEL"}
				return nil
			}
			t.cycleFocus(true)
			return nil
		case tcell.KeyBacktab:
			t.cycleFocus(false)
			return nil
		}

		if event.Modifiers() == tcell.ModAlt {
			switch event.Rune() {
			case 'c':
				t.app.SetFocus(t.channelList)
			case 'o':
				t.app.SetFocus(t.output)
			case 'i':
				t.app.SetFocus(t.input)
			case 'l':
				t.app.SetFocus(t.logs)
			case 'n':
				t.app.SetFocus(t.detailsView)
			}
			t.updateFocusBorders()
			t.updateHints()
			return nil
		}

		currentFocus := t.app.GetFocus()

		if currentFocus == t.channelList {
			return t.handleChannelListKeys(event)
		}

		if currentFocus == t.logs && event.Key() == tcell.KeyRune && event.Rune() == '`' {
			t.logsMaximized = true
			t.app.SetRoot(t.maximizedLogsFlex, true).SetFocus(t.logs)
			t.updateHints()
			return nil
		}

		if currentFocus == t.output && event.Key() == tcell.KeyRune && event.Rune() == '`' {
			t.outputMaximized = true
			t.app.SetRoot(t.maximizedOutputFlex, true).SetFocus(t.output)
			t.updateHints()
			return nil
		}

		if event.Key() == tcell.KeyCtrlC {
			t.actionsChan <- client.UserAction{Type: "QUIT"}
			return nil
		}

		return event
	})

	t.channelList.SetChangedFunc(func(index int, mainText string, secondaryText string, shortcut rune) {
		t.updateDetailsView()
	})
}

// handleCommand parses and dispatches actions for slash-commands.
func (t *tui) handleCommand(text string) {
	parts := strings.SplitN(text, " ", 2)
	command := parts[0]
	payload := ""
	if len(parts) > 1 {
		payload = strings.TrimSpace(parts[1])
	}
	switch command {
	case "/quit", "/q":
		t.actionsChan <- client.UserAction{Type: "QUIT"}
	case "/join", "/j":
		t.actionsChan <- client.UserAction{Type: "JOIN_CHANNEL", Payload: payload}
	case "/leave", "/part":
		t.actionsChan <- client.UserAction{Type: "LEAVE_CHANNEL", Payload: payload}
	case "/switch", "/s":
		t.actionsChan <- client.UserAction{Type: "SWITCH_CHANNEL", Payload: payload}
	case "/msg", "/m":
		t.actionsChan <- client.UserAction{Type: "SEND_TO", Payload: payload}
	case "/list", "/l":
		t.actionsChan <- client.UserAction{Type: "LIST_CHANNELS"}
	case "/all", "/a":
		t.actionsChan <- client.UserAction{Type: "SHOW_ALL"}
	case "/search":
		t.actionsChan <- client.UserAction{Type: "SEARCH_MESSAGES", Payload: payload}
	case "/clear":
		t.actionsChan <- client.UserAction{Type: "CLEAR_CHANNEL"}
	case "/nick", "/n":
		t.actionsChan <- client.UserAction{Type: "SET_NICK", Payload: payload}
	case "/block", "/b":
		if payload == "" {
			t.actionsChan <- client.UserAction{Type: "LIST_BLOCKED"}
		} else {
			t.actionsChan <- client.UserAction{Type: "BLOCK_USER", Payload: payload}
		}
	case "/unblock", "/ub":
		if payload == "" {
			t.actionsChan <- client.UserAction{Type: "LIST_BLOCKED"}
		} else {
			t.actionsChan <- client.UserAction{Type: "UNBLOCK_USER", Payload: payload}
		}
	case "/blocked":
		t.actionsChan <- client.UserAction{Type: "LIST_BLOCKED"}
	case "/spam":
		args := strings.Fields(payload)
		switch {
		case len(args) == 0 || args[0] == "status":
			t.actionsChan <- client.UserAction{Type: "SPAM_STATUS"}
		case args[0] == "list":
			t.actionsChan <- client.UserAction{Type: "SPAM_LIST"}
		case args[0] == "unmute" && len(args) > 1:
			t.actionsChan <- client.UserAction{Type: "SPAM_UNMUTE", Payload: args[1]}
		default:
			t.actionsChan <- client.UserAction{Type: "SPAM_STATUS"}
		}
	case "/whois", "/w":
		t.actionsChan <- client.UserAction{Type: "WHOIS", Payload: payload}
	case "/hug":
		t.actionsChan <- client.UserAction{Type: "ACTION_HUG", Payload: payload}
	case "/slap":
		t.actionsChan <- client.UserAction{Type: "ACTION_SLAP", Payload: payload}
	case "/status":
		t.actionsChan <- client.UserAction{Type: "SHOW_STATUS"}
	case "/version", "/v":
		t.actionsChan <- client.UserAction{Type: "SHOW_VERSION"}
	case "/help", "/h":
		t.actionsChan <- client.UserAction{Type: "GET_HELP"}
	}
}

// cycleFocus cycles the focus between the main UI primitives.
func (t *tui) cycleFocus(forward bool) {
	primitives := []tview.Primitive{t.input, t.channelList, t.output, t.logs, t.detailsView}
	for i, p := range primitives {
		if p.HasFocus() {
			var next int
			if forward {
				next = (i + 1) % len(primitives)
			} else {
				next = (i - 1 + len(primitives)) % len(primitives)
			}
			t.app.SetFocus(primitives[next])
			t.updateFocusBorders()
			t.updateHints()
			return
		}
	}
}

// handleMaximizedViewKeys handles key events when a view is maximized.
func (t *tui) handleMaximizedViewKeys(event *tcell.EventKey) *tcell.EventKey {
	currentFocus := t.app.GetFocus()
	switch event.Key() {
	case tcell.KeyRune:
		if event.Rune() == '`' {
			if currentFocus == t.logs {
				t.logsMaximized = false
				t.app.SetRoot(t.mainFlex, true).SetFocus(t.logs)
			}
			if currentFocus == t.output {
				t.outputMaximized = false
				t.app.SetRoot(t.mainFlex, true).SetFocus(t.output)
			}
			t.updateHints()
			return nil
		}
	case tcell.KeyCtrlC:
		t.actionsChan <- client.UserAction{Type: "QUIT"}
		return nil
	case tcell.KeyTab, tcell.KeyBacktab:
		return nil
	case tcell.KeyUp, tcell.KeyDown, tcell.KeyPgUp, tcell.KeyPgDn, tcell.KeyHome, tcell.KeyEnd:
		return event
	}
	return nil
}

// handleChannelListKeys handles key events for the channel list view.
func (t *tui) handleChannelListKeys(event *tcell.EventKey) *tcell.EventKey {
	if key := event.Key(); key == tcell.KeyUp || key == tcell.KeyDown || key == tcell.KeyHome || key == tcell.KeyEnd {
		return event
	}

	count := t.channelList.GetItemCount()
	if count == 0 || len(t.channels) == 0 {
		return event
	}

	cur := t.channelList.GetCurrentItem()
	if cur < 0 || cur >= len(t.channels) {
		return event
	}

	selected := t.channels[cur]
	switch event.Key() {
	case tcell.KeyEnter:
		t.actionsChan <- client.UserAction{Type: "SWITCH_CHANNEL", Payload: selected.Name}
		return nil
	case tcell.KeyDelete:
		t.actionsChan <- client.UserAction{Type: "LEAVE_CHANNEL", Payload: selected.Name}
		return nil
	}
	return event
}
