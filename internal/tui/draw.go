package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// updateChannelList refreshes the channel list view, marking the active one.
func (t *tui) updateChannelList() {
	currentItem := t.channelList.GetCurrentItem()
	t.channelList.Clear()
	if len(t.channels) == 0 {
		return
	}

	for _, ch := range t.channels {
		var prefix string
		switch {
		case ch.Name == t.current:
			prefix = "▶"
		case ch.Joined:
			prefix = "•"
		default:
			prefix = " "
		}

		name := ch.Name
		if strings.HasPrefix(name, "dm:") {
			name = "@" + name[3:min(len(name), 11)]
		} else {
			name = "#" + name
		}
		t.channelList.AddItem(fmt.Sprintf(" %s %s", prefix, name), "", 0, nil)
	}

	if currentItem >= len(t.channels) {
		currentItem = len(t.channels) - 1
	}
	if currentItem < 0 {
		currentItem = 0
	}
	t.channelList.SetCurrentItem(currentItem)
}

// updateDetailsView refreshes the details panel with the selected channel's
// counters and the relay connections.
func (t *tui) updateDetailsView() {
	t.detailsView.SetTitle(titleInfo)
	t.detailsView.Clear()

	var builder strings.Builder

	if t.channelList.GetItemCount() > 0 && len(t.channels) > 0 {
		currentIndex := t.channelList.GetCurrentItem()
		if currentIndex >= 0 && currentIndex < len(t.channels) {
			ch := t.channels[currentIndex]
			builder.WriteString(fmt.Sprintf(" [%s]#%s[-]\n", t.theme.logWarnColor, ch.Name))
			builder.WriteString(fmt.Sprintf(" %d messages\n", ch.Messages))
			builder.WriteString(fmt.Sprintf(" %d participants\n\n", ch.Participants))
		}
	}

	builder.WriteString(fmt.Sprintf("[%s]Connected Relays:[-]\n", t.theme.logWarnColor))

	sort.SliceStable(t.relays, func(i, j int) bool {
		return t.relays[i].URL < t.relays[j].URL
	})

	if len(t.relays) == 0 {
		builder.WriteString(fmt.Sprintf(" [%s]Not connected...[-]\n", t.theme.logInfoColor))
	} else {
		for _, r := range t.relays {
			var statusColor tcell.Color
			switch {
			case !r.Connected:
				statusColor = t.theme.logErrorColor
			case r.Latency > 750*time.Millisecond:
				statusColor = t.theme.logWarnColor
			default:
				statusColor = t.theme.titleColor
			}
			host := strings.TrimPrefix(strings.TrimPrefix(r.URL, "wss://"), "ws://")
			builder.WriteString(fmt.Sprintf(" [%s]●[-] %s [-]\n", statusColor, host))
		}
	}
	fmt.Fprint(t.detailsView, builder.String())
}

// updateInputLabel sets the prompt label for the input field, including the user's nick.
func (t *tui) updateInputLabel() {
	if t.nick != "" {
		t.input.SetLabel(fmt.Sprintf("%s > ", t.nick))
	} else {
		t.input.SetLabel("> ")
	}
}

// updateFocusBorders changes widget border colors to highlight the focused element.
func (t *tui) updateFocusBorders() {
	currentFocus := t.app.GetFocus()
	unfocusedColor := tview.Styles.BorderColor
	focusedColor := tview.Styles.TitleColor

	components := map[tview.Primitive]bool{
		t.logs:        false,
		t.channelList: false,
		t.detailsView: false,
		t.output:      false,
		t.input:       false,
	}

	if _, ok := components[currentFocus]; ok {
		components[currentFocus] = true
	}

	t.logs.SetBorderColor(map[bool]tcell.Color{true: focusedColor, false: unfocusedColor}[components[t.logs]])
	t.channelList.SetBorderColor(map[bool]tcell.Color{true: focusedColor, false: unfocusedColor}[components[t.channelList]])
	t.detailsView.SetBorderColor(map[bool]tcell.Color{true: focusedColor, false: unfocusedColor}[components[t.detailsView]])
	t.output.SetBorderColor(map[bool]tcell.Color{true: focusedColor, false: unfocusedColor}[components[t.output]])
	t.input.SetBorderColor(map[bool]tcell.Color{true: focusedColor, false: unfocusedColor}[components[t.input]])
}

// updateHints displays context-sensitive hints for the user.
func (t *tui) updateHints() {
	var hintText string
	highlight := t.theme.titleColor
	baseHints := fmt.Sprintf("[%[1]s]Alt+...[-]: Focus | [%[1]s]Ctrl+C[-]: Quit", highlight)

	if t.logsMaximized || t.outputMaximized {
		hintText = fmt.Sprintf("[%[1]s]`[-]: Restore | [%[1]s]↑/↓[-]: Scroll | [%[1]s]Ctrl+C[-]: Quit", highlight)
	} else {
		switch t.app.GetFocus() {
		case t.input:
			hintText = fmt.Sprintf("[%[1]s]Enter[-]: Send | [%[1]s]Tab[-]: Next Channel | %s", highlight, baseHints)
		case t.output:
			hintText = fmt.Sprintf("[%[1]s]`[-]: Maximize | [%[1]s]↑/↓[-]: Scroll | [%[1]s]Tab/Shift+Tab[-]: Cycle Focus | %s", highlight, baseHints)
		case t.detailsView:
			hintText = fmt.Sprintf("[%[1]s]↑/↓[-]: Scroll | [%[1]s]Tab/Shift+Tab[-]: Cycle Focus | %s", highlight, baseHints)
		case t.channelList:
			hintText = fmt.Sprintf("[%[1]s]Enter[-]: Switch | [%[1]s]Del[-]: Leave | [%[1]s]Tab/Shift+Tab[-]: Cycle Focus | %s", highlight, baseHints)
		case t.logs:
			hintText = fmt.Sprintf("[%[1]s]`[-]: Maximize | [%[1]s]Tab/Shift+Tab[-]: Cycle Focus | %s", highlight, baseHints)
		default:
			hintText = baseHints
		}
	}
	t.hints.SetText(hintText)
}
