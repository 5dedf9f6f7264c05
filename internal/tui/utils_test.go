package tui

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractNickPrefix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		nick     string
		complete bool
	}{
		{"no at sign", "hello world", "", false},
		{"bare prefix", "hey @ali", "ali", false},
		{"complete tag", "hey @alice#02c1", "alice#02c1", true},
		{"tag mid-sentence", "ping @alice#02c1 are you there", "alice#02c1", true},
		{"short tag", "hey @alice#02", "alice#02", false},
		{"non-alnum tag", "hey @alice#0-c1", "alice#0-c1", false},
		{"last at wins", "@bob hi @ali", "ali", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nick, complete := extractNickPrefix(tt.input)
			require.Equal(t, tt.nick, nick)
			require.Equal(t, tt.complete, complete)
		})
	}
}

func TestPubkeyToColor(t *testing.T) {
	palette := []string{"[red]", "[green]", "[blue]"}

	first := pubkeyToColor("02c1ffee", palette)
	require.Contains(t, palette, first)
	require.Equal(t, first, pubkeyToColor("02c1ffee", palette), "stable per pubkey")

	require.Equal(t, "[white]", pubkeyToColor("anything", nil))
}
