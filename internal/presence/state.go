// Package presence mirrors a "now playing" text file into a chat presence.
//
// The Updater polls the file's modification time, reads it only when the
// time moved, derives a State from the content and publishes it when it
// differs from what was last published successfully.
package presence

import (
	"strings"
	"unicode/utf8"
)

// Kind is the kind of presence to show.
type Kind int

const (
	// Cleared means nothing is playing and no activity is shown.
	Cleared Kind = iota
	// Announcing means a song title is shown as the current activity.
	Announcing
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case Announcing:
		return "announcing"
	default:
		return "cleared"
	}
}

// State is a presence derived from the watched file.
// The zero value is Cleared.
type State struct {
	Kind  Kind
	Title string // Set only when Kind is Announcing
}

// Derive maps file content to a State. Content whose trimmed length is
// below minLength is Cleared; anything else announces the content verbatim.
func Derive(content string, minLength int) State {
	if content == "" || utf8.RuneCountInString(strings.TrimSpace(content)) < minLength {
		return State{Kind: Cleared}
	}
	return State{Kind: Announcing, Title: content}
}

// LogTitle returns title with non-ASCII characters removed,
// for log lines only.
func LogTitle(title string) string {
	return strings.Map(func(r rune) rune {
		if r >= utf8.RuneSelf {
			return -1
		}
		return r
	}, title)
}
