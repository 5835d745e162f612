package prompt

import (
	"fmt"
	"strings"

	"github.com/MrWong99/glyphchat/internal/session"
)

// Mention is a user referenced in the incoming message.
type Mention struct {
	ID   string
	Name string
}

// FormatHistory renders turns as "speaker: text" lines, oldest first. An
// empty history yields placeholder.
func FormatHistory(turns []session.Turn, placeholder string) string {
	if len(turns) == 0 {
		return placeholder
	}
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Speaker + ": " + t.Text
	}
	return strings.Join(lines, "\n")
}

// FormatFacts renders note texts as a dashed list, or placeholder if empty.
func FormatFacts(texts []string, placeholder string) string {
	if len(texts) == 0 {
		return placeholder
	}
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(t)
	}
	return b.String()
}

// FormatMentions renders mentioned users as "- name (ID: id)" lines, or
// placeholder if there are none.
func FormatMentions(ms []Mention, placeholder string) string {
	if len(ms) == 0 {
		return placeholder
	}
	lines := make([]string, len(ms))
	for i, m := range ms {
		lines[i] = fmt.Sprintf("- %s (ID: %s)", m.Name, m.ID)
	}
	return strings.Join(lines, "\n")
}

// FormatScore renders a mood average with two decimals.
func FormatScore(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
