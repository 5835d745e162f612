package recall

import (
	"strings"

	"github.com/MrWong99/glyphchat/pkg/memory"
)

const timeLayout = "2006-01-02 15:04"

// Format renders channel hits as "- [time] author: content" lines, most
// relevant first. No hits yields placeholder.
func Format(hits []memory.Hit, placeholder string) string {
	return format(hits, placeholder, false)
}

// FormatAcross is [Format] for server-wide hits; each line also names the
// channel the message came from.
func FormatAcross(hits []memory.Hit, placeholder string) string {
	return format(hits, placeholder, true)
}

func format(hits []memory.Hit, placeholder string, withChannel bool) string {
	if len(hits) == 0 {
		return placeholder
	}
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteByte('\n')
		}
		m := h.Message
		var tags []string
		if !m.Timestamp.IsZero() {
			tags = append(tags, m.Timestamp.UTC().Format(timeLayout))
		}
		if withChannel && m.ChannelID != "" {
			tags = append(tags, "in <#"+m.ChannelID+">")
		}
		b.WriteString("- ")
		if len(tags) > 0 {
			b.WriteString("[" + strings.Join(tags, " ") + "] ")
		}
		author := m.AuthorName
		if author == "" {
			author = m.AuthorID
		}
		b.WriteString(author)
		b.WriteString(": ")
		b.WriteString(oneLine(m.Content))
	}
	return b.String()
}

// oneLine collapses runs of whitespace so a multi-line message stays on its
// own list line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
