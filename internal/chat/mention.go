package chat

import "strings"

// StripMention removes every <@id> and <@!id> mention of userID from text
// and trims the result.
func StripMention(text, userID string) string {
	if userID == "" {
		return strings.TrimSpace(text)
	}
	r := strings.NewReplacer("<@"+userID+">", "", "<@!"+userID+">", "")
	return strings.TrimSpace(r.Replace(text))
}
