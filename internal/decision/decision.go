// Package decision parses the tagged plan the model emits during the
// meta-decision stage.
//
// The model is asked to answer with lines such as
//
//	[EMOTION:curious]
//	[INTENT:asking about yesterday's raid]
//	[STRATEGY:tease, then answer]
//	[TARGET_USER_ID:none]
//
// Parsing is deliberately forgiving: prose around the tags, missing tags and
// malformed lines are ignored, and Parse never fails.
package decision

import (
	"regexp"
	"strings"
)

// Tag keys emitted by the meta-decision prompt.
const (
	KeyEmotion  = "EMOTION"
	KeyIntent   = "INTENT"
	KeyStrategy = "STRATEGY"
	KeyTarget   = "TARGET_USER_ID"
)

// DefaultUnknown is the value used for labels the model did not provide.
const DefaultUnknown = "unknown"

// tagPattern matches a [KEY:VALUE] tag at the start of a line. Both groups
// are non-greedy, so the key ends at the first colon and the value at the
// first closing bracket.
var tagPattern = regexp.MustCompile(`^\[(.*?):(.*?)\]`)

// Parse extracts [KEY:VALUE] tags from text, one per line. Keys and values
// are trimmed of surrounding whitespace. When a key repeats, the last
// occurrence wins. Lines that do not start with a tag are ignored.
func Parse(text string) map[string]string {
	tags := make(map[string]string)
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		m := tagPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.TrimSpace(m[1])
		if key == "" {
			continue
		}
		tags[key] = strings.TrimSpace(m[2])
	}
	return tags
}

// Record is the interpreted meta-decision.
type Record struct {
	Emotion  string
	Intent   string
	Strategy string

	// TargetUserID is the platform user ID whose history should be
	// recalled, or "" when the model named no one.
	TargetUserID string
}

// HasTarget reports whether the model selected a specific user.
func (r Record) HasTarget() bool { return r.TargetUserID != "" }

// FromTags builds a Record from parsed tags. Missing or empty labels take
// unknown (or [DefaultUnknown] when unknown is empty). A target of "none" in
// any case, or an empty one, means no target; mention syntax such as <@123>
// or <@!123> is reduced to the bare ID.
func FromTags(tags map[string]string, unknown string) Record {
	if unknown == "" {
		unknown = DefaultUnknown
	}
	label := func(k string) string {
		if v := tags[k]; v != "" {
			return v
		}
		return unknown
	}
	return Record{
		Emotion:      label(KeyEmotion),
		Intent:       label(KeyIntent),
		Strategy:     label(KeyStrategy),
		TargetUserID: normaliseTarget(tags[KeyTarget]),
	}
}

// ParseRecord is Parse followed by FromTags.
func ParseRecord(text, unknown string) Record {
	return FromTags(Parse(text), unknown)
}

func normaliseTarget(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "none") {
		return ""
	}
	if strings.HasPrefix(v, "<@") && strings.HasSuffix(v, ">") {
		v = strings.TrimPrefix(v[2:len(v)-1], "!")
	}
	return strings.TrimSpace(v)
}
