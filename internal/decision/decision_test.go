package decision

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{
			name: "empty",
			in:   "",
			want: map[string]string{},
		},
		{
			name: "all tags",
			in:   "[EMOTION:happy]\n[INTENT:greeting]\n[STRATEGY:be warm]\n[TARGET_USER_ID:none]",
			want: map[string]string{
				"EMOTION": "happy", "INTENT": "greeting",
				"STRATEGY": "be warm", "TARGET_USER_ID": "none",
			},
		},
		{
			name: "whitespace trimmed around key and value",
			in:   "  [ EMOTION :  sad  ]",
			want: map[string]string{"EMOTION": "sad"},
		},
		{
			name: "value may contain colon",
			in:   "[INTENT:asks: what time is it]",
			want: map[string]string{"INTENT": "asks: what time is it"},
		},
		{
			name: "last duplicate wins",
			in:   "[EMOTION:happy]\n[EMOTION:angry]",
			want: map[string]string{"EMOTION": "angry"},
		},
		{
			name: "prose and malformed lines ignored",
			in:   "Sure! Here is my plan:\n[EMOTION:calm]\nEMOTION:loud\n[broken\n(x:y)",
			want: map[string]string{"EMOTION": "calm"},
		},
		{
			name: "tag must start the line",
			in:   "note [EMOTION:happy]",
			want: map[string]string{},
		},
		{
			name: "crlf line endings",
			in:   "[EMOTION:happy]\r\n[INTENT:chat]\r\n",
			want: map[string]string{"EMOTION": "happy", "INTENT": "chat"},
		},
		{
			name: "trailing text after tag ignored",
			in:   "[STRATEGY:short] because they are busy",
			want: map[string]string{"STRATEGY": "short"},
		},
		{
			name: "empty value kept",
			in:   "[INTENT:]",
			want: map[string]string{"INTENT": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, Parse(tt.in)); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tags    map[string]string
		unknown string
		want    Record
	}{
		{
			name: "defaults",
			tags: map[string]string{},
			want: Record{Emotion: "unknown", Intent: "unknown", Strategy: "unknown"},
		},
		{
			name:    "custom unknown sentinel",
			tags:    map[string]string{"EMOTION": "joy", "INTENT": ""},
			unknown: "???",
			want:    Record{Emotion: "joy", Intent: "???", Strategy: "???"},
		},
		{
			name: "target none in any case",
			tags: map[string]string{"TARGET_USER_ID": "NONE"},
			want: Record{Emotion: "unknown", Intent: "unknown", Strategy: "unknown"},
		},
		{
			name: "plain target",
			tags: map[string]string{"TARGET_USER_ID": "12345"},
			want: Record{Emotion: "unknown", Intent: "unknown", Strategy: "unknown", TargetUserID: "12345"},
		},
		{
			name: "mention wrapped target",
			tags: map[string]string{"TARGET_USER_ID": "<@!987>"},
			want: Record{Emotion: "unknown", Intent: "unknown", Strategy: "unknown", TargetUserID: "987"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FromTags(tt.tags, tt.unknown)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FromTags() mismatch (-want +got):\n%s", diff)
			}
			if got.HasTarget() != (tt.want.TargetUserID != "") {
				t.Errorf("HasTarget() = %v", got.HasTarget())
			}
		})
	}
}

func TestParseRecord(t *testing.T) {
	t.Parallel()

	r := ParseRecord("[EMOTION:bored]\n[TARGET_USER_ID:<@42>]", "")
	want := Record{Emotion: "bored", Intent: DefaultUnknown, Strategy: DefaultUnknown, TargetUserID: "42"}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("ParseRecord() mismatch (-want +got):\n%s", diff)
	}
}
