package discord

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphchat/internal/chat"
	"github.com/MrWong99/glyphchat/internal/discord/mock"
)

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "empty", text: "   ", limit: 10, want: nil},
		{name: "fits", text: "hello", limit: 10, want: []string{"hello"}},
		{name: "prefers newline", text: "first line\nsecond", limit: 12, want: []string{"first line", "second"}},
		{name: "falls back to space", text: "aaaa bbbb cccc", limit: 10, want: []string{"aaaa bbbb", "cccc"}},
		{name: "hard cut", text: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "counts runes", text: "ääää ööö", limit: 5, want: []string{"ääää", "ööö"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitMessage(tt.text, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("SplitMessage(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("Truncate long = %q", got)
	}
}

func TestTransport_Send(t *testing.T) {
	t.Parallel()

	s := &mock.Session{}
	tr := NewTransport(s)
	long := strings.Repeat("word ", 500) // 2500 runes

	if err := tr.Send(context.Background(), "c1", long); err != nil {
		t.Fatalf("Send: %v", err)
	}
	sent := s.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	for _, m := range sent {
		if m.ChannelID != "c1" {
			t.Errorf("channel = %q", m.ChannelID)
		}
		if n := len([]rune(m.Data.Content)); n > MaxMessageLength {
			t.Errorf("chunk length %d exceeds limit", n)
		}
		am := m.Data.AllowedMentions
		if am == nil || len(am.Parse) != 1 || am.Parse[0] != discordgo.AllowedMentionTypeUsers {
			t.Errorf("allowed mentions = %+v", am)
		}
	}
}

func TestTransport_SendErrors(t *testing.T) {
	t.Parallel()

	s := &mock.Session{Err: mock.ErrUnavailable}
	tr := NewTransport(s)
	if err := tr.Send(context.Background(), "c1", "hi"); !errors.Is(err, mock.ErrUnavailable) {
		t.Errorf("Send error = %v, want ErrUnavailable", err)
	}
	if err := tr.Send(context.Background(), "c1", "  "); err == nil {
		t.Error("expected error for empty message")
	}
}

func TestTransport_TypingRefreshesUntilStopped(t *testing.T) {
	t.Parallel()

	s := &mock.Session{}
	tr := &Transport{session: s, interval: 5 * time.Millisecond}

	stop := tr.Typing(context.Background(), "c1")
	deadline := time.Now().Add(2 * time.Second)
	for s.TypingCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	stop()
	stop()

	n := s.TypingCount()
	if n < 3 {
		t.Fatalf("typing refreshed %d times, want at least 3", n)
	}
	time.Sleep(20 * time.Millisecond)
	if after := s.TypingCount(); after != n {
		t.Errorf("typing continued after stop: %d -> %d", n, after)
	}
}

func TestTransport_TypingStopsWithContext(t *testing.T) {
	t.Parallel()

	s := &mock.Session{}
	tr := &Transport{session: s, interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	stop := tr.Typing(ctx, "c1")
	cancel()
	stop()
	if s.TypingCount() != 1 {
		t.Errorf("typing count = %d, want 1", s.TypingCount())
	}
}

func TestDirectory_LookupUser(t *testing.T) {
	t.Parallel()

	s := &mock.Session{
		Members: map[string]*discordgo.Member{
			"g1/u1": {Nick: "Bobby", User: &discordgo.User{ID: "u1", Username: "bob"}},
		},
		Users: map[string]*discordgo.User{
			"u2": {ID: "u2", Username: "carol", GlobalName: "Carol"},
		},
	}
	d := NewDirectory(s)
	ctx := context.Background()

	tests := []struct {
		name    string
		guildID string
		userID  string
		want    chat.User
		wantErr error
	}{
		{name: "guild nickname", guildID: "g1", userID: "u1", want: chat.User{ID: "u1", Name: "Bobby"}},
		{name: "falls back to global profile", guildID: "g1", userID: "u2", want: chat.User{ID: "u2", Name: "Carol"}},
		{name: "unknown user", guildID: "g1", userID: "u3", wantErr: ErrUserNotFound},
		{name: "empty id", guildID: "g1", userID: "", wantErr: ErrUserNotFound},
	}
	for _, tt := range tests {
		got, err := d.LookupUser(ctx, tt.guildID, tt.userID)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s: err = %v, want %v", tt.name, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestDirectory_CachesHits(t *testing.T) {
	t.Parallel()

	s := &mock.Session{Members: map[string]*discordgo.Member{
		"g1/u1": {User: &discordgo.User{ID: "u1", Username: "bob"}},
	}}
	d := NewDirectory(s)
	for range 3 {
		if _, err := d.LookupUser(context.Background(), "g1", "u1"); err != nil {
			t.Fatal(err)
		}
	}
	if members, _ := s.LookupCounts(); members != 1 {
		t.Errorf("member lookups = %d, want 1", members)
	}
}

func TestDirectory_TransientErrorIsNotNotFound(t *testing.T) {
	t.Parallel()

	s := &mock.Session{LookupErr: mock.ErrUnavailable}
	_, err := NewDirectory(s).LookupUser(context.Background(), "g1", "u1")
	if !errors.Is(err, mock.ErrUnavailable) || errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v", err)
	}
}
