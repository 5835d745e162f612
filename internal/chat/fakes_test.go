package chat_test

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/glyphchat/internal/chat"
	"github.com/MrWong99/glyphchat/internal/facts"
	"github.com/MrWong99/glyphchat/internal/mood"
	"github.com/MrWong99/glyphchat/internal/persona"
	"github.com/MrWong99/glyphchat/pkg/memory"
)

type sent struct {
	ChannelID string
	Text      string
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []sent
	sendErr  error
	typing   int
	stopped  int
	failOnce bool
}

func (f *fakeTransport) Send(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		err := f.sendErr
		if f.failOnce {
			f.sendErr = nil
		}
		return err
	}
	f.sent = append(f.sent, sent{ChannelID: channelID, Text: text})
	return nil
}

func (f *fakeTransport) Typing(_ context.Context, _ string) func() {
	f.mu.Lock()
	f.typing++
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.stopped++
		f.mu.Unlock()
	}
}

func (f *fakeTransport) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func (f *fakeTransport) TypingCounts() (started, stopped int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.typing, f.stopped
}

type fakeUsers map[string]chat.User

var errUnknownUser = errors.New("unknown user")

func (f fakeUsers) LookupUser(_ context.Context, _, userID string) (chat.User, error) {
	u, ok := f[userID]
	if !ok {
		return chat.User{}, errUnknownUser
	}
	return u, nil
}

type fakePersonas struct {
	profile *persona.Profile
	err     error
}

func (f fakePersonas) Current(context.Context) (*persona.Profile, error) {
	return f.profile, f.err
}

type fakeNotes struct {
	user   []facts.Note
	server []facts.Note
	err    error
}

func (f fakeNotes) Notes(_ context.Context, s facts.Scope) ([]facts.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s.IsServer() {
		return f.server, nil
	}
	return f.user, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, f.err }

type recallQuery struct {
	Method, Query, ChannelID, AuthorID string
}

type fakeRecall struct {
	mu        sync.Mutex
	queries   []recallQuery
	recorded  []memory.Message
	hits      []memory.Hit
	searchErr error
}

func (f *fakeRecall) Channel(_ context.Context, query, _, channelID, authorID string) ([]memory.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, recallQuery{"channel", query, channelID, authorID})
	return f.hits, f.searchErr
}

func (f *fakeRecall) Server(_ context.Context, query, _, exclude string) ([]memory.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, recallQuery{"server", query, exclude, ""})
	return f.hits, f.searchErr
}

func (f *fakeRecall) Record(_ context.Context, msg memory.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, msg)
	return nil
}

func (f *fakeRecall) Queries() []recallQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recallQuery(nil), f.queries...)
}

func (f *fakeRecall) Recorded() []memory.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]memory.Message(nil), f.recorded...)
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeAnalyzer) Track(_ context.Context, _, text string) (mood.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return mood.Reading{}, f.err
}

func (f *fakeAnalyzer) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}
