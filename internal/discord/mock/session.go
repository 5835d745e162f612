// Package mock provides a test double for the Discord REST session.
package mock

import (
	"errors"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// SentMessage records one ChannelMessageSendComplex call.
type SentMessage struct {
	ChannelID string
	Data      *discordgo.MessageSend
}

// Session records every call for test assertions. Members and Users seed
// the lookup methods; unknown IDs yield a 404 [discordgo.RESTError].
// All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	// Members is keyed by "guildID/userID".
	Members map[string]*discordgo.Member

	// Users is keyed by user ID.
	Users map[string]*discordgo.User

	// Err is returned by interaction and message methods when non-nil.
	Err error

	// LookupErr is returned by GuildMember and User when non-nil.
	LookupErr error

	responses     []*discordgo.InteractionResponse
	followUps     []*discordgo.WebhookParams
	sent          []SentMessage
	typing        []string
	memberLookups int
	userLookups   int
}

// InteractionRespond records resp.
func (m *Session) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return m.Err
}

// FollowupMessageCreate records data and returns a stub message.
func (m *Session) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followUps = append(m.followUps, data)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup", Content: data.Content}, nil
}

// ChannelMessageSendComplex records the message.
func (m *Session) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{ChannelID: channelID, Data: data})
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-message", ChannelID: channelID, Content: data.Content}, nil
}

// ChannelTyping records channelID.
func (m *Session) ChannelTyping(channelID string, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, channelID)
	return nil
}

// GuildMember returns the seeded member.
func (m *Session) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberLookups++
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	if mem, ok := m.Members[guildID+"/"+userID]; ok {
		return mem, nil
	}
	return nil, NotFound()
}

// User returns the seeded user.
func (m *Session) User(userID string, _ ...discordgo.RequestOption) (*discordgo.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userLookups++
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	if u, ok := m.Users[userID]; ok {
		return u, nil
	}
	return nil, NotFound()
}

// NotFound builds the error discordgo returns for a 404 response.
func NotFound() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownUser, Message: "Unknown User"},
	}
}

// ErrUnavailable is a convenient transient failure for tests.
var ErrUnavailable = errors.New("mock: discord unavailable")

// Responses returns a copy of the recorded interaction responses.
func (m *Session) Responses() []*discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*discordgo.InteractionResponse, len(m.responses))
	copy(out, m.responses)
	return out
}

// LastResponse returns the most recent interaction response, or nil.
func (m *Session) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil
	}
	return m.responses[len(m.responses)-1]
}

// FollowUps returns a copy of the recorded follow-ups.
func (m *Session) FollowUps() []*discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*discordgo.WebhookParams, len(m.followUps))
	copy(out, m.followUps)
	return out
}

// LastFollowUp returns the most recent follow-up, or nil.
func (m *Session) LastFollowUp() *discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.followUps) == 0 {
		return nil
	}
	return m.followUps[len(m.followUps)-1]
}

// Sent returns a copy of the recorded channel messages.
func (m *Session) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// TypingCount returns how many typing indicators were sent.
func (m *Session) TypingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.typing)
}

// LookupCounts returns how many member and user lookups were made.
func (m *Session) LookupCounts() (members, users int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memberLookups, m.userLookups
}

// Reset clears all recorded calls and injected errors.
func (m *Session) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses, m.followUps, m.sent, m.typing = nil, nil, nil, nil
	m.memberLookups, m.userLookups = 0, 0
	m.Err, m.LookupErr = nil, nil
}
