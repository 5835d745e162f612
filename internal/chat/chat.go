// Package chat answers messages that address the agent.
//
// Each addressed message runs through one pipeline instance that moves
// through the states below and always ends back in [Idle]:
//
//	Idle → MetaDecision → ContextGathering → ResponseGeneration → Commit
//	                 ↘            ↘                  ↘             ↘
//	                                  ErrorReply
//
// MetaDecision asks the generation service for a tagged plan (emotion,
// intent, strategy, optional target user). ContextGathering fans out the
// mood read, long-term message searches, query embedding and fact ranking
// concurrently; a failing slot degrades to a placeholder instead of aborting.
// ResponseGeneration renders the persona and the final prompt and generates
// the reply. Commit sends it and records the exchange in the session store.
// A failure in any generating stage moves to ErrorReply, which sends an
// apology carrying the error and leaves the session untouched.
//
// Independently of addressing, every non-command message from a human spawns
// two supervised background tasks: sentiment scoring for the channel mood
// and appending the message to the long-term log.
package chat

import (
	"time"
)

// State is a pipeline state.
type State int

// Pipeline states.
const (
	Idle State = iota
	MetaDecision
	ContextGathering
	ResponseGeneration
	Commit
	ErrorReply
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case MetaDecision:
		return "meta_decision"
	case ContextGathering:
		return "context_gathering"
	case ResponseGeneration:
		return "response_generation"
	case Commit:
		return "commit"
	case ErrorReply:
		return "error_reply"
	}
	return "unknown"
}

// User is a chat participant.
type User struct {
	ID   string
	Name string
	Bot  bool
}

// Message is an incoming chat message as delivered by the transport.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	Author    User
	Content   string

	// Mentions lists every user mentioned in the message, the agent
	// included.
	Mentions  []User
	Timestamp time.Time
}

// Outcome reports how a message was handled. State is the last state the
// pipeline reached before returning to Idle.
type Outcome struct {
	State State

	// Reply is the text sent to the channel, if any: the answer, the
	// error apology or the no-persona notice.
	Reply string

	// Err is nil for ignored, observed and answered messages. Otherwise it
	// is a *StageError.
	Err error

	// Observed is true when background tasks were spawned.
	Observed bool
}

// Label classifies the outcome for metrics and logs.
func (o Outcome) Label() string {
	switch {
	case o.State == Commit && o.Err == nil:
		return "replied"
	case o.State == ErrorReply:
		return "error"
	case o.Err != nil:
		return "no_persona"
	case o.Observed:
		return "observed"
	}
	return "ignored"
}
