// Package mock provides an in-memory test double for [memory.MessageLog].
//
// The mock records every method call for assertion in tests and exposes
// exported fields that control what it returns. It is safe for concurrent use.
//
// Typical usage:
//
//	log := &mock.MessageLog{}
//	log.SearchResult = []memory.Hit{{Message: memory.Message{Content: "hello"}}}
//
//	// inject log into the system under test …
//
//	if got := log.CallCount("Search"); got != 1 {
//	    t.Errorf("expected 1 Search call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/glyphchat/pkg/memory"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// MessageLog is a configurable test double for [memory.MessageLog].
type MessageLog struct {
	mu    sync.Mutex
	calls []Call

	// Appended holds every message passed to Append in order.
	Appended []memory.Message

	// AppendErr is returned by Append when non-nil. The message is still recorded.
	AppendErr error

	// SearchFunc, when set, computes the Search result and overrides
	// SearchResult and SearchErr.
	SearchFunc func(q memory.Query) ([]memory.Hit, error)

	// SearchResult is returned by Search. When nil, an empty non-nil slice
	// is returned.
	SearchResult []memory.Hit

	// SearchErr is returned by Search when non-nil.
	SearchErr error

	// PingErr is returned by Ping.
	PingErr error

	// CloseErr is returned by Close.
	CloseErr error
}

var _ memory.MessageLog = (*MessageLog)(nil)

func (m *MessageLog) record(method string, args ...any) {
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of all recorded method invocations.
func (m *MessageLog) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *MessageLog) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Queries returns the queries passed to Search in order.
func (m *MessageLog) Queries() []memory.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []memory.Query
	for _, c := range m.calls {
		if c.Method == "Search" {
			out = append(out, c.Args[0].(memory.Query))
		}
	}
	return out
}

// Messages returns a copy of the appended messages.
func (m *MessageLog) Messages() []memory.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]memory.Message, len(m.Appended))
	copy(out, m.Appended)
	return out
}

// Reset clears all recorded calls and appended messages.
func (m *MessageLog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.Appended = nil
}

// Append implements [memory.MessageLog].
func (m *MessageLog) Append(_ context.Context, msg memory.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Append", msg)
	m.Appended = append(m.Appended, msg)
	return m.AppendErr
}

// Search implements [memory.MessageLog].
func (m *MessageLog) Search(_ context.Context, q memory.Query) ([]memory.Hit, error) {
	m.mu.Lock()
	m.record("Search", q)
	fn, res, err := m.SearchFunc, m.SearchResult, m.SearchErr
	m.mu.Unlock()

	if fn != nil {
		return fn(q)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return []memory.Hit{}, nil
	}
	out := make([]memory.Hit, len(res))
	copy(out, res)
	return out, nil
}

// Ping implements [memory.MessageLog].
func (m *MessageLog) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Ping")
	return m.PingErr
}

// Close implements [memory.MessageLog].
func (m *MessageLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Close")
	return m.CloseErr
}
