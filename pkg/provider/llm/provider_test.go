package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/glyphchat/pkg/provider/llm"
	"github.com/MrWong99/glyphchat/pkg/provider/llm/mock"
)

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "pong"}}
	g := llm.Generator{Provider: p, Temperature: 0.4, MaxTokens: 10}

	got, err := g.Generate(context.Background(), "ping")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "pong" {
		t.Errorf("Generate() = %q, want pong", got)
	}
	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if len(req.Messages) != 1 || req.Messages[0].Content != "ping" || req.Messages[0].Role != llm.RoleUser {
		t.Errorf("request messages = %+v", req.Messages)
	}
	if req.Temperature != 0.4 || req.MaxTokens != 10 {
		t.Errorf("request options = %v / %v", req.Temperature, req.MaxTokens)
	}
}

func TestGenerator_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	if _, err := (llm.Generator{Provider: &mock.Provider{CompleteErr: boom}}).Generate(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, err := (llm.Generator{Provider: &mock.Provider{}}).Generate(context.Background(), "x"); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}
