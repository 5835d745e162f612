package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/glyphchat/internal/chat"
	"github.com/MrWong99/glyphchat/internal/discord"
	"github.com/MrWong99/glyphchat/internal/prompt"
	"github.com/MrWong99/glyphchat/internal/websearch"
)

// Searcher finds and reads web pages for a query.
type Searcher interface {
	Sources(ctx context.Context, query string) ([]websearch.Source, error)
}

// errNoResults is reported when the search returned nothing.
var errNoResults = errors.New("search: no results")

// SearchCommands handles /search, which answers a question from the web
// with cited sources.
type SearchCommands struct {
	searcher Searcher
	gen      chat.Generator
	prompts  PromptSet
	timeout  time.Duration
}

// NewSearchCommands creates a SearchCommands handler. searcher may be nil
// when web search is not configured; the command then explains that.
func NewSearchCommands(searcher Searcher, gen chat.Generator, prompts PromptSet, timeout time.Duration) *SearchCommands {
	return &SearchCommands{searcher: searcher, gen: gen, prompts: prompts, timeout: timeoutOr(timeout)}
}

// Register registers /search with the router.
func (sc *SearchCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("search", sc.Definition(), sc.handle)
}

// Definition returns the /search ApplicationCommand for Discord registration.
func (sc *SearchCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "search",
		Description: "Search the web and summarise what it says",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "query",
				Description: "What to look up",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
				MaxLength:   200,
			},
		},
	}
}

func (sc *SearchCommands) handle(s discord.Session, i *discordgo.InteractionCreate) {
	if sc.searcher == nil {
		discord.RespondEphemeral(s, i, "Web search is not configured.")
		return
	}
	query := stringOption(i, "query")
	if query == "" {
		discord.RespondEphemeral(s, i, "Please give a query.")
		return
	}
	discord.DeferReply(s, i, true)

	ctx, cancel := context.WithTimeout(context.Background(), sc.timeout)
	defer cancel()

	answer, sources, err := sc.Answer(ctx, query)
	switch {
	case errors.Is(err, errNoResults):
		discord.FollowUp(s, i, fmt.Sprintf("I found nothing for **%s**.", query))
		return
	case err != nil:
		slog.Warn("search: failed", "query", query, "err", err)
		discord.FollowUp(s, i, fmt.Sprintf("Sorry, the search failed. (%v)", err))
		return
	}

	links := make([]string, len(sources))
	for n, src := range sources {
		links[n] = fmt.Sprintf("[%d] <%s>", n+1, src.Link)
	}
	discord.FollowUp(s, i, fmt.Sprintf("**%s**\n%s\n\n%s", query, answer, strings.Join(links, "\n")))
}

// Answer searches for query and summarises the sources with the search
// template.
func (sc *SearchCommands) Answer(ctx context.Context, query string) (string, []websearch.Source, error) {
	sources, err := sc.searcher.Sources(ctx, query)
	if err != nil {
		return "", nil, err
	}
	if len(sources) == 0 {
		return "", nil, errNoResults
	}

	p, err := sc.prompts().Search.Execute(prompt.Fields{
		prompt.FieldQuery:   query,
		prompt.FieldSources: websearch.FormatSources(sources),
	})
	if err != nil {
		return "", nil, fmt.Errorf("search: render prompt: %w", err)
	}
	out, err := sc.gen.Generate(ctx, p)
	if err != nil {
		return "", nil, fmt.Errorf("search: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", nil, fmt.Errorf("search: %w", chat.ErrEmptyReply)
	}
	return out, sources, nil
}
