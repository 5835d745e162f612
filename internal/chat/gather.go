package chat

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glyphchat/internal/decision"
	"github.com/MrWong99/glyphchat/internal/facts"
	"github.com/MrWong99/glyphchat/internal/mood"
	"github.com/MrWong99/glyphchat/internal/observe"
	"github.com/MrWong99/glyphchat/internal/prompt"
	"github.com/MrWong99/glyphchat/internal/recall"
	"github.com/MrWong99/glyphchat/pkg/memory"
)

// Context slot names, used as the degradation metric label.
const (
	SlotTarget        = "target"
	SlotChannelMemory = "channel_memory"
	SlotCrossChannel  = "cross_channel"
	SlotEmbedding     = "embedding"
	SlotUserFacts     = "user_facts"
	SlotServerFacts   = "server_facts"
)

// gathered is the retrieved context of one message. Every text field is
// either content or a placeholder, never empty.
type gathered struct {
	mood          mood.Reading
	target        *User
	memoryHeading string
	channelMemory string
	crossChannel  string
	userFacts     string
	serverFacts   string
}

// gather runs the ContextGathering stage. It cannot fail: every slot whose
// retrieval fails holds the none placeholder.
func (p *Pipeline) gather(ctx context.Context, s *Settings, msg Message, text string, rec decision.Record) gathered {
	defer p.stage(ctx, ContextGathering)()

	none := s.Messages.NoneAvailable
	g := gathered{
		mood:          p.mood.Current(msg.ChannelID),
		memoryHeading: s.Messages.MemoryHeading,
		channelMemory: none,
		crossChannel:  none,
		userFacts:     none,
		serverFacts:   none,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	// ── long-term memory ─────────────────────────────────────────────────────
	eg.Go(func() error {
		g.target = p.resolveTarget(egCtx, s, msg, rec)
		query := text
		authorID := ""
		if g.target != nil {
			query = g.target.Name
			authorID = g.target.ID
			if h, err := prompt.Render(s.Messages.TargetMemoryHeading, prompt.Fields{prompt.FieldName: g.target.Name}); err == nil {
				g.memoryHeading = h
			}
		}
		if p.recall == nil {
			return nil
		}

		mg, mgCtx := errgroup.WithContext(egCtx)
		mg.Go(func() error {
			hits, err := withTimeout(mgCtx, s.Timeouts.Search, func(ctx context.Context) ([]memory.Hit, error) {
				return p.recall.Channel(ctx, query, msg.GuildID, msg.ChannelID, authorID)
			})
			if err != nil {
				p.degrade(egCtx, SlotChannelMemory, err)
				return nil
			}
			g.channelMemory = recall.Format(hits, none)
			return nil
		})
		if g.target == nil {
			mg.Go(func() error {
				hits, err := withTimeout(mgCtx, s.Timeouts.Search, func(ctx context.Context) ([]memory.Hit, error) {
					return p.recall.Server(ctx, query, msg.GuildID, msg.ChannelID)
				})
				if err != nil {
					p.degrade(egCtx, SlotCrossChannel, err)
					return nil
				}
				g.crossChannel = recall.FormatAcross(hits, none)
				return nil
			})
		}
		return mg.Wait()
	})

	// ── facts ────────────────────────────────────────────────────────────────
	eg.Go(func() error {
		if p.embedder == nil {
			return nil
		}
		vec, err := withTimeout(egCtx, s.Timeouts.Embedding, func(ctx context.Context) ([]float32, error) {
			return p.embedder.Embed(ctx, text)
		})
		if err != nil {
			p.degrade(egCtx, SlotEmbedding, err)
			return nil
		}

		fg, fgCtx := errgroup.WithContext(egCtx)
		fg.Go(func() error {
			g.userFacts = p.rankNotes(fgCtx, SlotUserFacts, facts.UserScope(msg.Author.ID), vec, s.FactTopK, none)
			return nil
		})
		fg.Go(func() error {
			g.serverFacts = p.rankNotes(fgCtx, SlotServerFacts, facts.ServerScope(), vec, s.FactTopK, none)
			return nil
		})
		return fg.Wait()
	})

	// Goroutines only report success; each records its own degradation.
	_ = eg.Wait()
	return g
}

// resolveTarget looks up the user the meta-decision named. An unknown or
// unresolvable ID clears the target.
func (p *Pipeline) resolveTarget(ctx context.Context, s *Settings, msg Message, rec decision.Record) *User {
	if !rec.HasTarget() {
		return nil
	}
	u, err := withTimeout(ctx, s.Timeouts.Lookup, func(ctx context.Context) (User, error) {
		return p.users.LookupUser(ctx, msg.GuildID, rec.TargetUserID)
	})
	if err != nil {
		p.degrade(ctx, SlotTarget, err)
		return nil
	}
	if u.Name == "" {
		u.Name = u.ID
	}
	return &u
}

func (p *Pipeline) rankNotes(ctx context.Context, slot string, scope facts.Scope, vec []float32, topK int, none string) string {
	notes, err := p.notes.Notes(ctx, scope)
	if err != nil {
		p.degrade(ctx, slot, err)
		return none
	}
	return prompt.FormatFacts(facts.Rank(vec, notes, topK), none)
}

func (p *Pipeline) degrade(ctx context.Context, slot string, err error) {
	observe.Logger(ctx).Warn("chat: context slot degraded", "slot", slot, "err", err)
	if p.metrics != nil {
		p.metrics.RecordDegradation(ctx, slot)
	}
}

// withTimeout runs fn under its own deadline derived from ctx.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(callCtx)
}
