package chat

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/glyphchat/internal/decision"
	"github.com/MrWong99/glyphchat/internal/observe"
	"github.com/MrWong99/glyphchat/internal/prompt"
	"github.com/MrWong99/glyphchat/internal/session"
	"github.com/MrWong99/glyphchat/internal/tasks"
	"github.com/MrWong99/glyphchat/pkg/memory"
)

// Background task names.
const (
	TaskMood = "mood_analysis"
	TaskLog  = "message_log"
)

// Config holds the collaborators a [Pipeline] cannot run without.
type Config struct {
	Transport Transport
	Users     UserDirectory
	Generator Generator
	Personas  PersonaSource
	Notes     NoteSource
	Mood      MoodReader
	Sessions  *session.Store
	Settings  Settings
}

// Option configures optional collaborators of a [Pipeline].
type Option func(*Pipeline)

// WithEmbedder enables fact ranking. Without it both fact slots hold the
// none placeholder.
func WithEmbedder(e Embedder) Option {
	return func(p *Pipeline) { p.embedder = e }
}

// WithRecall enables long-term search and message logging.
func WithRecall(r Recall) Option {
	return func(p *Pipeline) { p.recall = r }
}

// WithMoodAnalyzer enables background sentiment scoring.
func WithMoodAnalyzer(a MoodAnalyzer) Option {
	return func(p *Pipeline) { p.analyzer = a }
}

// WithTasks sets the supervisor that runs background work. Without it a
// private supervisor with default settings is used.
func WithTasks(s *tasks.Supervisor) Option {
	return func(p *Pipeline) { p.tasks = s }
}

// WithMetrics records stage latencies and outcomes on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithSelfID sets the agent's own user ID. It can also be set later with
// [Pipeline.SetSelfID] once the transport knows it.
func WithSelfID(id string) Option {
	return func(p *Pipeline) { p.selfID.Store(&id) }
}

// Pipeline handles incoming messages. HandleMessage is safe for concurrent
// use; messages of different channels never block each other.
type Pipeline struct {
	transport Transport
	users     UserDirectory
	gen       Generator
	personas  PersonaSource
	notes     NoteSource
	mood      MoodReader
	sessions  *session.Store

	embedder Embedder
	recall   Recall
	analyzer MoodAnalyzer
	tasks    *tasks.Supervisor
	metrics  *observe.Metrics

	selfID   atomic.Pointer[string]
	settings atomic.Pointer[Settings]
}

// New validates cfg and returns a ready Pipeline.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	var missing []string
	if cfg.Transport == nil {
		missing = append(missing, "transport")
	}
	if cfg.Users == nil {
		missing = append(missing, "user directory")
	}
	if cfg.Generator == nil {
		missing = append(missing, "generator")
	}
	if cfg.Personas == nil {
		missing = append(missing, "persona source")
	}
	if cfg.Notes == nil {
		missing = append(missing, "note source")
	}
	if cfg.Mood == nil {
		missing = append(missing, "mood reader")
	}
	if cfg.Sessions == nil {
		missing = append(missing, "session store")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("chat: missing %s", strings.Join(missing, ", "))
	}

	p := &Pipeline{
		transport: cfg.Transport,
		users:     cfg.Users,
		gen:       cfg.Generator,
		personas:  cfg.Personas,
		notes:     cfg.Notes,
		mood:      cfg.Mood,
		sessions:  cfg.Sessions,
	}
	for _, o := range opts {
		o(p)
	}
	if p.tasks == nil {
		p.tasks = tasks.New(tasks.WithTimeout(cfg.Settings.Timeouts.Background), tasks.WithMetrics(p.metrics))
	}
	p.Update(cfg.Settings)
	return p, nil
}

// SetSelfID records the agent's own user ID.
func (p *Pipeline) SetSelfID(id string) { p.selfID.Store(&id) }

// SelfID returns the agent's user ID, or "" before it is known.
func (p *Pipeline) SelfID() string {
	if id := p.selfID.Load(); id != nil {
		return *id
	}
	return ""
}

// Update swaps the settings used by messages that arrive afterwards.
func (p *Pipeline) Update(s Settings) {
	s.applyDefaults()
	p.settings.Store(&s)
}

// Settings returns the settings in effect.
func (p *Pipeline) Settings() Settings { return *p.settings.Load() }

// Tasks returns the supervisor running background work.
func (p *Pipeline) Tasks() *tasks.Supervisor { return p.tasks }

// HandleMessage runs msg through the pipeline and reports where it ended.
// It never panics on collaborator failures and never returns before the
// reply, apology or notice has been sent.
func (p *Pipeline) HandleMessage(ctx context.Context, msg Message) Outcome {
	s := p.settings.Load()
	selfID := p.SelfID()

	if msg.Author.Bot || (selfID != "" && msg.Author.ID == selfID) ||
		(s.CommandPrefix != "" && strings.HasPrefix(msg.Content, s.CommandPrefix)) {
		return Outcome{State: Idle}
	}

	p.spawnBackground(ctx, msg)
	if !addressed(msg, selfID) {
		p.recordOutcome(ctx, Outcome{State: Idle, Observed: true})
		return Outcome{State: Idle, Observed: true}
	}

	ctx, span := observe.StartMessageSpan(ctx, msg.GuildID, msg.ChannelID, msg.ID)
	if p.metrics != nil {
		p.metrics.ActivePipelines.Add(ctx, 1)
		defer p.metrics.ActivePipelines.Add(ctx, -1)
	}

	out := p.run(ctx, s, msg, StripMention(msg.Content, selfID))
	out.Observed = true
	p.recordOutcome(ctx, out)
	span.SetAttributes(observe.AttrOutcome.String(out.Label()))
	observe.EndSpan(span, out.Err)
	return out
}

func (p *Pipeline) run(ctx context.Context, s *Settings, msg Message, text string) Outcome {
	log := observe.Logger(ctx).With("channel_id", msg.ChannelID, "message_id", msg.ID)

	profile, err := p.personas.Current(ctx)
	if err != nil || profile == nil {
		cause := ErrNoPersona
		if err != nil {
			cause = fmt.Errorf("%w: %w", ErrNoPersona, err)
		}
		log.Warn("chat: no persona available", "err", cause)
		p.send(ctx, s, msg.ChannelID, s.Messages.NoPersona)
		return Outcome{State: Idle, Reply: s.Messages.NoPersona, Err: stageErr(Idle, KindConfig, cause)}
	}

	stopTyping := p.transport.Typing(ctx, msg.ChannelID)
	defer stopTyping()

	history := p.sessions.Snapshot(msg.ChannelID)
	historyText := prompt.FormatHistory(history, s.Messages.NoHistory)

	rec, serr := p.decide(ctx, s, msg, text, historyText)
	if serr != nil {
		return p.errorReply(ctx, s, msg, serr)
	}
	log.Debug("chat: meta-decision",
		"emotion", rec.Emotion, "intent", rec.Intent, "strategy", rec.Strategy, "target", rec.TargetUserID)

	gathered := p.gather(ctx, s, msg, text, rec)

	reply, serr := p.respond(ctx, s, msg, text, historyText, profile.Render, rec, gathered)
	if serr != nil {
		return p.errorReply(ctx, s, msg, serr)
	}

	if serr := p.commit(ctx, s, msg, text, reply); serr != nil {
		return p.errorReply(ctx, s, msg, serr)
	}
	return Outcome{State: Commit, Reply: reply}
}

// decide runs the MetaDecision stage.
func (p *Pipeline) decide(ctx context.Context, s *Settings, msg Message, text, historyText string) (decision.Record, *StageError) {
	defer p.stage(ctx, MetaDecision)()

	metaPrompt, err := s.Prompts.Meta.Execute(prompt.Fields{
		prompt.FieldUserMessage:         text,
		prompt.FieldUserName:            msg.Author.Name,
		prompt.FieldConversationHistory: historyText,
		prompt.FieldMentionedUsers:      prompt.FormatMentions(p.mentionedHumans(msg), s.Messages.NoMentions),
	})
	if err != nil {
		return decision.Record{}, stageErr(MetaDecision, KindConfig, err)
	}

	out, err := p.generate(ctx, "meta", s.Timeouts.Meta, metaPrompt)
	if err != nil {
		return decision.Record{}, stageErr(MetaDecision, KindExternalService, err)
	}
	return decision.ParseRecord(out, s.Messages.Unknown), nil
}

// respond runs the ResponseGeneration stage.
func (p *Pipeline) respond(
	ctx context.Context,
	s *Settings,
	msg Message,
	text, historyText string,
	renderPersona func(userName string) (string, error),
	rec decision.Record,
	g gathered,
) (string, *StageError) {
	defer p.stage(ctx, ResponseGeneration)()

	base, err := renderPersona(msg.Author.Name)
	if err != nil {
		return "", stageErr(ResponseGeneration, KindConfig, err)
	}

	finalPrompt, err := s.Prompts.Response.Execute(prompt.Fields{
		prompt.FieldBasePersona:         base,
		prompt.FieldUserName:            msg.Author.Name,
		prompt.FieldEmotion:             rec.Emotion,
		prompt.FieldIntent:              rec.Intent,
		prompt.FieldStrategy:            rec.Strategy,
		prompt.FieldMoodText:            g.mood.Category.String(),
		prompt.FieldMoodScore:           prompt.FormatScore(g.mood.Average),
		prompt.FieldMemoryHeading:       g.memoryHeading,
		prompt.FieldMemoryContent:       g.channelMemory,
		prompt.FieldCrossChannel:        g.crossChannel,
		prompt.FieldUserMessage:         text,
		prompt.FieldConversationHistory: historyText,
		prompt.FieldUserFacts:           g.userFacts,
		prompt.FieldServerFacts:         g.serverFacts,
	})
	if err != nil {
		return "", stageErr(ResponseGeneration, KindConfig, err)
	}

	out, err := p.generate(ctx, "response", s.Timeouts.Generation, finalPrompt)
	if err != nil {
		return "", stageErr(ResponseGeneration, KindExternalService, err)
	}
	reply := strings.TrimSpace(out)
	if reply == "" {
		return "", stageErr(ResponseGeneration, KindExternalService, ErrEmptyReply)
	}
	return reply, nil
}

// commit runs the Commit stage: the reply is sent first and the exchange is
// recorded only once delivery succeeded.
func (p *Pipeline) commit(ctx context.Context, s *Settings, msg Message, text, reply string) *StageError {
	defer p.stage(ctx, Commit)()

	if err := p.sendErr(ctx, s, msg.ChannelID, reply); err != nil {
		return stageErr(Commit, KindExternalService, err)
	}
	p.sessions.Append(msg.ChannelID,
		session.Turn{Speaker: msg.Author.Name, Text: text},
		session.Turn{Speaker: s.SelfLabel, Text: reply},
	)
	return nil
}

// errorReply runs the ErrorReply stage. The apology is sent even when ctx
// has been cancelled, bounded by the send timeout.
func (p *Pipeline) errorReply(ctx context.Context, s *Settings, msg Message, serr *StageError) Outcome {
	defer p.stage(ctx, ErrorReply)()

	observe.Logger(ctx).Error("chat: pipeline failed",
		"channel_id", msg.ChannelID,
		"message_id", msg.ID,
		"stage", serr.Stage.String(),
		"kind", serr.Kind.String(),
		"err", serr.Err,
	)

	text, err := prompt.Render(s.Messages.ErrorReply, prompt.Fields{prompt.FieldError: serr.Error()})
	if err != nil {
		text = fmt.Sprintf("Sorry, something went wrong. (%v)", serr)
	}
	p.send(context.WithoutCancel(ctx), s, msg.ChannelID, text)
	return Outcome{State: ErrorReply, Reply: text, Err: serr}
}

// generate calls the generator under its own timeout.
func (p *Pipeline) generate(ctx context.Context, purpose string, timeout time.Duration, text string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := p.gen.Generate(callCtx, text)
	if p.metrics != nil {
		p.metrics.RecordProviderCall(ctx, purpose, "llm", time.Since(start), err)
	}
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", purpose, err)
	}
	return out, nil
}

func (p *Pipeline) sendErr(ctx context.Context, s *Settings, channelID, text string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.Timeouts.Send)
	defer cancel()
	if err := p.transport.Send(callCtx, channelID, text); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// send delivers a message whose failure cannot be acted on.
func (p *Pipeline) send(ctx context.Context, s *Settings, channelID, text string) {
	if err := p.sendErr(ctx, s, channelID, text); err != nil {
		observe.Logger(ctx).Error("chat: send failed", "channel_id", channelID, "err", err)
	}
}

// stage traces and times one state. Call the returned func when it ends.
func (p *Pipeline) stage(ctx context.Context, st State) func() {
	start := time.Now()
	_, span := observe.StartSpan(ctx, "chat."+st.String())
	return func() {
		span.End()
		if p.metrics != nil {
			p.metrics.RecordStage(ctx, st.String(), time.Since(start))
		}
	}
}

func (p *Pipeline) recordOutcome(ctx context.Context, out Outcome) {
	if p.metrics != nil {
		p.metrics.RecordMessage(ctx, out.Label())
	}
}

// spawnBackground starts the tasks every eligible message triggers.
func (p *Pipeline) spawnBackground(ctx context.Context, msg Message) {
	if p.analyzer != nil && strings.TrimSpace(msg.Content) != "" {
		p.tasks.Go(ctx, TaskMood, func(ctx context.Context) error {
			_, err := p.analyzer.Track(ctx, msg.ChannelID, msg.Content)
			return err
		})
	}
	if p.recall != nil {
		p.tasks.Go(ctx, TaskLog, func(ctx context.Context) error {
			return p.recall.Record(ctx, memory.Message{
				ID:         msg.ID,
				GuildID:    msg.GuildID,
				ChannelID:  msg.ChannelID,
				AuthorID:   msg.Author.ID,
				AuthorName: msg.Author.Name,
				Content:    msg.Content,
				Timestamp:  msg.Timestamp,
			})
		})
	}
}

func (p *Pipeline) mentionedHumans(msg Message) []prompt.Mention {
	selfID := p.SelfID()
	var out []prompt.Mention
	for _, u := range msg.Mentions {
		if u.Bot || u.ID == selfID {
			continue
		}
		out = append(out, prompt.Mention{ID: u.ID, Name: u.Name})
	}
	return out
}

func addressed(msg Message, selfID string) bool {
	if selfID == "" {
		return false
	}
	for _, u := range msg.Mentions {
		if u.ID == selfID {
			return true
		}
	}
	return false
}
