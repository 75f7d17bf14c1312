// Package orchestrator drives the per-message routing state machine:
// route, store, decide-respond, select-persona, dispatch.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haasonsaas/ensemble/internal/chat"
	"github.com/haasonsaas/ensemble/internal/conversation"
	"github.com/haasonsaas/ensemble/internal/personas"
	"github.com/haasonsaas/ensemble/internal/router"
	"github.com/haasonsaas/ensemble/pkg/models"
)

// apologyText is the only error surface end users ever see.
const apologyText = "Sorry, I ran into a problem and couldn't answer that. Please try again."

// greetingText answers a bare mention carrying no question.
const greetingText = "Hi! Ask me something and I'll route it to the right persona."

// SendRequest describes one outbound delivery. A nil Persona sends as the
// plain bot identity.
type SendRequest struct {
	ChannelID string
	Content   string
	Persona   *personas.Persona
	ReplyToID string
}

// Sender delivers text to a channel and returns the platform's
// acknowledgment as a Message (id and timestamp filled in). The discord
// package provides the production implementation; tests use stubs.
type Sender interface {
	Send(ctx context.Context, req *SendRequest) (*models.Message, error)
}

// Inbound is one normalized incoming message plus the platform-computed
// addressing signals the orchestrator needs.
type Inbound struct {
	Message *models.Message

	// ExplicitPersona is the persona name the user addressed via @Name,
	// empty when none.
	ExplicitPersona string

	// IsMentioned is true when the bot itself was addressed by user or
	// role mention.
	IsMentioned bool

	// CleanQuery is the message content with mention text stripped. An
	// empty CleanQuery on an addressed message means a bare mention.
	CleanQuery string
}

func (in *Inbound) explicitlyAddressed() bool {
	return in.IsMentioned || in.ExplicitPersona != ""
}

func (in *Inbound) query() string {
	if in.CleanQuery == "" && !in.explicitlyAddressed() {
		return in.Message.Content
	}
	return in.CleanQuery
}

// Config wires the orchestrator's collaborators. Store, Decider, Responder
// and Sender are required.
type Config struct {
	Store     *conversation.Store
	Decider   router.DecisionMaker
	Directory *personas.Directory
	Responder personas.Responder
	Sender    Sender
	Metrics   *chat.Metrics
	Logger    *slog.Logger

	// Clock is optional and exists for tests; defaults to time.Now.
	Clock func() time.Time
}

// Orchestrator routes one incoming message at a time. It holds no state of
// its own beyond injected collaborators, so it is safe for concurrent use
// to the extent its collaborators are.
type Orchestrator struct {
	store     *conversation.Store
	decider   router.DecisionMaker
	directory *personas.Directory
	responder personas.Responder
	sender    Sender
	metrics   *chat.Metrics
	logger    *slog.Logger
	clock     func() time.Time
}

// New creates an Orchestrator from the given configuration.
func New(config Config) (*Orchestrator, error) {
	if config.Store == nil {
		return nil, chat.ErrConfig("orchestrator: store is required", nil)
	}
	if config.Decider == nil {
		return nil, chat.ErrConfig("orchestrator: decision maker is required", nil)
	}
	if config.Responder == nil {
		return nil, chat.ErrConfig("orchestrator: responder is required", nil)
	}
	if config.Sender == nil {
		return nil, chat.ErrConfig("orchestrator: sender is required", nil)
	}
	if config.Directory == nil {
		config.Directory = personas.NewDirectory(nil)
	}
	if config.Metrics == nil {
		config.Metrics = chat.NewMetrics()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Orchestrator{
		store:     config.Store,
		decider:   config.Decider,
		directory: config.Directory,
		responder: config.Responder,
		sender:    config.Sender,
		metrics:   config.Metrics,
		logger:    config.Logger.With("component", "orchestrator"),
		clock:     config.Clock,
	}, nil
}

// HandleMessage runs the full routing state machine for one incoming
// message. It never returns routing errors to the caller for delivery to
// users; the returned error exists for logging and tests only.
func (o *Orchestrator) HandleMessage(ctx context.Context, in *Inbound) error {
	msg := in.Message
	now := o.clock()
	o.metrics.RecordMessageRouted()

	// ROUTE
	active := o.store.GetActiveConversations(msg.ChannelID)
	start := time.Now()
	decision, err := o.decider.Decide(ctx, &router.Request{
		CurrentMessage:      msg,
		ActiveConversations: active,
		AvailablePersonas:   o.directory.Infos(),
		ExplicitPersona:     in.ExplicitPersona,
		IsMentioned:         in.IsMentioned,
		Now:                 now,
	})
	o.metrics.RecordDecisionLatency(time.Since(start))
	if err != nil {
		return o.errorFallback(ctx, in, err)
	}

	// STORE
	thread := o.storeMessage(msg, decision)
	if decision.TopicSummary != "" {
		o.store.SetTopicSummary(thread.ID, decision.TopicSummary)
	}

	// DECIDE_RESPOND
	if !decision.ShouldRespond {
		if !in.explicitlyAddressed() {
			o.metrics.RecordResponseSuppressed()
			o.logger.Debug("suppressing response per routing decision",
				"message_id", msg.ID,
				"thread_id", thread.ID,
				"confidence", decision.Confidence)
			return nil
		}
		o.metrics.RecordSafetyOverride()
		o.logger.Info("safety override: explicit mention forces response",
			"message_id", msg.ID,
			"explicit_persona", in.ExplicitPersona,
			"is_mentioned", in.IsMentioned)
	}

	// SELECT_PERSONA
	contextMsgs := o.resolveContext(thread, decision)
	persona, selection := o.selectPersona(in, decision)

	// DISPATCH
	return o.dispatch(ctx, in, thread, decision, persona, selection, contextMsgs)
}

// storeMessage resolves the decision's conversation reference: an existing
// thread gets the append, a dangling or absent reference starts a new
// thread. A dangling reference is never fatal.
func (o *Orchestrator) storeMessage(msg *models.Message, decision *router.Decision) *conversation.Thread {
	if decision.ConversationID != "" {
		if thread, ok := o.store.AddMessage(decision.ConversationID, msg); ok {
			o.metrics.RecordThreadReused()
			return thread
		}
		o.metrics.RecordDanglingThreadRef()
		o.logger.Warn("routing decision references unknown conversation, creating new thread",
			"conversation_id", decision.ConversationID,
			"message_id", msg.ID)
	}

	thread := o.store.CreateConversation(msg.ChannelID, msg)
	o.metrics.RecordThreadCreated()
	return thread
}

// resolveContext extracts the decision's context messages in lenient mode,
// logging and counting any IDs that failed to resolve.
func (o *Orchestrator) resolveContext(thread *conversation.Thread, decision *router.Decision) []*models.Message {
	ids := router.NormalizeMessageIDs(decision.RelevantMessageIDs)
	if len(ids) == 0 {
		return nil
	}

	found, missing := router.ContextMessagesByIDs(thread, ids)
	if len(missing) > 0 {
		o.metrics.RecordContextIDsMissing(len(missing))
		o.logger.Warn("dropping unresolved context message IDs",
			"thread_id", thread.ID,
			"missing", strings.Join(missing, ","),
			"resolved", len(found))
	}
	return found
}

// selectPersona picks who answers: an explicit @Name mention always wins,
// then the router's suggestion, then the default personaless responder.
func (o *Orchestrator) selectPersona(in *Inbound, decision *router.Decision) (*personas.Persona, personas.SelectionType) {
	if in.ExplicitPersona != "" {
		if p, ok := o.directory.ByName(in.ExplicitPersona); ok {
			return p, personas.SelectionMention
		}
		o.logger.Warn("explicitly addressed persona not configured",
			"persona", in.ExplicitPersona)
	}
	if decision.SuggestedPersona != "" {
		if p, ok := o.directory.ByName(decision.SuggestedPersona); ok {
			return p, personas.SelectionRouter
		}
		o.logger.Warn("suggested persona not configured, using default responder",
			"persona", decision.SuggestedPersona)
	}
	return nil, personas.SelectionFallback
}

func (o *Orchestrator) dispatch(ctx context.Context, in *Inbound, thread *conversation.Thread,
	decision *router.Decision, persona *personas.Persona, selection personas.SelectionType,
	contextMsgs []*models.Message) error {

	query := in.query()

	// A bare mention with nothing to answer gets a greeting, not a model
	// round trip.
	if strings.TrimSpace(query) == "" && in.explicitlyAddressed() {
		return o.deliver(ctx, in, thread.ID, persona, greetingText)
	}

	prompt := personas.BuildEnhancedQuery(query, contextMsgs, decision.Reasoning, selection)

	text, err := o.responder.Respond(ctx, persona, prompt)
	if err != nil {
		o.metrics.RecordError(chat.GetErrorCode(err))
		o.logger.Error("persona responder failed, sending apology",
			"message_id", in.Message.ID,
			"thread_id", thread.ID,
			"persona", personaName(persona),
			"error", err)
		text = apologyText
	}

	return o.deliver(ctx, in, thread.ID, persona, text)
}

// deliver sends the reply and records the acknowledged bot message into the
// thread.
func (o *Orchestrator) deliver(ctx context.Context, in *Inbound, threadID string,
	persona *personas.Persona, text string) error {

	ack, err := o.sender.Send(ctx, &SendRequest{
		ChannelID: in.Message.ChannelID,
		Content:   text,
		Persona:   persona,
		ReplyToID: in.Message.ID,
	})
	if err != nil {
		o.metrics.RecordError(chat.GetErrorCode(err))
		o.logger.Error("outbound delivery failed",
			"channel_id", in.Message.ChannelID,
			"persona", personaName(persona),
			"error", err)
		return fmt.Errorf("dispatch: %w", err)
	}

	botMsg := o.botMessage(ack, in.Message.ChannelID, text, persona)
	o.store.AddMessage(threadID, botMsg)
	o.metrics.RecordResponseSent()

	o.logger.Info("response sent",
		"channel_id", in.Message.ChannelID,
		"thread_id", threadID,
		"persona", personaName(persona),
		"chars", len(text))
	return nil
}

// errorFallback handles a routing failure. An explicitly addressed message
// still gets a best-effort apology; the proactive path stays silent so
// failures never cause unsolicited chatter. The incoming message is
// recorded either way so it remains future routing context.
func (o *Orchestrator) errorFallback(ctx context.Context, in *Inbound, cause error) error {
	o.metrics.RecordErrorFallback()
	o.metrics.RecordError(chat.GetErrorCode(cause))

	thread := o.store.GetOrCreateConversation(in.Message.ChannelID, in.Message)

	if !in.explicitlyAddressed() {
		o.logger.Error("routing failed on proactive path, staying silent",
			"message_id", in.Message.ID,
			"error", cause)
		return cause
	}

	o.logger.Error("routing failed on addressed message, sending apology",
		"message_id", in.Message.ID,
		"error", cause)

	var persona *personas.Persona
	if in.ExplicitPersona != "" {
		persona, _ = o.directory.ByName(in.ExplicitPersona)
	}
	if err := o.deliver(ctx, in, thread.ID, persona, apologyText); err != nil {
		return err
	}
	return cause
}

// botMessage converts a delivery acknowledgment into the stored bot message.
func (o *Orchestrator) botMessage(ack *models.Message, channelID, text string, persona *personas.Persona) *models.Message {
	msg := &models.Message{
		Content:   text,
		ChannelID: channelID,
		IsBot:     true,
	}
	if ack != nil {
		msg.ID = ack.ID
		msg.Timestamp = ack.Timestamp
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = o.clock()
	}
	if persona != nil {
		msg.PersonaName = persona.Name
		msg.AuthorName = persona.DisplayName
	} else {
		msg.AuthorName = "assistant"
	}
	return msg
}

func personaName(p *personas.Persona) string {
	if p == nil {
		return "default"
	}
	return p.Name
}
