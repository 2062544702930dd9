// Package inbound routes webhook traffic through identity resolution,
// the challenge lifecycle and the conversation bridge.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/businessgohq/bridge/internal/automation"
	"github.com/businessgohq/bridge/internal/conversation"
	"github.com/businessgohq/bridge/internal/identity"
	"github.com/businessgohq/bridge/internal/session"
	"github.com/businessgohq/bridge/internal/token"
)

// InboundMessage is one text message extracted from a webhook delivery,
// already bound to the tenant its instance serves.
type InboundMessage struct {
	InstanceID  string
	TenantID    int64
	Phone       string
	DisplayName string
	Text        string
	TransportID string
}

// IdentityResolver classifies senders.
type IdentityResolver interface {
	Resolve(ctx context.Context, phone string) (identity.ActorIdentity, error)
}

// SessionEngine drives the challenge lifecycle.
type SessionEngine interface {
	IssueCode(ctx context.Context, phone string) (string, error)
	Current(ctx context.Context, phone string) (session.Session, error)
	SubmitCode(ctx context.Context, phone, candidate string, tenants []int64) (session.Session, error)
	SelectTenant(ctx context.Context, phone, choice string) (session.Session, error)
	Logout(ctx context.Context, phone string) error
	MaxAttempts() int
}

// TokenIssuer mints business grants for authenticated operators.
type TokenIssuer interface {
	Mint(ctx context.Context, operatorID string, tenantID int64) (token.BusinessToken, error)
}

// Bridge records bridged traffic.
type Bridge interface {
	RecordInbound(ctx context.Context, e conversation.Event) (conversation.RecordResult, error)
	RecordAutomaticReply(ctx context.Context, e conversation.Event) (conversation.RecordResult, error)
}

// TextSender delivers replies over the transport the message came from.
type TextSender interface {
	SendText(ctx context.Context, instanceID, phone, text string) error
}

// AutomationEngine is the downstream workflow system.
type AutomationEngine interface {
	HandleCustomer(ctx context.Context, req automation.Request) (automation.Result, error)
	HandleOperator(ctx context.Context, req automation.Request) (automation.Result, error)
}

// Processor applies the routing rules to one message at a time. Callers
// must serialize messages per phone; the Dispatcher does that.
type Processor struct {
	logger     *slog.Logger
	resolver   IdentityResolver
	sessions   SessionEngine
	tokens     TokenIssuer
	bridge     Bridge
	sender     TextSender
	automation AutomationEngine
}

func NewProcessor(
	log *slog.Logger,
	resolver IdentityResolver,
	sessions SessionEngine,
	tokens TokenIssuer,
	bridge Bridge,
	sender TextSender,
	engine AutomationEngine,
) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		logger:     log.With(slog.String("service", "inbound")),
		resolver:   resolver,
		sessions:   sessions,
		tokens:     tokens,
		bridge:     bridge,
		sender:     sender,
		automation: engine,
	}
}

// Process runs one message through the pipeline: classify the sender,
// record the inbound event, then route by session state. The inbound
// record is written before any session mutation so a duplicate delivery
// stops here without side effects.
func (p *Processor) Process(ctx context.Context, msg InboundMessage) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	msg.Text = text

	actor, err := p.resolver.Resolve(ctx, msg.Phone)
	if err != nil {
		p.logger.Warn("identity resolution degraded",
			slog.String("phone", msg.Phone),
			slog.Any("error", err),
		)
	}
	actorRef := "anonymous"
	if actor.IsOperator() {
		actorRef = "operator:" + actor.OperatorID
	}

	result, err := p.bridge.RecordInbound(ctx, conversation.Event{
		TenantID:    msg.TenantID,
		Phone:       msg.Phone,
		Body:        msg.Text,
		TransportID: msg.TransportID,
		ActorRef:    actorRef,
	})
	if err != nil {
		return fmt.Errorf("record inbound: %w", err)
	}
	if result.Duplicate {
		p.logger.Debug("duplicate delivery dropped",
			slog.Int64("tenant_id", msg.TenantID),
			slog.String("transport_id", msg.TransportID),
		)
		return nil
	}

	if !actor.IsOperator() {
		p.handleCustomer(ctx, msg, actorRef)
		return nil
	}
	return p.handleOperator(ctx, msg, actor, actorRef)
}

func (p *Processor) handleCustomer(ctx context.Context, msg InboundMessage, actorRef string) {
	res, err := p.automation.HandleCustomer(ctx, automation.Request{
		TenantID:    msg.TenantID,
		Phone:       msg.Phone,
		Text:        msg.Text,
		DisplayName: msg.DisplayName,
	})
	if err != nil {
		p.logger.Warn("customer automation failed",
			slog.Int64("tenant_id", msg.TenantID),
			slog.String("phone", msg.Phone),
			slog.Any("error", err),
		)
		return
	}
	if res.Reply != "" {
		p.reply(ctx, msg, res.Reply, res.WorkflowID, actorRef)
	}
}

func (p *Processor) handleOperator(ctx context.Context, msg InboundMessage, actor identity.ActorIdentity, actorRef string) error {
	if isLogoutCommand(msg.Text) {
		err := p.sessions.Logout(ctx, msg.Phone)
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			p.reply(ctx, msg, replyNoSession, "", actorRef)
		case err != nil:
			return fmt.Errorf("logout: %w", err)
		default:
			p.reply(ctx, msg, replyLoggedOut, "", actorRef)
		}
		return nil
	}

	current, err := p.sessions.Current(ctx, msg.Phone)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return p.startChallenge(ctx, msg, actorRef, replyCodeSent)
	case errors.Is(err, session.ErrSessionExpired):
		wasVerified := current.Verified
		return p.startChallenge(ctx, msg, actorRef, func(code string) string {
			return replyCodeReissued(code, wasVerified)
		})
	case err != nil:
		return fmt.Errorf("load session: %w", err)
	}

	switch {
	case !current.Verified:
		return p.handleCodeSubmission(ctx, msg, actor, actorRef)
	case !current.Authenticated():
		return p.handleTenantSelection(ctx, msg, actor, actorRef)
	default:
		return p.handleAuthenticated(ctx, msg, actor, actorRef, current)
	}
}

func (p *Processor) startChallenge(ctx context.Context, msg InboundMessage, actorRef string, render func(code string) string) error {
	code, err := p.sessions.IssueCode(ctx, msg.Phone)
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}
	p.reply(ctx, msg, render(code), "", actorRef)
	return nil
}

func (p *Processor) handleCodeSubmission(ctx context.Context, msg InboundMessage, actor identity.ActorIdentity, actorRef string) error {
	s, err := p.sessions.SubmitCode(ctx, msg.Phone, msg.Text, actor.TenantIDs())
	switch {
	case errors.Is(err, session.ErrCodeMismatch):
		p.reply(ctx, msg, replyMismatch(p.sessions.MaxAttempts()-s.Attempts), "", actorRef)
		return nil
	case errors.Is(err, session.ErrTooManyAttempts):
		p.reply(ctx, msg, replyLockedOut, "", actorRef)
		return nil
	case errors.Is(err, session.ErrSessionExpired):
		wasVerified := s.Verified
		return p.startChallenge(ctx, msg, actorRef, func(code string) string {
			return replyCodeReissued(code, wasVerified)
		})
	case errors.Is(err, session.ErrSessionNotFound):
		return p.startChallenge(ctx, msg, actorRef, replyCodeSent)
	case err != nil:
		return fmt.Errorf("submit code: %w", err)
	}

	switch {
	case s.Authenticated():
		p.reply(ctx, msg, fmt.Sprintf(replyWelcome, tenantName(actor.Memberships, s.TenantID)), "", actorRef)
	case len(s.PendingTenants) > 0:
		p.reply(ctx, msg, tenantMenu(actor.Memberships), "", actorRef)
	default:
		p.reply(ctx, msg, replyNoTenants, "", actorRef)
	}
	return nil
}

func (p *Processor) handleTenantSelection(ctx context.Context, msg InboundMessage, actor identity.ActorIdentity, actorRef string) error {
	s, err := p.sessions.SelectTenant(ctx, msg.Phone, msg.Text)
	switch {
	case errors.Is(err, session.ErrInvalidTenantChoice):
		p.reply(ctx, msg, fmt.Sprintf(replyBadChoice, tenantMenu(actor.Memberships)), "", actorRef)
		return nil
	case errors.Is(err, session.ErrNoTenantChoice):
		p.reply(ctx, msg, replyNoTenants, "", actorRef)
		return nil
	case errors.Is(err, session.ErrSessionExpired):
		wasVerified := s.Verified
		return p.startChallenge(ctx, msg, actorRef, func(code string) string {
			return replyCodeReissued(code, wasVerified)
		})
	case err != nil:
		return fmt.Errorf("select tenant: %w", err)
	}
	p.reply(ctx, msg, fmt.Sprintf(replySelected, tenantName(actor.Memberships, s.TenantID)), "", actorRef)
	return nil
}

func (p *Processor) handleAuthenticated(ctx context.Context, msg InboundMessage, actor identity.ActorIdentity, actorRef string, current session.Session) error {
	minted, err := p.tokens.Mint(ctx, actor.OperatorID, current.TenantID)
	if err != nil {
		return fmt.Errorf("mint business token: %w", err)
	}
	displayName := actor.DisplayName
	if displayName == "" {
		displayName = msg.DisplayName
	}
	res, err := p.automation.HandleOperator(ctx, automation.Request{
		TenantID:      current.TenantID,
		Phone:         msg.Phone,
		Text:          msg.Text,
		DisplayName:   displayName,
		BusinessToken: minted.Token,
	})
	if err != nil {
		p.logger.Warn("operator automation failed",
			slog.Int64("tenant_id", current.TenantID),
			slog.String("phone", msg.Phone),
			slog.Any("error", err),
		)
		return nil
	}
	if res.Reply != "" {
		p.reply(ctx, msg, res.Reply, res.WorkflowID, actorRef)
	}
	return nil
}

// reply delivers a text over the originating instance and records it as
// an automatic outbound event. Delivery failures are logged, never
// propagated: the record is written regardless so the trail stays whole.
func (p *Processor) reply(ctx context.Context, msg InboundMessage, text, workflowRef, actorRef string) {
	if err := p.sender.SendText(ctx, msg.InstanceID, msg.Phone, text); err != nil {
		p.logger.Warn("send reply failed",
			slog.String("instance", msg.InstanceID),
			slog.String("phone", msg.Phone),
			slog.Any("error", err),
		)
	}
	if _, err := p.bridge.RecordAutomaticReply(ctx, conversation.Event{
		TenantID:    msg.TenantID,
		Phone:       msg.Phone,
		Body:        text,
		ActorRef:    actorRef,
		WorkflowRef: workflowRef,
	}); err != nil {
		p.logger.Error("record reply failed",
			slog.Int64("tenant_id", msg.TenantID),
			slog.String("phone", msg.Phone),
			slog.Any("error", err),
		)
	}
}

func isLogoutCommand(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "salir", "logout", "cerrar sesion", "cerrar sesión":
		return true
	default:
		return false
	}
}
