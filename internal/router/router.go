// Package router drives the missed-call pipeline: filter the disposition,
// resolve the tenant, rate limit the caller, generate a reply, deliver it,
// and schedule side effects. One trigger event produces at most one
// delivery attempt.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/textback/textback/internal/database/models"
	"github.com/textback/textback/internal/directory"
	"github.com/textback/textback/internal/dispatch"
	"github.com/textback/textback/internal/notify"
	"github.com/textback/textback/internal/ratelimit"
	"github.com/textback/textback/internal/respond"
	"github.com/textback/textback/internal/sms"
	"github.com/textback/textback/internal/tracking"
)

// sendTimeout bounds one delivery attempt after the webhook context is
// detached.
const sendTimeout = 15 * time.Second

// triggerDispositions are the call outcomes that produce a text-back.
// Completed calls and everything unrecognised are acknowledged silently.
var triggerDispositions = map[string]bool{
	"no-answer": true,
	"busy":      true,
	"failed":    true,
}

// Triggered reports whether a disposition enters the pipeline.
func Triggered(disposition string) bool {
	return triggerDispositions[disposition]
}

// Event is one disposition callback from the voice provider.
type Event struct {
	CallSid     string
	From        string // the caller
	To          string // the tenant's published number
	Disposition string
	Source      string // attribution source, defaults to "direct"
	Campaign    string
}

// Resolver resolves published numbers. Satisfied by *directory.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, number string) (*directory.Tenant, error)
}

// Limiter checks the per-caller budget. Satisfied by *ratelimit.Limiter.
type Limiter interface {
	Check(key string, window time.Duration, max int) ratelimit.Result
}

// Responder produces the reply body. Satisfied by *respond.Engine.
type Responder interface {
	Respond(ctx context.Context, in respond.Input) respond.Candidate
}

// Sender delivers the reply. Satisfied by *sms.Client.
type Sender interface {
	Send(ctx context.Context, from, to, body string) (*sms.Message, error)
}

// Dispatcher schedules side effects. Satisfied by *dispatch.Dispatcher.
type Dispatcher interface {
	Enqueue(task dispatch.Task)
}

// MessageLogger records outbound replies. Satisfied by the message log
// repository.
type MessageLogger interface {
	Create(ctx context.Context, m *models.MessageLog) error
}

// Router wires the pipeline stages together.
type Router struct {
	resolver   Resolver
	limiter    Limiter
	responder  Responder
	sender     Sender
	dispatcher Dispatcher
	tracker    tracking.Store
	notifier   notify.Notifier
	msgLog     MessageLogger
	logger     *slog.Logger

	rateWindow time.Duration
	rateMax    int
}

// Config carries the router's constructor arguments.
type Config struct {
	Resolver   Resolver
	Limiter    Limiter
	Responder  Responder
	Sender     Sender
	Dispatcher Dispatcher
	Tracker    tracking.Store
	Notifier   notify.Notifier
	MessageLog MessageLogger
	RateWindow time.Duration
	RateMax    int
	Logger     *slog.Logger
}

// New creates a Router.
func New(cfg Config) *Router {
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = tracking.NopStore{}
	}
	return &Router{
		resolver:   cfg.Resolver,
		limiter:    cfg.Limiter,
		responder:  cfg.Responder,
		sender:     cfg.Sender,
		dispatcher: cfg.Dispatcher,
		tracker:    tracker,
		notifier:   cfg.Notifier,
		msgLog:     cfg.MessageLog,
		logger:     cfg.Logger.With("subsystem", "router"),
		rateWindow: cfg.RateWindow,
		rateMax:    cfg.RateMax,
	}
}

// HandleDisposition processes one callback. Non-trigger dispositions and
// rate-limited callers return nil with no delivery; only a delivery failure
// returns an error.
func (r *Router) HandleDisposition(ctx context.Context, ev Event) error {
	if !Triggered(ev.Disposition) {
		r.logger.Debug("disposition ignored",
			"call_sid", ev.CallSid,
			"disposition", ev.Disposition,
		)
		return nil
	}

	eventID := uuid.New().String()
	logger := r.logger.With("event_id", eventID, "call_sid", ev.CallSid)

	tenant, err := r.resolver.Resolve(ctx, ev.To)
	if err != nil {
		// Degrade to the generic reply rather than dropping the caller.
		logger.Warn("tenant resolution failed, using generic reply", "error", err)
		tenant = nil
	}
	if tenant == nil && err == nil {
		logger.Info("no tenant for number", "to", ev.To)
	}

	res := r.limiter.Check(ev.From, r.rateWindow, r.rateMax)
	if !res.Allowed {
		logger.Info("caller rate limited, no reply",
			"from", ev.From,
			"total_hits", res.TotalHits,
			"reset_at", res.ResetAt,
		)
		r.enqueueAudit(eventID, tenant, "rate_limited", map[string]any{
			"caller":     ev.From,
			"total_hits": res.TotalHits,
		})
		return nil
	}

	candidate := r.responder.Respond(ctx, respond.Input{
		Tenant:       tenant,
		CallerNumber: ev.From,
		EventID:      eventID,
	})

	// The send must finish even if the webhook request is cancelled.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	msg, err := r.sender.Send(sendCtx, ev.To, ev.From, candidate.Body)
	if err != nil {
		logger.Error("reply delivery failed",
			"stage", candidate.Stage,
			"error", err,
		)
		r.enqueueAudit(eventID, tenant, "delivery_failed", map[string]any{
			"caller": ev.From,
			"stage":  candidate.Stage,
		})
		return fmt.Errorf("delivering reply for event %s: %w", eventID, err)
	}

	logger.Info("reply delivered",
		"stage", candidate.Stage,
		"provider_sid", msg.SID,
	)

	r.scheduleSideEffects(eventID, ev, tenant, candidate, msg)
	return nil
}

// scheduleSideEffects enqueues the post-delivery work. Every task is best
// effort; none can affect the webhook response.
func (r *Router) scheduleSideEffects(eventID string, ev Event, tenant *directory.Tenant, candidate respond.Candidate, msg *sms.Message) {
	source := ev.Source
	if source == "" {
		source = "direct"
	}

	if tenant != nil {
		tenantID := tenant.ID
		r.dispatcher.Enqueue(dispatch.Task{Name: "lead_attribution", Fn: func(ctx context.Context) error {
			return r.tracker.RecordAttribution(ctx, &models.LeadAttribution{
				EventID:      eventID,
				TenantID:     tenantID,
				CallerNumber: ev.From,
				Source:       source,
				Campaign:     ev.Campaign,
			})
		}})
	}

	r.enqueueAudit(eventID, tenant, "reply_sent", map[string]any{
		"caller":       ev.From,
		"disposition":  ev.Disposition,
		"stage":        candidate.Stage,
		"provider_sid": msg.SID,
	})

	if r.msgLog != nil {
		var tenantID *int64
		if tenant != nil {
			id := tenant.ID
			tenantID = &id
		}
		r.dispatcher.Enqueue(dispatch.Task{Name: "message_log", Fn: func(ctx context.Context) error {
			return r.msgLog.Create(ctx, &models.MessageLog{
				EventID:     eventID,
				CallSid:     ev.CallSid,
				TenantID:    tenantID,
				FromNumber:  ev.To,
				ToNumber:    ev.From,
				Body:        candidate.Body,
				Stage:       candidate.Stage,
				ProviderSID: msg.SID,
			})
		}})
	}

	if r.notifier != nil && tenant != nil {
		mc := notify.MissedCall{
			EventID:        eventID,
			TenantName:     tenant.DisplayName(),
			CallerNumber:   ev.From,
			Disposition:    ev.Disposition,
			ReplyStage:     candidate.Stage,
			ReplyBody:      candidate.Body,
			Timestamp:      time.Now(),
			OwnerEmail:     tenant.OwnerEmail,
			OwnerPushToken: tenant.OwnerPushToken,
			OwnerPushOS:    tenant.OwnerPushOS,
		}
		r.dispatcher.Enqueue(dispatch.Task{Name: "owner_notify", Fn: func(ctx context.Context) error {
			return r.notifier.NotifyMissedCall(ctx, mc)
		}})
	}
}

// enqueueAudit records one audit event through the dispatcher.
func (r *Router) enqueueAudit(eventID string, tenant *directory.Tenant, action string, detail map[string]any) {
	var tenantID *int64
	if tenant != nil {
		id := tenant.ID
		tenantID = &id
	}

	raw, err := json.Marshal(detail)
	if err != nil {
		raw = []byte("{}")
	}

	r.dispatcher.Enqueue(dispatch.Task{Name: "audit", Fn: func(ctx context.Context) error {
		return r.tracker.RecordAudit(ctx, &models.AuditEvent{
			EventID:  eventID,
			TenantID: tenantID,
			Action:   action,
			Detail:   string(raw),
		})
	}})
}
