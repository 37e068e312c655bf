package api

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/textback/textback/internal/router"
	"github.com/textback/textback/internal/twiml"
)

// apologyMessage is played when a call cannot be forwarded anywhere.
const apologyMessage = "We're sorry, we can't take your call right now. Please try again later. Goodbye."

// handleVoice answers the inbound-call webhook. Calls to a tenant with a
// forwarding number are bridged with a bounded ring timeout and a
// disposition callback; everything else gets the apology document.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	to := r.PostForm.Get("To")
	from := r.PostForm.Get("From")
	callSid := r.PostForm.Get("CallSid")
	if to == "" {
		writeError(w, http.StatusBadRequest, "To is required")
		return
	}

	logger := slog.With("call_sid", callSid, "to", to)

	tenant, err := s.resolver.Resolve(r.Context(), to)
	if err != nil {
		logger.Warn("voice webhook: tenant resolution failed", "error", err)
	}

	if tenant == nil || tenant.ForwardingNumber == "" {
		if tenant != nil {
			logger.Info("no forwarding number configured, rejecting call", "tenant_id", tenant.ID)
		} else {
			logger.Info("no tenant for called number, rejecting call")
		}
		s.renderTwiML(w, twiml.Reject(apologyMessage))
		return
	}

	logger.Info("forwarding call",
		"tenant_id", tenant.ID,
		"from", from,
		"ring_timeout", s.cfg.RingTimeout,
	)
	s.renderTwiML(w, twiml.Forward(tenant.ForwardingNumber, s.actionURL(r), s.cfg.RingTimeout))
}

// actionURL builds the disposition callback URL, carrying through any
// attribution parameters present on the inbound webhook.
func (s *Server) actionURL(r *http.Request) string {
	base := s.cfg.StatusCallbackURL()

	q := url.Values{}
	if src := r.URL.Query().Get("source"); src != "" {
		q.Set("source", src)
	}
	if camp := r.URL.Query().Get("campaign"); camp != "" {
		q.Set("campaign", camp)
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

// handleVoiceStatus receives the post-dial disposition and runs the
// missed-call pipeline. Only a delivery failure is surfaced as an error;
// ignored dispositions and rate-limited callers are acknowledged with 200.
func (s *Server) handleVoiceStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	ev := router.Event{
		CallSid:     r.PostForm.Get("CallSid"),
		From:        r.PostForm.Get("From"),
		To:          r.PostForm.Get("To"),
		Disposition: r.PostForm.Get("CallStatus"),
		Source:      r.URL.Query().Get("source"),
		Campaign:    r.URL.Query().Get("campaign"),
	}
	if ev.From == "" || ev.To == "" {
		writeError(w, http.StatusBadRequest, "From and To are required")
		return
	}

	if err := s.dispositions.HandleDisposition(r.Context(), ev); err != nil {
		writeError(w, http.StatusInternalServerError, "reply delivery failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// renderTwiML serialises and writes a call-control document.
func (s *Server) renderTwiML(w http.ResponseWriter, resp *twiml.Response) {
	body, err := resp.Render()
	if err != nil {
		slog.Error("twiml render failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeTwiML(w, body)
}
