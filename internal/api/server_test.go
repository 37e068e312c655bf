package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/textback/textback/internal/config"
	"github.com/textback/textback/internal/database/models"
	"github.com/textback/textback/internal/directory"
	"github.com/textback/textback/internal/dispatch"
	"github.com/textback/textback/internal/ratelimit"
	"github.com/textback/textback/internal/respond"
	"github.com/textback/textback/internal/router"
	"github.com/textback/textback/internal/sms"
	"github.com/textback/textback/internal/tracking"
)

// fakeTenantStore implements database.TenantRepository in memory.
type fakeTenantStore struct {
	nextID  int64
	tenants map[int64]*models.Tenant
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{nextID: 1, tenants: make(map[int64]*models.Tenant)}
}

func (f *fakeTenantStore) Create(ctx context.Context, t *models.Tenant) error {
	t.ID = f.nextID
	f.nextID++
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	f.tenants[t.ID] = &cp
	return nil
}

func (f *fakeTenantStore) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTenantStore) GetByNumberAndKind(ctx context.Context, number, kind string) (*models.Tenant, error) {
	for _, t := range f.tenants {
		if t.Number == number && t.Kind == kind && t.Enabled {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeTenantStore) List(ctx context.Context) ([]models.Tenant, error) {
	out := make([]models.Tenant, 0, len(f.tenants))
	for _, t := range f.tenants {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTenantStore) Update(ctx context.Context, t *models.Tenant) error {
	t.UpdatedAt = time.Now()
	cp := *t
	f.tenants[t.ID] = &cp
	return nil
}

func (f *fakeTenantStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.tenants)), nil
}

func (f *fakeTenantStore) Delete(ctx context.Context, id int64) error {
	delete(f.tenants, id)
	return nil
}

// captureSender records sends without talking to a gateway.
type captureSender struct {
	sent []struct{ From, To, Body string }
	err  error
}

func (c *captureSender) Send(ctx context.Context, from, to, body string) (*sms.Message, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.sent = append(c.sent, struct{ From, To, Body string }{from, to, body})
	return &sms.Message{SID: "SM777", Status: "queued"}, nil
}

// inlineDispatcher runs side effects synchronously.
type inlineDispatcher struct{ names []string }

func (d *inlineDispatcher) Enqueue(task dispatch.Task) {
	d.names = append(d.names, task.Name)
	task.Fn(context.Background())
}

func (d *inlineDispatcher) Stats() dispatch.Stats {
	return dispatch.Stats{Enqueued: uint64(len(d.names))}
}

type testHarness struct {
	server *Server
	store  *fakeTenantStore
	sender *captureSender
	cfg    *config.Config
}

// newTestHarness wires real pipeline components over in-memory fakes at the
// store and gateway boundaries.
func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	cfg := &config.Config{
		HTTPPort:    8080,
		PublicURL:   "https://router.example.com",
		RingTimeout: 25,
		RateWindow:  10 * time.Minute,
		RateMax:     3,
	}

	store := newFakeTenantStore()
	sender := &captureSender{}
	resolver := directory.NewResolver(store)
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), logger)
	engine := respond.NewEngine(respond.DefaultChain(nil, 0, nil), logger)
	dispatcher := &inlineDispatcher{}

	pipeline := router.New(router.Config{
		Resolver:   resolver,
		Limiter:    limiter,
		Responder:  engine,
		Sender:     sender,
		Dispatcher: dispatcher,
		Tracker:    tracking.NopStore{},
		RateWindow: cfg.RateWindow,
		RateMax:    cfg.RateMax,
		Logger:     logger,
	})

	srv := NewServer(cfg, store, resolver, pipeline, limiter, dispatcher, nil)
	t.Cleanup(srv.Close)

	return &testHarness{server: srv, store: store, sender: sender, cfg: cfg}
}

func (h *testHarness) seedJoesPizza(t *testing.T) {
	t.Helper()
	err := h.store.Create(context.Background(), &models.Tenant{
		Kind:             models.KindBusiness,
		Name:             "Joe's Pizza",
		Category:         "restaurant",
		Number:           "+18186518560",
		ForwardingNumber: "+18185551000",
		Tier:             models.TierBasic,
		OrderingLink:     "https://order.example.com/joes",
		Enabled:          true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func postForm(h *testHarness, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func TestVoiceWebhookForwards(t *testing.T) {
	h := newTestHarness(t)
	h.seedJoesPizza(t)

	rec := postForm(h, "/webhooks/voice", url.Values{
		"To":      {"+18186518560"},
		"From":    {"+15551230001"},
		"CallSid": {"CA100"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`<Number>+18185551000</Number>`,
		`timeout="25"`,
		`action="https://router.example.com/webhooks/voice/status"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("twiml missing %q:\n%s", want, body)
		}
	}
}

func TestVoiceWebhookCarriesAttribution(t *testing.T) {
	h := newTestHarness(t)
	h.seedJoesPizza(t)

	rec := postForm(h, "/webhooks/voice?source=gmb&campaign=summer", url.Values{
		"To":   {"+18186518560"},
		"From": {"+15551230001"},
	})

	if !strings.Contains(rec.Body.String(), "campaign=summer&amp;source=gmb") {
		t.Errorf("action URL missing attribution params:\n%s", rec.Body.String())
	}
}

func TestVoiceWebhookRejectsUnknownNumber(t *testing.T) {
	h := newTestHarness(t)

	rec := postForm(h, "/webhooks/voice", url.Values{
		"To":   {"+19990000000"},
		"From": {"+15551230001"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Say>") || !strings.Contains(body, "<Hangup>") {
		t.Errorf("expected apology document:\n%s", body)
	}
	if strings.Contains(body, "<Dial") {
		t.Errorf("unexpected Dial verb:\n%s", body)
	}
}

func TestVoiceWebhookRejectsWithoutForwardingNumber(t *testing.T) {
	h := newTestHarness(t)
	h.store.Create(context.Background(), &models.Tenant{
		Kind:    models.KindBusiness,
		Name:    "No Phones LLC",
		Number:  "+18186518560",
		Tier:    models.TierBasic,
		Enabled: true,
	})

	rec := postForm(h, "/webhooks/voice", url.Values{
		"To":   {"+18186518560"},
		"From": {"+15551230001"},
	})

	if !strings.Contains(rec.Body.String(), "<Hangup>") {
		t.Errorf("expected apology document:\n%s", rec.Body.String())
	}
}

// TestMissedCallEndToEnd walks the Joe's Pizza scenario: a no-answer
// disposition produces exactly one templated text with the ordering link.
func TestMissedCallEndToEnd(t *testing.T) {
	h := newTestHarness(t)
	h.seedJoesPizza(t)

	rec := postForm(h, "/webhooks/voice/status", url.Values{
		"To":         {"+18186518560"},
		"From":       {"+15551230001"},
		"CallSid":    {"CA100"},
		"CallStatus": {"no-answer"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(h.sender.sent))
	}
	sent := h.sender.sent[0]
	if sent.From != "+18186518560" || sent.To != "+15551230001" {
		t.Errorf("sent from %q to %q", sent.From, sent.To)
	}
	if !strings.Contains(sent.Body, "Joe's Pizza") || !strings.Contains(sent.Body, "https://order.example.com/joes") {
		t.Errorf("body = %q", sent.Body)
	}
}

func TestStatusCompletedCallIsIgnored(t *testing.T) {
	h := newTestHarness(t)
	h.seedJoesPizza(t)

	rec := postForm(h, "/webhooks/voice/status", url.Values{
		"To":         {"+18186518560"},
		"From":       {"+15551230001"},
		"CallStatus": {"completed"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(h.sender.sent) != 0 {
		t.Errorf("reply sent for a completed call")
	}
}

func TestStatusRateLimitedCallerGets200(t *testing.T) {
	h := newTestHarness(t)
	h.seedJoesPizza(t)

	form := url.Values{
		"To":         {"+18186518560"},
		"From":       {"+15551230001"},
		"CallStatus": {"no-answer"},
	}
	for i := 0; i < 3; i++ {
		postForm(h, "/webhooks/voice/status", form)
	}

	rec := postForm(h, "/webhooks/voice/status", form)
	if rec.Code != http.StatusOK {
		t.Fatalf("rate-limited status = %d, want 200", rec.Code)
	}
	if len(h.sender.sent) != 3 {
		t.Errorf("sends = %d, want 3 (4th suppressed)", len(h.sender.sent))
	}
}

func TestStatusDeliveryFailureReturns500(t *testing.T) {
	h := newTestHarness(t)
	h.seedJoesPizza(t)
	h.sender.err = sms.ErrDelivery

	rec := postForm(h, "/webhooks/voice/status", url.Values{
		"To":         {"+18186518560"},
		"From":       {"+15551230001"},
		"CallStatus": {"failed"},
	})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestTenantCRUD(t *testing.T) {
	h := newTestHarness(t)

	createBody := `{"kind":"business","name":"Joe's Pizza","category":"restaurant","number":"+18186518560","forwarding_number":"+18185551000","tier":"basic"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants", strings.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tenants/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"number":"+18186518560"`) {
		t.Errorf("get body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.server.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/tenants/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tenants/1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestTenantValidation(t *testing.T) {
	h := newTestHarness(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad kind", `{"kind":"franchise","name":"X","number":"+18186518560"}`},
		{"missing name", `{"kind":"business","number":"+18186518560"}`},
		{"bad number", `{"kind":"business","name":"X","number":"818-651-8560"}`},
		{"location without parent", `{"kind":"location","name":"X","number":"+18186518560"}`},
		{"bad tier", `{"kind":"business","name":"X","number":"+18186518560","tier":"platinum"}`},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	h := newTestHarness(t)

	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRateLimitStatusEndpoint(t *testing.T) {
	h := newTestHarness(t)
	h.seedJoesPizza(t)

	// Track a caller first.
	postForm(h, "/webhooks/voice/status", url.Values{
		"To":         {"+18186518560"},
		"From":       {"+15551230001"},
		"CallStatus": {"no-answer"},
	})

	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ratelimit/+15551230001", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"tracked":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ratelimit/+19998887777", nil))
	if !strings.Contains(rec.Body.String(), `"tracked":false`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
