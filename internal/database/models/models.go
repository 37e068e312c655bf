package models

import "time"

// Tenant kinds.
const (
	KindBusiness = "business"
	KindLocation = "location"
)

// Subscription tiers. The AI generation stage is gated to TierPro and
// TierMulti.
const (
	TierBasic = "basic"
	TierPro   = "pro"
	TierMulti = "multi"
)

// Tenant represents a business or one of its locations. A tenant is
// identified externally by its published phone number, which is unique
// across all tenants.
type Tenant struct {
	ID               int64
	Kind             string // "business" | "location"
	ParentID         *int64 // set for locations, references the owning business
	Name             string
	Category         string // e.g. "restaurant", "contractor"
	Number           string // published number, E.164
	ForwardingNumber string // where live calls are dialed; locations may inherit
	Tier             string
	OrderingLink     string
	QuoteLink        string
	FAQ              string // freeform response customization data
	OwnerEmail       string
	OwnerPushToken   string
	OwnerPushOS      string // "fcm" | "apns"
	Enabled          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MessageLog records one outbound auto-reply.
type MessageLog struct {
	ID          int64
	EventID     string
	CallSid     string
	TenantID    *int64
	FromNumber  string
	ToNumber    string
	Body        string
	Stage       string // fallback stage that produced the body
	ProviderSID string // delivery gateway message identifier
	CreatedAt   time.Time
}

// LeadAttribution records the source/campaign that produced a missed call.
type LeadAttribution struct {
	ID           int64
	EventID      string
	TenantID     int64
	CallerNumber string
	Source       string // "direct" when the webhook carried no source param
	Campaign     string
	CreatedAt    time.Time
}

// AuditEvent is an append-only record of a router decision or side effect.
type AuditEvent struct {
	ID        int64
	EventID   string
	TenantID  *int64
	Action    string // e.g. "reply_sent", "rate_limited", "generation_usage"
	Detail    string // JSON
	CreatedAt time.Time
}
