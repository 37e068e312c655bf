// Package directory resolves published phone numbers to tenants. It wraps
// the tenant directory store behind a narrow interface and applies the
// location-to-business fallback rules.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/textback/textback/internal/database/models"
)

// ErrDirectoryUnavailable is returned when the directory store cannot be
// queried. Callers must degrade gracefully; a caller should always get some
// reply.
var ErrDirectoryUnavailable = errors.New("tenant directory unavailable")

// defaultLookupTimeout bounds a single resolution; exceeding it surfaces as
// ErrDirectoryUnavailable, never an indefinite hang.
const defaultLookupTimeout = 3 * time.Second

// Store is the subset of the tenant repository the resolver needs.
// Implementations return (nil, nil) when no tenant matches.
type Store interface {
	GetByNumberAndKind(ctx context.Context, number, kind string) (*models.Tenant, error)
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)
}

// Tenant is the merged resolution result handed to the rest of the pipeline.
// When the number matched a location, display identity comes from the
// location and unset configuration is inherited from the parent business.
type Tenant struct {
	ID               int64
	Name             string
	BusinessName     string // parent business name when resolved via a location
	Category         string
	Number           string
	ForwardingNumber string
	Tier             string
	IsLocation       bool
	OrderingLink     string
	QuoteLink        string
	FAQ              string
	OwnerEmail       string
	OwnerPushToken   string
	OwnerPushOS      string
}

// DisplayName returns the name shown to callers: "Location (Business)" for
// locations with a distinct parent name, the plain name otherwise.
func (t *Tenant) DisplayName() string {
	if t.IsLocation && t.BusinessName != "" && t.BusinessName != t.Name {
		return fmt.Sprintf("%s (%s)", t.Name, t.BusinessName)
	}
	return t.Name
}

// Resolver resolves a published number to its tenant.
type Resolver struct {
	store   Store
	timeout time.Duration
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, timeout: defaultLookupTimeout}
}

// NewResolverWithTimeout creates a Resolver with a custom lookup timeout.
func NewResolverWithTimeout(store Store, timeout time.Duration) *Resolver {
	return &Resolver{store: store, timeout: timeout}
}

// Resolve maps a normalized E.164 number to a tenant. The number is looked
// up exactly as given; the resolver does not attempt format correction.
// Locations are tried first, then businesses. Not-found is a normal outcome
// and returns (nil, nil); store failures return ErrDirectoryUnavailable.
func (r *Resolver) Resolve(ctx context.Context, number string) (*Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	loc, err := r.store.GetByNumberAndKind(ctx, number, models.KindLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: location lookup for %s: %v", ErrDirectoryUnavailable, number, err)
	}
	if loc != nil {
		return r.mergeLocation(ctx, loc)
	}

	biz, err := r.store.GetByNumberAndKind(ctx, number, models.KindBusiness)
	if err != nil {
		return nil, fmt.Errorf("%w: business lookup for %s: %v", ErrDirectoryUnavailable, number, err)
	}
	if biz == nil {
		return nil, nil
	}

	return fromModel(biz), nil
}

// mergeLocation resolves the location's parent business and merges the two:
// location display fields win, unset configuration inherits from the parent.
func (r *Resolver) mergeLocation(ctx context.Context, loc *models.Tenant) (*Tenant, error) {
	t := fromModel(loc)
	t.IsLocation = true

	if loc.ParentID == nil {
		return t, nil
	}

	parent, err := r.store.GetByID(ctx, *loc.ParentID)
	if err != nil {
		return nil, fmt.Errorf("%w: parent lookup for location %d: %v", ErrDirectoryUnavailable, loc.ID, err)
	}
	if parent == nil {
		// Orphaned location; treat it as a standalone tenant.
		return t, nil
	}

	t.BusinessName = parent.Name
	if t.ForwardingNumber == "" {
		t.ForwardingNumber = parent.ForwardingNumber
	}
	if t.Category == "" {
		t.Category = parent.Category
	}
	if t.Tier == "" || t.Tier == models.TierBasic {
		// Subscription tier lives on the business record.
		t.Tier = parent.Tier
	}
	if t.OrderingLink == "" {
		t.OrderingLink = parent.OrderingLink
	}
	if t.QuoteLink == "" {
		t.QuoteLink = parent.QuoteLink
	}
	if t.FAQ == "" {
		t.FAQ = parent.FAQ
	}
	if t.OwnerEmail == "" {
		t.OwnerEmail = parent.OwnerEmail
	}
	if t.OwnerPushToken == "" {
		t.OwnerPushToken = parent.OwnerPushToken
		t.OwnerPushOS = parent.OwnerPushOS
	}

	return t, nil
}

func fromModel(m *models.Tenant) *Tenant {
	return &Tenant{
		ID:               m.ID,
		Name:             m.Name,
		Category:         m.Category,
		Number:           m.Number,
		ForwardingNumber: m.ForwardingNumber,
		Tier:             m.Tier,
		OrderingLink:     m.OrderingLink,
		QuoteLink:        m.QuoteLink,
		FAQ:              m.FAQ,
		OwnerEmail:       m.OwnerEmail,
		OwnerPushToken:   m.OwnerPushToken,
		OwnerPushOS:      m.OwnerPushOS,
	}
}
