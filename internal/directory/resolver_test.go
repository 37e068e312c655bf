package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/textback/textback/internal/database/models"
)

// fakeStore serves canned tenants keyed by kind+number and by ID.
type fakeStore struct {
	byNumber map[string]*models.Tenant // key: kind + "|" + number
	byID     map[int64]*models.Tenant
	err      error
}

func (f *fakeStore) GetByNumberAndKind(ctx context.Context, number, kind string) (*models.Tenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byNumber[kind+"|"+number], nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func int64Ptr(v int64) *int64 { return &v }

func TestResolveBusiness(t *testing.T) {
	store := &fakeStore{
		byNumber: map[string]*models.Tenant{
			"business|+18186518560": {
				ID:               1,
				Kind:             models.KindBusiness,
				Name:             "Joe's Pizza",
				Category:         "restaurant",
				Number:           "+18186518560",
				ForwardingNumber: "+18185551000",
				Tier:             models.TierBasic,
				OrderingLink:     "https://order.example.com/joes",
			},
		},
	}

	tenant, err := NewResolver(store).Resolve(context.Background(), "+18186518560")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant == nil {
		t.Fatal("expected tenant, got nil")
	}
	if tenant.Name != "Joe's Pizza" {
		t.Errorf("Name = %q, want Joe's Pizza", tenant.Name)
	}
	if tenant.IsLocation {
		t.Error("IsLocation = true for a business match")
	}
	if tenant.DisplayName() != "Joe's Pizza" {
		t.Errorf("DisplayName() = %q", tenant.DisplayName())
	}
}

func TestResolveLocationMergesParent(t *testing.T) {
	store := &fakeStore{
		byNumber: map[string]*models.Tenant{
			"location|+13105550100": {
				ID:       7,
				Kind:     models.KindLocation,
				ParentID: int64Ptr(2),
				Name:     "Downtown",
				Number:   "+13105550100",
				Tier:     models.TierBasic,
			},
		},
		byID: map[int64]*models.Tenant{
			2: {
				ID:               2,
				Kind:             models.KindBusiness,
				Name:             "Ace Plumbing",
				Category:         "contractor",
				Number:           "+13105550000",
				ForwardingNumber: "+13105559999",
				Tier:             models.TierMulti,
				QuoteLink:        "https://quotes.example.com/ace",
				OwnerEmail:       "owner@ace.example.com",
			},
		},
	}

	tenant, err := NewResolver(store).Resolve(context.Background(), "+13105550100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant == nil {
		t.Fatal("expected tenant, got nil")
	}
	if !tenant.IsLocation {
		t.Error("IsLocation = false for a location match")
	}
	if tenant.Name != "Downtown" {
		t.Errorf("Name = %q, want location name to win", tenant.Name)
	}
	if tenant.BusinessName != "Ace Plumbing" {
		t.Errorf("BusinessName = %q", tenant.BusinessName)
	}
	if tenant.ForwardingNumber != "+13105559999" {
		t.Errorf("ForwardingNumber = %q, want inherited from business", tenant.ForwardingNumber)
	}
	if tenant.Category != "contractor" {
		t.Errorf("Category = %q, want inherited", tenant.Category)
	}
	if tenant.Tier != models.TierMulti {
		t.Errorf("Tier = %q, want business tier", tenant.Tier)
	}
	if tenant.QuoteLink == "" {
		t.Error("QuoteLink not inherited")
	}
	if tenant.OwnerEmail != "owner@ace.example.com" {
		t.Errorf("OwnerEmail = %q, want inherited", tenant.OwnerEmail)
	}
	if got := tenant.DisplayName(); got != "Downtown (Ace Plumbing)" {
		t.Errorf("DisplayName() = %q", got)
	}
}

func TestResolveLocationKeepsOwnForwarding(t *testing.T) {
	store := &fakeStore{
		byNumber: map[string]*models.Tenant{
			"location|+13105550100": {
				ID:               7,
				Kind:             models.KindLocation,
				ParentID:         int64Ptr(2),
				Name:             "Downtown",
				Number:           "+13105550100",
				ForwardingNumber: "+13105550111",
			},
		},
		byID: map[int64]*models.Tenant{
			2: {ID: 2, Kind: models.KindBusiness, Name: "Ace Plumbing", ForwardingNumber: "+13105559999"},
		},
	}

	tenant, err := NewResolver(store).Resolve(context.Background(), "+13105550100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant.ForwardingNumber != "+13105550111" {
		t.Errorf("ForwardingNumber = %q, want location's own", tenant.ForwardingNumber)
	}
}

func TestResolveNotFound(t *testing.T) {
	store := &fakeStore{byNumber: map[string]*models.Tenant{}}

	tenant, err := NewResolver(store).Resolve(context.Background(), "+19995550000")
	if err != nil {
		t.Fatalf("not-found must not be an error, got %v", err)
	}
	if tenant != nil {
		t.Fatalf("expected nil tenant, got %+v", tenant)
	}
}

func TestResolveStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}

	_, err := NewResolver(store).Resolve(context.Background(), "+18186518560")
	if !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("error = %v, want ErrDirectoryUnavailable", err)
	}
}

func TestResolveOrphanedLocation(t *testing.T) {
	store := &fakeStore{
		byNumber: map[string]*models.Tenant{
			"location|+13105550100": {
				ID:       7,
				Kind:     models.KindLocation,
				ParentID: int64Ptr(99),
				Name:     "Downtown",
				Number:   "+13105550100",
			},
		},
		byID: map[int64]*models.Tenant{},
	}

	tenant, err := NewResolver(store).Resolve(context.Background(), "+13105550100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant == nil || tenant.Name != "Downtown" {
		t.Fatalf("expected standalone location tenant, got %+v", tenant)
	}
}
