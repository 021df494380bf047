package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/models"
)

func TestGetOrCreateProfileDefaults(t *testing.T) {
	db := newTestDB(t)
	storage := NewCompanyStorage(db, arbor.NewLogger())
	ctx := context.Background()

	company := &models.Company{
		ID:     "co-1",
		Name:   "Acme",
		Domain: "acme.com",
	}
	if err := storage.SaveCompany(ctx, company); err != nil {
		t.Fatalf("Failed to save company: %v", err)
	}

	profile, err := storage.GetOrCreateProfile(ctx, company.ID)
	if err != nil {
		t.Fatalf("Failed to get or create profile: %v", err)
	}
	if !profile.IsActive {
		t.Error("Expected default profile to be active")
	}
	if profile.Strategy != models.StrategySiteSearch {
		t.Errorf("Expected default strategy site_search, got %s", profile.Strategy)
	}
	if len(profile.AllowedDomains) != 0 {
		t.Errorf("Expected empty allowed domains, got %v", profile.AllowedDomains)
	}

	// Second call returns the same profile, not a fresh one
	profile.AllowedDomains = []string{"careers.acme.com"}
	if err := storage.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("Failed to save profile: %v", err)
	}

	again, err := storage.GetOrCreateProfile(ctx, company.ID)
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}
	if len(again.AllowedDomains) != 1 || again.AllowedDomains[0] != "careers.acme.com" {
		t.Errorf("Expected persisted allowed domains, got %v", again.AllowedDomains)
	}
}

func TestListActiveCompanies(t *testing.T) {
	db := newTestDB(t)
	storage := NewCompanyStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for _, c := range []*models.Company{
		{ID: "co-1", Name: "Acme", Domain: "acme.com"},
		{ID: "co-2", Name: "Globex", Domain: "globex.com"},
	} {
		if err := storage.SaveCompany(ctx, c); err != nil {
			t.Fatalf("Failed to save company: %v", err)
		}
		if _, err := storage.GetOrCreateProfile(ctx, c.ID); err != nil {
			t.Fatalf("Failed to create profile: %v", err)
		}
	}

	// Deactivate Globex
	profile, err := storage.GetOrCreateProfile(ctx, "co-2")
	if err != nil {
		t.Fatal(err)
	}
	profile.IsActive = false
	if err := storage.SaveProfile(ctx, profile); err != nil {
		t.Fatal(err)
	}

	active, err := storage.ListActiveCompanies(ctx)
	if err != nil {
		t.Fatalf("Failed to list active companies: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("Expected 1 active company, got %d", len(active))
	}
	if active[0].Name != "Acme" {
		t.Errorf("Expected Acme, got %s", active[0].Name)
	}
}

func TestMarkProfileRun(t *testing.T) {
	db := newTestDB(t)
	storage := NewCompanyStorage(db, arbor.NewLogger())
	ctx := context.Background()

	company := &models.Company{ID: "co-1", Name: "Acme", Domain: "acme.com"}
	if err := storage.SaveCompany(ctx, company); err != nil {
		t.Fatal(err)
	}

	at := time.Now()
	if err := storage.MarkProfileRun(ctx, company.ID, at, "completed"); err != nil {
		t.Fatalf("Failed to mark profile run: %v", err)
	}

	profile, err := storage.GetOrCreateProfile(ctx, company.ID)
	if err != nil {
		t.Fatal(err)
	}
	if profile.LastRunAt == nil {
		t.Fatal("Expected last run timestamp to be set")
	}
	if profile.LastStatus != "completed" {
		t.Errorf("Expected last status completed, got %s", profile.LastStatus)
	}
}
