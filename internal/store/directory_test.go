package store

import (
	"context"
	"testing"
)

func TestDirectoryGetProject(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()

	p, err := ts.directory.GetProject(ctx, ts.project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if p.AdjusterName != "Adam Adjuster" {
		t.Errorf("adjuster = %q, want %q", p.AdjusterName, "Adam Adjuster")
	}
	if p.AdjusterPhoneNumber != "" {
		t.Errorf("adjuster phone = %q, want empty", p.AdjusterPhoneNumber)
	}

	missing, err := ts.directory.GetProject(ctx, "missing")
	if err != nil {
		t.Fatalf("get missing project: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for nonexistent project")
	}
}

func TestDirectoryUpdateUserContact(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()
	u := ts.createUser(t, "bob")

	if err := ts.directory.UpdateUserContact(ctx, u.ID, "new@example.com", ""); err != nil {
		t.Fatalf("update contact: %v", err)
	}

	got, err := ts.directory.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Email != "new@example.com" {
		t.Errorf("email = %q, want new@example.com", got.Email)
	}
	if got.Phone != "" {
		t.Errorf("phone = %q, want empty", got.Phone)
	}
	if got.FullName() != "bob Tech" {
		t.Errorf("full name = %q, want %q", got.FullName(), "bob Tech")
	}
}

func TestDirectoryGetOrganization(t *testing.T) {
	ts := setupTestDB(t)

	org, err := ts.directory.GetOrganization(context.Background(), ts.org.ID)
	if err != nil {
		t.Fatalf("get organization: %v", err)
	}
	if org.PhoneNumber != "+15550000000" {
		t.Errorf("phone = %q", org.PhoneNumber)
	}
}
