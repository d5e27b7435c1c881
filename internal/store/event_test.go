package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/restoregeek/restoregeek/internal/database"
	"github.com/restoregeek/restoregeek/internal/model"
)

type testStores struct {
	events    *EventStore
	reminders *ReminderStore
	directory *DirectoryStore
	org       *model.Organization
	project   *model.Project
}

func setupTestDB(t *testing.T) *testStores {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ts := &testStores{
		events:    NewEventStore(db),
		reminders: NewReminderStore(db),
		directory: NewDirectoryStore(db),
	}

	ctx := context.Background()
	ts.org, err = ts.directory.CreateOrganization(ctx, "Acme Restoration", "+15550000000")
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}
	ts.project, err = ts.directory.CreateProject(ctx, model.Project{
		OrganizationID:    ts.org.ID,
		Name:              "Water damage - 12 Elm St",
		Location:          "12 Elm St",
		ClientName:        "Carla Client",
		ClientEmail:       "carla@example.com",
		ClientPhoneNumber: "+15551112222",
		AdjusterName:      "Adam Adjuster",
		AdjusterEmail:     "adam@example.com",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return ts
}

func (ts *testStores) createUser(t *testing.T, first string) *model.User {
	t.Helper()
	u, err := ts.directory.CreateUser(context.Background(), model.User{
		OrganizationID: ts.org.ID,
		FirstName:      first,
		LastName:       "Tech",
		Email:          first + "@example.com",
		Phone:          "+1555000" + first,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (ts *testStores) createEvent(t *testing.T, withProject bool, userIDs ...string) *model.CalendarEvent {
	t.Helper()
	e := model.CalendarEvent{
		OrganizationID:  ts.org.ID,
		Subject:         "Moisture reading",
		Description:     "Bring the meter",
		Start:           time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC),
		ReminderOffset:  model.Offset2Hours,
		RemindClient:    true,
		AssignedUserIDs: userIDs,
	}
	if withProject {
		e.ProjectID = &ts.project.ID
	}
	created, err := ts.events.Create(context.Background(), e)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return created
}

func TestEventCreateAndGetByID(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()
	u1 := ts.createUser(t, "bob")
	u2 := ts.createUser(t, "amy")

	event := ts.createEvent(t, true, u1.ID, u2.ID, u1.ID)
	if event.ID == "" {
		t.Fatal("expected generated id")
	}
	if event.Subject != "Moisture reading" {
		t.Errorf("subject = %q, want %q", event.Subject, "Moisture reading")
	}
	if !event.Start.Equal(time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", event.Start)
	}
	if event.ReminderOffset != model.Offset2Hours {
		t.Errorf("offset = %q, want 2h", event.ReminderOffset)
	}
	if !event.RemindClient || event.RemindProjectOwners {
		t.Errorf("remind flags = %v/%v, want true/false", event.RemindClient, event.RemindProjectOwners)
	}
	if event.ProjectID == nil || *event.ProjectID != ts.project.ID {
		t.Errorf("project_id = %v, want %s", event.ProjectID, ts.project.ID)
	}
	if len(event.AssignedUserIDs) != 2 {
		t.Fatalf("assigned = %v, want 2 distinct users", event.AssignedUserIDs)
	}
	if event.End != nil {
		t.Errorf("end = %v, want nil", event.End)
	}

	got, err := ts.events.GetByID(ctx, event.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Subject != event.Subject {
		t.Errorf("got subject = %q, want %q", got.Subject, event.Subject)
	}
}

func TestEventGetByIDNotFound(t *testing.T) {
	ts := setupTestDB(t)

	got, err := ts.events.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent event")
	}
}

func TestEventUpdateReplacesAssignees(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()
	u1 := ts.createUser(t, "bob")
	u2 := ts.createUser(t, "amy")

	event := ts.createEvent(t, true, u1.ID)
	event.AssignedUserIDs = []string{u2.ID}
	event.Subject = "Demo day"
	event.ProjectID = nil
	end := event.Start.Add(time.Hour)
	event.End = &end

	updated, err := ts.events.Update(ctx, *event)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Subject != "Demo day" {
		t.Errorf("subject = %q, want %q", updated.Subject, "Demo day")
	}
	if updated.ProjectID != nil {
		t.Errorf("project_id = %v, want nil", *updated.ProjectID)
	}
	if updated.End == nil || !updated.End.Equal(end) {
		t.Errorf("end = %v, want %v", updated.End, end)
	}
	if len(updated.AssignedUserIDs) != 1 || updated.AssignedUserIDs[0] != u2.ID {
		t.Errorf("assigned = %v, want [%s]", updated.AssignedUserIDs, u2.ID)
	}
}

func TestEventUpdateMissing(t *testing.T) {
	ts := setupTestDB(t)

	_, err := ts.events.Update(context.Background(), model.CalendarEvent{ID: "missing", Start: time.Now()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEventSoftDelete(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()
	event := ts.createEvent(t, true)

	if err := ts.events.SoftDelete(ctx, event.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	got, err := ts.events.GetByID(ctx, event.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got == nil || !got.IsDeleted {
		t.Fatal("expected event row to remain with is_deleted set")
	}

	scoped, err := ts.events.GetForOrganization(ctx, ts.org.ID, event.ID)
	if err != nil {
		t.Fatalf("get for organization: %v", err)
	}
	if scoped != nil {
		t.Error("deleted event should not be visible to its organization")
	}

	list, err := ts.events.List(ctx, ts.org.ID, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("got %d events, want 0", len(list))
	}
}

func TestEventGetForOtherOrganization(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()
	event := ts.createEvent(t, false)

	other, err := ts.directory.CreateOrganization(ctx, "Other", "")
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}
	got, err := ts.events.GetForOrganization(ctx, other.ID, event.ID)
	if err != nil {
		t.Fatalf("get for organization: %v", err)
	}
	if got != nil {
		t.Error("event leaked across organizations")
	}
}

func TestEventListByProject(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()
	ts.createEvent(t, true)
	ts.createEvent(t, false)

	all, err := ts.events.List(ctx, ts.org.ID, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d events, want 2", len(all))
	}

	byProject, err := ts.events.List(ctx, ts.org.ID, &ts.project.ID)
	if err != nil {
		t.Fatalf("list by project: %v", err)
	}
	if len(byProject) != 1 {
		t.Errorf("got %d events, want 1", len(byProject))
	}
}

func TestEventLoadContext(t *testing.T) {
	ts := setupTestDB(t)
	ctx := context.Background()

	withProject := ts.createEvent(t, true)
	ec, err := ts.events.LoadContext(ctx, withProject.ID)
	if err != nil {
		t.Fatalf("load context: %v", err)
	}
	if ec.Organization.Name != "Acme Restoration" {
		t.Errorf("organization = %q", ec.Organization.Name)
	}
	if ec.Project == nil || ec.Project.ClientEmail != "carla@example.com" {
		t.Errorf("project = %+v, want client email carla@example.com", ec.Project)
	}

	noProject := ts.createEvent(t, false)
	ec, err = ts.events.LoadContext(ctx, noProject.ID)
	if err != nil {
		t.Fatalf("load context: %v", err)
	}
	if ec.Project != nil {
		t.Errorf("project = %+v, want nil", ec.Project)
	}

	missing, err := ts.events.LoadContext(ctx, "missing")
	if err != nil {
		t.Fatalf("load missing context: %v", err)
	}
	if missing != nil {
		t.Error("expected nil context for missing event")
	}
}
