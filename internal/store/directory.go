package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/restoregeek/restoregeek/internal/database"
	"github.com/restoregeek/restoregeek/internal/model"
)

// DirectoryStore reads and writes the organizations, projects and users that
// reminders resolve their recipients from.
type DirectoryStore struct {
	db *database.DB
}

func NewDirectoryStore(db *database.DB) *DirectoryStore {
	return &DirectoryStore{db: db}
}

func (s *DirectoryStore) CreateOrganization(ctx context.Context, name, phoneNumber string) (*model.Organization, error) {
	org := model.Organization{
		ID:          uuid.NewString(),
		Name:        name,
		PhoneNumber: phoneNumber,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO organizations (id, name, phone_number, created_at) VALUES (?, ?, ?, ?)`),
		org.ID, org.Name, org.PhoneNumber, org.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert organization: %w", err)
	}
	return &org, nil
}

func (s *DirectoryStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	return getOrganization(ctx, s.db, id)
}

func (s *DirectoryStore) CreateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO projects (id, organization_id, name, location, client_name, client_email, client_phone_number,
		 adjuster_name, adjuster_email, adjuster_phone_number, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.OrganizationID, p.Name, p.Location, p.ClientName, p.ClientEmail, p.ClientPhoneNumber,
		p.AdjusterName, p.AdjusterEmail, p.AdjusterPhoneNumber, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return &p, nil
}

func (s *DirectoryStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return getProject(ctx, s.db, id)
}

func (s *DirectoryStore) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO users (id, organization_id, first_name, last_name, email, phone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.OrganizationID, u.FirstName, u.LastName, u.Email, u.Phone, u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

// GetUser returns the user or nil if it does not exist.
func (s *DirectoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT id, organization_id, first_name, last_name, email, phone, created_at FROM users WHERE id = ?`), id,
	).Scan(&u.ID, &u.OrganizationID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// UpdateUserContact changes a user's email and phone.
func (s *DirectoryStore) UpdateUserContact(ctx context.Context, id, email, phone string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET email = ?, phone = ? WHERE id = ?`), email, phone, id)
	if err != nil {
		return fmt.Errorf("update user contact: %w", err)
	}
	return nil
}

func getOrganization(ctx context.Context, db *database.DB, id string) (*model.Organization, error) {
	var o model.Organization
	err := db.QueryRowContext(ctx, db.Rebind(
		`SELECT id, name, phone_number, created_at FROM organizations WHERE id = ?`), id,
	).Scan(&o.ID, &o.Name, &o.PhoneNumber, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query organization: %w", err)
	}
	return &o, nil
}

func getProject(ctx context.Context, db *database.DB, id string) (*model.Project, error) {
	var p model.Project
	err := db.QueryRowContext(ctx, db.Rebind(
		`SELECT id, organization_id, name, location, client_name, client_email, client_phone_number,
		 adjuster_name, adjuster_email, adjuster_phone_number, created_at
		 FROM projects WHERE id = ?`), id,
	).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Location, &p.ClientName, &p.ClientEmail, &p.ClientPhoneNumber,
		&p.AdjusterName, &p.AdjusterEmail, &p.AdjusterPhoneNumber, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return &p, nil
}
