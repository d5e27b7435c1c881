package model

import (
	"strings"
	"time"
)

type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
}

type Project struct {
	ID                  string    `json:"id"`
	OrganizationID      string    `json:"organization_id"`
	Name                string    `json:"name"`
	Location            string    `json:"location"`
	ClientName          string    `json:"client_name"`
	ClientEmail         string    `json:"client_email"`
	ClientPhoneNumber   string    `json:"client_phone_number"`
	AdjusterName        string    `json:"adjuster_name"`
	AdjusterEmail       string    `json:"adjuster_email"`
	AdjusterPhoneNumber string    `json:"adjuster_phone_number"`
	CreatedAt           time.Time `json:"created_at"`
}

type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	CreatedAt      time.Time `json:"created_at"`
}

// FullName joins first and last name, skipping empty parts.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Recipient is the resolved contact for one reminder. Empty fields mean the
// channel has no address.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Address returns the recipient's address for ch, or "".
func (r Recipient) Address(ch Channel) string {
	switch ch {
	case ChannelSMS:
		return strings.TrimSpace(r.Phone)
	case ChannelEmail:
		return strings.TrimSpace(r.Email)
	}
	return ""
}
