package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TargetKind is the recipient class of a reminder.
type TargetKind string

const (
	TargetClient         TargetKind = "CLIENT"
	TargetProjectCreator TargetKind = "PROJECT_CREATOR"
	TargetAssignedUser   TargetKind = "ASSIGNED_USER"
)

// Target identifies who a reminder notifies. A user id is carried only by
// ASSIGNED_USER targets; construct values with the helpers below.
type Target struct {
	kind   TargetKind
	userID string
}

func ClientTarget() Target         { return Target{kind: TargetClient} }
func ProjectCreatorTarget() Target { return Target{kind: TargetProjectCreator} }

func AssignedUserTarget(userID string) Target {
	return Target{kind: TargetAssignedUser, userID: userID}
}

// ParseTarget rebuilds a Target from its persisted columns.
func ParseTarget(kind string, userID *string) (Target, error) {
	switch TargetKind(kind) {
	case TargetClient, TargetProjectCreator:
		if userID != nil {
			return Target{}, fmt.Errorf("target %s must not carry a user id", kind)
		}
		return Target{kind: TargetKind(kind)}, nil
	case TargetAssignedUser:
		if userID == nil || *userID == "" {
			return Target{}, fmt.Errorf("target %s requires a user id", kind)
		}
		return AssignedUserTarget(*userID), nil
	default:
		return Target{}, fmt.Errorf("unknown reminder target %q", kind)
	}
}

func (t Target) Kind() TargetKind { return t.kind }

// UserID returns the assigned user's id; ok is false for other kinds.
func (t Target) UserID() (id string, ok bool) {
	return t.userID, t.kind == TargetAssignedUser
}

// UserIDPtr is the nullable column form of the user id.
func (t Target) UserIDPtr() *string {
	if t.kind != TargetAssignedUser {
		return nil
	}
	id := t.userID
	return &id
}

func (t Target) String() string {
	if t.kind == TargetAssignedUser {
		return string(t.kind) + "(" + t.userID + ")"
	}
	return string(t.kind)
}

type targetJSON struct {
	Kind   TargetKind `json:"kind"`
	UserID string     `json:"user_id,omitempty"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(targetJSON{Kind: t.kind, UserID: t.userID})
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var raw targetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var uid *string
	if raw.UserID != "" {
		uid = &raw.UserID
	}
	parsed, err := ParseTarget(string(raw.Kind), uid)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Channel is a delivery mechanism for a reminder.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Channels lists every channel in send order.
var Channels = []Channel{ChannelSMS, ChannelEmail}

// Draft is a reminder the planner wants to exist, before it has an id.
type Draft struct {
	TriggerAt  time.Time `json:"trigger_at"`
	Target     Target    `json:"target"`
	WantsSMS   bool      `json:"wants_sms"`
	WantsEmail bool      `json:"wants_email"`
}

type Reminder struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	TriggerAt   time.Time  `json:"trigger_at"`
	Target      Target     `json:"target"`
	WantsSMS    bool       `json:"wants_sms"`
	WantsEmail  bool       `json:"wants_email"`
	SMSSentAt   *time.Time `json:"sms_sent_at"`
	EmailSentAt *time.Time `json:"email_sent_at"`
	ExpiredAt   *time.Time `json:"expired_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Wants reports whether the reminder should be delivered over ch.
func (r *Reminder) Wants(ch Channel) bool {
	switch ch {
	case ChannelSMS:
		return r.WantsSMS
	case ChannelEmail:
		return r.WantsEmail
	}
	return false
}

// SentAt returns the recorded send time for ch, or nil.
func (r *Reminder) SentAt(ch Channel) *time.Time {
	switch ch {
	case ChannelSMS:
		return r.SMSSentAt
	case ChannelEmail:
		return r.EmailSentAt
	}
	return nil
}

// Pending reports whether ch is wanted and not yet sent.
func (r *Reminder) Pending(ch Channel) bool {
	return r.Wants(ch) && r.SentAt(ch) == nil
}

// Delivered reports whether every wanted channel has been sent.
func (r *Reminder) Delivered() bool {
	for _, ch := range Channels {
		if r.Pending(ch) {
			return false
		}
	}
	return true
}
