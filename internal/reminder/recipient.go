package reminder

import (
	"context"
	"fmt"

	"github.com/restoregeek/restoregeek/internal/model"
)

// UserLookup loads assigned users. A nil user with no error means the user is gone.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// resolveRecipient finds who a reminder goes to. Client and project-creator
// targets read the event's project; a missing project or user yields an empty
// Recipient so every channel is skipped for lack of an address.
func resolveRecipient(ctx context.Context, users UserLookup, ec *model.EventContext, t model.Target) (model.Recipient, error) {
	switch t.Kind() {
	case model.TargetClient:
		if ec.Project == nil {
			return model.Recipient{}, nil
		}
		return model.Recipient{
			Name:  ec.Project.ClientName,
			Email: ec.Project.ClientEmail,
			Phone: ec.Project.ClientPhoneNumber,
		}, nil
	case model.TargetProjectCreator:
		if ec.Project == nil {
			return model.Recipient{}, nil
		}
		return model.Recipient{
			Name:  ec.Project.AdjusterName,
			Email: ec.Project.AdjusterEmail,
			Phone: ec.Project.AdjusterPhoneNumber,
		}, nil
	case model.TargetAssignedUser:
		id, _ := t.UserID()
		u, err := users.GetUser(ctx, id)
		if err != nil {
			return model.Recipient{}, fmt.Errorf("load assigned user %s: %w", id, err)
		}
		if u == nil {
			return model.Recipient{}, nil
		}
		return model.Recipient{Name: u.FullName(), Email: u.Email, Phone: u.Phone}, nil
	default:
		return model.Recipient{}, fmt.Errorf("unknown reminder target %q", t.Kind())
	}
}
