package domain

import (
	"fmt"
	"time"
)

// ActivityAction captures what changed in an activity entry.
type ActivityAction string

const (
	ActionStatusChanged   ActivityAction = "status_changed"
	ActionPriorityChanged ActivityAction = "priority_changed"
	ActionAssigned        ActivityAction = "assigned"
	ActionUnassigned      ActivityAction = "unassigned"
)

// TicketActivity is an immutable audit trail entry.
type TicketActivity struct {
	ID          string
	TicketID    string
	UserID      string
	ActionType  ActivityAction
	OldValue    *string
	NewValue    *string
	Description string
	CreatedAt   time.Time
	User        *Profile
}

// DiffActivities lists the audit entries for the transition from before to
// after made by actorID. Content edits are not audited.
func DiffActivities(before, after *Ticket, actorID string) []TicketActivity {
	var out []TicketActivity
	if before.Status != after.Status {
		out = append(out, TicketActivity{
			TicketID:    after.ID,
			UserID:      actorID,
			ActionType:  ActionStatusChanged,
			OldValue:    strPtr(string(before.Status)),
			NewValue:    strPtr(string(after.Status)),
			Description: fmt.Sprintf("Status changed from %s to %s", before.Status, after.Status),
		})
	}
	if before.Priority != after.Priority {
		out = append(out, TicketActivity{
			TicketID:    after.ID,
			UserID:      actorID,
			ActionType:  ActionPriorityChanged,
			OldValue:    strPtr(string(before.Priority)),
			NewValue:    strPtr(string(after.Priority)),
			Description: fmt.Sprintf("Priority changed from %s to %s", before.Priority, after.Priority),
		})
	}
	oldAgent, newAgent := deref(before.AssignedAgentID), deref(after.AssignedAgentID)
	switch {
	case oldAgent == newAgent:
	case newAgent == "":
		out = append(out, TicketActivity{
			TicketID:    after.ID,
			UserID:      actorID,
			ActionType:  ActionUnassigned,
			OldValue:    strPtr(oldAgent),
			Description: "Ticket unassigned",
		})
	default:
		entry := TicketActivity{
			TicketID:    after.ID,
			UserID:      actorID,
			ActionType:  ActionAssigned,
			NewValue:    strPtr(newAgent),
			Description: "Ticket assigned",
		}
		if oldAgent != "" {
			entry.OldValue = strPtr(oldAgent)
			entry.Description = "Ticket reassigned"
		}
		out = append(out, entry)
	}
	return out
}

func strPtr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
