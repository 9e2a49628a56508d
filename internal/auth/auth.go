package auth

// Role of the caller, as asserted by the authentication layer in
// front of this service.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Action on a mailing.
type Action string

const (
	ActionView     Action = "view"
	ActionSend     Action = "send"
	ActionSchedule Action = "schedule"
	ActionCancel   Action = "cancel"
	ActionDisable  Action = "disable"
	ActionDelete   Action = "delete"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   int
	Role Role
}

// Authorize is the single access decision point for mailing actions.
// Managers and admins can see and disable everything; sending,
// scheduling and deleting stay with the mailing's owner (and admins).
func Authorize(actor Actor, action Action, ownerID int) bool {
	elevated := actor.Role == RoleManager || actor.Role == RoleAdmin
	isOwner := actor.ID == ownerID

	switch action {
	case ActionView, ActionCancel:
		return isOwner || elevated
	case ActionDisable:
		return elevated
	case ActionSend, ActionSchedule, ActionDelete:
		return isOwner || actor.Role == RoleAdmin
	}
	return false
}
