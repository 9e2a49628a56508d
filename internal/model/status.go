// internal/model/status.go
package model

// Mailing lifecycle statuses.
const (
    StatusCreated   = "created"
    StatusLaunched  = "launched"
    StatusCompleted = "completed"
)

// Attempt outcomes.
const (
    AttemptSuccess = "successfully"
    AttemptFailure = "unsuccessfully"
)

// NextLaunchStatus is the single transition rule used both to mark a
// mailing as started and, on the following call, as finished: a
// launched mailing completes, anything else launches.
func NextLaunchStatus(current string) string {
    if current == StatusLaunched {
        return StatusCompleted
    }
    return StatusLaunched
}

// ReconcileStatus resolves a mailing's status after its scheduled job
// is cancelled. A mailing that already has attempts is completed; one
// that never sent reverts to created.
func ReconcileStatus(hasAttempts bool) string {
    if hasAttempts {
        return StatusCompleted
    }
    return StatusCreated
}
